package launcher

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shaiso/Conduit/internal/cache"
	"github.com/shaiso/Conduit/internal/domain"
)

// ResolveInputs находит артефакты входов шага и ID upstream step runs.
//
// Читает снимок step runs текущего run и не ждёт: если producer или
// upstream шаг ещё не зарегистрирован, или у producer нет нужного выхода,
// возвращает ErrInputResolution.
func ResolveInputs(ctx context.Context, lister cache.StepRunLister, step domain.Step, runID uuid.UUID) (map[string]uuid.UUID, []uuid.UUID, error) {
	registered, err := lister.ListRunSteps(ctx, domain.StepRunFilter{RunID: runID})
	if err != nil {
		return nil, nil, fmt.Errorf("list steps of run %s: %w", runID, err)
	}

	byName := make(map[string]domain.StepRun, len(registered))
	for _, s := range registered {
		byName[s.Name] = s
	}

	inputs := make(map[string]uuid.UUID, len(step.Spec.Inputs))
	for name, input := range step.Spec.Inputs {
		producer, ok := byName[input.StepName]
		if !ok {
			return nil, nil, fmt.Errorf("%w: no step %q found in current run", ErrInputResolution, input.StepName)
		}
		artifactID, ok := producer.OutputArtifacts[input.OutputName]
		if !ok {
			return nil, nil, fmt.Errorf("%w: no output %q found for step %q",
				ErrInputResolution, input.OutputName, input.StepName)
		}
		inputs[name] = artifactID
	}

	parents := make([]uuid.UUID, 0, len(step.Spec.UpstreamSteps))
	for _, upstream := range step.Spec.UpstreamSteps {
		parent, ok := byName[upstream]
		if !ok {
			return nil, nil, fmt.Errorf("%w: upstream step %q not found in current run", ErrInputResolution, upstream)
		}
		parents = append(parents, parent.ID)
	}

	return inputs, parents, nil
}
