package publish

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shaiso/Conduit/internal/domain"
	"github.com/shaiso/Conduit/internal/store"
)

// FailedStepRun переводит step run в FAILED с временем окончания.
// Уже завершённый step run не меняется.
func FailedStepRun(ctx context.Context, s store.Store, id uuid.UUID) (*domain.StepRun, error) {
	failed := domain.StatusFailed

	step, err := s.UpdateRunStep(ctx, id, domain.StepRunUpdate{Status: &failed})
	if errors.Is(err, store.ErrInvalidState) {
		// Терминальный статус окончательный
		return s.GetRunStep(ctx, id)
	}
	if err != nil {
		return nil, fmt.Errorf("mark step run %s failed: %w", id, err)
	}
	return step, nil
}

// FailedPipelineRun переводит pipeline run в FAILED.
func FailedPipelineRun(ctx context.Context, s store.Store, id uuid.UUID) (*domain.PipelineRun, error) {
	failed := domain.StatusFailed

	run, err := s.UpdateRun(ctx, id, domain.PipelineRunUpdate{Status: &failed})
	if err != nil {
		return nil, fmt.Errorf("mark pipeline run %s failed: %w", id, err)
	}
	return run, nil
}

// UpdatePipelineRunStatus пересчитывает статус pipeline run по его step runs.
//
// Правила:
//   - run уже FAILED — остаётся FAILED;
//   - есть FAILED шаг — FAILED;
//   - есть RUNNING шаг или зарегистрировано меньше шагов, чем NumSteps, — RUNNING;
//   - все шаги CACHED — CACHED;
//   - иначе COMPLETED.
//
// Статус run перечитывается из store: другой процесс мог уже пометить его FAILED.
func UpdatePipelineRunStatus(ctx context.Context, s store.Store, run *domain.PipelineRun) (*domain.PipelineRun, error) {
	current, err := s.GetRun(ctx, run.ID)
	if err != nil {
		return nil, fmt.Errorf("get run %s: %w", run.ID, err)
	}
	run = current
	if run.Status == domain.StatusFailed {
		return run, nil
	}

	steps, err := s.ListRunSteps(ctx, domain.StepRunFilter{RunID: run.ID})
	if err != nil {
		return nil, fmt.Errorf("list steps of run %s: %w", run.ID, err)
	}

	status := RunStatus(steps, run.NumSteps)
	if status == run.Status {
		return run, nil
	}

	updated, err := s.UpdateRun(ctx, run.ID, domain.PipelineRunUpdate{Status: &status})
	if err != nil {
		return nil, fmt.Errorf("update status of run %s: %w", run.ID, err)
	}
	return updated, nil
}

// RunStatus вычисляет статус run по статусам его шагов.
func RunStatus(steps []domain.StepRun, numSteps int) domain.ExecutionStatus {
	var failed, running, cached int
	for _, step := range steps {
		switch step.Status {
		case domain.StatusFailed:
			failed++
		case domain.StatusRunning:
			running++
		case domain.StatusCached:
			cached++
		}
	}

	switch {
	case failed > 0:
		return domain.StatusFailed
	case running > 0 || len(steps) < numSteps:
		return domain.StatusRunning
	case len(steps) > 0 && cached == len(steps):
		return domain.StatusCached
	default:
		return domain.StatusCompleted
	}
}
