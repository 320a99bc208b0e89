package launcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/shaiso/Conduit/internal/artifacts"
	"github.com/shaiso/Conduit/internal/domain"
	"github.com/shaiso/Conduit/internal/executor"
	"github.com/shaiso/Conduit/internal/store"
	"github.com/shaiso/Conduit/internal/telemetry"
)

// EntrypointConfig — зависимости entrypoint шага.
type EntrypointConfig struct {
	Store     store.Store
	Artifacts artifacts.Store
	InProcess executor.Executor
	StepName  string
	StepRunID uuid.UUID
	Logger    *slog.Logger
}

// RunEntrypoint выполняет уже зарегистрированный step run в текущем процессе.
//
// Запускается step operator'ом на удалённой стороне. Входы берутся из
// step run, URI выходов вычисляются так же, как их подготовил launcher.
// Регистрация выходов и перевод в COMPLETED остаются за launcher.
func RunEntrypoint(ctx context.Context, cfg EntrypointConfig) error {
	if cfg.Store == nil || cfg.Artifacts == nil || cfg.InProcess == nil {
		return errors.New("entrypoint: store, artifacts and in-process executor are required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = telemetry.WithStep(logger, cfg.StepName, cfg.StepRunID.String())

	stepRun, err := cfg.Store.GetRunStep(ctx, cfg.StepRunID)
	if err != nil {
		return fmt.Errorf("get step run %s: %w", cfg.StepRunID, err)
	}
	if stepRun.Name != cfg.StepName {
		return fmt.Errorf("%w: step run %s belongs to step %q", ErrUnknownStep, stepRun.ID, stepRun.Name)
	}

	run, err := cfg.Store.GetRun(ctx, stepRun.PipelineRunID)
	if err != nil {
		return fmt.Errorf("get run %s: %w", stepRun.PipelineRunID, err)
	}
	pipeline, err := domain.PipelineConfigFromSnapshot(run.PipelineConfiguration)
	if err != nil {
		return err
	}

	inputs := make(map[string]*domain.Artifact, len(stepRun.InputArtifacts))
	for name, id := range stepRun.InputArtifacts {
		artifact, err := cfg.Store.GetArtifact(ctx, id)
		if err != nil {
			return fmt.Errorf("get input artifact %q: %w", name, err)
		}
		input := *artifact
		input.Name = name
		inputs[name] = &input
	}

	config := stepRun.Step.Config
	root := cfg.Artifacts.Identity().Path
	outputs := make(map[string]*domain.Artifact, len(config.Outputs))
	for _, name := range config.OutputNames() {
		out := config.Outputs[name]
		outputs[name] = &domain.Artifact{
			Name:         name,
			URI:          artifacts.GenerateURI(root, config.Name, name, stepRun.ID),
			Materializer: out.Materializer,
			DataType:     out.DataType,
			ParentStepID: stepRun.ID,
		}
	}

	logger.Info("running step entrypoint", "run", run.Name, "inputs", len(inputs), "outputs", len(outputs))

	return cfg.InProcess.Run(ctx, inputs, outputs, domain.StepRunInfo{
		Config:    config,
		Pipeline:  pipeline,
		RunName:   run.Name,
		RunID:     run.ID,
		StepRunID: stepRun.ID,
	})
}
