package executor

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"

	"github.com/shaiso/Conduit/internal/artifacts"
	"github.com/shaiso/Conduit/internal/domain"
	"github.com/shaiso/Conduit/internal/engine"
	"github.com/shaiso/Conduit/internal/steps"
)

// envPrefix — переменные окружения с этим префиксом доступны в шаблонах параметров.
const envPrefix = "CONDUIT_PARAM_"

// InProcess выполняет шаг в текущем процессе.
//
// Читает входные артефакты из artifact store, рендерит параметры шага
// через engine.RenderConfig, вызывает реализацию из steps.Registry и
// пишет каждый объявленный выход в его URI.
type InProcess struct {
	registry  *steps.Registry
	artifacts artifacts.Store
	logger    *slog.Logger
}

// NewInProcess создаёт executor поверх реестра шагов и artifact store.
func NewInProcess(registry *steps.Registry, store artifacts.Store, logger *slog.Logger) *InProcess {
	if logger == nil {
		logger = slog.Default()
	}
	return &InProcess{
		registry:  registry,
		artifacts: store,
		logger:    logger,
	}
}

// Run выполняет шаг.
func (e *InProcess) Run(ctx context.Context, inputs, outputs map[string]*domain.Artifact, info domain.StepRunInfo) error {
	step, err := e.registry.Get(info.Config.Source)
	if err != nil {
		return err
	}

	tmplCtx := engine.NewContext(info.Config.Parameters)
	tmplCtx.Step = info.Config.Name
	tmplCtx.Run = info.RunName
	for _, kv := range os.Environ() {
		key, value, _ := strings.Cut(kv, "=")
		if name, ok := strings.CutPrefix(key, envPrefix); ok {
			tmplCtx.SetEnv(name, value)
		}
	}

	data := make(map[string][]byte, len(inputs))
	for name, artifact := range inputs {
		content, err := e.artifacts.ReadFile(ctx, artifact.URI, artifacts.DataFile)
		if err != nil {
			return fmt.Errorf("read input %q: %w", name, err)
		}
		data[name] = content
		tmplCtx.AddInput(name, content)
	}

	params, err := engine.RenderConfig(info.Config.Parameters, tmplCtx)
	if err != nil {
		return fmt.Errorf("render parameters: %w", err)
	}

	outputNames := make([]string, 0, len(outputs))
	for name := range outputs {
		outputNames = append(outputNames, name)
	}
	sort.Strings(outputNames)

	e.logger.Debug("executing step in process",
		"step", info.Config.Name,
		"source", info.Config.Source,
		"inputs", len(inputs),
		"outputs", outputNames,
	)

	resp, err := step.Execute(ctx, &steps.Request{
		StepName:   info.Config.Name,
		Parameters: params,
		Inputs:     data,
		Outputs:    outputNames,
	})
	if err != nil {
		return err
	}

	for _, name := range outputNames {
		content, ok := resp.Outputs[name]
		if !ok {
			return fmt.Errorf("%w: %s.%s", ErrMissingOutput, info.Config.Name, name)
		}
		if err := e.artifacts.WriteFile(ctx, outputs[name].URI, artifacts.DataFile, content); err != nil {
			return fmt.Errorf("write output %q: %w", name, err)
		}
	}

	return nil
}
