package launcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Conduit/internal/artifacts"
	"github.com/shaiso/Conduit/internal/cache"
	"github.com/shaiso/Conduit/internal/domain"
	"github.com/shaiso/Conduit/internal/executor"
	"github.com/shaiso/Conduit/internal/publish"
	"github.com/shaiso/Conduit/internal/store"
	"github.com/shaiso/Conduit/internal/telemetry"
)

// cleanupTimeout ограничивает запись FAILED и удаление выходов после ошибки.
const cleanupTimeout = 30 * time.Second

// cleanupContext отвязан от отмены ctx: отменённый запуск всё равно
// должен довести step run и pipeline run до FAILED.
func cleanupContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
}

// Identity — пользователь и проект, от имени которых создаются runs.
type Identity struct {
	UserID    uuid.UUID
	ProjectID uuid.UUID
}

// Config — зависимости Launcher.
type Config struct {
	// Store — metadata store (store.Client или store.Local).
	Store store.Store

	// Artifacts — artifact store для выходов шагов.
	Artifacts artifacts.Store

	// InProcess — executor для шагов без step operator.
	InProcess executor.Executor

	// Operators — настроенные step operators по имени.
	Operators map[string]*executor.Operator

	Deployment        *domain.Deployment
	StepName          string
	OrchestratorRunID string
	Identity          Identity

	Logger *slog.Logger

	// Now — источник времени. По умолчанию time.Now.
	Now func() time.Time
}

// Launcher запускает один шаг pipeline run.
//
// Состояния одного запуска: PREPARING → (CACHED | RUNNING) → (COMPLETED | FAILED).
// Любая ошибка переводит step run (если он создан) и pipeline run в FAILED
// и возвращается вызывающему. Локальных блокировок нет: конкурентные
// запуски разводятся get-or-create run и ограничениями уникальности store.
type Launcher struct {
	store     store.Store
	artifacts artifacts.Store
	inProcess executor.Executor
	operators map[string]*executor.Operator

	deployment        *domain.Deployment
	step              domain.Step
	orchestratorRunID string
	identity          Identity

	logger *slog.Logger
	now    func() time.Time
}

// New создаёт Launcher для шага cfg.StepName.
func New(cfg Config) (*Launcher, error) {
	if cfg.Store == nil || cfg.Artifacts == nil || cfg.InProcess == nil {
		return nil, errors.New("launcher: store, artifacts and in-process executor are required")
	}
	if cfg.Deployment == nil {
		return nil, errors.New("launcher: deployment is required")
	}
	step, ok := cfg.Deployment.Steps[cfg.StepName]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownStep, cfg.StepName)
	}
	if cfg.OrchestratorRunID == "" {
		return nil, errors.New("launcher: orchestrator run id is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &Launcher{
		store:             cfg.Store,
		artifacts:         cfg.Artifacts,
		inProcess:         cfg.InProcess,
		operators:         cfg.Operators,
		deployment:        cfg.Deployment,
		step:              step,
		orchestratorRunID: cfg.OrchestratorRunID,
		identity:          cfg.Identity,
		logger:            telemetry.WithStep(cfg.Logger, cfg.StepName, ""),
		now:               cfg.Now,
	}, nil
}

// RunIDForOrchestratorRun вычисляет ID pipeline run из ID оркестратора
// и orchestrator run id (UUIDv5). Независимые процессы получают один ID.
func RunIDForOrchestratorRun(orchestratorID uuid.UUID, orchestratorRunID string) uuid.UUID {
	return uuid.NewSHA1(orchestratorID, []byte(orchestratorRunID))
}

// Launch запускает шаг.
func (l *Launcher) Launch(ctx context.Context) error {
	l.logger.Info("step started")

	run, err := l.createOrReuseRun(ctx)
	if err != nil {
		telemetry.StepLaunches.WithLabelValues(string(domain.StatusFailed)).Inc()
		return err
	}
	logger := telemetry.WithRunID(l.logger, run.ID.String())

	status, err := l.launch(ctx, run, logger)
	if err != nil {
		logger.Error("pipeline run failed", "run", run.Name, "error", err)
		cctx, cancel := cleanupContext(ctx)
		if _, perr := publish.FailedPipelineRun(cctx, l.store, run.ID); perr != nil {
			logger.Warn("failed to mark pipeline run failed", "error", perr)
		}
		cancel()
		telemetry.StepLaunches.WithLabelValues(string(domain.StatusFailed)).Inc()
		return err
	}

	telemetry.StepLaunches.WithLabelValues(string(status)).Inc()
	return nil
}

// launch выполняет всё после резервирования run.
// Возвращает итоговый статус step run.
func (l *Launcher) launch(ctx context.Context, run *domain.PipelineRun, logger *slog.Logger) (domain.ExecutionStatus, error) {
	req := &domain.StepRun{
		Name:          l.step.Config.Name,
		PipelineRunID: run.ID,
		Step:          l.step,
		Status:        domain.StatusRunning,
		StartTime:     l.now(),
	}

	executionNeeded, stepRun, err := l.prepare(ctx, run, req, logger)
	if err != nil {
		logger.Error("failed during preparation to run step", "error", err)
		req.MarkFailed(l.now())
		cctx, cancel := cleanupContext(ctx)
		if _, cerr := l.store.CreateRunStep(cctx, req); cerr != nil {
			logger.Warn("failed to register failed step run", "error", cerr)
		}
		cancel()
		return "", err
	}

	logger = logger.With("step_run_id", stepRun.ID)
	status := stepRun.Status

	if executionNeeded {
		if err := l.runStep(ctx, run, stepRun, logger); err != nil {
			logger.Error("failed to run step", "error", err)
			cctx, cancel := cleanupContext(ctx)
			if _, perr := publish.FailedStepRun(cctx, l.store, stepRun.ID); perr != nil {
				logger.Warn("failed to mark step run failed", "error", perr)
			}
			cancel()
			return "", err
		}
		status = domain.StatusCompleted
	}

	if _, err := publish.UpdatePipelineRunStatus(ctx, l.store, run); err != nil {
		return "", err
	}
	return status, nil
}

// createOrReuseRun резервирует pipeline run для orchestrator run id.
func (l *Launcher) createOrReuseRun(ctx context.Context) (*domain.PipelineRun, error) {
	runID := RunIDForOrchestratorRun(l.deployment.OrchestratorID, l.orchestratorRunID)
	runName := l.deployment.RenderRunName(l.now())

	l.logger.Debug("creating pipeline run", "run_id", runID, "name", runName)

	run, created, err := l.store.GetOrCreateRun(ctx, &domain.PipelineRun{
		ID:                    runID,
		Name:                  runName,
		OrchestratorRunID:     l.orchestratorRunID,
		UserID:                l.identity.UserID,
		ProjectID:             l.identity.ProjectID,
		StackID:               l.deployment.StackID,
		PipelineID:            l.deployment.Pipeline.ID,
		EnableCache:           l.deployment.Pipeline.EnableCache,
		NumSteps:              l.deployment.NumSteps(),
		Status:                domain.StatusRunning,
		PipelineConfiguration: l.deployment.Pipeline.Snapshot(),
	})
	if err != nil {
		return nil, fmt.Errorf("get or create run %s: %w", runID, err)
	}
	if created {
		l.logger.Info("pipeline run created", "run_id", run.ID, "run", run.Name)
	}
	return run, nil
}

// prepare разрешает входы, считает cache key, ищет кэш и регистрирует step run.
// Возвращает false, если шаг закрыт из кэша.
func (l *Launcher) prepare(ctx context.Context, run *domain.PipelineRun, req *domain.StepRun, logger *slog.Logger) (bool, *domain.StepRun, error) {
	inputs, parents, err := ResolveInputs(ctx, l.store, l.step, run.ID)
	if err != nil {
		return false, nil, err
	}

	key, err := cache.GenerateKey(l.step.Config, inputs, l.artifacts.Identity(), run.ProjectID)
	if err != nil {
		return false, nil, err
	}

	req.InputArtifacts = inputs
	req.ParentStepIDs = parents
	req.CacheKey = key

	executionNeeded := true
	if run.EnableCache && l.step.Config.CacheEnabled() {
		cached, err := cache.GetCachedStepRun(ctx, l.store, key)
		if err != nil {
			return false, nil, err
		}
		if cached != nil {
			logger.Info("using cached version", "original_step_run_id", cached.ID)
			telemetry.StepCacheHits.Inc()
			req.MarkCached(cached)
			executionNeeded = false
		}
	}

	stepRun, err := l.store.CreateRunStep(ctx, req)
	if err != nil {
		return false, nil, fmt.Errorf("register step run: %w", err)
	}
	return executionNeeded, stepRun, nil
}

// runStep выполняет шаг и публикует его выходы.
func (l *Launcher) runStep(ctx context.Context, run *domain.PipelineRun, stepRun *domain.StepRun, logger *slog.Logger) error {
	selection, err := executor.Select(l.step.Config, l.inProcess, l.operators)
	if err != nil {
		return err
	}

	info := domain.StepRunInfo{
		Config:    l.step.Config,
		Pipeline:  l.deployment.Pipeline,
		RunName:   run.Name,
		RunID:     run.ID,
		StepRunID: stepRun.ID,
	}

	inputs, err := l.prepareInputArtifacts(ctx, stepRun.InputArtifacts)
	if err != nil {
		return err
	}
	outputs, err := l.prepareOutputArtifacts(ctx, stepRun)
	if err != nil {
		return err
	}

	if selection.Kind == executor.KindOperator {
		logger.Info("using step operator", "operator", selection.Operator)
	}

	start := time.Now()
	if err := selection.Executor.Run(ctx, inputs, outputs, info); err != nil {
		telemetry.StepDuration.WithLabelValues(string(domain.StatusFailed)).Observe(time.Since(start).Seconds())
		l.removeArtifactDirs(ctx, outputs, logger)
		return err
	}
	duration := time.Since(start)
	telemetry.StepDuration.WithLabelValues(string(domain.StatusCompleted)).Observe(duration.Seconds())

	outputIDs, err := l.publishOutputs(ctx, stepRun, outputs)
	if err != nil {
		// Зарегистрированные выходы ссылаются на свои URI, их не трогаем.
		unregistered := make(map[string]*domain.Artifact, len(outputs))
		for name, artifact := range outputs {
			if _, ok := outputIDs[name]; !ok {
				unregistered[name] = artifact
			}
		}
		l.removeArtifactDirs(ctx, unregistered, logger)
		return err
	}

	completed := domain.StatusCompleted
	end := l.now()
	if _, err := l.store.UpdateRunStep(ctx, stepRun.ID, domain.StepRunUpdate{
		Status:          &completed,
		EndTime:         &end,
		OutputArtifacts: outputIDs,
	}); err != nil {
		return fmt.Errorf("mark step run completed: %w", err)
	}

	logger.Info("step finished", "duration", HumanDuration(duration))
	return nil
}

// prepareInputArtifacts загружает входные артефакты по ID.
func (l *Launcher) prepareInputArtifacts(ctx context.Context, ids map[string]uuid.UUID) (map[string]*domain.Artifact, error) {
	inputs := make(map[string]*domain.Artifact, len(ids))
	for name, id := range ids {
		artifact, err := l.store.GetArtifact(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("get input artifact %q: %w", name, err)
		}
		input := *artifact
		input.Name = name
		inputs[name] = &input
	}
	return inputs, nil
}

// prepareOutputArtifacts создаёт URI для каждого выхода шага.
//
// Занятый URI — ErrArtifactExists. Чужой URI при этом не удаляется,
// удаляются только директории, созданные этим запуском.
func (l *Launcher) prepareOutputArtifacts(ctx context.Context, stepRun *domain.StepRun) (map[string]*domain.Artifact, error) {
	root := l.artifacts.Identity().Path
	outputs := make(map[string]*domain.Artifact, len(l.step.Config.Outputs))

	for _, name := range l.step.Config.OutputNames() {
		cfg := l.step.Config.Outputs[name]
		uri := artifacts.GenerateURI(root, l.step.Config.Name, name, stepRun.ID)

		if err := l.artifacts.MakeDirs(ctx, uri); err != nil {
			l.removeArtifactDirs(ctx, outputs, l.logger)
			return nil, fmt.Errorf("create output %q: %w", name, err)
		}

		outputs[name] = &domain.Artifact{
			Name:         name,
			URI:          uri,
			Materializer: cfg.Materializer,
			DataType:     cfg.DataType,
			ParentStepID: stepRun.ID,
		}
	}
	return outputs, nil
}

// publishOutputs регистрирует выходы в store по порядку имён.
// При ошибке возвращает и уже зарегистрированные выходы.
func (l *Launcher) publishOutputs(ctx context.Context, stepRun *domain.StepRun, outputs map[string]*domain.Artifact) (map[string]uuid.UUID, error) {
	names := make([]string, 0, len(outputs))
	for name := range outputs {
		names = append(names, name)
	}
	sort.Strings(names)

	ids := make(map[string]uuid.UUID, len(outputs))
	for _, name := range names {
		created, err := l.store.CreateArtifact(ctx, outputs[name])
		if err != nil {
			return ids, fmt.Errorf("register output %q of step run %s: %w", name, stepRun.ID, err)
		}
		ids[name] = created.ID
	}
	return ids, nil
}

// removeArtifactDirs удаляет URI выходов. Ошибки только логируются.
func (l *Launcher) removeArtifactDirs(ctx context.Context, outputs map[string]*domain.Artifact, logger *slog.Logger) {
	ctx, cancel := cleanupContext(ctx)
	defer cancel()
	for name, artifact := range outputs {
		if err := l.artifacts.RemoveAll(ctx, artifact.URI); err != nil {
			logger.Warn("failed to remove output artifact", "output", name, "uri", artifact.URI, "error", err)
		}
	}
}
