package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Conduit/internal/artifacts"
	"github.com/shaiso/Conduit/internal/domain"
	"github.com/shaiso/Conduit/internal/engine"
	"github.com/shaiso/Conduit/internal/executor"
	"github.com/shaiso/Conduit/internal/launcher"
	"github.com/shaiso/Conduit/internal/store"
	"golang.org/x/sync/errgroup"
)

// Local запускает все шаги deployment в текущем процессе.
//
// Local — простейший оркестратор:
//   - Проверяет deployment и строит DAG
//   - Запускает шаги через launcher в топологическом порядке
//   - Останавливается на первой ошибке
//
// С Parallelism > 1 независимые шаги запускаются одновременно.
// Корректность при этом держится на тех же гарантиях store, что и при
// запуске шагов разными процессами.
type Local struct {
	store     store.Store
	artifacts artifacts.Store
	inProcess executor.Executor
	operators map[string]*executor.Operator
	sources   engine.SourceSet
	identity  launcher.Identity

	parallelism int
	logger      *slog.Logger
	now         func() time.Time
}

// Config — конфигурация Local.
type Config struct {
	Store     store.Store
	Artifacts artifacts.Store
	InProcess executor.Executor
	Operators map[string]*executor.Operator

	// Sources — зарегистрированные реализации шагов для проверки deployment.
	// Nil — не проверять.
	Sources engine.SourceSet

	Identity launcher.Identity

	// Parallelism — сколько шагов запускать одновременно (default: 1).
	Parallelism int

	Logger *slog.Logger

	// Now — источник времени для launcher. По умолчанию time.Now.
	Now func() time.Time
}

// New создаёт Local.
func New(cfg Config) *Local {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	parallelism := cfg.Parallelism
	if parallelism <= 0 {
		parallelism = 1
	}

	return &Local{
		store:       cfg.Store,
		artifacts:   cfg.Artifacts,
		inProcess:   cfg.InProcess,
		operators:   cfg.Operators,
		sources:     cfg.Sources,
		identity:    cfg.Identity,
		parallelism: parallelism,
		logger:      logger,
		now:         cfg.Now,
	}
}

// Run запускает pipeline и возвращает итоговый pipeline run.
//
// Если run уже существовал (повторный запуск с тем же orchestrator run id),
// завершённые шаги не перезапускаются: их повторная регистрация в run
// невозможна, поэтому Run пропускает шаги, уже записанные в run.
func (o *Local) Run(ctx context.Context, d *domain.Deployment, orchestratorRunID string) (*domain.PipelineRun, error) {
	if orchestratorRunID == "" {
		return nil, ErrRunIDRequired
	}

	dag, err := engine.Validate(d, o.sources, o.operatorNames())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidDeployment, err)
	}

	runID := launcher.RunIDForOrchestratorRun(d.OrchestratorID, orchestratorRunID)
	logger := o.logger.With("run_id", runID, "orchestrator_run_id", orchestratorRunID)

	done, err := o.registeredSteps(ctx, runID)
	if err != nil {
		return nil, err
	}

	logger.Info("pipeline started",
		"pipeline", d.Pipeline.Name,
		"steps", dag.Size(),
		"already_done", len(done),
		"parallelism", o.parallelism,
	)
	start := time.Now()

	if o.parallelism == 1 {
		err = o.runSequential(ctx, d, dag, orchestratorRunID, done)
	} else {
		err = o.runParallel(ctx, d, dag, orchestratorRunID, done)
	}

	run, getErr := o.store.GetRun(ctx, runID)
	if err != nil {
		logger.Error("pipeline failed", "error", err, "duration", launcher.HumanDuration(time.Since(start)))
		return run, err
	}
	if getErr != nil {
		return nil, fmt.Errorf("get run %s: %w", runID, getErr)
	}

	logger.Info("pipeline finished", "status", run.Status, "duration", launcher.HumanDuration(time.Since(start)))
	return run, nil
}

// runSequential запускает шаги по одному в топологическом порядке.
func (o *Local) runSequential(ctx context.Context, d *domain.Deployment, dag *engine.DAG, orchestratorRunID string, done map[string]bool) error {
	for _, node := range dag.Order {
		if done[node.Name] {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := o.launchStep(ctx, d, node.Name, orchestratorRunID); err != nil {
			return err
		}
	}
	return nil
}

// runParallel запускает готовые шаги пачками не больше parallelism.
// Первая ошибка отменяет контекст остальных запусков.
func (o *Local) runParallel(ctx context.Context, d *domain.Deployment, dag *engine.DAG, orchestratorRunID string, done map[string]bool) error {
	g, gctx := errgroup.WithContext(ctx)
	finished := make(chan string, dag.Size())

	completed := make(map[string]bool, dag.Size())
	for name := range done {
		completed[name] = true
	}
	running := make(map[string]bool)

	for !dag.IsComplete(completed) {
		for _, node := range dag.GetReadyNodes(completed, running) {
			if len(running) >= o.parallelism {
				break
			}
			name := node.Name
			running[name] = true
			g.Go(func() error {
				if err := o.launchStep(gctx, d, name, orchestratorRunID); err != nil {
					return err
				}
				finished <- name
				return nil
			})
		}

		select {
		case name := <-finished:
			delete(running, name)
			completed[name] = true
		case <-gctx.Done():
			if err := g.Wait(); err != nil {
				return err
			}
			return ctx.Err()
		}
	}

	return g.Wait()
}

// launchStep запускает один шаг через launcher.
func (o *Local) launchStep(ctx context.Context, d *domain.Deployment, stepName, orchestratorRunID string) error {
	l, err := launcher.New(launcher.Config{
		Store:             o.store,
		Artifacts:         o.artifacts,
		InProcess:         o.inProcess,
		Operators:         o.operators,
		Deployment:        d,
		StepName:          stepName,
		OrchestratorRunID: orchestratorRunID,
		Identity:          o.identity,
		Logger:            o.logger,
		Now:               o.now,
	})
	if err != nil {
		return err
	}
	if err := l.Launch(ctx); err != nil {
		return fmt.Errorf("step %s: %w", stepName, err)
	}
	return nil
}

// registeredSteps возвращает шаги, уже успешно завершённые в run.
func (o *Local) registeredSteps(ctx context.Context, runID uuid.UUID) (map[string]bool, error) {
	steps, err := o.store.ListRunSteps(ctx, domain.StepRunFilter{
		RunID:    runID,
		Statuses: []domain.ExecutionStatus{domain.StatusCompleted, domain.StatusCached},
	})
	if err != nil {
		return nil, fmt.Errorf("list steps of run %s: %w", runID, err)
	}
	done := make(map[string]bool, len(steps))
	for _, s := range steps {
		done[s.Name] = true
	}
	return done, nil
}

func (o *Local) operatorNames() []string {
	names := make([]string, 0, len(o.operators))
	for name := range o.operators {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
