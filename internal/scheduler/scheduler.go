package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/shaiso/Conduit/internal/domain"
)

// Ошибки scheduler.
var (
	// ErrInvalidCron — cron-выражение не разобрано.
	ErrInvalidCron = errors.New("invalid cron expression")
)

// PipelineRunner запускает pipeline (обычно orchestrator.Local).
type PipelineRunner interface {
	Run(ctx context.Context, d *domain.Deployment, orchestratorRunID string) (*domain.PipelineRun, error)
}

// Scheduler запускает pipeline по cron-расписанию.
type Scheduler struct {
	runner     PipelineRunner
	deployment *domain.Deployment
	schedule   cron.Schedule
	location   *time.Location
	logger     *slog.Logger
	now        func() time.Time
}

// Config — конфигурация Scheduler.
type Config struct {
	Runner     PipelineRunner
	Deployment *domain.Deployment

	// Cron — cron-выражение (5 полей или дескриптор).
	Cron string

	// Timezone — часовой пояс расписания (default: UTC).
	Timezone string

	Logger *slog.Logger

	// Now — источник времени. По умолчанию time.Now.
	Now func() time.Time
}

// New создаёт Scheduler.
func New(cfg Config) (*Scheduler, error) {
	if cfg.Runner == nil || cfg.Deployment == nil {
		return nil, errors.New("scheduler: runner and deployment are required")
	}
	schedule, err := ParseSchedule(cfg.Cron)
	if err != nil {
		return nil, err
	}

	loc := time.UTC
	if cfg.Timezone != "" {
		if loc, err = time.LoadLocation(cfg.Timezone); err != nil {
			return nil, err
		}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &Scheduler{
		runner:     cfg.Runner,
		deployment: cfg.Deployment,
		schedule:   schedule,
		location:   loc,
		logger:     logger.With("pipeline", cfg.Deployment.Pipeline.Name),
		now:        now,
	}, nil
}

// Next возвращает время следующего тика после from.
func (s *Scheduler) Next(from time.Time) time.Time {
	return NextDue(s.schedule, from, s.location)
}

// Tick запускает pipeline для тика due.
//
// Ошибка run логируется и возвращается, но не останавливает Start:
// следующий тик запустится по расписанию.
func (s *Scheduler) Tick(ctx context.Context, due time.Time) (*domain.PipelineRun, error) {
	runID := OrchestratorRunID(s.deployment.Pipeline.Name, due)
	s.logger.Info("scheduled run due", "due", due, "orchestrator_run_id", runID)

	run, err := s.runner.Run(ctx, s.deployment, runID)
	if err != nil {
		s.logger.Error("scheduled run failed", "orchestrator_run_id", runID, "error", err)
		return run, err
	}

	s.logger.Info("scheduled run finished",
		"orchestrator_run_id", runID,
		"run_id", run.ID,
		"status", run.Status,
	)
	return run, nil
}

// Start выполняет тики до отмены ctx. Тики не перекрываются: если run
// дольше интервала, пропущенные тики не догоняются.
func (s *Scheduler) Start(ctx context.Context) error {
	for {
		due := s.Next(s.now())
		s.logger.Info("next scheduled run", "due", due)

		timer := time.NewTimer(time.Until(due))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		s.Tick(ctx, due)
	}
}
