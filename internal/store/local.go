package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Conduit/internal/domain"
	"github.com/shaiso/Conduit/internal/repo"
)

// Local — Store поверх репозиториев в том же процессе.
//
// Local содержит правила store: назначение ID, валидацию запросов,
// запрет изменения завершённых step runs. API сервер обслуживает
// запросы через Local, поэтому Client и Local ведут себя одинаково.
type Local struct {
	repos *repo.Set
	now   func() time.Time
}

// NewLocal создаёт Local поверх набора репозиториев.
func NewLocal(repos *repo.Set) *Local {
	return &Local{repos: repos, now: time.Now}
}

// --- Pipeline runs ---

// GetOrCreateRun создаёт pipeline run или возвращает существующий.
func (s *Local) GetOrCreateRun(ctx context.Context, run *domain.PipelineRun) (*domain.PipelineRun, bool, error) {
	if run.ID == uuid.Nil {
		return nil, false, fmt.Errorf("%w: run id is required", ErrInvalidRequest)
	}
	if run.ProjectID == uuid.Nil {
		return nil, false, fmt.Errorf("%w: project id is required", ErrInvalidRequest)
	}
	if run.Name == "" {
		return nil, false, fmt.Errorf("%w: run name is required", ErrInvalidRequest)
	}

	req := *run
	if req.Status == "" {
		req.Status = domain.StatusRunning
	}
	if !req.Status.IsValid() {
		return nil, false, fmt.Errorf("%w: unknown status %q", ErrInvalidRequest, req.Status)
	}
	if req.CreatedAt.IsZero() {
		req.CreatedAt = s.now()
	}
	req.UpdatedAt = req.CreatedAt

	stored, created, err := s.repos.Runs.GetOrCreate(ctx, &req)
	if err != nil {
		return nil, false, translate(err)
	}
	return stored, created, nil
}

// GetRun возвращает pipeline run по ID.
func (s *Local) GetRun(ctx context.Context, id uuid.UUID) (*domain.PipelineRun, error) {
	run, err := s.repos.Runs.GetByID(ctx, id)
	if err != nil {
		return nil, translate(err)
	}
	return run, nil
}

// ListRuns возвращает pipeline runs.
func (s *Local) ListRuns(ctx context.Context, filter domain.PipelineRunFilter) ([]domain.PipelineRun, error) {
	runs, err := s.repos.Runs.List(ctx, filter)
	if err != nil {
		return nil, translate(err)
	}
	return runs, nil
}

// UpdateRun обновляет статус pipeline run.
func (s *Local) UpdateRun(ctx context.Context, id uuid.UUID, update domain.PipelineRunUpdate) (*domain.PipelineRun, error) {
	if update.Status != nil && !update.Status.IsValid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidRequest, *update.Status)
	}

	run, err := s.repos.Runs.GetByID(ctx, id)
	if err != nil {
		return nil, translate(err)
	}
	run.Apply(update)
	run.UpdatedAt = s.now()

	if err := s.repos.Runs.Update(ctx, run); err != nil {
		return nil, translate(err)
	}
	return run, nil
}

// --- Step runs ---

// CreateRunStep регистрирует step run.
func (s *Local) CreateRunStep(ctx context.Context, step *domain.StepRun) (*domain.StepRun, error) {
	if step.Name == "" {
		return nil, fmt.Errorf("%w: step name is required", ErrInvalidRequest)
	}
	if step.PipelineRunID == uuid.Nil {
		return nil, fmt.Errorf("%w: pipeline run id is required", ErrInvalidRequest)
	}
	if !step.Status.IsValid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidRequest, step.Status)
	}
	if step.Status == domain.StatusCached && step.OriginalStepRunID == nil {
		return nil, fmt.Errorf("%w: cached step run requires original_step_run_id", ErrInvalidRequest)
	}

	req := *step
	if req.ID == uuid.Nil {
		req.ID = uuid.New()
	}
	if req.StartTime.IsZero() {
		req.StartTime = s.now()
	}
	if req.InputArtifacts == nil {
		req.InputArtifacts = map[string]uuid.UUID{}
	}
	if req.OutputArtifacts == nil {
		req.OutputArtifacts = map[string]uuid.UUID{}
	}
	if req.ParentStepIDs == nil {
		req.ParentStepIDs = []uuid.UUID{}
	}

	if err := s.repos.Steps.Create(ctx, &req); err != nil {
		return nil, translate(err)
	}
	return &req, nil
}

// GetRunStep возвращает step run по ID.
func (s *Local) GetRunStep(ctx context.Context, id uuid.UUID) (*domain.StepRun, error) {
	step, err := s.repos.Steps.GetByID(ctx, id)
	if err != nil {
		return nil, translate(err)
	}
	return step, nil
}

// ListRunSteps возвращает step runs, начиная с самых свежих.
func (s *Local) ListRunSteps(ctx context.Context, filter domain.StepRunFilter) ([]domain.StepRun, error) {
	steps, err := s.repos.Steps.List(ctx, filter)
	if err != nil {
		return nil, translate(err)
	}
	return steps, nil
}

// UpdateRunStep переводит step run в терминальный статус.
func (s *Local) UpdateRunStep(ctx context.Context, id uuid.UUID, update domain.StepRunUpdate) (*domain.StepRun, error) {
	if update.Status != nil && !update.Status.IsValid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidRequest, *update.Status)
	}

	step, err := s.repos.Steps.GetByID(ctx, id)
	if err != nil {
		return nil, translate(err)
	}
	if step.IsFinished() {
		return nil, fmt.Errorf("%w: step run %s is already %s", ErrInvalidState, id, step.Status)
	}

	step.Apply(update)
	if step.IsFinished() && step.EndTime == nil {
		now := s.now()
		step.EndTime = &now
	}

	if err := s.repos.Steps.Update(ctx, step); err != nil {
		return nil, translate(err)
	}
	return step, nil
}

// --- Artifacts ---

// CreateArtifact регистрирует артефакт.
func (s *Local) CreateArtifact(ctx context.Context, artifact *domain.Artifact) (*domain.Artifact, error) {
	if artifact.Name == "" || artifact.URI == "" {
		return nil, fmt.Errorf("%w: artifact name and uri are required", ErrInvalidRequest)
	}
	if artifact.ParentStepID == uuid.Nil {
		return nil, fmt.Errorf("%w: parent step id is required", ErrInvalidRequest)
	}

	req := *artifact
	if req.ID == uuid.Nil {
		req.ID = uuid.New()
	}
	if req.CreatedAt.IsZero() {
		req.CreatedAt = s.now()
	}

	if err := s.repos.Artifacts.Create(ctx, &req); err != nil {
		return nil, translate(err)
	}
	return &req, nil
}

// GetArtifact возвращает артефакт по ID.
func (s *Local) GetArtifact(ctx context.Context, id uuid.UUID) (*domain.Artifact, error) {
	artifact, err := s.repos.Artifacts.GetByID(ctx, id)
	if err != nil {
		return nil, translate(err)
	}
	return artifact, nil
}

// ListArtifacts возвращает артефакты.
func (s *Local) ListArtifacts(ctx context.Context, filter domain.ArtifactFilter) ([]domain.Artifact, error) {
	artifacts, err := s.repos.Artifacts.List(ctx, filter)
	if err != nil {
		return nil, translate(err)
	}
	return artifacts, nil
}

// translate переводит ошибки репозиториев в ошибки store, сохраняя детали.
func translate(err error) error {
	pairs := []struct{ from, to error }{
		{repo.ErrNotFound, ErrNotFound},
		{repo.ErrAlreadyExists, ErrAlreadyExists},
		{repo.ErrInvalidState, ErrInvalidState},
	}
	for _, p := range pairs {
		if !errors.Is(err, p.from) {
			continue
		}
		detail := strings.TrimPrefix(err.Error(), p.from.Error())
		detail = strings.TrimPrefix(detail, ": ")
		if detail == "" {
			return p.to
		}
		return fmt.Errorf("%w: %s", p.to, detail)
	}
	return err
}
