package repo

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Conduit/internal/domain"
)

// NewMemorySet создаёт репозитории в памяти процесса.
//
// Семантика совпадает с PostgreSQL backend: уникальность (run, name) для
// step runs и URI для артефактов, запрет изменения завершённых step runs.
// Используется в тестах и в conduit-server --memory.
func NewMemorySet() *Set {
	m := &memoryStore{
		runs:      make(map[uuid.UUID]domain.PipelineRun),
		steps:     make(map[uuid.UUID]domain.StepRun),
		artifacts: make(map[uuid.UUID]domain.Artifact),
	}
	return &Set{
		Runs:      &memoryRuns{m},
		Steps:     &memorySteps{m},
		Artifacts: &memoryArtifacts{m},
	}
}

// memoryStore — общее состояние под одним mutex.
type memoryStore struct {
	mu        sync.RWMutex
	runs      map[uuid.UUID]domain.PipelineRun
	steps     map[uuid.UUID]domain.StepRun
	artifacts map[uuid.UUID]domain.Artifact
}

// --- Pipeline runs ---

type memoryRuns struct{ m *memoryStore }

func (r *memoryRuns) GetOrCreate(_ context.Context, run *domain.PipelineRun) (*domain.PipelineRun, bool, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	if existing, ok := r.m.runs[run.ID]; ok {
		return &existing, false, nil
	}
	stored := *run
	if stored.UpdatedAt.IsZero() {
		stored.UpdatedAt = stored.CreatedAt
	}
	r.m.runs[run.ID] = stored
	return &stored, true, nil
}

func (r *memoryRuns) GetByID(_ context.Context, id uuid.UUID) (*domain.PipelineRun, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()

	run, ok := r.m.runs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &run, nil
}

func (r *memoryRuns) List(_ context.Context, filter domain.PipelineRunFilter) ([]domain.PipelineRun, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()

	var runs []domain.PipelineRun
	for _, run := range r.m.runs {
		if filter.ProjectID != uuid.Nil && run.ProjectID != filter.ProjectID {
			continue
		}
		if filter.PipelineID != uuid.Nil && run.PipelineID != filter.PipelineID {
			continue
		}
		if filter.Status != "" && run.Status != filter.Status {
			continue
		}
		runs = append(runs, run)
	}

	sort.Slice(runs, func(i, j int) bool {
		return runs[i].CreatedAt.After(runs[j].CreatedAt)
	})

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	if filter.Offset >= len(runs) {
		return nil, nil
	}
	runs = runs[filter.Offset:]
	if len(runs) > limit {
		runs = runs[:limit]
	}
	return runs, nil
}

func (r *memoryRuns) Update(_ context.Context, run *domain.PipelineRun) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	stored, ok := r.m.runs[run.ID]
	if !ok {
		return ErrNotFound
	}
	stored.Status = run.Status
	stored.UpdatedAt = run.UpdatedAt
	if stored.UpdatedAt.IsZero() {
		stored.UpdatedAt = time.Now()
	}
	r.m.runs[run.ID] = stored
	return nil
}

// --- Step runs ---

type memorySteps struct{ m *memoryStore }

func (r *memorySteps) Create(_ context.Context, step *domain.StepRun) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	if _, ok := r.m.runs[step.PipelineRunID]; !ok {
		return fmt.Errorf("%w: pipeline run %s", ErrNotFound, step.PipelineRunID)
	}
	if _, ok := r.m.steps[step.ID]; ok {
		return fmt.Errorf("%w: step run %s", ErrAlreadyExists, step.ID)
	}
	for _, existing := range r.m.steps {
		if existing.PipelineRunID == step.PipelineRunID && existing.Name == step.Name {
			return fmt.Errorf("%w: step %q in run %s", ErrAlreadyExists, step.Name, step.PipelineRunID)
		}
	}

	r.m.steps[step.ID] = cloneStepRun(*step)
	return nil
}

func (r *memorySteps) GetByID(_ context.Context, id uuid.UUID) (*domain.StepRun, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()

	step, ok := r.m.steps[id]
	if !ok {
		return nil, ErrNotFound
	}
	step = cloneStepRun(step)
	return &step, nil
}

func (r *memorySteps) List(_ context.Context, filter domain.StepRunFilter) ([]domain.StepRun, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()

	var steps []domain.StepRun
	for _, step := range r.m.steps {
		if filter.Matches(&step) {
			steps = append(steps, cloneStepRun(step))
		}
	}
	domain.SortNewestFirst(steps)
	return steps, nil
}

func (r *memorySteps) Update(_ context.Context, step *domain.StepRun) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	stored, ok := r.m.steps[step.ID]
	if !ok {
		return ErrNotFound
	}
	if stored.Status != domain.StatusRunning {
		return fmt.Errorf("%w: step run %s is already finished", ErrInvalidState, step.ID)
	}

	stored.Status = step.Status
	stored.EndTime = step.EndTime
	stored.OutputArtifacts = step.OutputArtifacts
	r.m.steps[step.ID] = cloneStepRun(stored)
	return nil
}

// --- Artifacts ---

type memoryArtifacts struct{ m *memoryStore }

func (r *memoryArtifacts) Create(_ context.Context, artifact *domain.Artifact) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	if _, ok := r.m.steps[artifact.ParentStepID]; !ok {
		return fmt.Errorf("%w: step run %s", ErrNotFound, artifact.ParentStepID)
	}
	for _, existing := range r.m.artifacts {
		if existing.ID == artifact.ID || existing.URI == artifact.URI {
			return fmt.Errorf("%w: artifact uri %s", ErrAlreadyExists, artifact.URI)
		}
	}
	r.m.artifacts[artifact.ID] = *artifact
	return nil
}

func (r *memoryArtifacts) GetByID(_ context.Context, id uuid.UUID) (*domain.Artifact, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()

	artifact, ok := r.m.artifacts[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &artifact, nil
}

func (r *memoryArtifacts) List(_ context.Context, filter domain.ArtifactFilter) ([]domain.Artifact, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()

	var artifacts []domain.Artifact
	for _, artifact := range r.m.artifacts {
		if filter.Matches(&artifact) {
			artifacts = append(artifacts, artifact)
		}
	}
	sort.Slice(artifacts, func(i, j int) bool {
		return artifacts[i].CreatedAt.Before(artifacts[j].CreatedAt)
	})
	return artifacts, nil
}

// cloneStepRun копирует step run вместе с map и slice полями.
func cloneStepRun(s domain.StepRun) domain.StepRun {
	out := s
	if s.InputArtifacts != nil {
		out.InputArtifacts = make(map[string]uuid.UUID, len(s.InputArtifacts))
		for k, v := range s.InputArtifacts {
			out.InputArtifacts[k] = v
		}
	}
	if s.OutputArtifacts != nil {
		out.OutputArtifacts = make(map[string]uuid.UUID, len(s.OutputArtifacts))
		for k, v := range s.OutputArtifacts {
			out.OutputArtifacts[k] = v
		}
	}
	if s.ParentStepIDs != nil {
		out.ParentStepIDs = append([]uuid.UUID(nil), s.ParentStepIDs...)
	}
	if s.EndTime != nil {
		end := *s.EndTime
		out.EndTime = &end
	}
	return out
}
