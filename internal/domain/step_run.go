package domain

import (
	"sort"
	"time"

	"github.com/google/uuid"
)

// StepRun — запись о выполнении одного шага внутри pipeline run.
//
// StepRun создаётся координатором в статусе RUNNING (или сразу CACHED
// при попадании в кэш) и ровно один раз переходит в терминальный статус.
type StepRun struct {
	// ID — идентификатор step run (назначается при создании).
	ID uuid.UUID `json:"id"`

	// Name — логическое имя шага, уникальное внутри pipeline run.
	Name string `json:"name"`

	// PipelineRunID — ссылка на родительский pipeline run.
	PipelineRunID uuid.UUID `json:"pipeline_run_id"`

	// Step — полная спецификация шага (конфигурация + inputs/outputs).
	Step Step `json:"step"`

	// Status — текущий статус.
	Status ExecutionStatus `json:"status"`

	// StartTime — время начала.
	StartTime time.Time `json:"start_time"`

	// EndTime — время завершения. Nil, пока шаг выполняется.
	EndTime *time.Time `json:"end_time,omitempty"`

	// CacheKey — отпечаток конфигурации и входов шага.
	CacheKey string `json:"cache_key,omitempty"`

	// InputArtifacts — имя входа → ID артефакта.
	InputArtifacts map[string]uuid.UUID `json:"input_artifacts"`

	// ParentStepIDs — step runs, от которых зависит шаг (в том же run).
	ParentStepIDs []uuid.UUID `json:"parent_step_ids"`

	// OriginalStepRunID — step run, чьи outputs переиспользованы (только для CACHED).
	OriginalStepRunID *uuid.UUID `json:"original_step_run_id,omitempty"`

	// OutputArtifacts — имя выхода → ID артефакта.
	OutputArtifacts map[string]uuid.UUID `json:"output_artifacts"`
}

// Duration возвращает продолжительность выполнения.
// Для CACHED всегда 0 (end_time == start_time).
func (s *StepRun) Duration() time.Duration {
	if s.EndTime == nil {
		return 0
	}
	return s.EndTime.Sub(s.StartTime)
}

// IsFinished возвращает true, если step run в терминальном статусе.
func (s *StepRun) IsFinished() bool {
	return s.Status.IsTerminal()
}

// MarkCached переводит step run в CACHED по найденному в кэше step run.
// Outputs копируются как есть, end_time совпадает со start_time.
// Если original сам был взят из кэша, ссылка ведёт на исходное выполнение.
func (s *StepRun) MarkCached(original *StepRun) {
	id := original.ID
	if original.OriginalStepRunID != nil {
		id = *original.OriginalStepRunID
	}
	end := s.StartTime
	s.OriginalStepRunID = &id
	s.OutputArtifacts = copyArtifactIDs(original.OutputArtifacts)
	s.Status = StatusCached
	s.EndTime = &end
}

// MarkFailed переводит step run в FAILED.
func (s *StepRun) MarkFailed(now time.Time) {
	s.Status = StatusFailed
	s.EndTime = &now
}

// MarkCompleted переводит step run в COMPLETED с outputs.
func (s *StepRun) MarkCompleted(now time.Time, outputs map[string]uuid.UUID) {
	s.Status = StatusCompleted
	s.EndTime = &now
	s.OutputArtifacts = copyArtifactIDs(outputs)
}

// Apply применяет update к step run.
func (s *StepRun) Apply(update StepRunUpdate) {
	if update.Status != nil {
		s.Status = *update.Status
	}
	if update.EndTime != nil {
		end := *update.EndTime
		s.EndTime = &end
	}
	if update.OutputArtifacts != nil {
		s.OutputArtifacts = copyArtifactIDs(update.OutputArtifacts)
	}
}

// StepRunUpdate — частичное обновление step run.
type StepRunUpdate struct {
	Status          *ExecutionStatus     `json:"status,omitempty"`
	EndTime         *time.Time           `json:"end_time,omitempty"`
	OutputArtifacts map[string]uuid.UUID `json:"output_artifacts,omitempty"`
}

// StepRunFilter — параметры фильтрации step runs.
type StepRunFilter struct {
	RunID    uuid.UUID
	Name     string
	CacheKey string
	Statuses []ExecutionStatus
}

// Matches проверяет, подходит ли step run под фильтр.
func (f StepRunFilter) Matches(s *StepRun) bool {
	if f.RunID != uuid.Nil && s.PipelineRunID != f.RunID {
		return false
	}
	if f.Name != "" && s.Name != f.Name {
		return false
	}
	if f.CacheKey != "" && s.CacheKey != f.CacheKey {
		return false
	}
	if len(f.Statuses) > 0 {
		for _, status := range f.Statuses {
			if s.Status == status {
				return true
			}
		}
		return false
	}
	return true
}

func copyArtifactIDs(src map[string]uuid.UUID) map[string]uuid.UUID {
	dst := make(map[string]uuid.UUID, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

// SortNewestFirst упорядочивает step runs: сначала с самым поздним end_time,
// затем по start_time и ID. Step runs без end_time идут в конце.
func SortNewestFirst(runs []StepRun) {
	sort.SliceStable(runs, func(i, j int) bool {
		a, b := runs[i], runs[j]
		switch {
		case a.EndTime != nil && b.EndTime == nil:
			return true
		case a.EndTime == nil && b.EndTime != nil:
			return false
		case a.EndTime != nil && !a.EndTime.Equal(*b.EndTime):
			return a.EndTime.After(*b.EndTime)
		}
		if !a.StartTime.Equal(b.StartTime) {
			return a.StartTime.After(b.StartTime)
		}
		return a.ID.String() > b.ID.String()
	})
}
