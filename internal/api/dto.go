package api

import (
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Conduit/internal/domain"
)

// Ответы API — это domain типы (PipelineRun, StepRun, Artifact) как есть:
// у них уже есть json теги, и store.Client декодирует их без копий.

// Pipeline run DTOs

// CreateRunRequest — запрос на создание (или получение) pipeline run.
// ProjectID берётся из пути.
type CreateRunRequest struct {
	ID                    uuid.UUID              `json:"id"`
	Name                  string                 `json:"name"`
	OrchestratorRunID     string                 `json:"orchestrator_run_id"`
	UserID                uuid.UUID              `json:"user_id"`
	StackID               uuid.UUID              `json:"stack_id"`
	PipelineID            uuid.UUID              `json:"pipeline_id"`
	EnableCache           bool                   `json:"enable_cache"`
	NumSteps              int                    `json:"num_steps"`
	Status                domain.ExecutionStatus `json:"status"`
	PipelineConfiguration map[string]any         `json:"pipeline_configuration,omitempty"`
}

// ToDomain конвертирует запрос в domain.PipelineRun.
func (r CreateRunRequest) ToDomain(projectID uuid.UUID) *domain.PipelineRun {
	return &domain.PipelineRun{
		ID:                    r.ID,
		Name:                  r.Name,
		OrchestratorRunID:     r.OrchestratorRunID,
		UserID:                r.UserID,
		ProjectID:             projectID,
		StackID:               r.StackID,
		PipelineID:            r.PipelineID,
		EnableCache:           r.EnableCache,
		NumSteps:              r.NumSteps,
		Status:                r.Status,
		PipelineConfiguration: r.PipelineConfiguration,
	}
}

// Step run DTOs

// CreateStepRunRequest — запрос на регистрацию step run. ID назначает сервер.
type CreateStepRunRequest struct {
	Name              string                 `json:"name"`
	PipelineRunID     uuid.UUID              `json:"pipeline_run_id"`
	Step              domain.Step            `json:"step"`
	Status            domain.ExecutionStatus `json:"status"`
	StartTime         time.Time              `json:"start_time"`
	EndTime           *time.Time             `json:"end_time,omitempty"`
	CacheKey          string                 `json:"cache_key,omitempty"`
	InputArtifacts    map[string]uuid.UUID   `json:"input_artifacts"`
	ParentStepIDs     []uuid.UUID            `json:"parent_step_ids"`
	OriginalStepRunID *uuid.UUID             `json:"original_step_run_id,omitempty"`
	OutputArtifacts   map[string]uuid.UUID   `json:"output_artifacts"`
}

// ToDomain конвертирует запрос в domain.StepRun.
func (r CreateStepRunRequest) ToDomain() *domain.StepRun {
	return &domain.StepRun{
		Name:              r.Name,
		PipelineRunID:     r.PipelineRunID,
		Step:              r.Step,
		Status:            r.Status,
		StartTime:         r.StartTime,
		EndTime:           r.EndTime,
		CacheKey:          r.CacheKey,
		InputArtifacts:    r.InputArtifacts,
		ParentStepIDs:     r.ParentStepIDs,
		OriginalStepRunID: r.OriginalStepRunID,
		OutputArtifacts:   r.OutputArtifacts,
	}
}

// Artifact DTOs

// CreateArtifactRequest — запрос на регистрацию артефакта. ID назначает сервер.
type CreateArtifactRequest struct {
	Name         string    `json:"name"`
	URI          string    `json:"uri"`
	Materializer string    `json:"materializer,omitempty"`
	DataType     string    `json:"data_type,omitempty"`
	ParentStepID uuid.UUID `json:"parent_step_id"`
}

// ToDomain конвертирует запрос в domain.Artifact.
func (r CreateArtifactRequest) ToDomain() *domain.Artifact {
	return &domain.Artifact{
		Name:         r.Name,
		URI:          r.URI,
		Materializer: r.Materializer,
		DataType:     r.DataType,
		ParentStepID: r.ParentStepID,
	}
}
