package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shaiso/Conduit/internal/domain"
)

// Ошибки metadata store.
var (
	// ErrNotFound — запись не найдена.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists — запись уже существует (шаг с таким именем в run, занятый URI).
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidState — операция невозможна в текущем состоянии
	// (например, изменение завершённого step run).
	ErrInvalidState = errors.New("invalid state")

	// ErrInvalidRequest — запрос не прошёл валидацию.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrUnauthorized — store отклонил токен.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden — операция запрещена для текущего пользователя.
	ErrForbidden = errors.New("forbidden")
)

// APIError — ошибка HTTP API без отдельного sentinel.
type APIError struct {
	Status  int
	Code    string
	Message string
}

// Error реализует интерфейс error.
func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("API error: HTTP %d", e.Status)
	}
	return fmt.Sprintf("API error: HTTP %d %s: %s", e.Status, e.Code, e.Message)
}

// Store — metadata store, через который координатор регистрирует
// pipeline runs, step runs и артефакты.
//
// Реализации:
//   - Client — HTTP+JSON клиент Conduit API
//   - Local  — прямой доступ к репозиториям (in-process)
type Store interface {
	// GetOrCreateRun создаёт pipeline run или возвращает существующий с тем же ID.
	// created == true, если run был создан этим вызовом.
	GetOrCreateRun(ctx context.Context, run *domain.PipelineRun) (*domain.PipelineRun, bool, error)
	GetRun(ctx context.Context, id uuid.UUID) (*domain.PipelineRun, error)
	ListRuns(ctx context.Context, filter domain.PipelineRunFilter) ([]domain.PipelineRun, error)
	UpdateRun(ctx context.Context, id uuid.UUID, update domain.PipelineRunUpdate) (*domain.PipelineRun, error)

	// CreateRunStep регистрирует step run. ID назначает store.
	CreateRunStep(ctx context.Context, step *domain.StepRun) (*domain.StepRun, error)
	GetRunStep(ctx context.Context, id uuid.UUID) (*domain.StepRun, error)
	ListRunSteps(ctx context.Context, filter domain.StepRunFilter) ([]domain.StepRun, error)
	UpdateRunStep(ctx context.Context, id uuid.UUID, update domain.StepRunUpdate) (*domain.StepRun, error)

	// CreateArtifact регистрирует артефакт. ID назначает store.
	CreateArtifact(ctx context.Context, artifact *domain.Artifact) (*domain.Artifact, error)
	GetArtifact(ctx context.Context, id uuid.UUID) (*domain.Artifact, error)
	ListArtifacts(ctx context.Context, filter domain.ArtifactFilter) ([]domain.Artifact, error)
}

var (
	_ Store = (*Client)(nil)
	_ Store = (*Local)(nil)
)
