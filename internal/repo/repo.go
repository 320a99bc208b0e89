package repo

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shaiso/Conduit/internal/domain"
)

// PipelineRunRepository — хранилище pipeline runs.
type PipelineRunRepository interface {
	// GetOrCreate создаёт run или возвращает существующий с тем же ID.
	// created == true, если запись была создана этим вызовом.
	GetOrCreate(ctx context.Context, run *domain.PipelineRun) (*domain.PipelineRun, bool, error)
	GetByID(ctx context.Context, id uuid.UUID) (*domain.PipelineRun, error)
	List(ctx context.Context, filter domain.PipelineRunFilter) ([]domain.PipelineRun, error)
	Update(ctx context.Context, run *domain.PipelineRun) error
}

// StepRunRepository — хранилище step runs.
type StepRunRepository interface {
	// Create создаёт step run. ErrAlreadyExists, если в run уже есть шаг с таким именем.
	Create(ctx context.Context, step *domain.StepRun) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.StepRun, error)
	// List возвращает step runs, начиная с самых свежих.
	List(ctx context.Context, filter domain.StepRunFilter) ([]domain.StepRun, error)
	// Update сохраняет терминальный статус. ErrInvalidState, если step run уже завершён.
	Update(ctx context.Context, step *domain.StepRun) error
}

// ArtifactRepository — хранилище артефактов.
type ArtifactRepository interface {
	// Create регистрирует артефакт. ErrAlreadyExists, если URI уже занят.
	Create(ctx context.Context, artifact *domain.Artifact) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Artifact, error)
	List(ctx context.Context, filter domain.ArtifactFilter) ([]domain.Artifact, error)
}

// Set — набор репозиториев одного backend.
type Set struct {
	Runs      PipelineRunRepository
	Steps     StepRunRepository
	Artifacts ArtifactRepository
}

// NewPostgresSet создаёт репозитории поверх PostgreSQL.
func NewPostgresSet(pool *pgxpool.Pool) *Set {
	return &Set{
		Runs:      NewPipelineRunRepo(pool),
		Steps:     NewStepRunRepo(pool),
		Artifacts: NewArtifactRepo(pool),
	}
}
