package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shaiso/Conduit/internal/domain"
)

// ArtifactRepo — репозиторий для работы с артефактами.
type ArtifactRepo struct {
	pool *pgxpool.Pool
}

// NewArtifactRepo создаёт новый ArtifactRepo.
func NewArtifactRepo(pool *pgxpool.Pool) *ArtifactRepo {
	return &ArtifactRepo{pool: pool}
}

// Create регистрирует артефакт.
func (r *ArtifactRepo) Create(ctx context.Context, artifact *domain.Artifact) error {
	query := `
		INSERT INTO artifacts (id, name, uri, materializer, data_type, parent_step_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.pool.Exec(ctx, query,
		artifact.ID,
		artifact.Name,
		artifact.URI,
		nullString(artifact.Materializer),
		nullString(artifact.DataType),
		artifact.ParentStepID,
		artifact.CreatedAt,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: artifact uri %s", ErrAlreadyExists, artifact.URI)
	}
	if err != nil {
		return fmt.Errorf("insert artifact: %w", err)
	}
	return nil
}

// GetByID возвращает артефакт по ID.
func (r *ArtifactRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Artifact, error) {
	query := `
		SELECT id, name, uri, materializer, data_type, parent_step_id, created_at
		FROM artifacts
		WHERE id = $1
	`
	return scanArtifact(r.pool.QueryRow(ctx, query, id))
}

// List возвращает артефакты с фильтрацией.
func (r *ArtifactRepo) List(ctx context.Context, filter domain.ArtifactFilter) ([]domain.Artifact, error) {
	query := `
		SELECT id, name, uri, materializer, data_type, parent_step_id, created_at
		FROM artifacts
		WHERE ($1::uuid IS NULL OR parent_step_id = $1)
		  AND ($2::text IS NULL OR uri = $2)
		ORDER BY created_at ASC
	`
	rows, err := r.pool.Query(ctx, query, nullUUID(filter.ParentStepID), nullString(filter.URI))
	if err != nil {
		return nil, fmt.Errorf("list artifacts: %w", err)
	}
	defer rows.Close()

	var artifacts []domain.Artifact
	for rows.Next() {
		artifact, err := scanArtifact(rows)
		if err != nil {
			return nil, err
		}
		artifacts = append(artifacts, *artifact)
	}
	return artifacts, rows.Err()
}

func scanArtifact(row pgx.Row) (*domain.Artifact, error) {
	var a domain.Artifact
	var materializer, dataType *string

	err := row.Scan(&a.ID, &a.Name, &a.URI, &materializer, &dataType, &a.ParentStepID, &a.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan artifact: %w", err)
	}

	if materializer != nil {
		a.Materializer = *materializer
	}
	if dataType != nil {
		a.DataType = *dataType
	}
	return &a, nil
}
