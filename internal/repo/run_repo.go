package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shaiso/Conduit/internal/domain"
)

// PipelineRunRepo — репозиторий для работы с pipeline runs.
type PipelineRunRepo struct {
	pool *pgxpool.Pool
}

// NewPipelineRunRepo создаёт новый PipelineRunRepo.
func NewPipelineRunRepo(pool *pgxpool.Pool) *PipelineRunRepo {
	return &PipelineRunRepo{pool: pool}
}

const pipelineRunColumns = `id, name, orchestrator_run_id, user_id, project_id, stack_id, pipeline_id,
		       enable_cache, num_steps, status, pipeline_configuration, created_at, updated_at`

// GetOrCreate создаёт run или возвращает уже существующий.
//
// Конкурентные вызовы с одним ID безопасны: INSERT ... ON CONFLICT DO NOTHING
// гарантирует ровно одну вставку, остальные читают победившую запись.
func (r *PipelineRunRepo) GetOrCreate(ctx context.Context, run *domain.PipelineRun) (*domain.PipelineRun, bool, error) {
	configJSON, err := json.Marshal(run.PipelineConfiguration)
	if err != nil {
		return nil, false, fmt.Errorf("marshal pipeline configuration: %w", err)
	}

	query := `
		INSERT INTO pipeline_runs (id, name, orchestrator_run_id, user_id, project_id, stack_id, pipeline_id,
		                           enable_cache, num_steps, status, pipeline_configuration, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $12)
		ON CONFLICT (id) DO NOTHING
	`
	result, err := r.pool.Exec(ctx, query,
		run.ID,
		run.Name,
		run.OrchestratorRunID,
		nullUUID(run.UserID),
		run.ProjectID,
		nullUUID(run.StackID),
		nullUUID(run.PipelineID),
		run.EnableCache,
		run.NumSteps,
		run.Status,
		configJSON,
		run.CreatedAt,
	)
	if err != nil {
		return nil, false, fmt.Errorf("insert pipeline run: %w", err)
	}
	created := result.RowsAffected() == 1

	stored, err := r.GetByID(ctx, run.ID)
	if err != nil {
		return nil, false, err
	}
	return stored, created, nil
}

// GetByID возвращает pipeline run по ID.
func (r *PipelineRunRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.PipelineRun, error) {
	query := `SELECT ` + pipelineRunColumns + ` FROM pipeline_runs WHERE id = $1`
	return scanPipelineRun(r.pool.QueryRow(ctx, query, id))
}

// List возвращает список pipeline runs с фильтрацией.
func (r *PipelineRunRepo) List(ctx context.Context, filter domain.PipelineRunFilter) ([]domain.PipelineRun, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT ` + pipelineRunColumns + `
		FROM pipeline_runs
		WHERE ($1::uuid IS NULL OR project_id = $1)
		  AND ($2::uuid IS NULL OR pipeline_id = $2)
		  AND ($3::text IS NULL OR status = $3)
		ORDER BY created_at DESC
		LIMIT $4 OFFSET $5
	`
	rows, err := r.pool.Query(ctx, query,
		nullUUID(filter.ProjectID),
		nullUUID(filter.PipelineID),
		nullString(string(filter.Status)),
		limit,
		filter.Offset,
	)
	if err != nil {
		return nil, fmt.Errorf("list pipeline runs: %w", err)
	}
	defer rows.Close()

	var runs []domain.PipelineRun
	for rows.Next() {
		run, err := scanPipelineRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

// Update обновляет статус pipeline run.
func (r *PipelineRunRepo) Update(ctx context.Context, run *domain.PipelineRun) error {
	query := `
		UPDATE pipeline_runs
		SET status = $2, updated_at = $3
		WHERE id = $1
	`
	result, err := r.pool.Exec(ctx, query, run.ID, run.Status, run.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update pipeline run: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// --- Helpers ---

// scanPipelineRun сканирует одну строку в PipelineRun.
// pgx.Rows тоже реализует pgx.Row, поэтому хелпер общий для QueryRow и Query.
func scanPipelineRun(row pgx.Row) (*domain.PipelineRun, error) {
	var run domain.PipelineRun
	var userID, stackID, pipelineID *uuid.UUID
	var configJSON []byte

	err := row.Scan(
		&run.ID,
		&run.Name,
		&run.OrchestratorRunID,
		&userID,
		&run.ProjectID,
		&stackID,
		&pipelineID,
		&run.EnableCache,
		&run.NumSteps,
		&run.Status,
		&configJSON,
		&run.CreatedAt,
		&run.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan pipeline run: %w", err)
	}

	run.UserID = derefUUID(userID)
	run.StackID = derefUUID(stackID)
	run.PipelineID = derefUUID(pipelineID)

	if configJSON != nil {
		if err := json.Unmarshal(configJSON, &run.PipelineConfiguration); err != nil {
			return nil, fmt.Errorf("unmarshal pipeline configuration: %w", err)
		}
	}

	return &run, nil
}

// nullString возвращает nil для пустой строки (для NULL в БД).
func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// nullUUID возвращает nil для пустого UUID.
func nullUUID(id uuid.UUID) *uuid.UUID {
	if id == uuid.Nil {
		return nil
	}
	return &id
}

func derefUUID(id *uuid.UUID) uuid.UUID {
	if id == nil {
		return uuid.Nil
	}
	return *id
}
