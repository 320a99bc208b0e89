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

// StepRunRepo — репозиторий для работы со step runs.
type StepRunRepo struct {
	pool *pgxpool.Pool
}

// NewStepRunRepo создаёт новый StepRunRepo.
func NewStepRunRepo(pool *pgxpool.Pool) *StepRunRepo {
	return &StepRunRepo{pool: pool}
}

const stepRunColumns = `id, name, pipeline_run_id, step, status, start_time, end_time, cache_key,
		       input_artifacts, parent_step_ids, original_step_run_id, output_artifacts`

// Create создаёт новый step run.
func (r *StepRunRepo) Create(ctx context.Context, step *domain.StepRun) error {
	stepJSON, err := json.Marshal(step.Step)
	if err != nil {
		return fmt.Errorf("marshal step: %w", err)
	}
	inputsJSON, err := marshalArtifactIDs(step.InputArtifacts)
	if err != nil {
		return fmt.Errorf("marshal input artifacts: %w", err)
	}
	outputsJSON, err := marshalArtifactIDs(step.OutputArtifacts)
	if err != nil {
		return fmt.Errorf("marshal output artifacts: %w", err)
	}
	parents := step.ParentStepIDs
	if parents == nil {
		parents = []uuid.UUID{}
	}
	parentsJSON, err := json.Marshal(parents)
	if err != nil {
		return fmt.Errorf("marshal parent step ids: %w", err)
	}

	query := `
		INSERT INTO step_runs (id, name, pipeline_run_id, step, status, start_time, end_time, cache_key,
		                       input_artifacts, parent_step_ids, original_step_run_id, output_artifacts)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err = r.pool.Exec(ctx, query,
		step.ID,
		step.Name,
		step.PipelineRunID,
		stepJSON,
		step.Status,
		step.StartTime,
		step.EndTime,
		nullString(step.CacheKey),
		inputsJSON,
		parentsJSON,
		step.OriginalStepRunID,
		outputsJSON,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: step %q in run %s", ErrAlreadyExists, step.Name, step.PipelineRunID)
	}
	if err != nil {
		return fmt.Errorf("insert step run: %w", err)
	}
	return nil
}

// GetByID возвращает step run по ID.
func (r *StepRunRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.StepRun, error) {
	query := `SELECT ` + stepRunColumns + ` FROM step_runs WHERE id = $1`
	return scanStepRun(r.pool.QueryRow(ctx, query, id))
}

// List возвращает step runs, начиная с самых свежих.
func (r *StepRunRepo) List(ctx context.Context, filter domain.StepRunFilter) ([]domain.StepRun, error) {
	var statuses []string
	for _, s := range filter.Statuses {
		statuses = append(statuses, string(s))
	}

	query := `
		SELECT ` + stepRunColumns + `
		FROM step_runs
		WHERE ($1::uuid IS NULL OR pipeline_run_id = $1)
		  AND ($2::text IS NULL OR name = $2)
		  AND ($3::text IS NULL OR cache_key = $3)
		  AND ($4::text[] IS NULL OR status = ANY($4))
		ORDER BY end_time DESC NULLS LAST, start_time DESC, id DESC
	`
	rows, err := r.pool.Query(ctx, query,
		nullUUID(filter.RunID),
		nullString(filter.Name),
		nullString(filter.CacheKey),
		statuses,
	)
	if err != nil {
		return nil, fmt.Errorf("list step runs: %w", err)
	}
	defer rows.Close()

	var steps []domain.StepRun
	for rows.Next() {
		step, err := scanStepRun(rows)
		if err != nil {
			return nil, err
		}
		steps = append(steps, *step)
	}
	return steps, rows.Err()
}

// Update сохраняет терминальный статус step run.
//
// Обновление возможно только из RUNNING: завершённый step run больше не меняется.
func (r *StepRunRepo) Update(ctx context.Context, step *domain.StepRun) error {
	outputsJSON, err := marshalArtifactIDs(step.OutputArtifacts)
	if err != nil {
		return fmt.Errorf("marshal output artifacts: %w", err)
	}

	query := `
		UPDATE step_runs
		SET status = $2, end_time = $3, output_artifacts = $4
		WHERE id = $1 AND status = 'RUNNING'
	`
	result, err := r.pool.Exec(ctx, query, step.ID, step.Status, step.EndTime, outputsJSON)
	if err != nil {
		return fmt.Errorf("update step run: %w", err)
	}
	if result.RowsAffected() == 0 {
		if _, err := r.GetByID(ctx, step.ID); err != nil {
			return err
		}
		return fmt.Errorf("%w: step run %s is already finished", ErrInvalidState, step.ID)
	}
	return nil
}

// --- Helpers ---

// scanStepRun сканирует одну строку в StepRun.
func scanStepRun(row pgx.Row) (*domain.StepRun, error) {
	var step domain.StepRun
	var stepJSON, inputsJSON, parentsJSON, outputsJSON []byte
	var cacheKey *string

	err := row.Scan(
		&step.ID,
		&step.Name,
		&step.PipelineRunID,
		&stepJSON,
		&step.Status,
		&step.StartTime,
		&step.EndTime,
		&cacheKey,
		&inputsJSON,
		&parentsJSON,
		&step.OriginalStepRunID,
		&outputsJSON,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan step run: %w", err)
	}

	if err := json.Unmarshal(stepJSON, &step.Step); err != nil {
		return nil, fmt.Errorf("unmarshal step: %w", err)
	}
	if err := json.Unmarshal(inputsJSON, &step.InputArtifacts); err != nil {
		return nil, fmt.Errorf("unmarshal input artifacts: %w", err)
	}
	if err := json.Unmarshal(parentsJSON, &step.ParentStepIDs); err != nil {
		return nil, fmt.Errorf("unmarshal parent step ids: %w", err)
	}
	if err := json.Unmarshal(outputsJSON, &step.OutputArtifacts); err != nil {
		return nil, fmt.Errorf("unmarshal output artifacts: %w", err)
	}
	if cacheKey != nil {
		step.CacheKey = *cacheKey
	}

	return &step, nil
}

func marshalArtifactIDs(ids map[string]uuid.UUID) ([]byte, error) {
	if ids == nil {
		ids = map[string]uuid.UUID{}
	}
	return json.Marshal(ids)
}
