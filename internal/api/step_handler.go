package api

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/shaiso/Conduit/internal/domain"
)

// CreateStepRun регистрирует step run.
// POST /api/v1/steps
//
// 409, если в pipeline run уже есть шаг с таким именем.
func (h *Handler) CreateStepRun(w http.ResponseWriter, r *http.Request) {
	var req CreateStepRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	step, err := h.store.CreateRunStep(r.Context(), req.ToDomain())
	if HandleStoreError(w, h.logger, err, "") {
		return
	}

	Created(w, step)
}

// ListStepRuns возвращает step runs, начиная с самых свежих.
// GET /api/v1/steps?run_id=...&name=...&cache_key=...&status=COMPLETED&status=CACHED
func (h *Handler) ListStepRuns(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := domain.StepRunFilter{
		Name:     q.Get("name"),
		CacheKey: q.Get("cache_key"),
	}

	var ok bool
	if filter.RunID, ok = parseOptionalUUID(w, q.Get("run_id"), "run_id"); !ok {
		return
	}
	for _, s := range q["status"] {
		status, valid := domain.ParseExecutionStatus(s)
		if !valid {
			BadRequest(w, "invalid status")
			return
		}
		filter.Statuses = append(filter.Statuses, status)
	}

	steps, err := h.store.ListRunSteps(r.Context(), filter)
	if HandleStoreError(w, h.logger, err, "") {
		return
	}
	if steps == nil {
		steps = []domain.StepRun{}
	}

	List(w, steps, len(steps))
}

// GetStepRun возвращает step run по ID.
// GET /api/v1/steps/{id}
func (h *Handler) GetStepRun(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid step run id")
		return
	}

	step, err := h.store.GetRunStep(r.Context(), id)
	if HandleStoreError(w, h.logger, err, "step run not found") {
		return
	}

	Success(w, step)
}

// UpdateStepRun переводит step run в терминальный статус.
// PUT /api/v1/steps/{id}
//
// 422, если step run уже завершён.
func (h *Handler) UpdateStepRun(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid step run id")
		return
	}

	var req domain.StepRunUpdate
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	step, err := h.store.UpdateRunStep(r.Context(), id, req)
	if HandleStoreError(w, h.logger, err, "step run not found") {
		return
	}

	Success(w, step)
}
