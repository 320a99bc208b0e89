package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/shaiso/Conduit/internal/domain"
)

// CreateRun создаёт pipeline run.
// POST /api/v1/projects/{project}/runs?get_if_exists=true
//
// С get_if_exists=true существующий run с тем же ID возвращается с 200.
// Без него повторное создание — 409.
func (h *Handler) CreateRun(w http.ResponseWriter, r *http.Request) {
	projectID, err := uuid.Parse(r.PathValue("project"))
	if err != nil {
		BadRequest(w, "invalid project id")
		return
	}

	var req CreateRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	getIfExists, _ := strconv.ParseBool(r.URL.Query().Get("get_if_exists"))

	run, created, err := h.store.GetOrCreateRun(r.Context(), req.ToDomain(projectID))
	if HandleStoreError(w, h.logger, err, "") {
		return
	}

	if created {
		h.logger.Info("pipeline run created", "run_id", run.ID, "name", run.Name)
		Created(w, run)
		return
	}
	if !getIfExists {
		Conflict(w, "pipeline run "+run.ID.String()+" already exists")
		return
	}
	Success(w, run)
}

// ListRuns возвращает список pipeline runs с фильтрацией.
// GET /api/v1/runs?project_id=...&pipeline_id=...&status=...&limit=...&offset=...
func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := domain.PipelineRunFilter{
		Limit:  parseIntDefault(q.Get("limit"), 50),
		Offset: parseIntDefault(q.Get("offset"), 0),
	}

	var ok bool
	if filter.ProjectID, ok = parseOptionalUUID(w, q.Get("project_id"), "project_id"); !ok {
		return
	}
	if filter.PipelineID, ok = parseOptionalUUID(w, q.Get("pipeline_id"), "pipeline_id"); !ok {
		return
	}
	if s := q.Get("status"); s != "" {
		status, valid := domain.ParseExecutionStatus(s)
		if !valid {
			BadRequest(w, "invalid status")
			return
		}
		filter.Status = status
	}

	runs, err := h.store.ListRuns(r.Context(), filter)
	if HandleStoreError(w, h.logger, err, "") {
		return
	}
	if runs == nil {
		runs = []domain.PipelineRun{}
	}

	List(w, runs, len(runs))
}

// GetRun возвращает pipeline run по ID.
// GET /api/v1/runs/{id}
func (h *Handler) GetRun(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid run id")
		return
	}

	run, err := h.store.GetRun(r.Context(), id)
	if HandleStoreError(w, h.logger, err, "run not found") {
		return
	}

	Success(w, run)
}

// UpdateRun обновляет статус pipeline run.
// PUT /api/v1/runs/{id}
func (h *Handler) UpdateRun(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid run id")
		return
	}

	var req domain.PipelineRunUpdate
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	run, err := h.store.UpdateRun(r.Context(), id, req)
	if HandleStoreError(w, h.logger, err, "run not found") {
		return
	}

	Success(w, run)
}

// --- Helpers ---

// parseIntDefault парсит число из query, при ошибке возвращает defaultVal.
func parseIntDefault(s string, defaultVal int) int {
	if s == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return defaultVal
	}
	return n
}

// parseOptionalUUID парсит необязательный UUID из query.
// При ошибке пишет 400 и возвращает false.
func parseOptionalUUID(w http.ResponseWriter, s, name string) (uuid.UUID, bool) {
	if s == "" {
		return uuid.Nil, true
	}
	id, err := uuid.Parse(s)
	if err != nil {
		BadRequest(w, "invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}
