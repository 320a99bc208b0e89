package api

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/shaiso/Conduit/internal/domain"
)

// CreateArtifact регистрирует артефакт.
// POST /api/v1/artifacts
func (h *Handler) CreateArtifact(w http.ResponseWriter, r *http.Request) {
	var req CreateArtifactRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	artifact, err := h.store.CreateArtifact(r.Context(), req.ToDomain())
	if HandleStoreError(w, h.logger, err, "") {
		return
	}

	Created(w, artifact)
}

// ListArtifacts возвращает артефакты.
// GET /api/v1/artifacts?parent_step_id=...&uri=...
func (h *Handler) ListArtifacts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := domain.ArtifactFilter{URI: q.Get("uri")}

	var ok bool
	if filter.ParentStepID, ok = parseOptionalUUID(w, q.Get("parent_step_id"), "parent_step_id"); !ok {
		return
	}

	artifacts, err := h.store.ListArtifacts(r.Context(), filter)
	if HandleStoreError(w, h.logger, err, "") {
		return
	}
	if artifacts == nil {
		artifacts = []domain.Artifact{}
	}

	List(w, artifacts, len(artifacts))
}

// GetArtifact возвращает артефакт по ID.
// GET /api/v1/artifacts/{id}
func (h *Handler) GetArtifact(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid artifact id")
		return
	}

	artifact, err := h.store.GetArtifact(r.Context(), id)
	if HandleStoreError(w, h.logger, err, "artifact not found") {
		return
	}

	Success(w, artifact)
}
