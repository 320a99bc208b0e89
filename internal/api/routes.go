package api

import (
	"net/http"
)

// RegisterRoutes регистрирует все маршруты API.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	// Middleware chain
	chain := Chain(
		Recovery(h.logger),
		Metrics(),
		Logging(h.logger),
		Auth(h.token),
	)

	// Pipeline runs
	mux.Handle("POST /api/v1/projects/{project}/runs", chain(http.HandlerFunc(h.CreateRun)))
	mux.Handle("GET /api/v1/runs", chain(http.HandlerFunc(h.ListRuns)))
	mux.Handle("GET /api/v1/runs/{id}", chain(http.HandlerFunc(h.GetRun)))
	mux.Handle("PUT /api/v1/runs/{id}", chain(http.HandlerFunc(h.UpdateRun)))

	// Step runs
	mux.Handle("POST /api/v1/steps", chain(http.HandlerFunc(h.CreateStepRun)))
	mux.Handle("GET /api/v1/steps", chain(http.HandlerFunc(h.ListStepRuns)))
	mux.Handle("GET /api/v1/steps/{id}", chain(http.HandlerFunc(h.GetStepRun)))
	mux.Handle("PUT /api/v1/steps/{id}", chain(http.HandlerFunc(h.UpdateStepRun)))

	// Artifacts
	mux.Handle("POST /api/v1/artifacts", chain(http.HandlerFunc(h.CreateArtifact)))
	mux.Handle("GET /api/v1/artifacts", chain(http.HandlerFunc(h.ListArtifacts)))
	mux.Handle("GET /api/v1/artifacts/{id}", chain(http.HandlerFunc(h.GetArtifact)))
}
