// Package api exposes the engine over HTTP: schedule CRUD, run-now,
// execution history, live progress, and the health snapshot. Handlers
// are plain net/http with JSON bodies; routing uses method-qualified
// patterns on http.ServeMux.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/xraph/chrono"
	"github.com/xraph/chrono/engine"
)

// API wires the HTTP handlers for the chrono engine.
type API struct {
	eng    *engine.Engine
	logger *slog.Logger
}

// New creates an API from a chrono Engine.
func New(eng *engine.Engine) *API {
	return &API{eng: eng, logger: eng.Scheduler().Logger()}
}

// Handler returns the fully assembled http.Handler with all routes.
func (a *API) Handler() http.Handler {
	mux := http.NewServeMux()
	a.RegisterRoutes(mux)
	return mux
}

// RegisterRoutes registers all chrono API routes on the given mux.
func (a *API) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /v1/schedules", a.createSchedule)
	mux.HandleFunc("GET /v1/schedules", a.listSchedules)
	mux.HandleFunc("GET /v1/schedules/{scheduleId}", a.getSchedule)
	mux.HandleFunc("PATCH /v1/schedules/{scheduleId}", a.updateSchedule)
	mux.HandleFunc("DELETE /v1/schedules/{scheduleId}", a.deleteSchedule)
	mux.HandleFunc("POST /v1/schedules/{scheduleId}/run", a.runSchedule)
	mux.HandleFunc("GET /v1/schedules/{scheduleId}/executions", a.listExecutions)
	mux.HandleFunc("GET /v1/executions/{executionId}", a.getExecution)
	mux.HandleFunc("GET /v1/operations/{operationId}", a.getProgress)
	mux.HandleFunc("GET /v1/health", a.health)
}

// errorResponse is the JSON error envelope.
type errorResponse struct {
	Error string `json:"error"`
}

// writeJSON serializes v with the given status code.
func (a *API) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		a.logger.Warn("failed to encode response", slog.String("error", err.Error()))
	}
}

// writeError maps sentinel errors to HTTP status codes.
func (a *API) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, chrono.ErrScheduleNotFound),
		errors.Is(err, chrono.ErrExecutionNotFound),
		errors.Is(err, chrono.ErrOperationNotFound):
		status = http.StatusNotFound
	case errors.Is(err, chrono.ErrInvalidExpression),
		errors.Is(err, chrono.ErrInvalidPatch):
		status = http.StatusBadRequest
	case errors.Is(err, chrono.ErrDuplicateSchedule):
		status = http.StatusConflict
	}
	a.writeJSON(w, status, errorResponse{Error: err.Error()})
}

// badRequest writes a 400 with the given message.
func (a *API) badRequest(w http.ResponseWriter, msg string) {
	a.writeJSON(w, http.StatusBadRequest, errorResponse{Error: msg})
}
