package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/xraph/chrono/execution"
	"github.com/xraph/chrono/id"
	"github.com/xraph/chrono/schedule"
)

// CreateScheduleRequest is the body of POST /v1/schedules.
type CreateScheduleRequest struct {
	Name       string          `json:"name"`
	Expression string          `json:"expression"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	Enabled    *bool           `json:"enabled,omitempty"`
}

func (a *API) createSchedule(w http.ResponseWriter, r *http.Request) {
	var req CreateScheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.badRequest(w, fmt.Sprintf("invalid request body: %v", err))
		return
	}
	if req.Name == "" {
		a.badRequest(w, "name is required")
		return
	}
	if req.Expression == "" {
		a.badRequest(w, "expression is required")
		return
	}

	enabled := true
	if req.Enabled != nil {
		enabled = *req.Enabled
	}

	def, err := a.eng.CreateSchedule(r.Context(), req.Name, req.Expression, req.Payload, enabled)
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusCreated, def)
}

func (a *API) listSchedules(w http.ResponseWriter, r *http.Request) {
	defs, err := a.eng.ListSchedules(r.Context())
	if err != nil {
		a.writeError(w, err)
		return
	}
	if defs == nil {
		defs = []*schedule.Definition{}
	}
	a.writeJSON(w, http.StatusOK, defs)
}

func (a *API) getSchedule(w http.ResponseWriter, r *http.Request) {
	scheduleID, err := id.ParseScheduleID(r.PathValue("scheduleId"))
	if err != nil {
		a.badRequest(w, fmt.Sprintf("invalid schedule ID: %v", err))
		return
	}

	def, err := a.eng.GetSchedule(r.Context(), scheduleID)
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, def)
}

func (a *API) updateSchedule(w http.ResponseWriter, r *http.Request) {
	scheduleID, err := id.ParseScheduleID(r.PathValue("scheduleId"))
	if err != nil {
		a.badRequest(w, fmt.Sprintf("invalid schedule ID: %v", err))
		return
	}

	var patch schedule.Patch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		a.badRequest(w, fmt.Sprintf("invalid request body: %v", err))
		return
	}

	def, err := a.eng.UpdateSchedule(r.Context(), scheduleID, patch)
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, def)
}

func (a *API) deleteSchedule(w http.ResponseWriter, r *http.Request) {
	scheduleID, err := id.ParseScheduleID(r.PathValue("scheduleId"))
	if err != nil {
		a.badRequest(w, fmt.Sprintf("invalid schedule ID: %v", err))
		return
	}

	if err := a.eng.DeleteSchedule(r.Context(), scheduleID); err != nil {
		a.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) runSchedule(w http.ResponseWriter, r *http.Request) {
	scheduleID, err := id.ParseScheduleID(r.PathValue("scheduleId"))
	if err != nil {
		a.badRequest(w, fmt.Sprintf("invalid schedule ID: %v", err))
		return
	}

	// The record carries the outcome; a failed job is not an HTTP error.
	rec, err := a.eng.ExecuteNow(r.Context(), scheduleID)
	if rec == nil && err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, rec)
}

func (a *API) listExecutions(w http.ResponseWriter, r *http.Request) {
	scheduleID, err := id.ParseScheduleID(r.PathValue("scheduleId"))
	if err != nil {
		a.badRequest(w, fmt.Sprintf("invalid schedule ID: %v", err))
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit < 0 {
			a.badRequest(w, "limit must be a non-negative integer")
			return
		}
	}

	recs, err := a.eng.Executions(r.Context(), scheduleID, limit)
	if err != nil {
		a.writeError(w, err)
		return
	}
	if recs == nil {
		recs = []*execution.Record{}
	}
	a.writeJSON(w, http.StatusOK, recs)
}
