package api

import (
	"fmt"
	"net/http"

	"github.com/xraph/chrono"
	"github.com/xraph/chrono/health"
	"github.com/xraph/chrono/id"
)

func (a *API) getExecution(w http.ResponseWriter, r *http.Request) {
	executionID, err := id.ParseExecutionID(r.PathValue("executionId"))
	if err != nil {
		a.badRequest(w, fmt.Sprintf("invalid execution ID: %v", err))
		return
	}

	rec, err := a.eng.GetExecution(r.Context(), executionID)
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, rec)
}

func (a *API) getProgress(w http.ResponseWriter, r *http.Request) {
	opID, err := id.ParseOperationID(r.PathValue("operationId"))
	if err != nil {
		a.badRequest(w, fmt.Sprintf("invalid operation ID: %v", err))
		return
	}

	state := a.eng.Progress(opID)
	if state == nil {
		a.writeError(w, chrono.ErrOperationNotFound)
		return
	}
	a.writeJSON(w, http.StatusOK, state)
}

// health returns 200 for healthy and warning, 503 for critical, so load
// balancers can act on the status code alone.
func (a *API) health(w http.ResponseWriter, r *http.Request) {
	snap := a.eng.Health()
	status := http.StatusOK
	if snap.Status == health.StatusCritical {
		status = http.StatusServiceUnavailable
	}
	a.writeJSON(w, status, snap)
}
