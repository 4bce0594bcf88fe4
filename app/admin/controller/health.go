package controller

import (
	"net/http"

	"github.com/canopy-network/stakedrop/app/admin/controller/types"
)

// HandleHealth reports 503 when either the store or Temporal is unreachable.
func (c *Controller) HandleHealth(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	out := types.HealthResponse{Store: "ok", Temporal: "ok"}
	status := http.StatusOK

	if err := c.App.Store.Health(ctx); err != nil {
		out.Store = err.Error()
		status = http.StatusServiceUnavailable
	}
	h, err := c.App.Workflows.Health(ctx)
	if err != nil {
		out.Temporal = err.Error()
		status = http.StatusServiceUnavailable
	}
	out.Pollers = len(h.SnapshotQueue)

	writeJSON(w, status, out)
}
