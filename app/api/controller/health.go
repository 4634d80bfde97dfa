package controller

import (
	"net/http"
)

func (c *Controller) HandleHealth(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	components := map[string]string{"kv": "ok", "temporal": "disabled"}

	if err := c.App.Store.Health(ctx); err != nil {
		components["kv"] = "errored"
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"status": "errored", "components": components,
		})
		return
	}

	if c.App.TemporalClient != nil {
		h, err := c.App.TemporalClient.Health(ctx)
		switch {
		case err != nil || !h.ConnectionOK:
			components["temporal"] = "errored"
		default:
			components["temporal"] = "ok"
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "components": components})
}
