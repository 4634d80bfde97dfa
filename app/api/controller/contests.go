package controller

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/neynartodes/contesthub/pkg/contest"
	"github.com/neynartodes/contesthub/pkg/kv"
)

// HandleGetContest answers GET /contests/{key} with the cached contest and
// whatever snapshots exist for it. Missing snapshots are simply omitted.
func (c *Controller) HandleGetContest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	key, err := contest.ParseKey(mux.Vars(r)["key"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid contest key")
		return
	}

	cst, err := c.loadContest(ctx, key)
	if err != nil {
		writeError(w, http.StatusNotFound, "contest not found")
		return
	}

	out := map[string]any{"contest": cst}

	if social, socialErr := c.App.Store.GetCastSnapshot(ctx, key); socialErr == nil {
		out["social"] = social
	} else if !errors.Is(socialErr, kv.ErrNotFound) {
		writeError(w, http.StatusInternalServerError, socialErr.Error())
		return
	}

	if snap, snapErr := c.prizeSnapshot(ctx, key); snapErr == nil {
		out["price"] = snap
	} else if !errors.Is(snapErr, kv.ErrNotFound) {
		writeError(w, http.StatusInternalServerError, snapErr.Error())
		return
	}

	writeJSON(w, http.StatusOK, out)
}
