package controller

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-jose/go-jose/v4/json"

	"github.com/neynartodes/contesthub/pkg/contest"
	"github.com/neynartodes/contesthub/pkg/entry"
)

// HandleEnter records a contest entry. Repeating the call is safe: the
// first record wins and later calls report alreadyEntered.
func (c *Controller) HandleEnter(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var in struct {
		Fid       uint64   `json:"fid"`
		ContestID string   `json:"contestId"`
		CastHash  string   `json:"castHash"`
		Addresses []string `json:"addresses"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "bad json")
		return
	}
	if in.Fid == 0 {
		writeError(w, http.StatusBadRequest, "fid is required")
		return
	}
	key, err := contest.ParseKey(in.ContestID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid contestId")
		return
	}

	cst, err := c.loadContest(ctx, key)
	if err != nil {
		writeError(w, http.StatusNotFound, "contest not found")
		return
	}
	if cst.Status.Terminal() || cst.EndTime < time.Now().Unix() {
		writeError(w, http.StatusBadRequest, "contest has ended")
		return
	}

	result, err := c.App.Ledger.Enter(ctx, in.Fid, key, in.Addresses)
	if errors.Is(err, entry.ErrDenied) {
		writeError(w, http.StatusForbidden, "fid is not allowed to enter")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, result)
}
