package controller

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/neynartodes/contesthub/pkg/contest"
)

// HandleCheckEntries answers GET /check-entries?fid=&contestIds=a,b,c with
// one status per requested contest, keyed by canonical contest key.
func (c *Controller) HandleCheckEntries(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	fid, err := strconv.ParseUint(q.Get("fid"), 10, 64)
	if err != nil || fid == 0 {
		writeError(w, http.StatusBadRequest, "invalid fid")
		return
	}

	var keys []contest.Key
	for _, raw := range strings.Split(q.Get("contestIds"), ",") {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		key, parseErr := contest.ParseKey(raw)
		if parseErr != nil {
			writeError(w, http.StatusBadRequest, "invalid contestId: "+raw)
			return
		}
		keys = append(keys, key)
	}
	if len(keys) == 0 {
		writeError(w, http.StatusBadRequest, "contestIds is required")
		return
	}

	results, err := c.App.Ledger.Check(ctx, fid, keys)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"fid": fid, "entries": results})
}

// HandleClearEntries removes entry records for a FID, optionally scoped to
// one contest. Admin only; mainly used to unwind test entries.
func (c *Controller) HandleClearEntries(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	fid, err := strconv.ParseUint(q.Get("fid"), 10, 64)
	if err != nil || fid == 0 {
		writeError(w, http.StatusBadRequest, "invalid fid")
		return
	}

	var key *contest.Key
	if raw := q.Get("contestId"); raw != "" {
		parsed, parseErr := contest.ParseKey(raw)
		if parseErr != nil {
			writeError(w, http.StatusBadRequest, "invalid contestId")
			return
		}
		key = &parsed
	}

	cleared, err := c.App.Ledger.Clear(ctx, fid, key)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"fid": fid, "cleared": cleared})
}
