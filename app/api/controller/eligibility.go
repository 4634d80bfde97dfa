package controller

import (
	"net/http"
	"strconv"
	"time"

	"github.com/neynartodes/contesthub/pkg/contest"
	"github.com/neynartodes/contesthub/pkg/eligibility"
)

// HandleEligibility answers GET /eligibility?contestId=&fid=|address=.
// The verdict is read-only; nothing about the subject is persisted.
func (c *Controller) HandleEligibility(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	key, err := contest.ParseKey(q.Get("contestId"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid contestId")
		return
	}

	subject := eligibility.Subject{Address: q.Get("address")}
	if raw := q.Get("fid"); raw != "" {
		fid, parseErr := strconv.ParseUint(raw, 10, 64)
		if parseErr != nil {
			writeError(w, http.StatusBadRequest, "invalid fid")
			return
		}
		subject.Fid = fid
	}
	if subject.Fid == 0 && subject.Address == "" {
		writeError(w, http.StatusBadRequest, "fid or address is required")
		return
	}

	cst, err := c.loadContest(ctx, key)
	if err != nil {
		writeError(w, http.StatusNotFound, "contest not found")
		return
	}

	result, err := c.App.Evaluator.Evaluate(ctx, cst, subject, time.Now().Unix())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, result)
}
