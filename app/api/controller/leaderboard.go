package controller

import (
	"net/http"
	"strconv"
	"time"
)

const defaultLeaderboardLimit = 50

// HandleLeaderboard answers GET /leaderboard?season=&limit=. The season
// defaults to the one containing now; the result comes from the 5-minute
// memo unless finalization invalidated it.
func (c *Controller) HandleLeaderboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	var seasonID uint64
	if raw := q.Get("season"); raw != "" {
		parsed, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid season")
			return
		}
		seasonID = parsed
	} else {
		current, ok := c.App.Schedule.Current(time.Now().Unix())
		if !ok {
			writeError(w, http.StatusNotFound, "no active season")
			return
		}
		seasonID = current.SeasonID
	}
	if _, ok := c.App.Schedule.ByID(seasonID); !ok {
		writeError(w, http.StatusNotFound, "unknown season")
		return
	}

	limit := defaultLeaderboardLimit
	if raw := q.Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = parsed
	}

	lb, err := c.App.Aggregator.Leaderboard(ctx, seasonID, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, lb)
}
