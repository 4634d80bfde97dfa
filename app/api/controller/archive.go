package controller

import (
	"net/http"

	"github.com/go-jose/go-jose/v4/json"
	"go.temporal.io/sdk/client"
	"go.uber.org/zap"

	workertypes "github.com/neynartodes/contesthub/app/worker/types"
	"github.com/neynartodes/contesthub/app/worker/workflow"
	"github.com/neynartodes/contesthub/pkg/season"
)

// HandleArchiveSeason freezes a season. A dry run executes inline and
// returns the would-be archive without writing anything; a real run goes
// through the workflow engine so retries and history live in one place.
func (c *Controller) HandleArchiveSeason(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var in struct {
		SeasonID          uint64 `json:"seasonId"`
		ClearAfterArchive bool   `json:"clearAfterArchive"`
		DryRun            bool   `json:"dryRun"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "bad json")
		return
	}
	if _, ok := c.App.Schedule.ByID(in.SeasonID); !ok {
		writeError(w, http.StatusNotFound, "unknown season")
		return
	}

	if in.DryRun {
		archive, err := c.App.Archiver.Archive(ctx, in.SeasonID, season.ArchiveOptions{DryRun: true})
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"dryRun": true, "archive": archive})
		return
	}

	if c.App.TemporalClient == nil {
		writeError(w, http.StatusServiceUnavailable, "workflow engine unavailable")
		return
	}

	opts := client.StartWorkflowOptions{
		ID:        c.App.TemporalClient.GetArchiveWorkflowId(in.SeasonID),
		TaskQueue: c.App.TemporalClient.ContestsQueue,
	}
	run, err := c.App.TemporalClient.TClient.ExecuteWorkflow(ctx, opts,
		workflow.ArchiveSeasonWorkflowName,
		workertypes.ArchiveSeasonInput{
			SeasonID:   in.SeasonID,
			ClearAfter: in.ClearAfterArchive,
		})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	c.App.Logger.Info("Started archive workflow",
		zap.Uint64("season", in.SeasonID), zap.String("workflowId", run.GetID()))
	writeJSON(w, http.StatusAccepted, map[string]any{
		"workflowId": run.GetID(),
		"runId":      run.GetRunID(),
	})
}
