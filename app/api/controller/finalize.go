package controller

import (
	"net/http"

	"github.com/go-jose/go-jose/v4/json"
	"go.temporal.io/api/enums/v1"
	"go.temporal.io/sdk/client"
	"go.uber.org/zap"

	workertypes "github.com/neynartodes/contesthub/app/worker/types"
	"github.com/neynartodes/contesthub/app/worker/workflow"
	"github.com/neynartodes/contesthub/pkg/contest"
)

// HandleFinalize starts a finalize workflow for one contest ahead of the
// reconciler tick. The workflow id collapses duplicate starts and the
// finalizer itself no-ops on non-terminal contests, so this is always safe
// to hit.
func (c *Controller) HandleFinalize(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var in struct {
		ContestID string `json:"contestId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "bad json")
		return
	}
	key, err := contest.ParseKey(in.ContestID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid contestId")
		return
	}

	if c.App.TemporalClient == nil {
		writeError(w, http.StatusServiceUnavailable, "workflow engine unavailable")
		return
	}

	opts := client.StartWorkflowOptions{
		ID:                    c.App.TemporalClient.GetFinalizeWorkflowId(key.String()),
		TaskQueue:             c.App.TemporalClient.ContestsQueue,
		WorkflowIDReusePolicy: enums.WORKFLOW_ID_REUSE_POLICY_ALLOW_DUPLICATE,
	}
	run, err := c.App.TemporalClient.TClient.ExecuteWorkflow(ctx, opts,
		workflow.FinalizeContestWorkflowName,
		workertypes.FinalizeContestInput{ContestKey: key.String()})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	c.App.Logger.Info("Started finalize workflow",
		zap.String("contest", key.String()), zap.String("workflowId", run.GetID()))
	writeJSON(w, http.StatusAccepted, map[string]any{
		"workflowId": run.GetID(),
		"runId":      run.GetRunID(),
	})
}
