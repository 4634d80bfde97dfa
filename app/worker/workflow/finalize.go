package workflow

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/neynartodes/contesthub/app/worker/types"
	"github.com/neynartodes/contesthub/pkg/contest"
)

// FinalizeContestWorkflow captures a contest's terminal state. The workflow
// id is finalize:<contestKey>, so the reconciler can fire it every tick and
// duplicate starts collapse onto the running execution.
func (wc *Context) FinalizeContestWorkflow(ctx workflow.Context, in types.FinalizeContestInput) (*types.FinalizeContestOutput, error) {
	retry := &temporal.RetryPolicy{
		InitialInterval:    500 * time.Millisecond,
		BackoffCoefficient: 2.0,
		MaximumInterval:    10 * time.Second,
		MaximumAttempts:    3,
	}
	ao := workflow.ActivityOptions{
		StartToCloseTimeout: 2 * time.Minute,
		RetryPolicy:         retry,
	}
	ctx = workflow.WithActivityOptions(ctx, ao)

	// 1. Read the chain; it is the source of truth for status.
	var c *contest.Contest
	if err := workflow.ExecuteActivity(ctx, wc.ActivityContext.FetchContest, in).Get(ctx, &c); err != nil {
		return nil, err
	}

	// 2. Capture snapshot, volume, season index, invalidation. The
	//    activity no-ops when the contest is not terminal yet.
	var out types.FinalizeContestOutput
	if err := workflow.ExecuteActivity(ctx, wc.ActivityContext.FinalizeContest, c).Get(ctx, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
