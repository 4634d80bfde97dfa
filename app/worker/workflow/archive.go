package workflow

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/neynartodes/contesthub/app/worker/types"
)

// ArchiveSeasonWorkflow freezes one season. Archiving walks every contest
// cache, so the activity gets a generous timeout; the workflow id is
// archive:season:<id> which makes reruns idempotent at the Temporal layer.
func (wc *Context) ArchiveSeasonWorkflow(ctx workflow.Context, in types.ArchiveSeasonInput) (*types.ArchiveSeasonOutput, error) {
	retry := &temporal.RetryPolicy{
		InitialInterval:    500 * time.Millisecond,
		BackoffCoefficient: 2.0,
		MaximumInterval:    30 * time.Second,
		MaximumAttempts:    3,
	}
	ao := workflow.ActivityOptions{
		StartToCloseTimeout: 10 * time.Minute,
		RetryPolicy:         retry,
	}
	ctx = workflow.WithActivityOptions(ctx, ao)

	var out types.ArchiveSeasonOutput
	if err := workflow.ExecuteActivity(ctx, wc.ActivityContext.ArchiveSeason, in).Get(ctx, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
