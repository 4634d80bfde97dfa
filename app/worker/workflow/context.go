package workflow

import (
	"github.com/neynartodes/contesthub/app/worker/activity"
	"github.com/neynartodes/contesthub/pkg/temporal"
)

// Workflow registration names. Callers start workflows by name so the API
// service does not need the workflow function symbols.
const (
	FinalizeContestWorkflowName = "FinalizeContestWorkflow"
	ArchiveSeasonWorkflowName   = "ArchiveSeasonWorkflow"
)

// Context holds the workflow context.
type Context struct {
	TemporalClient  *temporal.Client
	ActivityContext *activity.Context
}
