package activity

import (
	"go.uber.org/zap"

	"github.com/neynartodes/contesthub/pkg/chain"
	"github.com/neynartodes/contesthub/pkg/kv"
	"github.com/neynartodes/contesthub/pkg/season"
	temporalclient "github.com/neynartodes/contesthub/pkg/temporal"
)

type Context struct {
	Logger *zap.Logger
	// Persistence and chain access
	Store kv.Store
	Chain *chain.Client
	// Season machinery
	Finalizer *season.Finalizer
	Archiver  *season.Archiver
	// For scheduling workflows
	TemporalClient *temporalclient.Client
}
