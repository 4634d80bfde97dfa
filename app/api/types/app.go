package types

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/neynartodes/contesthub/pkg/chain"
	"github.com/neynartodes/contesthub/pkg/eligibility"
	"github.com/neynartodes/contesthub/pkg/entry"
	"github.com/neynartodes/contesthub/pkg/kv"
	"github.com/neynartodes/contesthub/pkg/price"
	"github.com/neynartodes/contesthub/pkg/season"
	"github.com/neynartodes/contesthub/pkg/signer"
	"github.com/neynartodes/contesthub/pkg/social"
	"github.com/neynartodes/contesthub/pkg/temporal"
	"github.com/neynartodes/contesthub/pkg/volume"
)

// User is one admin account. Hash is a bcrypt digest.
type User struct {
	Username string `json:"username"`
	Hash     []byte `json:"hash"`
	Role     string `json:"role"`
}

type App struct {
	Store kv.Store
	// Redis is nil on the in-memory fallback, which disables the
	// websocket invalidation feed.
	Redis *kv.Redis

	Chain  *chain.Client
	Social *social.Client

	Prices    *price.Engine
	Volumes   *volume.Calculator
	Evaluator *eligibility.Evaluator

	Denylist entry.Denylist
	Ledger   *entry.Ledger
	// Signer is nil when ENTRY_SIGNER_KEY is unset; /authorize then
	// answers 503.
	Signer *signer.Signer

	Schedule   *season.Schedule
	Aggregator *season.Aggregator
	Archiver   *season.Archiver

	// TemporalClient is nil when the cluster is unreachable; the
	// workflow-starting endpoints then answer 503.
	TemporalClient *temporal.Client

	// Zap Logger
	Logger *zap.Logger
	// Server represents the HTTP server instance used to handle incoming client requests and manage HTTP routes.
	Server *http.Server
}

// Start starts the application.
func (a *App) Start(ctx context.Context) {
	go func() { _ = a.Server.ListenAndServe() }()
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = a.Server.Shutdown(shutdownCtx)
	a.Archiver.Close()
	a.Volumes.Close()
	if err := a.Store.Close(); err != nil {
		a.Logger.Error("Failed to close kv store", zap.Error(err))
	}
	a.Chain.Close()
	time.Sleep(200 * time.Millisecond)
	a.Logger.Info("さようなら!")
}
