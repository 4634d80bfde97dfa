package api

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/neynartodes/contesthub/app/api/types"
	"github.com/neynartodes/contesthub/pkg/chain"
	"github.com/neynartodes/contesthub/pkg/eligibility"
	"github.com/neynartodes/contesthub/pkg/entry"
	"github.com/neynartodes/contesthub/pkg/kv"
	"github.com/neynartodes/contesthub/pkg/logging"
	"github.com/neynartodes/contesthub/pkg/price"
	"github.com/neynartodes/contesthub/pkg/season"
	"github.com/neynartodes/contesthub/pkg/signer"
	"github.com/neynartodes/contesthub/pkg/social"
	"github.com/neynartodes/contesthub/pkg/temporal"
	"github.com/neynartodes/contesthub/pkg/volume"
)

// Initialize initializes the application.
func Initialize(ctx context.Context) *types.App {
	logger, err := logging.New()
	if err != nil {
		// nothing else to do here, we'll just log to stderr'
		panic(err)
	}

	store, err := kv.Open(ctx, logger)
	if err != nil {
		logger.Fatal("Unable to initialize kv store", zap.Error(err))
	}
	// The websocket feed needs the raw redis connection for pub/sub; the
	// memory fallback simply runs without it.
	redisStore, _ := store.(*kv.Redis)

	chainClient, err := chain.Dial(ctx, logger, chain.OptsFromEnv())
	if err != nil {
		logger.Fatal("Unable to connect to chain RPC", zap.Error(err))
	}

	socialClient := social.New(logger, social.OptsFromEnv())
	priceEngine := price.NewEngine(chainClient, price.ConfigFromEnv(), logger)
	volumes := volume.NewCalculator(chainClient, priceEngine, logger)
	evaluator := eligibility.NewEvaluator(socialClient, volumes, logger)

	denylist := entry.DenylistFromEnv()
	ledger := entry.NewLedger(store, denylist, logger)

	entrySigner, err := signer.New(chainClient, logger)
	if errors.Is(err, signer.ErrNoKey) {
		logger.Warn("ENTRY_SIGNER_KEY not set, /authorize disabled")
		entrySigner = nil
	} else if err != nil {
		logger.Fatal("Unable to load entry signer key", zap.Error(err))
	}

	schedule := season.ScheduleFromEnv(logger)
	aggregator := season.NewAggregator(store, socialClient, chainClient, schedule, logger)
	archiver := season.NewArchiver(store, chainClient, aggregator, schedule, logger)

	temporalClient, err := temporal.NewClient(ctx, logger)
	if err != nil {
		logger.Warn("Temporal unreachable, workflow-starting endpoints disabled", zap.Error(err))
		temporalClient = nil
	}

	return &types.App{
		Store:          store,
		Redis:          redisStore,
		Chain:          chainClient,
		Social:         socialClient,
		Prices:         priceEngine,
		Volumes:        volumes,
		Evaluator:      evaluator,
		Denylist:       denylist,
		Ledger:         ledger,
		Signer:         entrySigner,
		Schedule:       schedule,
		Aggregator:     aggregator,
		Archiver:       archiver,
		TemporalClient: temporalClient,
		Logger:         logger,
	}
}
