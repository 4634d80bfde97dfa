package worker

import (
	"context"
	"errors"
	"time"

	"github.com/robfig/cron/v3"
	"go.temporal.io/api/enums/v1"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
	temporalworkflow "go.temporal.io/sdk/workflow"
	"go.uber.org/zap"

	"github.com/neynartodes/contesthub/app/worker/activity"
	"github.com/neynartodes/contesthub/app/worker/types"
	"github.com/neynartodes/contesthub/app/worker/workflow"
	"github.com/neynartodes/contesthub/pkg/chain"
	"github.com/neynartodes/contesthub/pkg/contest"
	"github.com/neynartodes/contesthub/pkg/kv"
	"github.com/neynartodes/contesthub/pkg/logging"
	"github.com/neynartodes/contesthub/pkg/price"
	"github.com/neynartodes/contesthub/pkg/season"
	"github.com/neynartodes/contesthub/pkg/social"
	"github.com/neynartodes/contesthub/pkg/temporal"
	"github.com/neynartodes/contesthub/pkg/utils"
	"github.com/neynartodes/contesthub/pkg/volume"
)

type App struct {
	Worker         worker.Worker
	TemporalClient *temporal.Client
	Store          kv.Store
	Chain          *chain.Client

	// Cron drives the finalize reconciler, according to CronSpec.
	Cron     *cron.Cron
	CronSpec string

	Logger *zap.Logger
}

// Start starts the worker and the reconciler, blocking until the context is
// canceled.
func (a *App) Start(ctx context.Context) {
	if err := a.Worker.Start(); err != nil {
		a.Logger.Fatal("Unable to start worker", zap.Error(err))
	}
	a.Cron.Start()
	a.Logger.Info("Reconciler cron started", zap.String("cronSpec", a.CronSpec))
	<-ctx.Done()
	a.Stop()
}

// Stop stops the worker.
func (a *App) Stop() {
	<-a.Cron.Stop().Done()
	a.Worker.Stop()
	_ = a.Store.Close()
	a.Chain.Close()
	time.Sleep(200 * time.Millisecond)
	a.Logger.Info("さようなら!")
}

// Initialize initializes the application.
func Initialize(ctx context.Context) *App {
	logger, err := logging.New()
	if err != nil {
		// nothing else to do here, we'll just log to stderr'
		panic(err)
	}

	store, err := kv.Open(ctx, logger)
	if err != nil {
		logger.Fatal("Unable to initialize kv store", zap.Error(err))
	}

	chainClient, err := chain.Dial(ctx, logger, chain.OptsFromEnv())
	if err != nil {
		logger.Fatal("Unable to connect to chain RPC", zap.Error(err))
	}

	socialClient := social.New(logger, social.OptsFromEnv())
	priceEngine := price.NewEngine(chainClient, price.ConfigFromEnv(), logger)
	volumes := volume.NewCalculator(chainClient, priceEngine, logger)
	schedule := season.ScheduleFromEnv(logger)

	finalizer := season.NewFinalizer(store, socialClient, volumes, schedule, logger)
	aggregator := season.NewAggregator(store, socialClient, chainClient, schedule, logger)
	archiver := season.NewArchiver(store, chainClient, aggregator, schedule, logger)

	temporalClient, err := temporal.NewClient(ctx, logger)
	if err != nil {
		logger.Fatal("Unable to establish temporal connection", zap.Error(err))
	}

	activityContext := &activity.Context{
		Logger:         logger,
		Store:          store,
		Chain:          chainClient,
		Finalizer:      finalizer,
		Archiver:       archiver,
		TemporalClient: temporalClient,
	}
	workflowContext := workflow.Context{
		TemporalClient:  temporalClient,
		ActivityContext: activityContext,
	}

	wkr := worker.New(
		temporalClient.TClient,
		temporalClient.ContestsQueue,
		worker.Options{
			MaxConcurrentActivityExecutionSize: utils.EnvInt("WORKER_MAX_ACTIVITIES", 50),
			WorkerStopTimeout:                  1 * time.Minute,
		},
	)

	// Register the workflows
	wkr.RegisterWorkflowWithOptions(
		workflowContext.FinalizeContestWorkflow,
		temporalworkflow.RegisterOptions{Name: workflow.FinalizeContestWorkflowName},
	)
	wkr.RegisterWorkflowWithOptions(
		workflowContext.ArchiveSeasonWorkflow,
		temporalworkflow.RegisterOptions{Name: workflow.ArchiveSeasonWorkflowName},
	)
	// Register all the activities
	wkr.RegisterActivity(activityContext.FetchContest)
	wkr.RegisterActivity(activityContext.FinalizeContest)
	wkr.RegisterActivity(activityContext.CacheContest)
	wkr.RegisterActivity(activityContext.ArchiveSeason)

	app := &App{
		Worker:         wkr,
		TemporalClient: temporalClient,
		Store:          store,
		Chain:          chainClient,
		CronSpec:       utils.Env("RECONCILE_CRON", "*/30 * * * * *"),
		Logger:         logger,
	}
	app.setupScheduler(ctx)
	return app
}

// setupScheduler wires the reconciler tick. Each run is bounded so a slow
// chain RPC cannot pile runs on top of each other.
func (a *App) setupScheduler(ctx context.Context) {
	a.Cron = cron.New(cron.WithSeconds(), cron.WithChain(cron.Recover(cron.DefaultLogger)))
	_, err := a.Cron.AddFunc(a.CronSpec, func() {
		rctx, cancel := context.WithTimeout(ctx, 25*time.Second)
		defer cancel()
		if err := a.Reconcile(rctx); err != nil {
			a.Logger.Warn("Reconcile run failed", zap.Error(err))
		}
	})
	if err != nil {
		a.Logger.Fatal("Unable to schedule reconciler", zap.Error(err))
	}
}

// Reconcile discovers on-chain contests missing from the cache and starts a
// finalize workflow for every cached contest past its end time that is not
// terminal yet. Workflow ids dedupe repeated starts, so firing every tick
// is safe.
func (a *App) Reconcile(ctx context.Context) error {
	now := time.Now().Unix()

	for _, fam := range contest.Families {
		next, err := a.Chain.NextContestID(ctx, fam)
		if err != nil {
			// Families without a configured escrow are expected to miss.
			continue
		}
		for id := uint64(1); id < next; id++ {
			key := contest.Key{Family: fam, ID: id}
			cached, err := a.Store.GetContest(ctx, key)
			if errors.Is(err, kv.ErrNotFound) {
				if err := a.cacheFromChain(ctx, key); err != nil {
					a.Logger.Warn("Failed to cache discovered contest",
						zap.String("contest", key.String()), zap.Error(err))
				}
				continue
			}
			if err != nil {
				return err
			}
			if cached.Status.Terminal() || cached.EndTime > now {
				continue
			}
			a.startFinalize(ctx, key)
		}
	}
	return nil
}

func (a *App) cacheFromChain(ctx context.Context, key contest.Key) error {
	c, err := a.Chain.GetContest(ctx, key, nil)
	if err != nil {
		return err
	}
	if err := a.Store.PutContest(ctx, c); err != nil {
		return err
	}
	if c.Status.Terminal() {
		// Discovered already-finished contests still need their capture.
		a.startFinalize(ctx, key)
	}
	return nil
}

func (a *App) startFinalize(ctx context.Context, key contest.Key) {
	opts := client.StartWorkflowOptions{
		ID:        a.TemporalClient.GetFinalizeWorkflowId(key.String()),
		TaskQueue: a.TemporalClient.ContestsQueue,
		// Reruns converge, the finalizer is idempotent.
		WorkflowIDReusePolicy:    enums.WORKFLOW_ID_REUSE_POLICY_ALLOW_DUPLICATE,
		WorkflowExecutionTimeout: 10 * time.Minute,
	}
	_, err := a.TemporalClient.TClient.ExecuteWorkflow(ctx, opts,
		workflow.FinalizeContestWorkflowName,
		types.FinalizeContestInput{ContestKey: key.String()})
	if err != nil {
		a.Logger.Warn("Failed to start finalize workflow",
			zap.String("contest", key.String()), zap.Error(err))
		return
	}
	a.Logger.Info("Started finalize workflow", zap.String("contest", key.String()))
}
