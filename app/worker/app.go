package worker

import (
	"context"
	"time"

	"github.com/canopy-network/stakedrop/app/worker/activity"
	"github.com/canopy-network/stakedrop/app/worker/types"
	"github.com/canopy-network/stakedrop/app/worker/workflow"
	"github.com/canopy-network/stakedrop/pkg/logging"
	"github.com/canopy-network/stakedrop/pkg/snapshot"
	"github.com/canopy-network/stakedrop/pkg/temporal"
	"github.com/canopy-network/stakedrop/pkg/utils"
	"go.temporal.io/sdk/worker"
	temporalworkflow "go.temporal.io/sdk/workflow"
	"go.uber.org/zap"
)

type App struct {
	Worker         worker.Worker
	TemporalClient *temporal.Client
	Services       *snapshot.Services
	Logger         *zap.Logger
}

// Start starts the worker and blocks until the context is canceled.
func (a *App) Start(ctx context.Context) {
	if err := a.Worker.Start(); err != nil {
		a.Logger.Fatal("Unable to start worker", zap.Error(err))
	}
	<-ctx.Done()
	a.Stop()
}

func (a *App) Stop() {
	a.Worker.Stop()
	a.Services.Close()
	a.TemporalClient.Close()
	a.Logger.Info("Worker stopped")
	_ = a.Logger.Sync()
}

// Initialize wires the snapshot services and registers the snapshot and ledger sync workflows.
// SNAPSHOT_CRON and LEDGER_SYNC_CRON create or update the matching schedules.
func Initialize(ctx context.Context) *App {
	logger, err := logging.New("worker")
	if err != nil {
		panic(err)
	}

	cfg, err := snapshot.ConfigFromEnv()
	if err != nil {
		logger.Fatal("Invalid snapshot configuration", zap.Error(err))
	}

	temporalClient, err := temporal.NewClient(ctx, logger)
	if err != nil {
		logger.Fatal("Unable to establish temporal connection", zap.Error(err))
	}
	if err := temporalClient.EnsureNamespace(ctx, utils.EnvDuration("TEMPORAL_RETENTION", 30*24*time.Hour)); err != nil {
		logger.Fatal("Unable to ensure temporal namespace", zap.Error(err))
	}

	services, err := snapshot.NewServices(ctx, logger, cfg, snapshot.ServiceOpts{
		Component: "worker",
		Store:     true,
		Redis:     true,
	})
	if err != nil {
		logger.Fatal("Unable to initialize snapshot services", zap.Error(err))
	}

	activityContext := &activity.Context{
		Logger:    logger,
		Runner:    services.Runner,
		Store:     services.Store,
		Publisher: snapshot.NewPublisher(services.Redis),
		OutputDir: utils.Env("SNAPSHOT_OUTPUT_DIR", ""),

		RPC:            services.RPC,
		MaxConcurrency: cfg.MaxConcurrency,
	}
	if services.Ledger != nil {
		activityContext.Ledger = services.Ledger
	}
	workflowContext := &workflow.Context{
		ActivityContext: activityContext,
		Config:          workflow.DefaultConfig(temporalClient.Queue),
	}

	wkr := worker.New(temporalClient.TClient, temporalClient.Queue, worker.Options{
		MaxConcurrentWorkflowTaskPollers:   2,
		MaxConcurrentActivityTaskPollers:   2,
		MaxConcurrentActivityExecutionSize: utils.EnvInt("WORKER_MAX_ACTIVITIES", 4),
		WorkerStopTimeout:                  time.Minute,
	})
	wkr.RegisterWorkflowWithOptions(workflowContext.SnapshotWorkflow, temporalworkflow.RegisterOptions{
		Name: workflow.SnapshotWorkflowName,
	})
	wkr.RegisterActivity(activityContext.ResolveWindow)
	wkr.RegisterActivity(activityContext.ComputeSnapshot)
	wkr.RegisterActivity(activityContext.PublishSnapshot)
	wkr.RegisterWorkflowWithOptions(workflowContext.LedgerSyncWorkflow, temporalworkflow.RegisterOptions{
		Name: workflow.LedgerSyncWorkflowName,
	})
	wkr.RegisterActivity(activityContext.LedgerHead)
	wkr.RegisterActivity(activityContext.SyncLedgerRange)

	if cfg.Cron != "" {
		schedule := types.ScheduleOptions(temporalClient.Queue, types.SnapshotInput{
			Request: snapshot.Request{ChainID: cfg.ChainID, Subject: cfg.Subject, Dropped: cfg.Dropped},
			Cron:    cfg.Cron,
		})
		if err := temporalClient.EnsureSchedule(ctx, schedule); err != nil {
			logger.Fatal("Unable to ensure snapshot schedule", zap.Error(err))
		}
	}

	if cfg.LedgerSyncCron != "" {
		schedule := types.LedgerScheduleOptions(temporalClient.Queue, cfg.ChainID, cfg.LedgerSyncCron,
			types.LedgerSyncInput{Subject: cfg.Subject})
		if err := temporalClient.EnsureSchedule(ctx, schedule); err != nil {
			logger.Fatal("Unable to ensure ledger sync schedule", zap.Error(err))
		}
	}

	return &App{
		Worker:         wkr,
		TemporalClient: temporalClient,
		Services:       services,
		Logger:         logger,
	}
}
