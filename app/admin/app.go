package admin

import (
	"context"
	"time"

	"github.com/canopy-network/stakedrop/app/admin/types"
	"github.com/canopy-network/stakedrop/pkg/db/postgres"
	"github.com/canopy-network/stakedrop/pkg/db/postgres/snapshots"
	"github.com/canopy-network/stakedrop/pkg/logging"
	"github.com/canopy-network/stakedrop/pkg/temporal"
	"github.com/canopy-network/stakedrop/pkg/utils"
	"go.uber.org/zap"
)

func Initialize(ctx context.Context) *types.App {
	logger, err := logging.New("admin")
	if err != nil {
		// nothing else to do here, we'll just log to stderr
		panic(err)
	}

	store, err := snapshots.New(ctx, logger, postgres.PoolConfigForComponent("admin"))
	if err != nil {
		logger.Fatal("Unable to initialize snapshot store", zap.Error(err))
	}

	temporalClient, err := temporal.NewClient(ctx, logger)
	if err != nil {
		logger.Fatal("Unable to establish temporal connection", zap.Error(err))
	}
	err = temporalClient.EnsureNamespace(ctx, utils.EnvDuration("TEMPORAL_RETENTION", 30*24*time.Hour))
	if err != nil {
		logger.Fatal("Unable to ensure temporal namespace", zap.Error(err))
	}
	logger.Info("Temporal namespace ready", zap.String("namespace", temporalClient.Namespace))

	app := &types.App{
		Store:     store,
		Workflows: temporalClient,
		Queue:     temporalClient.Queue,
		Logger:    logger,
	}
	app.OnStop(store.Close)
	app.OnStop(temporalClient.Close)
	return app
}
