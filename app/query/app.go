package query

import (
	"context"

	"github.com/canopy-network/stakedrop/app/query/types"
	"github.com/canopy-network/stakedrop/pkg/db/postgres"
	"github.com/canopy-network/stakedrop/pkg/db/postgres/snapshots"
	"github.com/canopy-network/stakedrop/pkg/logging"
	"github.com/canopy-network/stakedrop/pkg/redis"
	"github.com/canopy-network/stakedrop/pkg/snapshot"
	"github.com/canopy-network/stakedrop/pkg/utils"
	"go.uber.org/zap"
)

func Initialize(ctx context.Context) *types.App {
	logger, err := logging.New("query")
	if err != nil {
		// nothing else to do here, we'll just log to stderr
		panic(err)
	}

	store, err := snapshots.New(ctx, logger, postgres.PoolConfigForComponent("query"))
	if err != nil {
		logger.Fatal("Unable to initialize snapshot store", zap.Error(err))
	}

	app := types.NewApp(store, logger)
	app.OnStop(store.Close)

	if !utils.EnvBool("REDIS_ENABLED", false) {
		logger.Info("Redis disabled - real-time snapshot events will not be available")
		return app
	}

	redisClient, err := redis.NewClient(ctx, logger)
	if err != nil {
		logger.Warn("Failed to initialize Redis client - real-time snapshot events will be disabled", zap.Error(err))
		return app
	}
	app.RedisClient = redisClient
	app.OnStop(func() { _ = redisClient.Close() })

	consumer, err := redis.NewStreamConsumer(redisClient, redis.StreamConsumerConfig{
		Stream: snapshot.Stream,
		LastID: "$",
		Logger: logger.Named("snapshot-stream"),
	})
	if err != nil {
		logger.Fatal("Unable to create snapshot stream consumer", zap.Error(err))
	}
	app.Consumer = consumer
	return app
}
