package ingest

import (
	"context"

	"github.com/Sibikrish3000/realtime-fraud-engine/app/ingest/types"
	"github.com/Sibikrish3000/realtime-fraud-engine/pkg/feature"
	"github.com/Sibikrish3000/realtime-fraud-engine/pkg/logging"
	"github.com/Sibikrish3000/realtime-fraud-engine/pkg/metrics"
	redisx "github.com/Sibikrish3000/realtime-fraud-engine/pkg/redis"
	"github.com/Sibikrish3000/realtime-fraud-engine/pkg/retry"
	"github.com/Sibikrish3000/realtime-fraud-engine/pkg/utils"
	"go.uber.org/zap"
)

// Initialize initializes the application.
func Initialize(ctx context.Context) *types.App {
	logger, err := logging.New()
	if err != nil {
		panic(err)
	}

	// Ingestion without a store is pointless; unreachable Redis is fatal
	// here, unlike the scorer's degraded mode.
	redisClient, err := redisx.NewClient(ctx, redisx.ConfigFromEnv(), logger)
	if err != nil {
		logger.Fatal("Unable to connect to backing store", zap.Error(err))
	}

	store := feature.NewStore(redisClient.Unwrap(), feature.ConfigFromEnv(), logger)

	consumer, err := redisx.NewStreamConsumer(redisClient, redisx.ConsumerConfig{
		Stream:   utils.Env("TX_STREAM", "transactions"),
		Group:    utils.Env("TX_GROUP", "feature-ingest"),
		Consumer: utils.Env("TX_CONSUMER", "ingest-1"),
		Workers:  utils.EnvInt("TX_WORKERS", 4),
		Logger:   logger,
	})
	if err != nil {
		logger.Fatal("Unable to create stream consumer", zap.Error(err))
	}

	metrics.MustRegister()

	retryCfg := retry.DefaultConfig()

	app := &types.App{
		Store:    store,
		Redis:    redisClient,
		Consumer: consumer,
		Logger:   logger,
	}

	// Retry policy lives here at the caller, not inside the store: a few
	// short attempts, then leave the entry pending for redelivery.
	app.Handler = func(ctx context.Context, tx redisx.Transaction) error {
		err := retry.WithBackoff(ctx, retryCfg, logger, "record_event", func() error {
			return store.RecordEvent(ctx, tx.EntityID, tx.Amount, tx.Timestamp)
		})
		if err != nil {
			metrics.IngestedTotal.WithLabelValues("failed").Inc()
			return err
		}
		metrics.IngestedTotal.WithLabelValues("recorded").Inc()
		return nil
	}

	return app
}
