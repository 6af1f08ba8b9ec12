package types

import (
	"context"

	"github.com/Sibikrish3000/realtime-fraud-engine/pkg/feature"
	redisx "github.com/Sibikrish3000/realtime-fraud-engine/pkg/redis"
	"go.uber.org/zap"
)

type App struct {
	Store    *feature.Store
	Redis    *redisx.Client
	Consumer *redisx.StreamConsumer
	Handler  redisx.TransactionHandler
	Logger   *zap.Logger
}

// Start consumes the transaction stream until the context is cancelled,
// then releases the backing store.
func (a *App) Start(ctx context.Context) {
	if err := a.Consumer.Run(ctx, a.Handler); err != nil && ctx.Err() == nil {
		a.Logger.Error("Consumer stopped unexpectedly", zap.Error(err))
	}

	if err := a.Store.Close(); err != nil {
		a.Logger.Error("Failed to close feature store", zap.Error(err))
	}
	a.Logger.Info("Ingest stopped")
}
