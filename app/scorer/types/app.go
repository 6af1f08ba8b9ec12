package types

import (
	"context"
	"net/http"
	"time"

	"github.com/Sibikrish3000/realtime-fraud-engine/pkg/feature"
	redisx "github.com/Sibikrish3000/realtime-fraud-engine/pkg/redis"
	"github.com/Sibikrish3000/realtime-fraud-engine/pkg/scorer"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

type App struct {
	// Store is the real-time feature store. Nil when the backing store was
	// unreachable at startup: the service runs degraded on default
	// features rather than refusing transactions.
	Store *feature.Store

	// Model is the loaded fraud classifier artifact.
	Model *scorer.Model

	Redis  *redisx.Client
	Logger *zap.Logger

	// Server represents the HTTP server instance used to handle incoming scoring requests.
	Server *http.Server

	// Cron drives the periodic backing-store health probe.
	Cron *cron.Cron

	// ShadowMode scores and logs but always approves.
	ShadowMode bool

	// MaxLatencyMs is the alerting threshold for a single prediction.
	MaxLatencyMs float64
}

// Start starts the application.
func (a *App) Start(ctx context.Context) {
	if a.Cron != nil {
		a.Cron.Start()
	}
	go func() { _ = a.Server.ListenAndServe() }()
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if a.Cron != nil {
		<-a.Cron.Stop().Done()
	}

	_ = a.Server.Shutdown(shutdownCtx)

	if a.Store != nil {
		if err := a.Store.Close(); err != nil {
			a.Logger.Error("Failed to close feature store", zap.Error(err))
		}
	}

	a.Logger.Info("Scorer stopped")
}
