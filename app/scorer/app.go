package scorer

import (
	"context"

	"github.com/Sibikrish3000/realtime-fraud-engine/app/scorer/types"
	"github.com/Sibikrish3000/realtime-fraud-engine/pkg/feature"
	"github.com/Sibikrish3000/realtime-fraud-engine/pkg/logging"
	"github.com/Sibikrish3000/realtime-fraud-engine/pkg/metrics"
	redisx "github.com/Sibikrish3000/realtime-fraud-engine/pkg/redis"
	scoring "github.com/Sibikrish3000/realtime-fraud-engine/pkg/scorer"
	"github.com/Sibikrish3000/realtime-fraud-engine/pkg/utils"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Initialize initializes the application.
func Initialize(ctx context.Context) *types.App {
	logger, err := logging.New()
	if err != nil {
		// nothing else to do here, we'll just log to stderr
		panic(err)
	}

	model, err := scoring.Load(utils.Env("MODEL_PATH", "models/fraud_model.json"))
	if err != nil {
		logger.Fatal("Unable to load model artifact", zap.Error(err))
	}
	logger.Info("Loaded model",
		zap.String("version", model.Version),
		zap.Float64("threshold", model.Threshold))

	// The feature store is optional at startup: an unreachable backing
	// store degrades scoring to default features, it never blocks payments.
	var store *feature.Store
	redisClient, err := redisx.NewClient(ctx, redisx.ConfigFromEnv(), logger)
	if err != nil {
		logger.Warn("Backing store unreachable - scoring with default features", zap.Error(err))
	} else {
		store = feature.NewStore(redisClient.Unwrap(), feature.ConfigFromEnv(), logger)
		logger.Info("Feature store ready")
	}

	metrics.MustRegister()

	app := &types.App{
		Store:        store,
		Model:        model,
		Redis:        redisClient,
		Logger:       logger,
		ShadowMode:   utils.EnvBool("SHADOW_MODE", false),
		MaxLatencyMs: utils.EnvFloat("MAX_LATENCY_MS", 50),
	}

	app.Cron = newHealthProbe(app)

	return app
}

// newHealthProbe schedules a periodic backing-store probe that keeps the
// health gauges current between scrapes.
func newHealthProbe(app *types.App) *cron.Cron {
	if app.Store == nil {
		return nil
	}

	c := cron.New()
	_, err := c.AddFunc("@every 30s", func() {
		report := app.Store.HealthCheck(context.Background())
		if report.Status == feature.StatusHealthy {
			metrics.StoreHealthy.Set(1)
			metrics.StorePingLatency.Set(report.LatencyMs)
		} else {
			metrics.StoreHealthy.Set(0)
			app.Logger.Warn("Backing store health probe failed", zap.String("error", report.Error))
		}
	})
	if err != nil {
		app.Logger.Error("Unable to schedule health probe", zap.Error(err))
		return nil
	}
	return c
}
