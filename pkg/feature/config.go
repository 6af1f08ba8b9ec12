package feature

import (
	"time"

	"github.com/Sibikrish3000/realtime-fraud-engine/pkg/utils"
)

// Averager selection for the spend baseline.
const (
	AveragerEMA    = "ema"    // exponential moving average, O(1) per event
	AveragerWindow = "window" // exact mean over the live window, O(window) per read
)

// Config controls the feature definitions. Online and offline paths must be
// built from the same Config for their outputs to be comparable.
type Config struct {
	// WindowSeconds is the trailing interval velocity/average features are
	// computed over. Default 86400 (24h).
	WindowSeconds int64

	// Alpha is the EMA smoothing factor, 2/(n+1) for an n-unit half-life
	// window. Default 2/25 for n=24.
	Alpha float64

	// KeyTTL bounds storage for entities that stop transacting. Independent
	// of the logical window; refreshed on every recorded event.
	KeyTTL time.Duration

	// Averager picks the spend-baseline computation. The EMA is a smoothed
	// approximation of the exact windowed mean; which one is canonical is a
	// deployment choice, but training and serving must agree.
	Averager string
}

func DefaultConfig() Config {
	return Config{
		WindowSeconds: 86400,
		Alpha:         2.0 / 25.0,
		KeyTTL:        7 * 24 * time.Hour,
		Averager:      AveragerEMA,
	}
}

// ConfigFromEnv builds a Config from environment variables.
// Environment variables:
//   - FEATURE_WINDOW_SECONDS: sliding window length (default: 86400)
//   - FEATURE_EMA_ALPHA: EMA smoothing factor (default: 0.08)
//   - FEATURE_KEY_TTL: per-key time to live (default: 168h)
//   - FEATURE_AVERAGER: "ema" or "window" (default: "ema")
func ConfigFromEnv() Config {
	cfg := DefaultConfig()
	cfg.WindowSeconds = utils.EnvInt64("FEATURE_WINDOW_SECONDS", cfg.WindowSeconds)
	cfg.Alpha = utils.EnvFloat("FEATURE_EMA_ALPHA", cfg.Alpha)
	cfg.KeyTTL = utils.EnvDuration("FEATURE_KEY_TTL", cfg.KeyTTL)
	if utils.Env("FEATURE_AVERAGER", AveragerEMA) == AveragerWindow {
		cfg.Averager = AveragerWindow
	}
	return cfg
}
