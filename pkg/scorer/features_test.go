package scorer

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Sibikrish3000/realtime-fraud-engine/pkg/feature"
)

func TestAssembleFeaturesFromStore(t *testing.T) {
	fv := &feature.FeatureVector{CountInWindow: 3, AverageSpend: 50}

	got := AssembleFeatures(100, fv, Overrides{})

	assert.Equal(t, 100.0, got[FeatAmount])
	assert.Equal(t, 3.0, got[FeatTransCount24h])
	assert.Equal(t, 50.0, got[FeatAvgSpend24h])
	assert.InDelta(t, 2.0, got[FeatAmtToAvgRatio], 1e-9)
}

func TestAssembleFeaturesDegradedDefaults(t *testing.T) {
	// No store vector at all: zero velocity, baseline equal to the amount,
	// neutral ratio. A first-time entity never gets blocked on missing
	// history alone.
	got := AssembleFeatures(250, nil, Overrides{})

	assert.Equal(t, 250.0, got[FeatAmount])
	assert.Equal(t, 0.0, got[FeatTransCount24h])
	assert.Equal(t, 250.0, got[FeatAvgSpend24h])
	assert.Equal(t, 1.0, got[FeatAmtToAvgRatio])
}

func TestAssembleFeaturesUnseenEntity(t *testing.T) {
	// A zero vector from the store means "no history": the spend baseline
	// falls back to the amount, same as degraded mode.
	got := AssembleFeatures(80, &feature.FeatureVector{}, Overrides{})

	assert.Equal(t, 0.0, got[FeatTransCount24h])
	assert.Equal(t, 80.0, got[FeatAvgSpend24h])
	assert.Equal(t, 1.0, got[FeatAmtToAvgRatio])
}

func TestAssembleFeaturesOverridesWin(t *testing.T) {
	fv := &feature.FeatureVector{CountInWindow: 3, AverageSpend: 50}
	count := 7.0
	avg := 20.0

	got := AssembleFeatures(100, fv, Overrides{TransCount24h: &count, AvgSpend24h: &avg})

	assert.Equal(t, 7.0, got[FeatTransCount24h])
	assert.Equal(t, 20.0, got[FeatAvgSpend24h])
	assert.InDelta(t, 5.0, got[FeatAmtToAvgRatio], 1e-9)
}

func TestAssembleFeaturesPartialOverride(t *testing.T) {
	fv := &feature.FeatureVector{CountInWindow: 3, AverageSpend: 50}
	count := 9.0

	got := AssembleFeatures(100, fv, Overrides{TransCount24h: &count})

	assert.Equal(t, 9.0, got[FeatTransCount24h])
	assert.Equal(t, 50.0, got[FeatAvgSpend24h]) // untouched, still from the store
}
