package feature

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReplaySingleEntity(t *testing.T) {
	cfg := DefaultConfig()
	cfg.WindowSeconds = 3600

	events := []HistoricalEvent{
		{Entity: "u1", Timestamp: 1000, Amount: 50},
		{Entity: "u1", Timestamp: 2000, Amount: 75},
		{Entity: "u1", Timestamp: 6000, Amount: 100}, // first two fell out of window
	}

	rows, err := Replay(context.Background(), events, cfg)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	u1 := rows["u1"]
	require.Len(t, u1, 3)

	// First event: no priors at all.
	assert.Equal(t, 0.0, u1[0].CountInWindow)
	assert.Equal(t, 0.0, u1[0].AvgSpendEMA)
	assert.Equal(t, 0.0, u1[0].WindowMean)
	assert.Equal(t, 0.0, u1[0].AllTimeMean)

	// Second event: one prior, in window.
	assert.Equal(t, 1.0, u1[1].CountInWindow)
	assert.InDelta(t, 50.0, u1[1].AvgSpendEMA, 1e-9)
	assert.InDelta(t, 50.0, u1[1].WindowMean, 1e-9)
	assert.InDelta(t, 50.0, u1[1].AllTimeMean, 1e-9)

	// Third event: both priors outside the 1h window, but the EMA and the
	// all-time mean still remember them.
	assert.Equal(t, 0.0, u1[2].CountInWindow)
	assert.InDelta(t, 52.0, u1[2].AvgSpendEMA, 1e-9)
	assert.Equal(t, 0.0, u1[2].WindowMean)
	assert.InDelta(t, 62.5, u1[2].AllTimeMean, 1e-9)
}

func TestReplayUnsortedInput(t *testing.T) {
	cfg := DefaultConfig()

	rows, err := Replay(context.Background(), []HistoricalEvent{
		{Entity: "u1", Timestamp: 3000, Amount: 100},
		{Entity: "u1", Timestamp: 1000, Amount: 50},
		{Entity: "u1", Timestamp: 2000, Amount: 75},
	}, cfg)
	require.NoError(t, err)

	u1 := rows["u1"]
	require.Len(t, u1, 3)
	assert.Equal(t, int64(1000), u1[0].Timestamp)
	assert.Equal(t, int64(2000), u1[1].Timestamp)
	assert.Equal(t, int64(3000), u1[2].Timestamp)
	assert.InDelta(t, 52.0, u1[2].AvgSpendEMA, 1e-9) // EMA over the first two events, in time order
}

func TestReplayEntitiesAreIndependent(t *testing.T) {
	cfg := DefaultConfig()

	events := []HistoricalEvent{
		{Entity: "a", Timestamp: 1000, Amount: 10},
		{Entity: "b", Timestamp: 1500, Amount: 1000},
		{Entity: "a", Timestamp: 2000, Amount: 20},
	}

	rows, err := Replay(context.Background(), events, cfg)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	// b's large amount must not leak into a's baseline.
	a := rows["a"]
	require.Len(t, a, 2)
	assert.InDelta(t, 10.0, a[1].AvgSpendEMA, 1e-9)

	b := rows["b"]
	require.Len(t, b, 1)
	assert.Equal(t, 0.0, b[0].AvgSpendEMA)
}

// Streaming the same sequence through a live store must produce, before each
// RecordEvent, exactly the vector the offline replay attributes to that row.
func TestReplayMatchesLiveStore(t *testing.T) {
	cfg := DefaultConfig()
	cfg.WindowSeconds = 3600

	events := []HistoricalEvent{
		{Entity: "u1", Timestamp: 1000, Amount: 50},
		{Entity: "u1", Timestamp: 1400, Amount: 75},
		{Entity: "u1", Timestamp: 2000, Amount: 120.5},
		{Entity: "u1", Timestamp: 4999, Amount: 9.99},
		{Entity: "u1", Timestamp: 5000, Amount: 300},
		{Entity: "u1", Timestamp: 9400, Amount: 42},
	}

	rows, err := Replay(context.Background(), events, cfg)
	require.NoError(t, err)
	u1 := rows["u1"]
	require.Len(t, u1, len(events))

	_, store := newTestStore(t, cfg)
	ctx := context.Background()

	for i, ev := range events {
		fv, err := store.GetFeatures(ctx, ev.Entity, ev.Timestamp)
		require.NoError(t, err)
		assert.Equal(t, u1[i].CountInWindow, fv.CountInWindow, "event %d count", i)
		assert.InDelta(t, u1[i].AvgSpendEMA, fv.AverageSpend, 1e-9, "event %d avg", i)

		require.NoError(t, store.RecordEvent(ctx, ev.Entity, ev.Amount, ev.Timestamp))
	}
}

func TestReplayWindowMeanMatchesLiveStore(t *testing.T) {
	cfg := DefaultConfig()
	cfg.WindowSeconds = 3600
	cfg.Averager = AveragerWindow

	events := []HistoricalEvent{
		{Entity: "u1", Timestamp: 1000, Amount: 50},
		{Entity: "u1", Timestamp: 2000, Amount: 75},
		{Entity: "u1", Timestamp: 4700, Amount: 100},
		{Entity: "u1", Timestamp: 5500, Amount: 25},
	}

	rows, err := Replay(context.Background(), events, cfg)
	require.NoError(t, err)
	u1 := rows["u1"]

	_, store := newTestStore(t, cfg)
	ctx := context.Background()

	for i, ev := range events {
		fv, err := store.GetFeatures(ctx, ev.Entity, ev.Timestamp)
		require.NoError(t, err)
		assert.Equal(t, u1[i].CountInWindow, fv.CountInWindow, "event %d count", i)
		assert.InDelta(t, u1[i].WindowMean, fv.AverageSpend, 1e-9, "event %d mean", i)

		require.NoError(t, store.RecordEvent(ctx, ev.Entity, ev.Amount, ev.Timestamp))
	}
}
