package feature

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWindowMeanRead(t *testing.T) {
	_, rdb := newTestRedis(t)
	log := NewEventLog(rdb)
	wm := NewWindowMean(rdb, 86400)
	ctx := context.Background()

	require.NoError(t, log.Append(ctx, "u1", 1000, 50))
	require.NoError(t, log.Append(ctx, "u1", 4600, 75))
	require.NoError(t, log.Append(ctx, "u1", 8200, 100))

	got, err := wm.Read(ctx, "u1", 9000)
	require.NoError(t, err)
	assert.InDelta(t, 75.0, got, 1e-9)
}

func TestWindowMeanExcludesOutOfWindow(t *testing.T) {
	_, rdb := newTestRedis(t)
	log := NewEventLog(rdb)
	wm := NewWindowMean(rdb, 3600)
	ctx := context.Background()

	require.NoError(t, log.Append(ctx, "u1", 1000, 500)) // outside the 1h window
	require.NoError(t, log.Append(ctx, "u1", 8000, 10))
	require.NoError(t, log.Append(ctx, "u1", 9000, 20))

	got, err := wm.Read(ctx, "u1", 9000)
	require.NoError(t, err)
	assert.InDelta(t, 15.0, got, 1e-9)
}

func TestWindowMeanUnseenEntity(t *testing.T) {
	_, rdb := newTestRedis(t)
	wm := NewWindowMean(rdb, 86400)

	got, err := wm.Read(context.Background(), "ghost", 9000)
	require.NoError(t, err)
	assert.Equal(t, 0.0, got)
}

func TestWindowMeanUpdateIncludesNewEvent(t *testing.T) {
	_, rdb := newTestRedis(t)
	log := NewEventLog(rdb)
	wm := NewWindowMean(rdb, 86400)
	ctx := context.Background()

	require.NoError(t, log.Append(ctx, "u1", 1000, 50))
	require.NoError(t, log.Append(ctx, "u1", 2000, 70))

	// The event itself is not in the log yet; Update folds it in.
	got, err := wm.Update(ctx, "u1", 90, 3000)
	require.NoError(t, err)
	assert.InDelta(t, 70.0, got, 1e-9)
}
