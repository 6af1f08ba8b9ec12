package feature

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// WindowMean computes the exact mean over the live window from the event
// log, the same definition the offline training pipeline uses for its
// rolling spend baseline. Unlike EMA it keeps no aggregate state of its
// own: every read walks the entity's in-window entries, so cost grows with
// window density. Select it when exactness matters more than the latency
// budget, or to eliminate train/serve smoothing skew.
type WindowMean struct {
	log    *EventLog
	window int64
}

func NewWindowMean(rdb *redis.Client, windowSeconds int64) *WindowMean {
	return &WindowMean{log: NewEventLog(rdb), window: windowSeconds}
}

// Update is a no-op: the mean derives entirely from the event log, which
// the facade appends to in the same recorded-event batch. Returns the mean
// including the event being recorded.
func (w *WindowMean) Update(ctx context.Context, entity string, amount float64, ts int64) (float64, error) {
	prior, err := w.Read(ctx, entity, ts)
	if err != nil {
		return 0, err
	}
	n, err := w.log.Count(ctx, entity, ts-w.window, ts)
	if err != nil {
		return 0, err
	}
	return (prior*float64(n) + amount) / float64(n+1), nil
}

func (w *WindowMean) Read(ctx context.Context, entity string, asOf int64) (float64, error) {
	events, err := w.log.Range(ctx, entity, asOf-w.window, asOf)
	if err != nil {
		return 0, err
	}
	if len(events) == 0 {
		return 0, nil
	}
	var sum float64
	for _, ev := range events {
		sum += ev.Amount
	}
	return sum / float64(len(events)), nil
}

// Delete has nothing of its own to remove; the event log owns the state.
func (w *WindowMean) Delete(ctx context.Context, entity string) (bool, error) {
	return false, nil
}

func (w *WindowMean) record(ctx context.Context, pipe redis.Pipeliner, entity string, amount float64, ts int64) (float64, error) {
	// Nothing to queue; the log append in the same batch is the update.
	return 0, nil
}
