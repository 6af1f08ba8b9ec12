package feature

import (
	"context"
	"sort"

	"github.com/alitto/pond/v2"
	"github.com/puzpuzpuz/xsync/v4"
)

// HistoricalEvent is one row of an offline transaction log.
type HistoricalEvent struct {
	Entity    string
	Timestamp int64
	Amount    float64
}

// FeatureRow is the feature vector for one historical event, computed from
// the events strictly before it, exactly as the live facade would have
// answered GetFeatures(entity, ts) right before recording the event. Rows
// built this way are safe for training: no leakage of the row's own event.
type FeatureRow struct {
	Timestamp int64
	Amount    float64

	// CountInWindow is the number of prior events with
	// ts-window <= t <= ts, inclusive both ends.
	CountInWindow float64

	// AvgSpendEMA is the EMA over prior events (0 when none), the online
	// store's answer before this event is recorded.
	AvgSpendEMA float64

	// WindowMean is the exact mean of prior in-window amounts (0 when
	// none), the training pipeline's rolling baseline.
	WindowMean float64

	// AllTimeMean is the expanding mean of all prior amounts (0 when
	// none).
	AllTimeMean float64
}

// Replay recomputes features for a historical event log using the same
// definitions the live store applies incrementally. This is the offline
// half of the train/serve equivalence contract: for any event sequence,
// replaying it here and streaming it through a live Store must agree on
// the windowed count and the EMA chain.
//
// Entities are independent, so they replay in parallel; within an entity
// events apply in strict timestamp order.
func Replay(ctx context.Context, events []HistoricalEvent, cfg Config) (map[string][]FeatureRow, error) {
	byEntity := make(map[string][]HistoricalEvent)
	for _, ev := range events {
		byEntity[ev.Entity] = append(byEntity[ev.Entity], ev)
	}

	results := xsync.NewMap[string, []FeatureRow]()
	pool := pond.NewPool(8, pond.WithContext(ctx))
	group := pool.NewGroup()

	for entity, evs := range byEntity {
		group.Submit(func() {
			results.Store(entity, replayEntity(evs, cfg))
		})
	}

	if err := group.Wait(); err != nil {
		return nil, err
	}
	pool.StopAndWait()

	out := make(map[string][]FeatureRow, results.Size())
	results.Range(func(entity string, rows []FeatureRow) bool {
		out[entity] = rows
		return true
	})
	return out, nil
}

// replayEntity walks one entity's events in timestamp order, maintaining
// the EMA recurrence, an expanding sum, and a two-pointer sliding window
// over the sorted slice. O(n) for n events.
func replayEntity(evs []HistoricalEvent, cfg Config) []FeatureRow {
	sort.SliceStable(evs, func(i, j int) bool { return evs[i].Timestamp < evs[j].Timestamp })

	rows := make([]FeatureRow, 0, len(evs))

	var (
		ema       float64
		emaInit   bool
		totalSum  float64
		windowSum float64
		left      int // index of the oldest event still in window
	)

	for i, ev := range evs {
		// Slide the window: evict prior events older than ts-window.
		// Boundary events (exactly window old) stay, matching the
		// inclusive range query.
		cutoff := ev.Timestamp - cfg.WindowSeconds
		for left < i && evs[left].Timestamp < cutoff {
			windowSum -= evs[left].Amount
			left++
		}

		row := FeatureRow{
			Timestamp:     ev.Timestamp,
			Amount:        ev.Amount,
			CountInWindow: float64(i - left),
		}
		if emaInit {
			row.AvgSpendEMA = ema
		}
		if i > left {
			row.WindowMean = windowSum / float64(i-left)
		}
		if i > 0 {
			row.AllTimeMean = totalSum / float64(i)
		}
		rows = append(rows, row)

		// Apply this event for the rows after it.
		if !emaInit {
			ema = ev.Amount
			emaInit = true
		} else {
			ema = cfg.Alpha*ev.Amount + (1-cfg.Alpha)*ema
		}
		totalSum += ev.Amount
		windowSum += ev.Amount
	}

	return rows
}
