package feature

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// SpendAverager estimates an entity's recent average spend. Two
// implementations exist: EMA (the online reference behavior, O(1) per
// event) and WindowMean (the exact rolling mean the training pipeline
// uses). They answer the same question with different smoothing; a
// deployment must use the same one for training and serving.
type SpendAverager interface {
	// Update applies one event and returns the new average.
	Update(ctx context.Context, entity string, amount float64, ts int64) (float64, error)

	// Read returns the current average as of the given timestamp, or 0.0
	// for an unseen entity.
	Read(ctx context.Context, entity string, asOf int64) (float64, error)

	// Delete clears stored aggregate state and reports whether anything
	// existed.
	Delete(ctx context.Context, entity string) (bool, error)

	// record queues this averager's per-event writes onto the facade's
	// pipeline so one recorded event updates log and aggregate in a single
	// round trip. Returns the value the pipeline will store.
	record(ctx context.Context, pipe redis.Pipeliner, entity string, amount float64, ts int64) (float64, error)
}

// EMA maintains a continuously-updated exponential moving average per
// entity, one Redis string each.
//
// Recurrence: avg' = alpha*amount + (1-alpha)*avg, applied once per event in
// arrival order. The first event initializes avg = amount exactly.
type EMA struct {
	rdb   *redis.Client
	alpha float64
	ttl   time.Duration
}

func NewEMA(rdb *redis.Client, alpha float64, ttl time.Duration) *EMA {
	return &EMA{rdb: rdb, alpha: alpha, ttl: ttl}
}

// next reads the current value and applies the recurrence. The read-compute-
// write is not serialized across concurrent writers for the same entity;
// per-entity write contention is rare and tolerated.
func (e *EMA) next(ctx context.Context, entity string, amount float64) (float64, error) {
	prev, err := e.rdb.Get(ctx, avgSpendKey(entity)).Float64()
	if errors.Is(err, redis.Nil) {
		return amount, nil
	}
	if err != nil {
		return 0, storeErr("ema_read", err)
	}
	return e.alpha*amount + (1-e.alpha)*prev, nil
}

func (e *EMA) Update(ctx context.Context, entity string, amount float64, ts int64) (float64, error) {
	pipe := e.rdb.TxPipeline()
	next, err := e.record(ctx, pipe, entity, amount, ts)
	if err != nil {
		return 0, err
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, storeErr("ema_update", err)
	}
	return next, nil
}

func (e *EMA) Read(ctx context.Context, entity string, _ int64) (float64, error) {
	v, err := e.rdb.Get(ctx, avgSpendKey(entity)).Float64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, storeErr("ema_read", err)
	}
	return v, nil
}

func (e *EMA) Delete(ctx context.Context, entity string) (bool, error) {
	n, err := e.rdb.Del(ctx, avgSpendKey(entity)).Result()
	if err != nil {
		return false, storeErr("ema_delete", err)
	}
	return n > 0, nil
}

func (e *EMA) record(ctx context.Context, pipe redis.Pipeliner, entity string, amount float64, _ int64) (float64, error) {
	next, err := e.next(ctx, entity, amount)
	if err != nil {
		return 0, err
	}
	key := avgSpendKey(entity)
	pipe.Set(ctx, key, strconv.FormatFloat(next, 'f', -1, 64), 0)
	pipe.Expire(ctx, key, e.ttl)
	return next, nil
}
