package feature

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// FeatureVector is the request-scoped read result handed to the classifier.
// Never persisted; recomputed per request.
type FeatureVector struct {
	CountInWindow float64 `json:"count_in_window"`
	AverageSpend  float64 `json:"average_spend"`
}

// HealthReport is the fixed-shape health payload. Store-specific counters
// ride along as opaque extras so callers never depend on a dynamic shape.
type HealthReport struct {
	Status    string            `json:"status"` // "healthy" | "unhealthy"
	LatencyMs float64           `json:"latency_ms"`
	Error     string            `json:"error,omitempty"`
	Extras    map[string]string `json:"extras,omitempty"`
}

const (
	StatusHealthy   = "healthy"
	StatusUnhealthy = "unhealthy"
)

// Store composes the event log and the spend averager into the atomic
// per-call feature API. The unit of atomicity is one call: a recorded event
// updates both structures in a single pipelined round trip, and a read
// observes both in one round trip. There is no cross-call mutual exclusion.
//
// The backing client is a passed-in dependency, never a package singleton;
// tests isolate themselves by handing in a client on its own database.
type Store struct {
	rdb    *redis.Client
	log    *EventLog
	avg    SpendAverager
	cfg    Config
	logger *zap.Logger
}

// NewStore builds the facade on an already-connected client. Connection
// failures belong to the client's constructor; every per-call failure here
// surfaces as ErrBackingStore.
func NewStore(rdb *redis.Client, cfg Config, logger *zap.Logger) *Store {
	var avg SpendAverager
	switch cfg.Averager {
	case AveragerWindow:
		avg = NewWindowMean(rdb, cfg.WindowSeconds)
	default:
		avg = NewEMA(rdb, cfg.Alpha, cfg.KeyTTL)
	}

	return &Store{
		rdb:    rdb,
		log:    NewEventLog(rdb),
		avg:    avg,
		cfg:    cfg,
		logger: logger,
	}
}

// EventLog exposes the owned log for audit tooling and the exact-mean
// averager. Mutations must still go through RecordEvent.
func (s *Store) EventLog() *EventLog { return s.log }

// Averager exposes the configured spend averager.
func (s *Store) Averager() SpendAverager { return s.avg }

// Config returns the feature definitions this store was built with.
func (s *Store) Config() Config { return s.cfg }

// RecordEvent records one transaction for an entity: append to the log,
// expire entries that fell out of the window, refresh both TTLs, and update
// the spend aggregate — all queued onto one transactional pipeline so no
// concurrent reader sees the log updated but the aggregate stale.
func (s *Store) RecordEvent(ctx context.Context, entity string, amount float64, ts int64) error {
	if ts == 0 {
		ts = time.Now().Unix()
	}
	cutoff := ts - s.cfg.WindowSeconds
	txKey := txHistoryKey(entity)

	pipe := s.rdb.TxPipeline()
	pipe.ZAdd(ctx, txKey, redis.Z{Score: float64(ts), Member: member(ts, amount)})
	pipe.ZRemRangeByScore(ctx, txKey, "-inf", "("+strconv.FormatInt(cutoff, 10))
	pipe.Expire(ctx, txKey, s.cfg.KeyTTL)
	if _, err := s.avg.record(ctx, pipe, entity, amount, ts); err != nil {
		return err
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return storeErr("record_event", err)
	}
	return nil
}

// GetFeatures returns the feature vector for an entity as of the given
// timestamp (0 = now). No side effects: two calls with the same arguments
// and no intervening RecordEvent return identical results.
//
// With the EMA averager both reads ride one transactional pipeline, so the
// count and the average come from a single consistent snapshot.
func (s *Store) GetFeatures(ctx context.Context, entity string, asOf int64) (FeatureVector, error) {
	if asOf == 0 {
		asOf = time.Now().Unix()
	}
	start := asOf - s.cfg.WindowSeconds

	if _, ok := s.avg.(*EMA); ok {
		pipe := s.rdb.TxPipeline()
		countCmd := pipe.ZCount(ctx, txHistoryKey(entity),
			strconv.FormatInt(start, 10), strconv.FormatInt(asOf, 10))
		getCmd := pipe.Get(ctx, avgSpendKey(entity))
		if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
			return FeatureVector{}, storeErr("get_features", err)
		}

		avg := 0.0
		if v, err := getCmd.Float64(); err == nil {
			avg = v
		}
		return FeatureVector{
			CountInWindow: float64(countCmd.Val()),
			AverageSpend:  avg,
		}, nil
	}

	count, err := s.log.Count(ctx, entity, start, asOf)
	if err != nil {
		return FeatureVector{}, err
	}
	avg, err := s.avg.Read(ctx, entity, asOf)
	if err != nil {
		return FeatureVector{}, err
	}
	return FeatureVector{
		CountInWindow: float64(count),
		AverageSpend:  avg,
	}, nil
}

// GetHistory returns the entity's events within the lookback window, sorted
// newest first. The reordering is a contract of the facade; the log stores
// ascending.
func (s *Store) GetHistory(ctx context.Context, entity string, lookbackHours int, asOf int64) ([]Event, error) {
	if asOf == 0 {
		asOf = time.Now().Unix()
	}
	start := asOf - int64(lookbackHours)*3600

	events, err := s.log.Range(ctx, entity, start, asOf)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(events, func(i, j int) bool { return events[i].Timestamp > events[j].Timestamp })
	return events, nil
}

// EraseEntity removes both per-entity structures (right to erasure).
// Returns how many actually existed, 0 to 2.
func (s *Store) EraseEntity(ctx context.Context, entity string) (int, error) {
	n, err := s.rdb.Del(ctx, txHistoryKey(entity), avgSpendKey(entity)).Result()
	if err != nil {
		return 0, storeErr("erase_entity", err)
	}
	return int(n), nil
}

// HealthCheck reports reachability and latency of the backing store. Never
// returns an error: failures are captured in the report's status.
func (s *Store) HealthCheck(ctx context.Context) HealthReport {
	start := time.Now()
	if err := s.rdb.Ping(ctx).Err(); err != nil {
		return HealthReport{Status: StatusUnhealthy, Error: err.Error()}
	}
	report := HealthReport{
		Status:    StatusHealthy,
		LatencyMs: float64(time.Since(start).Microseconds()) / 1000.0,
	}

	// Store stats are best-effort decoration; a store that answers PING but
	// not INFO is still healthy.
	if info, err := s.rdb.Info(ctx, "stats").Result(); err == nil {
		report.Extras = parseInfoFields(info, "connected_clients", "total_commands_processed")
	}
	return report
}

// Close releases the backing client's connection pool.
func (s *Store) Close() error {
	return s.rdb.Close()
}

// parseInfoFields extracts selected "key:value" lines from a Redis INFO
// section reply.
func parseInfoFields(info string, fields ...string) map[string]string {
	out := make(map[string]string)
	for _, line := range strings.Split(info, "\n") {
		line = strings.TrimSpace(line)
		k, v, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		for _, f := range fields {
			if k == f {
				out[k] = v
			}
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
