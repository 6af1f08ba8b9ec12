package feature

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Event is one monetary event in an entity's history.
type Event struct {
	Timestamp int64   `json:"timestamp"`
	Amount    float64 `json:"amount"`
}

// EventLog is the time-windowed, append-only event history. One sorted set
// per entity, scored by timestamp, with the member composed from timestamp
// and amount so that two same-second or two same-amount events stay distinct.
type EventLog struct {
	rdb *redis.Client
}

func NewEventLog(rdb *redis.Client) *EventLog {
	return &EventLog{rdb: rdb}
}

// member encodes an event as "<timestamp>:<amount>". The composite keeps
// duplicate timestamps and duplicate amounts representable simultaneously
// while the score keeps the set sortable by time.
func member(ts int64, amount float64) string {
	return strconv.FormatInt(ts, 10) + ":" + strconv.FormatFloat(amount, 'f', -1, 64)
}

func parseMember(m string, score float64) (Event, bool) {
	_, amountStr, ok := strings.Cut(m, ":")
	if !ok {
		return Event{}, false
	}
	amount, err := strconv.ParseFloat(amountStr, 64)
	if err != nil {
		return Event{}, false
	}
	return Event{Timestamp: int64(score), Amount: amount}, true
}

// Append inserts one event. A second event with the same timestamp or the
// same amount is a distinct entry; a fully identical (timestamp, amount)
// pair maps to the same member and is not duplicated.
func (l *EventLog) Append(ctx context.Context, entity string, ts int64, amount float64) error {
	err := l.rdb.ZAdd(ctx, txHistoryKey(entity), redis.Z{
		Score:  float64(ts),
		Member: member(ts, amount),
	}).Err()
	if err != nil {
		return storeErr("append", err)
	}
	return nil
}

// Expire removes entries strictly older than the cutoff. Lazy maintenance:
// Count stays correct without it, but storage and lookup cost do not.
func (l *EventLog) Expire(ctx context.Context, entity string, olderThan int64) error {
	// Exclusive upper bound: an event exactly at the cutoff is still inside
	// the inclusive query window and must survive.
	max := "(" + strconv.FormatInt(olderThan, 10)
	if err := l.rdb.ZRemRangeByScore(ctx, txHistoryKey(entity), "-inf", max).Err(); err != nil {
		return storeErr("expire", err)
	}
	return nil
}

// Count returns the number of entries with start <= timestamp <= end.
// ZCOUNT is O(log N); this sits on the scoring hot path.
func (l *EventLog) Count(ctx context.Context, entity string, start, end int64) (int64, error) {
	n, err := l.rdb.ZCount(ctx, txHistoryKey(entity),
		strconv.FormatInt(start, 10),
		strconv.FormatInt(end, 10)).Result()
	if err != nil {
		return 0, storeErr("count", err)
	}
	return n, nil
}

// Range returns events with start <= timestamp <= end in ascending
// timestamp order. Audit/debug use; not on the hot path.
func (l *EventLog) Range(ctx context.Context, entity string, start, end int64) ([]Event, error) {
	zs, err := l.rdb.ZRangeByScoreWithScores(ctx, txHistoryKey(entity), &redis.ZRangeBy{
		Min: strconv.FormatInt(start, 10),
		Max: strconv.FormatInt(end, 10),
	}).Result()
	if err != nil {
		return nil, storeErr("range", err)
	}

	events := make([]Event, 0, len(zs))
	for _, z := range zs {
		m, _ := z.Member.(string)
		if ev, ok := parseMember(m, z.Score); ok {
			events = append(events, ev)
		}
	}
	// ZRANGEBYSCORE orders equal scores lexically by member; normalize to a
	// stable timestamp order.
	sort.SliceStable(events, func(i, j int) bool { return events[i].Timestamp < events[j].Timestamp })
	return events, nil
}

// SetTTL refreshes the absolute expiry of the whole per-entity record,
// decoupled from the logical window. Called on every append so active
// entities never expire mid-use.
func (l *EventLog) SetTTL(ctx context.Context, entity string, ttl time.Duration) error {
	if err := l.rdb.Expire(ctx, txHistoryKey(entity), ttl).Err(); err != nil {
		return storeErr("set_ttl", err)
	}
	return nil
}

// Delete removes all events for the entity and reports whether anything
// existed.
func (l *EventLog) Delete(ctx context.Context, entity string) (bool, error) {
	n, err := l.rdb.Del(ctx, txHistoryKey(entity)).Result()
	if err != nil {
		return false, storeErr("delete", err)
	}
	return n > 0, nil
}
