package redis

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestClient(t *testing.T) (*miniredis.Miniredis, *Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, NewClientFromRedis(rdb, zap.NewNop())
}

func TestParseTransaction(t *testing.T) {
	tests := []struct {
		name    string
		values  map[string]interface{}
		want    Transaction
		wantErr bool
	}{
		{
			name:   "valid",
			values: map[string]interface{}{"entity_id": "u1", "amount": "49.99", "timestamp": "1000"},
			want:   Transaction{ID: "1-1", EntityID: "u1", Amount: 49.99, Timestamp: 1000},
		},
		{
			name:    "missing entity",
			values:  map[string]interface{}{"amount": "49.99", "timestamp": "1000"},
			wantErr: true,
		},
		{
			name:    "zero amount",
			values:  map[string]interface{}{"entity_id": "u1", "amount": "0", "timestamp": "1000"},
			wantErr: true,
		},
		{
			name:    "negative amount",
			values:  map[string]interface{}{"entity_id": "u1", "amount": "-5", "timestamp": "1000"},
			wantErr: true,
		},
		{
			name:    "bad timestamp",
			values:  map[string]interface{}{"entity_id": "u1", "amount": "10", "timestamp": "later"},
			wantErr: true,
		},
		{
			name:    "missing timestamp",
			values:  map[string]interface{}{"entity_id": "u1", "amount": "10"},
			wantErr: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := parseTransaction(redis.XMessage{ID: "1-1", Values: tc.values})
			if tc.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrMalformed)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestNewStreamConsumerValidation(t *testing.T) {
	_, client := newTestClient(t)

	_, err := NewStreamConsumer(nil, ConsumerConfig{Stream: "s", Group: "g", Consumer: "c"})
	assert.Error(t, err)

	_, err = NewStreamConsumer(client, ConsumerConfig{Group: "g", Consumer: "c"})
	assert.Error(t, err)

	_, err = NewStreamConsumer(client, ConsumerConfig{Stream: "s", Consumer: "c"})
	assert.Error(t, err)

	_, err = NewStreamConsumer(client, ConsumerConfig{Stream: "s", Group: "g", Consumer: "c"})
	assert.NoError(t, err)
}

func TestXGroupCreateIsIdempotent(t *testing.T) {
	_, client := newTestClient(t)
	ctx := context.Background()

	require.NoError(t, client.XGroupCreateMkStream(ctx, "txs", "g", "0"))
	require.NoError(t, client.XGroupCreateMkStream(ctx, "txs", "g", "0"))
}

func TestConsumerProcessesPerEntityInOrder(t *testing.T) {
	_, client := newTestClient(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	const stream = "transactions"
	seed := []struct {
		entity string
		amount string
	}{
		{"a", "10"}, {"b", "100"}, {"a", "20"}, {"b", "200"}, {"a", "30"},
	}
	for i, s := range seed {
		id := client.XAdd(ctx, stream, map[string]interface{}{
			"entity_id": s.entity,
			"amount":    s.amount,
			"timestamp": "100" + string(rune('0'+i)),
		})
		require.NotEmpty(t, id)
	}
	// One malformed entry, which must be acked and skipped.
	require.NotEmpty(t, client.XAdd(ctx, stream, map[string]interface{}{"amount": "5"}))

	consumer, err := NewStreamConsumer(client, ConsumerConfig{
		Stream:   stream,
		Group:    "g",
		Consumer: "c1",
		Block:    -1,
		IdleWait: 5 * time.Millisecond,
		Workers:  4,
	})
	require.NoError(t, err)

	var mu sync.Mutex
	got := make(map[string][]float64)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = consumer.Run(ctx, func(_ context.Context, tx Transaction) error {
			mu.Lock()
			got[tx.EntityID] = append(got[tx.EntityID], tx.Amount)
			mu.Unlock()
			return nil
		})
	}()

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got["a"]) == 3 && len(got["b"]) == 2
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	<-done

	// Entries for the same entity apply in stream order.
	assert.Equal(t, []float64{10, 20, 30}, got["a"])
	assert.Equal(t, []float64{100, 200}, got["b"])

	// Everything was acknowledged, the malformed entry included.
	pending, err := client.Unwrap().XPending(context.Background(), stream, "g").Result()
	require.NoError(t, err)
	assert.Equal(t, int64(0), pending.Count)
}

func TestConsumerLeavesFailedEntriesPending(t *testing.T) {
	_, client := newTestClient(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	const stream = "transactions"
	require.NotEmpty(t, client.XAdd(ctx, stream, map[string]interface{}{
		"entity_id": "bad", "amount": "10", "timestamp": "1000",
	}))
	require.NotEmpty(t, client.XAdd(ctx, stream, map[string]interface{}{
		"entity_id": "bad", "amount": "20", "timestamp": "1001",
	}))
	require.NotEmpty(t, client.XAdd(ctx, stream, map[string]interface{}{
		"entity_id": "good", "amount": "30", "timestamp": "1002",
	}))

	consumer, err := NewStreamConsumer(client, ConsumerConfig{
		Stream:   stream,
		Group:    "g",
		Consumer: "c1",
		Block:    -1,
		IdleWait: 5 * time.Millisecond,
	})
	require.NoError(t, err)

	var mu sync.Mutex
	var handled []string

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = consumer.Run(ctx, func(_ context.Context, tx Transaction) error {
			mu.Lock()
			handled = append(handled, tx.EntityID)
			mu.Unlock()
			if tx.EntityID == "bad" {
				return errors.New("store down")
			}
			return nil
		})
	}()

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(handled) >= 2
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	<-done

	// The first bad entry failed, so its sibling was never attempted; both
	// stay pending for redelivery while the good entity was acked.
	mu.Lock()
	assert.Equal(t, 1, countOf(handled, "bad"))
	assert.Equal(t, 1, countOf(handled, "good"))
	mu.Unlock()

	pending, err := client.Unwrap().XPending(context.Background(), stream, "g").Result()
	require.NoError(t, err)
	assert.Equal(t, int64(2), pending.Count)
}

func countOf(xs []string, want string) int {
	n := 0
	for _, x := range xs {
		if x == want {
			n++
		}
	}
	return n
}
