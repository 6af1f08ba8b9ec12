package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/alitto/pond/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// ErrMalformed marks a stream entry that cannot be parsed into a
// transaction. Malformed entries are acknowledged and skipped so one bad
// producer cannot wedge the consumer group.
var ErrMalformed = errors.New("redis: malformed transaction entry")

// Transaction is one parsed transaction-recorded event from the stream.
type Transaction struct {
	ID        string // stream entry ID
	EntityID  string
	Amount    float64
	Timestamp int64
}

// TransactionHandler processes one transaction. Returning an error leaves
// the entry unacknowledged for redelivery.
type TransactionHandler func(ctx context.Context, tx Transaction) error

// ConsumerConfig configures a StreamConsumer.
type ConsumerConfig struct {
	// Stream is the Redis stream carrying transaction events (required).
	Stream string

	// Group and Consumer identify this reader within the consumer group
	// (both required).
	Group    string
	Consumer string

	// Count is the max entries per batch. Default: 100.
	Count int64

	// Block is how long a read waits for new entries. <= 0 reads
	// non-blocking. Default: 5 seconds.
	Block time.Duration

	// IdleWait is the pause after an empty non-blocking read. Default:
	// 50ms.
	IdleWait time.Duration

	// RetryInterval / MaxRetryInterval bound the backoff after read
	// errors. Defaults: 1s / 30s.
	RetryInterval    time.Duration
	MaxRetryInterval time.Duration

	// Workers sizes the pool that records entities concurrently. Default:
	// 4.
	Workers int

	// Logger for logging. If nil, uses a no-op logger.
	Logger *zap.Logger
}

// StreamConsumer consumes transaction events from a Redis stream with a
// consumer group, automatic backoff on read errors, and per-entity ordered
// processing: entries for different entities run in parallel, entries for
// the same entity apply in stream order so the spend recurrence stays
// meaningful.
type StreamConsumer struct {
	client *Client
	config ConsumerConfig
	logger *zap.Logger
	pool   pond.Pool
}

// NewStreamConsumer creates a new stream consumer.
func NewStreamConsumer(client *Client, config ConsumerConfig) (*StreamConsumer, error) {
	if client == nil {
		return nil, errors.New("redis client is required")
	}
	if config.Stream == "" {
		return nil, errors.New("stream name is required")
	}
	if config.Group == "" || config.Consumer == "" {
		return nil, errors.New("group and consumer names are required")
	}

	if config.Count == 0 {
		config.Count = 100
	}
	if config.Block == 0 {
		config.Block = 5 * time.Second
	}
	if config.IdleWait == 0 {
		config.IdleWait = 50 * time.Millisecond
	}
	if config.RetryInterval == 0 {
		config.RetryInterval = time.Second
	}
	if config.MaxRetryInterval == 0 {
		config.MaxRetryInterval = 30 * time.Second
	}
	if config.Workers == 0 {
		config.Workers = 4
	}

	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &StreamConsumer{
		client: client,
		config: config,
		logger: logger,
		pool:   pond.NewPool(config.Workers),
	}, nil
}

// Run consumes until the context is cancelled. Successfully handled and
// malformed entries are acknowledged; entries whose handler failed are left
// pending for redelivery.
func (sc *StreamConsumer) Run(ctx context.Context, handler TransactionHandler) error {
	if err := sc.client.XGroupCreateMkStream(ctx, sc.config.Stream, sc.config.Group, "0"); err != nil {
		return fmt.Errorf("create consumer group: %w", err)
	}
	sc.logger.Info("Consumer group ready",
		zap.String("stream", sc.config.Stream),
		zap.String("group", sc.config.Group),
		zap.String("consumer", sc.config.Consumer))

	retryInterval := sc.config.RetryInterval

	for {
		select {
		case <-ctx.Done():
			sc.logger.Info("Stream consumer shutting down", zap.String("stream", sc.config.Stream))
			sc.pool.StopAndWait()
			return ctx.Err()
		default:
		}

		streams, err := sc.client.XReadGroup(ctx,
			sc.config.Group, sc.config.Consumer, sc.config.Stream,
			sc.config.Count, sc.config.Block)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			if errors.Is(err, redis.Nil) {
				// No entries available; avoid a tight loop when reads are
				// non-blocking.
				if sc.config.Block <= 0 {
					select {
					case <-time.After(sc.config.IdleWait):
					case <-ctx.Done():
						return ctx.Err()
					}
				}
				continue
			}

			sc.logger.Warn("Error reading from stream, will retry",
				zap.String("stream", sc.config.Stream),
				zap.Error(err),
				zap.Duration("retryIn", retryInterval))

			select {
			case <-time.After(retryInterval):
				retryInterval = min(retryInterval*2, sc.config.MaxRetryInterval)
			case <-ctx.Done():
				return ctx.Err()
			}
			continue
		}

		retryInterval = sc.config.RetryInterval

		for _, stream := range streams {
			sc.processBatch(ctx, handler, stream.Messages)
		}
	}
}

// processBatch groups a batch by entity and hands each entity's ordered
// slice to the worker pool as one task.
func (sc *StreamConsumer) processBatch(ctx context.Context, handler TransactionHandler, msgs []redis.XMessage) {
	byEntity := make(map[string][]Transaction)
	order := make([]string, 0)

	for _, msg := range msgs {
		tx, err := parseTransaction(msg)
		if err != nil {
			sc.logger.Warn("Skipping malformed stream entry",
				zap.String("stream", sc.config.Stream),
				zap.String("id", msg.ID),
				zap.Error(err))
			sc.ack(ctx, msg.ID)
			continue
		}
		if _, seen := byEntity[tx.EntityID]; !seen {
			order = append(order, tx.EntityID)
		}
		byEntity[tx.EntityID] = append(byEntity[tx.EntityID], tx)
	}

	group := sc.pool.NewGroup()

	for _, entity := range order {
		txs := byEntity[entity]
		group.Submit(func() {
			for _, tx := range txs {
				if err := handler(ctx, tx); err != nil {
					sc.logger.Error("Error processing transaction",
						zap.String("stream", sc.config.Stream),
						zap.String("id", tx.ID),
						zap.String("entity", tx.EntityID),
						zap.Error(err))
					// Leave this and the entity's remaining entries
					// unacked; redelivery preserves their order.
					return
				}
				sc.ack(ctx, tx.ID)
			}
		})
	}

	_ = group.Wait()
}

func (sc *StreamConsumer) ack(ctx context.Context, id string) {
	if _, err := sc.client.XAck(ctx, sc.config.Stream, sc.config.Group, id); err != nil {
		sc.logger.Warn("Failed to acknowledge entry",
			zap.String("stream", sc.config.Stream),
			zap.String("id", id),
			zap.Error(err))
	}
}

// parseTransaction extracts entity_id/amount/timestamp fields from a
// stream entry.
func parseTransaction(msg redis.XMessage) (Transaction, error) {
	entity, _ := msg.Values["entity_id"].(string)
	if entity == "" {
		return Transaction{}, fmt.Errorf("%w: missing entity_id", ErrMalformed)
	}

	amount, err := fieldFloat(msg.Values, "amount")
	if err != nil || amount <= 0 {
		return Transaction{}, fmt.Errorf("%w: bad amount", ErrMalformed)
	}

	ts, err := fieldInt(msg.Values, "timestamp")
	if err != nil || ts <= 0 {
		return Transaction{}, fmt.Errorf("%w: bad timestamp", ErrMalformed)
	}

	return Transaction{ID: msg.ID, EntityID: entity, Amount: amount, Timestamp: ts}, nil
}

func fieldFloat(values map[string]interface{}, key string) (float64, error) {
	switch v := values[key].(type) {
	case float64:
		return v, nil
	case string:
		return strconv.ParseFloat(v, 64)
	default:
		return 0, fmt.Errorf("missing %s", key)
	}
}

func fieldInt(values map[string]interface{}, key string) (int64, error) {
	switch v := values[key].(type) {
	case int64:
		return v, nil
	case string:
		return strconv.ParseInt(v, 10, 64)
	default:
		return 0, fmt.Errorf("missing %s", key)
	}
}
