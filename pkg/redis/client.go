package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/Sibikrish3000/realtime-fraud-engine/pkg/utils"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// ErrConnect indicates the backing store was unreachable at construction time.
// This is fatal for the feature store itself; the owning service may still
// choose to run degraded without one.
var ErrConnect = errors.New("redis: connection failed")

// Config holds the connection settings for the backing store.
type Config struct {
	Addr     string
	Password string
	DB       int

	// PoolSize bounds the number of pooled connections shared by all
	// concurrent request workers.
	PoolSize     int
	MinIdleConns int

	// DialTimeout guards connection establishment; OpTimeout guards each
	// read/write. Both stay well under the scoring latency budget.
	DialTimeout time.Duration
	OpTimeout   time.Duration
}

// ConfigFromEnv builds a Config from environment variables.
// Environment variables:
//   - REDIS_HOST: Redis host (default: "localhost")
//   - REDIS_PORT: Redis port (default: "6379")
//   - REDIS_PASSWORD: Redis password (default: "")
//   - REDIS_DB: Redis database number (default: 0)
//   - REDIS_POOL_SIZE: connection pool size (default: 50)
//   - REDIS_DIAL_TIMEOUT: connect timeout (default: 2s)
//   - REDIS_OP_TIMEOUT: per-operation timeout (default: 1s)
func ConfigFromEnv() Config {
	host := utils.Env("REDIS_HOST", "localhost")
	port := utils.Env("REDIS_PORT", "6379")
	db, _ := strconv.Atoi(utils.Env("REDIS_DB", "0"))

	return Config{
		Addr:         fmt.Sprintf("%s:%s", host, port),
		Password:     utils.Env("REDIS_PASSWORD", ""),
		DB:           db,
		PoolSize:     utils.EnvInt("REDIS_POOL_SIZE", 50),
		MinIdleConns: utils.EnvInt("REDIS_MIN_IDLE_CONNS", 2),
		DialTimeout:  utils.EnvDuration("REDIS_DIAL_TIMEOUT", 2*time.Second),
		OpTimeout:    utils.EnvDuration("REDIS_OP_TIMEOUT", time.Second),
	}
}

// Client wraps the pooled Redis client shared by the feature store and the
// transaction stream consumer.
type Client struct {
	rdb    *redis.Client
	logger *zap.Logger
}

// NewClient connects to Redis and verifies reachability with a ping.
// A failed ping is reported as ErrConnect.
func NewClient(ctx context.Context, cfg Config, logger *zap.Logger) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,

		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,

		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.OpTimeout,
		WriteTimeout: cfg.OpTimeout,
	})

	pingCtx, cancel := context.WithTimeout(ctx, cfg.DialTimeout)
	defer cancel()

	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("%w: %s: %v", ErrConnect, cfg.Addr, err)
	}

	logger.Info("Connected to Redis",
		zap.String("addr", cfg.Addr),
		zap.Int("db", cfg.DB),
		zap.Int("poolSize", cfg.PoolSize))

	return &Client{rdb: rdb, logger: logger}, nil
}

// NewClientFromRedis wraps an already-constructed go-redis client. Used by
// tests to point the stack at an isolated instance.
func NewClientFromRedis(rdb *redis.Client, logger *zap.Logger) *Client {
	return &Client{rdb: rdb, logger: logger}
}

// Close tears down the connection pool.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Unwrap returns the underlying go-redis client for components that need the
// full Redis API (the feature store's sorted-set and pipeline operations).
func (c *Client) Unwrap() *redis.Client {
	return c.rdb
}

// Health pings the store and returns the observed round-trip latency.
func (c *Client) Health(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	if err := c.rdb.Ping(ctx).Err(); err != nil {
		return 0, err
	}
	return time.Since(start), nil
}

// =============================================================================
// Redis Streams API (transaction event ingestion)
// =============================================================================

// XAdd appends a transaction event to a stream. Best-effort: failures are
// logged, not returned, so publishing never blocks the caller's request path.
func (c *Client) XAdd(ctx context.Context, stream string, values map[string]interface{}) string {
	id, err := c.rdb.XAdd(ctx, &redis.XAddArgs{Stream: stream, Values: values}).Result()
	if err != nil {
		c.logger.Warn("Failed to add to Redis stream",
			zap.String("stream", stream),
			zap.Error(err))
		return ""
	}
	return id
}

// XGroupCreateMkStream creates a consumer group, creating the stream if it
// doesn't exist. An already-existing group is not an error.
func (c *Client) XGroupCreateMkStream(ctx context.Context, stream, group, start string) error {
	err := c.rdb.XGroupCreateMkStream(ctx, stream, group, start).Err()
	if err != nil && err.Error() == "BUSYGROUP Consumer Group name already exists" {
		return nil
	}
	return err
}

// XReadGroup reads undelivered entries for a consumer group.
// block <= 0 issues a non-blocking read.
func (c *Client) XReadGroup(ctx context.Context, group, consumer, stream string, count int64, block time.Duration) ([]redis.XStream, error) {
	if block <= 0 {
		block = -1
	}
	return c.rdb.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    group,
		Consumer: consumer,
		Streams:  []string{stream, ">"},
		Count:    count,
		Block:    block,
	}).Result()
}

// XAck acknowledges processed entries.
func (c *Client) XAck(ctx context.Context, stream, group string, ids ...string) (int64, error) {
	return c.rdb.XAck(ctx, stream, group, ids...).Result()
}
