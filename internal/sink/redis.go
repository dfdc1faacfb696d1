package sink

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spaolacci/murmur3"

	simerrors "github.com/arkilian/fraudsim/internal/errors"
	"github.com/arkilian/fraudsim/pkg/types"
)

// RedisStreamConfig holds configuration for the Redis stream sink.
type RedisStreamConfig struct {
	Addr     string
	Password string
	DB       int
	// Stream is the stream key, or the key prefix when Shards > 1.
	Stream string
	// Shards spreads records over Stream:0 .. Stream:Shards-1 by partition key.
	Shards int
	// MaxLen approximately caps each stream; zero disables trimming.
	MaxLen int64
	// MaxRetries bounds retries of failed XADDs.
	MaxRetries int
	// RetryBaseDelay is the first backoff interval.
	RetryBaseDelay time.Duration
}

// DefaultRedisStreamConfig returns the default Redis stream configuration.
func DefaultRedisStreamConfig() RedisStreamConfig {
	return RedisStreamConfig{
		Addr:           "localhost:6379",
		Stream:         "transactions",
		Shards:         1,
		MaxRetries:     3,
		RetryBaseDelay: 100 * time.Millisecond,
	}
}

// RedisStream appends transactions to Redis streams with XADD.
type RedisStream struct {
	client *redis.Client
	cfg    RedisStreamConfig
	retry  retryPolicy
}

// NewRedisStream connects to Redis and verifies the connection.
func NewRedisStream(ctx context.Context, cfg RedisStreamConfig) (*RedisStream, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, simerrors.NewSinkError(simerrors.CodeSinkUnavailable,
			fmt.Sprintf("failed to connect to redis at %s", cfg.Addr), err)
	}
	return NewRedisStreamWithClient(client, cfg), nil
}

// NewRedisStreamWithClient creates a Redis stream sink over an existing client.
func NewRedisStreamWithClient(client *redis.Client, cfg RedisStreamConfig) *RedisStream {
	return &RedisStream{
		client: client,
		cfg:    cfg,
		retry: retryPolicy{
			maxRetries: cfg.MaxRetries,
			baseDelay:  cfg.RetryBaseDelay,
		},
	}
}

// StreamFor returns the stream key a partition key routes to.
func (r *RedisStream) StreamFor(partitionKey string) string {
	if r.cfg.Shards <= 1 {
		return r.cfg.Stream
	}
	shard := murmur3.Sum32([]byte(partitionKey)) % uint32(r.cfg.Shards)
	return fmt.Sprintf("%s:%d", r.cfg.Stream, shard)
}

// Put appends tx to the stream selected by partitionKey.
func (r *RedisStream) Put(ctx context.Context, tx *types.Transaction, partitionKey string) error {
	data, err := Encode(tx)
	if err != nil {
		return err
	}

	stream := r.StreamFor(partitionKey)
	args := &redis.XAddArgs{
		Stream: stream,
		Values: map[string]interface{}{
			"partition_key":  partitionKey,
			"transaction_id": tx.TransactionID,
			"data":           string(data),
		},
	}
	if r.cfg.MaxLen > 0 {
		args.MaxLen = r.cfg.MaxLen
		args.Approx = true
	}

	msg := fmt.Sprintf("redis xadd to %s failed", stream)
	err = r.retry.do(ctx, func() error {
		return classifyRedisError(msg, r.client.XAdd(ctx, args).Err())
	})
	if err != nil && simerrors.GetCategory(err) == "" {
		return simerrors.NewSinkError(simerrors.CodePutFailed, msg, err)
	}
	return err
}

// classifyRedisError treats server error replies (WRONGTYPE and the like)
// as rejections; connection failures are retryable.
func classifyRedisError(msg string, err error) error {
	if err == nil {
		return nil
	}
	var reply redis.Error
	if errors.As(err, &reply) {
		return simerrors.Wrap(simerrors.ErrCategorySink, simerrors.CodeRejected, msg, err)
	}
	return simerrors.NewSinkError(simerrors.CodePutFailed, msg, err)
}

// Name returns "redis".
func (r *RedisStream) Name() string {
	return "redis"
}

// Close closes the Redis client.
func (r *RedisStream) Close() error {
	return r.client.Close()
}
