package writer

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rickgao/bookfeed/internal/model"
)

// RedisClient is the slice of go-redis the writer needs.
type RedisClient interface {
	Pipeline() redis.Pipeliner
	Close() error
}

// RedisConfig configures the Redis sink.
type RedisConfig struct {
	// Addr is the host:port of the Redis server.
	Addr string

	// KeyPrefix prefixes the latest-value key for each source.
	KeyPrefix string

	// ChannelPrefix prefixes the pub/sub channel for each source.
	ChannelPrefix string

	// TTL bounds how long a latest-value key outlives its last update.
	TTL time.Duration
}

// DefaultRedisConfig returns sensible defaults.
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Addr:          "localhost:6379",
		KeyPrefix:     "book:",
		ChannelPrefix: "books.",
		TTL:           time.Hour,
	}
}

// Redis keeps the latest quote per source under a TTL key and publishes
// each update on a per-source channel. SET and PUBLISH travel in one
// pipeline so subscribers never observe a notification ahead of the key.
type Redis struct {
	cfg    RedisConfig
	client RedisClient
}

// NewRedis connects a Redis writer to cfg.Addr.
func NewRedis(cfg RedisConfig) *Redis {
	client := redis.NewClient(&redis.Options{Addr: cfg.Addr})
	return NewRedisWithClient(cfg, client)
}

// NewRedisWithClient creates a Redis writer around an existing client.
func NewRedisWithClient(cfg RedisConfig, client RedisClient) *Redis {
	return &Redis{cfg: cfg, client: client}
}

// Name identifies the sink.
func (r *Redis) Name() string {
	return "redis"
}

// Write stores and publishes every quote that carries data. Sources
// without data have nothing to store; their keys simply age out.
func (r *Redis) Write(ctx context.Context, quotes []model.Quote) error {
	pipe := r.client.Pipeline()
	queued := 0

	for _, q := range quotes {
		if !q.HasData {
			continue
		}
		payload, err := json.Marshal(q)
		if err != nil {
			return fmt.Errorf("marshal quote %s: %w", q.Source, err)
		}
		pipe.Set(ctx, r.cfg.KeyPrefix+string(q.Source), payload, r.cfg.TTL)
		pipe.Publish(ctx, r.cfg.ChannelPrefix+string(q.Source), payload)
		queued++
	}

	if queued == 0 {
		return nil
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis pipeline: %w", err)
	}
	return nil
}

// Close releases the client.
func (r *Redis) Close() error {
	return r.client.Close()
}
