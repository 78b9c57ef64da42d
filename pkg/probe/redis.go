package probe

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/extra/redisotel/v9"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/trace"
)

// Redis sets and reads a key, then adds two members to a sorted set.
type Redis struct {
	Addr string
	tp   trace.TracerProvider
}

// NewRedis returns a Redis probe whose client spans go to tp.
func NewRedis(addr string, tp trace.TracerProvider) *Redis {
	return &Redis{Addr: addr, tp: tp}
}

func (r *Redis) Name() string { return "redis" }

func (r *Redis) Do(ctx context.Context) (string, error) {
	rdb := redis.NewClient(&redis.Options{Addr: r.Addr})
	defer rdb.Close() //nolint:errcheck // best-effort close

	if err := redisotel.InstrumentTracing(rdb, redisotel.WithTracerProvider(r.tp)); err != nil {
		return "", fmt.Errorf("instrumenting redis client: %w", err)
	}

	if err := rdb.Set(ctx, "mykey", "Hello from go redis", 0).Err(); err != nil {
		return "", fmt.Errorf("redis SET: %w", err)
	}
	if _, err := rdb.Get(ctx, "mykey").Result(); err != nil {
		return "", fmt.Errorf("redis GET: %w", err)
	}
	added, err := rdb.ZAdd(ctx, "vehicles",
		redis.Z{Score: 4, Member: "car"},
		redis.Z{Score: 2, Member: "bike"},
	).Result()
	if err != nil {
		return "", fmt.Errorf("redis ZADD: %w", err)
	}
	return fmt.Sprintf("added %d items", added), nil
}
