package thumb

import (
	"context"
	"time"

	redisV9 "github.com/redis/go-redis/v9"

	"github.com/huynhanx03/go-thumb/internal/model"
)

// Remote is the subset of the Redis engine the like engine uses.
type Remote interface {
	RunInt(ctx context.Context, script *redisV9.Script, keys []string, args ...any) (int64, error)
	HSet(ctx context.Context, key, field string, value any) error
	HSetNX(ctx context.Context, key, field string, value any) (bool, error)
	HDel(ctx context.Context, key string, fields ...string) (int64, error)
	HKeys(ctx context.Context, key string) ([]string, error)
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	Scan(ctx context.Context, pattern string, count int64, fn func(keys []string) error) error
}

// LikeStore is the durable store of like relations and item counters.
type LikeStore interface {
	ApplyBatch(ctx context.Context, batch model.Batch) (map[int64]int64, error)
	ItemIDsByActor(ctx context.Context, actor int64) ([]int64, error)
}

// Reader is the read-through cache in front of the actor hashes.
type Reader interface {
	Get(ctx context.Context, namespace, key string) (string, bool, error)
	PutIfPresent(namespace, key, value string) bool
}
