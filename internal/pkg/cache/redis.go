package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/redis/go-redis/v9"
)

type redisCache struct {
	client    *redis.Client
	namespace string
	log       *slog.Logger
}

// NewRedisCache keeps versions under "<namespace>:version:<key>", shared by
// every process pointing at the same redis.
func NewRedisCache(client *redis.Client, namespace string, log *slog.Logger) Cache {
	if log == nil {
		log = slog.Default()
	}
	return &redisCache{client: client, namespace: namespace, log: log}
}

func (r *redisCache) Invalidate(ctx context.Context, key string) {
	v, err := r.client.Incr(ctx, r.GenerateKey(opVersion, key)).Result()
	if err != nil {
		r.log.WarnContext(ctx, "cache: invalidate failed", "key", key, "error", err)
		return
	}
	r.log.DebugContext(ctx, "cache: invalidated", "key", key, "version", v)
}

func (r *redisCache) Version(ctx context.Context, key string) (int64, error) {
	raw, err := r.client.Get(ctx, r.GenerateKey(opVersion, key)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("cache: version %q: %w", key, err)
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("cache: version %q: %w", key, err)
	}
	return v, nil
}

func (r *redisCache) GenerateKey(operation, key string) string {
	return fmt.Sprintf("%s:%s:%s", r.namespace, operation, key)
}
