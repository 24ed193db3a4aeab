package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Prapti-XR/Prapti-sub000/internal/metrics"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	SourceDatabase = "database"
	SourceRedis    = "redis-cache"
)

// Cache is advisory: no caller may depend on it for correctness. A miss, a
// read error and an unconfigured cache all look the same to callers.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) (int64, error)
	DelPattern(ctx context.Context, pattern string) (int64, error)
	Keys(ctx context.Context, pattern string) ([]string, error)
	IsAvailable(ctx context.Context) bool
	Flush(ctx context.Context) error
	// Source is the label reported to API clients when a response is served from this cache.
	Source() string
}

// New returns a redis-backed cache, or Noop when client is nil.
func New(client *redis.Client) Cache {
	if client == nil {
		return Noop{}
	}
	return &Redis{client: client}
}

type Redis struct {
	client *redis.Client
}

func (r *Redis) Get(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("cache get %s: %w", key, err)
	}
	return data, true, nil
}

func (r *Redis) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := r.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("cache set %s: %w", key, err)
	}
	return nil
}

func (r *Redis) Del(ctx context.Context, keys ...string) (int64, error) {
	if len(keys) == 0 {
		return 0, nil
	}
	n, err := r.client.Del(ctx, keys...).Result()
	if err != nil {
		return 0, fmt.Errorf("cache del: %w", err)
	}
	return n, nil
}

// DelPattern walks the keyspace with SCAN, so cost grows with the number of
// keys in the database rather than the number matched.
func (r *Redis) DelPattern(ctx context.Context, pattern string) (int64, error) {
	keys, err := r.Keys(ctx, pattern)
	if err != nil {
		return 0, err
	}
	var deleted int64
	for start := 0; start < len(keys); start += 500 {
		end := start + 500
		if end > len(keys) {
			end = len(keys)
		}
		n, err := r.Del(ctx, keys[start:end]...)
		if err != nil {
			return deleted, err
		}
		deleted += n
	}
	return deleted, nil
}

func (r *Redis) Keys(ctx context.Context, pattern string) ([]string, error) {
	var keys []string
	iter := r.client.Scan(ctx, 0, pattern, 200).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("cache scan %s: %w", pattern, err)
	}
	return keys, nil
}

func (r *Redis) IsAvailable(ctx context.Context) bool {
	return r.client.Ping(ctx).Err() == nil
}

func (r *Redis) Flush(ctx context.Context) error {
	if err := r.client.FlushDB(ctx).Err(); err != nil {
		return fmt.Errorf("cache flush: %w", err)
	}
	return nil
}

func (r *Redis) Source() string { return SourceRedis }

// Noop is used when no cache store is configured.
type Noop struct{}

func (Noop) Get(context.Context, string) ([]byte, bool, error) { return nil, false, nil }
func (Noop) Set(context.Context, string, []byte, time.Duration) error { return nil }
func (Noop) Del(context.Context, ...string) (int64, error) { return 0, nil }
func (Noop) DelPattern(context.Context, string) (int64, error) { return 0, nil }
func (Noop) Keys(context.Context, string) ([]string, error) { return nil, nil }
func (Noop) IsAvailable(context.Context) bool { return false }
func (Noop) Flush(context.Context) error { return nil }
func (Noop) Source() string { return SourceDatabase }

// Lookup reads key and records the outcome. Errors are logged and reported as
// a miss.
func Lookup(ctx context.Context, c Cache, log *zap.Logger, key string) ([]byte, bool) {
	ns := namespace(key)
	data, ok, err := c.Get(ctx, key)
	switch {
	case err != nil:
		metrics.CacheLookups.WithLabelValues(ns, "error").Inc()
		log.Warn("cache read failed", zap.String("key", key), zap.Error(err))
		return nil, false
	case !ok:
		metrics.CacheLookups.WithLabelValues(ns, "miss").Inc()
		return nil, false
	default:
		metrics.CacheLookups.WithLabelValues(ns, "hit").Inc()
		return data, true
	}
}

// Key joins parts with ':' after normalising empty parts to "all".
func Key(parts ...string) string {
	out := make([]string, len(parts))
	for i, p := range parts {
		if p == "" {
			p = "all"
		}
		out[i] = p
	}
	return strings.Join(out, ":")
}

func namespace(key string) string {
	if i := strings.IndexByte(key, ':'); i > 0 {
		return key[:i]
	}
	return key
}
