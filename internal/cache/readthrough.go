package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/Prapti-XR/Prapti-sub000/internal/background"

	"go.uber.org/zap"
)

// ReadThrough wraps a Cache with JSON encoding and non-blocking write-back.
type ReadThrough struct {
	cache  Cache
	runner *background.Runner
	log    *zap.Logger
}

func NewReadThrough(c Cache, runner *background.Runner, log *zap.Logger) *ReadThrough {
	if c == nil {
		c = Noop{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &ReadThrough{cache: c, runner: runner, log: log}
}

func (rt *ReadThrough) Cache() Cache { return rt.cache }

// Fetch returns the cached value for key or calls load. Loaded values are
// written back in the background; the returned source tells the caller which
// path served the value.
func Fetch[T any](ctx context.Context, rt *ReadThrough, key string, ttl time.Duration, load func(context.Context) (T, error)) (T, string, error) {
	if data, ok := Lookup(ctx, rt.cache, rt.log, key); ok {
		var cached T
		if err := json.Unmarshal(data, &cached); err == nil {
			return cached, rt.cache.Source(), nil
		}
		rt.log.Warn("discarding undecodable cache entry", zap.String("key", key))
	}

	value, err := load(ctx)
	if err != nil {
		return value, SourceDatabase, err
	}
	rt.Store(key, value, ttl)
	return value, SourceDatabase, nil
}

// Store schedules a write of value under key. Encoding or write failures are
// logged only.
func (rt *ReadThrough) Store(key string, value any, ttl time.Duration) {
	data, err := json.Marshal(value)
	if err != nil {
		rt.log.Warn("cache encode failed", zap.String("key", key), zap.Error(err))
		return
	}
	if rt.runner == nil {
		return
	}
	c := rt.cache
	rt.runner.Go("cache-write", func(ctx context.Context) error {
		return c.Set(ctx, key, data, ttl)
	})
}

// Invalidate schedules deletion of every key matching each pattern.
func (rt *ReadThrough) Invalidate(patterns ...string) {
	if rt.runner == nil {
		return
	}
	c := rt.cache
	rt.runner.Go("cache-invalidate", func(ctx context.Context) error {
		for _, p := range patterns {
			if _, err := c.DelPattern(ctx, p); err != nil {
				return err
			}
		}
		return nil
	})
}
