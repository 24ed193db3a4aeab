package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Prapti-XR/Prapti-sub000/internal/background"

	"go.uber.org/zap"
)

type payload struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func TestFetchMissThenHit(t *testing.T) {
	_, c := newRedisCache(t)
	runner := background.NewRunner(zap.NewNop(), 4)
	rt := NewReadThrough(c, runner, zap.NewNop())
	ctx := context.Background()

	loads := 0
	load := func(context.Context) (payload, error) {
		loads++
		return payload{Name: "Hampi", Count: 3}, nil
	}

	v, source, err := Fetch(ctx, rt, "sites:detail:1", time.Minute, load)
	if err != nil || source != SourceDatabase || v.Name != "Hampi" {
		t.Fatalf("first fetch: %+v %s %v", v, source, err)
	}
	_ = runner.Wait(ctx)

	v, source, err = Fetch(ctx, rt, "sites:detail:1", time.Minute, load)
	if err != nil || source != SourceRedis || v.Count != 3 {
		t.Fatalf("second fetch: %+v %s %v", v, source, err)
	}
	if loads != 1 {
		t.Fatalf("expected a single load, got %d", loads)
	}
}

func TestFetchLoadErrorIsNotCached(t *testing.T) {
	_, c := newRedisCache(t)
	runner := background.NewRunner(zap.NewNop(), 4)
	rt := NewReadThrough(c, runner, zap.NewNop())
	ctx := context.Background()

	_, _, err := Fetch(ctx, rt, "sites:detail:2", time.Minute, func(context.Context) (payload, error) {
		return payload{}, errors.New("boom")
	})
	if err == nil {
		t.Fatalf("expected load error")
	}
	_ = runner.Wait(ctx)
	if _, ok, _ := c.Get(ctx, "sites:detail:2"); ok {
		t.Fatalf("failed loads must not be cached")
	}
}

func TestFetchCorruptEntryFallsBackToLoad(t *testing.T) {
	_, c := newRedisCache(t)
	ctx := context.Background()
	_ = c.Set(ctx, "sites:detail:3", []byte("{not json"), time.Minute)

	rt := NewReadThrough(c, nil, nil)
	v, source, err := Fetch(ctx, rt, "sites:detail:3", time.Minute, func(context.Context) (payload, error) {
		return payload{Name: "fresh"}, nil
	})
	if err != nil || source != SourceDatabase || v.Name != "fresh" {
		t.Fatalf("expected fresh load: %+v %s %v", v, source, err)
	}
}

func TestInvalidate(t *testing.T) {
	_, c := newRedisCache(t)
	runner := background.NewRunner(zap.NewNop(), 4)
	rt := NewReadThrough(c, runner, zap.NewNop())
	ctx := context.Background()

	_ = c.Set(ctx, "sites:list:a", []byte("1"), time.Minute)
	_ = c.Set(ctx, "models:list:a", []byte("1"), time.Minute)
	_ = c.Set(ctx, "trivia:list:a", []byte("1"), time.Minute)

	rt.Invalidate("sites:*", "models:*")
	_ = runner.Wait(ctx)

	keys, _ := c.Keys(ctx, "*")
	if len(keys) != 1 || keys[0] != "trivia:list:a" {
		t.Fatalf("unexpected remaining keys %v", keys)
	}
}

func TestNewReadThroughDefaults(t *testing.T) {
	rt := NewReadThrough(nil, nil, nil)
	if _, ok := rt.Cache().(Noop); !ok {
		t.Fatalf("expected noop cache")
	}
	rt.Store("k", payload{}, time.Minute)
	rt.Invalidate("k")
}
