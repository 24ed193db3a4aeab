package background

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Prapti-XR/Prapti-sub000/internal/metrics"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRunnerRunsTasks(t *testing.T) {
	r := NewRunner(nil, 4)
	var count int32
	for i := 0; i < 3; i++ {
		r.Go("test-ok", func(context.Context) error {
			atomic.AddInt32(&count, 1)
			return nil
		})
	}
	if err := r.Wait(context.Background()); err != nil {
		t.Fatalf("wait: %v", err)
	}
	if atomic.LoadInt32(&count) != 3 {
		t.Fatalf("expected 3 tasks, got %d", count)
	}
}

func TestRunnerSwallowsFailures(t *testing.T) {
	before := testutil.ToFloat64(metrics.BackgroundTasks.WithLabelValues("test-fail", "failed"))
	r := NewRunner(nil, 1)
	r.Go("test-fail", func(context.Context) error { return errors.New("boom") })
	_ = r.Wait(context.Background())

	after := testutil.ToFloat64(metrics.BackgroundTasks.WithLabelValues("test-fail", "failed"))
	if after != before+1 {
		t.Fatalf("expected failure to be counted")
	}
}

func TestRunnerRecoversPanics(t *testing.T) {
	r := NewRunner(nil, 1)
	r.Go("test-panic", func(context.Context) error { panic("bad") })
	if err := r.Wait(context.Background()); err != nil {
		t.Fatalf("wait: %v", err)
	}
}

func TestRunnerDropsWhenSaturated(t *testing.T) {
	r := NewRunner(nil, 1)
	release := make(chan struct{})
	r.Go("test-block", func(context.Context) error {
		<-release
		return nil
	})

	ran := false
	r.Go("test-dropped", func(context.Context) error {
		ran = true
		return nil
	})
	close(release)
	_ = r.Wait(context.Background())
	if ran {
		t.Fatalf("expected second task to be dropped")
	}
}

func TestRunnerWaitTimeout(t *testing.T) {
	r := NewRunner(nil, 1)
	release := make(chan struct{})
	defer close(release)
	r.Go("test-slow", func(context.Context) error {
		<-release
		return nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := r.Wait(ctx); err == nil {
		t.Fatalf("expected wait timeout")
	}
}

func TestRunnerTaskContextHasDeadline(t *testing.T) {
	r := NewRunner(nil, 1)
	var hasDeadline bool
	r.Go("test-deadline", func(ctx context.Context) error {
		_, hasDeadline = ctx.Deadline()
		return nil
	})
	_ = r.Wait(context.Background())
	if !hasDeadline {
		t.Fatalf("expected task deadline")
	}
}
