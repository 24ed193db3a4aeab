package background

import (
	"context"
	"sync"
	"time"

	"github.com/Prapti-XR/Prapti-sub000/internal/metrics"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

const defaultTaskTimeout = 5 * time.Second

// Runner executes best-effort tasks detached from the request that spawned
// them. Failures are only visible through logs and metrics.
type Runner struct {
	log     *zap.Logger
	sem     *semaphore.Weighted
	wg      sync.WaitGroup
	timeout time.Duration
}

func NewRunner(log *zap.Logger, concurrency int64) *Runner {
	if concurrency <= 0 {
		concurrency = 1
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Runner{
		log:     log,
		sem:     semaphore.NewWeighted(concurrency),
		timeout: defaultTaskTimeout,
	}
}

// Go schedules fn. When every slot is busy the task is dropped rather than
// queued.
func (r *Runner) Go(name string, fn func(ctx context.Context) error) {
	if !r.sem.TryAcquire(1) {
		metrics.BackgroundTasks.WithLabelValues(name, "dropped").Inc()
		r.log.Warn("background task dropped", zap.String("task", name))
		return
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer r.sem.Release(1)
		defer func() {
			if rec := recover(); rec != nil {
				metrics.BackgroundTasks.WithLabelValues(name, "panic").Inc()
				r.log.Error("background task panicked", zap.String("task", name), zap.Any("panic", rec))
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
		defer cancel()

		if err := fn(ctx); err != nil {
			metrics.BackgroundTasks.WithLabelValues(name, "failed").Inc()
			r.log.Warn("background task failed", zap.String("task", name), zap.Error(err))
			return
		}
		metrics.BackgroundTasks.WithLabelValues(name, "ok").Inc()
	}()
}

// Wait blocks until all running tasks finish or ctx is done.
func (r *Runner) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
