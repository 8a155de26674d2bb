package warmup

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// Warmer precomputes one family of cached results.
type Warmer struct {
	Name string
	Warm func(ctx context.Context) error
}

// Scheduler refreshes the cache on a periodic interval so that the default
// reports are served warm. Each pass is independent; a failing warmer is
// logged and retried on the next tick.
type Scheduler struct {
	interval time.Duration
	warmers  []Warmer
}

// NewScheduler creates a warm-up scheduler.
func NewScheduler(interval time.Duration, warmers ...Warmer) *Scheduler {
	return &Scheduler{
		interval: interval,
		warmers:  warmers,
	}
}

// Start runs a pass immediately, then one at every interval boundary of the
// wall clock, where the default report windows roll over.
// Runs until context is cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	timer := time.NewTimer(s.untilNext(time.Now()))
	defer timer.Stop()

	names := make([]string, len(s.warmers))
	for i, w := range s.warmers {
		names[i] = w.Name
	}
	slog.Info("[Warmup] Starting cache warm-up scheduler",
		"interval", s.interval,
		"warmers", names,
	)

	s.RunOnce(ctx)

	for {
		select {
		case <-timer.C:
			s.RunOnce(ctx)
			timer.Reset(s.untilNext(time.Now()))
		case <-ctx.Done():
			slog.Info("[Warmup] Stopping (context cancelled)")
			return nil
		}
	}
}

// untilNext returns the wait from now to the next interval boundary.
func (s *Scheduler) untilNext(now time.Time) time.Duration {
	return now.Truncate(s.interval).Add(s.interval).Sub(now)
}

// RunOnce runs every warmer in order and returns how many failed.
// A pass never outlives the interval.
func (s *Scheduler) RunOnce(ctx context.Context) int {
	ctx, cancel := context.WithTimeout(ctx, s.interval)
	defer cancel()

	started := time.Now()
	failed := 0
	for _, w := range s.warmers {
		if ctx.Err() != nil {
			slog.Info("[Warmup] Pass interrupted by context cancellation", "next", w.Name)
			return failed
		}
		if err := w.Warm(ctx); err != nil {
			failed++
			if errors.Is(err, context.Canceled) {
				continue
			}
			slog.Warn("[Warmup] Warmer failed", "warmer", w.Name, "error", err)
		}
	}

	slog.Debug("[Warmup] Pass complete",
		"warmers", len(s.warmers),
		"failed", failed,
		"duration", time.Since(started),
	)
	return failed
}
