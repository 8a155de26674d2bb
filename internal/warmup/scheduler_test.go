package warmup

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func counting(name string, calls *atomic.Int32, err error) Warmer {
	return Warmer{Name: name, Warm: func(context.Context) error {
		calls.Add(1)
		return err
	}}
}

func TestScheduler_RunOnceKeepsGoingAfterFailure(t *testing.T) {
	var first, second atomic.Int32
	s := NewScheduler(time.Minute,
		counting("analytics", &first, errors.New("data source unavailable")),
		counting("recommend", &second, nil),
	)

	require.Equal(t, 1, s.RunOnce(context.Background()))
	require.Equal(t, int32(1), first.Load())
	require.Equal(t, int32(1), second.Load())
}

func TestScheduler_RunOnceStopsWhenCancelled(t *testing.T) {
	var calls atomic.Int32
	ctx, cancel := context.WithCancel(context.Background())
	s := NewScheduler(time.Minute,
		Warmer{Name: "cancel", Warm: func(context.Context) error {
			cancel()
			return nil
		}},
		counting("skipped", &calls, nil),
	)

	require.Equal(t, 0, s.RunOnce(ctx))
	require.Zero(t, calls.Load())
}

func TestScheduler_StartRunsImmediatelyAndOnTick(t *testing.T) {
	var calls atomic.Int32
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := NewScheduler(10*time.Millisecond, Warmer{Name: "reports", Warm: func(context.Context) error {
		if calls.Add(1) == 3 {
			cancel()
		}
		return nil
	}})

	done := make(chan error, 1)
	go func() { done <- s.Start(ctx) }()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("scheduler did not stop after cancellation")
	}
	require.GreaterOrEqual(t, calls.Load(), int32(3))
}

func TestScheduler_WaitsForIntervalBoundary(t *testing.T) {
	s := NewScheduler(5 * time.Minute)
	at := func(h, m, sec int) time.Time { return time.Date(2026, 3, 2, h, m, sec, 0, time.UTC) }

	require.Equal(t, 90*time.Second, s.untilNext(at(12, 3, 30)))
	require.Equal(t, 5*time.Minute, s.untilNext(at(12, 5, 0)))
	require.Equal(t, time.Second, s.untilNext(at(12, 59, 59)))
}
