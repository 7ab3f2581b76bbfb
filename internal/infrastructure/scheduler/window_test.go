package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestWindowSchedulerRunsUntilCancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls atomic.Int32
	var running atomic.Bool
	sched := NewWindowScheduler(5 * time.Millisecond)

	err := sched.Run(ctx, func(ctx context.Context, trigger time.Time) error {
		if !running.CompareAndSwap(false, true) {
			t.Errorf("jobs overlapped")
		}
		defer running.Store(false)
		if calls.Add(1) == 3 {
			cancel()
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if calls.Load() != 3 {
		t.Fatalf("expected 3 calls, got %d", calls.Load())
	}
}

func TestWindowSchedulerStopsOnJobError(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	var calls int
	sched := NewWindowScheduler(time.Millisecond)

	err := sched.Run(context.Background(), func(ctx context.Context, trigger time.Time) error {
		calls++
		if calls == 2 {
			return boom
		}
		return nil
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected job error, got %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected 2 calls, got %d", calls)
	}
}

func TestWindowSchedulerStop(t *testing.T) {
	t.Parallel()

	sched := NewWindowScheduler(time.Millisecond)
	done := make(chan error, 1)
	started := make(chan struct{})
	var once atomic.Bool

	go func() {
		done <- sched.Run(context.Background(), func(ctx context.Context, trigger time.Time) error {
			if once.CompareAndSwap(false, true) {
				close(started)
			}
			return nil
		})
	}()

	<-started
	if err := sched.Stop(context.Background()); err != nil {
		t.Fatalf("Stop error: %v", err)
	}

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run error: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("scheduler did not stop")
	}
}

func TestWindowSchedulerRejectsBadWindow(t *testing.T) {
	t.Parallel()

	err := NewWindowScheduler(0).Run(context.Background(), func(context.Context, time.Time) error { return nil })
	if err == nil {
		t.Fatalf("expected error for zero window")
	}
}
