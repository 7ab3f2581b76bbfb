package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"StreamLookup/internal/ports"
)

// WindowScheduler runs a job once at start and then once per window, on a
// single goroutine. A window that overruns swallows the ticks it missed, so
// jobs never overlap.
type WindowScheduler struct {
	window time.Duration

	mu   sync.Mutex
	stop chan struct{}
}

var _ ports.Scheduler = (*WindowScheduler)(nil)

// NewWindowScheduler builds a scheduler with the given window size.
func NewWindowScheduler(window time.Duration) *WindowScheduler {
	return &WindowScheduler{window: window}
}

// Run blocks until ctx is done, Stop is called, or the job fails.
func (w *WindowScheduler) Run(ctx context.Context, job ports.Job) error {
	if job == nil {
		return nil
	}
	if w.window <= 0 {
		return errors.New("window must be positive")
	}

	w.mu.Lock()
	if w.stop != nil {
		w.mu.Unlock()
		return errors.New("scheduler already running")
	}
	stop := make(chan struct{})
	w.stop = stop
	w.mu.Unlock()

	defer func() {
		w.mu.Lock()
		w.stop = nil
		w.mu.Unlock()
	}()

	ticker := time.NewTicker(w.window)
	defer ticker.Stop()

	if err := job(ctx, time.Now()); err != nil {
		return err
	}
	for {
		select {
		case t := <-ticker.C:
			if ctx.Err() != nil {
				return nil
			}
			if err := job(ctx, t); err != nil {
				return err
			}
		case <-ctx.Done():
			return nil
		case <-stop:
			return nil
		}
	}
}

// Stop halts the loop after the current window.
func (w *WindowScheduler) Stop(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stop == nil {
		return nil
	}
	close(w.stop)
	w.stop = nil
	return nil
}
