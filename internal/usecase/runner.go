package usecase

import (
	"context"
	"errors"
	"sync"
)

// ErrRunnerDraining is returned for runs requested after Drain.
var ErrRunnerDraining = errors.New("runner is shutting down")

// TrackedRunner counts in-flight runs so shutdown can wait for them.
// Drain also cancels the runs it waits on.
type TrackedRunner struct {
	runner Runner

	mu       sync.Mutex
	draining bool
	inflight sync.WaitGroup
	stop     context.Context
	cancel   context.CancelFunc
}

// NewTrackedRunner wraps runner.
func NewTrackedRunner(runner Runner) *TrackedRunner {
	stop, cancel := context.WithCancel(context.Background())
	return &TrackedRunner{runner: runner, stop: stop, cancel: cancel}
}

// Run delegates to the wrapped runner. The run ends early if ctx or Drain cancels it.
func (t *TrackedRunner) Run(ctx context.Context) (RunReport, error) {
	t.mu.Lock()
	if t.draining {
		t.mu.Unlock()
		return RunReport{}, ErrRunnerDraining
	}
	t.inflight.Add(1)
	t.mu.Unlock()
	defer t.inflight.Done()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	release := context.AfterFunc(t.stop, cancel)
	defer release()

	return t.runner.Run(runCtx)
}

// Drain rejects new runs, cancels in-flight ones and waits for them or ctx.
func (t *TrackedRunner) Drain(ctx context.Context) error {
	t.mu.Lock()
	t.draining = true
	t.mu.Unlock()
	t.cancel()

	done := make(chan struct{})
	go func() {
		t.inflight.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
