package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type blockingRunner struct {
	started chan struct{}
}

func (b *blockingRunner) Run(ctx context.Context) (RunReport, error) {
	close(b.started)
	<-ctx.Done()
	return RunReport{}, ctx.Err()
}

func TestTrackedRunnerDrainCancelsDetachedRun(t *testing.T) {
	t.Parallel()

	inner := &blockingRunner{started: make(chan struct{})}
	tracked := NewTrackedRunner(inner)

	result := make(chan error, 1)
	go func() {
		_, err := tracked.Run(context.WithoutCancel(context.Background()))
		result <- err
	}()
	<-inner.started

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, tracked.Drain(ctx))

	select {
	case err := <-result:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("run did not return after drain")
	}
}

func TestTrackedRunnerRejectsRunsAfterDrain(t *testing.T) {
	t.Parallel()

	stub := &stubRunner{}
	tracked := NewTrackedRunner(stub)
	require.NoError(t, tracked.Drain(context.Background()))

	_, err := tracked.Run(context.Background())
	assert.ErrorIs(t, err, ErrRunnerDraining)
}

func TestTrackedRunnerDelegates(t *testing.T) {
	t.Parallel()

	stub := &stubRunner{}
	tracked := NewTrackedRunner(stub)

	_, err := tracked.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stub.runs)
	assert.NoError(t, tracked.Drain(context.Background()))
}
