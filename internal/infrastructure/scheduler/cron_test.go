package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStartRejectsInvalidSpec(t *testing.T) {
	t.Parallel()

	s := NewCronScheduler("every now and then", nil, false)
	err := s.Start(context.Background(), func(time.Time) {})
	assert.Error(t, err)
}

func TestRunOnStartFiresImmediately(t *testing.T) {
	t.Parallel()

	var runs atomic.Int32
	fired := make(chan struct{}, 1)

	s := NewCronScheduler("@every 12h", time.UTC, true)
	require.NoError(t, s.Start(context.Background(), func(time.Time) {
		runs.Add(1)
		fired <- struct{}{}
	}))
	defer s.Stop(context.Background())

	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("job did not run on start")
	}
	assert.Equal(t, int32(1), runs.Load())
}

func TestStopIsIdempotent(t *testing.T) {
	t.Parallel()

	s := NewCronScheduler("@every 12h", nil, false)
	require.NoError(t, s.Start(context.Background(), func(time.Time) {}))
	require.NoError(t, s.Stop(context.Background()))
	require.NoError(t, s.Stop(context.Background()))
}

func TestContextCancelStopsScheduler(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	s := NewCronScheduler("@every 1h", nil, false)
	require.NoError(t, s.Start(ctx, func(time.Time) {}))
	cancel()

	require.Eventually(t, func() bool {
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.cron == nil
	}, 2*time.Second, 10*time.Millisecond)
}

func TestRunOnStartPanicIsRecovered(t *testing.T) {
	t.Parallel()

	done := make(chan struct{})
	s := NewCronScheduler("@every 12h", time.UTC, true)
	require.NoError(t, s.Start(context.Background(), func(time.Time) {
		defer close(done)
		panic("boom")
	}))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("job did not run on start")
	}
	assert.NoError(t, s.Stop(context.Background()))
}

func TestStopWaitsForStartupRun(t *testing.T) {
	t.Parallel()

	started := make(chan struct{})
	release := make(chan struct{})
	var finished atomic.Bool

	s := NewCronScheduler("@every 12h", time.UTC, true)
	require.NoError(t, s.Start(context.Background(), func(time.Time) {
		close(started)
		<-release
		finished.Store(true)
	}))
	<-started

	stopped := make(chan error, 1)
	go func() { stopped <- s.Stop(context.Background()) }()

	select {
	case <-stopped:
		t.Fatal("stop returned while the start-up run was still going")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	require.NoError(t, <-stopped)
	assert.True(t, finished.Load())
}

func TestStopHonoursDeadline(t *testing.T) {
	t.Parallel()

	started := make(chan struct{})
	release := make(chan struct{})
	defer close(release)

	s := NewCronScheduler("@every 12h", time.UTC, true)
	require.NoError(t, s.Start(context.Background(), func(time.Time) {
		close(started)
		<-release
	}))
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, s.Stop(ctx), context.DeadlineExceeded)
}
