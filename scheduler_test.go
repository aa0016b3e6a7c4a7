package gauntlet

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchedulerRequiresCallback(t *testing.T) {
	s := NewScheduler(0, log.New())
	err := s.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "callback must be registered")
}

func TestSchedulerRunOnce(t *testing.T) {
	s := NewScheduler(0, log.New())

	calls := 0
	s.RegisterCallback(func() error {
		calls++
		return nil
	})
	require.NoError(t, s.Start(context.Background()))
	assert.Equal(t, 1, calls)
}

func TestSchedulerRunOncePropagatesError(t *testing.T) {
	s := NewScheduler(0, log.New())

	boom := errors.New("run failed")
	s.RegisterCallback(func() error { return boom })
	assert.ErrorIs(t, s.Start(context.Background()), boom)
}

func TestSchedulerWatchMode(t *testing.T) {
	s := NewScheduler(10*time.Millisecond, log.New())

	var calls atomic.Int64
	s.RegisterCallback(func() error {
		calls.Add(1)
		// Failing iterations must not stop the watch loop.
		return errors.New("always fails")
	})
	require.NoError(t, s.Start(context.Background()))
	assert.False(t, s.Stopped())

	require.Eventually(t, func() bool {
		return calls.Load() >= 3
	}, 2*time.Second, 5*time.Millisecond)

	s.Stop()
	assert.True(t, s.Stopped())
	require.NoError(t, s.WaitForShutdown(context.Background()))
}

func TestSchedulerStopIdempotent(t *testing.T) {
	s := NewScheduler(time.Hour, log.New())
	s.RegisterCallback(func() error { return nil })
	require.NoError(t, s.Start(context.Background()))

	s.Stop()
	s.Stop()
	assert.True(t, s.Stopped())
	require.NoError(t, s.WaitForShutdown(context.Background()))
}

func TestSchedulerContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s := NewScheduler(time.Hour, log.New())
	s.RegisterCallback(func() error { return nil })
	require.NoError(t, s.Start(ctx))

	cancel()
	require.NoError(t, s.WaitForShutdown(context.Background()))
	assert.True(t, s.Stopped())
}
