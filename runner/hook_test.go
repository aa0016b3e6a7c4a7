package runner

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHookExecuteNil(t *testing.T) {
	var h *Hook
	require.NoError(t, h.Execute(context.Background()))

	h = &Hook{kind: HookBeforeAll, group: "g"}
	require.NoError(t, h.Execute(context.Background()))
}

func TestHookExecuteSuccess(t *testing.T) {
	ran := false
	h := &Hook{
		kind:    HookBeforeAll,
		group:   "math",
		timeout: time.Second,
		fn: func(ctx context.Context) error {
			ran = true
			return nil
		},
	}
	require.NoError(t, h.Execute(context.Background()))
	assert.True(t, ran)
}

func TestHookExecuteError(t *testing.T) {
	boom := errors.New("boom")
	h := &Hook{
		kind:    HookBeforeEach,
		group:   "math",
		timeout: time.Second,
		fn: func(ctx context.Context) error {
			return boom
		},
	}

	err := h.Execute(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "before each")
	assert.Contains(t, err.Error(), "math")
}

func TestHookExecutePanic(t *testing.T) {
	h := &Hook{
		kind:    HookAfterAll,
		group:   "math",
		timeout: time.Second,
		fn: func(ctx context.Context) error {
			panic("kaboom")
		},
	}

	err := h.Execute(context.Background())
	require.Error(t, err)

	var pe *PanicError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "kaboom", pe.Value)
}

func TestHookExecuteTimeout(t *testing.T) {
	block := make(chan struct{})
	defer close(block)

	h := &Hook{
		kind:    HookBeforeAll,
		group:   "slow",
		timeout: 30 * time.Millisecond,
		fn: func(ctx context.Context) error {
			<-block
			return nil
		},
	}

	start := time.Now()
	err := h.Execute(context.Background())
	elapsed := time.Since(start)

	require.Error(t, err)
	assert.True(t, IsTimeoutError(err))
	assert.GreaterOrEqual(t, elapsed, 30*time.Millisecond)
	assert.Less(t, elapsed, time.Second, "timeout must not wait for the abandoned callback")

	var te *TimeoutError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "before all", te.Kind)
	assert.Equal(t, "slow", te.Name)
	assert.Equal(t, 30*time.Millisecond, te.Timeout)
}

func TestAwaitCancelsContextOnTimeout(t *testing.T) {
	cancelled := make(chan struct{})

	_, timedOut := await(context.Background(), 20*time.Millisecond, func(ctx context.Context) error {
		<-ctx.Done()
		close(cancelled)
		return ctx.Err()
	})
	require.True(t, timedOut)

	select {
	case <-cancelled:
	case <-time.After(time.Second):
		t.Fatal("callback context was not cancelled after timeout")
	}
}

func TestAwaitLateCompletionIsDiscarded(t *testing.T) {
	release := make(chan struct{})
	finished := make(chan struct{})

	err, timedOut := await(context.Background(), 20*time.Millisecond, func(ctx context.Context) error {
		<-release
		close(finished)
		return errors.New("late result")
	})
	require.True(t, timedOut)
	require.NoError(t, err)

	// The abandoned callback must still be able to complete without blocking
	// on its result channel.
	close(release)
	select {
	case <-finished:
	case <-time.After(time.Second):
		t.Fatal("abandoned callback could not run to completion")
	}
}

func TestAwaitNoTimeout(t *testing.T) {
	err, timedOut := await(context.Background(), 0, func(ctx context.Context) error {
		time.Sleep(10 * time.Millisecond)
		return nil
	})
	require.False(t, timedOut)
	require.NoError(t, err)
}
