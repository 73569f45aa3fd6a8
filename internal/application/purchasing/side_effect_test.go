package purchasing

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestInlineDispatcher_RunsBeforeReturn(t *testing.T) {
	var ran bool
	d := NewInlineDispatcher()

	d.Dispatch(context.Background(), "job", func(ctx context.Context) error {
		ran = true
		return nil
	})

	assert.True(t, ran)
}

func TestInlineDispatcher_SwallowsErrorsAndPanics(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	d := NewInlineDispatcher(WithDispatcherLogger(zap.New(core)))

	assert.NotPanics(t, func() {
		d.Dispatch(context.Background(), "failing", func(ctx context.Context) error {
			return errors.New("ledger down")
		})
		d.Dispatch(context.Background(), "panicking", func(ctx context.Context) error {
			panic("boom")
		})
	})

	require.Equal(t, 2, logs.Len())
	assert.Equal(t, "failing", logs.All()[0].ContextMap()["side_effect"])
	assert.Contains(t, logs.All()[1].ContextMap()["error"], "panicked")
}

func TestInlineDispatcher_IgnoresCallerCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var seen error
	NewInlineDispatcher().Dispatch(ctx, "job", func(ctx context.Context) error {
		seen = ctx.Err()
		return nil
	})

	assert.NoError(t, seen)
}

func TestDispatcher_JobTimeout(t *testing.T) {
	var deadline bool
	d := NewInlineDispatcher(WithJobTimeout(50 * time.Millisecond))

	d.Dispatch(context.Background(), "slow", func(ctx context.Context) error {
		_, deadline = ctx.Deadline()
		return nil
	})

	assert.True(t, deadline)
}

func TestAsyncDispatcher_RunsAllJobs(t *testing.T) {
	d := NewAsyncDispatcher(4, 16)
	var count atomic.Int32

	for i := 0; i < 100; i++ {
		d.Dispatch(context.Background(), "job", func(ctx context.Context) error {
			count.Add(1)
			return nil
		})
	}

	require.NoError(t, d.Close(context.Background()))
	assert.Equal(t, int32(100), count.Load())
}

func TestAsyncDispatcher_DetachesRequestContext(t *testing.T) {
	d := NewAsyncDispatcher(1, 1)
	ctx, cancel := context.WithCancel(context.Background())

	var seen error
	var wg sync.WaitGroup
	wg.Add(1)
	d.Dispatch(ctx, "job", func(ctx context.Context) error {
		defer wg.Done()
		time.Sleep(10 * time.Millisecond)
		seen = ctx.Err()
		return nil
	})
	cancel()
	wg.Wait()

	require.NoError(t, d.Close(context.Background()))
	assert.NoError(t, seen)
}

func TestAsyncDispatcher_FullQueueRunsInline(t *testing.T) {
	d := NewAsyncDispatcher(1, 1)
	release := make(chan struct{})
	started := make(chan struct{})

	d.Dispatch(context.Background(), "blocker", func(ctx context.Context) error {
		close(started)
		<-release
		return nil
	})
	<-started
	d.Dispatch(context.Background(), "queued", func(ctx context.Context) error {
		return nil
	})

	var inline bool
	d.Dispatch(context.Background(), "overflow", func(ctx context.Context) error {
		inline = true
		return nil
	})
	assert.True(t, inline, "overflow job runs on the caller goroutine")

	close(release)
	require.NoError(t, d.Close(context.Background()))
}

func TestAsyncDispatcher_AfterCloseRunsInline(t *testing.T) {
	d := NewAsyncDispatcher(1, 4)
	require.NoError(t, d.Close(context.Background()))
	require.NoError(t, d.Close(context.Background()))

	var ran bool
	d.Dispatch(context.Background(), "late", func(ctx context.Context) error {
		ran = true
		return nil
	})
	assert.True(t, ran)
}

func TestAsyncDispatcher_CloseHonoursContext(t *testing.T) {
	d := NewAsyncDispatcher(1, 1)
	release := make(chan struct{})
	d.Dispatch(context.Background(), "stuck", func(ctx context.Context) error {
		<-release
		return nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := d.Close(ctx)

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	close(release)
}
