package delivery

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"tweetwatch/pkg/logger"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestPoolRunsJobs(t *testing.T) {
	p := NewPool(3, 10, time.Second, logger.NewNopLogger())

	var mu sync.Mutex
	var results []Result
	p.OnResult = func(r Result) {
		mu.Lock()
		results = append(results, r)
		mu.Unlock()
	}
	p.Start()

	var ran atomic.Int32
	for i := 0; i < 5; i++ {
		require.NoError(t, p.Submit(Job{Sink: "toast", Account: "alice", Run: func(ctx context.Context) error {
			ran.Add(1)
			return nil
		}}))
	}
	require.NoError(t, p.Stop(context.Background()))

	assert.Equal(t, int32(5), ran.Load())
	assert.Len(t, results, 5)
}

func TestPoolSwallowsFailuresAndPanics(t *testing.T) {
	tl := logger.NewTestLogger()
	p := NewPool(1, 4, time.Second, tl)

	var errs []error
	p.OnResult = func(r Result) { errs = append(errs, r.Err) }
	p.Start()

	require.NoError(t, p.Submit(Job{Sink: "speech", Run: func(ctx context.Context) error { return errors.New("no voice") }}))
	require.NoError(t, p.Submit(Job{Sink: "toast", Run: func(ctx context.Context) error { panic("boom") }}))
	require.NoError(t, p.Submit(Job{Sink: "toast", Run: func(ctx context.Context) error { return nil }}))
	require.NoError(t, p.Stop(context.Background()))

	require.Len(t, errs, 3)
	assert.EqualError(t, errs[0], "no voice")
	assert.Contains(t, errs[1].Error(), "panicked")
	assert.NoError(t, errs[2])
	assert.Len(t, tl.GetMessagesByLevel("WARN"), 2)
}

func TestPoolTimeoutBoundsJob(t *testing.T) {
	p := NewPool(1, 1, 20*time.Millisecond, logger.NewNopLogger())
	var got error
	p.OnResult = func(r Result) { got = r.Err }
	p.Start()

	require.NoError(t, p.Submit(Job{Sink: "slow", Run: func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}}))
	require.NoError(t, p.Stop(context.Background()))
	assert.ErrorIs(t, got, context.DeadlineExceeded)
}

func TestSubmitAfterStop(t *testing.T) {
	p := NewPool(1, 1, time.Second, logger.NewNopLogger())
	p.Start()
	require.NoError(t, p.Stop(context.Background()))

	err := p.Submit(Job{Run: func(ctx context.Context) error { return nil }})
	assert.ErrorIs(t, err, ErrPoolStopped)
	assert.NoError(t, p.Stop(context.Background()), "second stop is a no-op")
}

func TestSubmitQueueFull(t *testing.T) {
	p := NewPool(1, 1, time.Second, logger.NewNopLogger())
	// not started: nothing drains the queue
	require.NoError(t, p.Submit(Job{Run: func(ctx context.Context) error { return nil }}))
	err := p.Submit(Job{Sink: "toast", Account: "bob", Run: func(ctx context.Context) error { return nil }})
	assert.ErrorIs(t, err, ErrQueueFull)
	assert.Equal(t, 1, p.QueueSize())

	p.Start()
	require.NoError(t, p.Stop(context.Background()))
}
