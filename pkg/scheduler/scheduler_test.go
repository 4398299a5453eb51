package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	twerrors "tweetwatch/pkg/errors"
	"tweetwatch/pkg/logger"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func runAsync(ctx context.Context, s *Scheduler) <-chan error {
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	return done
}

func waitRun(t *testing.T, done <-chan error) error {
	t.Helper()
	select {
	case err := <-done:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return")
		return nil
	}
}

func TestFirstTickIsImmediate(t *testing.T) {
	started := make(chan struct{}, 1)
	s := New(time.Hour, func(ctx context.Context) error {
		select {
		case started <- struct{}{}:
		default:
		}
		return nil
	}, logger.NewNopLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := runAsync(ctx, s)

	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("first cycle did not start immediately")
	}

	cancel()
	assert.NoError(t, waitRun(t, done))
}

func TestTicksRepeat(t *testing.T) {
	var runs atomic.Int32
	s := New(10*time.Millisecond, func(ctx context.Context) error {
		runs.Add(1)
		return nil
	}, logger.NewNopLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := runAsync(ctx, s)

	require.Eventually(t, func() bool { return runs.Load() >= 3 }, 2*time.Second, 5*time.Millisecond)
	cancel()
	assert.NoError(t, waitRun(t, done))
}

func TestBusyTickIsSkipped(t *testing.T) {
	release := make(chan struct{})
	var runs, skips atomic.Int32

	s := New(5*time.Millisecond, func(ctx context.Context) error {
		runs.Add(1)
		select {
		case <-release:
		case <-ctx.Done():
		}
		return nil
	}, logger.NewNopLogger())
	s.OnSkip = func() { skips.Add(1) }

	ctx, cancel := context.WithCancel(context.Background())
	done := runAsync(ctx, s)

	require.Eventually(t, func() bool { return skips.Load() >= 2 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, int32(1), runs.Load())

	close(release)
	cancel()
	assert.NoError(t, waitRun(t, done))
}

func TestCancelWaitsForInFlightCycle(t *testing.T) {
	entered := make(chan struct{})
	var finished atomic.Bool

	s := New(time.Hour, func(ctx context.Context) error {
		close(entered)
		<-ctx.Done()
		time.Sleep(20 * time.Millisecond)
		finished.Store(true)
		return ctx.Err()
	}, logger.NewNopLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := runAsync(ctx, s)
	<-entered
	cancel()

	assert.NoError(t, waitRun(t, done))
	assert.True(t, finished.Load())
}

func TestFatalErrorStopsPolling(t *testing.T) {
	var runs atomic.Int32
	fatal := twerrors.LaunchFailure(errors.New("chromium not found"))

	s := New(5*time.Millisecond, func(ctx context.Context) error {
		runs.Add(1)
		return fatal
	}, logger.NewNopLogger())

	err := waitRun(t, runAsync(context.Background(), s))
	assert.ErrorIs(t, err, twerrors.ErrLaunch)

	n := runs.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, n, runs.Load(), "no cycles after a fatal error")
}

func TestNonFatalErrorKeepsPolling(t *testing.T) {
	var runs atomic.Int32
	s := New(5*time.Millisecond, func(ctx context.Context) error {
		runs.Add(1)
		return twerrors.Navigation("https://x.com/alice", errors.New("reset"))
	}, logger.NewNopLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := runAsync(ctx, s)

	require.Eventually(t, func() bool { return runs.Load() >= 3 }, 2*time.Second, 5*time.Millisecond)
	cancel()
	assert.NoError(t, waitRun(t, done))
}

func TestSetInterval(t *testing.T) {
	s := New(time.Minute, func(ctx context.Context) error { return nil }, logger.NewNopLogger())

	s.SetInterval(30 * time.Second)
	assert.Equal(t, 30*time.Second, s.Interval())

	s.SetInterval(0)
	assert.Equal(t, 30*time.Second, s.Interval())
}

func TestSetIntervalAppliesToNextTick(t *testing.T) {
	var runs atomic.Int32
	s := New(time.Hour, func(ctx context.Context) error {
		runs.Add(1)
		return nil
	}, logger.NewNopLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := runAsync(ctx, s)
	require.Eventually(t, func() bool { return runs.Load() == 1 }, time.Second, 5*time.Millisecond)

	// The timer already armed for an hour keeps its deadline.
	s.SetInterval(5 * time.Millisecond)
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, int32(1), runs.Load())

	cancel()
	assert.NoError(t, waitRun(t, done))
}

func TestRunOnce(t *testing.T) {
	var runs atomic.Int32
	s := New(time.Hour, func(ctx context.Context) error {
		runs.Add(1)
		return nil
	}, logger.NewNopLogger())

	require.NoError(t, s.RunOnce(context.Background()))
	assert.Equal(t, int32(1), runs.Load())
}
