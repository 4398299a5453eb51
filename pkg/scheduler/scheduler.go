// Package scheduler runs poll cycles on a timer, never more than one at a
// time.
package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	twerrors "tweetwatch/pkg/errors"
	"tweetwatch/pkg/logger"
)

var ErrBusy = errors.New("a cycle is already running")

// CycleFunc performs one poll cycle. It must return promptly once ctx is
// cancelled.
type CycleFunc func(ctx context.Context) error

// Scheduler fires the first cycle immediately and later ones every
// interval. A tick that finds the previous cycle still running is skipped.
type Scheduler struct {
	cycle CycleFunc
	log   logger.Logger

	interval atomic.Int64
	sem      *semaphore.Weighted
	wg       sync.WaitGroup

	fatalOnce sync.Once
	fatal     chan error

	// OnSkip, when set before Run, is called for every skipped tick.
	OnSkip func()
}

// New creates a scheduler. interval must be positive.
func New(interval time.Duration, cycle CycleFunc, log logger.Logger) *Scheduler {
	if log == nil {
		log = logger.GetLogger()
	}
	s := &Scheduler{
		cycle: cycle,
		log:   log.WithField("component", "scheduler"),
		sem:   semaphore.NewWeighted(1),
		fatal: make(chan error, 1),
	}
	s.SetInterval(interval)
	return s
}

// SetInterval changes the delay used from the next scheduled tick on.
// Non-positive values are ignored.
func (s *Scheduler) SetInterval(d time.Duration) {
	if d <= 0 {
		return
	}
	s.interval.Store(int64(d))
}

func (s *Scheduler) Interval() time.Duration {
	return time.Duration(s.interval.Load())
}

// Run blocks until ctx is cancelled or a cycle fails fatally. Before
// returning it waits for the in-flight cycle. The result is nil after
// cancellation, or the fatal error.
func (s *Scheduler) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.log.InfoWithFields("Scheduler started", map[string]interface{}{"interval": s.Interval().String()})

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			s.wg.Wait()
			select {
			case err := <-s.fatal:
				return err
			default:
			}
			s.log.Info("Scheduler stopped")
			return nil

		case err := <-s.fatal:
			cancel()
			s.wg.Wait()
			s.log.WithError(err).Error("Polling stopped after fatal error")
			return err

		case <-timer.C:
			s.tick(ctx)
			timer.Reset(s.Interval())
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	if !s.sem.TryAcquire(1) {
		s.log.Warn("Previous cycle still running, skipping tick")
		if s.OnSkip != nil {
			s.OnSkip()
		}
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.sem.Release(1)

		err := s.cycle(ctx)
		switch {
		case err == nil:
		case twerrors.IsFatal(err):
			s.fatalOnce.Do(func() { s.fatal <- err })
		case ctx.Err() != nil:
			s.log.Debug("Cycle cancelled")
		default:
			s.log.WithError(err).Warn("Cycle failed")
		}
	}()
}

// RunOnce runs a single cycle in the caller's goroutine, unless one is
// already in flight.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	if !s.sem.TryAcquire(1) {
		return ErrBusy
	}
	defer s.sem.Release(1)
	return s.cycle(ctx)
}
