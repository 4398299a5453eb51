// Package delivery runs notification sink calls off the poll loop.
package delivery

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"tweetwatch/pkg/logger"
)

var (
	ErrPoolStopped = errors.New("delivery pool is shutting down")
	ErrQueueFull   = errors.New("delivery queue is full")
)

// Job is one sink call.
type Job struct {
	Sink    string
	Account string
	PostID  string
	Run     func(ctx context.Context) error
}

// Result reports how a job went.
type Result struct {
	Job      Job
	Err      error
	Duration time.Duration
}

// Pool executes jobs on a fixed number of workers, each bounded by a
// timeout. Failures are reported to OnResult and logged, never returned to
// the submitter.
type Pool struct {
	numWorkers int
	timeout    time.Duration
	jobQueue   chan Job
	wg         sync.WaitGroup
	ctx        context.Context
	cancel     context.CancelFunc
	logger     logger.Logger

	mu      sync.RWMutex
	stopped bool

	// OnResult, when set before Start, is called after every job.
	OnResult func(Result)
}

// NewPool creates a pool. queueSize bounds pending jobs.
func NewPool(numWorkers, queueSize int, timeout time.Duration, log logger.Logger) *Pool {
	if numWorkers <= 0 {
		numWorkers = 1
	}
	if queueSize <= 0 {
		queueSize = numWorkers * 16
	}
	if log == nil {
		log = logger.GetLogger()
	}
	ctx, cancel := context.WithCancel(context.Background())

	return &Pool{
		numWorkers: numWorkers,
		timeout:    timeout,
		jobQueue:   make(chan Job, queueSize),
		ctx:        ctx,
		cancel:     cancel,
		logger:     log.WithField("component", "delivery"),
	}
}

// Start launches the workers
func (p *Pool) Start() {
	p.logger.DebugWithFields("Starting delivery pool", map[string]interface{}{
		"num_workers": p.numWorkers,
		"timeout":     p.timeout,
	})

	for i := 0; i < p.numWorkers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
}

// Stop stops accepting jobs, lets queued jobs finish and waits for the
// workers. Jobs still running when ctx ends are cancelled.
func (p *Pool) Stop(ctx context.Context) error {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return nil
	}
	p.stopped = true
	close(p.jobQueue)
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.cancel()
		return nil
	case <-ctx.Done():
		p.cancel()
		<-done
		return ctx.Err()
	}
}

// Submit queues a job without blocking.
func (p *Pool) Submit(job Job) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.stopped {
		return ErrPoolStopped
	}
	select {
	case p.jobQueue <- job:
		return nil
	default:
		return fmt.Errorf("%w: %s for %s", ErrQueueFull, job.Sink, job.Account)
	}
}

// QueueSize returns the number of pending jobs
func (p *Pool) QueueSize() int {
	return len(p.jobQueue)
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()

	for job := range p.jobQueue {
		res := p.run(job)
		if res.Err != nil {
			p.logger.WithError(res.Err).WarnWithFields("Notification delivery failed", map[string]interface{}{
				"worker_id": id,
				"sink":      job.Sink,
				"account":   job.Account,
				"post_id":   job.PostID,
				"duration":  res.Duration,
			})
		} else {
			p.logger.DebugWithFields("Notification delivered", map[string]interface{}{
				"worker_id": id,
				"sink":      job.Sink,
				"account":   job.Account,
				"duration":  res.Duration,
			})
		}
		if p.OnResult != nil {
			p.OnResult(res)
		}
	}
}

func (p *Pool) run(job Job) (res Result) {
	start := time.Now()
	res.Job = job

	ctx := p.ctx
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			res.Err = fmt.Errorf("sink panicked: %v", r)
		}
		res.Duration = time.Since(start)
	}()

	res.Err = job.Run(ctx)
	return res
}
