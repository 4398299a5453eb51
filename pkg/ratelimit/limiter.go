package ratelimit

import (
	"sync"
	"time"
)

// Limiter decides whether another event may happen now.
type Limiter interface {
	Allow() bool
	Reset()
}

// SlidingWindow allows at most maxEvents within any windowSize interval.
type SlidingWindow struct {
	windowSize time.Duration
	maxEvents  int
	events     []time.Time
	now        func() time.Time
	mu         sync.Mutex
}

// NewSlidingWindow creates a new sliding window rate limiter
func NewSlidingWindow(maxEvents int, windowSize time.Duration) *SlidingWindow {
	return &SlidingWindow{
		windowSize: windowSize,
		maxEvents:  maxEvents,
		events:     make([]time.Time, 0, maxEvents),
		now:        time.Now,
	}
}

// PerMinute is shorthand for a one-minute window.
func PerMinute(n int) *SlidingWindow {
	return NewSlidingWindow(n, time.Minute)
}

// Allow records an event if the window has room for it.
func (sw *SlidingWindow) Allow() bool {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	now := sw.now()
	sw.evict(now)

	if len(sw.events) < sw.maxEvents {
		sw.events = append(sw.events, now)
		return true
	}
	return false
}

// Remaining is how many events the window still admits right now.
func (sw *SlidingWindow) Remaining() int {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	sw.evict(sw.now())
	return sw.maxEvents - len(sw.events)
}

// Reset clears all recorded events
func (sw *SlidingWindow) Reset() {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	sw.events = sw.events[:0]
}

// evict drops events older than the window
func (sw *SlidingWindow) evict(now time.Time) {
	cutoff := now.Add(-sw.windowSize)

	i := 0
	for i < len(sw.events) && !sw.events[i].After(cutoff) {
		i++
	}
	if i > 0 {
		n := copy(sw.events, sw.events[i:])
		sw.events = sw.events[:n]
	}
}

// Unlimited never refuses.
type Unlimited struct{}

func (Unlimited) Allow() bool { return true }
func (Unlimited) Reset()      {}
