// Package feed decides which extracted posts are new.
package feed

import (
	"context"
	"sync"

	"tweetwatch/pkg/accounts"
	"tweetwatch/pkg/models"
)

// SeenSet holds every post id observed since start. It only grows.
type SeenSet struct {
	mu  sync.Mutex
	ids map[string]struct{}
}

func NewSeenSet() *SeenSet {
	return &SeenSet{ids: make(map[string]struct{})}
}

func (s *SeenSet) Has(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.ids[id]
	return ok
}

// Add inserts id and reports whether it was new.
func (s *SeenSet) Add(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.ids[id]; ok {
		return false
	}
	s.ids[id] = struct{}{}
	return true
}

func (s *SeenSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.ids)
}

// Event is a new post paired with the tracked account it belongs to.
type Event struct {
	Post    models.Post
	Account accounts.Account
}

// Engine classifies posts against the seen set.
type Engine struct {
	seen *SeenSet

	mu     sync.Mutex
	primed map[string]bool
}

func NewEngine() *Engine {
	return &Engine{seen: NewSeenSet(), primed: make(map[string]bool)}
}

// Seen exposes the engine's seen set.
func (e *Engine) Seen() *SeenSet {
	return e.seen
}

// Primed reports whether target already had its baseline pass.
func (e *Engine) Primed(target string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.primed[target]
}

// Prime marks target as past its baseline pass.
func (e *Engine) Prime(target string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.primed[target] = true
}

// Classify records every post in the seen set and returns, in extraction
// order, the ones not seen before whose author is a tracked, enabled
// account. A baseline pass records without emitting. ctx is checked
// between posts; on cancellation the events found so far are returned
// together with ctx.Err().
func (e *Engine) Classify(ctx context.Context, posts []models.Post, tracked []accounts.Account, baseline bool) ([]Event, error) {
	byKey := make(map[string]accounts.Account, len(tracked))
	for _, a := range tracked {
		byKey[a.Key()] = a
	}

	var events []Event
	for _, p := range posts {
		if err := ctx.Err(); err != nil {
			return events, err
		}
		if p.ID == "" || !e.seen.Add(p.ID) || baseline {
			continue
		}

		acc, ok := byKey[accounts.Key(p.AuthorHandle)]
		if !ok || acc.Mode == accounts.Disabled {
			continue
		}
		events = append(events, Event{Post: p, Account: acc})
	}
	return events, nil
}
