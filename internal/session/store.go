// Package session provides keyed, expiring storage for in-flight
// authentication sessions with per-key mutual exclusion and a periodic
// sweeper.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

var (
	// ErrNotFound is returned when no session exists under the given id.
	ErrNotFound = errors.New("session not found")
	// ErrExpired is returned when the session deadline has passed.
	// It is reported reactively on access, whether or not the sweeper
	// has already removed the session.
	ErrExpired = errors.New("session expired")
)

// Record is the contract a stored session must satisfy so the store can
// enforce expiry.
type Record interface {
	Deadline() time.Time
	MarkExpired()
}

// entry pairs a session with the mutex that serializes its mutations.
type entry[T Record] struct {
	mu sync.Mutex
	// gone is set when the entry has been removed from the store; a caller
	// that raced the removal must not apply its mutation.
	gone bool
	val  T
}

// Store is an in-memory keyed session store. Mutations against the same id
// serialize on a per-entry lock; no lock is held across different sessions,
// so throughput scales with the number of users.
type Store[T Record] struct {
	mu      sync.Mutex
	entries map[string]*entry[T]
	now     func() time.Time
}

// NewStore returns an empty store using the real clock.
func NewStore[T Record]() *Store[T] {
	return &Store[T]{
		entries: make(map[string]*entry[T]),
		now:     time.Now,
	}
}

// SetClock replaces the store's clock. Intended for tests.
func (s *Store[T]) SetClock(now func() time.Time) {
	s.now = now
}

// Put stores a session under the given id, replacing any previous value.
func (s *Store[T]) Put(id string, val T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[id] = &entry[T]{val: val}
}

// Get returns the session stored under id. Expired sessions are marked,
// removed, and reported as ErrExpired.
func (s *Store[T]) Get(id string) (T, error) {
	var zero T
	e, ok := s.lookup(id)
	if !ok {
		return zero, ErrNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.gone {
		return zero, ErrNotFound
	}
	if s.expire(e) {
		return zero, ErrExpired
	}
	return e.val, nil
}

// Mutate applies fn to the session stored under id while holding an
// exclusive lock scoped to that single session id. fn must not block on
// external calls; slow work belongs between two Mutate calls.
//
// An expired session fails with ErrExpired before fn runs, so a session can
// never be advanced past its deadline even if the sweeper has not run yet.
func (s *Store[T]) Mutate(id string, fn func(T) error) error {
	e, ok := s.lookup(id)
	if !ok {
		return ErrNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.gone {
		return ErrNotFound
	}
	if s.expire(e) {
		return ErrExpired
	}
	return fn(e.val)
}

// Delete removes the session stored under id, if any.
func (s *Store[T]) Delete(id string) {
	s.mu.Lock()
	e, ok := s.entries[id]
	if ok {
		delete(s.entries, id)
	}
	s.mu.Unlock()
	if !ok {
		return
	}

	e.mu.Lock()
	e.gone = true
	e.mu.Unlock()
}

// Len returns the number of live sessions.
func (s *Store[T]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Sweep marks and removes every session whose deadline has passed,
// returning the number of sessions removed.
func (s *Store[T]) Sweep(now time.Time) int {
	s.mu.Lock()
	candidates := make(map[string]*entry[T], len(s.entries))
	for id, e := range s.entries {
		candidates[id] = e
	}
	s.mu.Unlock()

	removed := 0
	for id, e := range candidates {
		e.mu.Lock()
		if !e.gone && now.After(e.val.Deadline()) {
			e.val.MarkExpired()
			e.gone = true
			s.mu.Lock()
			delete(s.entries, id)
			s.mu.Unlock()
			removed++
		}
		e.mu.Unlock()
	}
	return removed
}

// lookup fetches the entry for id under the map lock.
func (s *Store[T]) lookup(id string) (*entry[T], bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	return e, ok
}

// expire checks the deadline of a locked entry; when passed it marks the
// session expired. The entry stays in the map as a tombstone so later
// accesses keep failing with ErrExpired until the sweeper removes it.
func (s *Store[T]) expire(e *entry[T]) bool {
	if !s.now().After(e.val.Deadline()) {
		return false
	}
	e.val.MarkExpired()
	return true
}

// Sweepable is the subset of Store the sweeper needs.
type Sweepable interface {
	Sweep(now time.Time) int
}

// StartSweeper removes expired sessions from the given stores on a fixed
// interval until ctx is cancelled.
func StartSweeper(ctx context.Context, interval time.Duration, log *zap.Logger, stores ...Sweepable) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				now := time.Now()
				total := 0
				for _, st := range stores {
					total += st.Sweep(now)
				}
				if total > 0 {
					log.Info("swept expired sessions", zap.Int("removed", total))
				}
			}
		}
	}()
}
