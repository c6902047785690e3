// Package results holds the per-job, write-once map of activity results that
// callers can query while the job is still running.
package results

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"sort"
	"sync"
)

// ErrClosed is returned by Get when the store was closed without a cause.
var ErrClosed = errors.New("result store closed")

// DuplicateKeyError reports a second write to the same key.
type DuplicateKeyError struct {
	Key string
}

func (e *DuplicateKeyError) Error() string {
	return fmt.Sprintf("result for %q already recorded", e.Key)
}

// Store maps activity names to results. Each key is written at most once and
// never removed; readers may block on a key until it appears.
type Store struct {
	mu      sync.Mutex
	values  map[string]any
	waiters map[string]chan struct{}
	closed  chan struct{}
	cause   error
}

// New returns an empty store.
func New() *Store {
	return &Store{
		values:  make(map[string]any),
		waiters: make(map[string]chan struct{}),
		closed:  make(chan struct{}),
	}
}

// Put records value under key and wakes every reader waiting on it.
func (s *Store) Put(key string, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.values[key]; exists {
		return &DuplicateKeyError{Key: key}
	}
	s.values[key] = value
	if ready, ok := s.waiters[key]; ok {
		close(ready)
		delete(s.waiters, key)
	}
	return nil
}

// Get returns the value for key, waiting until it is written, ctx ends, or
// the store is closed. A write that lands before Close is always observed.
func (s *Store) Get(ctx context.Context, key string) (any, error) {
	s.mu.Lock()
	if value, ok := s.values[key]; ok {
		s.mu.Unlock()
		return value, nil
	}
	ready, ok := s.waiters[key]
	if !ok {
		ready = make(chan struct{})
		s.waiters[key] = ready
	}
	s.mu.Unlock()

	select {
	case <-ready:
	case <-s.closed:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if value, ok := s.values[key]; ok {
		return value, nil
	}
	return nil, s.cause
}

// Lookup returns the value for key without blocking.
func (s *Store) Lookup(key string) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	value, ok := s.values[key]
	return value, ok
}

// Close releases every blocked reader whose key is absent with cause (or
// ErrClosed). Present keys stay readable. Close is idempotent; the first
// cause wins.
func (s *Store) Close(cause error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	select {
	case <-s.closed:
		return
	default:
	}
	if cause == nil {
		cause = ErrClosed
	}
	s.cause = cause
	close(s.closed)
}

// Snapshot copies every present key.
func (s *Store) Snapshot() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return maps.Clone(s.values)
}

// Keys lists present keys in sorted order.
func (s *Store) Keys() []string {
	s.mu.Lock()
	keys := make([]string, 0, len(s.values))
	for key := range s.values {
		keys = append(keys, key)
	}
	s.mu.Unlock()
	sort.Strings(keys)
	return keys
}

// Len reports how many keys are present.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.values)
}
