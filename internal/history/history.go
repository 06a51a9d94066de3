// Package history keeps a bounded in-process cache of finished execution
// snapshots so recent runs stay inspectable after a reset.
package history

import (
	lru "github.com/hashicorp/golang-lru/v2"

	"rlmtrace/internal/trace"
)

const DefaultSize = 32

// Store holds the most recent terminal executions, keyed by execution id.
type Store struct {
	cache *lru.Cache[string, *trace.Execution]
}

// New creates a store retaining up to size executions; size <= 0 uses
// DefaultSize.
func New(size int) (*Store, error) {
	if size <= 0 {
		size = DefaultSize
	}
	cache, err := lru.New[string, *trace.Execution](size)
	if err != nil {
		return nil, err
	}
	return &Store{cache: cache}, nil
}

// Add records a finished execution. Snapshots with no id (nothing beyond a
// pending placeholder) are not worth keeping.
func (s *Store) Add(exec *trace.Execution) {
	if s == nil || exec == nil || exec.ID == "" {
		return
	}
	s.cache.Add(exec.ID, exec)
}

// Get returns the execution with the given id, if still cached.
func (s *Store) Get(id string) (*trace.Execution, bool) {
	if s == nil {
		return nil, false
	}
	return s.cache.Get(id)
}

// List returns cached executions, most recently finished first.
func (s *Store) List() []*trace.Execution {
	if s == nil {
		return nil
	}
	keys := s.cache.Keys()
	out := make([]*trace.Execution, 0, len(keys))
	for i := len(keys) - 1; i >= 0; i-- {
		if exec, ok := s.cache.Peek(keys[i]); ok {
			out = append(out, exec)
		}
	}
	return out
}

// Len reports how many executions are cached.
func (s *Store) Len() int {
	if s == nil {
		return 0
	}
	return s.cache.Len()
}
