package session

import (
	"sync"

	"github.com/pratikwayal01/bore-interactive-inputs/internal/fields"
)

// Store holds the single session's result with at-most-one-write
// semantics. The first Put wins; later writes are refused.
type Store struct {
	mu     sync.Mutex
	values fields.Values
	set    bool
}

func (s *Store) Put(values fields.Values) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.set {
		return false
	}
	s.values = values
	s.set = true
	return true
}

func (s *Store) Get() (fields.Values, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.values, s.set
}
