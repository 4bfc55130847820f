package breaker

import (
	"sort"
	"sync"
)

// Set holds one breaker per provider id, created on first use with the same
// options.
type Set struct {
	mu       sync.Mutex
	breakers map[string]*Breaker
	opts     []Option
}

// NewSet creates an empty set.
func NewSet(opts ...Option) *Set {
	return &Set{breakers: make(map[string]*Breaker), opts: opts}
}

// Get returns the breaker for id, creating it if needed.
func (s *Set) Get(id string) *Breaker {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.breakers[id]
	if !ok {
		b = New(s.opts...)
		s.breakers[id] = b
	}
	return b
}

// Snapshot is a point-in-time view of one breaker.
type Snapshot struct {
	ID       string `json:"id"`
	State    string `json:"state"`
	Failures int    `json:"failures"`
}

// Snapshot returns the state of every known breaker, sorted by id.
func (s *Set) Snapshot() []Snapshot {
	s.mu.Lock()
	ids := make([]string, 0, len(s.breakers))
	for id := range s.breakers {
		ids = append(ids, id)
	}
	s.mu.Unlock()

	sort.Strings(ids)
	out := make([]Snapshot, 0, len(ids))
	for _, id := range ids {
		b := s.Get(id)
		out = append(out, Snapshot{ID: id, State: b.State().String(), Failures: b.Failures()})
	}
	return out
}
