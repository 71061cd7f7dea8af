package view

import (
	"sort"
	"sync"
)

// ConfirmingSet tracks lesson IDs with a confirm/reject request in flight.
// It is a cooperative guard for a single view, not a lock on the lesson.
type ConfirmingSet struct {
	mu  sync.Mutex
	ids map[string]struct{}
}

func NewConfirmingSet() *ConfirmingSet {
	return &ConfirmingSet{ids: make(map[string]struct{})}
}

// TryAdd adds id and reports whether it was absent.
func (s *ConfirmingSet) TryAdd(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.ids[id]; ok {
		return false
	}
	s.ids[id] = struct{}{}
	return true
}

func (s *ConfirmingSet) Remove(id string) {
	s.mu.Lock()
	delete(s.ids, id)
	s.mu.Unlock()
}

func (s *ConfirmingSet) Has(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.ids[id]
	return ok
}

// IDs returns a sorted snapshot.
func (s *ConfirmingSet) IDs() []string {
	s.mu.Lock()
	out := make([]string, 0, len(s.ids))
	for id := range s.ids {
		out = append(out, id)
	}
	s.mu.Unlock()
	sort.Strings(out)
	return out
}
