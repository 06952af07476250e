package engine

import (
	"sync"

	"github.com/google/uuid"
)

// dirtySet tracks actors whose ledger entry changed since the last
// successful flush. Drain swaps the backing map out atomically, so an
// add racing a drain lands either in the drained snapshot or in the
// fresh set for the next cycle, never nowhere.
type dirtySet struct {
	mu  sync.Mutex
	ids map[uuid.UUID]struct{}
}

func newDirtySet() *dirtySet {
	return &dirtySet{ids: make(map[uuid.UUID]struct{})}
}

func (s *dirtySet) Add(id uuid.UUID) {
	s.mu.Lock()
	s.ids[id] = struct{}{}
	s.mu.Unlock()
}

func (s *dirtySet) Drain() map[uuid.UUID]struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.ids) == 0 {
		return nil
	}
	out := s.ids
	s.ids = make(map[uuid.UUID]struct{})
	return out
}

// Merge puts a drained snapshot back, used when the flush that took it
// failed so the next cycle retries the same keys.
func (s *dirtySet) Merge(ids map[uuid.UUID]struct{}) {
	if len(ids) == 0 {
		return
	}
	s.mu.Lock()
	for id := range ids {
		s.ids[id] = struct{}{}
	}
	s.mu.Unlock()
}

func (s *dirtySet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.ids)
}
