package stats

import (
	"sync"
	"time"

	"raidguard/internal/model"
)

// Snapshot is a point-in-time copy of the counters for /status.
type Snapshot struct {
	Allowed     uint64    `json:"allowed"`
	Denied      uint64    `json:"denied"`
	Bypassed    uint64    `json:"bypassed"`
	Resets      uint64    `json:"resets"`
	Swept       uint64    `json:"swept"`
	Flushes     uint64    `json:"flushes"`
	FlushErrors uint64    `json:"flush_errors"`
	LastFlush   time.Time `json:"last_flush,omitzero"`
}

type Store struct {
	mu   sync.RWMutex
	snap Snapshot
}

func NewStore() *Store {
	return &Store{}
}

func (s *Store) Record(v model.Verdict) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch v {
	case model.VerdictAllowed:
		s.snap.Allowed++
	case model.VerdictDenied:
		s.snap.Denied++
	case model.VerdictBypassed:
		s.snap.Bypassed++
	}
}

func (s *Store) RecordReset() {
	s.mu.Lock()
	s.snap.Resets++
	s.mu.Unlock()
}

func (s *Store) RecordSwept(n int) {
	if n <= 0 {
		return
	}
	s.mu.Lock()
	s.snap.Swept += uint64(n)
	s.mu.Unlock()
}

func (s *Store) RecordFlush(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.snap.FlushErrors++
		return
	}
	s.snap.Flushes++
	s.snap.LastFlush = time.Now().UTC()
}

func (s *Store) Get() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap
}

func (s *Store) Clear() {
	s.mu.Lock()
	s.snap = Snapshot{}
	s.mu.Unlock()
}
