package journal

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"raidguard/internal/model"
)

func decisionAt(ts time.Time) model.Decision {
	return model.Decision{Timestamp: ts, ActorID: uuid.New(), Verdict: model.VerdictAllowed}
}

func TestStoreDropsOldestAtLimit(t *testing.T) {
	s := NewStore(3)
	base := time.Now()
	first := decisionAt(base)
	s.Add(first)
	for i := 1; i < 4; i++ {
		s.Add(decisionAt(base.Add(time.Duration(i) * time.Second)))
	}
	list := s.List(0)
	if len(list) != 3 {
		t.Fatalf("len: %d", len(list))
	}
	for _, d := range list {
		if d.ActorID == first.ActorID {
			t.Fatalf("oldest decision not evicted")
		}
	}
}

func TestStoreListLimit(t *testing.T) {
	s := NewStore(10)
	base := time.Now()
	for i := 0; i < 5; i++ {
		s.Add(decisionAt(base.Add(time.Duration(i) * time.Second)))
	}
	if got := len(s.List(2)); got != 2 {
		t.Fatalf("list(2): %d", got)
	}
	if got := len(s.List(0)); got != 5 {
		t.Fatalf("list(0): %d", got)
	}
}

func TestStoreSince(t *testing.T) {
	s := NewStore(10)
	base := time.Now()
	for i := 0; i < 5; i++ {
		s.Add(decisionAt(base.Add(time.Duration(i) * time.Second)))
	}
	got := s.Since(base.Add(3 * time.Second))
	if len(got) != 2 {
		t.Fatalf("since: %d", len(got))
	}
}

func TestStoreClear(t *testing.T) {
	s := NewStore(10)
	s.Add(decisionAt(time.Now()))
	s.Clear()
	if len(s.List(0)) != 0 {
		t.Fatalf("clear left entries behind")
	}
}
