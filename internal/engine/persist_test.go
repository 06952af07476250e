package engine

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"raidguard/internal/journal"
	"raidguard/internal/stats"
	"raidguard/internal/storage"
)

func TestLoadDiscardsExpired(t *testing.T) {
	now := time.Now()
	active := uuid.New()
	expired := uuid.New()
	store := newStubStore()
	store.records = map[string]int64{
		active.String():  now.Add(time.Hour).Unix(),
		expired.String(): now.Add(-time.Hour).Unix(),
		"not-a-uuid":     now.Add(time.Hour).Unix(),
	}

	eng := newEngineForTest(t, testConfig(), store)
	if eng.ActiveCount() != 1 {
		t.Fatalf("active count: %d", eng.ActiveCount())
	}
	if eng.Remaining(active) <= 0 {
		t.Fatalf("active entry not loaded")
	}
	if store.saveCount() != 1 {
		t.Fatalf("expected one cleanup write, got %d", store.saveCount())
	}
	saved := store.saved()
	if _, ok := saved[expired.String()]; ok {
		t.Fatalf("expired record survived the load")
	}
	if _, ok := saved["not-a-uuid"]; !ok {
		t.Fatalf("malformed record should be skipped, not scrubbed")
	}
}

func TestLoadWithoutExpiredDoesNotWrite(t *testing.T) {
	store := newStubStore()
	store.records = map[string]int64{
		uuid.NewString(): time.Now().Add(time.Hour).Unix(),
	}
	eng := newEngineForTest(t, testConfig(), store)
	if eng.ActiveCount() != 1 {
		t.Fatalf("active count: %d", eng.ActiveCount())
	}
	if store.saveCount() != 0 {
		t.Fatalf("clean load must not write, got %d writes", store.saveCount())
	}
}

func TestBatchFlushSingleWrite(t *testing.T) {
	store := newStubStore()
	eng := newEngineForTest(t, testConfig(), store)

	const k = 8
	actors := make([]uuid.UUID, 0, k)
	for i := 0; i < k; i++ {
		actor := uuid.New()
		actors = append(actors, actor)
		eng.TryReserve(actor, false, "test")
	}
	if err := eng.Flush(context.Background()); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if store.saveCount() != 1 {
		t.Fatalf("expected one batched write for %d reservations, got %d", k, store.saveCount())
	}
	saved := store.saved()
	for _, actor := range actors {
		if _, ok := saved[actor.String()]; !ok {
			t.Fatalf("actor %s missing from batch write", actor)
		}
	}
	if err := eng.Flush(context.Background()); err != nil {
		t.Fatalf("empty flush: %v", err)
	}
	if store.saveCount() != 1 {
		t.Fatalf("flush with nothing dirty must not write")
	}
}

func TestFlushFailureRetainsDirty(t *testing.T) {
	store := newStubStore()
	eng := newEngineForTest(t, testConfig(), store)
	actor := uuid.New()
	eng.TryReserve(actor, false, "test")

	store.saveErr = errors.New("disk full")
	if err := eng.Flush(context.Background()); err == nil {
		t.Fatalf("expected flush error")
	}
	if eng.PendingDirty() != 1 {
		t.Fatalf("dirty set lost after failed flush: %d pending", eng.PendingDirty())
	}

	store.saveErr = nil
	if err := eng.Flush(context.Background()); err != nil {
		t.Fatalf("retry flush: %v", err)
	}
	if _, ok := store.saved()[actor.String()]; !ok {
		t.Fatalf("record missing after retried flush")
	}
	if eng.PendingDirty() != 0 {
		t.Fatalf("dirty set not drained after successful flush")
	}
}

func TestCloseFlushesDirty(t *testing.T) {
	store := newStubStore()
	eng := newEngineForTest(t, testConfig(), store)
	eng.Start(context.Background())
	actor := uuid.New()
	eng.TryReserve(actor, false, "test")

	if err := eng.Close(context.Background()); err != nil {
		t.Fatalf("close: %v", err)
	}
	if _, ok := store.saved()[actor.String()]; !ok {
		t.Fatalf("shutdown flush lost the reservation")
	}
}

func TestRoundTripRestart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cooldowns.yml")
	store, err := storage.NewFile(path)
	if err != nil {
		t.Fatalf("file store: %v", err)
	}
	if err := store.Init(context.Background()); err != nil {
		t.Fatalf("init: %v", err)
	}

	cfg := testConfig()
	eng1, err := New(context.Background(), cfg, nil, stats.NewStore(), journal.NewStore(10), store)
	if err != nil {
		t.Fatalf("engine 1: %v", err)
	}
	actor := uuid.New()
	eng1.TryReserve(actor, false, "test")
	if err := eng1.Close(context.Background()); err != nil {
		t.Fatalf("close: %v", err)
	}

	eng2, err := New(context.Background(), cfg, nil, stats.NewStore(), journal.NewStore(10), store)
	if err != nil {
		t.Fatalf("engine 2: %v", err)
	}
	remaining := eng2.Remaining(actor)
	if remaining <= 0 || remaining > 10*time.Second {
		t.Fatalf("remaining after restart: %s", remaining)
	}
}
