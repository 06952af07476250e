package engine

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"raidguard/internal/config"
	"raidguard/internal/journal"
	"raidguard/internal/model"
	"raidguard/internal/stats"
	"raidguard/internal/storage"
)

// Engine owns the cooldown ledger. All reads and writes of cooldown
// state go through its methods; the ledger is never handed out.
type Engine struct {
	logger  *slog.Logger
	stats   *stats.Store
	journal *journal.Store
	store   storage.Store
	cfg     atomic.Value
	bypass  atomic.Value
	now     func() time.Time
	started time.Time

	mu     sync.RWMutex
	ledger map[uuid.UUID]time.Time

	dirty *dirtySet

	// flushMu serializes every write to the store and guards the
	// in-memory durable record set mirror.
	flushMu sync.Mutex
	records map[string]int64

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New builds the engine and seeds the ledger from the store. A store
// that cannot be read is fatal: no cooldown state can be trusted
// without it.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger, statsStore *stats.Store, journalStore *journal.Store, store storage.Store) (*Engine, error) {
	e := &Engine{
		logger:  logger,
		stats:   statsStore,
		journal: journalStore,
		store:   store,
		now:     time.Now,
		started: time.Now().UTC(),
		ledger:  make(map[uuid.UUID]time.Time),
		dirty:   newDirtySet(),
		records: make(map[string]int64),
	}
	e.cfg.Store(cfg)
	e.bypass.Store(buildBypassSet(cfg))
	if err := e.load(ctx); err != nil {
		return nil, err
	}
	return e, nil
}

func (e *Engine) UpdateConfig(cfg *config.Config) {
	e.cfg.Store(cfg)
	e.bypass.Store(buildBypassSet(cfg))
}

func (e *Engine) config() *config.Config {
	if v := e.cfg.Load(); v != nil {
		return v.(*config.Config)
	}
	return config.DefaultConfig()
}

// IsBypassed resolves the bypass flag for an actor from the configured
// list. Callers pass the result into TryReserve.
func (e *Engine) IsBypassed(actor uuid.UUID) bool {
	if v := e.bypass.Load(); v != nil {
		return v.(*BypassSet).Contains(actor)
	}
	return false
}

// TryReserve atomically checks whether the actor may trigger the action
// and commits a fresh cooldown when it may. Two racing calls for the
// same actor cannot both be allowed: the check and the insert happen
// under one critical section.
func (e *Engine) TryReserve(actor uuid.UUID, bypass bool, source string) model.Decision {
	cfg := e.config()
	now := e.now()
	if bypass {
		return e.record(model.Decision{
			Timestamp: now.UTC(),
			ActorID:   actor,
			Verdict:   model.VerdictBypassed,
			Source:    source,
		})
	}
	duration := cfg.Cooldown.Duration()
	if duration <= 0 {
		return e.record(model.Decision{
			Timestamp: now.UTC(),
			ActorID:   actor,
			Verdict:   model.VerdictAllowed,
			Source:    source,
		})
	}

	e.mu.Lock()
	remaining := e.remainingLocked(actor, now)
	if remaining > 0 {
		e.mu.Unlock()
		return e.record(model.Decision{
			Timestamp: now.UTC(),
			ActorID:   actor,
			Verdict:   model.VerdictDenied,
			Remaining: remaining,
			Source:    source,
		})
	}
	expiresAt := now.Add(duration)
	e.ledger[actor] = expiresAt
	e.mu.Unlock()
	e.dirty.Add(actor)

	if cfg.Cooldown.LogActions && e.logger != nil {
		e.logger.Info("cooldown set",
			"actor_id", actor,
			"expires_at", expiresAt.UTC(),
			"source", source,
		)
	}
	return e.record(model.Decision{
		Timestamp: now.UTC(),
		ActorID:   actor,
		Verdict:   model.VerdictAllowed,
		ExpiresAt: expiresAt.UTC(),
		Source:    source,
	})
}

// Remaining returns the time left on the actor's cooldown, zero when
// none is active.
func (e *Engine) Remaining(actor uuid.UUID) time.Duration {
	now := e.now()
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.remainingLocked(actor, now)
}

func (e *Engine) remainingLocked(actor uuid.UUID, now time.Time) time.Duration {
	expiresAt, ok := e.ledger[actor]
	if !ok {
		return 0
	}
	remaining := expiresAt.Sub(now)
	if remaining < 0 {
		return 0
	}
	return remaining
}

func (e *Engine) HasCooldown(actor uuid.UUID) bool {
	return e.Remaining(actor) > 0
}

// Clear removes the actor's cooldown regardless of remaining time. It
// is idempotent, and always marks the actor dirty so a stale on-disk
// record is deleted on the next flush.
func (e *Engine) Clear(actor uuid.UUID) {
	e.mu.Lock()
	delete(e.ledger, actor)
	e.mu.Unlock()
	e.dirty.Add(actor)
	if e.stats != nil {
		e.stats.RecordReset()
	}
	if e.config().Cooldown.LogActions && e.logger != nil {
		e.logger.Info("cooldown reset", "actor_id", actor)
	}
}

// ActiveCount is the number of entries present in the ledger, which may
// include expired entries the sweeper has not visited yet.
func (e *Engine) ActiveCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.ledger)
}

// ActiveCooldowns snapshots the remaining duration per actor, skipping
// entries that have already expired.
func (e *Engine) ActiveCooldowns() map[uuid.UUID]time.Duration {
	now := e.now()
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make(map[uuid.UUID]time.Duration, len(e.ledger))
	for actor, expiresAt := range e.ledger {
		remaining := expiresAt.Sub(now)
		if remaining <= 0 {
			continue
		}
		out[actor] = remaining
	}
	return out
}

func (e *Engine) Started() time.Time {
	return e.started
}

func (e *Engine) PendingDirty() int {
	return e.dirty.Len()
}

func (e *Engine) record(d model.Decision) model.Decision {
	if e.stats != nil {
		e.stats.Record(d.Verdict)
	}
	if e.journal != nil {
		e.journal.Add(d)
	}
	return d
}
