package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// load seeds the ledger from the store, discarding records that expired
// while the process was down. Malformed actor ids are skipped with a
// warning and left in the record set untouched.
func (e *Engine) load(ctx context.Context) error {
	records, err := e.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("load cooldown state: %w", err)
	}
	if records == nil {
		records = make(map[string]int64)
	}
	now := e.now()
	loaded := 0
	var expired []uuid.UUID
	for key, epoch := range records {
		actor, err := uuid.Parse(key)
		if err != nil {
			if e.logger != nil {
				e.logger.Warn("invalid actor id in cooldown data", "key", key)
			}
			continue
		}
		expiresAt := time.Unix(epoch, 0)
		if expiresAt.After(now) {
			e.ledger[actor] = expiresAt
			loaded++
		} else {
			delete(records, key)
			expired = append(expired, actor)
		}
	}
	e.records = records

	if len(expired) > 0 {
		if err := e.store.Save(ctx, e.records); err != nil {
			// Mark the discarded keys dirty so the next flush
			// retries the deletion.
			for _, actor := range expired {
				e.dirty.Add(actor)
			}
			if e.stats != nil {
				e.stats.RecordFlush(err)
			}
			if e.logger != nil {
				e.logger.Error("could not persist cleaned cooldown state", "err", err)
			}
		} else if e.stats != nil {
			e.stats.RecordFlush(nil)
		}
	}
	if e.logger != nil {
		e.logger.Info("cooldown state loaded", "active", loaded, "expired", len(expired))
	}
	return nil
}

// Flush drains the dirty set, reconciles each drained actor against the
// ledger into the durable record set, and writes the whole set in one
// store write. On failure the drained snapshot is merged back so the
// next cycle retries the same keys.
func (e *Engine) Flush(ctx context.Context) error {
	e.flushMu.Lock()
	defer e.flushMu.Unlock()

	snap := e.dirty.Drain()
	if len(snap) == 0 {
		return nil
	}
	e.mu.RLock()
	for actor := range snap {
		if expiresAt, ok := e.ledger[actor]; ok {
			e.records[actor.String()] = expiresAt.Unix()
		} else {
			delete(e.records, actor.String())
		}
	}
	e.mu.RUnlock()

	err := e.store.Save(ctx, e.records)
	if e.stats != nil {
		e.stats.RecordFlush(err)
	}
	if err != nil {
		e.dirty.Merge(snap)
		if e.logger != nil {
			e.logger.Error("cooldown flush failed", "err", err, "pending", len(snap))
		}
		return err
	}
	if e.logger != nil {
		e.logger.Debug("flushed cooldowns", "count", len(snap))
	}
	return nil
}

// Sweep evicts expired entries from the ledger. Eviction takes the same
// lock as TryReserve, so a sweep can never interleave with a
// reservation's check-and-set. Anything evicted is flushed immediately
// rather than waiting for the next save cycle.
func (e *Engine) Sweep(ctx context.Context) int {
	now := e.now()
	cleaned := 0
	e.mu.Lock()
	for actor, expiresAt := range e.ledger {
		if expiresAt.After(now) {
			continue
		}
		delete(e.ledger, actor)
		e.dirty.Add(actor)
		cleaned++
	}
	e.mu.Unlock()

	if cleaned == 0 {
		return 0
	}
	if e.stats != nil {
		e.stats.RecordSwept(cleaned)
	}
	if e.logger != nil {
		e.logger.Info("cleaned up expired cooldowns", "count", cleaned)
	}
	_ = e.Flush(ctx)
	return cleaned
}

// Start launches the cleanup and persistence loops. The intervals are
// fixed at start; a config reload does not retune running loops.
func (e *Engine) Start(ctx context.Context) {
	ctx, e.cancel = context.WithCancel(ctx)
	cfg := e.config()
	if interval := cfg.Cleanup.Interval(); interval > 0 {
		e.wg.Add(1)
		go e.cleanupLoop(ctx, interval)
	} else if e.logger != nil {
		e.logger.Info("cleanup sweeper disabled")
	}
	e.wg.Add(1)
	go e.saveLoop(ctx, cfg.Persistence.SaveInterval())
}

func (e *Engine) cleanupLoop(ctx context.Context, interval time.Duration) {
	defer e.wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			e.Sweep(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (e *Engine) saveLoop(ctx context.Context, interval time.Duration) {
	defer e.wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			_ = e.Flush(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// Close cancels the background loops, waits for in-flight runs to
// finish, and performs the final synchronous flush. Nothing dirty may
// be left behind.
func (e *Engine) Close(ctx context.Context) error {
	if e.cancel != nil {
		e.cancel()
	}
	e.wg.Wait()
	err := e.Flush(ctx)
	if e.logger != nil {
		if err != nil {
			e.logger.Error("final cooldown flush failed", "err", err)
		} else {
			e.logger.Info("cooldown engine shut down")
		}
	}
	return err
}
