package engine

import (
	"strings"

	"github.com/google/uuid"

	"raidguard/internal/config"
)

// BypassSet resolves which actors skip the cooldown check entirely. It
// is rebuilt from config on every update and swapped atomically, so
// lookups never take a lock.
type BypassSet struct {
	Enabled bool
	Actors  map[uuid.UUID]struct{}
}

func buildBypassSet(cfg *config.Config) *BypassSet {
	set := &BypassSet{Enabled: cfg.Bypass.Enabled}
	if !set.Enabled || len(cfg.Bypass.Actors) == 0 {
		return set
	}
	set.Actors = make(map[uuid.UUID]struct{}, len(cfg.Bypass.Actors))
	for _, raw := range cfg.Bypass.Actors {
		id, err := uuid.Parse(strings.TrimSpace(raw))
		if err != nil {
			continue
		}
		set.Actors[id] = struct{}{}
	}
	return set
}

func (b *BypassSet) Contains(actor uuid.UUID) bool {
	if b == nil || !b.Enabled || b.Actors == nil {
		return false
	}
	_, ok := b.Actors[actor]
	return ok
}
