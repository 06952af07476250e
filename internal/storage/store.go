package storage

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"raidguard/internal/config"
)

// Store persists the cooldown record set: actor id (string form of a
// UUID) mapped to expiry in epoch seconds. Save rewrites the whole set
// in a single write; there is no per-key update path.
type Store interface {
	Init(ctx context.Context) error
	Load(ctx context.Context) (map[string]int64, error)
	Save(ctx context.Context, records map[string]int64) error
	Close() error
}

func NewStore(cfg config.StorageConfig) (Store, error) {
	switch strings.ToLower(cfg.Driver) {
	case "", "file":
		return NewFile(cfg.Path)
	case "sqlite":
		return NewSQLite(cfg.DSN)
	case "postgres", "postgresql":
		return NewPostgres(cfg.DSN)
	default:
		return nil, errors.New("unsupported storage driver")
	}
}

type baseStore struct {
	db *sql.DB
}

func (b *baseStore) Close() error {
	if b.db != nil {
		return b.db.Close()
	}
	return nil
}
