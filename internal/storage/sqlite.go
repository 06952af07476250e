package storage

import (
	"context"
	"database/sql"
	"strings"

	_ "modernc.org/sqlite"
)

type sqliteStore struct {
	baseStore
}

func NewSQLite(dsn string) (Store, error) {
	if strings.TrimSpace(dsn) == "" {
		dsn = "file:raidguard.db?_pragma=busy_timeout(5000)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	return &sqliteStore{baseStore{db: db}}, nil
}

func (s *sqliteStore) Init(ctx context.Context) error {
	if s.db == nil {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`CREATE TABLE IF NOT EXISTS cooldowns (
			actor_id TEXT PRIMARY KEY,
			expires_at INTEGER NOT NULL
		)`)
	return err
}

func (s *sqliteStore) Load(ctx context.Context) (map[string]int64, error) {
	records := make(map[string]int64)
	if s.db == nil {
		return records, nil
	}
	rows, err := s.db.QueryContext(ctx, `SELECT actor_id, expires_at FROM cooldowns`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var actorID string
		var expiresAt int64
		if err := rows.Scan(&actorID, &expiresAt); err != nil {
			return nil, err
		}
		records[actorID] = expiresAt
	}
	return records, rows.Err()
}

// Save replaces the full record set in one transaction, keeping the
// wholesale-rewrite semantics of the file driver.
func (s *sqliteStore) Save(ctx context.Context, records map[string]int64) error {
	if s.db == nil {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM cooldowns`); err != nil {
		_ = tx.Rollback()
		return err
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO cooldowns (actor_id, expires_at) VALUES (?, ?)`)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	defer stmt.Close()
	for actorID, expiresAt := range records {
		if _, err := stmt.ExecContext(ctx, actorID, expiresAt); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}
