package storage

import (
	"context"
	"database/sql"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
)

type postgresStore struct {
	baseStore
}

func NewPostgres(dsn string) (Store, error) {
	if strings.TrimSpace(dsn) == "" {
		dsn = "postgres://localhost:5432/raidguard?sslmode=disable"
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	return &postgresStore{baseStore{db: db}}, nil
}

func (s *postgresStore) Init(ctx context.Context) error {
	if s.db == nil {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`CREATE TABLE IF NOT EXISTS cooldowns (
			actor_id TEXT PRIMARY KEY,
			expires_at BIGINT NOT NULL
		)`)
	return err
}

func (s *postgresStore) Load(ctx context.Context) (map[string]int64, error) {
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

func (s *postgresStore) Save(ctx context.Context, records map[string]int64) error {
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
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO cooldowns (actor_id, expires_at) VALUES ($1, $2)`)
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
