package sqlitestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	apperrors "github.com/jrsteele09/go-login-portal/internal/errors"
	_ "modernc.org/sqlite" // pure-Go driver registered as "sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS storage_slots (
	slot       TEXT PRIMARY KEY,
	value      BLOB NOT NULL,
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
)`

// Store keeps slots in a single SQLite table.
type Store struct {
	db *sql.DB
}

func New(ctx context.Context, dbPath string) (*Store, error) {
	if dir := filepath.Dir(dbPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("[sqlitestore New] create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("[sqlitestore New] open: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("[sqlitestore New] ping: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("[sqlitestore New] migrate: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Load(ctx context.Context, slot string) ([]byte, error) {
	var value []byte
	err := s.db.QueryRowContext(ctx, `SELECT value FROM storage_slots WHERE slot = ?`, slot).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("[sqlitestore Load] %s: %w", slot, err)
	}
	return value, nil
}

func (s *Store) Save(ctx context.Context, slot string, value []byte) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO storage_slots (slot, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(slot) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		slot, value)
	if err != nil {
		return fmt.Errorf("[sqlitestore Save] %s: %w", slot, err)
	}
	return nil
}

func (s *Store) Remove(ctx context.Context, slot string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM storage_slots WHERE slot = ?`, slot); err != nil {
		return fmt.Errorf("[sqlitestore Remove] %s: %w", slot, err)
	}
	return nil
}

func (s *Store) List(ctx context.Context, prefix string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT slot FROM storage_slots WHERE substr(slot, 1, length(?)) = ? ORDER BY slot`, prefix, prefix)
	if err != nil {
		return nil, fmt.Errorf("[sqlitestore List] %s: %w", prefix, err)
	}
	defer rows.Close()

	var slots []string
	for rows.Next() {
		var slot string
		if err := rows.Scan(&slot); err != nil {
			return nil, fmt.Errorf("[sqlitestore List] scan: %w", err)
		}
		slots = append(slots, slot)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("[sqlitestore List] %s: %w", prefix, err)
	}
	return slots, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}
