package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS ledger_records (
	namespace  TEXT    NOT NULL,
	account    TEXT    NOT NULL,
	revision   INTEGER NOT NULL,
	data       BLOB    NOT NULL,
	updated_at TIMESTAMP NOT NULL,
	PRIMARY KEY (namespace, account)
)`

// SQLiteStore persists records in a local SQLite file
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the database file at path
func NewSQLiteStore(ctx context.Context, path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", path))
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	// sqlite serializes writers
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create sqlite schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Ping checks if the database is reachable
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Get returns the record for key
func (s *SQLiteStore) Get(ctx context.Context, key Key) (Record, bool, error) {
	query := `SELECT revision, data FROM ledger_records WHERE namespace = ? AND account = ?`

	var rev int64
	var data []byte
	err := s.db.QueryRowContext(ctx, query, key.Namespace, key.Account).Scan(&rev, &data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Record{}, false, nil
		}
		return Record{}, false, fmt.Errorf("failed to get record %s: %w", key, err)
	}
	return Record{Data: data, Revision: uint64(rev)}, true, nil // #nosec G115 - stored from uint64
}

// Set stores rec when it is newer than the stored record
func (s *SQLiteStore) Set(ctx context.Context, key Key, rec Record) error {
	query := `
		INSERT INTO ledger_records (namespace, account, revision, data, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (namespace, account) DO UPDATE SET
			revision = excluded.revision,
			data = excluded.data,
			updated_at = excluded.updated_at
		WHERE excluded.revision > ledger_records.revision
	`

	_, err := s.db.ExecContext(ctx, query,
		key.Namespace,
		key.Account,
		int64(rec.Revision), // #nosec G115 - revisions stay below 2^63
		rec.Data,
		time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to set record %s: %w", key, err)
	}
	return nil
}

// Delete removes the record for key
func (s *SQLiteStore) Delete(ctx context.Context, key Key) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM ledger_records WHERE namespace = ? AND account = ?`,
		key.Namespace, key.Account)
	if err != nil {
		return fmt.Errorf("failed to delete record %s: %w", key, err)
	}
	return nil
}
