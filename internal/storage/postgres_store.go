package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// PostgresStore persists records in the ledger_snapshots table
type PostgresStore struct {
	db *PostgresDB
}

// NewPostgresStore creates a new Postgres-backed store
func NewPostgresStore(db *PostgresDB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Get returns the record for key
func (s *PostgresStore) Get(ctx context.Context, key Key) (Record, bool, error) {
	query := `
		SELECT revision, data
		FROM ledger_snapshots
		WHERE namespace = $1 AND account = $2
	`

	var rev int64
	var data []byte
	err := s.db.Pool().QueryRow(ctx, query, key.Namespace, key.Account).Scan(&rev, &data)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Record{}, false, nil
		}
		return Record{}, false, fmt.Errorf("failed to get snapshot %s: %w", key, err)
	}
	return Record{Data: data, Revision: uint64(rev)}, true, nil // #nosec G115 - stored from uint64
}

// Set stores rec when it is newer than the stored record
func (s *PostgresStore) Set(ctx context.Context, key Key, rec Record) error {
	query := `
		INSERT INTO ledger_snapshots (namespace, account, revision, data, updated_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (namespace, account) DO UPDATE SET
			revision = EXCLUDED.revision,
			data = EXCLUDED.data,
			updated_at = EXCLUDED.updated_at
		WHERE ledger_snapshots.revision < EXCLUDED.revision
	`

	_, err := s.db.Pool().Exec(ctx, query,
		key.Namespace,
		key.Account,
		int64(rec.Revision), // #nosec G115 - revisions stay below 2^63
		rec.Data,
	)
	if err != nil {
		return fmt.Errorf("failed to save snapshot %s: %w", key, err)
	}
	return nil
}

// Delete removes the record for key
func (s *PostgresStore) Delete(ctx context.Context, key Key) error {
	_, err := s.db.Pool().Exec(ctx,
		`DELETE FROM ledger_snapshots WHERE namespace = $1 AND account = $2`,
		key.Namespace, key.Account)
	if err != nil {
		return fmt.Errorf("failed to delete snapshot %s: %w", key, err)
	}
	return nil
}
