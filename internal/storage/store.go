// Package storage provides database connections and the persistence backends
// for ledger snapshots, the trader directory and the activity journal.
package storage

import (
	"context"
	"errors"
)

// NamespaceSession holds one persisted session document per account
const NamespaceSession = "session"

// ErrNotFound is returned by repositories when a row does not exist
var ErrNotFound = errors.New("not found")

// Key identifies a persisted record
type Key struct {
	Namespace string
	Account   string
}

// String renders the key for backends that need a flat name
func (k Key) String() string {
	return k.Namespace + ":" + k.Account
}

// SessionKey returns the key of an account's session document
func SessionKey(account string) Key {
	return Key{Namespace: NamespaceSession, Account: account}
}

// Record is a revisioned blob. Backends only replace a stored record with one
// carrying a higher Revision, so retried or reordered writes are harmless.
type Record struct {
	Data     []byte
	Revision uint64
}

// Store persists records by key
type Store interface {
	// Get returns the record for key; ok is false when none exists.
	Get(ctx context.Context, key Key) (rec Record, ok bool, err error)
	// Set stores rec unless the stored revision is the same or newer.
	Set(ctx context.Context, key Key, rec Record) error
	// Delete removes the record for key. Deleting a missing key succeeds.
	Delete(ctx context.Context, key Key) error
}
