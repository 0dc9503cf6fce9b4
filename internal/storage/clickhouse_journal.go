package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/copytrade-ledger/internal/models"
	"github.com/copytrade-ledger/internal/types"
	"github.com/shopspring/decimal"
)

// ClickHouseJournal appends ledger events to the ledger_activity table
type ClickHouseJournal struct {
	db *ClickHouseDB
}

// NewClickHouseJournal creates a new activity journal
func NewClickHouseJournal(db *ClickHouseDB) *ClickHouseJournal {
	return &ClickHouseJournal{db: db}
}

// Name identifies the journal as a notification sink
func (j *ClickHouseJournal) Name() string {
	return "clickhouse"
}

// Publish appends one event
func (j *ClickHouseJournal) Publish(ctx context.Context, event models.Event) error {
	batch, err := j.db.Conn().PrepareBatch(ctx, `
		INSERT INTO ledger_activity (
			event_id, account, kind, trader_id, amount, balance, revision, occurred_at
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare activity batch: %w", err)
	}

	if err := batch.Append(
		event.ID,
		event.Account,
		string(event.Kind),
		event.TraderID,
		event.Amount,
		event.Balance,
		event.Revision,
		event.At.UTC(),
	); err != nil {
		return fmt.Errorf("failed to append activity: %w", err)
	}

	return batch.Send()
}

// Recent returns the latest events for account, newest first
func (j *ClickHouseJournal) Recent(ctx context.Context, account string, limit int) ([]models.Event, error) {
	rows, err := j.db.Conn().Query(ctx, `
		SELECT event_id, account, kind, trader_id, amount, balance, revision, occurred_at
		FROM ledger_activity
		WHERE account = ?
		ORDER BY occurred_at DESC, revision DESC
		LIMIT ?
	`, account, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query activity: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var events []models.Event
	for rows.Next() {
		var (
			e       models.Event
			kind    string
			amount  decimal.Decimal
			balance decimal.Decimal
			at      time.Time
		)
		if err := rows.Scan(&e.ID, &e.Account, &kind, &e.TraderID, &amount, &balance, &e.Revision, &at); err != nil {
			return nil, fmt.Errorf("failed to scan activity: %w", err)
		}
		e.Kind = types.EventKind(kind)
		e.Amount = amount
		e.Balance = balance
		e.At = at
		events = append(events, e)
	}
	return events, rows.Err()
}
