package storage

import (
	"testing"
	"time"

	"github.com/copytrade-ledger/internal/config"
	"github.com/copytrade-ledger/internal/models"
	"github.com/copytrade-ledger/internal/types"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitSQLStatements(t *testing.T) {
	content := `
-- comment line
CREATE TABLE a (
    x UInt8
) ENGINE = Memory;

CREATE TABLE b (y String);
SELECT 1
`
	stmts := splitSQLStatements(content)
	require.Len(t, stmts, 3)
	assert.Contains(t, stmts[0], "CREATE TABLE a")
	assert.NotContains(t, stmts[0], ";")
	assert.Equal(t, "CREATE TABLE b (y String)", stmts[1])
	assert.Equal(t, "SELECT 1", stmts[2])
}

func TestClickHouseJournal(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	cfg := &config.ClickHouseConfig{
		Host:     "localhost",
		Port:     "9000",
		Database: "copytrade",
		User:     "default",
		Password: "clickhouse_dev_password",
	}

	ctx := testContext(t)
	db, err := NewClickHouseDB(ctx, cfg)
	if err != nil {
		t.Skipf("Skipping test - ClickHouse not available: %v", err)
		return
	}
	defer func() { _ = db.Close() }()

	require.NoError(t, RunClickHouseMigrations(ctx, db, migrationsDir("clickhouse")))

	journal := NewClickHouseJournal(db)
	account := "GTEST" + uuid.NewString()
	event := models.Event{
		ID:       uuid.NewString(),
		Account:  account,
		Kind:     types.EventDeposit,
		Amount:   decimal.RequireFromString("12.5"),
		Balance:  decimal.RequireFromString("10012.5"),
		Revision: 2,
		At:       time.Now().UTC().Truncate(time.Millisecond),
	}
	require.NoError(t, journal.Publish(ctx, event))

	events, err := journal.Recent(ctx, account, 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, types.EventDeposit, events[0].Kind)
	assert.True(t, events[0].Amount.Equal(event.Amount))
}
