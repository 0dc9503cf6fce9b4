package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/copytrade-ledger/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// TraderRepository handles trader directory persistence
type TraderRepository struct {
	db *PostgresDB
}

// NewTraderRepository creates a new trader repository
func NewTraderRepository(db *PostgresDB) *TraderRepository {
	return &TraderRepository{db: db}
}

const traderColumns = `id, address, username, display_name, avatar, verified, bio, stats, joined_at, tags, risk_score`

const selectTraderColumns = `id, address, username, display_name, avatar, verified, bio, stats, joined_at, tags, risk_score::text`

func scanTrader(row pgx.Row) (*models.Trader, error) {
	var t models.Trader
	var statsJSON []byte
	var riskScore string

	err := row.Scan(
		&t.ID,
		&t.Address,
		&t.Username,
		&t.DisplayName,
		&t.Avatar,
		&t.Verified,
		&t.Bio,
		&statsJSON,
		&t.JoinedAt,
		&t.Tags,
		&riskScore,
	)
	if err != nil {
		return nil, err
	}

	if len(statsJSON) > 0 {
		if err := json.Unmarshal(statsJSON, &t.Stats); err != nil {
			return nil, fmt.Errorf("failed to unmarshal stats: %w", err)
		}
	}
	if t.RiskScore, err = decimal.NewFromString(riskScore); err != nil {
		return nil, fmt.Errorf("invalid risk score %q: %w", riskScore, err)
	}
	return &t, nil
}

// GetByID retrieves a trader by ID
func (r *TraderRepository) GetByID(ctx context.Context, id string) (*models.Trader, error) {
	query := `SELECT ` + selectTraderColumns + ` FROM traders WHERE id = $1`

	trader, err := scanTrader(r.db.Pool().QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get trader: %w", err)
	}
	return trader, nil
}

// List returns all traders ordered by display name
func (r *TraderRepository) List(ctx context.Context) ([]models.Trader, error) {
	query := `SELECT ` + selectTraderColumns + ` FROM traders ORDER BY display_name, id`

	rows, err := r.db.Pool().Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list traders: %w", err)
	}
	defer rows.Close()

	var traders []models.Trader
	for rows.Next() {
		t, err := scanTrader(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan trader: %w", err)
		}
		traders = append(traders, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate traders: %w", err)
	}
	return traders, nil
}

// Upsert inserts or updates traders in one batch
func (r *TraderRepository) Upsert(ctx context.Context, traders []models.Trader) error {
	query := `
		INSERT INTO traders (` + traderColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11::text::numeric)
		ON CONFLICT (id) DO UPDATE SET
			address = EXCLUDED.address,
			username = EXCLUDED.username,
			display_name = EXCLUDED.display_name,
			avatar = EXCLUDED.avatar,
			verified = EXCLUDED.verified,
			bio = EXCLUDED.bio,
			stats = EXCLUDED.stats,
			joined_at = EXCLUDED.joined_at,
			tags = EXCLUDED.tags,
			risk_score = EXCLUDED.risk_score
	`

	batch := &pgx.Batch{}
	for i := range traders {
		t := &traders[i]
		statsJSON, err := json.Marshal(t.Stats)
		if err != nil {
			return fmt.Errorf("failed to marshal stats for %s: %w", t.ID, err)
		}
		tags := t.Tags
		if tags == nil {
			tags = []string{}
		}
		batch.Queue(query,
			t.ID, t.Address, t.Username, t.DisplayName, t.Avatar, t.Verified, t.Bio,
			statsJSON, t.JoinedAt, tags, t.RiskScore.String(),
		)
	}

	if err := r.db.Pool().SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("failed to upsert traders: %w", err)
	}
	return nil
}
