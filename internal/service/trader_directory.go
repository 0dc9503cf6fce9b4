package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/copytrade-ledger/internal/models"
	"github.com/copytrade-ledger/internal/storage"
	"github.com/copytrade-ledger/internal/types"
	"github.com/patrickmn/go-cache"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// TraderSource is the backing store of the trader directory.
// GetByID returns storage.ErrNotFound for unknown ids.
type TraderSource interface {
	GetByID(ctx context.Context, id string) (*models.Trader, error)
	List(ctx context.Context) ([]models.Trader, error)
}

const traderListKey = "traders:all"

// TraderDirectory is a read-only, cached view of the traders that can be
// followed and copied
type TraderDirectory struct {
	source TraderSource
	cache  *cache.Cache
}

// NewTraderDirectory creates a directory in front of source. Entries are
// cached for ttl.
func NewTraderDirectory(source TraderSource, ttl time.Duration) *TraderDirectory {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &TraderDirectory{
		source: source,
		cache:  cache.New(ttl, 2*ttl),
	}
}

// Get returns the trader with the given id
func (d *TraderDirectory) Get(ctx context.Context, id string) (*models.Trader, error) {
	if id == "" {
		return nil, types.NewServiceError(types.CodeInvalidParameter,
			"invalid parameter 'traderId': is required",
			map[string]interface{}{"parameter": "traderId"})
	}
	if cached, ok := d.cache.Get("trader:" + id); ok {
		t := cached.(models.Trader)
		return &t, nil
	}

	t, err := d.source.GetByID(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, traderNotFound(id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load trader %s: %w", id, err)
	}

	d.cache.Set("trader:"+id, *t, cache.DefaultExpiration)
	return t, nil
}

// List returns all traders ordered by id
func (d *TraderDirectory) List(ctx context.Context) ([]models.Trader, error) {
	if cached, ok := d.cache.Get(traderListKey); ok {
		return append([]models.Trader(nil), cached.([]models.Trader)...), nil
	}

	traders, err := d.source.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list traders: %w", err)
	}
	sort.Slice(traders, func(i, j int) bool { return traders[i].ID < traders[j].ID })

	d.cache.Set(traderListKey, traders, cache.DefaultExpiration)
	return append([]models.Trader(nil), traders...), nil
}

// Invalidate drops every cached entry
func (d *TraderDirectory) Invalidate() {
	d.cache.Flush()
}

func traderNotFound(id string) error {
	return types.NewServiceError(types.CodeTraderNotFound,
		fmt.Sprintf("trader %s not found", id),
		map[string]interface{}{"traderId": id})
}

// StaticSource serves a fixed trader list, typically loaded from a YAML seed
// file
type StaticSource struct {
	traders map[string]models.Trader
}

// NewStaticSource creates a source over traders. Later duplicates of an id
// replace earlier ones.
func NewStaticSource(traders []models.Trader) *StaticSource {
	s := &StaticSource{traders: make(map[string]models.Trader, len(traders))}
	for _, t := range traders {
		s.traders[t.ID] = t
	}
	return s
}

// GetByID returns the trader with the given id
func (s *StaticSource) GetByID(ctx context.Context, id string) (*models.Trader, error) {
	t, ok := s.traders[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &t, nil
}

// List returns every trader
func (s *StaticSource) List(ctx context.Context) ([]models.Trader, error) {
	traders := make([]models.Trader, 0, len(s.traders))
	for _, t := range s.traders {
		traders = append(traders, t)
	}
	return traders, nil
}

// traderSeedFile is the layout of TRADER_SEED_FILE
type traderSeedFile struct {
	Traders []models.Trader `yaml:"traders"`
}

// LoadTraderSeed reads a YAML seed file. An empty path yields DefaultTraders.
func LoadTraderSeed(path string) ([]models.Trader, error) {
	if path == "" {
		return DefaultTraders(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read trader seed file: %w", err)
	}

	var seed traderSeedFile
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("failed to parse trader seed file: %w", err)
	}
	for i, t := range seed.Traders {
		if t.ID == "" {
			return nil, fmt.Errorf("trader seed entry %d has no id", i)
		}
	}
	return seed.Traders, nil
}

// DefaultTraders is the directory used when no seed file is configured
func DefaultTraders() []models.Trader {
	joined := func(s string) time.Time {
		t, _ := time.Parse(time.RFC3339, s)
		return t
	}
	return []models.Trader{
		{
			ID:          "1",
			Address:     "GB6BTGYP3V5E4VS3ENKLQMNZQZM6G7A5QTKZ4DQV7QB2FNBVYMKAS6NO",
			Username:    "CryptoKing",
			DisplayName: "CryptoKing",
			Avatar:      "/professional-woman-trader.jpg",
			Verified:    true,
			Bio:         "Professional crypto trader. DeFi and yield farming.",
			Stats: models.TraderStats{
				TotalReturn: decimal.RequireFromString("142.5"),
				WinRate:     decimal.RequireFromString("68.4"),
				TotalTrades: 1247,
				MaxDrawdown: decimal.RequireFromString("12.3"),
				Copiers:     1247,
			},
			JoinedAt:  joined("2023-01-15T00:00:00Z"),
			Tags:      []string{"defi", "yield"},
			RiskScore: decimal.NewFromInt(6),
		},
		{
			ID:          "2",
			Address:     "GB7H3J5D4T2KQ6Z8L4N9M5C7V1B3X8Z5N2M6L9K4Q7R2S6T8W3X5Y7Z9",
			Username:    "DiamondHands",
			DisplayName: "DiamondHands",
			Avatar:      "/professional-man-trader.jpg",
			Verified:    true,
			Bio:         "Long-term investor focused on blue-chip assets.",
			Stats: models.TraderStats{
				TotalReturn: decimal.RequireFromString("87.2"),
				WinRate:     decimal.RequireFromString("61.0"),
				TotalTrades: 412,
				MaxDrawdown: decimal.RequireFromString("18.9"),
				Copiers:     892,
			},
			JoinedAt:  joined("2023-02-10T00:00:00Z"),
			Tags:      []string{"hodl"},
			RiskScore: decimal.NewFromInt(3),
		},
		{
			ID:          "3",
			Address:     "GA8H3J5D4T2KQ6Z8L4N9M5C7V1B3X8Z5N2M6L9K4Q7R2S6T8W3X5Y7Z9",
			Username:    "DeFiWhale",
			DisplayName: "DeFiWhale",
			Verified:    false,
			Bio:         "Liquidity mining specialist.",
			Stats: models.TraderStats{
				TotalReturn: decimal.RequireFromString("203.1"),
				WinRate:     decimal.RequireFromString("57.6"),
				TotalTrades: 2310,
				MaxDrawdown: decimal.RequireFromString("31.4"),
				Copiers:     2156,
			},
			JoinedAt:  joined("2023-03-02T00:00:00Z"),
			Tags:      []string{"defi", "liquidity"},
			RiskScore: decimal.NewFromInt(8),
		},
	}
}
