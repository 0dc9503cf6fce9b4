// Package feed consumes P&L updates for copy positions from a Redis pub/sub
// channel and applies them to connected sessions.
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/copytrade-ledger/internal/logging"
	"github.com/copytrade-ledger/internal/models"
	"github.com/copytrade-ledger/internal/storage"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

// Update is one P&L delta for a position, identified by ID for de-duplication
type Update struct {
	ID       string          `json:"id"`
	Account  string          `json:"account"`
	TraderID string          `json:"traderId"`
	Delta    decimal.Decimal `json:"delta"`
}

// Validate checks the fields needed to route an update
func (u *Update) Validate() error {
	switch {
	case u.ID == "":
		return fmt.Errorf("update id is required")
	case u.Account == "":
		return fmt.Errorf("account is required")
	case u.TraderID == "":
		return fmt.Errorf("traderId is required")
	}
	return nil
}

// Applier applies a P&L delta to a session
type Applier interface {
	ApplyPnLUpdate(ctx context.Context, account, traderID string, delta decimal.Decimal, updateID string) (models.CopyPosition, bool, error)
}

// Config configures a Worker
type Config struct {
	Channel   string
	DedupeTTL time.Duration
	// OnUpdate is called with the outcome of every received message:
	// "applied", "frozen", "duplicate", "invalid" or "rejected".
	OnUpdate func(outcome string)
}

// Worker subscribes to the feed channel
type Worker struct {
	cache   *storage.RedisCache
	applier Applier
	cfg     Config
}

// NewWorker creates a feed worker
func NewWorker(cache *storage.RedisCache, applier Applier, cfg Config) *Worker {
	if cfg.DedupeTTL <= 0 {
		cfg.DedupeTTL = 24 * time.Hour
	}
	return &Worker{cache: cache, applier: applier, cfg: cfg}
}

// Run consumes updates until ctx is cancelled
func (w *Worker) Run(ctx context.Context) error {
	sub := w.cache.Client().Subscribe(ctx, w.cfg.Channel)
	defer func() { _ = sub.Close() }()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", w.cfg.Channel, err)
	}
	logging.WithField("channel", w.cfg.Channel).Info("P&L feed worker subscribed")

	messages := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			w.report(w.handleMessage(ctx, msg))
		}
	}
}

func (w *Worker) report(outcome string) {
	if w.cfg.OnUpdate != nil {
		w.cfg.OnUpdate(outcome)
	}
}

func (w *Worker) handleMessage(ctx context.Context, msg *redis.Message) string {
	var u Update
	if err := json.Unmarshal([]byte(msg.Payload), &u); err != nil {
		logging.WithError(err).Warn("Discarding malformed feed message")
		return "invalid"
	}
	if err := u.Validate(); err != nil {
		logging.WithError(err).Warn("Discarding invalid feed update")
		return "invalid"
	}

	mark := "feed:seen:" + u.ID
	marked, err := w.cache.MarkOnce(ctx, mark, w.cfg.DedupeTTL)
	if err != nil {
		// without the shared mark the session's own update-id check still applies
		logging.WithError(err).Warn("Feed de-duplication unavailable")
	} else if !marked {
		return "duplicate"
	}

	logger := logging.WithFields(map[string]interface{}{
		"updateId": u.ID,
		"account":  u.Account,
		"traderId": u.TraderID,
	})

	_, applied, err := w.applier.ApplyPnLUpdate(ctx, u.Account, u.TraderID, u.Delta, u.ID)
	if err != nil {
		logger.WithError(err).Debug("Feed update rejected")
		// a rejected update was not applied anywhere; another worker may own the session
		if marked {
			if err := w.cache.Unmark(ctx, mark); err != nil {
				logger.WithError(err).Warn("Failed to release feed update mark")
			}
		}
		return "rejected"
	}
	if !applied {
		return "frozen"
	}
	return "applied"
}
