// Package service holds the session layer around the ledger: connecting
// accounts, persisting their state, publishing events and resolving traders.
package service

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/copytrade-ledger/internal/ledger"
	"github.com/copytrade-ledger/internal/logging"
	"github.com/copytrade-ledger/internal/metrics"
	"github.com/copytrade-ledger/internal/models"
	"github.com/copytrade-ledger/internal/storage"
	"github.com/copytrade-ledger/internal/types"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SnapshotQueue schedules session documents for persistence
type SnapshotQueue interface {
	Enqueue(key storage.Key, rec storage.Record) bool
	EnqueueDelete(key storage.Key)
	// FlushKey writes what is pending for key and reports whether it landed.
	FlushKey(ctx context.Context, key storage.Key) error
}

// Emitter publishes committed ledger events. Emit must not block.
type Emitter interface {
	Emit(event models.Event) bool
}

// AccountProvider supplies the opening balance of an account connecting for
// the first time
type AccountProvider interface {
	OpeningBalance(ctx context.Context, account string) (decimal.Decimal, error)
}

// StaticAccountProvider gives every new account the same balance
type StaticAccountProvider struct {
	Balance decimal.Decimal
}

// OpeningBalance returns the configured balance
func (p StaticAccountProvider) OpeningBalance(ctx context.Context, account string) (decimal.Decimal, error) {
	return p.Balance, nil
}

// SessionConfig configures a SessionService
type SessionConfig struct {
	Policy            *ledger.Policy // nil uses ledger.DefaultPolicy
	ClearOnDisconnect bool
	SeenUpdateLimit   int
	Clock             func() time.Time
	NewID             func() string
	Metrics           *metrics.Metrics
}

// StartInput represents input for starting or replacing a copy position
type StartInput struct {
	TraderID    string          `json:"traderId"`
	Amount      decimal.Decimal `json:"amount"`
	CopyRatio   decimal.Decimal `json:"copyRatio"`
	StopLoss    decimal.Decimal `json:"stopLoss"`
	TakeProfit  decimal.Decimal `json:"takeProfit"`
	MaxPerTrade decimal.Decimal `json:"maxPerTrade"`
	Replace     bool            `json:"replace"`
}

// TradeInput represents input for recording a manual trade
type TradeInput struct {
	Asset         string            `json:"asset"`
	Amount        decimal.Decimal   `json:"amount"`
	Price         decimal.Decimal   `json:"price"`
	ProfitPercent decimal.Decimal   `json:"profitPercent"`
	Status        types.TradeStatus `json:"status,omitempty"`
}

// SessionService owns the ledgers of connected accounts. Every successful
// transition schedules a snapshot and emits an event; neither can block or
// undo the transition.
type SessionService struct {
	store     storage.Store
	writer    SnapshotQueue
	directory *TraderDirectory
	accounts  AccountProvider
	emitter   Emitter
	cfg       SessionConfig

	mu       sync.RWMutex
	sessions map[string]*session
	closing  map[string]*closingSession

	revision atomic.Uint64
}

// NewSessionService creates a new session service
func NewSessionService(
	store storage.Store,
	writer SnapshotQueue,
	directory *TraderDirectory,
	accounts AccountProvider,
	emitter Emitter,
	cfg SessionConfig,
) *SessionService {
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.NewID == nil {
		cfg.NewID = uuid.NewString
	}
	if emitter == nil {
		emitter = nopEmitter{}
	}

	s := &SessionService{
		store:     store,
		writer:    writer,
		directory: directory,
		accounts:  accounts,
		emitter:   emitter,
		cfg:       cfg,
		sessions:  make(map[string]*session),
		closing:   make(map[string]*closingSession),
	}
	// revisions must keep growing across restarts
	s.revision.Store(uint64(cfg.Clock().UnixNano()))
	return s
}

const finalWriteTimeout = 10 * time.Second

type nopEmitter struct{}

func (nopEmitter) Emit(models.Event) bool { return true }

func (s *SessionService) ledgerOptions() ledger.Options {
	return ledger.Options{Policy: s.cfg.Policy, Clock: s.cfg.Clock, NewID: s.cfg.NewID}
}

func (s *SessionService) nextRevision() uint64 {
	return s.revision.Add(1)
}

// observeRevision raises the counter to at least rev
func (s *SessionService) observeRevision(rev uint64) {
	for {
		cur := s.revision.Load()
		if cur >= rev || s.revision.CompareAndSwap(cur, rev) {
			return
		}
	}
}

func (s *SessionService) observe(operation string, err error) {
	if s.cfg.Metrics != nil {
		s.cfg.Metrics.ObserveLedgerOp(operation, err)
	}
}

func (s *SessionService) setActiveSessions(n int) {
	if s.cfg.Metrics != nil {
		s.cfg.Metrics.ActiveSessions.Set(float64(n))
	}
}

func (s *SessionService) lookup(account string) (*session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[account]
	return sess, ok
}

// withSession runs fn with the account's session locked
func (s *SessionService) withSession(account string, fn func(sess *session) error) error {
	sess, ok := s.lookup(account)
	if !ok {
		return walletNotConnected(account)
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.closed {
		return walletNotConnected(account)
	}
	return fn(sess)
}

// persistLocked schedules the session document and returns its revision.
// The caller holds sess.mu.
func (s *SessionService) persistLocked(account string, sess *session) uint64 {
	rev := s.nextRevision()
	data, err := sess.encode()
	if err != nil {
		logging.WithField("account", account).WithError(err).Error("Failed to encode session snapshot")
		return rev
	}
	if !s.writer.Enqueue(storage.SessionKey(account), storage.Record{Data: data, Revision: rev}) {
		logging.WithField("account", account).Warn("Snapshot queue full, snapshot not scheduled")
	}
	return rev
}

func (s *SessionService) emit(account string, kind types.EventKind, traderID string, amount, balance decimal.Decimal, rev uint64) {
	s.emitter.Emit(models.Event{
		ID:       s.cfg.NewID(),
		Account:  account,
		Kind:     kind,
		TraderID: traderID,
		Amount:   amount,
		Balance:  balance,
		Revision: rev,
		At:       s.cfg.Clock().UTC(),
	})
}

// Connect opens a session for account. A persisted session is restored;
// otherwise a new ledger is funded from the account provider. Connecting an
// already connected account returns its wallet.
func (s *SessionService) Connect(ctx context.Context, account string) (models.Wallet, error) {
	wallet, err := s.connect(ctx, account)
	s.observe("connect", err)
	return wallet, err
}

func (s *SessionService) connect(ctx context.Context, account string) (models.Wallet, error) {
	if err := ledger.ValidateAccountID(account); err != nil {
		return models.Wallet{}, err
	}
	for {
		wallet, again, err := s.tryConnect(ctx, account)
		if !again {
			return wallet, err
		}
	}
}

// tryConnect opens the session once. It asks to be retried when a
// disconnect of the same account started or finished while it was loading.
func (s *SessionService) tryConnect(ctx context.Context, account string) (models.Wallet, bool, error) {
	s.mu.RLock()
	existing, ok := s.sessions[account]
	closing := s.closing[account]
	s.mu.RUnlock()
	if ok {
		return existing.ledger.Wallet(), false, nil
	}

	// a disconnect in progress owns the latest state until its final write ends
	if closing != nil {
		select {
		case <-closing.done:
		case <-ctx.Done():
			return models.Wallet{}, false, ctx.Err()
		}
		if !closing.parked {
			closing = nil
		}
	}

	sess, restored, err := s.open(ctx, account, closing)
	if err != nil {
		return models.Wallet{}, false, err
	}

	s.mu.Lock()
	if existing, ok := s.sessions[account]; ok {
		s.mu.Unlock()
		return existing.ledger.Wallet(), false, nil
	}
	if s.closing[account] != closing {
		s.mu.Unlock()
		return models.Wallet{}, true, nil
	}
	delete(s.closing, account)
	s.sessions[account] = sess
	active := len(s.sessions)
	s.mu.Unlock()
	s.setActiveSessions(active)

	sess.mu.Lock()
	defer sess.mu.Unlock()

	rev := s.revision.Load()
	if !restored || closing != nil {
		rev = s.persistLocked(account, sess)
	}
	wallet := sess.ledger.Wallet()
	s.emit(account, types.EventConnected, "", decimal.Zero, wallet.Balance, rev)

	logging.FromContext(ctx).WithFields(map[string]interface{}{
		"account":  account,
		"restored": restored,
		"balance":  wallet.Balance.String(),
	}).Info("Session connected")
	return wallet, false, nil
}

// open builds the session for account. A parked disconnect wins over the
// store, which has not seen its final write yet.
func (s *SessionService) open(ctx context.Context, account string, parked *closingSession) (*session, bool, error) {
	if parked != nil {
		switch {
		case parked.cleared:
			return s.fresh(ctx, account)
		case parked.doc != nil:
			sess, err := restoreSession(parked.doc, s.ledgerOptions(), s.cfg.SeenUpdateLimit)
			if err != nil {
				return nil, false, err
			}
			return sess, true, nil
		}
	}

	rec, ok, err := s.store.Get(ctx, storage.SessionKey(account))
	if err != nil {
		return nil, false, fmt.Errorf("failed to load session: %w", err)
	}
	if !ok {
		return s.fresh(ctx, account)
	}
	s.observeRevision(rec.Revision)
	sess, err := restoreSession(rec.Data, s.ledgerOptions(), s.cfg.SeenUpdateLimit)
	if err != nil {
		return nil, false, err
	}
	return sess, true, nil
}

// fresh funds a new ledger from the account provider
func (s *SessionService) fresh(ctx context.Context, account string) (*session, bool, error) {
	balance, err := s.accounts.OpeningBalance(ctx, account)
	if err != nil {
		return nil, false, fmt.Errorf("failed to get opening balance: %w", err)
	}
	l, err := ledger.New(account, balance, s.ledgerOptions())
	if err != nil {
		return nil, false, err
	}
	return newSession(l, s.cfg.SeenUpdateLimit), false, nil
}

// Disconnect closes the session. Its state stays persisted for the next
// Connect unless ClearOnDisconnect is set, in which case it is deleted.
func (s *SessionService) Disconnect(ctx context.Context, account string) error {
	err := s.disconnect(ctx, account)
	s.observe("disconnect", err)
	return err
}

func (s *SessionService) disconnect(ctx context.Context, account string) error {
	s.mu.Lock()
	sess, ok := s.sessions[account]
	if !ok {
		s.mu.Unlock()
		return walletNotConnected(account)
	}
	closing := &closingSession{done: make(chan struct{})}
	delete(s.sessions, account)
	s.closing[account] = closing
	active := len(s.sessions)
	s.mu.Unlock()
	s.setActiveSessions(active)
	defer close(closing.done)

	sess.mu.Lock()
	defer sess.mu.Unlock()
	sess.closed = true

	logger := logging.FromContext(ctx).WithField("account", account)
	key := storage.SessionKey(account)
	rev := s.nextRevision()

	var (
		doc    []byte
		rec    storage.Record
		queued = true
	)
	if s.cfg.ClearOnDisconnect {
		s.writer.EnqueueDelete(key)
	} else if data, err := sess.encode(); err != nil {
		logger.WithError(err).Error("Failed to encode session snapshot")
	} else {
		doc = data
		rec = storage.Record{Data: data, Revision: rev}
		queued = s.writer.Enqueue(key, rec)
	}

	// the final write must not depend on the caller staying around
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finalWriteTimeout)
	var err error
	if queued {
		err = s.writer.FlushKey(writeCtx, key)
	} else {
		err = s.store.Set(writeCtx, key, rec)
	}
	cancel()

	s.mu.Lock()
	if err != nil {
		closing.parked = true
		closing.cleared = s.cfg.ClearOnDisconnect
		closing.doc = doc
	} else {
		delete(s.closing, account)
	}
	s.mu.Unlock()
	if err != nil {
		logger.WithError(err).Warn("Final session write failed, kept in memory until it lands")
	}

	s.emit(account, types.EventDisconnected, "", decimal.Zero, sess.ledger.Wallet().Balance, rev)
	logger.WithField("cleared", s.cfg.ClearOnDisconnect).Info("Session disconnected")
	return nil
}

// Connected reports whether account has an open session
func (s *SessionService) Connected(account string) bool {
	_, ok := s.lookup(account)
	return ok
}

// Wallet returns the account's wallet
func (s *SessionService) Wallet(ctx context.Context, account string) (models.Wallet, error) {
	var wallet models.Wallet
	err := s.withSession(account, func(sess *session) error {
		wallet = sess.ledger.Wallet()
		return nil
	})
	return wallet, err
}

// Deposit credits amount to the wallet
func (s *SessionService) Deposit(ctx context.Context, account string, amount decimal.Decimal) (models.Wallet, error) {
	var wallet models.Wallet
	err := s.withSession(account, func(sess *session) error {
		w, err := sess.ledger.Deposit(amount)
		if err != nil {
			return err
		}
		wallet = w
		rev := s.persistLocked(account, sess)
		s.emit(account, types.EventDeposit, "", amount, w.Balance, rev)
		return nil
	})
	s.observe("deposit", err)
	return wallet, err
}

// Withdraw debits amount from the wallet for transfer to destination
func (s *SessionService) Withdraw(ctx context.Context, account string, amount decimal.Decimal, destination string) (models.Wallet, error) {
	var wallet models.Wallet
	err := s.withSession(account, func(sess *session) error {
		w, err := sess.ledger.Withdraw(amount, destination)
		if err != nil {
			return err
		}
		wallet = w
		rev := s.persistLocked(account, sess)
		s.emit(account, types.EventWithdraw, "", amount, w.Balance, rev)
		return nil
	})
	s.observe("withdraw", err)
	return wallet, err
}

// StartCopyTrading allocates capital to copy a trader from the directory.
// With Replace set an existing position for the trader is settled first.
func (s *SessionService) StartCopyTrading(ctx context.Context, account string, in StartInput) (models.CopyPosition, error) {
	operation := "start_copy"
	if in.Replace {
		operation = "replace_copy"
	}
	pos, err := s.startCopyTrading(ctx, account, in)
	s.observe(operation, err)
	return pos, err
}

func (s *SessionService) startCopyTrading(ctx context.Context, account string, in StartInput) (models.CopyPosition, error) {
	if !s.Connected(account) {
		return models.CopyPosition{}, walletNotConnected(account)
	}
	trader, err := s.directory.Get(ctx, in.TraderID)
	if err != nil {
		return models.CopyPosition{}, err
	}

	params := ledger.StartParams{
		Trader:      trader.Ref(),
		Amount:      in.Amount,
		CopyRatio:   in.CopyRatio,
		StopLoss:    in.StopLoss,
		TakeProfit:  in.TakeProfit,
		MaxPerTrade: in.MaxPerTrade,
	}

	var pos models.CopyPosition
	err = s.withSession(account, func(sess *session) error {
		kind := types.EventPositionStarted
		var err error
		if in.Replace {
			kind = types.EventPositionReplaced
			pos, _, err = sess.ledger.ReplaceCopyTrading(params)
		} else {
			pos, err = sess.ledger.StartCopyTrading(params)
		}
		if err != nil {
			return err
		}
		rev := s.persistLocked(account, sess)
		s.emit(account, kind, pos.Trader.ID, pos.Amount, sess.ledger.Wallet().Balance, rev)
		return nil
	})
	if err != nil {
		return models.CopyPosition{}, err
	}

	logging.FromContext(ctx).WithFields(map[string]interface{}{
		"account":  account,
		"traderId": pos.Trader.ID,
		"amount":   pos.Amount.String(),
		"replace":  in.Replace,
	}).Info("Copy trading started")
	return pos, nil
}

func (s *SessionService) setPaused(ctx context.Context, account, traderID string, paused bool) (models.CopyPosition, error) {
	var pos models.CopyPosition
	err := s.withSession(account, func(sess *session) error {
		before, _ := sess.ledger.Position(traderID)

		var err error
		kind := types.EventPositionResumed
		if paused {
			kind = types.EventPositionPaused
			pos, err = sess.ledger.PauseCopyTrading(traderID)
		} else {
			pos, err = sess.ledger.ResumeCopyTrading(traderID)
		}
		if err != nil {
			return err
		}
		if before.Paused != pos.Paused {
			rev := s.persistLocked(account, sess)
			s.emit(account, kind, traderID, decimal.Zero, sess.ledger.Wallet().Balance, rev)
		}
		return nil
	})
	return pos, err
}

// PauseCopyTrading pauses the position for traderID. Pausing twice is a no-op.
func (s *SessionService) PauseCopyTrading(ctx context.Context, account, traderID string) (models.CopyPosition, error) {
	pos, err := s.setPaused(ctx, account, traderID, true)
	s.observe("pause_copy", err)
	return pos, err
}

// ResumeCopyTrading resumes the position for traderID
func (s *SessionService) ResumeCopyTrading(ctx context.Context, account, traderID string) (models.CopyPosition, error) {
	pos, err := s.setPaused(ctx, account, traderID, false)
	s.observe("resume_copy", err)
	return pos, err
}

// StopCopyTrading closes the position. It returns the amount credited back
// and the wallet as it stands right after the credit.
func (s *SessionService) StopCopyTrading(ctx context.Context, account, traderID string) (decimal.Decimal, models.Wallet, error) {
	var (
		returned decimal.Decimal
		wallet   models.Wallet
	)
	err := s.withSession(account, func(sess *session) error {
		r, err := sess.ledger.StopCopyTrading(traderID)
		if err != nil {
			return err
		}
		returned = r
		wallet = sess.ledger.Wallet()
		rev := s.persistLocked(account, sess)
		s.emit(account, types.EventPositionStopped, traderID, r, wallet.Balance, rev)
		return nil
	})
	s.observe("stop_copy", err)
	if err == nil {
		logging.FromContext(ctx).WithFields(map[string]interface{}{
			"account":  account,
			"traderId": traderID,
			"returned": returned.String(),
		}).Info("Copy trading stopped")
	}
	return returned, wallet, err
}

// ApplyPnLUpdate adds delta to the position's profit. A non-empty updateID
// already seen for this account is ignored, as are updates to paused
// positions; applied reports whether the profit changed.
func (s *SessionService) ApplyPnLUpdate(ctx context.Context, account, traderID string, delta decimal.Decimal, updateID string) (models.CopyPosition, bool, error) {
	var (
		pos     models.CopyPosition
		applied bool
	)
	err := s.withSession(account, func(sess *session) error {
		if updateID != "" && sess.seen.contains(updateID) {
			pos, _ = sess.ledger.Position(traderID)
			return nil
		}

		before, _ := sess.ledger.Position(traderID)
		p, ok, err := sess.ledger.ApplyPnLUpdate(traderID, delta)
		if err != nil {
			return err
		}
		pos, applied = p, ok

		if updateID != "" {
			sess.seen.add(updateID)
		}
		if !applied && updateID == "" {
			return nil
		}
		rev := s.persistLocked(account, sess)
		if applied {
			s.emit(account, types.EventPnLApplied, traderID, p.TotalProfit.Sub(before.TotalProfit), sess.ledger.Wallet().Balance, rev)
		}
		return nil
	})
	s.observe("apply_pnl", err)
	return pos, applied, err
}

// Positions returns the account's copy positions in start order
func (s *SessionService) Positions(ctx context.Context, account string) ([]models.CopyPosition, error) {
	var positions []models.CopyPosition
	err := s.withSession(account, func(sess *session) error {
		positions = sess.ledger.Positions()
		return nil
	})
	return positions, err
}

// RiskStatus evaluates the advisory stop-loss and take-profit thresholds
func (s *SessionService) RiskStatus(ctx context.Context, account, traderID string) (ledger.RiskAssessment, error) {
	var risk ledger.RiskAssessment
	err := s.withSession(account, func(sess *session) error {
		pos, ok := sess.ledger.Position(traderID)
		if !ok {
			return ledger.ErrPositionNotFound
		}
		risk = ledger.RiskStatus(pos)
		return nil
	})
	return risk, err
}

// MirrorTradeSize returns the size the position would mirror for a trade of
// sourceAmount by its trader
func (s *SessionService) MirrorTradeSize(ctx context.Context, account, traderID string, sourceAmount decimal.Decimal) (decimal.Decimal, error) {
	var size decimal.Decimal
	err := s.withSession(account, func(sess *session) error {
		var err error
		size, err = sess.ledger.MirrorTradeSize(traderID, sourceAmount)
		return err
	})
	return size, err
}

// Portfolio computes the account's portfolio from its current state
func (s *SessionService) Portfolio(ctx context.Context, account string) (models.Portfolio, error) {
	var portfolio models.Portfolio
	err := s.withSession(account, func(sess *session) error {
		portfolio = sess.ledger.Portfolio(sess.trades)
		return nil
	})
	return portfolio, err
}

// Follow adds a directory trader to the account's followed set
func (s *SessionService) Follow(ctx context.Context, account, traderID string) ([]string, error) {
	if !s.Connected(account) {
		return nil, walletNotConnected(account)
	}
	if _, err := s.directory.Get(ctx, traderID); err != nil {
		return nil, err
	}

	var following []string
	err := s.withSession(account, func(sess *session) error {
		if !sess.isFollowing(traderID) {
			sess.following = append(sess.following, traderID)
			s.persistLocked(account, sess)
		}
		following = append([]string(nil), sess.following...)
		return nil
	})
	s.observe("follow", err)
	return following, err
}

// Unfollow removes traderID from the followed set. Unfollowing a trader that
// is not followed is a no-op.
func (s *SessionService) Unfollow(ctx context.Context, account, traderID string) ([]string, error) {
	var following []string
	err := s.withSession(account, func(sess *session) error {
		for i, id := range sess.following {
			if id == traderID {
				sess.following = append(sess.following[:i:i], sess.following[i+1:]...)
				s.persistLocked(account, sess)
				break
			}
		}
		following = append([]string(nil), sess.following...)
		return nil
	})
	s.observe("unfollow", err)
	return following, err
}

// Following returns the followed trader ids in follow order
func (s *SessionService) Following(ctx context.Context, account string) ([]string, error) {
	var following []string
	err := s.withSession(account, func(sess *session) error {
		following = append([]string(nil), sess.following...)
		return nil
	})
	return following, err
}

// RecordTrade records a manual trade. Open trades count towards holdings.
func (s *SessionService) RecordTrade(ctx context.Context, account string, in TradeInput) (models.Trade, error) {
	var trade models.Trade
	err := s.withSession(account, func(sess *session) error {
		if err := validateTrade(&in); err != nil {
			return err
		}
		trade = models.Trade{
			ID:            s.cfg.NewID(),
			Asset:         in.Asset,
			Amount:        in.Amount,
			Price:         in.Price,
			ProfitPercent: in.ProfitPercent,
			Status:        in.Status,
			OpenedAt:      s.cfg.Clock().UTC(),
		}
		sess.trades = append(sess.trades, trade)
		s.persistLocked(account, sess)
		return nil
	})
	s.observe("record_trade", err)
	return trade, err
}

// CloseTrade marks a manual trade closed so it no longer counts as a holding
func (s *SessionService) CloseTrade(ctx context.Context, account, tradeID string) (models.Trade, error) {
	var trade models.Trade
	err := s.withSession(account, func(sess *session) error {
		for i := range sess.trades {
			if sess.trades[i].ID != tradeID {
				continue
			}
			if sess.trades[i].Status != types.TradeClosed {
				sess.trades[i].Status = types.TradeClosed
				s.persistLocked(account, sess)
			}
			trade = sess.trades[i]
			return nil
		}
		return types.NewServiceError(types.CodeTradeNotFound,
			fmt.Sprintf("trade %s not found", tradeID),
			map[string]interface{}{"tradeId": tradeID})
	})
	s.observe("close_trade", err)
	return trade, err
}

// Trades returns the account's manual trades
func (s *SessionService) Trades(ctx context.Context, account string) ([]models.Trade, error) {
	var trades []models.Trade
	err := s.withSession(account, func(sess *session) error {
		trades = append([]models.Trade(nil), sess.trades...)
		return nil
	})
	return trades, err
}

func validateTrade(in *TradeInput) error {
	if in.Asset == "" {
		return types.NewServiceError(types.CodeInvalidParameter,
			"invalid parameter 'asset': is required",
			map[string]interface{}{"parameter": "asset"})
	}
	if !in.Amount.IsPositive() {
		return types.NewServiceError(types.CodeInvalidAmount,
			"amount must be greater than zero",
			map[string]interface{}{"field": "amount", "amount": in.Amount.String()})
	}
	if !in.Price.IsPositive() {
		return types.NewServiceError(types.CodeInvalidAmount,
			"price must be greater than zero",
			map[string]interface{}{"field": "price", "amount": in.Price.String()})
	}
	switch in.Status {
	case "":
		in.Status = types.TradeOpen
	case types.TradeOpen, types.TradeClosed:
	default:
		return types.NewServiceError(types.CodeInvalidParameter,
			fmt.Sprintf("invalid parameter 'status': unknown status %q", in.Status),
			map[string]interface{}{"parameter": "status"})
	}
	return nil
}

func walletNotConnected(account string) error {
	return types.NewServiceError(types.CodeWalletNotConnected,
		"wallet is not connected",
		map[string]interface{}{"account": account})
}
