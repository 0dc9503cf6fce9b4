// Package ledger implements the copy-trade ledger: a wallet balance and the
// set of copy positions funded from it.
//
// Capital is always either in the wallet balance or in exactly one position's
// Amount. Every operation validates before mutating and applies its effect as
// a single transition under the ledger mutex, so a failed call leaves the
// ledger untouched.
package ledger

import (
	"sync"
	"time"

	"github.com/copytrade-ledger/internal/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Policy holds the ledger's policy constants
type Policy struct {
	MinimumWithdrawal decimal.Decimal `yaml:"minimumWithdrawal"`
	MinimumInvestment decimal.Decimal `yaml:"minimumInvestment"`
}

// DefaultPolicy returns the standard limits: 5 XLM withdrawals, 1000 per copy
func DefaultPolicy() Policy {
	return Policy{
		MinimumWithdrawal: decimal.NewFromInt(5),
		MinimumInvestment: decimal.NewFromInt(1000),
	}
}

// Options configures a Ledger. Zero values fall back to defaults; a nil
// Policy means DefaultPolicy, while a set one is used as given.
type Options struct {
	Policy *Policy
	Clock  func() time.Time
	NewID  func() string
}

func (o Options) withDefaults() Options {
	if o.Policy == nil {
		p := DefaultPolicy()
		o.Policy = &p
	}
	if o.Clock == nil {
		o.Clock = time.Now
	}
	if o.NewID == nil {
		o.NewID = uuid.NewString
	}
	return o
}

// StartParams describes a new copy position
type StartParams struct {
	Trader      models.TraderRef
	Amount      decimal.Decimal
	CopyRatio   decimal.Decimal
	StopLoss    decimal.Decimal
	TakeProfit  decimal.Decimal
	MaxPerTrade decimal.Decimal
}

// Snapshot is a value copy of the ledger state used for persistence
type Snapshot struct {
	Account   string                `json:"account"`
	Balance   decimal.Decimal       `json:"balance"`
	Positions []models.CopyPosition `json:"positions"`
}

// Ledger owns one account's balance and copy positions
type Ledger struct {
	mu        sync.Mutex
	account   string
	balance   decimal.Decimal
	positions map[string]*models.CopyPosition
	order     []string // trader ids in start order
	policy    Policy
	opts      Options
}

// New creates a ledger for a freshly connected account
func New(account string, openingBalance decimal.Decimal, opts Options) (*Ledger, error) {
	if openingBalance.IsNegative() {
		return nil, invalidParameter("openingBalance", "must not be negative")
	}
	opts = opts.withDefaults()
	return &Ledger{
		account:   account,
		balance:   openingBalance,
		positions: make(map[string]*models.CopyPosition),
		policy:    *opts.Policy,
		opts:      opts,
	}, nil
}

// Restore rebuilds a ledger from a snapshot
func Restore(snap Snapshot, opts Options) (*Ledger, error) {
	l, err := New(snap.Account, snap.Balance, opts)
	if err != nil {
		return nil, err
	}
	for i := range snap.Positions {
		p := snap.Positions[i]
		if _, exists := l.positions[p.Trader.ID]; exists {
			return nil, duplicatePosition(p.Trader.ID)
		}
		if p.Amount.IsNegative() || p.CurrentValue().IsNegative() {
			return nil, invalidParameter("positions", "position value must not be negative")
		}
		l.positions[p.Trader.ID] = &p
		l.order = append(l.order, p.Trader.ID)
	}
	return l, nil
}

// Account returns the account id the ledger belongs to
func (l *Ledger) Account() string {
	return l.account
}

// Policy returns the policy constants in effect
func (l *Ledger) Policy() Policy {
	return l.policy
}

// Wallet returns the current wallet state
func (l *Ledger) Wallet() models.Wallet {
	l.mu.Lock()
	defer l.mu.Unlock()
	return models.NewWallet(l.account, l.balance)
}

// Positions returns copies of all positions in start order
func (l *Ledger) Positions() []models.CopyPosition {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.positionsLocked()
}

func (l *Ledger) positionsLocked() []models.CopyPosition {
	out := make([]models.CopyPosition, 0, len(l.order))
	for _, id := range l.order {
		out = append(out, *l.positions[id])
	}
	return out
}

// Position returns a copy of the position for traderID
func (l *Ledger) Position(traderID string) (models.CopyPosition, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	p, ok := l.positions[traderID]
	if !ok {
		return models.CopyPosition{}, false
	}
	return *p, true
}

// Snapshot returns a value copy of the ledger state
func (l *Ledger) Snapshot() Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()
	return Snapshot{
		Account:   l.account,
		Balance:   l.balance,
		Positions: l.positionsLocked(),
	}
}

// Deposit credits amount to the wallet
func (l *Ledger) Deposit(amount decimal.Decimal) (models.Wallet, error) {
	if !amount.IsPositive() {
		return models.Wallet{}, invalidAmount("deposit", amount)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.balance = l.balance.Add(amount)
	return models.NewWallet(l.account, l.balance), nil
}

// Withdraw debits amount from the wallet towards destination
func (l *Ledger) Withdraw(amount decimal.Decimal, destination string) (models.Wallet, error) {
	if !amount.IsPositive() {
		return models.Wallet{}, invalidAmount("withdrawal", amount)
	}
	if amount.LessThan(l.policy.MinimumWithdrawal) {
		return models.Wallet{}, belowMinimum("withdrawal", amount, l.policy.MinimumWithdrawal)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if amount.GreaterThan(l.balance) {
		return models.Wallet{}, insufficientBalance(amount, l.balance)
	}
	if err := ValidateAccountID(destination); err != nil {
		return models.Wallet{}, err
	}

	l.balance = l.balance.Sub(amount)
	return models.NewWallet(l.account, l.balance), nil
}

func (l *Ledger) validateStart(p StartParams) error {
	if p.Trader.ID == "" {
		return invalidParameter("traderId", "is required")
	}
	if !p.CopyRatio.IsPositive() || p.CopyRatio.GreaterThan(hundred) {
		return invalidParameter("copyRatio", "must be greater than 0 and at most 100")
	}
	if p.StopLoss.IsNegative() {
		return invalidParameter("stopLoss", "must not be negative")
	}
	if p.TakeProfit.IsNegative() {
		return invalidParameter("takeProfit", "must not be negative")
	}
	if p.MaxPerTrade.IsNegative() {
		return invalidParameter("maxPerTrade", "must not be negative")
	}
	if !p.Amount.IsPositive() {
		return invalidAmount("amount", p.Amount)
	}
	return nil
}

func (l *Ledger) newPosition(p StartParams) *models.CopyPosition {
	return &models.CopyPosition{
		ID:          l.opts.NewID(),
		Trader:      p.Trader,
		Amount:      p.Amount,
		CopyRatio:   p.CopyRatio,
		StopLoss:    p.StopLoss,
		TakeProfit:  p.TakeProfit,
		MaxPerTrade: p.MaxPerTrade,
		Active:      true,
		Paused:      false,
		TotalProfit: decimal.Zero,
		StartDate:   l.opts.Clock(),
	}
}

// StartCopyTrading debits p.Amount and opens a position for p.Trader.
// Copying a trader that already has a position fails with DuplicatePosition;
// use ReplaceCopyTrading to swap it explicitly.
func (l *Ledger) StartCopyTrading(p StartParams) (models.CopyPosition, error) {
	if err := l.validateStart(p); err != nil {
		return models.CopyPosition{}, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, exists := l.positions[p.Trader.ID]; exists {
		return models.CopyPosition{}, duplicatePosition(p.Trader.ID)
	}
	if p.Amount.LessThan(l.policy.MinimumInvestment) {
		return models.CopyPosition{}, belowMinimum("investment", p.Amount, l.policy.MinimumInvestment)
	}
	if p.Amount.GreaterThan(l.balance) {
		return models.CopyPosition{}, insufficientBalance(p.Amount, l.balance)
	}

	pos := l.newPosition(p)
	l.balance = l.balance.Sub(p.Amount)
	l.positions[p.Trader.ID] = pos
	l.order = append(l.order, p.Trader.ID)

	return *pos, nil
}

// ReplaceCopyTrading settles any existing position for p.Trader exactly as
// StopCopyTrading would and opens the new one in the same transition. The
// settled amount is returned (zero when there was nothing to replace).
func (l *Ledger) ReplaceCopyTrading(p StartParams) (models.CopyPosition, decimal.Decimal, error) {
	if err := l.validateStart(p); err != nil {
		return models.CopyPosition{}, decimal.Zero, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if p.Amount.LessThan(l.policy.MinimumInvestment) {
		return models.CopyPosition{}, decimal.Zero, belowMinimum("investment", p.Amount, l.policy.MinimumInvestment)
	}

	settled := decimal.Zero
	existing, exists := l.positions[p.Trader.ID]
	if exists {
		settled = existing.CurrentValue()
	}
	available := l.balance.Add(settled)
	if p.Amount.GreaterThan(available) {
		return models.CopyPosition{}, decimal.Zero, insufficientBalance(p.Amount, available)
	}

	pos := l.newPosition(p)
	l.balance = available.Sub(p.Amount)
	l.positions[p.Trader.ID] = pos
	if !exists {
		l.order = append(l.order, p.Trader.ID)
	}

	return *pos, settled, nil
}

func (l *Ledger) setPaused(traderID string, paused bool) (models.CopyPosition, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	pos, ok := l.positions[traderID]
	if !ok {
		return models.CopyPosition{}, positionNotFound(traderID)
	}
	pos.Paused = paused
	return *pos, nil
}

// PauseCopyTrading suspends trading and P&L accrual. Pausing a paused
// position is a no-op.
func (l *Ledger) PauseCopyTrading(traderID string) (models.CopyPosition, error) {
	return l.setPaused(traderID, true)
}

// ResumeCopyTrading resumes a paused position. Resuming an unpaused position
// is a no-op.
func (l *Ledger) ResumeCopyTrading(traderID string) (models.CopyPosition, error) {
	return l.setPaused(traderID, false)
}

// StopCopyTrading removes the position and credits Amount + TotalProfit back
// to the wallet. The credited amount is returned.
func (l *Ledger) StopCopyTrading(traderID string) (decimal.Decimal, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	pos, ok := l.positions[traderID]
	if !ok {
		return decimal.Zero, positionNotFound(traderID)
	}

	returned := pos.CurrentValue()
	l.balance = l.balance.Add(returned)
	delete(l.positions, traderID)
	for i, id := range l.order {
		if id == traderID {
			l.order = append(l.order[:i], l.order[i+1:]...)
			break
		}
	}

	return returned, nil
}

// ApplyPnLUpdate adds delta to the position's TotalProfit. Paused or inactive
// positions are frozen: the update is ignored and applied is false. A loss
// never takes the position value below zero.
func (l *Ledger) ApplyPnLUpdate(traderID string, delta decimal.Decimal) (pos models.CopyPosition, applied bool, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	p, ok := l.positions[traderID]
	if !ok {
		return models.CopyPosition{}, false, positionNotFound(traderID)
	}
	if !p.Trading() {
		return *p, false, nil
	}

	profit := p.TotalProfit.Add(delta)
	if floor := p.Amount.Neg(); profit.LessThan(floor) {
		profit = floor
	}
	p.TotalProfit = profit

	return *p, true, nil
}

// MirrorTradeSize returns the size to mirror for a trade of sourceAmount by
// the copied trader: sourceAmount * CopyRatio / 100, capped at MaxPerTrade.
func (l *Ledger) MirrorTradeSize(traderID string, sourceAmount decimal.Decimal) (decimal.Decimal, error) {
	if !sourceAmount.IsPositive() {
		return decimal.Zero, invalidAmount("sourceAmount", sourceAmount)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	p, ok := l.positions[traderID]
	if !ok {
		return decimal.Zero, positionNotFound(traderID)
	}
	if !p.Trading() {
		return decimal.Zero, nil
	}

	size := sourceAmount.Mul(p.CopyRatio).Div(hundred)
	if p.MaxPerTrade.IsPositive() && size.GreaterThan(p.MaxPerTrade) {
		size = p.MaxPerTrade
	}
	return size, nil
}

// Portfolio computes the portfolio for the current state and trades
func (l *Ledger) Portfolio(trades []models.Trade) models.Portfolio {
	l.mu.Lock()
	wallet := models.NewWallet(l.account, l.balance)
	positions := l.positionsLocked()
	l.mu.Unlock()

	return ComputePortfolio(wallet, positions, trades)
}
