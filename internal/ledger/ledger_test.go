package ledger

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/copytrade-ledger/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	testAccount     = "G" + strings.Repeat("A", 55)
	testDestination = "G" + strings.Repeat("B", 55)
	fixedTime       = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func assertDecimal(t *testing.T, want string, got decimal.Decimal, msgAndArgs ...interface{}) {
	t.Helper()
	if !d(want).Equal(got) {
		assert.Fail(t, fmt.Sprintf("decimal mismatch: want %s, got %s", want, got.String()), msgAndArgs...)
	}
}

func newTestLedger(t *testing.T, balance string) *Ledger {
	t.Helper()
	seq := 0
	l, err := New(testAccount, d(balance), Options{
		Clock: func() time.Time { return fixedTime },
		NewID: func() string {
			seq++
			return fmt.Sprintf("pos-%d", seq)
		},
	})
	require.NoError(t, err)
	return l
}

func trader(id string) models.TraderRef {
	return models.TraderRef{ID: id, DisplayName: "Trader " + id, Verified: true}
}

func startParams(id, amount string) StartParams {
	return StartParams{
		Trader:      trader(id),
		Amount:      d(amount),
		CopyRatio:   d("50"),
		StopLoss:    d("20"),
		TakeProfit:  d("50"),
		MaxPerTrade: d("500"),
	}
}

func TestNew(t *testing.T) {
	t.Run("applies default policy", func(t *testing.T) {
		l, err := New(testAccount, d("100"), Options{})
		require.NoError(t, err)
		assertDecimal(t, "5", l.Policy().MinimumWithdrawal)
		assertDecimal(t, "1000", l.Policy().MinimumInvestment)
		assert.Equal(t, testAccount, l.Account())
	})

	t.Run("keeps an explicit zero policy", func(t *testing.T) {
		l, err := New(testAccount, d("100"), Options{Policy: &Policy{}})
		require.NoError(t, err)
		assert.True(t, l.Policy().MinimumWithdrawal.IsZero())
		assert.True(t, l.Policy().MinimumInvestment.IsZero())

		w, err := l.Withdraw(d("1"), testDestination)
		require.NoError(t, err)
		assertDecimal(t, "99", w.Balance)
	})

	t.Run("rejects negative opening balance", func(t *testing.T) {
		l, err := New(testAccount, d("-1"), Options{})
		assert.Nil(t, l)
		assert.ErrorIs(t, err, ErrInvalidParameter)
	})
}

// Scenarios 1-6 run against one ledger in sequence.
func TestLedger_ExampleScenarios(t *testing.T) {
	l := newTestLedger(t, "10000")

	// 1. start copying trader A
	pos, err := l.StartCopyTrading(startParams("A", "2000"))
	require.NoError(t, err)
	assertDecimal(t, "8000", l.Wallet().Balance)
	assert.True(t, pos.Active)
	assert.False(t, pos.Paused)
	assertDecimal(t, "2000", pos.Amount)
	assertDecimal(t, "0", pos.TotalProfit)
	assert.Equal(t, fixedTime, pos.StartDate)
	assert.Len(t, l.Positions(), 1)

	// 2. P&L update flows into the portfolio
	pos, applied, err := l.ApplyPnLUpdate("A", d("300"))
	require.NoError(t, err)
	assert.True(t, applied)
	assertDecimal(t, "300", pos.TotalProfit)
	assertDecimal(t, "10300", l.Portfolio(nil).TotalValue)

	// 3. paused positions are frozen
	_, err = l.PauseCopyTrading("A")
	require.NoError(t, err)
	pos, applied, err = l.ApplyPnLUpdate("A", d("500"))
	require.NoError(t, err)
	assert.False(t, applied)
	assertDecimal(t, "300", pos.TotalProfit)

	// 4. stop credits amount plus profit
	returned, err := l.StopCopyTrading("A")
	require.NoError(t, err)
	assertDecimal(t, "2300", returned)
	assertDecimal(t, "10300", l.Wallet().Balance)
	assert.Empty(t, l.Positions())

	// 5. withdrawal below the minimum
	_, err = l.Withdraw(d("3"), testDestination)
	assert.ErrorIs(t, err, ErrBelowMinimum)
	assertDecimal(t, "10300", l.Wallet().Balance)

	// 6. allocation larger than the balance
	_, err = l.StartCopyTrading(startParams("B", "20000"))
	assert.ErrorIs(t, err, ErrInsufficientBalance)
	assertDecimal(t, "10300", l.Wallet().Balance)
	assert.Empty(t, l.Positions())
}

func TestLedger_Deposit(t *testing.T) {
	tests := []struct {
		name    string
		amount  string
		wantErr error
		want    string
	}{
		{name: "credits positive amount", amount: "250.5", want: "1250.5"},
		{name: "rejects zero", amount: "0", wantErr: ErrInvalidAmount, want: "1000"},
		{name: "rejects negative", amount: "-10", wantErr: ErrInvalidAmount, want: "1000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := newTestLedger(t, "1000")
			_, err := l.Deposit(d(tt.amount))
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
			assertDecimal(t, tt.want, l.Wallet().Balance)
		})
	}
}

func TestLedger_Withdraw(t *testing.T) {
	tests := []struct {
		name        string
		amount      string
		destination string
		wantErr     error
		want        string
	}{
		{name: "debits valid withdrawal", amount: "100", destination: testDestination, want: "900"},
		{name: "allows exact minimum", amount: "5", destination: testDestination, want: "995"},
		{name: "allows full balance", amount: "1000", destination: testDestination, want: "0"},
		{name: "rejects zero", amount: "0", destination: testDestination, wantErr: ErrInvalidAmount, want: "1000"},
		{name: "rejects below minimum", amount: "4.99", destination: testDestination, wantErr: ErrBelowMinimum, want: "1000"},
		{name: "rejects more than balance", amount: "1000.01", destination: testDestination, wantErr: ErrInsufficientBalance, want: "1000"},
		{name: "rejects short address", amount: "10", destination: "GABC", wantErr: ErrInvalidAddress, want: "1000"},
		{name: "rejects wrong prefix", amount: "10", destination: "X" + strings.Repeat("B", 55), wantErr: ErrInvalidAddress, want: "1000"},
		{name: "rejects lower case", amount: "10", destination: "G" + strings.Repeat("b", 55), wantErr: ErrInvalidAddress, want: "1000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := newTestLedger(t, "1000")
			_, err := l.Withdraw(d(tt.amount), tt.destination)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
			assertDecimal(t, tt.want, l.Wallet().Balance)
		})
	}
}

func TestLedger_StartCopyTrading_Validation(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(p *StartParams)
		wantErr error
	}{
		{"missing trader", func(p *StartParams) { p.Trader.ID = "" }, ErrInvalidParameter},
		{"zero copy ratio", func(p *StartParams) { p.CopyRatio = d("0") }, ErrInvalidParameter},
		{"copy ratio above 100", func(p *StartParams) { p.CopyRatio = d("100.5") }, ErrInvalidParameter},
		{"negative stop loss", func(p *StartParams) { p.StopLoss = d("-1") }, ErrInvalidParameter},
		{"negative take profit", func(p *StartParams) { p.TakeProfit = d("-1") }, ErrInvalidParameter},
		{"negative max per trade", func(p *StartParams) { p.MaxPerTrade = d("-1") }, ErrInvalidParameter},
		{"zero amount", func(p *StartParams) { p.Amount = d("0") }, ErrInvalidAmount},
		{"below minimum investment", func(p *StartParams) { p.Amount = d("999.99") }, ErrBelowMinimum},
		{"more than balance", func(p *StartParams) { p.Amount = d("5000.01") }, ErrInsufficientBalance},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := newTestLedger(t, "5000")
			p := startParams("A", "1000")
			tt.mutate(&p)

			_, err := l.StartCopyTrading(p)
			assert.ErrorIs(t, err, tt.wantErr)
			assertDecimal(t, "5000", l.Wallet().Balance)
			assert.Empty(t, l.Positions())
		})
	}

	t.Run("copy ratio of exactly 100 is allowed", func(t *testing.T) {
		l := newTestLedger(t, "5000")
		p := startParams("A", "1000")
		p.CopyRatio = d("100")
		_, err := l.StartCopyTrading(p)
		assert.NoError(t, err)
	})
}

func TestLedger_StartCopyTrading_RejectsDuplicate(t *testing.T) {
	l := newTestLedger(t, "10000")
	_, err := l.StartCopyTrading(startParams("A", "2000"))
	require.NoError(t, err)

	_, err = l.StartCopyTrading(startParams("A", "3000"))
	assert.ErrorIs(t, err, ErrDuplicatePosition)
	assertDecimal(t, "8000", l.Wallet().Balance)

	positions := l.Positions()
	require.Len(t, positions, 1)
	assertDecimal(t, "2000", positions[0].Amount)
}

func TestLedger_ReplaceCopyTrading(t *testing.T) {
	t.Run("settles existing position and opens new one", func(t *testing.T) {
		l := newTestLedger(t, "10000")
		_, err := l.StartCopyTrading(startParams("A", "2000"))
		require.NoError(t, err)
		_, _, err = l.ApplyPnLUpdate("A", d("-500"))
		require.NoError(t, err)

		pos, settled, err := l.ReplaceCopyTrading(startParams("A", "4000"))
		require.NoError(t, err)
		assertDecimal(t, "1500", settled)
		assertDecimal(t, "4000", pos.Amount)
		assertDecimal(t, "0", pos.TotalProfit)
		// 8000 + 1500 - 4000
		assertDecimal(t, "5500", l.Wallet().Balance)
		assert.Len(t, l.Positions(), 1)
	})

	t.Run("counts settled value towards available funds", func(t *testing.T) {
		l := newTestLedger(t, "3000")
		_, err := l.StartCopyTrading(startParams("A", "3000"))
		require.NoError(t, err)

		_, settled, err := l.ReplaceCopyTrading(startParams("A", "2500"))
		require.NoError(t, err)
		assertDecimal(t, "3000", settled)
		assertDecimal(t, "500", l.Wallet().Balance)
	})

	t.Run("failure leaves existing position intact", func(t *testing.T) {
		l := newTestLedger(t, "3000")
		_, err := l.StartCopyTrading(startParams("A", "2000"))
		require.NoError(t, err)

		_, _, err = l.ReplaceCopyTrading(startParams("A", "3500"))
		assert.ErrorIs(t, err, ErrInsufficientBalance)
		assertDecimal(t, "1000", l.Wallet().Balance)
		pos, ok := l.Position("A")
		require.True(t, ok)
		assertDecimal(t, "2000", pos.Amount)
	})

	t.Run("starts when nothing to replace", func(t *testing.T) {
		l := newTestLedger(t, "3000")
		_, settled, err := l.ReplaceCopyTrading(startParams("B", "1000"))
		require.NoError(t, err)
		assertDecimal(t, "0", settled)
		assertDecimal(t, "2000", l.Wallet().Balance)
	})
}

func TestLedger_PauseResume(t *testing.T) {
	l := newTestLedger(t, "10000")
	_, err := l.StartCopyTrading(startParams("A", "2000"))
	require.NoError(t, err)

	once, err := l.PauseCopyTrading("A")
	require.NoError(t, err)
	twice, err := l.PauseCopyTrading("A")
	require.NoError(t, err)
	assert.Equal(t, once, twice, "pause must be idempotent")
	assert.True(t, twice.Paused)
	assert.True(t, twice.Active, "paused positions still exist")

	resumed, err := l.ResumeCopyTrading("A")
	require.NoError(t, err)
	again, err := l.ResumeCopyTrading("A")
	require.NoError(t, err)
	assert.Equal(t, resumed, again, "resume must be idempotent")
	assert.False(t, again.Paused)

	_, err = l.PauseCopyTrading("missing")
	assert.ErrorIs(t, err, ErrPositionNotFound)
	_, err = l.ResumeCopyTrading("missing")
	assert.ErrorIs(t, err, ErrPositionNotFound)
}

func TestLedger_StopIsTerminal(t *testing.T) {
	l := newTestLedger(t, "10000")
	_, err := l.StartCopyTrading(startParams("A", "2000"))
	require.NoError(t, err)

	_, err = l.StopCopyTrading("A")
	require.NoError(t, err)

	_, err = l.PauseCopyTrading("A")
	assert.ErrorIs(t, err, ErrPositionNotFound)
	_, err = l.ResumeCopyTrading("A")
	assert.ErrorIs(t, err, ErrPositionNotFound)
	_, err = l.StopCopyTrading("A")
	assert.ErrorIs(t, err, ErrPositionNotFound)
	_, _, err = l.ApplyPnLUpdate("A", d("10"))
	assert.ErrorIs(t, err, ErrPositionNotFound)
}

func TestLedger_ApplyPnLUpdate_ClampsTotalLoss(t *testing.T) {
	l := newTestLedger(t, "10000")
	_, err := l.StartCopyTrading(startParams("A", "2000"))
	require.NoError(t, err)

	pos, applied, err := l.ApplyPnLUpdate("A", d("-2500"))
	require.NoError(t, err)
	assert.True(t, applied)
	assertDecimal(t, "-2000", pos.TotalProfit)

	returned, err := l.StopCopyTrading("A")
	require.NoError(t, err)
	assertDecimal(t, "0", returned)
	assertDecimal(t, "8000", l.Wallet().Balance)
}

func TestLedger_MirrorTradeSize(t *testing.T) {
	l := newTestLedger(t, "10000")
	_, err := l.StartCopyTrading(startParams("A", "2000")) // 50%, cap 500
	require.NoError(t, err)

	uncapped := startParams("B", "2000")
	uncapped.MaxPerTrade = decimal.Zero
	_, err = l.StartCopyTrading(uncapped)
	require.NoError(t, err)

	size, err := l.MirrorTradeSize("A", d("400"))
	require.NoError(t, err)
	assertDecimal(t, "200", size)

	size, err = l.MirrorTradeSize("A", d("4000"))
	require.NoError(t, err)
	assertDecimal(t, "500", size, "capped at max per trade")

	size, err = l.MirrorTradeSize("B", d("4000"))
	require.NoError(t, err)
	assertDecimal(t, "2000", size, "zero cap means uncapped")

	_, err = l.PauseCopyTrading("A")
	require.NoError(t, err)
	size, err = l.MirrorTradeSize("A", d("400"))
	require.NoError(t, err)
	assertDecimal(t, "0", size, "paused positions mirror nothing")

	_, err = l.MirrorTradeSize("missing", d("400"))
	assert.ErrorIs(t, err, ErrPositionNotFound)
	_, err = l.MirrorTradeSize("B", d("0"))
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestLedger_SnapshotRestore(t *testing.T) {
	l := newTestLedger(t, "10000")
	_, err := l.StartCopyTrading(startParams("A", "2000"))
	require.NoError(t, err)
	_, err = l.StartCopyTrading(startParams("B", "1000"))
	require.NoError(t, err)
	_, _, err = l.ApplyPnLUpdate("B", d("75.25"))
	require.NoError(t, err)
	_, err = l.PauseCopyTrading("A")
	require.NoError(t, err)

	snap := l.Snapshot()
	restored, err := Restore(snap, Options{})
	require.NoError(t, err)

	assert.Equal(t, snap, restored.Snapshot())
	assert.Equal(t, []string{"A", "B"}, []string{restored.Positions()[0].Trader.ID, restored.Positions()[1].Trader.ID})

	t.Run("rejects duplicated traders", func(t *testing.T) {
		bad := snap
		bad.Positions = append([]models.CopyPosition{}, snap.Positions[0], snap.Positions[0])
		_, err := Restore(bad, Options{})
		assert.True(t, errors.Is(err, ErrDuplicatePosition))
	})
}

func TestValidAccountID(t *testing.T) {
	assert.True(t, ValidAccountID(testAccount))
	assert.True(t, ValidAccountID("G"+strings.Repeat("7", 55)))
	assert.False(t, ValidAccountID(""))
	assert.False(t, ValidAccountID(testAccount+"A"))
	assert.False(t, ValidAccountID("0x1234567890123456789012345678901234567890"))
	assert.ErrorIs(t, ValidateAccountID("GSHORT"), ErrInvalidAddress)
}
