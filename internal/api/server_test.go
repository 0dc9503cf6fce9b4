package api

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/copytrade-ledger/internal/metrics"
	"github.com/copytrade-ledger/internal/models"
	"github.com/copytrade-ledger/internal/service"
	"github.com/copytrade-ledger/internal/storage"
	"github.com/copytrade-ledger/internal/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	testAccount     = "G" + strings.Repeat("A", 55)
	testDestination = "G" + strings.Repeat("B", 55)
)

type fakeJournal struct {
	events []models.Event
	err    error
}

func (f *fakeJournal) Recent(ctx context.Context, account string, limit int) ([]models.Event, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []models.Event
	for _, e := range f.events {
		if e.Account == account && len(out) < limit {
			out = append(out, e)
		}
	}
	return out, nil
}

type fakePinger struct{ err error }

func (p fakePinger) Ping(ctx context.Context) error { return p.err }

func newTestServer(t *testing.T, journal ActivityJournal, cfg *ServerConfig) *Server {
	t.Helper()
	store := storage.NewMemoryStore()
	writer := storage.NewSnapshotWriter(store, storage.WriterOptions{})
	directory := service.NewTraderDirectory(service.NewStaticSource(service.DefaultTraders()), time.Minute)
	m := metrics.New()
	sessions := service.NewSessionService(store, writer, directory,
		service.StaticAccountProvider{Balance: decimal.NewFromInt(10000)}, nil,
		service.SessionConfig{Metrics: m})

	if cfg == nil {
		cfg = &ServerConfig{Host: "localhost", Port: "0", RequestsPerMinute: 6000, Burst: 1000}
	}
	return NewServer(cfg, sessions, directory, journal, m)
}

func doRequest(t *testing.T, s *Server, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = strings.NewReader(b)
	default:
		payload, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v), w.Body.String())
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var resp ErrorResponse
	decodeBody(t, w, &resp)
	return resp.Error.Code
}

func connect(t *testing.T, s *Server) {
	t.Helper()
	w := doRequest(t, s, "POST", "/api/sessions", map[string]string{"account": testAccount})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func walletPath(suffix string) string {
	return "/api/wallets/" + testAccount + suffix
}

func TestHealthEndpoint(t *testing.T) {
	s := newTestServer(t, nil, nil)
	s.AddHealthCheck("store", fakePinger{})

	w := doRequest(t, s, "GET", "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	var resp map[string]interface{}
	decodeBody(t, w, &resp)
	assert.Equal(t, "healthy", resp["status"])

	s.AddHealthCheck("redis", fakePinger{err: errors.New("connection refused")})
	w = doRequest(t, s, "GET", "/health", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestConnectAndWallet(t *testing.T) {
	s := newTestServer(t, nil, nil)

	w := doRequest(t, s, "POST", "/api/sessions", map[string]string{"account": "GSHORT"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, types.CodeInvalidAddress, errorCode(t, w))

	w = doRequest(t, s, "GET", walletPath(""), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, types.CodeWalletNotConnected, errorCode(t, w))

	connect(t, s)

	w = doRequest(t, s, "GET", walletPath(""), nil)
	require.Equal(t, http.StatusOK, w.Code)
	var wallet models.Wallet
	decodeBody(t, w, &wallet)
	assert.True(t, wallet.Connected)
	assert.True(t, wallet.Balance.Equal(decimal.NewFromInt(10000)))

	w = doRequest(t, s, "DELETE", "/api/sessions/"+testAccount, nil)
	require.Equal(t, http.StatusOK, w.Code)
	decodeBody(t, w, &wallet)
	assert.False(t, wallet.Connected)
	assert.True(t, wallet.Balance.IsZero())
}

func TestDepositWithdraw(t *testing.T) {
	s := newTestServer(t, nil, nil)
	connect(t, s)

	tests := []struct {
		name       string
		path       string
		body       interface{}
		wantStatus int
		wantCode   string
		wantBal    string
	}{
		{"deposit", "/deposit", map[string]interface{}{"amount": "250.5"}, http.StatusOK, "", "10250.5"},
		{"deposit zero", "/deposit", map[string]interface{}{"amount": 0}, http.StatusBadRequest, types.CodeInvalidAmount, ""},
		{"deposit malformed", "/deposit", "{not json", http.StatusBadRequest, ErrCodeInvalidInput, ""},
		{"deposit unknown field", "/deposit", map[string]interface{}{"amount": 1, "memo": "x"}, http.StatusBadRequest, ErrCodeInvalidInput, ""},
		{"withdraw below minimum", "/withdraw", map[string]interface{}{"amount": 4, "destination": testDestination}, http.StatusUnprocessableEntity, types.CodeBelowMinimum, ""},
		{"withdraw too much", "/withdraw", map[string]interface{}{"amount": 20000, "destination": testDestination}, http.StatusUnprocessableEntity, types.CodeInsufficientBalance, ""},
		{"withdraw bad address", "/withdraw", map[string]interface{}{"amount": 10, "destination": "nowhere"}, http.StatusBadRequest, types.CodeInvalidAddress, ""},
		{"withdraw", "/withdraw", map[string]interface{}{"amount": 50, "destination": testDestination}, http.StatusOK, "", "10200.5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doRequest(t, s, "POST", walletPath(tt.path), tt.body)
			require.Equal(t, tt.wantStatus, w.Code, w.Body.String())
			if tt.wantCode != "" {
				assert.Equal(t, tt.wantCode, errorCode(t, w))
				return
			}
			var wallet models.Wallet
			decodeBody(t, w, &wallet)
			assert.Equal(t, tt.wantBal, wallet.Balance.String())
		})
	}
}

func TestCopyTradingEndpoints(t *testing.T) {
	s := newTestServer(t, nil, nil)
	connect(t, s)

	start := map[string]interface{}{"traderId": "1", "amount": "2000", "copyRatio": "50", "maxPerTrade": "300", "stopLoss": "10"}

	w := doRequest(t, s, "POST", walletPath("/positions"), start)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var pos models.CopyPosition
	decodeBody(t, w, &pos)
	assert.Equal(t, "CryptoKing", pos.Trader.DisplayName)
	assert.True(t, pos.Active)

	w = doRequest(t, s, "POST", walletPath("/positions"), start)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, types.CodeDuplicatePosition, errorCode(t, w))

	w = doRequest(t, s, "POST", walletPath("/positions"), map[string]interface{}{"traderId": "2", "amount": "999", "copyRatio": "50"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, types.CodeBelowMinimum, errorCode(t, w))

	w = doRequest(t, s, "POST", walletPath("/positions"), map[string]interface{}{"traderId": "2", "amount": "1000", "copyRatio": "150"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, types.CodeInvalidParameter, errorCode(t, w))

	w = doRequest(t, s, "POST", walletPath("/positions"), map[string]interface{}{"traderId": "zzz", "amount": "1000", "copyRatio": "50"})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, types.CodeTraderNotFound, errorCode(t, w))

	w = doRequest(t, s, "GET", walletPath("/positions/1/mirror?amount=1000"), nil)
	require.Equal(t, http.StatusOK, w.Code)
	var mirror struct {
		Size decimal.Decimal `json:"size"`
	}
	decodeBody(t, w, &mirror)
	assert.Equal(t, "300", mirror.Size.String(), "capped at maxPerTrade")

	w = doRequest(t, s, "GET", walletPath("/positions/1/mirror?amount=abc"), nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doRequest(t, s, "POST", walletPath("/positions/1/pnl"), map[string]interface{}{"delta": "-300", "updateId": "u-1"})
	require.Equal(t, http.StatusOK, w.Code)
	var pnl struct {
		Position models.CopyPosition `json:"position"`
		Applied  bool                `json:"applied"`
	}
	decodeBody(t, w, &pnl)
	assert.True(t, pnl.Applied)
	assert.Equal(t, "-300", pnl.Position.TotalProfit.String())

	w = doRequest(t, s, "POST", walletPath("/positions/1/pnl"), map[string]interface{}{"delta": "-300", "updateId": "u-1"})
	decodeBody(t, w, &pnl)
	assert.False(t, pnl.Applied, "repeated update id")

	w = doRequest(t, s, "GET", walletPath("/positions/1/risk"), nil)
	require.Equal(t, http.StatusOK, w.Code)
	var risk struct {
		StopLossBreached bool `json:"stopLossBreached"`
	}
	decodeBody(t, w, &risk)
	assert.True(t, risk.StopLossBreached)

	w = doRequest(t, s, "POST", walletPath("/positions/1/pause"), nil)
	require.Equal(t, http.StatusOK, w.Code)
	decodeBody(t, w, &pos)
	assert.True(t, pos.Paused)

	w = doRequest(t, s, "POST", walletPath("/positions/1/resume"), nil)
	require.Equal(t, http.StatusOK, w.Code)
	decodeBody(t, w, &pos)
	assert.False(t, pos.Paused)

	w = doRequest(t, s, "GET", walletPath("/positions"), nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Positions []models.CopyPosition `json:"positions"`
	}
	decodeBody(t, w, &list)
	assert.Len(t, list.Positions, 1)

	w = doRequest(t, s, "GET", walletPath("/portfolio"), nil)
	require.Equal(t, http.StatusOK, w.Code)
	var portfolio models.Portfolio
	decodeBody(t, w, &portfolio)
	assert.Equal(t, "9700", portfolio.TotalValue.String())
	assert.Equal(t, 1, portfolio.ActiveCopies)

	w = doRequest(t, s, "DELETE", walletPath("/positions/1"), nil)
	require.Equal(t, http.StatusOK, w.Code)
	var stopped struct {
		Returned decimal.Decimal `json:"returned"`
		Balance  decimal.Decimal `json:"balance"`
	}
	decodeBody(t, w, &stopped)
	assert.Equal(t, "1700", stopped.Returned.String())
	assert.Equal(t, "9700", stopped.Balance.String())

	w = doRequest(t, s, "DELETE", walletPath("/positions/1"), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, types.CodePositionNotFound, errorCode(t, w))
}

func TestTradesAndFollows(t *testing.T) {
	s := newTestServer(t, nil, nil)
	connect(t, s)

	w := doRequest(t, s, "POST", walletPath("/trades"), map[string]interface{}{"asset": "XLM", "amount": "100", "price": "0.5"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var trade models.Trade
	decodeBody(t, w, &trade)
	assert.Equal(t, types.TradeOpen, trade.Status)

	w = doRequest(t, s, "POST", walletPath("/trades/"+trade.ID+"/close"), nil)
	require.Equal(t, http.StatusOK, w.Code)
	decodeBody(t, w, &trade)
	assert.Equal(t, types.TradeClosed, trade.Status)

	w = doRequest(t, s, "GET", walletPath("/trades"), nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = doRequest(t, s, "PUT", walletPath("/follows/2"), nil)
	require.Equal(t, http.StatusOK, w.Code)
	w = doRequest(t, s, "PUT", walletPath("/follows/3"), nil)
	require.Equal(t, http.StatusOK, w.Code)
	w = doRequest(t, s, "DELETE", walletPath("/follows/2"), nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = doRequest(t, s, "GET", walletPath("/follows"), nil)
	require.Equal(t, http.StatusOK, w.Code)
	var follows struct {
		Following []string `json:"following"`
	}
	decodeBody(t, w, &follows)
	assert.Equal(t, []string{"3"}, follows.Following)

	w = doRequest(t, s, "PUT", walletPath("/follows/unknown"), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestTraderDirectoryEndpoints(t *testing.T) {
	s := newTestServer(t, nil, nil)

	w := doRequest(t, s, "GET", "/api/traders", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Traders []models.Trader `json:"traders"`
	}
	decodeBody(t, w, &list)
	assert.Len(t, list.Traders, 3)

	w = doRequest(t, s, "GET", "/api/traders/3", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var trader models.Trader
	decodeBody(t, w, &trader)
	assert.Equal(t, "DeFiWhale", trader.Username)

	w = doRequest(t, s, "GET", "/api/traders/99", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, types.CodeTraderNotFound, errorCode(t, w))
}

func TestActivityEndpoint(t *testing.T) {
	s := newTestServer(t, nil, nil)
	w := doRequest(t, s, "GET", walletPath("/activity"), nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	journal := &fakeJournal{events: []models.Event{
		{ID: "e1", Account: testAccount, Kind: types.EventDeposit},
		{ID: "e2", Account: testAccount, Kind: types.EventWithdraw},
		{ID: "e3", Account: "other", Kind: types.EventDeposit},
	}}
	s = newTestServer(t, journal, nil)

	w = doRequest(t, s, "GET", walletPath("/activity?limit=1"), nil)
	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Events []models.Event `json:"events"`
	}
	decodeBody(t, w, &resp)
	require.Len(t, resp.Events, 1)
	assert.Equal(t, "e1", resp.Events[0].ID)

	w = doRequest(t, s, "GET", walletPath("/activity?limit=0"), nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	journal.err = errors.New("clickhouse down")
	w = doRequest(t, s, "GET", walletPath("/activity"), nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "clickhouse down")
}

func TestRateLimiting(t *testing.T) {
	s := newTestServer(t, nil, &ServerConfig{Host: "localhost", Port: "0", RequestsPerMinute: 1, Burst: 2})

	for i := 0; i < 2; i++ {
		w := doRequest(t, s, "GET", "/api/traders", nil)
		require.Equal(t, http.StatusOK, w.Code)
	}

	w := doRequest(t, s, "GET", "/api/traders", nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "RATE_LIMIT_EXCEEDED", errorCode(t, w))
	assert.NotEmpty(t, w.Header().Get("Retry-After"))

	// wallet routes are limited per account
	w = doRequest(t, s, "POST", "/api/wallets/"+testAccount+"/deposit", map[string]interface{}{"amount": 1})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCORSHeaders(t *testing.T) {
	s := newTestServer(t, nil, nil)

	w := doRequest(t, s, "GET", "/api/traders", nil)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestCompression(t *testing.T) {
	s := newTestServer(t, nil, nil)

	req := httptest.NewRequest("GET", "/api/traders", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "gzip", w.Header().Get("Content-Encoding"))

	gz, err := gzip.NewReader(w.Body)
	require.NoError(t, err)
	body, err := io.ReadAll(gz)
	require.NoError(t, err)
	assert.Contains(t, string(body), "CryptoKing")
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t, nil, nil)
	doRequest(t, s, "GET", "/api/traders", nil)

	w := doRequest(t, s, "GET", "/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `route="/api/traders"`)
}

func TestMetricsEndpoint_GzipOnce(t *testing.T) {
	s := newTestServer(t, nil, nil)

	req := httptest.NewRequest("GET", "/metrics", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "gzip", w.Header().Get("Content-Encoding"))

	gz, err := gzip.NewReader(w.Body)
	require.NoError(t, err)
	body, err := io.ReadAll(gz)
	require.NoError(t, err)
	assert.Contains(t, string(body), "copytrade_")
}

func TestRecoveryMiddleware(t *testing.T) {
	handler := RecoveryMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("GET", "/", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, ErrCodeInternalError, errorCode(t, w))
}
