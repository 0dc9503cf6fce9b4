package feed

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/copytrade-ledger/internal/models"
	"github.com/copytrade-ledger/internal/storage"
	"github.com/copytrade-ledger/internal/types"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeApplier struct {
	mu      sync.Mutex
	applied []string
	frozen  bool
	err     error
}

func (f *fakeApplier) ApplyPnLUpdate(ctx context.Context, account, traderID string, delta decimal.Decimal, updateID string) (models.CopyPosition, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return models.CopyPosition{}, false, f.err
	}
	if f.frozen {
		return models.CopyPosition{}, false, nil
	}
	f.applied = append(f.applied, updateID+":"+delta.String())
	return models.CopyPosition{TotalProfit: delta}, true, nil
}

func (f *fakeApplier) appliedIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.applied...)
}

func setupWorker(t *testing.T, applier Applier) (*Worker, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	w := NewWorker(storage.NewRedisCacheFromClient(client), applier, Config{Channel: "copytrade:pnl", DedupeTTL: time.Minute})
	return w, client
}

func message(t *testing.T, u Update) *redis.Message {
	t.Helper()
	payload, err := json.Marshal(u)
	require.NoError(t, err)
	return &redis.Message{Channel: "copytrade:pnl", Payload: string(payload)}
}

func TestWorker_HandleMessage(t *testing.T) {
	applier := &fakeApplier{}
	w, _ := setupWorker(t, applier)
	ctx := context.Background()

	u := Update{ID: "u-1", Account: "GACCOUNT", TraderID: "A", Delta: decimal.NewFromInt(300)}

	assert.Equal(t, "applied", w.handleMessage(ctx, message(t, u)))
	assert.Equal(t, "duplicate", w.handleMessage(ctx, message(t, u)))
	assert.Equal(t, []string{"u-1:300"}, applier.appliedIDs())

	assert.Equal(t, "invalid", w.handleMessage(ctx, &redis.Message{Payload: "not json"}))
	assert.Equal(t, "invalid", w.handleMessage(ctx, message(t, Update{Account: "GACCOUNT", TraderID: "A"})))
}

func TestWorker_FrozenAndRejected(t *testing.T) {
	ctx := context.Background()

	frozen := &fakeApplier{frozen: true}
	w, _ := setupWorker(t, frozen)
	assert.Equal(t, "frozen", w.handleMessage(ctx, message(t, Update{ID: "u-2", Account: "G", TraderID: "A", Delta: decimal.NewFromInt(1)})))

	rejecting := &fakeApplier{err: types.NewServiceError(types.CodePositionNotFound, "no position", nil)}
	w, _ = setupWorker(t, rejecting)
	assert.Equal(t, "rejected", w.handleMessage(ctx, message(t, Update{ID: "u-3", Account: "G", TraderID: "A", Delta: decimal.NewFromInt(1)})))
}

func TestWorker_RejectedUpdateStaysAvailable(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	cache := storage.NewRedisCacheFromClient(client)
	cfg := Config{Channel: "copytrade:pnl", DedupeTTL: time.Minute}
	ctx := context.Background()

	// two replicas share the channel; only the second holds the session
	elsewhere := NewWorker(cache, &fakeApplier{err: types.NewServiceError(types.CodeWalletNotConnected, "wallet not connected", nil)}, cfg)
	owner := &fakeApplier{}
	local := NewWorker(cache, owner, cfg)

	u := Update{ID: "u-4", Account: "GACCOUNT", TraderID: "A", Delta: decimal.NewFromInt(25)}
	assert.Equal(t, "rejected", elsewhere.handleMessage(ctx, message(t, u)))
	assert.False(t, mr.Exists("feed:seen:u-4"))

	assert.Equal(t, "applied", local.handleMessage(ctx, message(t, u)))
	assert.Equal(t, []string{"u-4:25"}, owner.appliedIDs())
	assert.True(t, mr.Exists("feed:seen:u-4"))

	assert.Equal(t, "duplicate", elsewhere.handleMessage(ctx, message(t, u)))
}

func TestWorker_Run(t *testing.T) {
	applier := &fakeApplier{}
	w, client := setupWorker(t, applier)

	outcomes := make(chan string, 4)
	w.cfg.OnUpdate = func(outcome string) {
		select {
		case outcomes <- outcome:
		default:
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	payload, err := json.Marshal(Update{ID: "u-9", Account: "GACCOUNT", TraderID: "A", Delta: decimal.RequireFromString("-12.5")})
	require.NoError(t, err)

	// publish until the subscription is live
	deadline := time.After(5 * time.Second)
	var outcome string
	for outcome == "" {
		require.NoError(t, client.Publish(context.Background(), "copytrade:pnl", payload).Err())
		select {
		case outcome = <-outcomes:
		case <-time.After(50 * time.Millisecond):
		case <-deadline:
			t.Fatal("no update received")
		}
	}
	assert.Equal(t, "applied", outcome)
	assert.Equal(t, []string{"u-9:-12.5"}, applier.appliedIDs())

	cancel()
	require.NoError(t, <-done)
}
