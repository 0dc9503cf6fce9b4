// Package main provides the API server entry point for the copy-trade ledger.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/copytrade-ledger/internal/api"
	"github.com/copytrade-ledger/internal/circuitbreaker"
	"github.com/copytrade-ledger/internal/config"
	apperrors "github.com/copytrade-ledger/internal/errors"
	"github.com/copytrade-ledger/internal/feed"
	"github.com/copytrade-ledger/internal/ledger"
	"github.com/copytrade-ledger/internal/logging"
	"github.com/copytrade-ledger/internal/metrics"
	"github.com/copytrade-ledger/internal/models"
	"github.com/copytrade-ledger/internal/notify"
	"github.com/copytrade-ledger/internal/retry"
	"github.com/copytrade-ledger/internal/service"
	"github.com/copytrade-ledger/internal/storage"
	"github.com/copytrade-ledger/internal/types"
	"golang.org/x/sync/errgroup"
)

// resources opens external connections on first use so that only the
// backends selected by configuration are dialed.
type resources struct {
	cfg *config.Config

	postgres   *storage.PostgresDB
	redis      *storage.RedisCache
	clickhouse *storage.ClickHouseDB
	sqlite     *storage.SQLiteStore
}

func (r *resources) Postgres(ctx context.Context) (*storage.PostgresDB, error) {
	if r.postgres == nil {
		db, err := storage.NewPostgresDB(ctx, &r.cfg.Database.Postgres)
		if err != nil {
			return nil, err
		}
		r.postgres = db
	}
	return r.postgres, nil
}

func (r *resources) Redis(ctx context.Context) (*storage.RedisCache, error) {
	if r.redis == nil {
		cache, err := storage.NewRedisCache(ctx, &r.cfg.Database.Redis)
		if err != nil {
			return nil, err
		}
		r.redis = cache
	}
	return r.redis, nil
}

func (r *resources) ClickHouse(ctx context.Context) (*storage.ClickHouseDB, error) {
	if r.clickhouse == nil {
		db, err := storage.NewClickHouseDB(ctx, &r.cfg.Database.ClickHouse)
		if err != nil {
			return nil, err
		}
		r.clickhouse = db
	}
	return r.clickhouse, nil
}

func (r *resources) Close() {
	if r.postgres != nil {
		r.postgres.Close()
	}
	if r.redis != nil {
		_ = r.redis.Close()
	}
	if r.clickhouse != nil {
		_ = r.clickhouse.Close()
	}
	if r.sqlite != nil {
		_ = r.sqlite.Close()
	}
}

func main() {
	fmt.Println("Copy-Trade Ledger API Server")

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize structured logging
	logging.InitGlobalLogger(logging.ParseLogLevel(cfg.Logging.Level), logging.ParseLogFormat(cfg.Logging.Format))
	logger := logging.GetGlobalLogger()
	defer func() { _ = logger.Sync() }()

	logger.WithFields(map[string]interface{}{
		"level":   cfg.Logging.Level,
		"format":  cfg.Logging.Format,
		"backend": cfg.Storage.Backend,
	}).Info("Structured logging initialized")

	if err := run(cfg, logger); err != nil {
		logger.WithError(err).Error("Server exited with error")
		_ = logger.Sync()
		os.Exit(1)
	}
	logger.Info("Server stopped")
}

func run(cfg *config.Config, logger *logging.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	res := &resources{cfg: cfg}
	defer res.Close()

	checks := make(map[string]api.Pinger)

	// Snapshot store
	store, err := openStore(ctx, cfg, res, checks)
	if err != nil {
		return fmt.Errorf("failed to open %s store: %w", cfg.Storage.Backend, err)
	}

	// Trader directory
	var source service.TraderSource
	if cfg.Directory.Source == "postgres" {
		db, err := res.Postgres(ctx)
		if err != nil {
			return fmt.Errorf("failed to connect to Postgres: %w", err)
		}
		checks["postgres"] = db
		source = storage.NewTraderRepository(db)
	} else {
		traders, err := service.LoadTraderSeed(cfg.Directory.SeedFile)
		if err != nil {
			return err
		}
		source = service.NewStaticSource(traders)
	}
	directory := service.NewTraderDirectory(source, cfg.Cache.TTL)

	// Notification sinks
	sinks := []notify.Sink{notify.NewLogSink(logger)}
	if cfg.Notify.Redis {
		cache, err := res.Redis(ctx)
		if err != nil {
			return fmt.Errorf("failed to connect to Redis: %w", err)
		}
		checks["redis"] = cache
		sinks = append(sinks, notify.NewRedisSink(cache.Client(), cfg.Notify.Channel))
	}

	var journal api.ActivityJournal
	if cfg.Notify.Journal {
		db, err := res.ClickHouse(ctx)
		if err != nil {
			return fmt.Errorf("failed to connect to ClickHouse: %w", err)
		}
		checks["clickhouse"] = db
		j := storage.NewClickHouseJournal(db)
		sinks = append(sinks, j)
		journal = j
	}

	dispatcher := notify.NewDispatcher(notify.Options{
		QueueSize: cfg.Notify.QueueSize,
		Breaker: func(name string) *circuitbreaker.Config {
			bc := circuitbreaker.DefaultConfig(name)
			bc.OnStateChange = func(name string, from, to circuitbreaker.State) {
				logger.WithFields(map[string]interface{}{
					"breaker": name,
					"from":    from,
					"to":      to,
				}).Warn("Circuit breaker state changed")
			}
			return bc
		},
		OnResult: m.ObserveNotify,
		OnDrop: func(event models.Event) {
			m.NotifyDropped.Inc()
			logger.WithFields(map[string]interface{}{
				"account": event.Account,
				"kind":    event.Kind,
			}).Warn("Notification queue full, event dropped")
		},
	}, sinks...)

	retryCfg := retry.DefaultRetryConfig()
	retryCfg.MaxAttempts = cfg.Storage.RetryAttempts
	retryCfg.ShouldRetry = apperrors.IsRetryable
	writer := storage.NewSnapshotWriter(store, storage.WriterOptions{
		MaxPending: cfg.Storage.QueueSize,
		Retry:      retryCfg,
		OnResult: func(op storage.WriteOp, err error) {
			m.ObserveSnapshotWrite(string(op), err)
		},
	})

	sessions := service.NewSessionService(
		store,
		writer,
		directory,
		service.StaticAccountProvider{Balance: cfg.Ledger.InitialBalance},
		dispatcher,
		service.SessionConfig{
			Policy: &ledger.Policy{
				MinimumWithdrawal: cfg.Ledger.MinimumWithdrawal,
				MinimumInvestment: cfg.Ledger.MinimumInvestment,
			},
			ClearOnDisconnect: cfg.Ledger.ClearOnDisconnect,
			SeenUpdateLimit:   cfg.Ledger.SeenUpdateLimit,
			Metrics:           m,
		},
	)

	var worker *feed.Worker
	if cfg.Feed.Enabled {
		cache, err := res.Redis(ctx)
		if err != nil {
			return fmt.Errorf("failed to connect to Redis: %w", err)
		}
		checks["redis"] = cache
		worker = feed.NewWorker(cache, sessions, feed.Config{
			Channel:   cfg.Feed.Channel,
			DedupeTTL: cfg.Feed.DedupeTTL,
			OnUpdate: func(outcome string) {
				m.FeedUpdates.WithLabelValues(outcome).Inc()
			},
		})
	}

	server := api.NewServer(&api.ServerConfig{
		Host:              cfg.Server.Host,
		Port:              cfg.Server.Port,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		RequestsPerMinute: cfg.RateLimit.RequestsPerMinute,
		Burst:             cfg.RateLimit.Burst,
	}, sessions, directory, journal, m)
	for name, p := range checks {
		server.AddHealthCheck(name, p)
	}

	// Background writers outlive the HTTP server so that the last requests
	// are persisted and delivered before exit.
	bgCtx, cancelBg := context.WithCancel(context.Background())
	defer cancelBg()
	var bg errgroup.Group
	bg.Go(func() error { return writer.Run(bgCtx) })
	bg.Go(func() error { return dispatcher.Run(bgCtx) })

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	if worker != nil {
		g.Go(func() error { return worker.Run(gctx) })
	}

	runErr := g.Wait()

	cancelBg()
	if err := bg.Wait(); err != nil {
		logger.WithError(err).Error("Failed to flush pending snapshots")
		if runErr == nil {
			runErr = err
		}
	}
	return runErr
}

func openStore(ctx context.Context, cfg *config.Config, res *resources, checks map[string]api.Pinger) (storage.Store, error) {
	switch cfg.Storage.Backend {
	case types.BackendSQLite:
		s, err := storage.NewSQLiteStore(ctx, cfg.Database.SQLite.Path)
		if err != nil {
			return nil, err
		}
		res.sqlite = s
		checks["sqlite"] = s
		return s, nil
	case types.BackendPostgres:
		db, err := res.Postgres(ctx)
		if err != nil {
			return nil, err
		}
		checks["postgres"] = db
		return storage.NewPostgresStore(db), nil
	case types.BackendRedis:
		cache, err := res.Redis(ctx)
		if err != nil {
			return nil, err
		}
		checks["redis"] = cache
		return storage.NewRedisStore(cache, "ledger"), nil
	default:
		return storage.NewMemoryStore(), nil
	}
}
