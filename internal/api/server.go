// Package api provides the HTTP API server implementation.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/copytrade-ledger/internal/logging"
	"github.com/copytrade-ledger/internal/metrics"
	"github.com/copytrade-ledger/internal/models"
	"github.com/copytrade-ledger/internal/service"
	"github.com/gorilla/mux"
)

// ActivityJournal serves recent ledger events of an account
type ActivityJournal interface {
	Recent(ctx context.Context, account string, limit int) ([]models.Event, error)
}

// Pinger is a dependency checked by the health endpoint
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server represents the HTTP API server.
type Server struct {
	router     *mux.Router
	httpServer *http.Server
	sessions   *service.SessionService
	directory  *service.TraderDirectory
	journal    ActivityJournal
	metrics    *metrics.Metrics
	checks     map[string]Pinger
	config     *ServerConfig
}

// ServerConfig holds server configuration.
type ServerConfig struct {
	Host              string
	Port              string
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	RequestsPerMinute int // per account, or per client address for other routes
	Burst             int
}

// NewServer creates a new API server instance. journal and m may be nil.
func NewServer(
	config *ServerConfig,
	sessions *service.SessionService,
	directory *service.TraderDirectory,
	journal ActivityJournal,
	m *metrics.Metrics,
) *Server {
	s := &Server{
		router:    mux.NewRouter(),
		sessions:  sessions,
		directory: directory,
		journal:   journal,
		metrics:   m,
		checks:    make(map[string]Pinger),
		config:    config,
	}

	s.setupRouter()

	return s
}

// AddHealthCheck registers a dependency reported by /health
func (s *Server) AddHealthCheck(name string, p Pinger) {
	s.checks[name] = p
}

// Handler returns the root handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupRouter configures the router with middleware and routes
func (s *Server) setupRouter() {
	rateLimiter := NewRateLimiter(s.config.RequestsPerMinute, s.config.Burst)

	// order matters: recovery must see panics from everything below logging
	s.router.Use(LoggingMiddleware(s.metrics))
	s.router.Use(RecoveryMiddleware)
	s.router.Use(CORSMiddleware)
	s.router.Use(RateLimitMiddleware(rateLimiter))
	s.router.Use(CompressionMiddleware)

	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%s", s.config.Host, s.config.Port),
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}
}

// setupRoutes configures all API routes.
func (s *Server) setupRoutes() {
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
	if s.metrics != nil {
		s.router.Handle("/metrics", s.metrics.Handler()).Methods("GET")
	}

	api := s.router.PathPrefix("/api").Subrouter()

	// Session endpoints
	api.HandleFunc("/sessions", s.handleConnect).Methods("POST")
	api.HandleFunc("/sessions/{account}", s.handleDisconnect).Methods("DELETE")

	// Wallet endpoints
	wallet := api.PathPrefix("/wallets/{account}").Subrouter()
	wallet.HandleFunc("", s.handleGetWallet).Methods("GET")
	wallet.HandleFunc("/deposit", s.handleDeposit).Methods("POST")
	wallet.HandleFunc("/withdraw", s.handleWithdraw).Methods("POST")
	wallet.HandleFunc("/portfolio", s.handleGetPortfolio).Methods("GET")
	wallet.HandleFunc("/activity", s.handleGetActivity).Methods("GET")

	// Copy position endpoints
	wallet.HandleFunc("/positions", s.handleListPositions).Methods("GET")
	wallet.HandleFunc("/positions", s.handleStartCopy).Methods("POST")
	wallet.HandleFunc("/positions/{traderId}", s.handleStopCopy).Methods("DELETE")
	wallet.HandleFunc("/positions/{traderId}/pause", s.handlePauseCopy).Methods("POST")
	wallet.HandleFunc("/positions/{traderId}/resume", s.handleResumeCopy).Methods("POST")
	wallet.HandleFunc("/positions/{traderId}/pnl", s.handleApplyPnL).Methods("POST")
	wallet.HandleFunc("/positions/{traderId}/mirror", s.handleMirrorSize).Methods("GET")
	wallet.HandleFunc("/positions/{traderId}/risk", s.handleRiskStatus).Methods("GET")

	// Manual trade endpoints
	wallet.HandleFunc("/trades", s.handleListTrades).Methods("GET")
	wallet.HandleFunc("/trades", s.handleRecordTrade).Methods("POST")
	wallet.HandleFunc("/trades/{tradeId}/close", s.handleCloseTrade).Methods("POST")

	// Follow endpoints
	wallet.HandleFunc("/follows", s.handleListFollows).Methods("GET")
	wallet.HandleFunc("/follows/{traderId}", s.handleFollow).Methods("PUT")
	wallet.HandleFunc("/follows/{traderId}", s.handleUnfollow).Methods("DELETE")

	// Trader directory endpoints
	api.HandleFunc("/traders", s.handleListTraders).Methods("GET")
	api.HandleFunc("/traders/{id}", s.handleGetTrader).Methods("GET")
}

// handleHealth reports liveness and the state of registered dependencies.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := http.StatusOK
	checks := make(map[string]string, len(s.checks))

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	for name, p := range s.checks {
		if err := p.Ping(ctx); err != nil {
			checks[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		checks[name] = "ok"
	}

	state := "healthy"
	if status != http.StatusOK {
		state = "degraded"
	}
	respondJSON(w, status, map[string]interface{}{
		"status":  state,
		"service": "copytrade-ledger",
		"checks":  checks,
	})
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	logging.WithField("addr", s.httpServer.Addr).Info("Starting API server")
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	logging.GetGlobalLogger().Info("Shutting down API server")
	return s.httpServer.Shutdown(ctx)
}
