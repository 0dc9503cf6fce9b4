package api

import (
	"net/http"
	"strconv"

	apperrors "github.com/copytrade-ledger/internal/errors"
	"github.com/copytrade-ledger/internal/models"
	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
)

const (
	defaultActivityLimit = 50
	maxActivityLimit     = 500
)

// handleConnect handles POST /api/sessions - connect a wallet
func (s *Server) handleConnect(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Account string `json:"account"`
	}
	if err := parseJSONBody(r, &req); err != nil {
		respondInvalidBody(w, err)
		return
	}

	wallet, err := s.sessions.Connect(r.Context(), req.Account)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, wallet)
}

// handleDisconnect handles DELETE /api/sessions/{account} - disconnect a wallet
func (s *Server) handleDisconnect(w http.ResponseWriter, r *http.Request) {
	account := mux.Vars(r)["account"]

	if err := s.sessions.Disconnect(r.Context(), account); err != nil {
		respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, models.DisconnectedWallet())
}

// handleGetWallet handles GET /api/wallets/{account}
func (s *Server) handleGetWallet(w http.ResponseWriter, r *http.Request) {
	wallet, err := s.sessions.Wallet(r.Context(), mux.Vars(r)["account"])
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, wallet)
}

// handleDeposit handles POST /api/wallets/{account}/deposit
func (s *Server) handleDeposit(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Amount decimal.Decimal `json:"amount"`
	}
	if err := parseJSONBody(r, &req); err != nil {
		respondInvalidBody(w, err)
		return
	}

	wallet, err := s.sessions.Deposit(r.Context(), mux.Vars(r)["account"], req.Amount)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, wallet)
}

// handleWithdraw handles POST /api/wallets/{account}/withdraw
func (s *Server) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Amount      decimal.Decimal `json:"amount"`
		Destination string          `json:"destination"`
	}
	if err := parseJSONBody(r, &req); err != nil {
		respondInvalidBody(w, err)
		return
	}

	wallet, err := s.sessions.Withdraw(r.Context(), mux.Vars(r)["account"], req.Amount, req.Destination)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, wallet)
}

// handleGetPortfolio handles GET /api/wallets/{account}/portfolio
func (s *Server) handleGetPortfolio(w http.ResponseWriter, r *http.Request) {
	portfolio, err := s.sessions.Portfolio(r.Context(), mux.Vars(r)["account"])
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, portfolio)
}

// handleGetActivity handles GET /api/wallets/{account}/activity?limit=
func (s *Server) handleGetActivity(w http.ResponseWriter, r *http.Request) {
	if s.journal == nil {
		respondCategorized(w, r, apperrors.NewServiceUnavailableError("activity journal"))
		return
	}

	limit := defaultActivityLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > maxActivityLimit {
			respondCategorized(w, r, apperrors.NewInvalidParameterError("limit", "must be between 1 and 500"))
			return
		}
		limit = n
	}

	account := mux.Vars(r)["account"]
	events, err := s.journal.Recent(r.Context(), account, limit)
	if err != nil {
		respondCategorized(w, r, apperrors.NewDatabaseError("activity query", err))
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"account": account,
		"events":  events,
	})
}
