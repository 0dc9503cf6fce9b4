package api

import (
	"net/http"

	apperrors "github.com/copytrade-ledger/internal/errors"
	"github.com/copytrade-ledger/internal/service"
	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
)

// handleListPositions handles GET /api/wallets/{account}/positions
func (s *Server) handleListPositions(w http.ResponseWriter, r *http.Request) {
	positions, err := s.sessions.Positions(r.Context(), mux.Vars(r)["account"])
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"positions": positions,
	})
}

// handleStartCopy handles POST /api/wallets/{account}/positions. With
// "replace": true an existing position for the trader is settled first.
func (s *Server) handleStartCopy(w http.ResponseWriter, r *http.Request) {
	var req service.StartInput
	if err := parseJSONBody(r, &req); err != nil {
		respondInvalidBody(w, err)
		return
	}

	pos, err := s.sessions.StartCopyTrading(r.Context(), mux.Vars(r)["account"], req)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusCreated, pos)
}

// handlePauseCopy handles POST /api/wallets/{account}/positions/{traderId}/pause
func (s *Server) handlePauseCopy(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	pos, err := s.sessions.PauseCopyTrading(r.Context(), vars["account"], vars["traderId"])
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, pos)
}

// handleResumeCopy handles POST /api/wallets/{account}/positions/{traderId}/resume
func (s *Server) handleResumeCopy(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	pos, err := s.sessions.ResumeCopyTrading(r.Context(), vars["account"], vars["traderId"])
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, pos)
}

// handleStopCopy handles DELETE /api/wallets/{account}/positions/{traderId}
func (s *Server) handleStopCopy(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	returned, wallet, err := s.sessions.StopCopyTrading(r.Context(), vars["account"], vars["traderId"])
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"traderId": vars["traderId"],
		"returned": returned,
		"balance":  wallet.Balance,
	})
}

// handleApplyPnL handles POST /api/wallets/{account}/positions/{traderId}/pnl
func (s *Server) handleApplyPnL(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Delta    decimal.Decimal `json:"delta"`
		UpdateID string          `json:"updateId"`
	}
	if err := parseJSONBody(r, &req); err != nil {
		respondInvalidBody(w, err)
		return
	}

	vars := mux.Vars(r)
	pos, applied, err := s.sessions.ApplyPnLUpdate(r.Context(), vars["account"], vars["traderId"], req.Delta, req.UpdateID)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"position": pos,
		"applied":  applied,
	})
}

// handleMirrorSize handles GET /api/wallets/{account}/positions/{traderId}/mirror?amount=
func (s *Server) handleMirrorSize(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("amount")
	if raw == "" {
		respondCategorized(w, r, apperrors.NewInvalidParameterError("amount", "is required"))
		return
	}
	amount, err := decimal.NewFromString(raw)
	if err != nil {
		respondCategorized(w, r, apperrors.NewInvalidParameterError("amount", "must be a decimal number"))
		return
	}

	vars := mux.Vars(r)
	size, err := s.sessions.MirrorTradeSize(r.Context(), vars["account"], vars["traderId"], amount)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"traderId":     vars["traderId"],
		"sourceAmount": amount,
		"size":         size,
	})
}

// handleRiskStatus handles GET /api/wallets/{account}/positions/{traderId}/risk
func (s *Server) handleRiskStatus(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	risk, err := s.sessions.RiskStatus(r.Context(), vars["account"], vars["traderId"])
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, risk)
}
