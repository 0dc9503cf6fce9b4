package api

import (
	"net/http"

	"github.com/copytrade-ledger/internal/service"
	"github.com/gorilla/mux"
)

// handleListTrades handles GET /api/wallets/{account}/trades
func (s *Server) handleListTrades(w http.ResponseWriter, r *http.Request) {
	trades, err := s.sessions.Trades(r.Context(), mux.Vars(r)["account"])
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"trades": trades,
	})
}

// handleRecordTrade handles POST /api/wallets/{account}/trades
func (s *Server) handleRecordTrade(w http.ResponseWriter, r *http.Request) {
	var req service.TradeInput
	if err := parseJSONBody(r, &req); err != nil {
		respondInvalidBody(w, err)
		return
	}

	trade, err := s.sessions.RecordTrade(r.Context(), mux.Vars(r)["account"], req)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusCreated, trade)
}

// handleCloseTrade handles POST /api/wallets/{account}/trades/{tradeId}/close
func (s *Server) handleCloseTrade(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	trade, err := s.sessions.CloseTrade(r.Context(), vars["account"], vars["tradeId"])
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, trade)
}

// handleListFollows handles GET /api/wallets/{account}/follows
func (s *Server) handleListFollows(w http.ResponseWriter, r *http.Request) {
	following, err := s.sessions.Following(r.Context(), mux.Vars(r)["account"])
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"following": following,
	})
}

// handleFollow handles PUT /api/wallets/{account}/follows/{traderId}
func (s *Server) handleFollow(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	following, err := s.sessions.Follow(r.Context(), vars["account"], vars["traderId"])
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"following": following,
	})
}

// handleUnfollow handles DELETE /api/wallets/{account}/follows/{traderId}
func (s *Server) handleUnfollow(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	following, err := s.sessions.Unfollow(r.Context(), vars["account"], vars["traderId"])
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"following": following,
	})
}

// handleListTraders handles GET /api/traders
func (s *Server) handleListTraders(w http.ResponseWriter, r *http.Request) {
	traders, err := s.directory.List(r.Context())
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"traders": traders,
	})
}

// handleGetTrader handles GET /api/traders/{id}
func (s *Server) handleGetTrader(w http.ResponseWriter, r *http.Request) {
	trader, err := s.directory.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, trader)
}
