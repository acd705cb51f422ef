package httpapi

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/dmitrymomot/creditkit/svc/lifecycle"
)

const defaultLimit = 20

// pageLimit reads ?limit=, defaulting to 20 and capped at cfg.HistoryLimit.
func (s *Server) pageLimit(r *http.Request) int {
	n, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || n <= 0 {
		n = defaultLimit
	}
	return min(n, s.cfg.HistoryLimit)
}

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	id, _ := AccountID(r.Context())
	balance, err := s.ledger.Balance(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"credits_remaining": balance})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	id, _ := AccountID(r.Context())
	txs, err := s.ledger.History(r.Context(), id, s.pageLimit(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"transactions": viewTransactions(txs)})
}

func (s *Server) handleAnalytics(w http.ResponseWriter, r *http.Request) {
	id, _ := AccountID(r.Context())
	stats, err := s.ledger.Analytics(r.Context(), id, s.now())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

type consumeRequest struct {
	Amount      int64  `json:"amount"`
	Operation   string `json:"operation"`
	Description string `json:"description"`
}

func (s *Server) handleConsume(w http.ResponseWriter, r *http.Request) {
	var req consumeRequest
	if err := s.decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.Amount <= 0 {
		s.writeError(w, r, ErrInvalidAmount)
		return
	}
	desc := strings.TrimSpace(req.Description)
	if desc == "" {
		desc = "Credits used"
		if req.Operation != "" {
			desc = "Credits used for " + req.Operation
		}
	}
	var meta map[string]string
	if req.Operation != "" {
		meta = map[string]string{"operation": req.Operation}
	}

	id, _ := AccountID(r.Context())
	balance, err := s.ledger.ConsumeWithMetadata(r.Context(), id, req.Amount, desc, meta)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"credits_remaining": balance})
}

type resetRequest struct {
	UserID   *uuid.UUID `json:"user_id"`
	ResetAll bool       `json:"reset_all"`
}

// handleResetCredits renews one account whose period is over, or runs a
// full sweep with reset_all.
func (s *Server) handleResetCredits(w http.ResponseWriter, r *http.Request) {
	var req resetRequest
	if err := s.decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	now := s.now()

	switch {
	case req.ResetAll:
		if s.sweeper == nil {
			writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: "credit sweeper is not configured"})
			return
		}
		report, err := s.sweeper.Run(r.Context(), now)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"message": "Credit reset completed", "report": report})

	case req.UserID != nil:
		renewal, err := s.lifecycle.RenewPeriod(r.Context(), *req.UserID, now)
		if lifecycle.IsNotDue(err) {
			writeJSON(w, http.StatusConflict, errorBody{Error: "Credit reset is not due yet"})
			return
		}
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"message":           "Credits reset successfully",
			"outcome":           renewal.Outcome,
			"credits_remaining": renewal.Account.CreditsRemaining,
		})

	default:
		s.writeError(w, r, ErrResetTarget)
	}
}
