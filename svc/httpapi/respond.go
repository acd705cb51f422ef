package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/dmitrymomot/creditkit/pkg/billing"
	"github.com/dmitrymomot/creditkit/pkg/logger"
	"github.com/dmitrymomot/creditkit/svc/account"
	"github.com/dmitrymomot/creditkit/svc/ledger"
	"github.com/dmitrymomot/creditkit/svc/lifecycle"
	"github.com/dmitrymomot/creditkit/svc/pause"
	"github.com/dmitrymomot/creditkit/svc/plans"
	"github.com/dmitrymomot/creditkit/svc/proration"
)

type errorBody struct {
	Error  string `json:"error"`
	Reason string `json:"reason,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errors.Join(ErrInvalidBody, err)
	}
	return nil
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, ledger.ErrInsufficientCredits):
		return http.StatusPaymentRequired
	case errors.Is(err, account.ErrNotEligible):
		return http.StatusForbidden
	case errors.Is(err, account.ErrNoActiveSubscription),
		errors.Is(err, account.ErrAccountNotFound),
		errors.Is(err, plans.ErrPlanNotFound):
		return http.StatusNotFound
	case errors.Is(err, account.ErrInvalidTransition),
		errors.Is(err, lifecycle.ErrNotDue):
		return http.StatusConflict
	case errors.Is(err, billing.ErrProvider):
		return http.StatusBadGateway
	case errors.Is(err, ErrInvalidBody),
		errors.Is(err, ErrInvalidAmount),
		errors.Is(err, ErrResetTarget),
		errors.Is(err, ledger.ErrInvalidAmount),
		errors.Is(err, pause.ErrInvalidDuration),
		errors.Is(err, proration.ErrSamePlan),
		errors.Is(err, proration.ErrInvalidPeriod),
		errors.Is(err, lifecycle.ErrPaidPlanRequired):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusOf(err)
	body := errorBody{Error: err.Error()}
	if reason, ok := account.EligibilityReason(err); ok {
		body = errorBody{Error: account.ErrNotEligible.Error(), Reason: reason}
	}
	if status >= http.StatusInternalServerError {
		s.log.ErrorContext(r.Context(), "request failed",
			slog.String("path", r.URL.Path),
			logger.Error(err),
		)
		if status == http.StatusInternalServerError {
			body = errorBody{Error: http.StatusText(status)}
		} else {
			body = errorBody{Error: "billing provider is unavailable, please retry"}
		}
	}
	writeJSON(w, status, body)
}
