package httpapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/dmitrymomot/creditkit/svc/pause"
)

type openAccountRequest struct {
	Email string `json:"email"`
}

func (s *Server) handleOpenAccount(w http.ResponseWriter, r *http.Request) {
	var req openAccountRequest
	if err := s.decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if !strings.Contains(req.Email, "@") {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "a valid email is required"})
		return
	}
	a, err := s.lifecycle.Open(r.Context(), req.Email)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, viewAccount(a))
}

func (s *Server) handleListPlans(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"plans": viewPlans(s.lifecycle.Plans().List())})
}

func (s *Server) handleGetSubscription(w http.ResponseWriter, r *http.Request) {
	id, _ := AccountID(r.Context())
	a, err := s.lifecycle.Get(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, viewAccount(a))
}

type subscribeRequest struct {
	PlanID string `json:"plan_id"`
}

func (s *Server) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	var req subscribeRequest
	if err := s.decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	id, _ := AccountID(r.Context())
	a, err := s.lifecycle.Subscribe(r.Context(), id, req.PlanID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message":      "Subscription created successfully",
		"subscription": viewAccount(a),
	})
}

func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	id, _ := AccountID(r.Context())
	events, err := s.lifecycle.Events(r.Context(), id, s.pageLimit(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": events})
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	var req cancelRequest
	if r.ContentLength != 0 {
		if err := s.decode(w, r, &req); err != nil {
			s.writeError(w, r, err)
			return
		}
	}
	id, _ := AccountID(r.Context())
	a, err := s.lifecycle.Cancel(r.Context(), id, strings.TrimSpace(req.Reason))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message":      "Subscription will be cancelled at the end of the billing period",
		"cancel_at":    a.CurrentPeriodEnd,
		"subscription": viewAccount(a),
	})
}

func (s *Server) handleReactivate(w http.ResponseWriter, r *http.Request) {
	id, _ := AccountID(r.Context())
	a, err := s.lifecycle.Reactivate(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message":      "Subscription reactivated successfully",
		"subscription": viewAccount(a),
	})
}

type pauseRequest struct {
	Duration string `json:"duration"`
}

func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	var req pauseRequest
	if err := s.decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	d, err := pause.ParseDuration(req.Duration)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	id, _ := AccountID(r.Context())
	res, err := s.lifecycle.Pause(r.Context(), id, d)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message":   "Subscription paused until " + res.ResumeAt.Format(time.DateOnly),
		"pause":     res,
		"resume_at": res.ResumeAt,
	})
}

func (s *Server) handleResume(w http.ResponseWriter, r *http.Request) {
	id, _ := AccountID(r.Context())
	a, err := s.lifecycle.Resume(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message":      "Subscription resumed successfully",
		"subscription": viewAccount(a),
	})
}

func (s *Server) handleRetentionEligibility(w http.ResponseWriter, r *http.Request) {
	id, _ := AccountID(r.Context())
	offer, err := s.lifecycle.RetentionEligibility(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, offer)
}

func (s *Server) handleApplyRetentionDiscount(w http.ResponseWriter, r *http.Request) {
	id, _ := AccountID(r.Context())
	res, err := s.lifecycle.ApplyRetentionDiscount(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message":  "Discount applied to your next invoice",
		"discount": res,
	})
}

type changePlanRequest struct {
	NewPlanID string `json:"new_plan_id"`
}

func (s *Server) handlePreviewChange(w http.ResponseWriter, r *http.Request) {
	var req changePlanRequest
	if err := s.decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	id, _ := AccountID(r.Context())
	preview, err := s.lifecycle.PreviewChange(r.Context(), id, req.NewPlanID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"proration": preview})
}

func (s *Server) handleChangePlan(w http.ResponseWriter, r *http.Request) {
	var req changePlanRequest
	if err := s.decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	id, _ := AccountID(r.Context())
	change, err := s.lifecycle.ChangePlan(r.Context(), id, req.NewPlanID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message":      "Subscription plan changed successfully",
		"proration":    change.Proration,
		"subscription": viewAccount(change.Account),
	})
}
