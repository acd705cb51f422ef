package pause

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dmitrymomot/creditkit/pkg/billing"
	"github.com/dmitrymomot/creditkit/pkg/logger"
	"github.com/dmitrymomot/creditkit/svc/account"
)

const reasonAlreadyPaused = "Subscription is already paused"

// Eligibility is the outcome of CheckEligibility.
type Eligibility struct {
	CanPause           bool   `json:"can_pause"`
	Reason             string `json:"reason"`
	PausesUsedThisYear int    `json:"pause_count"`
}

// Result describes a pause confirmed by the provider.
type Result struct {
	Duration  Duration  `json:"duration"`
	PausedAt  time.Time `json:"paused_at"`
	ResumeAt  time.Time `json:"resume_at"`
	PeriodEnd time.Time `json:"period_end"`
}

// ApplyTo records the pause on a. The yearly counter restarts when the
// previous pause happened in an earlier year.
func (r Result) ApplyTo(a *account.Account) {
	a.PauseCount = a.PausesUsedIn(r.PausedAt) + 1
	a.LastPauseDate = account.TimePtr(r.PausedAt)
	a.PausedUntil = account.TimePtr(r.ResumeAt)
	a.CurrentPeriodEnd = account.TimePtr(r.PeriodEnd)
	a.Status = account.StatusPaused
}

// Event is the audit payload for the pause.
func (r Result) Event() account.PausedData {
	return account.PausedData{
		Duration:  string(r.Duration),
		PausedAt:  r.PausedAt.UTC(),
		ResumeAt:  r.ResumeAt.UTC(),
		PeriodEnd: r.PeriodEnd.UTC(),
	}
}

type Service struct {
	provider billing.Provider
	cfg      Config
	log      *slog.Logger
}

type Option func(*Service)

func WithLogger(log *slog.Logger) Option {
	return func(s *Service) { s.log = log }
}

// NewService panics if provider is nil. A non-positive yearly limit falls
// back to the default.
func NewService(provider billing.Provider, cfg Config, opts ...Option) *Service {
	if provider == nil {
		panic("pause: billing provider is required")
	}
	if cfg.YearlyLimit <= 0 {
		cfg.YearlyLimit = DefaultConfig().YearlyLimit
	}
	s := &Service{provider: provider, cfg: cfg, log: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CheckEligibility is a pure check against the account row.
func (s *Service) CheckEligibility(a *account.Account, now time.Time) Eligibility {
	used := a.PausesUsedIn(now)
	switch {
	case a.Status == account.StatusPaused,
		a.PausedUntil != nil && a.PausedUntil.After(now):
		return Eligibility{Reason: reasonAlreadyPaused, PausesUsedThisYear: used}
	case used >= s.cfg.YearlyLimit:
		return Eligibility{
			Reason:             fmt.Sprintf("You can only pause your subscription %d times per year", s.cfg.YearlyLimit),
			PausesUsedThisYear: used,
		}
	}
	return Eligibility{CanPause: true, Reason: "Eligible to pause subscription", PausesUsedThisYear: used}
}

// Apply pauses collection at the provider until the chosen duration after
// the current period end. It does not modify a.
func (s *Service) Apply(ctx context.Context, a *account.Account, d Duration, now time.Time) (Result, error) {
	if d.Days() == 0 {
		return Result{}, fmt.Errorf("%w: %q", ErrInvalidDuration, d)
	}
	if a.SubscriptionRef == "" {
		return Result{}, account.ErrNoActiveSubscription
	}
	if e := s.CheckEligibility(a, now); !e.CanPause {
		return Result{}, account.NotEligible(e.Reason)
	}

	sub, err := s.provider.GetSubscription(ctx, a.SubscriptionRef)
	if err != nil {
		return Result{}, err
	}
	if !sub.IsActive() {
		return Result{}, errors.Join(account.ErrNoActiveSubscription, billing.ErrSubscriptionNotActive)
	}

	resumeAt := d.ResumeAt(sub.CurrentPeriodEnd).UTC()
	key := fmt.Sprintf("pause:%s:%d:%d", a.ID, resumeAt.Unix(), a.UpdatedAt.UnixNano())
	if _, err := s.provider.PauseCollection(ctx, a.SubscriptionRef, resumeAt, key); err != nil {
		return Result{}, err
	}

	s.log.InfoContext(ctx, "subscription collection paused",
		logger.AccountID(a.ID),
		logger.SubscriptionRef(a.SubscriptionRef),
		slog.String("duration", string(d)),
		slog.Time("resume_at", resumeAt),
	)
	return Result{
		Duration:  d,
		PausedAt:  now.UTC(),
		ResumeAt:  resumeAt,
		PeriodEnd: sub.CurrentPeriodEnd.UTC(),
	}, nil
}

// Resume lifts the pause at the provider and returns the subscription with
// its current period.
func (s *Service) Resume(ctx context.Context, a *account.Account) (*billing.Subscription, error) {
	if a.SubscriptionRef == "" {
		return nil, account.ErrNoActiveSubscription
	}
	key := fmt.Sprintf("resume:%s:%d", a.ID, a.UpdatedAt.UnixNano())
	return s.provider.ResumeCollection(ctx, a.SubscriptionRef, key)
}
