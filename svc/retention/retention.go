package retention

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dmitrymomot/creditkit/pkg/billing"
	"github.com/dmitrymomot/creditkit/pkg/logger"
	"github.com/dmitrymomot/creditkit/svc/account"
)

const (
	reasonNoSubscription = "No active subscription found"
	reasonHasDiscount    = "Subscription already has an active discount"
	reasonEligible       = "Eligible for retention discount"
)

var hundred = decimal.NewFromInt(100)

// Eligibility is the outcome of CheckEligibility.
type Eligibility struct {
	CanUseDiscount    bool       `json:"can_use_discount"`
	Reason            string     `json:"reason"`
	DiscountUsedCount int        `json:"discount_used_count"`
	NextEligibleAt    *time.Time `json:"next_eligible_at,omitempty"`
}

// Result is a discount confirmed by the provider. Amounts are in major
// currency units for the next invoice.
type Result struct {
	CouponID        string          `json:"coupon_id"`
	PercentOff      decimal.Decimal `json:"percent_off"`
	OriginalAmount  decimal.Decimal `json:"original_amount"`
	DiscountAmount  decimal.Decimal `json:"discount_amount"`
	FinalAmount     decimal.Decimal `json:"final_amount"`
	Currency        string          `json:"currency"`
	NextBillingDate time.Time       `json:"next_billing_date"`
	NextEligibleAt  time.Time       `json:"next_eligible_at"`
	AppliedAt       time.Time       `json:"-"`
}

// ApplyTo records the discount on a.
func (r Result) ApplyTo(a *account.Account) {
	a.DiscountUsedCount++
	a.LastDiscountDate = account.TimePtr(r.AppliedAt)
}

func (r Result) Event() account.DiscountUsedData {
	return account.DiscountUsedData{
		CouponID:       r.CouponID,
		PercentOff:     r.PercentOff,
		OriginalAmount: r.OriginalAmount,
		DiscountAmount: r.DiscountAmount,
		FinalAmount:    r.FinalAmount,
		Currency:       r.Currency,
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

// NewService panics if provider is nil or cfg is out of range.
func NewService(provider billing.Provider, cfg Config, opts ...Option) *Service {
	if provider == nil {
		panic("retention: billing provider is required")
	}
	if cfg.CooldownMonths < 0 || cfg.PercentOff <= 0 || cfg.PercentOff > 100 {
		panic(fmt.Errorf("%w: cooldown %d months, %v%% off", ErrInvalidConfig, cfg.CooldownMonths, cfg.PercentOff))
	}
	s := &Service{provider: provider, cfg: cfg, log: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CheckEligibility reads the provider subscription to see whether a discount
// is already attached.
func (s *Service) CheckEligibility(ctx context.Context, a *account.Account, now time.Time) (Eligibility, error) {
	e := Eligibility{DiscountUsedCount: a.DiscountUsedCount}
	if !a.HasSubscription() {
		e.Reason = reasonNoSubscription
		return e, nil
	}

	if a.LastDiscountDate != nil {
		next := a.LastDiscountDate.AddDate(0, s.cfg.CooldownMonths, 0).UTC()
		e.NextEligibleAt = &next
		if now.Before(next) {
			e.Reason = fmt.Sprintf("Retention discount is available once every %d months", s.cfg.CooldownMonths)
			return e, nil
		}
	}

	sub, err := s.provider.GetSubscription(ctx, a.SubscriptionRef)
	if err != nil {
		return Eligibility{}, err
	}
	if sub.HasDiscount() {
		e.Reason = reasonHasDiscount
		return e, nil
	}

	e.CanUseDiscount = true
	e.Reason = reasonEligible
	return e, nil
}

// Apply creates the coupon and attaches it to the subscription. It does not
// modify a.
func (s *Service) Apply(ctx context.Context, a *account.Account, now time.Time) (Result, error) {
	e, err := s.CheckEligibility(ctx, a, now)
	if err != nil {
		return Result{}, err
	}
	if !e.CanUseDiscount {
		if e.Reason == reasonNoSubscription {
			return Result{}, account.ErrNoActiveSubscription
		}
		return Result{}, account.NotEligible(e.Reason)
	}

	pct := s.cfg.percent()
	// One key per account and cooldown slot, so retries reuse the coupon.
	slot := fmt.Sprintf("%s:%d", a.ID, a.DiscountUsedCount)
	coupon, err := s.provider.CreateCoupon(ctx, billing.CouponParams{
		Name:       fmt.Sprintf("Retention %s%% off", pct.String()),
		PercentOff: pct,
		Metadata: map[string]string{
			"type":        "retention_offer",
			"account_id":  a.ID.String(),
			"created_for": a.Email,
		},
		IdempotencyKey: "retention-coupon:" + slot,
	})
	if err != nil {
		return Result{}, err
	}

	sub, err := s.provider.ApplyCoupon(ctx, a.SubscriptionRef, coupon.ID, "retention-apply:"+slot)
	if err != nil {
		return Result{}, err
	}
	if sub.DiscountCouponID != coupon.ID {
		return Result{}, errors.Join(billing.ErrProvider, fmt.Errorf("coupon %s not attached to %s", coupon.ID, sub.ID))
	}

	original := sub.Price()
	discount := original.Mul(pct).Div(hundred).Round(2)
	res := Result{
		CouponID:        coupon.ID,
		PercentOff:      pct,
		OriginalAmount:  original,
		DiscountAmount:  discount,
		FinalAmount:     original.Sub(discount),
		Currency:        sub.Currency,
		NextBillingDate: sub.CurrentPeriodEnd.UTC(),
		NextEligibleAt:  now.AddDate(0, s.cfg.CooldownMonths, 0).UTC(),
		AppliedAt:       now.UTC(),
	}

	s.log.InfoContext(ctx, "retention discount applied",
		logger.AccountID(a.ID),
		logger.SubscriptionRef(a.SubscriptionRef),
		slog.String("coupon_id", coupon.ID),
		slog.String("final_amount", res.FinalAmount.StringFixed(2)),
	)
	return res, nil
}
