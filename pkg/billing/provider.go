package billing

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Provider is the slice of the payment provider's subscription and coupon API
// that creditkit drives. Every mutating call carries an idempotency key so a
// retried request never applies twice.
type Provider interface {
	CreateCustomer(ctx context.Context, params CustomerParams) (*Customer, error)
	CreateSubscription(ctx context.Context, params CreateSubscriptionParams) (*Subscription, error)
	GetSubscription(ctx context.Context, ref string) (*Subscription, error)
	// ChangePrice swaps the price of the subscription's first item.
	ChangePrice(ctx context.Context, params ChangePriceParams) (*Subscription, error)
	// PauseCollection voids invoices until resumesAt.
	PauseCollection(ctx context.Context, ref string, resumesAt time.Time, idempotencyKey string) (*Subscription, error)
	ResumeCollection(ctx context.Context, ref, idempotencyKey string) (*Subscription, error)
	CancelAtPeriodEnd(ctx context.Context, ref, idempotencyKey string) (*Subscription, error)
	// Reactivate clears a pending cancel-at-period-end.
	Reactivate(ctx context.Context, ref, idempotencyKey string) (*Subscription, error)
	CreateCoupon(ctx context.Context, params CouponParams) (*Coupon, error)
	ApplyCoupon(ctx context.Context, ref, couponID, idempotencyKey string) (*Subscription, error)
}

// Status mirrors the provider's subscription status values.
type Status string

const (
	StatusActive     Status = "active"
	StatusTrialing   Status = "trialing"
	StatusPastDue    Status = "past_due"
	StatusIncomplete Status = "incomplete"
	// StatusIncompleteExpired is an initial payment that was never made.
	StatusIncompleteExpired Status = "incomplete_expired"
	StatusUnpaid            Status = "unpaid"
	StatusCanceled          Status = "canceled"
	StatusPaused            Status = "paused"
)

type Customer struct {
	ID    string
	Email string
}

type CustomerParams struct {
	AccountID      string
	Email          string
	IdempotencyKey string
}

type CreateSubscriptionParams struct {
	CustomerRef    string
	PriceID        string
	AccountID      string
	IdempotencyKey string
}

type ChangePriceParams struct {
	SubscriptionRef string
	PriceID         string
	// Prorate asks the provider to invoice the difference immediately.
	Prorate        bool
	IdempotencyKey string
}

type CouponParams struct {
	Name           string
	PercentOff     decimal.Decimal
	Metadata       map[string]string
	IdempotencyKey string
}

// Coupon is always single-redemption with duration "once".
type Coupon struct {
	ID         string
	PercentOff decimal.Decimal
}

// Subscription is the provider-side view of a subscription.
type Subscription struct {
	ID                 string
	CustomerID         string
	Status             Status
	CurrentPeriodStart time.Time
	CurrentPeriodEnd   time.Time
	PauseResumesAt     *time.Time
	CancelAtPeriodEnd  bool
	DiscountCouponID   string
	ItemID             string
	PriceID            string
	// UnitAmount is in minor currency units.
	UnitAmount int64
	Currency   string
}

func (s *Subscription) IsActive() bool {
	return s != nil && s.Status == StatusActive
}

func (s *Subscription) HasDiscount() bool {
	return s != nil && s.DiscountCouponID != ""
}

func (s *Subscription) IsCollectionPaused() bool {
	return s != nil && s.PauseResumesAt != nil
}

// Price returns the first item's unit price in major currency units.
func (s *Subscription) Price() decimal.Decimal {
	if s == nil {
		return decimal.Zero
	}
	return decimal.New(s.UnitAmount, -2)
}
