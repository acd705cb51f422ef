package billing

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/client"
)

// StripeConfig holds configuration for the Stripe provider.
type StripeConfig struct {
	SecretKey string `env:"STRIPE_SECRET_KEY"`
	// BaseURL overrides the API endpoint, used by tests and stripe-mock.
	BaseURL     string        `env:"STRIPE_BASE_URL"`
	CallTimeout time.Duration `env:"STRIPE_CALL_TIMEOUT" envDefault:"10s"`
	MaxRetries  uint64        `env:"STRIPE_MAX_RETRIES" envDefault:"3"`
	RetryBase   time.Duration `env:"STRIPE_RETRY_BASE" envDefault:"200ms"`
}

// StripeProvider implements Provider on top of the Stripe API.
type StripeProvider struct {
	api *client.API
}

// NewStripeProvider builds a client bound to cfg.SecretKey. No package-level
// stripe.Key is touched, so several providers can coexist.
func NewStripeProvider(cfg StripeConfig) (*StripeProvider, error) {
	if cfg.SecretKey == "" {
		return nil, ErrMissingAPIKey
	}

	var backends *stripe.Backends
	if cfg.BaseURL != "" {
		backend := stripe.GetBackendWithConfig(stripe.APIBackend, &stripe.BackendConfig{
			URL:               stripe.String(cfg.BaseURL),
			HTTPClient:        &http.Client{Timeout: cfg.CallTimeout},
			MaxNetworkRetries: stripe.Int64(0),
		})
		backends = &stripe.Backends{API: backend, Connect: backend, Uploads: backend}
	}

	return &StripeProvider{api: client.New(cfg.SecretKey, backends)}, nil
}

func (p *StripeProvider) CreateCustomer(ctx context.Context, params CustomerParams) (*Customer, error) {
	cp := &stripe.CustomerParams{Email: stripe.String(params.Email)}
	cp.Context = ctx
	cp.AddMetadata("account_id", params.AccountID)
	setIdempotency(&cp.Params, params.IdempotencyKey)

	c, err := p.api.Customers.New(cp)
	if err != nil {
		return nil, classify("create customer", err)
	}
	return &Customer{ID: c.ID, Email: c.Email}, nil
}

func (p *StripeProvider) CreateSubscription(ctx context.Context, params CreateSubscriptionParams) (*Subscription, error) {
	if params.PriceID == "" {
		return nil, ErrMissingPriceID
	}
	sp := &stripe.SubscriptionParams{
		Customer: stripe.String(params.CustomerRef),
		Items: []*stripe.SubscriptionItemsParams{
			{Price: stripe.String(params.PriceID), Quantity: stripe.Int64(1)},
		},
	}
	sp.Context = ctx
	sp.AddMetadata("account_id", params.AccountID)
	setIdempotency(&sp.Params, params.IdempotencyKey)

	s, err := p.api.Subscriptions.New(sp)
	if err != nil {
		return nil, classify("create subscription", err)
	}
	return fromStripe(s), nil
}

func (p *StripeProvider) GetSubscription(ctx context.Context, ref string) (*Subscription, error) {
	sp := &stripe.SubscriptionParams{}
	sp.Context = ctx
	sp.AddExpand("discount.coupon")

	s, err := p.api.Subscriptions.Get(ref, sp)
	if err != nil {
		return nil, classify("get subscription", err)
	}
	return fromStripe(s), nil
}

func (p *StripeProvider) ChangePrice(ctx context.Context, params ChangePriceParams) (*Subscription, error) {
	if params.PriceID == "" {
		return nil, ErrMissingPriceID
	}
	current, err := p.GetSubscription(ctx, params.SubscriptionRef)
	if err != nil {
		return nil, err
	}

	behavior := "none"
	if params.Prorate {
		behavior = "always_invoice"
	}
	sp := &stripe.SubscriptionParams{
		Items: []*stripe.SubscriptionItemsParams{
			{ID: stripe.String(current.ItemID), Price: stripe.String(params.PriceID)},
		},
		ProrationBehavior: stripe.String(behavior),
	}
	return p.update(ctx, "change price", params.SubscriptionRef, sp, params.IdempotencyKey)
}

func (p *StripeProvider) PauseCollection(ctx context.Context, ref string, resumesAt time.Time, idempotencyKey string) (*Subscription, error) {
	sp := &stripe.SubscriptionParams{
		PauseCollection: &stripe.SubscriptionPauseCollectionParams{
			Behavior:  stripe.String("void"),
			ResumesAt: stripe.Int64(resumesAt.Unix()),
		},
	}
	return p.update(ctx, "pause collection", ref, sp, idempotencyKey)
}

func (p *StripeProvider) ResumeCollection(ctx context.Context, ref, idempotencyKey string) (*Subscription, error) {
	sp := &stripe.SubscriptionParams{}
	// an empty value unsets pause_collection
	sp.AddExtra("pause_collection", "")
	return p.update(ctx, "resume collection", ref, sp, idempotencyKey)
}

func (p *StripeProvider) CancelAtPeriodEnd(ctx context.Context, ref, idempotencyKey string) (*Subscription, error) {
	sp := &stripe.SubscriptionParams{CancelAtPeriodEnd: stripe.Bool(true)}
	return p.update(ctx, "cancel at period end", ref, sp, idempotencyKey)
}

func (p *StripeProvider) Reactivate(ctx context.Context, ref, idempotencyKey string) (*Subscription, error) {
	sp := &stripe.SubscriptionParams{CancelAtPeriodEnd: stripe.Bool(false)}
	return p.update(ctx, "reactivate", ref, sp, idempotencyKey)
}

func (p *StripeProvider) CreateCoupon(ctx context.Context, params CouponParams) (*Coupon, error) {
	percent, _ := params.PercentOff.Float64()
	cp := &stripe.CouponParams{
		Name:           stripe.String(params.Name),
		PercentOff:     stripe.Float64(percent),
		Duration:       stripe.String(string(stripe.CouponDurationOnce)),
		MaxRedemptions: stripe.Int64(1),
	}
	cp.Context = ctx
	for k, v := range params.Metadata {
		cp.AddMetadata(k, v)
	}
	setIdempotency(&cp.Params, params.IdempotencyKey)

	c, err := p.api.Coupons.New(cp)
	if err != nil {
		return nil, classify("create coupon", err)
	}
	return &Coupon{ID: c.ID, PercentOff: decimal.NewFromFloat(c.PercentOff)}, nil
}

func (p *StripeProvider) ApplyCoupon(ctx context.Context, ref, couponID, idempotencyKey string) (*Subscription, error) {
	sp := &stripe.SubscriptionParams{Coupon: stripe.String(couponID)}
	return p.update(ctx, "apply coupon", ref, sp, idempotencyKey)
}

func (p *StripeProvider) update(ctx context.Context, op, ref string, sp *stripe.SubscriptionParams, idempotencyKey string) (*Subscription, error) {
	sp.Context = ctx
	setIdempotency(&sp.Params, idempotencyKey)

	s, err := p.api.Subscriptions.Update(ref, sp)
	if err != nil {
		return nil, classify(op, err)
	}
	return fromStripe(s), nil
}

func setIdempotency(params *stripe.Params, key string) {
	if key != "" {
		params.SetIdempotencyKey(key)
	}
}

// classify joins err with ErrProvider and, where it applies, ErrStaleReference
// or ErrTransient.
func classify(op string, err error) error {
	wrapped := fmt.Errorf("stripe %s: %w", op, err)

	var se *stripe.Error
	if !errors.As(err, &se) {
		// network or timeout, the request may not have reached Stripe
		if errors.Is(err, context.Canceled) {
			return errors.Join(ErrProvider, wrapped)
		}
		return errors.Join(ErrProvider, ErrTransient, wrapped)
	}

	switch {
	case se.Code == stripe.ErrorCodeResourceMissing:
		return errors.Join(ErrProvider, ErrStaleReference, wrapped)
	case se.HTTPStatusCode == http.StatusTooManyRequests,
		se.HTTPStatusCode == http.StatusConflict,
		se.HTTPStatusCode >= http.StatusInternalServerError:
		return errors.Join(ErrProvider, ErrTransient, wrapped)
	}
	return errors.Join(ErrProvider, wrapped)
}

func fromStripe(s *stripe.Subscription) *Subscription {
	if s == nil {
		return nil
	}
	out := &Subscription{
		ID:                s.ID,
		Status:            Status(s.Status),
		CancelAtPeriodEnd: s.CancelAtPeriodEnd,
	}
	if s.CurrentPeriodStart > 0 {
		out.CurrentPeriodStart = time.Unix(s.CurrentPeriodStart, 0).UTC()
	}
	if s.CurrentPeriodEnd > 0 {
		out.CurrentPeriodEnd = time.Unix(s.CurrentPeriodEnd, 0).UTC()
	}
	if s.Customer != nil {
		out.CustomerID = s.Customer.ID
	}
	if s.PauseCollection != nil && s.PauseCollection.ResumesAt > 0 {
		at := time.Unix(s.PauseCollection.ResumesAt, 0).UTC()
		out.PauseResumesAt = &at
	}
	if s.Discount != nil && s.Discount.Coupon != nil {
		out.DiscountCouponID = s.Discount.Coupon.ID
	}
	if s.Items != nil && len(s.Items.Data) > 0 {
		item := s.Items.Data[0]
		out.ItemID = item.ID
		if item.Price != nil {
			out.PriceID = item.Price.ID
			out.UnitAmount = item.Price.UnitAmount
			out.Currency = string(item.Price.Currency)
		}
	}
	return out
}
