package billing

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryProvider is an in-process Provider for local runs and tests.
// Periods are one calendar month starting at subscription creation.
// Idempotency keys are honoured: repeating a key returns the first result.
type MemoryProvider struct {
	mu        sync.Mutex
	now       func() time.Time
	prices    map[string]int64
	currency  string
	customers map[string]*Customer
	subs      map[string]*Subscription
	coupons   map[string]*Coupon
	seen      map[string]any
	failures  []error
}

// MemoryOption configures a MemoryProvider.
type MemoryOption func(*MemoryProvider)

// WithClock sets the time source used for billing periods.
func WithClock(now func() time.Time) MemoryOption {
	return func(m *MemoryProvider) { m.now = now }
}

// WithPrice registers a price id with its unit amount in minor units.
func WithPrice(priceID string, unitAmount int64) MemoryOption {
	return func(m *MemoryProvider) { m.prices[priceID] = unitAmount }
}

func NewMemoryProvider(opts ...MemoryOption) *MemoryProvider {
	m := &MemoryProvider{
		now:       time.Now,
		prices:    make(map[string]int64),
		currency:  "usd",
		customers: make(map[string]*Customer),
		subs:      make(map[string]*Subscription),
		coupons:   make(map[string]*Coupon),
		seen:      make(map[string]any),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// FailNext queues errors returned by the next calls, one per call.
func (m *MemoryProvider) FailNext(errs ...error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures = append(m.failures, errs...)
}

// ForgetCustomer drops a customer so later calls see a stale reference.
func (m *MemoryProvider) ForgetCustomer(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.customers, id)
}

// Subscriptions returns a snapshot of all subscriptions keyed by id.
func (m *MemoryProvider) Subscriptions() map[string]Subscription {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]Subscription, len(m.subs))
	for id, s := range m.subs {
		out[id] = *s
	}
	return out
}

func (m *MemoryProvider) popFailure() error {
	if len(m.failures) == 0 {
		return nil
	}
	err := m.failures[0]
	m.failures = m.failures[1:]
	return err
}

func (m *MemoryProvider) CreateCustomer(_ context.Context, params CustomerParams) (*Customer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.popFailure(); err != nil {
		return nil, err
	}
	if v, ok := m.seen[params.IdempotencyKey]; ok && params.IdempotencyKey != "" {
		if c, ok := v.(*Customer); ok {
			if _, alive := m.customers[c.ID]; alive {
				cp := *c
				return &cp, nil
			}
		}
	}

	c := &Customer{ID: "cus_" + shortID(), Email: params.Email}
	m.customers[c.ID] = c
	m.remember(params.IdempotencyKey, c)
	cp := *c
	return &cp, nil
}

func (m *MemoryProvider) CreateSubscription(_ context.Context, params CreateSubscriptionParams) (*Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.popFailure(); err != nil {
		return nil, err
	}
	if s, ok := m.replay(params.IdempotencyKey); ok {
		return s, nil
	}
	if _, ok := m.customers[params.CustomerRef]; !ok {
		return nil, stale("customer", params.CustomerRef)
	}
	if params.PriceID == "" {
		return nil, ErrMissingPriceID
	}

	now := m.now().UTC()
	s := &Subscription{
		ID:                 "sub_" + shortID(),
		CustomerID:         params.CustomerRef,
		Status:             StatusActive,
		CurrentPeriodStart: now,
		CurrentPeriodEnd:   now.AddDate(0, 1, 0),
		ItemID:             "si_" + shortID(),
		PriceID:            params.PriceID,
		UnitAmount:         m.prices[params.PriceID],
		Currency:           m.currency,
	}
	m.subs[s.ID] = s
	return m.snapshot(params.IdempotencyKey, s), nil
}

func (m *MemoryProvider) GetSubscription(_ context.Context, ref string) (*Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.popFailure(); err != nil {
		return nil, err
	}
	s, ok := m.subs[ref]
	if !ok {
		return nil, stale("subscription", ref)
	}
	cp := *s
	return &cp, nil
}

func (m *MemoryProvider) ChangePrice(_ context.Context, params ChangePriceParams) (*Subscription, error) {
	return m.mutate(params.SubscriptionRef, params.IdempotencyKey, func(s *Subscription) error {
		if params.PriceID == "" {
			return ErrMissingPriceID
		}
		s.PriceID = params.PriceID
		s.UnitAmount = m.prices[params.PriceID]
		return nil
	})
}

func (m *MemoryProvider) PauseCollection(_ context.Context, ref string, resumesAt time.Time, key string) (*Subscription, error) {
	return m.mutate(ref, key, func(s *Subscription) error {
		at := resumesAt.UTC()
		s.PauseResumesAt = &at
		return nil
	})
}

func (m *MemoryProvider) ResumeCollection(_ context.Context, ref, key string) (*Subscription, error) {
	return m.mutate(ref, key, func(s *Subscription) error {
		s.PauseResumesAt = nil
		return nil
	})
}

func (m *MemoryProvider) CancelAtPeriodEnd(_ context.Context, ref, key string) (*Subscription, error) {
	return m.mutate(ref, key, func(s *Subscription) error {
		s.CancelAtPeriodEnd = true
		return nil
	})
}

func (m *MemoryProvider) Reactivate(_ context.Context, ref, key string) (*Subscription, error) {
	return m.mutate(ref, key, func(s *Subscription) error {
		s.CancelAtPeriodEnd = false
		return nil
	})
}

func (m *MemoryProvider) CreateCoupon(_ context.Context, params CouponParams) (*Coupon, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.popFailure(); err != nil {
		return nil, err
	}
	if v, ok := m.seen[params.IdempotencyKey]; ok && params.IdempotencyKey != "" {
		if c, ok := v.(*Coupon); ok {
			cp := *c
			return &cp, nil
		}
	}
	c := &Coupon{ID: "coupon_" + shortID(), PercentOff: params.PercentOff}
	m.coupons[c.ID] = c
	m.remember(params.IdempotencyKey, c)
	cp := *c
	return &cp, nil
}

func (m *MemoryProvider) ApplyCoupon(_ context.Context, ref, couponID, key string) (*Subscription, error) {
	return m.mutate(ref, key, func(s *Subscription) error {
		if _, ok := m.coupons[couponID]; !ok {
			return stale("coupon", couponID)
		}
		s.DiscountCouponID = couponID
		return nil
	})
}

// AdvancePeriod rolls a subscription into its next monthly period, clearing
// a once-duration discount, or ends it if cancel-at-period-end was set.
func (m *MemoryProvider) AdvancePeriod(ref string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.subs[ref]
	if !ok {
		return stale("subscription", ref)
	}
	if s.CancelAtPeriodEnd {
		s.Status = StatusCanceled
		return nil
	}
	s.CurrentPeriodStart = s.CurrentPeriodEnd
	s.CurrentPeriodEnd = s.CurrentPeriodEnd.AddDate(0, 1, 0)
	s.DiscountCouponID = ""
	return nil
}

func (m *MemoryProvider) mutate(ref, key string, fn func(*Subscription) error) (*Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.popFailure(); err != nil {
		return nil, err
	}
	if s, ok := m.replay(key); ok {
		return s, nil
	}
	s, ok := m.subs[ref]
	if !ok {
		return nil, stale("subscription", ref)
	}
	if err := fn(s); err != nil {
		return nil, err
	}
	return m.snapshot(key, s), nil
}

func (m *MemoryProvider) replay(key string) (*Subscription, bool) {
	if key == "" {
		return nil, false
	}
	v, ok := m.seen[key].(Subscription)
	if !ok {
		return nil, false
	}
	return &v, true
}

func (m *MemoryProvider) snapshot(key string, s *Subscription) *Subscription {
	cp := *s
	m.remember(key, cp)
	return &cp
}

func (m *MemoryProvider) remember(key string, v any) {
	if key != "" {
		m.seen[key] = v
	}
}

func stale(kind, id string) error {
	return fmt.Errorf("%w: %w: no such %s %q", ErrProvider, ErrStaleReference, kind, id)
}

func shortID() string {
	return uuid.NewString()[:8]
}
