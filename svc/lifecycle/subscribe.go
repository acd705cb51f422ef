package lifecycle

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/creditkit/pkg/billing"
	"github.com/dmitrymomot/creditkit/pkg/logger"
	"github.com/dmitrymomot/creditkit/svc/account"
	"github.com/dmitrymomot/creditkit/svc/ledger"
	"github.com/dmitrymomot/creditkit/svc/plans"
)

// Open creates a free account holding the free plan's monthly allotment.
// Its period is local: one month from now.
func (s *Service) Open(ctx context.Context, email string) (*account.Account, error) {
	now := s.now().UTC()
	free := s.plans.Free()
	end := now.AddDate(0, 1, 0)

	a := account.New(email, now)
	a.Plan = free.ID
	setPeriod(a, now, end)
	if err := s.store.Create(ctx, a); err != nil {
		return nil, err
	}

	return s.apply(ctx, a.ID, now, func(a *account.Account, post poster) (account.EventData, error) {
		a.CreditsResetAt = account.TimePtr(now)
		a.CreditExpiresAt = account.TimePtr(end)
		if free.Credits > 0 {
			return nil, post(ledger.Entry{
				Kind:        account.KindSubscriptionGrant,
				Amount:      free.Credits,
				Description: "Free plan monthly credits",
				Metadata:    map[string]string{"plan": free.ID},
			})
		}
		return nil, nil
	})
}

// Subscribe starts a paid subscription for a free or cancelled account and
// grants the plan's allotment.
func (s *Service) Subscribe(ctx context.Context, id uuid.UUID, planID string) (*account.Account, error) {
	plan, err := s.plans.Get(planID)
	if err != nil {
		return nil, err
	}
	if plan.IsFree() {
		return nil, fmt.Errorf("%w: %s", ErrPaidPlanRequired, plan.ID)
	}

	a, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	if _, err := s.transition(ctx, a, EventSubscribe, input{now: now}); err != nil {
		return nil, err
	}

	sub, err := s.createSubscription(ctx, a, plan)
	if err != nil {
		return nil, err
	}

	committed, err := s.apply(ctx, id, now, func(a *account.Account, post poster) (account.EventData, error) {
		next, err := s.transition(ctx, a, EventSubscribe, input{now: now})
		if err != nil {
			return nil, err
		}
		a.Status = next
		a.Plan = plan.ID
		a.CustomerRef = sub.CustomerID
		a.SubscriptionRef = sub.ID
		a.PausedUntil = nil
		setPeriod(a, sub.CurrentPeriodStart, sub.CurrentPeriodEnd)
		a.CreditsResetAt = account.TimePtr(latest(now, sub.CurrentPeriodStart))
		a.CreditExpiresAt = account.TimePtr(sub.CurrentPeriodEnd)

		if err := post(ledger.Entry{
			Kind:        account.KindSubscriptionGrant,
			Amount:      plan.Credits,
			Description: fmt.Sprintf("%s plan subscription credits", plan.Name),
			Metadata:    map[string]string{"plan": plan.ID, "subscription_ref": sub.ID},
		}); err != nil {
			return nil, err
		}
		return account.SubscribedData{
			Plan:            plan.ID,
			SubscriptionRef: sub.ID,
			PeriodEnd:       sub.CurrentPeriodEnd.UTC(),
			CreditsGranted:  plan.Credits,
		}, nil
	})
	if err != nil {
		a.SubscriptionRef = sub.ID
		s.diverged(ctx, a, "subscribe", err)
		return nil, err
	}
	return committed, nil
}

// createSubscription creates the provider subscription. A customer the
// provider no longer knows is recreated once and the new reference saved.
func (s *Service) createSubscription(ctx context.Context, a *account.Account, plan plans.Plan) (*billing.Subscription, error) {
	customerRef, err := s.ensureCustomer(ctx, a, false)
	if err != nil {
		return nil, err
	}
	create := func(customerRef string) (*billing.Subscription, error) {
		return s.provider.CreateSubscription(ctx, billing.CreateSubscriptionParams{
			CustomerRef:    customerRef,
			PriceID:        plan.PriceID,
			AccountID:      a.ID.String(),
			IdempotencyKey: idempotencyKey(a, "subscribe", plan.ID+":"+customerRef),
		})
	}

	sub, err := create(customerRef)
	if !billing.IsStaleReference(err) {
		return sub, err
	}

	s.log.WarnContext(ctx, "billing customer reference is stale, recreating",
		logger.AccountID(a.ID),
		logger.Error(err),
	)
	if customerRef, err = s.ensureCustomer(ctx, a, true); err != nil {
		return nil, err
	}
	return create(customerRef)
}

// ensureCustomer returns the account's provider customer, creating and
// saving one when missing or when recreate is set.
func (s *Service) ensureCustomer(ctx context.Context, a *account.Account, recreate bool) (string, error) {
	if a.CustomerRef != "" && !recreate {
		return a.CustomerRef, nil
	}
	customer, err := s.provider.CreateCustomer(ctx, billing.CustomerParams{
		AccountID:      a.ID.String(),
		Email:          a.Email,
		IdempotencyKey: idempotencyKey(a, "customer", a.CustomerRef),
	})
	if err != nil {
		return "", err
	}

	// Saved right away so a failed subscribe does not orphan the customer.
	// UpdatedAt is left alone to keep the request's idempotency keys.
	err = s.store.InTx(ctx, func(ctx context.Context, tx account.Tx) error {
		locked, err := tx.GetForUpdate(ctx, a.ID)
		if err != nil {
			return err
		}
		locked.CustomerRef = customer.ID
		return tx.Update(ctx, locked)
	})
	if err != nil {
		return "", err
	}
	a.CustomerRef = customer.ID
	return customer.ID, nil
}

func freePeriod(now time.Time) (time.Time, time.Time) {
	return now, now.AddDate(0, 1, 0)
}
