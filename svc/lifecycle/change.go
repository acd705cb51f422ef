package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/creditkit/pkg/billing"
	"github.com/dmitrymomot/creditkit/svc/account"
	"github.com/dmitrymomot/creditkit/svc/ledger"
	"github.com/dmitrymomot/creditkit/svc/plans"
	"github.com/dmitrymomot/creditkit/svc/proration"
)

// PlanChange is the committed outcome of ChangePlan.
type PlanChange struct {
	Account   *account.Account
	Proration proration.Result
}

// PreviewChange prices a switch to newPlanID without changing anything.
func (s *Service) PreviewChange(ctx context.Context, id uuid.UUID, newPlanID string) (proration.Result, error) {
	a, err := s.store.Get(ctx, id)
	if err != nil {
		return proration.Result{}, err
	}
	res, _, err := s.prorate(ctx, a, newPlanID, s.now().UTC())
	return res, err
}

// ChangePlan moves an active subscription to newPlanID. The provider
// invoices the price difference; the ledger receives the credit difference
// between the two allotments, clamped so the balance stays non-negative.
func (s *Service) ChangePlan(ctx context.Context, id uuid.UUID, newPlanID string) (*PlanChange, error) {
	a, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	res, next, err := s.prorate(ctx, a, newPlanID, now)
	if err != nil {
		return nil, err
	}

	sub, err := s.provider.ChangePrice(ctx, billing.ChangePriceParams{
		SubscriptionRef: a.SubscriptionRef,
		PriceID:         next.PriceID,
		Prorate:         true,
		IdempotencyKey:  idempotencyKey(a, "change-plan", a.Plan+">"+next.ID),
	})
	if err != nil {
		return nil, err
	}

	from := a.Plan
	committed, err := s.apply(ctx, id, now, func(a *account.Account, post poster) (account.EventData, error) {
		if _, err := s.transition(ctx, a, EventChangePlan, input{now: now}); err != nil {
			return nil, err
		}
		if a.Plan != from {
			return nil, fmt.Errorf("%w: plan changed concurrently", account.ErrInvalidTransition)
		}
		a.Plan = next.ID
		setPeriod(a, sub.CurrentPeriodStart, sub.CurrentPeriodEnd)

		if err := postPlanAdjustment(a, post, from, next.ID, res.CreditAdjustment); err != nil {
			return nil, err
		}
		return account.PlanChangedData{
			FromPlan:         from,
			ToPlan:           next.ID,
			IsUpgrade:        res.IsUpgrade,
			ImmediateCharge:  res.ImmediateCharge,
			CreditBalance:    res.CreditBalance,
			CreditAdjustment: res.CreditAdjustment,
			DaysRemaining:    res.DaysRemaining,
		}, nil
	})
	if err != nil {
		s.diverged(ctx, a, "change-plan", err)
		return nil, err
	}
	return &PlanChange{Account: committed, Proration: res}, nil
}

func postPlanAdjustment(a *account.Account, post poster, from, to string, delta int64) error {
	desc := fmt.Sprintf("Plan changed from %s to %s", from, to)
	switch {
	case delta > 0:
		return post(ledger.Entry{
			Kind:        account.KindSubscriptionGrant,
			Amount:      delta,
			Description: desc,
			Metadata:    map[string]string{"operation": "plan_upgrade"},
		})
	case delta < 0:
		applied := max(delta, -a.CreditsRemaining)
		if applied == 0 {
			return nil
		}
		return post(ledger.Entry{
			Kind:        account.KindReset,
			Amount:      applied,
			Description: desc,
			Metadata: map[string]string{
				"operation": "plan_downgrade",
				"requested": strconv.FormatInt(delta, 10),
			},
		})
	}
	return nil
}

// prorate validates a switch and prices it against the provider's current
// billing period.
func (s *Service) prorate(ctx context.Context, a *account.Account, newPlanID string, now time.Time) (proration.Result, plans.Plan, error) {
	if _, err := s.transition(ctx, a, EventChangePlan, input{now: now}); err != nil {
		return proration.Result{}, plans.Plan{}, err
	}
	if a.Plan == newPlanID {
		return proration.Result{}, plans.Plan{}, proration.ErrSamePlan
	}
	next, err := s.plans.Get(newPlanID)
	if err != nil {
		return proration.Result{}, plans.Plan{}, err
	}
	if next.IsFree() {
		return proration.Result{}, plans.Plan{}, fmt.Errorf("%w: %s", ErrPaidPlanRequired, next.ID)
	}
	current, err := s.plans.Get(a.Plan)
	if err != nil {
		return proration.Result{}, plans.Plan{}, err
	}

	sub, err := s.provider.GetSubscription(ctx, a.SubscriptionRef)
	if err != nil {
		return proration.Result{}, plans.Plan{}, err
	}
	if !sub.IsActive() {
		return proration.Result{}, plans.Plan{}, errors.Join(account.ErrNoActiveSubscription, billing.ErrSubscriptionNotActive)
	}

	res, err := proration.Calculate(proration.Input{
		CurrentPlan: current,
		NewPlan:     next,
		PeriodStart: sub.CurrentPeriodStart,
		PeriodEnd:   sub.CurrentPeriodEnd,
		Now:         now,
	})
	if err != nil {
		return proration.Result{}, plans.Plan{}, err
	}
	return res, next, nil
}
