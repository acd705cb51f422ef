package lifecycle

import (
	"context"

	"github.com/google/uuid"

	"github.com/dmitrymomot/creditkit/svc/account"
)

// Cancel schedules the subscription to end with the current period. The
// account keeps its plan and credits until then.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID, reason string) (*account.Account, error) {
	a, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	if _, err := s.transition(ctx, a, EventCancel, input{now: now}); err != nil {
		return nil, err
	}

	sub, err := s.provider.CancelAtPeriodEnd(ctx, a.SubscriptionRef, idempotencyKey(a, "cancel", a.SubscriptionRef))
	if err != nil {
		return nil, err
	}

	committed, err := s.apply(ctx, id, now, func(a *account.Account, _ poster) (account.EventData, error) {
		next, err := s.transition(ctx, a, EventCancel, input{now: now})
		if err != nil {
			return nil, err
		}
		a.Status = next
		a.PausedUntil = nil
		setPeriod(a, sub.CurrentPeriodStart, sub.CurrentPeriodEnd)
		return account.CancelledData{Reason: reason, PeriodEnd: sub.CurrentPeriodEnd.UTC()}, nil
	})
	if err != nil {
		s.diverged(ctx, a, "cancel", err)
		return nil, err
	}
	return committed, nil
}

// Reactivate withdraws a pending cancellation.
func (s *Service) Reactivate(ctx context.Context, id uuid.UUID) (*account.Account, error) {
	a, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	if _, err := s.transition(ctx, a, EventReactivate, input{now: now}); err != nil {
		return nil, err
	}

	sub, err := s.provider.Reactivate(ctx, a.SubscriptionRef, idempotencyKey(a, "reactivate", a.SubscriptionRef))
	if err != nil {
		return nil, err
	}

	committed, err := s.apply(ctx, id, now, func(a *account.Account, _ poster) (account.EventData, error) {
		next, err := s.transition(ctx, a, EventReactivate, input{now: now})
		if err != nil {
			return nil, err
		}
		a.Status = next
		setPeriod(a, sub.CurrentPeriodStart, sub.CurrentPeriodEnd)
		return account.ReactivatedData{PeriodEnd: sub.CurrentPeriodEnd.UTC()}, nil
	})
	if err != nil {
		s.diverged(ctx, a, "reactivate", err)
		return nil, err
	}
	return committed, nil
}
