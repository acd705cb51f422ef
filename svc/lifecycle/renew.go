package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/creditkit/pkg/billing"
	"github.com/dmitrymomot/creditkit/pkg/logger"
	"github.com/dmitrymomot/creditkit/svc/account"
	"github.com/dmitrymomot/creditkit/svc/ledger"
)

// Outcome says what RenewPeriod did.
type Outcome string

const (
	OutcomeRenewed Outcome = "renewed"
	OutcomeEnded   Outcome = "ended"
)

type Renewal struct {
	Outcome Outcome
	Account *account.Account
}

// RenewPeriod handles the end of a billing period:
//   - cancelling accounts whose period is over, and subscriptions the
//     provider no longer bills, end and fall back to the free plan;
//   - active subscriptions whose provider period rolled over get a fresh
//     allotment;
//   - free and cancelled accounts start a new local month with the free
//     allotment.
//
// Unused credits are forfeited on renewal. A period is renewed at most once:
// the local period must be over and credits_reset_at must predate the new
// period's start. ErrNotDue is returned when nothing is due.
func (s *Service) RenewPeriod(ctx context.Context, id uuid.UUID, now time.Time) (*Renewal, error) {
	now = now.UTC()
	a, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	switch a.Status {
	case account.StatusPaused:
		return nil, ErrNotDue

	case account.StatusCancelling:
		if a.CurrentPeriodEnd == nil || a.CurrentPeriodEnd.After(now) {
			return nil, ErrNotDue
		}
		return s.end(ctx, id, now)

	case account.StatusActive:
		sub, err := s.provider.GetSubscription(ctx, a.SubscriptionRef)
		switch {
		case billing.IsStaleReference(err):
			s.log.WarnContext(ctx, "subscription vanished at the provider, ending it",
				logger.AccountID(id),
				logger.SubscriptionRef(a.SubscriptionRef),
			)
			return s.end(ctx, id, now)
		case err != nil:
			return nil, err
		case providerEnded(sub):
			return s.end(ctx, id, now)
		}
		return s.renew(ctx, id, now, sub.CurrentPeriodStart, sub.CurrentPeriodEnd)

	default:
		if a.CurrentPeriodEnd != nil && a.CurrentPeriodEnd.After(now) {
			return nil, ErrNotDue
		}
		start := a.CreatedAt
		if a.CurrentPeriodEnd != nil {
			start = *a.CurrentPeriodEnd
		}
		for !start.AddDate(0, 1, 0).After(now) {
			start = start.AddDate(0, 1, 0)
		}
		return s.renew(ctx, id, now, start, start.AddDate(0, 1, 0))
	}
}

func providerEnded(sub *billing.Subscription) bool {
	switch sub.Status {
	case billing.StatusCanceled, billing.StatusUnpaid, billing.StatusIncompleteExpired:
		return true
	}
	return false
}

func (s *Service) renew(ctx context.Context, id uuid.UUID, now, start, end time.Time) (*Renewal, error) {
	committed, err := s.apply(ctx, id, now, func(a *account.Account, post poster) (account.EventData, error) {
		if _, err := s.transition(ctx, a, EventRenew, input{now: now, periodStart: start}); err != nil {
			return nil, err
		}
		plan := s.planOrFree(a.Plan)
		if err := post(ledger.ResetEntry(a, plan.Credits, fmt.Sprintf("%s plan monthly credit reset", plan.Name))); err != nil {
			return nil, err
		}
		setPeriod(a, start, end)
		a.CreditsResetAt = account.TimePtr(latest(now, start))
		a.CreditExpiresAt = account.TimePtr(end)
		return account.RenewedData{
			Plan:        plan.ID,
			PeriodStart: start.UTC(),
			PeriodEnd:   end.UTC(),
			Credits:     plan.Credits,
		}, nil
	})
	if err != nil {
		return nil, err
	}
	return &Renewal{Outcome: OutcomeRenewed, Account: committed}, nil
}

// end closes the subscription and drops the account to the free plan with a
// local monthly period. An account another caller already ended is not due.
func (s *Service) end(ctx context.Context, id uuid.UUID, now time.Time) (*Renewal, error) {
	free := s.plans.Free()
	start, end := freePeriod(now)
	committed, err := s.apply(ctx, id, now, func(a *account.Account, post poster) (account.EventData, error) {
		if a.Status == account.StatusCancelled {
			return nil, ErrNotDue
		}
		next, err := s.transition(ctx, a, EventEnd, input{now: now})
		if err != nil {
			return nil, err
		}
		from := a.Plan
		if err := post(ledger.ResetEntry(a, free.Credits, "Subscription ended, free plan credits")); err != nil {
			return nil, err
		}
		a.Status = next
		a.Plan = free.ID
		a.SubscriptionRef = ""
		a.PausedUntil = nil
		setPeriod(a, start, end)
		a.CreditsResetAt = account.TimePtr(now)
		a.CreditExpiresAt = account.TimePtr(end)
		return account.EndedData{Plan: from, EndedAt: now}, nil
	})
	if err != nil {
		return nil, err
	}
	return &Renewal{Outcome: OutcomeEnded, Account: committed}, nil
}

// ExpireCredits cuts a balance whose credit_expires_at has passed down to the
// plan's floor and clears the expiry. ErrNotDue is returned before that.
func (s *Service) ExpireCredits(ctx context.Context, id uuid.UUID, now time.Time) (int64, error) {
	now = now.UTC()
	var forfeited int64
	_, err := s.apply(ctx, id, now, func(a *account.Account, post poster) (account.EventData, error) {
		if a.CreditExpiresAt == nil || a.CreditExpiresAt.After(now) {
			return nil, ErrNotDue
		}
		expiredAt := *a.CreditExpiresAt
		a.CreditExpiresAt = nil

		floor := s.planOrFree(a.Plan).CreditFloor
		if a.CreditsRemaining <= floor {
			return nil, nil
		}
		forfeited = a.CreditsRemaining - floor
		if err := post(ledger.Entry{
			Kind:        account.KindReset,
			Amount:      -forfeited,
			Description: "Expired credits forfeited",
			Metadata: map[string]string{
				"previous_balance": strconv.FormatInt(a.CreditsRemaining, 10),
				"expired_at":       expiredAt.Format(time.RFC3339),
			},
		}); err != nil {
			return nil, err
		}
		return account.CreditsExpiredData{Forfeited: forfeited, Floor: floor, ExpiredAt: expiredAt}, nil
	})
	if err != nil {
		return 0, err
	}
	return forfeited, nil
}

// IsNotDue reports whether err only means there was nothing to do.
func IsNotDue(err error) bool {
	return errors.Is(err, ErrNotDue)
}
