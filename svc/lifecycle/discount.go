package lifecycle

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/creditkit/pkg/logger"
	"github.com/dmitrymomot/creditkit/svc/account"
	"github.com/dmitrymomot/creditkit/svc/pause"
	"github.com/dmitrymomot/creditkit/svc/retention"
)

// RetentionOffer is everything a cancellation flow can offer instead of
// cancelling.
type RetentionOffer struct {
	Eligible        bool            `json:"eligible"`
	Reason          string          `json:"reason,omitempty"`
	CanPause        bool            `json:"can_pause"`
	PauseReason     string          `json:"pause_reason,omitempty"`
	CanUseDiscount  bool            `json:"can_use_discount"`
	DiscountReason  string          `json:"discount_reason,omitempty"`
	PauseOptions    []pause.Choice  `json:"pause_options,omitempty"`
	PauseHistory    []account.Event `json:"pause_history"`
	DiscountHistory []account.Event `json:"discount_history"`
	CurrentPlan     string          `json:"current_plan"`
	PauseCount      int             `json:"pause_count"`
	DiscountCount   int             `json:"discount_count"`
	NextEligibleAt  *time.Time      `json:"next_discount_eligible_at,omitempty"`
}

const historyLimit = 5

// RetentionEligibility combines pause and discount eligibility with the
// recent history of both.
func (s *Service) RetentionEligibility(ctx context.Context, id uuid.UUID) (*RetentionOffer, error) {
	a, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	offer := &RetentionOffer{CurrentPlan: a.Plan}
	if !a.HasSubscription() || a.Status == account.StatusCancelling {
		offer.Reason = "No active subscription found"
		return offer, nil
	}
	offer.Eligible = true

	p := s.pauses.CheckEligibility(a, now)
	offer.CanPause, offer.PauseReason, offer.PauseCount = p.CanPause, p.Reason, p.PausesUsedThisYear

	d, err := s.retention.CheckEligibility(ctx, a, now)
	if err != nil {
		return nil, err
	}
	offer.CanUseDiscount, offer.DiscountReason = d.CanUseDiscount, d.Reason
	offer.DiscountCount, offer.NextEligibleAt = d.DiscountUsedCount, d.NextEligibleAt

	periodEnd := now.AddDate(0, 0, 30)
	if sub, err := s.provider.GetSubscription(ctx, a.SubscriptionRef); err == nil {
		periodEnd = sub.CurrentPeriodEnd
	} else {
		s.log.WarnContext(ctx, "failed to load billing period, assuming 30 days",
			logger.AccountID(a.ID),
			logger.Error(err),
		)
	}
	offer.PauseOptions = pause.Options(periodEnd)

	events, err := s.store.ListEvents(ctx, id, 0)
	if err != nil {
		return nil, err
	}
	offer.PauseHistory = filterEvents(events, account.EventPaused)
	offer.DiscountHistory = filterEvents(events, account.EventDiscountUsed)
	return offer, nil
}

// ApplyRetentionDiscount attaches the one-time discount to the next invoice.
func (s *Service) ApplyRetentionDiscount(ctx context.Context, id uuid.UUID) (retention.Result, error) {
	a, err := s.store.Get(ctx, id)
	if err != nil {
		return retention.Result{}, err
	}
	now := s.now().UTC()
	if _, err := s.transition(ctx, a, EventDiscount, input{now: now}); err != nil {
		return retention.Result{}, err
	}

	res, err := s.retention.Apply(ctx, a, now)
	if err != nil {
		return retention.Result{}, err
	}

	_, err = s.apply(ctx, id, now, func(a *account.Account, _ poster) (account.EventData, error) {
		if _, err := s.transition(ctx, a, EventDiscount, input{now: now}); err != nil {
			return nil, err
		}
		res.ApplyTo(a)
		return res.Event(), nil
	})
	if err != nil {
		s.diverged(ctx, a, "retention-discount", err)
		return retention.Result{}, err
	}
	return res, nil
}

func filterEvents(events []account.Event, t account.EventType) []account.Event {
	out := make([]account.Event, 0, historyLimit)
	for _, e := range events {
		if e.Type == t {
			out = append(out, e)
			if len(out) == historyLimit {
				break
			}
		}
	}
	return out
}
