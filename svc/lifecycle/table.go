package lifecycle

import (
	"context"
	"errors"
	"time"

	"github.com/dmitrymomot/creditkit/pkg/statemachine"
	"github.com/dmitrymomot/creditkit/svc/account"
	"github.com/dmitrymomot/creditkit/svc/pause"
)

const (
	EventSubscribe  = statemachine.StringEvent("subscribe")
	EventChangePlan = statemachine.StringEvent("change_plan")
	EventPause      = statemachine.StringEvent("pause")
	EventResume     = statemachine.StringEvent("resume")
	EventCancel     = statemachine.StringEvent("cancel")
	EventReactivate = statemachine.StringEvent("reactivate")
	EventDiscount   = statemachine.StringEvent("discount")
	// EventRenew starts the next period on the same status.
	EventRenew = statemachine.StringEvent("renew")
	// EventEnd closes a subscription whose paid period is over.
	EventEnd = statemachine.StringEvent("end")
)

// input is the guard payload for every transition.
type input struct {
	account *account.Account
	now     time.Time
	// periodStart is the start of the period a renewal would begin.
	periodStart time.Time
}

func newTable(pauses *pause.Service) *statemachine.Table {
	var (
		free       = account.StatusFree
		active     = account.StatusActive
		paused     = account.StatusPaused
		cancelling = account.StatusCancelling
		cancelled  = account.StatusCancelled
	)
	canPause := func(_ context.Context, _ statemachine.State, _ statemachine.Event, data any) error {
		in := data.(input)
		if e := pauses.CheckEligibility(in.account, in.now); !e.CanPause {
			return account.NotEligible(e.Reason)
		}
		return nil
	}

	return statemachine.MustNew(
		statemachine.WithTransitionFrom([]statemachine.State{free, cancelled}, active, EventSubscribe),
		statemachine.WithTransition(active, active, EventChangePlan, statemachine.WithGuard(hasSubscription)),
		statemachine.WithTransition(active, paused, EventPause, statemachine.WithGuard(hasSubscription, canPause)),
		// Never passes; registered so a second pause is refused with a reason.
		statemachine.WithTransition(paused, paused, EventPause, statemachine.WithGuard(canPause)),
		statemachine.WithTransition(paused, active, EventResume, statemachine.WithGuard(hasSubscription)),
		statemachine.WithTransitionFrom([]statemachine.State{active, paused}, cancelling, EventCancel, statemachine.WithGuard(hasSubscription)),
		statemachine.WithTransition(cancelling, active, EventReactivate, statemachine.WithGuard(hasSubscription)),
		statemachine.WithTransition(active, active, EventDiscount, statemachine.WithGuard(hasSubscription)),
		statemachine.WithTransition(paused, paused, EventDiscount, statemachine.WithGuard(hasSubscription)),
		statemachine.WithTransition(free, free, EventRenew, statemachine.WithGuard(renewalDue)),
		statemachine.WithTransition(active, active, EventRenew, statemachine.WithGuard(hasSubscription, renewalDue)),
		statemachine.WithTransition(cancelled, cancelled, EventRenew, statemachine.WithGuard(renewalDue)),
		statemachine.WithTransitionFrom([]statemachine.State{active, paused, cancelling}, cancelled, EventEnd),
	)
}

func hasSubscription(_ context.Context, _ statemachine.State, _ statemachine.Event, data any) error {
	if !data.(input).account.HasSubscription() {
		return account.ErrNoActiveSubscription
	}
	return nil
}

// renewalDue rejects a renewal while the local period still runs, and one
// already granted for the period.
func renewalDue(_ context.Context, _ statemachine.State, _ statemachine.Event, data any) error {
	in := data.(input)
	if in.periodStart.After(in.now) {
		return ErrNotDue
	}
	if end := in.account.CurrentPeriodEnd; end != nil && end.After(in.now) {
		return ErrNotDue
	}
	if r := in.account.CreditsResetAt; r != nil && !r.Before(in.periodStart) {
		return ErrNotDue
	}
	return nil
}

// transition asks the table where event leads from a's status and maps the
// table's errors onto account errors.
func (s *Service) transition(ctx context.Context, a *account.Account, event statemachine.Event, in input) (account.Status, error) {
	in.account = a
	next, err := s.table.Next(ctx, a.Status, event, in)
	if err != nil {
		var rejected *statemachine.TransitionRejectedError
		switch {
		case statemachine.IsNoTransitionError(err):
			return "", errors.Join(account.ErrInvalidTransition, err)
		case errors.As(err, &rejected) && rejected.Reason != nil:
			return "", rejected.Reason
		}
		return "", err
	}
	return account.Status(next.Name()), nil
}
