package lifecycle

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/creditkit/svc/account"
	"github.com/dmitrymomot/creditkit/svc/pause"
)

// Pause suspends billing until the chosen duration after the current period
// ends.
func (s *Service) Pause(ctx context.Context, id uuid.UUID, d pause.Duration) (pause.Result, error) {
	a, err := s.store.Get(ctx, id)
	if err != nil {
		return pause.Result{}, err
	}
	now := s.now().UTC()
	if _, err := s.transition(ctx, a, EventPause, input{now: now}); err != nil {
		return pause.Result{}, err
	}

	res, err := s.pauses.Apply(ctx, a, d, now)
	if err != nil {
		return pause.Result{}, err
	}

	_, err = s.apply(ctx, id, now, func(a *account.Account, _ poster) (account.EventData, error) {
		if _, err := s.transition(ctx, a, EventPause, input{now: now}); err != nil {
			return nil, err
		}
		res.ApplyTo(a)
		return res.Event(), nil
	})
	if err != nil {
		s.diverged(ctx, a, "pause", err)
		return pause.Result{}, err
	}
	return res, nil
}

// Resume lifts a pause on request.
func (s *Service) Resume(ctx context.Context, id uuid.UUID) (*account.Account, error) {
	return s.resume(ctx, id, s.now().UTC(), false)
}

// AutoResume lifts a pause whose resume date has passed. It returns
// ErrNotDue before that.
func (s *Service) AutoResume(ctx context.Context, id uuid.UUID, now time.Time) (*account.Account, error) {
	return s.resume(ctx, id, now.UTC(), true)
}

func (s *Service) resume(ctx context.Context, id uuid.UUID, now time.Time, automatic bool) (*account.Account, error) {
	a, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if automatic && (a.PausedUntil == nil || a.PausedUntil.After(now)) {
		return nil, ErrNotDue
	}
	if _, err := s.transition(ctx, a, EventResume, input{now: now}); err != nil {
		return nil, err
	}

	sub, err := s.pauses.Resume(ctx, a)
	if err != nil {
		return nil, err
	}

	committed, err := s.apply(ctx, id, now, func(a *account.Account, _ poster) (account.EventData, error) {
		next, err := s.transition(ctx, a, EventResume, input{now: now})
		if err != nil {
			return nil, err
		}
		a.Status = next
		a.PausedUntil = nil
		setPeriod(a, sub.CurrentPeriodStart, sub.CurrentPeriodEnd)
		return account.ResumedData{Automatic: automatic, ResumedAt: now}, nil
	})
	if err != nil {
		if !errors.Is(err, account.ErrInvalidTransition) {
			s.diverged(ctx, a, "resume", err)
		}
		return nil, err
	}
	return committed, nil
}
