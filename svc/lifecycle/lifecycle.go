package lifecycle

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/creditkit/pkg/billing"
	"github.com/dmitrymomot/creditkit/pkg/logger"
	"github.com/dmitrymomot/creditkit/pkg/statemachine"
	"github.com/dmitrymomot/creditkit/svc/account"
	"github.com/dmitrymomot/creditkit/svc/ledger"
	"github.com/dmitrymomot/creditkit/svc/pause"
	"github.com/dmitrymomot/creditkit/svc/plans"
	"github.com/dmitrymomot/creditkit/svc/retention"
)

// Notifier is told about every committed lifecycle event.
type Notifier interface {
	Notify(ctx context.Context, a *account.Account, data account.EventData) error
}

// Deps are the collaborators a Service cannot run without.
type Deps struct {
	Store     account.Store
	Ledger    *ledger.Service
	Plans     *plans.Catalog
	Provider  billing.Provider
	Pauses    *pause.Service
	Retention *retention.Service
}

func (d Deps) validate() error {
	switch {
	case d.Store == nil:
		return fmt.Errorf("%w: store", ErrInvalidDeps)
	case d.Ledger == nil:
		return fmt.Errorf("%w: ledger", ErrInvalidDeps)
	case d.Plans == nil:
		return fmt.Errorf("%w: plan catalog", ErrInvalidDeps)
	case d.Provider == nil:
		return fmt.Errorf("%w: billing provider", ErrInvalidDeps)
	case d.Pauses == nil:
		return fmt.Errorf("%w: pause service", ErrInvalidDeps)
	case d.Retention == nil:
		return fmt.Errorf("%w: retention service", ErrInvalidDeps)
	}
	return nil
}

type Service struct {
	store     account.Store
	ledger    *ledger.Service
	plans     *plans.Catalog
	provider  billing.Provider
	pauses    *pause.Service
	retention *retention.Service
	notifier  Notifier
	table     *statemachine.Table
	now       func() time.Time
	log       *slog.Logger
}

type Option func(*Service)

func WithNotifier(n Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithLogger(log *slog.Logger) Option {
	return func(s *Service) { s.log = log }
}

// New panics when a dependency is missing.
func New(deps Deps, opts ...Option) *Service {
	if err := deps.validate(); err != nil {
		panic(err)
	}
	s := &Service{
		store:     deps.Store,
		ledger:    deps.Ledger,
		plans:     deps.Plans,
		provider:  deps.Provider,
		pauses:    deps.Pauses,
		retention: deps.Retention,
		table:     newTable(deps.Pauses),
		now:       time.Now,
		log:       slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get returns the account.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*account.Account, error) {
	return s.store.Get(ctx, id)
}

// Events lists the account's audit trail, newest first.
func (s *Service) Events(ctx context.Context, id uuid.UUID, limit int) ([]account.Event, error) {
	return s.store.ListEvents(ctx, id, limit)
}

// Plans exposes the catalog the service prices against.
func (s *Service) Plans() *plans.Catalog {
	return s.plans
}

type poster func(ledger.Entry) error

// mutation edits the locked account in place. It may post ledger entries
// and returns the audit payload to record, or nil for none.
type mutation func(a *account.Account, post poster) (account.EventData, error)

// apply runs fn against the locked account and commits the account, its
// ledger entries and the event together. Notifications go out after commit.
func (s *Service) apply(ctx context.Context, id uuid.UUID, now time.Time, fn mutation) (*account.Account, error) {
	var (
		committed *account.Account
		data      account.EventData
		posted    []*account.Transaction
	)
	err := s.store.InTx(ctx, func(ctx context.Context, tx account.Tx) error {
		posted = posted[:0]
		a, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		post := func(e ledger.Entry) error {
			t, err := s.ledger.Post(ctx, tx, a, e)
			if err != nil {
				return err
			}
			posted = append(posted, t)
			return nil
		}
		if data, err = fn(a, post); err != nil {
			return err
		}
		a.UpdatedAt = now
		if err := tx.Update(ctx, a); err != nil {
			return err
		}
		if data != nil {
			if err := tx.AppendEvent(ctx, account.NewEvent(a.ID, data, now)); err != nil {
				return err
			}
		}
		committed = a.Clone()
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, t := range posted {
		s.ledger.Observe(t)
	}
	if data != nil {
		s.log.InfoContext(ctx, "subscription event recorded",
			logger.AccountID(id),
			logger.EventType(string(data.EventType())),
			logger.Status(committed.Status.Name()),
			logger.Plan(committed.Plan),
		)
		s.notify(ctx, committed, data)
	}
	return committed, nil
}

func (s *Service) notify(ctx context.Context, a *account.Account, data account.EventData) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Notify(ctx, a, data); err != nil {
		s.log.ErrorContext(ctx, "failed to send subscription notification",
			logger.AccountID(a.ID),
			logger.EventType(string(data.EventType())),
			logger.Error(err),
		)
	}
}

// diverged logs a provider change that could not be recorded locally.
func (s *Service) diverged(ctx context.Context, a *account.Account, op string, err error) {
	s.log.ErrorContext(ctx, "provider updated but local state was not committed",
		logger.AccountID(a.ID),
		logger.SubscriptionRef(a.SubscriptionRef),
		slog.String("operation", op),
		logger.Error(err),
	)
}

// idempotencyKey is stable for retries of one request: it changes only
// when the account row is committed again.
func idempotencyKey(a *account.Account, op, target string) string {
	return fmt.Sprintf("%s:%s:%s:%d", op, a.ID, target, a.UpdatedAt.UnixNano())
}

// latest keeps a reset stamp from predating a provider period start that
// runs slightly ahead of the local clock.
func latest(a, b time.Time) time.Time {
	if b.After(a) {
		return b
	}
	return a
}

func setPeriod(a *account.Account, start, end time.Time) {
	a.CurrentPeriodStart = account.TimePtr(start)
	a.CurrentPeriodEnd = account.TimePtr(end)
}

func (s *Service) planOrFree(id string) plans.Plan {
	if p, err := s.plans.Get(id); err == nil {
		return p
	}
	return s.plans.Free()
}
