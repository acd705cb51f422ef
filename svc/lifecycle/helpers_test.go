package lifecycle_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/creditkit/pkg/billing"
	"github.com/dmitrymomot/creditkit/svc/account"
	"github.com/dmitrymomot/creditkit/svc/account/memstore"
	"github.com/dmitrymomot/creditkit/svc/ledger"
	"github.com/dmitrymomot/creditkit/svc/lifecycle"
	"github.com/dmitrymomot/creditkit/svc/pause"
	"github.com/dmitrymomot/creditkit/svc/plans"
	"github.com/dmitrymomot/creditkit/svc/retention"
)

// April has 30 days, which keeps proration figures round.
var t0 = time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type recorder struct {
	mu     sync.Mutex
	events []account.EventType
}

func (r *recorder) Notify(_ context.Context, _ *account.Account, data account.EventData) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, data.EventType())
	return nil
}

func (r *recorder) Types() []account.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]account.EventType(nil), r.events...)
}

type env struct {
	clock    *clock
	store    *memstore.Store
	provider *billing.MemoryProvider
	ledger   *ledger.Service
	svc      *lifecycle.Service
	notified *recorder
}

func newEnv(t *testing.T, opts ...lifecycle.Option) *env {
	t.Helper()
	return newSkewedEnv(t, 0, opts...)
}

// newSkewedEnv runs the provider's clock skew ahead of the service clock.
func newSkewedEnv(t *testing.T, skew time.Duration, opts ...lifecycle.Option) *env {
	t.Helper()
	clk := &clock{t: t0}
	store := memstore.New()
	provider := billing.NewMemoryProvider(
		billing.WithClock(func() time.Time { return clk.Now().Add(skew) }),
		billing.WithPrice("price_basic_monthly", 999),
		billing.WithPrice("price_starter_monthly", 2499),
		billing.WithPrice("price_professional_monthly", 4999),
	)
	led := ledger.NewService(store, ledger.WithClock(clk.Now))
	rec := &recorder{}

	opts = append([]lifecycle.Option{lifecycle.WithClock(clk.Now), lifecycle.WithNotifier(rec)}, opts...)
	svc := lifecycle.New(lifecycle.Deps{
		Store:     store,
		Ledger:    led,
		Plans:     plans.MustNew(plans.Defaults()...),
		Provider:  provider,
		Pauses:    pause.NewService(provider, pause.DefaultConfig()),
		Retention: retention.NewService(provider, retention.DefaultConfig()),
	}, opts...)

	return &env{clock: clk, store: store, provider: provider, ledger: led, svc: svc, notified: rec}
}

// subscribed opens an account at t0 and puts it on planID.
func (e *env) subscribed(t *testing.T, planID string) *account.Account {
	t.Helper()
	a, err := e.svc.Open(context.Background(), "user@example.com")
	require.NoError(t, err)
	a, err = e.svc.Subscribe(context.Background(), a.ID, planID)
	require.NoError(t, err)
	return a
}

func (e *env) account(t *testing.T, id uuid.UUID) *account.Account {
	t.Helper()
	a, err := e.store.Get(context.Background(), id)
	require.NoError(t, err)
	return a
}

// requireConsistent checks the ledger against the materialized balance.
func (e *env) requireConsistent(t *testing.T, id uuid.UUID) {
	t.Helper()
	a := e.account(t, id)
	txs, err := e.store.ListTransactions(context.Background(), id, 0)
	require.NoError(t, err)
	var sum int64
	for _, tr := range txs {
		sum += tr.Amount
	}
	require.Equal(t, a.CreditsRemaining, sum)
	require.GreaterOrEqual(t, a.CreditsRemaining, int64(0))
}

func (e *env) eventTypes(t *testing.T, id uuid.UUID) []account.EventType {
	t.Helper()
	events, err := e.store.ListEvents(context.Background(), id, 0)
	require.NoError(t, err)
	out := make([]account.EventType, 0, len(events))
	for _, ev := range events {
		out = append(out, ev.Type)
	}
	return out
}
