package httpapi_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/creditkit/pkg/billing"
	"github.com/dmitrymomot/creditkit/pkg/ratelimit"
	"github.com/dmitrymomot/creditkit/svc/account/memstore"
	"github.com/dmitrymomot/creditkit/svc/httpapi"
	"github.com/dmitrymomot/creditkit/svc/ledger"
	"github.com/dmitrymomot/creditkit/svc/lifecycle"
	"github.com/dmitrymomot/creditkit/svc/pause"
	"github.com/dmitrymomot/creditkit/svc/plans"
	"github.com/dmitrymomot/creditkit/svc/retention"
	"github.com/dmitrymomot/creditkit/svc/sweeper"
)

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

// tick moves time forward so consecutive calls get distinct idempotency keys.
func (c *clock) tick() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Minute)
}

type stubSweeper struct {
	report sweeper.Report
	calls  int
}

func (s *stubSweeper) Run(_ context.Context, now time.Time) (sweeper.Report, error) {
	s.calls++
	r := s.report
	r.StartedAt = now
	return r, nil
}

type env struct {
	clock    *clock
	provider *billing.MemoryProvider
	reg      *prometheus.Registry
	srv      *httpapi.Server
}

func newEnv(t *testing.T, opts ...httpapi.Option) *env {
	t.Helper()
	clk := &clock{t: t0}
	store := memstore.New()
	provider := billing.NewMemoryProvider(
		billing.WithClock(clk.Now),
		billing.WithPrice("price_basic_monthly", 999),
		billing.WithPrice("price_starter_monthly", 2499),
	)
	reg := prometheus.NewRegistry()
	led := ledger.NewService(store, ledger.WithClock(clk.Now), ledger.WithMetrics(ledger.NewMetrics(reg)))
	lc := lifecycle.New(lifecycle.Deps{
		Store:     store,
		Ledger:    led,
		Plans:     plans.MustNew(plans.Defaults()...),
		Provider:  provider,
		Pauses:    pause.NewService(provider, pause.DefaultConfig()),
		Retention: retention.NewService(provider, retention.DefaultConfig()),
	}, lifecycle.WithClock(clk.Now))

	opts = append([]httpapi.Option{httpapi.WithClock(clk.Now), httpapi.WithGatherer(reg)}, opts...)
	srv := httpapi.New(httpapi.DefaultConfig(), lc, led, opts...)
	return &env{clock: clk, provider: provider, reg: reg, srv: srv}
}

type response struct {
	code int
	body map[string]any
	raw  string
}

func (e *env) do(t *testing.T, method, path string, accountID uuid.UUID, body any) response {
	t.Helper()
	e.clock.tick()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, rd)
	if accountID != uuid.Nil {
		req.Header.Set(httpapi.AccountHeader, accountID.String())
	}
	rec := httptest.NewRecorder()
	e.srv.ServeHTTP(rec, req)

	out := response{code: rec.Code, raw: rec.Body.String()}
	if rec.Header().Get("Content-Type") == "application/json" {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out.body), rec.Body.String())
	}
	return out
}

func (e *env) open(t *testing.T) uuid.UUID {
	t.Helper()
	res := e.do(t, http.MethodPost, "/accounts", uuid.Nil, map[string]string{"email": "user@example.com"})
	require.Equal(t, http.StatusCreated, res.code, res.raw)
	id, err := uuid.Parse(res.body["id"].(string))
	require.NoError(t, err)
	return id
}

func (e *env) subscribed(t *testing.T, planID string) uuid.UUID {
	t.Helper()
	id := e.open(t)
	res := e.do(t, http.MethodPost, "/subscription", id, map[string]string{"plan_id": planID})
	require.Equal(t, http.StatusOK, res.code, res.raw)
	return id
}

func TestAccountResolution(t *testing.T) {
	t.Parallel()
	e := newEnv(t)

	res := e.do(t, http.MethodGet, "/credits/balance", uuid.Nil, nil)
	assert.Equal(t, http.StatusUnauthorized, res.code)
	assert.Equal(t, httpapi.ErrMissingAccount.Error(), res.body["error"])

	req := httptest.NewRequest(http.MethodGet, "/credits/balance", nil)
	req.Header.Set(httpapi.AccountHeader, "not-a-uuid")
	rec := httptest.NewRecorder()
	e.srv.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	res = e.do(t, http.MethodGet, "/credits/balance", uuid.New(), nil)
	assert.Equal(t, http.StatusNotFound, res.code)

	t.Run("custom resolver", func(t *testing.T) {
		t.Parallel()
		fixed := uuid.New()
		e := newEnv(t, httpapi.WithResolver(func(*http.Request) (uuid.UUID, error) { return fixed, nil }))
		res := e.do(t, http.MethodGet, "/credits/balance", uuid.Nil, nil)
		assert.Equal(t, http.StatusNotFound, res.code, "resolved id has no account")
	})
}

func TestCredits(t *testing.T) {
	t.Parallel()
	e := newEnv(t)
	id := e.open(t)

	res := e.do(t, http.MethodGet, "/credits/balance", id, nil)
	require.Equal(t, http.StatusOK, res.code)
	assert.EqualValues(t, 2, res.body["credits_remaining"])

	res = e.do(t, http.MethodPost, "/credits/consume", id, map[string]any{"amount": 2, "operation": "upscale"})
	require.Equal(t, http.StatusOK, res.code, res.raw)
	assert.EqualValues(t, 0, res.body["credits_remaining"])

	res = e.do(t, http.MethodPost, "/credits/consume", id, map[string]any{"amount": 1, "operation": "upscale"})
	assert.Equal(t, http.StatusPaymentRequired, res.code)

	res = e.do(t, http.MethodPost, "/credits/consume", id, map[string]any{"amount": 0})
	assert.Equal(t, http.StatusBadRequest, res.code)

	res = e.do(t, http.MethodPost, "/credits/consume", id, map[string]any{"amount": 1, "unknown": true})
	assert.Equal(t, http.StatusBadRequest, res.code)

	res = e.do(t, http.MethodGet, "/credits/history?limit=1", id, nil)
	require.Equal(t, http.StatusOK, res.code)
	txs := res.body["transactions"].([]any)
	require.Len(t, txs, 1)
	assert.Equal(t, "usage", txs[0].(map[string]any)["type"])

	res = e.do(t, http.MethodGet, "/credits/analytics", id, nil)
	require.Equal(t, http.StatusOK, res.code)
	assert.EqualValues(t, 2, res.body["total_used"])
	assert.Equal(t, "upscale", res.body["most_used_operation"])
}

func TestSubscriptionFlow(t *testing.T) {
	t.Parallel()
	e := newEnv(t)
	id := e.subscribed(t, "basic")

	res := e.do(t, http.MethodGet, "/subscription", id, nil)
	require.Equal(t, http.StatusOK, res.code)
	assert.Equal(t, "basic", res.body["plan"])
	assert.Equal(t, "active", res.body["status"])
	assert.EqualValues(t, 22, res.body["credits_remaining"])

	res = e.do(t, http.MethodPost, "/subscription/preview-change", id, map[string]string{"new_plan_id": "basic"})
	assert.Equal(t, http.StatusBadRequest, res.code, "same plan")

	res = e.do(t, http.MethodPost, "/subscription/preview-change", id, map[string]string{"new_plan_id": "missing"})
	assert.Equal(t, http.StatusNotFound, res.code)

	res = e.do(t, http.MethodPost, "/subscription/preview-change", id, map[string]string{"new_plan_id": "starter"})
	require.Equal(t, http.StatusOK, res.code, res.raw)
	preview := res.body["proration"].(map[string]any)
	assert.Equal(t, true, preview["is_upgrade"])

	res = e.do(t, http.MethodPost, "/subscription/change-plan", id, map[string]string{"new_plan_id": "starter"})
	require.Equal(t, http.StatusOK, res.code, res.raw)
	assert.Equal(t, "starter", res.body["subscription"].(map[string]any)["plan"])

	res = e.do(t, http.MethodPost, "/subscription/pause", id, map[string]string{"duration": "3_weeks"})
	assert.Equal(t, http.StatusBadRequest, res.code)

	res = e.do(t, http.MethodPost, "/subscription/pause", id, map[string]string{"duration": "2_weeks"})
	require.Equal(t, http.StatusOK, res.code, res.raw)
	assert.NotEmpty(t, res.body["resume_at"])

	res = e.do(t, http.MethodPost, "/subscription/pause", id, map[string]string{"duration": "1_month"})
	assert.Equal(t, http.StatusForbidden, res.code)
	assert.Equal(t, "Subscription is already paused", res.body["reason"])

	res = e.do(t, http.MethodPost, "/subscription/resume", id, nil)
	require.Equal(t, http.StatusOK, res.code, res.raw)
	assert.Equal(t, "active", res.body["subscription"].(map[string]any)["status"])

	res = e.do(t, http.MethodPost, "/subscription/reactivate", id, nil)
	assert.Equal(t, http.StatusConflict, res.code, "nothing to reactivate")

	res = e.do(t, http.MethodPost, "/subscription/cancel", id, map[string]string{"reason": "too expensive"})
	require.Equal(t, http.StatusOK, res.code, res.raw)
	assert.Equal(t, true, res.body["subscription"].(map[string]any)["cancel_at_period_end"])

	res = e.do(t, http.MethodPost, "/subscription/reactivate", id, nil)
	require.Equal(t, http.StatusOK, res.code, res.raw)
	assert.Equal(t, "active", res.body["subscription"].(map[string]any)["status"])

	res = e.do(t, http.MethodGet, "/subscription/events?limit=50", id, nil)
	require.Equal(t, http.StatusOK, res.code)
	events := res.body["events"].([]any)
	assert.Equal(t, "reactivated", events[0].(map[string]any)["type"])
}

func TestRetention(t *testing.T) {
	t.Parallel()
	e := newEnv(t)
	id := e.subscribed(t, "starter")

	res := e.do(t, http.MethodGet, "/subscription/retention-eligibility", id, nil)
	require.Equal(t, http.StatusOK, res.code, res.raw)
	assert.Equal(t, true, res.body["can_pause"])
	assert.Equal(t, true, res.body["can_use_discount"])
	assert.Len(t, res.body["pause_options"], 3)

	res = e.do(t, http.MethodPost, "/subscription/apply-retention-discount", id, map[string]any{})
	require.Equal(t, http.StatusOK, res.code, res.raw)
	discount := res.body["discount"].(map[string]any)
	assert.Equal(t, "12.5", discount["discount_amount"])
	assert.Equal(t, "12.49", discount["final_amount"])

	res = e.do(t, http.MethodPost, "/subscription/apply-retention-discount", id, nil)
	assert.Equal(t, http.StatusForbidden, res.code)
	assert.NotEmpty(t, res.body["reason"])

	free := e.open(t)
	res = e.do(t, http.MethodGet, "/subscription/retention-eligibility", free, nil)
	require.Equal(t, http.StatusOK, res.code)
	assert.Equal(t, false, res.body["eligible"])
	assert.Equal(t, "No active subscription found", res.body["reason"])
}

func TestProviderFailure(t *testing.T) {
	t.Parallel()
	e := newEnv(t)
	id := e.open(t)

	e.provider.FailNext(errors.Join(billing.ErrProvider, errors.New("card network down")))
	res := e.do(t, http.MethodPost, "/subscription", id, map[string]string{"plan_id": "basic"})
	assert.Equal(t, http.StatusBadGateway, res.code)
	assert.NotContains(t, res.raw, "card network down")

	res = e.do(t, http.MethodGet, "/subscription", id, nil)
	assert.Equal(t, "free", res.body["plan"], "no local change after a provider failure")
}

func TestResetCredits(t *testing.T) {
	t.Parallel()

	t.Run("single account only when due", func(t *testing.T) {
		t.Parallel()
		e := newEnv(t)
		id := e.open(t)
		e.do(t, http.MethodPost, "/credits/consume", id, map[string]any{"amount": 2})

		res := e.do(t, http.MethodPost, "/credits/reset", uuid.Nil, map[string]any{"user_id": id})
		assert.Equal(t, http.StatusConflict, res.code)

		e.clock.Set(t0.AddDate(0, 1, 1))
		res = e.do(t, http.MethodPost, "/credits/reset", uuid.Nil, map[string]any{"user_id": id})
		require.Equal(t, http.StatusOK, res.code, res.raw)
		assert.EqualValues(t, 2, res.body["credits_remaining"])
		assert.Equal(t, "renewed", res.body["outcome"])
	})

	t.Run("reset_all runs the sweeper", func(t *testing.T) {
		t.Parallel()
		sw := &stubSweeper{report: sweeper.Report{Renewed: 3}}
		e := newEnv(t, httpapi.WithSweeper(sw))

		res := e.do(t, http.MethodPost, "/credits/reset", uuid.Nil, map[string]any{"reset_all": true})
		require.Equal(t, http.StatusOK, res.code, res.raw)
		assert.EqualValues(t, 3, res.body["report"].(map[string]any)["renewed"])
		assert.Equal(t, 1, sw.calls)
	})

	t.Run("reset_all without a sweeper", func(t *testing.T) {
		t.Parallel()
		e := newEnv(t)
		res := e.do(t, http.MethodPost, "/credits/reset", uuid.Nil, map[string]any{"reset_all": true})
		assert.Equal(t, http.StatusServiceUnavailable, res.code)
	})

	t.Run("needs a target", func(t *testing.T) {
		t.Parallel()
		e := newEnv(t)
		res := e.do(t, http.MethodPost, "/credits/reset", uuid.Nil, map[string]any{})
		assert.Equal(t, http.StatusBadRequest, res.code)
	})
}

func TestOperationalEndpoints(t *testing.T) {
	t.Parallel()

	t.Run("healthz reports failing checks", func(t *testing.T) {
		t.Parallel()
		e := newEnv(t,
			httpapi.WithCheck("postgres", func(context.Context) error { return nil }),
			httpapi.WithCheck("redis", func(context.Context) error { return errors.New("connection refused") }),
		)
		res := e.do(t, http.MethodGet, "/healthz", uuid.Nil, nil)
		assert.Equal(t, http.StatusServiceUnavailable, res.code)
		assert.Equal(t, "connection refused", res.body["failed"].(map[string]any)["redis"])
	})

	t.Run("healthz ok", func(t *testing.T) {
		t.Parallel()
		e := newEnv(t, httpapi.WithCheck("postgres", func(context.Context) error { return nil }))
		res := e.do(t, http.MethodGet, "/healthz", uuid.Nil, nil)
		assert.Equal(t, http.StatusOK, res.code)
		assert.Equal(t, "ok", res.body["status"])
	})

	t.Run("metrics exposes ledger counters", func(t *testing.T) {
		t.Parallel()
		e := newEnv(t)
		e.open(t)
		res := e.do(t, http.MethodGet, "/metrics", uuid.Nil, nil)
		assert.Equal(t, http.StatusOK, res.code)
		assert.Contains(t, res.raw, "creditkit_ledger_entries_total")
	})

	t.Run("plans lists public plans", func(t *testing.T) {
		t.Parallel()
		e := newEnv(t)
		res := e.do(t, http.MethodGet, "/plans", uuid.Nil, nil)
		require.Equal(t, http.StatusOK, res.code)
		list := res.body["plans"].([]any)
		require.NotEmpty(t, list)
		assert.Equal(t, "free", list[0].(map[string]any)["id"])
	})

	t.Run("request id is echoed", func(t *testing.T) {
		t.Parallel()
		e := newEnv(t)
		req := httptest.NewRequest(http.MethodGet, "/plans", nil)
		req.Header.Set("X-Request-ID", "abc-123")
		rec := httptest.NewRecorder()
		e.srv.ServeHTTP(rec, req)
		assert.Equal(t, "abc-123", rec.Header().Get("X-Request-ID"))
	})
}

func TestRateLimits(t *testing.T) {
	t.Parallel()

	newLimiter := func(limit int) ratelimit.Limiter {
		l, err := ratelimit.NewFixedWindow(ratelimit.NewMemoryStore(), ratelimit.Config{Limit: limit, Window: time.Hour})
		require.NoError(t, err)
		return l
	}

	t.Run("consume per account", func(t *testing.T) {
		t.Parallel()
		e := newEnv(t, httpapi.WithConsumeLimiter(newLimiter(1)))
		a, b := e.open(t), e.open(t)

		res := e.do(t, http.MethodPost, "/credits/consume", a, map[string]any{"amount": 1})
		require.Equal(t, http.StatusOK, res.code, res.raw)

		res = e.do(t, http.MethodPost, "/credits/consume", a, map[string]any{"amount": 1})
		assert.Equal(t, http.StatusTooManyRequests, res.code)
		assert.Equal(t, "rate limit exceeded, please retry later", res.body["error"])

		res = e.do(t, http.MethodPost, "/credits/consume", b, map[string]any{"amount": 1})
		assert.Equal(t, http.StatusOK, res.code, res.raw)

		res = e.do(t, http.MethodGet, "/credits/balance", a, nil)
		require.Equal(t, http.StatusOK, res.code)
		assert.EqualValues(t, 1, res.body["credits_remaining"])

		res = e.do(t, http.MethodGet, "/credits/history?limit=1", a, nil)
		require.Equal(t, http.StatusOK, res.code)
		assert.Len(t, res.body["transactions"], 1)
	})

	t.Run("signup per client address", func(t *testing.T) {
		t.Parallel()
		e := newEnv(t, httpapi.WithSignupLimiter(newLimiter(1)))

		signup := func(ip string) int {
			req := httptest.NewRequest(http.MethodPost, "/accounts", bytes.NewReader([]byte(`{"email":"user@example.com"}`)))
			req.Header.Set("X-Forwarded-For", ip)
			rec := httptest.NewRecorder()
			e.srv.ServeHTTP(rec, req)
			return rec.Code
		}

		assert.Equal(t, http.StatusCreated, signup("203.0.113.1"))
		assert.Equal(t, http.StatusTooManyRequests, signup("203.0.113.1"))
		assert.Equal(t, http.StatusCreated, signup("203.0.113.2"))
	})
}
