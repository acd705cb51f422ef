package billing_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/creditkit/pkg/billing"
)

func TestMemoryProvider(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	newProvider := func() *billing.MemoryProvider {
		return billing.NewMemoryProvider(
			billing.WithClock(func() time.Time { return now }),
			billing.WithPrice("price_basic", 999),
			billing.WithPrice("price_starter", 2499),
		)
	}

	t.Run("subscription lifecycle", func(t *testing.T) {
		t.Parallel()
		p := newProvider()

		cus, err := p.CreateCustomer(ctx, billing.CustomerParams{AccountID: "acc-1", Email: "a@example.com"})
		require.NoError(t, err)

		sub, err := p.CreateSubscription(ctx, billing.CreateSubscriptionParams{CustomerRef: cus.ID, PriceID: "price_basic"})
		require.NoError(t, err)
		assert.Equal(t, billing.StatusActive, sub.Status)
		assert.Equal(t, now, sub.CurrentPeriodStart)
		assert.Equal(t, now.AddDate(0, 1, 0), sub.CurrentPeriodEnd)
		assert.Equal(t, "9.99", sub.Price().StringFixed(2))

		sub, err = p.ChangePrice(ctx, billing.ChangePriceParams{SubscriptionRef: sub.ID, PriceID: "price_starter"})
		require.NoError(t, err)
		assert.Equal(t, int64(2499), sub.UnitAmount)

		sub, err = p.CancelAtPeriodEnd(ctx, sub.ID, "")
		require.NoError(t, err)
		assert.True(t, sub.CancelAtPeriodEnd)

		require.NoError(t, p.AdvancePeriod(sub.ID))
		got, err := p.GetSubscription(ctx, sub.ID)
		require.NoError(t, err)
		assert.Equal(t, billing.StatusCanceled, got.Status)
	})

	t.Run("idempotent mutations", func(t *testing.T) {
		t.Parallel()
		p := newProvider()
		cus, _ := p.CreateCustomer(ctx, billing.CustomerParams{})
		sub, _ := p.CreateSubscription(ctx, billing.CreateSubscriptionParams{CustomerRef: cus.ID, PriceID: "price_basic"})

		first, err := p.CreateCoupon(ctx, billing.CouponParams{PercentOff: decimalFromInt(50), IdempotencyKey: "k"})
		require.NoError(t, err)
		second, err := p.CreateCoupon(ctx, billing.CouponParams{PercentOff: decimalFromInt(50), IdempotencyKey: "k"})
		require.NoError(t, err)
		assert.Equal(t, first.ID, second.ID)

		at := now.AddDate(0, 1, 14)
		a, err := p.PauseCollection(ctx, sub.ID, at, "pause")
		require.NoError(t, err)
		b, err := p.PauseCollection(ctx, sub.ID, at.AddDate(0, 0, 30), "pause")
		require.NoError(t, err)
		assert.Equal(t, *a.PauseResumesAt, *b.PauseResumesAt)
	})

	t.Run("stale references", func(t *testing.T) {
		t.Parallel()
		p := newProvider()
		cus, _ := p.CreateCustomer(ctx, billing.CustomerParams{})
		p.ForgetCustomer(cus.ID)

		_, err := p.CreateSubscription(ctx, billing.CreateSubscriptionParams{CustomerRef: cus.ID, PriceID: "price_basic"})
		assert.True(t, billing.IsStaleReference(err))

		_, err = p.GetSubscription(ctx, "sub_missing")
		assert.ErrorIs(t, err, billing.ErrProvider)
		assert.True(t, billing.IsStaleReference(err))
	})

	t.Run("injected failures", func(t *testing.T) {
		t.Parallel()
		p := newProvider()
		boom := errors.New("boom")
		p.FailNext(boom)

		_, err := p.CreateCustomer(ctx, billing.CustomerParams{})
		assert.ErrorIs(t, err, boom)
		_, err = p.CreateCustomer(ctx, billing.CustomerParams{})
		assert.NoError(t, err)
	})
}
