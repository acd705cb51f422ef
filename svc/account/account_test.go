package account_test

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/creditkit/svc/account"
)

func TestPausesUsedIn(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC)

	a := account.New("a@example.com", now)
	assert.Equal(t, 0, a.PausesUsedIn(now))

	a.PauseCount = 2
	a.LastPauseDate = account.TimePtr(now.AddDate(0, -2, 0))
	assert.Equal(t, 2, a.PausesUsedIn(now))

	// counter belongs to last year
	assert.Equal(t, 0, a.PausesUsedIn(now.AddDate(1, 0, 0)))
}

func TestHasSubscription(t *testing.T) {
	t.Parallel()

	a := account.New("a@example.com", time.Now())
	assert.False(t, a.HasSubscription())

	a.SubscriptionRef = "sub_1"
	for status, want := range map[account.Status]bool{
		account.StatusFree:       false,
		account.StatusActive:     true,
		account.StatusPaused:     true,
		account.StatusCancelling: true,
		account.StatusCancelled:  false,
	} {
		a.Status = status
		assert.Equal(t, want, a.HasSubscription(), status)
	}
}

func TestClone(t *testing.T) {
	t.Parallel()

	a := account.New("a@example.com", time.Now())
	a.PausedUntil = account.TimePtr(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))

	c := a.Clone()
	*c.PausedUntil = c.PausedUntil.AddDate(1, 0, 0)
	c.CreditsRemaining = 10

	assert.Equal(t, 2024, a.PausedUntil.Year())
	assert.Equal(t, int64(0), a.CreditsRemaining)
}

func TestNotEligibleError(t *testing.T) {
	t.Parallel()

	err := fmt.Errorf("pause: %w", account.NotEligible("Subscription is already paused"))
	assert.ErrorIs(t, err, account.ErrNotEligible)

	reason, ok := account.EligibilityReason(err)
	require.True(t, ok)
	assert.Equal(t, "Subscription is already paused", reason)

	_, ok = account.EligibilityReason(errors.New("other"))
	assert.False(t, ok)
}

func TestDecodeEventData(t *testing.T) {
	t.Parallel()

	id := uuid.New()
	at := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	ev := account.NewEvent(id, account.DiscountUsedData{
		CouponID:       "coupon_1",
		PercentOff:     decimal.NewFromInt(50),
		OriginalAmount: decimal.RequireFromString("9.99"),
		DiscountAmount: decimal.RequireFromString("5.00"),
		FinalAmount:    decimal.RequireFromString("4.99"),
		Currency:       "usd",
	}, at)
	assert.Equal(t, account.EventDiscountUsed, ev.Type)

	raw := []byte(`{"coupon_id":"coupon_1","percent_off":"50","original_amount":"9.99","discount_amount":"5","final_amount":"4.99","currency":"usd"}`)
	data, err := account.DecodeEventData(account.EventDiscountUsed, raw)
	require.NoError(t, err)
	got, ok := data.(account.DiscountUsedData)
	require.True(t, ok)
	assert.Equal(t, "4.99", got.FinalAmount.StringFixed(2))

	_, err = account.DecodeEventData("mystery", raw)
	assert.ErrorIs(t, err, account.ErrUnknownEventType)
}
