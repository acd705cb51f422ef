package ledger_test

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/creditkit/svc/account"
)

func stringsReader(s string) io.Reader {
	return strings.NewReader(s)
}

func TestAnalytics(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc, _, id := setup(t, 0)

	_, err := svc.Grant(ctx, id, 20, account.KindSubscriptionGrant, "basic")
	require.NoError(t, err)
	_, err = svc.Grant(ctx, id, 10, account.KindPurchase, "pack")
	require.NoError(t, err)

	for range 3 {
		_, err = svc.Consume(ctx, id, 1, "Image upscale 4x")
		require.NoError(t, err)
	}
	_, err = svc.ConsumeWithMetadata(ctx, id, 2, "api call", map[string]string{"operation": "vectorize"})
	require.NoError(t, err)
	_, err = svc.Consume(ctx, id, 1, "Background removal")
	require.NoError(t, err)
	_, err = svc.Refund(ctx, id, 1, "failed job")
	require.NoError(t, err)

	got, err := svc.Analytics(ctx, id, testNow)
	require.NoError(t, err)

	assert.Equal(t, int64(6), got.TotalUsed)
	assert.Equal(t, int64(30), got.TotalPurchased)
	assert.Equal(t, int64(25), got.CreditsRemaining)
	assert.Equal(t, "upscale", got.MostUsedOperation)
	assert.Equal(t, map[string]int{"upscale": 3, "vectorize": 1, "background-removal": 1}, got.UsageByOperation)
	// account created three months before testNow
	assert.Equal(t, int64(3), got.AccountAgeMonths)
	assert.Equal(t, "2.00", got.AverageMonthlyUsage.StringFixed(2))

	history, err := svc.History(ctx, id, 2)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, account.KindRefund, history[0].Kind)
}

func TestAnalyticsNewAccount(t *testing.T) {
	t.Parallel()
	svc, store, _ := setup(t, 0)
	ctx := context.Background()

	a := account.New("new@example.com", testNow)
	require.NoError(t, store.Create(ctx, a))

	got, err := svc.Analytics(ctx, a.ID, testNow)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.AccountAgeMonths)
	assert.True(t, got.AverageMonthlyUsage.IsZero())
	assert.Empty(t, got.MostUsedOperation)
}
