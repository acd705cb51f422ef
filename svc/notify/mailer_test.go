package notify_test

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/a-h/templ"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/creditkit/pkg/email"
	"github.com/dmitrymomot/creditkit/svc/account"
	"github.com/dmitrymomot/creditkit/svc/notify"
	"github.com/dmitrymomot/creditkit/svc/plans"
)

type mockSender struct {
	mock.Mock
}

func (m *mockSender) Send(ctx context.Context, msg email.Message) error {
	return m.Called(ctx, msg).Error(0)
}

func newMailer(sender email.Sender) *notify.Mailer {
	return notify.NewMailer(sender, plans.MustNew(plans.Defaults()...),
		notify.Config{AppURL: "https://app.example.com/", ProductName: "Acme"},
		notify.WithClock(func() time.Time { return time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC) }),
	)
}

func TestNotifyPaused(t *testing.T) {
	t.Parallel()

	sender := &mockSender{}
	var sent email.Message
	sender.On("Send", mock.Anything, mock.AnythingOfType("email.Message")).
		Run(func(args mock.Arguments) { sent = args.Get(1).(email.Message) }).
		Return(nil).Once()

	a := account.New("p@example.com", time.Now())
	a.Plan = "starter"
	err := newMailer(sender).Notify(context.Background(), a, account.PausedData{
		Duration: "1_month",
		ResumeAt: time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	sender.AssertExpectations(t)

	assert.Equal(t, "p@example.com", sent.To)
	assert.Equal(t, "Subscription paused: Starter Plan", sent.Subject)
	assert.Equal(t, "subscription-paused", sent.Tag)
	assert.Contains(t, sent.HTMLBody, "June 30, 2024")
	assert.Contains(t, sent.HTMLBody, "https://app.example.com/settings")
	assert.Contains(t, sent.TextBody, "Your Starter subscription has been paused.")
	assert.Contains(t, sent.TextBody, "2024 Acme")
	assert.NoError(t, sent.Validate())
}

func TestNotifyDiscount(t *testing.T) {
	t.Parallel()

	sender := &mockSender{}
	var sent email.Message
	sender.On("Send", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { sent = args.Get(1).(email.Message) }).
		Return(nil)

	a := account.New("d@example.com", time.Now())
	a.Plan = "basic"
	err := newMailer(sender).Notify(context.Background(), a, account.DiscountUsedData{
		PercentOff:     decimal.NewFromInt(50),
		OriginalAmount: decimal.RequireFromString("9.99"),
		FinalAmount:    decimal.RequireFromString("4.99"),
	})
	require.NoError(t, err)
	assert.Contains(t, sent.TextBody, "$4.99 instead of $9.99")
	assert.Contains(t, sent.TextBody, "50% off your next invoice")
}

func TestNotifySkipsEventsWithoutTemplate(t *testing.T) {
	t.Parallel()
	sender := &mockSender{}
	a := account.New("x@example.com", time.Now())

	err := newMailer(sender).Notify(context.Background(), a, account.CreditsExpiredData{Forfeited: 3})
	require.NoError(t, err)
	sender.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
}

func TestNotifyReturnsSenderError(t *testing.T) {
	t.Parallel()
	sender := &mockSender{}
	sender.On("Send", mock.Anything, mock.Anything).Return(email.ErrFailedToSendEmail)

	a := account.New("x@example.com", time.Now())
	err := newMailer(sender).Notify(context.Background(), a, account.ResumedData{})
	assert.True(t, errors.Is(err, email.ErrFailedToSendEmail))
}

func TestNotifyEscapesHTML(t *testing.T) {
	t.Parallel()

	sender := &mockSender{}
	var sent email.Message
	sender.On("Send", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { sent = args.Get(1).(email.Message) }).
		Return(nil)

	a := account.New("e@example.com", time.Now())
	a.Plan = "<b>legacy</b>"
	err := newMailer(sender).Notify(context.Background(), a, account.ResumedData{})
	require.NoError(t, err)
	assert.Contains(t, sent.HTMLBody, "&lt;b&gt;legacy&lt;/b&gt;")
	assert.NotContains(t, sent.HTMLBody, "<b>legacy</b>")
	assert.Contains(t, sent.TextBody, "Your <b>legacy</b> subscription has been resumed.")
}

func TestRender(t *testing.T) {
	t.Parallel()

	out, err := notify.Render(context.Background(), templ.Raw("<p>ok</p>"))
	require.NoError(t, err)
	assert.Equal(t, "<p>ok</p>", out)

	failing := templ.ComponentFunc(func(context.Context, io.Writer) error {
		return errors.New("boom")
	})
	_, err = notify.Render(context.Background(), failing)
	assert.Error(t, err)
}
