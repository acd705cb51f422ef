package notify

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/dmitrymomot/creditkit/pkg/email"
	"github.com/dmitrymomot/creditkit/pkg/logger"
	"github.com/dmitrymomot/creditkit/svc/account"
	"github.com/dmitrymomot/creditkit/svc/plans"
)

const dateLayout = "January 2, 2006"

type line struct {
	Label string
	Value string
}

type view struct {
	Title       string
	Action      string
	PlanName    string
	Lines       []line
	ManageURL   string
	ProductName string
	Year        int
}

// Mailer turns lifecycle events into e-mails.
type Mailer struct {
	sender  email.Sender
	catalog *plans.Catalog
	cfg     Config
	log     *slog.Logger
	now     func() time.Time
}

type Option func(*Mailer)

func WithLogger(log *slog.Logger) Option {
	return func(m *Mailer) { m.log = log }
}

func WithClock(now func() time.Time) Option {
	return func(m *Mailer) { m.now = now }
}

// NewMailer panics if sender is nil. catalog may be nil, in which case plan
// ids are shown instead of plan names.
func NewMailer(sender email.Sender, catalog *plans.Catalog, cfg Config, opts ...Option) *Mailer {
	if sender == nil {
		panic("notify: email sender is required")
	}
	m := &Mailer{sender: sender, catalog: catalog, cfg: cfg, log: slog.Default(), now: time.Now}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Notify sends the confirmation for data, if the event type has one.
func (m *Mailer) Notify(ctx context.Context, a *account.Account, data account.EventData) error {
	v, ok := m.view(a, data)
	if !ok {
		return nil
	}

	html, err := Render(ctx, subscriptionHTML(v))
	if err != nil {
		return errors.Join(ErrRenderFailed, err)
	}
	text, err := Render(ctx, subscriptionText(v))
	if err != nil {
		return errors.Join(ErrRenderFailed, err)
	}

	msg := email.Message{
		To:       a.Email,
		Subject:  v.Title + ": " + v.PlanName + " Plan",
		HTMLBody: html,
		TextBody: strings.TrimSpace(text),
		Tag:      "subscription-" + string(data.EventType()),
		Metadata: map[string]string{"account_id": a.ID.String()},
	}
	if err := m.sender.Send(ctx, msg); err != nil {
		return err
	}
	m.log.DebugContext(ctx, "subscription email sent",
		logger.AccountID(a.ID),
		logger.EventType(string(data.EventType())),
	)
	return nil
}

func (m *Mailer) view(a *account.Account, data account.EventData) (view, bool) {
	v := view{
		PlanName:    m.planName(a.Plan),
		ManageURL:   strings.TrimRight(m.cfg.AppURL, "/") + "/settings",
		ProductName: m.cfg.ProductName,
		Year:        m.now().Year(),
	}
	switch d := data.(type) {
	case account.SubscribedData:
		v.Action = "created"
		v.PlanName = m.planName(d.Plan)
		v.Lines = []line{{"Next billing date", date(d.PeriodEnd)}}
	case account.PlanChangedData:
		v.Action = "updated"
		v.PlanName = m.planName(d.ToPlan)
		if d.IsUpgrade {
			v.Lines = []line{{"Charged today", "$" + d.ImmediateCharge.StringFixed(2)}}
		} else if d.CreditBalance.IsPositive() {
			v.Lines = []line{{"Credit on your next invoice", "$" + d.CreditBalance.StringFixed(2)}}
		}
	case account.PausedData:
		v.Action = "paused"
		v.Lines = []line{{"Your subscription is paused until", date(d.ResumeAt)}}
	case account.ResumedData:
		v.Action = "resumed"
	case account.CancelledData:
		v.Action = "cancelled"
		v.Lines = []line{{"Your access continues until", date(d.PeriodEnd)}}
	case account.ReactivatedData:
		v.Action = "reactivated"
		v.Lines = []line{{"Next billing date", date(d.PeriodEnd)}}
	case account.DiscountUsedData:
		v.Action = "discounted"
		v.Lines = []line{
			{"Discount", d.PercentOff.String() + "% off your next invoice"},
			{"Next invoice", "$" + d.FinalAmount.StringFixed(2) + " instead of $" + d.OriginalAmount.StringFixed(2)},
		}
	default:
		return view{}, false
	}
	v.Title = "Subscription " + v.Action
	return v, true
}

func (m *Mailer) planName(id string) string {
	if m.catalog != nil {
		if p, err := m.catalog.Get(id); err == nil && p.Name != "" {
			return p.Name
		}
	}
	if id == "" {
		return "Free"
	}
	return strings.ToUpper(id[:1]) + id[1:]
}

func date(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.UTC().Format(dateLayout)
}
