package plans

import (
	"github.com/shopspring/decimal"
)

// Interval is the billing frequency of a plan.
type Interval string

const (
	IntervalNone    Interval = "none"
	IntervalMonthly Interval = "monthly"
)

// FreePlanID is the plan every account starts on and falls back to after a
// subscription ends.
const FreePlanID = "free"

// Plan describes a subscription tier and the credits it grants per period.
type Plan struct {
	ID       string          `yaml:"id"`
	Name     string          `yaml:"name"`
	PriceID  string          `yaml:"price_id"` // provider price id, empty for free plans
	Price    decimal.Decimal `yaml:"price"`    // monthly price in major units
	Currency string          `yaml:"currency"`
	Credits  int64           `yaml:"credits"` // allotment granted every period
	// CreditFloor is what an expiring balance is cut down to. Zero forfeits
	// everything.
	CreditFloor int64    `yaml:"credit_floor"`
	Interval    Interval `yaml:"interval"`
	Public      bool     `yaml:"public"`
}

func (p Plan) IsFree() bool {
	return p.Price.IsZero() || p.Interval == IntervalNone
}

// Defaults is the built-in catalog.
func Defaults() []Plan {
	return []Plan{
		{ID: FreePlanID, Name: "Free", Price: decimal.Zero, Currency: "usd", Credits: 2, Interval: IntervalNone, Public: true},
		{ID: "basic", Name: "Basic", PriceID: "price_basic_monthly", Price: decimal.RequireFromString("9.99"), Currency: "usd", Credits: 20, Interval: IntervalMonthly, Public: true},
		{ID: "starter", Name: "Starter", PriceID: "price_starter_monthly", Price: decimal.RequireFromString("24.99"), Currency: "usd", Credits: 60, Interval: IntervalMonthly, Public: true},
		{ID: "professional", Name: "Professional", PriceID: "price_professional_monthly", Price: decimal.RequireFromString("49.99"), Currency: "usd", Credits: 150, Interval: IntervalMonthly, Public: true},
	}
}
