package proration

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dmitrymomot/creditkit/svc/plans"
)

var (
	secondsPerDay = decimal.NewFromInt(24 * 60 * 60)
	cents         = int32(2)
)

// Input is a plan switch at Now inside the period [PeriodStart, PeriodEnd).
type Input struct {
	CurrentPlan plans.Plan
	NewPlan     plans.Plan
	PeriodStart time.Time
	PeriodEnd   time.Time
	Now         time.Time
}

// Plan is the summary of one side of the switch.
type Plan struct {
	ID      string          `json:"name"`
	Price   decimal.Decimal `json:"price"`
	Credits int64           `json:"credits"`
}

// Result is the proration breakdown. Money fields are rounded to cents.
type Result struct {
	TotalDays     decimal.Decimal `json:"total_days"`
	DaysRemaining int             `json:"days_remaining"`
	DaysUsed      decimal.Decimal `json:"days_used"`

	CurrentDailyRate decimal.Decimal `json:"current_daily_rate"`
	NewDailyRate     decimal.Decimal `json:"new_daily_rate"`

	UnusedCredit     decimal.Decimal `json:"unused_credit"`
	NewPlanCharge    decimal.Decimal `json:"new_plan_charge"`
	ImmediateCharge  decimal.Decimal `json:"immediate_charge"`
	CreditBalance    decimal.Decimal `json:"credit_balance"`
	NextInvoiceTotal decimal.Decimal `json:"next_invoice_total"`

	NewTotalCredits  int64 `json:"new_total_credits"`
	CreditAdjustment int64 `json:"credit_adjustment"`

	IsUpgrade     bool      `json:"is_upgrade"`
	Currency      string    `json:"currency"`
	Description   string    `json:"description"`
	ProrationDate time.Time `json:"proration_date"`

	CurrentPlan Plan `json:"current_plan"`
	NewPlan     Plan `json:"new_plan"`
}

// Calculate computes the cost and credit delta of switching from
// in.CurrentPlan to in.NewPlan at in.Now. A Now outside the period is
// clamped to its bounds.
func Calculate(in Input) (Result, error) {
	if !in.PeriodEnd.After(in.PeriodStart) {
		return Result{}, ErrInvalidPeriod
	}
	if in.CurrentPlan.ID == in.NewPlan.ID {
		return Result{}, ErrSamePlan
	}

	totalDays := days(in.PeriodEnd.Sub(in.PeriodStart))
	remaining := days(in.PeriodEnd.Sub(in.Now))
	switch {
	case remaining.IsNegative():
		remaining = decimal.Zero
	case remaining.GreaterThan(totalDays):
		remaining = totalDays
	}
	used := totalDays.Sub(remaining)

	currentRate := in.CurrentPlan.Price.Div(totalDays)
	newRate := in.NewPlan.Price.Div(totalDays)
	unused := currentRate.Mul(remaining)
	charge := newRate.Mul(remaining)

	immediate := decimal.Max(decimal.Zero, charge.Sub(unused)).Round(cents)
	balance := decimal.Max(decimal.Zero, unused.Sub(charge)).Round(cents)

	// Rounding before Floor absorbs the division error of credits/days*days.
	newCredits := decimal.NewFromInt(in.NewPlan.Credits).
		Div(totalDays).
		Mul(totalDays).
		Round(8).
		Floor().
		IntPart()

	res := Result{
		TotalDays:        totalDays.Round(4),
		DaysRemaining:    int(remaining.Floor().IntPart()),
		DaysUsed:         used.Round(cents),
		CurrentDailyRate: currentRate.Round(4),
		NewDailyRate:     newRate.Round(4),
		UnusedCredit:     unused.Round(cents),
		NewPlanCharge:    charge.Round(cents),
		ImmediateCharge:  immediate,
		CreditBalance:    balance,
		NextInvoiceTotal: in.NewPlan.Price.Round(cents),
		NewTotalCredits:  newCredits,
		CreditAdjustment: newCredits - in.CurrentPlan.Credits,
		IsUpgrade:        in.NewPlan.Price.GreaterThan(in.CurrentPlan.Price),
		Currency:         in.NewPlan.Currency,
		ProrationDate:    in.Now.UTC(),
		CurrentPlan:      summary(in.CurrentPlan),
		NewPlan:          summary(in.NewPlan),
	}
	if res.IsUpgrade {
		res.Description = fmt.Sprintf("Upgrade charge for %d days remaining in billing cycle", res.DaysRemaining)
	} else {
		res.Description = fmt.Sprintf("Credit of %s%s will be applied to your next invoice", symbol(res.Currency), balance.StringFixed(cents))
	}
	return res, nil
}

func days(d time.Duration) decimal.Decimal {
	return decimal.NewFromInt(int64(d / time.Second)).Div(secondsPerDay)
}

func summary(p plans.Plan) Plan {
	return Plan{ID: p.ID, Price: p.Price, Credits: p.Credits}
}

func symbol(currency string) string {
	switch strings.ToLower(currency) {
	case "", "usd":
		return "$"
	case "eur":
		return "€"
	case "gbp":
		return "£"
	}
	return strings.ToUpper(currency) + " "
}
