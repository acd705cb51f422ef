package httpapi

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/dmitrymomot/creditkit/svc/account"
	"github.com/dmitrymomot/creditkit/svc/plans"
)

type accountView struct {
	ID                 uuid.UUID  `json:"id"`
	Email              string     `json:"email"`
	Plan               string     `json:"plan"`
	Status             string     `json:"status"`
	CreditsRemaining   int64      `json:"credits_remaining"`
	PauseCount         int        `json:"pause_count"`
	PausedUntil        *time.Time `json:"paused_until,omitempty"`
	DiscountUsedCount  int        `json:"discount_used_count"`
	LastDiscountDate   *time.Time `json:"last_discount_date,omitempty"`
	CurrentPeriodStart *time.Time `json:"current_period_start,omitempty"`
	CurrentPeriodEnd   *time.Time `json:"current_period_end,omitempty"`
	CreditExpiresAt    *time.Time `json:"credit_expires_at,omitempty"`
	CancelAtPeriodEnd  bool       `json:"cancel_at_period_end"`
}

func viewAccount(a *account.Account) accountView {
	return accountView{
		ID:                 a.ID,
		Email:              a.Email,
		Plan:               a.Plan,
		Status:             string(a.Status),
		CreditsRemaining:   a.CreditsRemaining,
		PauseCount:         a.PauseCount,
		PausedUntil:        a.PausedUntil,
		DiscountUsedCount:  a.DiscountUsedCount,
		LastDiscountDate:   a.LastDiscountDate,
		CurrentPeriodStart: a.CurrentPeriodStart,
		CurrentPeriodEnd:   a.CurrentPeriodEnd,
		CreditExpiresAt:    a.CreditExpiresAt,
		CancelAtPeriodEnd:  a.Status == account.StatusCancelling,
	}
}

type planView struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Currency string          `json:"currency"`
	Credits  int64           `json:"credits"`
	Interval string          `json:"interval"`
}

func viewPlans(list []plans.Plan) []planView {
	out := make([]planView, 0, len(list))
	for _, p := range list {
		if !p.Public {
			continue
		}
		out = append(out, planView{
			ID:       p.ID,
			Name:     p.Name,
			Price:    p.Price,
			Currency: p.Currency,
			Credits:  p.Credits,
			Interval: string(p.Interval),
		})
	}
	return out
}

type transactionView struct {
	ID           uuid.UUID         `json:"id"`
	Amount       int64             `json:"amount"`
	Type         string            `json:"type"`
	Description  string            `json:"description"`
	BalanceAfter int64             `json:"balance_after"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
}

func viewTransactions(txs []account.Transaction) []transactionView {
	out := make([]transactionView, 0, len(txs))
	for _, t := range txs {
		out = append(out, transactionView{
			ID:           t.ID,
			Amount:       t.Amount,
			Type:         string(t.Kind),
			Description:  t.Description,
			BalanceAfter: t.BalanceAfter,
			Metadata:     t.Metadata,
			CreatedAt:    t.CreatedAt,
		})
	}
	return out
}
