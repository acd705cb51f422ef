package account

import (
	"time"

	"github.com/google/uuid"
)

// Status is the subscription status stored on the account row.
type Status string

const (
	StatusFree       Status = "free"
	StatusActive     Status = "active"
	StatusPaused     Status = "paused"
	StatusCancelling Status = "cancelling"
	StatusCancelled  Status = "cancelled"
)

func (s Status) Name() string { return string(s) }

// Account is the per-user billing record. It is mutated only through the
// ledger and the subscription lifecycle.
type Account struct {
	ID               uuid.UUID
	Email            string
	CreditsRemaining int64
	Plan             string
	Status           Status

	CustomerRef     string
	SubscriptionRef string

	PauseCount    int
	LastPauseDate *time.Time
	PausedUntil   *time.Time

	DiscountUsedCount int
	LastDiscountDate  *time.Time

	CreditsResetAt     *time.Time
	CreditExpiresAt    *time.Time
	CurrentPeriodStart *time.Time
	CurrentPeriodEnd   *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// HasSubscription reports whether the account is attached to a provider
// subscription that has not ended.
func (a *Account) HasSubscription() bool {
	if a == nil || a.SubscriptionRef == "" {
		return false
	}
	switch a.Status {
	case StatusActive, StatusPaused, StatusCancelling:
		return true
	}
	return false
}

// PausesUsedIn counts pauses taken in the calendar year of now. The stored
// counter belongs to the year of the last pause.
func (a *Account) PausesUsedIn(now time.Time) int {
	if a == nil || a.LastPauseDate == nil {
		return 0
	}
	if a.LastPauseDate.UTC().Year() != now.UTC().Year() {
		return 0
	}
	return a.PauseCount
}

// Clone returns a deep copy.
func (a *Account) Clone() *Account {
	if a == nil {
		return nil
	}
	c := *a
	c.LastPauseDate = cloneTime(a.LastPauseDate)
	c.PausedUntil = cloneTime(a.PausedUntil)
	c.LastDiscountDate = cloneTime(a.LastDiscountDate)
	c.CreditsResetAt = cloneTime(a.CreditsResetAt)
	c.CreditExpiresAt = cloneTime(a.CreditExpiresAt)
	c.CurrentPeriodStart = cloneTime(a.CurrentPeriodStart)
	c.CurrentPeriodEnd = cloneTime(a.CurrentPeriodEnd)
	return &c
}

// New builds a free-plan account with an empty balance.
func New(email string, now time.Time) *Account {
	now = now.UTC()
	return &Account{
		ID:        uuid.New(),
		Email:     email,
		Plan:      "free",
		Status:    StatusFree,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// TimePtr returns a pointer to a UTC copy of t.
func TimePtr(t time.Time) *time.Time {
	t = t.UTC()
	return &t
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
