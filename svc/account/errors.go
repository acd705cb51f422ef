package account

import (
	"errors"
	"fmt"
)

var (
	ErrAccountNotFound      = errors.New("account not found")
	ErrAccountExists        = errors.New("account already exists")
	ErrNotEligible          = errors.New("action not allowed for this account")
	ErrNoActiveSubscription = errors.New("no active subscription")
	ErrInvalidTransition    = errors.New("invalid subscription status transition")
	// ErrNegativeBalance is returned by stores when a write would leave
	// credits_remaining below zero.
	ErrNegativeBalance  = errors.New("credit balance cannot be negative")
	ErrUnknownEventType = errors.New("unknown subscription event type")
)

// NotEligibleError carries the user-facing reason an action was refused.
// It matches ErrNotEligible with errors.Is.
type NotEligibleError struct {
	Reason string
}

func (e *NotEligibleError) Error() string {
	return fmt.Sprintf("%s: %s", ErrNotEligible.Error(), e.Reason)
}

func (e *NotEligibleError) Is(target error) bool {
	return target == ErrNotEligible
}

func NotEligible(reason string) error {
	return &NotEligibleError{Reason: reason}
}

// EligibilityReason extracts the reason from a NotEligibleError chain.
func EligibilityReason(err error) (string, bool) {
	var ne *NotEligibleError
	if errors.As(err, &ne) {
		return ne.Reason, true
	}
	return "", false
}
