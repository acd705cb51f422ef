package billing

import (
	"errors"
)

var (
	// ErrProvider marks every failure reported by the payment provider.
	ErrProvider = errors.New("billing provider error")
	// ErrStaleReference means a stored customer or subscription id no longer
	// exists at the provider.
	ErrStaleReference = errors.New("billing reference no longer exists")
	// ErrTransient marks failures that may succeed when retried.
	ErrTransient = errors.New("transient billing provider failure")

	ErrMissingAPIKey         = errors.New("billing provider API key is required")
	ErrSubscriptionNotFound  = errors.New("billing subscription not found")
	ErrSubscriptionNotActive = errors.New("billing subscription is not active")
	ErrMissingPriceID        = errors.New("price ID is required")
)

// IsTransient reports whether err is worth retrying.
func IsTransient(err error) bool {
	return errors.Is(err, ErrTransient)
}

// IsStaleReference reports whether the provider no longer knows the reference.
func IsStaleReference(err error) bool {
	return errors.Is(err, ErrStaleReference)
}
