package httpapi

import "errors"

var (
	ErrMissingAccount = errors.New("account id is required")
	ErrInvalidAccount = errors.New("account id is malformed")
	ErrInvalidBody    = errors.New("invalid request body")
	ErrInvalidAmount  = errors.New("amount must be a positive integer")
	ErrResetTarget    = errors.New("either user_id or reset_all is required")
)
