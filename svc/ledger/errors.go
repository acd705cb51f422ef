package ledger

import "errors"

var (
	ErrInsufficientCredits = errors.New("insufficient credits")
	ErrInvalidAmount       = errors.New("credit amount must be positive")
	ErrInvalidKind         = errors.New("invalid credit transaction kind")
)
