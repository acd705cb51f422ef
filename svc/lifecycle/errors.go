package lifecycle

import "errors"

var (
	ErrPaidPlanRequired = errors.New("plan is not a paid subscription plan")
	ErrNotDue           = errors.New("nothing is due for this account yet")
	ErrInvalidDeps      = errors.New("lifecycle dependencies are incomplete")
)
