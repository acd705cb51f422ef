package proration

import "errors"

var (
	ErrInvalidPeriod = errors.New("billing period end must be after its start")
	ErrSamePlan      = errors.New("already on this plan")
)
