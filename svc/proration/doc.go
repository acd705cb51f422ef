// Package proration computes what a mid-cycle plan switch costs.
//
// Calculate is a pure function: it never talks to the billing provider or
// the ledger. The lifecycle uses the same Result for the preview shown to the
// user and for the change it commits, so both always agree.
//
//	res, err := proration.Calculate(proration.Input{
//		CurrentPlan: basic,
//		NewPlan:     starter,
//		PeriodStart: sub.CurrentPeriodStart,
//		PeriodEnd:   sub.CurrentPeriodEnd,
//		Now:         time.Now(),
//	})
//
// Money is computed with shopspring/decimal and rounded to cents only at the
// end, so 9.99 -> 24.99 halfway through a 30 day cycle charges exactly 7.50.
package proration
