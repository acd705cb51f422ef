// Package statemachine provides a declarative, stateless transition table
// with guards and actions.
//
// The table never stores a current state. Records that persist their own
// status (a database row, for example) pass it in and get the next state back:
//
//	table := statemachine.MustNew(
//		statemachine.WithTransition(Active, Paused, Pause, statemachine.WithGuard(notPausedTwice)),
//		statemachine.WithTransition(Paused, Active, Resume),
//	)
//	next, err := table.Next(ctx, statemachine.StringState(row.Status), Pause, row)
//
// A missing edge yields *NoTransitionError; a guard veto yields
// *TransitionRejectedError, which unwraps to the guard's error.
package statemachine
