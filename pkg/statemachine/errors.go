package statemachine

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidTransition = errors.New("invalid transition: from, to, or event cannot be nil")
	ErrInvalidEvent      = errors.New("invalid event: state and event cannot be nil")
)

// NoTransitionError means the table has no edge for the state/event pair.
type NoTransitionError struct {
	StateName string
	EventName string
}

func (e *NoTransitionError) Error() string {
	return fmt.Sprintf("no transition available from state '%s' for event '%s'", e.StateName, e.EventName)
}

// TransitionRejectedError means every candidate edge was vetoed by a guard.
type TransitionRejectedError struct {
	StateName string
	EventName string
	Reason    error
}

func (e *TransitionRejectedError) Error() string {
	if e.Reason == nil {
		return fmt.Sprintf("transition from state '%s' for event '%s' was rejected by guards", e.StateName, e.EventName)
	}
	return fmt.Sprintf("transition from state '%s' for event '%s' was rejected: %v", e.StateName, e.EventName, e.Reason)
}

func (e *TransitionRejectedError) Unwrap() error {
	return e.Reason
}

func IsNoTransitionError(err error) bool {
	var e *NoTransitionError
	return errors.As(err, &e)
}

func IsTransitionRejectedError(err error) bool {
	var e *TransitionRejectedError
	return errors.As(err, &e)
}
