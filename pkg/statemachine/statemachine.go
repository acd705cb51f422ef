package statemachine

import "context"

// State represents a state in the state machine.
type State interface {
	Name() string
}

// Event represents an event that can trigger a state transition.
type Event interface {
	Name() string
}

// Guard vetoes a transition by returning an error. The error is returned to
// the caller wrapped in *TransitionRejectedError.
type Guard func(ctx context.Context, from State, event Event, data any) error

// Action runs after all guards pass. Returning an error aborts the transition.
type Action func(ctx context.Context, from, to State, event Event, data any) error

// Transition defines a state change triggered by an event.
type Transition struct {
	From    State
	To      State
	Event   Event
	Guards  []Guard
	Actions []Action
}

// StringState provides a simple string-based state implementation.
type StringState string

func (s StringState) Name() string {
	return string(s)
}

// StringEvent provides a simple string-based event implementation.
type StringEvent string

func (e StringEvent) Name() string {
	return string(e)
}
