package statemachine

import (
	"context"
	"errors"
	"fmt"
	"sort"
)

// Table is an immutable transition table. It holds no current state: callers
// keep state in their own records and ask the table where an event leads.
// A Table is safe for concurrent use.
type Table struct {
	transitions map[string]map[string][]Transition
}

// Option adds transitions while building a Table.
type Option func(*Table) error

// TransitionOption attaches guards and actions to a single transition.
type TransitionOption func(*Transition)

// New builds a table from the given options.
func New(opts ...Option) (*Table, error) {
	t := &Table{transitions: make(map[string]map[string][]Transition)}
	for _, opt := range opts {
		if err := opt(t); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// MustNew is like New but panics on a malformed definition.
func MustNew(opts ...Option) *Table {
	t, err := New(opts...)
	if err != nil {
		panic(fmt.Sprintf("failed to build state machine: %v", err))
	}
	return t
}

// WithTransition registers from --event--> to.
func WithTransition(from, to State, event Event, opts ...TransitionOption) Option {
	return func(t *Table) error {
		tr := Transition{From: from, To: to, Event: event}
		for _, opt := range opts {
			opt(&tr)
		}
		return t.add(tr)
	}
}

// WithTransitionFrom registers the same event and target for several source states.
func WithTransitionFrom(froms []State, to State, event Event, opts ...TransitionOption) Option {
	return func(t *Table) error {
		for _, from := range froms {
			if err := WithTransition(from, to, event, opts...)(t); err != nil {
				return err
			}
		}
		return nil
	}
}

func WithGuard(guards ...Guard) TransitionOption {
	return func(tr *Transition) {
		for _, g := range guards {
			if g != nil {
				tr.Guards = append(tr.Guards, g)
			}
		}
	}
}

func WithAction(actions ...Action) TransitionOption {
	return func(tr *Transition) {
		for _, a := range actions {
			if a != nil {
				tr.Actions = append(tr.Actions, a)
			}
		}
	}
}

func (t *Table) add(tr Transition) error {
	if tr.From == nil || tr.To == nil || tr.Event == nil {
		return ErrInvalidTransition
	}
	from, ev := tr.From.Name(), tr.Event.Name()
	if _, ok := t.transitions[from]; !ok {
		t.transitions[from] = make(map[string][]Transition)
	}
	t.transitions[from][ev] = append(t.transitions[from][ev], tr)
	return nil
}

// Next returns the state reached from `from` by `event`. Candidate
// transitions are tried in registration order; the first whose guards all
// pass wins and its actions run before Next returns.
func (t *Table) Next(ctx context.Context, from State, event Event, data any) (State, error) {
	if from == nil || event == nil {
		return nil, ErrInvalidEvent
	}

	candidates := t.transitions[from.Name()][event.Name()]
	if len(candidates) == 0 {
		return nil, &NoTransitionError{StateName: from.Name(), EventName: event.Name()}
	}

	var rejections []error
	for _, tr := range candidates {
		if err := runGuards(ctx, tr, from, event, data); err != nil {
			rejections = append(rejections, err)
			continue
		}
		for _, action := range tr.Actions {
			if err := action(ctx, from, tr.To, event, data); err != nil {
				return nil, fmt.Errorf("action failed: %w", err)
			}
		}
		return tr.To, nil
	}

	return nil, &TransitionRejectedError{
		StateName: from.Name(),
		EventName: event.Name(),
		Reason:    errors.Join(rejections...),
	}
}

// Can reports whether event is accepted from `from`, guards included.
// Actions are not run.
func (t *Table) Can(ctx context.Context, from State, event Event, data any) bool {
	if from == nil || event == nil {
		return false
	}
	for _, tr := range t.transitions[from.Name()][event.Name()] {
		if runGuards(ctx, tr, from, event, data) == nil {
			return true
		}
	}
	return false
}

// Events lists the event names registered for a state, sorted.
func (t *Table) Events(from State) []string {
	if from == nil {
		return nil
	}
	names := make([]string, 0, len(t.transitions[from.Name()]))
	for name := range t.transitions[from.Name()] {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func runGuards(ctx context.Context, tr Transition, from State, event Event, data any) error {
	for _, g := range tr.Guards {
		if err := g(ctx, from, event, data); err != nil {
			return err
		}
	}
	return nil
}
