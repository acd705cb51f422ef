package statemachine_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/creditkit/pkg/statemachine"
)

const (
	active    = statemachine.StringState("active")
	paused    = statemachine.StringState("paused")
	cancelled = statemachine.StringState("cancelled")

	pause  = statemachine.StringEvent("pause")
	resume = statemachine.StringEvent("resume")
	cancel = statemachine.StringEvent("cancel")
)

func TestTableNext(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	table := statemachine.MustNew(
		statemachine.WithTransition(active, paused, pause),
		statemachine.WithTransition(paused, active, resume),
		statemachine.WithTransitionFrom([]statemachine.State{active, paused}, cancelled, cancel),
	)

	t.Run("follows edges", func(t *testing.T) {
		t.Parallel()
		next, err := table.Next(ctx, active, pause, nil)
		require.NoError(t, err)
		assert.Equal(t, paused, next)

		next, err = table.Next(ctx, paused, cancel, nil)
		require.NoError(t, err)
		assert.Equal(t, cancelled, next)
	})

	t.Run("missing edge", func(t *testing.T) {
		t.Parallel()
		_, err := table.Next(ctx, cancelled, resume, nil)
		require.Error(t, err)
		assert.True(t, statemachine.IsNoTransitionError(err))
		assert.False(t, statemachine.IsTransitionRejectedError(err))
	})

	t.Run("nil input", func(t *testing.T) {
		t.Parallel()
		_, err := table.Next(ctx, nil, pause, nil)
		assert.ErrorIs(t, err, statemachine.ErrInvalidEvent)
	})

	t.Run("events per state", func(t *testing.T) {
		t.Parallel()
		assert.Equal(t, []string{"cancel", "pause"}, table.Events(active))
		assert.Empty(t, table.Events(cancelled))
	})

	t.Run("concurrent reads", func(t *testing.T) {
		t.Parallel()
		var wg sync.WaitGroup
		for range 16 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				next, err := table.Next(ctx, active, pause, nil)
				assert.NoError(t, err)
				assert.Equal(t, paused, next)
			}()
		}
		wg.Wait()
	})
}

func TestTableGuards(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	errLimit := errors.New("pause limit reached")

	limit := func(_ context.Context, _ statemachine.State, _ statemachine.Event, data any) error {
		if n, _ := data.(int); n >= 2 {
			return errLimit
		}
		return nil
	}

	table := statemachine.MustNew(
		statemachine.WithTransition(active, paused, pause, statemachine.WithGuard(limit)),
	)

	next, err := table.Next(ctx, active, pause, 1)
	require.NoError(t, err)
	assert.Equal(t, paused, next)

	_, err = table.Next(ctx, active, pause, 2)
	require.Error(t, err)
	assert.True(t, statemachine.IsTransitionRejectedError(err))
	assert.ErrorIs(t, err, errLimit)

	assert.True(t, table.Can(ctx, active, pause, 0))
	assert.False(t, table.Can(ctx, active, pause, 5))
	assert.False(t, table.Can(ctx, paused, pause, 0))
}

func TestTableActions(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	var calls []string
	record := func(_ context.Context, from, to statemachine.State, ev statemachine.Event, _ any) error {
		calls = append(calls, from.Name()+">"+to.Name()+":"+ev.Name())
		return nil
	}
	boom := errors.New("boom")
	fail := func(context.Context, statemachine.State, statemachine.State, statemachine.Event, any) error {
		return boom
	}

	table := statemachine.MustNew(
		statemachine.WithTransition(active, paused, pause, statemachine.WithAction(record)),
		statemachine.WithTransition(paused, active, resume, statemachine.WithAction(fail)),
	)

	_, err := table.Next(ctx, active, pause, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"active>paused:pause"}, calls)

	_, err = table.Next(ctx, paused, resume, nil)
	assert.ErrorIs(t, err, boom)

	// Can never runs actions
	assert.True(t, table.Can(ctx, active, pause, nil))
	assert.Len(t, calls, 1)
}

func TestTableFallsThroughRejectedCandidates(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	deny := func(context.Context, statemachine.State, statemachine.Event, any) error {
		return errors.New("denied")
	}
	table := statemachine.MustNew(
		statemachine.WithTransition(active, cancelled, cancel, statemachine.WithGuard(deny)),
		statemachine.WithTransition(active, paused, cancel),
	)

	next, err := table.Next(ctx, active, cancel, nil)
	require.NoError(t, err)
	assert.Equal(t, paused, next)
}

func TestNewRejectsNilParts(t *testing.T) {
	t.Parallel()

	_, err := statemachine.New(statemachine.WithTransition(nil, active, pause))
	assert.ErrorIs(t, err, statemachine.ErrInvalidTransition)

	assert.Panics(t, func() {
		statemachine.MustNew(statemachine.WithTransition(active, nil, pause))
	})
}
