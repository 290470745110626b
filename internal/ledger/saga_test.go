package ledger

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSagaRunsStepsInOrder(t *testing.T) {
	var trail []string
	step := func(name string) func(context.Context) error {
		return func(context.Context) error {
			trail = append(trail, name)
			return nil
		}
	}

	s := NewSaga("test").
		Add("a", step("a"), step("undo a")).
		Add("b", step("b"), nil).
		Add("c", step("c"), step("undo c"))

	require.NoError(t, s.Run(context.Background()))
	assert.Equal(t, []string{"a", "b", "c"}, trail)
	assert.Equal(t, 3, s.Len())
}

func TestSagaCompensatesInReverse(t *testing.T) {
	var trail []string
	record := func(name string) func(context.Context) error {
		return func(context.Context) error {
			trail = append(trail, name)
			return nil
		}
	}
	boom := errors.New("boom")

	s := NewSaga("test").
		Add("a", record("a"), record("undo a")).
		Add("b", record("b"), nil).
		Add("c", record("c"), record("undo c")).
		Add("d", func(context.Context) error { return boom }, record("undo d"))

	err := s.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)

	var sagaErr *SagaError
	require.ErrorAs(t, err, &sagaErr)
	assert.Equal(t, "d", sagaErr.Step)
	assert.Equal(t, []string{"a", "b", "c"}, sagaErr.Completed)
	assert.Equal(t, []string{"c", "a"}, sagaErr.Compensated)
	assert.True(t, sagaErr.RolledBack())
	assert.Equal(t, []string{"a", "b", "c", "undo c", "undo a"}, trail)
}

func TestSagaReportsCompensationFailure(t *testing.T) {
	stepErr := errors.New("step failed")
	undoErr := errors.New("undo failed")
	var undone []string

	s := NewSaga("test").
		Add("a", func(context.Context) error { return nil }, func(context.Context) error {
			undone = append(undone, "a")
			return nil
		}).
		Add("b", func(context.Context) error { return nil }, func(context.Context) error { return undoErr }).
		Add("c", func(context.Context) error { return stepErr }, nil)

	err := s.Run(context.Background())
	var sagaErr *SagaError
	require.ErrorAs(t, err, &sagaErr)
	assert.False(t, sagaErr.RolledBack())
	assert.ErrorIs(t, err, stepErr)
	assert.ErrorIs(t, err, undoErr)
	assert.Equal(t, []string{"a"}, sagaErr.Compensated)
	assert.Equal(t, []string{"a"}, undone, "compensation continues past a failing undo")
	assert.Contains(t, err.Error(), "compensating b")
}

func TestSagaCompensatesAfterCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var undoCtxErr error

	s := NewSaga("test").
		Add("a", func(context.Context) error {
			cancel()
			return nil
		}, func(ctx context.Context) error {
			undoCtxErr = ctx.Err()
			return nil
		}).
		Add("b", func(context.Context) error { return nil }, nil)

	err := s.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.NoError(t, undoCtxErr, "compensation runs with a live context")
}
