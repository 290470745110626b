package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Step is one named action of a saga. Compensate, when set, undoes Run
// and is only called if Run succeeded.
type Step struct {
	Name       string
	Run        func(ctx context.Context) error
	Compensate func(ctx context.Context) error
}

// Saga runs an ordered list of steps. When a step fails, the compensations
// of the steps that already completed run in reverse order.
type Saga struct {
	name  string
	steps []Step
}

// NewSaga creates an empty saga. The name is used in errors and logs.
func NewSaga(name string) *Saga {
	return &Saga{name: name}
}

// Add appends a step. compensate may be nil.
func (s *Saga) Add(name string, run, compensate func(ctx context.Context) error) *Saga {
	s.steps = append(s.steps, Step{Name: name, Run: run, Compensate: compensate})
	return s
}

// Len returns the number of steps.
func (s *Saga) Len() int {
	return len(s.steps)
}

// Run executes the steps in order. It returns nil when every step
// succeeds, and a *SagaError otherwise.
//
// Compensations run with a context detached from ctx's cancellation so an
// abandoned request still rolls back what it did.
func (s *Saga) Run(ctx context.Context) error {
	completed := make([]string, 0, len(s.steps))
	for i, step := range s.steps {
		if err := ctx.Err(); err != nil {
			return s.rollback(ctx, i, step.Name, completed, err)
		}
		if err := step.Run(ctx); err != nil {
			return s.rollback(ctx, i, step.Name, completed, err)
		}
		completed = append(completed, step.Name)
	}
	return nil
}

func (s *Saga) rollback(ctx context.Context, failedAt int, stepName string, completed []string, cause error) error {
	sagaErr := &SagaError{
		Saga:      s.name,
		Step:      stepName,
		Err:       cause,
		Completed: completed,
	}

	undoCtx := context.WithoutCancel(ctx)
	var compErrs []error
	for i := failedAt - 1; i >= 0; i-- {
		step := s.steps[i]
		if step.Compensate == nil {
			continue
		}
		if err := step.Compensate(undoCtx); err != nil {
			compErrs = append(compErrs, fmt.Errorf("compensating %s: %w", step.Name, err))
			continue
		}
		sagaErr.Compensated = append(sagaErr.Compensated, step.Name)
	}
	sagaErr.CompensationErr = errors.Join(compErrs...)
	return sagaErr
}

// SagaError reports a failed saga: the step that failed, the steps that had
// completed before it, which of those were compensated, and any failure
// while compensating. A non-nil CompensationErr means the store may be left
// partially updated.
type SagaError struct {
	Saga            string
	Step            string
	Err             error
	Completed       []string
	Compensated     []string
	CompensationErr error
}

func (e *SagaError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: step %s failed: %v", e.Saga, e.Step, e.Err)
	if len(e.Completed) > 0 {
		fmt.Fprintf(&b, " (rolled back %d of %d completed steps)", len(e.Compensated), len(e.Completed))
	}
	if e.CompensationErr != nil {
		fmt.Fprintf(&b, "; %v", e.CompensationErr)
	}
	return b.String()
}

// Unwrap exposes both the step failure and any compensation failure to
// errors.Is and errors.As.
func (e *SagaError) Unwrap() []error {
	if e.CompensationErr == nil {
		return []error{e.Err}
	}
	return []error{e.Err, e.CompensationErr}
}

// RolledBack reports whether every completed step that had a compensation
// was undone.
func (e *SagaError) RolledBack() bool {
	return e.CompensationErr == nil
}
