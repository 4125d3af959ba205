package saga

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Runner executes steps in order and, when one fails, compensates the completed
// steps in reverse order
type Runner struct {
	logger *zap.Logger
}

// NewRunner creates a new saga runner
func NewRunner(logger *zap.Logger) *Runner {
	return &Runner{logger: logger}
}

// Run executes the saga. The returned error is the failing step's error wrapped
// with the step ID. Compensation failures are logged, never returned.
func (r *Runner) Run(ctx context.Context, name string, steps []Step) (*Execution, error) {
	exec := &Execution{
		Name:      name,
		State:     SagaStateRunning,
		Steps:     make([]StepExecution, len(steps)),
		StartedAt: time.Now(),
	}
	for i, step := range steps {
		exec.Steps[i] = StepExecution{ID: step.ID, State: StepStatePending}
	}

	for i, step := range steps {
		if err := step.Execute(ctx); err != nil {
			exec.Steps[i].State = StepStateFailed
			exec.Steps[i].Error = err.Error()
			exec.Error = err.Error()

			r.logger.Warn("Step failed",
				zap.String("saga", name),
				zap.String("stepID", string(step.ID)),
				zap.Error(err))

			r.compensate(ctx, exec, steps, i-1)
			return exec, fmt.Errorf("%s: %w", step.ID, err)
		}
		exec.Steps[i].State = StepStateCompleted

		r.logger.Debug("Step completed",
			zap.String("saga", name),
			zap.String("stepID", string(step.ID)))
	}

	exec.State = SagaStateCompleted
	exec.CompletedAt = time.Now()
	return exec, nil
}

func (r *Runner) compensate(ctx context.Context, exec *Execution, steps []Step, last int) {
	for i := last; i >= 0; i-- {
		step := steps[i]
		if step.Compensate == nil {
			exec.Steps[i].State = StepStateCompensated
			continue
		}

		if err := step.Compensate(ctx); err != nil {
			r.logger.Error("Compensation failed",
				zap.String("saga", exec.Name),
				zap.String("stepID", string(step.ID)),
				zap.Error(err))
			continue
		}
		exec.Steps[i].State = StepStateCompensated
	}

	exec.State = SagaStateCompensated
	exec.CompletedAt = time.Now()

	r.logger.Info("Saga compensated", zap.String("saga", exec.Name))
}
