package saga

import (
	"context"
	"time"
)

// SagaState represents the outcome of a saga run
type SagaState string

const (
	SagaStateRunning     SagaState = "running"
	SagaStateCompleted   SagaState = "completed"
	SagaStateCompensated SagaState = "compensated"
)

// StepState represents the state of an individual step
type StepState string

const (
	StepStatePending     StepState = "pending"
	StepStateCompleted   StepState = "completed"
	StepStateFailed      StepState = "failed"
	StepStateCompensated StepState = "compensated"
)

// StepID uniquely identifies a step within a saga
type StepID string

// Step is a single acquisition with its undo action. Compensate may be nil
// for steps with nothing to release.
type Step struct {
	ID         StepID
	Execute    func(ctx context.Context) error
	Compensate func(ctx context.Context) error
}

// Execution records how a saga run went
type Execution struct {
	Name        string          `json:"name"`
	State       SagaState       `json:"state"`
	Steps       []StepExecution `json:"steps"`
	StartedAt   time.Time       `json:"started_at"`
	CompletedAt time.Time       `json:"completed_at"`
	Error       string          `json:"error,omitempty"`
}

// StepExecution represents the execution state of a step
type StepExecution struct {
	ID    StepID    `json:"id"`
	State StepState `json:"state"`
	Error string    `json:"error,omitempty"`
}

// FailedStep returns the step that stopped the saga, if any
func (e *Execution) FailedStep() (StepID, bool) {
	for _, s := range e.Steps {
		if s.State == StepStateFailed {
			return s.ID, true
		}
	}
	return "", false
}
