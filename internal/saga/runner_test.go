package saga

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"go.uber.org/zap/zaptest"
)

func recordingStep(id string, calls *[]string, failWith error) Step {
	return Step{
		ID: StepID(id),
		Execute: func(ctx context.Context) error {
			*calls = append(*calls, "exec:"+id)
			return failWith
		},
		Compensate: func(ctx context.Context) error {
			*calls = append(*calls, "undo:"+id)
			return nil
		},
	}
}

func TestRunnerCompletes(t *testing.T) {
	runner := NewRunner(zaptest.NewLogger(t))
	var calls []string

	exec, err := runner.Run(context.Background(), "capture", []Step{
		recordingStep("a", &calls, nil),
		recordingStep("b", &calls, nil),
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if exec.State != SagaStateCompleted {
		t.Errorf("Expected state %s, got %s", SagaStateCompleted, exec.State)
	}
	want := []string{"exec:a", "exec:b"}
	if !reflect.DeepEqual(calls, want) {
		t.Errorf("Expected calls %v, got %v", want, calls)
	}
}

func TestRunnerCompensatesInReverse(t *testing.T) {
	runner := NewRunner(zaptest.NewLogger(t))
	var calls []string
	boom := errors.New("boom")

	exec, err := runner.Run(context.Background(), "capture", []Step{
		recordingStep("a", &calls, nil),
		recordingStep("b", &calls, nil),
		recordingStep("c", &calls, boom),
		recordingStep("d", &calls, nil),
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Expected boom, got %v", err)
	}

	want := []string{"exec:a", "exec:b", "exec:c", "undo:b", "undo:a"}
	if !reflect.DeepEqual(calls, want) {
		t.Errorf("Expected calls %v, got %v", want, calls)
	}

	if exec.State != SagaStateCompensated {
		t.Errorf("Expected state %s, got %s", SagaStateCompensated, exec.State)
	}
	if id, ok := exec.FailedStep(); !ok || id != "c" {
		t.Errorf("Expected failed step c, got %q (%v)", id, ok)
	}
	if exec.Steps[3].State != StepStatePending {
		t.Errorf("Step after the failure should stay pending, got %s", exec.Steps[3].State)
	}
}

func TestRunnerKeepsCompensatingAfterFailure(t *testing.T) {
	runner := NewRunner(zaptest.NewLogger(t))
	var undone []string

	steps := []Step{
		{
			ID:         "first",
			Execute:    func(ctx context.Context) error { return nil },
			Compensate: func(ctx context.Context) error { undone = append(undone, "first"); return nil },
		},
		{
			ID:         "second",
			Execute:    func(ctx context.Context) error { return nil },
			Compensate: func(ctx context.Context) error { return errors.New("stuck") },
		},
		{
			ID:      "third",
			Execute: func(ctx context.Context) error { return errors.New("fail") },
		},
	}

	exec, err := runner.Run(context.Background(), "capture", steps)
	if err == nil {
		t.Fatal("Expected an error")
	}
	if !reflect.DeepEqual(undone, []string{"first"}) {
		t.Errorf("Expected first to be compensated, got %v", undone)
	}
	if exec.Steps[1].State != StepStateCompleted {
		t.Errorf("Step with failed compensation should stay completed, got %s", exec.Steps[1].State)
	}
}
