package workflow

import "testing"

func TestStepByIDFindsMatchingStep(t *testing.T) {
	w := &Workflow{Steps: []Step{{ID: "a", Kind: StepEnd}, {ID: "b", Kind: StepEnd}}}
	step, ok := w.StepByID("b")
	if !ok || step.ID != "b" {
		t.Fatalf("expected to find step b")
	}
	if _, ok := w.StepByID("missing"); ok {
		t.Fatalf("expected missing step to not be found")
	}
}

func TestValidateRequiresIDNameAndSteps(t *testing.T) {
	w := &Workflow{}
	if err := w.Validate(); err == nil {
		t.Fatalf("expected validation error for empty workflow")
	}
}

func TestValidateAcceptsManualTrigger(t *testing.T) {
	w := &Workflow{ID: "wf-1", Name: "w", Steps: []Step{{ID: "a", Kind: StepEnd}},
		HasTrigger: true, Trigger: Trigger{Kind: TriggerManual}}
	if err := w.Validate(); err != nil {
		t.Fatalf("expected no validation error, got %v", err)
	}
}

func TestValidateRejectsMalformedScheduleTrigger(t *testing.T) {
	w := &Workflow{ID: "wf-1", Name: "w", Steps: []Step{{ID: "a", Kind: StepEnd}},
		HasTrigger: true, Trigger: Trigger{Kind: TriggerSchedule, Config: map[string]any{"cron": "nope"}}}
	if err := w.Validate(); err == nil {
		t.Fatalf("expected validation error for malformed schedule trigger")
	}
}

func TestValidateAcceptsWellFormedScheduleTrigger(t *testing.T) {
	w := &Workflow{ID: "wf-1", Name: "w", Steps: []Step{{ID: "a", Kind: StepEnd}},
		HasTrigger: true, Trigger: Trigger{Kind: TriggerSchedule, Config: map[string]any{"cron": "*/5 * * * *"}}}
	if err := w.Validate(); err != nil {
		t.Fatalf("expected no validation error, got %v", err)
	}
}

func TestExecutionStatusIsTerminal(t *testing.T) {
	terminal := []ExecutionStatus{ExecCompleted, ExecFailed, ExecCancelled}
	for _, s := range terminal {
		if !s.IsTerminal() {
			t.Fatalf("expected %q to be terminal", s)
		}
	}
	nonTerminal := []ExecutionStatus{ExecPending, ExecRunning, ExecPaused, ExecWaitingForSubWorkflow}
	for _, s := range nonTerminal {
		if s.IsTerminal() {
			t.Fatalf("expected %q to be non-terminal", s)
		}
	}
}
