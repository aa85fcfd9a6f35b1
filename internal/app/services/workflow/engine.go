package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/flowlayer/enginecore/internal/app/condition"
	core "github.com/flowlayer/enginecore/internal/app/core/service"
	domain "github.com/flowlayer/enginecore/internal/app/domain/workflow"
	"github.com/flowlayer/enginecore/internal/app/idgen"
	"github.com/flowlayer/enginecore/internal/app/metrics"
	"github.com/flowlayer/enginecore/internal/app/pathutil"
	"github.com/flowlayer/enginecore/internal/app/record"
	"github.com/flowlayer/enginecore/internal/app/services/actions"
	"github.com/flowlayer/enginecore/internal/app/storage"
)

// ErrAlreadyTerminal is returned by CancelExecution/ResumeExecution when the
// execution is already in a terminal state.
var ErrAlreadyTerminal = fmt.Errorf("execution is already in a terminal state")

// ErrNotPaused is returned by ResumeExecution when the execution is not
// currently paused.
var ErrNotPaused = fmt.Errorf("execution is not paused")

// Engine is the workflow step-machine interpreter. It embeds a
// core.service.Base for the ambient descriptor/retry/observation plumbing
// every engine service in this codebase carries.
type Engine struct {
	base *core.Base

	Storage  *storage.Storage
	Actions  actions.Dependencies
	Loader   WorkflowLoader
	SubStart SubWorkflowStarter
	Saver    ExecutionSaver
}

// New constructs an Engine. storage backs exists() condition lookups and
// the Action Executor's entity-CRUD variants. The embedded Base is seeded
// with this engine's Prometheus-backed observation hooks (in-flight gauge
// plus duration histogram per execution, keyed by workflow_id) and the
// library's default retry policy; callers needing transient-failure
// retries around action dispatch (for example a flaky HttpClient/
// MessageHandler) override it via Base().WithRetryPolicy.
func New(store *storage.Storage) *Engine {
	base := core.NewBase("workflow-engine", "workflow")
	base.WithDescriptor(base.Descriptor().WithCapabilities("pause-resume", "sub-workflow", "action-retry"))
	base.WithObservationHooks(metrics.WorkflowExecutionHooks())
	return &Engine{
		base:    base,
		Storage: store,
		Actions: actions.Dependencies{Storage: store},
	}
}

// Base exposes the engine's ambient service plumbing.
func (e *Engine) Base() *core.Base { return e.base }

// StartExecution creates a new Execution for wf, merging initialContext
// over wf.InitialContext, and runs it until it suspends or reaches a
// terminal state.
func (e *Engine) StartExecution(ctx context.Context, wf *domain.Workflow, initialContext record.Record) (*domain.Execution, error) {
	now := time.Now().UTC()
	execContext := wf.InitialContext.Clone().Merge(initialContext)
	execution := &domain.Execution{
		ID:              idgen.Prefixed("exec"),
		WorkflowID:      wf.ID,
		WorkflowVersion: wf.Version,
		Status:          domain.ExecPending,
		Context:         execContext,
		HasStartedAt:    true,
		StartedAt:       now,
	}
	if len(wf.Steps) > 0 {
		execution.HasCurrentStepID = true
		execution.CurrentStepID = wf.Steps[0].ID
	}
	execution.Status = domain.ExecRunning
	return e.Run(ctx, execution, wf)
}

// ResumeExecution resumes a paused execution, merging resumeContext over
// its current context and following the pause step's next, then runs the
// state machine forward.
func (e *Engine) ResumeExecution(ctx context.Context, execution *domain.Execution, wf *domain.Workflow, resumeContext record.Record) (*domain.Execution, error) {
	if execution.Status != domain.ExecPaused {
		return execution, ErrNotPaused
	}
	pauseStepID := execution.CurrentStepID
	execution.Context = execution.Context.Merge(resumeContext)
	execution.Status = domain.ExecRunning

	if step, ok := wf.StepByID(pauseStepID); ok && step.Kind == domain.StepPause {
		execution.HasCurrentStepID = step.Next != ""
		execution.CurrentStepID = step.Next
	}
	return e.Run(ctx, execution, wf)
}

// CancelExecution transitions a running or paused execution to cancelled.
// It never touches an already-terminal execution, and never interrupts an
// already-suspended external call (there is none to interrupt — the core
// is synchronous between steps).
func (e *Engine) CancelExecution(ctx context.Context, execution *domain.Execution) error {
	if execution.Status.IsTerminal() {
		return ErrAlreadyTerminal
	}
	execution.Status = domain.ExecCancelled
	execution.HasCompletedAt = true
	execution.CompletedAt = time.Now().UTC()
	execution.HasCurrentStepID = false
	execution.CurrentStepID = ""
	return e.save(ctx, execution)
}

// Run drives execution forward while it remains running and a current step
// is set, per §4.H's transition table. It returns once the execution
// suspends (paused / waitingForSubWorkflow) or reaches a terminal state.
// Each call is one observed segment against e.base's ObservationHooks: the
// in-flight gauge ticks up on entry and back down on return, and the
// duration histogram records the segment's wall time, labeled by
// workflow_id.
func (e *Engine) Run(ctx context.Context, execution *domain.Execution, wf *domain.Workflow) (result *domain.Execution, err error) {
	done := core.StartObservation(ctx, e.base.ObservationHooks(), map[string]string{"workflow_id": wf.ID})
	defer func() { done(err) }()

	for execution.Status == domain.ExecRunning && execution.HasCurrentStepID && execution.CurrentStepID != "" {
		step, ok := wf.StepByID(execution.CurrentStepID)
		if !ok {
			e.fail(execution, fmt.Sprintf("Step %s not found", execution.CurrentStepID))
			if saveErr := e.save(ctx, execution); saveErr != nil {
				return execution, saveErr
			}
			break
		}

		entryIdx := len(execution.History)
		execution.History = append(execution.History, domain.HistoryEntry{
			StepID:    step.ID,
			Status:    domain.HistoryStarted,
			StartedAt: time.Now().UTC(),
		})
		stepStart := time.Now().UTC()

		outcome := e.dispatch(ctx, execution, wf, step)

		finished := time.Now().UTC()
		entry := &execution.History[entryIdx]
		entry.HasCompletedAt = true
		entry.CompletedAt = finished
		entry.HasDurationMs = true
		entry.DurationMs = finished.Sub(stepStart).Milliseconds()
		if outcome.err != "" {
			entry.Status = domain.HistoryFailed
			entry.HasError = true
			entry.Error = outcome.err
		} else if outcome.skipped {
			entry.Status = domain.HistorySkipped
		} else {
			entry.Status = domain.HistoryCompleted
		}

		metrics.RecordWorkflowStep(string(step.Kind), historyMetricStatus(entry.Status), time.Duration(entry.DurationMs)*time.Millisecond)

		if saveErr := e.save(ctx, execution); saveErr != nil {
			return execution, saveErr
		}

		if execution.Status.IsTerminal() || execution.Status != domain.ExecRunning {
			break
		}
	}
	return execution, nil
}

type stepOutcome struct {
	err     string
	skipped bool
}

// executeActionWithRetry runs the Action Executor under e.base's
// RetryPolicy. The default policy (single attempt, no backoff) preserves
// the engine's baseline determinism contract (§8.1); a caller that wires a
// multi-attempt policy via Base().WithRetryPolicy absorbs transient
// collaborator failures (a flaky HttpClient/MessageHandler) without the
// workflow itself needing an onError=retry step kind. Context mutations
// from a failed attempt are discarded — each retry starts from ctxRecord
// again — so a retried action never double-applies a partial side effect
// visible through context.
func (e *Engine) executeActionWithRetry(ctx context.Context, action domain.Action, ctxRecord record.Record) (actions.Result, record.Record) {
	var result actions.Result
	var next record.Record
	_ = core.Retry(ctx, e.base.RetryPolicy(), func() error {
		result, next = actions.Execute(ctx, e.Actions, action, ctxRecord)
		if !result.Success {
			return errors.New(result.Error)
		}
		return nil
	})
	return result, next
}

// dispatch executes one step and mutates execution (status, currentStepId,
// context) according to its kind, per §4.H.
func (e *Engine) dispatch(ctx context.Context, execution *domain.Execution, wf *domain.Workflow, step domain.Step) stepOutcome {
	switch step.Kind {
	case domain.StepCondition:
		ok := condition.EvaluateWorkflow(ctx, step.Condition, execution.Context, e.recordSource())
		if ok {
			e.advance(execution, step.OnTrue)
		} else if step.HasOnFalse {
			e.advance(execution, step.OnFalse)
		} else {
			e.complete(execution, domain.EndCompleted, "")
		}
		return stepOutcome{}

	case domain.StepAction:
		result, next := e.executeActionWithRetry(ctx, step.Action, execution.Context)
		execution.Context = next
		if result.Success {
			e.advance(execution, step.Next)
			return stepOutcome{}
		}
		switch step.OnError {
		case domain.OnErrorFail, "":
			e.fail(execution, result.Error)
			return stepOutcome{err: result.Error}
		case domain.OnErrorContinue:
			e.advance(execution, step.Next)
			return stepOutcome{err: result.Error}
		default:
			e.advance(execution, step.OnError)
			return stepOutcome{err: result.Error}
		}

	case domain.StepPause:
		if step.HasResumeCondition && condition.EvaluateWorkflow(ctx, step.ResumeCondition, execution.Context, e.recordSource()) {
			e.advance(execution, step.Next)
			return stepOutcome{}
		}
		execution.Status = domain.ExecPaused
		execution.HasPausedAt = true
		execution.PausedAt = time.Now().UTC()
		return stepOutcome{}

	case domain.StepSubWorkflow:
		return e.dispatchSubWorkflow(ctx, execution, step)

	case domain.StepEnd:
		status := domain.EndCompleted
		if step.HasEndStatus {
			status = step.EndStatus
		}
		e.complete(execution, status, step.EndReason)
		if status == domain.EndFailed {
			return stepOutcome{err: step.EndReason}
		}
		return stepOutcome{}

	default:
		e.fail(execution, fmt.Sprintf("unknown step kind %q", step.Kind))
		return stepOutcome{err: fmt.Sprintf("unknown step kind %q", step.Kind)}
	}
}

func (e *Engine) dispatchSubWorkflow(ctx context.Context, execution *domain.Execution, step domain.Step) stepOutcome {
	if e.Loader == nil || e.SubStart == nil {
		msg := "sub-workflow support not configured"
		e.fail(execution, msg)
		return stepOutcome{err: msg}
	}
	childWorkflow, err := e.Loader.GetWorkflow(ctx, step.WorkflowID)
	if err != nil || childWorkflow == nil {
		msg := fmt.Sprintf("sub-workflow %s not found", step.WorkflowID)
		e.fail(execution, msg)
		return stepOutcome{err: msg}
	}

	childContext := record.Record{}
	for key, src := range step.InputMapping {
		childContext = mustSet(childContext, key, src.Resolve(execution.Context))
	}

	child := &domain.Execution{
		ID:                   idgen.Prefixed("exec"),
		WorkflowID:           childWorkflow.ID,
		WorkflowVersion:      childWorkflow.Version,
		HasParentExecutionID: true,
		ParentExecutionID:    execution.ID,
		Status:               domain.ExecRunning,
		Context:              childWorkflow.InitialContext.Clone().Merge(childContext),
		HasStartedAt:         true,
		StartedAt:            time.Now().UTC(),
	}
	if len(childWorkflow.Steps) > 0 {
		child.HasCurrentStepID = true
		child.CurrentStepID = childWorkflow.Steps[0].ID
	}

	if !step.WaitForCompletion {
		// Fire-and-forget: the child is started but the parent never
		// suspends on it and applies no outputMapping.
		if _, err := e.SubStart.StartSubWorkflow(ctx, child, childWorkflow, false); err != nil {
			msg := err.Error()
			e.fail(execution, msg)
			return stepOutcome{err: msg}
		}
		e.advance(execution, step.Next)
		return stepOutcome{}
	}

	execution.Status = domain.ExecWaitingForSubWorkflow
	result, err := e.SubStart.StartSubWorkflow(ctx, child, childWorkflow, true)
	execution.Status = domain.ExecRunning
	if err != nil {
		msg := err.Error()
		e.fail(execution, msg)
		return stepOutcome{err: msg}
	}
	switch result.Status {
	case domain.ExecCompleted:
		for key, src := range step.OutputMapping {
			execution.Context = mustSet(execution.Context, key, src.Resolve(result.Context))
		}
		e.advance(execution, step.Next)
		return stepOutcome{}
	case domain.ExecFailed:
		msg := fmt.Sprintf("sub-workflow %s failed", step.WorkflowID)
		e.fail(execution, msg)
		return stepOutcome{err: msg}
	default:
		msg := fmt.Sprintf("sub-workflow %s ended in unexpected status %s", step.WorkflowID, result.Status)
		e.fail(execution, msg)
		return stepOutcome{err: msg}
	}
}

func (e *Engine) advance(execution *domain.Execution, next string) {
	execution.HasCurrentStepID = next != ""
	execution.CurrentStepID = next
	if next == "" {
		e.complete(execution, domain.EndCompleted, "")
	}
}

func (e *Engine) complete(execution *domain.Execution, status domain.EndStatus, reason string) {
	if status == domain.EndFailed {
		e.fail(execution, reason)
		return
	}
	execution.Status = domain.ExecCompleted
	execution.HasCompletedAt = true
	execution.CompletedAt = time.Now().UTC()
	execution.HasCurrentStepID = false
	execution.CurrentStepID = ""
}

// fail transitions execution to failed. reason is not stored on the
// execution itself (the domain model has no execution-level error field by
// design — §3's Execution carries only per-step history); the caller is
// responsible for recording reason on the relevant domain.HistoryEntry.
func (e *Engine) fail(execution *domain.Execution, reason string) {
	execution.Status = domain.ExecFailed
	execution.HasCompletedAt = true
	execution.CompletedAt = time.Now().UTC()
	execution.HasCurrentStepID = false
	execution.CurrentStepID = ""
}

// recordSource returns e.Storage as a condition.RecordSource, or a true nil
// interface when no storage is configured — guarding against the classic
// Go pitfall where a nil *storage.Storage stored in an interface compares
// unequal to nil.
func (e *Engine) recordSource() condition.RecordSource {
	if e.Storage == nil {
		return nil
	}
	return e.Storage
}

func (e *Engine) save(ctx context.Context, execution *domain.Execution) error {
	if e.Saver == nil {
		return nil
	}
	return e.Saver.SaveExecution(ctx, execution)
}

func mustSet(rec record.Record, path string, value any) record.Record {
	updated, err := pathutil.Set(rec, path, value)
	if err != nil {
		return rec
	}
	return updated
}

func historyMetricStatus(status domain.HistoryStatus) string {
	switch status {
	case domain.HistoryCompleted:
		return "success"
	case domain.HistorySkipped:
		return "skipped"
	default:
		return "error"
	}
}
