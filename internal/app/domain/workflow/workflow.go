// Package workflow models the Workflow, WorkflowStep, Action, and
// WorkflowExecution entities (§3) the Workflow Engine (component H) and
// Action Executor (component G) operate over.
package workflow

import (
	"fmt"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/flowlayer/enginecore/internal/app/condition"
	"github.com/flowlayer/enginecore/internal/app/record"
	"github.com/flowlayer/enginecore/internal/app/triggerspec"
)

// Status is the workflow definition's lifecycle state.
type Status string

const (
	StatusDraft    Status = "draft"
	StatusActive   Status = "active"
	StatusArchived Status = "archived"
)

// TriggerKind enumerates trigger variants. Triggers are accepted and
// persisted but never dispatched by the core (§1 non-goals).
type TriggerKind string

const (
	TriggerManual       TriggerKind = "manual"
	TriggerEvent        TriggerKind = "event"
	TriggerSchedule     TriggerKind = "schedule"
	TriggerEntityChange TriggerKind = "entityChange"
)

// Trigger is the trigger configuration attached to a workflow definition.
// It is opaque to the engine; Workflow.Validate checks only a schedule
// trigger's cron/timezone config.
type Trigger struct {
	Kind   TriggerKind    `json:"kind"`
	Config map[string]any `json:"config,omitempty"`
}

// Workflow is the identified definition the engine executes.
type Workflow struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Version int    `json:"version"`
	Status  Status `json:"status"`

	HasTrigger bool    `json:"hasTrigger,omitempty"`
	Trigger    Trigger `json:"trigger,omitempty"`

	Steps          []Step        `json:"steps"`
	InitialContext record.Record `json:"initialContext,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (w *Workflow) GetID() string            { return w.ID }
func (w *Workflow) SetID(id string)          { w.ID = id }
func (w *Workflow) SetCreatedAt(t time.Time) { w.CreatedAt = t }
func (w *Workflow) SetUpdatedAt(t time.Time) { w.UpdatedAt = t }

// FieldError is the wire-visible validation error shape from §6: code
// "REQUIRED_FIELD" with a field path.
type FieldError struct {
	Code  string
	Field string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Field)
}

// Validate checks a non-empty id/name and a non-empty step list, and, when
// Trigger.Kind is schedule, that Trigger.Config's cron/timezone parse.
// Trigger config is otherwise opaque: the engine accepts and persists it
// without ever dispatching it (§1 non-goals).
func (w *Workflow) Validate() error {
	var result *multierror.Error
	if w.ID == "" {
		result = multierror.Append(result, &FieldError{Code: "REQUIRED_FIELD", Field: "id"})
	}
	if w.Name == "" {
		result = multierror.Append(result, &FieldError{Code: "REQUIRED_FIELD", Field: "name"})
	}
	if len(w.Steps) == 0 {
		result = multierror.Append(result, &FieldError{Code: "REQUIRED_FIELD", Field: "steps"})
	}
	if w.HasTrigger && w.Trigger.Kind == TriggerSchedule {
		if err := scheduleConfigFrom(w.Trigger.Config).Validate(); err != nil {
			result = multierror.Append(result, fmt.Errorf("trigger: %w", err))
		}
	}
	return result.ErrorOrNil()
}

// scheduleConfigFrom lifts the opaque cron/timezone pair out of a trigger's
// config map.
func scheduleConfigFrom(config map[string]any) triggerspec.ScheduleConfig {
	cfg := triggerspec.ScheduleConfig{}
	if v, ok := config["cron"].(string); ok {
		cfg.Cron = v
	}
	if v, ok := config["timezone"].(string); ok {
		cfg.Timezone = v
	}
	return cfg
}

// StepByID returns the step with id, if any.
func (w *Workflow) StepByID(id string) (Step, bool) {
	for _, step := range w.Steps {
		if step.ID == id {
			return step, true
		}
	}
	return Step{}, false
}

// StepKind enumerates the step tagged-variant.
type StepKind string

const (
	StepCondition   StepKind = "condition"
	StepAction      StepKind = "action"
	StepPause       StepKind = "pause"
	StepSubWorkflow StepKind = "subWorkflow"
	StepEnd         StepKind = "end"
)

// Reserved OnError values. Any other string names the step id to jump to.
const (
	OnErrorFail     = "fail"
	OnErrorContinue = "continue"
)

// EndStatus is the terminal state an end step sets.
type EndStatus string

const (
	EndCompleted EndStatus = "completed"
	EndFailed    EndStatus = "failed"
)

// Step is the tagged workflow step variant; exactly one group of fields is
// populated per Kind.
type Step struct {
	ID   string   `json:"id"`
	Kind StepKind `json:"kind"`

	// condition
	Condition  condition.WorkflowTree `json:"condition,omitempty"`
	OnTrue     string                 `json:"onTrue,omitempty"`
	HasOnFalse bool                   `json:"hasOnFalse,omitempty"`
	OnFalse    string                 `json:"onFalse,omitempty"`

	// action; also uses Next
	Action Action `json:"action,omitempty"`

	// action/pause/subWorkflow shared successor
	Next string `json:"next,omitempty"`

	// action
	OnError string `json:"onError,omitempty"` // "fail" | "continue" | a step id

	// pause
	Reason             string                 `json:"reason,omitempty"`
	HasResumeCondition bool                   `json:"hasResumeCondition,omitempty"`
	ResumeCondition    condition.WorkflowTree `json:"resumeCondition,omitempty"`
	HasTimeoutMs       bool                   `json:"hasTimeoutMs,omitempty"`
	TimeoutMs          int64                  `json:"timeoutMs,omitempty"`

	// subWorkflow
	WorkflowID        string                     `json:"workflowId,omitempty"`
	InputMapping      map[string]condition.Source `json:"inputMapping,omitempty"`
	OutputMapping     map[string]condition.Source `json:"outputMapping,omitempty"`
	WaitForCompletion bool                         `json:"waitForCompletion,omitempty"`

	// end
	HasEndStatus bool      `json:"hasEndStatus,omitempty"`
	EndStatus    EndStatus `json:"endStatus,omitempty"`
	EndReason    string    `json:"endReason,omitempty"`
}

// ActionKind enumerates the Action Executor's side-effecting variants.
type ActionKind string

const (
	ActionSendMessage   ActionKind = "sendMessage"
	ActionCreateEntity  ActionKind = "createEntity"
	ActionUpdateEntity  ActionKind = "updateEntity"
	ActionDeleteEntity  ActionKind = "deleteEntity"
	ActionSetContext    ActionKind = "setContext"
	ActionHTTPCall      ActionKind = "httpCall"
	ActionLog           ActionKind = "log"
)

// SetContextEntry is one dotted-path/value-source pair a setContext action
// writes.
type SetContextEntry struct {
	Path  string          `json:"path"`
	Value condition.Source `json:"value"`
}

// LogLevel enumerates the log action's severity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// Action is the tagged side-effect variant. Every input is a
// field-reference-or-constant condition.Source, resolved against the
// execution context at dispatch time. Message is shared between
// sendMessage (the outgoing message body) and log (the log line); only one
// of the two kinds ever populates it on a given Action.
type Action struct {
	ID   string     `json:"id"`
	Kind ActionKind `json:"kind"`

	// sendMessage
	Channel         condition.Source `json:"channel,omitempty"`
	Recipient       condition.Source `json:"recipient,omitempty"`
	Message         condition.Source `json:"message,omitempty"`
	HasTemplateName bool             `json:"hasTemplateName,omitempty"`
	TemplateName    condition.Source `json:"templateName,omitempty"`

	// createEntity/updateEntity/deleteEntity
	Collection      string                       `json:"collection,omitempty"`
	HasRecordID     bool                         `json:"hasRecordId,omitempty"`
	RecordID        condition.Source              `json:"recordId,omitempty"`
	Fields          map[string]condition.Source   `json:"fields,omitempty"`
	HasSaveResultTo bool                          `json:"hasSaveResultTo,omitempty"`
	SaveResultTo    string                        `json:"saveResultTo,omitempty"`

	// setContext
	Entries []SetContextEntry `json:"entries,omitempty"`

	// httpCall
	Method     condition.Source            `json:"method,omitempty"`
	URL        condition.Source            `json:"url,omitempty"`
	HasHeaders bool                        `json:"hasHeaders,omitempty"`
	Headers    map[string]condition.Source `json:"headers,omitempty"`
	HasBody    bool                        `json:"hasBody,omitempty"`
	Body       condition.Source            `json:"body,omitempty"`

	// log
	Level   LogLevel         `json:"level,omitempty"`
	HasData bool             `json:"hasData,omitempty"`
	Data    condition.Source `json:"data,omitempty"`
}

// ExecutionStatus is the state machine's state set (§4.H).
type ExecutionStatus string

const (
	ExecPending               ExecutionStatus = "pending"
	ExecRunning               ExecutionStatus = "running"
	ExecPaused                ExecutionStatus = "paused"
	ExecWaitingForSubWorkflow ExecutionStatus = "waitingForSubWorkflow"
	ExecCompleted             ExecutionStatus = "completed"
	ExecFailed                ExecutionStatus = "failed"
	ExecCancelled             ExecutionStatus = "cancelled"
)

// IsTerminal reports whether status is one of completed/failed/cancelled.
func (s ExecutionStatus) IsTerminal() bool {
	switch s {
	case ExecCompleted, ExecFailed, ExecCancelled:
		return true
	default:
		return false
	}
}

// HistoryStatus is a single history entry's outcome.
type HistoryStatus string

const (
	HistoryStarted   HistoryStatus = "started"
	HistoryCompleted HistoryStatus = "completed"
	HistoryFailed    HistoryStatus = "failed"
	HistorySkipped   HistoryStatus = "skipped"
)

// HistoryEntry is one append-only record of a step invocation.
type HistoryEntry struct {
	StepID         string        `json:"stepId"`
	Status         HistoryStatus `json:"status"`
	StartedAt      time.Time     `json:"startedAt"`
	HasCompletedAt bool          `json:"hasCompletedAt,omitempty"`
	CompletedAt    time.Time     `json:"completedAt,omitempty"`
	HasDurationMs  bool          `json:"hasDurationMs,omitempty"`
	DurationMs     int64         `json:"durationMs,omitempty"`
	HasError       bool          `json:"hasError,omitempty"`
	Error          string        `json:"error,omitempty"`
}

// Execution is the identified, mutable run state of one workflow instance.
type Execution struct {
	ID              string `json:"id"`
	WorkflowID      string `json:"workflowId"`
	WorkflowVersion int    `json:"workflowVersion"`

	HasParentExecutionID bool   `json:"hasParentExecutionId,omitempty"`
	ParentExecutionID    string `json:"parentExecutionId,omitempty"`

	Status          ExecutionStatus `json:"status"`
	HasCurrentStepID bool           `json:"hasCurrentStepId,omitempty"`
	CurrentStepID   string          `json:"currentStepId,omitempty"`

	Context record.Record  `json:"context"`
	History []HistoryEntry `json:"history"`

	HasStartedAt   bool      `json:"hasStartedAt,omitempty"`
	StartedAt      time.Time `json:"startedAt,omitempty"`
	HasPausedAt    bool      `json:"hasPausedAt,omitempty"`
	PausedAt       time.Time `json:"pausedAt,omitempty"`
	HasCompletedAt bool      `json:"hasCompletedAt,omitempty"`
	CompletedAt    time.Time `json:"completedAt,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (e *Execution) GetID() string            { return e.ID }
func (e *Execution) SetID(id string)          { e.ID = id }
func (e *Execution) SetCreatedAt(t time.Time) { e.CreatedAt = t }
func (e *Execution) SetUpdatedAt(t time.Time) { e.UpdatedAt = t }
