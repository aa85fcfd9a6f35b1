// Package transform models the TransformPipeline, TransformStep, and
// PipelineRun entities (§3) the Step Executor (component E) and Pipeline
// Orchestrator (component F) operate over.
package transform

import (
	"fmt"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/flowlayer/enginecore/internal/app/triggerspec"
)

// PipelineStatus is the pipeline definition's lifecycle state.
type PipelineStatus string

const (
	PipelineDraft  PipelineStatus = "draft"
	PipelineActive PipelineStatus = "active"
	PipelinePaused PipelineStatus = "paused"
)

// StepType enumerates the twelve relational/reshaping operators.
type StepType string

const (
	StepFilter      StepType = "filter"
	StepMap         StepType = "map"
	StepAggregate   StepType = "aggregate"
	StepJoin        StepType = "join"
	StepLookup      StepType = "lookup"
	StepUnion       StepType = "union"
	StepDeduplicate StepType = "deduplicate"
	StepSort        StepType = "sort"
	StepLimit       StepType = "limit"
	StepPivot       StepType = "pivot"
	StepUnpivot     StepType = "unpivot"
	StepFlatten     StepType = "flatten"
)

// Step is one operator invocation. Config is operator-specific and decoded
// by the Step Executor per Type; this package only validates the input/
// output keys every operator must carry.
type Step struct {
	ID        string         `json:"id"`
	Type      StepType       `json:"type"`
	Config    map[string]any `json:"config"`
	Order     int            `json:"order"`
	DependsOn []string       `json:"dependsOn,omitempty"`
}

// hasAnyInputKey reports whether Config names a source collection under
// any of the accepted input keys (source | left | sources).
func (s Step) hasAnyInputKey() bool {
	for _, key := range []string{"source", "left", "sources"} {
		if v, ok := s.Config[key]; ok && v != nil {
			return true
		}
	}
	return false
}

func (s Step) hasOutputKey() bool {
	v, ok := s.Config["output"]
	return ok && v != nil
}

// Pipeline is the identified, ordered sequence of steps the orchestrator
// runs.
type Pipeline struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Steps  []Step `json:"steps"`
	Status PipelineStatus `json:"status"`

	HasSchedule bool           `json:"hasSchedule,omitempty"`
	Schedule    map[string]any `json:"schedule,omitempty"` // opaque to the core

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (p *Pipeline) GetID() string            { return p.ID }
func (p *Pipeline) SetID(id string)          { p.ID = id }
func (p *Pipeline) SetCreatedAt(t time.Time) { p.CreatedAt = t }
func (p *Pipeline) SetUpdatedAt(t time.Time) { p.UpdatedAt = t }

// Validate checks §4.F's blocking invariants: a non-empty name, a non-empty
// step list, and every step naming both an input and an output.
func (p *Pipeline) Validate() error {
	var result *multierror.Error
	if p.Name == "" {
		result = multierror.Append(result, &FieldError{Code: "REQUIRED_FIELD", Field: "name"})
	}
	if len(p.Steps) == 0 {
		result = multierror.Append(result, &FieldError{Code: "REQUIRED_FIELD", Field: "steps"})
	}
	for _, step := range p.Steps {
		if !step.hasAnyInputKey() {
			result = multierror.Append(result, &FieldError{Code: "REQUIRED_FIELD", Field: fmt.Sprintf("steps[%s].source", step.ID)})
		}
		if !step.hasOutputKey() {
			result = multierror.Append(result, &FieldError{Code: "REQUIRED_FIELD", Field: fmt.Sprintf("steps[%s].output", step.ID)})
		}
	}
	if p.HasSchedule {
		if err := scheduleConfigFrom(p.Schedule).Validate(); err != nil {
			result = multierror.Append(result, fmt.Errorf("schedule: %w", err))
		}
	}
	return result.ErrorOrNil()
}

// scheduleConfigFrom lifts the opaque cron/timezone pair out of Pipeline's
// schedule config map.
func scheduleConfigFrom(schedule map[string]any) triggerspec.ScheduleConfig {
	cfg := triggerspec.ScheduleConfig{}
	if v, ok := schedule["cron"].(string); ok {
		cfg.Cron = v
	}
	if v, ok := schedule["timezone"].(string); ok {
		cfg.Timezone = v
	}
	return cfg
}

// FieldError is the wire-visible validation error shape from §6:
// code "REQUIRED_FIELD" with a field path.
type FieldError struct {
	Code  string
	Field string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Field)
}

// RunStatus is a pipeline run's lifecycle state.
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
	RunCancelled RunStatus = "cancelled"
)

// StepResultStatus is one step invocation's outcome within a run.
type StepResultStatus string

const (
	StepResultCompleted StepResultStatus = "completed"
	StepResultFailed    StepResultStatus = "failed"
	StepResultSkipped   StepResultStatus = "skipped"
)

// StepResult is the outcome record for one operator invocation.
type StepResult struct {
	StepID     string           `json:"stepId"`
	Status     StepResultStatus `json:"status"`
	InputRows  int              `json:"inputRows"`
	OutputRows int              `json:"outputRows"`

	StartedAt      time.Time `json:"startedAt"`
	HasCompletedAt bool      `json:"hasCompletedAt,omitempty"`
	CompletedAt    time.Time `json:"completedAt,omitempty"`
	DurationMs     int64     `json:"durationMs"`

	HasOutputCollection bool   `json:"hasOutputCollection,omitempty"`
	OutputCollection    string `json:"outputCollection,omitempty"`

	HasError bool   `json:"hasError,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Run is the identified, append-only record of one pipeline execution.
type Run struct {
	ID         string       `json:"id"`
	PipelineID string       `json:"pipelineId"`
	Status     RunStatus    `json:"status"`
	StepResults []StepResult `json:"stepResults"`

	StartedAt      time.Time `json:"startedAt"`
	HasCompletedAt bool      `json:"hasCompletedAt,omitempty"`
	CompletedAt    time.Time `json:"completedAt,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (r *Run) GetID() string            { return r.ID }
func (r *Run) SetID(id string)          { r.ID = id }
func (r *Run) SetCreatedAt(t time.Time) { r.CreatedAt = t }
func (r *Run) SetUpdatedAt(t time.Time) { r.UpdatedAt = t }

// RecomputeStatus sets Status to failed iff any step result is failed,
// otherwise completed. A failed step fails the run even when
// continueOnError let the remaining steps run. Callers only invoke this
// once the run has actually stopped (failure without continueOnError, or
// exhausted all steps).
func (r *Run) RecomputeStatus() {
	for _, result := range r.StepResults {
		if result.Status == StepResultFailed {
			r.Status = RunFailed
			return
		}
	}
	r.Status = RunCompleted
}
