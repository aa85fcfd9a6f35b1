package transform

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/flowlayer/enginecore/internal/app/coerce"
	core "github.com/flowlayer/enginecore/internal/app/core/service"
	domain "github.com/flowlayer/enginecore/internal/app/domain/transform"
	"github.com/flowlayer/enginecore/internal/app/idgen"
	"github.com/flowlayer/enginecore/internal/app/metrics"
	"github.com/flowlayer/enginecore/internal/app/record"
	"github.com/flowlayer/enginecore/internal/app/storage"
)

// RunOptions controls one runPipeline invocation.
type RunOptions struct {
	ContinueOnError bool

	// RetryPolicy is the default per-step retry policy (component F, §4.F).
	// Zero value normalizes to core.DefaultRetryPolicy (single attempt, no
	// backoff) — identical to the pre-retry behavior. A step's own
	// `config.retry` (attempts/initialBackoffMs/maxBackoffMs/multiplier)
	// overrides this default for that step alone.
	RetryPolicy core.RetryPolicy
}

// ErrPipelineNotActive is returned when runPipeline is asked to run a
// pipeline whose status is not active.
var ErrPipelineNotActive = fmt.Errorf("pipeline is not active")

// RunPipeline executes every step of pipeline in declared order, persisting
// a domain.Run through runs, and clearing every registered _temp_/_preview_
// collection regardless of outcome. The run is observed
// through the transform pipeline-run hooks (in-flight gauge plus duration
// histogram, keyed by pipeline_id).
func RunPipeline(ctx context.Context, store *storage.Storage, runs *storage.Repository[*domain.Run], pipeline *domain.Pipeline, opts RunOptions) (*domain.Run, error) {
	if pipeline.Status != domain.PipelineActive {
		return nil, ErrPipelineNotActive
	}

	doneObserving := core.StartObservation(ctx, metrics.PipelineRunHooks(), map[string]string{"pipeline_id": pipeline.ID})
	var runErr error
	defer func() { doneObserving(runErr) }()

	run := &domain.Run{
		ID:         idgen.Prefixed("run"),
		PipelineID: pipeline.ID,
		Status:     domain.RunRunning,
		StartedAt:  time.Now().UTC(),
	}
	run, err := runs.Create(ctx, run)
	if err != nil {
		runErr = err
		return nil, err
	}

	steps := orderedSteps(pipeline.Steps)
	completed := map[string]bool{}

	for _, step := range steps {
		if !dependenciesMet(step, completed) {
			run.StepResults = append(run.StepResults, domain.StepResult{
				StepID: step.ID, Status: domain.StepResultSkipped,
				StartedAt: time.Now().UTC(), HasError: true, Error: "Dependencies not met",
			})
			continue
		}

		started := time.Now().UTC()
		var outcome Outcome
		stepErr := core.Retry(ctx, stepRetryPolicy(step, opts), func() error {
			var attemptErr error
			outcome, attemptErr = Execute(ctx, store, step)
			return attemptErr
		})
		finished := time.Now().UTC()

		result := domain.StepResult{
			StepID: step.ID, StartedAt: started,
			HasCompletedAt: true, CompletedAt: finished,
			DurationMs: finished.Sub(started).Milliseconds(),
			InputRows:  outcome.InputRows, OutputRows: outcome.OutputRows,
		}
		if stepErr != nil {
			result.Status = domain.StepResultFailed
			result.HasError = true
			result.Error = stepErr.Error()
			run.StepResults = append(run.StepResults, result)
			metrics.RecordTransformStep(string(step.Type), "error", finished.Sub(started))
			if !opts.ContinueOnError {
				break
			}
			continue
		}
		result.Status = domain.StepResultCompleted
		result.HasOutputCollection = outcome.OutputCollection != ""
		result.OutputCollection = outcome.OutputCollection
		run.StepResults = append(run.StepResults, result)
		metrics.RecordTransformStep(string(step.Type), "success", finished.Sub(started))
		completed[step.ID] = true
	}

	run.RecomputeStatus()
	run.HasCompletedAt = true
	run.CompletedAt = time.Now().UTC()
	metrics.RecordPipelineRun(pipeline.ID, string(run.Status))
	if run.Status == domain.RunFailed {
		runErr = fmt.Errorf("pipeline %s run %s failed", pipeline.ID, run.ID)
	}

	gcTempCollections(ctx, store)

	saved, _, err := runs.Update(ctx, run.ID, run)
	if err != nil {
		runErr = err
		return run, err
	}
	return saved, nil
}

// stepRetryPolicy resolves step's effective retry policy: opts.RetryPolicy
// (normalized to core.DefaultRetryPolicy when unset), overridden field by
// field by a `config.retry` map when step declares one.
func stepRetryPolicy(step domain.Step, opts RunOptions) core.RetryPolicy {
	policy := opts.RetryPolicy
	if policy.Attempts <= 0 {
		policy = core.DefaultRetryPolicy
	}
	cfg, ok := step.Config["retry"].(map[string]any)
	if !ok {
		return policy
	}
	if v, ok := coerce.ToFloat64(cfg["attempts"]); ok && v > 0 {
		policy.Attempts = int(v)
	}
	if v, ok := coerce.ToFloat64(cfg["initialBackoffMs"]); ok && v >= 0 {
		policy.InitialBackoff = time.Duration(v) * time.Millisecond
	}
	if v, ok := coerce.ToFloat64(cfg["maxBackoffMs"]); ok && v >= 0 {
		policy.MaxBackoff = time.Duration(v) * time.Millisecond
	}
	if v, ok := coerce.ToFloat64(cfg["multiplier"]); ok && v > 0 {
		policy.Multiplier = v
	}
	return policy
}

// orderedSteps returns pipeline's steps sorted by their declared Order,
// stable for equal orders.
func orderedSteps(steps []domain.Step) []domain.Step {
	out := make([]domain.Step, len(steps))
	copy(out, steps)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	return out
}

func dependenciesMet(step domain.Step, completed map[string]bool) bool {
	for _, dep := range step.DependsOn {
		if !completed[dep] {
			return false
		}
	}
	return true
}

// gcTempCollections clears every registered collection whose name begins
// with _temp_ or _preview_, regardless of the run's outcome.
func gcTempCollections(ctx context.Context, store *storage.Storage) {
	for _, name := range store.Collections() {
		if strings.HasPrefix(name, "_temp_") || strings.HasPrefix(name, "_preview_") {
			store.Clear(ctx, name)
		}
	}
}

// PreviewStep normalizes stepInput's id, redirects its output to a freshly
// generated _preview_<id> collection, executes it once, reads up to limit
// rows, then clears the preview collection, so no preview rows remain. The
// emptied _preview_<id> collection stays registered in store (Storage has
// no way to unregister it). Errors are swallowed; the caller sees an empty
// result, matching §4.F's preview contract.
func PreviewStep(ctx context.Context, store *storage.Storage, stepInput domain.Step, limit int) []record.Record {
	if limit > 0 {
		limit = core.ClampLimit(limit, limit, core.MaxListLimit)
	}
	step := stepInput
	if step.ID == "" {
		step.ID = idgen.Prefixed("preview")
	}
	previewCollection := "_preview_" + step.ID
	cfg := make(map[string]any, len(step.Config)+1)
	for k, v := range step.Config {
		cfg[k] = v
	}
	cfg["output"] = previewCollection
	step.Config = cfg

	defer store.Clear(ctx, previewCollection)

	if _, err := Execute(ctx, store, step); err != nil {
		return nil
	}
	rows, err := store.FindAllRecords(ctx, previewCollection)
	if err != nil {
		return nil
	}
	if limit > 0 && limit < len(rows) {
		rows = rows[:limit]
	}
	return rows
}
