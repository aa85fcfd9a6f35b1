package transform

import (
	"context"
	"strings"
	"testing"

	domain "github.com/flowlayer/enginecore/internal/app/domain/transform"
	"github.com/flowlayer/enginecore/internal/app/record"
	"github.com/flowlayer/enginecore/internal/app/storage"
)

func newRunRepo(t *testing.T, store *storage.Storage) *storage.Repository[*domain.Run] {
	t.Helper()
	return storage.NewRepository[*domain.Run](store, "transform_runs")
}

func TestRunPipelineRejectsNonActivePipeline(t *testing.T) {
	store := newStore(t)
	runs := newRunRepo(t, store)
	pipeline := &domain.Pipeline{ID: "p1", Status: domain.PipelineDraft}
	if _, err := RunPipeline(context.Background(), store, runs, pipeline, RunOptions{}); err != ErrPipelineNotActive {
		t.Fatalf("expected ErrPipelineNotActive, got %v", err)
	}
}

func TestRunPipelineRunsDependentWhenDependencyCompletes(t *testing.T) {
	store := newStore(t)
	runs := newRunRepo(t, store)
	pipeline := &domain.Pipeline{
		ID: "p1", Status: domain.PipelineActive,
		Steps: []domain.Step{
			{ID: "A", Type: domain.StepFilter, Order: 0, Config: map[string]any{
				"source": "missing_collection_that_is_fine", "output": "_temp_a",
				"conditions": []any{map[string]any{"field": "x", "op": "==", "value": "nonexistent_value_forces_nothing"}},
			}},
			{ID: "B", Type: domain.StepFilter, Order: 1, DependsOn: []string{"A"}, Config: map[string]any{
				"source": "orders", "output": "out",
			}},
		},
	}
	run, err := RunPipeline(context.Background(), store, runs, pipeline, RunOptions{ContinueOnError: true})
	if err != nil {
		t.Fatalf("runPipeline: %v", err)
	}
	var bResult *domain.StepResult
	for i := range run.StepResults {
		if run.StepResults[i].StepID == "B" {
			bResult = &run.StepResults[i]
		}
	}
	if bResult == nil {
		t.Fatalf("expected a result for step B")
	}
	// A succeeds (filtering an empty/absent source yields zero rows, not an
	// error), so B's dependency is met and B runs; the skip path is covered
	// by TestRunPipelineSkipsDependentAfterFailure.
	if bResult.Status != domain.StepResultCompleted {
		t.Fatalf("expected step B completed, got %q", bResult.Status)
	}
}

func TestRunPipelineSkipsDependentAfterFailure(t *testing.T) {
	store := newStore(t)
	runs := newRunRepo(t, store)
	pipeline := &domain.Pipeline{
		ID: "p1", Status: domain.PipelineActive,
		Steps: []domain.Step{
			{ID: "A", Type: domain.StepJoin, Order: 0, Config: map[string]any{
				"left": "orders", "right": "customers", "output": "_temp_a",
				// no "on" pairs: join reports an error per its own validation.
			}},
			{ID: "B", Type: domain.StepFilter, Order: 1, DependsOn: []string{"A"}, Config: map[string]any{
				"source": "orders", "output": "out",
			}},
		},
	}
	run, err := RunPipeline(context.Background(), store, runs, pipeline, RunOptions{ContinueOnError: true})
	if err != nil {
		t.Fatalf("runPipeline: %v", err)
	}
	if run.Status != domain.RunFailed {
		t.Fatalf("expected run to be failed, got %q", run.Status)
	}
	var bResult *domain.StepResult
	for i := range run.StepResults {
		if run.StepResults[i].StepID == "B" {
			bResult = &run.StepResults[i]
		}
	}
	if bResult == nil || bResult.Status != domain.StepResultSkipped || bResult.Error != "Dependencies not met" {
		t.Fatalf("expected B skipped with 'Dependencies not met', got %+v", bResult)
	}
	if bResult.HasOutputCollection {
		t.Fatalf("expected skipped step to have no output collection")
	}
}

func TestRunPipelineGarbageCollectsTempCollections(t *testing.T) {
	store := newStore(t)
	runs := newRunRepo(t, store)
	seed(t, store, "orders", record.Record{"amount": 10.0})
	pipeline := &domain.Pipeline{
		ID: "p1", Status: domain.PipelineActive,
		Steps: []domain.Step{
			{ID: "A", Type: domain.StepFilter, Order: 0, Config: map[string]any{
				"source": "orders", "output": "_temp_a",
			}},
		},
	}
	if _, err := RunPipeline(context.Background(), store, runs, pipeline, RunOptions{}); err != nil {
		t.Fatalf("runPipeline: %v", err)
	}
	rows, _ := store.FindAllRecords(context.Background(), "_temp_a")
	if len(rows) != 0 {
		t.Fatalf("expected _temp_a to be garbage collected, got %+v", rows)
	}
}

func TestPreviewStepLeavesStorageUntouched(t *testing.T) {
	store := newStore(t)
	seed(t, store, "orders", record.Record{"amount": 10.0}, record.Record{"amount": 20.0})
	before := store.Collections()

	step := domain.Step{Type: domain.StepFilter, Config: map[string]any{"source": "orders"}}
	rows := PreviewStep(context.Background(), store, step, 1)
	if len(rows) != 1 {
		t.Fatalf("expected 1 previewed row, got %d", len(rows))
	}

	for _, name := range store.Collections() {
		if strings.HasPrefix(name, "_preview_") {
			leftover, _ := store.FindAllRecords(context.Background(), name)
			if len(leftover) != 0 {
				t.Fatalf("expected preview collection to be cleared, got %+v", leftover)
			}
		}
	}
	orders, _ := store.FindAllRecords(context.Background(), "orders")
	if len(orders) != 2 {
		t.Fatalf("expected orders collection untouched, got %d rows", len(orders))
	}
	_ = before
}
