package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	workflowdomain "github.com/flowlayer/enginecore/internal/app/domain/workflow"
	appstorage "github.com/flowlayer/enginecore/internal/app/storage"
	"github.com/flowlayer/enginecore/internal/app/storage/memory"
	"github.com/flowlayer/enginecore/pkg/config"
	"github.com/flowlayer/enginecore/pkg/logger"
)

func writeTemp(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "doc.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	return path
}

func TestLoadDocumentRejectsMissingSection(t *testing.T) {
	path := writeTemp(t, "discount:\n  discounts: []\n")
	if _, err := loadDocument(path, "pipeline"); err == nil {
		t.Fatalf("expected validation error for missing pipeline section")
	}
}

func TestLoadDocumentAcceptsWellFormedWorkflow(t *testing.T) {
	path := writeTemp(t, `
workflow:
  definition:
    id: wf-1
    name: approval
    steps:
      - id: a
        kind: end
  initialContext:
    foo: bar
`)
	doc, err := loadDocument(path, "workflow")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc.Workflow.Definition.ID != "wf-1" {
		t.Fatalf("expected definition to decode, got %+v", doc.Workflow.Definition)
	}
	if doc.Workflow.InitialContext["foo"] != "bar" {
		t.Fatalf("expected initial context to decode, got %+v", doc.Workflow.InitialContext)
	}
}

func TestBuildStorageSelectsMemoryByDefault(t *testing.T) {
	cfg := config.New()
	store, err := buildStorage(cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if store == nil {
		t.Fatalf("expected a non-nil store")
	}
}

func TestBuildStorageRejectsUnknownBackend(t *testing.T) {
	cfg := config.New()
	cfg.Engine.StorageBackend = "dynamodb"
	if _, err := buildStorage(cfg); err == nil {
		t.Fatalf("expected error for unknown backend")
	}
}

func TestRunWorkflowStartsAndCompletesAnEndOnlyWorkflow(t *testing.T) {
	store := appstorage.New(memory.New())
	appLog := logger.New(logger.LoggingConfig{Level: "error", Format: "text", Output: "stdout"})

	input := &WorkflowInput{
		Definition: workflowdomain.Workflow{
			ID:     "wf-1",
			Name:   "noop",
			Status: workflowdomain.StatusActive,
			Steps:  []workflowdomain.Step{{ID: "a", Kind: workflowdomain.StepEnd}},
		},
	}

	execution, err := runWorkflow(context.Background(), store, appLog, input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if execution.Status != workflowdomain.ExecCompleted {
		t.Fatalf("expected completed, got %q", execution.Status)
	}
}

func TestRunWorkflowRejectsInvalidDefinition(t *testing.T) {
	store := appstorage.New(memory.New())
	appLog := logger.New(logger.LoggingConfig{Level: "error", Format: "text", Output: "stdout"})

	input := &WorkflowInput{Definition: workflowdomain.Workflow{}}
	if _, err := runWorkflow(context.Background(), store, appLog, input); err == nil {
		t.Fatalf("expected validation error for empty workflow definition")
	}
}
