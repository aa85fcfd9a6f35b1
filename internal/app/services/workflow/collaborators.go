// Package workflow implements the Workflow Engine (component H): a
// deterministic step-machine interpreter over workflow.Execution/
// workflow.Workflow, driving pause/resume, sub-workflow invocation, and
// history recording (§4.H).
package workflow

import (
	"context"

	domain "github.com/flowlayer/enginecore/internal/app/domain/workflow"
)

// WorkflowLoader loads a workflow definition by id, the subWorkflow step's
// getWorkflow collaborator (§4.H).
type WorkflowLoader interface {
	GetWorkflow(ctx context.Context, workflowID string) (*domain.Workflow, error)
}

// SubWorkflowStarter starts a child execution for a subWorkflow step's
// startSubWorkflow collaborator. When waitForCompletion is requested the
// engine blocks on the returned execution reaching a terminal state;
// otherwise the call is expected to return promptly (fire-and-forget) and
// the engine does not wait on it.
type SubWorkflowStarter interface {
	StartSubWorkflow(ctx context.Context, child *domain.Execution, childWorkflow *domain.Workflow, wait bool) (*domain.Execution, error)
}

// ExecutionSaver persists an execution after each step, the engine's
// saveExecution collaborator (§4.H step 5).
type ExecutionSaver interface {
	SaveExecution(ctx context.Context, execution *domain.Execution) error
}
