// Package provider defines the control-plane interface for cancel-workflow.
package provider

import (
	"context"

	"github.com/dwsmith1983/cancel-workflow/pkg/types"
)

// ControlPlane is the subset of the CI control plane used to find and cancel
// superseded runs. Every method is a single attempt; implementations never
// retry.
type ControlPlane interface {
	// GetRun fetches one run by id.
	GetRun(ctx context.Context, runID int64) (*types.RunRecord, error)

	// ListWorkflows lists every workflow definition of the repository.
	ListWorkflows(ctx context.Context) ([]types.Workflow, error)

	// ListRuns returns one page of runs of a workflow. An empty branch lists
	// runs of every branch.
	ListRuns(ctx context.Context, workflow types.WorkflowRef, branch string, perPage int) (*types.RunPage, error)

	// ListJobs lists the jobs of a run.
	ListJobs(ctx context.Context, runID int64) ([]types.JobRecord, error)

	// CancelRun requests cancellation and returns the provider status code.
	CancelRun(ctx context.Context, runID int64) (int, error)
}
