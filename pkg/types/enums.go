// Package types defines the public domain types for cancel-workflow.
package types

// RunStatus is the control-plane status of a workflow run or job.
type RunStatus string

// RunStatus values known to the GitHub Actions API. Other provider-defined
// values pass through unchanged.
const (
	StatusRequested  RunStatus = "requested"
	StatusQueued     RunStatus = "queued"
	StatusWaiting    RunStatus = "waiting"
	StatusPending    RunStatus = "pending"
	StatusInProgress RunStatus = "in_progress"
	StatusCompleted  RunStatus = "completed"
)

// OutcomeResult is the result of one cancel request.
type OutcomeResult string

// OutcomeResult values.
const (
	OutcomeOK      OutcomeResult = "ok"
	OutcomeFailed  OutcomeResult = "failed"
	OutcomeSkipped OutcomeResult = "skipped" // dry run
)

// FailureCategory classifies why a control-plane call failed.
type FailureCategory string

const (
	FailureTransient FailureCategory = "TRANSIENT"
	FailurePermanent FailureCategory = "PERMANENT"
	FailureTimeout   FailureCategory = "TIMEOUT"
)

// Event names that select a trigger shape.
const (
	EventPush              = "push"
	EventPullRequest       = "pull_request"
	EventPullRequestTarget = "pull_request_target"
	EventWorkflowRun       = "workflow_run"
)
