package types

import (
	"strconv"
	"time"
)

// RunRecord is one workflow run as reported by the control plane. Records are
// fetched fresh on every invocation and never mutated.
type RunRecord struct {
	ID                 int64     `json:"id"`
	WorkflowID         int64     `json:"workflowId"`
	Name               string    `json:"name,omitempty"`
	Event              string    `json:"event,omitempty"`
	HeadBranch         string    `json:"headBranch"`
	HeadSHA            string    `json:"headSha"`
	Status             RunStatus `json:"status"`
	CreatedAt          time.Time `json:"createdAt"`
	HeadRepositoryID   int64     `json:"headRepositoryId"`
	PullRequestNumbers []int     `json:"pullRequestNumbers,omitempty"`
	HTMLURL            string    `json:"htmlUrl,omitempty"`
}

// JobRecord is one job of a workflow run.
type JobRecord struct {
	Name   string    `json:"name"`
	Status RunStatus `json:"status"`
}

// Workflow is a workflow definition of the repository.
type Workflow struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Path string `json:"path,omitempty"`
}

// RunPage is one page of runs returned by a list call.
type RunPage struct {
	TotalCount int         `json:"totalCount"`
	Runs       []RunRecord `json:"runs"`
}

// WorkflowRef identifies a target workflow either by numeric id or by its
// file name (e.g. "ci.yml"). Exactly one field is set.
type WorkflowRef struct {
	ID       int64  `json:"id,omitempty"`
	FileName string `json:"fileName,omitempty"`
}

// String returns the id or file name, whichever identifies the workflow.
func (w WorkflowRef) String() string {
	if w.FileName != "" {
		return w.FileName
	}
	return strconv.FormatInt(w.ID, 10)
}

// WorkflowSelector is the parsed workflow_id option. The zero value selects
// the workflow of the current run.
type WorkflowSelector struct {
	All  bool          `json:"all,omitempty"`
	Refs []WorkflowRef `json:"refs,omitempty"`
}

// IsCurrent reports whether the selector defers to the current run's workflow.
func (s WorkflowSelector) IsCurrent() bool {
	return !s.All && len(s.Refs) == 0
}

// EffectiveTarget is what candidate runs are compared against. It is derived
// once per invocation from the trigger context and the current run.
type EffectiveTarget struct {
	Branch              string `json:"branch"`
	HeadSHA             string `json:"headSha"`
	TriggerOriginRepoID int64  `json:"triggerOriginRepoId"`
}

// CancellationOutcome records one cancel request. Outcomes are reported and
// never retried.
type CancellationOutcome struct {
	RunID        int64         `json:"runId"`
	WorkflowID   int64         `json:"workflowId,omitempty"`
	HeadSHA      string        `json:"headSha,omitempty"`
	Self         bool          `json:"self,omitempty"`
	RequestedAt  time.Time     `json:"requestedAt"`
	Result       OutcomeResult `json:"result"`
	StatusCode   int           `json:"statusCode,omitempty"`
	ErrorMessage string        `json:"error,omitempty"`
}

// WorkflowReport is the result of one target workflow's pipeline.
type WorkflowReport struct {
	Workflow  WorkflowRef           `json:"workflow"`
	Scanned   int                   `json:"scanned"`
	Selected  []RunRecord           `json:"selected,omitempty"`
	Vetoed    bool                  `json:"vetoed,omitempty"`
	Outcomes  []CancellationOutcome `json:"outcomes,omitempty"`
	Error     string                `json:"error,omitempty"`
	DeferSelf bool                  `json:"deferSelf,omitempty"`
	// DuplicateOf is set when a file-name target resolved to a workflow that
	// is also targeted by id. Such a pipeline cancels nothing.
	DuplicateOf int64 `json:"duplicateOf,omitempty"`
}

// Failed reports whether the pipeline ended in a recorded failure.
func (r WorkflowReport) Failed() bool {
	return r.Error != ""
}

// Report aggregates every pipeline of one invocation.
type Report struct {
	InvocationID string           `json:"invocationId"`
	CurrentRunID int64            `json:"currentRunId"`
	Target       EffectiveTarget  `json:"target"`
	Workflows    []WorkflowReport `json:"workflows"`
	// Self is the deferred self-cancellation, issued after every pipeline settled.
	Self     *CancellationOutcome `json:"self,omitempty"`
	Started  time.Time            `json:"started"`
	Finished time.Time            `json:"finished"`
}

// Outcomes flattens every outcome in submission order, self last.
func (r *Report) Outcomes() []CancellationOutcome {
	var out []CancellationOutcome
	for _, w := range r.Workflows {
		out = append(out, w.Outcomes...)
	}
	if r.Self != nil {
		out = append(out, *r.Self)
	}
	return out
}

// FailedWorkflows counts pipelines that ended in a recorded failure.
func (r *Report) FailedWorkflows() int {
	n := 0
	for _, w := range r.Workflows {
		if w.Failed() {
			n++
		}
	}
	return n
}
