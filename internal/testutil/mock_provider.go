// Package testutil provides shared test utilities for cancel-workflow.
package testutil

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dwsmith1983/cancel-workflow/internal/provider"
	"github.com/dwsmith1983/cancel-workflow/pkg/types"
)

// Compile-time interface satisfaction check.
var _ provider.ControlPlane = (*MockProvider)(nil)

// CancelCall records one CancelRun invocation. Started and Finished are
// positions in a sequence shared by every call, so ordering between calls
// can be asserted without relying on wall-clock time.
type CancelCall struct {
	RunID    int64
	Started  int64
	Finished int64
}

// MockProvider is an in-memory ControlPlane implementation for testing.
type MockProvider struct {
	mu        sync.Mutex
	runs      map[int64]types.RunRecord
	byFlow    map[string][]int64 // key: WorkflowRef.String()
	workflows []types.Workflow
	jobs      map[int64][]types.JobRecord

	getRunErr        error
	listWorkflowsErr error
	listRunsErr      map[string]error
	listJobsErr      map[int64]error
	cancelErr        map[int64]error

	// CancelDelay is slept inside every CancelRun call.
	CancelDelay time.Duration

	cancels    []CancelCall
	listedRuns []string
	seq        atomic.Int64
	jobCalls   atomic.Int64
	inFlight   atomic.Int64
	maxFlight  atomic.Int64
}

// NewMockProvider creates a new in-memory mock control plane.
func NewMockProvider() *MockProvider {
	return &MockProvider{
		runs:        make(map[int64]types.RunRecord),
		byFlow:      make(map[string][]int64),
		jobs:        make(map[int64][]types.JobRecord),
		listRunsErr: make(map[string]error),
		listJobsErr: make(map[int64]error),
		cancelErr:   make(map[int64]error),
	}
}

// AddWorkflow registers a repository workflow.
func (m *MockProvider) AddWorkflow(w types.Workflow) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.workflows = append(m.workflows, w)
}

// AddRun stores a run under its workflow id. Runs are listed in insertion order.
func (m *MockProvider) AddRun(r types.RunRecord) {
	m.AddRunTo(types.WorkflowRef{ID: r.WorkflowID}, r)
}

// AddRunTo stores a run under an explicit workflow reference (e.g. a file name).
func (m *MockProvider) AddRunTo(ref types.WorkflowRef, r types.RunRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs[r.ID] = r
	key := ref.String()
	m.byFlow[key] = append(m.byFlow[key], r.ID)
}

// SetJobs sets the jobs of a run.
func (m *MockProvider) SetJobs(runID int64, jobs ...types.JobRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs[runID] = jobs
}

// FailGetRun makes every GetRun call fail.
func (m *MockProvider) FailGetRun(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.getRunErr = err
}

// FailListWorkflows makes ListWorkflows fail.
func (m *MockProvider) FailListWorkflows(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listWorkflowsErr = err
}

// FailListRuns makes ListRuns fail for one workflow.
func (m *MockProvider) FailListRuns(ref types.WorkflowRef, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listRunsErr[ref.String()] = err
}

// FailListJobs makes ListJobs fail for one run.
func (m *MockProvider) FailListJobs(runID int64, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listJobsErr[runID] = err
}

// FailCancel makes CancelRun fail for one run.
func (m *MockProvider) FailCancel(runID int64, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cancelErr[runID] = err
}

func (m *MockProvider) GetRun(_ context.Context, runID int64) (*types.RunRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getRunErr != nil {
		return nil, m.getRunErr
	}
	r, ok := m.runs[runID]
	if !ok {
		return nil, fmt.Errorf("run %d not found", runID)
	}
	return &r, nil
}

func (m *MockProvider) ListWorkflows(_ context.Context) ([]types.Workflow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listWorkflowsErr != nil {
		return nil, m.listWorkflowsErr
	}
	out := make([]types.Workflow, len(m.workflows))
	copy(out, m.workflows)
	return out, nil
}

func (m *MockProvider) ListRuns(_ context.Context, ref types.WorkflowRef, branch string, perPage int) (*types.RunPage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := ref.String()
	m.listedRuns = append(m.listedRuns, key)
	if err := m.listRunsErr[key]; err != nil {
		return nil, err
	}

	var runs []types.RunRecord
	for _, id := range m.byFlow[key] {
		r := m.runs[id]
		if branch != "" && r.HeadBranch != branch {
			continue
		}
		runs = append(runs, r)
	}
	page := &types.RunPage{TotalCount: len(runs), Runs: runs}
	if perPage > 0 && len(runs) > perPage {
		page.Runs = runs[:perPage]
	}
	return page, nil
}

func (m *MockProvider) ListJobs(_ context.Context, runID int64) ([]types.JobRecord, error) {
	m.jobCalls.Add(1)
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.listJobsErr[runID]; err != nil {
		return nil, err
	}
	return m.jobs[runID], nil
}

func (m *MockProvider) CancelRun(_ context.Context, runID int64) (int, error) {
	started := m.seq.Add(1)
	n := m.inFlight.Add(1)
	for {
		peak := m.maxFlight.Load()
		if n <= peak || m.maxFlight.CompareAndSwap(peak, n) {
			break
		}
	}
	if m.CancelDelay > 0 {
		time.Sleep(m.CancelDelay)
	}
	m.inFlight.Add(-1)
	finished := m.seq.Add(1)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.cancels = append(m.cancels, CancelCall{RunID: runID, Started: started, Finished: finished})
	if err := m.cancelErr[runID]; err != nil {
		return 0, err
	}
	return 202, nil
}

// Cancels returns every CancelRun call ordered by start.
func (m *MockProvider) Cancels() []CancelCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]CancelCall, len(m.cancels))
	copy(out, m.cancels)
	sort.Slice(out, func(i, j int) bool { return out[i].Started < out[j].Started })
	return out
}

// CancelledIDs returns the ids passed to CancelRun, ordered by start.
func (m *MockProvider) CancelledIDs() []int64 {
	var ids []int64
	for _, c := range m.Cancels() {
		ids = append(ids, c.RunID)
	}
	return ids
}

// ListedWorkflows returns the workflow keys passed to ListRuns, in call order.
func (m *MockProvider) ListedWorkflows() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.listedRuns))
	copy(out, m.listedRuns)
	return out
}

// JobCalls returns the number of ListJobs calls.
func (m *MockProvider) JobCalls() int64 {
	return m.jobCalls.Load()
}

// MaxInFlight returns the highest number of concurrent CancelRun calls seen.
func (m *MockProvider) MaxInFlight() int64 {
	return m.maxFlight.Load()
}
