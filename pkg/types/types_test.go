package types

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWorkflowRef_String(t *testing.T) {
	assert.Equal(t, "42", WorkflowRef{ID: 42}.String())
	assert.Equal(t, "ci.yml", WorkflowRef{FileName: "ci.yml"}.String())
}

func TestWorkflowSelector_IsCurrent(t *testing.T) {
	assert.True(t, WorkflowSelector{}.IsCurrent())
	assert.False(t, WorkflowSelector{All: true}.IsCurrent())
	assert.False(t, WorkflowSelector{Refs: []WorkflowRef{{ID: 1}}}.IsCurrent())
}

func TestReport_OutcomesSelfLast(t *testing.T) {
	r := &Report{
		Workflows: []WorkflowReport{
			{Outcomes: []CancellationOutcome{{RunID: 1}, {RunID: 2}}},
			{Error: "boom"},
			{Outcomes: []CancellationOutcome{{RunID: 5}}},
		},
		Self: &CancellationOutcome{RunID: 9, Self: true},
	}

	var ids []int64
	for _, o := range r.Outcomes() {
		ids = append(ids, o.RunID)
	}
	assert.Equal(t, []int64{1, 2, 5, 9}, ids)
	assert.Equal(t, 1, r.FailedWorkflows())
}

func TestErrors(t *testing.T) {
	ce := &ConfigError{Field: "workflow_id", Reason: `malformed workflow id "x"`}
	assert.Equal(t, `config: workflow_id: malformed workflow id "x"`, ce.Error())
	assert.Equal(t, "config: missing", (&ConfigError{Reason: "missing"}).Error())

	inner := errors.New("502 bad gateway")
	te := &TransportError{Op: "list runs", Category: FailureTransient, Err: inner}
	assert.ErrorIs(t, te, inner)
	assert.Equal(t, "list runs: 502 bad gateway", te.Error())

	assert.Equal(t, "malformed response: run 4 missing created_at", (&DataShapeError{RunID: 4, Field: "created_at"}).Error())
	assert.Equal(t, "malformed response: missing id", (&DataShapeError{Field: "id"}).Error())
}

func TestIsFatal(t *testing.T) {
	assert.True(t, IsFatal(&ConfigError{Field: "access_token", Reason: "is required"}))
	assert.True(t, IsFatal(fmt.Errorf("creating API client: %w", &ConfigError{Reason: "bad"})))
	assert.False(t, IsFatal(&TransportError{Op: "get run", Err: errors.New("x")}))
	assert.False(t, IsFatal(&DataShapeError{Field: "id"}))
	assert.False(t, IsFatal(nil))
}
