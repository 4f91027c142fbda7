package trigger

import (
	"testing"

	"github.com/dwsmith1983/cancel-workflow/pkg/types"
	"github.com/stretchr/testify/assert"
)

func TestResolve(t *testing.T) {
	current := types.RunRecord{ID: 99, HeadRepositoryID: 7}

	tests := []struct {
		name string
		tc   Context
		want types.EffectiveTarget
	}{
		{
			name: "push strips refs/heads",
			tc:   Context{Source: Push{Ref: "refs/heads/main", SHA: "abc"}},
			want: types.EffectiveTarget{Branch: "main", HeadSHA: "abc", TriggerOriginRepoID: 7},
		},
		{
			name: "push keeps nested branch names",
			tc:   Context{Source: Push{Ref: "refs/heads/feature/x", SHA: "abc"}},
			want: types.EffectiveTarget{Branch: "feature/x", HeadSHA: "abc", TriggerOriginRepoID: 7},
		},
		{
			name: "push leaves tag refs untouched",
			tc:   Context{Source: Push{Ref: "refs/tags/v1", SHA: "abc"}},
			want: types.EffectiveTarget{Branch: "refs/tags/v1", HeadSHA: "abc", TriggerOriginRepoID: 7},
		},
		{
			name: "nil source falls back to context ref and sha",
			tc:   Context{Ref: "refs/heads/dev", SHA: "def"},
			want: types.EffectiveTarget{Branch: "dev", HeadSHA: "def", TriggerOriginRepoID: 7},
		},
		{
			name: "pull request wins over raw ref",
			tc: Context{
				Ref:    "refs/pull/5/merge",
				SHA:    "merge-sha",
				Source: PullRequest{HeadRef: "topic", HeadSHA: "head-sha", Number: 5},
			},
			want: types.EffectiveTarget{Branch: "topic", HeadSHA: "head-sha", TriggerOriginRepoID: 7},
		},
		{
			name: "chained run uses origin repository",
			tc: Context{
				Ref:    "refs/heads/main",
				SHA:    "main-sha",
				Source: ChainedRun{HeadBranch: "topic", HeadSHA: "fork-sha", OriginRepositoryID: 42, SourceEvent: "pull_request"},
			},
			want: types.EffectiveTarget{Branch: "topic", HeadSHA: "fork-sha", TriggerOriginRepoID: 42},
		},
		{
			name: "chained run without origin falls back to current run",
			tc:   Context{Source: ChainedRun{HeadBranch: "topic", HeadSHA: "s"}},
			want: types.EffectiveTarget{Branch: "topic", HeadSHA: "s", TriggerOriginRepoID: 7},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Resolve(tt.tc, current))
		})
	}
}

func TestContextKind(t *testing.T) {
	assert.Equal(t, "push", Context{}.Kind())
	assert.Equal(t, "push", Context{Source: Push{}}.Kind())
	assert.Equal(t, "pull_request", Context{Source: PullRequest{}}.Kind())
	assert.Equal(t, "workflow_run", Context{Source: ChainedRun{}}.Kind())
}
