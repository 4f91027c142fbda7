package trigger

import (
	"strings"

	"github.com/dwsmith1983/cancel-workflow/pkg/types"
)

const branchRefPrefix = "refs/heads/"

// Resolve derives the effective target from the trigger context and the
// current run. Pull request fields win over chained-run fields, which win
// over the raw push ref and sha. A nil Source is treated as a push built from
// the context's own Ref and SHA.
func Resolve(tc Context, current types.RunRecord) types.EffectiveTarget {
	switch s := tc.Source.(type) {
	case PullRequest:
		return resolvePullRequest(s, current)
	case ChainedRun:
		return resolveChainedRun(s, current)
	case Push:
		return resolvePush(s, current)
	default:
		return resolvePush(Push{Ref: tc.Ref, SHA: tc.SHA}, current)
	}
}

func resolvePush(p Push, current types.RunRecord) types.EffectiveTarget {
	return types.EffectiveTarget{
		Branch:              strings.TrimPrefix(p.Ref, branchRefPrefix),
		HeadSHA:             p.SHA,
		TriggerOriginRepoID: current.HeadRepositoryID,
	}
}

func resolvePullRequest(pr PullRequest, current types.RunRecord) types.EffectiveTarget {
	return types.EffectiveTarget{
		Branch:              pr.HeadRef,
		HeadSHA:             pr.HeadSHA,
		TriggerOriginRepoID: current.HeadRepositoryID,
	}
}

func resolveChainedRun(cr ChainedRun, current types.RunRecord) types.EffectiveTarget {
	origin := cr.OriginRepositoryID
	if origin == 0 {
		origin = current.HeadRepositoryID
	}
	return types.EffectiveTarget{
		Branch:              cr.HeadBranch,
		HeadSHA:             cr.HeadSHA,
		TriggerOriginRepoID: origin,
	}
}
