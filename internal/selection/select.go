// Package selection decides which runs of one target workflow are superseded
// and must be cancelled.
package selection

import (
	"time"

	"github.com/dwsmith1983/cancel-workflow/internal/lifecycle"
	"github.com/dwsmith1983/cancel-workflow/pkg/types"
)

// Options are the per-invocation switches of the candidate filter.
type Options struct {
	IgnoreSHA    bool
	AllButLatest bool
	Statuses     []types.RunStatus
	// SkipSelf suppresses the deferred self entry. Set it when the scanned
	// workflow is not the current run's own workflow.
	SkipSelf bool
}

// OptionsFrom copies the filter switches out of the user configuration.
func OptionsFrom(cfg types.Config) Options {
	return Options{
		IgnoreSHA:    cfg.IgnoreSHA,
		AllButLatest: cfg.AllButLatest,
		Statuses:     cfg.Statuses,
	}
}

// Select returns the runs to cancel, in fetch order. In all-but-latest mode
// the current run is appended last when a newer run exists; it must be
// cancelled only after every other entry. Select is pure: the same input
// always yields the same output.
func Select(runs []types.RunRecord, target types.EffectiveTarget, current types.RunRecord, opts Options) []types.RunRecord {
	cutoff := Cutoff(runs, current, opts.AllButLatest)

	var out []types.RunRecord
	for _, r := range runs {
		if !keep(r, target, current, opts) {
			continue
		}
		if r.CreatedAt.Before(cutoff) {
			out = append(out, r)
		}
	}

	if opts.AllButLatest && !opts.SkipSelf && current.CreatedAt.Before(cutoff) {
		out = append(out, current)
	}
	return out
}

// Cutoff is the enqueue time before which a run counts as superseded. By
// default it is the current run's creation time. In all-but-latest mode it is
// the newest creation time among the fetched runs and the current run, so
// only the newest run survives.
func Cutoff(runs []types.RunRecord, current types.RunRecord, allButLatest bool) time.Time {
	cutoff := current.CreatedAt
	if !allButLatest {
		return cutoff
	}
	for _, r := range runs {
		if r.CreatedAt.After(cutoff) {
			cutoff = r.CreatedAt
		}
	}
	return cutoff
}

// keep is the branch, origin, identity, sha and status predicate.
func keep(r types.RunRecord, target types.EffectiveTarget, current types.RunRecord, opts Options) bool {
	if r.HeadBranch != target.Branch {
		return false
	}
	// Runs queued from another fork are never touched.
	if r.HeadRepositoryID != target.TriggerOriginRepoID {
		return false
	}
	if r.ID == current.ID {
		return false
	}
	if !opts.IgnoreSHA && r.HeadSHA == target.HeadSHA {
		return false
	}
	return lifecycle.Matches(r.Status, opts.Statuses)
}
