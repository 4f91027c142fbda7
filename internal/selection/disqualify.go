package selection

import (
	"context"
	"fmt"

	"github.com/dwsmith1983/cancel-workflow/internal/lifecycle"
	"github.com/dwsmith1983/cancel-workflow/pkg/types"
)

// JobFetcher lists the jobs of a run.
type JobFetcher func(ctx context.Context, runID int64) ([]types.JobRecord, error)

// Veto names the in-progress protected job that blocked cancellation.
type Veto struct {
	RunID int64
	Job   string
}

// Disqualified inspects the jobs of every candidate and returns a Veto when
// any candidate has a protected job in progress. A veto empties the whole
// workflow's selection, not just the offending run. With no protected names
// the check is skipped and no jobs are fetched.
func Disqualified(ctx context.Context, candidates []types.RunRecord, protected []string, fetch JobFetcher) (*Veto, error) {
	if len(protected) == 0 || len(candidates) == 0 {
		return nil, nil
	}

	names := make(map[string]bool, len(protected))
	for _, n := range protected {
		names[n] = true
	}

	for _, run := range candidates {
		jobs, err := fetch(ctx, run.ID)
		if err != nil {
			return nil, fmt.Errorf("listing jobs of run %d: %w", run.ID, err)
		}
		for _, job := range jobs {
			if lifecycle.IsRunning(job.Status) && names[job.Name] {
				return &Veto{RunID: run.ID, Job: job.Name}, nil
			}
		}
	}
	return nil, nil
}
