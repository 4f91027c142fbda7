package testutil

import (
	"time"

	"github.com/dwsmith1983/cancel-workflow/pkg/types"
)

// Epoch is a fixed base time for building run timestamps.
var Epoch = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

// Run builds a RunRecord created n minutes after Epoch.
func Run(id, workflowID int64, branch, sha string, status types.RunStatus, minute int, repoID int64) types.RunRecord {
	return types.RunRecord{
		ID:               id,
		WorkflowID:       workflowID,
		HeadBranch:       branch,
		HeadSHA:          sha,
		Status:           status,
		CreatedAt:        Epoch.Add(time.Duration(minute) * time.Minute),
		HeadRepositoryID: repoID,
	}
}

// IDs extracts run ids preserving order.
func IDs(runs []types.RunRecord) []int64 {
	out := make([]int64, 0, len(runs))
	for _, r := range runs {
		out = append(out, r.ID)
	}
	return out
}
