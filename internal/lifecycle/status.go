// Package lifecycle classifies workflow run and job statuses.
package lifecycle

import (
	"strings"

	"github.com/dwsmith1983/cancel-workflow/pkg/types"
)

// IsTerminal returns true if the status is a terminal (final) state.
func IsTerminal(status types.RunStatus) bool {
	return status == types.StatusCompleted
}

// IsRunning returns true for a job or run that is executing right now.
func IsRunning(status types.RunStatus) bool {
	return status == types.StatusInProgress
}

// Matches applies the status predicate. An empty filter selects every
// non-terminal status; otherwise the status must be listed in filter.
func Matches(status types.RunStatus, filter []types.RunStatus) bool {
	if len(filter) == 0 {
		return !IsTerminal(status)
	}
	for _, s := range filter {
		if s == status {
			return true
		}
	}
	return false
}

// ParseStatuses splits a comma separated status list. Tokens are trimmed,
// lower-cased and de-duplicated; empty tokens are dropped.
func ParseStatuses(raw string) []types.RunStatus {
	var (
		out  []types.RunStatus
		seen = make(map[types.RunStatus]bool)
	)
	for _, tok := range strings.Split(raw, ",") {
		s := types.RunStatus(strings.ToLower(strings.TrimSpace(tok)))
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
