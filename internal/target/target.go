// Package target expands the workflow_id option into the set of workflows
// whose runs are scanned.
package target

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/dwsmith1983/cancel-workflow/pkg/types"
)

const selectAll = "all"

var workflowFile = regexp.MustCompile(`^[A-Za-z0-9._-]+\.ya?ml$`)

// WorkflowLister lists every workflow of the repository.
type WorkflowLister func(ctx context.Context) ([]types.Workflow, error)

// ParseSelector parses the workflow_id option. Whitespace is stripped before
// splitting on commas. Each token must be a positive numeric id or a workflow
// file name; anything else is a ConfigError.
func ParseSelector(raw string) (types.WorkflowSelector, error) {
	stripped := strings.Join(strings.Fields(raw), "")
	if stripped == "" {
		return types.WorkflowSelector{}, nil
	}
	if strings.EqualFold(stripped, selectAll) {
		return types.WorkflowSelector{All: true}, nil
	}

	var (
		sel  types.WorkflowSelector
		seen = make(map[types.WorkflowRef]bool)
	)
	for _, tok := range strings.Split(stripped, ",") {
		ref, err := parseRef(tok)
		if err != nil {
			return types.WorkflowSelector{}, err
		}
		if seen[ref] {
			continue
		}
		seen[ref] = true
		sel.Refs = append(sel.Refs, ref)
	}
	return sel, nil
}

func parseRef(tok string) (types.WorkflowRef, error) {
	if id, err := strconv.ParseInt(tok, 10, 64); err == nil && id > 0 {
		return types.WorkflowRef{ID: id}, nil
	}
	if workflowFile.MatchString(tok) {
		return types.WorkflowRef{FileName: tok}, nil
	}
	return types.WorkflowRef{}, &types.ConfigError{
		Field:  "workflow_id",
		Reason: fmt.Sprintf("malformed workflow id %q", tok),
	}
}

// Resolve returns the workflows to scan. "all" costs one ListWorkflows call;
// an explicit list is returned as parsed; the zero selector yields the
// current run's workflow. The result carries no ordering guarantee.
func Resolve(ctx context.Context, sel types.WorkflowSelector, current types.RunRecord, list WorkflowLister) ([]types.WorkflowRef, error) {
	switch {
	case sel.All:
		workflows, err := list(ctx)
		if err != nil {
			return nil, fmt.Errorf("listing repository workflows: %w", err)
		}
		refs := make([]types.WorkflowRef, 0, len(workflows))
		seen := make(map[int64]bool, len(workflows))
		for _, w := range workflows {
			if seen[w.ID] {
				continue
			}
			seen[w.ID] = true
			refs = append(refs, types.WorkflowRef{ID: w.ID})
		}
		return refs, nil
	case len(sel.Refs) > 0:
		refs := make([]types.WorkflowRef, len(sel.Refs))
		copy(refs, sel.Refs)
		return refs, nil
	default:
		if current.WorkflowID == 0 {
			return nil, &types.DataShapeError{RunID: current.ID, Field: "workflow_id"}
		}
		return []types.WorkflowRef{{ID: current.WorkflowID}}, nil
	}
}
