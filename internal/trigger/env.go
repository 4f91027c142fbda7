package trigger

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/dwsmith1983/cancel-workflow/pkg/types"
)

// eventPayload is the subset of the webhook payload at GITHUB_EVENT_PATH
// that selects the trigger shape.
type eventPayload struct {
	PullRequest *struct {
		Number int `json:"number"`
		Head   struct {
			Ref string `json:"ref"`
			SHA string `json:"sha"`
		} `json:"head"`
	} `json:"pull_request"`
	WorkflowRun *struct {
		HeadBranch     string `json:"head_branch"`
		HeadSHA        string `json:"head_sha"`
		Event          string `json:"event"`
		HeadRepository *struct {
			ID int64 `json:"id"`
		} `json:"head_repository"`
	} `json:"workflow_run"`
}

// LoadContext reads the trigger context from the GitHub Actions runtime
// environment. getenv is usually os.Getenv.
// Reads: GITHUB_EVENT_NAME, GITHUB_SHA, GITHUB_REF, GITHUB_REPOSITORY,
// GITHUB_RUN_ID, GITHUB_EVENT_PATH
func LoadContext(getenv func(string) string) (Context, error) {
	tc := Context{
		EventName: getenv("GITHUB_EVENT_NAME"),
		SHA:       getenv("GITHUB_SHA"),
		Ref:       getenv("GITHUB_REF"),
	}

	repo := getenv("GITHUB_REPOSITORY")
	owner, name, ok := strings.Cut(repo, "/")
	if !ok || owner == "" || name == "" {
		return Context{}, &types.ConfigError{Field: "GITHUB_REPOSITORY", Reason: fmt.Sprintf("expected owner/name, got %q", repo)}
	}
	tc.Owner, tc.Repo = owner, name

	runID, err := strconv.ParseInt(getenv("GITHUB_RUN_ID"), 10, 64)
	if err != nil || runID <= 0 {
		return Context{}, &types.ConfigError{Field: "GITHUB_RUN_ID", Reason: fmt.Sprintf("expected a run id, got %q", getenv("GITHUB_RUN_ID"))}
	}
	tc.RunID = runID

	tc.Source = Push{Ref: tc.Ref, SHA: tc.SHA}
	path := getenv("GITHUB_EVENT_PATH")
	if path == "" {
		return tc, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Context{}, fmt.Errorf("reading event payload: %w", err)
	}
	src, err := parsePayload(data)
	if err != nil {
		return Context{}, err
	}
	if src != nil {
		tc.Source = src
	}
	return tc, nil
}

// parsePayload returns the trigger shape described by a webhook payload, or
// nil when the payload carries neither a pull request nor a workflow run.
func parsePayload(data []byte) (Source, error) {
	var p eventPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parsing event payload: %w", err)
	}

	switch {
	case p.PullRequest != nil:
		return PullRequest{
			HeadRef: p.PullRequest.Head.Ref,
			HeadSHA: p.PullRequest.Head.SHA,
			Number:  p.PullRequest.Number,
		}, nil
	case p.WorkflowRun != nil:
		cr := ChainedRun{
			HeadBranch:  p.WorkflowRun.HeadBranch,
			HeadSHA:     p.WorkflowRun.HeadSHA,
			SourceEvent: p.WorkflowRun.Event,
		}
		if p.WorkflowRun.HeadRepository != nil {
			cr.OriginRepositoryID = p.WorkflowRun.HeadRepository.ID
		}
		return cr, nil
	default:
		return nil, nil
	}
}
