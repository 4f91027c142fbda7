// Package ghapi implements provider.ControlPlane against the GitHub Actions
// REST API.
package ghapi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/go-github/v69/github"
	"github.com/sony/gobreaker"

	"github.com/dwsmith1983/cancel-workflow/internal/provider"
	"github.com/dwsmith1983/cancel-workflow/pkg/types"
)

var _ provider.ControlPlane = (*Client)(nil)

// Client talks to one repository's Actions API. Every call goes through a
// circuit breaker so a failing API stops being hammered by sibling
// pipelines.
type Client struct {
	gh      *github.Client
	owner   string
	repo    string
	breaker *gobreaker.CircuitBreaker
	logger  *slog.Logger

	httpClient       *http.Client
	baseURL          string
	breakerThreshold int
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithBaseURL points the client at a GitHub Enterprise or test server.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = u }
}

// WithBreakerThreshold sets how many consecutive transient failures open the
// breaker. Zero disables it.
func WithBreakerThreshold(n int) Option {
	return func(c *Client) { c.breakerThreshold = n }
}

// WithLogger sets the logger used for breaker state changes.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// New creates a Client for owner/repo authenticated with token.
func New(token, owner, repo string, opts ...Option) (*Client, error) {
	c := &Client{
		owner:            owner,
		repo:             repo,
		logger:           slog.Default(),
		baseURL:          types.DefaultAPIURL,
		breakerThreshold: types.DefaultBreakerThreshold,
	}
	for _, o := range opts {
		o(c)
	}

	if token == "" {
		return nil, &types.ConfigError{Field: "access_token", Reason: "is required"}
	}
	base, err := url.Parse(c.baseURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, &types.ConfigError{Field: "api_url", Reason: fmt.Sprintf("invalid URL %q", c.baseURL)}
	}
	if !strings.HasSuffix(base.Path, "/") {
		base.Path += "/"
	}

	c.gh = github.NewClient(c.httpClient).WithAuthToken(token)
	c.gh.BaseURL = base

	if c.breakerThreshold > 0 {
		threshold := uint32(c.breakerThreshold)
		c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name: "github-actions",
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= threshold
			},
			IsSuccessful: func(err error) bool {
				return err == nil || ClassifyFailure(err) == types.FailurePermanent
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				c.logger.Warn("circuit breaker state change", "breaker", name, "from", from.String(), "to", to.String())
			},
		})
	}
	return c, nil
}

// call runs fn through the breaker and wraps any failure as a
// TransportError. It returns the HTTP status of the last response seen.
func (c *Client) call(op string, fn func() (*github.Response, error)) (int, error) {
	var status int
	run := func() (interface{}, error) {
		resp, err := fn()
		if resp != nil && resp.Response != nil {
			status = resp.StatusCode
		}
		return nil, err
	}

	var err error
	if c.breaker != nil {
		_, err = c.breaker.Execute(run)
	} else {
		_, err = run()
	}
	if err != nil {
		return status, &types.TransportError{Op: op, Category: ClassifyFailure(err), Err: err}
	}
	return status, nil
}

func (c *Client) GetRun(ctx context.Context, runID int64) (*types.RunRecord, error) {
	var run *github.WorkflowRun
	_, err := c.call(fmt.Sprintf("get run %d", runID), func() (*github.Response, error) {
		var (
			resp *github.Response
			err  error
		)
		run, resp, err = c.gh.Actions.GetWorkflowRunByID(ctx, c.owner, c.repo, runID)
		return resp, err
	})
	if err != nil {
		return nil, err
	}
	return toRunRecord(run)
}

// ListWorkflows follows pagination until every workflow is collected.
func (c *Client) ListWorkflows(ctx context.Context) ([]types.Workflow, error) {
	var out []types.Workflow
	opts := &github.ListOptions{PerPage: 100}
	for {
		var page *github.Workflows
		var next int
		_, err := c.call("list workflows", func() (*github.Response, error) {
			var (
				resp *github.Response
				err  error
			)
			page, resp, err = c.gh.Actions.ListWorkflows(ctx, c.owner, c.repo, opts)
			if resp != nil {
				next = resp.NextPage
			}
			return resp, err
		})
		if err != nil {
			return nil, err
		}
		for _, w := range page.Workflows {
			if w.GetID() == 0 {
				return nil, &types.DataShapeError{Field: "workflow id"}
			}
			out = append(out, types.Workflow{ID: w.GetID(), Name: w.GetName(), Path: w.GetPath()})
		}
		if next == 0 {
			return out, nil
		}
		opts.Page = next
	}
}

// ListRuns fetches a single page of runs of one workflow, newest first.
// An empty branch lists runs of every branch.
func (c *Client) ListRuns(ctx context.Context, workflow types.WorkflowRef, branch string, perPage int) (*types.RunPage, error) {
	opts := &github.ListWorkflowRunsOptions{
		Branch:      branch,
		ListOptions: github.ListOptions{PerPage: perPage},
	}

	var runs *github.WorkflowRuns
	_, err := c.call("list runs of workflow "+workflow.String(), func() (*github.Response, error) {
		var (
			resp *github.Response
			err  error
		)
		if workflow.FileName != "" {
			runs, resp, err = c.gh.Actions.ListWorkflowRunsByFileName(ctx, c.owner, c.repo, workflow.FileName, opts)
		} else {
			runs, resp, err = c.gh.Actions.ListWorkflowRunsByID(ctx, c.owner, c.repo, workflow.ID, opts)
		}
		return resp, err
	})
	if err != nil {
		return nil, err
	}

	page := &types.RunPage{TotalCount: runs.GetTotalCount()}
	for _, r := range runs.WorkflowRuns {
		rec, err := toRunRecord(r)
		if err != nil {
			return nil, err
		}
		page.Runs = append(page.Runs, *rec)
	}
	return page, nil
}

// ListJobs returns every job of the latest attempt of a run, following
// pagination so large matrix runs are seen in full.
func (c *Client) ListJobs(ctx context.Context, runID int64) ([]types.JobRecord, error) {
	opts := &github.ListWorkflowJobsOptions{
		Filter:      "latest",
		ListOptions: github.ListOptions{PerPage: 100},
	}

	var out []types.JobRecord
	for {
		var jobs *github.Jobs
		var next int
		_, err := c.call(fmt.Sprintf("list jobs of run %d", runID), func() (*github.Response, error) {
			var (
				resp *github.Response
				err  error
			)
			jobs, resp, err = c.gh.Actions.ListWorkflowJobs(ctx, c.owner, c.repo, runID, opts)
			if resp != nil {
				next = resp.NextPage
			}
			return resp, err
		})
		if err != nil {
			return nil, err
		}
		for _, j := range jobs.Jobs {
			out = append(out, types.JobRecord{Name: j.GetName(), Status: types.RunStatus(j.GetStatus())})
		}
		if next == 0 {
			return out, nil
		}
		opts.Page = next
	}
}

// CancelRun requests cancellation. GitHub answers 202 Accepted, which
// go-github reports as an AcceptedError; that is a success here.
func (c *Client) CancelRun(ctx context.Context, runID int64) (int, error) {
	return c.call(fmt.Sprintf("cancel run %d", runID), func() (*github.Response, error) {
		resp, err := c.gh.Actions.CancelWorkflowRunByID(ctx, c.owner, c.repo, runID)
		var accepted *github.AcceptedError
		if errors.As(err, &accepted) {
			return resp, nil
		}
		return resp, err
	})
}

func toRunRecord(r *github.WorkflowRun) (*types.RunRecord, error) {
	if r.GetID() == 0 {
		return nil, &types.DataShapeError{Field: "id"}
	}
	if r.CreatedAt == nil || r.CreatedAt.IsZero() {
		return nil, &types.DataShapeError{RunID: r.GetID(), Field: "created_at"}
	}
	if r.GetHeadRepository().GetID() == 0 {
		return nil, &types.DataShapeError{RunID: r.GetID(), Field: "head_repository.id"}
	}

	rec := &types.RunRecord{
		ID:               r.GetID(),
		WorkflowID:       r.GetWorkflowID(),
		Name:             r.GetName(),
		Event:            r.GetEvent(),
		HeadBranch:       r.GetHeadBranch(),
		HeadSHA:          r.GetHeadSHA(),
		Status:           types.RunStatus(r.GetStatus()),
		CreatedAt:        r.GetCreatedAt().Time,
		HeadRepositoryID: r.GetHeadRepository().GetID(),
		HTMLURL:          r.GetHTMLURL(),
	}
	for _, pr := range r.PullRequests {
		rec.PullRequestNumbers = append(rec.PullRequestNumbers, pr.GetNumber())
	}
	return rec, nil
}
