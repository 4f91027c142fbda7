package ghapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dwsmith1983/cancel-workflow/pkg/types"
)

const runJSON = `{
	"id": %d,
	"workflow_id": 10,
	"name": "CI",
	"event": "push",
	"head_branch": "main",
	"head_sha": "abc123",
	"status": "in_progress",
	"created_at": "2024-05-01T12:00:00Z",
	"html_url": "https://github.com/o/r/actions/runs/%d",
	"head_repository": {"id": 42},
	"pull_requests": [{"number": 7}]
}`

func newTestClient(t *testing.T, mux *http.ServeMux, opts ...Option) *Client {
	t.Helper()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	opts = append([]Option{WithBaseURL(srv.URL), WithHTTPClient(srv.Client())}, opts...)
	c, err := New("token", "o", "r", opts...)
	require.NoError(t, err)
	return c
}

func TestNew_Validation(t *testing.T) {
	_, err := New("", "o", "r")
	var ce *types.ConfigError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "access_token", ce.Field)

	_, err = New("token", "o", "r", WithBaseURL("::not a url"))
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "api_url", ce.Field)

	c, err := New("token", "o", "r", WithBaseURL("https://ghe.example.com/api/v3"))
	require.NoError(t, err)
	assert.Equal(t, "https://ghe.example.com/api/v3/", c.gh.BaseURL.String())
}

func TestGetRun(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /repos/o/r/actions/runs/5", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer token", r.Header.Get("Authorization"))
		fmt.Fprintf(w, runJSON, 5, 5)
	})
	c := newTestClient(t, mux)

	run, err := c.GetRun(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, int64(5), run.ID)
	assert.Equal(t, int64(10), run.WorkflowID)
	assert.Equal(t, "main", run.HeadBranch)
	assert.Equal(t, "abc123", run.HeadSHA)
	assert.Equal(t, types.StatusInProgress, run.Status)
	assert.Equal(t, int64(42), run.HeadRepositoryID)
	assert.Equal(t, []int{7}, run.PullRequestNumbers)
	assert.True(t, run.CreatedAt.Equal(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)))
}

func TestGetRun_MissingHeadRepository(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /repos/o/r/actions/runs/5", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"id":5,"workflow_id":10,"status":"queued","created_at":"2024-05-01T12:00:00Z"}`)
	})
	c := newTestClient(t, mux)

	_, err := c.GetRun(context.Background(), 5)
	var dse *types.DataShapeError
	require.ErrorAs(t, err, &dse)
	assert.Equal(t, int64(5), dse.RunID)
	assert.Equal(t, "head_repository.id", dse.Field)
}

func TestGetRun_NotFound(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /repos/o/r/actions/runs/5", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"message":"Not Found"}`)
	})
	c := newTestClient(t, mux)

	_, err := c.GetRun(context.Background(), 5)
	var te *types.TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, types.FailurePermanent, te.Category)
	assert.Contains(t, te.Op, "get run 5")
}

func TestListWorkflows_Paginates(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /repos/o/r/actions/workflows", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("page") == "2" {
			fmt.Fprint(w, `{"total_count":2,"workflows":[{"id":20,"name":"Deploy","path":".github/workflows/deploy.yml"}]}`)
			return
		}
		w.Header().Set("Link", fmt.Sprintf(`<http://%s/repos/o/r/actions/workflows?page=2>; rel="next"`, r.Host))
		fmt.Fprint(w, `{"total_count":2,"workflows":[{"id":10,"name":"CI","path":".github/workflows/ci.yml"}]}`)
	})
	c := newTestClient(t, mux)

	wfs, err := c.ListWorkflows(context.Background())
	require.NoError(t, err)
	require.Len(t, wfs, 2)
	assert.Equal(t, int64(10), wfs[0].ID)
	assert.Equal(t, "Deploy", wfs[1].Name)
}

func TestListRuns_ByID(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /repos/o/r/actions/workflows/10/runs", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "main", r.URL.Query().Get("branch"))
		assert.Equal(t, "50", r.URL.Query().Get("per_page"))
		fmt.Fprintf(w, `{"total_count":120,"workflow_runs":[`+runJSON+`,`+runJSON+`]}`, 1, 1, 2, 2)
	})
	c := newTestClient(t, mux)

	page, err := c.ListRuns(context.Background(), types.WorkflowRef{ID: 10}, "main", 50)
	require.NoError(t, err)
	assert.Equal(t, 120, page.TotalCount)
	require.Len(t, page.Runs, 2)
	assert.Equal(t, int64(1), page.Runs[0].ID)
	assert.Equal(t, int64(2), page.Runs[1].ID)
}

func TestListRuns_ByFileName(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /repos/o/r/actions/workflows/ci.yml/runs", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"total_count":0,"workflow_runs":[]}`)
	})
	c := newTestClient(t, mux)

	page, err := c.ListRuns(context.Background(), types.WorkflowRef{FileName: "ci.yml"}, "", 100)
	require.NoError(t, err)
	assert.Empty(t, page.Runs)
}

func TestListRuns_MalformedRun(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /repos/o/r/actions/workflows/10/runs", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"total_count":1,"workflow_runs":[{"id":3,"head_repository":{"id":1}}]}`)
	})
	c := newTestClient(t, mux)

	_, err := c.ListRuns(context.Background(), types.WorkflowRef{ID: 10}, "main", 100)
	var dse *types.DataShapeError
	require.ErrorAs(t, err, &dse)
	assert.Equal(t, "created_at", dse.Field)
}

func TestListJobs(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /repos/o/r/actions/runs/5/jobs", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "latest", r.URL.Query().Get("filter"))
		fmt.Fprint(w, `{"total_count":2,"jobs":[{"name":"build","status":"completed"},{"name":"deploy","status":"in_progress"}]}`)
	})
	c := newTestClient(t, mux)

	jobs, err := c.ListJobs(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, []types.JobRecord{
		{Name: "build", Status: types.StatusCompleted},
		{Name: "deploy", Status: types.StatusInProgress},
	}, jobs)
}

func TestListJobs_FollowsPages(t *testing.T) {
	mux := http.NewServeMux()
	var pages atomic.Int32
	mux.HandleFunc("GET /repos/o/r/actions/runs/5/jobs", func(w http.ResponseWriter, r *http.Request) {
		pages.Add(1)
		assert.Equal(t, "latest", r.URL.Query().Get("filter"))
		if r.URL.Query().Get("page") == "2" {
			fmt.Fprint(w, `{"total_count":101,"jobs":[{"name":"deploy","status":"in_progress"}]}`)
			return
		}
		w.Header().Set("Link", fmt.Sprintf(`<http://%s/repos/o/r/actions/runs/5/jobs?filter=latest&per_page=100&page=2>; rel="next"`, r.Host))
		jobs := make([]string, 100)
		for i := range jobs {
			jobs[i] = fmt.Sprintf(`{"name":"matrix (%d)","status":"completed"}`, i)
		}
		fmt.Fprintf(w, `{"total_count":101,"jobs":[%s]}`, strings.Join(jobs, ","))
	})
	c := newTestClient(t, mux)

	jobs, err := c.ListJobs(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, jobs, 101)
	assert.Equal(t, int32(2), pages.Load())
	assert.Equal(t, types.JobRecord{Name: "deploy", Status: types.StatusInProgress}, jobs[100])
}

func TestCancelRun_Accepted(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /repos/o/r/actions/runs/5/cancel", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
		fmt.Fprint(w, `{}`)
	})
	c := newTestClient(t, mux)

	status, err := c.CancelRun(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, http.StatusAccepted, status)
}

func TestCancelRun_Conflict(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /repos/o/r/actions/runs/5/cancel", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		fmt.Fprint(w, `{"message":"Cannot cancel a workflow run that is completed."}`)
	})
	c := newTestClient(t, mux)

	status, err := c.CancelRun(context.Background(), 5)
	var te *types.TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, types.FailurePermanent, te.Category)
}

func TestBreaker_OpensOnTransientFailures(t *testing.T) {
	var hits atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("POST /repos/o/r/actions/runs/{id}/cancel", func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	})
	c := newTestClient(t, mux, WithBreakerThreshold(2))

	for i := int64(1); i <= 2; i++ {
		_, err := c.CancelRun(context.Background(), i)
		require.Error(t, err)
	}
	_, err := c.CancelRun(context.Background(), 3)
	require.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, int32(2), hits.Load())
}

func TestBreaker_IgnoresPermanentFailures(t *testing.T) {
	var hits atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("POST /repos/o/r/actions/runs/{id}/cancel", func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusForbidden)
		fmt.Fprint(w, `{"message":"Resource not accessible by integration"}`)
	})
	c := newTestClient(t, mux, WithBreakerThreshold(2))

	for i := int64(1); i <= 4; i++ {
		_, err := c.CancelRun(context.Background(), i)
		require.Error(t, err)
		assert.False(t, errors.Is(err, gobreaker.ErrOpenState))
	}
	assert.Equal(t, int32(4), hits.Load())
}

func TestBreaker_Disabled(t *testing.T) {
	var hits atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("POST /repos/o/r/actions/runs/{id}/cancel", func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	})
	c := newTestClient(t, mux, WithBreakerThreshold(0))
	assert.Nil(t, c.breaker)

	for i := int64(1); i <= 6; i++ {
		_, _ = c.CancelRun(context.Background(), i)
	}
	assert.Equal(t, int32(6), hits.Load())
}
