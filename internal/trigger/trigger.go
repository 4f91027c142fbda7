// Package trigger describes the event that started the current run and
// derives the effective branch and commit that candidate runs are compared
// against.
package trigger

// Source is the shape of the triggering event. The set is closed: Push,
// PullRequest and ChainedRun are the only implementations.
type Source interface {
	source()
}

// Push covers push, schedule and every other event without a pull request
// or upstream workflow run attached.
type Push struct {
	Ref string
	SHA string
}

// PullRequest is a pull_request or pull_request_target event.
type PullRequest struct {
	HeadRef string
	HeadSHA string
	Number  int
}

// ChainedRun is a workflow_run event: the current run was started by the
// completion of another run.
type ChainedRun struct {
	HeadBranch         string
	HeadSHA            string
	OriginRepositoryID int64
	SourceEvent        string
}

func (Push) source()        {}
func (PullRequest) source() {}
func (ChainedRun) source()  {}

// Context is the already-parsed trigger context of one invocation.
type Context struct {
	EventName string
	SHA       string
	Ref       string
	Owner     string
	Repo      string
	RunID     int64
	Source    Source
}

// Kind names the trigger shape for logging.
func (c Context) Kind() string {
	switch c.Source.(type) {
	case PullRequest:
		return "pull_request"
	case ChainedRun:
		return "workflow_run"
	default:
		return "push"
	}
}
