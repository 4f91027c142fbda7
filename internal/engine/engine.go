// Package engine runs one cancel-workflow invocation: it resolves the target
// once, runs an isolated pipeline per target workflow, and cancels the
// current run last when a pipeline asked for it.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/dwsmith1983/cancel-workflow/internal/canceller"
	"github.com/dwsmith1983/cancel-workflow/internal/metrics"
	"github.com/dwsmith1983/cancel-workflow/internal/provider"
	"github.com/dwsmith1983/cancel-workflow/internal/selection"
	"github.com/dwsmith1983/cancel-workflow/internal/target"
	"github.com/dwsmith1983/cancel-workflow/internal/trigger"
	"github.com/dwsmith1983/cancel-workflow/pkg/types"
)

// Engine orchestrates the per-workflow pipelines of one invocation.
type Engine struct {
	cp       provider.ControlPlane
	cfg      types.Config
	executor *canceller.Executor
	logger   *slog.Logger
	metrics  *metrics.Recorder
	tracer   trace.Tracer
	now      func() time.Time
	newID    func() string
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the base logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m *metrics.Recorder) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithTracer sets the tracer for pipeline spans.
func WithTracer(t trace.Tracer) Option {
	return func(e *Engine) { e.tracer = t }
}

// WithClock overrides the clock used for report timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// New creates an Engine. One cancel executor, and therefore one concurrency
// limit, is shared by every pipeline.
func New(cp provider.ControlPlane, cfg types.Config, opts ...Option) *Engine {
	e := &Engine{
		cp:     cp,
		cfg:    cfg,
		logger: slog.Default(),
		tracer: otel.Tracer(metrics.MeterName),
		now:    time.Now,
		newID:  func() string { return ulid.Make().String() },
	}
	for _, o := range opts {
		o(e)
	}
	if e.cfg.PerPage <= 0 {
		e.cfg.PerPage = types.DefaultPerPage
	}
	e.executor = canceller.New(cp.CancelRun,
		canceller.WithConcurrency(e.cfg.MaxConcurrency),
		canceller.WithDryRun(e.cfg.DryRun),
		canceller.WithLogger(e.logger),
		canceller.WithMetrics(e.metrics),
		canceller.WithTracer(e.tracer),
		canceller.WithClock(e.now),
	)
	return e
}

// Run executes one invocation for the run described by tc. Only failures
// that leave nothing to process are returned as errors; a failing pipeline
// is recorded in its WorkflowReport and the others continue.
func (e *Engine) Run(ctx context.Context, tc trigger.Context) (*types.Report, error) {
	report := &types.Report{
		InvocationID: e.newID(),
		CurrentRunID: tc.RunID,
		Started:      e.now(),
	}
	log := e.logger.With("invocation", report.InvocationID)

	ctx, span := e.tracer.Start(ctx, "cancel superseded runs", trace.WithAttributes(
		attribute.String("invocation", report.InvocationID),
		attribute.Int64("run.id", tc.RunID),
		attribute.String("event", tc.EventName),
	))
	defer span.End()

	current, err := e.cp.GetRun(ctx, tc.RunID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "fetching current run")
		return nil, fmt.Errorf("fetching current run %d: %w", tc.RunID, err)
	}

	eff := trigger.Resolve(tc, *current)
	report.Target = eff
	log.Info("resolved target",
		"trigger", tc.Kind(),
		"branch", eff.Branch,
		"headSha", eff.HeadSHA,
		"originRepoId", eff.TriggerOriginRepoID,
	)

	refs, err := target.Resolve(ctx, e.cfg.Workflows, *current, e.cp.ListWorkflows)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "resolving target workflows")
		return nil, fmt.Errorf("resolving target workflows: %w", err)
	}

	byID := make(map[int64]bool, len(refs))
	for _, ref := range refs {
		if ref.ID != 0 {
			byID[ref.ID] = true
		}
	}

	report.Workflows = make([]types.WorkflowReport, len(refs))
	var g errgroup.Group
	for i, ref := range refs {
		g.Go(func() error {
			report.Workflows[i] = e.pipeline(ctx, log, ref, eff, *current, byID)
			return nil
		})
	}
	_ = g.Wait()

	// Every pipeline has settled; the current run goes last, at most once.
	for _, w := range report.Workflows {
		if w.DeferSelf {
			out := e.executor.Cancel(ctx, *current, true)
			report.Self = &out
			break
		}
	}

	report.Finished = e.now()
	if n := report.FailedWorkflows(); n > 0 {
		span.SetStatus(codes.Error, fmt.Sprintf("%d workflow pipelines failed", n))
	}
	log.Info("done",
		"workflows", len(report.Workflows),
		"failedWorkflows", report.FailedWorkflows(),
		"cancellations", len(report.Outcomes()),
	)
	return report, nil
}

// pipeline processes one target workflow. It never returns an error: a
// failure is logged and recorded in the report, and a panic is recovered so
// sibling pipelines keep running. A file-name target whose runs belong to a
// workflow in byID is left to that workflow's pipeline.
func (e *Engine) pipeline(ctx context.Context, log *slog.Logger, ref types.WorkflowRef, eff types.EffectiveTarget, current types.RunRecord, byID map[int64]bool) (rep types.WorkflowReport) {
	rep.Workflow = ref
	name := ref.String()
	log = log.With("workflow", name)

	ctx, span := e.tracer.Start(ctx, "workflow pipeline", trace.WithAttributes(attribute.String("workflow", name)))
	defer span.End()

	fail := func(err error) {
		rep.Error = err.Error()
		rep.Selected = nil
		rep.DeferSelf = false
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		e.metrics.PipelineError(ctx, name)
		log.Error("workflow pipeline failed", "error", err)
	}
	defer func() {
		if r := recover(); r != nil {
			fail(fmt.Errorf("panic: %v", r))
		}
	}()

	page, err := e.cp.ListRuns(ctx, ref, eff.Branch, e.cfg.PerPage)
	if err != nil {
		fail(fmt.Errorf("listing runs: %w", err))
		return rep
	}
	rep.Scanned = len(page.Runs)
	e.metrics.RunsScanned(ctx, name, len(page.Runs))
	log.Info(fmt.Sprintf("found %d runs total", page.TotalCount), "fetched", len(page.Runs))

	if id := duplicateOf(ref, page.Runs, byID); id != 0 {
		rep.DuplicateOf = id
		log.Info("workflow also targeted by id, skipping", "workflowId", id)
		return rep
	}

	opts := selection.OptionsFrom(e.cfg)
	opts.SkipSelf = !ownWorkflow(ref, page.Runs, current)
	selected := selection.Select(page.Runs, eff, current, opts)

	veto, err := selection.Disqualified(ctx, selected, e.cfg.DisqualifyingJobs, e.cp.ListJobs)
	if err != nil {
		fail(err)
		return rep
	}
	if veto != nil {
		rep.Vetoed = true
		e.metrics.Veto(ctx, name)
		log.Info("protected job in progress, not cancelling", "runId", veto.RunID, "job", veto.Job)
		return rep
	}

	rep.Selected = selected
	e.metrics.RunsSelected(ctx, name, len(selected))
	log.Info(fmt.Sprintf("found %d runs to cancel", len(selected)))

	others := make([]types.RunRecord, 0, len(selected))
	for _, r := range selected {
		if r.ID == current.ID {
			rep.DeferSelf = true
			continue
		}
		others = append(others, r)
	}
	rep.Outcomes = e.executor.Execute(ctx, others)
	return rep
}

func duplicateOf(ref types.WorkflowRef, runs []types.RunRecord, byID map[int64]bool) int64 {
	if ref.FileName == "" {
		return 0
	}
	for _, r := range runs {
		if byID[r.WorkflowID] {
			return r.WorkflowID
		}
	}
	return 0
}

// ownWorkflow reports whether ref names the current run's workflow. File
// name refs are matched through the workflow id of the fetched runs.
func ownWorkflow(ref types.WorkflowRef, runs []types.RunRecord, current types.RunRecord) bool {
	if ref.ID != 0 {
		return ref.ID == current.WorkflowID
	}
	for _, r := range runs {
		if r.WorkflowID == current.WorkflowID {
			return true
		}
	}
	return false
}
