// Package canceller issues cancel requests for selected runs.
package canceller

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/dwsmith1983/cancel-workflow/internal/metrics"
	"github.com/dwsmith1983/cancel-workflow/pkg/types"
)

// CancelFunc requests cancellation of one run and returns the provider's
// status code.
type CancelFunc func(ctx context.Context, runID int64) (int, error)

// Executor dispatches cancel requests. A single Executor may be shared by
// several pipelines; its concurrency limit then applies to all of them.
type Executor struct {
	cancel  CancelFunc
	sem     *semaphore.Weighted
	logger  *slog.Logger
	metrics *metrics.Recorder
	tracer  trace.Tracer
	dryRun  bool
	now     func() time.Time
}

// Option configures an Executor.
type Option func(*Executor)

// WithConcurrency caps the number of in-flight cancel requests. Values
// below one mean one.
func WithConcurrency(n int) Option {
	if n < 1 {
		n = 1
	}
	return func(e *Executor) { e.sem = semaphore.NewWeighted(int64(n)) }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Executor) { e.logger = l }
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m *metrics.Recorder) Option {
	return func(e *Executor) { e.metrics = m }
}

// WithTracer sets the tracer used for cancel spans.
func WithTracer(t trace.Tracer) Option {
	return func(e *Executor) { e.tracer = t }
}

// WithDryRun records every run as skipped without calling the provider.
func WithDryRun(dryRun bool) Option {
	return func(e *Executor) { e.dryRun = dryRun }
}

// WithClock overrides the clock used for RequestedAt.
func WithClock(now func() time.Time) Option {
	return func(e *Executor) { e.now = now }
}

// New creates an Executor.
func New(cancel CancelFunc, opts ...Option) *Executor {
	e := &Executor{
		cancel: cancel,
		sem:    semaphore.NewWeighted(types.DefaultMaxConcurrency),
		logger: slog.Default(),
		tracer: otel.Tracer(metrics.MeterName),
		now:    time.Now,
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Execute cancels runs concurrently and returns one outcome per run in list
// order. A failed request is recorded in its outcome and never stops the
// remaining ones. The current run is not expected here; callers cancel it
// through Cancel once everything else has settled.
func (e *Executor) Execute(ctx context.Context, runs []types.RunRecord) []types.CancellationOutcome {
	outcomes := make([]types.CancellationOutcome, len(runs))

	var g errgroup.Group
	for i, run := range runs {
		g.Go(func() error {
			outcomes[i] = e.Cancel(ctx, run, false)
			return nil
		})
	}
	_ = g.Wait()
	return outcomes
}

// Cancel issues a single cancel request and records its outcome.
func (e *Executor) Cancel(ctx context.Context, run types.RunRecord, self bool) types.CancellationOutcome {
	out := types.CancellationOutcome{
		RunID:       run.ID,
		WorkflowID:  run.WorkflowID,
		HeadSHA:     run.HeadSHA,
		Self:        self,
		RequestedAt: e.now(),
	}
	log := e.logger.With("runId", run.ID, "workflowId", run.WorkflowID, "self", self)

	if e.dryRun {
		out.Result = types.OutcomeSkipped
		log.Info("dry run, not cancelling run")
		e.metrics.Cancellation(ctx, string(out.Result), 0)
		return out
	}

	if err := e.acquire(ctx); err != nil {
		out.Result = types.OutcomeFailed
		out.ErrorMessage = err.Error()
		log.Warn("cancel not attempted", "error", err)
		e.metrics.Cancellation(ctx, string(out.Result), 0)
		return out
	}
	defer e.sem.Release(1)

	ctx, span := e.tracer.Start(ctx, "cancel run", trace.WithAttributes(
		attribute.Int64("run.id", run.ID),
		attribute.Bool("run.self", self),
	))
	defer span.End()

	log.Info("cancelling run")
	start := time.Now()
	status, err := e.cancel(ctx, run.ID)
	elapsed := time.Since(start)
	out.StatusCode = status
	span.SetAttributes(attribute.Int("http.status_code", status))
	if err != nil {
		out.Result = types.OutcomeFailed
		out.ErrorMessage = err.Error()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		log.Error("cancel failed", "error", err)
	} else {
		out.Result = types.OutcomeOK
		log.Info("cancel status", "status", status)
	}
	e.metrics.Cancellation(ctx, string(out.Result), elapsed)
	return out
}

func (e *Executor) acquire(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return e.sem.Acquire(ctx, 1)
}
