// Package metrics exposes run-selection and cancellation counters as
// OpenTelemetry instruments.
package metrics

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MeterName is the instrumentation scope of every instrument.
const MeterName = "github.com/dwsmith1983/cancel-workflow"

// Recorder records pipeline counters. A nil *Recorder is a no-op.
type Recorder struct {
	runsScanned    metric.Int64Counter
	runsSelected   metric.Int64Counter
	cancellations  metric.Int64Counter
	vetoes         metric.Int64Counter
	pipelineErrors metric.Int64Counter
	cancelDuration metric.Float64Histogram
}

// New creates the instruments on meter.
func New(meter metric.Meter) (*Recorder, error) {
	var (
		r   Recorder
		err error
	)
	if r.runsScanned, err = meter.Int64Counter("cancel_workflow.runs.scanned",
		metric.WithDescription("Runs fetched for candidate filtering"), metric.WithUnit("{run}")); err != nil {
		return nil, err
	}
	if r.runsSelected, err = meter.Int64Counter("cancel_workflow.runs.selected",
		metric.WithDescription("Runs selected for cancellation"), metric.WithUnit("{run}")); err != nil {
		return nil, err
	}
	if r.cancellations, err = meter.Int64Counter("cancel_workflow.cancellations",
		metric.WithDescription("Cancel requests by result"), metric.WithUnit("{request}")); err != nil {
		return nil, err
	}
	if r.vetoes, err = meter.Int64Counter("cancel_workflow.vetoes",
		metric.WithDescription("Workflows whose cancellation was vetoed by a protected job"), metric.WithUnit("{workflow}")); err != nil {
		return nil, err
	}
	if r.pipelineErrors, err = meter.Int64Counter("cancel_workflow.pipeline.errors",
		metric.WithDescription("Workflow pipelines that ended in a recorded failure"), metric.WithUnit("{workflow}")); err != nil {
		return nil, err
	}
	if r.cancelDuration, err = meter.Float64Histogram("cancel_workflow.cancel.duration",
		metric.WithDescription("Latency of cancel requests"), metric.WithUnit("s")); err != nil {
		return nil, err
	}
	return &r, nil
}

// Default creates a Recorder on the global meter provider.
func Default() (*Recorder, error) {
	return New(otel.Meter(MeterName))
}

func workflowAttr(workflow string) metric.MeasurementOption {
	return metric.WithAttributes(attribute.String("workflow", workflow))
}

// RunsScanned counts fetched runs of a workflow.
func (r *Recorder) RunsScanned(ctx context.Context, workflow string, n int) {
	if r == nil {
		return
	}
	r.runsScanned.Add(ctx, int64(n), workflowAttr(workflow))
}

// RunsSelected counts runs chosen for cancellation.
func (r *Recorder) RunsSelected(ctx context.Context, workflow string, n int) {
	if r == nil {
		return
	}
	r.runsSelected.Add(ctx, int64(n), workflowAttr(workflow))
}

// Cancellation counts one cancel request and its latency.
func (r *Recorder) Cancellation(ctx context.Context, result string, elapsed time.Duration) {
	if r == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("result", result))
	r.cancellations.Add(ctx, 1, attrs)
	r.cancelDuration.Record(ctx, elapsed.Seconds(), attrs)
}

// Veto counts a workflow whose selection was vetoed.
func (r *Recorder) Veto(ctx context.Context, workflow string) {
	if r == nil {
		return
	}
	r.vetoes.Add(ctx, 1, workflowAttr(workflow))
}

// PipelineError counts a workflow pipeline that failed.
func (r *Recorder) PipelineError(ctx context.Context, workflow string) {
	if r == nil {
		return
	}
	r.pipelineErrors.Add(ctx, 1, workflowAttr(workflow))
}
