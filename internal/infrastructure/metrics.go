package infrastructure

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

// PipelineMetrics records upload pipeline activity.
type PipelineMetrics struct {
	uploads         metric.Int64Counter
	stageDuration   metric.Float64Histogram
	indicatorValues metric.Int64Counter
	classifications metric.Int64Counter
}

// NewPipelineMetrics creates the pipeline instruments on meter.
func NewPipelineMetrics(meter metric.Meter) (*PipelineMetrics, error) {
	uploads, err := meter.Int64Counter("datafit.uploads",
		metric.WithDescription("Spreadsheet uploads by final pipeline stage"))
	if err != nil {
		return nil, fmt.Errorf("uploads counter: %w", err)
	}

	stageDuration, err := meter.Float64Histogram("datafit.pipeline.stage.duration",
		metric.WithDescription("Time spent in each pipeline stage"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, fmt.Errorf("stage duration histogram: %w", err)
	}

	indicatorValues, err := meter.Int64Counter("datafit.indicator_values",
		metric.WithDescription("Indicator values computed, by indicator"))
	if err != nil {
		return nil, fmt.Errorf("indicator values counter: %w", err)
	}

	classifications, err := meter.Int64Counter("datafit.classifications",
		metric.WithDescription("Fit classifier verdicts"))
	if err != nil {
		return nil, fmt.Errorf("classifications counter: %w", err)
	}

	return &PipelineMetrics{
		uploads:         uploads,
		stageDuration:   stageDuration,
		indicatorValues: indicatorValues,
		classifications: classifications,
	}, nil
}

// NoopPipelineMetrics returns metrics backed by a no-op meter.
func NoopPipelineMetrics() *PipelineMetrics {
	m, _ := NewPipelineMetrics(noop.NewMeterProvider().Meter(InstrumentationName))
	return m
}

// RecordUpload counts an upload that ended in outcome.
func (m *PipelineMetrics) RecordUpload(ctx context.Context, outcome string) {
	m.uploads.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

// RecordStage records how long stage took.
func (m *PipelineMetrics) RecordStage(ctx context.Context, stage string, elapsed time.Duration) {
	m.stageDuration.Record(ctx, elapsed.Seconds(), metric.WithAttributes(attribute.String("stage", stage)))
}

// RecordIndicatorValue counts one computed value; missing marks a null result.
func (m *PipelineMetrics) RecordIndicatorValue(ctx context.Context, indicator string, missing bool) {
	m.indicatorValues.Add(ctx, 1, metric.WithAttributes(
		attribute.String("indicator", indicator),
		attribute.Bool("null", missing),
	))
}

// RecordClassification counts a classifier verdict.
func (m *PipelineMetrics) RecordClassification(ctx context.Context, analysis string, fits bool) {
	m.classifications.Add(ctx, 1, metric.WithAttributes(
		attribute.String("analysis", analysis),
		attribute.Bool("fits", fits),
	))
}
