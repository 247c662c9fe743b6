package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/photosync/photosort/observability"

// StartSpan starts a new span from context
func StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return otel.Tracer(instrumentationName).Start(ctx, name, opts...)
}

// StartServiceSpan starts a span for service operations
func StartServiceSpan(ctx context.Context, service, operation string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return StartSpan(ctx, fmt.Sprintf("%s.%s", service, operation),
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(append([]attribute.KeyValue{
			attribute.String("service.component", service),
			attribute.String("service.operation", operation),
		}, attrs...)...),
	)
}

// RecordError records an error on the span
func RecordError(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}

// SetSuccess marks the span as successful
func SetSuccess(span trace.Span) {
	span.SetStatus(codes.Ok, "")
}

// AddEvent adds an event to the span
func AddEvent(span trace.Span, name string, attrs ...attribute.KeyValue) {
	span.AddEvent(name, trace.WithAttributes(attrs...))
}

// SortMetrics holds the sorter's metric instruments
type SortMetrics struct {
	filesProcessed metric.Int64Counter
	bytesCopied    metric.Int64Counter
	rotations      metric.Int64Counter
	fileDuration   metric.Float64Histogram
	activeWorkers  metric.Int64UpDownCounter
}

// NewSortMetrics creates sorter metric instruments on the global meter
// provider. With telemetry disabled the instruments are no-ops.
func NewSortMetrics() (*SortMetrics, error) {
	meter := otel.Meter(instrumentationName)

	filesProcessed, err := meter.Int64Counter(
		"photosort.files.processed",
		metric.WithDescription("Files handled by the sorter, by status"),
		metric.WithUnit("{files}"),
	)
	if err != nil {
		return nil, err
	}

	bytesCopied, err := meter.Int64Counter(
		"photosort.bytes.copied",
		metric.WithDescription("Bytes copied into the output tree"),
		metric.WithUnit("By"),
	)
	if err != nil {
		return nil, err
	}

	rotations, err := meter.Int64Counter(
		"photosort.rotations",
		metric.WithDescription("Copies rotated from their orientation tag"),
		metric.WithUnit("{files}"),
	)
	if err != nil {
		return nil, err
	}

	fileDuration, err := meter.Float64Histogram(
		"photosort.file.duration",
		metric.WithDescription("Per-file pipeline duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	activeWorkers, err := meter.Int64UpDownCounter(
		"photosort.workers.active",
		metric.WithDescription("Workers currently processing a file"),
		metric.WithUnit("{workers}"),
	)
	if err != nil {
		return nil, err
	}

	return &SortMetrics{
		filesProcessed: filesProcessed,
		bytesCopied:    bytesCopied,
		rotations:      rotations,
		fileDuration:   fileDuration,
		activeWorkers:  activeWorkers,
	}, nil
}

// RecordFile records the outcome of one file
func (m *SortMetrics) RecordFile(ctx context.Context, status string, size int64, rotated bool, duration time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("status", status))

	m.filesProcessed.Add(ctx, 1, attrs)
	m.fileDuration.Record(ctx, float64(duration.Milliseconds()), attrs)
	if status == "copied" {
		m.bytesCopied.Add(ctx, size)
	}
	if rotated {
		m.rotations.Add(ctx, 1)
	}
}

// WorkerBusy adjusts the active worker gauge by delta
func (m *SortMetrics) WorkerBusy(ctx context.Context, delta int64) {
	if m == nil {
		return
	}
	m.activeWorkers.Add(ctx, delta)
}
