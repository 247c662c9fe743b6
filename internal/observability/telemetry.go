package observability

import (
	"context"
	"errors"
	"os"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
)

const (
	defaultOTLPEndpoint   = "localhost:4317"
	defaultExportInterval = 10 * time.Second
	exportTimeout         = 30 * time.Second
)

// Config controls whether and where a run exports traces and metrics
type Config struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	OTLPEndpoint   string
	Enabled        bool
	// ExportInterval is how often metrics are pushed during a run
	ExportInterval time.Duration
	// SampleRatio is the fraction of root spans kept, 0..1
	SampleRatio float64
}

// Telemetry owns the providers installed for one run
type Telemetry struct {
	TracerProvider *sdktrace.TracerProvider
	MeterProvider  *sdkmetric.MeterProvider
	config         Config
	logger         *Logger
}

// NewConfig reads the standard OTEL_* variables. Export stays off unless
// OTEL_ENABLED is true or 1.
func NewConfig(serviceName, serviceVersion string) Config {
	cfg := Config{
		ServiceName:    serviceName,
		ServiceVersion: serviceVersion,
		Environment:    envOr("ENVIRONMENT", "development"),
		OTLPEndpoint:   envOr("OTEL_EXPORTER_OTLP_ENDPOINT", defaultOTLPEndpoint),
		ExportInterval: defaultExportInterval,
		SampleRatio:    1,
	}

	switch os.Getenv("OTEL_ENABLED") {
	case "true", "1":
		cfg.Enabled = true
	}

	// OTEL_METRIC_EXPORT_INTERVAL is in milliseconds
	if ms, err := strconv.Atoi(os.Getenv("OTEL_METRIC_EXPORT_INTERVAL")); err == nil && ms > 0 {
		cfg.ExportInterval = time.Duration(ms) * time.Millisecond
	}
	if r, err := strconv.ParseFloat(os.Getenv("OTEL_TRACES_SAMPLER_ARG"), 64); err == nil && r >= 0 && r <= 1 {
		cfg.SampleRatio = r
	}

	return cfg
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// Initialize installs the global tracer and meter providers. When export is
// disabled the otel no-op globals stay in place and nothing is dialled.
// A provider that cannot be built is logged and skipped; the run goes on
// without it.
func Initialize(ctx context.Context, cfg Config, logger *Logger) (*Telemetry, error) {
	t := &Telemetry{config: cfg, logger: logger}
	if !cfg.Enabled {
		logger.Debugf("Telemetry disabled (set OTEL_ENABLED=true to enable)")
		return t, nil
	}

	logger.WithField("endpoint", cfg.OTLPEndpoint).Infof("Exporting telemetry for %s %s", cfg.ServiceName, cfg.ServiceVersion)

	res, err := newResource(ctx, cfg)
	if err != nil {
		return nil, err
	}

	if tp, err := newTracerProvider(ctx, cfg, res); err != nil {
		logger.Warnf("Tracing unavailable: %v", err)
	} else {
		t.TracerProvider = tp
		otel.SetTracerProvider(tp)
	}

	if mp, err := newMeterProvider(ctx, cfg, res); err != nil {
		logger.Warnf("Metrics unavailable: %v", err)
	} else {
		t.MeterProvider = mp
		otel.SetMeterProvider(mp)
	}

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return t, nil
}

func newResource(ctx context.Context, cfg Config) (*resource.Resource, error) {
	return resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
			attribute.String("deployment.environment", cfg.Environment),
		),
		resource.WithHost(),
	)
}

func newTracerProvider(ctx context.Context, cfg Config, res *resource.Resource) (*sdktrace.TracerProvider, error) {
	exporter, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(cfg.OTLPEndpoint),
		otlptracegrpc.WithInsecure(),
		otlptracegrpc.WithTimeout(exportTimeout),
	)
	if err != nil {
		return nil, err
	}

	// Every file produces spans, so batch generously.
	return sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter,
			sdktrace.WithBatchTimeout(5*time.Second),
			sdktrace.WithMaxQueueSize(8192),
			sdktrace.WithMaxExportBatchSize(1024),
		),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRatio))),
	), nil
}

func newMeterProvider(ctx context.Context, cfg Config, res *resource.Resource) (*sdkmetric.MeterProvider, error) {
	exporter, err := otlpmetricgrpc.New(ctx,
		otlpmetricgrpc.WithEndpoint(cfg.OTLPEndpoint),
		otlpmetricgrpc.WithInsecure(),
		otlpmetricgrpc.WithTimeout(exportTimeout),
	)
	if err != nil {
		return nil, err
	}

	// Shutdown flushes the final totals of a short run.
	return sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter,
			sdkmetric.WithInterval(cfg.ExportInterval),
		)),
		sdkmetric.WithResource(res),
	), nil
}

// Shutdown flushes pending spans and metrics and stops both providers
func (t *Telemetry) Shutdown(ctx context.Context) error {
	if t.TracerProvider == nil && t.MeterProvider == nil {
		return nil
	}

	t.logger.Debugf("Flushing telemetry")

	var errs []error
	if t.TracerProvider != nil {
		errs = append(errs, t.TracerProvider.Shutdown(ctx))
	}
	if t.MeterProvider != nil {
		errs = append(errs, t.MeterProvider.Shutdown(ctx))
	}
	return errors.Join(errs...)
}
