package observability

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfig(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		t.Setenv("OTEL_ENABLED", "")
		t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "")
		t.Setenv("OTEL_METRIC_EXPORT_INTERVAL", "")
		t.Setenv("OTEL_TRACES_SAMPLER_ARG", "")
		t.Setenv("ENVIRONMENT", "")

		cfg := NewConfig("photosort", "dev")
		assert.False(t, cfg.Enabled)
		assert.Equal(t, "localhost:4317", cfg.OTLPEndpoint)
		assert.Equal(t, "development", cfg.Environment)
		assert.Equal(t, 10*time.Second, cfg.ExportInterval)
		assert.Equal(t, 1.0, cfg.SampleRatio)
	})

	t.Run("from environment", func(t *testing.T) {
		t.Setenv("OTEL_ENABLED", "1")
		t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "collector:4317")
		t.Setenv("OTEL_METRIC_EXPORT_INTERVAL", "2500")
		t.Setenv("OTEL_TRACES_SAMPLER_ARG", "0.25")
		t.Setenv("ENVIRONMENT", "production")

		cfg := NewConfig("photosort", "dev")
		assert.True(t, cfg.Enabled)
		assert.Equal(t, "collector:4317", cfg.OTLPEndpoint)
		assert.Equal(t, "production", cfg.Environment)
		assert.Equal(t, 2500*time.Millisecond, cfg.ExportInterval)
		assert.Equal(t, 0.25, cfg.SampleRatio)
	})

	t.Run("invalid values keep the defaults", func(t *testing.T) {
		t.Setenv("OTEL_ENABLED", "yes")
		t.Setenv("OTEL_METRIC_EXPORT_INTERVAL", "soon")
		t.Setenv("OTEL_TRACES_SAMPLER_ARG", "2")

		cfg := NewConfig("photosort", "dev")
		assert.False(t, cfg.Enabled)
		assert.Equal(t, 10*time.Second, cfg.ExportInterval)
		assert.Equal(t, 1.0, cfg.SampleRatio)
	})
}

func TestInitialize_Disabled(t *testing.T) {
	ctx := context.Background()

	tel, err := Initialize(ctx, Config{ServiceName: "photosort"}, NewNopLogger())
	require.NoError(t, err)
	assert.Nil(t, tel.TracerProvider)
	assert.Nil(t, tel.MeterProvider)
	assert.NoError(t, tel.Shutdown(ctx))
}
