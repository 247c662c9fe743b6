package observability

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected LogLevel
		wantErr  bool
	}{
		{"DEBUG", LevelDebug, false},
		{"info", LevelInfo, false},
		{"Warning", LevelWarn, false},
		{"WARN", LevelWarn, false},
		{"ERROR", LevelError, false},
		{"critical", LevelCritical, false},
		{" INFO ", LevelInfo, false},
		{"VERBOSE", LevelInfo, true},
		{"", LevelInfo, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			level, err := ParseLevel(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, level)
		})
	}
}

func TestLogger_Filtering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger("test", LevelWarn)
	logger.SetOutput(&buf)

	logger.Debugf("debug %d", 1)
	logger.Infof("info %d", 2)
	logger.Warnf("warn %d", 3)
	logger.Errorf("error %d", 4)
	logger.Criticalf("critical %d", 5)

	out := buf.String()
	assert.NotContains(t, out, "debug 1")
	assert.NotContains(t, out, "info 2")
	assert.Contains(t, out, "[WARNING]")
	assert.Contains(t, out, "warn 3")
	assert.Contains(t, out, "[ERROR]")
	assert.Contains(t, out, "[CRITICAL]")
	assert.Len(t, strings.Split(strings.TrimSpace(out), "\n"), 3)
}

func TestLogger_Fields(t *testing.T) {
	var buf bytes.Buffer
	base := NewLogger("test", LevelDebug)
	base.SetOutput(&buf)

	worker := base.WithField("worker", 7)
	worker.WithField("file", "a.jpg").Info("processing")
	base.Info("plain")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasSuffix(lines[0], "processing file=a.jpg worker=7"))
	assert.True(t, strings.HasSuffix(lines[1], "plain"))
	assert.Contains(t, lines[0], "logger_test.go:")
}

func TestNewNopLogger(t *testing.T) {
	logger := NewNopLogger()
	assert.False(t, logger.Enabled(LevelCritical))
	logger.Criticalf("nothing %s", "happens")
}

func TestLogger_WithContext(t *testing.T) {
	var buf bytes.Buffer
	base := NewLogger("test", LevelInfo)
	base.SetOutput(&buf)
	assert.Equal(t, LevelInfo, base.Level())

	t.Run("no span leaves the logger unchanged", func(t *testing.T) {
		assert.Same(t, base, base.WithContext(context.Background()))
	})

	t.Run("valid span adds trace and span ids", func(t *testing.T) {
		buf.Reset()
		sc := trace.NewSpanContext(trace.SpanContextConfig{
			TraceID: trace.TraceID{0x01, 0x02},
			SpanID:  trace.SpanID{0x03},
		})
		ctx := trace.ContextWithSpanContext(context.Background(), sc)

		base.WithContext(ctx).Info("traced")
		assert.Contains(t, buf.String(), "trace_id="+sc.TraceID().String())
		assert.Contains(t, buf.String(), "span_id="+sc.SpanID().String())
	})
}

func TestAttributeHelpers(t *testing.T) {
	assert.Equal(t, "worker.id", string(WorkerID(3).Key))
	assert.Equal(t, int64(3), WorkerID(3).Value.AsInt64())
	assert.Equal(t, "copy", Operation("copy").Value.AsString())
	assert.Equal(t, int64(1500), Duration(1500*time.Millisecond).Value.AsInt64())
	assert.Equal(t, "/a.jpg", FilePath("/a.jpg").Value.AsString())
}
