package infrastructure

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"

	"oceancli/internal/config"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(&bytes.Buffer{}, nil))
}

func TestOTelInitialization(t *testing.T) {
	var spans bytes.Buffer
	cfg := DefaultOTelConfig()
	cfg.TraceWriter = &spans

	providers, err := InitializeOTel(cfg, discardLogger())
	require.NoError(t, err)
	defer providers.Shutdown(context.Background())

	assert.NotNil(t, providers.TracerProvider)
	assert.NotNil(t, providers.MeterProvider)
	assert.NotNil(t, providers.Tracer)
	assert.NotNil(t, providers.Meter)
	assert.NotNil(t, providers.Registry)

	_, span := providers.Tracer.Start(context.Background(), "stage.extract")
	span.End()
	assert.Contains(t, spans.String(), "stage.extract", "spans are flushed as they end")
}

func TestOTelConfiguration(t *testing.T) {
	tests := []struct {
		name        string
		cfg         *OTelConfig
		wantErr     bool
		wantTracing bool
		wantMetrics bool
	}{
		{
			name:        "tracing disabled",
			cfg:         &OTelConfig{ServiceName: ServiceName, EnableMetrics: true, SampleRatio: 1},
			wantMetrics: true,
		},
		{
			name:        "none exporter",
			cfg:         &OTelConfig{ServiceName: ServiceName, EnableTracing: true, TraceExporter: "none"},
			wantTracing: false,
		},
		{
			name:    "unsupported exporter",
			cfg:     &OTelConfig{ServiceName: ServiceName, EnableTracing: true, TraceExporter: "jaeger"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			providers, err := InitializeOTel(tt.cfg, discardLogger())
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "unsupported trace exporter")
				return
			}
			require.NoError(t, err)
			defer providers.Shutdown(context.Background())
			assert.Equal(t, tt.wantTracing, providers.TracerProvider != nil)
			assert.Equal(t, tt.wantMetrics, providers.MeterProvider != nil)
		})
	}
}

func TestOTelConfigFrom(t *testing.T) {
	cfg := OTelConfigFrom(config.TelemetryConfig{
		Enabled:       true,
		Environment:   "mission",
		TraceExporter: "stdout",
		SampleRatio:   0.5,
	})
	assert.True(t, cfg.EnableTracing)
	assert.True(t, cfg.EnableMetrics)
	assert.Equal(t, "mission", cfg.Environment)
	assert.Equal(t, 0.5, cfg.SampleRatio)

	disabled := OTelConfigFrom(config.Default().Telemetry)
	assert.False(t, disabled.EnableTracing)
	assert.True(t, disabled.EnableMetrics, "metrics back the run summary even without telemetry")
}

func TestPipelineMetricsTextfile(t *testing.T) {
	providers, err := InitializeOTel(&OTelConfig{ServiceName: ServiceName, EnableMetrics: true}, discardLogger())
	require.NoError(t, err)
	defer providers.Shutdown(context.Background())

	metrics, err := CreatePipelineMetrics(providers.Meter)
	require.NoError(t, err)

	ctx := context.Background()
	metrics.RecordStage(ctx, "extract", 20*time.Millisecond, 120, nil)
	metrics.RecordStage(ctx, "sort_values", time.Millisecond, 0, errors.New("missing column"))
	metrics.RecordSpikes(ctx, "glider-2024", "Oxygen_umol_L", 2)
	metrics.RecordArtifact(ctx, "csv")
	metrics.RecordMission(ctx, "glider-2024", nil)

	path := filepath.Join(t.TempDir(), "oceancli.prom")
	require.NoError(t, providers.WriteMetricsTextfile(path))

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(content)
	for _, name := range []string{
		"pipeline_stages_total",
		"pipeline_stage_duration_seconds",
		"pipeline_stage_errors_total",
		"pipeline_rows_processed_total",
		"spikes_detected_total",
		"artifacts_stored_total",
		"missions_total",
		"process_heap_alloc_bytes",
	} {
		assert.Contains(t, text, name)
	}
	assert.Contains(t, text, `variable="Oxygen_umol_L"`)
}

func TestWriteMetricsTextfileWithoutMetrics(t *testing.T) {
	var providers *OTelProviders
	assert.Error(t, providers.WriteMetricsTextfile(filepath.Join(t.TempDir(), "x.prom")))
}

func TestNilPipelineMetrics(t *testing.T) {
	var m *PipelineMetrics
	assert.NotPanics(t, func() {
		m.RecordStage(context.Background(), "extract", time.Second, 1, nil)
		m.RecordSpikes(context.Background(), "m", "v", 1)
		m.RecordArtifact(context.Background(), "csv")
		m.RecordMission(context.Background(), "m", nil)
	})
}

func TestCreatePipelineMetricsGlobalMeter(t *testing.T) {
	_, err := CreatePipelineMetrics(nil)
	require.NoError(t, err)
}

func TestSpanHelpers(t *testing.T) {
	providers, err := InitializeOTel(&OTelConfig{
		ServiceName:   ServiceName,
		EnableTracing: true,
		TraceExporter: "stdout",
		TraceWriter:   &bytes.Buffer{},
		SampleRatio:   1,
	}, discardLogger())
	require.NoError(t, err)
	defer providers.Shutdown(context.Background())

	ctx, span := otel.Tracer("test").Start(context.Background(), "mission")
	defer span.End()

	assert.NotEmpty(t, TraceIDFromContext(ctx))
	assert.Empty(t, TraceIDFromContext(context.Background()))
	assert.Equal(t, TraceIDFromContext(ctx), GetTraceID(ctx), "span trace IDs back the log trace ID")

	assert.NotPanics(t, func() {
		AddSpanEvent(ctx, "stage.completed", map[string]any{"rows": 3, "op": "extract", "ok": true})
		RecordError(ctx, errors.New("boom"))
		AddSpanEvent(context.Background(), "ignored", nil)
	})
}
