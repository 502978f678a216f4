package infrastructure

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

func TestDefaultOTelConfig(t *testing.T) {
	cfg := DefaultOTelConfig()

	assert.Equal(t, ServiceName, cfg.ServiceName)
	assert.Equal(t, "prometheus", cfg.MetricExporter)
	assert.True(t, cfg.EnableMetrics)
	assert.False(t, cfg.EnableTracing)
}

func TestInitializeOTelMetricsOnly(t *testing.T) {
	cfg := &OTelConfig{
		ServiceName:    "macromon-test",
		ServiceVersion: "test",
		Environment:    "test",
		TraceExporter:  "none",
		MetricExporter: "prometheus",
		EnableMetrics:  true,
		EnableTracing:  false,
	}

	providers, err := InitializeOTel(cfg, slog.Default())
	require.NoError(t, err)
	t.Cleanup(func() { _ = providers.Shutdown(context.Background()) })

	assert.NotNil(t, providers.MeterProvider)
	assert.NotNil(t, providers.Meter)
	assert.NotNil(t, providers.PrometheusHTTP)
	assert.Nil(t, providers.TracerProvider)
}

func TestInitializeOTelRejectsUnknownExporters(t *testing.T) {
	_, err := InitializeOTel(&OTelConfig{
		ServiceName:    "macromon-test",
		TraceExporter:  "jaeger",
		EnableTracing:  true,
		MetricExporter: "none",
	}, slog.Default())
	assert.Error(t, err)

	_, err = InitializeOTel(&OTelConfig{
		ServiceName:    "macromon-test",
		TraceExporter:  "none",
		MetricExporter: "statsd",
		EnableMetrics:  true,
	}, slog.Default())
	assert.Error(t, err)
}

func TestCreateBusinessMetrics(t *testing.T) {
	mp := sdkmetric.NewMeterProvider()
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	m, err := CreateBusinessMetrics(mp.Meter("test"))
	require.NoError(t, err)

	assert.NotNil(t, m.HTTPRequestsTotal)
	assert.NotNil(t, m.RunExecutionsTotal)
	assert.NotNil(t, m.RunPointsPersisted)

	// Recording must be safe with and without a live span.
	RecordRunMetrics(context.Background(), m, "run-1", 0, 10, true, nil)
	RecordRunMetrics(context.Background(), nil, "run-1", 0, 10, true, nil)
}

func TestTraceIDFromContextWithoutSpan(t *testing.T) {
	assert.Equal(t, "", TraceIDFromContext(context.Background()))
}
