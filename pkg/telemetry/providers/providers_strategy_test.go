// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package providers

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"

	"github.com/stacklok/hello-otel/pkg/telemetry/providers/otlp"
)

func TestStrategySelector_SelectTracerStrategy(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		config       Config
		expectedType string
	}{
		{
			name: "OTLP tracer when endpoint and tracing enabled",
			config: Config{
				TracesEndpoint: "http://127.0.0.1:4317",
				TracingEnabled: true,
			},
			expectedType: "*providers.OTLPTracerStrategy",
		},
		{
			name: "NoOp tracer when endpoint but tracing disabled",
			config: Config{
				TracesEndpoint: "http://127.0.0.1:4317",
				TracingEnabled: false,
			},
			expectedType: "*providers.NoOpTracerStrategy",
		},
		{
			name: "NoOp tracer when no endpoint",
			config: Config{
				TracingEnabled: true,
			},
			expectedType: "*providers.NoOpTracerStrategy",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			strategy := NewStrategySelector(tt.config).SelectTracerStrategy()

			assert.NotNil(t, strategy)
			assert.Equal(t, tt.expectedType, getTypeName(strategy))
		})
	}
}

func TestStrategySelector_SelectMeterStrategy(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name             string
		config           Config
		expectedType     string
		expectOTLP       bool
		expectPrometheus bool
	}{
		{
			name: "unified with OTLP only",
			config: Config{
				MetricsEndpoint: "http://127.0.0.1:4317",
				MetricsEnabled:  true,
			},
			expectedType: "*providers.UnifiedMeterStrategy",
			expectOTLP:   true,
		},
		{
			name: "unified with Prometheus only",
			config: Config{
				EnablePrometheusMetricsPath: true,
			},
			expectedType:     "*providers.UnifiedMeterStrategy",
			expectPrometheus: true,
		},
		{
			name: "unified with both",
			config: Config{
				MetricsEndpoint:             "http://127.0.0.1:4317",
				MetricsEnabled:              true,
				EnablePrometheusMetricsPath: true,
			},
			expectedType:     "*providers.UnifiedMeterStrategy",
			expectOTLP:       true,
			expectPrometheus: true,
		},
		{
			name: "NoOp when metrics disabled",
			config: Config{
				MetricsEndpoint: "http://127.0.0.1:4317",
			},
			expectedType: "*providers.NoOpMeterStrategy",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			strategy := NewStrategySelector(tt.config).SelectMeterStrategy()
			require.Equal(t, tt.expectedType, getTypeName(strategy))

			if unified, ok := strategy.(*UnifiedMeterStrategy); ok {
				assert.Equal(t, tt.expectOTLP, unified.EnableOTLP)
				assert.Equal(t, tt.expectPrometheus, unified.EnablePrometheus)
			}
		})
	}
}

func TestStrategySelector_SelectLoggerStrategy(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		config       Config
		expectedType string
	}{
		{
			name: "OTLP logger when endpoint and logs enabled",
			config: Config{
				LogsEndpoint: "http://127.0.0.1:4318/v1/logs",
				LogsEnabled:  true,
			},
			expectedType: "*providers.OTLPLoggerStrategy",
		},
		{
			name: "NoOp logger when disabled",
			config: Config{
				LogsEndpoint: "http://127.0.0.1:4318/v1/logs",
			},
			expectedType: "*providers.NoOpLoggerStrategy",
		},
		{
			name: "NoOp logger without endpoint",
			config: Config{
				LogsEnabled: true,
			},
			expectedType: "*providers.NoOpLoggerStrategy",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expectedType, getTypeName(NewStrategySelector(tt.config).SelectLoggerStrategy()))
		})
	}
}

func TestStrategySelector_IsFullyNoOp(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		config Config
		want   bool
	}{
		{"empty config", Config{}, true},
		{"endpoints without enabled signals", Config{
			TracesEndpoint:  "http://127.0.0.1:4317",
			MetricsEndpoint: "http://127.0.0.1:4317",
			LogsEndpoint:    "http://127.0.0.1:4317",
		}, true},
		{"enabled signals without endpoints", Config{
			TracingEnabled: true,
			MetricsEnabled: true,
			LogsEnabled:    true,
		}, true},
		{"tracing only", Config{TracesEndpoint: "http://127.0.0.1:4317", TracingEnabled: true}, false},
		{"logs only", Config{LogsEndpoint: "http://127.0.0.1:4317", LogsEnabled: true}, false},
		{"prometheus only", Config{EnablePrometheusMetricsPath: true}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, NewStrategySelector(tt.config).IsFullyNoOp())
		})
	}
}

func TestNoOpStrategies(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	res := createTestResource(t)

	tracerProvider, tracerShutdown, err := (&NoOpTracerStrategy{}).CreateTracerProvider(ctx, Config{}, res)
	require.NoError(t, err)
	assert.Nil(t, tracerShutdown, "Expected no shutdown function for no-op tracer")
	assert.Contains(t, getTypeName(tracerProvider), "noop")

	meterResult, err := (&NoOpMeterStrategy{}).CreateMeterProvider(ctx, Config{}, res)
	require.NoError(t, err)
	assert.Nil(t, meterResult.ShutdownFunc)
	assert.Nil(t, meterResult.PrometheusHandler)
	assert.Contains(t, getTypeName(meterResult.MeterProvider), "noop")

	loggerProvider, loggerShutdown, err := (&NoOpLoggerStrategy{}).CreateLoggerProvider(ctx, Config{}, res)
	require.NoError(t, err)
	assert.Nil(t, loggerShutdown)
	assert.Contains(t, getTypeName(loggerProvider), "noop")
}

func TestOTLPTracerStrategy_CreateTracerProvider(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		config Config
	}{
		{
			name: "grpc",
			config: Config{
				Transport:      otlp.TransportGRPC,
				TracesEndpoint: "http://127.0.0.1:4317",
				SamplingRate:   1.0,
			},
		},
		{
			name: "http with headers",
			config: Config{
				Transport:      otlp.TransportHTTP,
				TracesEndpoint: "http://127.0.0.1:4318/v1/traces",
				Headers:        map[string]string{"authorization": "Bearer token"},
				SamplingRate:   0.5,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ctx := context.Background()
			provider, shutdown, err := (&OTLPTracerStrategy{}).CreateTracerProvider(ctx, tt.config, createTestResource(t))
			require.NoError(t, err)
			require.NotNil(t, shutdown)
			assert.NotContains(t, getTypeName(provider), "noop")
			_ = shutdown(ctx)
		})
	}
}

func TestOTLPLoggerStrategy_CreateLoggerProvider(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	provider, shutdown, err := (&OTLPLoggerStrategy{}).CreateLoggerProvider(ctx, Config{
		Transport:    otlp.TransportHTTP,
		LogsEndpoint: "http://127.0.0.1:4318/v1/logs",
	}, createTestResource(t))
	require.NoError(t, err)
	require.NotNil(t, shutdown)
	assert.Equal(t, "*log.LoggerProvider", getTypeName(provider))
	_ = shutdown(ctx)
}

func TestUnifiedMeterStrategy_Configurations(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		strategy      *UnifiedMeterStrategy
		config        Config
		wantErr       bool
		expectHandler bool
	}{
		{
			name:     "no readers is an error",
			strategy: &UnifiedMeterStrategy{},
			wantErr:  true,
		},
		{
			name:     "OTLP reader",
			strategy: &UnifiedMeterStrategy{EnableOTLP: true},
			config: Config{
				Transport:       otlp.TransportHTTP,
				MetricsEndpoint: "http://127.0.0.1:4318/v1/metrics",
			},
		},
		{
			name:          "Prometheus reader with runtime metrics",
			strategy:      &UnifiedMeterStrategy{EnablePrometheus: true},
			config:        Config{IncludeRuntimeMetrics: true},
			expectHandler: true,
		},
		{
			name:     "OTLP reader without endpoint fails",
			strategy: &UnifiedMeterStrategy{EnableOTLP: true},
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ctx := context.Background()
			result, err := tt.strategy.CreateMeterProvider(ctx, tt.config, createTestResource(t))
			if tt.wantErr {
				require.Error(t, err)
				assert.Nil(t, result)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, result.ShutdownFunc)
			defer result.ShutdownFunc(ctx)

			assert.Equal(t, "*metric.MeterProvider", getTypeName(result.MeterProvider))
			if !tt.expectHandler {
				assert.Nil(t, result.PrometheusHandler)
				return
			}

			require.NotNil(t, result.PrometheusHandler)
			rec := httptest.NewRecorder()
			result.PrometheusHandler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
			assert.Equal(t, http.StatusOK, rec.Code)
			assert.Contains(t, rec.Body.String(), "go_")
		})
	}
}

func getTypeName(v interface{}) string {
	if v == nil {
		return "nil"
	}
	return fmt.Sprintf("%T", v)
}

func createTestResource(t *testing.T) *resource.Resource {
	t.Helper()
	res, err := resource.New(
		context.Background(),
		resource.WithAttributes(
			semconv.ServiceName("test-service"),
			semconv.ServiceVersion("1.0.0"),
		),
	)
	require.NoError(t, err)
	return res
}
