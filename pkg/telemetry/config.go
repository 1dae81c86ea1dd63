// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package telemetry

import (
	"context"
	"net/http"

	"go.opentelemetry.io/otel"
	otellog "go.opentelemetry.io/otel/log"
	"go.opentelemetry.io/otel/log/global"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/stacklok/hello-otel/pkg/errors"
	"github.com/stacklok/hello-otel/pkg/logger"
	"github.com/stacklok/hello-otel/pkg/telemetry/providers"
	"github.com/stacklok/hello-otel/pkg/versions"
)

const (
	// instrumentationName is the name of this instrumentation package
	instrumentationName = "github.com/stacklok/hello-otel/pkg/telemetry"

	// DefaultServiceName is used when OTEL_SERVICE_NAME is unset
	DefaultServiceName = "hello-otel"
)

// Config holds the configuration for OpenTelemetry instrumentation.
type Config struct {
	// ServiceName is the service name for telemetry
	ServiceName string `json:"serviceName"`

	// ServiceVersion is the service version for telemetry
	ServiceVersion string `json:"serviceVersion"`

	// Environment is exported as deployment.environment
	Environment string `json:"environment"`

	// HostName is exported as host.name
	HostName string `json:"hostName"`

	// Endpoints are the collector endpoints and transport per signal
	Endpoints Endpoints `json:"endpoints"`

	// Headers are sent with every OTLP export request
	Headers map[string]string `json:"-"`

	// TracingEnabled controls whether spans are exported
	TracingEnabled bool `json:"tracingEnabled"`

	// MetricsEnabled controls whether OTLP metrics are exported
	// This is independent of EnablePrometheusMetricsPath
	MetricsEnabled bool `json:"metricsEnabled"`

	// LogsEnabled controls whether log records are exported over OTLP
	LogsEnabled bool `json:"logsEnabled"`

	// SamplingRate is the trace sampling rate (0.0-1.0)
	// Only used when TracingEnabled is true
	SamplingRate float64 `json:"samplingRate"`

	// EnablePrometheusMetricsPath controls whether to expose a Prometheus-style /metrics endpoint
	EnablePrometheusMetricsPath bool `json:"enablePrometheusMetricsPath"`

	// IncludeRuntimeMetrics starts Go runtime instrumentation
	IncludeRuntimeMetrics bool `json:"includeRuntimeMetrics"`
}

// DefaultConfig returns a default telemetry configuration.
func DefaultConfig() Config {
	versionInfo := versions.GetVersionInfo()
	return Config{
		ServiceName:    DefaultServiceName,
		ServiceVersion: versionInfo.Version,
		Environment:    "dev",
		Endpoints: SelectEndpoints("grpc",
			"http://127.0.0.1:4317",
			"http://127.0.0.1:4318/v1/traces",
			"http://127.0.0.1:4318/v1/logs",
			"http://127.0.0.1:4318/v1/metrics",
		),
		Headers:                     make(map[string]string),
		TracingEnabled:              true,
		MetricsEnabled:              true,
		LogsEnabled:                 true,
		SamplingRate:                1.0, // every span is sampled by default
		EnablePrometheusMetricsPath: false,
		IncludeRuntimeMetrics:       true,
	}
}

// Provider encapsulates OpenTelemetry providers and configuration.
type Provider struct {
	tracerProvider    trace.TracerProvider
	meterProvider     metric.MeterProvider
	loggerProvider    otellog.LoggerProvider
	prometheusHandler http.Handler
	flush             func(context.Context) error
	shutdown          func(context.Context) error
}

// NewProvider creates a new OpenTelemetry provider with the given configuration
// and registers it as the process-wide tracer, meter and logger provider.
func NewProvider(ctx context.Context, config Config) (*Provider, error) {
	telemetryOptions := []providers.ProviderOption{
		providers.WithServiceName(config.ServiceName),
		providers.WithServiceVersion(config.ServiceVersion),
		providers.WithEnvironment(config.Environment),
		providers.WithHostName(config.HostName),
		providers.WithTransport(config.Endpoints.Transport),
		providers.WithTracesEndpoint(config.Endpoints.Traces),
		providers.WithMetricsEndpoint(config.Endpoints.Metrics),
		providers.WithLogsEndpoint(config.Endpoints.Logs),
		providers.WithHeaders(config.Headers),
		providers.WithTracingEnabled(config.TracingEnabled),
		providers.WithMetricsEnabled(config.MetricsEnabled),
		providers.WithLogsEnabled(config.LogsEnabled),
		providers.WithSamplingRate(config.SamplingRate),
		providers.WithEnablePrometheusMetricsPath(config.EnablePrometheusMetricsPath),
		providers.WithRuntimeMetrics(config.IncludeRuntimeMetrics),
	}

	telemetryProviders, err := providers.NewCompositeProvider(ctx, telemetryOptions...)
	if err != nil {
		return nil, errors.NewTelemetryError("failed to build telemetry providers", err)
	}

	return setGlobalProvidersAndReturn(telemetryProviders, config), nil
}

// setGlobalProvidersAndReturn sets the global providers for OTEL and returns the providers
func setGlobalProvidersAndReturn(telemetryProviders *providers.CompositeProvider, config Config) *Provider {
	tracingProvider := telemetryProviders.TracerProvider()
	meterProvider := telemetryProviders.MeterProvider()
	loggerProvider := telemetryProviders.LoggerProvider()

	// SDK diagnostics go to the console only
	otel.SetLogger(logger.NewLogr())
	otel.SetErrorHandler(otel.ErrorHandlerFunc(func(err error) {
		logger.NewLogr().Error(err, "OpenTelemetry SDK error")
	}))

	// set the global providers for OTEL
	otel.SetTracerProvider(tracingProvider)
	otel.SetMeterProvider(meterProvider)
	global.SetLoggerProvider(loggerProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	if config.LogsEnabled && config.Endpoints.Logs != "" {
		logger.Bridge(instrumentationName, loggerProvider)
	}

	return &Provider{
		tracerProvider:    tracingProvider,
		meterProvider:     meterProvider,
		loggerProvider:    loggerProvider,
		prometheusHandler: telemetryProviders.PrometheusHandler(),
		flush:             telemetryProviders.ForceFlush,
		shutdown:          telemetryProviders.Shutdown,
	}
}

// ForceFlush exports any buffered telemetry.
func (p *Provider) ForceFlush(ctx context.Context) error {
	if p.flush != nil {
		return p.flush(ctx)
	}
	return nil
}

// Shutdown gracefully shuts down the telemetry provider.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p.shutdown != nil {
		return p.shutdown(ctx)
	}
	return nil
}

// TracerProvider returns the configured tracer provider.
func (p *Provider) TracerProvider() trace.TracerProvider {
	return p.tracerProvider
}

// MeterProvider returns the configured meter provider.
func (p *Provider) MeterProvider() metric.MeterProvider {
	return p.meterProvider
}

// LoggerProvider returns the configured logger provider.
func (p *Provider) LoggerProvider() otellog.LoggerProvider {
	return p.loggerProvider
}

// PrometheusHandler returns the Prometheus metrics handler if configured.
// Returns nil if the metrics path is disabled.
func (p *Provider) PrometheusHandler() http.Handler {
	return p.prometheusHandler
}
