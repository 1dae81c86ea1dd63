// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package providers contains telemetry provider implementations and builder logic
package providers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"
	otellog "go.opentelemetry.io/otel/log"
	lognoop "go.opentelemetry.io/otel/log/noop"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"github.com/stacklok/hello-otel/pkg/logger"
	"github.com/stacklok/hello-otel/pkg/telemetry/providers/otlp"
)

// shutdownTimeout bounds the time spent flushing exporters on shutdown.
const shutdownTimeout = 5 * time.Second

// Config holds the telemetry configuration for all providers.
// It contains service information, OTLP settings, and Prometheus configuration.
type Config struct {
	// Service information
	ServiceName    string // ServiceName identifies the service for telemetry data
	ServiceVersion string // ServiceVersion identifies the service version for telemetry data
	Environment    string // Environment is recorded as deployment.environment
	HostName       string // HostName is recorded as host.name

	// OTLP configuration
	Transport       otlp.Transport    // Transport selects gRPC or HTTP/protobuf
	TracesEndpoint  string            // TracesEndpoint is the collector URL for spans
	MetricsEndpoint string            // MetricsEndpoint is the collector URL for metrics
	LogsEndpoint    string            // LogsEndpoint is the collector URL for log records
	Headers         map[string]string // Headers are additional headers to send with OTLP requests
	TracingEnabled  bool              // TracingEnabled controls whether tracing is enabled for OTLP
	MetricsEnabled  bool              // MetricsEnabled controls whether metrics are enabled for OTLP
	LogsEnabled     bool              // LogsEnabled controls whether log records are exported over OTLP
	SamplingRate    float64           // SamplingRate controls trace sampling (0.0 to 1.0)

	// Prometheus configuration
	EnablePrometheusMetricsPath bool // EnablePrometheusMetricsPath enables Prometheus /metrics endpoint

	// IncludeRuntimeMetrics starts Go runtime instrumentation on the SDK meter provider
	IncludeRuntimeMetrics bool
}

// ProviderOption is an option type used to configure the telemetry providers
type ProviderOption func(*Config) error

// WithServiceName sets the service name
func WithServiceName(serviceName string) ProviderOption {
	return func(config *Config) error {
		if serviceName == "" {
			return fmt.Errorf("service name cannot be empty")
		}
		config.ServiceName = serviceName
		return nil
	}
}

// WithServiceVersion sets the service version
func WithServiceVersion(serviceVersion string) ProviderOption {
	return func(config *Config) error {
		if serviceVersion == "" {
			return fmt.Errorf("service version cannot be empty")
		}
		config.ServiceVersion = serviceVersion
		return nil
	}
}

// WithEnvironment sets the deployment environment
func WithEnvironment(environment string) ProviderOption {
	return func(config *Config) error {
		config.Environment = environment
		return nil
	}
}

// WithHostName sets the host name resource attribute
func WithHostName(hostName string) ProviderOption {
	return func(config *Config) error {
		config.HostName = hostName
		return nil
	}
}

// WithTransport sets the OTLP transport
func WithTransport(transport otlp.Transport) ProviderOption {
	return func(config *Config) error {
		config.Transport = transport
		return nil
	}
}

// WithTracesEndpoint sets the OTLP endpoint for spans
func WithTracesEndpoint(endpoint string) ProviderOption {
	return func(config *Config) error {
		config.TracesEndpoint = endpoint
		return nil
	}
}

// WithMetricsEndpoint sets the OTLP endpoint for metrics
func WithMetricsEndpoint(endpoint string) ProviderOption {
	return func(config *Config) error {
		config.MetricsEndpoint = endpoint
		return nil
	}
}

// WithLogsEndpoint sets the OTLP endpoint for log records
func WithLogsEndpoint(endpoint string) ProviderOption {
	return func(config *Config) error {
		config.LogsEndpoint = endpoint
		return nil
	}
}

// WithHeaders sets the headers
func WithHeaders(headers map[string]string) ProviderOption {
	return func(config *Config) error {
		config.Headers = headers
		return nil
	}
}

// WithTracingEnabled sets the tracing enabled flag
func WithTracingEnabled(tracingEnabled bool) ProviderOption {
	return func(config *Config) error {
		config.TracingEnabled = tracingEnabled
		return nil
	}
}

// WithMetricsEnabled sets the metrics enabled flag
func WithMetricsEnabled(metricsEnabled bool) ProviderOption {
	return func(config *Config) error {
		config.MetricsEnabled = metricsEnabled
		return nil
	}
}

// WithLogsEnabled sets the logs enabled flag
func WithLogsEnabled(logsEnabled bool) ProviderOption {
	return func(config *Config) error {
		config.LogsEnabled = logsEnabled
		return nil
	}
}

// WithSamplingRate sets the sampling rate
func WithSamplingRate(samplingRate float64) ProviderOption {
	return func(config *Config) error {
		if samplingRate < 0 || samplingRate > 1 {
			return fmt.Errorf("sampling rate must be between 0.0 and 1.0, got %v", samplingRate)
		}
		config.SamplingRate = samplingRate
		return nil
	}
}

// WithEnablePrometheusMetricsPath sets the enable prometheus metrics path flag
func WithEnablePrometheusMetricsPath(enablePrometheusMetricsPath bool) ProviderOption {
	return func(config *Config) error {
		config.EnablePrometheusMetricsPath = enablePrometheusMetricsPath
		return nil
	}
}

// WithRuntimeMetrics sets whether Go runtime metrics are collected
func WithRuntimeMetrics(include bool) ProviderOption {
	return func(config *Config) error {
		config.IncludeRuntimeMetrics = include
		return nil
	}
}

// CompositeProvider combines telemetry providers into a single interface.
// It manages tracer, meter and logger providers, Prometheus handlers, and cleanup.
type CompositeProvider struct {
	tracerProvider    trace.TracerProvider          // tracerProvider provides distributed tracing
	meterProvider     metric.MeterProvider          // meterProvider provides metrics collection
	loggerProvider    otellog.LoggerProvider        // loggerProvider receives bridged log records
	prometheusHandler http.Handler                  // prometheusHandler serves Prometheus metrics
	shutdownFuncs     []func(context.Context) error // shutdownFuncs clean up resources on shutdown
}

// NewCompositeProvider creates the appropriate providers based on provided options
func NewCompositeProvider(
	ctx context.Context,
	options ...ProviderOption,
) (*CompositeProvider, error) {
	config := Config{}
	for _, option := range options {
		if err := option(&config); err != nil {
			return nil, err
		}
	}

	selector := NewStrategySelector(config)
	if selector.IsFullyNoOp() {
		logger.Infof("No telemetry configured, using no-op providers")
		return createNoOpProvider(), nil
	}

	res, err := newResource(ctx, config)
	if err != nil {
		return nil, err
	}

	return buildProviders(ctx, config, selector, res)
}

func newResource(ctx context.Context, config Config) (*resource.Resource, error) {
	attrs := []attribute.KeyValue{
		semconv.ServiceName(config.ServiceName),
		semconv.ServiceVersion(config.ServiceVersion),
	}
	if config.Environment != "" {
		attrs = append(attrs, semconv.DeploymentEnvironment(config.Environment))
	}
	if config.HostName != "" {
		attrs = append(attrs, semconv.HostName(config.HostName))
	}

	// explicit attributes win over OTEL_RESOURCE_ATTRIBUTES
	res, err := resource.New(ctx,
		resource.WithFromEnv(),
		resource.WithAttributes(attrs...),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource with service name '%s' and version '%s': %w",
			config.ServiceName, config.ServiceVersion, err)
	}
	return res, nil
}

func createNoOpProvider() *CompositeProvider {
	return &CompositeProvider{
		tracerProvider:    tracenoop.NewTracerProvider(),
		meterProvider:     noop.NewMeterProvider(),
		loggerProvider:    lognoop.NewLoggerProvider(),
		prometheusHandler: nil,
		shutdownFuncs:     []func(context.Context) error{},
	}
}

// buildProviders creates a composite provider using the selected strategies
func buildProviders(
	ctx context.Context,
	config Config,
	selector *StrategySelector,
	res *resource.Resource,
) (*CompositeProvider, error) {
	composite := &CompositeProvider{
		shutdownFuncs: []func(context.Context) error{},
	}

	steps := []func(context.Context, Config, *CompositeProvider, *StrategySelector, *resource.Resource) error{
		createMetricsProvider,
		createTracingProvider,
		createLoggingProvider,
	}
	for _, step := range steps {
		if err := step(ctx, config, composite, selector, res); err != nil {
			// release whatever was already built
			_ = composite.Shutdown(ctx)
			return nil, err
		}
	}

	logger.Infof("Telemetry providers created successfully (transport: %s)", transportName(config.Transport))
	return composite, nil
}

func transportName(t otlp.Transport) string {
	if t == "" {
		return string(otlp.TransportGRPC)
	}
	return string(t)
}

// createMetricsProvider creates the metrics provider for the composite provider
func createMetricsProvider(
	ctx context.Context,
	config Config,
	composite *CompositeProvider,
	selector *StrategySelector,
	res *resource.Resource,
) error {
	meterStrategy := selector.SelectMeterStrategy()
	meterResult, err := meterStrategy.CreateMeterProvider(ctx, config, res)
	if err != nil {
		return fmt.Errorf(
			"failed to create meter provider with config (endpoint: %s, metrics enabled: %t, prometheus enabled: %t): %w",
			config.MetricsEndpoint,
			config.MetricsEnabled,
			config.EnablePrometheusMetricsPath,
			err)
	}

	composite.meterProvider = meterResult.MeterProvider
	composite.prometheusHandler = meterResult.PrometheusHandler
	if meterResult.ShutdownFunc != nil {
		composite.shutdownFuncs = append(composite.shutdownFuncs, meterResult.ShutdownFunc)
	}
	return nil
}

// createTracingProvider creates the tracing provider for the composite provider
func createTracingProvider(
	ctx context.Context,
	config Config,
	composite *CompositeProvider,
	selector *StrategySelector,
	res *resource.Resource,
) error {
	tracerStrategy := selector.SelectTracerStrategy()
	tracerProvider, tracerShutdown, err := tracerStrategy.CreateTracerProvider(ctx, config, res)
	if err != nil {
		return fmt.Errorf("failed to create tracer provider with config (endpoint: %s, tracing enabled: %t): %w",
			config.TracesEndpoint,
			config.TracingEnabled,
			err)
	}

	composite.tracerProvider = tracerProvider
	if tracerShutdown != nil {
		composite.shutdownFuncs = append(composite.shutdownFuncs, tracerShutdown)
	}
	return nil
}

// createLoggingProvider creates the logger provider for the composite provider
func createLoggingProvider(
	ctx context.Context,
	config Config,
	composite *CompositeProvider,
	selector *StrategySelector,
	res *resource.Resource,
) error {
	loggerStrategy := selector.SelectLoggerStrategy()
	loggerProvider, loggerShutdown, err := loggerStrategy.CreateLoggerProvider(ctx, config, res)
	if err != nil {
		return fmt.Errorf("failed to create logger provider with config (endpoint: %s, logs enabled: %t): %w",
			config.LogsEndpoint,
			config.LogsEnabled,
			err)
	}

	composite.loggerProvider = loggerProvider
	if loggerShutdown != nil {
		composite.shutdownFuncs = append(composite.shutdownFuncs, loggerShutdown)
	}
	return nil
}

// TracerProvider returns the tracer provider
func (p *CompositeProvider) TracerProvider() trace.TracerProvider {
	return p.tracerProvider
}

// MeterProvider returns the primary meter provider
func (p *CompositeProvider) MeterProvider() metric.MeterProvider {
	return p.meterProvider
}

// LoggerProvider returns the logger provider
func (p *CompositeProvider) LoggerProvider() otellog.LoggerProvider {
	return p.loggerProvider
}

// PrometheusHandler returns the Prometheus metrics handler if configured
func (p *CompositeProvider) PrometheusHandler() http.Handler {
	return p.prometheusHandler
}

type flusher interface {
	ForceFlush(context.Context) error
}

// ForceFlush exports everything buffered by the SDK providers.
// No-op providers are skipped.
func (p *CompositeProvider) ForceFlush(ctx context.Context) error {
	var errs []error
	for _, candidate := range []any{p.tracerProvider, p.meterProvider, p.loggerProvider} {
		f, ok := candidate.(flusher)
		if !ok {
			continue
		}
		if err := f.ForceFlush(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Shutdown gracefully shuts down all providers
func (p *CompositeProvider) Shutdown(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()

	var errs []error
	for i, shutdown := range p.shutdownFuncs {
		if err := shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("provider %d shutdown failed: %w", i, err))
		}
	}
	p.shutdownFuncs = nil

	if len(errs) > 0 {
		return fmt.Errorf("shutdown failed with %d errors: %v", len(errs), errs)
	}
	return nil
}
