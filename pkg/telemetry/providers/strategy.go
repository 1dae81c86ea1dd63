// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package providers

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	otelruntime "go.opentelemetry.io/contrib/instrumentation/runtime"
	otellog "go.opentelemetry.io/otel/log"
	lognoop "go.opentelemetry.io/otel/log/noop"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"github.com/stacklok/hello-otel/pkg/logger"
	"github.com/stacklok/hello-otel/pkg/telemetry/providers/otlp"
	"github.com/stacklok/hello-otel/pkg/telemetry/providers/prometheus"
)

// TracerStrategy creates the tracer provider for a configuration.
type TracerStrategy interface {
	CreateTracerProvider(
		ctx context.Context,
		config Config,
		res *resource.Resource,
	) (trace.TracerProvider, func(context.Context) error, error)
}

// MeterResult is what a MeterStrategy produces.
type MeterResult struct {
	MeterProvider     metric.MeterProvider
	PrometheusHandler http.Handler
	ShutdownFunc      func(context.Context) error
}

// MeterStrategy creates the meter provider for a configuration.
type MeterStrategy interface {
	CreateMeterProvider(ctx context.Context, config Config, res *resource.Resource) (*MeterResult, error)
}

// LoggerStrategy creates the logger provider for a configuration.
type LoggerStrategy interface {
	CreateLoggerProvider(
		ctx context.Context,
		config Config,
		res *resource.Resource,
	) (otellog.LoggerProvider, func(context.Context) error, error)
}

// StrategySelector picks a strategy per signal from the configuration.
type StrategySelector struct {
	config Config
}

// NewStrategySelector creates a selector for config.
func NewStrategySelector(config Config) *StrategySelector {
	return &StrategySelector{config: config}
}

func (s *StrategySelector) tracingActive() bool {
	return s.config.TracingEnabled && s.config.TracesEndpoint != ""
}

func (s *StrategySelector) otlpMetricsActive() bool {
	return s.config.MetricsEnabled && s.config.MetricsEndpoint != ""
}

func (s *StrategySelector) loggingActive() bool {
	return s.config.LogsEnabled && s.config.LogsEndpoint != ""
}

// IsFullyNoOp reports whether no signal needs an SDK provider.
func (s *StrategySelector) IsFullyNoOp() bool {
	return !s.tracingActive() &&
		!s.otlpMetricsActive() &&
		!s.loggingActive() &&
		!s.config.EnablePrometheusMetricsPath
}

// SelectTracerStrategy returns the OTLP strategy when tracing is enabled and
// an endpoint is set, otherwise a no-op strategy.
func (s *StrategySelector) SelectTracerStrategy() TracerStrategy {
	if s.tracingActive() {
		return &OTLPTracerStrategy{}
	}
	return &NoOpTracerStrategy{}
}

// SelectMeterStrategy returns a unified strategy when OTLP metrics or the
// Prometheus path are enabled, otherwise a no-op strategy.
func (s *StrategySelector) SelectMeterStrategy() MeterStrategy {
	enableOTLP := s.otlpMetricsActive()
	enablePrometheus := s.config.EnablePrometheusMetricsPath
	if enableOTLP || enablePrometheus {
		return &UnifiedMeterStrategy{
			EnableOTLP:       enableOTLP,
			EnablePrometheus: enablePrometheus,
		}
	}
	return &NoOpMeterStrategy{}
}

// SelectLoggerStrategy returns the OTLP strategy when logs are enabled and an
// endpoint is set, otherwise a no-op strategy.
func (s *StrategySelector) SelectLoggerStrategy() LoggerStrategy {
	if s.loggingActive() {
		return &OTLPLoggerStrategy{}
	}
	return &NoOpLoggerStrategy{}
}

// OTLPTracerStrategy exports spans over OTLP.
type OTLPTracerStrategy struct{}

// CreateTracerProvider implements TracerStrategy.
func (*OTLPTracerStrategy) CreateTracerProvider(
	ctx context.Context,
	config Config,
	res *resource.Resource,
) (trace.TracerProvider, func(context.Context) error, error) {
	logger.Debugf("Creating OTLP tracer provider (endpoint: %s)", config.TracesEndpoint)
	return otlp.NewTracerProviderWithShutdown(ctx, otlp.Config{
		Transport:    config.Transport,
		Endpoint:     config.TracesEndpoint,
		Headers:      config.Headers,
		SamplingRate: config.SamplingRate,
	}, res)
}

// NoOpTracerStrategy discards spans.
type NoOpTracerStrategy struct{}

// CreateTracerProvider implements TracerStrategy.
func (*NoOpTracerStrategy) CreateTracerProvider(
	context.Context,
	Config,
	*resource.Resource,
) (trace.TracerProvider, func(context.Context) error, error) {
	return tracenoop.NewTracerProvider(), nil, nil
}

// UnifiedMeterStrategy builds one SDK meter provider feeding the OTLP
// periodic reader, the Prometheus reader, or both.
type UnifiedMeterStrategy struct {
	EnableOTLP       bool
	EnablePrometheus bool
}

// CreateMeterProvider implements MeterStrategy.
func (s *UnifiedMeterStrategy) CreateMeterProvider(
	ctx context.Context,
	config Config,
	res *resource.Resource,
) (*MeterResult, error) {
	if !s.EnableOTLP && !s.EnablePrometheus {
		return nil, errors.New("unified meter strategy needs at least one reader")
	}

	result := &MeterResult{}
	opts := []sdkmetric.Option{sdkmetric.WithResource(res)}

	if s.EnableOTLP {
		reader, err := otlp.NewMetricReader(ctx, otlp.Config{
			Transport: config.Transport,
			Endpoint:  config.MetricsEndpoint,
			Headers:   config.Headers,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create OTLP metric reader: %w", err)
		}
		opts = append(opts, sdkmetric.WithReader(reader))
	}

	if s.EnablePrometheus {
		// runtime metrics come from the OTel runtime instrumentation below
		reader, handler, err := prometheus.NewReader(prometheus.Config{
			EnableMetricsPath:     true,
			IncludeRuntimeMetrics: false,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create Prometheus reader: %w", err)
		}
		opts = append(opts, sdkmetric.WithReader(reader))
		result.PrometheusHandler = handler
	}

	meterProvider := sdkmetric.NewMeterProvider(opts...)
	result.MeterProvider = meterProvider
	result.ShutdownFunc = meterProvider.Shutdown

	if config.IncludeRuntimeMetrics {
		if err := otelruntime.Start(otelruntime.WithMeterProvider(meterProvider)); err != nil {
			_ = meterProvider.Shutdown(ctx)
			return nil, fmt.Errorf("failed to start runtime instrumentation: %w", err)
		}
	}

	return result, nil
}

// NoOpMeterStrategy discards measurements.
type NoOpMeterStrategy struct{}

// CreateMeterProvider implements MeterStrategy.
func (*NoOpMeterStrategy) CreateMeterProvider(context.Context, Config, *resource.Resource) (*MeterResult, error) {
	return &MeterResult{MeterProvider: noop.NewMeterProvider()}, nil
}

// OTLPLoggerStrategy exports log records over OTLP.
type OTLPLoggerStrategy struct{}

// CreateLoggerProvider implements LoggerStrategy.
func (*OTLPLoggerStrategy) CreateLoggerProvider(
	ctx context.Context,
	config Config,
	res *resource.Resource,
) (otellog.LoggerProvider, func(context.Context) error, error) {
	logger.Debugf("Creating OTLP logger provider (endpoint: %s)", config.LogsEndpoint)
	provider, err := otlp.NewLoggerProvider(ctx, otlp.Config{
		Transport: config.Transport,
		Endpoint:  config.LogsEndpoint,
		Headers:   config.Headers,
	}, res)
	if err != nil {
		return nil, nil, err
	}
	return provider, provider.Shutdown, nil
}

// NoOpLoggerStrategy discards log records.
type NoOpLoggerStrategy struct{}

// CreateLoggerProvider implements LoggerStrategy.
func (*NoOpLoggerStrategy) CreateLoggerProvider(
	context.Context,
	Config,
	*resource.Resource,
) (otellog.LoggerProvider, func(context.Context) error, error) {
	return lognoop.NewLoggerProvider(), nil, nil
}
