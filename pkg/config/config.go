// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package config resolves the hello-otel runtime configuration from the
// OTEL_* environment variables and the command-line flags.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/stacklok/toolhive-core/env"

	"github.com/stacklok/hello-otel/pkg/errors"
	"github.com/stacklok/hello-otel/pkg/logger"
	"github.com/stacklok/hello-otel/pkg/telemetry"
	"github.com/stacklok/hello-otel/pkg/versions"
)

// Environment variables read by Load.
const (
	EnvServiceName     = "OTEL_SERVICE_NAME"
	EnvProtocol        = "OTEL_EXPORTER_OTLP_PROTOCOL"
	EnvEndpoint        = "OTEL_EXPORTER_OTLP_ENDPOINT"
	EnvTracesEndpoint  = "OTEL_EXPORTER_OTLP_TRACES_ENDPOINT"
	EnvLogsEndpoint    = "OTEL_EXPORTER_OTLP_LOGS_ENDPOINT"
	EnvMetricsEndpoint = "OTEL_EXPORTER_OTLP_METRICS_ENDPOINT"
	EnvHeaders         = "OTEL_EXPORTER_OTLP_HEADERS"
	EnvEnvironment     = "OTEL_ENV"
	EnvSDKDisabled     = "OTEL_SDK_DISABLED"
	EnvTracesExporter  = "OTEL_TRACES_EXPORTER"
	EnvMetricsExporter = "OTEL_METRICS_EXPORTER"
	EnvLogsExporter    = "OTEL_LOGS_EXPORTER"
)

// Defaults applied when a variable is unset or empty.
const (
	DefaultProtocol        = "grpc"
	DefaultGRPCEndpoint    = "http://127.0.0.1:4317"
	DefaultTracesEndpoint  = "http://127.0.0.1:4318/v1/traces"
	DefaultLogsEndpoint    = "http://127.0.0.1:4318/v1/logs"
	DefaultMetricsEndpoint = "http://127.0.0.1:4318/v1/metrics"
	DefaultEnvironment     = "dev"

	DefaultListenAddress     = ":8080"
	DefaultDownstreamURL     = "https://example.com"
	DefaultDownstreamTimeout = 10 * time.Second
	DefaultSamplingRate      = 1.0
)

// exporterNone disables a single signal in OTEL_*_EXPORTER.
const exporterNone = "none"

// Config is the resolved hello-otel configuration. It is read once at startup.
type Config struct {
	ServiceName    string `json:"serviceName"`
	ServiceVersion string `json:"serviceVersion"`
	Environment    string `json:"environment"`
	HostName       string `json:"hostName"`

	Protocol        string            `json:"protocol"`
	GRPCEndpoint    string            `json:"grpcEndpoint"`
	TracesEndpoint  string            `json:"tracesEndpoint"`
	LogsEndpoint    string            `json:"logsEndpoint"`
	MetricsEndpoint string            `json:"metricsEndpoint"`
	Headers         map[string]string `json:"-"`

	TracingEnabled bool    `json:"tracingEnabled"`
	MetricsEnabled bool    `json:"metricsEnabled"`
	LogsEnabled    bool    `json:"logsEnabled"`
	SamplingRate   float64 `json:"samplingRate"`

	EnablePrometheusMetricsPath bool `json:"enablePrometheusMetricsPath"`

	ListenAddress     string        `json:"listenAddress"`
	DownstreamURL     string        `json:"downstreamURL"`
	DownstreamTimeout time.Duration `json:"downstreamTimeout"`
}

// Flags are the command-line settings layered over the environment.
type Flags struct {
	ListenAddress               string
	DownstreamURL               string
	DownstreamTimeout           time.Duration
	SamplingRate                float64
	EnablePrometheusMetricsPath bool
}

// DefaultFlags returns the flag defaults.
func DefaultFlags() Flags {
	return Flags{
		ListenAddress:     DefaultListenAddress,
		DownstreamURL:     DefaultDownstreamURL,
		DownstreamTimeout: DefaultDownstreamTimeout,
		SamplingRate:      DefaultSamplingRate,
	}
}

// Viper keys the serve command binds its flags to.
const (
	KeyAddress                     = "address"
	KeyDownstreamURL               = "downstream-url"
	KeyDownstreamTimeout           = "downstream-timeout"
	KeySamplingRate                = "sampling-rate"
	KeyEnablePrometheusMetricsPath = "enable-prometheus-metrics-path"
)

// FlagsFromViper reads Flags from the viper keys bound by the serve command.
func FlagsFromViper() Flags {
	return Flags{
		ListenAddress:               viper.GetString(KeyAddress),
		DownstreamURL:               viper.GetString(KeyDownstreamURL),
		DownstreamTimeout:           viper.GetDuration(KeyDownstreamTimeout),
		SamplingRate:                viper.GetFloat64(KeySamplingRate),
		EnablePrometheusMetricsPath: viper.GetBool(KeyEnablePrometheusMetricsPath),
	}
}

// Load resolves and validates the configuration from the process environment
// and the viper-bound flags.
func Load() (*Config, error) {
	return LoadWithEnv(&env.OSReader{}, FlagsFromViper())
}

// LoadWithEnv resolves and validates the configuration with a custom environment reader.
func LoadWithEnv(envReader env.Reader, flags Flags) (*Config, error) {
	cfg := &Config{
		ServiceName:     getOrDefault(envReader, EnvServiceName, telemetry.DefaultServiceName),
		ServiceVersion:  versions.GetVersionInfo().Version,
		Environment:     getOrDefault(envReader, EnvEnvironment, DefaultEnvironment),
		HostName:        hostName(),
		Protocol:        getOrDefault(envReader, EnvProtocol, DefaultProtocol),
		GRPCEndpoint:    getOrDefault(envReader, EnvEndpoint, DefaultGRPCEndpoint),
		TracesEndpoint:  getOrDefault(envReader, EnvTracesEndpoint, DefaultTracesEndpoint),
		LogsEndpoint:    getOrDefault(envReader, EnvLogsEndpoint, DefaultLogsEndpoint),
		MetricsEndpoint: getOrDefault(envReader, EnvMetricsEndpoint, DefaultMetricsEndpoint),

		ListenAddress:               flags.ListenAddress,
		DownstreamURL:               flags.DownstreamURL,
		DownstreamTimeout:           flags.DownstreamTimeout,
		SamplingRate:                flags.SamplingRate,
		EnablePrometheusMetricsPath: flags.EnablePrometheusMetricsPath,
	}

	headers, err := telemetry.ParseHeaders(envReader.Getenv(EnvHeaders))
	if err != nil {
		return nil, invalid(EnvHeaders+" is malformed", err)
	}
	cfg.Headers = headers

	sdkDisabled := parseBool(envReader.Getenv(EnvSDKDisabled))
	cfg.TracingEnabled = !sdkDisabled && !exporterDisabled(envReader, EnvTracesExporter)
	cfg.MetricsEnabled = !sdkDisabled && !exporterDisabled(envReader, EnvMetricsExporter)
	cfg.LogsEnabled = !sdkDisabled && !exporterDisabled(envReader, EnvLogsExporter)

	if !telemetry.IsKnownProtocol(cfg.Protocol) {
		logger.Warnf("Unknown %s %q, falling back to %s", EnvProtocol, cfg.Protocol, DefaultProtocol)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Endpoints returns the per-signal endpoints selected by the protocol.
func (c *Config) Endpoints() telemetry.Endpoints {
	return telemetry.SelectEndpoints(c.Protocol, c.GRPCEndpoint, c.TracesEndpoint, c.LogsEndpoint, c.MetricsEndpoint)
}

// Telemetry converts the configuration into a telemetry.Config.
func (c *Config) Telemetry() telemetry.Config {
	return telemetry.Config{
		ServiceName:                 c.ServiceName,
		ServiceVersion:              c.ServiceVersion,
		Environment:                 c.Environment,
		HostName:                    c.HostName,
		Endpoints:                   c.Endpoints(),
		Headers:                     c.Headers,
		TracingEnabled:              c.TracingEnabled,
		MetricsEnabled:              c.MetricsEnabled,
		LogsEnabled:                 c.LogsEnabled,
		SamplingRate:                c.SamplingRate,
		EnablePrometheusMetricsPath: c.EnablePrometheusMetricsPath,
		IncludeRuntimeMetrics:       true,
	}
}

func getOrDefault(envReader env.Reader, key, fallback string) string {
	if v := strings.TrimSpace(envReader.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func exporterDisabled(envReader env.Reader, key string) bool {
	return strings.EqualFold(strings.TrimSpace(envReader.Getenv(key)), exporterNone)
}

func parseBool(value string) bool {
	b, err := strconv.ParseBool(strings.TrimSpace(value))
	return err == nil && b
}

func hostName() string {
	name, err := os.Hostname()
	if err != nil {
		logger.Debugf("Failed to read host name: %v", err)
		return ""
	}
	return name
}

// invalid wraps a validation failure as an invalid_config error.
func invalid(message string, cause error) error {
	return errors.NewInvalidConfigError(message, cause)
}
