// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.opentelemetry.io/otel"

	"github.com/stacklok/hello-otel/pkg/api"
	v1 "github.com/stacklok/hello-otel/pkg/api/v1"
	"github.com/stacklok/hello-otel/pkg/config"
	"github.com/stacklok/hello-otel/pkg/logger"
	"github.com/stacklok/hello-otel/pkg/telemetry"
)

// telemetryShutdownTimeout bounds the final flush after the server stops.
const telemetryShutdownTimeout = 10 * time.Second

// newServeCmd creates the serve command for starting the hello-otel server
func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the hello-otel HTTP server",
		Long: `Start the hello-otel HTTP server.

The server exposes / and /hello, plus /health, /version and, when enabled,
/metrics. Telemetry is flushed and shut down after the HTTP server stops.`,
		PreRunE: bindServeFlags,
		RunE:    runServe,
	}
	addServeFlags(cmd.Flags())
	return cmd
}

// addServeFlags registers the flags that feed config.Flags.
func addServeFlags(flags *pflag.FlagSet) {
	defaults := config.DefaultFlags()
	flags.String(config.KeyAddress, defaults.ListenAddress, "Address to listen on")
	flags.String(config.KeyDownstreamURL, defaults.DownstreamURL, "URL called by /hello")
	flags.Duration(config.KeyDownstreamTimeout, defaults.DownstreamTimeout, "Timeout for the downstream call")
	flags.Float64(config.KeySamplingRate, defaults.SamplingRate, "Trace sampling rate (0.0-1.0)")
	flags.Bool(config.KeyEnablePrometheusMetricsPath, defaults.EnablePrometheusMetricsPath,
		"Expose Prometheus metrics at /metrics")
}

// bindServeFlags binds the flags of cmd to their viper keys.
// Binding happens at run time because serve and config show share the keys.
func bindServeFlags(cmd *cobra.Command, _ []string) error {
	for _, key := range []string{
		config.KeyAddress,
		config.KeyDownstreamURL,
		config.KeyDownstreamTimeout,
		config.KeySamplingRate,
		config.KeyEnablePrometheusMetricsPath,
	} {
		if err := viper.BindPFlag(key, cmd.Flags().Lookup(key)); err != nil {
			return fmt.Errorf("failed to bind %s flag: %w", key, err)
		}
	}
	return nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("configuration loading failed: %w", err)
	}

	return serve(ctx, cfg)
}

// serve runs the server for cfg until ctx is done.
func serve(ctx context.Context, cfg *config.Config) (retErr error) {
	endpoints := cfg.Endpoints()
	logger.Infof("Starting %s %s (protocol: %s, traces: %s, logs: %s, metrics: %s)",
		cfg.ServiceName, cfg.ServiceVersion, endpoints.Transport, endpoints.Traces, endpoints.Logs, endpoints.Metrics)

	provider, err := telemetry.NewProvider(ctx, cfg.Telemetry())
	if err != nil {
		return fmt.Errorf("failed to create telemetry provider: %w", err)
	}
	defer func() {
		// ctx is done by now
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), telemetryShutdownTimeout)
		defer cancel()
		if err := shutdownTelemetry(shutdownCtx, provider); err != nil {
			logger.Errorf("Telemetry shutdown failed: %v", err)
			retErr = errors.Join(retErr, err)
		}
	}()

	router := api.NewRouter(api.RouterOptions{
		TracerProvider: provider.TracerProvider(),
		MeterProvider:  provider.MeterProvider(),
		Propagator:     otel.GetTextMapPropagator(),
		Greeting: v1.GreetingOptions{
			Logger:            logger.Get(),
			DownstreamURL:     cfg.DownstreamURL,
			DownstreamTimeout: cfg.DownstreamTimeout,
		},
		PrometheusHandler: provider.PrometheusHandler(),
	})

	return api.Serve(ctx, cfg.ListenAddress, router)
}

// shutdownTelemetry flushes buffered telemetry and releases the exporters.
func shutdownTelemetry(ctx context.Context, provider *telemetry.Provider) error {
	flushErr := provider.ForceFlush(ctx)
	if flushErr != nil {
		flushErr = fmt.Errorf("telemetry flush failed: %w", flushErr)
	}
	return errors.Join(flushErr, provider.Shutdown(ctx))
}
