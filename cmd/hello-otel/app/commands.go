// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package app provides the entry point for the hello-otel command-line application.
package app

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/stacklok/hello-otel/pkg/logger"
)

// NewRootCmd creates a new root command for the hello-otel CLI.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:               "hello-otel",
		DisableAutoGenTag: true,
		Short:             "Demo service exporting traces, logs and metrics over OTLP",
		Long: `hello-otel is a small HTTP service wired to an OpenTelemetry collector.

Every request to /hello creates a span, writes a log record and makes one
outbound HTTP call, so the three signals can be inspected end to end.

Exporters are configured with the standard OTEL_* environment variables:
  OTEL_SERVICE_NAME, OTEL_EXPORTER_OTLP_PROTOCOL (grpc or http/protobuf),
  OTEL_EXPORTER_OTLP_ENDPOINT, OTEL_EXPORTER_OTLP_{TRACES,LOGS,METRICS}_ENDPOINT,
  OTEL_EXPORTER_OTLP_HEADERS, OTEL_ENV, OTEL_SDK_DISABLED and
  OTEL_{TRACES,METRICS,LOGS}_EXPORTER=none.`,
		Run: func(cmd *cobra.Command, _ []string) {
			// If no subcommand is provided, print help
			if err := cmd.Help(); err != nil {
				logger.Errorf("Error displaying help: %v", err)
			}
		},
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			logger.Initialize()
		},
	}

	// Add persistent flags
	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug mode")
	err := viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	if err != nil {
		logger.Errorf("Error binding debug flag: %v", err)
	}

	// Add subcommands
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newConfigCmd())

	// Silence printing the usage on error
	rootCmd.SilenceUsage = true

	return rootCmd
}
