// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package logger provides the process-wide structured logger for hello-otel.
//
// Records always go to the console handler built by toolhive-core/logging.
// Once telemetry is up, [Bridge] fans records out to an OpenTelemetry logger
// provider as well, so log lines are exported over OTLP and correlated with
// the active span. New code should inject *slog.Logger directly; use [Get]
// to obtain it.
package logger

import (
	"fmt"
	"log/slog"
	"strconv"
	"sync/atomic"

	"github.com/go-logr/logr"
	"github.com/spf13/viper"
	"github.com/stacklok/toolhive-core/env"
	"github.com/stacklok/toolhive-core/logging"
	"go.opentelemetry.io/contrib/bridges/otelslog"
	otellog "go.opentelemetry.io/otel/log"
)

var (
	// singleton is the logger handed out to callers, possibly bridged.
	singleton atomic.Pointer[slog.Logger]
	// console is the console-only logger created by Initialize.
	console atomic.Pointer[slog.Logger]
)

func init() {
	l := logging.New()
	singleton.Store(l)
	console.Store(l)
}

func get() *slog.Logger {
	return singleton.Load()
}

// Get returns the underlying *slog.Logger for injection into structs.
func Get() *slog.Logger {
	return get()
}

// Debugf logs a message at debug level using the singleton logger.
func Debugf(msg string, args ...any) {
	get().Debug(fmt.Sprintf(msg, args...))
}

// Infof logs a message at info level using the singleton logger.
func Infof(msg string, args ...any) {
	get().Info(fmt.Sprintf(msg, args...))
}

// Warnf logs a message at warning level using the singleton logger.
func Warnf(msg string, args ...any) {
	get().Warn(fmt.Sprintf(msg, args...))
}

// Errorf logs a message at error level using the singleton logger.
func Errorf(msg string, args ...any) {
	get().Error(fmt.Sprintf(msg, args...))
}

// NewLogr returns a logr.Logger backed by the console handler only.
// It is handed to the OpenTelemetry SDK for its own diagnostics, which must
// never loop back into the OTLP log pipeline.
func NewLogr() logr.Logger {
	return logr.FromSlogHandler(console.Load().Handler())
}

// Bridge routes every record to the console handler and to provider.
// name is the instrumentation scope of the exported records.
// Calling Bridge again replaces the previous bridge.
func Bridge(name string, provider otellog.LoggerProvider) {
	otelHandler := otelslog.NewHandler(name, otelslog.WithLoggerProvider(provider))
	l := slog.New(slog.NewMultiHandler(console.Load().Handler(), otelHandler))
	singleton.Store(l)
	slog.SetDefault(l)
}

// Initialize creates and configures the console logger.
// If the UNSTRUCTURED_LOGS env var is set to true, it will output plain text.
// Otherwise it will create a standard structured JSON logger.
func Initialize() {
	InitializeWithEnv(&env.OSReader{})
}

// InitializeWithEnv creates and configures the console logger with a custom environment reader.
// This allows for dependency injection of environment variable access for testing.
func InitializeWithEnv(envReader env.Reader) {
	var opts []logging.Option
	if unstructuredLogsWithEnv(envReader) {
		opts = append(opts, logging.WithFormat(logging.FormatText))
	}
	if viper.GetBool("debug") {
		opts = append(opts, logging.WithLevel(slog.LevelDebug))
	}
	l := logging.New(opts...)
	console.Store(l)
	singleton.Store(l)
}

func unstructuredLogsWithEnv(envReader env.Reader) bool {
	unstructuredLogs, err := strconv.ParseBool(envReader.Getenv("UNSTRUCTURED_LOGS"))
	if err != nil {
		// unset or unparsable defaults to text output
		return true
	}
	return unstructuredLogs
}
