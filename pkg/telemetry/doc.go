// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package telemetry wires hello-otel into OpenTelemetry. It resolves the
// per-signal OTLP endpoints, builds the tracer, meter and logger providers,
// registers them as process globals and records HTTP request metrics.
package telemetry
