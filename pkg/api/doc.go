// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package api contains the HTTP server for hello-otel.
//
// The router is built with chi. Every request passes through request ID
// assignment, panic recovery, a timeout, a body size limit, otelhttp server
// instrumentation and the request metrics middleware from pkg/telemetry.
//
// Routes are versioned in subpackages (e.g., v1):
//   - GET /         plain text greeting
//   - GET /hello    span + log + outbound call
//   - GET /health   liveness
//   - GET /version  build information
//   - GET /metrics  Prometheus exposition, when enabled
package api
