// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package telemetry

import (
	"strings"

	"github.com/stacklok/hello-otel/pkg/telemetry/providers/otlp"
)

// ProtocolHTTPProtobuf is the OTEL_EXPORTER_OTLP_PROTOCOL value that selects
// the HTTP exporters. Any other value selects gRPC.
const ProtocolHTTPProtobuf = "http/protobuf"

// Endpoints is the collector endpoint chosen for each signal.
type Endpoints struct {
	Transport otlp.Transport
	Traces    string
	Logs      string
	Metrics   string
}

// SelectEndpoints resolves the per-signal endpoints for protocol.
// With http/protobuf (matched case-insensitively) each signal uses its own
// HTTP endpoint; otherwise all three share the gRPC endpoint.
func SelectEndpoints(protocol, grpcEndpoint, tracesEndpoint, logsEndpoint, metricsEndpoint string) Endpoints {
	if IsHTTPProtocol(protocol) {
		return Endpoints{
			Transport: otlp.TransportHTTP,
			Traces:    tracesEndpoint,
			Logs:      logsEndpoint,
			Metrics:   metricsEndpoint,
		}
	}
	return Endpoints{
		Transport: otlp.TransportGRPC,
		Traces:    grpcEndpoint,
		Logs:      grpcEndpoint,
		Metrics:   grpcEndpoint,
	}
}

// IsHTTPProtocol reports whether protocol selects the HTTP exporters.
func IsHTTPProtocol(protocol string) bool {
	return strings.EqualFold(strings.TrimSpace(protocol), ProtocolHTTPProtobuf)
}

// IsKnownProtocol reports whether protocol is grpc or http/protobuf.
func IsKnownProtocol(protocol string) bool {
	return IsHTTPProtocol(protocol) || strings.EqualFold(strings.TrimSpace(protocol), string(otlp.TransportGRPC))
}
