// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package otlp provides OpenTelemetry Protocol (OTLP) provider implementations
// for traces, metrics and logs over either gRPC or HTTP/protobuf.
package otlp

// Transport selects the OTLP wire transport.
type Transport string

const (
	// TransportGRPC exports over OTLP/gRPC.
	TransportGRPC Transport = "grpc"
	// TransportHTTP exports over OTLP/HTTP with protobuf payloads.
	TransportHTTP Transport = "http/protobuf"
)

// Config holds the settings shared by the OTLP exporters of a single signal.
type Config struct {
	// Transport is the wire transport; the zero value means gRPC
	Transport Transport
	// Endpoint is the absolute collector URL, e.g. "http://127.0.0.1:4317"
	// for gRPC or "http://127.0.0.1:4318/v1/traces" for HTTP.
	// An http:// scheme disables TLS.
	Endpoint string
	// Headers are sent with every export request
	Headers map[string]string
	// SamplingRate is the trace sampling ratio (0.0-1.0); ignored by metrics and logs
	SamplingRate float64
}

func (c Config) useHTTP() bool {
	return c.Transport == TransportHTTP
}
