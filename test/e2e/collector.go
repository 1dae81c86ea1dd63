// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package e2e provides end-to-end testing utilities for hello-otel.
package e2e

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	collectorlogspb "go.opentelemetry.io/proto/otlp/collector/logs/v1"
	collectormetricspb "go.opentelemetry.io/proto/otlp/collector/metrics/v1"
	collectortracepb "go.opentelemetry.io/proto/otlp/collector/trace/v1"
	commonpb "go.opentelemetry.io/proto/otlp/common/v1"
	logspb "go.opentelemetry.io/proto/otlp/logs/v1"
	metricspb "go.opentelemetry.io/proto/otlp/metrics/v1"
	tracepb "go.opentelemetry.io/proto/otlp/trace/v1"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/proto"
)

const protobufContentType = "application/x-protobuf"

// Collector is an in-memory OTLP receiver listening on both transports.
type Collector struct {
	httpServer *http.Server
	grpcServer *grpc.Server
	httpAddr   string
	grpcAddr   string

	mu      sync.Mutex
	spans   []*tracepb.ResourceSpans
	logs    []*logspb.ResourceLogs
	metrics []*metricspb.ResourceMetrics
	headers []map[string]string
}

// StartCollector starts the OTLP/HTTP and OTLP/gRPC receivers on loopback ports.
func StartCollector() (*Collector, error) {
	httpListener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, fmt.Errorf("failed to listen for OTLP/HTTP: %w", err)
	}
	grpcListener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		_ = httpListener.Close()
		return nil, fmt.Errorf("failed to listen for OTLP/gRPC: %w", err)
	}

	c := &Collector{
		httpAddr: httpListener.Addr().String(),
		grpcAddr: grpcListener.Addr().String(),
	}

	router := chi.NewRouter()
	router.Post("/v1/traces", c.handleTraces)
	router.Post("/v1/logs", c.handleLogs)
	router.Post("/v1/metrics", c.handleMetrics)
	c.httpServer = &http.Server{Handler: router, ReadHeaderTimeout: 5 * time.Second}

	c.grpcServer = grpc.NewServer()
	collectortracepb.RegisterTraceServiceServer(c.grpcServer, &traceReceiver{c: c})
	collectorlogspb.RegisterLogsServiceServer(c.grpcServer, &logsReceiver{c: c})
	collectormetricspb.RegisterMetricsServiceServer(c.grpcServer, &metricsReceiver{c: c})

	go func() { _ = c.httpServer.Serve(httpListener) }()
	go func() { _ = c.grpcServer.Serve(grpcListener) }()

	return c, nil
}

// HTTPEndpoint returns the OTLP/HTTP URL for the given signal path, e.g. "/v1/traces".
func (c *Collector) HTTPEndpoint(path string) string {
	return "http://" + c.httpAddr + path
}

// GRPCEndpoint returns the OTLP/gRPC URL.
func (c *Collector) GRPCEndpoint() string {
	return "http://" + c.grpcAddr
}

// Stop shuts both receivers down.
func (c *Collector) Stop(ctx context.Context) error {
	c.grpcServer.Stop()
	return c.httpServer.Shutdown(ctx)
}

// Reset drops everything received so far.
func (c *Collector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.spans, c.logs, c.metrics, c.headers = nil, nil, nil, nil
}

// Span is a flattened view of a received span.
type Span struct {
	Name        string
	Kind        tracepb.Span_SpanKind
	ServiceName string
	Attributes  map[string]any
	TraceID     string
	SpanID      string
	ParentID    string
	StatusCode  tracepb.Status_StatusCode
	Events      []string
}

// Spans returns every span received so far.
func (c *Collector) Spans() []Span {
	c.mu.Lock()
	defer c.mu.Unlock()

	var out []Span
	for _, rs := range c.spans {
		service := stringAttr(rs.GetResource().GetAttributes(), "service.name")
		for _, ss := range rs.GetScopeSpans() {
			for _, s := range ss.GetSpans() {
				span := Span{
					Name:        s.GetName(),
					Kind:        s.GetKind(),
					ServiceName: service,
					Attributes:  attrMap(s.GetAttributes()),
					TraceID:     fmt.Sprintf("%x", s.GetTraceId()),
					SpanID:      fmt.Sprintf("%x", s.GetSpanId()),
					ParentID:    fmt.Sprintf("%x", s.GetParentSpanId()),
					StatusCode:  s.GetStatus().GetCode(),
				}
				for _, e := range s.GetEvents() {
					span.Events = append(span.Events, e.GetName())
				}
				out = append(out, span)
			}
		}
	}
	return out
}

// SpanNamed returns the first received span called name.
func (c *Collector) SpanNamed(name string) (Span, bool) {
	for _, s := range c.Spans() {
		if s.Name == name {
			return s, true
		}
	}
	return Span{}, false
}

// SpansOfKind returns the received spans of the given kind.
func (c *Collector) SpansOfKind(kind tracepb.Span_SpanKind) []Span {
	var out []Span
	for _, s := range c.Spans() {
		if s.Kind == kind {
			out = append(out, s)
		}
	}
	return out
}

// LogRecord is a flattened view of a received log record.
type LogRecord struct {
	Body        string
	Severity    string
	ServiceName string
	TraceID     string
	SpanID      string
	Attributes  map[string]any
}

// Logs returns every log record received so far.
func (c *Collector) Logs() []LogRecord {
	c.mu.Lock()
	defer c.mu.Unlock()

	var out []LogRecord
	for _, rl := range c.logs {
		service := stringAttr(rl.GetResource().GetAttributes(), "service.name")
		for _, sl := range rl.GetScopeLogs() {
			for _, r := range sl.GetLogRecords() {
				out = append(out, LogRecord{
					Body:        r.GetBody().GetStringValue(),
					Severity:    r.GetSeverityText(),
					ServiceName: service,
					TraceID:     fmt.Sprintf("%x", r.GetTraceId()),
					SpanID:      fmt.Sprintf("%x", r.GetSpanId()),
					Attributes:  attrMap(r.GetAttributes()),
				})
			}
		}
	}
	return out
}

// MetricNames returns the names of every metric received so far, keyed by
// the service that reported them.
func (c *Collector) MetricNames() map[string][]string {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := map[string][]string{}
	for _, rm := range c.metrics {
		service := stringAttr(rm.GetResource().GetAttributes(), "service.name")
		for _, sm := range rm.GetScopeMetrics() {
			for _, m := range sm.GetMetrics() {
				out[service] = append(out[service], m.GetName())
			}
		}
	}
	return out
}

// Headers returns the request headers of every export, lower-cased.
func (c *Collector) Headers() []map[string]string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]map[string]string(nil), c.headers...)
}

func (c *Collector) recordHeaders(h map[string]string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.headers = append(c.headers, h)
}

func (c *Collector) handleTraces(w http.ResponseWriter, r *http.Request) {
	req := &collectortracepb.ExportTraceServiceRequest{}
	if !c.decode(w, r, req) {
		return
	}
	c.mu.Lock()
	c.spans = append(c.spans, req.GetResourceSpans()...)
	c.mu.Unlock()
	writeProto(w, &collectortracepb.ExportTraceServiceResponse{})
}

func (c *Collector) handleLogs(w http.ResponseWriter, r *http.Request) {
	req := &collectorlogspb.ExportLogsServiceRequest{}
	if !c.decode(w, r, req) {
		return
	}
	c.mu.Lock()
	c.logs = append(c.logs, req.GetResourceLogs()...)
	c.mu.Unlock()
	writeProto(w, &collectorlogspb.ExportLogsServiceResponse{})
}

func (c *Collector) handleMetrics(w http.ResponseWriter, r *http.Request) {
	req := &collectormetricspb.ExportMetricsServiceRequest{}
	if !c.decode(w, r, req) {
		return
	}
	c.mu.Lock()
	c.metrics = append(c.metrics, req.GetResourceMetrics()...)
	c.mu.Unlock()
	writeProto(w, &collectormetricspb.ExportMetricsServiceResponse{})
}

// decode reads a protobuf request body into msg, replying 400 on failure.
func (c *Collector) decode(w http.ResponseWriter, r *http.Request, msg proto.Message) bool {
	if ct := r.Header.Get("Content-Type"); !strings.HasPrefix(ct, protobufContentType) {
		http.Error(w, "unsupported content type "+ct, http.StatusUnsupportedMediaType)
		return false
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return false
	}
	if err := proto.Unmarshal(body, msg); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return false
	}

	headers := map[string]string{}
	for k := range r.Header {
		headers[strings.ToLower(k)] = r.Header.Get(k)
	}
	c.recordHeaders(headers)
	return true
}

func writeProto(w http.ResponseWriter, msg proto.Message) {
	body, err := proto.Marshal(msg)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", protobufContentType)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

type traceReceiver struct {
	collectortracepb.UnimplementedTraceServiceServer
	c *Collector
}

func (r *traceReceiver) Export(
	ctx context.Context, req *collectortracepb.ExportTraceServiceRequest,
) (*collectortracepb.ExportTraceServiceResponse, error) {
	r.c.recordMetadata(ctx)
	r.c.mu.Lock()
	r.c.spans = append(r.c.spans, req.GetResourceSpans()...)
	r.c.mu.Unlock()
	return &collectortracepb.ExportTraceServiceResponse{}, nil
}

type logsReceiver struct {
	collectorlogspb.UnimplementedLogsServiceServer
	c *Collector
}

func (r *logsReceiver) Export(
	ctx context.Context, req *collectorlogspb.ExportLogsServiceRequest,
) (*collectorlogspb.ExportLogsServiceResponse, error) {
	r.c.recordMetadata(ctx)
	r.c.mu.Lock()
	r.c.logs = append(r.c.logs, req.GetResourceLogs()...)
	r.c.mu.Unlock()
	return &collectorlogspb.ExportLogsServiceResponse{}, nil
}

type metricsReceiver struct {
	collectormetricspb.UnimplementedMetricsServiceServer
	c *Collector
}

func (r *metricsReceiver) Export(
	ctx context.Context, req *collectormetricspb.ExportMetricsServiceRequest,
) (*collectormetricspb.ExportMetricsServiceResponse, error) {
	r.c.recordMetadata(ctx)
	r.c.mu.Lock()
	r.c.metrics = append(r.c.metrics, req.GetResourceMetrics()...)
	r.c.mu.Unlock()
	return &collectormetricspb.ExportMetricsServiceResponse{}, nil
}

func (c *Collector) recordMetadata(ctx context.Context) {
	md, _ := metadata.FromIncomingContext(ctx)
	headers := map[string]string{}
	for k, v := range md {
		if len(v) > 0 {
			headers[strings.ToLower(k)] = v[0]
		}
	}
	c.recordHeaders(headers)
}

func stringAttr(attrs []*commonpb.KeyValue, key string) string {
	for _, kv := range attrs {
		if kv.GetKey() == key {
			return kv.GetValue().GetStringValue()
		}
	}
	return ""
}

func attrMap(attrs []*commonpb.KeyValue) map[string]any {
	out := make(map[string]any, len(attrs))
	for _, kv := range attrs {
		switch v := kv.GetValue().GetValue().(type) {
		case *commonpb.AnyValue_StringValue:
			out[kv.GetKey()] = v.StringValue
		case *commonpb.AnyValue_IntValue:
			out[kv.GetKey()] = v.IntValue
		case *commonpb.AnyValue_BoolValue:
			out[kv.GetKey()] = v.BoolValue
		case *commonpb.AnyValue_DoubleValue:
			out[kv.GetKey()] = v.DoubleValue
		default:
			out[kv.GetKey()] = kv.GetValue().String()
		}
	}
	return out
}

// FreeAddress returns a loopback address with a port that was free when checked.
func FreeAddress() (string, error) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return "", err
	}
	addr := l.Addr().String()
	if err := l.Close(); err != nil {
		return "", err
	}
	return addr, nil
}

// WaitForHTTP polls url until it answers with wantStatus or timeout passes.
func WaitForHTTP(url string, wantStatus int, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		resp, err := http.Get(url) //nolint:gosec // test URL
		if err == nil {
			_ = resp.Body.Close()
			if resp.StatusCode == wantStatus {
				return nil
			}
		}
		time.Sleep(50 * time.Millisecond)
	}
	return errors.New("timed out waiting for " + url)
}
