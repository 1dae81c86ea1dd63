// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package telemetry

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// unmatchedRoute labels requests that did not match any registered route.
// It keeps the metric cardinality bounded for arbitrary paths.
const unmatchedRoute = "unmatched"

// HTTPMiddleware records request metrics for the hello-otel router.
// Spans come from otelhttp; this middleware names the server span with
// SpanName once the chi route pattern is known.
type HTTPMiddleware struct {
	meter metric.Meter

	requestCounter  metric.Int64Counter
	requestDuration metric.Float64Histogram
	activeRequests  metric.Int64UpDownCounter
}

// NewHTTPMiddleware creates a new HTTP middleware recording request metrics
// on meterProvider.
func NewHTTPMiddleware(meterProvider metric.MeterProvider) func(http.Handler) http.Handler {
	meter := meterProvider.Meter(instrumentationName)

	requestCounter, _ := meter.Int64Counter(
		"hello_otel_requests", // The exporter adds the _total suffix automatically
		metric.WithDescription("Total number of HTTP requests"),
	)

	requestDuration, _ := meter.Float64Histogram(
		"hello_otel_request_duration", // The exporter adds the _seconds suffix automatically
		metric.WithDescription("Duration of HTTP requests in seconds"),
		metric.WithUnit("s"),
	)

	activeRequests, _ := meter.Int64UpDownCounter(
		"hello_otel_active_requests",
		metric.WithDescription("Number of in-flight HTTP requests"),
	)

	middleware := &HTTPMiddleware{
		meter:           meter,
		requestCounter:  requestCounter,
		requestDuration: requestDuration,
		activeRequests:  activeRequests,
	}

	return middleware.Handler
}

// Handler implements the middleware function that wraps HTTP handlers.
// It must run inside a chi router so the route pattern can be read.
func (m *HTTPMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		methodAttr := metric.WithAttributes(attribute.String("method", r.Method))
		m.activeRequests.Add(ctx, 1, methodAttr)
		defer m.activeRequests.Add(ctx, -1, methodAttr)

		rw := &responseWriter{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		start := time.Now()
		next.ServeHTTP(rw, r)
		duration := time.Since(start)

		span := trace.SpanFromContext(ctx)
		span.SetName(SpanName("", r))

		route := RoutePattern(r)
		if route == "" {
			route = unmatchedRoute
		} else {
			span.SetAttributes(attribute.String("http.route", route))
		}

		m.recordMetrics(ctx, r.Method, route, rw.statusCode, duration)
	})
}

// recordMetrics records request metrics.
func (m *HTTPMiddleware) recordMetrics(ctx context.Context, method, route string, statusCode int, duration time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("method", method),
		attribute.String("route", route),
		attribute.String("status_code", strconv.Itoa(statusCode)),
	)

	m.requestCounter.Add(ctx, 1, attrs)
	m.requestDuration.Record(ctx, duration.Seconds(), attrs)
}

// RoutePattern returns the chi route pattern r matched, or "" when no route
// matched yet. A pattern still ending in a wildcard means the request only hit
// a Mount prefix and fell through to not found, so it counts as unmatched.
func RoutePattern(r *http.Request) string {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil {
		return ""
	}
	pattern := rctx.RoutePattern()
	if pattern == "" || strings.HasSuffix(pattern, "*") {
		return ""
	}
	return pattern
}

// SpanName names server spans "METHOD route". Unmatched requests are named
// after the method alone so raw paths never reach span names.
// It has the otelhttp span name formatter signature.
func SpanName(_ string, r *http.Request) string {
	if route := RoutePattern(r); route != "" {
		return r.Method + " " + route
	}
	return r.Method
}

// responseWriter wraps http.ResponseWriter to capture response details.
type responseWriter struct {
	http.ResponseWriter
	statusCode    int
	bytesWritten  int64
	headerWritten bool // Guard against double WriteHeader calls
}

// WriteHeader captures the status code and ignores duplicate calls.
func (rw *responseWriter) WriteHeader(statusCode int) {
	if rw.headerWritten {
		return
	}
	rw.headerWritten = true
	rw.statusCode = statusCode
	rw.ResponseWriter.WriteHeader(statusCode)
}

// Write captures the number of bytes written.
// A Write before WriteHeader fixes the status at 200.
func (rw *responseWriter) Write(data []byte) (int, error) {
	if !rw.headerWritten {
		rw.headerWritten = true
		rw.statusCode = http.StatusOK
	}

	n, err := rw.ResponseWriter.Write(data)
	rw.bytesWritten += int64(n)
	return n, err
}

// Flush implements http.Flusher if the underlying ResponseWriter supports it.
func (rw *responseWriter) Flush() {
	if flusher, ok := rw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

// Unwrap exposes the wrapped writer to http.ResponseController.
func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}
