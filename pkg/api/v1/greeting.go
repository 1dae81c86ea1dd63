// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package v1

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/stacklok/hello-otel/pkg/errors"
)

const (
	// instrumentationName is the name of this instrumentation package
	instrumentationName = "github.com/stacklok/hello-otel/pkg/api/v1"

	// GreetingText is the body served on the root route.
	GreetingText = "Hello OTEL! Hit /hello to create spans + logs."

	// HelloMessage is the message returned by /hello.
	HelloMessage = "hello, otel!"

	helloSpanName = "say-hello"
)

// GreetingOptions configure the greeting routes.
type GreetingOptions struct {
	Logger         *slog.Logger
	TracerProvider trace.TracerProvider
	MeterProvider  metric.MeterProvider
	// Propagator injects trace context into the downstream request.
	// Defaults to the global propagator.
	Propagator        propagation.TextMapPropagator
	DownstreamURL     string
	DownstreamTimeout time.Duration
	// BaseTransport is wrapped with client instrumentation.
	// Defaults to http.DefaultTransport.
	BaseTransport http.RoundTripper
}

// GreetingRoutes defines the greeting and hello routes.
type GreetingRoutes struct {
	logger          *slog.Logger
	tracer          trace.Tracer
	client          *http.Client
	downstreamURL   string
	downstreamCalls metric.Int64Counter
}

// helloResponse is the body returned by /hello
type helloResponse struct {
	Message string `json:"message"`
}

// GreetingRouter creates the router serving / and /hello.
func GreetingRouter(opts GreetingOptions) http.Handler {
	routes := NewGreetingRoutes(opts)

	r := chi.NewRouter()
	r.Get("/", routes.getGreeting)
	r.Get("/hello", routes.getHello)
	return r
}

// NewGreetingRoutes creates a new GreetingRoutes instance.
func NewGreetingRoutes(opts GreetingOptions) *GreetingRoutes {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.TracerProvider == nil {
		opts.TracerProvider = otel.GetTracerProvider()
	}
	if opts.MeterProvider == nil {
		opts.MeterProvider = otel.GetMeterProvider()
	}
	if opts.Propagator == nil {
		opts.Propagator = otel.GetTextMapPropagator()
	}
	if opts.BaseTransport == nil {
		opts.BaseTransport = http.DefaultTransport
	}

	meter := opts.MeterProvider.Meter(instrumentationName)
	downstreamCalls, _ := meter.Int64Counter(
		"hello_otel_downstream_calls", // The exporter adds the _total suffix automatically
		metric.WithDescription("Total number of outbound calls made by /hello"),
	)

	return &GreetingRoutes{
		logger: opts.Logger,
		tracer: opts.TracerProvider.Tracer(instrumentationName),
		client: &http.Client{
			Transport: otelhttp.NewTransport(opts.BaseTransport,
				otelhttp.WithTracerProvider(opts.TracerProvider),
				otelhttp.WithMeterProvider(opts.MeterProvider),
				otelhttp.WithPropagators(opts.Propagator),
			),
			Timeout: opts.DownstreamTimeout,
		},
		downstreamURL:   opts.DownstreamURL,
		downstreamCalls: downstreamCalls,
	}
}

//	 getGreeting
//		@Summary		Greeting
//		@Description	Returns a plain text greeting
//		@Tags			hello
//		@Produce		plain
//		@Success		200	{string}	string
//		@Router			/ [get]
func (*GreetingRoutes) getGreeting(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, GreetingText)
}

//	 getHello
//		@Summary		Hello
//		@Description	Creates a span, calls the downstream URL and logs the outcome.
//		@Description	The downstream result never changes the response.
//		@Tags			hello
//		@Produce		json
//		@Success		200	{object}	helloResponse
//		@Router			/hello [get]
func (s *GreetingRoutes) getHello(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	s.logger.InfoContext(ctx, "Handling /hello", "time", time.Now().UTC().Format(time.RFC3339Nano))

	ctx, span := s.tracer.Start(ctx, helloSpanName, trace.WithAttributes(
		attribute.String("hello.tag", "world"),
	))
	defer span.End()

	status, err := s.callDownstream(ctx)
	if err != nil {
		s.downstreamCalls.Add(ctx, 1, metric.WithAttributes(attribute.String("result", "error")))
		s.logger.ErrorContext(ctx, "Downstream call failed", "url", s.downstreamURL, "error", err)
		span.SetStatus(codes.Error, err.Error())
		span.RecordError(err)
	} else {
		s.downstreamCalls.Add(ctx, 1, metric.WithAttributes(attribute.String("result", "success")))
		span.SetAttributes(attribute.Int("example.status", status))
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(helloResponse{Message: HelloMessage}); err != nil {
		s.logger.ErrorContext(ctx, "Failed to encode hello response", "error", err)
	}
}

// callDownstream performs the outbound GET and returns its status code.
// Any HTTP status counts as success; only transport failures are errors.
func (s *GreetingRoutes) callDownstream(ctx context.Context) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.downstreamURL, nil)
	if err != nil {
		return 0, errors.NewDownstreamError("failed to build downstream request", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, errors.NewDownstreamError(fmt.Sprintf("GET %s failed", s.downstreamURL), err)
	}
	defer resp.Body.Close()

	// drain so the connection can be reused
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode, nil
}
