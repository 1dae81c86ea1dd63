// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	v1 "github.com/stacklok/hello-otel/pkg/api/v1"
	"github.com/stacklok/hello-otel/pkg/logger"
	"github.com/stacklok/hello-otel/pkg/telemetry"
)

const (
	middlewareTimeout = 60 * time.Second
	readHeaderTimeout = 10 * time.Second
	shutdownTimeout   = 10 * time.Second

	// operationName is passed to otelhttp; span names come from telemetry.SpanName
	operationName = "hello-otel"
)

// RouterOptions configure the hello-otel router.
type RouterOptions struct {
	TracerProvider trace.TracerProvider
	MeterProvider  metric.MeterProvider
	Propagator     propagation.TextMapPropagator

	// Greeting configures the / and /hello routes.
	Greeting v1.GreetingOptions

	// PrometheusHandler is mounted at /metrics when set.
	PrometheusHandler http.Handler
}

// untracedPaths are served without server spans.
var untracedPaths = map[string]bool{
	"/health":  true,
	"/metrics": true,
}

// NewRouter builds the router with the middleware chain and every route.
func NewRouter(opts RouterOptions) http.Handler {
	otelOpts := []otelhttp.Option{
		otelhttp.WithFilter(func(r *http.Request) bool {
			return !untracedPaths[r.URL.Path]
		}),
		otelhttp.WithSpanNameFormatter(telemetry.SpanName),
	}
	if opts.TracerProvider != nil {
		otelOpts = append(otelOpts, otelhttp.WithTracerProvider(opts.TracerProvider))
	}
	if opts.MeterProvider != nil {
		otelOpts = append(otelOpts, otelhttp.WithMeterProvider(opts.MeterProvider))
	}
	if opts.Propagator != nil {
		otelOpts = append(otelOpts, otelhttp.WithPropagators(opts.Propagator))
	}

	greeting := opts.Greeting
	if greeting.TracerProvider == nil {
		greeting.TracerProvider = opts.TracerProvider
	}
	if greeting.MeterProvider == nil {
		greeting.MeterProvider = opts.MeterProvider
	}
	if greeting.Propagator == nil {
		greeting.Propagator = opts.Propagator
	}

	r := chi.NewRouter()
	r.Use(
		middleware.RequestID,
		middleware.Recoverer,
		middleware.Timeout(middlewareTimeout),
		otelhttp.NewMiddleware(operationName, otelOpts...),
	)
	if opts.MeterProvider != nil {
		r.Use(telemetry.NewHTTPMiddleware(opts.MeterProvider))
	}

	routers := map[string]http.Handler{
		"/health":  v1.HealthcheckRouter(),
		"/version": v1.VersionRouter(),
		"/":        v1.GreetingRouter(greeting),
	}
	for prefix, router := range routers {
		r.Mount(prefix, router)
	}

	// Only serve the Prometheus handler if enabled. It is a plain handler, so
	// it is routed at the exact path rather than mounted under a wildcard.
	if opts.PrometheusHandler != nil {
		r.Handle("/metrics", opts.PrometheusHandler)
	}

	return r
}

func setupTCPListener(address string) (net.Listener, error) {
	return net.Listen("tcp", address)
}

// Serve starts the server on the given address and serves handler until ctx
// is done, then shuts the server down gracefully.
// It is assumed that the caller sets up appropriate signal handling.
func Serve(ctx context.Context, address string, handler http.Handler) error {
	listener, err := setupTCPListener(address)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", address, err)
	}
	return ServeListener(ctx, listener, handler)
}

// ServeListener serves handler on listener until ctx is done.
// The listener is closed when ServeListener returns.
func ServeListener(ctx context.Context, listener net.Listener, handler http.Handler) error {
	srv := &http.Server{
		BaseContext:       func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
		Handler:           handler,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	logger.Infof("Starting HTTP server on %s", listener.Addr())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server stopped with error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()

		// ctx is done; draining gets its own deadline
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}

	logger.Infof("HTTP server stopped")
	return nil
}
