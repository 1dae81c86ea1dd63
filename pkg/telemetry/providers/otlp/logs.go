// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package otlp

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"go.opentelemetry.io/otel/sdk/resource"
)

func createLogExporter(ctx context.Context, config Config) (sdklog.Exporter, error) {
	var (
		exporter sdklog.Exporter
		err      error
	)
	if config.useHTTP() {
		opts := []otlploghttp.Option{
			otlploghttp.WithEndpointURL(config.Endpoint),
		}
		if len(config.Headers) > 0 {
			opts = append(opts, otlploghttp.WithHeaders(config.Headers))
		}
		exporter, err = otlploghttp.New(ctx, opts...)
	} else {
		opts := []otlploggrpc.Option{
			otlploggrpc.WithEndpointURL(config.Endpoint),
		}
		if len(config.Headers) > 0 {
			opts = append(opts, otlploggrpc.WithHeaders(config.Headers))
		}
		exporter, err = otlploggrpc.New(ctx, opts...)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create log exporter: %w", err)
	}
	return exporter, nil
}

// NewLoggerProvider creates an SDK logger provider that batches records to
// the OTLP endpoint. The caller owns the provider and must shut it down.
func NewLoggerProvider(
	ctx context.Context,
	config Config,
	res *resource.Resource,
) (*sdklog.LoggerProvider, error) {
	if config.Endpoint == "" {
		return nil, fmt.Errorf("OTLP endpoint is required")
	}

	exporter, err := createLogExporter(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger provider: %w", err)
	}

	return sdklog.NewLoggerProvider(
		sdklog.WithResource(res),
		sdklog.WithProcessor(sdklog.NewBatchProcessor(exporter)),
	), nil
}
