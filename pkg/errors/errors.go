// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package errors provides typed application errors for hello-otel.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error types
const (
	// ErrInvalidConfig is returned when the resolved configuration is invalid
	ErrInvalidConfig = "invalid_config"

	// ErrTelemetry is returned when telemetry providers cannot be built or flushed
	ErrTelemetry = "telemetry"

	// ErrDownstream is returned when the outbound call made by a handler fails
	ErrDownstream = "downstream"

	// ErrInternal is returned when there is an internal error
	ErrInternal = "internal"
)

// Error represents an error in the application
type Error struct {
	// Type is the error type
	Type string

	// Message is the error message
	Message string

	// Cause is the underlying error
	Cause error
}

// Error returns the error message
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %s", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates a new error
func NewError(errorType, message string, cause error) *Error {
	return &Error{
		Type:    errorType,
		Message: message,
		Cause:   cause,
	}
}

// NewInvalidConfigError creates a new invalid configuration error
func NewInvalidConfigError(message string, cause error) *Error {
	return NewError(ErrInvalidConfig, message, cause)
}

// NewTelemetryError creates a new telemetry error
func NewTelemetryError(message string, cause error) *Error {
	return NewError(ErrTelemetry, message, cause)
}

// NewDownstreamError creates a new downstream call error
func NewDownstreamError(message string, cause error) *Error {
	return NewError(ErrDownstream, message, cause)
}

// NewInternalError creates a new internal error
func NewInternalError(message string, cause error) *Error {
	return NewError(ErrInternal, message, cause)
}

// IsInvalidConfig checks if the error is an invalid configuration error
func IsInvalidConfig(err error) bool {
	return hasType(err, ErrInvalidConfig)
}

// IsTelemetry checks if the error is a telemetry error
func IsTelemetry(err error) bool {
	return hasType(err, ErrTelemetry)
}

// IsDownstream checks if the error is a downstream call error
func IsDownstream(err error) bool {
	return hasType(err, ErrDownstream)
}

// IsInternal checks if the error is an internal error
func IsInternal(err error) bool {
	return hasType(err, ErrInternal)
}

// Code returns the HTTP status code that best describes err.
// Errors that are not of type *Error map to 500.
func Code(err error) int {
	var e *Error
	if !errors.As(err, &e) {
		return http.StatusInternalServerError
	}
	switch e.Type {
	case ErrInvalidConfig:
		return http.StatusBadRequest
	case ErrDownstream:
		return http.StatusBadGateway
	case ErrTelemetry:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func hasType(err error, errorType string) bool {
	var e *Error
	return errors.As(err, &e) && e.Type == errorType
}
