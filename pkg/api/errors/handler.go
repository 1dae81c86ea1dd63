// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package errors turns handler errors into HTTP responses.
package errors

import (
	"net/http"

	"github.com/stacklok/hello-otel/pkg/errors"
	"github.com/stacklok/hello-otel/pkg/logger"
)

// HandlerWithError is an HTTP handler that reports failure by returning an
// error instead of writing the error response itself.
type HandlerWithError func(http.ResponseWriter, *http.Request) error

// ErrorHandler adapts fn to an http.HandlerFunc.
// The status comes from errors.Code. Server errors are logged and answered
// with the bare status text; client errors echo the error message.
func ErrorHandler(fn HandlerWithError) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := fn(w, r)
		if err == nil {
			return
		}

		code := errors.Code(err)
		if code >= http.StatusInternalServerError {
			logger.Get().ErrorContext(r.Context(), "Request failed",
				"method", r.Method, "path", r.URL.Path, "status", code, "error", err)
			http.Error(w, http.StatusText(code), code)
			return
		}

		http.Error(w, err.Error(), code)
	}
}
