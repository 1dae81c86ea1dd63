// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package errors

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	apperrors "github.com/stacklok/hello-otel/pkg/errors"
)

func TestErrorHandler(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		err          error
		expectedCode int
		expectedBody string
	}{
		{"no error", nil, http.StatusOK, "ok"},
		{"invalid config", apperrors.NewInvalidConfigError("bad sampling rate", nil), http.StatusBadRequest, "bad sampling rate"},
		{"downstream", apperrors.NewDownstreamError("connection refused", nil), http.StatusBadGateway, "Bad Gateway"},
		{"plain error", errors.New("secret detail"), http.StatusInternalServerError, "Internal Server Error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			handler := ErrorHandler(func(w http.ResponseWriter, _ *http.Request) error {
				if tt.err != nil {
					return tt.err
				}
				_, _ = w.Write([]byte("ok"))
				return nil
			})

			rec := httptest.NewRecorder()
			handler(rec, httptest.NewRequest(http.MethodGet, "/", nil))

			assert.Equal(t, tt.expectedCode, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.expectedBody)
			assert.NotContains(t, rec.Body.String(), "secret detail")
		})
	}
}
