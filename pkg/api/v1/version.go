// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package v1

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/stacklok/hello-otel/pkg/api/errors"
	"github.com/stacklok/hello-otel/pkg/errors"
	"github.com/stacklok/hello-otel/pkg/versions"
)

// VersionRouter sets up the version route.
func VersionRouter() http.Handler {
	r := chi.NewRouter()
	r.Get("/", apierrors.ErrorHandler(getVersion))
	return r
}

// versionResponse represents the response for the version endpoint
type versionResponse struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildDate string `json:"build_date"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
}

//	 getVersion
//		@Summary		Get server version
//		@Description	Returns the current version of the server
//		@Tags			version
//		@Produce		json
//		@Success		200	{object}	versionResponse
//		@Router			/version [get]
func getVersion(w http.ResponseWriter, _ *http.Request) error {
	info := versions.GetVersionInfo()
	body, err := json.Marshal(versionResponse{
		Version:   info.Version,
		Commit:    info.Commit,
		BuildDate: info.BuildDate,
		GoVersion: info.GoVersion,
		Platform:  info.Platform,
	})
	if err != nil {
		return errors.NewInternalError("failed to encode version response", err)
	}

	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(body)
	return nil
}
