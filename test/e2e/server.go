// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package e2e

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/stacklok/hello-otel/cmd/hello-otel/app"
)

// Server is a hello-otel serve command running in the test process.
type Server struct {
	Address string

	cancel context.CancelFunc
	done   chan error
}

// StartServer runs "hello-otel serve" with args on a free loopback port and
// waits until /health answers. The OTEL_* variables are read from the
// process environment.
func StartServer(args ...string) (*Server, error) {
	address, err := FreeAddress()
	if err != nil {
		return nil, fmt.Errorf("failed to pick a listen address: %w", err)
	}

	cmd := app.NewRootCmd()
	cmd.SetArgs(append([]string{"serve", "--address", address}, args...))
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)

	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		Address: address,
		cancel:  cancel,
		done:    make(chan error, 1),
	}
	go func() { s.done <- cmd.ExecuteContext(ctx) }()

	if err := WaitForHTTP(s.URL("/health"), http.StatusNoContent, 10*time.Second); err != nil {
		cancel()
		return nil, fmt.Errorf("server did not become healthy: %w (exit: %v)", err, s.exitError())
	}
	return s, nil
}

// URL returns the server URL for path.
func (s *Server) URL(path string) string {
	return "http://" + s.Address + path
}

// Stop cancels the serve command and waits for it to flush telemetry and return.
func (s *Server) Stop(timeout time.Duration) error {
	s.cancel()
	select {
	case err := <-s.done:
		return err
	case <-time.After(timeout):
		return fmt.Errorf("server did not stop within %s", timeout)
	}
}

// exitError returns the command result if it already exited.
func (s *Server) exitError() error {
	select {
	case err := <-s.done:
		return err
	default:
		return nil
	}
}

// Get performs a GET against the server and returns the status and body.
func (s *Server) Get(path string) (int, string, error) {
	resp, err := http.Get(s.URL(path)) //nolint:gosec // test URL
	if err != nil {
		return 0, "", err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, "", err
	}
	return resp.StatusCode, string(body), nil
}
