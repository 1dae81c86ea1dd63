// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	neturl "net/url"
	"strings"
)

// Error message templates for consistent error formatting
const (
	errInvalidURL       = "invalid URL format: %w"
	errInvalidURLScheme = "URL must start with http:// or https://"
	errMissingHost      = "URL must include a host"
)

// Validate checks the resolved configuration. Every failure is an
// invalid_config error.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.ServiceName) == "" {
		return invalid(EnvServiceName+" must not be empty", nil)
	}

	if err := c.validateEndpoints(); err != nil {
		return err
	}

	if c.SamplingRate < 0.0 || c.SamplingRate > 1.0 {
		return invalid(fmt.Sprintf("sampling rate must be between 0.0 and 1.0, got %v", c.SamplingRate), nil)
	}

	if strings.TrimSpace(c.ListenAddress) == "" {
		return invalid("listen address must not be empty", nil)
	}

	if err := validateURL(c.DownstreamURL); err != nil {
		return invalid("invalid downstream URL "+c.DownstreamURL, err)
	}

	if c.DownstreamTimeout <= 0 {
		return invalid(fmt.Sprintf("downstream timeout must be positive, got %s", c.DownstreamTimeout), nil)
	}

	return nil
}

// validateEndpoints checks the endpoint of every enabled signal for the
// selected protocol.
func (c *Config) validateEndpoints() error {
	endpoints := c.Endpoints()
	checks := []struct {
		enabled  bool
		signal   string
		endpoint string
	}{
		{c.TracingEnabled, "traces", endpoints.Traces},
		{c.LogsEnabled, "logs", endpoints.Logs},
		{c.MetricsEnabled, "metrics", endpoints.Metrics},
	}

	for _, check := range checks {
		if !check.enabled {
			continue
		}
		if err := validateURL(check.endpoint); err != nil {
			return invalid(fmt.Sprintf("invalid %s endpoint %q", check.signal, check.endpoint), err)
		}
	}
	return nil
}

// validateURL requires an absolute http or https URL with a host.
func validateURL(raw string) error {
	u, err := neturl.Parse(raw)
	if err != nil {
		return fmt.Errorf(errInvalidURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return errors.New(errInvalidURLScheme)
	}
	if u.Host == "" {
		return errors.New(errMissingHost)
	}
	return nil
}
