// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package telemetry

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// ParseHeaders parses a comma-separated list of key=value pairs into a map,
// following the OTEL_EXPORTER_OTLP_HEADERS format.
// Example input: "authorization=Bearer%20abc,x-tenant=team-a"
// Values are URL-decoded; keys and values are trimmed.
func ParseHeaders(input string) (map[string]string, error) {
	headers := make(map[string]string)
	if strings.TrimSpace(input) == "" {
		return headers, nil
	}

	for _, pair := range strings.Split(input, ",") {
		trimmedPair := strings.TrimSpace(pair)
		if trimmedPair == "" {
			continue
		}

		key, value, found := strings.Cut(trimmedPair, "=")
		if !found {
			return nil, fmt.Errorf("invalid header format '%s': expected key=value", trimmedPair)
		}

		key = strings.TrimSpace(key)
		if key == "" {
			return nil, fmt.Errorf("empty header key in '%s'", trimmedPair)
		}

		decoded, err := url.PathUnescape(strings.TrimSpace(value))
		if err != nil {
			return nil, fmt.Errorf("invalid header value for '%s': %w", key, err)
		}
		headers[key] = decoded
	}

	return headers, nil
}

// RedactHeaders returns a printable form of headers with every value masked.
// Keys are sorted.
func RedactHeaders(headers map[string]string) string {
	keys := make([]string, 0, len(headers))
	for k := range headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"=***")
	}
	return strings.Join(parts, ",")
}
