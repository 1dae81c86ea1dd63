// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package app

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"sigs.k8s.io/yaml"

	"github.com/stacklok/hello-otel/pkg/config"
	"github.com/stacklok/hello-otel/pkg/telemetry"
)

// newConfigCmd creates the parent command for configuration inspection
func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the hello-otel configuration",
		Long:  "Inspect the configuration resolved from the OTEL_* environment variables and flags.",
	}
	cmd.AddCommand(newConfigShowCmd())
	return cmd
}

// Output formats of config show.
const (
	formatJSON = "json"
	formatYAML = "yaml"
)

// shownConfig is the printable form of config.Config.
type shownConfig struct {
	*config.Config
	Endpoints telemetry.Endpoints `json:"selectedEndpoints"`
	// Headers only lists header names
	Headers string `json:"headers"`
}

func newConfigShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the resolved configuration",
		Long: `Print the configuration serve would use, after defaults and validation.

Header values are redacted. Use --format yaml for YAML output.`,
		PreRunE: bindServeFlags,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("configuration loading failed: %w", err)
			}

			format, err := cmd.Flags().GetString("format")
			if err != nil {
				return err
			}
			return printConfig(cmd.OutOrStdout(), format, shownConfig{
				Config:    cfg,
				Endpoints: cfg.Endpoints(),
				Headers:   telemetry.RedactHeaders(cfg.Headers),
			})
		},
	}
	addServeFlags(cmd.Flags())
	cmd.Flags().String("format", formatJSON, "Output format (json or yaml)")
	return cmd
}

func printConfig(w io.Writer, format string, shown shownConfig) error {
	switch format {
	case formatJSON:
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(shown)
	case formatYAML:
		// yaml.Marshal honours the json tags
		out, err := yaml.Marshal(shown)
		if err != nil {
			return fmt.Errorf("failed to encode configuration as YAML: %w", err)
		}
		_, err = w.Write(out)
		return err
	default:
		return fmt.Errorf("unsupported format %q: expected %s or %s", format, formatJSON, formatYAML)
	}
}
