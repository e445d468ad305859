// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-passpoll.
//
// go-passpoll is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

package cli

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/jeremyhahn/go-passpoll/internal/config"
)

const redacted = "REDACTED"

func newConfigCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the effective configuration",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the configuration after file and environment overrides",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(v)
			if err != nil {
				return err
			}
			shown := redact(cfg)
			p := NewPrinter(v.GetString("output"), cmd.OutOrStdout())
			if p.format == OutputFormatJSON {
				return p.printJSON(shown)
			}
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			defer enc.Close()
			return enc.Encode(shown)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Check the configuration and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if _, err := loadConfig(v); err != nil {
				return err
			}
			return NewPrinter(v.GetString("output"), cmd.OutOrStdout()).PrintMessage("configuration is valid")
		},
	})

	return cmd
}

// redact returns a copy of cfg without secrets.
func redact(cfg *config.Config) *config.Config {
	out := *cfg
	if out.Session.Secret != "" {
		out.Session.Secret = redacted
	}
	if out.Storage.URI != "" {
		out.Storage.URI = redactURI(out.Storage.URI)
	}
	return &out
}
