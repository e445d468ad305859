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
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// EnvPrefix namespaces the environment variables bound to CLI flags,
// e.g. PASSPOLL_CONFIG and PASSPOLL_PORT.
const EnvPrefix = "PASSPOLL"

// NewRootCommand builds the passpoll command tree. Flags are bound to v so
// that PASSPOLL_* variables fill any flag left unset.
func NewRootCommand(v *viper.Viper) *cobra.Command {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	root := &cobra.Command{
		Use:   "passpoll",
		Short: "Passwordless polling service",
		Long: `passpoll serves polls whose voters sign in with passkeys.

Users register and log in through WebAuthn ceremonies and receive a
24 hour bearer token used to create polls, vote, and follow results.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().String("config", "", "path to a YAML configuration file")
	root.PersistentFlags().StringP("output", "o", "text", "output format (text, json)")
	_ = v.BindPFlag("config", root.PersistentFlags().Lookup("config"))
	_ = v.BindPFlag("output", root.PersistentFlags().Lookup("output"))

	root.AddCommand(newServeCmd(v))
	root.AddCommand(newConfigCmd(v))
	root.AddCommand(newVersionCmd(v))

	return root
}

// Execute runs the root command
func Execute() error {
	return NewRootCommand(viper.New()).Execute()
}
