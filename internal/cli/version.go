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
	"runtime"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jeremyhahn/go-passpoll/internal/server"
)

// Version information (injected at build time via -ldflags)
var (
	Version   = "" // -X github.com/jeremyhahn/go-passpoll/internal/cli.Version=x.y.z
	GitCommit = "unknown"
	BuildDate = "unknown"
)

func newVersionCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			version := Version
			if version == "" {
				version = server.BuildVersion()
			}
			return NewPrinter(v.GetString("output"), cmd.OutOrStdout()).PrintFields(
				[]string{"version", "commit", "build_date", "go_version", "os_arch"},
				map[string]string{
					"version":    version,
					"commit":     GitCommit,
					"build_date": BuildDate,
					"go_version": runtime.Version(),
					"os_arch":    runtime.GOOS + "/" + runtime.GOARCH,
				})
		},
	}
}
