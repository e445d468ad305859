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
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jeremyhahn/go-passpoll/internal/config"
	"github.com/jeremyhahn/go-passpoll/internal/server"
)

func newServeCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		Long: `Run the HTTP server until SIGINT or SIGTERM.

Configuration is read from --config, then overridden by DATABASE_URI,
DATABASE_NAME, PORT, WEBAUTHN_ID, WEBAUTHN_ORIGIN, WEBAUTHN_NAME, SECRET,
LOG_LEVEL, LOG_FORMAT and STORAGE_BACKEND, then by --port.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(v)
			if err != nil {
				return err
			}

			ctx, stop := server.SetupSignalHandler()
			defer stop()

			srv, err := server.New(ctx, cfg)
			if err != nil {
				return err
			}
			if err := srv.Start(); err != nil {
				_ = srv.Shutdown()
				return err
			}

			select {
			case <-ctx.Done():
			case err = <-srv.Errors():
			}

			if shutdownErr := srv.Shutdown(); err == nil {
				err = shutdownErr
			}
			return err
		},
	}

	cmd.Flags().Int("port", 0, "listen port (overrides PORT and the config file)")
	_ = v.BindPFlag("port", cmd.Flags().Lookup("port"))

	return cmd
}

// loadConfig loads the configuration file named by the config key and
// applies the port key when it is set.
func loadConfig(v *viper.Viper) (*config.Config, error) {
	cfg, err := config.Load(v.GetString("config"))
	if err != nil {
		return nil, err
	}
	if port := v.GetInt("port"); port != 0 {
		cfg.Server.Port = port
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("invalid configuration: %w", err)
		}
	}
	return cfg, nil
}
