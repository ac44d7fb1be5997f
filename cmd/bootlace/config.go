// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/bootlace/bootlace/internal/config"
)

// newConfigCommand creates the `bootlace config` command tree.
func newConfigCommand(app *App) *cobra.Command {
	cfgCmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect bootlace configuration",
		Long: `Inspect bootlace configuration.

Configuration is read from <base-dir>/bootlace.cue (or --config), then
overridden by BOOTLACE_* environment variables, e.g. BOOTLACE_SOURCE_BRANCH.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration as CUE",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmd.SilenceErrors = true
			cmd.SilenceUsage = true

			cfg, _, err := app.loadConfig(cmd.Context())
			if err != nil {
				return app.fail(err)
			}
			fmt.Fprint(app.stdout, config.GenerateCUE(cfg))
			return nil
		},
	})

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show the configuration file path",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if app.flags.cfgFile != "" {
				fmt.Fprintln(app.stdout, app.flags.cfgFile)
				return nil
			}
			base, err := app.baseDir()
			if err != nil {
				return app.fail(err)
			}
			fmt.Fprintln(app.stdout, filepath.Join(base, config.ConfigFileName+"."+config.ConfigFileExt))
			return nil
		},
	})

	return cfgCmd
}
