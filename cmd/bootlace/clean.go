// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bootlace/bootlace/internal/pipeline"
)

func newCleanCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "clean",
		Short: "Remove the scratch directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmd.SilenceErrors = true
			cmd.SilenceUsage = true

			cfg, base, err := app.loadConfig(cmd.Context())
			if err != nil {
				return app.fail(err)
			}
			pl, err := pipeline.New(cfg, base, pipeline.WithLogger(app.logger(cfg)))
			if err != nil {
				return app.fail(err)
			}
			if err := pl.Clean(); err != nil {
				return app.fail(err)
			}
			fmt.Fprintln(app.stdout, SuccessStyle.Render("Removed ")+CmdStyle.Render(pl.Layout().ScratchRoot))
			return nil
		},
	}
}
