// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/bootlace/bootlace/internal/config"
	"github.com/bootlace/bootlace/internal/pipeline"
)

type fetchParams struct {
	stdout  io.Writer
	cfg     *config.Config
	baseDir string
	logger  *log.Logger
	options []pipeline.Option
}

func newFetchCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "fetch",
		Short: "Download and extract the source archive without running it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmd.SilenceErrors = true
			cmd.SilenceUsage = true

			cfg, base, err := app.loadConfig(cmd.Context())
			if err != nil {
				return app.fail(err)
			}
			p := fetchParams{stdout: app.stdout, cfg: cfg, baseDir: base, logger: app.logger(cfg)}
			if err := runFetch(cmd.Context(), p); err != nil {
				return app.fail(err)
			}
			return nil
		},
	}
}

func runFetch(ctx context.Context, p fetchParams) error {
	opts := append([]pipeline.Option{pipeline.WithLogger(p.logger)}, p.options...)
	pl, err := pipeline.New(p.cfg, p.baseDir, opts...)
	if err != nil {
		return err
	}
	res, err := pl.Fetch(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(p.stdout, "%s %s (%d files, %d bytes downloaded)\n",
		SuccessStyle.Render("Working tree:"), CmdStyle.Render(res.TreeDir), res.Extract.Files, res.Bytes)
	return nil
}
