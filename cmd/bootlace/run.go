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
	"github.com/bootlace/bootlace/internal/supervise"
)

// launchParams bundles the dependencies of the run command, enabling the
// core logic in runLaunch to be tested without a real Cobra command.
type launchParams struct {
	stderr  io.Writer
	cfg     *config.Config
	baseDir string
	logger  *log.Logger
	options []pipeline.Option
}

func newRunCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Fetch, normalize and run the application (default)",
		Long: `Fetch, normalize and run the application.

The scratch directory is recreated, the source archive is downloaded and
extracted, the tree is converted to CommonJS, config.js is applied and the
entry point is started with node. bootlace exits with the application's
exit code, or 1 when a step before the launch fails.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmd.SilenceErrors = true
			cmd.SilenceUsage = true
			return app.runCommand(cmd)
		},
	}
}

func (a *App) runCommand(cmd *cobra.Command) error {
	cfg, base, err := a.loadConfig(cmd.Context())
	if err != nil {
		return a.fail(err)
	}

	p := launchParams{
		stderr:  a.stderr,
		cfg:     cfg,
		baseDir: base,
		logger:  a.logger(cfg),
	}
	code, err := runLaunch(cmd.Context(), p)
	if err != nil {
		return a.fail(err)
	}
	if !code.IsSuccess() {
		return &ExitError{Code: int(code)}
	}
	return nil
}

// runLaunch is the core of the run command, separated from Cobra for
// testability. A non-nil error means the application never started.
func runLaunch(ctx context.Context, p launchParams) (supervise.ExitCode, error) {
	opts := append([]pipeline.Option{pipeline.WithLogger(p.logger)}, p.options...)
	pl, err := pipeline.New(p.cfg, p.baseDir, opts...)
	if err != nil {
		return supervise.ExitFailure, err
	}

	p.logger.Debug("Launching", "source", pl.SourceURL(), "scratch", pl.Layout().ScratchDir)
	code, err := pl.Run(ctx)
	if err != nil {
		return supervise.ExitFailure, err
	}
	if !code.IsSuccess() {
		fmt.Fprintln(p.stderr, WarningStyle.Render(fmt.Sprintf("Application exited with code %d", code)))
	}
	return code, nil
}
