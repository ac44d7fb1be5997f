// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/charmbracelet/log"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/bootlace/bootlace/internal/normalize"
)

type normalizeParams struct {
	stdout io.Writer
	fs     afero.Fs
	dir    string
	opts   normalize.Options
	logger *log.Logger
}

func newNormalizeCommand(app *App) *cobra.Command {
	defaults := normalize.DefaultOptions()
	var (
		scope      string
		suspension string
	)

	cmd := &cobra.Command{
		Use:   "normalize <dir>",
		Short: "Convert an existing tree from ES modules to CommonJS in place",
		Long: `Convert an existing tree from ES modules to CommonJS in place.

The manifest loses "type": "module", every .js file becomes .cjs, relative
references are rewritten and top-level await in the entry point is wrapped.
Running it twice is harmless.`,
		Example: `  bootlace normalize ./bot --entry main.js
  bootlace normalize ./bot --suspension syntax --scope entry`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceErrors = true
			cmd.SilenceUsage = true

			opts := defaults
			opts.RewriteScope = normalize.RewriteScope(scope)
			opts.Suspension = normalize.SuspensionMode(suspension)

			level := log.InfoLevel
			if app.flags.verbose {
				level = log.DebugLevel
			}
			p := normalizeParams{
				stdout: app.stdout,
				fs:     afero.NewOsFs(),
				dir:    args[0],
				opts:   opts,
				logger: newLogger(app.stderr, level),
			}
			if err := runNormalize(cmd.Context(), p); err != nil {
				return app.fail(err)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&defaults.Entry, "entry", defaults.Entry, "entry point relative to the tree")
	cmd.Flags().StringVar(&defaults.Manifest, "manifest", defaults.Manifest, "manifest relative to the tree (empty to skip)")
	cmd.Flags().StringVar(&scope, "scope", string(defaults.RewriteScope), "reference rewrite scope: tree or entry")
	cmd.Flags().StringVar(&suspension, "suspension", string(defaults.Suspension), "suspension strategy: auto, pattern, syntax, wrap or off")

	return cmd
}

func runNormalize(ctx context.Context, p normalizeParams) error {
	n, err := normalize.New(p.fs, p.opts, normalize.WithLogger(p.logger))
	if err != nil {
		return err
	}
	report, err := n.Normalize(ctx, p.dir)
	if err != nil {
		return err
	}

	fmt.Fprintf(p.stdout, "%s %d renamed, %d rewritten, entry %s",
		SuccessStyle.Render("Normalized:"), report.Renamed, report.Rewritten, CmdStyle.Render(report.EntryPoint))
	if report.Strategy != "" {
		fmt.Fprintf(p.stdout, " (patched with %s)", report.Strategy)
	}
	fmt.Fprintln(p.stdout)
	return nil
}
