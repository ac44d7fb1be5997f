// SPDX-License-Identifier: MPL-2.0

// Package cmd contains all CLI commands for bootlace.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"
)

var (
	// Version is the semantic version (set via -ldflags).
	Version = "dev"
	// Commit is the git commit hash (set via -ldflags).
	Commit = "unknown"
	// BuildDate is the build timestamp (set via -ldflags).
	BuildDate = "unknown"
)

// rootFlags holds the persistent flags shared by every command.
type rootFlags struct {
	verbose bool
	cfgFile string
	baseDir string
}

// getVersionString returns a formatted version string for display.
func getVersionString() string {
	if Version == "dev" {
		return "dev (built from source)"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate)
}

// NewRootCommand builds the command tree writing to the process streams.
// Without a subcommand it behaves like "bootlace run".
func NewRootCommand() *cobra.Command {
	return newRootCommand(newApp(os.Stdout, os.Stderr))
}

func newRootCommand(app *App) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "bootlace",
		Short: "Fetch, normalize and supervise a JavaScript application",
		Long: TitleStyle.Render("bootlace") + SubtitleStyle.Render(" - bootstrap launcher for Node.js applications") + `

bootlace downloads a snapshot of an application's source tree, converts its
ES modules to CommonJS, applies your local config.js and runs it under node.
The launcher exits with the application's own exit code.

` + SubtitleStyle.Render("Examples:") + `
  bootlace                  Fetch and run the configured application
  bootlace fetch            Download and extract only
  bootlace normalize ./app  Convert an existing tree in place
  bootlace config show      Show the effective configuration`,
		Args:          cobra.NoArgs,
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.runCommand(cmd)
		},
	}

	rootCmd.PersistentFlags().BoolVarP(&app.flags.verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().StringVar(&app.flags.cfgFile, "config", "", "config file (default is <base-dir>/bootlace.cue)")
	rootCmd.PersistentFlags().StringVar(&app.flags.baseDir, "base-dir", ".", "directory holding bootlace.cue, .env, config.js and the scratch directory")

	rootCmd.AddCommand(
		newRunCommand(app),
		newFetchCommand(app),
		newNormalizeCommand(app),
		newCleanCommand(app),
		newConfigCommand(app),
	)

	return rootCmd
}

// Execute runs the root command and exits with the resulting code.
// This is called by main.main().
func Execute() {
	if err := fang.Execute(
		context.Background(),
		NewRootCommand(),
		fang.WithVersion(getVersionString()),
		fang.WithNotifySignal(os.Interrupt),
	); err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.Code)
		}
		os.Exit(1)
	}
}
