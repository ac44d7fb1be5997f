// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"
	"io"
	"path/filepath"

	"github.com/charmbracelet/log"

	"github.com/bootlace/bootlace/internal/config"
)

// App wires the CLI flags and output streams shared by every command.
type App struct {
	flags  rootFlags
	config config.Provider
	stdout io.Writer
	stderr io.Writer
}

func newApp(stdout, stderr io.Writer) *App {
	return &App{config: config.NewProvider(), stdout: stdout, stderr: stderr}
}

// baseDir returns the absolute base directory from --base-dir.
func (a *App) baseDir() (string, error) {
	dir := a.flags.baseDir
	if dir == "" {
		dir = "."
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolving base directory %q: %w", dir, err)
	}
	return abs, nil
}

// loadConfig loads <base>/.env into the environment, then the configuration.
func (a *App) loadConfig(ctx context.Context) (*config.Config, string, error) {
	base, err := a.baseDir()
	if err != nil {
		return nil, "", err
	}
	if _, err := config.LoadDotEnv(base); err != nil {
		fmt.Fprintln(a.stderr, WarningStyle.Render("Warning: ")+err.Error())
	}
	cfg, err := a.config.Load(ctx, config.LoadOptions{ConfigFilePath: a.flags.cfgFile, BaseDir: base})
	if err != nil {
		return nil, "", err
	}
	return cfg, base, nil
}

// logger returns the launcher logger for cfg. --verbose forces debug level.
func (a *App) logger(cfg *config.Config) *log.Logger {
	level := log.InfoLevel
	if cfg != nil {
		if parsed, err := log.ParseLevel(cfg.Log.Level); err == nil {
			level = parsed
		}
	}
	if a.flags.verbose {
		level = log.DebugLevel
	}
	return newLogger(a.stderr, level)
}

func newLogger(w io.Writer, level log.Level) *log.Logger {
	return log.NewWithOptions(w, log.Options{
		Prefix:          config.AppName,
		Level:           level,
		ReportTimestamp: true,
	})
}

// fail renders err and converts it into the exit error for a pre-launch failure.
func (a *App) fail(err error) error {
	renderError(a.stderr, err, a.flags.verbose)
	return &ExitError{Code: 1, Err: err}
}
