// SPDX-License-Identifier: MPL-2.0

package supervise

import (
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"os/exec"
	"slices"
	"strings"

	"github.com/charmbracelet/log"
	"mvdan.cc/sh/v3/shell"
)

const (
	// DefaultInterpreter is the command used when no runtime command is configured.
	DefaultInterpreter = "node"

	// ProductionEnvKey and ProductionEnvValue form the production-mode flag
	// added to every child environment.
	ProductionEnvKey   = "NODE_ENV"
	ProductionEnvValue = "production"

	// launcherEnvPrefix marks launcher configuration variables, which are not
	// passed on to the child.
	launcherEnvPrefix = "BOOTLACE_"
)

var (
	// ErrSpawn is the sentinel error wrapped by SpawnError.
	ErrSpawn = errors.New("spawn failed")

	// ErrEmptyCommand is returned when the interpreter command line has no fields.
	ErrEmptyCommand = errors.New("empty interpreter command")
)

type (
	// Spec describes the single child process to launch.
	Spec struct {
		// Command is the interpreter argv; Entry is appended as the final argument.
		Command []string
		// Entry is the path of the entry point, absolute or relative to Dir.
		Entry string
		// Dir is the child's working directory.
		Dir string
		// Env holds extra variables layered over the launcher's environment.
		Env map[string]string

		Stdin  io.Reader
		Stdout io.Writer
		Stderr io.Writer
	}

	// SpawnError reports that the child could not be started at all. It is
	// distinct from a started child exiting with a non-zero status.
	SpawnError struct {
		Command string
		Err     error
	}

	// Supervisor owns the child process handle for one launch.
	Supervisor struct {
		logger  *log.Logger
		environ func() []string
	}

	// Option configures a Supervisor during construction.
	Option func(*Supervisor)
)

// Error implements the error interface.
func (e *SpawnError) Error() string {
	return fmt.Sprintf("spawning %s: %v", e.Command, e.Err)
}

// Unwrap exposes both the ErrSpawn sentinel and the underlying cause.
func (e *SpawnError) Unwrap() []error { return []error{ErrSpawn, e.Err} }

// WithLogger sets the logger used for lifecycle messages.
func WithLogger(l *log.Logger) Option {
	return func(s *Supervisor) {
		s.logger = l
	}
}

// WithEnviron overrides the source of the inherited environment.
func WithEnviron(fn func() []string) Option {
	return func(s *Supervisor) {
		s.environ = fn
	}
}

// New creates a Supervisor.
func New(opts ...Option) *Supervisor {
	s := &Supervisor{
		logger:  log.Default(),
		environ: os.Environ,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ParseCommand splits a shell-style interpreter command line such as
// "node --max-old-space-size=384" into argv. Parameter expansion uses the
// launcher's environment.
func ParseCommand(line string) ([]string, error) {
	if strings.TrimSpace(line) == "" {
		return []string{DefaultInterpreter}, nil
	}
	fields, err := shell.Fields(line, os.Getenv)
	if err != nil {
		return nil, fmt.Errorf("parsing interpreter command %q: %w", line, err)
	}
	if len(fields) == 0 {
		return nil, ErrEmptyCommand
	}
	return fields, nil
}

// Launch spawns the child described by spec and blocks until it terminates.
//
// ctx is only consulted before the spawn; once the child runs there is no
// cancellation path, and the launcher keeps waiting so that the child's own
// status is what gets reported. The returned error is non-nil only when the
// child could not be started.
func (s *Supervisor) Launch(ctx context.Context, spec Spec) (ExitCode, error) {
	argv := spec.Command
	if len(argv) == 0 {
		argv = []string{DefaultInterpreter}
	}

	if err := ctx.Err(); err != nil {
		return ExitFailure, &SpawnError{Command: argv[0], Err: err}
	}

	args := append(slices.Clone(argv[1:]), spec.Entry)
	//nolint:gosec,noctx // The child must outlive launcher cancellation.
	cmd := exec.Command(argv[0], args...)
	cmd.Dir = spec.Dir
	cmd.Env = BuildEnv(s.environ(), spec.Env)
	cmd.Stdin, cmd.Stdout, cmd.Stderr = os.Stdin, os.Stdout, os.Stderr
	if spec.Stdin != nil {
		cmd.Stdin = spec.Stdin
	}
	if spec.Stdout != nil {
		cmd.Stdout = spec.Stdout
	}
	if spec.Stderr != nil {
		cmd.Stderr = spec.Stderr
	}

	s.logger.Info("Spawning application", "command", argv[0], "entry", spec.Entry, "dir", spec.Dir)

	if err := cmd.Start(); err != nil {
		return ExitFailure, &SpawnError{Command: argv[0], Err: err}
	}

	waitErr := cmd.Wait()
	code := exitCodeFromState(cmd.ProcessState)

	var exitErr *exec.ExitError
	if waitErr != nil && !errors.As(waitErr, &exitErr) {
		// The child ran, but waiting on it failed; no status is available.
		s.logger.Warn("Lost track of application", "err", waitErr)
		code = ExitFailure
	}

	s.logger.Info(fmt.Sprintf("Application exited with code %d", code))
	return code, nil
}

// BuildEnv layers extra over the inherited environment. Launcher config
// variables are dropped, the production-mode flag is added, and extra wins
// on conflicts. The result is sorted by key for reproducibility.
func BuildEnv(inherited []string, extra map[string]string) []string {
	env := make(map[string]string, len(inherited)+len(extra)+1)
	for _, kv := range inherited {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || key == "" || strings.HasPrefix(key, launcherEnvPrefix) {
			continue
		}
		env[key] = value
	}
	env[ProductionEnvKey] = ProductionEnvValue
	maps.Copy(env, extra)

	out := make([]string, 0, len(env))
	for _, key := range slices.Sorted(maps.Keys(env)) {
		out = append(out, key+"="+env[key])
	}
	return out
}

// fallbackExitCode reads the portable exit code, mapping "unknown" to ExitFailure.
func fallbackExitCode(ps *os.ProcessState) ExitCode {
	if code := ps.ExitCode(); code >= 0 {
		return ExitCode(code)
	}
	return ExitFailure
}
