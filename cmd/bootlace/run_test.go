// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"os/exec"
	"runtime"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/spf13/afero"

	"github.com/bootlace/bootlace/internal/config"
	"github.com/bootlace/bootlace/internal/fetch"
	"github.com/bootlace/bootlace/internal/pipeline"
	"github.com/bootlace/bootlace/internal/supervise"
	"github.com/bootlace/bootlace/internal/testutil"
)

type stubLauncher struct {
	code  supervise.ExitCode
	entry string
}

func (s *stubLauncher) Launch(_ context.Context, spec supervise.Spec) (supervise.ExitCode, error) {
	s.entry = spec.Entry
	return s.code, nil
}

func botArchive(t *testing.T) []byte {
	t.Helper()
	return testutil.BuildZip(t,
		testutil.File{Name: "bot-main/package.json", Body: `{"name":"bot","type":"module"}`},
		testutil.File{Name: "bot-main/index.js", Body: "import './lib/a.js';\n"},
		testutil.File{Name: "bot-main/lib/a.js", Body: "console.log('a');\n"},
	)
}

func launchConfig(url string) *config.Config {
	cfg := config.DefaultConfig()
	cfg.Source.Owner = "acme"
	cfg.Source.Repo = "bot"
	cfg.Source.URL = url
	return cfg
}

func TestRunLaunch(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		status   int
		child    supervise.ExitCode
		wantCode supervise.ExitCode
		wantErr  error
		wantWarn bool
	}{
		{name: "child success", status: http.StatusOK, child: 0, wantCode: 0},
		{name: "child failure propagates", status: http.StatusOK, child: 137, wantCode: 137, wantWarn: true},
		{name: "fetch 404 aborts", status: http.StatusNotFound, wantCode: supervise.ExitFailure, wantErr: fetch.ErrFetch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			srv := testutil.NewArchiveServer(t, tt.status, botArchive(t))
			launcher := &stubLauncher{code: tt.child}
			var stderr bytes.Buffer

			code, err := runLaunch(t.Context(), launchParams{
				stderr:  &stderr,
				cfg:     launchConfig(srv.URL + "/bot.zip"),
				baseDir: t.TempDir(),
				logger:  log.New(io.Discard),
				options: []pipeline.Option{
					pipeline.WithFs(afero.NewMemMapFs()),
					pipeline.WithLauncher(launcher),
					pipeline.WithGetenv(func(string) string { return "" }),
				},
			})

			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("runLaunch() error = %v, want %v", err, tt.wantErr)
				}
			} else if err != nil {
				t.Fatalf("runLaunch() error = %v", err)
			}
			if code != tt.wantCode {
				t.Errorf("code = %d, want %d", code, tt.wantCode)
			}
			if tt.wantErr == nil && launcher.entry != "index.cjs" {
				t.Errorf("entry = %q, want index.cjs", launcher.entry)
			}
			if got := strings.Contains(stderr.String(), "exited with code"); got != tt.wantWarn {
				t.Errorf("stderr = %q, warning expected: %v", stderr.String(), tt.wantWarn)
			}
		})
	}
}

func TestRunLaunch_ExitCodeFromRealChild(t *testing.T) {
	t.Parallel()
	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX shell")
	}
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}

	srv := testutil.NewArchiveServer(t, http.StatusOK, testutil.BuildZip(t,
		testutil.File{Name: "bot-main/index.js", Body: "echo ready\nexit 137\n"},
	))
	cfg := launchConfig(srv.URL + "/bot.zip")
	cfg.Runtime.Command = "sh"
	cfg.Normalize.Suspension = "off"

	var childOut bytes.Buffer
	code, err := runLaunch(t.Context(), launchParams{
		stderr:  io.Discard,
		cfg:     cfg,
		baseDir: t.TempDir(),
		logger:  log.New(io.Discard),
		options: []pipeline.Option{pipeline.WithStdio(strings.NewReader(""), &childOut, io.Discard)},
	})
	if err != nil {
		t.Fatalf("runLaunch() error = %v", err)
	}
	if code != 137 {
		t.Errorf("code = %d, want 137", code)
	}
	if childOut.String() != "ready\n" {
		t.Errorf("child stdout = %q, want %q", childOut.String(), "ready\n")
	}
}

func TestRunFetch(t *testing.T) {
	t.Parallel()

	srv := testutil.NewArchiveServer(t, http.StatusOK, botArchive(t))
	var stdout bytes.Buffer

	err := runFetch(t.Context(), fetchParams{
		stdout:  &stdout,
		cfg:     launchConfig(srv.URL + "/bot.zip"),
		baseDir: t.TempDir(),
		logger:  log.New(io.Discard),
		options: []pipeline.Option{pipeline.WithFs(afero.NewMemMapFs())},
	})
	if err != nil {
		t.Fatalf("runFetch() error = %v", err)
	}
	out := stdout.String()
	if !strings.Contains(out, "bot-main") || !strings.Contains(out, "3 files") {
		t.Errorf("output = %q", out)
	}
}
