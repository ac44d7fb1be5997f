// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/spf13/afero"

	"github.com/bootlace/bootlace/internal/normalize"
	"github.com/bootlace/bootlace/internal/testutil"
)

func TestRunNormalize(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	testutil.MustWriteFile(t, fs, "/app/package.json", `{"type":"module"}`)
	testutil.MustWriteFile(t, fs, "/app/index.js", "const x = await load();\n")
	testutil.MustWriteFile(t, fs, "/app/util.js", "module.exports = 1;\n")

	var stdout bytes.Buffer
	p := normalizeParams{
		stdout: &stdout,
		fs:     fs,
		dir:    "/app",
		opts:   normalize.DefaultOptions(),
		logger: log.New(io.Discard),
	}
	if err := runNormalize(t.Context(), p); err != nil {
		t.Fatalf("runNormalize() error = %v", err)
	}

	out := stdout.String()
	if !strings.Contains(out, "2 renamed") || !strings.Contains(out, "index.cjs") {
		t.Errorf("output = %q", out)
	}
	if !strings.Contains(out, "patched with") {
		t.Errorf("output %q should name the suspension strategy", out)
	}
	if !testutil.Exists(t, fs, "/app/util.cjs") {
		t.Error("util.js was not renamed")
	}
}

func TestRunNormalize_MissingEntry(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	testutil.MustWriteFile(t, fs, "/app/main.js", "console.log(1);\n")

	err := runNormalize(t.Context(), normalizeParams{
		stdout: io.Discard,
		fs:     fs,
		dir:    "/app",
		opts:   normalize.DefaultOptions(),
		logger: log.New(io.Discard),
	})
	if !errors.Is(err, normalize.ErrEntryPointMissing) {
		t.Fatalf("runNormalize() error = %v, want ErrEntryPointMissing", err)
	}
}
