// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"bytes"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"testing"

	"github.com/bootlace/bootlace/internal/archive"
	"github.com/bootlace/bootlace/internal/cache"
	"github.com/bootlace/bootlace/internal/fetch"
	"github.com/bootlace/bootlace/internal/issue"
	"github.com/bootlace/bootlace/internal/normalize"
	"github.com/bootlace/bootlace/internal/pipeline"
	"github.com/bootlace/bootlace/internal/supervise"
)

func TestClassifyError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		err       error
		wantIssue issue.Id
		wantOp    string
	}{
		{
			name:      "missing credential",
			err:       &pipeline.ConfigurationError{Field: "source.token_env", Err: pipeline.ErrCredentialMissing},
			wantIssue: issue.CredentialMissingId,
			wantOp:    "authenticate",
		},
		{
			name:      "configuration",
			err:       &pipeline.ConfigurationError{Field: "runtime.command", Err: errors.New("bad quote")},
			wantIssue: issue.ConfigLoadFailedId,
			wantOp:    "configuration",
		},
		{
			name:      "locked scratch",
			err:       &cache.PrepareError{Dir: "/srv/.tmp", Op: "lock", Err: cache.ErrLocked},
			wantIssue: issue.CachePrepareFailedId,
			wantOp:    "scratch",
		},
		{
			name:      "fetch status",
			err:       &fetch.FetchError{URL: "https://example.com/a.zip", StatusCode: 404, Err: fetch.ErrUnexpectedStatus},
			wantIssue: issue.FetchFailedId,
			wantOp:    "download",
		},
		{
			name:      "extract",
			err:       &archive.ExtractError{Archive: "/x", Err: archive.ErrUnsupportedFormat},
			wantIssue: issue.ExtractFailedId,
			wantOp:    "extract",
		},
		{
			name:      "normalize",
			err:       &normalize.NormalizationError{Step: normalize.StepRename, Path: "/t/index.cjs", Err: normalize.ErrEntryPointMissing},
			wantIssue: issue.NormalizeFailedId,
			wantOp:    "normalize",
		},
		{
			name:      "spawn",
			err:       &supervise.SpawnError{Command: "node", Err: exec.ErrNotFound},
			wantIssue: issue.SpawnFailedId,
			wantOp:    "start",
		},
		{
			name:   "unknown",
			err:    errors.New("boom"),
			wantOp: "run the launcher",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ae := classifyError(tt.err)
			if ae == nil {
				t.Fatal("classifyError() = nil")
			}
			if ae.Issue != tt.wantIssue {
				t.Errorf("Issue = %d, want %d", ae.Issue, tt.wantIssue)
			}
			if !strings.Contains(ae.Operation, tt.wantOp) {
				t.Errorf("Operation = %q, want it to contain %q", ae.Operation, tt.wantOp)
			}
			if !errors.Is(ae, tt.err) {
				t.Error("classified error must wrap the original")
			}
		})
	}
}

func TestClassifyError_KeepsActionableErrors(t *testing.T) {
	t.Parallel()

	orig := issue.NewErrorContext().
		WithOperation("load configuration").
		WithIssue(issue.ConfigLoadFailedId).
		Wrap(errors.New("syntax")).
		Build()

	if got := classifyError(fmt.Errorf("wrapped: %w", orig)); got != orig {
		t.Errorf("classifyError() = %v, want the original ActionableError", got)
	}
}

func TestRenderError(t *testing.T) {
	t.Parallel()

	err := &fetch.FetchError{URL: "https://example.com/a.zip", StatusCode: 404, Err: fetch.ErrUnexpectedStatus}

	var quiet bytes.Buffer
	renderError(&quiet, err, false)
	out := quiet.String()
	if !strings.Contains(out, "Error:") || !strings.Contains(out, "download the source archive") {
		t.Errorf("output missing the error line:\n%s", out)
	}
	if !strings.Contains(out, "HTTP 404") {
		t.Errorf("output missing the status suggestion:\n%s", out)
	}
	if strings.Contains(out, "Error chain:") {
		t.Error("error chain must only appear in verbose mode")
	}
	if !strings.Contains(out, "download failed") {
		t.Errorf("output missing the catalog entry:\n%s", out)
	}

	var verbose bytes.Buffer
	renderError(&verbose, err, true)
	if !strings.Contains(verbose.String(), "Error chain:") {
		t.Errorf("verbose output missing the error chain:\n%s", verbose.String())
	}
}

func TestExitError(t *testing.T) {
	t.Parallel()

	inner := errors.New("inner")
	if got := (&ExitError{Code: 1, Err: inner}).Error(); got != "inner" {
		t.Errorf("Error() = %q", got)
	}
	if got := (&ExitError{Code: 137}).Error(); got != "exit status 137" {
		t.Errorf("Error() = %q", got)
	}
	if !errors.Is(&ExitError{Code: 1, Err: inner}, inner) {
		t.Error("ExitError should unwrap to its cause")
	}
}
