// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/bootlace/bootlace/internal/archive"
	"github.com/bootlace/bootlace/internal/cache"
	"github.com/bootlace/bootlace/internal/fetch"
	"github.com/bootlace/bootlace/internal/issue"
	"github.com/bootlace/bootlace/internal/normalize"
	"github.com/bootlace/bootlace/internal/pipeline"
	"github.com/bootlace/bootlace/internal/supervise"
)

// classifyError turns a stage error into an ActionableError linked to its
// catalog entry. Errors that already are actionable are returned as is.
func classifyError(err error) *issue.ActionableError {
	var ae *issue.ActionableError
	if errors.As(err, &ae) {
		return ae
	}

	ec := issue.NewErrorContext().Wrap(err)
	switch {
	case errors.Is(err, pipeline.ErrCredentialMissing):
		ec.WithOperation("authenticate the source download").
			WithIssue(issue.CredentialMissingId).
			WithSuggestion("Export the token variable named by source.token_env, or add it to .env")
	case errors.Is(err, pipeline.ErrConfiguration):
		ec.WithOperation("check the configuration").
			WithIssue(issue.ConfigLoadFailedId).
			WithSuggestion("Run 'bootlace config show' to see the effective values")
	case errors.Is(err, cache.ErrPrepare):
		ec.WithOperation("prepare the scratch directory").WithIssue(issue.CachePrepareFailedId)
		var pe *cache.PrepareError
		if errors.As(err, &pe) {
			ec.WithResource(pe.Dir)
		}
		if errors.Is(err, cache.ErrLocked) {
			ec.WithSuggestion("Another bootlace process is using this base directory; wait for it or pick another --base-dir")
		}
	case errors.Is(err, fetch.ErrFetch):
		ec.WithOperation("download the source archive").WithIssue(issue.FetchFailedId)
		var fe *fetch.FetchError
		if errors.As(err, &fe) && fe.StatusCode != 0 {
			ec.WithSuggestion(fmt.Sprintf("The server answered HTTP %d; check owner, repo and branch", fe.StatusCode))
		}
	case errors.Is(err, archive.ErrExtract):
		ec.WithOperation("extract the source archive").WithIssue(issue.ExtractFailedId)
	case errors.Is(err, normalize.ErrNormalize):
		ec.WithOperation("normalize the working tree").WithIssue(issue.NormalizeFailedId)
		var ne *normalize.NormalizationError
		if errors.As(err, &ne) && ne.Path != "" {
			ec.WithResource(ne.Path)
		}
		if errors.Is(err, normalize.ErrEntryPointMissing) {
			ec.WithSuggestion("Set runtime.entry to the application's entry file")
		}
	case errors.Is(err, supervise.ErrSpawn):
		ec.WithOperation("start the application").WithIssue(issue.SpawnFailedId)
	default:
		ec.WithOperation("run the launcher")
	}
	return ec.Build()
}

// renderError prints err to w with the catalog entry of its stage.
// verbose adds the error chain.
func renderError(w io.Writer, err error, verbose bool) {
	ae := classifyError(err)
	fmt.Fprintf(w, "\n%s %s\n", ErrorStyle.Render("Error:"), ae.Format(verbose))

	if ae.Issue == 0 {
		return
	}
	entry := issue.Get(ae.Issue)
	if entry == nil {
		return
	}
	rendered, renderErr := entry.Render(glamourStyle(w))
	if renderErr != nil {
		fmt.Fprintln(w, WarningStyle.Render("Warning: ")+"failed to render help: "+renderErr.Error())
		return
	}
	fmt.Fprint(w, rendered)
}

// glamourStyle picks the dark style on terminals and plain text elsewhere.
func glamourStyle(w io.Writer) string {
	f, ok := w.(*os.File)
	if !ok {
		return "notty"
	}
	info, err := f.Stat()
	if err != nil || info.Mode()&os.ModeCharDevice == 0 {
		return "notty"
	}
	return "dark"
}
