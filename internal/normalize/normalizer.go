// SPDX-License-Identifier: MPL-2.0

package normalize

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/spf13/afero"
)

// Step names a normalization step in errors and logs.
type Step string

const (
	StepManifest   Step = "manifest"
	StepRename     Step = "rename"
	StepRewrite    Step = "rewrite"
	StepSuspension Step = "suspension"
)

// RewriteScope selects which files get their relative references rewritten.
type RewriteScope string

const (
	RewriteTree  RewriteScope = "tree"
	RewriteEntry RewriteScope = "entry"
)

var (
	// ErrNormalize is the sentinel error wrapped by NormalizationError.
	ErrNormalize = errors.New("normalization failed")

	// ErrEntryPointMissing is returned when the tree has no entry point after the rename.
	ErrEntryPointMissing = errors.New("entry point not found")

	// ErrInvalidOptions is returned by New for an unusable Options value.
	ErrInvalidOptions = errors.New("invalid normalize options")
)

type (
	// Options configures a Normalizer. Paths are relative to the tree root.
	Options struct {
		Manifest          string
		FromExt           string
		ToExt             string
		Entry             string
		RewriteScope      RewriteScope
		RewriteInclude    []string
		Suspension        SuspensionMode
		SuspensionPattern string
	}

	// Report describes what a run changed.
	Report struct {
		ManifestPatched bool
		Renamed         int
		Rewritten       int
		// EntryPoint is the entry point's path relative to the tree root,
		// with its new extension.
		EntryPoint string
		// Strategy names the suspension strategy that patched the entry
		// point, or is empty when none applied.
		Strategy string
	}

	// NormalizationError reports the step and file at which a run stopped.
	// The tree may be partially converted.
	NormalizationError struct {
		Step Step
		Path string
		Err  error
	}

	// Normalizer converts trees according to its Options.
	Normalizer struct {
		fs       afero.Fs
		opts     Options
		chain    Chain
		rewriter *ReferenceRewriter
		logger   *log.Logger
	}

	// Option configures a Normalizer during construction.
	Option func(*Normalizer)
)

// Error implements the error interface.
func (e *NormalizationError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("normalize %s: %v", e.Step, e.Err)
	}
	return fmt.Sprintf("normalize %s %s: %v", e.Step, e.Path, e.Err)
}

// Unwrap exposes both the ErrNormalize sentinel and the underlying cause.
func (e *NormalizationError) Unwrap() []error { return []error{ErrNormalize, e.Err} }

// DefaultOptions returns the ES module to CommonJS conversion of a tree
// whose entry point is index.js.
func DefaultOptions() Options {
	return Options{
		Manifest:       "package.json",
		FromExt:        ".js",
		ToExt:          ".cjs",
		Entry:          "index.js",
		RewriteScope:   RewriteTree,
		RewriteInclude: []string{"**/*.cjs"},
		Suspension:     SuspensionAuto,
	}
}

// Validate checks the option values that do not depend on a tree.
func (o Options) Validate() error {
	var errs []error
	if !strings.HasPrefix(o.FromExt, ".") || !strings.HasPrefix(o.ToExt, ".") {
		errs = append(errs, errors.New("extensions must start with a dot"))
	}
	if o.FromExt == o.ToExt {
		errs = append(errs, errors.New("source and target extensions must differ"))
	}
	if o.Entry == "" {
		errs = append(errs, errors.New("entry point must not be empty"))
	}
	switch o.RewriteScope {
	case RewriteTree, RewriteEntry:
	default:
		errs = append(errs, fmt.Errorf("unknown rewrite scope %q", o.RewriteScope))
	}
	if err := o.Suspension.Validate(); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidOptions, errors.Join(errs...))
	}
	return nil
}

// WithLogger sets the logger used for step messages.
func WithLogger(l *log.Logger) Option {
	return func(n *Normalizer) {
		n.logger = l
	}
}

// New creates a Normalizer working on afs.
func New(afs afero.Fs, opts Options, options ...Option) (*Normalizer, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	chain, err := NewChain(opts.Suspension, opts.SuspensionPattern)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidOptions, err)
	}

	n := &Normalizer{
		fs:       afs,
		opts:     opts,
		chain:    chain,
		rewriter: NewReferenceRewriter(opts.FromExt, opts.ToExt),
		logger:   log.Default(),
	}
	for _, opt := range options {
		opt(n)
	}
	return n, nil
}

// Normalize runs every step on the tree at root. Context cancellation is
// checked between steps.
func (n *Normalizer) Normalize(ctx context.Context, root string) (Report, error) {
	var report Report

	if err := ctx.Err(); err != nil {
		return report, &NormalizationError{Step: StepManifest, Err: err}
	}
	if n.opts.Manifest != "" {
		manifest := filepath.Join(root, n.opts.Manifest)
		patched, err := PatchManifest(n.fs, manifest)
		if err != nil {
			return report, &NormalizationError{Step: StepManifest, Path: manifest, Err: err}
		}
		report.ManifestPatched = patched
	}

	if err := ctx.Err(); err != nil {
		return report, &NormalizationError{Step: StepRename, Err: err}
	}
	renamed, err := Rename(n.fs, root, n.opts.FromExt, n.opts.ToExt)
	report.Renamed = len(renamed)
	if err != nil {
		return report, &NormalizationError{Step: StepRename, Path: root, Err: err}
	}

	entry := filepath.Join(root, n.opts.Entry)
	if filepath.Ext(entry) == n.opts.FromExt {
		entry = swapExt(entry, n.opts.FromExt, n.opts.ToExt)
	}
	if _, err := n.fs.Stat(entry); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			err = ErrEntryPointMissing
		}
		return report, &NormalizationError{Step: StepRename, Path: entry, Err: err}
	}
	report.EntryPoint = filepath.ToSlash(relOrSelf(root, entry))

	if err := ctx.Err(); err != nil {
		return report, &NormalizationError{Step: StepRewrite, Err: err}
	}
	rewritten, err := n.rewrite(root, entry)
	report.Rewritten = rewritten
	if err != nil {
		return report, err
	}

	if err := ctx.Err(); err != nil {
		return report, &NormalizationError{Step: StepSuspension, Err: err}
	}
	strategy, err := n.patchSuspension(entry)
	report.Strategy = strategy
	if err != nil {
		return report, &NormalizationError{Step: StepSuspension, Path: entry, Err: err}
	}

	n.logger.Info("Normalization complete",
		"manifest_patched", report.ManifestPatched,
		"renamed", report.Renamed,
		"rewritten", report.Rewritten,
		"entry", report.EntryPoint,
		"strategy", report.Strategy,
	)
	return report, nil
}

func (n *Normalizer) rewrite(root, entry string) (int, error) {
	files := []string{entry}
	if n.opts.RewriteScope == RewriteTree {
		match, err := includeMatcher(root, n.opts.RewriteInclude)
		if err != nil {
			return 0, &NormalizationError{Step: StepRewrite, Err: err}
		}
		c := &fileCollector{match: match}
		if err := Walk(n.fs, root, c); err != nil {
			return 0, &NormalizationError{Step: StepRewrite, Path: root, Err: err}
		}
		files = c.files
	}

	count := 0
	for _, path := range files {
		changed, err := n.rewriter.RewriteFile(n.fs, path)
		if err != nil {
			return count, &NormalizationError{Step: StepRewrite, Path: path, Err: err}
		}
		if changed {
			n.logger.Debug("Rewrote references", "file", path)
			count++
		}
	}
	return count, nil
}

func (n *Normalizer) patchSuspension(entry string) (string, error) {
	src, err := afero.ReadFile(n.fs, entry)
	if err != nil {
		return "", err
	}
	out, strategy, err := n.chain.Patch(src)
	if err != nil || strategy == "" {
		return strategy, err
	}

	info, err := n.fs.Stat(entry)
	if err != nil {
		return strategy, err
	}
	if err := afero.WriteFile(n.fs, entry, out, info.Mode().Perm()); err != nil {
		return strategy, err
	}
	n.logger.Debug("Patched top-level await", "file", entry, "strategy", strategy)
	return strategy, nil
}

func relOrSelf(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return path
	}
	return rel
}
