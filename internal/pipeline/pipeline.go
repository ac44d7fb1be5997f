// SPDX-License-Identifier: MPL-2.0

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/spf13/afero"

	"github.com/bootlace/bootlace/internal/archive"
	"github.com/bootlace/bootlace/internal/cache"
	"github.com/bootlace/bootlace/internal/config"
	"github.com/bootlace/bootlace/internal/fetch"
	"github.com/bootlace/bootlace/internal/health"
	"github.com/bootlace/bootlace/internal/normalize"
	"github.com/bootlace/bootlace/internal/overlay"
	"github.com/bootlace/bootlace/internal/supervise"
)

type (
	// Launcher starts the application and waits for it.
	// *supervise.Supervisor is the production implementation.
	Launcher interface {
		Launch(ctx context.Context, spec supervise.Spec) (supervise.ExitCode, error)
	}

	// Pipeline runs the launcher stages for one configuration.
	Pipeline struct {
		cfg     *config.Config
		layout  Layout
		fs      afero.Fs
		logger  *log.Logger
		getenv  func(string) string
		scratch *cache.Scratch

		fetcher    *fetch.Client
		normalizer *normalize.Normalizer
		launcher   Launcher
		command    []string
		healthCfg  *health.Config

		stdin          io.Reader
		stdout, stderr io.Writer
	}

	// Option configures a Pipeline during construction.
	Option func(*Pipeline)

	// FetchResult describes the working tree produced by Fetch.
	FetchResult struct {
		URL     string
		Bytes   int64
		Extract archive.Stats
		TreeDir string
	}
)

// WithFs sets the filesystem every stage works on. The run lock and the
// child process always use the real filesystem.
func WithFs(fs afero.Fs) Option {
	return func(p *Pipeline) {
		p.fs = fs
	}
}

// WithLogger sets the logger handed to every stage.
func WithLogger(l *log.Logger) Option {
	return func(p *Pipeline) {
		p.logger = l
	}
}

// WithGetenv overrides how the access token is read.
func WithGetenv(fn func(string) string) Option {
	return func(p *Pipeline) {
		p.getenv = fn
	}
}

// WithFetcher replaces the default download client.
func WithFetcher(c *fetch.Client) Option {
	return func(p *Pipeline) {
		p.fetcher = c
	}
}

// WithLauncher replaces the process supervisor.
func WithLauncher(l Launcher) Option {
	return func(p *Pipeline) {
		p.launcher = l
	}
}

// WithStdio connects the application to the given streams instead of the
// launcher's own.
func WithStdio(in io.Reader, out, errOut io.Writer) Option {
	return func(p *Pipeline) {
		p.stdin, p.stdout, p.stderr = in, out, errOut
	}
}

// New checks cfg and wires the stages. Every problem found here is a
// *ConfigurationError and nothing has been touched on disk or network yet.
func New(cfg *config.Config, baseDir string, opts ...Option) (*Pipeline, error) {
	if cfg == nil {
		return nil, &ConfigurationError{Field: "config", Err: errors.New("missing configuration")}
	}
	if err := cfg.Validate(); err != nil {
		return nil, &ConfigurationError{Field: "config", Err: err}
	}
	if err := validateTarget(cfg.Overlay.Target); err != nil {
		return nil, &ConfigurationError{Field: "overlay.target", Err: err}
	}

	absBase, err := filepath.Abs(baseDir)
	if err != nil {
		return nil, &ConfigurationError{Field: "base directory", Err: err}
	}

	if err := validateScratchRoot(ScratchRootFor(absBase, cfg), absBase); err != nil {
		return nil, &ConfigurationError{Field: "cache.dir", Err: err}
	}

	p := &Pipeline{
		cfg:    cfg,
		fs:     afero.NewOsFs(),
		logger: log.Default(),
		getenv: os.Getenv,
	}
	for _, opt := range opts {
		opt(p)
	}

	p.scratch = cache.New(p.fs, ScratchRootFor(absBase, cfg), cache.WithNesting(cfg.Cache.Nesting))
	p.layout = NewLayout(absBase, p.scratch.Dir(), cfg)

	if p.fetcher == nil {
		p.fetcher = fetch.NewClient(
			fetch.WithFs(p.fs),
			fetch.WithTimeout(cfg.Source.Timeout),
			fetch.WithS3Config(fetch.S3Config{
				Endpoint:  cfg.Source.S3.Endpoint,
				Region:    cfg.Source.S3.Region,
				AccessKey: cfg.Source.S3.AccessKey,
				SecretKey: cfg.Source.S3.SecretKey,
				UseSSL:    cfg.Source.S3.UseSSL,
			}),
			fetch.WithLogger(p.logger),
		)
	}

	p.normalizer, err = normalize.New(p.fs, normalizeOptions(cfg), normalize.WithLogger(p.logger))
	if err != nil {
		return nil, &ConfigurationError{Field: "normalize", Err: err}
	}

	p.command, err = supervise.ParseCommand(cfg.Runtime.Command)
	if err != nil {
		return nil, &ConfigurationError{Field: "runtime.command", Err: err}
	}
	if p.launcher == nil {
		p.launcher = supervise.New(supervise.WithLogger(p.logger))
	}

	if cfg.Health.Enabled {
		p.healthCfg = &health.Config{
			Port: cfg.Health.Port,
			Name: cfg.Health.AppName(cfg.Source.Repo),
		}
	}

	return p, nil
}

func normalizeOptions(cfg *config.Config) normalize.Options {
	return normalize.Options{
		Manifest:          cfg.Normalize.Manifest,
		FromExt:           cfg.Normalize.FromExt,
		ToExt:             cfg.Normalize.ToExt,
		Entry:             cfg.Runtime.Entry,
		RewriteScope:      normalize.RewriteScope(cfg.Normalize.RewriteScope),
		RewriteInclude:    cfg.Normalize.RewriteInclude,
		Suspension:        normalize.SuspensionMode(cfg.Normalize.Suspension),
		SuspensionPattern: cfg.Normalize.SuspensionPattern,
	}
}

// Layout returns the resolved paths of this pipeline.
func (p *Pipeline) Layout() Layout { return p.layout }

// SourceURL is the archive location: source.url, or the branch archive of
// the configured repository.
func (p *Pipeline) SourceURL() string {
	if p.cfg.Source.URL != "" {
		return p.cfg.Source.URL
	}
	return fetch.ArchiveURL(p.cfg.Source.Owner, p.cfg.Source.Repo, p.cfg.Source.Branch)
}

// Run executes every stage and supervises the application until it exits.
// The returned code is the application's; a non-nil error means a stage
// before the launch failed and the code is supervise.ExitFailure.
func (p *Pipeline) Run(ctx context.Context) (supervise.ExitCode, error) {
	token, err := p.token()
	if err != nil {
		return supervise.ExitFailure, err
	}

	lock, err := p.lock()
	if err != nil {
		return supervise.ExitFailure, err
	}
	defer lock.Release()

	stopHealth := p.startHealth(ctx)
	defer stopHealth()

	fetched, err := p.fetchTree(ctx, token)
	if err != nil {
		return supervise.ExitFailure, err
	}

	report, err := p.normalizer.Normalize(ctx, fetched.TreeDir)
	if err != nil {
		return supervise.ExitFailure, err
	}

	p.applyOverlay(fetched.TreeDir)

	return p.launcher.Launch(ctx, supervise.Spec{
		Command: p.command,
		Entry:   report.EntryPoint,
		Dir:     fetched.TreeDir,
		Env:     p.cfg.Runtime.Env,
		Stdin:   p.stdin,
		Stdout:  p.stdout,
		Stderr:  p.stderr,
	})
}

// Fetch prepares the scratch directory, downloads the archive and extracts
// it, leaving an unmodified working tree behind.
func (p *Pipeline) Fetch(ctx context.Context) (FetchResult, error) {
	token, err := p.token()
	if err != nil {
		return FetchResult{}, err
	}

	lock, err := p.lock()
	if err != nil {
		return FetchResult{}, err
	}
	defer lock.Release()

	return p.fetchTree(ctx, token)
}

// Clean removes the scratch directory.
func (p *Pipeline) Clean() error {
	lock, err := p.lock()
	if err != nil {
		return err
	}
	defer lock.Release()

	p.logger.Info("Cleaning cache...", "dir", p.scratch.Root())
	return p.scratch.Teardown()
}

func (p *Pipeline) token() (string, error) {
	token := p.getenv(p.cfg.Source.TokenEnv)
	if p.cfg.Source.Private && token == "" {
		return "", &ConfigurationError{
			Field: "source.token_env",
			Err:   fmt.Errorf("%w: %s is empty", ErrCredentialMissing, p.cfg.Source.TokenEnv),
		}
	}
	return token, nil
}

func (p *Pipeline) lock() (*cache.RunLock, error) {
	if err := os.MkdirAll(filepath.Dir(p.scratch.LockPath()), 0o755); err != nil {
		return nil, &cache.PrepareError{Dir: p.scratch.Root(), Op: "lock", Err: err}
	}
	lock, err := p.scratch.Lock()
	if err != nil {
		return nil, &cache.PrepareError{Dir: p.scratch.Root(), Op: "lock", Err: err}
	}
	return lock, nil
}

func (p *Pipeline) fetchTree(ctx context.Context, token string) (FetchResult, error) {
	p.logger.Info("Cleaning cache...", "stage", "prepare", "dir", p.scratch.Root())
	if err := p.scratch.Prepare(ctx); err != nil {
		return FetchResult{}, err
	}

	url := p.SourceURL()
	downloaded, err := p.fetcher.Fetch(ctx, fetch.Request{
		URL:   url,
		Token: token,
		Dest:  p.layout.ArchivePath,
	})
	if err != nil {
		return FetchResult{}, err
	}

	p.logger.Info("Extracting...", "stage", "extract", "bytes", downloaded.Size)
	stats, err := archive.Extract(p.fs, downloaded.Path, p.layout.ScratchDir)
	if err != nil {
		return FetchResult{}, err
	}
	p.logger.Info("Extraction complete.", "files", stats.Files, "format", stats.Format)

	tree, err := p.findTree()
	if err != nil {
		return FetchResult{}, &archive.ExtractError{Archive: downloaded.Path, Err: err}
	}

	return FetchResult{URL: url, Bytes: downloaded.Size, Extract: stats, TreeDir: tree}, nil
}

// findTree returns the expected "{repo}-{branch}" directory. Archives from
// other sources are accepted when they hold exactly one top-level directory,
// or when the manifest sits directly in the scratch directory.
func (p *Pipeline) findTree() (string, error) {
	if info, err := p.fs.Stat(p.layout.TreeDir); err == nil && info.IsDir() {
		return p.layout.TreeDir, nil
	}

	entries, err := afero.ReadDir(p.fs, p.layout.ScratchDir)
	if err != nil {
		return "", err
	}
	var dirs []string
	for _, e := range entries {
		if e.IsDir() {
			dirs = append(dirs, e.Name())
		}
	}
	if len(dirs) == 1 && len(entries) == 1 {
		tree := filepath.Join(p.layout.ScratchDir, dirs[0])
		p.logger.Debug("Using the single archive directory as working tree", "dir", tree)
		return tree, nil
	}
	if manifest := p.cfg.Normalize.Manifest; manifest != "" {
		if _, err := p.fs.Stat(filepath.Join(p.layout.ScratchDir, manifest)); err == nil {
			return p.layout.ScratchDir, nil
		}
	}
	return "", fmt.Errorf("%w: expected %s", ErrTreeNotFound, filepath.Base(p.layout.TreeDir))
}

func (p *Pipeline) applyOverlay(tree string) {
	if p.cfg.Overlay.Source == "" || p.cfg.Overlay.Target == "" {
		return
	}
	target := filepath.Join(tree, p.overlayTarget())
	applied, err := overlay.Apply(p.fs, p.layout.OverlaySource, target)
	switch {
	case err != nil:
		p.logger.Warn("Config overlay skipped", "stage", "overlay", "err", err)
	case applied:
		p.logger.Info("Config applied", "stage", "overlay", "target", target)
	default:
		p.logger.Debug("No local config to apply", "source", p.layout.OverlaySource)
	}
}

// overlayTarget follows the rename: a target carrying the source extension
// names a file that now exists under the target extension.
func (p *Pipeline) overlayTarget() string {
	rel := p.layout.OverlayTarget
	if from := p.cfg.Normalize.FromExt; filepath.Ext(rel) == from {
		rel = strings.TrimSuffix(rel, from) + p.cfg.Normalize.ToExt
	}
	return rel
}

// startHealth starts the liveness endpoint when configured. A failure to
// bind is logged and the run continues.
func (p *Pipeline) startHealth(ctx context.Context) func() {
	if p.healthCfg == nil {
		return func() {}
	}
	srv := health.New(*p.healthCfg, health.WithLogger(p.logger))
	if err := srv.Start(ctx); err != nil {
		p.logger.Warn("Health endpoint unavailable", "err", err)
		return func() {}
	}
	return func() {
		if err := srv.Stop(); err != nil {
			p.logger.Debug("Health endpoint shutdown", "err", err)
		}
	}
}
