// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"
)

const (
	// DefaultBranch is the branch fetched when none is configured.
	DefaultBranch = "main"
	// DefaultTokenEnv names the environment variable holding the access token.
	DefaultTokenEnv = "GITHUB_TOKEN"
	// DefaultTimeout bounds the archive download.
	DefaultTimeout = 60 * time.Second
	// DefaultCacheDir is the scratch root, relative to the base directory.
	DefaultCacheDir = ".tmp"
	// DefaultOverlayFile is the local configuration overlaid onto the tree.
	DefaultOverlayFile = "config.js"
	// DefaultHealthPort is used when neither health.port nor PORT is set.
	DefaultHealthPort = 3000

	// MaxNesting mirrors the scratch layer limit.
	MaxNesting = 16
)

// ErrInvalidConfig is the sentinel error wrapped by InvalidConfigError.
var ErrInvalidConfig = errors.New("invalid config")

type (
	// InvalidConfigError is returned when a Config has invalid fields.
	// It wraps ErrInvalidConfig for errors.Is() compatibility and collects
	// field-level validation errors.
	InvalidConfigError struct {
		FieldErrors []error
	}

	// Config holds the launcher configuration.
	Config struct {
		Source    SourceConfig    `json:"source" mapstructure:"source"`
		Cache     CacheConfig     `json:"cache" mapstructure:"cache"`
		Normalize NormalizeConfig `json:"normalize" mapstructure:"normalize"`
		Overlay   OverlayConfig   `json:"overlay" mapstructure:"overlay"`
		Runtime   RuntimeConfig   `json:"runtime" mapstructure:"runtime"`
		Health    HealthConfig    `json:"health" mapstructure:"health"`
		Log       LogConfig       `json:"log" mapstructure:"log"`
	}

	// SourceConfig locates the application archive.
	SourceConfig struct {
		Owner  string `json:"owner" mapstructure:"owner"`
		Repo   string `json:"repo" mapstructure:"repo"`
		Branch string `json:"branch" mapstructure:"branch"`
		// URL overrides the archive URL derived from owner, repo and branch.
		URL string `json:"url" mapstructure:"url"`
		// Private requires a token before any request is made.
		Private  bool          `json:"private" mapstructure:"private"`
		TokenEnv string        `json:"token_env" mapstructure:"token_env"`
		Timeout  time.Duration `json:"timeout" mapstructure:"timeout"`
		S3       S3Config      `json:"s3" mapstructure:"s3"`
	}

	// S3Config is the object-store mirror used for s3:// URLs.
	S3Config struct {
		Endpoint  string `json:"endpoint" mapstructure:"endpoint"`
		Region    string `json:"region" mapstructure:"region"`
		AccessKey string `json:"access_key" mapstructure:"access_key"`
		SecretKey string `json:"secret_key" mapstructure:"secret_key"`
		UseSSL    bool   `json:"use_ssl" mapstructure:"use_ssl"`
	}

	// CacheConfig places the scratch directory.
	CacheConfig struct {
		Dir     string `json:"dir" mapstructure:"dir"`
		Nesting int    `json:"nesting" mapstructure:"nesting"`
	}

	// NormalizeConfig controls the module convention conversion.
	NormalizeConfig struct {
		Manifest          string   `json:"manifest" mapstructure:"manifest"`
		FromExt           string   `json:"from_ext" mapstructure:"from_ext"`
		ToExt             string   `json:"to_ext" mapstructure:"to_ext"`
		RewriteScope      string   `json:"rewrite_scope" mapstructure:"rewrite_scope"`
		RewriteInclude    []string `json:"rewrite_include" mapstructure:"rewrite_include"`
		Suspension        string   `json:"suspension" mapstructure:"suspension"`
		SuspensionPattern string   `json:"suspension_pattern" mapstructure:"suspension_pattern"`
	}

	// OverlayConfig names the local configuration file and its place in the tree.
	OverlayConfig struct {
		Source string `json:"source" mapstructure:"source"`
		Target string `json:"target" mapstructure:"target"`
	}

	// RuntimeConfig describes the supervised child.
	RuntimeConfig struct {
		// Command is a shell-style interpreter command line.
		Command string            `json:"command" mapstructure:"command"`
		Entry   string            `json:"entry" mapstructure:"entry"`
		Env     map[string]string `json:"env" mapstructure:"env"`
	}

	// HealthConfig configures the liveness endpoint.
	HealthConfig struct {
		Enabled bool   `json:"enabled" mapstructure:"enabled"`
		Port    int    `json:"port" mapstructure:"port"`
		Name    string `json:"name" mapstructure:"name"`
	}

	// LogConfig configures the launcher's own logging.
	LogConfig struct {
		Level string `json:"level" mapstructure:"level"`
	}
)

// Error implements the error interface for InvalidConfigError.
func (e *InvalidConfigError) Error() string {
	msgs := make([]string, 0, len(e.FieldErrors))
	for _, err := range e.FieldErrors {
		msgs = append(msgs, err.Error())
	}
	return "invalid config: " + strings.Join(msgs, "; ")
}

// Unwrap returns ErrInvalidConfig for errors.Is() compatibility.
func (e *InvalidConfigError) Unwrap() error { return ErrInvalidConfig }

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Source: SourceConfig{
			Branch:   DefaultBranch,
			TokenEnv: DefaultTokenEnv,
			Timeout:  DefaultTimeout,
		},
		Cache: CacheConfig{
			Dir: DefaultCacheDir,
		},
		Normalize: NormalizeConfig{
			Manifest:       "package.json",
			FromExt:        ".js",
			ToExt:          ".cjs",
			RewriteScope:   "tree",
			RewriteInclude: []string{"**/*.cjs"},
			Suspension:     "auto",
		},
		Overlay: OverlayConfig{
			Source: DefaultOverlayFile,
			Target: DefaultOverlayFile,
		},
		Runtime: RuntimeConfig{
			Command: "node",
			Entry:   "index.js",
			Env:     map[string]string{},
		},
		Health: HealthConfig{
			Port: DefaultHealthPort,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Validate checks the constraints the CUE schema cannot express, and those
// that environment overrides can violate after the schema ran. It returns
// an *InvalidConfigError listing every problem.
func (c *Config) Validate() error {
	var errs []error

	if strings.TrimSpace(c.Source.Repo) == "" {
		errs = append(errs, errors.New("source.repo is required"))
	}
	if strings.TrimSpace(c.Source.URL) == "" && strings.TrimSpace(c.Source.Owner) == "" {
		errs = append(errs, errors.New("source.owner is required unless source.url is set"))
	}
	if strings.TrimSpace(c.Source.Branch) == "" {
		errs = append(errs, errors.New("source.branch must not be empty"))
	}
	if c.Source.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("source.timeout must be positive, got %s", c.Source.Timeout))
	}
	if c.Source.Private && strings.TrimSpace(c.Source.TokenEnv) == "" {
		errs = append(errs, errors.New("source.token_env must name a variable when source.private is set"))
	}

	if strings.TrimSpace(c.Cache.Dir) == "" {
		errs = append(errs, errors.New("cache.dir must not be empty"))
	}
	if c.Cache.Nesting < 0 || c.Cache.Nesting > MaxNesting {
		errs = append(errs, fmt.Errorf("cache.nesting must be between 0 and %d, got %d", MaxNesting, c.Cache.Nesting))
	}

	if !strings.HasPrefix(c.Normalize.FromExt, ".") || !strings.HasPrefix(c.Normalize.ToExt, ".") {
		errs = append(errs, errors.New("normalize.from_ext and normalize.to_ext must start with a dot"))
	}
	if c.Normalize.FromExt == c.Normalize.ToExt {
		errs = append(errs, fmt.Errorf("normalize.from_ext and normalize.to_ext must differ, both are %q", c.Normalize.FromExt))
	}

	if strings.TrimSpace(c.Runtime.Entry) == "" {
		errs = append(errs, errors.New("runtime.entry must not be empty"))
	}

	if c.Health.Port <= 0 || c.Health.Port > 65535 {
		errs = append(errs, fmt.Errorf("health.port must be between 1 and 65535, got %d", c.Health.Port))
	}

	if _, err := log.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}

	if len(errs) > 0 {
		return &InvalidConfigError{FieldErrors: errs}
	}
	return nil
}

// ArchiveName is the directory the code host puts at the top of a branch
// archive: "{repo}-{branch}", with slashes in the branch replaced by dashes.
func (s SourceConfig) ArchiveName() string {
	return s.Repo + "-" + strings.ReplaceAll(s.Branch, "/", "-")
}

// AppName is the name reported by the health endpoint.
func (h HealthConfig) AppName(fallback string) string {
	if strings.TrimSpace(h.Name) != "" {
		return h.Name
	}
	return fallback
}
