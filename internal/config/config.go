// SPDX-License-Identifier: MPL-2.0

package config

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bootlace/bootlace/internal/issue"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/spf13/viper"
)

const (
	// AppName is the application name.
	AppName = "bootlace"
	// ConfigFileName is the name of the config file (without extension).
	ConfigFileName = "bootlace"
	// ConfigFileExt is the config file extension.
	ConfigFileExt = "cue"
	// EnvPrefix prefixes every environment override, e.g. BOOTLACE_SOURCE_BRANCH.
	EnvPrefix = "BOOTLACE"
	// PortEnv is the conventional platform variable for the listening port.
	// Setting it also enables the health endpoint.
	PortEnv = "PORT"

	// maxConfigFileSize bounds the config file read (1 MiB).
	maxConfigFileSize = 1 << 20
)

//go:embed config_schema.cue
var configSchema string

// Load reads and validates the configuration, returning the path of the
// config file that was used ("" when only defaults and the environment apply).
func Load(ctx context.Context, opts LoadOptions) (*Config, string, error) {
	return loadWithOptions(ctx, opts)
}

func loadWithOptions(ctx context.Context, opts LoadOptions) (*Config, string, error) {
	select {
	case <-ctx.Done():
		return nil, "", fmt.Errorf("load config canceled: %w", ctx.Err())
	default:
	}

	v := newViper()

	resolvedPath := ""
	switch {
	case opts.ConfigFilePath != "":
		if !fileExists(opts.ConfigFilePath) {
			return nil, "", issue.NewErrorContext().
				WithOperation("load configuration").
				WithResource(opts.ConfigFilePath).
				WithSuggestion("Verify the file path is correct").
				WithSuggestion("Use 'bootlace config show' to see the default configuration").
				WithIssue(issue.ConfigLoadFailedId).
				Wrap(fmt.Errorf("config file not found: %s", opts.ConfigFilePath)).
				BuildError()
		}
		resolvedPath = opts.ConfigFilePath
	default:
		candidate := filepath.Join(opts.BaseDir, ConfigFileName+"."+ConfigFileExt)
		if fileExists(candidate) {
			resolvedPath = candidate
		}
	}

	var fileEnv map[string]string
	if resolvedPath != "" {
		var err error
		if fileEnv, err = loadCUEIntoViper(v, resolvedPath); err != nil {
			return nil, "", issue.NewErrorContext().
				WithOperation("load configuration").
				WithResource(resolvedPath).
				WithSuggestion("Check that the file contains valid CUE syntax").
				WithSuggestion("Verify the configuration values match the expected schema").
				WithIssue(issue.ConfigLoadFailedId).
				Wrap(err).
				BuildError()
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, "", fmt.Errorf("failed to parse config: %w", err)
	}
	if os.Getenv(PortEnv) != "" {
		cfg.Health.Enabled = true
	}
	// Viper folds map keys to lower case; variable names must keep theirs.
	if fileEnv != nil {
		cfg.Runtime.Env = fileEnv
	}
	if cfg.Runtime.Env == nil {
		cfg.Runtime.Env = map[string]string{}
	}

	if err := cfg.Validate(); err != nil {
		ec := issue.NewErrorContext().
			WithOperation("validate configuration").
			WithSuggestion("Run 'bootlace config show' to see the effective values").
			WithIssue(issue.ConfigLoadFailedId).
			Wrap(err)
		if resolvedPath != "" {
			ec = ec.WithResource(resolvedPath)
		}
		return nil, "", ec.BuildError()
	}

	return &cfg, resolvedPath, nil
}

// newViper returns a Viper instance with every key defaulted, so that
// AutomaticEnv can override any of them.
func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultConfig()
	v.SetDefault("source.owner", defaults.Source.Owner)
	v.SetDefault("source.repo", defaults.Source.Repo)
	v.SetDefault("source.branch", defaults.Source.Branch)
	v.SetDefault("source.url", defaults.Source.URL)
	v.SetDefault("source.private", defaults.Source.Private)
	v.SetDefault("source.token_env", defaults.Source.TokenEnv)
	v.SetDefault("source.timeout", defaults.Source.Timeout)
	v.SetDefault("source.s3.endpoint", defaults.Source.S3.Endpoint)
	v.SetDefault("source.s3.region", defaults.Source.S3.Region)
	v.SetDefault("source.s3.access_key", defaults.Source.S3.AccessKey)
	v.SetDefault("source.s3.secret_key", defaults.Source.S3.SecretKey)
	v.SetDefault("source.s3.use_ssl", defaults.Source.S3.UseSSL)
	v.SetDefault("cache.dir", defaults.Cache.Dir)
	v.SetDefault("cache.nesting", defaults.Cache.Nesting)
	v.SetDefault("normalize.manifest", defaults.Normalize.Manifest)
	v.SetDefault("normalize.from_ext", defaults.Normalize.FromExt)
	v.SetDefault("normalize.to_ext", defaults.Normalize.ToExt)
	v.SetDefault("normalize.rewrite_scope", defaults.Normalize.RewriteScope)
	v.SetDefault("normalize.rewrite_include", defaults.Normalize.RewriteInclude)
	v.SetDefault("normalize.suspension", defaults.Normalize.Suspension)
	v.SetDefault("normalize.suspension_pattern", defaults.Normalize.SuspensionPattern)
	v.SetDefault("overlay.source", defaults.Overlay.Source)
	v.SetDefault("overlay.target", defaults.Overlay.Target)
	v.SetDefault("runtime.command", defaults.Runtime.Command)
	v.SetDefault("runtime.entry", defaults.Runtime.Entry)
	v.SetDefault("runtime.env", defaults.Runtime.Env)
	v.SetDefault("health.enabled", defaults.Health.Enabled)
	v.SetDefault("health.port", defaults.Health.Port)
	v.SetDefault("health.name", defaults.Health.Name)
	v.SetDefault("log.level", defaults.Log.Level)

	// PORT is honored alongside BOOTLACE_HEALTH_PORT.
	_ = v.BindEnv("health.port", EnvPrefix+"_HEALTH_PORT", PortEnv)

	return v
}

// loadCUEIntoViper parses a CUE file, validates it against the #Config schema,
// and merges its contents into Viper. runtime.env is returned separately with
// its keys unchanged.
func loadCUEIntoViper(v *viper.Viper, path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := checkFileSize(data, maxConfigFileSize, path); err != nil {
		return nil, err
	}

	ctx := cuecontext.New()

	schemaValue := ctx.CompileString(configSchema)
	if schemaValue.Err() != nil {
		return nil, fmt.Errorf("internal error: failed to compile config schema: %w", schemaValue.Err())
	}

	userValue := ctx.CompileBytes(data, cue.Filename(path))
	if userValue.Err() != nil {
		return nil, formatCUEError(userValue.Err(), path)
	}

	// Unify with schema to validate against #Config definition
	schema := schemaValue.LookupPath(cue.ParsePath("#Config"))
	unified := schema.Unify(userValue)
	if err := unified.Validate(cue.Concrete(false)); err != nil {
		return nil, formatCUEError(err, path)
	}

	var configMap map[string]any
	if err := unified.Decode(&configMap); err != nil {
		return nil, formatCUEError(err, path)
	}

	var env map[string]string
	if envValue := unified.LookupPath(cue.ParsePath("runtime.env")); envValue.Exists() {
		if err := envValue.Decode(&env); err != nil {
			return nil, formatCUEError(err, path)
		}
	}

	// Merge into Viper (preserves defaults, allows env overrides)
	if err := v.MergeConfigMap(configMap); err != nil {
		return nil, fmt.Errorf("failed to merge config: %w", err)
	}

	return env, nil
}

// fileExists checks if a file exists and is not a directory
func fileExists(path string) bool {
	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return false
	}
	return err == nil && !info.IsDir()
}
