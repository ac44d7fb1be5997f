// SPDX-License-Identifier: MPL-2.0

package config

import (
	"fmt"
	"maps"
	"slices"
	"strings"
)

// GenerateCUE renders cfg as a CUE document that validates against the
// schema. Secrets (the S3 secret key) are masked.
func GenerateCUE(cfg *Config) string {
	var sb strings.Builder

	sb.WriteString("// bootlace configuration\n\n")

	sb.WriteString("source: {\n")
	fmt.Fprintf(&sb, "\towner:     %q\n", cfg.Source.Owner)
	fmt.Fprintf(&sb, "\trepo:      %q\n", cfg.Source.Repo)
	fmt.Fprintf(&sb, "\tbranch:    %q\n", cfg.Source.Branch)
	if cfg.Source.URL != "" {
		fmt.Fprintf(&sb, "\turl:       %q\n", cfg.Source.URL)
	}
	fmt.Fprintf(&sb, "\tprivate:   %v\n", cfg.Source.Private)
	fmt.Fprintf(&sb, "\ttoken_env: %q\n", cfg.Source.TokenEnv)
	fmt.Fprintf(&sb, "\ttimeout:   %q\n", cfg.Source.Timeout.String())
	if cfg.Source.S3.Endpoint != "" {
		sb.WriteString("\ts3: {\n")
		fmt.Fprintf(&sb, "\t\tendpoint:   %q\n", cfg.Source.S3.Endpoint)
		if cfg.Source.S3.Region != "" {
			fmt.Fprintf(&sb, "\t\tregion:     %q\n", cfg.Source.S3.Region)
		}
		if cfg.Source.S3.AccessKey != "" {
			fmt.Fprintf(&sb, "\t\taccess_key: %q\n", cfg.Source.S3.AccessKey)
		}
		if cfg.Source.S3.SecretKey != "" {
			sb.WriteString("\t\tsecret_key: \"********\"\n")
		}
		fmt.Fprintf(&sb, "\t\tuse_ssl:    %v\n", cfg.Source.S3.UseSSL)
		sb.WriteString("\t}\n")
	}
	sb.WriteString("}\n")

	sb.WriteString("\ncache: {\n")
	fmt.Fprintf(&sb, "\tdir:     %q\n", cfg.Cache.Dir)
	fmt.Fprintf(&sb, "\tnesting: %d\n", cfg.Cache.Nesting)
	sb.WriteString("}\n")

	sb.WriteString("\nnormalize: {\n")
	fmt.Fprintf(&sb, "\tmanifest:      %q\n", cfg.Normalize.Manifest)
	fmt.Fprintf(&sb, "\tfrom_ext:      %q\n", cfg.Normalize.FromExt)
	fmt.Fprintf(&sb, "\tto_ext:        %q\n", cfg.Normalize.ToExt)
	fmt.Fprintf(&sb, "\trewrite_scope: %q\n", cfg.Normalize.RewriteScope)
	sb.WriteString("\trewrite_include: [")
	for i, p := range cfg.Normalize.RewriteInclude {
		if i > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(&sb, "%q", p)
	}
	sb.WriteString("]\n")
	fmt.Fprintf(&sb, "\tsuspension:    %q\n", cfg.Normalize.Suspension)
	if cfg.Normalize.SuspensionPattern != "" {
		fmt.Fprintf(&sb, "\tsuspension_pattern: %q\n", cfg.Normalize.SuspensionPattern)
	}
	sb.WriteString("}\n")

	sb.WriteString("\noverlay: {\n")
	fmt.Fprintf(&sb, "\tsource: %q\n", cfg.Overlay.Source)
	fmt.Fprintf(&sb, "\ttarget: %q\n", cfg.Overlay.Target)
	sb.WriteString("}\n")

	sb.WriteString("\nruntime: {\n")
	fmt.Fprintf(&sb, "\tcommand: %q\n", cfg.Runtime.Command)
	fmt.Fprintf(&sb, "\tentry:   %q\n", cfg.Runtime.Entry)
	if len(cfg.Runtime.Env) > 0 {
		sb.WriteString("\tenv: {\n")
		for _, k := range slices.Sorted(maps.Keys(cfg.Runtime.Env)) {
			fmt.Fprintf(&sb, "\t\t%q: %q\n", k, cfg.Runtime.Env[k])
		}
		sb.WriteString("\t}\n")
	}
	sb.WriteString("}\n")

	sb.WriteString("\nhealth: {\n")
	fmt.Fprintf(&sb, "\tenabled: %v\n", cfg.Health.Enabled)
	fmt.Fprintf(&sb, "\tport:    %d\n", cfg.Health.Port)
	if cfg.Health.Name != "" {
		fmt.Fprintf(&sb, "\tname:    %q\n", cfg.Health.Name)
	}
	sb.WriteString("}\n")

	sb.WriteString("\nlog: {\n")
	fmt.Fprintf(&sb, "\tlevel: %q\n", cfg.Log.Level)
	sb.WriteString("}\n")

	return sb.String()
}
