// SPDX-License-Identifier: MPL-2.0

package pipeline

import (
	"path/filepath"
	"strconv"
	"testing"

	"github.com/bootlace/bootlace/internal/config"
)

func itoa(n int) string { return strconv.Itoa(n) }

func TestNewLayout(t *testing.T) {
	t.Parallel()

	base := filepath.FromSlash("/srv/bot")
	cfg := config.DefaultConfig()
	cfg.Source.Repo = "bot"

	l := NewLayout(base, filepath.Join(base, ".tmp"), cfg)

	if l.ScratchRoot != filepath.Join(base, ".tmp") {
		t.Errorf("ScratchRoot = %q", l.ScratchRoot)
	}
	if l.ArchivePath != filepath.Join(base, ".tmp", "repo.archive") {
		t.Errorf("ArchivePath = %q", l.ArchivePath)
	}
	if l.TreeDir != filepath.Join(base, ".tmp", "bot-main") {
		t.Errorf("TreeDir = %q", l.TreeDir)
	}
	if l.OverlaySource != filepath.Join(base, "config.js") || l.OverlayTarget != "config.js" {
		t.Errorf("overlay = %q -> %q", l.OverlaySource, l.OverlayTarget)
	}

	abs := filepath.FromSlash("/var/cache/bootlace")
	cfg.Cache.Dir = abs
	if got := ScratchRootFor(base, cfg); got != abs {
		t.Errorf("absolute cache dir = %q, want %q", got, abs)
	}
}

func TestValidateTarget(t *testing.T) {
	t.Parallel()

	tests := []struct {
		target  string
		wantErr bool
	}{
		{target: "config.js"},
		{target: "src/settings/config.js"},
		{target: "./config.js"},
		{target: ""},
		{target: "..", wantErr: true},
		{target: ".", wantErr: true},
		{target: "../outside.js", wantErr: true},
		{target: "a/../../outside.js", wantErr: true},
		{target: filepath.FromSlash("/abs/config.js"), wantErr: true},
	}

	for _, tt := range tests {
		if err := validateTarget(tt.target); (err != nil) != tt.wantErr {
			t.Errorf("validateTarget(%q) error = %v, wantErr %v", tt.target, err, tt.wantErr)
		}
	}
}

func TestValidateScratchRoot(t *testing.T) {
	t.Parallel()

	base := filepath.FromSlash("/srv/bot")
	tests := []struct {
		name    string
		root    string
		wantErr bool
	}{
		{name: "default below base", root: filepath.FromSlash("/srv/bot/.tmp")},
		{name: "sibling of base", root: filepath.FromSlash("/srv/bot-cache")},
		{name: "elsewhere", root: filepath.FromSlash("/var/cache/bootlace")},
		{name: "dot-prefixed sibling", root: filepath.FromSlash("/srv/..bot")},
		{name: "base itself", root: base, wantErr: true},
		{name: "base with trailing slash", root: base + string(filepath.Separator), wantErr: true},
		{name: "parent of base", root: filepath.FromSlash("/srv"), wantErr: true},
		{name: "filesystem root", root: string(filepath.Separator), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if err := validateScratchRoot(tt.root, base); (err != nil) != tt.wantErr {
				t.Errorf("validateScratchRoot(%q) error = %v, wantErr %v", tt.root, err, tt.wantErr)
			}
		})
	}
}
