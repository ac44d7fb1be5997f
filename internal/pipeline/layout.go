// SPDX-License-Identifier: MPL-2.0

package pipeline

import (
	"errors"
	"path/filepath"
	"strings"

	"github.com/bootlace/bootlace/internal/config"
	"github.com/bootlace/bootlace/internal/fetch"
)

// Layout holds every path a run touches, resolved against the base directory.
type Layout struct {
	BaseDir string
	// ScratchRoot is removed on every run; ScratchDir is where work happens.
	ScratchRoot string
	ScratchDir  string
	ArchivePath string
	// TreeDir is the expected top-level directory of the extracted archive.
	TreeDir       string
	OverlaySource string
	// OverlayTarget is relative to the working tree.
	OverlayTarget string
}

// NewLayout resolves the paths for cfg. scratchDir is the cache manager's
// working directory below the scratch root.
func NewLayout(baseDir, scratchDir string, cfg *config.Config) Layout {
	return Layout{
		BaseDir:       baseDir,
		ScratchRoot:   resolve(baseDir, cfg.Cache.Dir),
		ScratchDir:    scratchDir,
		ArchivePath:   filepath.Join(scratchDir, fetch.ArchiveFileName),
		TreeDir:       filepath.Join(scratchDir, cfg.Source.ArchiveName()),
		OverlaySource: resolve(baseDir, cfg.Overlay.Source),
		OverlayTarget: filepath.Clean(cfg.Overlay.Target),
	}
}

// ScratchRootFor resolves the scratch root without building a full Layout.
func ScratchRootFor(baseDir string, cfg *config.Config) string {
	return resolve(baseDir, cfg.Cache.Dir)
}

func resolve(baseDir, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(baseDir, path)
}

// validateScratchRoot refuses scratch roots that Prepare must never remove:
// the filesystem root, the base directory, or any directory above it.
func validateScratchRoot(root, baseDir string) error {
	root = filepath.Clean(root)
	if filepath.Dir(root) == root {
		return errors.New("must not be the filesystem root")
	}
	rel, err := filepath.Rel(root, filepath.Clean(baseDir))
	if err != nil {
		return err
	}
	if rel == "." {
		return errors.New("must not be the base directory")
	}
	if rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return errors.New("must not contain the base directory")
	}
	return nil
}

// validateTarget keeps the overlay target inside the working tree.
func validateTarget(target string) error {
	if target == "" {
		return nil
	}
	if filepath.IsAbs(target) {
		return errors.New("must be relative to the working tree")
	}
	clean := filepath.Clean(target)
	if clean == "." || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return errors.New("must name a file inside the working tree")
	}
	return nil
}
