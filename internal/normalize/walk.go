// SPDX-License-Identifier: MPL-2.0

package normalize

import (
	"errors"
	"io/fs"
	"path/filepath"

	"github.com/spf13/afero"
)

// Visitor receives the entries of a tree in lexical order. Returning
// fs.SkipDir from VisitDir prunes that directory.
type Visitor interface {
	VisitDir(path string, info fs.FileInfo) error
	VisitFile(path string, info fs.FileInfo) error
}

// Walk traverses root depth-first. Directory entries are visited in lexical
// order regardless of what the underlying filesystem returns. Symlinks and
// other non-regular files are not reported.
func Walk(afs afero.Fs, root string, v Visitor) error {
	info, err := afs.Stat(root)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return &fs.PathError{Op: "walk", Path: root, Err: errors.New("not a directory")}
	}
	err = walkDir(afs, root, info, v)
	if errors.Is(err, fs.SkipDir) {
		return nil
	}
	return err
}

func walkDir(afs afero.Fs, dir string, info fs.FileInfo, v Visitor) error {
	if err := v.VisitDir(dir, info); err != nil {
		return err
	}

	// afero.ReadDir returns entries sorted by name.
	entries, err := afero.ReadDir(afs, dir)
	if err != nil {
		return err
	}

	for _, entry := range entries {
		path := filepath.Join(dir, entry.Name())
		switch {
		case entry.IsDir():
			if err := walkDir(afs, path, entry, v); err != nil && !errors.Is(err, fs.SkipDir) {
				return err
			}
		case entry.Mode().IsRegular():
			if err := v.VisitFile(path, entry); err != nil {
				return err
			}
		}
	}
	return nil
}

// fileCollector gathers regular files accepted by match.
type fileCollector struct {
	match func(path string) bool
	files []string
}

func (c *fileCollector) VisitDir(string, fs.FileInfo) error { return nil }

func (c *fileCollector) VisitFile(path string, _ fs.FileInfo) error {
	if c.match(path) {
		c.files = append(c.files, path)
	}
	return nil
}
