// SPDX-License-Identifier: MPL-2.0

package normalize

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

// Rename gives every regular file under root whose extension is from the
// extension to instead. Files are collected before any rename so that the
// traversal never observes its own output. An existing file at a target name
// is replaced. The new paths are returned in lexical order of the originals.
func Rename(afs afero.Fs, root, from, to string) ([]string, error) {
	c := &fileCollector{match: func(path string) bool { return filepath.Ext(path) == from }}
	if err := Walk(afs, root, c); err != nil {
		return nil, err
	}

	renamed := make([]string, 0, len(c.files))
	for _, oldPath := range c.files {
		newPath := swapExt(oldPath, from, to)
		if err := afs.Remove(newPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			return renamed, err
		}
		if err := afs.Rename(oldPath, newPath); err != nil {
			return renamed, err
		}
		renamed = append(renamed, newPath)
	}
	return renamed, nil
}

func swapExt(path, from, to string) string {
	return strings.TrimSuffix(path, from) + to
}
