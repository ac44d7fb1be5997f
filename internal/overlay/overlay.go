// SPDX-License-Identifier: MPL-2.0

// Package overlay copies a local configuration file over the one shipped in
// the working tree.
package overlay

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
)

// ErrOverlay is the sentinel error wrapped by OverlayError.
var ErrOverlay = errors.New("overlay failed")

// OverlayError reports a failed copy. The pipeline treats it as a warning.
type OverlayError struct {
	Source string
	Target string
	Err    error
}

// Error implements the error interface.
func (e *OverlayError) Error() string {
	return fmt.Sprintf("overlaying %s onto %s: %v", e.Source, e.Target, e.Err)
}

// Unwrap exposes both the ErrOverlay sentinel and the underlying cause.
func (e *OverlayError) Unwrap() []error { return []error{ErrOverlay, e.Err} }

// Apply copies src to dst byte for byte, replacing dst and creating its
// parent directories. A missing src is not an error: applied is false and the
// tree keeps its own configuration.
func Apply(fs afero.Fs, src, dst string) (applied bool, err error) {
	in, err := fs.Open(src)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, &OverlayError{Source: src, Target: dst, Err: err}
	}
	defer func() { _ = in.Close() }()

	info, err := in.Stat()
	if err != nil {
		return false, &OverlayError{Source: src, Target: dst, Err: err}
	}
	if info.IsDir() {
		return false, &OverlayError{Source: src, Target: dst, Err: errors.New("source is a directory")}
	}

	if err := fs.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return false, &OverlayError{Source: src, Target: dst, Err: err}
	}

	if err := copyFile(fs, in, dst, info.Mode().Perm()); err != nil {
		return false, &OverlayError{Source: src, Target: dst, Err: err}
	}
	return true, nil
}

func copyFile(fs afero.Fs, in io.Reader, dst string, perm os.FileMode) (err error) {
	out, err := fs.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm|0o600)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := out.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	_, err = io.Copy(out, in)
	return err
}
