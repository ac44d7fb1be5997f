// SPDX-License-Identifier: MPL-2.0

package cache

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/spf13/afero"
)

const (
	// MaxNesting bounds the number of synthetic layers below the cache root.
	MaxNesting = 16

	layerPrefix = "layer-"
	dirPerm     = 0o755
)

var (
	// ErrPrepare is the sentinel error wrapped by PrepareError.
	ErrPrepare = errors.New("scratch directory preparation failed")

	// ErrLocked is returned when another launcher holds the run lock.
	ErrLocked = errors.New("scratch directory locked")
)

type (
	// Scratch is the scratch directory of a single pipeline run.
	Scratch struct {
		fs      afero.Fs
		root    string
		nesting int
	}

	// PrepareError reports a failure to reset the scratch directory.
	PrepareError struct {
		Dir string
		Op  string
		Err error
	}

	// Option configures a Scratch during construction.
	Option func(*Scratch)
)

// Error implements the error interface.
func (e *PrepareError) Error() string {
	return fmt.Sprintf("%s scratch directory %s: %v", e.Op, e.Dir, e.Err)
}

// Unwrap exposes both the ErrPrepare sentinel and the underlying cause.
func (e *PrepareError) Unwrap() []error { return []error{ErrPrepare, e.Err} }

// WithNesting places the working directory n synthetic layers below root.
// Values are clamped to [0, MaxNesting].
func WithNesting(n int) Option {
	return func(s *Scratch) {
		s.nesting = min(max(n, 0), MaxNesting)
	}
}

// New creates a Scratch rooted at root on fs.
func New(fs afero.Fs, root string, opts ...Option) *Scratch {
	s := &Scratch{fs: fs, root: filepath.Clean(root)}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Root returns the directory that Prepare and Teardown remove.
func (s *Scratch) Root() string { return s.root }

// Dir returns the directory the pipeline writes into: the root itself, or
// the innermost synthetic layer when nesting is configured.
func (s *Scratch) Dir() string {
	parts := make([]string, 0, s.nesting+1)
	parts = append(parts, s.root)
	for i := 1; i <= s.nesting; i++ {
		parts = append(parts, layerPrefix+strconv.Itoa(i))
	}
	return filepath.Join(parts...)
}

// Prepare removes any existing scratch tree and creates a fresh, empty one.
// Calling it repeatedly always yields the same end state.
func (s *Scratch) Prepare(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return &PrepareError{Dir: s.root, Op: "prepare", Err: err}
	}
	if err := s.fs.RemoveAll(s.root); err != nil {
		return &PrepareError{Dir: s.root, Op: "remove", Err: err}
	}
	if err := s.fs.MkdirAll(s.Dir(), dirPerm); err != nil {
		return &PrepareError{Dir: s.Dir(), Op: "create", Err: err}
	}
	return nil
}

// Teardown removes the scratch tree. A missing tree is not an error.
func (s *Scratch) Teardown() error {
	if err := s.fs.RemoveAll(s.root); err != nil {
		return &PrepareError{Dir: s.root, Op: "remove", Err: err}
	}
	return nil
}

// LockPath returns the path of the run lock for this scratch directory. It
// lives beside the root so that Prepare never deletes it.
func (s *Scratch) LockPath() string {
	return s.root + ".lock"
}

// Lock takes the cross-process run lock for this scratch directory. The
// caller must Release it once the run is over.
func (s *Scratch) Lock() (*RunLock, error) {
	return AcquireRunLock(s.LockPath())
}
