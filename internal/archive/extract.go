// SPDX-License-Identifier: MPL-2.0

package archive

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

const (
	// DefaultMaxEntryBytes caps the decompressed size of a single entry (512 MiB).
	DefaultMaxEntryBytes int64 = 512 << 20

	dirPerm  = 0o755
	filePerm = 0o644
)

var (
	// ErrExtract is the sentinel error wrapped by ExtractError.
	ErrExtract = errors.New("extraction failed")

	// ErrUnsupportedFormat is returned when the payload is neither zip nor gzip.
	ErrUnsupportedFormat = errors.New("unsupported archive format")

	// ErrUnsafePath is returned for entries that would land outside the destination.
	ErrUnsafePath = errors.New("entry escapes destination")

	// ErrEntryTooLarge is returned when an entry exceeds the size cap.
	ErrEntryTooLarge = errors.New("entry exceeds size limit")

	zipMagic  = []byte("PK\x03\x04")
	gzipMagic = []byte{0x1f, 0x8b}
)

type (
	// Format identifies an archive container.
	Format string

	// Stats summarizes an extraction.
	Stats struct {
		Format Format
		Files  int
		Dirs   int
		Bytes  int64
	}

	// ExtractError reports a failed extraction. Entry is empty when the
	// failure is not tied to a single entry.
	ExtractError struct {
		Archive string
		Entry   string
		Err     error
	}

	// Option configures an extraction.
	Option func(*extractor)

	extractor struct {
		fs            afero.Fs
		dest          string
		maxEntryBytes int64
		stats         Stats
	}
)

const (
	FormatZip     Format = "zip"
	FormatTarGzip Format = "tar.gz"
)

// Error implements the error interface.
func (e *ExtractError) Error() string {
	if e.Entry != "" {
		return fmt.Sprintf("extracting %s (entry %q): %v", e.Archive, e.Entry, e.Err)
	}
	return fmt.Sprintf("extracting %s: %v", e.Archive, e.Err)
}

// Unwrap exposes both the ErrExtract sentinel and the underlying cause.
func (e *ExtractError) Unwrap() []error { return []error{ErrExtract, e.Err} }

// WithMaxEntryBytes overrides the per-entry decompressed size cap.
func WithMaxEntryBytes(n int64) Option {
	return func(x *extractor) {
		x.maxEntryBytes = n
	}
}

// Extract unpacks archivePath into destDir and deletes the archive once every
// entry has been written. Existing files are overwritten. On failure the
// partially extracted tree and the archive are left in place.
func Extract(fs afero.Fs, archivePath, destDir string, opts ...Option) (Stats, error) {
	x := &extractor{
		fs:            fs,
		dest:          filepath.Clean(destDir),
		maxEntryBytes: DefaultMaxEntryBytes,
	}
	for _, opt := range opts {
		opt(x)
	}

	if err := x.extract(archivePath); err != nil {
		var extractErr *ExtractError
		if errors.As(err, &extractErr) {
			return x.stats, err
		}
		return x.stats, &ExtractError{Archive: archivePath, Err: err}
	}

	if err := fs.Remove(archivePath); err != nil {
		return x.stats, &ExtractError{Archive: archivePath, Err: fmt.Errorf("removing archive: %w", err)}
	}
	return x.stats, nil
}

func (x *extractor) extract(archivePath string) error {
	f, err := x.fs.Open(archivePath)
	if err != nil {
		return fmt.Errorf("opening archive: %w", err)
	}
	defer func() {
		// Read-only file handle; close errors are exotic.
		_ = f.Close()
	}()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat archive: %w", err)
	}

	magic := make([]byte, len(zipMagic))
	n, err := io.ReadFull(io.NewSectionReader(f, 0, info.Size()), magic)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return fmt.Errorf("reading archive header: %w", err)
	}
	magic = magic[:n]

	if err := x.fs.MkdirAll(x.dest, dirPerm); err != nil {
		return fmt.Errorf("creating destination: %w", err)
	}

	switch {
	case bytes.HasPrefix(magic, zipMagic):
		x.stats.Format = FormatZip
		return x.extractZip(archivePath, f, info.Size())
	case bytes.HasPrefix(magic, gzipMagic):
		x.stats.Format = FormatTarGzip
		return x.extractTarGzip(archivePath, io.NewSectionReader(f, 0, info.Size()))
	default:
		return ErrUnsupportedFormat
	}
}

// target resolves an entry name below the destination, rejecting absolute
// names and any name that climbs out of it.
func (x *extractor) target(name string) (string, error) {
	name = strings.ReplaceAll(name, `\`, "/")
	if strings.HasPrefix(name, "/") || filepath.IsAbs(name) {
		return "", ErrUnsafePath
	}
	joined := filepath.Join(x.dest, filepath.FromSlash(name))
	rel, err := filepath.Rel(x.dest, joined)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", ErrUnsafePath
	}
	return joined, nil
}

func (x *extractor) mkdir(path string) error {
	if err := x.fs.MkdirAll(path, dirPerm); err != nil {
		return err
	}
	x.stats.Dirs++
	return nil
}

// writeFile copies at most maxEntryBytes from r into path, replacing any
// existing file.
func (x *extractor) writeFile(path string, r io.Reader, mode os.FileMode) (err error) {
	if err := x.fs.MkdirAll(filepath.Dir(path), dirPerm); err != nil {
		return err
	}

	perm := mode.Perm()
	if perm == 0 {
		perm = filePerm
	}
	out, err := x.fs.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm|0o600)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := out.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	n, err := io.Copy(out, io.LimitReader(r, x.maxEntryBytes+1))
	if err != nil {
		return err
	}
	if n > x.maxEntryBytes {
		return ErrEntryTooLarge
	}

	x.stats.Files++
	x.stats.Bytes += n
	return nil
}
