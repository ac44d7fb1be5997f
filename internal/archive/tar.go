// SPDX-License-Identifier: MPL-2.0

package archive

import (
	"archive/tar"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"
)

func (x *extractor) extractTarGzip(archivePath string, r io.Reader) error {
	gz, err := gzip.NewReader(r)
	if err != nil {
		return fmt.Errorf("creating gzip reader: %w", err)
	}
	defer func() {
		// Only read from; close errors are not actionable.
		_ = gz.Close()
	}()

	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("reading tar entry: %w", err)
		}

		if err := x.extractTarEntry(hdr, tr); err != nil {
			return &ExtractError{Archive: archivePath, Entry: hdr.Name, Err: err}
		}
	}
}

func (x *extractor) extractTarEntry(hdr *tar.Header, r io.Reader) error {
	switch hdr.Typeflag {
	case tar.TypeDir:
		path, err := x.target(hdr.Name)
		if err != nil {
			return err
		}
		return x.mkdir(path)
	case tar.TypeReg:
		path, err := x.target(hdr.Name)
		if err != nil {
			return err
		}
		return x.writeFile(path, r, hdr.FileInfo().Mode())
	default:
		// Links, devices and pax global headers carry no file content.
		return nil
	}
}
