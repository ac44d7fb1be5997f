// SPDX-License-Identifier: MPL-2.0

package archive

import (
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/zip"
)

func (x *extractor) extractZip(archivePath string, r io.ReaderAt, size int64) error {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return fmt.Errorf("reading zip: %w", err)
	}

	for _, entry := range zr.File {
		if err := x.extractZipEntry(entry); err != nil {
			return &ExtractError{Archive: archivePath, Entry: entry.Name, Err: err}
		}
	}
	return nil
}

func (x *extractor) extractZipEntry(entry *zip.File) error {
	path, err := x.target(entry.Name)
	if err != nil {
		return err
	}

	mode := entry.Mode()
	switch {
	case mode.IsDir():
		return x.mkdir(path)
	case mode&os.ModeSymlink != 0:
		return nil
	}

	rc, err := entry.Open()
	if err != nil {
		return err
	}
	defer func() { _ = rc.Close() }()

	return x.writeFile(path, rc, mode)
}
