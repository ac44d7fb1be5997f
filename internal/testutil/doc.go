// SPDX-License-Identifier: MPL-2.0

// Package testutil provides helper functions for tests that handle errors
// appropriately, reducing boilerplate and ensuring consistent error handling.
//
// Common helpers include source archive fixtures (BuildZip, BuildTarGzip,
// NewArchiveServer), afero file helpers (MustWriteFile, MustReadFile) and
// resource cleanup (MustClose, MustStop).
package testutil
