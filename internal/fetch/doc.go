// SPDX-License-Identifier: MPL-2.0

// Package fetch downloads the source archive of the application into the
// scratch directory.
//
// Three URL schemes are understood: http(s) for the code host's archive
// endpoint, s3 for an object-store mirror, and file for local mirrors. Every
// source gets exactly one attempt; a non-success response never creates the
// destination file.
package fetch
