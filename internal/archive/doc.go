// SPDX-License-Identifier: MPL-2.0

// Package archive unpacks a downloaded source archive into the scratch
// directory. Zip and tar.gz payloads are recognized by their magic bytes.
package archive
