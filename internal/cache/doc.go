// SPDX-License-Identifier: MPL-2.0

// Package cache owns the launcher's scratch directory.
//
// A run acquires the directory anew: Prepare wipes whatever a previous run
// left behind and recreates it empty, and a cross-process run lock keeps two
// launchers from sharing the same directory.
package cache
