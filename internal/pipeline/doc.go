// SPDX-License-Identifier: MPL-2.0

// Package pipeline composes the launcher stages into one run.
//
// A run takes the scratch directory lock, recreates the scratch directory,
// downloads and extracts the source archive, normalizes the working tree,
// overlays the local configuration and finally supervises the application.
// Stages run strictly in that order and the first failure ends the run; only
// the overlay is allowed to fail without stopping it.
package pipeline
