// SPDX-License-Identifier: MPL-2.0

// Package supervise launches the normalized entry point as a child process
// and mirrors its termination status.
//
// The child inherits the launcher's standard streams and environment (plus a
// production-mode flag). It is spawned exactly once and never restarted. Once
// it is running the launcher only waits; the child's exit code, or 128+signal
// for a signal-terminated child, becomes the launcher's own exit code.
package supervise
