// SPDX-License-Identifier: MPL-2.0

// Package issue provides actionable error handling with user-friendly messages.
//
// Launcher stages report failures as ActionableError values carrying the
// failed operation, the path or URL involved and remediation hints. Each
// error may point at a catalog entry whose Markdown guidance is rendered
// with glamour in verbose mode.
package issue
