// SPDX-License-Identifier: MPL-2.0

// Package normalize converts an extracted source tree from the ES module
// convention (".js" files under a "type": "module" manifest) to CommonJS
// (".cjs" files) so that it can be launched by a plain interpreter.
//
// The conversion runs four steps in a fixed order: the manifest patch, the
// tree-wide rename, the relative reference rewrite, and the suspension-point
// patch of the entry point. The first failing step aborts the run.
package normalize
