// SPDX-License-Identifier: MPL-2.0

// Package health serves the launcher's liveness endpoint.
//
// Hosting platforms that expect a bound port get a static acknowledgement on
// "/" and a plain "ok" on "/healthz", over HTTP/1.1 or cleartext HTTP/2. The
// server runs beside the supervised application and shares nothing with it
// beyond its own lifecycle state.
package health
