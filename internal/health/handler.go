// SPDX-License-Identifier: MPL-2.0

package health

import (
	"net/http"
)

// DefaultName is reported when no application name is configured.
const DefaultName = "bootlace"

// Handler answers "GET /" with "<name> is running" and "GET /healthz" with
// "ok". Every other path is a 404.
func Handler(name string) http.Handler {
	if name == "" {
		name = DefaultName
	}
	banner := []byte(name + " is running")

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write(banner)
	})
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}
