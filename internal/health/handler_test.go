// SPDX-License-Identifier: MPL-2.0

package health

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHandler(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		appName    string
		method     string
		path       string
		wantStatus int
		wantBody   string
	}{
		{name: "banner", appName: "GURU MD", method: http.MethodGet, path: "/", wantStatus: http.StatusOK, wantBody: "GURU MD is running"},
		{name: "default name", method: http.MethodGet, path: "/", wantStatus: http.StatusOK, wantBody: "bootlace is running"},
		{name: "healthz", method: http.MethodGet, path: "/healthz", wantStatus: http.StatusOK, wantBody: "ok"},
		{name: "unknown path", method: http.MethodGet, path: "/admin", wantStatus: http.StatusNotFound},
		{name: "post rejected", method: http.MethodPost, path: "/", wantStatus: http.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			rec := httptest.NewRecorder()
			Handler(tt.appName).ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, nil))

			res := rec.Result()
			defer res.Body.Close()
			if res.StatusCode != tt.wantStatus {
				t.Fatalf("status = %d, want %d", res.StatusCode, tt.wantStatus)
			}
			if tt.wantBody == "" {
				return
			}
			body, _ := io.ReadAll(res.Body)
			if string(body) != tt.wantBody {
				t.Errorf("body = %q, want %q", body, tt.wantBody)
			}
		})
	}
}
