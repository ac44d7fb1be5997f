// SPDX-License-Identifier: MPL-2.0

package fetch

import (
	"bytes"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/spf13/afero"
)

// newFakeS3 serves a single object at /mirror/bot/main.zip with the headers
// the minio client needs to describe it.
func newFakeS3(t *testing.T, payload []byte) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/mirror/bot/main.zip" {
			w.Header().Set("Content-Type", "application/xml")
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`<?xml version="1.0" encoding="UTF-8"?>` +
				`<Error><Code>NoSuchKey</Code><Message>The specified key does not exist.</Message></Error>`))
			return
		}
		w.Header().Set("Content-Type", "application/zip")
		w.Header().Set("Content-Length", strconv.Itoa(len(payload)))
		w.Header().Set("ETag", `"0123456789abcdef"`)
		w.Header().Set("Last-Modified", time.Now().UTC().Format(http.TimeFormat))
		_, _ = w.Write(payload)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func s3ConfigFor(t *testing.T, srv *httptest.Server) S3Config {
	t.Helper()
	u, err := url.Parse(srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	return S3Config{Endpoint: u.Host}
}

func TestFetch_S3Object(t *testing.T) {
	t.Parallel()

	payload := []byte("PK\x03\x04 mirrored archive")
	srv := newFakeS3(t, payload)

	fs := newTestFs(t)
	archive, err := newTestClient(fs, WithS3Config(s3ConfigFor(t, srv))).Fetch(t.Context(), Request{
		URL:  "s3://mirror/bot/main.zip",
		Dest: testDest,
	})
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if archive.Size != int64(len(payload)) {
		t.Errorf("Size = %d, want %d", archive.Size, len(payload))
	}
	got, err := afero.ReadFile(fs, testDest)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, payload) {
		t.Errorf("content = %q, want %q", got, payload)
	}
}

func TestFetch_S3MissingKey(t *testing.T) {
	t.Parallel()

	srv := newFakeS3(t, nil)

	fs := newTestFs(t)
	_, err := newTestClient(fs, WithS3Config(s3ConfigFor(t, srv))).Fetch(t.Context(), Request{
		URL:  "s3://mirror/bot/missing.zip",
		Dest: testDest,
	})

	var fetchErr *FetchError
	if !errors.As(err, &fetchErr) {
		t.Fatalf("Fetch() error = %v, want *FetchError", err)
	}
	if fetchErr.StatusCode != http.StatusNotFound {
		t.Errorf("StatusCode = %d, want 404", fetchErr.StatusCode)
	}
	if exists, _ := afero.Exists(fs, testDest); exists {
		t.Error("destination file was created for a missing object")
	}
}

func TestFetch_S3NotConfigured(t *testing.T) {
	t.Parallel()

	_, err := newTestClient(newTestFs(t)).Fetch(t.Context(), Request{URL: "s3://mirror/bot/main.zip", Dest: testDest})
	if !errors.Is(err, ErrS3NotConfigured) {
		t.Errorf("Fetch() error = %v, want ErrS3NotConfigured", err)
	}
}
