// SPDX-License-Identifier: MPL-2.0

package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/afero"
)

const (
	// DefaultTimeout bounds a single download, including reading the body.
	DefaultTimeout = 60 * time.Second

	// DefaultUserAgent is sent with every HTTP request.
	DefaultUserAgent = "bootlace/dev"

	// ArchiveFileName is the name of the downloaded archive inside the scratch directory.
	ArchiveFileName = "repo.archive"

	archivePerm = 0o644
)

var (
	// ErrFetch is the sentinel error wrapped by FetchError.
	ErrFetch = errors.New("fetch failed")

	// ErrUnexpectedStatus is the cause of a FetchError for a non-success response.
	ErrUnexpectedStatus = errors.New("unexpected status")

	// ErrUnsupportedScheme is returned for URLs that no source can serve.
	ErrUnsupportedScheme = errors.New("unsupported URL scheme")
)

type (
	// Request describes a single archive download.
	Request struct {
		// URL is the archive location (http, https, s3 or file scheme).
		URL string
		// Token is sent as a bearer credential on HTTP requests when non-empty.
		Token string
		// Dest is the path the archive is written to.
		Dest string
	}

	// Archive is a downloaded archive on disk.
	Archive struct {
		Path       string
		Size       int64
		StatusCode int
	}

	// FetchError reports a failed download. StatusCode is zero when no
	// response was received.
	FetchError struct {
		URL        string
		StatusCode int
		Err        error
	}

	// Client downloads archives from the supported sources.
	Client struct {
		fs         afero.Fs
		httpClient *http.Client
		timeout    time.Duration
		userAgent  string
		s3         S3Config
		logger     *log.Logger
	}

	// ClientOption configures a Client during construction.
	ClientOption func(*Client)
)

// Error implements the error interface. The URL is redacted.
func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetching %s: %v %d", redactURL(e.URL), e.Err, e.StatusCode)
	}
	return fmt.Sprintf("fetching %s: %v", redactURL(e.URL), e.Err)
}

// Unwrap exposes both the ErrFetch sentinel and the underlying cause.
func (e *FetchError) Unwrap() []error { return []error{ErrFetch, e.Err} }

// WithFs sets the filesystem the archive is written to and file:// sources are read from.
func WithFs(fs afero.Fs) ClientOption {
	return func(c *Client) {
		c.fs = fs
	}
}

// WithHTTPClient sets a custom HTTP client, useful for tests or proxy configurations.
// The client's own Timeout takes precedence over WithTimeout.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithTimeout bounds each download.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.timeout = d
	}
}

// WithUserAgent sets the User-Agent header sent with every request.
func WithUserAgent(ua string) ClientOption {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// WithS3Config sets the object-store connection used for s3:// URLs.
func WithS3Config(cfg S3Config) ClientOption {
	return func(c *Client) {
		c.s3 = cfg
	}
}

// WithLogger sets the logger used for progress messages.
func WithLogger(l *log.Logger) ClientOption {
	return func(c *Client) {
		c.logger = l
	}
}

// NewClient creates a Client with defaults: the OS filesystem, a 60s
// timeout and the DefaultUserAgent.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		fs:        afero.NewOsFs(),
		timeout:   DefaultTimeout,
		userAgent: DefaultUserAgent,
		logger:    log.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: c.timeout}
	}
	return c
}

// ArchiveURL returns the code host's archive URL for a branch snapshot.
func ArchiveURL(owner, repo, branch string) string {
	return fmt.Sprintf("https://github.com/%s/%s/archive/refs/heads/%s.zip", owner, repo, branch)
}

// Fetch downloads req.URL to req.Dest. The destination is only created once
// the source has answered successfully, and it is removed again if the
// transfer breaks off.
func (c *Client) Fetch(ctx context.Context, req Request) (*Archive, error) {
	u, err := url.Parse(req.URL)
	if err != nil {
		return nil, &FetchError{URL: req.URL, Err: err}
	}

	c.logger.Info("Downloading repo...", "url", redactURL(req.URL))

	var (
		body   io.ReadCloser
		status int
	)
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
		body, status, err = c.openHTTP(ctx, req)
	case "s3":
		body, status, err = c.openS3(ctx, u)
	case "file":
		body, status, err = c.openFile(u)
	default:
		err = &FetchError{URL: req.URL, Err: fmt.Errorf("%w %q", ErrUnsupportedScheme, u.Scheme)}
	}
	if err != nil {
		return nil, err
	}
	defer func() { _ = body.Close() }() // read-only source

	n, err := c.store(body, req.Dest)
	if err != nil {
		return nil, &FetchError{URL: req.URL, StatusCode: status, Err: err}
	}

	c.logger.Info("Download complete", "bytes", n)
	return &Archive{Path: req.Dest, Size: n, StatusCode: status}, nil
}

// openHTTP issues the single GET and returns the body of a 2xx response.
func (c *Client) openHTTP(ctx context.Context, req Request) (io.ReadCloser, int, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, req.URL, http.NoBody)
	if err != nil {
		return nil, 0, &FetchError{URL: req.URL, Err: fmt.Errorf("creating request: %w", err)}
	}
	httpReq.Header.Set("User-Agent", c.userAgent)
	if req.Token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+req.Token)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, 0, &FetchError{URL: req.URL, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_ = resp.Body.Close()
		return nil, resp.StatusCode, &FetchError{URL: req.URL, StatusCode: resp.StatusCode, Err: ErrUnexpectedStatus}
	}

	return resp.Body, resp.StatusCode, nil
}

// openFile opens a local archive named by a file:// URL.
func (c *Client) openFile(u *url.URL) (io.ReadCloser, int, error) {
	path := u.Path
	if u.Opaque != "" {
		path = u.Opaque
	}
	f, err := c.fs.Open(path)
	if err != nil {
		return nil, 0, &FetchError{URL: u.String(), Err: err}
	}
	return f, 0, nil
}

// store streams body into dest. A partially written file is removed.
func (c *Client) store(body io.Reader, dest string) (_ int64, err error) {
	f, err := c.fs.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, archivePerm)
	if err != nil {
		return 0, fmt.Errorf("creating %s: %w", dest, err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
		if err != nil {
			// Best-effort removal of the partial archive.
			_ = c.fs.Remove(dest)
		}
	}()

	n, err := io.Copy(f, body)
	if err != nil {
		return n, fmt.Errorf("writing %s: %w", dest, err)
	}
	return n, nil
}

// redactURL strips credentials, query parameters and fragments from a URL for
// safe inclusion in error messages and logs.
func redactURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "<invalid-url>"
	}
	u.User = nil
	u.RawQuery = ""
	u.Fragment = ""
	return u.String()
}
