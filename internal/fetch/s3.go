// SPDX-License-Identifier: MPL-2.0

package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

const defaultS3Region = "us-east-1"

// ErrS3NotConfigured is returned for s3:// URLs when no endpoint is configured.
var ErrS3NotConfigured = errors.New("s3 endpoint is not configured")

// S3Config is the connection to an S3-compatible mirror. Empty keys mean
// anonymous access.
type S3Config struct {
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	UseSSL    bool
}

func (cfg S3Config) newClient() (*minio.Client, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return nil, ErrS3NotConfigured
	}
	region := strings.TrimSpace(cfg.Region)
	if region == "" {
		region = defaultS3Region
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(strings.TrimSpace(cfg.AccessKey), strings.TrimSpace(cfg.SecretKey), ""),
		Secure: cfg.UseSSL,
		Region: region,
	})
	if err != nil {
		return nil, fmt.Errorf("init s3 client: %w", err)
	}
	return client, nil
}

// openS3 opens s3://bucket/key. The object is stat'ed first so that a
// missing key fails before the destination file is created.
func (c *Client) openS3(ctx context.Context, u *url.URL) (io.ReadCloser, int, error) {
	bucket := u.Host
	key := strings.TrimLeft(u.Path, "/")
	if bucket == "" || key == "" {
		return nil, 0, &FetchError{URL: u.String(), Err: fmt.Errorf("s3 URL must name a bucket and a key")}
	}

	client, err := c.s3.newClient()
	if err != nil {
		return nil, 0, &FetchError{URL: u.String(), Err: err}
	}

	obj, err := client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, 0, &FetchError{URL: u.String(), StatusCode: minio.ToErrorResponse(err).StatusCode, Err: err}
	}
	if _, err := obj.Stat(); err != nil {
		_ = obj.Close()
		status := minio.ToErrorResponse(err).StatusCode
		return nil, status, &FetchError{URL: u.String(), StatusCode: status, Err: err}
	}

	return obj, http.StatusOK, nil
}
