package supabase

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// StorageClient is the subset of Supabase Storage used for shared files.
type StorageClient interface {
	Upload(ctx context.Context, bucket, path, contentType string, body io.Reader) error
	SignedURL(ctx context.Context, bucket, path string, expiresIn time.Duration) (string, error)
	Remove(ctx context.Context, bucket string, paths ...string) error
}

var _ StorageClient = (*Client)(nil)

func objectPath(bucket, path string) string {
	parts := strings.Split(strings.TrimLeft(path, "/"), "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return url.PathEscape(bucket) + "/" + strings.Join(parts, "/")
}

// Upload stores body at bucket/path. Existing objects are not overwritten.
func (c *Client) Upload(ctx context.Context, bucket, path, contentType string, body io.Reader) error {
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	_, _, err := c.do(ctx, request{
		method: http.MethodPost,
		path:   "/storage/v1/object/" + objectPath(bucket, path),
		raw:    body,
		apiKey: c.privilegedKey(),
		headers: map[string]string{
			"Content-Type": contentType,
			"x-upsert":     "false",
		},
	})
	return err
}

// SignedURL returns a time-limited download URL for bucket/path.
func (c *Client) SignedURL(ctx context.Context, bucket, path string, expiresIn time.Duration) (string, error) {
	data, _, err := c.do(ctx, request{
		method: http.MethodPost,
		path:   "/storage/v1/object/sign/" + objectPath(bucket, path),
		body:   map[string]int64{"expiresIn": int64(expiresIn / time.Second)},
		apiKey: c.privilegedKey(),
	})
	if err != nil {
		return "", err
	}
	var resp struct {
		SignedURL string `json:"signedURL"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return "", fmt.Errorf("failed to decode signed url: %w", err)
	}
	if resp.SignedURL == "" {
		return "", fmt.Errorf("signed url missing from response")
	}
	return c.baseURL + "/storage/v1" + resp.SignedURL, nil
}

// Remove deletes objects from bucket.
func (c *Client) Remove(ctx context.Context, bucket string, paths ...string) error {
	if len(paths) == 0 {
		return nil
	}
	_, _, err := c.do(ctx, request{
		method: http.MethodDelete,
		path:   "/storage/v1/object/" + url.PathEscape(bucket),
		body:   map[string][]string{"prefixes": paths},
		apiKey: c.privilegedKey(),
	})
	return err
}
