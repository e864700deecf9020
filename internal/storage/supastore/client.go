// Package supastore is a client for a Supabase-compatible object storage
// service. It covers the three operations the product coordinator needs:
// upload, public URL resolution, and batch removal.
package supastore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-faster/errors"
)

// Config holds the connection settings for the storage service.
type Config struct {
	// BaseURL is the service root, e.g. https://xyz.supabase.co.
	BaseURL string
	// ServiceKey authenticates as the service role; sent as a bearer token.
	ServiceKey string
	// Bucket is the bucket all objects live in.
	Bucket string
}

// Client talks to the storage service over HTTP.
type Client struct {
	cfg  Config
	http *http.Client
	// now is stubbed in tests to get stable object names.
	now func() time.Time
}

// New creates a storage Client.
func New(cfg Config) *Client {
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: 30 * time.Second},
		now:  time.Now,
	}
}

// Upload stores data under a timestamped object name derived from name and
// returns the storage path. Existing objects are never overwritten; the
// timestamp prefix keeps repeated uploads of the same filename distinct.
func (c *Client) Upload(ctx context.Context, name string, data []byte, contentType string) (string, error) {
	objectPath := fmt.Sprintf("%d-%s", c.now().UnixMilli(), sanitizeName(name))

	endpoint := fmt.Sprintf("%s/storage/v1/object/%s/%s", c.cfg.BaseURL, c.cfg.Bucket, objectPath)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(data))
	if err != nil {
		return "", errors.Wrap(err, "create upload request")
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.ServiceKey)
	req.Header.Set("Content-Type", contentType)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", errors.Wrapf(err, "upload %s", objectPath)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", errors.Wrapf(readServiceError(resp), "upload %s", objectPath)
	}
	return objectPath, nil
}

// PublicURL returns the externally resolvable URL for a stored object.
func (c *Client) PublicURL(path string) string {
	return fmt.Sprintf("%s/storage/v1/object/public/%s/%s", c.cfg.BaseURL, c.cfg.Bucket, path)
}

// Remove deletes the given objects in one batch call. A nil or empty path
// list is a no-op.
func (c *Client) Remove(ctx context.Context, paths []string) error {
	if len(paths) == 0 {
		return nil
	}

	body, err := json.Marshal(map[string][]string{"prefixes": paths})
	if err != nil {
		return errors.Wrap(err, "marshal remove request")
	}

	endpoint := fmt.Sprintf("%s/storage/v1/object/%s", c.cfg.BaseURL, c.cfg.Bucket)
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, endpoint, bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(err, "create remove request")
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.ServiceKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrap(err, "remove objects")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return errors.Wrap(readServiceError(resp), "remove objects")
	}
	return nil
}

// sanitizeName makes a filename safe for use as a path segment.
func sanitizeName(name string) string {
	name = strings.ReplaceAll(name, "/", "_")
	return url.PathEscape(name)
}

// readServiceError extracts the service's error message from a non-200
// response, falling back to the raw status.
func readServiceError(resp *http.Response) error {
	var svcErr struct {
		Message string `json:"message"`
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err := json.Unmarshal(body, &svcErr); err == nil && svcErr.Message != "" {
		return errors.Errorf("storage service: %s (status %d)", svcErr.Message, resp.StatusCode)
	}
	return errors.Errorf("storage service: unexpected status %d", resp.StatusCode)
}
