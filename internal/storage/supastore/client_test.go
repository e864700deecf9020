package supastore

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c := New(Config{
		BaseURL:    srv.URL,
		ServiceKey: "service-key",
		Bucket:     "product-images",
	})
	c.now = func() time.Time { return time.UnixMilli(1700000000000) }
	return c
}

func TestUpload(t *testing.T) {
	var (
		gotPath string
		gotAuth string
		gotType string
		gotBody []byte
	)
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		gotType = r.Header.Get("Content-Type")
		gotBody, _ = io.ReadAll(r.Body)
		assert.Equal(t, http.MethodPost, r.Method)
		w.WriteHeader(http.StatusOK)
	})

	path, err := c.Upload(context.Background(), "front.png", []byte("img-bytes"), "image/png")

	require.NoError(t, err)
	assert.Equal(t, "1700000000000-front.png", path)
	assert.Equal(t, "/storage/v1/object/product-images/1700000000000-front.png", gotPath)
	assert.Equal(t, "Bearer service-key", gotAuth)
	assert.Equal(t, "image/png", gotType)
	assert.Equal(t, []byte("img-bytes"), gotBody)
}

func TestUpload_SanitizesName(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	path, err := c.Upload(context.Background(), "dir/my image.png", []byte("x"), "image/png")

	require.NoError(t, err)
	assert.Equal(t, "1700000000000-dir_my%20image.png", path)
}

func TestUpload_ServiceError(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"message": "The resource already exists"}`))
	})

	_, err := c.Upload(context.Background(), "front.png", []byte("x"), "image/png")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "The resource already exists")
	assert.Contains(t, err.Error(), "409")
}

func TestUpload_NonJSONError(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("upstream down"))
	})

	_, err := c.Upload(context.Background(), "front.png", []byte("x"), "image/png")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected status 502")
}

func TestPublicURL(t *testing.T) {
	c := New(Config{
		BaseURL: "https://xyz.supabase.co",
		Bucket:  "product-images",
	})

	got := c.PublicURL("1700000000000-front.png")
	assert.Equal(t, "https://xyz.supabase.co/storage/v1/object/public/product-images/1700000000000-front.png", got)
}

func TestRemove_Batch(t *testing.T) {
	var (
		gotPath string
		gotBody map[string][]string
		calls   int
	)
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		gotPath = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		assert.Equal(t, http.MethodDelete, r.Method)
		assert.Equal(t, "Bearer service-key", r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusOK)
	})

	err := c.Remove(context.Background(), []string{"obj-1", "obj-2"})

	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, "/storage/v1/object/product-images", gotPath)
	assert.Equal(t, map[string][]string{"prefixes": {"obj-1", "obj-2"}}, gotBody)
}

func TestRemove_EmptyIsNoOp(t *testing.T) {
	calls := 0
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
	})

	require.NoError(t, c.Remove(context.Background(), nil))
	require.NoError(t, c.Remove(context.Background(), []string{}))
	assert.Equal(t, 0, calls)
}

func TestRemove_ServiceError(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"message": "Object not found"}`))
	})

	err := c.Remove(context.Background(), []string{"obj-1"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "Object not found")
}
