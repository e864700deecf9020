package health

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeStatus(t *testing.T, rec *httptest.ResponseRecorder) statusResponse {
	t.Helper()
	var resp statusResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp
}

func TestReadyEndpoint_NotReadyByDefault(t *testing.T) {
	h := New()

	rec := httptest.NewRecorder()
	h.ReadyEndpoint(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	resp := decodeStatus(t, rec)
	assert.Equal(t, "unhealthy", resp.Status)
	assert.Contains(t, resp.Checks, "_readiness")
}

func TestReadyEndpoint_ReadyAfterSetReady(t *testing.T) {
	h := New()
	h.SetReady(true)

	rec := httptest.NewRecorder()
	h.ReadyEndpoint(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decodeStatus(t, rec).Status)
	assert.True(t, h.IsReady())
}

func TestReadyEndpoint_FailingCheck(t *testing.T) {
	h := New()
	h.SetReady(true)
	h.AddReadinessCheck("postgres", time.Second, func(context.Context) error {
		return errors.New("connection refused")
	})

	h.Start(context.Background(), time.Hour)
	defer h.Stop()

	require.Eventually(t, func() bool {
		return !h.IsReady()
	}, time.Second, 10*time.Millisecond)

	rec := httptest.NewRecorder()
	h.ReadyEndpoint(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	resp := decodeStatus(t, rec)
	assert.Equal(t, "connection refused", resp.Checks["postgres"])
}

func TestLiveEndpoint_IgnoresReadinessGate(t *testing.T) {
	h := New()
	// Not marked ready; liveness must still pass.

	rec := httptest.NewRecorder()
	h.LiveEndpoint(rec, httptest.NewRequest(http.MethodGet, "/livez", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decodeStatus(t, rec).Status)
}

func TestChecksRunPeriodically(t *testing.T) {
	h := New()
	var runs atomic.Int32
	h.AddLivenessCheck("counter", time.Second, func(context.Context) error {
		runs.Add(1)
		return nil
	})

	h.Start(context.Background(), 10*time.Millisecond)
	defer h.Stop()

	require.Eventually(t, func() bool {
		return runs.Load() >= 3
	}, time.Second, 5*time.Millisecond)
}

func TestStop_HaltsChecks(t *testing.T) {
	h := New()
	var runs atomic.Int32
	h.AddLivenessCheck("counter", time.Second, func(context.Context) error {
		runs.Add(1)
		return nil
	})

	h.Start(context.Background(), 10*time.Millisecond)
	require.Eventually(t, func() bool {
		return runs.Load() >= 1
	}, time.Second, 5*time.Millisecond)

	h.Stop()
	h.Stop() // repeat calls are safe

	after := runs.Load()
	time.Sleep(50 * time.Millisecond)
	assert.LessOrEqual(t, runs.Load(), after+1)
}

func TestCheckRecovery(t *testing.T) {
	h := New()
	h.SetReady(true)
	var fail atomic.Bool
	fail.Store(true)
	h.AddReadinessCheck("flaky", time.Second, func(context.Context) error {
		if fail.Load() {
			return errors.New("down")
		}
		return nil
	})

	h.Start(context.Background(), 10*time.Millisecond)
	defer h.Stop()

	require.Eventually(t, func() bool {
		return !h.IsReady()
	}, time.Second, 5*time.Millisecond)

	fail.Store(false)
	require.Eventually(t, func() bool {
		return h.IsReady()
	}, time.Second, 5*time.Millisecond)
}

func TestGoroutineCountCheck(t *testing.T) {
	require.NoError(t, GoroutineCountCheck(100_000)(context.Background()))

	err := GoroutineCountCheck(0)(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exceeds threshold")
}

func TestHTTPReachableCheck(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodHead, r.Method)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	check := HTTPReachableCheck(srv.Client(), srv.URL)
	require.NoError(t, check(context.Background()))
}

func TestHTTPReachableCheck_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	err := HTTPReachableCheck(srv.Client(), srv.URL)(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}

func TestHTTPReachableCheck_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	err := HTTPReachableCheck(http.DefaultClient, srv.URL)(context.Background())
	require.Error(t, err)
}
