package health

import (
	"context"
	"net/http"
	"runtime"

	"github.com/go-faster/errors"
)

// GoroutineCountCheck returns a CheckFunc that reports unhealthy when the
// number of goroutines exceeds the given threshold. Useful as a liveness
// check to detect goroutine leaks.
func GoroutineCountCheck(threshold int) CheckFunc {
	return func(_ context.Context) error {
		count := runtime.NumGoroutine()
		if count > threshold {
			return errors.Errorf("goroutine count %d exceeds threshold %d", count, threshold)
		}
		return nil
	}
}

// HTTPReachableCheck returns a CheckFunc that issues a HEAD request to url
// and reports unhealthy on connection failure or a 5xx response. Useful as
// a readiness check for external HTTP dependencies such as the object
// storage service.
func HTTPReachableCheck(client *http.Client, url string) CheckFunc {
	return func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
		if err != nil {
			return errors.Wrap(err, "create request")
		}
		resp, err := client.Do(req)
		if err != nil {
			return errors.Wrap(err, "reach dependency")
		}
		_ = resp.Body.Close()
		if resp.StatusCode >= http.StatusInternalServerError {
			return errors.Errorf("dependency returned status %d", resp.StatusCode)
		}
		return nil
	}
}
