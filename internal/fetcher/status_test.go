package fetcher

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"syscall"
	"testing"
)

type timeoutError struct{}

func (timeoutError) Error() string   { return "i/o timeout" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }

// TestStatusFromError tests the synthetic status mapping.
func TestStatusFromError(t *testing.T) {
	t.Parallel()

	refused := &url.Error{
		Op:  "Get",
		URL: "http://127.0.0.1:1/",
		Err: &net.OpError{Op: "dial", Net: "tcp", Err: syscall.ECONNREFUSED},
	}

	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, http.StatusOK},
		{"deadline", fmt.Errorf("http fetch failed: %w", context.DeadlineExceeded), http.StatusRequestTimeout},
		{"net timeout", &url.Error{Op: "Get", URL: "http://x/", Err: timeoutError{}}, http.StatusRequestTimeout},
		{"connection refused", fmt.Errorf("http fetch failed: %w", refused), http.StatusServiceUnavailable},
		{"dns", &net.DNSError{Err: "no such host", Name: "nowhere.invalid", IsNotFound: true}, http.StatusServiceUnavailable},
		{"reset", syscall.ECONNRESET, http.StatusServiceUnavailable},
		{"other", errors.New("read body: unexpected EOF"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := StatusFromError(tt.err); got != tt.want {
				t.Errorf("StatusFromError(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}
