package fetcher

import (
	"context"
	"errors"
	"net"
	"net/http"
	"syscall"
)

// Synthetic status codes recorded for fetches that produced no response.
const (
	StatusTimeout           = http.StatusRequestTimeout
	StatusConnectionFailure = http.StatusServiceUnavailable
	StatusUnknownFailure    = http.StatusInternalServerError
)

// StatusFromError maps a failed fetch to a synthetic status code so every
// attempt can be reported as a status: 408 for timeouts, 503 for connection
// and DNS failures, 500 for anything else.
func StatusFromError(err error) int {
	if err == nil {
		return http.StatusOK
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return StatusTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return StatusTimeout
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return StatusConnectionFailure
	}
	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) {
		return StatusConnectionFailure
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return StatusConnectionFailure
	}

	return StatusUnknownFailure
}
