// Package fetcher retrieves pages over HTTP for the crawler.
package fetcher

import (
	"compress/flate"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/andybalholm/brotli"
)

// Default values applied by NewHTTPFetcher.
const (
	DefaultTimeout     = 10 * time.Second
	DefaultMaxBodySize = 10 * 1024 * 1024
)

// Options controls HTTP fetching behaviour.
type Options struct {
	// UserAgent is sent with every request when non-empty.
	UserAgent string

	// Headers are extra request headers. They override the defaults.
	Headers map[string]string

	// Timeout bounds each request from dial to the end of the body.
	Timeout time.Duration

	// MaxBodySize caps how many decoded body bytes are kept.
	MaxBodySize int64

	// Transport replaces the default transport. Tests use it to stub the network.
	Transport http.RoundTripper
}

// Response is the part of an HTTP response the crawler works with.
type Response struct {
	// StatusCode is the HTTP status of the final response after redirects.
	StatusCode int

	// ContentType is the raw Content-Type header.
	ContentType string

	// Body holds at most MaxBodySize decoded bytes.
	Body []byte

	// SizeBytes is the body size. When the body was truncated it is the
	// larger of the bytes read and the declared Content-Length.
	SizeBytes int64

	// Truncated reports whether Body was cut at MaxBodySize.
	Truncated bool
}

// HTTPFetcher fetches pages with a shared http.Client.
type HTTPFetcher struct {
	client       *http.Client
	userAgent    string
	extraHeaders map[string]string
	maxBodySize  int64
}

// NewHTTPFetcher constructs an HTTP fetcher using the provided options.
func NewHTTPFetcher(opts Options) *HTTPFetcher {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.MaxBodySize <= 0 {
		opts.MaxBodySize = DefaultMaxBodySize
	}

	transport := opts.Transport
	if transport == nil {
		transport = &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			DialContext:           (&net.Dialer{Timeout: opts.Timeout, KeepAlive: 30 * time.Second}).DialContext,
			TLSHandshakeTimeout:   opts.Timeout,
			MaxIdleConns:          100,
			MaxIdleConnsPerHost:   16,
			IdleConnTimeout:       90 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
		}
	}

	return &HTTPFetcher{
		client: &http.Client{
			Timeout:   opts.Timeout,
			Transport: transport,
		},
		userAgent:    opts.UserAgent,
		extraHeaders: maps.Clone(opts.Headers),
		maxBodySize:  opts.MaxBodySize,
	}
}

// Client exposes the underlying HTTP client so robots.txt loading shares
// the same connection pool and timeout.
func (f *HTTPFetcher) Client() *http.Client {
	return f.client
}

// Fetch performs a GET for rawURL. Any HTTP status is a successful fetch;
// an error means no response was obtained (timeout, refused connection,
// unreadable body).
func (f *HTTPFetcher) Fetch(ctx context.Context, rawURL string) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.8")
	req.Header.Set("Accept-Encoding", "gzip, deflate, br")
	for k, v := range f.extraHeaders {
		req.Header.Set(k, v)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http fetch failed: %w", err)
	}

	body, truncated, err := f.readBody(resp)
	if err != nil {
		return nil, err
	}

	size := int64(len(body))
	if truncated && resp.ContentLength > size && resp.Header.Get("Content-Encoding") == "" {
		size = resp.ContentLength
	}

	return &Response{
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        body,
		SizeBytes:   size,
		Truncated:   truncated,
	}, nil
}

// readBody decodes the response body according to Content-Encoding and
// reads at most maxBodySize bytes of it.
func (f *HTTPFetcher) readBody(resp *http.Response) ([]byte, bool, error) {
	if resp.Body == nil {
		return nil, false, errors.New("empty response body")
	}

	reader := io.Reader(resp.Body)
	closers := []io.Closer{resp.Body}

	switch strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Encoding"))) {
	case "gzip":
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			_ = resp.Body.Close()
			return nil, false, fmt.Errorf("gzip decode: %w", err)
		}
		reader = gz
		closers = append(closers, gz)
	case "br":
		reader = brotli.NewReader(resp.Body)
	case "deflate":
		fl := flate.NewReader(resp.Body)
		reader = fl
		closers = append(closers, fl)
	}

	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			_ = closers[i].Close()
		}
	}()

	body, err := io.ReadAll(io.LimitReader(reader, f.maxBodySize+1))
	if err != nil {
		return nil, false, fmt.Errorf("read body: %w", err)
	}
	if int64(len(body)) > f.maxBodySize {
		return body[:f.maxBodySize], true, nil
	}
	return body, false, nil
}
