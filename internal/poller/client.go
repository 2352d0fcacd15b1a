package poller

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

const maxResponseBodySize = 1 << 20 // 1MB

// connection pooling limits to prevent resource exhaustion when polling many providers
const (
	defaultMaxIdleConns        = 100
	defaultMaxIdleConnsPerHost = 10
	defaultMaxConnsPerHost     = 10
	defaultIdleConnTimeout     = 60 * time.Second
)

// Validators holds the conditional-request tokens recorded from a
// provider's previous response. Both are opaque strings echoed back
// verbatim; the Last-Modified value is never parsed as a time.
type Validators struct {
	// ETag is sent as If-None-Match when present.
	ETag string

	// LastModified is sent as If-Modified-Since when present.
	LastModified string
}

// Response holds the result of one conditional fetch.
//
// Errors are captured in the Error field rather than returned
// separately; the monitor's failure policy treats every flavor of
// failed fetch the same way.
type Response struct {
	// Body is the response body, limited to 1MB. Empty on 304.
	Body []byte

	// StatusCode is the HTTP status code. Zero if the request failed
	// before receiving a response.
	StatusCode int

	// NotModified is true when the provider answered 304, meaning the
	// resource is unchanged since the supplied validators.
	NotModified bool

	// ETag is the validator from the response, when the provider sent
	// one. May be set even on 304.
	ETag string

	// LastModified is the Last-Modified header from the response,
	// kept opaque.
	LastModified string

	// Latency is the total time taken for the request.
	Latency time.Duration

	// Error is non-nil when the fetch failed: network error, timeout,
	// or a non-success status.
	Error error
}

// Client is an HTTP client wrapper for conditional status-page polls.
//
// One Client is shared by all monitors so connections to providers are
// pooled. Timeouts are applied per request via context, not globally,
// because each provider configures its own deadline.
type Client struct {
	httpClient *http.Client
}

// NewClient creates a polling [Client] with pooled connections.
func NewClient() *Client {
	return &Client{
		httpClient: &http.Client{
			// no default timeout - per-request timeouts via context
			Transport: &http.Transport{
				MaxIdleConns:        defaultMaxIdleConns,
				MaxIdleConnsPerHost: defaultMaxIdleConnsPerHost,
				MaxConnsPerHost:     defaultMaxConnsPerHost,
				IdleConnTimeout:     defaultIdleConnTimeout,
				DisableKeepAlives:   false,
			},
		},
	}
}

// Fetch performs a conditional GET of url.
//
// When validators are present they are attached as If-None-Match /
// If-Modified-Since, so an unchanged resource costs a 304 and no body.
// A non-2xx, non-304 status is reported through Response.Error, which
// puts it on the same retry path as a network failure.
func (c *Client) Fetch(ctx context.Context, url string, v Validators, timeout time.Duration) Response {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Response{
			Latency: time.Since(start),
			Error:   fmt.Errorf("failed to create request: %w", err),
		}
	}
	req.Header.Set("Accept", "application/json")
	if v.ETag != "" {
		req.Header.Set("If-None-Match", v.ETag)
	}
	if v.LastModified != "" {
		req.Header.Set("If-Modified-Since", v.LastModified)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Response{
			Latency: time.Since(start),
			Error:   fmt.Errorf("request failed: %w", err),
		}
	}
	defer func() { _ = resp.Body.Close() }()

	out := Response{
		StatusCode:   resp.StatusCode,
		ETag:         resp.Header.Get("ETag"),
		LastModified: resp.Header.Get("Last-Modified"),
	}

	if resp.StatusCode == http.StatusNotModified {
		out.NotModified = true
		out.Latency = time.Since(start)
		return out
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		out.Latency = time.Since(start)
		out.Error = fmt.Errorf("unexpected status %d", resp.StatusCode)
		return out
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodySize))
	if err != nil {
		out.Latency = time.Since(start)
		out.Error = fmt.Errorf("failed to read response body: %w", err)
		return out
	}

	out.Body = body
	out.Latency = time.Since(start)
	return out
}

// Close closes all idle connections in the client's connection pool.
// Safe to call multiple times; the client remains usable afterwards.
func (c *Client) Close() {
	if c == nil || c.httpClient == nil {
		return
	}
	if transport, ok := c.httpClient.Transport.(*http.Transport); ok {
		transport.CloseIdleConnections()
	}
}
