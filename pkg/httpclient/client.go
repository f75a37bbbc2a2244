// Package httpclient provides the outbound HTTP clients used to reach
// the upstream marketplace, the RMS endpoints, and image hosts: a plain
// retrying client with pooled connections, and a circuit breaker wrapper
// that sheds load once an upstream stays down.
package httpclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"
)

// Config controls timeouts, retries, and connection pooling for one client.
type Config struct {
	Timeout         time.Duration
	MaxRetries      int
	RetryWaitMin    time.Duration
	RetryWaitMax    time.Duration
	MaxConnsPerHost int
}

// DefaultConfig suits ordinary JSON API traffic.
func DefaultConfig() Config {
	return Config{
		Timeout:         30 * time.Second,
		MaxRetries:      3,
		RetryWaitMin:    time.Second,
		RetryWaitMax:    5 * time.Second,
		MaxConnsPerHost: 100,
	}
}

// Client retries transient failures with capped exponential backoff.
// Consumed request bodies are replayed through GetBody, so requests
// built from a bytes.Reader retry safely; a streaming body stops the
// retry loop after the first send.
type Client struct {
	inner *http.Client
	cfg   Config
}

// New builds a client with its own pooled transport.
func New(cfg Config) *Client {
	return &Client{
		inner: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				Proxy: http.ProxyFromEnvironment,
				DialContext: (&net.Dialer{
					Timeout:   10 * time.Second,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				ForceAttemptHTTP2:     true,
				MaxIdleConns:          100,
				MaxIdleConnsPerHost:   cfg.MaxConnsPerHost,
				MaxConnsPerHost:       cfg.MaxConnsPerHost,
				IdleConnTimeout:       90 * time.Second,
				TLSHandshakeTimeout:   10 * time.Second,
				ExpectContinueTimeout: time.Second,
			},
		},
		cfg: cfg,
	}
}

// Do sends req, resending on network errors and retryable 5xx responses
// up to MaxRetries additional times. The returned body is the caller's
// to close.
func (c *Client) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	req = req.WithContext(ctx)

	var lastErr error
	for attempt := 1; ; attempt++ {
		resp, err := c.inner.Do(req)
		switch {
		case err != nil && attempt <= c.cfg.MaxRetries && retryableError(err):
			lastErr = err
		case err != nil:
			return nil, fmt.Errorf("http request failed after %d attempts: %w", attempt, err)
		case attempt <= c.cfg.MaxRetries && retryableStatus(resp.StatusCode):
			lastErr = fmt.Errorf("upstream returned status %d", resp.StatusCode)
			discard(resp.Body)
		default:
			return resp, nil
		}

		if err := c.waitBeforeRetry(ctx, attempt); err != nil {
			return nil, err
		}
		if err := rewindBody(req); err != nil {
			return nil, fmt.Errorf("%v; retry blocked: %w", lastErr, err)
		}
	}
}

// Get performs a GET with retries.
func (c *Client) Get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create GET request: %w", err)
	}
	return c.Do(ctx, req)
}

// Post performs a POST with retries.
func (c *Client) Post(ctx context.Context, url string, contentType string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return nil, fmt.Errorf("create POST request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	return c.Do(ctx, req)
}

// waitBeforeRetry sleeps RetryWaitMin doubled per failed attempt, capped
// at RetryWaitMax. Cancelling the context cuts the wait short.
func (c *Client) waitBeforeRetry(ctx context.Context, failed int) error {
	wait := c.cfg.RetryWaitMin << uint(failed-1)
	if wait > c.cfg.RetryWaitMax {
		wait = c.cfg.RetryWaitMax
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// rewindBody restores a consumed request body before a resend.
func rewindBody(req *http.Request) error {
	if req.Body == nil || req.Body == http.NoBody {
		return nil
	}
	if req.GetBody == nil {
		return errors.New("request body cannot be replayed")
	}
	body, err := req.GetBody()
	if err != nil {
		return fmt.Errorf("rewind request body: %w", err)
	}
	req.Body = body
	return nil
}

// discard drains a response that will not be read so the underlying
// connection can be reused.
func discard(body io.ReadCloser) {
	_, _ = io.Copy(io.Discard, io.LimitReader(body, 4<<10))
	_ = body.Close()
}

// retryableError reports whether a transport error is worth another
// attempt. Context cancellation is final even though the wrapping
// url.Error also satisfies net.Error.
func retryableError(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

// retryableStatus treats 5xx as transient except 501, which a server
// keeps returning no matter how often the request is repeated.
func retryableStatus(code int) bool {
	return code >= 500 && code != http.StatusNotImplemented
}
