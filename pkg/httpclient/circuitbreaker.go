package httpclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sony/gobreaker/v2"
)

// CircuitBreakerConfig tunes when a breaker trips and how it recovers.
type CircuitBreakerConfig struct {
	// Name labels the breaker in logs and metrics.
	Name string

	// MaxRequests bounds the probes let through while half-open; zero
	// means a single probe.
	MaxRequests uint32

	// Interval resets the closed-state counters; zero keeps them for
	// the life of the breaker.
	Interval time.Duration

	// Timeout is how long the breaker stays open before probing again.
	Timeout time.Duration

	// FailureRatio trips the breaker once failures/requests reaches it.
	FailureRatio float64

	// MinRequests is how many requests must be observed before the
	// ratio is consulted.
	MinRequests uint32
}

// DefaultCircuitBreakerConfig trips at a 50% failure ratio over at least
// five requests and probes again after 30 seconds.
func DefaultCircuitBreakerConfig(name string) CircuitBreakerConfig {
	return CircuitBreakerConfig{
		Name:         name,
		MaxRequests:  1,
		Interval:     time.Minute,
		Timeout:      30 * time.Second,
		FailureRatio: 0.5,
		MinRequests:  5,
	}
}

var (
	breakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Current state of the circuit breaker (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	breakerFallbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_fallback_invoked_total",
			Help: "Total number of times the circuit breaker fallback was invoked",
		},
		[]string{"name"},
	)
)

func stateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	}
	return -1
}

// ErrCircuitOpen is returned while the breaker rejects traffic.
var ErrCircuitOpen = gobreaker.ErrOpenState

// FallbackFunc substitutes a response while the breaker is open. It
// receives the rejection error and may return a cached or synthetic
// response instead.
type FallbackFunc func(ctx context.Context, err error) (*http.Response, error)

// CircuitBreakerClient guards a Client with a failure-ratio breaker.
// A 5xx response counts as a failure even though the transport reports
// no error for it.
type CircuitBreakerClient struct {
	client   *Client
	breaker  *gobreaker.CircuitBreaker[*http.Response]
	logger   *slog.Logger
	fallback FallbackFunc
	name     string
}

// NewCircuitBreakerClient wraps client with a breaker built from cfg.
func NewCircuitBreakerClient(client *Client, cfg CircuitBreakerConfig, logger *slog.Logger) *CircuitBreakerClient {
	breakerState.WithLabelValues(cfg.Name).Set(stateValue(gobreaker.StateClosed))
	return &CircuitBreakerClient{
		client:  client,
		breaker: gobreaker.NewCircuitBreaker[*http.Response](newBreakerSettings(cfg, logger)),
		logger:  logger,
		name:    cfg.Name,
	}
}

func newBreakerSettings(cfg CircuitBreakerConfig, logger *slog.Logger) gobreaker.Settings {
	return gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= cfg.FailureRatio
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change",
				slog.String("breaker", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
			breakerState.WithLabelValues(name).Set(stateValue(to))
		},
	}
}

// WithFallback returns a copy that serves fn instead of ErrCircuitOpen
// while the breaker is open.
func (c *CircuitBreakerClient) WithFallback(fn FallbackFunc) *CircuitBreakerClient {
	cpy := *c
	cpy.fallback = fn
	return &cpy
}

// Do sends the request through the breaker.
func (c *CircuitBreakerClient) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	resp, err := c.breaker.Execute(func() (*http.Response, error) {
		return c.roundTrip(ctx, req)
	})
	if err == nil {
		return resp, nil
	}
	if c.fallback != nil && errors.Is(err, ErrCircuitOpen) {
		breakerFallbacks.WithLabelValues(c.name).Inc()
		c.logger.WarnContext(ctx, "circuit breaker open, invoking fallback",
			slog.String("breaker", c.name),
		)
		return c.fallback(ctx, err)
	}
	return nil, err
}

// roundTrip converts 5xx responses into errors so the breaker counts
// them as failures.
func (c *CircuitBreakerClient) roundTrip(ctx context.Context, req *http.Request) (*http.Response, error) {
	resp, err := c.client.Do(ctx, req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 500 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2<<10))
		_ = resp.Body.Close()
		return nil, fmt.Errorf("server error %d: %s", resp.StatusCode, body)
	}
	return resp, nil
}

// Get performs a GET through the breaker.
func (c *CircuitBreakerClient) Get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create GET request: %w", err)
	}
	return c.Do(ctx, req)
}

// Post performs a POST through the breaker.
func (c *CircuitBreakerClient) Post(ctx context.Context, url string, contentType string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return nil, fmt.Errorf("create POST request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	return c.Do(ctx, req)
}

// State exposes the breaker state for health reporting and tests.
func (c *CircuitBreakerClient) State() gobreaker.State {
	return c.breaker.State()
}
