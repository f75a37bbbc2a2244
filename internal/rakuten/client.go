package rakuten

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/utafrali/RelistGo/pkg/httpclient"

	apperrors "github.com/utafrali/RelistGo/pkg/errors"
)

const (
	// DefaultBaseURL is the production RMS endpoint.
	DefaultBaseURL = "https://api.rms.rakuten.co.jp"

	rmsService = "rakuten rms"

	maxErrorBodyBytes = 4 << 20
)

// Config holds RMS credentials and endpoint settings.
type Config struct {
	BaseURL       string
	ServiceSecret string
	LicenseKey    string
	// Timeout applies to the JSON item/inventory endpoints.
	Timeout time.Duration
	// CabinetTimeout applies to cabinet uploads, which move file bytes.
	CabinetTimeout time.Duration
}

// Client is a thin typed wrapper over the RMS endpoints. Methods return
// a tagged *Result and never panic across the boundary; persistent
// failures trip a shared circuit breaker.
//
// Registration endpoints are not idempotent, so the underlying
// transport never retries; a failed attempt is surfaced to the caller.
type Client struct {
	cfg     Config
	http    *httpclient.Client
	cabinet *httpclient.Client
	breaker *gobreaker.CircuitBreaker[*http.Response]
	auth    string
	logger  *slog.Logger
}

// NewClient builds an RMS client from credentials.
func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.CabinetTimeout <= 0 {
		cfg.CabinetTimeout = 60 * time.Second
	}

	settings := gobreaker.Settings{
		Name:        "rakuten",
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 5 {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= 0.5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change",
				slog.String("breaker", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
		},
	}

	return &Client{
		cfg: cfg,
		http: httpclient.New(httpclient.Config{
			Timeout:         cfg.Timeout,
			MaxRetries:      0,
			MaxConnsPerHost: 20,
		}),
		cabinet: httpclient.New(httpclient.Config{
			Timeout:         cfg.CabinetTimeout,
			MaxRetries:      0,
			MaxConnsPerHost: 4,
		}),
		breaker: gobreaker.NewCircuitBreaker[*http.Response](settings),
		auth:    "ESA " + base64.StdEncoding.EncodeToString([]byte(cfg.ServiceSecret+":"+cfg.LicenseKey)),
		logger:  logger,
	}
}

// Result is the tagged outcome of one RMS call.
type Result struct {
	Success    bool
	Data       map[string]any
	StatusCode int
	ErrorData  map[string]any
	ErrorText  string
	Headers    http.Header
	URL        string

	// Err classifies the failure for errors.Is checks (quota,
	// not-found, transient). Nil on success.
	Err error

	raw []byte
}

// FormatErrorMessage renders the failure for operators: the HTTP status
// followed by every code/message pair of the RMS error envelope, or the
// raw error text when the body was not structured.
func (r *Result) FormatErrorMessage() string {
	if r == nil || r.Success {
		return ""
	}
	var parts []string
	if r.StatusCode > 0 {
		parts = append(parts, fmt.Sprintf("status %d", r.StatusCode))
	}
	appended := false
	if errs, ok := r.ErrorData["errors"].([]any); ok {
		for _, entry := range errs {
			m, ok := entry.(map[string]any)
			if !ok {
				continue
			}
			code, _ := m["code"].(string)
			msg, _ := m["message"].(string)
			switch {
			case code != "" && msg != "":
				parts = append(parts, code+": "+msg)
				appended = true
			case msg != "":
				parts = append(parts, msg)
				appended = true
			case code != "":
				parts = append(parts, code)
				appended = true
			}
		}
	}
	if !appended {
		switch {
		case r.ErrorText != "":
			parts = append(parts, r.ErrorText)
		case r.Err != nil:
			parts = append(parts, r.Err.Error())
		}
	}
	if len(parts) == 0 {
		return "rakuten call failed"
	}
	return strings.Join(parts, "; ")
}

// send runs a request through the breaker. Server-side 5xx responses
// count as breaker failures but the response is still handed back so
// the caller keeps status and body.
func (c *Client) send(ctx context.Context, hc *httpclient.Client, req *http.Request) (*http.Response, error) {
	return c.breaker.Execute(func() (*http.Response, error) {
		resp, err := hc.Do(ctx, req)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode >= 500 {
			return resp, fmt.Errorf("rakuten server error %d", resp.StatusCode)
		}
		return resp, nil
	})
}

// do issues one request and folds the outcome into a Result. expect
// lists the status codes treated as success.
func (c *Client) do(ctx context.Context, hc *httpclient.Client, method, path, contentType string, body []byte, expect ...int) *Result {
	url := c.cfg.BaseURL + path
	result := &Result{URL: url}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		result.Err = apperrors.Internal(err)
		result.ErrorText = err.Error()
		return result
	}
	req.Header.Set("Authorization", c.auth)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.send(ctx, hc, req)
	if resp == nil {
		if errors.Is(err, gobreaker.ErrOpenState) {
			result.Err = apperrors.Transient("rakuten circuit open", err)
		} else {
			result.Err = apperrors.Transient("rakuten request failed", err)
		}
		result.ErrorText = err.Error()
		return result
	}
	defer resp.Body.Close()

	raw, readErr := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
	if readErr != nil {
		result.Err = apperrors.Transient("read rakuten response", readErr)
		result.ErrorText = readErr.Error()
		return result
	}

	result.StatusCode = resp.StatusCode
	result.Headers = resp.Header
	result.raw = raw
	for _, code := range expect {
		if resp.StatusCode == code {
			result.Success = true
			break
		}
	}

	if len(raw) > 0 {
		var parsed map[string]any
		if json.Unmarshal(raw, &parsed) == nil {
			if result.Success {
				result.Data = parsed
			} else {
				result.ErrorData = parsed
			}
		} else if !result.Success {
			result.ErrorText = truncate(string(raw), 500)
		}
	}

	if !result.Success {
		result.Err = classifyStatus(result.StatusCode, result.ErrorText)
	}
	return result
}

func (c *Client) doJSON(ctx context.Context, method, path string, payload any, expect ...int) *Result {
	var body []byte
	if payload != nil {
		var err error
		body, err = json.Marshal(payload)
		if err != nil {
			return &Result{
				URL:       c.cfg.BaseURL + path,
				Err:       apperrors.Internal(err),
				ErrorText: err.Error(),
			}
		}
	}
	return c.do(ctx, c.http, method, path, "application/json; charset=utf-8", body, expect...)
}

func classifyStatus(status int, text string) error {
	switch {
	case status == http.StatusTooManyRequests:
		return apperrors.QuotaExceeded(rmsService)
	case status == http.StatusNotFound:
		return fmt.Errorf("%s: %w", rmsService, apperrors.ErrNotFound)
	default:
		return apperrors.Upstream(rmsService, status, text)
	}
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
