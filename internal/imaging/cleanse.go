package imaging

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	apperrors "github.com/utafrali/RelistGo/pkg/errors"
	"github.com/utafrali/RelistGo/pkg/httpclient"
)

// maxTransformedBytes caps how much of a transform response is read.
const maxTransformedBytes = 32 << 20

// Transformer rewrites image bytes, erasing embedded text and logos
// before the image goes to the marketplace.
type Transformer interface {
	Transform(ctx context.Context, img []byte, contentType string) ([]byte, error)
}

// HTTPTransformer implements Transformer against an inpainting service
// that accepts raw image bytes and answers with the cleaned image.
type HTTPTransformer struct {
	endpoint string
	http     *httpclient.Client
	logger   *slog.Logger
}

// NewHTTPTransformer creates a transformer for the given endpoint.
func NewHTTPTransformer(endpoint string, timeout time.Duration, logger *slog.Logger) *HTTPTransformer {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPTransformer{
		endpoint: endpoint,
		// The transform is idempotent, so transport-level retries are
		// safe here, unlike registration calls.
		http: httpclient.New(httpclient.Config{
			Timeout:         timeout,
			MaxRetries:      1,
			RetryWaitMin:    2 * time.Second,
			RetryWaitMax:    10 * time.Second,
			MaxConnsPerHost: 8,
		}),
		logger: logger,
	}
}

// Transform implements Transformer.
func (t *HTTPTransformer) Transform(ctx context.Context, img []byte, contentType string) ([]byte, error) {
	if contentType == "" {
		contentType = http.DetectContentType(img)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, bytes.NewReader(img))
	if err != nil {
		return nil, fmt.Errorf("create transform request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "image/*")

	resp, err := t.http.Do(ctx, req)
	if err != nil {
		return nil, apperrors.Transient("image transform request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, apperrors.QuotaExceeded("image transform")
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return nil, apperrors.Upstream("image transform", resp.StatusCode, string(body))
	}

	out, err := io.ReadAll(io.LimitReader(resp.Body, maxTransformedBytes))
	if err != nil {
		return nil, fmt.Errorf("read transformed image: %w", err)
	}
	if len(out) == 0 {
		return nil, apperrors.Upstream("image transform", resp.StatusCode, "empty response body")
	}
	return out, nil
}
