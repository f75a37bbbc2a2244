package imaging

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/utafrali/RelistGo/internal/storage"

	apperrors "github.com/utafrali/RelistGo/pkg/errors"
	"github.com/utafrali/RelistGo/pkg/httpclient"
)

// maxSourceImageBytes caps how much of a source image is read.
const maxSourceImageBytes = 20 << 20

var imagesProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "relist_images_processed_total",
	Help: "Images run through the pipeline by outcome",
}, []string{"outcome"})

// Result is the outcome of one source image: where it came from, where
// it ended up, and the marketplace-facing location.
type Result struct {
	OriginalURL  string `json:"original_url"`
	ProcessedURL string `json:"processed_url,omitempty"`
	RelativePath string `json:"relative_path"`
	Transformed  bool   `json:"transformed"`
}

// Pipeline fetches source images, runs the content-aware transform and
// uploads the outcome to the object store. A nil transformer skips the
// transform step entirely.
type Pipeline struct {
	fetch       *httpclient.Client
	transformer Transformer
	store       storage.Storage
	quota       *QuotaFlag
	logger      *slog.Logger
}

// NewPipeline creates an image pipeline. fetchTimeout bounds a single
// source download (default 15s); each download retries twice with a 3s
// exponential backoff.
func NewPipeline(store storage.Storage, transformer Transformer, quota *QuotaFlag, fetchTimeout time.Duration, logger *slog.Logger) *Pipeline {
	if fetchTimeout <= 0 {
		fetchTimeout = 15 * time.Second
	}
	if quota == nil {
		quota = NewQuotaFlag()
	}
	return &Pipeline{
		fetch: httpclient.New(httpclient.Config{
			Timeout:         fetchTimeout,
			MaxRetries:      2,
			RetryWaitMin:    3 * time.Second,
			RetryWaitMax:    12 * time.Second,
			MaxConnsPerHost: 16,
		}),
		transformer: transformer,
		store:       store,
		quota:       quota,
		logger:      logger,
	}
}

// Quota exposes the shared quota flag.
func (p *Pipeline) Quota() *QuotaFlag {
	return p.quota
}

// Process runs every source URL through fetch → transform → upload and
// returns one Result per stored image. A failed transform keeps the
// original bytes; a failed fetch or upload drops that URL with a log
// line. An error is returned only when sources were given and none
// survived.
func (p *Pipeline) Process(ctx context.Context, urls []string, code string) ([]Result, error) {
	if len(urls) == 0 {
		return nil, nil
	}

	results := make([]Result, 0, len(urls))
	var firstErr error

	for i, src := range urls {
		if err := ctx.Err(); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			break
		}

		res, err := p.processOne(ctx, src, code, i+1)
		if err != nil {
			imagesProcessed.WithLabelValues("failed").Inc()
			if errors.Is(err, apperrors.ErrQuotaExceeded) {
				p.quota.Set(true)
			}
			p.logger.WarnContext(ctx, "image pipeline dropped source",
				slog.String("url", src),
				slog.String("code", code),
				slog.Any("error", err),
			)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		results = append(results, *res)
	}

	if len(results) == 0 && firstErr != nil {
		return nil, fmt.Errorf("image pipeline produced nothing from %d sources: %w", len(urls), firstErr)
	}
	return results, nil
}

func (p *Pipeline) processOne(ctx context.Context, src, code string, n int) (*Result, error) {
	img, contentType, err := p.download(ctx, src)
	if err != nil {
		return nil, err
	}

	transformed := false
	if p.transformer != nil {
		out, err := p.transformer.Transform(ctx, img, contentType)
		switch {
		case err != nil:
			if errors.Is(err, apperrors.ErrQuotaExceeded) {
				p.quota.Set(true)
			}
			// Keep the original; an unprocessed image beats a missing one.
			p.logger.WarnContext(ctx, "image transform failed, keeping original",
				slog.String("url", src),
				slog.Any("error", err),
			)
		case len(out) > 0:
			img = out
			transformed = true
		}
	}

	key := fmt.Sprintf("%s%s/%s_%d%s", storagePrefix, code, code, n, extensionFor(contentType, src))
	up, err := p.store.Upload(ctx, &storage.UploadInput{
		Key:         key,
		ContentType: contentType,
		Size:        int64(len(img)),
		Data:        bytes.NewReader(img),
	})
	if err != nil {
		if errors.Is(err, apperrors.ErrQuotaExceeded) {
			p.quota.Set(true)
		}
		return nil, fmt.Errorf("upload %s: %w", key, err)
	}

	if transformed {
		imagesProcessed.WithLabelValues("transformed").Inc()
	} else {
		imagesProcessed.WithLabelValues("original").Inc()
	}

	return &Result{
		OriginalURL:  src,
		ProcessedURL: up.URL,
		RelativePath: RelativeLocation(up.URL),
		Transformed:  transformed,
	}, nil
}

// download fetches one source image, following the retry policy of the
// underlying client.
func (p *Pipeline) download(ctx context.Context, src string) ([]byte, string, error) {
	resp, err := p.fetch.Get(ctx, src)
	if err != nil {
		return nil, "", apperrors.Transient("image fetch failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, "", apperrors.QuotaExceeded("image source")
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<10))
		return nil, "", apperrors.Upstream("image source", resp.StatusCode, string(body))
	}

	img, err := io.ReadAll(io.LimitReader(resp.Body, maxSourceImageBytes))
	if err != nil {
		return nil, "", apperrors.Transient("image body read failed", err)
	}
	if len(img) == 0 {
		return nil, "", apperrors.Upstream("image source", resp.StatusCode, "empty image body")
	}

	contentType := resp.Header.Get("Content-Type")
	if i := strings.IndexByte(contentType, ';'); i >= 0 {
		contentType = contentType[:i]
	}
	contentType = strings.TrimSpace(contentType)
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = http.DetectContentType(img)
	}
	return img, contentType, nil
}

// extensionFor picks the stored file extension from the content type,
// falling back to the source URL and finally to .jpg.
func extensionFor(contentType, src string) string {
	switch contentType {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/bmp":
		return ".bmp"
	case "image/tiff":
		return ".tiff"
	}
	if u, err := url.Parse(src); err == nil {
		switch ext := strings.ToLower(path.Ext(u.Path)); ext {
		case ".jpg", ".jpeg", ".png", ".gif", ".bmp", ".tiff", ".tif":
			return ext
		}
	}
	return ".jpg"
}
