package harvester

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/utafrali/RelistGo/pkg/httpclient"

	apperrors "github.com/utafrali/RelistGo/pkg/errors"
)

const (
	endpointKeywordSearch  = "/open/goods/keywordSearch"
	endpointCategorySearch = "/open/goods/categorySearch"
	endpointGoodsDetail    = "/open/goods/detail"
	endpointImageSearch    = "/open/goods/imageSearch"

	// Responses larger than this are cut off before JSON decoding.
	maxResponseBytes = 16 << 20

	upstreamService = "upstream product api"
)

// HTTPClient implements Client against the upstream HTTP API. Every call
// is a signed multipart POST; the breaker opens when the upstream starts
// failing consistently.
type HTTPClient struct {
	cfg    Config
	http   *httpclient.CircuitBreakerClient
	logger *slog.Logger
}

// NewHTTPClient builds the upstream client. Multipart bodies cannot be
// replayed, so the underlying transport does not retry; persistent
// failures are handled by the circuit breaker instead.
func NewHTTPClient(cfg Config, logger *slog.Logger) *HTTPClient {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	base := httpclient.New(httpclient.Config{
		Timeout:         cfg.Timeout,
		MaxRetries:      0,
		RetryWaitMin:    time.Second,
		RetryWaitMax:    5 * time.Second,
		MaxConnsPerHost: 20,
	})
	return &HTTPClient{
		cfg:    cfg,
		http:   httpclient.NewCircuitBreakerClient(base, httpclient.DefaultCircuitBreakerConfig("harvester"), logger),
		logger: logger,
	}
}

// SearchByKeyword implements Client.
func (c *HTTPClient) SearchByKeyword(ctx context.Context, keyword string, page, pageSize int) (*SearchResult, error) {
	if strings.TrimSpace(keyword) == "" {
		return nil, apperrors.InvalidInput("keyword is required")
	}
	payload, err := c.invoke(ctx, endpointKeywordSearch, map[string]string{
		"keyword":  keyword,
		"page":     strconv.Itoa(page),
		"pageSize": strconv.Itoa(pageSize),
	})
	if err != nil {
		return nil, err
	}
	return decodeSearchResult(payload, page, pageSize)
}

// SearchByCategory implements Client.
func (c *HTTPClient) SearchByCategory(ctx context.Context, categoryIDs []string, page, pageSize int) (*SearchResult, error) {
	if len(categoryIDs) == 0 {
		return nil, apperrors.InvalidInput("at least one category id is required")
	}
	payload, err := c.invoke(ctx, endpointCategorySearch, map[string]string{
		"categoryIds": strings.Join(categoryIDs, ","),
		"page":        strconv.Itoa(page),
		"pageSize":    strconv.Itoa(pageSize),
	})
	if err != nil {
		return nil, err
	}
	return decodeSearchResult(payload, page, pageSize)
}

// GetProductDetail implements Client.
func (c *HTTPClient) GetProductDetail(ctx context.Context, productID string) (map[string]any, error) {
	if strings.TrimSpace(productID) == "" {
		return nil, apperrors.InvalidInput("product id is required")
	}
	payload, err := c.invoke(ctx, endpointGoodsDetail, map[string]string{
		"goodsId": productID,
	})
	if err != nil {
		return nil, err
	}
	detail, ok := payload.(map[string]any)
	if !ok {
		// Some deployments wrap the detail object in a one-element list.
		if list, isList := payload.([]any); isList && len(list) > 0 {
			detail, ok = list[0].(map[string]any)
		}
	}
	if !ok {
		return nil, apperrors.Upstream(upstreamService, http.StatusOK, "detail payload is not an object")
	}
	return detail, nil
}

// SearchByImage implements Client.
func (c *HTTPClient) SearchByImage(ctx context.Context, imageBase64 string, page, pageSize int) (*SearchResult, error) {
	if imageBase64 == "" {
		return nil, apperrors.InvalidInput("image data is required")
	}
	payload, err := c.invoke(ctx, endpointImageSearch, map[string]string{
		"picBase64": imageBase64,
		"page":      strconv.Itoa(page),
		"pageSize":  strconv.Itoa(pageSize),
	})
	if err != nil {
		return nil, err
	}
	return decodeSearchResult(payload, page, pageSize)
}

// invoke signs the form fields, POSTs them as multipart and returns the
// data node of a successful envelope.
func (c *HTTPClient) invoke(ctx context.Context, endpoint string, fields map[string]string) (any, error) {
	body, contentType, err := c.signedForm(fields)
	if err != nil {
		return nil, fmt.Errorf("build form: %w", err)
	}

	resp, err := c.http.Post(ctx, c.cfg.BaseURL+endpoint, contentType, body)
	if err != nil {
		if errors.Is(err, httpclient.ErrCircuitOpen) {
			return nil, apperrors.Transient("upstream circuit open", err)
		}
		return nil, apperrors.Transient("upstream request failed", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, apperrors.Transient("read upstream response", err)
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, apperrors.QuotaExceeded(upstreamService)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, apperrors.Upstream(upstreamService, resp.StatusCode, string(raw))
	}

	var envelope map[string]any
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, apperrors.Upstream(upstreamService, resp.StatusCode, "invalid JSON response")
	}
	if !envelopeSuccess(envelope) {
		c.logger.WarnContext(ctx, "upstream call rejected",
			slog.String("endpoint", endpoint),
			slog.String("message", envelopeMessage(envelope)),
		)
		return nil, apperrors.Upstream(upstreamService, resp.StatusCode, envelopeMessage(envelope))
	}

	payload, ok := extractPayload(envelope)
	if !ok {
		return nil, apperrors.Upstream(upstreamService, resp.StatusCode, "unrecognized response shape")
	}
	return payload, nil
}

// signedForm writes the fields plus the signature triplet into a
// multipart body. The signature is md5 over app key, secret and the
// current unix timestamp, matching what the upstream verifies.
func (c *HTTPClient) signedForm(fields map[string]string) (io.Reader, string, error) {
	timestamp := strconv.FormatInt(time.Now().Unix(), 10)
	sum := md5.Sum([]byte(c.cfg.AppKey + c.cfg.AppSecret + timestamp))

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	values := map[string]string{
		"app_key":   c.cfg.AppKey,
		"timestamp": timestamp,
		"sign":      fmt.Sprintf("%x", sum),
	}
	for k, v := range fields {
		values[k] = v
	}
	for k, v := range values {
		if err := w.WriteField(k, v); err != nil {
			return nil, "", err
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}

// envelopeSuccess accepts a bool true or the string "true"; the upstream
// is not consistent about which one it sends.
func envelopeSuccess(envelope map[string]any) bool {
	switch v := envelope["success"].(type) {
	case bool:
		return v
	case string:
		return strings.EqualFold(v, "true")
	}
	return false
}

func envelopeMessage(envelope map[string]any) string {
	for _, key := range []string{"msg", "message", "error"} {
		if s, ok := envelope[key].(string); ok && s != "" {
			return s
		}
	}
	return "upstream reported failure"
}

// extractPayload locates the data node. The upstream has shipped four
// envelope layouts over time; they are probed in order of recency:
// result.result.data, result.data, data.data, then data.
func extractPayload(envelope map[string]any) (any, bool) {
	if result, ok := envelope["result"].(map[string]any); ok {
		if inner, ok := result["result"].(map[string]any); ok {
			if data, ok := inner["data"]; ok && data != nil {
				return data, true
			}
		}
		if data, ok := result["data"]; ok && data != nil {
			return data, true
		}
	}
	if data, ok := envelope["data"].(map[string]any); ok {
		if inner, ok := data["data"]; ok && inner != nil {
			return inner, true
		}
	}
	if data, ok := envelope["data"]; ok && data != nil {
		return data, true
	}
	return nil, false
}

// decodeSearchResult accepts either a bare list of items or an object
// with a list and a total count.
func decodeSearchResult(payload any, page, pageSize int) (*SearchResult, error) {
	result := &SearchResult{Page: page, PageSize: pageSize}

	var rawItems []any
	switch v := payload.(type) {
	case []any:
		rawItems = v
		result.Total = len(v)
	case map[string]any:
		for _, key := range []string{"list", "rows", "goodsList"} {
			if list, ok := v[key].([]any); ok {
				rawItems = list
				break
			}
		}
		if rawItems == nil {
			return nil, apperrors.Upstream(upstreamService, http.StatusOK, "search payload has no item list")
		}
		result.Total = payloadTotal(v, len(rawItems))
	default:
		return nil, apperrors.Upstream(upstreamService, http.StatusOK, "search payload is neither list nor object")
	}

	items, err := decodeItems(rawItems)
	if err != nil {
		return nil, apperrors.Upstream(upstreamService, http.StatusOK, err.Error())
	}
	result.Items = items
	return result, nil
}

func payloadTotal(payload map[string]any, fallback int) int {
	for _, key := range []string{"total", "totalCount"} {
		switch v := payload[key].(type) {
		case float64:
			return int(v)
		case string:
			if n, err := strconv.Atoi(v); err == nil {
				return n
			}
		}
	}
	return fallback
}

func decodeItems(raw []any) ([]SearchItem, error) {
	b, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("marshal search items: %w", err)
	}
	var items []SearchItem
	if err := json.Unmarshal(b, &items); err != nil {
		return nil, fmt.Errorf("decode search items: %w", err)
	}
	return items, nil
}
