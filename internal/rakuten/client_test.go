package rakuten

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/RelistGo/internal/domain"

	apperrors "github.com/utafrali/RelistGo/pkg/errors"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestClient(baseURL string) *Client {
	return NewClient(Config{
		BaseURL:       baseURL,
		ServiceSecret: "secret",
		LicenseKey:    "license",
		Timeout:       5 * time.Second,
	}, newTestLogger())
}

func sampleCanonical() *domain.CanonicalProduct {
	return &domain.CanonicalProduct{
		ItemNumber: "item-712498123",
		Title:      "ロングワンピース レディース",
		Tagline:    "新作",
		GenreID:    "201198",
		ItemType:   domain.ItemTypeNormal,
		HideItem:   true,
		Images: []domain.Image{
			{Type: domain.ImageTypeCabinet, Location: "/img01306503/01306503_1.jpg", Alt: "ロングワンピース"},
		},
		VariantSelectors: []domain.VariantSelector{
			{Key: "color", DisplayName: "カラー", Values: []domain.SelectorValue{{DisplayValue: "ブラック"}}},
		},
		Variants: map[string]domain.Variant{
			"1": {SelectorValues: map[string]string{"color": "ブラック"}, StandardPrice: "990"},
			"2": {SelectorValues: map[string]string{"color": "ホワイト"}, StandardPrice: "abc"},
		},
	}
}

func TestProductUpsert_SendsESAAuthAndPayload(t *testing.T) {
	wantAuth := "ESA " + base64.StdEncoding.EncodeToString([]byte("secret:license"))

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/es/2.0/items/manage-numbers/item-712498123", r.URL.Path)
		assert.Equal(t, wantAuth, r.Header.Get("Authorization"))
		assert.Contains(t, r.Header.Get("Content-Type"), "application/json")

		var payload ItemPayload
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &payload))
		assert.Equal(t, "ロングワンピース レディース", payload.Title)
		assert.True(t, payload.HideItem)
		assert.Len(t, payload.Variants, 2)

		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	result := client.ProductUpsert(context.Background(), "item-712498123", BuildItemPayload(sampleCanonical()))

	assert.True(t, result.Success)
	assert.NoError(t, result.Err)
	assert.Equal(t, http.StatusNoContent, result.StatusCode)
}

func TestProductUpsert_ParsesErrorEnvelope(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"errors":[{"code":"ITEM-0013","message":"invalid title"},{"code":"ITEM-0020","message":"bad genre"}]}`))
	}))
	defer server.Close()

	result := newTestClient(server.URL).ProductUpsert(context.Background(), "item-1", BuildItemPayload(sampleCanonical()))

	assert.False(t, result.Success)
	assert.Equal(t, http.StatusBadRequest, result.StatusCode)
	assert.Equal(t, "status 400; ITEM-0013: invalid title; ITEM-0020: bad genre", result.FormatErrorMessage())
	assert.True(t, errors.Is(result.Err, apperrors.ErrUpstream))
}

func TestProductPricePatch_CoercesPricesToIntegers(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPatch, r.Method)

		var patch struct {
			Variants map[string]struct {
				StandardPrice int `json:"standardPrice"`
			} `json:"variants"`
		}
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &patch))
		require.Len(t, patch.Variants, 1)
		assert.Equal(t, 990, patch.Variants["1"].StandardPrice)

		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	patch := BuildPricePatch(sampleCanonical())
	require.Len(t, patch.Variants, 1, "unparseable prices are skipped")

	result := newTestClient(server.URL).ProductPricePatch(context.Background(), "item-1", patch)
	assert.True(t, result.Success)
}

func TestProductGet_NotFoundIsTagged(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	result := newTestClient(server.URL).ProductGet(context.Background(), "gone-1")

	assert.False(t, result.Success)
	assert.Equal(t, http.StatusNotFound, result.StatusCode)
	assert.True(t, errors.Is(result.Err, apperrors.ErrNotFound))
}

func TestProductGet_QuotaIsTagged(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "60")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	result := newTestClient(server.URL).ProductGet(context.Background(), "item-1")

	assert.False(t, result.Success)
	assert.True(t, errors.Is(result.Err, apperrors.ErrQuotaExceeded))
	assert.Equal(t, "60", result.Headers.Get("Retry-After"))
}

func TestProductGet_ParsesBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"manageNumber":"item-1","hideItem":false}`))
	}))
	defer server.Close()

	result := newTestClient(server.URL).ProductGet(context.Background(), "item-1")

	require.True(t, result.Success)
	assert.Equal(t, false, result.Data["hideItem"])
}

func TestCategoryMap_DedupesAndCaps(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/es/2.0/categories/item-mappings/manage-numbers/item-1", r.URL.Path)

		var req struct {
			CategoryIDs []int `json:"categoryIds"`
		}
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &req))
		assert.Equal(t, []int{100, 200, 300, 400, 500}, req.CategoryIDs)

		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	ids := []string{"100", "200", "100", "not-a-number", "300", "400", "500", "600"}
	result := newTestClient(server.URL).CategoryMap(context.Background(), "item-1", ids, nil)
	assert.True(t, result.Success)
}

func TestCategoryMap_NoUsableIDs(t *testing.T) {
	result := newTestClient("http://unused").CategoryMap(context.Background(), "item-1", []string{"", "x"}, nil)

	assert.False(t, result.Success)
	assert.True(t, errors.Is(result.Err, apperrors.ErrInvalidInput))
}

func TestInventoryUpsert_PutsVariantStock(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/es/2.1/inventories/manage-numbers/item-1/variants/1", r.URL.Path)

		var req InventoryUpsertRequest
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &req))
		assert.Equal(t, domain.InventoryModeAbsolute, req.Mode)
		assert.Equal(t, 100, req.Quantity)
		require.NotNil(t, req.OperationLeadTime)
		assert.Equal(t, domain.NormalDeliveryTimeID, req.OperationLeadTime.NormalDeliveryTimeID)

		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	result := newTestClient(server.URL).InventoryUpsert(context.Background(), "item-1", "1", &InventoryUpsertRequest{
		Mode:              domain.InventoryModeAbsolute,
		Quantity:          100,
		OperationLeadTime: &domain.OperationLeadTime{NormalDeliveryTimeID: domain.NormalDeliveryTimeID},
	})
	assert.True(t, result.Success)
}

func TestProductDelete_TransportErrorIsTransient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // connection refused from here on

	result := newTestClient(server.URL).ProductDelete(context.Background(), "item-1")

	assert.False(t, result.Success)
	assert.Zero(t, result.StatusCode)
	assert.True(t, errors.Is(result.Err, apperrors.ErrTransient))
	assert.NotEmpty(t, result.FormatErrorMessage())
}
