package harvester

import (
	"context"
	"time"

	"github.com/utafrali/RelistGo/internal/domain"
)

// Client fetches raw product data from the upstream marketplace API.
// Implementations must be safe for concurrent use.
type Client interface {
	// SearchByKeyword returns one page of listings matching the keyword.
	SearchByKeyword(ctx context.Context, keyword string, page, pageSize int) (*SearchResult, error)

	// SearchByCategory returns one page of listings from the given
	// upstream category ids.
	SearchByCategory(ctx context.Context, categoryIDs []string, page, pageSize int) (*SearchResult, error)

	// GetProductDetail returns the full detail payload of a single
	// product as an untyped JSON tree. Callers run the payload through
	// FilterDetailJSON before persisting it.
	GetProductDetail(ctx context.Context, productID string) (map[string]any, error)

	// SearchByImage returns one page of listings visually similar to the
	// base64-encoded image.
	SearchByImage(ctx context.Context, imageBase64 string, page, pageSize int) (*SearchResult, error)
}

// Config holds the credentials and endpoint of the upstream API.
type Config struct {
	BaseURL   string
	AppKey    string
	AppSecret string
	Timeout   time.Duration
}

// SearchItem is one listing as returned by the upstream search endpoints.
// Numeric fields arrive quoted or bare depending on the endpoint, so they
// are kept as NumberString.
type SearchItem struct {
	GoodsID        domain.NumberString `json:"goodsId"`
	TitleC         string              `json:"titleC"`
	TitleT         string              `json:"titleT"`
	ImgURL         string              `json:"imgUrl"`
	GoodsPrice     domain.NumberString `json:"goodsPrice"`
	MonthSold      domain.NumberString `json:"monthSold"`
	RepurchaseRate domain.NumberString `json:"repurchaseRate"`
	ShopName       string              `json:"shopName"`
}

// SearchResult is one page of upstream search results.
type SearchResult struct {
	Items    []SearchItem `json:"items"`
	Total    int          `json:"total"`
	Page     int          `json:"page"`
	PageSize int          `json:"page_size"`
}
