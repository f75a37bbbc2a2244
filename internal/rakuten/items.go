package rakuten

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/utafrali/RelistGo/internal/domain"

	apperrors "github.com/utafrali/RelistGo/pkg/errors"
)

const maxItemCategories = 5

// ItemPayload is the items 2.0 PUT body. The nested blocks reuse the
// domain types, whose JSON tags already match the RMS field names.
type ItemPayload struct {
	Title                  string                     `json:"title"`
	Tagline                string                     `json:"tagline,omitempty"`
	ProductDescription     *domain.ProductDescription `json:"productDescription,omitempty"`
	SalesDescription       string                     `json:"salesDescription,omitempty"`
	ItemType               string                     `json:"itemType,omitempty"`
	GenreID                string                     `json:"genreId"`
	HideItem               bool                       `json:"hideItem"`
	UnlimitedInventoryFlag bool                       `json:"unlimitedInventoryFlag"`
	Images                 []domain.Image             `json:"images,omitempty"`
	VariantSelectors       []domain.VariantSelector   `json:"variantSelectors,omitempty"`
	Variants               map[string]domain.Variant  `json:"variants,omitempty"`
	Features               *domain.Features           `json:"features,omitempty"`
	Payment                *domain.Payment            `json:"payment,omitempty"`
	Layout                 *domain.Layout             `json:"layout,omitempty"`
}

// BuildItemPayload converts a canonical row into the PUT body.
func BuildItemPayload(p *domain.CanonicalProduct) *ItemPayload {
	payload := &ItemPayload{
		Title:                  p.Title,
		Tagline:                p.Tagline,
		SalesDescription:       p.SalesDescription,
		ItemType:               p.ItemType,
		GenreID:                p.GenreID,
		HideItem:               p.HideItem,
		UnlimitedInventoryFlag: p.UnlimitedInventoryFlag,
		Images:                 p.Images,
		VariantSelectors:       p.VariantSelectors,
		Variants:               p.Variants,
	}
	if p.ProductDescription.PC != "" || p.ProductDescription.SP != "" {
		desc := p.ProductDescription
		payload.ProductDescription = &desc
	}
	features := p.Features
	payload.Features = &features
	payment := p.Payment
	payload.Payment = &payment
	layout := p.Layout
	payload.Layout = &layout
	return payload
}

// PricePatch is the items 2.0 PATCH body used for blocked products
// where only prices may change. RMS expects integer prices here.
type PricePatch struct {
	Variants map[string]PriceVariant `json:"variants"`
	GenreID  string                  `json:"genreId,omitempty"`
}

// PriceVariant carries a single variant's price.
type PriceVariant struct {
	StandardPrice int `json:"standardPrice"`
}

// BuildPricePatch extracts the variant prices of a canonical row,
// coercing the stored price strings to integers. Variants whose price
// does not parse are skipped.
func BuildPricePatch(p *domain.CanonicalProduct) *PricePatch {
	patch := &PricePatch{
		Variants: make(map[string]PriceVariant, len(p.Variants)),
		GenreID:  p.GenreID,
	}
	for id, v := range p.Variants {
		raw := strings.TrimSpace(v.StandardPrice)
		price, err := strconv.Atoi(raw)
		if err != nil {
			// Rows materialized before prices were normalized carry
			// float strings like "1200.0".
			f, ferr := strconv.ParseFloat(raw, 64)
			if ferr != nil {
				continue
			}
			price = int(f)
		}
		patch.Variants[id] = PriceVariant{StandardPrice: price}
	}
	return patch
}

func itemPath(manageNumber string) string {
	return "/es/2.0/items/manage-numbers/" + url.PathEscape(manageNumber)
}

// ProductUpsert registers or fully replaces an item. RMS answers 204.
func (c *Client) ProductUpsert(ctx context.Context, manageNumber string, payload *ItemPayload) *Result {
	if manageNumber == "" {
		return invalidResult("manage number is required")
	}
	return c.doJSON(ctx, http.MethodPut, itemPath(manageNumber), payload, http.StatusNoContent)
}

// ProductPricePatch updates variant prices only. Used for blocked
// products where a full upsert is not allowed.
func (c *Client) ProductPricePatch(ctx context.Context, manageNumber string, patch *PricePatch) *Result {
	if manageNumber == "" {
		return invalidResult("manage number is required")
	}
	if patch == nil || len(patch.Variants) == 0 {
		return invalidResult("price patch has no variants")
	}
	return c.doJSON(ctx, http.MethodPatch, itemPath(manageNumber), patch, http.StatusNoContent)
}

// ProductDelete removes an item from the shop.
func (c *Client) ProductDelete(ctx context.Context, manageNumber string) *Result {
	if manageNumber == "" {
		return invalidResult("manage number is required")
	}
	return c.doJSON(ctx, http.MethodDelete, itemPath(manageNumber), nil, http.StatusNoContent)
}

// ProductGet fetches the item as the marketplace currently sees it.
// 404 is a meaningful outcome for reconciliation, not a transport
// failure; callers inspect StatusCode.
func (c *Client) ProductGet(ctx context.Context, manageNumber string) *Result {
	if manageNumber == "" {
		return invalidResult("manage number is required")
	}
	return c.doJSON(ctx, http.MethodGet, itemPath(manageNumber), nil, http.StatusOK)
}

type categoryMapRequest struct {
	CategoryIDs          []int `json:"categoryIds"`
	MainPluralCategoryID *int  `json:"mainPluralCategoryId,omitempty"`
}

// CategoryMap binds an item to up to five shop categories. Duplicates
// are removed first; anything beyond the RMS cap of five is dropped in
// input order.
func (c *Client) CategoryMap(ctx context.Context, manageNumber string, categoryIDs []string, mainPluralCategoryID *string) *Result {
	if manageNumber == "" {
		return invalidResult("manage number is required")
	}
	ids := dedupeCategoryIDs(categoryIDs)
	if len(ids) == 0 {
		return invalidResult("no usable category ids")
	}
	if len(ids) > maxItemCategories {
		ids = ids[:maxItemCategories]
	}

	req := categoryMapRequest{CategoryIDs: ids}
	if mainPluralCategoryID != nil {
		if main, err := strconv.Atoi(strings.TrimSpace(*mainPluralCategoryID)); err == nil {
			req.MainPluralCategoryID = &main
		}
	}
	path := "/es/2.0/categories/item-mappings/manage-numbers/" + url.PathEscape(manageNumber)
	return c.doJSON(ctx, http.MethodPut, path, req, http.StatusNoContent)
}

// dedupeCategoryIDs parses ids to integers, dropping blanks, repeats
// and garbage while preserving first-seen order.
func dedupeCategoryIDs(ids []string) []int {
	seen := make(map[int]struct{}, len(ids))
	out := make([]int, 0, len(ids))
	for _, raw := range ids {
		id, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func invalidResult(msg string) *Result {
	return &Result{
		ErrorText: msg,
		Err:       apperrors.InvalidInput(msg),
	}
}
