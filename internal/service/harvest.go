package service

import (
	"context"
	"log/slog"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/utafrali/RelistGo/internal/domain"
	"github.com/utafrali/RelistGo/internal/event"
	"github.com/utafrali/RelistGo/internal/harvester"
	"github.com/utafrali/RelistGo/internal/repository"

	apperrors "github.com/utafrali/RelistGo/pkg/errors"
)

// HarvestService pulls listings from the upstream marketplace, fetches
// and filters their detail payloads and persists them as origin rows.
type HarvestService struct {
	client     harvester.Client
	origins    repository.OriginProductRepository
	categories repository.CategoryRepository
	producer   *event.Producer
	logger     *slog.Logger
}

// NewHarvestService creates a harvest service.
func NewHarvestService(
	client harvester.Client,
	origins repository.OriginProductRepository,
	categories repository.CategoryRepository,
	producer *event.Producer,
	logger *slog.Logger,
) *HarvestService {
	return &HarvestService{
		client:     client,
		origins:    origins,
		categories: categories,
		producer:   producer,
		logger:     logger,
	}
}

// HarvestResult reports one ingested search page.
type HarvestResult struct {
	Query    string   `json:"query"`
	Page     int      `json:"page"`
	PageSize int      `json:"page_size"`
	Total    int      `json:"total"`
	Upserted int      `json:"upserted"`
	Skipped  []string `json:"skipped"`
}

// HarvestByKeyword ingests one page of keyword search results.
func (s *HarvestService) HarvestByKeyword(ctx context.Context, keyword string, page, pageSize int) (*HarvestResult, error) {
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		return nil, apperrors.InvalidInput("keyword is required")
	}

	res, err := s.client.SearchByKeyword(ctx, keyword, page, pageSize)
	if err != nil {
		return nil, err
	}
	return s.ingest(ctx, keyword, res)
}

// HarvestByCategory ingests one page of upstream category listings.
func (s *HarvestService) HarvestByCategory(ctx context.Context, categoryIDs []string, page, pageSize int) (*HarvestResult, error) {
	if len(categoryIDs) == 0 {
		return nil, apperrors.InvalidInput("at least one category id is required")
	}

	res, err := s.client.SearchByCategory(ctx, categoryIDs, page, pageSize)
	if err != nil {
		return nil, err
	}
	return s.ingest(ctx, strings.Join(categoryIDs, ","), res)
}

// SearchByImage runs an upstream visual search. The results are for
// discovery only and are not persisted; callers harvest the ids they
// actually want by keyword or category.
func (s *HarvestService) SearchByImage(ctx context.Context, imageBase64 string, page, pageSize int) (*harvester.SearchResult, error) {
	if strings.TrimSpace(imageBase64) == "" {
		return nil, apperrors.InvalidInput("image payload is required")
	}
	return s.client.SearchByImage(ctx, imageBase64, page, pageSize)
}

// ingest fetches detail for every listing on the page, normalizes the
// records and upserts them. Listings whose detail fetch fails are
// skipped, not fatal: the rest of the page still lands.
func (s *HarvestService) ingest(ctx context.Context, query string, page *harvester.SearchResult) (*HarvestResult, error) {
	rcatMap, err := s.categories.RakutenCategoryMap(ctx)
	if err != nil {
		s.logger.WarnContext(ctx, "rakuten category map unavailable, harvesting without r_cat_id",
			slog.Any("error", err),
		)
		rcatMap = map[string][]string{}
	}

	records := make([]domain.OriginProduct, 0, len(page.Items))
	var detailFailures []string
	for _, item := range page.Items {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		id := strings.TrimSpace(item.GoodsID.String())
		if id == "" {
			s.logger.DebugContext(ctx, "search item without goods id skipped", slog.String("title", item.TitleT))
			continue
		}

		detail, err := s.client.GetProductDetail(ctx, id)
		if err != nil {
			s.logger.WarnContext(ctx, "detail fetch failed, listing skipped",
				slog.String("product_id", id),
				slog.Any("error", err),
			)
			detailFailures = append(detailFailures, id)
			continue
		}
		records = append(records, buildOrigin(item, id, harvester.FilterDetailJSON(detail), rcatMap))
	}

	upsert, err := s.origins.UpsertBatch(ctx, records)
	if err != nil {
		return nil, err
	}
	skipped := append(detailFailures, upsert.Skipped...)

	productsHarvested.Add(float64(upsert.Upserted))
	if err := s.producer.PublishProductHarvested(ctx, query, page.Page, upsert.Upserted, len(skipped)); err != nil {
		s.logger.WarnContext(ctx, "harvested event not published",
			slog.String("query", query),
			slog.Any("error", err),
		)
	}
	s.logger.InfoContext(ctx, "harvest page ingested",
		slog.String("query", query),
		slog.Int("page", page.Page),
		slog.Int("upserted", upsert.Upserted),
		slog.Int("skipped", len(skipped)),
	)

	return &HarvestResult{
		Query:    query,
		Page:     page.Page,
		PageSize: page.PageSize,
		Total:    page.Total,
		Upserted: upsert.Upserted,
		Skipped:  skipped,
	}, nil
}

// buildOrigin maps one search listing plus its filtered detail payload
// onto an origin row. Detail keys vary across upstream endpoints, so
// every field is probed over its known spellings.
func buildOrigin(item harvester.SearchItem, id string, detail map[string]any, rcatMap map[string][]string) domain.OriginProduct {
	p := domain.OriginProduct{
		ProductID:          id,
		TitleC:             strings.TrimSpace(item.TitleC),
		TitleT:             strings.TrimSpace(item.TitleT),
		MainCategory:       detailString(detail, "mainCategory", "main_category", "topCategory"),
		MiddleCategory:     detailString(detail, "middleCategory", "middle_category", "subCategory"),
		ProductType:        detailString(detail, "productType", "fromPlatform", "platform"),
		MonthlySales:       int64(item.MonthSold.Int()),
		CreationDate:       detailString(detail, "creationDate", "createDate", "createTime"),
		DetailJSON:         detail,
		RegistrationStatus: domain.RegistrationUnregistered,
	}
	if p.TitleT == "" {
		p.TitleT = detailString(detail, "title", "goodsName")
	}

	if price, err := item.GoodsPrice.Decimal(); err == nil {
		p.WholesalePrice = price
	} else {
		p.WholesalePrice = decimal.Zero
	}
	if rate, err := item.RepurchaseRate.Decimal(); err == nil {
		p.RepurchaseRate = rate.InexactFloat64()
	}
	if score, ok := detailFloat(detail, "ratingScore", "evaluateScore", "tradeScore", "score"); ok {
		p.RatingScore = score
	}

	if weight, ok := detailFloat(detail, "weight", "goodsWeight", "unitWeight"); ok && weight > 0 {
		p.Weight = weight
	}
	if length, ok := detailFloat(detail, "length"); ok {
		p.Length = &length
	}
	if width, ok := detailFloat(detail, "width"); ok {
		p.Width = &width
	}
	if height, ok := detailFloat(detail, "height"); ok {
		p.Height = &height
	}
	if size, ok := detailFloat(detail, "size"); ok {
		if s := int(size); domain.IsValidOriginSize(s) {
			p.Size = &s
		}
	}

	rcat := rcatMap[p.MiddleCategory]
	if len(rcat) == 0 {
		rcat = rcatMap[p.MainCategory]
	}
	if rcat == nil {
		rcat = []string{}
	}
	p.RCatID = rcat

	return p
}

// detailString probes the given keys and returns the first non-empty
// string value, formatting bare numbers as text.
func detailString(detail map[string]any, keys ...string) string {
	for _, key := range keys {
		switch v := detail[key].(type) {
		case string:
			if s := strings.TrimSpace(v); s != "" {
				return s
			}
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64)
		}
	}
	return ""
}

// detailFloat probes the given keys and returns the first value that
// parses as a number. Upstream sends numerics both bare and quoted.
func detailFloat(detail map[string]any, keys ...string) (float64, bool) {
	for _, key := range keys {
		switch v := detail[key].(type) {
		case float64:
			return v, true
		case string:
			if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
				return f, true
			}
		}
	}
	return 0, false
}
