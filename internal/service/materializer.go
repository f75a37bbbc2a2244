package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/utafrali/RelistGo/internal/content"
	"github.com/utafrali/RelistGo/internal/domain"
	"github.com/utafrali/RelistGo/internal/event"
	"github.com/utafrali/RelistGo/internal/imaging"
	"github.com/utafrali/RelistGo/internal/repository"
	"github.com/utafrali/RelistGo/internal/translator"

	apperrors "github.com/utafrali/RelistGo/pkg/errors"
	"github.com/utafrali/RelistGo/pkg/managenum"
)

// DefaultMaterializeConcurrency bounds batch fan-out when the config
// does not say otherwise.
const DefaultMaterializeConcurrency = 4

// MaterializerService turns harvested origin rows into Rakuten-ready
// canonical products. Batches fan out between items; within one item
// the steps run strictly in order, and each item commits on its own.
type MaterializerService struct {
	origins     repository.OriginProductRepository
	canonical   repository.CanonicalProductRepository
	categories  repository.CategoryRepository
	settings    repository.SettingsRepository
	translator  translator.Translator
	generator   content.Generator
	images      *imaging.Pipeline
	producer    *event.Producer
	logger      *slog.Logger
	concurrency int
}

// NewMaterializerService creates a materializer. concurrency caps the
// batch fan-out; values below one fall back to the default.
func NewMaterializerService(
	origins repository.OriginProductRepository,
	canonical repository.CanonicalProductRepository,
	categories repository.CategoryRepository,
	settings repository.SettingsRepository,
	tr translator.Translator,
	generator content.Generator,
	images *imaging.Pipeline,
	producer *event.Producer,
	concurrency int,
	logger *slog.Logger,
) *MaterializerService {
	if concurrency <= 0 {
		concurrency = DefaultMaterializeConcurrency
	}
	return &MaterializerService{
		origins:     origins,
		canonical:   canonical,
		categories:  categories,
		settings:    settings,
		translator:  tr,
		generator:   generator,
		images:      images,
		producer:    producer,
		logger:      logger,
		concurrency: concurrency,
	}
}

// Materialize builds and persists the canonical form of one harvested
// product. An existing canonical row keeps its images and image code;
// everything else is recomputed.
func (s *MaterializerService) Materialize(ctx context.Context, productID string) (*domain.CanonicalProduct, error) {
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return nil, apperrors.InvalidInput("product id is required")
	}

	origin, err := s.origins.GetByProductID(ctx, productID)
	if err != nil {
		return nil, err
	}

	existing, err := s.canonical.GetByItemNumber(ctx, productID)
	if err != nil && !errors.Is(err, apperrors.ErrNotFound) {
		return nil, err
	}

	settings, unknown, err := s.settings.GetPricingSettings(ctx)
	if err != nil {
		return nil, fmt.Errorf("load pricing settings: %w", err)
	}
	for _, key := range unknown {
		s.logger.WarnContext(ctx, "unknown pricing settings key ignored", slog.String("key", key))
	}

	genreID, attrs, rcat, err := s.resolveCategory(ctx, origin)
	if err != nil {
		return nil, err
	}

	copyRes, err := s.generator.Generate(ctx, origin)
	if err != nil {
		return nil, fmt.Errorf("generate listing copy: %w", err)
	}

	info, err := domain.ParseGoodsInfo(origin.DetailJSON)
	if err != nil {
		s.logger.WarnContext(ctx, "detail payload unparsable, materializing without variants",
			slog.String("product_id", productID),
			slog.Any("error", err),
		)
	}
	selectors := buildVariantSelectors(ctx, s.translator, info.Specification, s.logger)
	skus := resolveInventory(ctx, s.translator, selectors, info.GoodsInventory, s.logger)
	variants, invVariants := s.buildVariants(ctx, origin, selectors, skus, settings, attrs)

	images, imageCode, err := s.resolveImages(ctx, origin, existing, copyRes.Title)
	if err != nil {
		productsMaterialized.WithLabelValues(resultFailure).Inc()
		return nil, err
	}

	p := &domain.CanonicalProduct{
		ItemNumber:          productID,
		Title:               copyRes.Title,
		Tagline:             copyRes.Catchphrase,
		ProductDescription:  copyRes.ProductDescription(),
		SalesDescription:    copyRes.SalesDescription,
		Images:              images,
		VariantSelectors:    selectors,
		Variants:            variants,
		Inventory:           domain.Inventory{ManageNumber: managenum.Sanitize(productID), Variants: invVariants},
		Payment:             domain.Payment{TaxIncluded: true, CashOnDeliveryFeeIncluded: true},
		HideItem:            true,
		ItemType:            domain.ItemTypeNormal,
		GenreID:             genreID,
		RCatID:              rcat,
		ActualPurchasePrice: origin.WholesalePrice,
		SrcURL:              srcURL(origin, existing),
		MainCategory:        origin.MainCategory,
		MiddleCategory:      origin.MiddleCategory,
		ProductImageCode:    imageCode,
	}
	if existing != nil {
		p.Block = existing.Block
	}

	if err := s.canonical.Upsert(ctx, p); err != nil {
		productsMaterialized.WithLabelValues(resultFailure).Inc()
		return nil, fmt.Errorf("persist canonical product: %w", err)
	}
	productsMaterialized.WithLabelValues(resultSuccess).Inc()

	if err := s.producer.PublishProductMaterialized(ctx, p); err != nil {
		s.logger.WarnContext(ctx, "materialized event not published",
			slog.String("item_number", p.ItemNumber),
			slog.Any("error", err),
		)
	}

	s.logger.InfoContext(ctx, "product materialized",
		slog.String("item_number", p.ItemNumber),
		slog.Int("variants", len(p.Variants)),
		slog.Int("images", len(p.Images)),
	)
	return p, nil
}

// MaterializeBatch materializes many products with bounded fan-out.
// Items are isolated: one failure never stops the rest. Cancellation
// is cooperative; in-flight products finish, queued ones report the
// context error.
func (s *MaterializerService) MaterializeBatch(ctx context.Context, productIDs []string) *BatchResult {
	errs := make([]error, len(productIDs))

	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for i, id := range productIDs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				errs[i] = err
				return nil
			}
			_, errs[i] = s.Materialize(ctx, id)
			return nil
		})
	}
	_ = g.Wait()

	result := &BatchResult{}
	for i, id := range productIDs {
		result.Add(id, errs[i])
	}
	return result
}

// resolveCategory looks up the genre, variant attributes and rakuten
// category ids for the product's middle category, falling back to the
// shop defaults when no category claims it.
func (s *MaterializerService) resolveCategory(ctx context.Context, origin *domain.OriginProduct) (string, []domain.CategoryAttribute, []string, error) {
	genreID := domain.DefaultGenreID
	attrs := domain.DefaultVariantAttributes()
	rcat := origin.RCatID

	if origin.MiddleCategory != "" {
		cat, err := s.categories.GetByMemberCode(ctx, origin.MiddleCategory)
		switch {
		case err == nil:
			if cat.GenreID != "" {
				genreID = cat.GenreID
			}
			if len(cat.Attributes) > 0 {
				attrs = cat.Attributes
			}
			if len(cat.RakutenCategoryIDs) > 0 {
				rcat = cat.RakutenCategoryIDs
			}
		case errors.Is(err, apperrors.ErrNotFound):
			// Unmanaged category, defaults apply.
		default:
			return "", nil, nil, fmt.Errorf("resolve category %q: %w", origin.MiddleCategory, err)
		}
	}

	if rcat == nil {
		rcat = []string{}
	}
	return genreID, attrs, rcat, nil
}

// buildVariants emits one variant per selector combination together
// with its inventory row. Combinations without even a first-axis
// inventory match are skipped.
func (s *MaterializerService) buildVariants(ctx context.Context, origin *domain.OriginProduct, selectors []domain.VariantSelector, skus []inventorySKU, settings domain.PricingSettings, attrs []domain.CategoryAttribute) (map[string]domain.Variant, []domain.InventoryVariant) {
	if origin.Weight <= 0 {
		s.logger.WarnContext(ctx, "origin weight missing, prices set to zero",
			slog.String("product_id", origin.ProductID),
		)
	}

	variantAttrs := variantAttributes(attrs)
	if len(selectors) == 0 {
		return s.defaultVariant(origin, skus, settings, variantAttrs)
	}

	index := make(map[string]inventorySKU, len(skus))
	for _, sku := range skus {
		key := comboKey(selectors, sku.SelectorValues)
		if _, dup := index[key]; !dup {
			index[key] = sku
		}
	}

	combos := cartesianCombos(selectors, s.logger)
	variants := make(map[string]domain.Variant, len(combos))
	inventory := make([]domain.InventoryVariant, 0, len(combos))
	firstKey := selectors[0].Key

	for i, combo := range combos {
		sku, exact := index[comboKey(selectors, combo)]
		if !exact {
			partial, ok := matchFirstSelector(skus, firstKey, combo[firstKey])
			if !ok {
				s.logger.DebugContext(ctx, "combination without inventory match skipped",
					slog.String("product_id", origin.ProductID),
					slog.Any("combination", combo),
				)
				continue
			}
			sku = partial
			// The upstream has no SKU for this cell; derive a stable id
			// off the partially matching row.
			sku.SkuID = fmt.Sprintf("%s-%d", sku.SkuID, i+1)
		}

		unit, err := sku.Price.Decimal()
		if err != nil || unit.IsZero() {
			unit = origin.WholesalePrice
		}

		variants[sku.SkuID] = domain.Variant{
			SelectorValues: combo,
			StandardPrice:  ComputePrice(unit, origin.Weight, origin.Size, settings),
			Attributes:     variantAttrs,
		}
		inventory = append(inventory, domain.InventoryVariant{
			VariantID:         sku.SkuID,
			Quantity:          QuantizeQuantity(sku.AmountOnSale),
			Mode:              domain.InventoryModeAbsolute,
			OperationLeadTime: &domain.OperationLeadTime{NormalDeliveryTimeID: domain.NormalDeliveryTimeID},
		})
	}
	return variants, inventory
}

// defaultVariant covers listings without specification axes: a single
// variant priced from the first inventory row, or the wholesale price
// when the detail has no inventory at all.
func (s *MaterializerService) defaultVariant(origin *domain.OriginProduct, skus []inventorySKU, settings domain.PricingSettings, attrs []domain.VariantAttribute) (map[string]domain.Variant, []domain.InventoryVariant) {
	unit := origin.WholesalePrice
	amount := 0
	variantID := "default"
	if len(skus) > 0 {
		sku := skus[0]
		variantID = sku.SkuID
		amount = sku.AmountOnSale
		if u, err := sku.Price.Decimal(); err == nil && !u.IsZero() {
			unit = u
		}
	}

	variants := map[string]domain.Variant{
		variantID: {
			StandardPrice: ComputePrice(unit, origin.Weight, origin.Size, settings),
			Attributes:    attrs,
		},
	}
	inventory := []domain.InventoryVariant{{
		VariantID:         variantID,
		Quantity:          QuantizeQuantity(amount),
		Mode:              domain.InventoryModeAbsolute,
		OperationLeadTime: &domain.OperationLeadTime{NormalDeliveryTimeID: domain.NormalDeliveryTimeID},
	}}
	return variants, inventory
}

// resolveImages reuses the images of an already-materialized row, or
// runs the image pipeline for new products.
func (s *MaterializerService) resolveImages(ctx context.Context, origin *domain.OriginProduct, existing *domain.CanonicalProduct, title string) ([]domain.Image, string, error) {
	if existing != nil && existing.ProductImageCode != "" && len(existing.Images) > 0 {
		return existing.Images, existing.ProductImageCode, nil
	}

	code := imaging.ProductImageCode(origin.ProductID)
	results, err := s.images.Process(ctx, domain.DetailImageURLs(origin.DetailJSON), code)
	if err != nil {
		return nil, "", fmt.Errorf("process images: %w", err)
	}

	images := make([]domain.Image, 0, len(results))
	for _, r := range results {
		images = append(images, domain.Image{
			Type:     domain.ImageTypeCabinet,
			Location: r.RelativePath,
			Alt:      title,
		})
	}
	return images, code, nil
}

// matchFirstSelector finds an inventory row agreeing with the
// combination on the first axis.
func matchFirstSelector(skus []inventorySKU, key, value string) (inventorySKU, bool) {
	for _, sku := range skus {
		if sku.SelectorValues[key] == value {
			return sku, true
		}
	}
	return inventorySKU{}, false
}

// variantAttributes converts category attribute defaults into the
// variant attribute shape, dropping unusable entries.
func variantAttributes(attrs []domain.CategoryAttribute) []domain.VariantAttribute {
	out := make([]domain.VariantAttribute, 0, len(attrs))
	for _, a := range attrs {
		if a.Name == "" || len(a.Values) == 0 {
			continue
		}
		out = append(out, domain.VariantAttribute{Name: a.Name, Values: a.Values})
	}
	return out
}

// srcURL keeps the known source URL of a listing, falling back to the
// detail payload for new rows.
func srcURL(origin *domain.OriginProduct, existing *domain.CanonicalProduct) string {
	if existing != nil && existing.SrcURL != "" {
		return existing.SrcURL
	}
	for _, key := range []string{"goodsUrl", "detailUrl", "url"} {
		if s, ok := origin.DetailJSON[key].(string); ok && s != "" {
			return s
		}
	}
	return ""
}
