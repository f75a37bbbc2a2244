package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/utafrali/RelistGo/internal/domain"
	"github.com/utafrali/RelistGo/internal/repository"
	"github.com/utafrali/RelistGo/pkg/database"
	apperrors "github.com/utafrali/RelistGo/pkg/errors"
)

const canonicalColumns = `id, item_number, title, tagline, product_description, sales_description,
		images, variant_selectors, variants, inventory, features, payment, layout,
		hide_item, item_type, unlimited_inventory_flag, block, genre_id, r_cat_id,
		rakuten_registration_status, image_registration_status, inventory_registration_status,
		rakuten_registered_at, actual_purchase_price, change_status, src_url,
		main_category, middle_category, product_image_code, created_at, updated_at`

// CanonicalProductRepository implements repository.CanonicalProductRepository
// using PostgreSQL.
type CanonicalProductRepository struct {
	pool database.DBTX
}

// NewCanonicalProductRepository creates a new PostgreSQL-backed canonical
// product repository.
func NewCanonicalProductRepository(pool database.DBTX) *CanonicalProductRepository {
	return &CanonicalProductRepository{pool: pool}
}

// canonicalJSON bundles the marshalled JSON columns of one row.
type canonicalJSON struct {
	description []byte
	images      []byte
	selectors   []byte
	variants    []byte
	inventory   []byte
	features    []byte
	payment     []byte
	layout      []byte
	rCatID      []byte
}

func marshalCanonical(p *domain.CanonicalProduct) (*canonicalJSON, error) {
	var (
		out canonicalJSON
		err error
	)

	if out.description, err = json.Marshal(p.ProductDescription); err != nil {
		return nil, fmt.Errorf("marshal product_description: %w", err)
	}
	images := p.Images
	if images == nil {
		images = []domain.Image{}
	}
	if out.images, err = json.Marshal(images); err != nil {
		return nil, fmt.Errorf("marshal images: %w", err)
	}
	selectors := p.VariantSelectors
	if selectors == nil {
		selectors = []domain.VariantSelector{}
	}
	if out.selectors, err = json.Marshal(selectors); err != nil {
		return nil, fmt.Errorf("marshal variant_selectors: %w", err)
	}
	variants := p.Variants
	if variants == nil {
		variants = map[string]domain.Variant{}
	}
	if out.variants, err = json.Marshal(variants); err != nil {
		return nil, fmt.Errorf("marshal variants: %w", err)
	}
	if out.inventory, err = json.Marshal(p.Inventory); err != nil {
		return nil, fmt.Errorf("marshal inventory: %w", err)
	}
	if out.features, err = json.Marshal(p.Features); err != nil {
		return nil, fmt.Errorf("marshal features: %w", err)
	}
	if out.payment, err = json.Marshal(p.Payment); err != nil {
		return nil, fmt.Errorf("marshal payment: %w", err)
	}
	if out.layout, err = json.Marshal(p.Layout); err != nil {
		return nil, fmt.Errorf("marshal layout: %w", err)
	}
	if out.rCatID, err = marshalStringArray(p.RCatID); err != nil {
		return nil, fmt.Errorf("marshal r_cat_id: %w", err)
	}

	return &out, nil
}

// Upsert writes a materialized product keyed by item_number and marks the
// matching origin row registered in the same transaction. Marketplace
// status columns of an existing row are left untouched; they belong to
// the registration flow.
func (r *CanonicalProductRepository) Upsert(ctx context.Context, p *domain.CanonicalProduct) error {
	if p.ItemNumber == "" {
		return apperrors.InvalidInput("item_number must not be empty")
	}

	js, err := marshalCanonical(p)
	if err != nil {
		return err
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO product_management (item_number, title, tagline, product_description, sales_description,
			images, variant_selectors, variants, inventory, features, payment, layout,
			hide_item, item_type, unlimited_inventory_flag, block, genre_id, r_cat_id,
			actual_purchase_price, change_status, src_url, main_category, middle_category,
			product_image_code, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18,
			$19, $20, $21, $22, $23, $24, $25, $26)
		ON CONFLICT (item_number) DO UPDATE SET
			title = EXCLUDED.title,
			tagline = EXCLUDED.tagline,
			product_description = EXCLUDED.product_description,
			sales_description = EXCLUDED.sales_description,
			images = EXCLUDED.images,
			variant_selectors = EXCLUDED.variant_selectors,
			variants = EXCLUDED.variants,
			inventory = EXCLUDED.inventory,
			features = EXCLUDED.features,
			payment = EXCLUDED.payment,
			layout = EXCLUDED.layout,
			hide_item = EXCLUDED.hide_item,
			item_type = EXCLUDED.item_type,
			unlimited_inventory_flag = EXCLUDED.unlimited_inventory_flag,
			block = EXCLUDED.block,
			genre_id = EXCLUDED.genre_id,
			r_cat_id = EXCLUDED.r_cat_id,
			actual_purchase_price = EXCLUDED.actual_purchase_price,
			change_status = EXCLUDED.change_status,
			src_url = EXCLUDED.src_url,
			main_category = EXCLUDED.main_category,
			middle_category = EXCLUDED.middle_category,
			product_image_code = EXCLUDED.product_image_code,
			updated_at = EXCLUDED.updated_at`

	now := time.Now().UTC()
	createdAt := p.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}

	if _, err := tx.Exec(ctx, query,
		p.ItemNumber,
		p.Title,
		p.Tagline,
		js.description,
		p.SalesDescription,
		js.images,
		js.selectors,
		js.variants,
		js.inventory,
		js.features,
		js.payment,
		js.layout,
		p.HideItem,
		p.ItemType,
		p.UnlimitedInventoryFlag,
		p.Block,
		p.GenreID,
		js.rCatID,
		p.ActualPurchasePrice,
		p.ChangeStatus,
		p.SrcURL,
		p.MainCategory,
		p.MiddleCategory,
		p.ProductImageCode,
		createdAt,
		now,
	); err != nil {
		return fmt.Errorf("upsert canonical product %s: %w", p.ItemNumber, err)
	}

	originQuery := `
		UPDATE products_origin
		SET registration_status = $1, updated_at = NOW()
		WHERE product_id = $2`

	if _, err := tx.Exec(ctx, originQuery, domain.RegistrationRegistered, p.ItemNumber); err != nil {
		return fmt.Errorf("mark origin registered for %s: %w", p.ItemNumber, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	return nil
}

// GetByItemNumber retrieves one canonical product.
func (r *CanonicalProductRepository) GetByItemNumber(ctx context.Context, itemNumber string) (*domain.CanonicalProduct, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM product_management
		WHERE item_number = $1`, canonicalColumns)

	p, err := scanCanonical(r.pool.QueryRow(ctx, query, itemNumber), nil)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("product", itemNumber)
		}
		return nil, fmt.Errorf("scan canonical product: %w", err)
	}
	return p, nil
}

// List returns canonical products with the total count.
func (r *CanonicalProductRepository) List(ctx context.Context, filter repository.CanonicalFilter) ([]domain.CanonicalProduct, int, error) {
	sortBy := filter.SortBy
	switch sortBy {
	case "", "created_at":
		sortBy = "created_at"
	case "rakuten_registered_at":
	default:
		return nil, 0, apperrors.InvalidInput(fmt.Sprintf("invalid sort_by %q", filter.SortBy))
	}

	sortOrder := strings.ToUpper(filter.SortOrder)
	switch sortOrder {
	case "":
		sortOrder = "DESC"
	case "ASC", "DESC":
	default:
		return nil, 0, apperrors.InvalidInput(fmt.Sprintf("invalid sort_order %q", filter.SortOrder))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	// Sort column and direction come from the whitelists above.
	query := fmt.Sprintf(`
		SELECT %s,
			   count(*) OVER() AS total_count
		FROM product_management
		ORDER BY %s %s NULLS LAST
		LIMIT $1 OFFSET $2`,
		canonicalColumns, sortBy, sortOrder,
	)

	rows, err := r.pool.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list canonical products: %w", err)
	}
	defer rows.Close()

	var totalCount int
	products := make([]domain.CanonicalProduct, 0)

	for rows.Next() {
		p, err := scanCanonical(rows, &totalCount)
		if err != nil {
			return nil, 0, fmt.Errorf("scan canonical product row: %w", err)
		}
		products = append(products, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate canonical product rows: %w", err)
	}

	return products, totalCount, nil
}

// UpdateHideItem toggles hide_item for rows still under our control.
// Products the marketplace reports as deleted or stopped are skipped.
func (r *CanonicalProductRepository) UpdateHideItem(ctx context.Context, itemNumbers []string, hidden bool) (int64, error) {
	if len(itemNumbers) == 0 {
		return 0, nil
	}

	query := `
		UPDATE product_management
		SET hide_item = $1, updated_at = NOW()
		WHERE item_number = ANY($2)
		  AND (rakuten_registration_status IS NULL
		       OR rakuten_registration_status IN ('', 'onsale', 'true', 'false'))`

	ct, err := r.pool.Exec(ctx, query, hidden, itemNumbers)
	if err != nil {
		return 0, fmt.Errorf("update hide_item: %w", err)
	}
	return ct.RowsAffected(), nil
}

// Delete removes canonical rows and flips their origin rows from
// registered to previously-registered, atomically.
func (r *CanonicalProductRepository) Delete(ctx context.Context, itemNumbers []string) (int64, error) {
	if len(itemNumbers) == 0 {
		return 0, nil
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	originQuery := `
		UPDATE products_origin
		SET registration_status = $1, updated_at = NOW()
		WHERE product_id = ANY($2) AND registration_status = $3`

	if _, err := tx.Exec(ctx, originQuery, domain.RegistrationPreviouslyRegistered, itemNumbers, domain.RegistrationRegistered); err != nil {
		return 0, fmt.Errorf("flip origin status: %w", err)
	}

	deleteQuery := `DELETE FROM product_management WHERE item_number = ANY($1)`

	ct, err := tx.Exec(ctx, deleteQuery, itemNumbers)
	if err != nil {
		return 0, fmt.Errorf("delete canonical products: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit transaction: %w", err)
	}

	return ct.RowsAffected(), nil
}

// RemoveImage deletes one image from the stored list by exact location
// match after trimming surrounding whitespace.
func (r *CanonicalProductRepository) RemoveImage(ctx context.Context, itemNumber string, location string) error {
	target := strings.TrimSpace(location)
	if target == "" {
		return apperrors.InvalidInput("image location must not be empty")
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var imagesJSON []byte
	selectQuery := `SELECT images FROM product_management WHERE item_number = $1 FOR UPDATE`
	if err := tx.QueryRow(ctx, selectQuery, itemNumber).Scan(&imagesJSON); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NotFound("product", itemNumber)
		}
		return fmt.Errorf("load images: %w", err)
	}

	var images []domain.Image
	if len(imagesJSON) > 0 && string(imagesJSON) != "null" {
		if err := json.Unmarshal(imagesJSON, &images); err != nil {
			return fmt.Errorf("unmarshal images: %w", err)
		}
	}

	kept := make([]domain.Image, 0, len(images))
	removed := false
	for _, img := range images {
		if !removed && strings.TrimSpace(img.Location) == target {
			removed = true
			continue
		}
		kept = append(kept, img)
	}
	if !removed {
		return apperrors.NotFound("image", location)
	}

	updatedJSON, err := json.Marshal(kept)
	if err != nil {
		return fmt.Errorf("marshal images: %w", err)
	}

	updateQuery := `UPDATE product_management SET images = $1, updated_at = NOW() WHERE item_number = $2`
	if _, err := tx.Exec(ctx, updateQuery, updatedJSON, itemNumber); err != nil {
		return fmt.Errorf("update images: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	return nil
}

// SetRegistrationStatus updates the marketplace status. Reaching "true"
// stamps rakuten_registered_at, reaching "deleted" clears it, and every
// other transition preserves it.
func (r *CanonicalProductRepository) SetRegistrationStatus(ctx context.Context, itemNumber string, status *string) error {
	if status != nil && *status != "" && !domain.IsValidRakutenStatus(*status) {
		return apperrors.InvalidInput(fmt.Sprintf("invalid registration status %q", *status))
	}

	query := `
		UPDATE product_management
		SET rakuten_registration_status = $1,
		    rakuten_registered_at = CASE
		        WHEN $1 = 'true' THEN NOW()
		        WHEN $1 = 'deleted' THEN NULL
		        ELSE rakuten_registered_at
		    END,
		    updated_at = NOW()
		WHERE item_number = $2`

	ct, err := r.pool.Exec(ctx, query, status, itemNumber)
	if err != nil {
		return fmt.Errorf("set registration status: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("product", itemNumber)
	}
	return nil
}

// SetImageRegistrationStatus updates image_registration_status.
func (r *CanonicalProductRepository) SetImageRegistrationStatus(ctx context.Context, itemNumber string, status string) error {
	query := `
		UPDATE product_management
		SET image_registration_status = $1, updated_at = NOW()
		WHERE item_number = $2`

	ct, err := r.pool.Exec(ctx, query, status, itemNumber)
	if err != nil {
		return fmt.Errorf("set image registration status: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("product", itemNumber)
	}
	return nil
}

// SetInventoryRegistrationStatus updates inventory_registration_status.
func (r *CanonicalProductRepository) SetInventoryRegistrationStatus(ctx context.Context, itemNumber string, status string) error {
	query := `
		UPDATE product_management
		SET inventory_registration_status = $1, updated_at = NOW()
		WHERE item_number = $2`

	ct, err := r.pool.Exec(ctx, query, status, itemNumber)
	if err != nil {
		return fmt.Errorf("set inventory registration status: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("product", itemNumber)
	}
	return nil
}

// UpdateRCatID replaces the rakuten category id array of one product.
func (r *CanonicalProductRepository) UpdateRCatID(ctx context.Context, itemNumber string, rCatID []string) error {
	rCatJSON, err := marshalStringArray(rCatID)
	if err != nil {
		return fmt.Errorf("marshal r_cat_id: %w", err)
	}

	query := `
		UPDATE product_management
		SET r_cat_id = $1, updated_at = NOW()
		WHERE item_number = $2`

	ct, err := r.pool.Exec(ctx, query, rCatJSON, itemNumber)
	if err != nil {
		return fmt.Errorf("update r_cat_id: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("product", itemNumber)
	}
	return nil
}

// scanCanonical scans a full canonical product row, plus the windowed
// total count when totalCount is non-nil.
func scanCanonical(row pgx.Row, totalCount *int) (*domain.CanonicalProduct, error) {
	var (
		p               domain.CanonicalProduct
		descriptionJSON []byte
		imagesJSON      []byte
		selectorsJSON   []byte
		variantsJSON    []byte
		inventoryJSON   []byte
		featuresJSON    []byte
		paymentJSON     []byte
		layoutJSON      []byte
		rCatJSON        []byte
	)

	dest := []any{
		&p.ID,
		&p.ItemNumber,
		&p.Title,
		&p.Tagline,
		&descriptionJSON,
		&p.SalesDescription,
		&imagesJSON,
		&selectorsJSON,
		&variantsJSON,
		&inventoryJSON,
		&featuresJSON,
		&paymentJSON,
		&layoutJSON,
		&p.HideItem,
		&p.ItemType,
		&p.UnlimitedInventoryFlag,
		&p.Block,
		&p.GenreID,
		&rCatJSON,
		&p.RakutenRegistrationStatus,
		&p.ImageRegistrationStatus,
		&p.InventoryRegistrationStatus,
		&p.RakutenRegisteredAt,
		&p.ActualPurchasePrice,
		&p.ChangeStatus,
		&p.SrcURL,
		&p.MainCategory,
		&p.MiddleCategory,
		&p.ProductImageCode,
		&p.CreatedAt,
		&p.UpdatedAt,
	}
	if totalCount != nil {
		dest = append(dest, totalCount)
	}

	if err := row.Scan(dest...); err != nil {
		return nil, err
	}

	for _, col := range []struct {
		name string
		raw  []byte
		dst  any
	}{
		{"product_description", descriptionJSON, &p.ProductDescription},
		{"images", imagesJSON, &p.Images},
		{"variant_selectors", selectorsJSON, &p.VariantSelectors},
		{"variants", variantsJSON, &p.Variants},
		{"inventory", inventoryJSON, &p.Inventory},
		{"features", featuresJSON, &p.Features},
		{"payment", paymentJSON, &p.Payment},
		{"layout", layoutJSON, &p.Layout},
	} {
		if len(col.raw) == 0 || string(col.raw) == "null" {
			continue
		}
		if err := json.Unmarshal(col.raw, col.dst); err != nil {
			return nil, fmt.Errorf("unmarshal %s: %w", col.name, err)
		}
	}
	if p.Images == nil {
		p.Images = []domain.Image{}
	}
	if p.VariantSelectors == nil {
		p.VariantSelectors = []domain.VariantSelector{}
	}
	if p.Variants == nil {
		p.Variants = map[string]domain.Variant{}
	}
	if err := unmarshalStringArray(rCatJSON, &p.RCatID); err != nil {
		return nil, fmt.Errorf("unmarshal r_cat_id: %w", err)
	}

	p.RakutenRegistrationStatus = normalizeStatus(p.RakutenRegistrationStatus)

	return &p, nil
}

// normalizeStatus maps legacy boolean-ish status text onto the canonical
// "true"/"false" strings. NULL stays NULL; anything else passes through
// trimmed.
func normalizeStatus(s *string) *string {
	if s == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*s)
	switch strings.ToLower(trimmed) {
	case "true", "t", "1":
		v := domain.StatusRegistered
		return &v
	case "false", "f", "0":
		v := domain.StatusFailed
		return &v
	}
	return &trimmed
}
