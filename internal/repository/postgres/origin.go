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

const originColumns = `id, product_id, title_c, title_t, main_category, middle_category, product_type,
		monthly_sales, wholesale_price, weight, length, width, height, size, creation_date,
		repurchase_rate, rating_score, detail_json, registration_status, r_cat_id, created_at, updated_at`

// OriginProductRepository implements repository.OriginProductRepository
// using PostgreSQL.
type OriginProductRepository struct {
	pool database.DBTX
}

// NewOriginProductRepository creates a new PostgreSQL-backed origin
// product repository.
func NewOriginProductRepository(pool database.DBTX) *OriginProductRepository {
	return &OriginProductRepository{pool: pool}
}

// UpsertBatch validates and upserts harvested records in one transaction.
// Conflicting rows keep their registration_status (never downgraded back
// to unregistered) and the earliest created_at. Records without a
// product id or any title are collected in the result, not persisted.
func (r *OriginProductRepository) UpsertBatch(ctx context.Context, products []domain.OriginProduct) (*repository.OriginUpsertResult, error) {
	result := &repository.OriginUpsertResult{}
	if len(products) == 0 {
		return result, nil
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO products_origin (product_id, title_c, title_t, main_category, middle_category, product_type,
			monthly_sales, wholesale_price, weight, length, width, height, size, creation_date,
			repurchase_rate, rating_score, detail_json, registration_status, r_cat_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)
		ON CONFLICT (product_id) DO UPDATE SET
			title_c = EXCLUDED.title_c,
			title_t = EXCLUDED.title_t,
			main_category = EXCLUDED.main_category,
			middle_category = EXCLUDED.middle_category,
			product_type = EXCLUDED.product_type,
			monthly_sales = EXCLUDED.monthly_sales,
			wholesale_price = EXCLUDED.wholesale_price,
			weight = EXCLUDED.weight,
			length = EXCLUDED.length,
			width = EXCLUDED.width,
			height = EXCLUDED.height,
			size = EXCLUDED.size,
			creation_date = EXCLUDED.creation_date,
			repurchase_rate = EXCLUDED.repurchase_rate,
			rating_score = EXCLUDED.rating_score,
			detail_json = EXCLUDED.detail_json,
			registration_status = COALESCE(products_origin.registration_status, 1),
			r_cat_id = EXCLUDED.r_cat_id,
			created_at = LEAST(products_origin.created_at, EXCLUDED.created_at),
			updated_at = EXCLUDED.updated_at`

	now := time.Now().UTC()
	for i := range products {
		p := &products[i]
		if p.ProductID == "" || !p.HasTitle() {
			result.Skipped = append(result.Skipped, p.ProductID)
			continue
		}

		detailJSON, err := marshalNullable(p.DetailJSON)
		if err != nil {
			return nil, fmt.Errorf("marshal detail_json for %s: %w", p.ProductID, err)
		}
		rCatJSON, err := marshalStringArray(p.RCatID)
		if err != nil {
			return nil, fmt.Errorf("marshal r_cat_id for %s: %w", p.ProductID, err)
		}

		status := p.RegistrationStatus
		if status == 0 {
			status = domain.RegistrationUnregistered
		}
		createdAt := p.CreatedAt
		if createdAt.IsZero() {
			createdAt = now
		}

		if _, err := tx.Exec(ctx, query,
			p.ProductID,
			p.TitleC,
			p.TitleT,
			p.MainCategory,
			p.MiddleCategory,
			p.ProductType,
			p.MonthlySales,
			p.WholesalePrice,
			p.Weight,
			p.Length,
			p.Width,
			p.Height,
			p.Size,
			p.CreationDate,
			p.RepurchaseRate,
			p.RatingScore,
			detailJSON,
			status,
			rCatJSON,
			createdAt,
			now,
		); err != nil {
			return nil, fmt.Errorf("upsert origin product %s: %w", p.ProductID, err)
		}
		result.Upserted++
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}

	return result, nil
}

// GetByProductID retrieves an origin product by its upstream id.
func (r *OriginProductRepository) GetByProductID(ctx context.Context, productID string) (*domain.OriginProduct, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM products_origin
		WHERE product_id = $1`, originColumns)

	p, err := scanOrigin(r.pool.QueryRow(ctx, query, productID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("origin product", productID)
		}
		return nil, fmt.Errorf("scan origin product: %w", err)
	}
	return p, nil
}

// ListByProductIDs retrieves the origin products for the given ids.
func (r *OriginProductRepository) ListByProductIDs(ctx context.Context, productIDs []string) ([]domain.OriginProduct, error) {
	if len(productIDs) == 0 {
		return []domain.OriginProduct{}, nil
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM products_origin
		WHERE product_id = ANY($1)
		ORDER BY id`, originColumns)

	rows, err := r.pool.Query(ctx, query, productIDs)
	if err != nil {
		return nil, fmt.Errorf("list origin products by ids: %w", err)
	}
	defer rows.Close()

	products := make([]domain.OriginProduct, 0, len(productIDs))
	for rows.Next() {
		p, err := scanOrigin(rows)
		if err != nil {
			return nil, fmt.Errorf("scan origin product row: %w", err)
		}
		products = append(products, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate origin product rows: %w", err)
	}

	return products, nil
}

// List returns origin products matching the given filter with the total count.
func (r *OriginProductRepository) List(ctx context.Context, filter repository.OriginFilter) ([]domain.OriginProduct, int, error) {
	var (
		conditions []string
		args       []any
		argIndex   = 1
	)

	if filter.RegistrationStatus != nil {
		conditions = append(conditions, fmt.Sprintf("registration_status = $%d", argIndex))
		args = append(args, *filter.RegistrationStatus)
		argIndex++
	}

	if filter.MainCategory != nil {
		conditions = append(conditions, fmt.Sprintf("main_category = $%d", argIndex))
		args = append(args, *filter.MainCategory)
		argIndex++
	}

	if filter.MiddleCategory != nil {
		conditions = append(conditions, fmt.Sprintf("middle_category = $%d", argIndex))
		args = append(args, *filter.MiddleCategory)
		argIndex++
	}

	if filter.Search != nil {
		conditions = append(conditions, fmt.Sprintf("(title_c ILIKE $%d OR title_t ILIKE $%d)", argIndex, argIndex))
		args = append(args, "%"+*filter.Search+"%")
		argIndex++
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	// Use count(*) OVER() for total count in a single query.
	query := fmt.Sprintf(`
		SELECT %s,
			   count(*) OVER() AS total_count
		FROM products_origin
		%s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d`,
		originColumns, whereClause, argIndex, argIndex+1,
	)

	limit := filter.PerPage
	if limit <= 0 {
		limit = 20
	}
	offset := 0
	if filter.Page > 1 {
		offset = (filter.Page - 1) * limit
	}

	args = append(args, limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list origin products: %w", err)
	}
	defer rows.Close()

	var totalCount int
	products := make([]domain.OriginProduct, 0)

	for rows.Next() {
		p, err := scanOriginWithCount(rows, &totalCount)
		if err != nil {
			return nil, 0, fmt.Errorf("scan origin product row: %w", err)
		}
		products = append(products, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate origin product rows: %w", err)
	}

	return products, totalCount, nil
}

// SetRegistrationStatus sets the registration status for the given product ids.
func (r *OriginProductRepository) SetRegistrationStatus(ctx context.Context, productIDs []string, status int) (int64, error) {
	if !domain.IsValidRegistrationStatus(status) {
		return 0, apperrors.InvalidInput(fmt.Sprintf("invalid registration status %d", status))
	}
	if len(productIDs) == 0 {
		return 0, nil
	}

	query := `
		UPDATE products_origin
		SET registration_status = $1, updated_at = NOW()
		WHERE product_id = ANY($2)`

	ct, err := r.pool.Exec(ctx, query, status, productIDs)
	if err != nil {
		return 0, fmt.Errorf("set registration status: %w", err)
	}
	return ct.RowsAffected(), nil
}

// MarkPreviouslyRegistered flips registered rows to previously-registered.
func (r *OriginProductRepository) MarkPreviouslyRegistered(ctx context.Context, productIDs []string) (int64, error) {
	if len(productIDs) == 0 {
		return 0, nil
	}

	query := `
		UPDATE products_origin
		SET registration_status = $1, updated_at = NOW()
		WHERE product_id = ANY($2) AND registration_status = $3`

	ct, err := r.pool.Exec(ctx, query, domain.RegistrationPreviouslyRegistered, productIDs, domain.RegistrationRegistered)
	if err != nil {
		return 0, fmt.Errorf("mark previously registered: %w", err)
	}
	return ct.RowsAffected(), nil
}

// PropagateDimension bulk-updates one dimension column on member products.
func (r *OriginProductRepository) PropagateDimension(ctx context.Context, categoryIDs []string, field domain.DimensionField, value *float64) (int64, error) {
	if !domain.IsValidDimensionField(field) {
		return 0, apperrors.InvalidInput(fmt.Sprintf("invalid dimension field %q", field))
	}
	if len(categoryIDs) == 0 {
		return 0, nil
	}

	// The field name is interpolated, so it must come from the validated set.
	query := fmt.Sprintf(`
		UPDATE products_origin
		SET %s = $1, updated_at = NOW()
		WHERE main_category = ANY($2) OR middle_category = ANY($2)`, field)

	ct, err := r.pool.Exec(ctx, query, value, categoryIDs)
	if err != nil {
		return 0, fmt.Errorf("propagate dimension %s: %w", field, err)
	}
	return ct.RowsAffected(), nil
}

// SyncRakutenCategories writes the same rakuten id array into both product
// tables for every member product.
func (r *OriginProductRepository) SyncRakutenCategories(ctx context.Context, categoryIDs []string, rakutenIDs []string) (int64, error) {
	if len(categoryIDs) == 0 {
		return 0, nil
	}

	rCatJSON, err := marshalStringArray(rakutenIDs)
	if err != nil {
		return 0, fmt.Errorf("marshal rakuten ids: %w", err)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	originQuery := `
		UPDATE products_origin
		SET r_cat_id = $1, updated_at = NOW()
		WHERE main_category = ANY($2) OR middle_category = ANY($2)`

	originCT, err := tx.Exec(ctx, originQuery, rCatJSON, categoryIDs)
	if err != nil {
		return 0, fmt.Errorf("sync origin r_cat_id: %w", err)
	}

	canonicalQuery := `
		UPDATE product_management
		SET r_cat_id = $1, updated_at = NOW()
		WHERE main_category = ANY($2) OR middle_category = ANY($2)`

	canonicalCT, err := tx.Exec(ctx, canonicalQuery, rCatJSON, categoryIDs)
	if err != nil {
		return 0, fmt.Errorf("sync canonical r_cat_id: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit transaction: %w", err)
	}

	return originCT.RowsAffected() + canonicalCT.RowsAffected(), nil
}

// scanOrigin scans a full origin product row.
func scanOrigin(row pgx.Row) (*domain.OriginProduct, error) {
	return scanOriginInto(row, nil)
}

// scanOriginWithCount scans a full origin product row plus the windowed
// total count appended by list queries.
func scanOriginWithCount(row pgx.Row, totalCount *int) (*domain.OriginProduct, error) {
	return scanOriginInto(row, totalCount)
}

func scanOriginInto(row pgx.Row, totalCount *int) (*domain.OriginProduct, error) {
	var (
		p          domain.OriginProduct
		detailJSON []byte
		rCatJSON   []byte
	)

	dest := []any{
		&p.ID,
		&p.ProductID,
		&p.TitleC,
		&p.TitleT,
		&p.MainCategory,
		&p.MiddleCategory,
		&p.ProductType,
		&p.MonthlySales,
		&p.WholesalePrice,
		&p.Weight,
		&p.Length,
		&p.Width,
		&p.Height,
		&p.Size,
		&p.CreationDate,
		&p.RepurchaseRate,
		&p.RatingScore,
		&detailJSON,
		&p.RegistrationStatus,
		&rCatJSON,
		&p.CreatedAt,
		&p.UpdatedAt,
	}
	if totalCount != nil {
		dest = append(dest, totalCount)
	}

	if err := row.Scan(dest...); err != nil {
		return nil, err
	}

	if len(detailJSON) > 0 && string(detailJSON) != "null" {
		if err := json.Unmarshal(detailJSON, &p.DetailJSON); err != nil {
			return nil, fmt.Errorf("unmarshal detail_json: %w", err)
		}
	}
	if err := unmarshalStringArray(rCatJSON, &p.RCatID); err != nil {
		return nil, fmt.Errorf("unmarshal r_cat_id: %w", err)
	}

	return &p, nil
}

// marshalNullable marshals a map to JSON, mapping nil to SQL NULL.
func marshalNullable(m map[string]any) ([]byte, error) {
	if m == nil {
		return nil, nil
	}
	return json.Marshal(m)
}

// marshalStringArray marshals a string slice to JSON, mapping nil to the
// empty array so the column never stores a scalar or null.
func marshalStringArray(s []string) ([]byte, error) {
	if s == nil {
		s = []string{}
	}
	return json.Marshal(s)
}

// unmarshalStringArray fills dst from a JSON column, defaulting to the
// empty slice for NULL or empty input.
func unmarshalStringArray(b []byte, dst *[]string) error {
	if len(b) == 0 || string(b) == "null" {
		*dst = []string{}
		return nil
	}
	if err := json.Unmarshal(b, dst); err != nil {
		return err
	}
	if *dst == nil {
		*dst = []string{}
	}
	return nil
}

// isUniqueViolation checks if the error is a PostgreSQL unique constraint violation (SQLSTATE 23505).
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "23505")
}
