package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/utafrali/RelistGo/internal/domain"
	"github.com/utafrali/RelistGo/pkg/database"
	apperrors "github.com/utafrali/RelistGo/pkg/errors"
)

const categoryColumns = `id, category_name, category_ids, rakuten_category_ids, genre_id,
		primary_category_id, weight, length, width, height, size_option, size, attributes,
		created_at, updated_at`

// CategoryRepository implements repository.CategoryRepository using
// PostgreSQL.
type CategoryRepository struct {
	pool database.DBTX
}

// NewCategoryRepository creates a new PostgreSQL-backed category repository.
func NewCategoryRepository(pool database.DBTX) *CategoryRepository {
	return &CategoryRepository{pool: pool}
}

// Create inserts a new category row.
func (r *CategoryRepository) Create(ctx context.Context, category *domain.Category) error {
	if category.CategoryName == "" {
		return apperrors.InvalidInput("category_name must not be empty")
	}

	categoryIDs, rakutenIDs, attributes, err := marshalCategoryJSON(category)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO category_management (category_name, category_ids, rakuten_category_ids, genre_id,
			primary_category_id, weight, length, width, height, size_option, size, attributes,
			created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $13)
		RETURNING id, created_at, updated_at`

	now := time.Now().UTC()
	if err := r.pool.QueryRow(ctx, query,
		category.CategoryName,
		categoryIDs,
		rakutenIDs,
		category.GenreID,
		category.PrimaryCategoryID,
		category.Weight,
		category.Length,
		category.Width,
		category.Height,
		category.SizeOption,
		category.Size,
		attributes,
		now,
	).Scan(&category.ID, &category.CreatedAt, &category.UpdatedAt); err != nil {
		return fmt.Errorf("create category: %w", err)
	}

	return nil
}

// GetByID retrieves one category.
func (r *CategoryRepository) GetByID(ctx context.Context, id int64) (*domain.Category, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM category_management
		WHERE id = $1`, categoryColumns)

	c, err := scanCategory(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("category", fmt.Sprintf("%d", id))
		}
		return nil, fmt.Errorf("scan category: %w", err)
	}
	return c, nil
}

// Update replaces all mutable fields of a category.
func (r *CategoryRepository) Update(ctx context.Context, category *domain.Category) error {
	if category.CategoryName == "" {
		return apperrors.InvalidInput("category_name must not be empty")
	}

	categoryIDs, rakutenIDs, attributes, err := marshalCategoryJSON(category)
	if err != nil {
		return err
	}

	query := `
		UPDATE category_management
		SET category_name = $1,
		    category_ids = $2,
		    rakuten_category_ids = $3,
		    genre_id = $4,
		    primary_category_id = $5,
		    weight = $6,
		    length = $7,
		    width = $8,
		    height = $9,
		    size_option = $10,
		    size = $11,
		    attributes = $12,
		    updated_at = NOW()
		WHERE id = $13`

	ct, err := r.pool.Exec(ctx, query,
		category.CategoryName,
		categoryIDs,
		rakutenIDs,
		category.GenreID,
		category.PrimaryCategoryID,
		category.Weight,
		category.Length,
		category.Width,
		category.Height,
		category.SizeOption,
		category.Size,
		attributes,
		category.ID,
	)
	if err != nil {
		return fmt.Errorf("update category: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("category", fmt.Sprintf("%d", category.ID))
	}

	return nil
}

// Delete removes one category row.
func (r *CategoryRepository) Delete(ctx context.Context, id int64) error {
	ct, err := r.pool.Exec(ctx, `DELETE FROM category_management WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete category: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("category", fmt.Sprintf("%d", id))
	}
	return nil
}

// ListAll returns every category ordered by name.
func (r *CategoryRepository) ListAll(ctx context.Context) ([]domain.Category, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM category_management
		ORDER BY category_name, id`, categoryColumns)

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	categories := make([]domain.Category, 0)
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, fmt.Errorf("scan category row: %w", err)
		}
		categories = append(categories, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate category rows: %w", err)
	}

	return categories, nil
}

// GetByMemberCode finds the category whose category_ids contains the
// given upstream category code.
func (r *CategoryRepository) GetByMemberCode(ctx context.Context, code string) (*domain.Category, error) {
	if code == "" {
		return nil, apperrors.InvalidInput("category code must not be empty")
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM category_management
		WHERE category_ids @> $1
		ORDER BY id
		LIMIT 1`, categoryColumns)

	member, err := json.Marshal([]string{code})
	if err != nil {
		return nil, fmt.Errorf("marshal member code: %w", err)
	}

	c, err := scanCategory(r.pool.QueryRow(ctx, query, member))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("category for code", code)
		}
		return nil, fmt.Errorf("scan category: %w", err)
	}
	return c, nil
}

// RakutenCategoryMap returns upstream category code → rakuten category ids
// across every managed category. Later rows win on duplicate codes.
func (r *CategoryRepository) RakutenCategoryMap(ctx context.Context) (map[string][]string, error) {
	query := `
		SELECT category_ids, rakuten_category_ids
		FROM category_management
		ORDER BY id`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("load rakuten category map: %w", err)
	}
	defer rows.Close()

	result := make(map[string][]string)
	for rows.Next() {
		var codesJSON, rakutenJSON []byte
		if err := rows.Scan(&codesJSON, &rakutenJSON); err != nil {
			return nil, fmt.Errorf("scan rakuten category map row: %w", err)
		}

		var codes, rakutenIDs []string
		if err := unmarshalStringArray(codesJSON, &codes); err != nil {
			return nil, fmt.Errorf("unmarshal category_ids: %w", err)
		}
		if err := unmarshalStringArray(rakutenJSON, &rakutenIDs); err != nil {
			return nil, fmt.Errorf("unmarshal rakuten_category_ids: %w", err)
		}

		for _, code := range codes {
			result[code] = rakutenIDs
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rakuten category map rows: %w", err)
	}

	return result, nil
}

// CreatePrimary inserts a primary category row.
func (r *CategoryRepository) CreatePrimary(ctx context.Context, category *domain.PrimaryCategory) error {
	if category.CategoryName == "" {
		return apperrors.InvalidInput("category_name must not be empty")
	}

	defaultIDs, err := marshalStringArray(category.DefaultCategoryIDs)
	if err != nil {
		return fmt.Errorf("marshal default_category_ids: %w", err)
	}

	query := `
		INSERT INTO primary_category_management (category_name, default_category_ids, created_at, updated_at)
		VALUES ($1, $2, $3, $3)
		RETURNING id, created_at, updated_at`

	now := time.Now().UTC()
	if err := r.pool.QueryRow(ctx, query, category.CategoryName, defaultIDs, now).
		Scan(&category.ID, &category.CreatedAt, &category.UpdatedAt); err != nil {
		return fmt.Errorf("create primary category: %w", err)
	}

	return nil
}

// ListPrimaries returns every primary category ordered by name.
func (r *CategoryRepository) ListPrimaries(ctx context.Context) ([]domain.PrimaryCategory, error) {
	query := `
		SELECT id, category_name, default_category_ids, created_at, updated_at
		FROM primary_category_management
		ORDER BY category_name, id`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list primary categories: %w", err)
	}
	defer rows.Close()

	categories := make([]domain.PrimaryCategory, 0)
	for rows.Next() {
		var (
			c       domain.PrimaryCategory
			idsJSON []byte
		)
		if err := rows.Scan(&c.ID, &c.CategoryName, &idsJSON, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan primary category row: %w", err)
		}
		if err := unmarshalStringArray(idsJSON, &c.DefaultCategoryIDs); err != nil {
			return nil, fmt.Errorf("unmarshal default_category_ids: %w", err)
		}
		categories = append(categories, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate primary category rows: %w", err)
	}

	return categories, nil
}

// DeletePrimary removes one primary category row. Member categories keep
// their rows; the foreign key nulls out on delete.
func (r *CategoryRepository) DeletePrimary(ctx context.Context, id int64) error {
	ct, err := r.pool.Exec(ctx, `DELETE FROM primary_category_management WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete primary category: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("primary category", fmt.Sprintf("%d", id))
	}
	return nil
}

// marshalCategoryJSON bundles the JSON column encoding shared by Create
// and Update.
func marshalCategoryJSON(category *domain.Category) (categoryIDs, rakutenIDs, attributes []byte, err error) {
	if categoryIDs, err = marshalStringArray(category.CategoryIDs); err != nil {
		return nil, nil, nil, fmt.Errorf("marshal category_ids: %w", err)
	}
	if rakutenIDs, err = marshalStringArray(category.RakutenCategoryIDs); err != nil {
		return nil, nil, nil, fmt.Errorf("marshal rakuten_category_ids: %w", err)
	}
	attrs := category.Attributes
	if attrs == nil {
		attrs = []domain.CategoryAttribute{}
	}
	if attributes, err = json.Marshal(attrs); err != nil {
		return nil, nil, nil, fmt.Errorf("marshal attributes: %w", err)
	}
	return categoryIDs, rakutenIDs, attributes, nil
}

// scanCategory scans a full category row.
func scanCategory(row pgx.Row) (*domain.Category, error) {
	var (
		c              domain.Category
		categoryIDs    []byte
		rakutenIDs     []byte
		attributesJSON []byte
	)

	if err := row.Scan(
		&c.ID,
		&c.CategoryName,
		&categoryIDs,
		&rakutenIDs,
		&c.GenreID,
		&c.PrimaryCategoryID,
		&c.Weight,
		&c.Length,
		&c.Width,
		&c.Height,
		&c.SizeOption,
		&c.Size,
		&attributesJSON,
		&c.CreatedAt,
		&c.UpdatedAt,
	); err != nil {
		return nil, err
	}

	if err := unmarshalStringArray(categoryIDs, &c.CategoryIDs); err != nil {
		return nil, fmt.Errorf("unmarshal category_ids: %w", err)
	}
	if err := unmarshalStringArray(rakutenIDs, &c.RakutenCategoryIDs); err != nil {
		return nil, fmt.Errorf("unmarshal rakuten_category_ids: %w", err)
	}
	if len(attributesJSON) > 0 && string(attributesJSON) != "null" {
		if err := json.Unmarshal(attributesJSON, &c.Attributes); err != nil {
			return nil, fmt.Errorf("unmarshal attributes: %w", err)
		}
	}
	if c.Attributes == nil {
		c.Attributes = []domain.CategoryAttribute{}
	}

	return &c, nil
}
