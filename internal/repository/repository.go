package repository

import (
	"context"
	"time"

	"github.com/utafrali/RelistGo/internal/domain"
)

// OriginUpsertResult reports what a batch upsert actually did. Skipped
// holds the product ids (or empty strings for id-less records) rejected
// by per-record validation.
type OriginUpsertResult struct {
	Upserted int
	Skipped  []string
}

// OriginFilter defines filter criteria for listing origin products.
type OriginFilter struct {
	RegistrationStatus *int
	MainCategory       *string
	MiddleCategory     *string
	Search             *string
	Page               int
	PerPage            int
}

// OriginProductRepository defines persistence for raw harvested products.
type OriginProductRepository interface {
	// UpsertBatch validates and upserts harvested records keyed by
	// product_id. Existing rows keep their registration_status and the
	// earliest created_at; records failing validation are skipped, not
	// fatal.
	UpsertBatch(ctx context.Context, products []domain.OriginProduct) (*OriginUpsertResult, error)

	// GetByProductID retrieves one origin product by its upstream id.
	GetByProductID(ctx context.Context, productID string) (*domain.OriginProduct, error)

	// ListByProductIDs retrieves the origin products for the given ids,
	// in no particular order. Missing ids are simply absent.
	ListByProductIDs(ctx context.Context, productIDs []string) ([]domain.OriginProduct, error)

	// List returns origin products matching the filter with the total count.
	List(ctx context.Context, filter OriginFilter) ([]domain.OriginProduct, int, error)

	// SetRegistrationStatus sets the status for the given product ids and
	// returns the number of rows updated.
	SetRegistrationStatus(ctx context.Context, productIDs []string, status int) (int64, error)

	// MarkPreviouslyRegistered moves registered rows (status 2) to
	// previously-registered (status 3). Rows in any other status are left
	// alone.
	MarkPreviouslyRegistered(ctx context.Context, productIDs []string) (int64, error)

	// PropagateDimension bulk-updates one dimension column on every origin
	// product whose main or middle category is in categoryIDs.
	PropagateDimension(ctx context.Context, categoryIDs []string, field domain.DimensionField, value *float64) (int64, error)

	// SyncRakutenCategories writes the identical rakuten id array into
	// r_cat_id on both products_origin and product_management for every
	// product in the member categories.
	SyncRakutenCategories(ctx context.Context, categoryIDs []string, rakutenIDs []string) (int64, error)
}

// CanonicalFilter defines pagination and sorting for the canonical list.
type CanonicalFilter struct {
	Limit     int
	Offset    int
	SortBy    string // created_at | rakuten_registered_at
	SortOrder string // asc | desc
}

// CanonicalProductRepository defines persistence for Rakuten-ready rows.
type CanonicalProductRepository interface {
	// Upsert writes the materialized form keyed by item_number and, in the
	// same transaction, sets the matching origin row's registration_status
	// to registered. Marketplace status columns on an existing row are
	// preserved.
	Upsert(ctx context.Context, p *domain.CanonicalProduct) error

	// GetByItemNumber retrieves one canonical product.
	GetByItemNumber(ctx context.Context, itemNumber string) (*domain.CanonicalProduct, error)

	// List returns canonical products with the total count.
	List(ctx context.Context, filter CanonicalFilter) ([]domain.CanonicalProduct, int, error)

	// UpdateHideItem toggles hide_item for the given items and returns the
	// number of rows updated. Rows already deleted or stopped on the
	// marketplace are not touched.
	UpdateHideItem(ctx context.Context, itemNumbers []string, hidden bool) (int64, error)

	// Delete removes canonical rows and, in the same transaction, flips
	// matching origin rows from registered to previously-registered.
	// Returns the number of canonical rows deleted.
	Delete(ctx context.Context, itemNumbers []string) (int64, error)

	// RemoveImage deletes the image whose location exactly matches the
	// given location (after trimming surrounding whitespace) from the
	// stored image list.
	RemoveImage(ctx context.Context, itemNumber string, location string) error

	// SetRegistrationStatus updates rakuten_registration_status. Moving to
	// "true" stamps rakuten_registered_at, moving to "deleted" clears it,
	// any other move preserves it.
	SetRegistrationStatus(ctx context.Context, itemNumber string, status *string) error

	// SetImageRegistrationStatus updates image_registration_status.
	SetImageRegistrationStatus(ctx context.Context, itemNumber string, status string) error

	// SetInventoryRegistrationStatus updates inventory_registration_status.
	SetInventoryRegistrationStatus(ctx context.Context, itemNumber string, status string) error

	// UpdateRCatID replaces the rakuten category id array of one product.
	UpdateRCatID(ctx context.Context, itemNumber string, rCatID []string) error
}

// CategoryRepository defines persistence for category management.
type CategoryRepository interface {
	Create(ctx context.Context, category *domain.Category) error
	GetByID(ctx context.Context, id int64) (*domain.Category, error)
	Update(ctx context.Context, category *domain.Category) error
	Delete(ctx context.Context, id int64) error
	ListAll(ctx context.Context) ([]domain.Category, error)

	// GetByMemberCode finds the category whose category_ids contains the
	// given upstream category code.
	GetByMemberCode(ctx context.Context, code string) (*domain.Category, error)

	// RakutenCategoryMap returns upstream category code → rakuten category
	// ids for every managed category.
	RakutenCategoryMap(ctx context.Context) (map[string][]string, error)

	CreatePrimary(ctx context.Context, category *domain.PrimaryCategory) error
	ListPrimaries(ctx context.Context) ([]domain.PrimaryCategory, error)
	DeletePrimary(ctx context.Context, id int64) error
}

// SettingsRepository defines persistence for app settings.
type SettingsRepository interface {
	// GetPricingSettings loads the pricing settings singleton. When the
	// row is absent, defaults are returned. The second value lists unknown
	// keys found in the stored JSON so callers can log them.
	GetPricingSettings(ctx context.Context) (domain.PricingSettings, []string, error)

	// SavePricingSettings upserts the pricing settings singleton.
	SavePricingSettings(ctx context.Context, settings domain.PricingSettings) error
}

// UserRepository defines persistence for operator accounts.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	List(ctx context.Context) ([]domain.User, error)
	SetActive(ctx context.Context, id int64, active bool) error
	TouchLastLogin(ctx context.Context, id int64, at time.Time) error
}
