package service

import (
	"context"
	"log/slog"
	"strings"

	"github.com/utafrali/RelistGo/internal/domain"
	"github.com/utafrali/RelistGo/internal/repository"

	apperrors "github.com/utafrali/RelistGo/pkg/errors"
)

// ProductService reads and mutates materialized rows in the store.
// Marketplace-facing mutations live on RegistrationService.
type ProductService struct {
	canonical repository.CanonicalProductRepository
	origins   repository.OriginProductRepository
	logger    *slog.Logger
}

// NewProductService creates a product service.
func NewProductService(
	canonical repository.CanonicalProductRepository,
	origins repository.OriginProductRepository,
	logger *slog.Logger,
) *ProductService {
	return &ProductService{
		canonical: canonical,
		origins:   origins,
		logger:    logger,
	}
}

// ProductPage is one page of the canonical listing.
type ProductPage struct {
	Products []domain.CanonicalProduct `json:"products"`
	Total    int                       `json:"total"`
}

// OriginPage is one page of the origin listing.
type OriginPage struct {
	Products []domain.OriginProduct `json:"products"`
	Total    int                    `json:"total"`
}

// ListProducts returns one page of canonical products.
func (s *ProductService) ListProducts(ctx context.Context, filter repository.CanonicalFilter) (*ProductPage, error) {
	products, total, err := s.canonical.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	return &ProductPage{Products: products, Total: total}, nil
}

// GetProduct returns one canonical product by item number.
func (s *ProductService) GetProduct(ctx context.Context, itemNumber string) (*domain.CanonicalProduct, error) {
	itemNumber = strings.TrimSpace(itemNumber)
	if itemNumber == "" {
		return nil, apperrors.InvalidInput("item number is required")
	}
	return s.canonical.GetByItemNumber(ctx, itemNumber)
}

// ListOrigins returns one page of harvested origin products.
func (s *ProductService) ListOrigins(ctx context.Context, filter repository.OriginFilter) (*OriginPage, error) {
	products, total, err := s.origins.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	return &OriginPage{Products: products, Total: total}, nil
}

// GetOrigin returns one origin product by its upstream id.
func (s *ProductService) GetOrigin(ctx context.Context, productID string) (*domain.OriginProduct, error) {
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return nil, apperrors.InvalidInput("product id is required")
	}
	return s.origins.GetByProductID(ctx, productID)
}

// SetHidden toggles hide_item for the given items and returns how many
// rows changed. Rows already deleted or stopped on the marketplace are
// skipped by the store.
func (s *ProductService) SetHidden(ctx context.Context, itemNumbers []string, hidden bool) (int64, error) {
	if len(itemNumbers) == 0 {
		return 0, apperrors.InvalidInput("at least one item number is required")
	}

	updated, err := s.canonical.UpdateHideItem(ctx, itemNumbers, hidden)
	if err != nil {
		return 0, err
	}
	s.logger.InfoContext(ctx, "hide_item toggled",
		slog.Bool("hidden", hidden),
		slog.Int("requested", len(itemNumbers)),
		slog.Int64("updated", updated),
	)
	return updated, nil
}

// DeleteRows removes canonical rows from the store and flips their
// origin rows back to previously-registered. The marketplace listing,
// if any, is untouched; use RegistrationService.Delete for that.
func (s *ProductService) DeleteRows(ctx context.Context, itemNumbers []string) (int64, error) {
	if len(itemNumbers) == 0 {
		return 0, apperrors.InvalidInput("at least one item number is required")
	}

	deleted, err := s.canonical.Delete(ctx, itemNumbers)
	if err != nil {
		return 0, err
	}
	s.logger.InfoContext(ctx, "canonical rows deleted",
		slog.Int("requested", len(itemNumbers)),
		slog.Int64("deleted", deleted),
	)
	return deleted, nil
}

// RemoveImage drops one image from a product's stored list by exact
// location match.
func (s *ProductService) RemoveImage(ctx context.Context, itemNumber, location string) error {
	itemNumber = strings.TrimSpace(itemNumber)
	location = strings.TrimSpace(location)
	if itemNumber == "" {
		return apperrors.InvalidInput("item number is required")
	}
	if location == "" {
		return apperrors.InvalidInput("image location is required")
	}
	return s.canonical.RemoveImage(ctx, itemNumber, location)
}
