package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/utafrali/RelistGo/internal/domain"
	"github.com/utafrali/RelistGo/internal/event"
	"github.com/utafrali/RelistGo/internal/repository"

	apperrors "github.com/utafrali/RelistGo/pkg/errors"
)

// CategoryService manages category rows and pushes their dimension
// defaults and Rakuten mapping into member products.
type CategoryService struct {
	categories repository.CategoryRepository
	origins    repository.OriginProductRepository
	producer   *event.Producer
	logger     *slog.Logger
}

// NewCategoryService creates a category service.
func NewCategoryService(
	categories repository.CategoryRepository,
	origins repository.OriginProductRepository,
	producer *event.Producer,
	logger *slog.Logger,
) *CategoryService {
	return &CategoryService{
		categories: categories,
		origins:    origins,
		producer:   producer,
		logger:     logger,
	}
}

// PropagationResult counts the product rows touched by a category edit.
type PropagationResult struct {
	DimensionUpdates int64 `json:"dimension_updates"`
	RakutenIDSyncs   int64 `json:"rakuten_id_syncs"`
}

// CreateCategory validates and stores a new category.
func (s *CategoryService) CreateCategory(ctx context.Context, category *domain.Category) error {
	if err := validateCategory(category); err != nil {
		return err
	}
	if err := s.categories.Create(ctx, category); err != nil {
		return err
	}

	s.publishCategoryEvent(ctx, category, "created")
	s.logger.InfoContext(ctx, "category created",
		slog.Int64("category_id", category.ID),
		slog.String("name", category.CategoryName),
	)
	return nil
}

// GetCategory returns one category by id.
func (s *CategoryService) GetCategory(ctx context.Context, id int64) (*domain.Category, error) {
	return s.categories.GetByID(ctx, id)
}

// ListCategories returns all managed categories.
func (s *CategoryService) ListCategories(ctx context.Context) ([]domain.Category, error) {
	return s.categories.ListAll(ctx)
}

// UpdateCategory stores the edit and propagates it: every dimension the
// category now carries is bulk-written into member origin rows, and a
// provided Rakuten mapping is synced into both product tables.
func (s *CategoryService) UpdateCategory(ctx context.Context, category *domain.Category) (*PropagationResult, error) {
	if category.ID == 0 {
		return nil, apperrors.InvalidInput("category id is required")
	}
	if err := validateCategory(category); err != nil {
		return nil, err
	}
	if err := s.categories.Update(ctx, category); err != nil {
		return nil, err
	}

	result, err := s.propagate(ctx, category)
	if err != nil {
		return nil, err
	}

	s.publishCategoryEvent(ctx, category, "updated")
	s.logger.InfoContext(ctx, "category updated",
		slog.Int64("category_id", category.ID),
		slog.Int64("dimension_updates", result.DimensionUpdates),
		slog.Int64("rakuten_id_syncs", result.RakutenIDSyncs),
	)
	return result, nil
}

// DeleteCategory removes a category. Already-propagated product values
// are left in place.
func (s *CategoryService) DeleteCategory(ctx context.Context, id int64) error {
	category, err := s.categories.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.categories.Delete(ctx, id); err != nil {
		return err
	}

	s.publishCategoryEvent(ctx, category, "deleted")
	s.logger.InfoContext(ctx, "category deleted", slog.Int64("category_id", id))
	return nil
}

// CreatePrimaryCategory stores a new primary category.
func (s *CategoryService) CreatePrimaryCategory(ctx context.Context, category *domain.PrimaryCategory) error {
	if strings.TrimSpace(category.CategoryName) == "" {
		return apperrors.InvalidInput("category name is required")
	}
	return s.categories.CreatePrimary(ctx, category)
}

// ListPrimaryCategories returns all primary categories.
func (s *CategoryService) ListPrimaryCategories(ctx context.Context) ([]domain.PrimaryCategory, error) {
	return s.categories.ListPrimaries(ctx)
}

// DeletePrimaryCategory removes a primary category. Categories pointing
// at it keep their dangling reference; the store tolerates it.
func (s *CategoryService) DeletePrimaryCategory(ctx context.Context, id int64) error {
	return s.categories.DeletePrimary(ctx, id)
}

// propagate pushes the category's dimensions and Rakuten mapping into
// member products. A nil dimension means "not set" and is skipped; a
// nil rakuten id list means the mapping was not part of the edit.
func (s *CategoryService) propagate(ctx context.Context, category *domain.Category) (*PropagationResult, error) {
	result := &PropagationResult{}
	if len(category.CategoryIDs) == 0 {
		return result, nil
	}

	dims := []struct {
		field domain.DimensionField
		value *float64
	}{
		{domain.DimensionWeight, category.Weight},
		{domain.DimensionLength, category.Length},
		{domain.DimensionWidth, category.Width},
		{domain.DimensionHeight, category.Height},
		{domain.DimensionSize, sizeAsFloat(category.Size)},
	}
	for _, dim := range dims {
		if dim.value == nil {
			continue
		}
		n, err := s.origins.PropagateDimension(ctx, category.CategoryIDs, dim.field, dim.value)
		if err != nil {
			return nil, fmt.Errorf("propagate %s: %w", dim.field, err)
		}
		result.DimensionUpdates += n
	}

	if category.RakutenCategoryIDs != nil {
		n, err := s.origins.SyncRakutenCategories(ctx, category.CategoryIDs, category.RakutenCategoryIDs)
		if err != nil {
			return nil, fmt.Errorf("sync rakuten categories: %w", err)
		}
		result.RakutenIDSyncs = n
	}
	return result, nil
}

func (s *CategoryService) publishCategoryEvent(ctx context.Context, category *domain.Category, action string) {
	if err := s.producer.PublishCategoryUpdated(ctx, category, action); err != nil {
		s.logger.WarnContext(ctx, "category event not published",
			slog.Int64("category_id", category.ID),
			slog.String("action", action),
			slog.Any("error", err),
		)
	}
}

func validateCategory(category *domain.Category) error {
	if strings.TrimSpace(category.CategoryName) == "" {
		return apperrors.InvalidInput("category name is required")
	}
	if category.Size != nil && !domain.IsValidOriginSize(*category.Size) {
		return apperrors.InvalidInput(fmt.Sprintf("size %d is not a known parcel class", *category.Size))
	}
	return nil
}

func sizeAsFloat(size *int) *float64 {
	if size == nil {
		return nil
	}
	f := float64(*size)
	return &f
}
