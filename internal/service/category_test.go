package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/RelistGo/internal/domain"

	apperrors "github.com/utafrali/RelistGo/pkg/errors"
)

func newCategoryService(categories *mockCategoryRepo, origins *mockOriginRepo) *CategoryService {
	return NewCategoryService(categories, origins, noopProducer(), newTestLogger())
}

func floatMatches(want float64) any {
	return mock.MatchedBy(func(v *float64) bool {
		return v != nil && *v == want
	})
}

func TestCreateCategory_RejectsInvalidInput(t *testing.T) {
	cases := []struct {
		name     string
		category *domain.Category
	}{
		{"empty name", &domain.Category{CategoryName: "   "}},
		{"unknown parcel size", &domain.Category{CategoryName: "アパレル", Size: intPtr(55)}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			categories := &mockCategoryRepo{}
			svc := newCategoryService(categories, &mockOriginRepo{})

			err := svc.CreateCategory(context.Background(), tc.category)

			assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
			categories.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
		})
	}
}

func TestCreateCategory_StoresValidCategory(t *testing.T) {
	categories := &mockCategoryRepo{}
	categories.On("Create", mock.Anything, mock.Anything).Return(nil)
	svc := newCategoryService(categories, &mockOriginRepo{})

	err := svc.CreateCategory(context.Background(), &domain.Category{
		CategoryName: "トップス",
		Size:         intPtr(60),
	})

	require.NoError(t, err)
	categories.AssertExpectations(t)
}

func TestUpdateCategory_RequiresID(t *testing.T) {
	svc := newCategoryService(&mockCategoryRepo{}, &mockOriginRepo{})

	_, err := svc.UpdateCategory(context.Background(), &domain.Category{CategoryName: "トップス"})

	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestUpdateCategory_PropagatesOnlySetDimensions(t *testing.T) {
	category := &domain.Category{
		ID:           3,
		CategoryName: "トップス",
		CategoryIDs:  []string{"cat-a", "cat-b"},
		Weight:       floatPtr(0.8),
		Size:         intPtr(60),
		// Length, Width, Height stay nil: not part of this edit.
	}

	categories := &mockCategoryRepo{}
	categories.On("Update", mock.Anything, category).Return(nil)

	origins := &mockOriginRepo{}
	origins.On("PropagateDimension", mock.Anything, category.CategoryIDs, domain.DimensionWeight, floatMatches(0.8)).
		Return(int64(4), nil)
	origins.On("PropagateDimension", mock.Anything, category.CategoryIDs, domain.DimensionSize, floatMatches(60)).
		Return(int64(3), nil)

	svc := newCategoryService(categories, origins)
	result, err := svc.UpdateCategory(context.Background(), category)

	require.NoError(t, err)
	assert.Equal(t, int64(7), result.DimensionUpdates)
	assert.Equal(t, int64(0), result.RakutenIDSyncs)
	origins.AssertNumberOfCalls(t, "PropagateDimension", 2)
	origins.AssertNotCalled(t, "SyncRakutenCategories", mock.Anything, mock.Anything, mock.Anything)
}

func TestUpdateCategory_SyncsRakutenMappingWhenProvided(t *testing.T) {
	// An empty, non-nil list is a deliberate clear and must reach the
	// store; only a nil list means the mapping was not edited.
	category := &domain.Category{
		ID:                 9,
		CategoryName:       "トップス",
		CategoryIDs:        []string{"cat-a"},
		RakutenCategoryIDs: []string{},
	}

	categories := &mockCategoryRepo{}
	categories.On("Update", mock.Anything, category).Return(nil)

	origins := &mockOriginRepo{}
	origins.On("SyncRakutenCategories", mock.Anything, category.CategoryIDs, []string{}).
		Return(int64(5), nil)

	svc := newCategoryService(categories, origins)
	result, err := svc.UpdateCategory(context.Background(), category)

	require.NoError(t, err)
	assert.Equal(t, int64(0), result.DimensionUpdates)
	assert.Equal(t, int64(5), result.RakutenIDSyncs)
	origins.AssertNotCalled(t, "PropagateDimension", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestUpdateCategory_NoMembersSkipsPropagation(t *testing.T) {
	category := &domain.Category{
		ID:                 4,
		CategoryName:       "トップス",
		Weight:             floatPtr(1.2),
		RakutenCategoryIDs: []string{"407533"},
	}

	categories := &mockCategoryRepo{}
	categories.On("Update", mock.Anything, category).Return(nil)

	origins := &mockOriginRepo{}
	svc := newCategoryService(categories, origins)

	result, err := svc.UpdateCategory(context.Background(), category)

	require.NoError(t, err)
	assert.Zero(t, result.DimensionUpdates)
	assert.Zero(t, result.RakutenIDSyncs)
	origins.AssertNotCalled(t, "PropagateDimension", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	origins.AssertNotCalled(t, "SyncRakutenCategories", mock.Anything, mock.Anything, mock.Anything)
}

func TestDeleteCategory_FetchesThenDeletes(t *testing.T) {
	categories := &mockCategoryRepo{}
	categories.On("GetByID", mock.Anything, int64(11)).
		Return(&domain.Category{ID: 11, CategoryName: "トップス"}, nil)
	categories.On("Delete", mock.Anything, int64(11)).Return(nil)

	svc := newCategoryService(categories, &mockOriginRepo{})
	err := svc.DeleteCategory(context.Background(), 11)

	require.NoError(t, err)
	categories.AssertExpectations(t)
}

func TestDeleteCategory_MissingRowIsNotDeleted(t *testing.T) {
	categories := &mockCategoryRepo{}
	categories.On("GetByID", mock.Anything, int64(12)).
		Return(nil, apperrors.NotFound("category", "12"))

	svc := newCategoryService(categories, &mockOriginRepo{})
	err := svc.DeleteCategory(context.Background(), 12)

	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	categories.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
}

func TestCreatePrimaryCategory_RequiresName(t *testing.T) {
	categories := &mockCategoryRepo{}
	svc := newCategoryService(categories, &mockOriginRepo{})

	err := svc.CreatePrimaryCategory(context.Background(), &domain.PrimaryCategory{CategoryName: " "})

	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	categories.AssertNotCalled(t, "CreatePrimary", mock.Anything, mock.Anything)
}
