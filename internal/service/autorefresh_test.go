package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/RelistGo/internal/repository"

	apperrors "github.com/utafrali/RelistGo/pkg/errors"
)

func TestAutoRefresher_StartRequiresPositiveInterval(t *testing.T) {
	harvest := newHarvest(new(mockHarvesterClient), new(mockOriginRepo), new(mockCategoryRepo))
	refresher := NewAutoRefresher(harvest, StaticKeywords([]string{"tシャツ"}), 0, 0, newTestLogger())

	err := refresher.Start()

	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestAutoRefresher_RefreshHarvestsEveryKeyword(t *testing.T) {
	client := new(mockHarvesterClient)
	origins := new(mockOriginRepo)
	categories := new(mockCategoryRepo)

	for _, keyword := range []string{"tシャツ", "シャツ"} {
		client.On("SearchByKeyword", mock.Anything, keyword, 1, DefaultRefreshPageSize).
			Return(searchPage(), nil)
	}
	categories.On("RakutenCategoryMap", mock.Anything).Return(map[string][]string{}, nil)
	origins.On("UpsertBatch", mock.Anything, mock.Anything).
		Return(&repository.OriginUpsertResult{}, nil)

	harvest := newHarvest(client, origins, categories)
	refresher := NewAutoRefresher(harvest, StaticKeywords([]string{"tシャツ", "シャツ"}), time.Hour, 0, newTestLogger())

	refresher.refresh(context.Background())

	client.AssertNumberOfCalls(t, "SearchByKeyword", 2)
}

func TestAutoRefresher_KeywordFailureDoesNotStopRun(t *testing.T) {
	client := new(mockHarvesterClient)
	origins := new(mockOriginRepo)
	categories := new(mockCategoryRepo)

	client.On("SearchByKeyword", mock.Anything, "tシャツ", 1, DefaultRefreshPageSize).
		Return(nil, apperrors.Upstream("rakumart", 503, "maintenance"))
	client.On("SearchByKeyword", mock.Anything, "シャツ", 1, DefaultRefreshPageSize).
		Return(searchPage(), nil)
	categories.On("RakutenCategoryMap", mock.Anything).Return(map[string][]string{}, nil)
	origins.On("UpsertBatch", mock.Anything, mock.Anything).
		Return(&repository.OriginUpsertResult{}, nil)

	harvest := newHarvest(client, origins, categories)
	refresher := NewAutoRefresher(harvest, StaticKeywords([]string{"tシャツ", "シャツ"}), time.Hour, 0, newTestLogger())

	refresher.refresh(context.Background())

	client.AssertNumberOfCalls(t, "SearchByKeyword", 2)
}

func TestAutoRefresher_KeywordProviderFailureSkipsRun(t *testing.T) {
	client := new(mockHarvesterClient)
	provider := func(context.Context) ([]string, error) {
		return nil, errors.New("keyword table unavailable")
	}

	harvest := newHarvest(client, new(mockOriginRepo), new(mockCategoryRepo))
	refresher := NewAutoRefresher(harvest, provider, time.Hour, 0, newTestLogger())

	refresher.refresh(context.Background())

	client.AssertNotCalled(t, "SearchByKeyword", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestAutoRefresher_StartAndStop(t *testing.T) {
	harvest := newHarvest(new(mockHarvesterClient), new(mockOriginRepo), new(mockCategoryRepo))
	refresher := NewAutoRefresher(harvest, StaticKeywords(nil), time.Hour, 0, newTestLogger())

	require.NoError(t, refresher.Start())
	refresher.Stop()
}
