package service

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/utafrali/RelistGo/internal/domain"
	"github.com/utafrali/RelistGo/internal/repository"
)

func TestExportProducts_WritesWorkbook(t *testing.T) {
	registeredAt := time.Date(2025, 11, 3, 9, 30, 0, 0, time.UTC)
	products := []domain.CanonicalProduct{
		{
			ItemNumber:                "712498123",
			Title:                     "コットンTシャツ 全2色",
			GenreID:                   "201198",
			SrcURL:                    "https://detail.1688.com/offer/712498123.html",
			RakutenRegistrationStatus: strPtr(domain.StatusRegistered),
			RakutenRegisteredAt:       timePtr(registeredAt),
			Variants: map[string]domain.Variant{
				"1": {StandardPrice: "990"},
				"2": {StandardPrice: "1200"},
			},
		},
		{
			ItemNumber: "712498124",
			Title:      "リネンシャツ",
			GenreID:    "201198",
			Variants: map[string]domain.Variant{
				"901": {StandardPrice: "990"},
			},
		},
	}

	canonical := &mockCanonicalRepo{}
	canonical.On("List", mock.Anything, repository.CanonicalFilter{
		Limit:     exportPageSize,
		Offset:    0,
		SortBy:    "created_at",
		SortOrder: "asc",
	}).Return(products, len(products), nil)

	svc := NewExportService(canonical, newTestLogger())

	var buf bytes.Buffer
	exported, err := svc.ExportProducts(context.Background(), &buf)
	require.NoError(t, err)
	assert.Equal(t, 2, exported)

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("商品一覧")
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, []string{
		"商品管理番号", "商品名", "販売価格", "登録状態", "楽天登録日時", "ジャンルID", "仕入元URL",
	}, rows[0])
	assert.Equal(t, []string{
		"712498123", "コットンTシャツ 全2色", "990-1200", "true",
		"2025-11-03 09:30:00", "201198", "https://detail.1688.com/offer/712498123.html",
	}, rows[1])
	assert.Equal(t, "712498124", rows[2][0])
	assert.Equal(t, "990", rows[2][2])
}

func TestExportProducts_PagesThroughStore(t *testing.T) {
	first := make([]domain.CanonicalProduct, exportPageSize)
	for i := range first {
		first[i] = domain.CanonicalProduct{ItemNumber: "a"}
	}
	second := []domain.CanonicalProduct{{ItemNumber: "z"}}
	total := exportPageSize + 1

	canonical := &mockCanonicalRepo{}
	canonical.On("List", mock.Anything, mock.MatchedBy(func(f repository.CanonicalFilter) bool {
		return f.Offset == 0
	})).Return(first, total, nil)
	canonical.On("List", mock.Anything, mock.MatchedBy(func(f repository.CanonicalFilter) bool {
		return f.Offset == exportPageSize
	})).Return(second, total, nil)

	svc := NewExportService(canonical, newTestLogger())

	var buf bytes.Buffer
	exported, err := svc.ExportProducts(context.Background(), &buf)

	require.NoError(t, err)
	assert.Equal(t, total, exported)
	canonical.AssertNumberOfCalls(t, "List", 2)
}

func TestPriceRange_RendersSpread(t *testing.T) {
	cases := []struct {
		name     string
		variants map[string]domain.Variant
		want     string
	}{
		{"single price", map[string]domain.Variant{"1": {StandardPrice: "990"}}, "990"},
		{"spread", map[string]domain.Variant{
			"1": {StandardPrice: "1200"},
			"2": {StandardPrice: "990"},
		}, "990-1200"},
		{"unparseable skipped", map[string]domain.Variant{
			"1": {StandardPrice: "n/a"},
			"2": {StandardPrice: "990"},
		}, "990"},
		{"no variants", nil, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, priceRange(tc.variants))
		})
	}
}
