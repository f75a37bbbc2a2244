package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/utafrali/RelistGo/internal/domain"
	"github.com/utafrali/RelistGo/internal/repository"
)

// exportPageSize is how many canonical rows one repository read pulls
// while streaming an export.
const exportPageSize = 500

const exportSheet = "商品一覧"

var exportHeader = []any{
	"商品管理番号",
	"商品名",
	"販売価格",
	"登録状態",
	"楽天登録日時",
	"ジャンルID",
	"仕入元URL",
}

// ExportService renders the canonical product list as an XLSX workbook.
type ExportService struct {
	canonical repository.CanonicalProductRepository
	logger    *slog.Logger
}

// NewExportService creates an export service.
func NewExportService(canonical repository.CanonicalProductRepository, logger *slog.Logger) *ExportService {
	return &ExportService{canonical: canonical, logger: logger}
}

// ExportProducts streams every canonical product into an XLSX workbook
// written to w and returns the number of exported rows. Rows are read
// page by page sorted by creation time so the workbook is stable across
// runs.
func (s *ExportService) ExportProducts(ctx context.Context, w io.Writer) (int, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), exportSheet); err != nil {
		return 0, fmt.Errorf("name export sheet: %w", err)
	}
	sw, err := f.NewStreamWriter(exportSheet)
	if err != nil {
		return 0, fmt.Errorf("open stream writer: %w", err)
	}
	if err := sw.SetRow("A1", exportHeader); err != nil {
		return 0, fmt.Errorf("write header: %w", err)
	}

	exported := 0
	for offset := 0; ; offset += exportPageSize {
		if err := ctx.Err(); err != nil {
			return 0, err
		}

		products, total, err := s.canonical.List(ctx, repository.CanonicalFilter{
			Limit:     exportPageSize,
			Offset:    offset,
			SortBy:    "created_at",
			SortOrder: "asc",
		})
		if err != nil {
			return 0, fmt.Errorf("list products at offset %d: %w", offset, err)
		}

		for i := range products {
			cell, err := excelize.CoordinatesToCellName(1, exported+2)
			if err != nil {
				return 0, err
			}
			if err := sw.SetRow(cell, exportRow(&products[i])); err != nil {
				return 0, fmt.Errorf("write row for %s: %w", products[i].ItemNumber, err)
			}
			exported++
		}

		if offset+len(products) >= total || len(products) == 0 {
			break
		}
	}

	if err := sw.Flush(); err != nil {
		return 0, fmt.Errorf("flush stream writer: %w", err)
	}
	if err := f.Write(w); err != nil {
		return 0, fmt.Errorf("write workbook: %w", err)
	}

	s.logger.InfoContext(ctx, "product export written", slog.Int("rows", exported))
	return exported, nil
}

func exportRow(p *domain.CanonicalProduct) []any {
	registeredAt := ""
	if p.RakutenRegisteredAt != nil {
		registeredAt = p.RakutenRegisteredAt.In(time.UTC).Format("2006-01-02 15:04:05")
	}
	return []any{
		p.ItemNumber,
		p.Title,
		priceRange(p.Variants),
		domain.StatusString(p.RakutenRegistrationStatus),
		registeredAt,
		p.GenreID,
		p.SrcURL,
	}
}

// priceRange renders the variant price spread as "990" or "990-1200".
// Variants whose price never parsed are left out.
func priceRange(variants map[string]domain.Variant) string {
	min, max := 0, 0
	seen := false
	for _, v := range variants {
		price, err := strconv.Atoi(v.StandardPrice)
		if err != nil {
			continue
		}
		if !seen || price < min {
			min = price
		}
		if !seen || price > max {
			max = price
		}
		seen = true
	}
	switch {
	case !seen:
		return ""
	case min == max:
		return strconv.Itoa(min)
	default:
		return fmt.Sprintf("%d-%d", min, max)
	}
}
