package service

import (
	"context"
	"log/slog"

	"github.com/utafrali/RelistGo/internal/domain"
	"github.com/utafrali/RelistGo/internal/repository"

	apperrors "github.com/utafrali/RelistGo/pkg/errors"
)

// SettingsService manages the pricing settings singleton.
type SettingsService struct {
	settings repository.SettingsRepository
	logger   *slog.Logger
}

// NewSettingsService creates a settings service.
func NewSettingsService(settings repository.SettingsRepository, logger *slog.Logger) *SettingsService {
	return &SettingsService{settings: settings, logger: logger}
}

// GetPricingSettings returns the stored pricing settings, or the
// defaults when none were saved yet. Unknown keys in the stored JSON
// are kept in the row but logged so schema drift is visible.
func (s *SettingsService) GetPricingSettings(ctx context.Context) (domain.PricingSettings, error) {
	settings, unknown, err := s.settings.GetPricingSettings(ctx)
	if err != nil {
		return domain.PricingSettings{}, err
	}
	if len(unknown) > 0 {
		s.logger.WarnContext(ctx, "pricing settings carry unknown keys",
			slog.Any("keys", unknown),
		)
	}
	return settings, nil
}

// UpdatePricingSettings validates and stores new pricing settings.
func (s *SettingsService) UpdatePricingSettings(ctx context.Context, settings domain.PricingSettings) error {
	if err := settings.Validate(); err != nil {
		return apperrors.InvalidInput(err.Error())
	}
	if err := s.settings.SavePricingSettings(ctx, settings); err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "pricing settings updated",
		slog.Float64("exchange_rate", settings.ExchangeRate),
		slog.Float64("profit_margin_percent", settings.ProfitMarginPercent),
		slog.Float64("sales_commission_percent", settings.SalesCommissionPercent),
	)
	return nil
}
