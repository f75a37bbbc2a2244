package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/utafrali/RelistGo/internal/domain"
	"github.com/utafrali/RelistGo/pkg/database"
)

// SettingsRepository implements repository.SettingsRepository using
// PostgreSQL. Settings live as JSON values in app_settings keyed by name.
type SettingsRepository struct {
	pool database.DBTX
}

// NewSettingsRepository creates a new PostgreSQL-backed settings repository.
func NewSettingsRepository(pool database.DBTX) *SettingsRepository {
	return &SettingsRepository{pool: pool}
}

// pricingSettingsFields is the set of recognized keys of the stored
// pricing settings JSON. Anything outside it is reported back to the
// caller for logging, not treated as an error.
var pricingSettingsFields = map[string]struct{}{
	"exchange_rate":               {},
	"profit_margin_percent":       {},
	"sales_commission_percent":    {},
	"currency":                    {},
	"domestic_shipping_costs":     {},
	"international_shipping_rate": {},
	"customs_duty_rate":           {},
}

// GetPricingSettings loads the pricing settings singleton, returning the
// defaults when no row exists. Unknown keys in the stored JSON are
// collected and returned so the caller can log them.
func (r *SettingsRepository) GetPricingSettings(ctx context.Context) (domain.PricingSettings, []string, error) {
	query := `SELECT value FROM app_settings WHERE key = $1`

	var raw []byte
	if err := r.pool.QueryRow(ctx, query, domain.PricingSettingsKey).Scan(&raw); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.DefaultPricingSettings(), nil, nil
		}
		return domain.PricingSettings{}, nil, fmt.Errorf("load pricing settings: %w", err)
	}

	settings := domain.DefaultPricingSettings()
	if err := json.Unmarshal(raw, &settings); err != nil {
		return domain.PricingSettings{}, nil, fmt.Errorf("unmarshal pricing settings: %w", err)
	}

	var all map[string]json.RawMessage
	if err := json.Unmarshal(raw, &all); err != nil {
		return domain.PricingSettings{}, nil, fmt.Errorf("unmarshal pricing settings keys: %w", err)
	}
	var unknown []string
	for key := range all {
		if _, ok := pricingSettingsFields[key]; !ok {
			unknown = append(unknown, key)
		}
	}
	sort.Strings(unknown)

	return settings, unknown, nil
}

// SavePricingSettings validates and upserts the pricing settings singleton.
func (r *SettingsRepository) SavePricingSettings(ctx context.Context, settings domain.PricingSettings) error {
	if err := settings.Validate(); err != nil {
		return err
	}

	value, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("marshal pricing settings: %w", err)
	}

	query := `
		INSERT INTO app_settings (key, value, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (key) DO UPDATE SET
			value = EXCLUDED.value,
			updated_at = EXCLUDED.updated_at`

	if _, err := r.pool.Exec(ctx, query, domain.PricingSettingsKey, value, time.Now().UTC()); err != nil {
		return fmt.Errorf("save pricing settings: %w", err)
	}

	return nil
}
