package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Origin registration status values. The status is an integer column and
// only ever moves forward: an upsert never takes a registered row back to
// unregistered.
const (
	RegistrationUnregistered         = 1
	RegistrationRegistered           = 2
	RegistrationPreviouslyRegistered = 3
)

// OriginProduct is a raw harvested listing as returned by the upstream
// marketplace, before materialization into a Rakuten-ready form.
type OriginProduct struct {
	ID                 int64           `json:"id"`
	ProductID          string          `json:"product_id"`
	TitleC             string          `json:"title_c"`
	TitleT             string          `json:"title_t"`
	MainCategory       string          `json:"main_category"`
	MiddleCategory     string          `json:"middle_category"`
	ProductType        string          `json:"product_type"`
	MonthlySales       int64           `json:"monthly_sales"`
	WholesalePrice     decimal.Decimal `json:"wholesale_price"`
	Weight             float64         `json:"weight"`
	Length             *float64        `json:"length,omitempty"`
	Width              *float64        `json:"width,omitempty"`
	Height             *float64        `json:"height,omitempty"`
	Size               *int            `json:"size,omitempty"`
	CreationDate       string          `json:"creation_date"`
	RepurchaseRate     float64         `json:"repurchase_rate"`
	RatingScore        float64         `json:"rating_score"`
	DetailJSON         map[string]any  `json:"detail_json,omitempty"`
	RegistrationStatus int             `json:"registration_status"`
	RCatID             []string        `json:"r_cat_id"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
}

// ValidOriginSizes returns the parcel size classes the upstream uses.
func ValidOriginSizes() []int {
	return []int{30, 60, 80, 100}
}

// IsValidOriginSize checks whether the given size is a known parcel class.
func IsValidOriginSize(size int) bool {
	for _, s := range ValidOriginSizes() {
		if s == size {
			return true
		}
	}
	return false
}

// IsValidRegistrationStatus checks whether the given integer is a valid
// origin registration status.
func IsValidRegistrationStatus(status int) bool {
	switch status {
	case RegistrationUnregistered, RegistrationRegistered, RegistrationPreviouslyRegistered:
		return true
	}
	return false
}

// HasTitle reports whether the product carries at least one title in
// either language. Records without any title are rejected at upsert.
func (p *OriginProduct) HasTitle() bool {
	return p.TitleC != "" || p.TitleT != ""
}
