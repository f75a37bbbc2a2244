package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Rakuten registration status values stored on the canonical row. The
// zero state is NULL (never registered). "true"/"false" record the last
// registration attempt; "onsale"/"stop"/"deleted" are reconciled from
// the marketplace.
const (
	StatusRegistered = "true"
	StatusFailed     = "false"
	StatusDeleted    = "deleted"
	StatusOnSale     = "onsale"
	StatusStopped    = "stop"
)

// Listing defaults applied during materialization.
const (
	ItemTypeNormal        = "NORMAL"
	ImageTypeCabinet      = "CABINET"
	DefaultGenreID        = "201198"
	InventoryModeAbsolute = "ABSOLUTE"

	// NormalDeliveryTimeID is the lead-time master the shop uses for
	// every imported variant.
	NormalDeliveryTimeID = 225554
)

// MaxSelectorValueBytes is the marketplace cap on a selector value in
// UTF-8 bytes.
const MaxSelectorValueBytes = 32

// MaxSelectorValues is the marketplace cap on values per selector.
const MaxSelectorValues = 40

// CanonicalProduct is the Rakuten-ready form of a harvested product,
// persisted in product_management and keyed by item number.
type CanonicalProduct struct {
	ID                          int64              `json:"id"`
	ItemNumber                  string             `json:"item_number"`
	Title                       string             `json:"title"`
	Tagline                     string             `json:"tagline"`
	ProductDescription          ProductDescription `json:"product_description"`
	SalesDescription            string             `json:"sales_description"`
	Images                      []Image            `json:"images"`
	VariantSelectors            []VariantSelector  `json:"variant_selectors"`
	Variants                    map[string]Variant `json:"variants"`
	Inventory                   Inventory          `json:"inventory"`
	Features                    Features           `json:"features"`
	Payment                     Payment            `json:"payment"`
	Layout                      Layout             `json:"layout"`
	HideItem                    bool               `json:"hide_item"`
	ItemType                    string             `json:"item_type"`
	UnlimitedInventoryFlag      bool               `json:"unlimited_inventory_flag"`
	Block                       bool               `json:"block"`
	GenreID                     string             `json:"genre_id"`
	RCatID                      []string           `json:"r_cat_id"`
	RakutenRegistrationStatus   *string            `json:"rakuten_registration_status"`
	ImageRegistrationStatus     *string            `json:"image_registration_status"`
	InventoryRegistrationStatus *string            `json:"inventory_registration_status"`
	RakutenRegisteredAt         *time.Time         `json:"rakuten_registered_at,omitempty"`
	ActualPurchasePrice         decimal.Decimal    `json:"actual_purchase_price"`
	ChangeStatus                string             `json:"change_status"`
	SrcURL                      string             `json:"src_url"`
	MainCategory                string             `json:"main_category"`
	MiddleCategory              string             `json:"middle_category"`
	ProductImageCode            string             `json:"product_image_code"`
	CreatedAt                   time.Time          `json:"created_at"`
	UpdatedAt                   time.Time          `json:"updated_at"`
}

// ProductDescription holds the PC and smartphone description bodies.
type ProductDescription struct {
	PC string `json:"pc"`
	SP string `json:"sp"`
}

// Image is one entry of the ordered image list sent to the marketplace.
type Image struct {
	Type     string `json:"type"`
	Location string `json:"location"`
	Alt      string `json:"alt,omitempty"`
}

// VariantSelector is one axis of product variation (color, size). Its
// values form one dimension of the SKU cartesian.
type VariantSelector struct {
	Key         string          `json:"key"`
	DisplayName string          `json:"displayName"`
	Values      []SelectorValue `json:"values"`
}

// SelectorValue is a single selectable value of a variant selector.
type SelectorValue struct {
	DisplayValue string `json:"displayValue"`
}

// Variant is one cell of the selector cartesian, keyed by the upstream
// SKU id in CanonicalProduct.Variants.
type Variant struct {
	SelectorValues       map[string]string  `json:"selectorValues,omitempty"`
	StandardPrice        string             `json:"standardPrice"`
	ArticleNumber        *ArticleNumber     `json:"articleNumber,omitempty"`
	Attributes           []VariantAttribute `json:"attributes,omitempty"`
	Shipping             *VariantShipping   `json:"shipping,omitempty"`
	Features             *VariantFeatures   `json:"features,omitempty"`
	NormalDeliveryDateID *int               `json:"normalDeliveryDateId,omitempty"`
}

// ArticleNumber carries the shop-side article code of a variant.
type ArticleNumber struct {
	Value string `json:"value"`
}

// VariantAttribute is a name/values pair attached to a variant, sourced
// from the category attribute defaults.
type VariantAttribute struct {
	Name   string   `json:"name"`
	Values []string `json:"values"`
}

// VariantShipping holds per-variant shipping overrides.
type VariantShipping struct {
	PostageIncluded *bool `json:"postageIncluded,omitempty"`
	ShipFromIDs     []int `json:"shipFromIds,omitempty"`
}

// VariantFeatures holds per-variant feature toggles.
type VariantFeatures struct {
	RestockNotification *bool `json:"restockNotification,omitempty"`
}

// Inventory is the inventory payload registered variant by variant.
type Inventory struct {
	ManageNumber string             `json:"manage_number"`
	Variants     []InventoryVariant `json:"variants"`
}

// InventoryVariant is one inventory upsert unit.
type InventoryVariant struct {
	VariantID         string             `json:"variant_id"`
	Quantity          int                `json:"quantity"`
	Mode              string             `json:"mode"`
	OperationLeadTime *OperationLeadTime `json:"operationLeadTime,omitempty"`
}

// OperationLeadTime references the shop's delivery lead-time master.
type OperationLeadTime struct {
	NormalDeliveryTimeID int `json:"normalDeliveryTimeId"`
}

// Features holds the listing-level feature block.
type Features struct {
	SearchVisibility     string `json:"searchVisibility,omitempty"`
	DisplayNormalCart    *bool  `json:"displayNormalCartButton,omitempty"`
	InventoryDisplay     string `json:"inventoryDisplay,omitempty"`
	LimitPurchaseCount   *int   `json:"limitPurchaseCount,omitempty"`
	DisplayManufacturer  *bool  `json:"displayManufacturerContents,omitempty"`
	ReviewVisibility     string `json:"review,omitempty"`
}

// Payment holds the listing-level payment block.
type Payment struct {
	TaxIncluded               bool    `json:"taxIncluded"`
	CashOnDeliveryFeeIncluded bool    `json:"cashOnDeliveryFeeIncluded"`
	TaxRate                   *string `json:"taxRate,omitempty"`
}

// Layout holds the listing-level page layout block.
type Layout struct {
	ItemLayoutID     int  `json:"itemLayoutId,omitempty"`
	NavigationID     *int `json:"navigationId,omitempty"`
	LayoutSequenceID int  `json:"layoutSequenceId,omitempty"`
}

// ValidRakutenStatuses returns the set of non-null registration statuses.
func ValidRakutenStatuses() []string {
	return []string{StatusRegistered, StatusFailed, StatusDeleted, StatusOnSale, StatusStopped}
}

// IsValidRakutenStatus checks whether the given status string is a valid
// non-null registration status.
func IsValidRakutenStatus(status string) bool {
	for _, s := range ValidRakutenStatuses() {
		if s == status {
			return true
		}
	}
	return false
}

// HideItemTogglable reports whether a row in the given status may have
// its hide_item flag toggled. Products already deleted or stopped on the
// marketplace are left alone.
func HideItemTogglable(status *string) bool {
	if status == nil {
		return true
	}
	switch *status {
	case "", StatusOnSale, StatusRegistered, StatusFailed:
		return true
	}
	return false
}

// StatusString renders a nullable status for display: the empty string
// stands in for NULL.
func StatusString(status *string) string {
	if status == nil {
		return ""
	}
	return *status
}
