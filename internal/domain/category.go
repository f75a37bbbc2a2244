package domain

import (
	"time"
)

// DimensionField names an OriginProduct column that category edits
// propagate into.
type DimensionField string

// Propagatable dimension fields.
const (
	DimensionWeight DimensionField = "weight"
	DimensionLength DimensionField = "length"
	DimensionWidth  DimensionField = "width"
	DimensionHeight DimensionField = "height"
	DimensionSize   DimensionField = "size"
)

// ValidDimensionFields returns the set of propagatable dimension fields.
func ValidDimensionFields() []DimensionField {
	return []DimensionField{DimensionWeight, DimensionLength, DimensionWidth, DimensionHeight, DimensionSize}
}

// IsValidDimensionField checks whether the given field may be propagated.
func IsValidDimensionField(field DimensionField) bool {
	for _, f := range ValidDimensionFields() {
		if f == field {
			return true
		}
	}
	return false
}

// Category groups upstream category codes under one management row and
// carries the Rakuten mapping plus the dimension defaults propagated to
// member products.
type Category struct {
	ID                 int64               `json:"id"`
	CategoryName       string              `json:"category_name"`
	CategoryIDs        []string            `json:"category_ids"`
	RakutenCategoryIDs []string            `json:"rakuten_category_ids"`
	GenreID            string              `json:"genre_id"`
	PrimaryCategoryID  *int64              `json:"primary_category_id,omitempty"`
	Weight             *float64            `json:"weight,omitempty"`
	Length             *float64            `json:"length,omitempty"`
	Width              *float64            `json:"width,omitempty"`
	Height             *float64            `json:"height,omitempty"`
	SizeOption         *string             `json:"size_option,omitempty"`
	Size               *int                `json:"size,omitempty"`
	Attributes         []CategoryAttribute `json:"attributes"`
	CreatedAt          time.Time           `json:"created_at"`
	UpdatedAt          time.Time           `json:"updated_at"`
}

// CategoryAttribute is a default attribute applied to variants of member
// products.
type CategoryAttribute struct {
	Name   string   `json:"name"`
	Values []string `json:"values"`
}

// PrimaryCategory is a top-level grouping with its default member codes.
type PrimaryCategory struct {
	ID                 int64     `json:"id"`
	CategoryName       string    `json:"category_name"`
	DefaultCategoryIDs []string  `json:"default_category_ids"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// DefaultVariantAttributes returns the attribute list applied when no
// category carries the product's middle category code.
func DefaultVariantAttributes() []CategoryAttribute {
	return []CategoryAttribute{
		{Name: "カラー", Values: []string{"その他"}},
		{Name: "素材", Values: []string{"その他"}},
	}
}
