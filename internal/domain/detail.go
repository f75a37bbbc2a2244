package domain

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// NumberString accepts a JSON number or a numeric string and keeps the
// textual form. Upstream detail payloads are inconsistent about quoting
// prices and quantities.
type NumberString string

// UnmarshalJSON implements json.Unmarshaler.
func (n *NumberString) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" {
		*n = ""
		return nil
	}
	if len(s) > 0 && s[0] == '"' {
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*n = NumberString(strings.TrimSpace(v))
		return nil
	}
	*n = NumberString(s)
	return nil
}

// Decimal parses the value as a decimal, returning zero for empty input.
func (n NumberString) Decimal() (decimal.Decimal, error) {
	if n == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(string(n))
}

// Int parses the value as an integer, truncating any fraction. Returns
// zero when the value is empty or unparseable.
func (n NumberString) Int() int {
	if n == "" {
		return 0
	}
	if i, err := strconv.Atoi(string(n)); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(string(n), 64); err == nil {
		return int(f)
	}
	return 0
}

// String returns the raw textual form.
func (n NumberString) String() string {
	return string(n)
}

// GoodsSpec is one specification axis from the upstream detail payload.
type GoodsSpec struct {
	KeyT   string           `json:"keyT"`
	ValueT []GoodsSpecValue `json:"valueT"`
}

// GoodsSpecValue is one selectable value of a specification axis.
type GoodsSpecValue struct {
	Name string `json:"name"`
}

// GoodsInventoryEntry is one SKU row of the upstream inventory table.
// KeyT joins the per-axis values with the upstream separator.
type GoodsInventoryEntry struct {
	KeyT   string                `json:"keyT"`
	ValueT []GoodsInventoryValue `json:"valueT"`
}

// GoodsInventoryValue carries the SKU identity, unit price and stock of
// an inventory row.
type GoodsInventoryValue struct {
	SkuID        NumberString `json:"skuId"`
	Price        NumberString `json:"price"`
	AmountOnSale NumberString `json:"amountOnSale"`
}

// GoodsInfo is the subset of the upstream detail payload that
// materialization consumes.
type GoodsInfo struct {
	Specification  []GoodsSpec           `json:"specification"`
	GoodsInventory []GoodsInventoryEntry `json:"goodsInventory"`
	Images         []string              `json:"images"`
}

// ParseGoodsInfo extracts the goodsInfo subtree from a detail payload.
// An absent or null subtree yields an empty GoodsInfo, not an error.
func ParseGoodsInfo(detail map[string]any) (GoodsInfo, error) {
	var info GoodsInfo
	raw, ok := detail["goodsInfo"]
	if !ok || raw == nil {
		return info, nil
	}
	b, err := json.Marshal(raw)
	if err != nil {
		return info, err
	}
	if err := json.Unmarshal(b, &info); err != nil {
		return info, err
	}
	return info, nil
}

// DetailImageURLs collects the source image URLs from a detail payload,
// preferring the top-level images list over the goodsInfo one. String
// entries and {url|imgUrl|image: ...} objects are both accepted.
func DetailImageURLs(detail map[string]any) []string {
	for _, key := range []string{"images", "goodsInfo"} {
		raw, ok := detail[key]
		if !ok || raw == nil {
			continue
		}
		if key == "goodsInfo" {
			sub, ok := raw.(map[string]any)
			if !ok {
				continue
			}
			raw, ok = sub["images"]
			if !ok || raw == nil {
				continue
			}
		}
		items, ok := raw.([]any)
		if !ok {
			continue
		}
		urls := make([]string, 0, len(items))
		for _, item := range items {
			switch v := item.(type) {
			case string:
				if v != "" {
					urls = append(urls, v)
				}
			case map[string]any:
				for _, k := range []string{"url", "imgUrl", "image"} {
					if s, ok := v[k].(string); ok && s != "" {
						urls = append(urls, s)
						break
					}
				}
			}
		}
		if len(urls) > 0 {
			return urls
		}
	}
	return nil
}
