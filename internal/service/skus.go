package service

import (
	"context"
	"log/slog"
	"strings"

	"github.com/utafrali/RelistGo/internal/domain"
	"github.com/utafrali/RelistGo/internal/translator"
)

// skuSeparator joins per-axis values in upstream inventory keys
// ("黑色㊖㊎M" is the black/M cell).
const skuSeparator = "㊖㊎"

// maxVariantsPerItem is the marketplace cap on variants per listing.
const maxVariantsPerItem = 400

// inventorySKU is one upstream inventory row resolved against the
// selector axes.
type inventorySKU struct {
	SkuID          string
	Price          domain.NumberString
	AmountOnSale   int
	SelectorValues map[string]string
}

// resolveInventory parses the upstream inventory rows and maps each
// onto selector display values. Rows without a SKU id are dropped.
func resolveInventory(ctx context.Context, tr translator.Translator, selectors []domain.VariantSelector, entries []domain.GoodsInventoryEntry, logger *slog.Logger) []inventorySKU {
	skus := make([]inventorySKU, 0, len(entries))
	for _, entry := range entries {
		if len(entry.ValueT) == 0 {
			continue
		}
		val := entry.ValueT[0]
		skuID := strings.TrimSpace(val.SkuID.String())
		if skuID == "" {
			logger.DebugContext(ctx, "inventory row without sku id skipped",
				slog.String("key", entry.KeyT),
			)
			continue
		}

		tokens := translateSKUTokens(ctx, tr, selectors, splitSKUKey(entry.KeyT))
		skus = append(skus, inventorySKU{
			SkuID:          skuID,
			Price:          val.Price,
			AmountOnSale:   val.AmountOnSale.Int(),
			SelectorValues: resolveTokenValues(selectors, tokens),
		})
	}
	return skus
}

// splitSKUKey breaks an inventory key into its per-axis tokens.
func splitSKUKey(keyT string) []string {
	parts := strings.Split(keyT, skuSeparator)
	tokens := make([]string, 0, len(parts))
	for _, part := range parts {
		tokens = append(tokens, strings.Fields(part)...)
	}
	return tokens
}

// translateSKUTokens renders the tokens the same way the selector
// values were rendered, so matching compares like with like. Tokens are
// aligned positionally with the axes for the size/color context.
func translateSKUTokens(ctx context.Context, tr translator.Translator, selectors []domain.VariantSelector, tokens []string) []string {
	out := make([]string, len(tokens))
	for i, tok := range tokens {
		key := ""
		if i < len(selectors) {
			key = selectors[i].Key
		}
		translated, err := tr.TranslateVariantValue(ctx, tok, key, domain.MaxSelectorValueBytes)
		if err != nil || translated == "" {
			translated = tok
		}
		out[i] = translated
	}
	return out
}

// resolveTokenValues assigns one display value per selector. Each
// selector claims the best-matching unclaimed token; selectors left
// without a match fall back to their first value.
func resolveTokenValues(selectors []domain.VariantSelector, tokens []string) map[string]string {
	claimed := make([]bool, len(tokens))
	out := make(map[string]string, len(selectors))
	for _, sel := range selectors {
		value, idx := matchSelectorValue(sel, tokens, claimed)
		if idx >= 0 {
			claimed[idx] = true
		}
		if value == "" && len(sel.Values) > 0 {
			value = sel.Values[0].DisplayValue
		}
		out[sel.Key] = value
	}
	return out
}

// matchSelectorValue finds the selector value matching any unclaimed
// token, trying exact equality, then case/space-insensitive equality,
// then substring containment in either direction.
func matchSelectorValue(sel domain.VariantSelector, tokens []string, claimed []bool) (string, int) {
	stages := []func(value, token string) bool{
		func(v, t string) bool { return v == t },
		func(v, t string) bool { return foldToken(v) == foldToken(t) },
		func(v, t string) bool { return strings.Contains(v, t) || strings.Contains(t, v) },
	}
	for _, match := range stages {
		for i, token := range tokens {
			if claimed[i] || token == "" {
				continue
			}
			for _, val := range sel.Values {
				if match(val.DisplayValue, token) {
					return val.DisplayValue, i
				}
			}
		}
	}
	return "", -1
}

// foldToken lowercases and strips whitespace for loose comparison.
func foldToken(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), ""))
}

// comboKey canonicalizes a selector-value combination for lookup.
func comboKey(selectors []domain.VariantSelector, values map[string]string) string {
	parts := make([]string, len(selectors))
	for i, sel := range selectors {
		parts[i] = values[sel.Key]
	}
	return strings.Join(parts, "\x1f")
}

// cartesianCombos enumerates every selector-value combination in
// selector order, capped at the marketplace variant limit.
func cartesianCombos(selectors []domain.VariantSelector, logger *slog.Logger) []map[string]string {
	if len(selectors) == 0 {
		return nil
	}

	total := 1
	for _, sel := range selectors {
		total *= len(sel.Values)
	}
	capped := total
	if capped > maxVariantsPerItem {
		capped = maxVariantsPerItem
		logger.Warn("selector cartesian exceeds variant cap, truncating",
			slog.Int("combinations", total),
			slog.Int("cap", maxVariantsPerItem),
		)
	}

	combos := make([]map[string]string, 0, capped)
	idx := make([]int, len(selectors))
	for len(combos) < capped {
		combo := make(map[string]string, len(selectors))
		for i, sel := range selectors {
			combo[sel.Key] = sel.Values[idx[i]].DisplayValue
		}
		combos = append(combos, combo)

		i := len(selectors) - 1
		for ; i >= 0; i-- {
			idx[i]++
			if idx[i] < len(selectors[i].Values) {
				break
			}
			idx[i] = 0
		}
		if i < 0 {
			break
		}
	}
	return combos
}
