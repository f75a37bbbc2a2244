package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/utafrali/RelistGo/internal/domain"
	"github.com/utafrali/RelistGo/internal/translator"
)

// buildVariantSelectors converts the upstream specification axes into
// marketplace variant selectors: normalized ascii keys, Japanese
// display names and translated values under the 32-byte cap. Axes
// without any usable value are dropped.
func buildVariantSelectors(ctx context.Context, tr translator.Translator, specs []domain.GoodsSpec, logger *slog.Logger) []domain.VariantSelector {
	selectors := make([]domain.VariantSelector, 0, len(specs))
	keyCount := make(map[string]int, len(specs))

	for _, spec := range specs {
		keyT := strings.TrimSpace(spec.KeyT)
		if keyT == "" || len(spec.ValueT) == 0 {
			continue
		}

		key, displayName := resolveSelectorKey(ctx, tr, keyT, logger)
		keyCount[key]++
		if n := keyCount[key]; n > 1 {
			// Distinct upstream axes can normalize to the same key
			// (颜色 and 色 are both "color"); keys must stay unique.
			key = fmt.Sprintf("%s_%d", key, n)
		}

		values := translateSelectorValues(ctx, tr, key, spec.ValueT, logger)
		if len(values) == 0 {
			logger.WarnContext(ctx, "selector axis dropped, no usable values",
				slog.String("axis", keyT),
			)
			continue
		}

		selectors = append(selectors, domain.VariantSelector{
			Key:         key,
			DisplayName: displayName,
			Values:      values,
		})
	}

	return selectors
}

// resolveSelectorKey normalizes one axis name into its ascii key and
// Japanese display name. The normalization table wins; unknown axes go
// through the translator for the key, and the display name is machine
// translated only when the source is Chinese.
func resolveSelectorKey(ctx context.Context, tr translator.Translator, keyT string, logger *slog.Logger) (string, string) {
	if entry, ok := translator.LookupSelectorKey(keyT); ok {
		return entry.Key, entry.Display
	}

	key, err := tr.TranslateKeyToEnglish(ctx, keyT)
	if err != nil || key == "" {
		logger.WarnContext(ctx, "selector key normalization failed",
			slog.String("axis", keyT),
			slog.Any("error", err),
		)
		key = "option"
	}

	displayName := keyT
	lang, err := tr.DetectLanguage(ctx, keyT)
	if err != nil {
		logger.WarnContext(ctx, "selector language detection failed, keeping axis name",
			slog.String("axis", keyT),
			slog.Any("error", err),
		)
		return key, displayName
	}
	if lang == translator.LangChinese {
		if ja, err := tr.TranslateToJapanese(ctx, keyT); err != nil {
			logger.WarnContext(ctx, "selector display translation failed, keeping axis name",
				slog.String("axis", keyT),
				slog.Any("error", err),
			)
		} else if ja != "" {
			displayName = ja
		}
	}
	return key, displayName
}

// translateSelectorValues renders the axis values in Japanese, deduped
// and capped at the marketplace limit of 40 per selector.
func translateSelectorValues(ctx context.Context, tr translator.Translator, key string, raw []domain.GoodsSpecValue, logger *slog.Logger) []domain.SelectorValue {
	seen := make(map[string]struct{}, len(raw))
	values := make([]domain.SelectorValue, 0, len(raw))

	for i, v := range raw {
		name := strings.TrimSpace(v.Name)
		if name == "" {
			continue
		}
		if len(values) == domain.MaxSelectorValues {
			logger.WarnContext(ctx, "selector value cap reached, dropping remainder",
				slog.String("key", key),
				slog.Int("dropped", len(raw)-i),
			)
			break
		}

		out, err := tr.TranslateVariantValue(ctx, name, key, domain.MaxSelectorValueBytes)
		if err != nil {
			logger.WarnContext(ctx, "variant value translation failed, using cleaned original",
				slog.String("value", name),
				slog.Any("error", err),
			)
			out = translator.TruncateToBytes(translator.CleanTextForRakuten(name, true), domain.MaxSelectorValueBytes)
		}
		if out == "" {
			continue
		}
		if _, dup := seen[out]; dup {
			continue
		}
		seen[out] = struct{}{}
		values = append(values, domain.SelectorValue{DisplayValue: out})
	}

	return values
}
