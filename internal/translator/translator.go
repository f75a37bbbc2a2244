package translator

import (
	"context"
	"log/slog"
	"strings"
	"unicode"

	"github.com/utafrali/RelistGo/internal/domain"

	apperrors "github.com/utafrali/RelistGo/pkg/errors"
)

// Normalized language codes used across the service.
const (
	LangJapanese = "ja"
	LangChinese  = "zh"
	LangEnglish  = "en"
)

// defaultSelectorKey is used when nothing usable survives key
// normalization (rare, seen with emoji-only axis names).
const defaultSelectorKey = "option"

// Translator converts upstream product text into Rakuten-ready
// Japanese and selector keys into normalized ascii.
type Translator interface {
	// DetectLanguage returns a normalized two-letter language code.
	DetectLanguage(ctx context.Context, text string) (string, error)

	// TranslateKeyToEnglish turns a specification axis name into a
	// snake_case ascii key.
	TranslateKeyToEnglish(ctx context.Context, text string) (string, error)

	// TranslateToJapanese translates text into Japanese. Text already
	// in Japanese passes through untouched.
	TranslateToJapanese(ctx context.Context, text string) (string, error)

	// TranslateVariantValue translates one selector value into clean
	// Japanese capped at maxBytes of UTF-8.
	TranslateVariantValue(ctx context.Context, value, key string, maxBytes int) (string, error)
}

// Engine is the raw machine-translation backend. Production wires
// GoogleMT wrapped in CachingEngine; tests substitute fakes.
type Engine interface {
	Translate(ctx context.Context, text, source, target string) (string, error)
	Detect(ctx context.Context, text string) (string, error)
}

// Service implements Translator on top of an Engine, consulting the
// normalization tables before spending quota on machine translation.
type Service struct {
	engine Engine
	logger *slog.Logger
}

// NewService creates a translation service.
func NewService(engine Engine, logger *slog.Logger) *Service {
	return &Service{engine: engine, logger: logger}
}

// DetectLanguage implements Translator. Kana is decisive for Japanese
// and pure ascii is treated as English; only Han-ambiguous text is sent
// to the engine.
func (s *Service) DetectLanguage(ctx context.Context, text string) (string, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return "", apperrors.InvalidInput("text is required")
	}
	if containsKana(trimmed) {
		return LangJapanese, nil
	}
	if isASCII(trimmed) {
		return LangEnglish, nil
	}
	lang, err := s.engine.Detect(ctx, trimmed)
	if err != nil {
		return "", err
	}
	return normalizeLang(lang), nil
}

// TranslateKeyToEnglish implements Translator.
func (s *Service) TranslateKeyToEnglish(ctx context.Context, text string) (string, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return "", nil
	}
	if entry, ok := LookupSelectorKey(trimmed); ok {
		return entry.Key, nil
	}
	if isASCII(trimmed) {
		return snakeKey(trimmed), nil
	}

	out, err := s.engine.Translate(ctx, trimmed, "", LangEnglish)
	if err != nil {
		s.logger.WarnContext(ctx, "key translation failed, using ascii fallback",
			slog.String("key", trimmed),
			slog.Any("error", err),
		)
		return snakeKey(trimmed), nil
	}
	return snakeKey(out), nil
}

// TranslateToJapanese implements Translator.
func (s *Service) TranslateToJapanese(ctx context.Context, text string) (string, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return "", nil
	}
	lang, err := s.DetectLanguage(ctx, trimmed)
	if err != nil {
		return "", err
	}
	if lang == LangJapanese {
		return trimmed, nil
	}
	out, err := s.engine.Translate(ctx, trimmed, lang, LangJapanese)
	if err != nil {
		return "", err
	}
	return CleanTextForRakuten(out, false), nil
}

// TranslateVariantValue implements Translator. The normalization table
// wins over machine translation so variant axes stay stable across
// harvests.
func (s *Service) TranslateVariantValue(ctx context.Context, value, key string, maxBytes int) (string, error) {
	if maxBytes <= 0 {
		maxBytes = domain.MaxSelectorValueBytes
	}
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return "", nil
	}
	if canonical, ok := LookupVariantValue(trimmed); ok {
		return TruncateToBytes(canonical, maxBytes), nil
	}
	if sizeLikeValue(key, trimmed) {
		return TruncateToBytes(strings.ToUpper(trimmed), maxBytes), nil
	}

	lang, err := s.DetectLanguage(ctx, trimmed)
	if err != nil {
		return "", err
	}
	out := trimmed
	if lang != LangJapanese {
		out, err = s.engine.Translate(ctx, trimmed, lang, LangJapanese)
		if err != nil {
			return "", err
		}
	}
	cleaned := TruncateToBytes(CleanTextForRakuten(out, true), maxBytes)
	if cleaned == "" {
		// Strict cleaning can empty a symbol-heavy value; fall back to
		// the cleaned original rather than dropping the variant.
		cleaned = TruncateToBytes(CleanTextForRakuten(trimmed, true), maxBytes)
	}
	return cleaned, nil
}

// sizeLikeValue reports whether a value should pass through as a size
// token instead of being translated.
func sizeLikeValue(key, value string) bool {
	if !isASCII(value) {
		return false
	}
	upper := strings.ToUpper(strings.TrimSpace(value))
	switch upper {
	case "XXS", "XS", "S", "M", "L", "XL", "XXL", "2XL", "3XL", "4XL", "5XL", "F", "FREE":
		return true
	}
	lowerKey := strings.ToLower(key)
	if strings.Contains(lowerKey, "size") || strings.Contains(key, "サイズ") || strings.Contains(key, "尺") {
		return isDigits(upper)
	}
	return false
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func containsKana(s string) bool {
	for _, r := range s {
		if unicode.In(r, unicode.Hiragana, unicode.Katakana) {
			return true
		}
	}
	return false
}

func isASCII(s string) bool {
	for _, r := range s {
		if r > unicode.MaxASCII {
			return false
		}
	}
	return true
}

// normalizeLang reduces engine language tags like "zh-CN" to their
// primary subtag.
func normalizeLang(lang string) string {
	lang = strings.ToLower(strings.TrimSpace(lang))
	if i := strings.IndexByte(lang, '-'); i > 0 {
		lang = lang[:i]
	}
	return lang
}

// snakeKey lowercases text, strips everything outside ascii
// alphanumerics and joins the first three words with underscores.
func snakeKey(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteRune(' ')
		}
	}
	words := strings.Fields(b.String())
	if len(words) == 0 {
		return defaultSelectorKey
	}
	if len(words) > 3 {
		words = words[:3]
	}
	return strings.Join(words, "_")
}
