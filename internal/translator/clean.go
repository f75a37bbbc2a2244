package translator

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
	"golang.org/x/text/width"
)

// Punctuation that survives strict cleaning. Everything else outside
// letters, digits and whitespace is removed because Rakuten rejects it
// in variant values.
var allowedStrictPunct = map[rune]bool{
	'・': true,
	'-': true,
	'_': true,
	'/': true,
	'.': true,
	',': true,
	'(': true,
	')': true,
	'+': true,
	'&': true,
	'%': true,
	'~': true,
	'〜': true,
	'×': true,
}

// CleanTextForRakuten normalizes text before it is sent to Rakuten.
// Width is canonicalized first (half-width kana widened, full-width
// ascii narrowed), then NFKC resolves the remaining compatibility
// forms. Control characters become spaces and whitespace runs collapse
// to a single space. In strict mode only letters, digits and the
// allowed punctuation survive.
func CleanTextForRakuten(s string, strict bool) string {
	s = width.Fold.String(s)
	s = norm.NFKC.String(s)

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r == utf8.RuneError:
			continue
		case unicode.IsControl(r):
			b.WriteRune(' ')
		case strict && !strictRuneAllowed(r):
			continue
		default:
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

func strictRuneAllowed(r rune) bool {
	if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
		return true
	}
	return allowedStrictPunct[r]
}

// TruncateToBytes trims the string to at most max bytes by removing
// trailing runes, never cutting through a UTF-8 sequence.
func TruncateToBytes(s string, max int) string {
	if max <= 0 {
		return ""
	}
	for len(s) > max {
		_, size := utf8.DecodeLastRuneInString(s)
		if size == 0 {
			return ""
		}
		s = s[:len(s)-size]
	}
	return strings.TrimSpace(s)
}
