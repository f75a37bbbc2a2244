// Package managenum normalizes identifiers into valid Rakuten item
// manage numbers. RMS accepts lowercase alphanumerics and hyphens only,
// so upstream product ids that arrive with full-width digits or stray
// punctuation must be folded before they can appear in a request path.
package managenum

import (
	"regexp"
	"strings"

	"golang.org/x/text/width"
)

// MaxLen is the RMS limit on manage number length.
const MaxLen = 32

var invalidRunes = regexp.MustCompile(`[^a-z0-9]+`)

// Sanitize converts the given identifier into a manage number accepted
// by the RMS items endpoints. Full-width characters are folded to their
// ASCII equivalents first so ids copied out of upstream exports survive
// intact.
//
// Examples:
//   - "７１２４９８１２３" → "712498123"
//   - "Item 4988601"     → "item-4988601"
//   - " 721568049-A "    → "721568049-a"
func Sanitize(id string) string {
	m := width.Narrow.String(strings.TrimSpace(id))
	m = strings.ToLower(m)

	// Replace anything outside the accepted alphabet with hyphens.
	m = invalidRunes.ReplaceAllString(m, "-")

	// Trim leading and trailing hyphens.
	m = strings.Trim(m, "-")

	// Collapse consecutive hyphens into single hyphens.
	for strings.Contains(m, "--") {
		m = strings.ReplaceAll(m, "--", "-")
	}

	if len(m) > MaxLen {
		m = strings.Trim(m[:MaxLen], "-")
	}
	return m
}

// Valid reports whether id is already a well-formed manage number:
// non-empty, within MaxLen, lowercase alphanumerics and single hyphens,
// and not starting or ending with a hyphen.
func Valid(id string) bool {
	if id == "" || len(id) > MaxLen {
		return false
	}
	return Sanitize(id) == id
}
