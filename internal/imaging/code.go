package imaging

import (
	"fmt"
	"hash/crc32"
	"strings"
)

// codeDigits is the fixed width of a product image code, which doubles
// as the cabinet folder name on the marketplace side.
const codeDigits = 8

// ProductImageCode derives the stable 8-digit folder code for a
// product. Numeric upstream ids are zero-padded (or truncated to their
// trailing digits) so re-materialization lands in the same folder;
// non-numeric ids are hashed to keep the mapping deterministic.
func ProductImageCode(productID string) string {
	id := strings.TrimSpace(productID)
	if id == "" {
		return strings.Repeat("0", codeDigits)
	}
	if isDigits(id) {
		if len(id) > codeDigits {
			return id[len(id)-codeDigits:]
		}
		return strings.Repeat("0", codeDigits-len(id)) + id
	}
	sum := crc32.ChecksumIEEE([]byte(id))
	return fmt.Sprintf("%0*d", codeDigits, sum%1e8)
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
