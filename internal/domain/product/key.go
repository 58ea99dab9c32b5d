// Package product resolves canonical product identity across both line item shapes.
package product

import (
	"strings"

	"github.com/google/uuid"
)

const (
	codePrefix        = "code:"
	descriptionPrefix = "desc:"
	unknownPrefix     = "unknown:"
	unresolvedScope   = "unresolved"
)

// Key derives the canonical product key for a line item.
// An item code wins over the description. Lines with neither get an
// "unknown" key scoped to their supplier so they never merge across suppliers.
func Key(itemCode, description string, supplierID *uuid.UUID) string {
	if code := strings.ToLower(strings.TrimSpace(itemCode)); code != "" {
		return codePrefix + code
	}
	if desc := NormalizeDescription(description); desc != "" {
		return descriptionPrefix + desc
	}
	if supplierID == nil || *supplierID == uuid.Nil {
		return unknownPrefix + unresolvedScope
	}
	return unknownPrefix + supplierID.String()
}

// NormalizeDescription trims, case-folds and collapses internal whitespace
func NormalizeDescription(description string) string {
	return strings.Join(strings.Fields(strings.ToLower(description)), " ")
}

// IsUnknown reports whether key is the sentinel for lines without code or description
func IsUnknown(key string) bool {
	return strings.HasPrefix(key, unknownPrefix)
}
