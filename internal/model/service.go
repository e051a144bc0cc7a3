package model

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Service is a provider-offered service. The catalog is refreshed wholesale
// from the provider and never mutated locally. IDs are normalized to strings
// at the API boundary (the provider returns them as strings or numbers).
type Service struct {
	ID       string          `json:"service"`
	Name     string          `json:"name"`
	Type     string          `json:"type"`
	Category string          `json:"category"`
	UnitRate decimal.Decimal `json:"rate"` // cost per 1000 units, provider currency
	Min      int             `json:"min"`
	Max      int             `json:"max"`
}

// NormalizeServiceID canonicalizes a provider service id. "007" and "7" are
// the same id once it has round-tripped through a number, so comparisons
// anywhere (catalog lookup, rule matching) go through this form.
func NormalizeServiceID(id string) string {
	id = strings.TrimSpace(id)
	trimmed := strings.TrimLeft(id, "0")
	if trimmed == "" && id != "" {
		return "0"
	}
	return trimmed
}
