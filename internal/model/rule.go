package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// GlobalPattern is the category pattern that matches every service, the
// fallback tier of markup resolution.
const GlobalPattern = "*"

// MarkupRule prices a provider service: percent markup on provider cost plus
// a fixed fee in local currency. A rule must match something — at least one
// of ServiceID or CategoryPattern is set. Rules are never deleted, only
// toggled; within a tier the most recently created rule wins.
type MarkupRule struct {
	ID              string          `json:"id"`
	Active          bool            `json:"is_active"`
	ServiceID       string          `json:"service_id,omitempty"`
	CategoryPattern string          `json:"category_pattern,omitempty"`
	MarkupPercent   decimal.Decimal `json:"markup_percent"`
	FeeFixed        decimal.Decimal `json:"fee_fixed"`
	CreatedAt       time.Time       `json:"created_at"`
}
