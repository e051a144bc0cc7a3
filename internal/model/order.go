package model

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	OrderStatusPending   = "pending"
	OrderStatusCompleted = "completed"
	OrderStatusCanceled  = "canceled"
	OrderStatusError     = "error"
)

// Order is a customer purchase against the provider. Price fields are
// snapshots computed once at submission time; provider_* fields mirror the
// provider's own view and are updated only by the reconciliation loop.
type Order struct {
	ID              string `json:"id"`
	UserID          string `json:"user_id"`
	ProviderOrderID string `json:"provider_order_id,omitempty"` // empty until the provider accepts
	ServiceID       string `json:"service_id"`
	ServiceName     string `json:"service_name"`
	Link            string `json:"link"`
	Quantity        int    `json:"quantity"`

	ProviderCost  decimal.Decimal `json:"provider_cost"`
	Price         decimal.Decimal `json:"price"`
	Profit        decimal.Decimal `json:"profit"`
	MarkupPercent decimal.Decimal `json:"markup_percent"`
	FeeFixed      decimal.Decimal `json:"fee_fixed"`
	AppliedRuleID string          `json:"applied_rule_id,omitempty"` // empty when the hard default applied

	Status             string           `json:"status"`
	ProviderStatus     string           `json:"provider_status,omitempty"`
	ProviderCharge     *decimal.Decimal `json:"provider_charge,omitempty"`
	ProviderStartCount *int64           `json:"provider_start_count,omitempty"`
	ProviderRemains    *int64           `json:"provider_remains,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// Terminal reports whether the local lifecycle is finished; terminal orders
// are never reconciled again.
func (o Order) Terminal() bool {
	switch o.Status {
	case OrderStatusCompleted, OrderStatusCanceled, OrderStatusError:
		return true
	}
	return false
}
