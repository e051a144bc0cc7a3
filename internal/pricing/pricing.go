// Package pricing resolves the effective markup for a provider service and
// computes the customer price. Resolution is pure: catalog and rules are
// passed in, never read from ambient state.
package pricing

import (
	"strings"

	"github.com/shopspring/decimal"

	"smmpanel/internal/model"
)

// Hard default applied when no rule matches. Never an error.
var (
	DefaultMarkupPercent = decimal.NewFromInt(30)
	thousand             = decimal.NewFromInt(1000)
	hundred              = decimal.NewFromInt(100)
)

// Quote is the markup selected for one service at one point in time. The
// values are snapshotted into the order; later rule changes never touch
// existing orders.
type Quote struct {
	MarkupPercent decimal.Decimal
	FeeFixed      decimal.Decimal
	AppliedRuleID string // empty when the hard default applied
}

// Breakdown is the full price computation for a service and quantity.
type Breakdown struct {
	ProviderCost decimal.Decimal
	MarkupValue  decimal.Decimal
	Price        decimal.Decimal
	Profit       decimal.Decimal
}

// Resolve picks the markup for a service, first match wins:
//
//  1. exact service id match,
//  2. category pattern as case-insensitive substring (the literal "*" is
//     excluded from this tier),
//  3. the global "*" rule,
//  4. hard default of 30% and no fee.
//
// Ties within a tier go to the most recently created rule. Inactive rules
// never match.
func Resolve(svc model.Service, rules []model.MarkupRule) Quote {
	serviceID := model.NormalizeServiceID(svc.ID)
	if r := latest(rules, func(r model.MarkupRule) bool {
		return r.ServiceID != "" && model.NormalizeServiceID(r.ServiceID) == serviceID
	}); r != nil {
		return quoteFrom(*r)
	}

	category := strings.ToLower(svc.Category)
	if r := latest(rules, func(r model.MarkupRule) bool {
		p := strings.ToLower(strings.TrimSpace(r.CategoryPattern))
		return p != "" && p != model.GlobalPattern && strings.Contains(category, p)
	}); r != nil {
		return quoteFrom(*r)
	}

	if r := latest(rules, func(r model.MarkupRule) bool {
		return strings.TrimSpace(r.CategoryPattern) == model.GlobalPattern
	}); r != nil {
		return quoteFrom(*r)
	}

	return Quote{MarkupPercent: DefaultMarkupPercent, FeeFixed: decimal.Zero}
}

func latest(rules []model.MarkupRule, match func(model.MarkupRule) bool) *model.MarkupRule {
	var best *model.MarkupRule
	for i := range rules {
		r := &rules[i]
		if !r.Active || !match(*r) {
			continue
		}
		if best == nil || r.CreatedAt.After(best.CreatedAt) {
			best = r
		}
	}
	return best
}

func quoteFrom(r model.MarkupRule) Quote {
	return Quote{MarkupPercent: r.MarkupPercent, FeeFixed: r.FeeFixed, AppliedRuleID: r.ID}
}

// Compute prices a quantity of a service under a quote:
// providerCost = unitRate * quantity / 1000, markup = providerCost *
// markupPercent / 100, price = providerCost + markup + feeFixed.
func Compute(svc model.Service, quantity int, q Quote) Breakdown {
	cost := svc.UnitRate.Mul(decimal.NewFromInt(int64(quantity))).Div(thousand)
	markup := cost.Mul(q.MarkupPercent).Div(hundred)
	price := cost.Add(markup).Add(q.FeeFixed)
	return Breakdown{
		ProviderCost: cost,
		MarkupValue:  markup,
		Price:        price,
		Profit:       price.Sub(cost),
	}
}
