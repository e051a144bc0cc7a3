package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"smmpanel/internal/model"
	"smmpanel/internal/notify"
	"smmpanel/internal/pricing"
)

// RuleSource lists the markup rules currently in force.
type RuleSource interface {
	ActiveRules(ctx context.Context) ([]model.MarkupRule, error)
}

// OrderCreator submits one order to the provider and returns its id. There
// is no idempotency key upstream; a transport error after the request left
// may have created an order we will never learn about.
type OrderCreator interface {
	AddOrder(ctx context.Context, serviceID, link string, quantity int) (string, error)
}

// OrderStore persists order records. Create debits the customer balance and
// inserts the order in one transaction.
type OrderStore interface {
	Create(ctx context.Context, o *model.Order) error
	ListByUser(ctx context.Context, userID string) ([]model.Order, error)
}

// WalletSource reads a customer's current credit balance.
type WalletSource interface {
	Balance(ctx context.Context, userID string) (decimal.Decimal, error)
}

// Submitter orchestrates single and batch order creation: catalog lookup,
// price resolution, provider call, persistence.
type Submitter struct {
	catalog *Catalog
	rules   RuleSource
	api     OrderCreator
	orders  OrderStore
	wallet  WalletSource
	sink    notify.Sink

	now func() time.Time
}

func NewSubmitter(catalog *Catalog, rules RuleSource, api OrderCreator, orders OrderStore, wallet WalletSource, sink notify.Sink) *Submitter {
	return &Submitter{
		catalog: catalog,
		rules:   rules,
		api:     api,
		orders:  orders,
		wallet:  wallet,
		sink:    sink,
		now:     time.Now,
	}
}

// Submit creates one order. Nothing is persisted when the provider rejects
// the order; if the local save fails after the provider accepted, the
// returned *model.OrphanOrderError carries the provider order id so an
// operator can link it manually.
func (s *Submitter) Submit(ctx context.Context, userID, serviceID, link string, quantity int) (*model.Order, error) {
	svc, ok := s.catalog.Lookup(serviceID)
	if !ok {
		return nil, model.ErrServiceNotFound
	}

	rules, err := s.rules.ActiveRules(ctx)
	if err != nil {
		return nil, fmt.Errorf("load markup rules: %w", err)
	}
	quote := pricing.Resolve(svc, rules)
	bd := pricing.Compute(svc, quantity, quote)

	// Cheap pre-check; the authoritative debit happens inside Create. A race
	// here fails the save, not the customer invariant.
	balance, err := s.wallet.Balance(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("check balance: %w", err)
	}
	if balance.LessThan(bd.Price) {
		return nil, model.ErrInsufficientBalance
	}

	providerOrderID, err := s.api.AddOrder(ctx, svc.ID, link, quantity)
	if err != nil {
		return nil, err
	}

	order := &model.Order{
		ID:              uuid.NewString(),
		UserID:          userID,
		ProviderOrderID: providerOrderID,
		ServiceID:       svc.ID,
		ServiceName:     svc.Name,
		Link:            link,
		Quantity:        quantity,
		ProviderCost:    bd.ProviderCost,
		Price:           bd.Price,
		Profit:          bd.Profit,
		MarkupPercent:   quote.MarkupPercent,
		FeeFixed:        quote.FeeFixed,
		AppliedRuleID:   quote.AppliedRuleID,
		Status:          model.OrderStatusPending,
		CreatedAt:       s.now(),
	}

	if err := s.orders.Create(ctx, order); err != nil {
		return nil, &model.OrphanOrderError{ProviderOrderID: providerOrderID, Err: err}
	}

	if err := s.sink.Emit(ctx, userID, "Order created", fmt.Sprintf("%s • Order #%s", svc.Name, providerOrderID)); err != nil {
		slog.Error("created notification not delivered", "order", order.ID, "error", err)
	}

	return order, nil
}

// BatchSummary aggregates a batch run. Partial success is the expected
// common case, not an error.
type BatchSummary struct {
	Results []RowResult `json:"results"`
	OK      int         `json:"ok"`
	Errors  int         `json:"errors"`
}

// SubmitBatch runs parsed lines against the provider strictly sequentially:
// the provider rate-limits aggressively and serial submission keeps progress
// percentages meaningful. Parse-error rows are echoed unchanged. A failing
// row never aborts the remaining rows. progress, if non-nil, receives the
// percentage of lines processed.
func (s *Submitter) SubmitBatch(ctx context.Context, userID string, lines []ParsedLine, parseErrors []RowResult, progress func(percent int)) BatchSummary {
	report := func(done, total int) {
		if progress != nil && total > 0 {
			progress(done * 100 / total)
		}
	}

	results := make([]RowResult, 0, len(lines)+len(parseErrors))
	results = append(results, parseErrors...)

	for i, line := range lines {
		report(i, len(lines))

		row := RowResult{
			LineNo:    line.LineNo,
			ServiceID: line.ServiceID,
			Link:      line.Link,
			Quantity:  line.Quantity,
		}

		order, err := s.Submit(ctx, userID, line.ServiceID, line.Link, line.Quantity)
		switch {
		case err == nil:
			row.Status = RowStatusOK
			row.Message = "submitted"
			row.ProviderOrderID = order.ProviderOrderID
		default:
			row.Status = RowStatusError
			row.Message = err.Error()
			var orphan *model.OrphanOrderError
			if errors.As(err, &orphan) {
				// The provider order exists; keep its id visible for manual
				// reconciliation.
				row.ProviderOrderID = orphan.ProviderOrderID
			}
			slog.Warn("batch row failed", "line", line.LineNo, "service", line.ServiceID, "error", err)
		}

		results = append(results, row)
	}
	report(len(lines), len(lines))

	sort.SliceStable(results, func(i, j int) bool { return results[i].LineNo < results[j].LineNo })

	summary := BatchSummary{Results: results}
	for _, r := range results {
		if r.Status == RowStatusOK {
			summary.OK++
		} else {
			summary.Errors++
		}
	}
	return summary
}
