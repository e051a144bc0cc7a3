// Package worker runs the background reconciliation loop: poll provider
// order status, mirror it into local order records, notify completions.
package worker

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"

	"smmpanel/internal/model"
	"smmpanel/internal/notify"
	"smmpanel/internal/provider"
)

const (
	defaultInterval  = 45 * time.Second
	defaultBatchSize = 200
)

// OrderSource reads and updates reconcilable orders.
type OrderSource interface {
	// ListReconcilable returns orders with a provider order id whose local
	// status is non-terminal, oldest first, capped at limit.
	ListReconcilable(ctx context.Context, limit int) ([]model.Order, error)
	UpdateProviderState(ctx context.Context, orderID string, st ProviderState) error
}

// StatusAPI batch-queries the provider for order status.
type StatusAPI interface {
	Status(ctx context.Context, providerOrderIDs []string) (map[string]provider.OrderStatus, error)
}

// CompletedNotifier emits the deduplicated completion notification.
type CompletedNotifier interface {
	NotifyCompleted(ctx context.Context, o model.Order) error
}

// ProviderState is the mirrored provider view written back onto an order.
// Nil numeric fields are stored as NULL.
type ProviderState struct {
	ProviderStatus string
	LocalStatus    string // empty when the local lifecycle does not advance
	Charge         *decimal.Decimal
	StartCount     *int64
	Remains        *int64
}

// Reconciler drives periodic status reconciliation. A single run is in
// flight at any time: ticks that fire while a run is active are dropped,
// never queued, so a slow provider cannot build a backlog.
type Reconciler struct {
	orders   OrderSource
	api      StatusAPI
	notifier CompletedNotifier

	interval  time.Duration
	batchSize int
	running   atomic.Bool
}

func NewReconciler(orders OrderSource, api StatusAPI, notifier CompletedNotifier) *Reconciler {
	return &Reconciler{
		orders:    orders,
		api:       api,
		notifier:  notifier,
		interval:  defaultInterval,
		batchSize: defaultBatchSize,
	}
}

// Start runs one immediate pass, then one per tick until ctx is canceled.
// An in-flight pass finishes after cancellation rather than being aborted:
// passes run on a cancellation-detached context, and Start does not return
// while one is active.
func (r *Reconciler) Start(ctx context.Context) {
	slog.Info("starting reconciler", "interval", r.interval)

	passCtx := context.WithoutCancel(ctx)
	r.RunOnce(passCtx)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("reconciler stopped")
			return
		case <-ticker.C:
			r.RunOnce(passCtx)
		}
	}
}

// RunOnce executes a single reconciliation pass unless one is already
// running. Reports whether the pass ran.
func (r *Reconciler) RunOnce(ctx context.Context) bool {
	if !r.running.CompareAndSwap(false, true) {
		slog.Info("reconciliation tick dropped, previous pass still running")
		return false
	}
	defer r.running.Store(false)

	if err := r.reconcile(ctx); err != nil {
		slog.Error("reconciliation pass failed", "error", err)
	}
	return true
}

func (r *Reconciler) reconcile(ctx context.Context) error {
	orders, err := r.orders.ListReconcilable(ctx, r.batchSize)
	if err != nil {
		return err
	}
	if len(orders) == 0 {
		return nil
	}

	ids := make([]string, 0, len(orders))
	for _, o := range orders {
		ids = append(ids, o.ProviderOrderID)
	}

	statuses, err := r.api.Status(ctx, ids)
	if err != nil {
		return err
	}

	// Mirror updates touch disjoint rows; issue them concurrently but hold
	// the pass until all land. A failed update is logged and isolated.
	var wg sync.WaitGroup
	for _, o := range orders {
		st, ok := statuses[o.ProviderOrderID]
		if !ok {
			continue
		}
		wg.Add(1)
		go func(o model.Order, st provider.OrderStatus) {
			defer wg.Done()
			update := ProviderState{
				ProviderStatus: st.Status,
				LocalStatus:    localStatusFor(st.Status),
				Charge:         st.Charge,
				StartCount:     st.StartCount,
				Remains:        st.Remains,
			}
			if err := r.orders.UpdateProviderState(ctx, o.ID, update); err != nil {
				slog.Error("order status update failed", "order", o.ID, "provider_order_id", o.ProviderOrderID, "error", err)
			}
		}(o, st)
	}
	wg.Wait()

	for _, o := range orders {
		st, ok := statuses[o.ProviderOrderID]
		if !ok || !notify.CompletedStatus(st.Status) {
			continue
		}
		if err := r.notifier.NotifyCompleted(ctx, o); err != nil {
			slog.Error("completion notify failed", "order", o.ID, "provider_order_id", o.ProviderOrderID, "error", err)
		}
	}

	return nil
}

// localStatusFor maps the provider's free-text vocabulary onto the local
// order lifecycle. Unknown statuses leave the local state untouched.
func localStatusFor(providerStatus string) string {
	s := strings.ToLower(strings.TrimSpace(providerStatus))
	switch {
	case notify.CompletedStatus(s):
		return model.OrderStatusCompleted
	case s == "canceled" || s == "cancelled" || s == "cancelado":
		return model.OrderStatusCanceled
	case s == "error" || strings.HasPrefix(s, "fail"):
		return model.OrderStatusError
	}
	return ""
}
