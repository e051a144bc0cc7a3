package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"smmpanel/internal/model"
	"smmpanel/internal/provider"
)

type fakeOrderSource struct {
	mu      sync.Mutex
	orders  []model.Order
	updates map[string]ProviderState
	failFor map[string]error
}

func newFakeOrderSource(orders ...model.Order) *fakeOrderSource {
	return &fakeOrderSource{
		orders:  orders,
		updates: map[string]ProviderState{},
		failFor: map[string]error{},
	}
}

func (f *fakeOrderSource) ListReconcilable(_ context.Context, limit int) ([]model.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Order
	for _, o := range f.orders {
		if o.ProviderOrderID != "" && !o.Terminal() {
			out = append(out, o)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (f *fakeOrderSource) UpdateProviderState(ctx context.Context, orderID string, st ProviderState) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.failFor[orderID]; ok {
		return err
	}
	f.updates[orderID] = st
	return nil
}

type fakeStatusAPI struct {
	mu       sync.Mutex
	statuses map[string]provider.OrderStatus
	calls    int
	lastIDs  []string
	block    chan struct{} // when set, Status waits until closed
}

func (f *fakeStatusAPI) Status(ctx context.Context, ids []string) (map[string]provider.OrderStatus, error) {
	f.mu.Lock()
	f.calls++
	f.lastIDs = ids
	block := f.block
	f.mu.Unlock()
	if block != nil {
		<-block
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return f.statuses, nil
}

type fakeNotifier struct {
	mu       sync.Mutex
	notified []string
}

func (f *fakeNotifier) NotifyCompleted(_ context.Context, o model.Order) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notified = append(f.notified, o.ProviderOrderID)
	return nil
}

func dec(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func i64(n int64) *int64 { return &n }

func TestReconciler_RunOnce(t *testing.T) {
	t.Parallel()

	t.Run("mirrors provider fields and maps local status", func(t *testing.T) {
		orders := newFakeOrderSource(
			model.Order{ID: "o1", ProviderOrderID: "p1", Status: model.OrderStatusPending},
			model.Order{ID: "o2", ProviderOrderID: "p2", Status: model.OrderStatusPending},
			model.Order{ID: "o3", ProviderOrderID: "p3", Status: model.OrderStatusPending},
		)
		api := &fakeStatusAPI{statuses: map[string]provider.OrderStatus{
			"p1": {Status: "Completed", Charge: dec("1.50"), StartCount: i64(10), Remains: i64(0)},
			"p2": {Status: "In progress", Charge: dec("0.75")},
			"p3": {Status: "Canceled"},
		}}
		notifier := &fakeNotifier{}
		r := NewReconciler(orders, api, notifier)

		if !r.RunOnce(context.Background()) {
			t.Fatalf("pass should have run")
		}

		if len(api.lastIDs) != 3 {
			t.Fatalf("expected one batch call with 3 ids, got %v", api.lastIDs)
		}

		u1 := orders.updates["o1"]
		if u1.ProviderStatus != "Completed" || u1.LocalStatus != model.OrderStatusCompleted {
			t.Fatalf("o1 update: %+v", u1)
		}
		if u1.Charge == nil || !u1.Charge.Equal(decimal.RequireFromString("1.50")) {
			t.Fatalf("o1 charge: %+v", u1.Charge)
		}
		if u1.StartCount == nil || *u1.StartCount != 10 {
			t.Fatalf("o1 start count: %+v", u1.StartCount)
		}

		u2 := orders.updates["o2"]
		if u2.LocalStatus != "" {
			t.Fatalf("in-progress must not advance local status, got %q", u2.LocalStatus)
		}
		if u2.StartCount != nil {
			t.Fatalf("missing numeric must stay nil, got %v", *u2.StartCount)
		}

		if orders.updates["o3"].LocalStatus != model.OrderStatusCanceled {
			t.Fatalf("o3 should map to canceled, got %+v", orders.updates["o3"])
		}

		if len(notifier.notified) != 1 || notifier.notified[0] != "p1" {
			t.Fatalf("expected completion notify for p1 only, got %v", notifier.notified)
		}
	})

	t.Run("orders without a provider response are skipped", func(t *testing.T) {
		orders := newFakeOrderSource(
			model.Order{ID: "o1", ProviderOrderID: "p1", Status: model.OrderStatusPending},
			model.Order{ID: "o2", ProviderOrderID: "p2", Status: model.OrderStatusPending},
		)
		api := &fakeStatusAPI{statuses: map[string]provider.OrderStatus{
			"p2": {Status: "Pending"},
		}}
		r := NewReconciler(orders, api, &fakeNotifier{})
		r.RunOnce(context.Background())

		if _, ok := orders.updates["o1"]; ok {
			t.Fatalf("o1 had no response and must not be touched")
		}
		if _, ok := orders.updates["o2"]; !ok {
			t.Fatalf("o2 should have been updated")
		}
	})

	t.Run("one failing update does not block the others", func(t *testing.T) {
		orders := newFakeOrderSource(
			model.Order{ID: "o1", ProviderOrderID: "p1", Status: model.OrderStatusPending},
			model.Order{ID: "o2", ProviderOrderID: "p2", Status: model.OrderStatusPending},
		)
		orders.failFor["o1"] = errors.New("row lock timeout")
		api := &fakeStatusAPI{statuses: map[string]provider.OrderStatus{
			"p1": {Status: "In progress"},
			"p2": {Status: "In progress"},
		}}
		r := NewReconciler(orders, api, &fakeNotifier{})
		r.RunOnce(context.Background())

		if _, ok := orders.updates["o2"]; !ok {
			t.Fatalf("o2 update must land despite o1 failing")
		}
	})

	t.Run("terminal orders are not candidates", func(t *testing.T) {
		orders := newFakeOrderSource(
			model.Order{ID: "o1", ProviderOrderID: "p1", Status: model.OrderStatusCompleted},
			model.Order{ID: "o2", Status: model.OrderStatusPending}, // never submitted
		)
		api := &fakeStatusAPI{statuses: map[string]provider.OrderStatus{}}
		r := NewReconciler(orders, api, &fakeNotifier{})
		r.RunOnce(context.Background())

		if api.calls != 0 {
			t.Fatalf("no candidates, provider must not be called")
		}
	})
}

func TestReconciler_OverlappingTickIsDropped(t *testing.T) {
	t.Parallel()

	orders := newFakeOrderSource(
		model.Order{ID: "o1", ProviderOrderID: "p1", Status: model.OrderStatusPending},
	)
	block := make(chan struct{})
	api := &fakeStatusAPI{
		statuses: map[string]provider.OrderStatus{"p1": {Status: "Pending"}},
		block:    block,
	}
	r := NewReconciler(orders, api, &fakeNotifier{})

	started := make(chan struct{})
	done := make(chan bool)
	go func() {
		close(started)
		done <- r.RunOnce(context.Background())
	}()
	<-started

	// Wait for the first pass to be inside the provider call.
	deadline := time.After(2 * time.Second)
	for {
		api.mu.Lock()
		calls := api.calls
		api.mu.Unlock()
		if calls == 1 {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("first pass never reached the provider")
		default:
			time.Sleep(time.Millisecond)
		}
	}

	if r.RunOnce(context.Background()) {
		t.Fatalf("overlapping tick must be dropped")
	}
	api.mu.Lock()
	if api.calls != 1 {
		t.Fatalf("dropped tick must perform no work, got %d calls", api.calls)
	}
	api.mu.Unlock()

	close(block)
	if !<-done {
		t.Fatalf("first pass should have run")
	}

	// Guard releases after the pass; the next tick runs again.
	if !r.RunOnce(context.Background()) {
		t.Fatalf("guard must release after the pass completes")
	}
}

func TestReconciler_StopLetsInFlightPassFinish(t *testing.T) {
	t.Parallel()

	orders := newFakeOrderSource(
		model.Order{ID: "o1", ProviderOrderID: "p1", Status: model.OrderStatusPending},
	)
	block := make(chan struct{})
	api := &fakeStatusAPI{
		statuses: map[string]provider.OrderStatus{"p1": {Status: "Completed"}},
		block:    block,
	}
	notifier := &fakeNotifier{}
	r := NewReconciler(orders, api, notifier)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		r.Start(ctx)
	}()

	// Wait for the immediate pass to be inside the provider call.
	deadline := time.After(2 * time.Second)
	for {
		api.mu.Lock()
		calls := api.calls
		api.mu.Unlock()
		if calls == 1 {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("pass never reached the provider")
		default:
			time.Sleep(time.Millisecond)
		}
	}

	// Stop mid-pass. The pass must keep running, not be aborted.
	cancel()
	select {
	case <-done:
		t.Fatalf("Start returned while a pass was in flight")
	case <-time.After(50 * time.Millisecond):
	}

	close(block)
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("Start did not return after the pass finished")
	}

	orders.mu.Lock()
	update, ok := orders.updates["o1"]
	orders.mu.Unlock()
	if !ok {
		t.Fatalf("mirror update must land despite shutdown mid-pass")
	}
	if update.LocalStatus != model.OrderStatusCompleted {
		t.Fatalf("o1 update: %+v", update)
	}
	if len(notifier.notified) != 1 || notifier.notified[0] != "p1" {
		t.Fatalf("completion must still be notified, got %v", notifier.notified)
	}
}
