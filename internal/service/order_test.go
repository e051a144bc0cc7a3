package service

import (
	"context"
	"errors"
	"strconv"
	"testing"

	"github.com/shopspring/decimal"

	"smmpanel/internal/model"
)

type fakeFetcher struct {
	services []model.Service
}

func (f *fakeFetcher) Services(context.Context) ([]model.Service, error) {
	return f.services, nil
}

type fakeRules struct {
	rules []model.MarkupRule
}

func (f *fakeRules) ActiveRules(context.Context) ([]model.MarkupRule, error) {
	return f.rules, nil
}

type fakeAPI struct {
	nextID   int
	failFor  map[string]error // keyed by service id
	accepted []string
}

func (f *fakeAPI) AddOrder(_ context.Context, serviceID, _ string, _ int) (string, error) {
	if err, ok := f.failFor[serviceID]; ok {
		return "", err
	}
	f.nextID++
	f.accepted = append(f.accepted, serviceID)
	return "P" + strconv.Itoa(f.nextID), nil
}

type fakeOrderStore struct {
	orders     []model.Order
	failCreate bool
}

func (f *fakeOrderStore) Create(_ context.Context, o *model.Order) error {
	if f.failCreate {
		return errors.New("db down")
	}
	f.orders = append(f.orders, *o)
	return nil
}

func (f *fakeOrderStore) ListByUser(_ context.Context, userID string) ([]model.Order, error) {
	var out []model.Order
	for _, o := range f.orders {
		if o.UserID == userID {
			out = append(out, o)
		}
	}
	return out, nil
}

type fakeWallet struct {
	balance decimal.Decimal
}

func (f *fakeWallet) Balance(context.Context, string) (decimal.Decimal, error) {
	return f.balance, nil
}

type recordingSink struct {
	emitted []string
}

func (s *recordingSink) Emit(_ context.Context, _, title, description string) error {
	s.emitted = append(s.emitted, title+": "+description)
	return nil
}

func newTestSubmitter(t *testing.T, api *fakeAPI, store *fakeOrderStore, wallet *fakeWallet, sink *recordingSink) *Submitter {
	t.Helper()

	catalog := NewCatalog(&fakeFetcher{services: []model.Service{
		{ID: "42", Name: "Instagram Likes", Category: "instagram", UnitRate: decimal.RequireFromString("10.00")},
		{ID: "43", Name: "TikTok Views", Category: "tiktok", UnitRate: decimal.RequireFromString("0.85")},
	}})
	if err := catalog.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh catalog: %v", err)
	}

	rules := &fakeRules{rules: []model.MarkupRule{{
		ID:              "r1",
		Active:          true,
		CategoryPattern: "insta",
		MarkupPercent:   decimal.NewFromInt(20),
		FeeFixed:        decimal.NewFromInt(1),
	}}}

	return NewSubmitter(catalog, rules, api, store, wallet, sink)
}

func TestSubmit(t *testing.T) {
	t.Parallel()

	t.Run("persists priced order and notifies", func(t *testing.T) {
		api := &fakeAPI{}
		store := &fakeOrderStore{}
		sink := &recordingSink{}
		s := newTestSubmitter(t, api, store, &fakeWallet{balance: decimal.NewFromInt(100)}, sink)

		order, err := s.Submit(context.Background(), "u1", "42", "https://x/y", 1000)
		if err != nil {
			t.Fatalf("submit: %v", err)
		}
		if order.ProviderOrderID == "" {
			t.Fatalf("expected provider order id")
		}
		if order.Status != model.OrderStatusPending {
			t.Fatalf("expected pending status, got %s", order.Status)
		}
		// rate 10.00, qty 1000 → cost 10.00; rule 20% + fee 1 → price 13.00
		if !order.Price.Equal(decimal.RequireFromString("13.00")) {
			t.Fatalf("price: want 13.00, got %s", order.Price)
		}
		if !order.Profit.Equal(decimal.RequireFromString("3.00")) {
			t.Fatalf("profit: want 3.00, got %s", order.Profit)
		}
		if order.AppliedRuleID != "r1" {
			t.Fatalf("expected rule r1, got %q", order.AppliedRuleID)
		}
		if len(store.orders) != 1 {
			t.Fatalf("expected 1 persisted order, got %d", len(store.orders))
		}
		if len(sink.emitted) != 1 {
			t.Fatalf("expected 1 created notification, got %d", len(sink.emitted))
		}

		// Price identity for the persisted record.
		want := order.ProviderCost.
			Add(order.ProviderCost.Mul(order.MarkupPercent).Div(decimal.NewFromInt(100))).
			Add(order.FeeFixed)
		if !order.Price.Equal(want) {
			t.Fatalf("price identity violated: %s != %s", order.Price, want)
		}
	})

	t.Run("unknown service", func(t *testing.T) {
		api := &fakeAPI{}
		store := &fakeOrderStore{}
		s := newTestSubmitter(t, api, store, &fakeWallet{balance: decimal.NewFromInt(100)}, &recordingSink{})

		_, err := s.Submit(context.Background(), "u1", "999", "https://x/y", 100)
		if !errors.Is(err, model.ErrServiceNotFound) {
			t.Fatalf("expected ErrServiceNotFound, got %v", err)
		}
		if len(api.accepted) != 0 {
			t.Fatalf("provider must not be called for unknown services")
		}
	})

	t.Run("numeric id forms are equivalent", func(t *testing.T) {
		api := &fakeAPI{}
		store := &fakeOrderStore{}
		s := newTestSubmitter(t, api, store, &fakeWallet{balance: decimal.NewFromInt(100)}, &recordingSink{})

		if _, err := s.Submit(context.Background(), "u1", "042", "https://x/y", 100); err != nil {
			t.Fatalf("zero-padded id should resolve: %v", err)
		}
	})

	t.Run("provider failure persists nothing", func(t *testing.T) {
		api := &fakeAPI{failFor: map[string]error{"42": &model.ProviderError{Op: "add", Message: "not enough funds"}}}
		store := &fakeOrderStore{}
		s := newTestSubmitter(t, api, store, &fakeWallet{balance: decimal.NewFromInt(100)}, &recordingSink{})

		_, err := s.Submit(context.Background(), "u1", "42", "https://x/y", 100)
		var perr *model.ProviderError
		if !errors.As(err, &perr) {
			t.Fatalf("expected ProviderError, got %v", err)
		}
		if len(store.orders) != 0 {
			t.Fatalf("nothing may be persisted on provider failure")
		}
	})

	t.Run("insufficient balance blocks before the provider call", func(t *testing.T) {
		api := &fakeAPI{}
		store := &fakeOrderStore{}
		s := newTestSubmitter(t, api, store, &fakeWallet{balance: decimal.NewFromInt(1)}, &recordingSink{})

		_, err := s.Submit(context.Background(), "u1", "42", "https://x/y", 1000)
		if !errors.Is(err, model.ErrInsufficientBalance) {
			t.Fatalf("expected ErrInsufficientBalance, got %v", err)
		}
		if len(api.accepted) != 0 {
			t.Fatalf("provider must not be called when balance is short")
		}
	})

	t.Run("save failure after provider success surfaces the orphan id", func(t *testing.T) {
		api := &fakeAPI{}
		store := &fakeOrderStore{failCreate: true}
		s := newTestSubmitter(t, api, store, &fakeWallet{balance: decimal.NewFromInt(100)}, &recordingSink{})

		_, err := s.Submit(context.Background(), "u1", "42", "https://x/y", 100)
		var orphan *model.OrphanOrderError
		if !errors.As(err, &orphan) {
			t.Fatalf("expected OrphanOrderError, got %v", err)
		}
		if orphan.ProviderOrderID == "" {
			t.Fatalf("orphan error must carry the provider order id")
		}
	})
}

func TestSubmitBatch(t *testing.T) {
	t.Parallel()

	t.Run("N lines with M invalid produce exactly N results", func(t *testing.T) {
		raw := "42|https://x/a|100\nbroken line\n43|https://x/b|200\n42|https://x/c|0\n43|https://x/d|300"
		lines, parseErrs := ParseLines(raw)
		if len(lines) != 3 || len(parseErrs) != 2 {
			t.Fatalf("parse: got %d valid %d errors", len(lines), len(parseErrs))
		}

		api := &fakeAPI{}
		store := &fakeOrderStore{}
		s := newTestSubmitter(t, api, store, &fakeWallet{balance: decimal.NewFromInt(1000)}, &recordingSink{})

		summary := s.SubmitBatch(context.Background(), "u1", lines, parseErrs, nil)
		if len(summary.Results) != 5 {
			t.Fatalf("expected 5 row results, got %d", len(summary.Results))
		}
		if summary.OK != 3 || summary.Errors != 2 {
			t.Fatalf("expected 3 ok / 2 error, got %d / %d", summary.OK, summary.Errors)
		}
		for i, r := range summary.Results {
			if r.LineNo != i+1 {
				t.Fatalf("results must be ordered by line, got %d at index %d", r.LineNo, i)
			}
		}
		if len(store.orders) != 3 {
			t.Fatalf("expected 3 persisted orders, got %d", len(store.orders))
		}
	})

	t.Run("one failing row never aborts the rest", func(t *testing.T) {
		raw := "42|https://x/a|100\n43|https://x/b|200"
		lines, parseErrs := ParseLines(raw)

		api := &fakeAPI{failFor: map[string]error{"42": &model.ProviderError{Op: "add", Message: "rejected"}}}
		store := &fakeOrderStore{}
		s := newTestSubmitter(t, api, store, &fakeWallet{balance: decimal.NewFromInt(1000)}, &recordingSink{})

		summary := s.SubmitBatch(context.Background(), "u1", lines, parseErrs, nil)
		if summary.OK != 1 || summary.Errors != 1 {
			t.Fatalf("expected 1 ok / 1 error, got %d / %d", summary.OK, summary.Errors)
		}
		if summary.Results[0].Status != RowStatusError || summary.Results[0].Message == "" {
			t.Fatalf("failing row must carry its reason, got %+v", summary.Results[0])
		}
		if summary.Results[1].Status != RowStatusOK {
			t.Fatalf("second row should have been attempted, got %+v", summary.Results[1])
		}
	})

	t.Run("unknown service id is a row error", func(t *testing.T) {
		lines, parseErrs := ParseLines("999|https://x/a|100")
		s := newTestSubmitter(t, &fakeAPI{}, &fakeOrderStore{}, &fakeWallet{balance: decimal.NewFromInt(1000)}, &recordingSink{})

		summary := s.SubmitBatch(context.Background(), "u1", lines, parseErrs, nil)
		if summary.Errors != 1 || summary.OK != 0 {
			t.Fatalf("expected a single row error, got %+v", summary)
		}
	})

	t.Run("progress reaches 100", func(t *testing.T) {
		lines, parseErrs := ParseLines("42|https://x/a|100\n43|https://x/b|200")
		s := newTestSubmitter(t, &fakeAPI{}, &fakeOrderStore{}, &fakeWallet{balance: decimal.NewFromInt(1000)}, &recordingSink{})

		var seen []int
		s.SubmitBatch(context.Background(), "u1", lines, parseErrs, func(p int) { seen = append(seen, p) })
		if len(seen) == 0 || seen[len(seen)-1] != 100 {
			t.Fatalf("expected final progress 100, got %v", seen)
		}
		for i := 1; i < len(seen); i++ {
			if seen[i] < seen[i-1] {
				t.Fatalf("progress must be monotonic, got %v", seen)
			}
		}
	})
}
