package notify

import (
	"context"
	"errors"
	"strconv"
	"testing"

	"smmpanel/internal/model"
)

type fakeSeenStore struct {
	ids      []string
	failMark bool
}

func (s *fakeSeenStore) Seen(_ context.Context, id string) (bool, error) {
	for _, v := range s.ids {
		if v == id {
			return true, nil
		}
	}
	return false, nil
}

func (s *fakeSeenStore) MarkSeen(_ context.Context, id string) error {
	if s.failMark {
		return errors.New("store down")
	}
	s.ids = append(s.ids, id)
	if len(s.ids) > NotifiedCap {
		s.ids = s.ids[len(s.ids)-NotifiedCap:]
	}
	return nil
}

type fakeSink struct {
	emitted []string
	fail    bool
}

func (s *fakeSink) Emit(_ context.Context, _, title, description string) error {
	if s.fail {
		return errors.New("sink down")
	}
	s.emitted = append(s.emitted, title+": "+description)
	return nil
}

func TestAppendBounded(t *testing.T) {
	t.Parallel()

	var ids []string
	for i := 0; i < NotifiedCap+10; i++ {
		ids = AppendBounded(ids, "id-"+strconv.Itoa(i), NotifiedCap)
	}
	if len(ids) != NotifiedCap {
		t.Fatalf("expected cap %d, got %d", NotifiedCap, len(ids))
	}
	if ids[0] != "id-10" {
		t.Fatalf("oldest entries must be evicted first, got %s", ids[0])
	}
	if ids[len(ids)-1] != "id-"+strconv.Itoa(NotifiedCap+9) {
		t.Fatalf("newest entry must be kept, got %s", ids[len(ids)-1])
	}

	// Re-appending an existing id neither duplicates nor reorders.
	before := len(ids)
	ids = AppendBounded(ids, "id-10", NotifiedCap)
	if len(ids) != before || ids[0] != "id-10" {
		t.Fatalf("re-append must be a no-op")
	}
}

func TestCompletedStatus(t *testing.T) {
	t.Parallel()

	for _, s := range []string{"completed", "Completed", "COMPLETED", "concluido", "Concluído", " completed "} {
		if !CompletedStatus(s) {
			t.Fatalf("%q should be completed", s)
		}
	}
	for _, s := range []string{"", "pending", "in progress", "partial", "canceled", "complet"} {
		if CompletedStatus(s) {
			t.Fatalf("%q should not be completed", s)
		}
	}
}

func TestNotifyCompleted(t *testing.T) {
	t.Parallel()

	order := model.Order{
		UserID:          "u1",
		ProviderOrderID: "9001",
		ServiceName:     "Instagram Likes",
	}

	t.Run("emits exactly once", func(t *testing.T) {
		seen := &fakeSeenStore{}
		sink := &fakeSink{}
		n := NewCompletionNotifier(seen, sink)

		for i := 0; i < 3; i++ {
			if err := n.NotifyCompleted(context.Background(), order); err != nil {
				t.Fatalf("notify %d: %v", i, err)
			}
		}
		if len(sink.emitted) != 1 {
			t.Fatalf("expected 1 notification, got %d", len(sink.emitted))
		}
		if want := "Order completed: Instagram Likes • Order #9001"; sink.emitted[0] != want {
			t.Fatalf("got %q, want %q", sink.emitted[0], want)
		}
	})

	t.Run("persist failure emits nothing", func(t *testing.T) {
		seen := &fakeSeenStore{failMark: true}
		sink := &fakeSink{}
		n := NewCompletionNotifier(seen, sink)

		if err := n.NotifyCompleted(context.Background(), order); err == nil {
			t.Fatalf("expected error")
		}
		if len(sink.emitted) != 0 {
			t.Fatalf("nothing may be emitted before the persist, got %d", len(sink.emitted))
		}
	})

	t.Run("crash after persist never re-notifies", func(t *testing.T) {
		seen := &fakeSeenStore{}
		// First pass: persist succeeds, sink fails — the simulated crash
		// between persist and delivery.
		n := NewCompletionNotifier(seen, &fakeSink{fail: true})
		if err := n.NotifyCompleted(context.Background(), order); err != nil {
			t.Fatalf("sink failure is an accepted miss, got %v", err)
		}

		// Restarted pass over the same snapshot with a working sink.
		sink := &fakeSink{}
		n = NewCompletionNotifier(seen, sink)
		if err := n.NotifyCompleted(context.Background(), order); err != nil {
			t.Fatalf("second pass: %v", err)
		}
		if len(sink.emitted) != 0 {
			t.Fatalf("persisted id must never be re-notified, got %d emissions", len(sink.emitted))
		}
	})

	t.Run("no provider order id is a no-op", func(t *testing.T) {
		seen := &fakeSeenStore{}
		sink := &fakeSink{}
		n := NewCompletionNotifier(seen, sink)
		if err := n.NotifyCompleted(context.Background(), model.Order{UserID: "u1"}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(sink.emitted) != 0 || len(seen.ids) != 0 {
			t.Fatalf("expected no side effects")
		}
	})
}
