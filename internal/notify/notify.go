// Package notify emits user notifications and guarantees the "order
// completed" notification fires at most once per provider order, across
// restarts.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"smmpanel/internal/model"
)

// NotifiedCap bounds the persisted set of already-notified provider order
// ids. Oldest entries are evicted first.
const NotifiedCap = 500

// Sink delivers a notification to a user. Fire-and-forget: the core requires
// no delivery guarantee from it.
type Sink interface {
	Emit(ctx context.Context, userID, title, description string) error
}

// SeenStore is the persisted, ordered set of provider order ids already
// reported as completed. Implementations enforce the NotifiedCap eviction
// and persist every append immediately.
type SeenStore interface {
	Seen(ctx context.Context, providerOrderID string) (bool, error)
	MarkSeen(ctx context.Context, providerOrderID string) error
}

// AppendBounded appends id to the ordered set unless already present and
// evicts the oldest entries beyond cap. Shared by SeenStore implementations
// so the eviction policy lives in one place.
func AppendBounded(ids []string, id string, cap int) []string {
	for _, v := range ids {
		if v == id {
			return ids
		}
	}
	ids = append(ids, id)
	if len(ids) > cap {
		ids = ids[len(ids)-cap:]
	}
	return ids
}

// CompletedStatus reports whether a provider status string means the order
// finished. The provider mixes English and Portuguese vocabularies.
func CompletedStatus(status string) bool {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "completed", "concluido", "concluído":
		return true
	}
	return false
}

// CompletionNotifier deduplicates "order completed" notifications against
// the persisted seen set.
type CompletionNotifier struct {
	seen SeenStore
	sink Sink
}

func NewCompletionNotifier(seen SeenStore, sink Sink) *CompletionNotifier {
	return &CompletionNotifier{seen: seen, sink: sink}
}

// NotifyCompleted emits at most one notification for the order. The id is
// persisted into the seen set before the sink is invoked: a crash between
// the two loses one notification, it never duplicates one.
func (n *CompletionNotifier) NotifyCompleted(ctx context.Context, o model.Order) error {
	if o.ProviderOrderID == "" {
		return nil
	}

	seen, err := n.seen.Seen(ctx, o.ProviderOrderID)
	if err != nil {
		return fmt.Errorf("check notified set: %w", err)
	}
	if seen {
		return nil
	}

	if err := n.seen.MarkSeen(ctx, o.ProviderOrderID); err != nil {
		return fmt.Errorf("persist notified set: %w", err)
	}

	if err := n.sink.Emit(ctx, o.UserID, "Order completed", CompletedDescription(o)); err != nil {
		// Accepted miss: the id is already persisted, so this order will
		// never be re-notified.
		slog.Error("completion notification not delivered", "provider_order_id", o.ProviderOrderID, "error", err)
	}
	return nil
}

// CompletedDescription renders the notification body for a completed order.
func CompletedDescription(o model.Order) string {
	name := o.ServiceName
	if name == "" {
		name = "Service"
	}
	return fmt.Sprintf("%s • Order #%s", name, o.ProviderOrderID)
}
