package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"slices"

	"smmpanel/internal/notify"
)

// NotifiedSet persists the ordered list of provider order ids already
// reported as completed, one row per namespace. The list is bounded: at
// capacity, the oldest id is evicted on append.
type NotifiedSet struct {
	db        *sql.DB
	namespace string
	cap       int
}

func NewNotifiedSet(db *sql.DB, namespace string) *NotifiedSet {
	return &NotifiedSet{db: db, namespace: namespace, cap: notify.NotifiedCap}
}

func (s *NotifiedSet) load(ctx context.Context) ([]string, error) {
	var raw []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT ids FROM notified_orders WHERE namespace = $1`, s.namespace,
	).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load notified set: %w", err)
	}

	var ids []string
	if err := json.Unmarshal(raw, &ids); err != nil {
		return nil, fmt.Errorf("decode notified set: %w", err)
	}
	return ids, nil
}

func (s *NotifiedSet) Seen(ctx context.Context, providerOrderID string) (bool, error) {
	ids, err := s.load(ctx)
	if err != nil {
		return false, err
	}
	return slices.Contains(ids, providerOrderID), nil
}

// MarkSeen appends the id and persists immediately. Re-marking a seen id is
// a no-op so the list order (and eviction order) stays stable.
func (s *NotifiedSet) MarkSeen(ctx context.Context, providerOrderID string) error {
	ids, err := s.load(ctx)
	if err != nil {
		return err
	}
	if slices.Contains(ids, providerOrderID) {
		return nil
	}
	ids = notify.AppendBounded(ids, providerOrderID, s.cap)

	raw, err := json.Marshal(ids)
	if err != nil {
		return fmt.Errorf("encode notified set: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO notified_orders (namespace, ids, updated_at) VALUES ($1, $2, NOW())
		ON CONFLICT (namespace) DO UPDATE SET ids = EXCLUDED.ids, updated_at = NOW()`,
		s.namespace, raw,
	)
	if err != nil {
		return fmt.Errorf("persist notified set: %w", err)
	}
	return nil
}

var _ notify.SeenStore = (*NotifiedSet)(nil)
