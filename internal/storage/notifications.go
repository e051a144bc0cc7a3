package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"smmpanel/internal/model"
	"smmpanel/internal/notify"
)

// Notifications stores user notifications; it is the notification sink for
// both order-created and order-completed events.
type Notifications struct {
	db *sql.DB
}

func NewNotifications(db *sql.DB) *Notifications {
	return &Notifications{db: db}
}

func (s *Notifications) Emit(ctx context.Context, userID, title, description string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO notifications (id, user_id, title, description, created_at) VALUES ($1, $2, $3, $4, $5)`,
		uuid.NewString(), userID, title, description, time.Now(),
	)
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

func (s *Notifications) ListByUser(ctx context.Context, userID string, limit int) ([]model.Notification, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, title, description, created_at
		 FROM notifications WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2`,
		userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query notifications: %w", err)
	}
	defer rows.Close()

	var out []model.Notification
	for rows.Next() {
		var n model.Notification
		if err := rows.Scan(&n.ID, &n.UserID, &n.Title, &n.Description, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration failed: %w", err)
	}
	return out, nil
}

var _ notify.Sink = (*Notifications)(nil)
