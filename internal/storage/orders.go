// Package storage holds the Postgres repositories behind the service and
// worker interfaces.
package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/shopspring/decimal"

	"smmpanel/internal/model"
	"smmpanel/internal/worker"
)

type Orders struct {
	db *sql.DB
}

func NewOrders(db *sql.DB) *Orders {
	return &Orders{db: db}
}

// Create inserts the order and debits the customer balance in one
// transaction. The balance re-check under the row lock is authoritative; the
// submitter's earlier read is only a pre-check.
func (s *Orders) Create(ctx context.Context, o *model.Order) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var balance decimal.Decimal
	err = tx.QueryRowContext(ctx, `SELECT balance FROM users WHERE id = $1 FOR UPDATE`, o.UserID).Scan(&balance)
	if err != nil {
		if err == sql.ErrNoRows {
			return model.ErrUserNotFound
		}
		return fmt.Errorf("get balance: %w", err)
	}
	if balance.LessThan(o.Price) {
		return model.ErrInsufficientBalance
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE users SET balance = balance - $1 WHERE id = $2`,
		o.Price, o.UserID,
	)
	if err != nil {
		return fmt.Errorf("debit balance: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO smm_orders (
			id, user_id, provider_order_id, service_id, service_name, link, quantity,
			provider_cost, price, profit, markup_percent, fee_fixed, applied_rule_id,
			status, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		o.ID, o.UserID, nullString(o.ProviderOrderID), o.ServiceID, o.ServiceName, o.Link, o.Quantity,
		o.ProviderCost, o.Price, o.Profit, o.MarkupPercent, o.FeeFixed, nullString(o.AppliedRuleID),
		o.Status, o.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}

	return tx.Commit()
}

const orderColumns = `
	id, user_id, COALESCE(provider_order_id, ''), service_id, service_name, link, quantity,
	provider_cost, price, profit, markup_percent, fee_fixed, COALESCE(applied_rule_id::text, ''),
	status, COALESCE(provider_status, ''), provider_charge, provider_start_count, provider_remains,
	created_at`

func scanOrder(row interface{ Scan(...any) error }) (model.Order, error) {
	var (
		o          model.Order
		charge     decimal.NullDecimal
		startCount sql.NullInt64
		remains    sql.NullInt64
	)
	err := row.Scan(
		&o.ID, &o.UserID, &o.ProviderOrderID, &o.ServiceID, &o.ServiceName, &o.Link, &o.Quantity,
		&o.ProviderCost, &o.Price, &o.Profit, &o.MarkupPercent, &o.FeeFixed, &o.AppliedRuleID,
		&o.Status, &o.ProviderStatus, &charge, &startCount, &remains,
		&o.CreatedAt,
	)
	if err != nil {
		return model.Order{}, err
	}
	if charge.Valid {
		o.ProviderCharge = &charge.Decimal
	}
	if startCount.Valid {
		o.ProviderStartCount = &startCount.Int64
	}
	if remains.Valid {
		o.ProviderRemains = &remains.Int64
	}
	return o, nil
}

func (s *Orders) ListByUser(ctx context.Context, userID string) ([]model.Order, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+orderColumns+` FROM smm_orders WHERE user_id = $1 ORDER BY created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}
	defer rows.Close()

	return collectOrders(rows)
}

// ListReconcilable returns non-terminal orders that reached the provider,
// oldest first, across all users.
func (s *Orders) ListReconcilable(ctx context.Context, limit int) ([]model.Order, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+orderColumns+` FROM smm_orders
		 WHERE provider_order_id IS NOT NULL AND status NOT IN ($1, $2, $3)
		 ORDER BY created_at ASC
		 LIMIT $4`,
		model.OrderStatusCompleted, model.OrderStatusCanceled, model.OrderStatusError, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query reconcilable orders: %w", err)
	}
	defer rows.Close()

	return collectOrders(rows)
}

func collectOrders(rows *sql.Rows) ([]model.Order, error) {
	var orders []model.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration failed: %w", err)
	}
	return orders, nil
}

// UpdateProviderState mirrors the provider view onto one order. The local
// status only moves when the provider status maps to a terminal state.
func (s *Orders) UpdateProviderState(ctx context.Context, orderID string, st worker.ProviderState) error {
	var charge decimal.NullDecimal
	if st.Charge != nil {
		charge = decimal.NullDecimal{Decimal: *st.Charge, Valid: true}
	}
	var startCount, remains sql.NullInt64
	if st.StartCount != nil {
		startCount = sql.NullInt64{Int64: *st.StartCount, Valid: true}
	}
	if st.Remains != nil {
		remains = sql.NullInt64{Int64: *st.Remains, Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
		UPDATE smm_orders SET
			provider_status = $1,
			provider_charge = $2,
			provider_start_count = $3,
			provider_remains = $4,
			status = CASE WHEN $5 <> '' THEN $5 ELSE status END
		WHERE id = $6`,
		st.ProviderStatus, charge, startCount, remains, st.LocalStatus, orderID,
	)
	if err != nil {
		return fmt.Errorf("update order %s: %w", orderID, err)
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
