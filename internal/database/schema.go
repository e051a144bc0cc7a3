package database

import (
	"database/sql"
	"fmt"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS users (
    id UUID PRIMARY KEY,
    login TEXT UNIQUE NOT NULL,
    password_hash BYTEA NOT NULL,
    balance NUMERIC(12,4) NOT NULL DEFAULT 0,
    is_admin BOOLEAN NOT NULL DEFAULT FALSE,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS smm_orders (
    id UUID PRIMARY KEY,
    user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    provider_order_id TEXT,
    service_id TEXT NOT NULL,
    service_name TEXT NOT NULL,
    link TEXT NOT NULL,
    quantity INTEGER NOT NULL,
    provider_cost NUMERIC(12,4) NOT NULL,
    price NUMERIC(12,4) NOT NULL,
    profit NUMERIC(12,4) NOT NULL,
    markup_percent NUMERIC(8,4) NOT NULL,
    fee_fixed NUMERIC(12,4) NOT NULL,
    applied_rule_id UUID,
    status TEXT NOT NULL DEFAULT 'pending',
    provider_status TEXT,
    provider_charge NUMERIC(12,4),
    provider_start_count BIGINT,
    provider_remains BIGINT,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS smm_markup_rules (
    id UUID PRIMARY KEY,
    is_active BOOLEAN NOT NULL DEFAULT TRUE,
    service_id TEXT,
    category_pattern TEXT,
    markup_percent NUMERIC(8,4) NOT NULL DEFAULT 0,
    fee_fixed NUMERIC(12,4) NOT NULL DEFAULT 0,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    CHECK (service_id IS NOT NULL OR category_pattern IS NOT NULL)
);

CREATE TABLE IF NOT EXISTS notified_orders (
    namespace TEXT PRIMARY KEY,
    ids JSONB NOT NULL DEFAULT '[]',
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS notifications (
    id UUID PRIMARY KEY,
    user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    title TEXT NOT NULL,
    description TEXT NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS wallet_topups (
    id UUID PRIMARY KEY,
    user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    amount NUMERIC(12,4) NOT NULL,
    payment_code TEXT NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_smm_orders_user_id ON smm_orders(user_id);
CREATE INDEX IF NOT EXISTS idx_smm_orders_status ON smm_orders(status);
CREATE INDEX IF NOT EXISTS idx_smm_markup_rules_active ON smm_markup_rules(is_active);
CREATE INDEX IF NOT EXISTS idx_notifications_user_id ON notifications(user_id);
`

func InitSchema(db *sql.DB) error {
	_, err := db.Exec(schemaSQL)
	if err != nil {
		return fmt.Errorf("failed to init schema: %w", err)
	}
	return nil
}
