package storage

import (
	"context"
	"database/sql"
	"fmt"

	"smmpanel/internal/model"
)

type Rules struct {
	db *sql.DB
}

func NewRules(db *sql.DB) *Rules {
	return &Rules{db: db}
}

func (s *Rules) Create(ctx context.Context, r *model.MarkupRule) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO smm_markup_rules (id, is_active, service_id, category_pattern, markup_percent, fee_fixed, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		r.ID, r.Active, nullString(r.ServiceID), nullString(r.CategoryPattern), r.MarkupPercent, r.FeeFixed, r.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert rule: %w", err)
	}
	return nil
}

const ruleColumns = `id, is_active, COALESCE(service_id, ''), COALESCE(category_pattern, ''), markup_percent, fee_fixed, created_at`

func (s *Rules) List(ctx context.Context) ([]model.MarkupRule, error) {
	return s.query(ctx, `SELECT `+ruleColumns+` FROM smm_markup_rules ORDER BY created_at DESC`)
}

func (s *Rules) Active(ctx context.Context) ([]model.MarkupRule, error) {
	return s.query(ctx, `SELECT `+ruleColumns+` FROM smm_markup_rules WHERE is_active = TRUE ORDER BY created_at DESC`)
}

func (s *Rules) query(ctx context.Context, q string) ([]model.MarkupRule, error) {
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("query rules: %w", err)
	}
	defer rows.Close()

	var rules []model.MarkupRule
	for rows.Next() {
		var r model.MarkupRule
		if err := rows.Scan(&r.ID, &r.Active, &r.ServiceID, &r.CategoryPattern, &r.MarkupPercent, &r.FeeFixed, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan rule: %w", err)
		}
		rules = append(rules, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration failed: %w", err)
	}
	return rules, nil
}

func (s *Rules) SetActive(ctx context.Context, id string, active bool) error {
	res, err := s.db.ExecContext(ctx, `UPDATE smm_markup_rules SET is_active = $1 WHERE id = $2`, active, id)
	if err != nil {
		return fmt.Errorf("update rule: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return model.ErrRuleNotFound
	}
	return nil
}
