package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"smmpanel/internal/model"
)

// RuleStore persists markup rules. Rules are never deleted, only toggled.
type RuleStore interface {
	Create(ctx context.Context, r *model.MarkupRule) error
	List(ctx context.Context) ([]model.MarkupRule, error)
	Active(ctx context.Context) ([]model.MarkupRule, error)
	SetActive(ctx context.Context, id string, active bool) error
}

type RuleService struct {
	store RuleStore
	now   func() time.Time
}

func NewRuleService(store RuleStore) *RuleService {
	return &RuleService{store: store, now: time.Now}
}

type CreateRuleInput struct {
	ServiceID       string          `json:"service_id"`
	CategoryPattern string          `json:"category_pattern"`
	MarkupPercent   decimal.Decimal `json:"markup_percent"`
	FeeFixed        decimal.Decimal `json:"fee_fixed"`
	Active          bool            `json:"is_active"`
}

// Create validates and persists a rule. A rule matching nothing is invalid:
// at least one of service id or category pattern must be set. Negative
// markup or fee is rejected here, never at resolution time.
func (s *RuleService) Create(ctx context.Context, in CreateRuleInput) (*model.MarkupRule, error) {
	serviceID := model.NormalizeServiceID(in.ServiceID)
	pattern := strings.TrimSpace(in.CategoryPattern)

	if serviceID == "" && pattern == "" {
		return nil, model.ErrRuleMatcherRequired
	}
	if in.MarkupPercent.IsNegative() {
		return nil, model.ErrNegativeMarkup
	}
	if in.FeeFixed.IsNegative() {
		return nil, model.ErrNegativeFee
	}

	rule := &model.MarkupRule{
		ID:              uuid.NewString(),
		Active:          in.Active,
		ServiceID:       serviceID,
		CategoryPattern: pattern,
		MarkupPercent:   in.MarkupPercent,
		FeeFixed:        in.FeeFixed,
		CreatedAt:       s.now(),
	}
	if err := s.store.Create(ctx, rule); err != nil {
		return nil, fmt.Errorf("insert rule: %w", err)
	}
	return rule, nil
}

// List returns every rule, most recently created first.
func (s *RuleService) List(ctx context.Context) ([]model.MarkupRule, error) {
	return s.store.List(ctx)
}

// ActiveRules implements RuleSource for the submitter.
func (s *RuleService) ActiveRules(ctx context.Context) ([]model.MarkupRule, error) {
	return s.store.Active(ctx)
}

// SetActive toggles a rule.
func (s *RuleService) SetActive(ctx context.Context, id string, active bool) error {
	return s.store.SetActive(ctx, id, active)
}
