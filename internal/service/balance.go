package service

import (
	"context"
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

// BalanceService exposes the customer wallet. Top-ups arrive with a
// provider-issued payment code; the payment gateway interaction itself
// happens elsewhere and only its code is passed through here.
type BalanceService struct {
	users UserStore
}

func NewBalanceService(users UserStore) *BalanceService {
	return &BalanceService{users: users}
}

// Credit adds funds confirmed by the payment gateway.
func (s *BalanceService) Credit(ctx context.Context, userID string, amount decimal.Decimal, paymentCode string) error {
	if !amount.IsPositive() {
		return errors.New("credit amount must be positive")
	}
	if strings.TrimSpace(paymentCode) == "" {
		return errors.New("payment code required")
	}
	return s.users.Credit(ctx, userID, amount, paymentCode)
}

// Balance implements WalletSource for the submitter.
func (s *BalanceService) Balance(ctx context.Context, userID string) (decimal.Decimal, error) {
	return s.users.Balance(ctx, userID)
}

var _ WalletSource = (*BalanceService)(nil)
