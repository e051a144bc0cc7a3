package service

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"smmpanel/internal/model"
)

// UserStore persists user accounts and wallet balances.
type UserStore interface {
	CreateUser(ctx context.Context, login string, passwordHash []byte) (*model.User, error)
	UserByLogin(ctx context.Context, login string) (*model.User, error)
	Balance(ctx context.Context, userID string) (decimal.Decimal, error)
	Credit(ctx context.Context, userID string, amount decimal.Decimal, paymentCode string) error
	IsAdmin(ctx context.Context, userID string) (bool, error)
}

type AuthService struct {
	users UserStore
}

func NewAuthService(users UserStore) *AuthService {
	return &AuthService{users: users}
}

func (s *AuthService) Register(ctx context.Context, login, password string) (*model.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	return s.users.CreateUser(ctx, login, hash)
}

func (s *AuthService) Authenticate(ctx context.Context, login, password string) (*model.User, error) {
	user, err := s.users.UserByLogin(ctx, login)
	if err != nil {
		return nil, model.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(user.PasswordHash, []byte(password)); err != nil {
		return nil, model.ErrInvalidCredentials
	}
	return user, nil
}
