package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"smmpanel/internal/model"
)

type Users struct {
	db *sql.DB
}

func NewUsers(db *sql.DB) *Users {
	return &Users{db: db}
}

func (s *Users) CreateUser(ctx context.Context, login string, passwordHash []byte) (*model.User, error) {
	user := &model.User{
		ID:           uuid.NewString(),
		Login:        login,
		PasswordHash: passwordHash,
		Balance:      decimal.Zero,
		CreatedAt:    time.Now(),
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, login, password_hash, created_at) VALUES ($1, $2, $3, $4)`,
		user.ID, user.Login, user.PasswordHash, user.CreatedAt,
	)
	if err != nil {
		if strings.Contains(err.Error(), "duplicate key") {
			return nil, model.ErrLoginTaken
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}
	return user, nil
}

func (s *Users) UserByLogin(ctx context.Context, login string) (*model.User, error) {
	var user model.User
	err := s.db.QueryRowContext(ctx,
		`SELECT id, login, password_hash, balance, is_admin, created_at FROM users WHERE login = $1`,
		login,
	).Scan(&user.ID, &user.Login, &user.PasswordHash, &user.Balance, &user.Admin, &user.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, model.ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &user, nil
}

func (s *Users) Balance(ctx context.Context, userID string) (decimal.Decimal, error) {
	var balance decimal.Decimal
	err := s.db.QueryRowContext(ctx, `SELECT balance FROM users WHERE id = $1`, userID).Scan(&balance)
	if err != nil {
		if err == sql.ErrNoRows {
			return decimal.Zero, model.ErrUserNotFound
		}
		return decimal.Zero, fmt.Errorf("get balance: %w", err)
	}
	return balance, nil
}

// Credit records a confirmed top-up and adds it to the balance.
func (s *Users) Credit(ctx context.Context, userID string, amount decimal.Decimal, paymentCode string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO wallet_topups (id, user_id, amount, payment_code, created_at) VALUES ($1, $2, $3, $4, $5)`,
		uuid.NewString(), userID, amount, paymentCode, time.Now(),
	)
	if err != nil {
		return fmt.Errorf("insert topup: %w", err)
	}

	res, err := tx.ExecContext(ctx, `UPDATE users SET balance = balance + $1 WHERE id = $2`, amount, userID)
	if err != nil {
		return fmt.Errorf("credit balance: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return model.ErrUserNotFound
	}

	return tx.Commit()
}

func (s *Users) IsAdmin(ctx context.Context, userID string) (bool, error) {
	var admin bool
	err := s.db.QueryRowContext(ctx, `SELECT is_admin FROM users WHERE id = $1`, userID).Scan(&admin)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, model.ErrUserNotFound
		}
		return false, fmt.Errorf("get admin flag: %w", err)
	}
	return admin, nil
}
