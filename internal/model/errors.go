package model

import (
	"errors"
	"fmt"
)

var (
	ErrAPIKeyMissing       = errors.New("provider API key not configured")
	ErrServiceNotFound     = errors.New("service not found in catalog")
	ErrRuleMatcherRequired = errors.New("rule must set a service id or a category pattern")
	ErrNegativeMarkup      = errors.New("markup percent must not be negative")
	ErrNegativeFee         = errors.New("fixed fee must not be negative")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrLoginTaken          = errors.New("login already exists")
	ErrInvalidCredentials  = errors.New("invalid login or password")
	ErrUserNotFound        = errors.New("user not found")
	ErrRuleNotFound        = errors.New("markup rule not found")
)

// ProviderError is a transport failure or a provider-side rejection.
// Terminal for a single submission, recorded per row in a batch.
type ProviderError struct {
	Op      string
	Message string
	Err     error
}

func (e *ProviderError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("provider %s: %s", e.Op, e.Message)
	}
	return fmt.Sprintf("provider %s: %v", e.Op, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// OrphanOrderError means the provider accepted the order but the local save
// failed. The provider order exists upstream with no local record, so the id
// is carried for manual reconciliation.
type OrphanOrderError struct {
	ProviderOrderID string
	Err             error
}

func (e *OrphanOrderError) Error() string {
	return fmt.Sprintf("provider order %s created but local save failed: %v", e.ProviderOrderID, e.Err)
}

func (e *OrphanOrderError) Unwrap() error { return e.Err }
