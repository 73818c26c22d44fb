// Package apperrors holds the failure kinds the ledger core reports to its callers.
// None of them are retried internally; the HTTP layer maps each to a status code.
package apperrors

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrBalanceOverflow     = errors.New("balance overflow")
	ErrPasswordTooLong     = errors.New("password too long")
	ErrInsufficientFunds   = errors.New("insufficient funds")
	ErrCurrencyMismatch    = errors.New("currency mismatch")
	ErrUnsupportedCurrency = errors.New("unsupported currency")
	ErrAccountNotFound     = errors.New("account not found")
	ErrUserNotFound        = errors.New("user not found")
	ErrUserAlreadyExists   = errors.New("user already exists")

	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid token")
)

// InsufficientFundsError reports a withdrawal larger than the account balance.
// It matches ErrInsufficientFunds under errors.Is.
type InsufficientFundsError struct {
	Amount   int64
	Currency string
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("cannot withdraw %d %s", e.Amount, e.Currency)
}

func (e *InsufficientFundsError) Is(target error) bool {
	return target == ErrInsufficientFunds
}
