package service

import (
	"errors"
	"fmt"
)

// Every rejection below leaves store state unchanged: the failing check runs
// inside the operation's atomic unit, so the store rolls back anything the
// operation may have written.
var (
	ErrInvalidAmount       = errors.New("amount must be positive")
	ErrInvalidAccountType  = errors.New("invalid account type")
	ErrAccountNotFound     = errors.New("account not found")
	ErrRecipientNotFound   = errors.New("recipient account not found")
	ErrLimitExceeded       = errors.New("daily limit exceeded")
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrStoreUnavailable wraps infrastructure failures: the transaction could
	// not commit. Not retried here; retry policy belongs to the caller.
	ErrStoreUnavailable = errors.New("ledger store unavailable")

	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid token")
	ErrUserNotFound       = errors.New("user not found")
)

var domainErrors = []error{
	ErrInvalidAmount,
	ErrInvalidAccountType,
	ErrAccountNotFound,
	ErrRecipientNotFound,
	ErrLimitExceeded,
	ErrInsufficientBalance,
	ErrEmailTaken,
	ErrInvalidCredentials,
	ErrInvalidToken,
	ErrUserNotFound,
}

// storeErr passes domain errors through untouched and wraps everything else
// as a store failure.
func storeErr(err error) error {
	if err == nil {
		return nil
	}
	for _, domain := range domainErrors {
		if errors.Is(err, domain) {
			return err
		}
	}
	return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
}
