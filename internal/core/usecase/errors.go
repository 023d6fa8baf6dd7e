package usecase

import (
	"errors"

	"github.com/Nzyazin/settlement/internal/core/repository"
)

var (
	ErrInvalidAmount         = errors.New("amount must be positive with at most two decimal places")
	ErrInvalidOperationType  = errors.New("invalid operation type")
	ErrInvalidUserID         = errors.New("user id is required")
	ErrInvalidPurchase       = errors.New("invalid purchase")
	ErrInvalidCommissionRate = errors.New("commission rate must be between 0 and 100 with at most two decimal places")

	ErrWalletNotFound     = repository.ErrWalletNotFound
	ErrWalletExists       = repository.ErrWalletExists
	ErrInsufficientFunds  = repository.ErrInsufficientFunds
	ErrProductNotFound    = repository.ErrProductNotFound
	ErrStorageUnavailable = repository.ErrStorageUnavailable
)

// IsClientError reports errors the caller can fix by changing the request.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrInvalidOperationType) ||
		errors.Is(err, ErrInvalidUserID) ||
		errors.Is(err, ErrInvalidPurchase) ||
		errors.Is(err, ErrInvalidCommissionRate) ||
		errors.Is(err, ErrInsufficientFunds)
}

// IsRetryable reports errors after which the whole operation may be
// resubmitted. Nothing is committed when these are returned.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrStorageUnavailable)
}
