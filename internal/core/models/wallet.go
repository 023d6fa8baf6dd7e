package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Wallet holds a user's running balance. Balance always equals the sum of
// the wallet's transaction amounts.
type Wallet struct {
	ID        uuid.UUID       `json:"id" db:"id"`
	UserID    uuid.UUID       `json:"user_id" db:"user_id"`
	Balance   decimal.Decimal `json:"balance" db:"balance"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt time.Time       `json:"updated_at" db:"updated_at"`
}

// WalletOperation is a single credit or debit requested by a caller.
type WalletOperation struct {
	UserID      uuid.UUID       `json:"user_id"`
	Amount      decimal.Decimal `json:"amount"`
	Kind        TransactionKind `json:"kind"`
	ReferenceID *uuid.UUID      `json:"reference_id,omitempty"`
	Description string          `json:"description"`
}

// Reconciliation compares a stored balance with the sum of its ledger.
type Reconciliation struct {
	WalletID   uuid.UUID       `json:"wallet_id"`
	Balance    decimal.Decimal `json:"balance"`
	LedgerSum  decimal.Decimal `json:"ledger_sum"`
	Consistent bool            `json:"consistent"`
}

// OperationResult is the entry a credit or debit wrote and the balance
// right after it.
type OperationResult struct {
	Transaction Transaction     `json:"transaction"`
	Balance     decimal.Decimal `json:"balance"`
}
