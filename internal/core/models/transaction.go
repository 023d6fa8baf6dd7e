package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type TransactionKind string

const (
	KindPurchaseIncome      TransactionKind = "purchase_income"
	KindAffiliateCommission TransactionKind = "affiliate_commission"
	KindWithdrawal          TransactionKind = "withdrawal"
	KindTopup               TransactionKind = "topup"
)

func (k TransactionKind) Valid() bool {
	switch k {
	case KindPurchaseIncome, KindAffiliateCommission, KindWithdrawal, KindTopup:
		return true
	}
	return false
}

// IsCredit reports kinds that add to a balance. Withdrawal is the only debit.
func (k TransactionKind) IsCredit() bool {
	switch k {
	case KindPurchaseIncome, KindAffiliateCommission, KindTopup:
		return true
	}
	return false
}

// Transaction is an immutable ledger line. Positive amounts are credits,
// negative amounts are debits. Seq breaks ties between entries sharing a
// timestamp.
type Transaction struct {
	ID          uuid.UUID       `json:"id" db:"id"`
	Seq         int64           `json:"-" db:"seq"`
	WalletID    uuid.UUID       `json:"wallet_id" db:"wallet_id"`
	Amount      decimal.Decimal `json:"amount" db:"amount"`
	Kind        TransactionKind `json:"kind" db:"transaction_type"`
	ReferenceID *uuid.UUID      `json:"reference_id,omitempty" db:"reference_id"`
	Description string          `json:"description" db:"description"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
}
