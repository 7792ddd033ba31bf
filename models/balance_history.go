package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// LedgerKind classifies a balance change.
type LedgerKind string

const (
	LedgerKindEntryFee        LedgerKind = "entry_fee"
	LedgerKindRefund          LedgerKind = "refund"
	LedgerKindPrize           LedgerKind = "prize"
	LedgerKindPrizeReversal   LedgerKind = "prize_reversal"
	LedgerKindAdminAdjustment LedgerKind = "admin_adjustment"
)

// BalanceHistory is an append-only ledger entry. Every balance change has one.
// Reversals add a new entry pointing at the original via ReversalOf and stamp
// ReversedAt on the original; rows are never deleted.
type BalanceHistory struct {
	ID           string          `json:"id" gorm:"primaryKey;type:uuid"`
	UserID       string          `json:"user_id" gorm:"type:uuid;not null;index"`
	Amount       decimal.Decimal `json:"amount" gorm:"type:numeric(14,2);not null"`
	BalanceAfter decimal.Decimal `json:"balance_after" gorm:"type:numeric(14,2);not null"`
	Description  string          `json:"description" gorm:"size:255"`
	Kind         LedgerKind      `json:"kind" gorm:"type:varchar(24);not null;index"`
	TournamentID *string         `json:"tournament_id,omitempty" gorm:"type:uuid;index"`
	BatchID      *string         `json:"batch_id,omitempty" gorm:"type:uuid;index"`
	ReversalOf   *string         `json:"reversal_of,omitempty" gorm:"type:uuid"`
	ReversedAt   *time.Time      `json:"reversed_at,omitempty"`
	CreatedAt    time.Time       `json:"created_at" gorm:"index"`
}
