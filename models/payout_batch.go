package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type PayoutBatchStatus string

const (
	PayoutBatchApplied  PayoutBatchStatus = "applied"
	PayoutBatchReversed PayoutBatchStatus = "reversed"
)

// PayoutBatch groups the prize ledger entries written by one payout run.
type PayoutBatch struct {
	ID           string            `json:"id" gorm:"primaryKey;type:uuid"`
	TournamentID string            `json:"tournament_id" gorm:"type:uuid;not null;index"`
	Status       PayoutBatchStatus `json:"status" gorm:"type:varchar(16);not null;default:'applied'"`
	Total        decimal.Decimal   `json:"total" gorm:"type:numeric(14,2);not null"`
	Credits      int               `json:"credits"`
	CreatedAt    time.Time         `json:"created_at"`
	ReversedAt   *time.Time        `json:"reversed_at,omitempty"`
}
