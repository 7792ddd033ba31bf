package services

import (
	"context"
	"fmt"
	"time"

	"prediction-contest/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LedgerPosting describes one balance change.
type LedgerPosting struct {
	UserID       string
	Amount       decimal.Decimal
	Kind         models.LedgerKind
	Description  string
	TournamentID string
	BatchID      string
	ReversalOf   string
}

// PostLedger moves a user's balance and records the matching ledger entry.
// Balances never change without an entry.
func PostLedger(ctx context.Context, store LedgerStore, p LedgerPosting, at time.Time) (*models.BalanceHistory, error) {
	balance, err := store.AdjustBalance(ctx, p.UserID, p.Amount)
	if err != nil {
		return nil, err
	}

	entry := &models.BalanceHistory{
		ID:           uuid.NewString(),
		UserID:       p.UserID,
		Amount:       p.Amount,
		BalanceAfter: balance,
		Description:  p.Description,
		Kind:         p.Kind,
		TournamentID: optional(p.TournamentID),
		BatchID:      optional(p.BatchID),
		ReversalOf:   optional(p.ReversalOf),
		CreatedAt:    at,
	}
	if err := store.AppendLedger(ctx, entry); err != nil {
		return nil, fmt.Errorf("record %s for %s: %w", p.Kind, p.UserID, err)
	}
	return entry, nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func entryFeeDescription(name string) string { return "Entry fee for " + name }
func refundDescription(name string) string   { return "Refund for leaving " + name }
func cancelDescription(name string) string   { return "Refund for cancelled " + name }

func prizeDescription(from, to int, name string) string {
	if from == to {
		return fmt.Sprintf("Prize for place %d in %s", from, name)
	}
	return fmt.Sprintf("Prize for places %d-%d in %s", from, to, name)
}
