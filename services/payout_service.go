package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"prediction-contest/models"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"github.com/jonboulle/clockwork"
	"github.com/shopspring/decimal"
)

type PayoutOutcome string

const (
	PayoutApplied PayoutOutcome = "applied"
	PayoutNoop    PayoutOutcome = "noop"
)

// Credit is one prize paid to one user.
type Credit struct {
	UserID       string          `json:"user_id"`
	FromRank     int             `json:"from_rank"`
	ToRank       int             `json:"to_rank"`
	Amount       decimal.Decimal `json:"amount"`
	BalanceAfter decimal.Decimal `json:"balance_after"`
	EntryID      string          `json:"entry_id,omitempty"`
}

// PayoutResult reports what a payout (or redistribution) did.
type PayoutResult struct {
	TournamentID string          `json:"tournament_id"`
	Tournament   string          `json:"tournament"`
	Outcome      PayoutOutcome   `json:"outcome"`
	Reason       string          `json:"reason,omitempty"`
	BatchID      string          `json:"batch_id,omitempty"`
	Prizes       PrizeTable      `json:"prizes"`
	Credits      []Credit        `json:"credits"`
	Total        decimal.Decimal `json:"total"`
	Reversed     int             `json:"reversed,omitempty"`
	At           time.Time       `json:"at"`
}

// ObjectUploader stores a document under a key and returns its location.
type ObjectUploader interface {
	PutJSON(ctx context.Context, key string, body []byte) (string, error)
}

// PayoutService applies and reverses prize distributions.
type PayoutService struct {
	Store   ContestStore
	Prizes  *PrizeCalculator
	Clock   clockwork.Clock
	Metrics *Metrics
	Archive ObjectUploader // optional
}

func NewPayoutService(store ContestStore, prizes *PrizeCalculator, clock clockwork.Clock) *PayoutService {
	return &PayoutService{Store: store, Prizes: prizes, Clock: clock}
}

// PlanPayout walks the rank bands top down and works out each user's share.
// A band on ranks r..r+k-1 splits the prizes of that span equally, truncated
// to cents. Bands that win nothing are skipped; the walk stops once the rank
// passes the paid places.
func PlanPayout(bands []RankBand, table PrizeTable, places int) []Credit {
	var credits []Credit
	for _, band := range bands {
		if band.Rank > places {
			break
		}
		pot := table.SpanTotal(band.Rank, band.LastRank())
		share := pot.Div(decimal.NewFromInt(int64(len(band.UserIDs)))).Truncate(2)
		if !share.IsPositive() {
			continue
		}
		for _, userID := range band.UserIDs {
			credits = append(credits, Credit{
				UserID:   userID,
				FromRank: band.Rank,
				ToRank:   band.LastRank(),
				Amount:   share,
			})
		}
	}
	return credits
}

// ApplyPayouts distributes the prize pool of a tournament. All credits and
// the payout batch are committed together, or nothing is.
func (s *PayoutService) ApplyPayouts(ctx context.Context, tournamentID string) (*PayoutResult, error) {
	var result *PayoutResult
	err := s.Store.Transaction(ctx, func(store ContestStore) error {
		var err error
		result, err = s.applyPayouts(ctx, store, tournamentID)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.afterCommit(ctx, result)
	return result, nil
}

// Redistribute reverses every applied payout of a finished tournament for
// its current attendees and pays out again from the current leaderboard.
// Reversal and the new payout commit together.
func (s *PayoutService) Redistribute(ctx context.Context, tournamentID string) (*PayoutResult, error) {
	var result *PayoutResult
	err := s.Store.Transaction(ctx, func(store ContestStore) error {
		t, err := store.GetTournament(ctx, tournamentID)
		if err != nil {
			return err
		}
		if t.Status != models.TournamentStatusFinished {
			return fmt.Errorf("redistribute %q in status %s: %w", t.Name, t.Status, ErrInvalidStatus)
		}

		reversed, err := s.reverse(ctx, store, t)
		if err != nil {
			return err
		}
		result, err = s.applyPayouts(ctx, store, tournamentID)
		if err != nil {
			return err
		}
		result.Reversed = reversed
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.afterCommit(ctx, result)
	return result, nil
}

func (s *PayoutService) applyPayouts(ctx context.Context, store ContestStore, tournamentID string) (*PayoutResult, error) {
	t, err := store.GetTournament(ctx, tournamentID)
	if err != nil {
		return nil, err
	}
	result := &PayoutResult{
		TournamentID: t.ID,
		Tournament:   t.Name,
		Outcome:      PayoutNoop,
		Prizes:       PrizeTable{},
		Total:        decimal.Zero,
		At:           s.Clock.Now(),
	}

	applied, err := store.ListPayoutBatches(ctx, t.ID, models.PayoutBatchApplied)
	if err != nil {
		return nil, err
	}
	if len(applied) > 0 {
		return nil, fmt.Errorf("tournament %q (batch %s): %w", t.Name, applied[0].ID, ErrAlreadyPaid)
	}

	attendees, err := store.GetAttendees(ctx, t.ID)
	if err != nil {
		return nil, err
	}
	if len(attendees) == 0 {
		return noop(result, "no attendees"), nil
	}

	predictions, err := store.ListPredictions(ctx, t.ID)
	if err != nil {
		return nil, err
	}
	rows := BuildLeaderboard(attendeePredictions(predictions, attendees))
	if len(rows) == 0 {
		return noop(result, "empty leaderboard"), nil
	}

	result.Prizes = s.Prizes.Distribute(t.EntryFee, len(attendees), t.PrizePlaces)
	if len(result.Prizes) == 0 {
		return noop(result, "no prizes for this entry fee and prize places"), nil
	}

	credits := PlanPayout(GroupRankBands(rows), result.Prizes, t.PrizePlaces)
	if len(credits) == 0 {
		return noop(result, "no rank band reached a paid place"), nil
	}

	batch := &models.PayoutBatch{
		ID:           uuid.NewString(),
		TournamentID: t.ID,
		Status:       models.PayoutBatchApplied,
		Credits:      len(credits),
		CreatedAt:    result.At,
	}
	for _, c := range credits {
		result.Total = result.Total.Add(c.Amount)
	}
	batch.Total = result.Total
	if err := store.CreatePayoutBatch(ctx, batch); err != nil {
		return nil, err
	}

	for i := range credits {
		c := &credits[i]
		entry, err := PostLedger(ctx, store, LedgerPosting{
			UserID:       c.UserID,
			Amount:       c.Amount,
			Kind:         models.LedgerKindPrize,
			Description:  prizeDescription(c.FromRank, c.ToRank, t.Name),
			TournamentID: t.ID,
			BatchID:      batch.ID,
		}, result.At)
		if err != nil {
			return nil, fmt.Errorf("credit prize to %s: %w", c.UserID, err)
		}
		c.BalanceAfter = entry.BalanceAfter
		c.EntryID = entry.ID
	}

	result.Outcome = PayoutApplied
	result.BatchID = batch.ID
	result.Credits = credits
	return result, nil
}

// reverse backs out the prize entries of every applied batch, limited to
// current attendees. Originals stay in the ledger marked reversed.
func (s *PayoutService) reverse(ctx context.Context, store ContestStore, t *models.Tournament) (int, error) {
	batches, err := store.ListPayoutBatches(ctx, t.ID, models.PayoutBatchApplied)
	if err != nil {
		return 0, err
	}
	if len(batches) == 0 {
		return 0, nil
	}

	attendees, err := store.GetAttendees(ctx, t.ID)
	if err != nil {
		return 0, err
	}
	userIDs := make([]string, 0, len(attendees))
	for _, a := range attendees {
		userIDs = append(userIDs, a.UserID)
	}
	batchIDs := make([]string, 0, len(batches))
	for _, b := range batches {
		batchIDs = append(batchIDs, b.ID)
	}

	entries, err := store.FindLedgerEntries(ctx, LedgerFilter{
		TournamentID: t.ID,
		Kind:         models.LedgerKindPrize,
		BatchIDs:     batchIDs,
		UserIDs:      userIDs,
	})
	if err != nil {
		return 0, err
	}

	now := s.Clock.Now()
	for _, e := range entries {
		_, err := PostLedger(ctx, store, LedgerPosting{
			UserID:       e.UserID,
			Amount:       e.Amount.Neg(),
			Kind:         models.LedgerKindPrizeReversal,
			Description:  "Reversal: " + e.Description,
			TournamentID: t.ID,
			BatchID:      derefString(e.BatchID),
			ReversalOf:   e.ID,
		}, now)
		if err != nil {
			return 0, fmt.Errorf("reverse ledger entry %s: %w", e.ID, err)
		}
		if err := store.MarkLedgerReversed(ctx, e.ID, now); err != nil {
			return 0, err
		}
	}
	for _, b := range batches {
		if err := store.MarkPayoutBatchReversed(ctx, b.ID, now); err != nil {
			return 0, err
		}
	}

	log.Printf("↩️ [PAYOUT] Reversed %d prize entr(ies) from %d batch(es) of %q", len(entries), len(batches), t.Name)
	return len(entries), nil
}

func (s *PayoutService) afterCommit(ctx context.Context, result *PayoutResult) {
	s.Metrics.observePayout(result)

	if result.Outcome == PayoutNoop {
		log.Printf("ℹ️ [PAYOUT] %q: nothing distributed (%s)", result.Tournament, result.Reason)
	} else {
		log.Printf("💰 [PAYOUT] %q: credited %s to %d user(s) in batch %s",
			result.Tournament, result.Total.StringFixed(2), len(result.Credits), result.BatchID)
	}

	if s.Archive == nil || result.Outcome == PayoutNoop {
		return
	}
	body, err := json.Marshal(result)
	if err != nil {
		log.Printf("⚠️ [PAYOUT] Failed to encode payout report: %v", err)
		return
	}
	key := PayoutReportKey(result)
	if _, err := s.Archive.PutJSON(ctx, key, body); err != nil {
		log.Printf("⚠️ [PAYOUT] Failed to archive payout report %s: %v", key, err)
	}
}

// PayoutReportKey is the object key a payout report is archived under.
func PayoutReportKey(result *PayoutResult) string {
	return fmt.Sprintf("payouts/%s/%s-%s.json",
		slug.Make(result.Tournament), result.At.UTC().Format("20060102T150405Z"), result.BatchID)
}

func attendeePredictions(predictions []models.Prediction, attendees []models.TournamentAttendee) []models.Prediction {
	joined := make(map[string]bool, len(attendees))
	for _, a := range attendees {
		joined[a.UserID] = true
	}
	kept := predictions[:0:0]
	for _, p := range predictions {
		if joined[p.UserID] {
			kept = append(kept, p)
		}
	}
	return kept
}

func noop(result *PayoutResult, reason string) *PayoutResult {
	result.Outcome = PayoutNoop
	result.Reason = reason
	return result
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
