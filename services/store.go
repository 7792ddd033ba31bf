package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"prediction-contest/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// LedgerStore is the part of the store every balance change goes through.
type LedgerStore interface {
	// AdjustBalance adds a signed amount to a user's balance and returns the
	// new balance. Callers always pair it with AppendLedger.
	AdjustBalance(ctx context.Context, userID string, amount decimal.Decimal) (decimal.Decimal, error)
	AppendLedger(ctx context.Context, entry *models.BalanceHistory) error
}

// LedgerFilter selects ledger entries. Empty fields do not filter; a non-nil
// empty UserIDs matches nothing.
type LedgerFilter struct {
	TournamentID    string
	Kind            models.LedgerKind
	BatchIDs        []string
	UserIDs         []string
	IncludeReversed bool
}

// ContestStore is the persistence port of the scoring and payout engine.
type ContestStore interface {
	LedgerStore

	GetTournament(ctx context.Context, id string) (*models.Tournament, error)
	ListScorableTournaments(ctx context.Context) ([]models.Tournament, error)
	ListPendingPredictions(ctx context.Context, tournamentID string) ([]models.Prediction, error)
	ListPredictions(ctx context.Context, tournamentID string) ([]models.Prediction, error)
	UpdatePredictionResult(ctx context.Context, id string, actual Score, points int, scoredAt time.Time) error
	UpdateFixtureResult(ctx context.Context, tournamentID string, fixtureID int64, actual Score) error
	GetAttendees(ctx context.Context, tournamentID string) ([]models.TournamentAttendee, error)

	FindLedgerEntries(ctx context.Context, filter LedgerFilter) ([]models.BalanceHistory, error)
	MarkLedgerReversed(ctx context.Context, id string, at time.Time) error

	CreatePayoutBatch(ctx context.Context, batch *models.PayoutBatch) error
	ListPayoutBatches(ctx context.Context, tournamentID string, status models.PayoutBatchStatus) ([]models.PayoutBatch, error)
	MarkPayoutBatchReversed(ctx context.Context, id string, at time.Time) error

	// Transaction runs fn against a store bound to one database transaction.
	// Any error from fn rolls back every write made through that store.
	Transaction(ctx context.Context, fn func(store ContestStore) error) error
}

// GormStore implements ContestStore on PostgreSQL through GORM.
type GormStore struct {
	DB *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{DB: db}
}

func (s *GormStore) Transaction(ctx context.Context, fn func(store ContestStore) error) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormStore{DB: tx})
	})
}

func (s *GormStore) GetTournament(ctx context.Context, id string) (*models.Tournament, error) {
	var t models.Tournament
	err := s.DB.WithContext(ctx).
		Preload("Fixtures", func(db *gorm.DB) *gorm.DB { return db.Order("kickoff ASC") }).
		First(&t, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrTournamentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load tournament %s: %w", id, err)
	}
	return &t, nil
}

func (s *GormStore) ListScorableTournaments(ctx context.Context) ([]models.Tournament, error) {
	var tournaments []models.Tournament
	err := s.DB.WithContext(ctx).
		Preload("Fixtures").
		Where("status IN ?", []models.TournamentStatus{models.TournamentStatusActive, models.TournamentStatusFinished}).
		Order("created_at ASC").
		Find(&tournaments).Error
	if err != nil {
		return nil, fmt.Errorf("list scorable tournaments: %w", err)
	}
	return tournaments, nil
}

func (s *GormStore) ListPendingPredictions(ctx context.Context, tournamentID string) ([]models.Prediction, error) {
	var predictions []models.Prediction
	err := s.DB.WithContext(ctx).
		Where("tournament_id = ? AND scored_at IS NULL", tournamentID).
		Order("kickoff ASC").
		Find(&predictions).Error
	if err != nil {
		return nil, fmt.Errorf("list pending predictions: %w", err)
	}
	return predictions, nil
}

func (s *GormStore) ListPredictions(ctx context.Context, tournamentID string) ([]models.Prediction, error) {
	var predictions []models.Prediction
	if err := s.DB.WithContext(ctx).Where("tournament_id = ?", tournamentID).Find(&predictions).Error; err != nil {
		return nil, fmt.Errorf("list predictions: %w", err)
	}
	return predictions, nil
}

func (s *GormStore) UpdatePredictionResult(ctx context.Context, id string, actual Score, points int, scoredAt time.Time) error {
	res := s.DB.WithContext(ctx).Model(&models.Prediction{}).Where("id = ?", id).Updates(map[string]any{
		"actual_home":    actual.Home,
		"actual_away":    actual.Away,
		"points_awarded": points,
		"scored_at":      scoredAt,
	})
	if res.Error != nil {
		return fmt.Errorf("update prediction %s: %w", id, res.Error)
	}
	return nil
}

func (s *GormStore) UpdateFixtureResult(ctx context.Context, tournamentID string, fixtureID int64, actual Score) error {
	err := s.DB.WithContext(ctx).Model(&models.TournamentFixture{}).
		Where("tournament_id = ? AND fixture_id = ?", tournamentID, fixtureID).
		Updates(map[string]any{"home_goals": actual.Home, "away_goals": actual.Away}).Error
	if err != nil {
		return fmt.Errorf("update fixture %d: %w", fixtureID, err)
	}
	return nil
}

func (s *GormStore) GetAttendees(ctx context.Context, tournamentID string) ([]models.TournamentAttendee, error) {
	var attendees []models.TournamentAttendee
	if err := s.DB.WithContext(ctx).Where("tournament_id = ?", tournamentID).Order("joined_at ASC").Find(&attendees).Error; err != nil {
		return nil, fmt.Errorf("list attendees: %w", err)
	}
	return attendees, nil
}

func (s *GormStore) AdjustBalance(ctx context.Context, userID string, amount decimal.Decimal) (decimal.Decimal, error) {
	var user models.User
	err := s.DB.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&user, "id = ?", userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return decimal.Zero, ErrUserNotFound
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("lock user %s: %w", userID, err)
	}

	balance := user.Balance.Add(amount)
	if err := s.DB.WithContext(ctx).Model(&user).Update("balance", balance).Error; err != nil {
		return decimal.Zero, fmt.Errorf("update balance of %s: %w", userID, err)
	}
	return balance, nil
}

func (s *GormStore) AppendLedger(ctx context.Context, entry *models.BalanceHistory) error {
	if err := s.DB.WithContext(ctx).Create(entry).Error; err != nil {
		return fmt.Errorf("append ledger entry: %w", err)
	}
	return nil
}

func (s *GormStore) FindLedgerEntries(ctx context.Context, filter LedgerFilter) ([]models.BalanceHistory, error) {
	if filter.UserIDs != nil && len(filter.UserIDs) == 0 {
		return nil, nil
	}

	q := s.DB.WithContext(ctx).Model(&models.BalanceHistory{})
	if filter.TournamentID != "" {
		q = q.Where("tournament_id = ?", filter.TournamentID)
	}
	if filter.Kind != "" {
		q = q.Where("kind = ?", filter.Kind)
	}
	if len(filter.BatchIDs) > 0 {
		q = q.Where("batch_id IN ?", filter.BatchIDs)
	}
	if filter.UserIDs != nil {
		q = q.Where("user_id IN ?", filter.UserIDs)
	}
	if !filter.IncludeReversed {
		q = q.Where("reversed_at IS NULL")
	}

	var entries []models.BalanceHistory
	if err := q.Order("created_at ASC").Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("find ledger entries: %w", err)
	}
	return entries, nil
}

func (s *GormStore) MarkLedgerReversed(ctx context.Context, id string, at time.Time) error {
	res := s.DB.WithContext(ctx).Model(&models.BalanceHistory{}).
		Where("id = ? AND reversed_at IS NULL", id).
		Update("reversed_at", at)
	if res.Error != nil {
		return fmt.Errorf("mark ledger entry %s reversed: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("ledger entry %s already reversed or missing", id)
	}
	return nil
}

func (s *GormStore) CreatePayoutBatch(ctx context.Context, batch *models.PayoutBatch) error {
	if err := s.DB.WithContext(ctx).Create(batch).Error; err != nil {
		return fmt.Errorf("create payout batch: %w", err)
	}
	return nil
}

func (s *GormStore) ListPayoutBatches(ctx context.Context, tournamentID string, status models.PayoutBatchStatus) ([]models.PayoutBatch, error) {
	q := s.DB.WithContext(ctx).Where("tournament_id = ?", tournamentID)
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var batches []models.PayoutBatch
	if err := q.Order("created_at ASC").Find(&batches).Error; err != nil {
		return nil, fmt.Errorf("list payout batches: %w", err)
	}
	return batches, nil
}

func (s *GormStore) MarkPayoutBatchReversed(ctx context.Context, id string, at time.Time) error {
	err := s.DB.WithContext(ctx).Model(&models.PayoutBatch{}).Where("id = ?", id).Updates(map[string]any{
		"status":      models.PayoutBatchReversed,
		"reversed_at": at,
	}).Error
	if err != nil {
		return fmt.Errorf("mark payout batch %s reversed: %w", id, err)
	}
	return nil
}
