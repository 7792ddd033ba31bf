package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sort"
	"time"

	"prediction-contest/models"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"github.com/jonboulle/clockwork"
	"golang.org/x/text/language"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type TournamentService struct {
	DB      *gorm.DB
	Scoring *ScoringService
	Payouts *PayoutService
	Prizes  *PrizeCalculator
	Clock   clockwork.Clock
}

func NewTournamentService(db *gorm.DB, scoring *ScoringService, payouts *PayoutService, clock clockwork.Clock) *TournamentService {
	return &TournamentService{DB: db, Scoring: scoring, Payouts: payouts, Prizes: payouts.Prizes, Clock: clock}
}

// StatusChange reports a status transition and, for finished tournaments,
// the payout it triggered.
type StatusChange struct {
	Tournament *models.Tournament `json:"tournament"`
	Refunded   int                `json:"refunded,omitempty"`
	Payout     *PayoutResult      `json:"payout,omitempty"`
	PayoutErr  string             `json:"payout_error,omitempty"`
}

func (s *TournamentService) loadTournament(ctx context.Context, tx *gorm.DB, id string, lock bool) (*models.Tournament, error) {
	q := tx.WithContext(ctx)
	if lock {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var t models.Tournament
	if err := q.First(&t, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTournamentNotFound
		}
		return nil, err
	}
	if err := tx.WithContext(ctx).Where("tournament_id = ?", id).Order("kickoff ASC").Find(&t.Fixtures).Error; err != nil {
		return nil, err
	}
	return &t, nil
}

// Create stores a new draft tournament.
func (s *TournamentService) Create(ctx context.Context, organizerID string, in CreateTournamentInput) (*models.Tournament, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	t := &models.Tournament{
		ID:              uuid.NewString(),
		Name:            in.Name,
		Slug:            slug.Make(in.Name),
		Description:     in.Description,
		EntryFee:        in.EntryFee,
		PrizePlaces:     in.PrizePlaces,
		MaxParticipants: in.MaxParticipants,
		Status:          models.TournamentStatusDraft,
		OrganizerID:     organizerID,
	}
	if err := s.DB.WithContext(ctx).Create(t).Error; err != nil {
		return nil, fmt.Errorf("create tournament: %w", err)
	}
	log.Printf("🏆 [TOURNAMENT] Created draft %q (%s)", t.Name, t.ID)
	return t, nil
}

// SelectFixtures attaches catalogue fixtures to a draft tournament and opens it.
func (s *TournamentService) SelectFixtures(ctx context.Context, tournamentID string, fixtureIDs []int64) (*models.Tournament, error) {
	if len(fixtureIDs) == 0 {
		return nil, fmt.Errorf("select at least one fixture: %w", ErrUnknownFixture)
	}

	var out *models.Tournament
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		t, err := s.loadTournament(ctx, tx, tournamentID, true)
		if err != nil {
			return err
		}
		if !t.Status.CanTransitionTo(models.TournamentStatusOpen) {
			return fmt.Errorf("select fixtures in status %s: %w", t.Status, ErrInvalidStatus)
		}

		var catalog []models.CatalogFixture
		if err := tx.Where("fixture_id IN ?", fixtureIDs).Find(&catalog).Error; err != nil {
			return err
		}
		if len(catalog) != len(uniqueIDs(fixtureIDs)) {
			return fmt.Errorf("%d of %d fixtures not in catalogue: %w", len(uniqueIDs(fixtureIDs))-len(catalog), len(fixtureIDs), ErrUnknownFixture)
		}

		now := s.Clock.Now()
		fixtures := make([]models.TournamentFixture, 0, len(catalog))
		for _, c := range catalog {
			if !c.Kickoff.After(now) {
				return fmt.Errorf("fixture %d already kicked off: %w", c.FixtureID, ErrPredictionClosed)
			}
			fixtures = append(fixtures, models.TournamentFixture{
				TournamentID: t.ID,
				FixtureID:    c.FixtureID,
				LeagueID:     c.LeagueID,
				Round:        c.Round,
				HomeTeam:     c.HomeTeam,
				HomeLogo:     c.HomeLogo,
				AwayTeam:     c.AwayTeam,
				AwayLogo:     c.AwayLogo,
				Kickoff:      c.Kickoff,
			})
		}
		sort.Slice(fixtures, func(i, j int) bool { return fixtures[i].Kickoff.Before(fixtures[j].Kickoff) })
		if err := tx.Create(&fixtures).Error; err != nil {
			return err
		}

		start, end := fixtureWindow(fixtures)
		if err := tx.Model(t).Updates(map[string]any{
			"start_time": start,
			"end_time":   end,
			"status":     models.TournamentStatusOpen,
		}).Error; err != nil {
			return err
		}
		t.Fixtures = fixtures
		t.StartTime, t.EndTime, t.Status = &start, &end, models.TournamentStatusOpen
		out = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	log.Printf("✅ [TOURNAMENT] %q opened with %d fixture(s)", out.Name, len(out.Fixtures))
	return out, nil
}

// Join debits the entry fee and adds the user to the attendees.
func (s *TournamentService) Join(ctx context.Context, tournamentID, userID string) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		t, err := s.loadTournament(ctx, tx, tournamentID, true)
		if err != nil {
			return err
		}

		var user models.User
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&user, "id = ?", userID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrUserNotFound
			}
			return err
		}

		var attendees, joined int64
		if err := tx.Model(&models.TournamentAttendee{}).Where("tournament_id = ?", t.ID).Count(&attendees).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.TournamentAttendee{}).Where("tournament_id = ? AND user_id = ?", t.ID, userID).Count(&joined).Error; err != nil {
			return err
		}
		if err := checkJoin(t, attendees, joined > 0, user.Balance); err != nil {
			return err
		}

		now := s.Clock.Now()
		if t.EntryFee.IsPositive() {
			if _, err := PostLedger(ctx, NewGormStore(tx), LedgerPosting{
				UserID:       userID,
				Amount:       t.EntryFee.Neg(),
				Kind:         models.LedgerKindEntryFee,
				Description:  entryFeeDescription(t.Name),
				TournamentID: t.ID,
			}, now); err != nil {
				return err
			}
		}
		return tx.Create(&models.TournamentAttendee{TournamentID: t.ID, UserID: userID, JoinedAt: now}).Error
	})
}

// Leave refunds the entry fee, removes the user and deletes their predictions.
func (s *TournamentService) Leave(ctx context.Context, tournamentID, userID string) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		t, err := s.loadTournament(ctx, tx, tournamentID, true)
		if err != nil {
			return err
		}
		res := tx.Where("tournament_id = ? AND user_id = ?", t.ID, userID).Delete(&models.TournamentAttendee{})
		if res.Error != nil {
			return res.Error
		}
		if err := checkLeave(t, res.RowsAffected > 0); err != nil {
			return err
		}
		if t.EntryFee.IsPositive() {
			if _, err := PostLedger(ctx, NewGormStore(tx), LedgerPosting{
				UserID:       userID,
				Amount:       t.EntryFee,
				Kind:         models.LedgerKindRefund,
				Description:  refundDescription(t.Name),
				TournamentID: t.ID,
			}, s.Clock.Now()); err != nil {
				return err
			}
		}
		return tx.Where("tournament_id = ? AND user_id = ?", t.ID, userID).Delete(&models.Prediction{}).Error
	})
}

// Predict creates or updates the user's forecast for one fixture.
func (s *TournamentService) Predict(ctx context.Context, tournamentID, userID string, fixtureID int64, home, away int) (*models.Prediction, error) {
	t, err := s.loadTournament(ctx, s.DB, tournamentID, false)
	if err != nil {
		return nil, err
	}
	var joined int64
	if err := s.DB.WithContext(ctx).Model(&models.TournamentAttendee{}).
		Where("tournament_id = ? AND user_id = ?", t.ID, userID).Count(&joined).Error; err != nil {
		return nil, err
	}
	fixture := findFixture(t, fixtureID)
	if err := checkPrediction(t, fixture, joined > 0, home, away, s.Clock.Now()); err != nil {
		return nil, err
	}

	p := &models.Prediction{
		ID:            uuid.NewString(),
		UserID:        userID,
		TournamentID:  t.ID,
		FixtureID:     fixture.FixtureID,
		Kickoff:       fixture.Kickoff,
		HomeTeam:      fixture.HomeTeam,
		AwayTeam:      fixture.AwayTeam,
		PredictedHome: &home,
		PredictedAway: &away,
	}
	err = s.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "tournament_id"}, {Name: "fixture_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"predicted_home", "predicted_away", "updated_at"}),
	}).Create(p).Error
	if err != nil {
		return nil, fmt.Errorf("save prediction: %w", err)
	}
	return p, nil
}

// ChangeStatus moves a tournament along its lifecycle. Cancelling refunds
// every attendee in the same transaction; finishing scores the tournament
// once more and applies the payout.
func (s *TournamentService) ChangeStatus(ctx context.Context, tournamentID string, next models.TournamentStatus) (*StatusChange, error) {
	change := &StatusChange{}
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		t, err := s.loadTournament(ctx, tx, tournamentID, true)
		if err != nil {
			return err
		}
		if !t.Status.CanTransitionTo(next) {
			return fmt.Errorf("%s -> %s: %w", t.Status, next, ErrInvalidTransition)
		}
		if err := tx.Model(t).Update("status", next).Error; err != nil {
			return err
		}
		t.Status = next
		change.Tournament = t

		if next == models.TournamentStatusCancelled {
			change.Refunded, err = s.refundAll(ctx, tx, t)
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	log.Printf("🔄 [TOURNAMENT] %q is now %s", change.Tournament.Name, next)

	if next == models.TournamentStatusFinished {
		if s.Scoring != nil {
			s.Scoring.ScoreTournament(ctx, change.Tournament)
		}
		// A failed payout leaves the tournament finished and unpaid; the
		// operator retries through ApplyPayouts.
		change.Payout, err = s.Payouts.ApplyPayouts(ctx, tournamentID)
		if err != nil {
			log.Printf("❌ [PAYOUT] %q finished but payout failed: %v", change.Tournament.Name, err)
			change.PayoutErr = err.Error()
		}
	}
	return change, nil
}

func (s *TournamentService) refundAll(ctx context.Context, tx *gorm.DB, t *models.Tournament) (int, error) {
	if !t.EntryFee.IsPositive() {
		return 0, nil
	}
	var attendees []models.TournamentAttendee
	if err := tx.Where("tournament_id = ?", t.ID).Find(&attendees).Error; err != nil {
		return 0, err
	}
	n, err := refundEntryFees(ctx, NewGormStore(tx), t, attendees, s.Clock.Now())
	if err != nil {
		return 0, err
	}
	log.Printf("↩️ [TOURNAMENT] Refunded %d attendee(s) of cancelled %q", n, t.Name)
	return n, nil
}

// refundEntryFees credits the entry fee back to every attendee of a
// cancelled tournament. The caller's transaction makes it all or nothing.
func refundEntryFees(ctx context.Context, store LedgerStore, t *models.Tournament, attendees []models.TournamentAttendee, at time.Time) (int, error) {
	if !t.EntryFee.IsPositive() {
		return 0, nil
	}
	for _, a := range attendees {
		if _, err := PostLedger(ctx, store, LedgerPosting{
			UserID:       a.UserID,
			Amount:       t.EntryFee,
			Kind:         models.LedgerKindRefund,
			Description:  cancelDescription(t.Name),
			TournamentID: t.ID,
		}, at); err != nil {
			return 0, fmt.Errorf("refund %s: %w", a.UserID, err)
		}
	}
	return len(attendees), nil
}

// SetManualResults merges operator-entered results into the tournament.
func (s *TournamentService) SetManualResults(ctx context.Context, tournamentID string, results map[int64]Score) (map[int64]Score, error) {
	var merged map[int64]Score
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		t, err := s.loadTournament(ctx, tx, tournamentID, true)
		if err != nil {
			return err
		}
		merged, err = mergeManualResults(t, results)
		if err != nil {
			return err
		}
		raw, err := EncodeManualResults(merged)
		if err != nil {
			return err
		}
		return tx.Model(t).Update("manual_results", raw).Error
	})
	return merged, err
}

// Leaderboard returns the standings with usernames and ranks.
func (s *TournamentService) Leaderboard(ctx context.Context, tournamentID string) ([]RankedRow, error) {
	var predictions []models.Prediction
	if err := s.DB.WithContext(ctx).Where("tournament_id = ?", tournamentID).Find(&predictions).Error; err != nil {
		return nil, err
	}
	rows := BuildLeaderboard(predictions)

	ids := make([]string, len(rows))
	for i, r := range rows {
		ids[i] = r.UserID
	}
	var users []models.User
	if len(ids) > 0 {
		if err := s.DB.WithContext(ctx).Select("id", "username").Where("id IN ?", ids).Find(&users).Error; err != nil {
			return nil, err
		}
	}
	names := make(map[string]string, len(users))
	for _, u := range users {
		names[u.ID] = u.Username
	}
	for i := range rows {
		rows[i].Username = names[rows[i].UserID]
	}
	return RankRows(rows), nil
}

// RankedRow is a leaderboard row with the rank band it shares.
type RankedRow struct {
	LeaderboardRow
	Rank int `json:"rank"`
}

// RankRows attaches the shared rank of each row's band.
func RankRows(rows []LeaderboardRow) []RankedRow {
	ranked := make([]RankedRow, len(rows))
	for i, row := range rows {
		rank := i + 1
		if i > 0 && row.TotalPoints == rows[i-1].TotalPoints {
			rank = ranked[i-1].Rank
		}
		ranked[i] = RankedRow{LeaderboardRow: row, Rank: rank}
	}
	return ranked
}

// PrizeTable computes the current prize table from the attendee count.
func (s *TournamentService) PrizeTable(ctx context.Context, tournamentID string) (*models.Tournament, PrizeTable, error) {
	t, err := s.loadTournament(ctx, s.DB, tournamentID, false)
	if err != nil {
		return nil, nil, err
	}
	if err := s.DB.WithContext(ctx).Model(&models.TournamentAttendee{}).Where("tournament_id = ?", t.ID).Count(&t.AttendeesCount).Error; err != nil {
		return nil, nil, err
	}
	return t, s.Prizes.Distribute(t.EntryFee, int(t.AttendeesCount), t.PrizePlaces), nil
}

// --- HTTP handlers ---

func (s *TournamentService) ListTournaments(c *fiber.Ctx) error {
	q := s.DB.WithContext(c.UserContext()).Where("status <> ?", models.TournamentStatusDraft)
	if status := c.Query("status"); status != "" {
		if !models.TournamentStatus(status).Valid() {
			return c.Status(400).JSON(fiber.Map{"error": "invalid status"})
		}
		q = q.Where("status = ?", status)
	}
	var tournaments []models.Tournament
	if err := q.Order("start_time ASC NULLS LAST").Find(&tournaments).Error; err != nil {
		return respondError(c, err)
	}
	return c.JSON(tournaments)
}

func (s *TournamentService) GetTournament(c *fiber.Ctx) error {
	t, prizes, err := s.PrizeTable(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"tournament":  t,
		"prizes":      prizes,
		"prize_lines": prizes.Lines(language.English),
		"net_pool":    s.Prizes.NetPool(t.EntryFee, int(t.AttendeesCount)).StringFixed(2),
	})
}

func (s *TournamentService) GetLeaderboard(c *fiber.Ctx) error {
	rows, err := s.Leaderboard(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(rows)
}

func (s *TournamentService) CreateTournament(c *fiber.Ctx) error {
	var in CreateTournamentInput
	if err := c.BodyParser(&in); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid request body"})
	}
	if err := in.Validate(); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": err.Error()})
	}
	t, err := s.Create(c.UserContext(), userID(c), in)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(t)
}

func (s *TournamentService) SelectTournamentFixtures(c *fiber.Ctx) error {
	var body struct {
		FixtureIDs []int64 `json:"fixture_ids"`
	}
	if err := c.BodyParser(&body); err != nil || len(body.FixtureIDs) == 0 {
		return c.Status(400).JSON(fiber.Map{"error": "fixture_ids must be a non-empty list"})
	}
	t, err := s.SelectFixtures(c.UserContext(), c.Params("id"), body.FixtureIDs)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(t)
}

func (s *TournamentService) JoinTournament(c *fiber.Ctx) error {
	if err := s.Join(c.UserContext(), c.Params("id"), userID(c)); err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"message": "joined"})
}

func (s *TournamentService) LeaveTournament(c *fiber.Ctx) error {
	if err := s.Leave(c.UserContext(), c.Params("id"), userID(c)); err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"message": "left"})
}

func (s *TournamentService) SubmitPrediction(c *fiber.Ctx) error {
	var body struct {
		FixtureID int64 `json:"fixture_id"`
		Home      *int  `json:"home_score"`
		Away      *int  `json:"away_score"`
	}
	if err := c.BodyParser(&body); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid request body"})
	}
	if body.FixtureID == 0 {
		return c.Status(400).JSON(fiber.Map{"error": "fixture_id is required"})
	}
	if body.Home == nil || body.Away == nil {
		return c.Status(400).JSON(fiber.Map{"error": "home_score and away_score are required"})
	}
	p, err := s.Predict(c.UserContext(), c.Params("id"), userID(c), body.FixtureID, *body.Home, *body.Away)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(p)
}

func (s *TournamentService) MyPredictions(c *fiber.Ctx) error {
	var predictions []models.Prediction
	err := s.DB.WithContext(c.UserContext()).
		Where("tournament_id = ? AND user_id = ?", c.Params("id"), userID(c)).
		Order("kickoff ASC").Find(&predictions).Error
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(predictions)
}

func (s *TournamentService) UpdateTournamentStatus(c *fiber.Ctx) error {
	var body struct {
		Status models.TournamentStatus `json:"status"`
	}
	if err := c.BodyParser(&body); err != nil || !body.Status.Valid() {
		return c.Status(400).JSON(fiber.Map{"error": "status must be one of draft, open, active, finished, cancelled"})
	}
	change, err := s.ChangeStatus(c.UserContext(), c.Params("id"), body.Status)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(change)
}

func (s *TournamentService) PutManualResults(c *fiber.Ctx) error {
	var entries map[string]json.RawMessage
	if err := json.Unmarshal(c.Body(), &entries); err != nil || len(entries) == 0 {
		return c.Status(400).JSON(fiber.Map{"error": "body must map fixture ids to {home, away}"})
	}
	results, err := ParseManualResults(c.Body())
	if err != nil || len(results) != len(entries) {
		return c.Status(400).JSON(fiber.Map{"error": "every key must be a fixture id with non-negative home and away scores"})
	}
	merged, err := s.SetManualResults(c.UserContext(), c.Params("id"), results)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(merged)
}

func (s *TournamentService) ApplyTournamentPayout(c *fiber.Ctx) error {
	t, err := s.loadTournament(c.UserContext(), s.DB, c.Params("id"), false)
	if err != nil {
		return respondError(c, err)
	}
	if t.Status != models.TournamentStatusFinished {
		return respondError(c, fmt.Errorf("payout in status %s: %w", t.Status, ErrInvalidStatus))
	}
	result, err := s.Payouts.ApplyPayouts(c.UserContext(), t.ID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(result)
}

func (s *TournamentService) RedistributeTournament(c *fiber.Ctx) error {
	result, err := s.Payouts.Redistribute(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(result)
}

func (s *TournamentService) RescoreTournament(c *fiber.Ctx) error {
	changed, err := s.Scoring.RescoreTournament(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"changed": changed})
}

func (s *TournamentService) RunScoring(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Minute)
	defer cancel()
	report, err := s.Scoring.Run(ctx)
	if err != nil {
		return respondError(c, err)
	}
	status := fiber.StatusOK
	if report.Failed() {
		status = fiber.StatusMultiStatus
	}
	return c.Status(status).JSON(report)
}

func uniqueIDs(ids []int64) map[int64]struct{} {
	set := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}
