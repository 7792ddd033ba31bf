package services

import (
	"context"
	"errors"
	"sort"
	"time"

	"prediction-contest/models"

	"github.com/shopspring/decimal"
)

var errInjected = errors.New("injected failure")

// fakeStore is an in-memory ContestStore. Transaction snapshots the state
// and restores it when fn fails. The Fn fields inject failures.
type fakeStore struct {
	tournaments map[string]models.Tournament
	predictions []models.Prediction
	attendees   map[string][]models.TournamentAttendee
	balances    map[string]decimal.Decimal
	ledger      []models.BalanceHistory
	batches     []models.PayoutBatch

	AppendLedgerFn           func(entry *models.BalanceHistory) error
	UpdatePredictionResultFn func(id string) error
	ListPendingPredictionsFn func(tournamentID string) error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		tournaments: make(map[string]models.Tournament),
		attendees:   make(map[string][]models.TournamentAttendee),
		balances:    make(map[string]decimal.Decimal),
	}
}

func (f *fakeStore) addTournament(t models.Tournament) {
	f.tournaments[t.ID] = t
}

func (f *fakeStore) addUser(id string, balance string) {
	f.balances[id] = decimal.RequireFromString(balance)
}

func (f *fakeStore) join(tournamentID string, userIDs ...string) {
	for _, u := range userIDs {
		if _, ok := f.balances[u]; !ok {
			f.balances[u] = decimal.Zero
		}
		f.attendees[tournamentID] = append(f.attendees[tournamentID], models.TournamentAttendee{TournamentID: tournamentID, UserID: u})
	}
}

func (f *fakeStore) addPrediction(p models.Prediction) {
	f.predictions = append(f.predictions, p)
}

func (f *fakeStore) balance(userID string) string {
	return f.balances[userID].StringFixed(2)
}

func (f *fakeStore) prediction(id string) models.Prediction {
	for _, p := range f.predictions {
		if p.ID == id {
			return p
		}
	}
	return models.Prediction{}
}

func (f *fakeStore) ledgerOf(kind models.LedgerKind) []models.BalanceHistory {
	var out []models.BalanceHistory
	for _, e := range f.ledger {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}

type fakeSnapshot struct {
	tournaments map[string]models.Tournament
	predictions []models.Prediction
	attendees   map[string][]models.TournamentAttendee
	balances    map[string]decimal.Decimal
	ledger      []models.BalanceHistory
	batches     []models.PayoutBatch
}

func (f *fakeStore) snapshot() fakeSnapshot {
	s := fakeSnapshot{
		tournaments: make(map[string]models.Tournament, len(f.tournaments)),
		predictions: append([]models.Prediction(nil), f.predictions...),
		attendees:   make(map[string][]models.TournamentAttendee, len(f.attendees)),
		balances:    make(map[string]decimal.Decimal, len(f.balances)),
		ledger:      append([]models.BalanceHistory(nil), f.ledger...),
		batches:     append([]models.PayoutBatch(nil), f.batches...),
	}
	for k, t := range f.tournaments {
		t.Fixtures = append([]models.TournamentFixture(nil), t.Fixtures...)
		s.tournaments[k] = t
	}
	for k, v := range f.attendees {
		s.attendees[k] = append([]models.TournamentAttendee(nil), v...)
	}
	for k, v := range f.balances {
		s.balances[k] = v
	}
	return s
}

func (f *fakeStore) restore(s fakeSnapshot) {
	f.tournaments = s.tournaments
	f.predictions = s.predictions
	f.attendees = s.attendees
	f.balances = s.balances
	f.ledger = s.ledger
	f.batches = s.batches
}

func (f *fakeStore) Transaction(ctx context.Context, fn func(store ContestStore) error) error {
	snap := f.snapshot()
	if err := fn(f); err != nil {
		f.restore(snap)
		return err
	}
	return nil
}

func (f *fakeStore) GetTournament(ctx context.Context, id string) (*models.Tournament, error) {
	t, ok := f.tournaments[id]
	if !ok {
		return nil, ErrTournamentNotFound
	}
	t.Fixtures = append([]models.TournamentFixture(nil), t.Fixtures...)
	return &t, nil
}

func (f *fakeStore) ListScorableTournaments(ctx context.Context) ([]models.Tournament, error) {
	var out []models.Tournament
	for _, t := range f.tournaments {
		if t.Status == models.TournamentStatusActive || t.Status == models.TournamentStatusFinished {
			t.Fixtures = append([]models.TournamentFixture(nil), t.Fixtures...)
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeStore) ListPendingPredictions(ctx context.Context, tournamentID string) ([]models.Prediction, error) {
	if f.ListPendingPredictionsFn != nil {
		if err := f.ListPendingPredictionsFn(tournamentID); err != nil {
			return nil, err
		}
	}
	var out []models.Prediction
	for _, p := range f.predictions {
		if p.TournamentID == tournamentID && p.Pending() {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeStore) ListPredictions(ctx context.Context, tournamentID string) ([]models.Prediction, error) {
	var out []models.Prediction
	for _, p := range f.predictions {
		if p.TournamentID == tournamentID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeStore) UpdatePredictionResult(ctx context.Context, id string, actual Score, points int, scoredAt time.Time) error {
	if f.UpdatePredictionResultFn != nil {
		if err := f.UpdatePredictionResultFn(id); err != nil {
			return err
		}
	}
	for i := range f.predictions {
		if f.predictions[i].ID == id {
			home, away := actual.Home, actual.Away
			f.predictions[i].ActualHome = &home
			f.predictions[i].ActualAway = &away
			f.predictions[i].PointsAwarded = points
			f.predictions[i].ScoredAt = &scoredAt
			return nil
		}
	}
	return errors.New("prediction not found")
}

func (f *fakeStore) UpdateFixtureResult(ctx context.Context, tournamentID string, fixtureID int64, actual Score) error {
	t, ok := f.tournaments[tournamentID]
	if !ok {
		return ErrTournamentNotFound
	}
	fixtures := append([]models.TournamentFixture(nil), t.Fixtures...)
	for i := range fixtures {
		if fixtures[i].FixtureID == fixtureID {
			home, away := actual.Home, actual.Away
			fixtures[i].HomeGoals = &home
			fixtures[i].AwayGoals = &away
		}
	}
	t.Fixtures = fixtures
	f.tournaments[tournamentID] = t
	return nil
}

func (f *fakeStore) GetAttendees(ctx context.Context, tournamentID string) ([]models.TournamentAttendee, error) {
	return append([]models.TournamentAttendee(nil), f.attendees[tournamentID]...), nil
}

func (f *fakeStore) AdjustBalance(ctx context.Context, userID string, amount decimal.Decimal) (decimal.Decimal, error) {
	balance, ok := f.balances[userID]
	if !ok {
		return decimal.Zero, ErrUserNotFound
	}
	balance = balance.Add(amount)
	f.balances[userID] = balance
	return balance, nil
}

func (f *fakeStore) AppendLedger(ctx context.Context, entry *models.BalanceHistory) error {
	if f.AppendLedgerFn != nil {
		if err := f.AppendLedgerFn(entry); err != nil {
			return err
		}
	}
	f.ledger = append(f.ledger, *entry)
	return nil
}

func (f *fakeStore) FindLedgerEntries(ctx context.Context, filter LedgerFilter) ([]models.BalanceHistory, error) {
	users := make(map[string]bool, len(filter.UserIDs))
	for _, u := range filter.UserIDs {
		users[u] = true
	}
	batches := make(map[string]bool, len(filter.BatchIDs))
	for _, b := range filter.BatchIDs {
		batches[b] = true
	}

	var out []models.BalanceHistory
	for _, e := range f.ledger {
		switch {
		case filter.TournamentID != "" && derefString(e.TournamentID) != filter.TournamentID:
		case filter.Kind != "" && e.Kind != filter.Kind:
		case len(batches) > 0 && !batches[derefString(e.BatchID)]:
		case filter.UserIDs != nil && !users[e.UserID]:
		case !filter.IncludeReversed && e.ReversedAt != nil:
		default:
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeStore) MarkLedgerReversed(ctx context.Context, id string, at time.Time) error {
	for i := range f.ledger {
		if f.ledger[i].ID == id && f.ledger[i].ReversedAt == nil {
			f.ledger[i].ReversedAt = &at
			return nil
		}
	}
	return errors.New("ledger entry already reversed or missing")
}

func (f *fakeStore) CreatePayoutBatch(ctx context.Context, batch *models.PayoutBatch) error {
	f.batches = append(f.batches, *batch)
	return nil
}

func (f *fakeStore) ListPayoutBatches(ctx context.Context, tournamentID string, status models.PayoutBatchStatus) ([]models.PayoutBatch, error) {
	var out []models.PayoutBatch
	for _, b := range f.batches {
		if b.TournamentID == tournamentID && (status == "" || b.Status == status) {
			out = append(out, b)
		}
	}
	return out, nil
}

func (f *fakeStore) MarkPayoutBatchReversed(ctx context.Context, id string, at time.Time) error {
	for i := range f.batches {
		if f.batches[i].ID == id {
			f.batches[i].Status = models.PayoutBatchReversed
			f.batches[i].ReversedAt = &at
			return nil
		}
	}
	return errors.New("payout batch not found")
}

type fakeResultsSource struct {
	byDate    map[string]map[int64]Score
	failDates map[string]error
	byID      map[int64]Score
	failIDs   error

	dateCalls []string
	idCalls   [][]int64
}

func (s *fakeResultsSource) ResultsByDate(ctx context.Context, date time.Time) (map[int64]Score, error) {
	day := date.Format(time.DateOnly)
	s.dateCalls = append(s.dateCalls, day)
	if err := s.failDates[day]; err != nil {
		return nil, err
	}
	return s.byDate[day], nil
}

func (s *fakeResultsSource) ResultsByIDs(ctx context.Context, ids []int64) (map[int64]Score, error) {
	s.idCalls = append(s.idCalls, append([]int64(nil), ids...))
	if s.failIDs != nil {
		return nil, s.failIDs
	}
	out := make(map[int64]Score)
	for _, id := range ids {
		if score, ok := s.byID[id]; ok {
			out[id] = score
		}
	}
	return out, nil
}

func intPtr(v int) *int { return &v }
