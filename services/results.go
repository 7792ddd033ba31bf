package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"strconv"
	"strings"
	"time"

	"prediction-contest/models"
)

// ResultsSource looks up final scores of finished fixtures. Fixtures without
// a final score are absent from the returned map.
type ResultsSource interface {
	ResultsByDate(ctx context.Context, date time.Time) (map[int64]Score, error)
	ResultsByIDs(ctx context.Context, ids []int64) (map[int64]Score, error)
}

type LookupStrategy string

const (
	LookupByDate LookupStrategy = "date"
	LookupByIDs  LookupStrategy = "ids"
)

// MaxIDsPerLookup bounds a single id lookup against the fixture API.
const MaxIDsPerLookup = 20

// BatchFailure records one lookup that failed; its fixtures stay pending.
type BatchFailure struct {
	Batch    string  `json:"batch"`
	Fixtures []int64 `json:"fixtures"`
	Err      error   `json:"-"`
}

func (f BatchFailure) Error() string {
	return fmt.Sprintf("lookup %s failed: %v", f.Batch, f.Err)
}

// Resolution is what the resolver learned about a tournament's pending fixtures.
type Resolution struct {
	Results    map[int64]Score
	FromManual int
	FromStored int
	FromSource int
	Failures   []BatchFailure
}

// ResultsResolver finds actual scores for pending predictions: operator
// entered results first, then scores already stored on the tournament's
// fixtures, then the external source.
type ResultsResolver struct {
	Source    ResultsSource
	Strategy  LookupStrategy
	ChunkSize int
}

func NewResultsResolver(source ResultsSource, strategy LookupStrategy) *ResultsResolver {
	if strategy != LookupByIDs {
		strategy = LookupByDate
	}
	return &ResultsResolver{Source: source, Strategy: strategy, ChunkSize: MaxIDsPerLookup}
}

func (r *ResultsResolver) Resolve(ctx context.Context, t *models.Tournament, pending []models.Prediction) Resolution {
	res := Resolution{Results: make(map[int64]Score)}
	if len(pending) == 0 {
		return res
	}

	needed := make(map[int64]time.Time)
	for _, p := range pending {
		needed[p.FixtureID] = p.Kickoff
	}

	if len(t.ManualResults) > 0 {
		manual, err := ParseManualResults(t.ManualResults)
		if err != nil {
			log.Printf("⚠️ [RESULTS] Ignoring manual results for %q: %v", t.Name, err)
		}
		for id, score := range manual {
			if _, ok := needed[id]; ok {
				res.Results[id] = score
				res.FromManual++
				delete(needed, id)
			}
		}
	}

	for _, f := range t.Fixtures {
		if _, ok := needed[f.FixtureID]; ok && f.Finished() {
			res.Results[f.FixtureID] = Score{Home: *f.HomeGoals, Away: *f.AwayGoals}
			res.FromStored++
			delete(needed, f.FixtureID)
		}
	}

	if len(needed) == 0 || r.Source == nil {
		return res
	}

	if r.Strategy == LookupByIDs {
		r.lookupByIDs(ctx, needed, &res)
	} else {
		r.lookupByDate(ctx, needed, &res)
	}
	return res
}

func (r *ResultsResolver) lookupByDate(ctx context.Context, needed map[int64]time.Time, res *Resolution) {
	byDate := make(map[string][]int64)
	for id, kickoff := range needed {
		day := kickoff.UTC().Format(time.DateOnly)
		byDate[day] = append(byDate[day], id)
	}
	days := make([]string, 0, len(byDate))
	for day := range byDate {
		days = append(days, day)
	}
	sort.Strings(days)

	for _, day := range days {
		ids := byDate[day]
		date, _ := time.Parse(time.DateOnly, day)

		var scores map[int64]Score
		err := ctx.Err()
		if err == nil {
			scores, err = r.Source.ResultsByDate(ctx, date)
		}
		if err != nil {
			r.fail(res, "date "+day, ids, err)
			continue
		}
		r.collect(res, ids, scores)
	}
}

func (r *ResultsResolver) lookupByIDs(ctx context.Context, needed map[int64]time.Time, res *Resolution) {
	ids := make([]int64, 0, len(needed))
	for id := range needed {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	size := r.ChunkSize
	if size <= 0 || size > MaxIDsPerLookup {
		size = MaxIDsPerLookup
	}
	for start := 0; start < len(ids); start += size {
		chunk := ids[start:min(start+size, len(ids))]

		var scores map[int64]Score
		err := ctx.Err()
		if err == nil {
			scores, err = r.Source.ResultsByIDs(ctx, chunk)
		}
		if err != nil {
			r.fail(res, "ids "+joinIDs(chunk), chunk, err)
			continue
		}
		r.collect(res, chunk, scores)
	}
}

func (r *ResultsResolver) collect(res *Resolution, ids []int64, scores map[int64]Score) {
	for _, id := range ids {
		if score, ok := scores[id]; ok {
			res.Results[id] = score
			res.FromSource++
		}
	}
}

func (r *ResultsResolver) fail(res *Resolution, batch string, ids []int64, err error) {
	log.Printf("❌ [RESULTS] Lookup %s failed, %d fixture(s) left pending: %v", batch, len(ids), err)
	res.Failures = append(res.Failures, BatchFailure{Batch: batch, Fixtures: ids, Err: err})
}

type manualScore struct {
	Home *int `json:"home"`
	Away *int `json:"away"`
}

// ParseManualResults decodes operator-entered results of the form
// {"<fixture id>": {"home": 2, "away": 1}}. Entries with a bad id or a
// missing or negative score are skipped; only a malformed document is an error.
func ParseManualResults(raw []byte) (map[int64]Score, error) {
	results := make(map[int64]Score)
	if len(strings.TrimSpace(string(raw))) == 0 || string(raw) == "null" {
		return results, nil
	}

	var doc map[string]manualScore
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("malformed manual results: %w", err)
	}
	for key, s := range doc {
		id, err := strconv.ParseInt(strings.TrimSpace(key), 10, 64)
		if err != nil {
			log.Printf("⚠️ [RESULTS] Skipping manual result with bad fixture id %q", key)
			continue
		}
		if s.Home == nil || s.Away == nil || *s.Home < 0 || *s.Away < 0 {
			log.Printf("⚠️ [RESULTS] Skipping incomplete manual result for fixture %d", id)
			continue
		}
		results[id] = Score{Home: *s.Home, Away: *s.Away}
	}
	return results, nil
}

// EncodeManualResults is the inverse of ParseManualResults.
func EncodeManualResults(results map[int64]Score) ([]byte, error) {
	doc := make(map[string]Score, len(results))
	for id, s := range results {
		doc[strconv.FormatInt(id, 10)] = s
	}
	return json.Marshal(doc)
}

func joinIDs(ids []int64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return strings.Join(parts, "-")
}
