package workers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"prediction-contest/services"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fixturesPayload = `{
  "errors": [],
  "response": [
    {"fixture": {"id": 101, "date": "2025-03-15T15:00:00+00:00", "status": {"short": "FT"}},
     "league": {"id": 39, "season": 2024, "round": "Regular Season - 28"},
     "teams": {"home": {"name": "Arsenal", "logo": "a.png"}, "away": {"name": "Chelsea", "logo": "c.png"}},
     "goals": {"home": 2, "away": 1}},
    {"fixture": {"id": 102, "date": "2025-03-15T17:30:00+00:00", "status": {"short": "PEN"}},
     "league": {"id": 39, "season": 2024, "round": "Regular Season - 28"},
     "teams": {"home": {"name": "Leeds", "logo": ""}, "away": {"name": "Derby", "logo": ""}},
     "goals": {"home": 1, "away": 1}},
    {"fixture": {"id": 103, "date": "2025-03-15T20:00:00+00:00", "status": {"short": "2H"}},
     "league": {"id": 39, "season": 2024, "round": "Regular Season - 28"},
     "teams": {"home": {"name": "Spurs", "logo": ""}, "away": {"name": "Everton", "logo": ""}},
     "goals": {"home": 0, "away": 0}},
    {"fixture": {"id": 104, "date": "2025-03-15T20:00:00+00:00", "status": {"short": "FT"}},
     "league": {"id": 39, "season": 2024, "round": "Regular Season - 28"},
     "teams": {"home": {"name": "Wolves", "logo": ""}, "away": {"name": "Fulham", "logo": ""}},
     "goals": {"home": null, "away": null}}
  ]
}`

func newTestClient(t *testing.T, handler http.HandlerFunc) *FixtureClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c := NewFixtureClient("api.test", "secret", 600)
	c.BaseURL = srv.URL
	c.Limiter = nil
	c.RetryDelay = time.Millisecond
	return c
}

func TestResultsByDate_SendsQueryAndKeepsFinishedScores(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v3/fixtures", r.URL.Path)
		assert.Equal(t, "2025-03-15", r.URL.Query().Get("date"))
		assert.Equal(t, "FT-AET-PEN", r.URL.Query().Get("status"))
		assert.Equal(t, "api.test", r.Header.Get("x-rapidapi-host"))
		assert.Equal(t, "secret", r.Header.Get("x-rapidapi-key"))
		_, _ = w.Write([]byte(fixturesPayload))
	})

	day := time.Date(2025, 3, 15, 23, 0, 0, 0, time.FixedZone("X", -2*3600))
	scores, err := c.ResultsByDate(context.Background(), day.Add(-3*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, map[int64]services.Score{
		101: {Home: 2, Away: 1},
		102: {Home: 1, Away: 1},
	}, scores)
}

func TestResultsByDate_ResolvesExtraTimeAndPenalties(t *testing.T) {
	// The server filters by the requested statuses the way API-Football does.
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		allowed := map[string]bool{}
		for _, code := range strings.Split(r.URL.Query().Get("status"), "-") {
			allowed[code] = true
		}
		var body struct {
			Response []json.RawMessage `json:"response"`
		}
		require.NoError(t, json.Unmarshal([]byte(fixturesPayload), &body))

		var kept []json.RawMessage
		for _, raw := range body.Response {
			var f apiFixture
			require.NoError(t, json.Unmarshal(raw, &f))
			if allowed[f.Fixture.Status.Short] {
				kept = append(kept, raw)
			}
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"errors": []string{}, "response": kept})
	})

	scores, err := c.ResultsByDate(context.Background(), time.Date(2025, 3, 15, 12, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, services.Score{Home: 1, Away: 1}, scores[102], "penalty shoot-out result is returned")
	assert.Contains(t, scores, int64(101))
}

func TestResultsByIDs_JoinsIDsWithDash(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "101-102-103", r.URL.Query().Get("ids"))
		assert.Empty(t, r.URL.Query().Get("date"))
		_, _ = w.Write([]byte(fixturesPayload))
	})

	scores, err := c.ResultsByIDs(context.Background(), []int64{101, 102, 103})
	require.NoError(t, err)
	assert.Len(t, scores, 2)
}

func TestResultsByIDs_RejectsOversizedBatch(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected")
	})

	ids := make([]int64, services.MaxIDsPerLookup+1)
	for i := range ids {
		ids[i] = int64(i + 1)
	}
	_, err := c.ResultsByIDs(context.Background(), ids)
	assert.Error(t, err)

	scores, err := c.ResultsByIDs(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, scores)
}

func TestUpcomingFixtures_MapsCatalogRows(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "39", r.URL.Query().Get("league"))
		assert.Equal(t, "2024", r.URL.Query().Get("season"))
		assert.Equal(t, "NS", r.URL.Query().Get("status"))
		_, _ = w.Write([]byte(fixturesPayload))
	})

	fixtures, err := c.UpcomingFixtures(context.Background(), 39, 2024)
	require.NoError(t, err)
	require.Len(t, fixtures, 4)

	first := fixtures[0]
	assert.Equal(t, int64(101), first.FixtureID)
	assert.Equal(t, int64(39), first.LeagueID)
	assert.Equal(t, 2024, first.Season)
	assert.Equal(t, "Regular Season - 28", first.Round)
	assert.Equal(t, "Arsenal", first.HomeTeam)
	assert.Equal(t, "c.png", first.AwayLogo)
	assert.True(t, first.Kickoff.Equal(time.Date(2025, 3, 15, 15, 0, 0, 0, time.UTC)))
}

func TestFetch_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(fixturesPayload))
	})

	scores, err := c.ResultsByIDs(context.Background(), []int64{101})
	require.NoError(t, err)
	assert.Len(t, scores, 2)
	assert.EqualValues(t, 2, calls.Load())
}

func TestFetch_DoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte("bad key"))
	})

	_, err := c.ResultsByDate(context.Background(), time.Now())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad key")
	assert.EqualValues(t, 1, calls.Load())
}

func TestFetch_SurfacesAPIErrorsField(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"errors": {"requests": "daily limit reached"}, "response": []}`))
	})

	_, err := c.ResultsByDate(context.Background(), time.Now())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "daily limit reached")
}

func TestFetch_GivesUpAfterRetries(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	})
	c.Retries = 2

	_, err := c.ResultsByDate(context.Background(), time.Now())
	require.Error(t, err)
	assert.EqualValues(t, 3, calls.Load())
}
