package workers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"prediction-contest/models"
	"prediction-contest/services"

	"golang.org/x/time/rate"
)

// finishedStatusCodes are API-Football short statuses with a final score:
// full time, after extra time, after penalties.
var finishedStatusCodes = []string{"FT", "AET", "PEN"}

var finishedStatuses = func() map[string]bool {
	set := make(map[string]bool, len(finishedStatusCodes))
	for _, code := range finishedStatusCodes {
		set[code] = true
	}
	return set
}()

// FixtureClient talks to API-Football v3. It implements services.ResultsSource.
type FixtureClient struct {
	BaseURL    string
	Host       string
	APIKey     string
	HTTPClient *http.Client
	Limiter    *rate.Limiter
	Retries    int
	RetryDelay time.Duration
}

// NewFixtureClient builds a client allowed perMinute requests per minute.
func NewFixtureClient(host, apiKey string, perMinute int) *FixtureClient {
	if perMinute <= 0 {
		perMinute = 10
	}
	return &FixtureClient{
		BaseURL: "https://" + host,
		Host:    host,
		APIKey:  apiKey,
		HTTPClient: &http.Client{
			Timeout: 15 * time.Second,
		},
		Limiter:    rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), 1),
		Retries:    2,
		RetryDelay: 2 * time.Second,
	}
}

type apiTeam struct {
	Name string `json:"name"`
	Logo string `json:"logo"`
}

type apiFixture struct {
	Fixture struct {
		ID     int64     `json:"id"`
		Date   time.Time `json:"date"`
		Status struct {
			Short string `json:"short"`
		} `json:"status"`
	} `json:"fixture"`
	League struct {
		ID     int64  `json:"id"`
		Season int    `json:"season"`
		Round  string `json:"round"`
	} `json:"league"`
	Teams struct {
		Home apiTeam `json:"home"`
		Away apiTeam `json:"away"`
	} `json:"teams"`
	Goals struct {
		Home *int `json:"home"`
		Away *int `json:"away"`
	} `json:"goals"`
}

type apiResponse struct {
	Errors   json.RawMessage `json:"errors"`
	Response []apiFixture    `json:"response"`
}

// apiError is a response the API rejected; retrying does not help.
type apiError struct {
	status int
	msg    string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("fixture API returned status %d: %s", e.status, e.msg)
}

// ResultsByDate returns final scores of fixtures finished on date (UTC).
func (c *FixtureClient) ResultsByDate(ctx context.Context, date time.Time) (map[int64]services.Score, error) {
	params := url.Values{}
	params.Set("date", date.UTC().Format(time.DateOnly))
	params.Set("status", strings.Join(finishedStatusCodes, "-"))
	fixtures, err := c.fetch(ctx, params)
	if err != nil {
		return nil, err
	}
	return finalScores(fixtures), nil
}

// ResultsByIDs returns final scores for the given fixtures. At most
// services.MaxIDsPerLookup ids are sent per call.
func (c *FixtureClient) ResultsByIDs(ctx context.Context, ids []int64) (map[int64]services.Score, error) {
	if len(ids) == 0 {
		return map[int64]services.Score{}, nil
	}
	if len(ids) > services.MaxIDsPerLookup {
		return nil, fmt.Errorf("at most %d ids per lookup, got %d", services.MaxIDsPerLookup, len(ids))
	}
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	params := url.Values{}
	params.Set("ids", strings.Join(parts, "-"))
	fixtures, err := c.fetch(ctx, params)
	if err != nil {
		return nil, err
	}
	return finalScores(fixtures), nil
}

// UpcomingFixtures lists not-started fixtures of a league season.
func (c *FixtureClient) UpcomingFixtures(ctx context.Context, leagueID int64, season int) ([]models.CatalogFixture, error) {
	params := url.Values{}
	params.Set("league", strconv.FormatInt(leagueID, 10))
	params.Set("season", strconv.Itoa(season))
	params.Set("status", "NS")
	fixtures, err := c.fetch(ctx, params)
	if err != nil {
		return nil, err
	}

	out := make([]models.CatalogFixture, 0, len(fixtures))
	for _, f := range fixtures {
		out = append(out, models.CatalogFixture{
			FixtureID: f.Fixture.ID,
			LeagueID:  f.League.ID,
			Season:    f.League.Season,
			Round:     f.League.Round,
			HomeTeam:  f.Teams.Home.Name,
			HomeLogo:  f.Teams.Home.Logo,
			AwayTeam:  f.Teams.Away.Name,
			AwayLogo:  f.Teams.Away.Logo,
			Kickoff:   f.Fixture.Date.UTC(),
			Status:    f.Fixture.Status.Short,
		})
	}
	return out, nil
}

func finalScores(fixtures []apiFixture) map[int64]services.Score {
	scores := make(map[int64]services.Score)
	for _, f := range fixtures {
		if !finishedStatuses[f.Fixture.Status.Short] || f.Goals.Home == nil || f.Goals.Away == nil {
			continue
		}
		scores[f.Fixture.ID] = services.Score{Home: *f.Goals.Home, Away: *f.Goals.Away}
	}
	return scores
}

// fetch calls /v3/fixtures, waiting on the rate limiter and retrying
// transport errors and 429/5xx responses.
func (c *FixtureClient) fetch(ctx context.Context, params url.Values) ([]apiFixture, error) {
	var lastErr error
	for attempt := 0; attempt <= c.Retries; attempt++ {
		if attempt > 0 {
			log.Printf("[FIXTURES] 🔁 Retry %d/%d for %s after: %v", attempt, c.Retries, params.Encode(), lastErr)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.RetryDelay * time.Duration(attempt)):
			}
		}

		fixtures, err := c.fetchOnce(ctx, params)
		if err == nil {
			return fixtures, nil
		}
		lastErr = err

		var apiErr *apiError
		if errors.As(err, &apiErr) && apiErr.status != http.StatusTooManyRequests && apiErr.status < 500 {
			return nil, err
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}
	return nil, lastErr
}

func (c *FixtureClient) fetchOnce(ctx context.Context, params url.Values) ([]apiFixture, error) {
	if c.Limiter != nil {
		if err := c.Limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter: %w", err)
		}
	}

	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse base URL: %w", err)
	}
	u = u.JoinPath("/v3/fixtures")
	u.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, "GET", u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("x-rapidapi-host", c.Host)
	req.Header.Set("x-rapidapi-key", c.APIKey)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call fixture API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, &apiError{status: resp.StatusCode, msg: string(body)}
	}

	var response apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("failed to decode fixture API response: %w", err)
	}
	if msg := apiErrors(response.Errors); msg != "" {
		return nil, &apiError{status: resp.StatusCode, msg: msg}
	}
	return response.Response, nil
}

// apiErrors flattens the "errors" field, which is [] when empty and an
// object of messages otherwise.
func apiErrors(raw json.RawMessage) string {
	var byField map[string]string
	if err := json.Unmarshal(raw, &byField); err != nil || len(byField) == 0 {
		return ""
	}
	msgs := make([]string, 0, len(byField))
	for field, msg := range byField {
		msgs = append(msgs, field+": "+msg)
	}
	return strings.Join(msgs, "; ")
}
