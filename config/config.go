// config/config.go
package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Config holds everything the server, the scheduler and contestadmin need.
type Config struct {
	DatabaseURL    string
	ListenAddress  string
	ServiceToken   string
	AllowedOrigins []string

	// API-Football (v3) settings
	FixtureAPIHost          string
	FixtureAPIKey           string
	FixtureAPIRatePerMinute int
	ResultsLookup           string // "date" or "ids"

	ScoringInterval     time.Duration
	CatalogSyncInterval time.Duration
	CatalogLeagues      []int64

	SyncServiceURL string

	PlatformCut decimal.Decimal

	R2AccountID       string
	R2AccessKeyID     string
	R2AccessKeySecret string
	R2Bucket          string
	CDNBaseURL        string
}

// Load reads .env (if present) and then the process environment.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  No .env file found, reading environment variables directly")
	}

	cfg := &Config{
		DatabaseURL:             os.Getenv("DATABASE_URL"),
		ListenAddress:           getEnv("LISTEN_ADDRESS", ":5200"),
		ServiceToken:            os.Getenv("GAME_SERVICE_TOKEN"),
		AllowedOrigins:          splitList(getEnv("ALLOWED_ORIGINS", "http://localhost:3000")),
		FixtureAPIHost:          getEnv("FIXTURE_API_HOST", "v3.football.api-sports.io"),
		FixtureAPIKey:           os.Getenv("FIXTURE_API_KEY"),
		FixtureAPIRatePerMinute: getInt("FIXTURE_API_RATE_PER_MINUTE", 10),
		ResultsLookup:           strings.ToLower(getEnv("RESULTS_LOOKUP", "date")),
		ScoringInterval:         getDuration("SCORING_INTERVAL", 15*time.Minute),
		CatalogSyncInterval:     getDuration("CATALOG_SYNC_INTERVAL", 6*time.Hour),
		CatalogLeagues:          parseLeagues(getEnv("CATALOG_LEAGUES", "39,140,78,135,61,235,389")),
		SyncServiceURL:          os.Getenv("SYNC_SERVICE_URL"),
		PlatformCut:             getDecimal("PLATFORM_CUT", decimal.RequireFromString("0.10")),
		R2AccountID:             os.Getenv("CLOUDFLARE_ACCOUNT_ID"),
		R2AccessKeyID:           os.Getenv("R2_ACCESS_KEY_ID"),
		R2AccessKeySecret:       os.Getenv("R2_ACCESS_KEY_SECRET"),
		R2Bucket:                os.Getenv("R2_BUCKET_NAME"),
		CDNBaseURL:              os.Getenv("CDN_BASE_URL"),
	}

	if cfg.ResultsLookup != "date" && cfg.ResultsLookup != "ids" {
		log.Printf("⚠️  RESULTS_LOOKUP=%q not recognised, using \"date\"", cfg.ResultsLookup)
		cfg.ResultsLookup = "date"
	}
	return cfg
}

// ArchiveEnabled reports whether payout reports should be pushed to R2.
func (c *Config) ArchiveEnabled() bool {
	return c.R2Bucket != "" && c.R2AccountID != ""
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getInt(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		log.Printf("⚠️  %s=%q is not a positive integer, using %d", key, raw, fallback)
		return fallback
	}
	return n
}

func getDuration(key string, fallback time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		log.Printf("⚠️  %s=%q is not a valid duration, using %s", key, raw, fallback)
		return fallback
	}
	return d
}

func getDecimal(key string, fallback decimal.Decimal) decimal.Decimal {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	d, err := decimal.NewFromString(raw)
	if err != nil || d.IsNegative() || d.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		log.Printf("⚠️  %s=%q must be in [0,1), using %s", key, raw, fallback)
		return fallback
	}
	return d
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func parseLeagues(raw string) []int64 {
	var ids []int64
	for _, part := range splitList(raw) {
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			log.Printf("⚠️  ignoring league id %q: %v", part, err)
			continue
		}
		ids = append(ids, id)
	}
	return ids
}
