package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"time"

	"prediction-contest/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// userChangesResponse is the top-level structure of the sync service response.
type userChangesResponse struct {
	Users []models.ProfileUser `json:"users"`
}

// UserSyncWorker mirrors profile-service accounts into the users table.
// Role and balance are local and never overwritten.
type UserSyncWorker struct {
	db           *gorm.DB
	interval     time.Duration
	baseURL      string // e.g., "http://localhost:8500"
	endpointPath string // e.g., "/api/v1/public/profiles"
	serviceToken string
	httpClient   *http.Client
}

func NewUserSyncWorker(db *gorm.DB, syncServiceBaseURL, endpointPath, serviceToken string) *UserSyncWorker {
	return &UserSyncWorker{
		db:           db,
		interval:     1 * time.Minute,
		baseURL:      syncServiceBaseURL,
		endpointPath: endpointPath,
		serviceToken: serviceToken,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (w *UserSyncWorker) Start(ctx context.Context) {
	log.Println("🔁 Starting User Sync Worker (sync-service → users)…")
	go w.run(ctx)
}

func (w *UserSyncWorker) run(ctx context.Context) {
	if err := w.syncBatch(ctx, time.Time{}); err != nil {
		log.Printf("⚠️ Initial user sync failed: %v", err)
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := w.syncBatch(ctx, w.getLastSyncTime()); err != nil {
				log.Printf("❌ User sync batch failed: %v", err)
			}
		case <-ctx.Done():
			log.Println("⏹️ User Sync Worker stopped")
			return
		}
	}
}

// getLastSyncTime finds the most recent updated_at among mirrored users.
func (w *UserSyncWorker) getLastSyncTime() time.Time {
	var lastTime *time.Time
	err := w.db.Raw("SELECT MAX(updated_at) FROM users WHERE deleted_at IS NULL").Scan(&lastTime).Error
	if err != nil || lastTime == nil || lastTime.IsZero() {
		return time.Unix(0, 0)
	}
	return *lastTime
}

// fetchChanges asks the sync service for profiles changed since the given time.
func (w *UserSyncWorker) fetchChanges(ctx context.Context, since time.Time) ([]models.ProfileUser, error) {
	base, err := url.Parse(w.baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid sync service URL '%s': %w", w.baseURL, err)
	}
	endpointURL := base.JoinPath(w.endpointPath)
	q := endpointURL.Query()
	q.Set("since", since.UTC().Format(time.RFC3339))
	endpointURL.RawQuery = q.Encode()
	finalURL := endpointURL.String()

	log.Printf("[SYNC] ➡️  GET %s", finalURL)

	req, err := http.NewRequestWithContext(ctx, "GET", finalURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request to %s: %w", finalURL, err)
	}
	req.Header.Set("X-Service-Token", w.serviceToken)

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request to sync service failed: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("sync service non-200 response: %d: %s", resp.StatusCode, string(body))
	}

	var response userChangesResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("failed to decode sync service response: %w", err)
	}
	return response.Users, nil
}

// localUser maps a profile onto the local account row.
func localUser(p models.ProfileUser) models.User {
	u := models.User{
		ID:        p.ExternalID,
		Username:  p.Username,
		Email:     p.Email,
		AvatarURL: p.ProfilePictureURL,
		Role:      models.RoleUser,
	}
	u.CreatedAt = p.CreatedAt
	u.UpdatedAt = p.UpdatedAt
	if p.AccountStatus == "deactivated" || p.AccountStatus == "deleted" {
		u.DeletedAt = gorm.DeletedAt{Time: p.UpdatedAt, Valid: true}
	}
	return u
}

func (w *UserSyncWorker) syncBatch(ctx context.Context, since time.Time) error {
	log.Printf("[SYNC] 📡 Fetching user changes since=%s", since.UTC().Format(time.RFC3339))

	profiles, err := w.fetchChanges(ctx, since)
	if err != nil {
		log.Printf("[SYNC] ❌ %v", err)
		return err
	}
	if len(profiles) == 0 {
		log.Printf("[SYNC] ✅ No user changes received")
		return nil
	}

	var upsertCount, errorCount int
	for _, p := range profiles {
		if p.ExternalID == "" || p.Username == "" {
			errorCount++
			continue
		}
		user := localUser(p)
		if err := w.db.WithContext(ctx).Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"username", "email", "avatar_url", "updated_at", "deleted_at",
			}),
		}).Create(&user).Error; err != nil {
			errorCount++
			log.Printf("[SYNC] ⚠️ Failed to upsert user (id=%q, username=%q): %v", p.ExternalID, p.Username, err)
			continue
		}
		upsertCount++
	}

	log.Printf("[SYNC] ✅ Synced %d user(s) (%d upserted, %d errors)", len(profiles), upsertCount, errorCount)
	return nil
}
