package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleOrganizer Role = "organizer"
	RoleAdmin     Role = "admin"
)

// User is the local account record. Identity comes from the profile service
// (see workers.UserSyncWorker); balance and role are owned here.
type User struct {
	ID        string          `json:"id" gorm:"primaryKey;type:uuid"`
	Username  string          `json:"username" gorm:"uniqueIndex;not null"`
	Email     string          `json:"email,omitempty" gorm:"index"`
	AvatarURL *string         `json:"avatar_url,omitempty"`
	Role      Role            `json:"role" gorm:"type:varchar(10);not null;default:'user'"`
	Balance   decimal.Decimal `json:"balance" gorm:"type:numeric(14,2);not null;default:0"`

	Timestamps
}

// ProfileUser matches the JSON the profile sync service returns.
type ProfileUser struct {
	ExternalID        string    `json:"external_id"`
	Username          string    `json:"username"`
	Email             string    `json:"email"`
	ProfilePictureURL *string   `json:"profile_picture_url,omitempty"`
	AccountStatus     string    `json:"account_status"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}
