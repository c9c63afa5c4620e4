package profile

import (
	"time"

	"github.com/google/uuid"
)

// UserStreakState is the streak portion of a profile. LastStreakUpdated is a
// calendar date: only its year, month and day are meaningful.
type UserStreakState struct {
	UserID            uuid.UUID  `json:"userId" db:"id"`
	CurrentStreak     int        `json:"currentStreak" db:"current_streak"`
	LastStreakUpdated *time.Time `json:"lastStreakUpdated,omitempty" db:"last_streak_updated"`
}

type Profile struct {
	UserStreakState
	ClerkID                   string  `json:"clerkId" db:"clerk_id"`
	Username                  string  `json:"username" db:"username"`
	Email                     string  `json:"email" db:"email"`
	EmailNotificationsEnabled bool    `json:"emailNotificationsEnabled" db:"email_notifications_enabled"`
	Timezone                  *string `json:"timezone,omitempty" db:"timezone"`
}

type UpdateNotificationsRequest struct {
	EmailNotificationsEnabled *bool `json:"emailNotificationsEnabled"`
}
