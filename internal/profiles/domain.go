package profiles

import "time"

// Profile holds the public-facing identity of an account: one row per
// user, created by the signup path, never deleted by the application.
type Profile struct {
	UserID      int64     `json:"user_id"`
	DisplayName string    `json:"display_name"`
	Email       string    `json:"email"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
