package notifications

import "time"

// Notification is a system-authored message telling a submitter that an
// admin commented on their request. Rows are only ever written by the
// comment transaction; clients can read, mark read, and dismiss.
type Notification struct {
	ID          int64     `json:"id"`
	RecipientID int64     `json:"recipient_id"`
	RequestID   int64     `json:"request_id"`
	CommentID   int64     `json:"comment_id"`
	Message     string    `json:"message"`
	Unread      bool      `json:"unread"`
	CreatedAt   time.Time `json:"created_at"`
}
