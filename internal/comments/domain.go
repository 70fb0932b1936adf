package comments

import "time"

// Comment is an admin's note on a project request. Authored by exactly
// one admin, always as themselves; the creation timestamp is immutable.
type Comment struct {
	ID        int64     `json:"id"`
	RequestID int64     `json:"request_id"`
	AuthorID  int64     `json:"author_id"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

// View is a comment joined with its author's display name for listings.
type View struct {
	Comment
	AuthorName string `json:"author_name"`
}

// RequestMeta is the slice of the parent request the notification
// trigger needs: recipient, title for the message, and the owner's
// email for the mail dispatch job.
type RequestMeta struct {
	OwnerID    int64
	Title      string
	OwnerEmail string
}
