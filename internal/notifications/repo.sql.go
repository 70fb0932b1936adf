package notifications

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/draftgate/draftgate/internal/shared"
)

// ErrNotFound indicates that the requested record does not exist.
var ErrNotFound = shared.ErrNotFound

// RepositoryPort describes repository operations used by Service.
type RepositoryPort interface {
	Get(ctx context.Context, id int64) (Notification, error)
	ListForRecipient(ctx context.Context, recipientID int64, unreadOnly bool, page, perPage int) ([]Notification, int, error)
	UnreadCount(ctx context.Context, recipientID int64) (int, error)
	MarkRead(ctx context.Context, id int64) error
	MarkAllRead(ctx context.Context, recipientID int64) (int, error)
	Delete(ctx context.Context, id int64) error
}

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const notificationColumns = `id, recipient_id, request_id, comment_id, message, unread, created_at`

// Get fetches a notification by ID.
func (r *Repository) Get(ctx context.Context, id int64) (Notification, error) {
	var n Notification
	err := r.pool.QueryRow(ctx, `SELECT `+notificationColumns+` FROM notifications WHERE id=$1`, id).
		Scan(&n.ID, &n.RecipientID, &n.RequestID, &n.CommentID, &n.Message, &n.Unread, &n.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Notification{}, ErrNotFound
		}
		return Notification{}, err
	}
	return n, nil
}

// ListForRecipient returns a recipient's notifications, newest first,
// with the total count for pagination.
func (r *Repository) ListForRecipient(ctx context.Context, recipientID int64, unreadOnly bool, page, perPage int) ([]Notification, int, error) {
	where := `WHERE recipient_id=$1`
	if unreadOnly {
		where += ` AND unread`
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM notifications `+where, recipientID).Scan(&total); err != nil {
		return nil, 0, err
	}

	p := shared.NewPagination(page, perPage, total)
	rows, err := r.pool.Query(ctx, `SELECT `+notificationColumns+` FROM notifications `+where+
		` ORDER BY created_at DESC, id DESC LIMIT $2 OFFSET $3`, recipientID, p.PerPage, p.Offset())
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var result []Notification
	for rows.Next() {
		var n Notification
		if err := rows.Scan(&n.ID, &n.RecipientID, &n.RequestID, &n.CommentID, &n.Message, &n.Unread, &n.CreatedAt); err != nil {
			return nil, 0, err
		}
		result = append(result, n)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return result, total, nil
}

// UnreadCount returns the number of unread notifications.
func (r *Repository) UnreadCount(ctx context.Context, recipientID int64) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM notifications WHERE recipient_id=$1 AND unread`, recipientID).Scan(&count)
	return count, err
}

// MarkRead clears the unread flag on a single notification.
func (r *Repository) MarkRead(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `UPDATE notifications SET unread=FALSE WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkAllRead clears the unread flag on every notification belonging
// to the recipient and reports how many rows changed.
func (r *Repository) MarkAllRead(ctx context.Context, recipientID int64) (int, error) {
	tag, err := r.pool.Exec(ctx, `UPDATE notifications SET unread=FALSE WHERE recipient_id=$1 AND unread`, recipientID)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

// Delete dismisses a notification permanently.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM notifications WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
