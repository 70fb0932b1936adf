package comments

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/draftgate/draftgate/internal/platform/db"
	"github.com/draftgate/draftgate/internal/shared"
)

// ErrNotFound indicates that the requested record does not exist.
var ErrNotFound = shared.ErrNotFound

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes the operations the notification trigger runs
// inside a single transaction with the comment insert.
type TxRepository interface {
	InsertComment(ctx context.Context, c Comment) (Comment, error)
	RequestMeta(ctx context.Context, requestID int64) (RequestMeta, error)
	AdminDisplayName(ctx context.Context, userID int64) (string, error)
	InsertNotification(ctx context.Context, recipientID, requestID, commentID int64, message string) error
}

type txRepo struct {
	tx pgx.Tx
}

// WithTx wraps callback in a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{tx: tx})
	})
}

// Get fetches a comment by ID.
func (r *Repository) Get(ctx context.Context, id int64) (Comment, error) {
	var c Comment
	err := r.pool.QueryRow(ctx, `SELECT id, request_id, author_id, body, created_at FROM comments WHERE id=$1`, id).
		Scan(&c.ID, &c.RequestID, &c.AuthorID, &c.Body, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Comment{}, ErrNotFound
		}
		return Comment{}, err
	}
	return c, nil
}

// ListForRequest returns the comments on a request with author names
// resolved, oldest first.
func (r *Repository) ListForRequest(ctx context.Context, requestID int64) ([]View, error) {
	rows, err := r.pool.Query(ctx, `SELECT c.id, c.request_id, c.author_id, c.body, c.created_at, COALESCE(p.display_name, 'Admin Unknown')
		FROM comments c LEFT JOIN profiles p ON p.user_id = c.author_id
		WHERE c.request_id=$1 ORDER BY c.created_at, c.id`, requestID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var result []View
	for rows.Next() {
		var v View
		if err := rows.Scan(&v.ID, &v.RequestID, &v.AuthorID, &v.Body, &v.CreatedAt, &v.AuthorName); err != nil {
			return nil, err
		}
		result = append(result, v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// RequestOwner returns the submitter of a request.
func (r *Repository) RequestOwner(ctx context.Context, requestID int64) (int64, error) {
	var ownerID int64
	err := r.pool.QueryRow(ctx, `SELECT owner_id FROM project_requests WHERE id=$1`, requestID).Scan(&ownerID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrNotFound
		}
		return 0, err
	}
	return ownerID, nil
}

// UpdateBody replaces a comment's body.
func (r *Repository) UpdateBody(ctx context.Context, id int64, body string) (Comment, error) {
	var c Comment
	err := r.pool.QueryRow(ctx, `UPDATE comments SET body=$2 WHERE id=$1 RETURNING id, request_id, author_id, body, created_at`, id, body).
		Scan(&c.ID, &c.RequestID, &c.AuthorID, &c.Body, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Comment{}, ErrNotFound
		}
		return Comment{}, err
	}
	return c, nil
}

// Delete removes a comment; its notification rows cascade.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM comments WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *txRepo) InsertComment(ctx context.Context, c Comment) (Comment, error) {
	err := t.tx.QueryRow(ctx, `INSERT INTO comments (request_id, author_id, body) VALUES ($1, $2, $3) RETURNING id, request_id, author_id, body, created_at`,
		c.RequestID, c.AuthorID, c.Body).
		Scan(&c.ID, &c.RequestID, &c.AuthorID, &c.Body, &c.CreatedAt)
	return c, err
}

func (t *txRepo) RequestMeta(ctx context.Context, requestID int64) (RequestMeta, error) {
	var meta RequestMeta
	err := t.tx.QueryRow(ctx, `SELECT r.owner_id, r.title, COALESCE(p.email, '')
		FROM project_requests r LEFT JOIN profiles p ON p.user_id = r.owner_id
		WHERE r.id=$1`, requestID).
		Scan(&meta.OwnerID, &meta.Title, &meta.OwnerEmail)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return RequestMeta{}, ErrNotFound
		}
		return RequestMeta{}, err
	}
	return meta, nil
}

func (t *txRepo) AdminDisplayName(ctx context.Context, userID int64) (string, error) {
	var name string
	err := t.tx.QueryRow(ctx, `SELECT display_name FROM profiles WHERE user_id=$1`, userID).Scan(&name)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", err
	}
	return name, nil
}

func (t *txRepo) InsertNotification(ctx context.Context, recipientID, requestID, commentID int64, message string) error {
	_, err := t.tx.Exec(ctx, `INSERT INTO notifications (recipient_id, request_id, comment_id, message, unread) VALUES ($1, $2, $3, $4, TRUE)`,
		recipientID, requestID, commentID, message)
	return err
}
