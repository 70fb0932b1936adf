package attachments

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/draftgate/draftgate/internal/shared"
)

// ErrNotFound indicates that the requested record does not exist.
var ErrNotFound = shared.ErrNotFound

// RequestState is what attachment authorization needs from the parent
// request.
type RequestState struct {
	OwnerID int64
	Pending bool
}

// RepositoryPort describes repository operations used by Service.
type RepositoryPort interface {
	Insert(ctx context.Context, a Attachment) (Attachment, error)
	Get(ctx context.Context, id int64) (Attachment, error)
	ListForRequest(ctx context.Context, requestID int64) ([]Attachment, error)
	Delete(ctx context.Context, id int64) error
	FindByStorageKey(ctx context.Context, key string) (Attachment, error)
	RequestState(ctx context.Context, requestID int64) (RequestState, error)
	StorageKeys(ctx context.Context) ([]string, error)
}

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const attachmentColumns = `id, request_id, uploader_id, file_name, mime_type, size_bytes, storage_key, created_at`

// Insert records an uploaded attachment.
func (r *Repository) Insert(ctx context.Context, a Attachment) (Attachment, error) {
	err := r.pool.QueryRow(ctx, `INSERT INTO attachments (request_id, uploader_id, file_name, mime_type, size_bytes, storage_key)
		VALUES ($1, $2, $3, $4, $5, $6) RETURNING `+attachmentColumns,
		a.RequestID, a.UploaderID, a.FileName, a.MimeType, a.SizeBytes, a.StorageKey).
		Scan(&a.ID, &a.RequestID, &a.UploaderID, &a.FileName, &a.MimeType, &a.SizeBytes, &a.StorageKey, &a.CreatedAt)
	return a, err
}

// Get fetches an attachment by ID.
func (r *Repository) Get(ctx context.Context, id int64) (Attachment, error) {
	var a Attachment
	err := r.pool.QueryRow(ctx, `SELECT `+attachmentColumns+` FROM attachments WHERE id=$1`, id).
		Scan(&a.ID, &a.RequestID, &a.UploaderID, &a.FileName, &a.MimeType, &a.SizeBytes, &a.StorageKey, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Attachment{}, ErrNotFound
		}
		return Attachment{}, err
	}
	return a, nil
}

// ListForRequest returns a request's attachments, oldest first.
func (r *Repository) ListForRequest(ctx context.Context, requestID int64) ([]Attachment, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+attachmentColumns+` FROM attachments WHERE request_id=$1 ORDER BY created_at, id`, requestID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var result []Attachment
	for rows.Next() {
		var a Attachment
		if err := rows.Scan(&a.ID, &a.RequestID, &a.UploaderID, &a.FileName, &a.MimeType, &a.SizeBytes, &a.StorageKey, &a.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// Delete removes the metadata row.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM attachments WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// FindByStorageKey resolves a signed download key back to its metadata.
func (r *Repository) FindByStorageKey(ctx context.Context, key string) (Attachment, error) {
	var a Attachment
	err := r.pool.QueryRow(ctx, `SELECT `+attachmentColumns+` FROM attachments WHERE storage_key=$1`, key).
		Scan(&a.ID, &a.RequestID, &a.UploaderID, &a.FileName, &a.MimeType, &a.SizeBytes, &a.StorageKey, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Attachment{}, ErrNotFound
		}
		return Attachment{}, err
	}
	return a, nil
}

// RequestState returns the owner and editability of the parent request.
func (r *Repository) RequestState(ctx context.Context, requestID int64) (RequestState, error) {
	var state RequestState
	var status string
	err := r.pool.QueryRow(ctx, `SELECT owner_id, status FROM project_requests WHERE id=$1`, requestID).
		Scan(&state.OwnerID, &status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return RequestState{}, ErrNotFound
		}
		return RequestState{}, err
	}
	state.Pending = status == "pending"
	return state, nil
}

// StorageKeys returns every referenced object key. The orphan sweep
// uses this to find unreferenced objects.
func (r *Repository) StorageKeys(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT storage_key FROM attachments`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}
