package requests

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/draftgate/draftgate/internal/shared"
)

// ErrNotFound indicates that the requested record does not exist.
var ErrNotFound = shared.ErrNotFound

const requestColumns = `id, owner_id, title, project_types, COALESCE(strategic_alignment,''), problem_statement, expected_outcomes, COALESCE(estimated_duration,''), COALESCE(key_dependencies,''), confidentiality, status, created_at, updated_at`

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts a new request with status pending.
func (r *Repository) Create(ctx context.Context, req Request) (Request, error) {
	row := r.pool.QueryRow(ctx, `INSERT INTO project_requests
		(owner_id, title, project_types, strategic_alignment, problem_statement, expected_outcomes, estimated_duration, key_dependencies, confidentiality)
		VALUES ($1, $2, $3, NULLIF($4,''), $5, $6, NULLIF($7,''), NULLIF($8,''), $9)
		RETURNING `+requestColumns,
		req.OwnerID, req.Title, req.ProjectTypes, req.StrategicAlignment, req.ProblemStatement, req.ExpectedOutcomes, req.EstimatedDuration, req.KeyDependencies, string(req.Confidentiality))
	return scanRequest(row)
}

// Get fetches a request by ID.
func (r *Repository) Get(ctx context.Context, id int64) (Request, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+requestColumns+` FROM project_requests WHERE id=$1`, id)
	return scanRequest(row)
}

// ListByOwner returns the owner's requests matching the filter plus the
// unpaginated total.
func (r *Repository) ListByOwner(ctx context.Context, ownerID int64, filter Filter) ([]Request, int, error) {
	return r.list(ctx, "owner_id=$1", []any{ownerID}, filter)
}

// ListAll returns all requests matching the filter. Admin callers only;
// the service enforces that.
func (r *Repository) ListAll(ctx context.Context, filter Filter) ([]Request, int, error) {
	return r.list(ctx, "TRUE", nil, filter)
}

// UpdateContent replaces the owner-editable fields and refreshes
// updated_at.
func (r *Repository) UpdateContent(ctx context.Context, id int64, update ContentUpdate) (Request, error) {
	row := r.pool.QueryRow(ctx, `UPDATE project_requests SET
		title=$2, project_types=$3, strategic_alignment=NULLIF($4,''), problem_statement=$5, expected_outcomes=$6,
		estimated_duration=NULLIF($7,''), key_dependencies=NULLIF($8,''), confidentiality=$9, updated_at=NOW()
		WHERE id=$1
		RETURNING `+requestColumns,
		id, update.Title, update.ProjectTypes, update.StrategicAlignment, update.ProblemStatement, update.ExpectedOutcomes, update.EstimatedDuration, update.KeyDependencies, string(update.Confidentiality))
	return scanRequest(row)
}

// UpdateStatus sets the status and refreshes updated_at.
func (r *Repository) UpdateStatus(ctx context.Context, id int64, status Status) (Request, error) {
	row := r.pool.QueryRow(ctx, `UPDATE project_requests SET status=$2, updated_at=NOW() WHERE id=$1 RETURNING `+requestColumns, id, string(status))
	return scanRequest(row)
}

// Delete removes a request; comments, notifications, and attachment
// rows cascade at the schema level.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM project_requests WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repository) list(ctx context.Context, where string, args []any, filter Filter) ([]Request, int, error) {
	conds := []string{where}
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		conds = append(conds, fmt.Sprintf("status=$%d", len(args)))
	}
	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		conds = append(conds, fmt.Sprintf("title ILIKE $%d", len(args)))
	}
	clause := strings.Join(conds, " AND ")

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM project_requests WHERE `+clause, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	page := shared.NewPagination(filter.Page, filter.PerPage, total)
	args = append(args, page.PerPage, page.Offset())
	query := fmt.Sprintf(`SELECT %s FROM project_requests WHERE %s ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d`,
		requestColumns, clause, len(args)-1, len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var result []Request
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, 0, err
		}
		result = append(result, req)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return result, total, nil
}

func scanRequest(row pgx.Row) (Request, error) {
	var req Request
	var confidentiality, status string
	err := row.Scan(&req.ID, &req.OwnerID, &req.Title, &req.ProjectTypes, &req.StrategicAlignment, &req.ProblemStatement,
		&req.ExpectedOutcomes, &req.EstimatedDuration, &req.KeyDependencies, &confidentiality, &status, &req.CreatedAt, &req.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Request{}, ErrNotFound
		}
		return Request{}, err
	}
	req.Confidentiality = Confidentiality(confidentiality)
	req.Status = Status(status)
	return req, nil
}
