package rbac

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/draftgate/draftgate/internal/authz"
)

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// RolesFor returns all role assignments for a user.
func (r *Repository) RolesFor(ctx context.Context, userID int64) ([]authz.Role, error) {
	rows, err := r.pool.Query(ctx, `SELECT role FROM user_roles WHERE user_id=$1 ORDER BY role`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var roles []authz.Role
	for rows.Next() {
		var role string
		if err := rows.Scan(&role); err != nil {
			return nil, err
		}
		roles = append(roles, authz.Role(role))
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return roles, nil
}

// Assign inserts a role assignment, ignoring duplicates.
func (r *Repository) Assign(ctx context.Context, userID int64, role authz.Role) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO user_roles (user_id, role) VALUES ($1, $2) ON CONFLICT (user_id, role) DO NOTHING`, userID, string(role))
	return err
}

// Revoke removes a role assignment.
func (r *Repository) Revoke(ctx context.Context, userID int64, role authz.Role) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM user_roles WHERE user_id=$1 AND role=$2`, userID, string(role))
	return err
}

// AssignTx inserts a role assignment inside an existing transaction.
// Used by the signup path, which provisions the account, profile, and
// initial role atomically.
func AssignTx(ctx context.Context, tx pgx.Tx, userID int64, role authz.Role) error {
	_, err := tx.Exec(ctx, `INSERT INTO user_roles (user_id, role) VALUES ($1, $2) ON CONFLICT (user_id, role) DO NOTHING`, userID, string(role))
	return err
}
