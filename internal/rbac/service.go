package rbac

import (
	"context"
	"strconv"

	"github.com/draftgate/draftgate/internal/authz"
	"github.com/draftgate/draftgate/internal/platform/httpx"
	"github.com/draftgate/draftgate/internal/shared"
)

// RepositoryPort defines data access methods for role assignments.
type RepositoryPort interface {
	RolesFor(ctx context.Context, userID int64) ([]authz.Role, error)
	Assign(ctx context.Context, userID int64, role authz.Role) error
	Revoke(ctx context.Context, userID int64, role authz.Role) error
}

// AuditPort records role grants and revocations.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service orchestrates role assignment operations.
type Service struct {
	repo  RepositoryPort
	audit AuditPort
}

// NewService builds a Service instance.
func NewService(repo RepositoryPort, audit AuditPort) *Service {
	return &Service{repo: repo, audit: audit}
}

// Resolve loads the identity for an authenticated user ID.
func (s *Service) Resolve(ctx context.Context, userID int64) (authz.Identity, error) {
	roles, err := s.repo.RolesFor(ctx, userID)
	if err != nil {
		return authz.Identity{}, err
	}
	return authz.Identity{ID: userID, Roles: roles}, nil
}

// Grant assigns a role to a user. Admin only.
func (s *Service) Grant(ctx context.Context, actor authz.Identity, userID int64, role authz.Role) error {
	if !actor.IsAdmin() {
		return httpx.ErrForbidden
	}
	if !authz.ValidRole(role) {
		return httpx.ErrValidation
	}
	if err := s.repo.Assign(ctx, userID, role); err != nil {
		return err
	}
	s.recordAudit(ctx, actor, "role.grant", userID, role)
	return nil
}

// Revoke removes a role from a user. Admin only.
func (s *Service) Revoke(ctx context.Context, actor authz.Identity, userID int64, role authz.Role) error {
	if !actor.IsAdmin() {
		return httpx.ErrForbidden
	}
	if !authz.ValidRole(role) {
		return httpx.ErrValidation
	}
	if err := s.repo.Revoke(ctx, userID, role); err != nil {
		return err
	}
	s.recordAudit(ctx, actor, "role.revoke", userID, role)
	return nil
}

func (s *Service) recordAudit(ctx context.Context, actor authz.Identity, action string, userID int64, role authz.Role) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actor.ID,
		Action:   action,
		Entity:   "user_role",
		EntityID: strconv.FormatInt(userID, 10),
		Meta:     map[string]any{"role": string(role)},
	})
}
