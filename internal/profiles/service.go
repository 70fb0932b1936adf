package profiles

import (
	"context"
	"strings"

	"github.com/draftgate/draftgate/internal/authz"
	"github.com/draftgate/draftgate/internal/platform/httpx"
)

// RepositoryPort defines data access methods for profiles.
type RepositoryPort interface {
	Get(ctx context.Context, userID int64) (Profile, error)
	List(ctx context.Context) ([]Profile, error)
	UpdateDisplayName(ctx context.Context, userID int64, displayName string) (Profile, error)
}

// Service handles profile business logic.
type Service struct {
	repo RepositoryPort
}

// NewService builds Service instance.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// Get returns a profile visible to the caller: their own, or any row
// for admins. A forbidden row reads as not found.
func (s *Service) Get(ctx context.Context, caller authz.Identity, userID int64) (Profile, error) {
	if !authz.CanReadProfile(caller, userID) {
		return Profile{}, httpx.ErrNotFound
	}
	return s.repo.Get(ctx, userID)
}

// List returns all profiles. Admin only; non-admin callers receive
// just their own row, matching row-filtered read semantics.
func (s *Service) List(ctx context.Context, caller authz.Identity) ([]Profile, error) {
	if caller.IsAdmin() {
		return s.repo.List(ctx)
	}
	own, err := s.repo.Get(ctx, caller.ID)
	if err != nil {
		return nil, err
	}
	return []Profile{own}, nil
}

// UpdateDisplayName changes the caller's own display name.
func (s *Service) UpdateDisplayName(ctx context.Context, caller authz.Identity, userID int64, displayName string) (Profile, error) {
	if !authz.CanUpdateProfile(caller, userID) {
		return Profile{}, httpx.ErrForbidden
	}
	displayName = strings.TrimSpace(displayName)
	if displayName == "" {
		return Profile{}, httpx.ErrValidation
	}
	return s.repo.UpdateDisplayName(ctx, userID, displayName)
}
