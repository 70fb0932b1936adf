package notifications

import (
	"context"
	"errors"

	"github.com/draftgate/draftgate/internal/authz"
	"github.com/draftgate/draftgate/internal/platform/httpx"
	"github.com/draftgate/draftgate/internal/shared"
)

// ListResult pairs a notification page with its total and the
// recipient's unread count for the badge.
type ListResult struct {
	Notifications []Notification    `json:"notifications"`
	Total         int               `json:"total"`
	Unread        int               `json:"unread"`
	Pagination    shared.Pagination `json:"pagination"`
}

// Service mediates access to a recipient's notification inbox. There
// is no create path here; rows originate in the comment transaction.
type Service struct {
	repo RepositoryPort
}

// NewService constructs the notifications service.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// List returns the caller's notifications. Recipients only ever see
// their own inbox; there is no admin override.
func (s *Service) List(ctx context.Context, caller authz.Identity, unreadOnly bool, page, perPage int) (ListResult, error) {
	items, total, err := s.repo.ListForRecipient(ctx, caller.ID, unreadOnly, page, perPage)
	if err != nil {
		return ListResult{}, err
	}
	if items == nil {
		items = []Notification{}
	}
	unread, err := s.repo.UnreadCount(ctx, caller.ID)
	if err != nil {
		return ListResult{}, err
	}
	return ListResult{
		Notifications: items,
		Total:         total,
		Unread:        unread,
		Pagination:    shared.NewPagination(page, perPage, total),
	}, nil
}

// UnreadCount returns the caller's unread badge count.
func (s *Service) UnreadCount(ctx context.Context, caller authz.Identity) (int, error) {
	return s.repo.UnreadCount(ctx, caller.ID)
}

// MarkRead clears the unread flag. Recipient only; anyone else gets a
// not-found so inbox contents stay unguessable.
func (s *Service) MarkRead(ctx context.Context, caller authz.Identity, id int64) error {
	n, err := s.repo.Get(ctx, id)
	if err != nil {
		return mapNotFound(err)
	}
	if !authz.CanModifyNotification(caller, n.RecipientID) {
		return httpx.ErrNotFound
	}
	return s.repo.MarkRead(ctx, id)
}

// MarkAllRead clears every unread notification in the caller's inbox.
func (s *Service) MarkAllRead(ctx context.Context, caller authz.Identity) (int, error) {
	return s.repo.MarkAllRead(ctx, caller.ID)
}

// Dismiss deletes a notification from the caller's inbox.
func (s *Service) Dismiss(ctx context.Context, caller authz.Identity, id int64) error {
	n, err := s.repo.Get(ctx, id)
	if err != nil {
		return mapNotFound(err)
	}
	if !authz.CanModifyNotification(caller, n.RecipientID) {
		return httpx.ErrNotFound
	}
	return s.repo.Delete(ctx, id)
}

func mapNotFound(err error) error {
	if errors.Is(err, ErrNotFound) {
		return httpx.ErrNotFound
	}
	return err
}
