package comments

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/draftgate/draftgate/internal/authz"
	"github.com/draftgate/draftgate/internal/platform/httpx"
)

// Label used when the commenting admin's display name cannot be
// resolved. Notification synthesis degrades rather than aborting the
// comment insert.
const unknownAdminLabel = "Admin Unknown"

// RepositoryPort describes repository operations used by Service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, id int64) (Comment, error)
	ListForRequest(ctx context.Context, requestID int64) ([]View, error)
	RequestOwner(ctx context.Context, requestID int64) (int64, error)
	UpdateBody(ctx context.Context, id int64, body string) (Comment, error)
	Delete(ctx context.Context, id int64) error
}

// MailPort enqueues the notification email after commit. Best-effort:
// a failed enqueue never fails the comment.
type MailPort interface {
	EnqueueCommentMail(ctx context.Context, to, subject, body string) error
}

// Service orchestrates comment flows, including the notification
// trigger that runs atomically with every comment insert.
type Service struct {
	repo   RepositoryPort
	mail   MailPort
	logger *slog.Logger
}

// NewService constructs the comments service.
func NewService(repo RepositoryPort, mail MailPort, logger *slog.Logger) *Service {
	return &Service{repo: repo, mail: mail, logger: logger}
}

// Create inserts a comment and, in the same transaction, synthesizes
// exactly one notification for the request owner. Admin only, always as
// themselves; clients never write notifications directly.
func (s *Service) Create(ctx context.Context, caller authz.Identity, requestID int64, body string) (Comment, error) {
	if !authz.CanCreateComment(caller, caller.ID) {
		return Comment{}, httpx.ErrForbidden
	}
	body = strings.TrimSpace(body)
	if body == "" {
		return Comment{}, httpx.ErrValidation
	}

	var created Comment
	var meta RequestMeta
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		meta, err = tx.RequestMeta(ctx, requestID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return httpx.ErrNotFound
			}
			return err
		}
		created, err = tx.InsertComment(ctx, Comment{RequestID: requestID, AuthorID: caller.ID, Body: body})
		if err != nil {
			return err
		}
		adminName, err := tx.AdminDisplayName(ctx, caller.ID)
		if err != nil || strings.TrimSpace(adminName) == "" {
			adminName = unknownAdminLabel
		} else {
			adminName = "Admin " + adminName
		}
		message := fmt.Sprintf("%s commented on your request: %q", adminName, meta.Title)
		return tx.InsertNotification(ctx, meta.OwnerID, requestID, created.ID, message)
	})
	if err != nil {
		return Comment{}, err
	}

	if s.mail != nil && meta.OwnerEmail != "" {
		subject := fmt.Sprintf("New comment on %q", meta.Title)
		if err := s.mail.EnqueueCommentMail(ctx, meta.OwnerEmail, subject, body); err != nil && s.logger != nil {
			s.logger.Warn("enqueue comment mail", slog.Any("error", err))
		}
	}
	return created, nil
}

// ListForRequest returns a request's comments for callers allowed to
// see them: the request owner, or any admin.
func (s *Service) ListForRequest(ctx context.Context, caller authz.Identity, requestID int64) ([]View, error) {
	ownerID, err := s.repo.RequestOwner(ctx, requestID)
	if err != nil {
		return nil, mapNotFound(err)
	}
	if !authz.CanReadComments(caller, ownerID) {
		return nil, httpx.ErrNotFound
	}
	views, err := s.repo.ListForRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if views == nil {
		views = []View{}
	}
	return views, nil
}

// Update replaces a comment's body. Author only.
func (s *Service) Update(ctx context.Context, caller authz.Identity, id int64, body string) (Comment, error) {
	comment, err := s.repo.Get(ctx, id)
	if err != nil {
		return Comment{}, mapNotFound(err)
	}
	if !authz.CanModifyComment(caller, comment.AuthorID) {
		return Comment{}, httpx.ErrForbidden
	}
	body = strings.TrimSpace(body)
	if body == "" {
		return Comment{}, httpx.ErrValidation
	}
	return s.repo.UpdateBody(ctx, id, body)
}

// Delete removes a comment. Author only.
func (s *Service) Delete(ctx context.Context, caller authz.Identity, id int64) error {
	comment, err := s.repo.Get(ctx, id)
	if err != nil {
		return mapNotFound(err)
	}
	if !authz.CanModifyComment(caller, comment.AuthorID) {
		return httpx.ErrForbidden
	}
	return s.repo.Delete(ctx, id)
}

func mapNotFound(err error) error {
	if errors.Is(err, ErrNotFound) {
		return httpx.ErrNotFound
	}
	return err
}
