package attachments

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/unicode/norm"

	"github.com/draftgate/draftgate/internal/authz"
	"github.com/draftgate/draftgate/internal/platform/blob"
	"github.com/draftgate/draftgate/internal/platform/httpx"
)

var (
	// ErrFileTooLarge indicates a file over the size ceiling.
	ErrFileTooLarge = fmt.Errorf("file exceeds %d bytes", MaxFileSize)
	// ErrUnsupportedType indicates a content type outside the allow-list.
	ErrUnsupportedType = errors.New("unsupported file type")
)

// UploadFile is one file of an incoming batch. Size comes from the
// multipart header and is checked before the reader is consumed.
type UploadFile struct {
	Name     string
	MimeType string
	Size     int64
	Reader   io.Reader
}

// Service orchestrates attachment upload, download, and deletion.
// Objects and metadata rows are written in that order, with a
// compensating object delete when the row insert fails.
type Service struct {
	repo   RepositoryPort
	store  *blob.Store
	signer *blob.Signer
	logger *slog.Logger
}

// NewService constructs the attachments service.
func NewService(repo RepositoryPort, store *blob.Store, signer *blob.Signer, logger *slog.Logger) *Service {
	return &Service{repo: repo, store: store, signer: signer, logger: logger}
}

// Upload stores a batch of files against a request. Only the request
// owner may upload, and only while the request is pending. Files
// succeed or fail independently; the summary reports both counts.
func (s *Service) Upload(ctx context.Context, caller authz.Identity, requestID int64, files []UploadFile) (UploadSummary, error) {
	state, err := s.repo.RequestState(ctx, requestID)
	if err != nil {
		return UploadSummary{}, mapNotFound(err)
	}
	if !authz.CanReadRequest(caller, state.OwnerID) {
		return UploadSummary{}, httpx.ErrNotFound
	}
	if !authz.CanAddAttachment(caller, state.OwnerID, state.Pending) {
		return UploadSummary{}, httpx.ErrForbidden
	}

	summary := UploadSummary{Total: len(files), Results: make([]UploadResult, 0, len(files))}
	for _, f := range files {
		result := UploadResult{FileName: f.Name}
		attached, err := s.uploadOne(ctx, caller, requestID, f)
		if err != nil {
			result.Error = err.Error()
		} else {
			result.Attachment = &attached
			result.FileName = attached.FileName
			summary.Uploaded++
		}
		summary.Results = append(summary.Results, result)
	}
	return summary, nil
}

func (s *Service) uploadOne(ctx context.Context, caller authz.Identity, requestID int64, f UploadFile) (Attachment, error) {
	ext, ok := AllowedMimeType(f.MimeType)
	if !ok {
		return Attachment{}, ErrUnsupportedType
	}
	if f.Size > MaxFileSize {
		return Attachment{}, ErrFileTooLarge
	}

	key := fmt.Sprintf("%d/%d/%s%s", caller.ID, requestID, uuid.NewString(), ext)

	// The header size is client-declared, so cap the copy too.
	written, err := s.store.Put(ctx, key, io.LimitReader(f.Reader, MaxFileSize+1))
	if err != nil {
		return Attachment{}, err
	}
	if written > MaxFileSize {
		_ = s.store.Delete(ctx, key)
		return Attachment{}, ErrFileTooLarge
	}

	attached, err := s.repo.Insert(ctx, Attachment{
		RequestID:  requestID,
		UploaderID: caller.ID,
		FileName:   normalizeFileName(f.Name, ext),
		MimeType:   f.MimeType,
		SizeBytes:  written,
		StorageKey: key,
	})
	if err != nil {
		if derr := s.store.Delete(ctx, key); derr != nil && s.logger != nil {
			s.logger.Error("compensating object delete failed", slog.String("key", key), slog.Any("error", derr))
		}
		return Attachment{}, err
	}
	return attached, nil
}

// ListForRequest returns a request's attachments for the owner or an
// admin.
func (s *Service) ListForRequest(ctx context.Context, caller authz.Identity, requestID int64) ([]Attachment, error) {
	state, err := s.repo.RequestState(ctx, requestID)
	if err != nil {
		return nil, mapNotFound(err)
	}
	if !authz.CanReadAttachments(caller, state.OwnerID) {
		return nil, httpx.ErrNotFound
	}
	items, err := s.repo.ListForRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []Attachment{}
	}
	return items, nil
}

// Delete removes an attachment: object first, then the metadata row.
// A dangling object is sweepable garbage, a dangling row is a broken
// download, so the object goes first.
func (s *Service) Delete(ctx context.Context, caller authz.Identity, id int64) error {
	a, err := s.repo.Get(ctx, id)
	if err != nil {
		return mapNotFound(err)
	}
	state, err := s.repo.RequestState(ctx, a.RequestID)
	if err != nil {
		return mapNotFound(err)
	}
	if !authz.CanReadAttachments(caller, state.OwnerID) {
		return httpx.ErrNotFound
	}
	if !authz.CanDeleteAttachment(caller, a.UploaderID, state.Pending) {
		return httpx.ErrForbidden
	}
	if err := s.store.Delete(ctx, a.StorageKey); err != nil {
		return err
	}
	return s.repo.Delete(ctx, id)
}

// SignedURL issues a short-lived download link for an attachment the
// caller may read.
func (s *Service) SignedURL(ctx context.Context, caller authz.Identity, id int64, now time.Time) (string, time.Time, error) {
	a, err := s.repo.Get(ctx, id)
	if err != nil {
		return "", time.Time{}, mapNotFound(err)
	}
	state, err := s.repo.RequestState(ctx, a.RequestID)
	if err != nil {
		return "", time.Time{}, mapNotFound(err)
	}
	if !authz.CanReadAttachments(caller, state.OwnerID) {
		return "", time.Time{}, httpx.ErrNotFound
	}
	query := s.signer.Sign(a.StorageKey, now)
	return "/attachments/download?" + query.Encode(), now.Add(s.signer.TTL()), nil
}

// Download verifies a signed link and returns the object stream with
// its metadata. The signature is the authorization; no session needed.
func (s *Service) Download(ctx context.Context, query url.Values, now time.Time) (Attachment, io.ReadCloser, error) {
	key, err := s.signer.Verify(query, now)
	if err != nil {
		return Attachment{}, nil, httpx.ErrForbidden
	}
	a, err := s.repo.FindByStorageKey(ctx, key)
	if err != nil {
		return Attachment{}, nil, mapNotFound(err)
	}
	reader, _, err := s.store.Open(ctx, key)
	if err != nil {
		if errors.Is(err, blob.ErrNotFound) {
			return Attachment{}, nil, httpx.ErrNotFound
		}
		return Attachment{}, nil, err
	}
	return a, reader, nil
}

// normalizeFileName produces a safe display name: NFC-normalized,
// stripped of any path, never empty.
func normalizeFileName(name, ext string) string {
	name = norm.NFC.String(name)
	name = path.Base(strings.ReplaceAll(name, "\\", "/"))
	name = strings.TrimSpace(name)
	if name == "" || name == "." || name == "/" {
		return "upload" + ext
	}
	return name
}

func mapNotFound(err error) error {
	if errors.Is(err, ErrNotFound) {
		return httpx.ErrNotFound
	}
	return err
}
