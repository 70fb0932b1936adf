package attachments

import (
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/draftgate/draftgate/internal/platform/httpx"
	"github.com/draftgate/draftgate/internal/rbac"
)

// multipartMemoryLimit is how much of a multipart body is held in
// memory before spilling to temp files.
const multipartMemoryLimit = 4 << 20

// Handler manages attachment endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRequestRoutes registers the per-request attachment routes.
// Mounted under /requests/{requestID}/attachments behind RequireAuth.
func (h *Handler) MountRequestRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.upload)
}

// MountRoutes registers routes addressing an attachment directly.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/{attachmentID}/url", h.signedURL)
	r.Delete("/{attachmentID}", h.remove)
}

// MountDownloadRoute registers the signed download endpoint. It skips
// the authenticated group: the signature is the credential.
func (h *Handler) MountDownloadRoute(r chi.Router) {
	r.Get("/download", h.download)
}

func (h *Handler) upload(w http.ResponseWriter, r *http.Request) {
	caller, ok := rbac.IdentityFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	requestID, err := strconv.ParseInt(chi.URLParam(r, "requestID"), 10, 64)
	if err != nil {
		httpx.RespondError(w, httpx.ErrNotFound)
		return
	}
	if err := r.ParseMultipartForm(multipartMemoryLimit); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "multipart form required")
		return
	}
	defer func() {
		_ = r.MultipartForm.RemoveAll()
	}()

	headers := r.MultipartForm.File["files"]
	if len(headers) == 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "no files provided")
		return
	}

	files := make([]UploadFile, 0, len(headers))
	opened := make([]interface{ Close() error }, 0, len(headers))
	defer func() {
		for _, f := range opened {
			_ = f.Close()
		}
	}()
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "unreadable file part")
			return
		}
		opened = append(opened, f)
		files = append(files, UploadFile{
			Name:     fh.Filename,
			MimeType: partMimeType(fh.Header.Get("Content-Type")),
			Size:     fh.Size,
			Reader:   f,
		})
	}

	summary, err := h.service.Upload(r.Context(), caller, requestID, files)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	status := http.StatusCreated
	if summary.Uploaded == 0 {
		status = http.StatusBadRequest
	} else if summary.Uploaded < summary.Total {
		status = http.StatusMultiStatus
	}
	httpx.JSON(w, status, summary)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	caller, ok := rbac.IdentityFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	requestID, err := strconv.ParseInt(chi.URLParam(r, "requestID"), 10, 64)
	if err != nil {
		httpx.RespondError(w, httpx.ErrNotFound)
		return
	}
	items, err := h.service.ListForRequest(r.Context(), caller, requestID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"attachments": items})
}

func (h *Handler) signedURL(w http.ResponseWriter, r *http.Request) {
	caller, ok := rbac.IdentityFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "attachmentID"), 10, 64)
	if err != nil {
		httpx.RespondError(w, httpx.ErrNotFound)
		return
	}
	link, expires, err := h.service.SignedURL(r.Context(), caller, id, time.Now())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"url":        link,
		"expires_at": expires.UTC().Format(time.RFC3339),
	})
}

func (h *Handler) remove(w http.ResponseWriter, r *http.Request) {
	caller, ok := rbac.IdentityFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "attachmentID"), 10, 64)
	if err != nil {
		httpx.RespondError(w, httpx.ErrNotFound)
		return
	}
	if err := h.service.Delete(r.Context(), caller, id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (h *Handler) download(w http.ResponseWriter, r *http.Request) {
	a, reader, err := h.service.Download(r.Context(), r.URL.Query(), time.Now())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	defer func() {
		_ = reader.Close()
	}()

	w.Header().Set("Content-Type", a.MimeType)
	w.Header().Set("Content-Length", strconv.FormatInt(a.SizeBytes, 10))
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", a.FileName))
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, reader); err != nil && h.logger != nil {
		h.logger.Warn("attachment stream interrupted", slog.Int64("attachment_id", a.ID), slog.Any("error", err))
	}
}

// partMimeType strips parameters like charset from a part's declared
// content type.
func partMimeType(header string) string {
	if header == "" {
		return "application/octet-stream"
	}
	mt, _, err := mime.ParseMediaType(header)
	if err != nil {
		return "application/octet-stream"
	}
	return mt
}
