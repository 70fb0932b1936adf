package rbac

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/draftgate/draftgate/internal/authz"
	"github.com/draftgate/draftgate/internal/platform/httpx"
)

// Handler exposes role administration endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers role administration routes. The caller mounts
// this group behind RequireAuth + RequireAdmin.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/grant", h.grant)
	r.Post("/revoke", h.revoke)
}

type roleChangeRequest struct {
	UserID int64  `json:"user_id" validate:"required,gt=0"`
	Role   string `json:"role" validate:"required,oneof=user admin"`
}

func (h *Handler) grant(w http.ResponseWriter, r *http.Request) {
	h.change(w, r, h.service.Grant)
}

func (h *Handler) revoke(w http.ResponseWriter, r *http.Request) {
	h.change(w, r, h.service.Revoke)
}

func (h *Handler) change(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, actor authz.Identity, userID int64, role authz.Role) error) {
	actor, ok := IdentityFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	var payload roleChangeRequest
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	if err := h.validator.Struct(payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	if err := op(r.Context(), actor, payload.UserID, authz.Role(payload.Role)); err != nil {
		h.logger.Error("role change", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
