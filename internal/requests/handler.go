package requests

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/draftgate/draftgate/internal/platform/httpx"
	"github.com/draftgate/draftgate/internal/rbac"
)

// Handler manages project request endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
	rbac      rbac.Middleware
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, mw rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New(), rbac: mw}
}

// MountRoutes registers request routes. Mounted behind RequireAuth.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/", h.create)
	r.Get("/", h.list)
	r.Get("/{requestID}", h.get)
	r.Put("/{requestID}", h.updateContent)
	r.Delete("/{requestID}", h.remove)
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAdmin)
		r.Patch("/{requestID}/status", h.changeStatus)
	})
}

type requestPayload struct {
	Title              string   `json:"title" validate:"required,max=300"`
	ProjectTypes       []string `json:"project_types" validate:"required,min=1,dive,required"`
	StrategicAlignment string   `json:"strategic_alignment"`
	ProblemStatement   string   `json:"problem_statement" validate:"required"`
	ExpectedOutcomes   string   `json:"expected_outcomes" validate:"required"`
	EstimatedDuration  string   `json:"estimated_duration"`
	KeyDependencies    string   `json:"key_dependencies"`
	Confidentiality    string   `json:"confidentiality" validate:"omitempty,oneof=public internal restricted"`
}

type statusPayload struct {
	Status string `json:"status" validate:"required,oneof=pending in_review approved rejected"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	caller, ok := rbac.IdentityFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	input, err := h.decodePayload(w, r)
	if err != nil {
		return
	}
	created, err := h.service.Create(r.Context(), caller, input)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, created)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	caller, ok := rbac.IdentityFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	perPage, _ := strconv.Atoi(q.Get("per_page"))
	filter := Filter{
		Status:  Status(q.Get("status")),
		Search:  q.Get("search"),
		Page:    page,
		PerPage: perPage,
	}
	result, err := h.service.List(r.Context(), caller, filter)
	if err != nil {
		h.logger.Error("list requests", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	caller, ok := rbac.IdentityFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	id, err := requestID(r)
	if err != nil {
		httpx.RespondError(w, httpx.ErrNotFound)
		return
	}
	req, err := h.service.Get(r.Context(), caller, id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, req)
}

func (h *Handler) updateContent(w http.ResponseWriter, r *http.Request) {
	caller, ok := rbac.IdentityFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	id, err := requestID(r)
	if err != nil {
		httpx.RespondError(w, httpx.ErrNotFound)
		return
	}
	input, err := h.decodePayload(w, r)
	if err != nil {
		return
	}
	updated, err := h.service.UpdateContent(r.Context(), caller, id, input)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, updated)
}

func (h *Handler) changeStatus(w http.ResponseWriter, r *http.Request) {
	caller, ok := rbac.IdentityFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	id, err := requestID(r)
	if err != nil {
		httpx.RespondError(w, httpx.ErrNotFound)
		return
	}
	var payload statusPayload
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	if err := h.validator.Struct(payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	updated, err := h.service.ChangeStatus(r.Context(), caller, id, Status(payload.Status))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, updated)
}

func (h *Handler) remove(w http.ResponseWriter, r *http.Request) {
	caller, ok := rbac.IdentityFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	id, err := requestID(r)
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

func (h *Handler) decodePayload(w http.ResponseWriter, r *http.Request) (CreateInput, error) {
	var payload requestPayload
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return CreateInput{}, err
	}
	if err := h.validator.Struct(payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return CreateInput{}, err
	}
	return CreateInput{
		Title:              payload.Title,
		ProjectTypes:       payload.ProjectTypes,
		StrategicAlignment: payload.StrategicAlignment,
		ProblemStatement:   payload.ProblemStatement,
		ExpectedOutcomes:   payload.ExpectedOutcomes,
		EstimatedDuration:  payload.EstimatedDuration,
		KeyDependencies:    payload.KeyDependencies,
		Confidentiality:    Confidentiality(payload.Confidentiality),
	}, nil
}

func requestID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "requestID"), 10, 64)
}
