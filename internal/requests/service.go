package requests

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/draftgate/draftgate/internal/authz"
	"github.com/draftgate/draftgate/internal/platform/httpx"
	"github.com/draftgate/draftgate/internal/shared"
)

// AuditPort records admin status transitions.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service orchestrates project request flows. Every operation takes the
// authenticated identity explicitly and consults the authz rules before
// touching rows.
type Service struct {
	repo  RepositoryPort
	audit AuditPort
}

// NewService constructs the requests service.
func NewService(repo RepositoryPort, audit AuditPort) *Service {
	return &Service{repo: repo, audit: audit}
}

// CreateInput describes a new proposal.
type CreateInput struct {
	Title              string
	ProjectTypes       []string
	StrategicAlignment string
	ProblemStatement   string
	ExpectedOutcomes   string
	EstimatedDuration  string
	KeyDependencies    string
	Confidentiality    Confidentiality
}

// ListResult bundles a page of requests with pagination metadata.
type ListResult struct {
	Requests   []Request         `json:"requests"`
	Pagination shared.Pagination `json:"pagination"`
}

// Create submits a new request owned by the caller, status pending.
func (s *Service) Create(ctx context.Context, caller authz.Identity, input CreateInput) (Request, error) {
	if err := validateContent(contentOf(input)); err != nil {
		return Request{}, err
	}
	req := Request{
		OwnerID:            caller.ID,
		Title:              strings.TrimSpace(input.Title),
		ProjectTypes:       normalizeTags(input.ProjectTypes),
		StrategicAlignment: strings.TrimSpace(input.StrategicAlignment),
		ProblemStatement:   strings.TrimSpace(input.ProblemStatement),
		ExpectedOutcomes:   strings.TrimSpace(input.ExpectedOutcomes),
		EstimatedDuration:  strings.TrimSpace(input.EstimatedDuration),
		KeyDependencies:    strings.TrimSpace(input.KeyDependencies),
		Confidentiality:    input.Confidentiality,
	}
	if req.Confidentiality == "" {
		req.Confidentiality = ConfidentialityInternal
	}
	return s.repo.Create(ctx, req)
}

// Get returns a request visible to the caller. Missing and forbidden
// rows are indistinguishable.
func (s *Service) Get(ctx context.Context, caller authz.Identity, id int64) (Request, error) {
	req, err := s.repo.Get(ctx, id)
	if err != nil {
		return Request{}, mapNotFound(err)
	}
	if !authz.CanReadRequest(caller, req.OwnerID) {
		return Request{}, httpx.ErrNotFound
	}
	return req, nil
}

// List returns the requests visible to the caller: their own, or every
// row for admins.
func (s *Service) List(ctx context.Context, caller authz.Identity, filter Filter) (ListResult, error) {
	if filter.Status != "" && !ValidStatus(filter.Status) {
		return ListResult{}, httpx.ErrValidation
	}
	var (
		rows  []Request
		total int
		err   error
	)
	if caller.IsAdmin() {
		rows, total, err = s.repo.ListAll(ctx, filter)
	} else {
		rows, total, err = s.repo.ListByOwner(ctx, caller.ID, filter)
	}
	if err != nil {
		return ListResult{}, err
	}
	if rows == nil {
		rows = []Request{}
	}
	return ListResult{Requests: rows, Pagination: shared.NewPagination(filter.Page, filter.PerPage, total)}, nil
}

// UpdateContent replaces the owner-editable fields. Allowed for the
// owner only, and only while the request is still pending; a request
// under review or decided is locked for its submitter.
func (s *Service) UpdateContent(ctx context.Context, caller authz.Identity, id int64, input CreateInput) (Request, error) {
	req, err := s.repo.Get(ctx, id)
	if err != nil {
		return Request{}, mapNotFound(err)
	}
	if !authz.CanReadRequest(caller, req.OwnerID) {
		return Request{}, httpx.ErrNotFound
	}
	if !authz.CanUpdateRequestContent(caller, req.OwnerID, req.Pending()) {
		return Request{}, httpx.ErrForbidden
	}
	update := contentOf(input)
	if err := validateContent(update); err != nil {
		return Request{}, err
	}
	if update.Confidentiality == "" {
		update.Confidentiality = req.Confidentiality
	}
	return s.repo.UpdateContent(ctx, id, update)
}

// ChangeStatus sets the request status. Admin only; any of the four
// values, any time.
func (s *Service) ChangeStatus(ctx context.Context, caller authz.Identity, id int64, status Status) (Request, error) {
	if !ValidStatus(status) {
		return Request{}, httpx.ErrValidation
	}
	req, err := s.repo.Get(ctx, id)
	if err != nil {
		return Request{}, mapNotFound(err)
	}
	if !authz.CanReadRequest(caller, req.OwnerID) {
		return Request{}, httpx.ErrNotFound
	}
	if !authz.CanChangeRequestStatus(caller) {
		return Request{}, httpx.ErrForbidden
	}
	previous := req.Status
	updated, err := s.repo.UpdateStatus(ctx, id, status)
	if err != nil {
		return Request{}, err
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  caller.ID,
			Action:   "request.status",
			Entity:   "project_request",
			EntityID: strconv.FormatInt(id, 10),
			Meta:     map[string]any{"from": string(previous), "to": string(status)},
		})
	}
	return updated, nil
}

// Delete removes a request. Owner only, and only while pending.
func (s *Service) Delete(ctx context.Context, caller authz.Identity, id int64) error {
	req, err := s.repo.Get(ctx, id)
	if err != nil {
		return mapNotFound(err)
	}
	if !authz.CanReadRequest(caller, req.OwnerID) {
		return httpx.ErrNotFound
	}
	if !authz.CanDeleteRequest(caller, req.OwnerID, req.Pending()) {
		return httpx.ErrForbidden
	}
	return s.repo.Delete(ctx, id)
}

func contentOf(input CreateInput) ContentUpdate {
	return ContentUpdate{
		Title:              strings.TrimSpace(input.Title),
		ProjectTypes:       normalizeTags(input.ProjectTypes),
		StrategicAlignment: strings.TrimSpace(input.StrategicAlignment),
		ProblemStatement:   strings.TrimSpace(input.ProblemStatement),
		ExpectedOutcomes:   strings.TrimSpace(input.ExpectedOutcomes),
		EstimatedDuration:  strings.TrimSpace(input.EstimatedDuration),
		KeyDependencies:    strings.TrimSpace(input.KeyDependencies),
		Confidentiality:    input.Confidentiality,
	}
}

func validateContent(update ContentUpdate) error {
	if update.Title == "" || update.ProblemStatement == "" || update.ExpectedOutcomes == "" {
		return httpx.ErrValidation
	}
	if len(update.ProjectTypes) == 0 {
		return httpx.ErrValidation
	}
	if update.Confidentiality != "" && !ValidConfidentiality(update.Confidentiality) {
		return httpx.ErrValidation
	}
	return nil
}

func normalizeTags(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	result := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		result = append(result, tag)
	}
	return result
}

func mapNotFound(err error) error {
	if errors.Is(err, ErrNotFound) {
		return httpx.ErrNotFound
	}
	return err
}
