package requests

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/draftgate/draftgate/internal/authz"
	"github.com/draftgate/draftgate/internal/platform/httpx"
	"github.com/draftgate/draftgate/internal/shared"
)

type memoryRequestRepo struct {
	requests map[int64]Request
	nextID   int64
}

func newMemoryRequestRepo() *memoryRequestRepo {
	return &memoryRequestRepo{requests: make(map[int64]Request)}
}

func (r *memoryRequestRepo) Create(ctx context.Context, req Request) (Request, error) {
	r.nextID++
	req.ID = r.nextID
	req.Status = StatusPending
	req.CreatedAt = time.Now()
	req.UpdatedAt = req.CreatedAt
	r.requests[req.ID] = req
	return req, nil
}

func (r *memoryRequestRepo) Get(ctx context.Context, id int64) (Request, error) {
	req, ok := r.requests[id]
	if !ok {
		return Request{}, ErrNotFound
	}
	return req, nil
}

func (r *memoryRequestRepo) ListByOwner(ctx context.Context, ownerID int64, filter Filter) ([]Request, int, error) {
	var result []Request
	for _, req := range r.requests {
		if req.OwnerID == ownerID && matches(req, filter) {
			result = append(result, req)
		}
	}
	sortByID(result)
	return result, len(result), nil
}

func (r *memoryRequestRepo) ListAll(ctx context.Context, filter Filter) ([]Request, int, error) {
	var result []Request
	for _, req := range r.requests {
		if matches(req, filter) {
			result = append(result, req)
		}
	}
	sortByID(result)
	return result, len(result), nil
}

func (r *memoryRequestRepo) UpdateContent(ctx context.Context, id int64, update ContentUpdate) (Request, error) {
	req, ok := r.requests[id]
	if !ok {
		return Request{}, ErrNotFound
	}
	req.Title = update.Title
	req.ProjectTypes = update.ProjectTypes
	req.StrategicAlignment = update.StrategicAlignment
	req.ProblemStatement = update.ProblemStatement
	req.ExpectedOutcomes = update.ExpectedOutcomes
	req.EstimatedDuration = update.EstimatedDuration
	req.KeyDependencies = update.KeyDependencies
	req.Confidentiality = update.Confidentiality
	req.UpdatedAt = time.Now()
	r.requests[id] = req
	return req, nil
}

func (r *memoryRequestRepo) UpdateStatus(ctx context.Context, id int64, status Status) (Request, error) {
	req, ok := r.requests[id]
	if !ok {
		return Request{}, ErrNotFound
	}
	req.Status = status
	req.UpdatedAt = time.Now()
	r.requests[id] = req
	return req, nil
}

func (r *memoryRequestRepo) Delete(ctx context.Context, id int64) error {
	if _, ok := r.requests[id]; !ok {
		return ErrNotFound
	}
	delete(r.requests, id)
	return nil
}

func matches(req Request, filter Filter) bool {
	if filter.Status != "" && req.Status != filter.Status {
		return false
	}
	return true
}

func sortByID(result []Request) {
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
}

type recordingAudit struct {
	logs []shared.AuditLog
}

func (a *recordingAudit) Record(ctx context.Context, log shared.AuditLog) error {
	a.logs = append(a.logs, log)
	return nil
}

var (
	alice = authz.Identity{ID: 1, Roles: []authz.Role{authz.RoleUser}}
	carol = authz.Identity{ID: 3, Roles: []authz.Role{authz.RoleUser}}
	boss  = authz.Identity{ID: 9, Roles: []authz.Role{authz.RoleAdmin}}
)

func validInput() CreateInput {
	return CreateInput{
		Title:            "Migrate billing",
		ProjectTypes:     []string{"infrastructure", "cost"},
		ProblemStatement: "Billing runs on a spreadsheet.",
		ExpectedOutcomes: "Automated monthly invoicing.",
		Confidentiality:  ConfidentialityRestricted,
	}
}

func TestCreateDefaults(t *testing.T) {
	svc := NewService(newMemoryRequestRepo(), nil)
	input := validInput()
	input.Confidentiality = ""

	req, err := svc.Create(context.Background(), alice, input)
	require.NoError(t, err)
	require.Equal(t, StatusPending, req.Status)
	require.Equal(t, ConfidentialityInternal, req.Confidentiality)
	require.EqualValues(t, alice.ID, req.OwnerID)
}

func TestCreateValidation(t *testing.T) {
	svc := NewService(newMemoryRequestRepo(), nil)

	input := validInput()
	input.ProblemStatement = "  "
	_, err := svc.Create(context.Background(), alice, input)
	require.ErrorIs(t, err, httpx.ErrValidation)

	input = validInput()
	input.ProjectTypes = nil
	_, err = svc.Create(context.Background(), alice, input)
	require.ErrorIs(t, err, httpx.ErrValidation)

	input = validInput()
	input.Confidentiality = "secret"
	_, err = svc.Create(context.Background(), alice, input)
	require.ErrorIs(t, err, httpx.ErrValidation)
}

func TestRoundTripTagsAndConfidentiality(t *testing.T) {
	svc := NewService(newMemoryRequestRepo(), nil)

	created, err := svc.Create(context.Background(), alice, validInput())
	require.NoError(t, err)

	got, err := svc.Get(context.Background(), alice, created.ID)
	require.NoError(t, err)
	require.Equal(t, []string{"infrastructure", "cost"}, got.ProjectTypes)
	require.Equal(t, ConfidentialityRestricted, got.Confidentiality)
}

func TestReadVisibility(t *testing.T) {
	svc := NewService(newMemoryRequestRepo(), nil)
	created, err := svc.Create(context.Background(), alice, validInput())
	require.NoError(t, err)

	// A non-admin stranger cannot tell the request exists.
	_, err = svc.Get(context.Background(), carol, created.ID)
	require.ErrorIs(t, err, httpx.ErrNotFound)

	_, err = svc.Get(context.Background(), boss, created.ID)
	require.NoError(t, err)

	own, err := svc.List(context.Background(), carol, Filter{})
	require.NoError(t, err)
	require.Empty(t, own.Requests)

	all, err := svc.List(context.Background(), boss, Filter{})
	require.NoError(t, err)
	require.Len(t, all.Requests, 1)
}

func TestContentLockedAfterStatusChange(t *testing.T) {
	repo := newMemoryRequestRepo()
	svc := NewService(repo, nil)
	created, err := svc.Create(context.Background(), alice, validInput())
	require.NoError(t, err)

	_, err = svc.ChangeStatus(context.Background(), boss, created.ID, StatusInReview)
	require.NoError(t, err)

	input := validInput()
	input.ProblemStatement = "Edited after review started."
	_, err = svc.UpdateContent(context.Background(), alice, created.ID, input)
	require.ErrorIs(t, err, httpx.ErrForbidden)

	// Admin status changes still succeed against the locked request.
	_, err = svc.ChangeStatus(context.Background(), boss, created.ID, StatusApproved)
	require.NoError(t, err)
}

func TestStatusChangeAuthority(t *testing.T) {
	svc := NewService(newMemoryRequestRepo(), nil)
	created, err := svc.Create(context.Background(), alice, validInput())
	require.NoError(t, err)

	// The owner cannot change status, even on their own request.
	_, err = svc.ChangeStatus(context.Background(), alice, created.ID, StatusApproved)
	require.ErrorIs(t, err, httpx.ErrForbidden)

	// Any value, any time: approved back to pending is legal for admins.
	_, err = svc.ChangeStatus(context.Background(), boss, created.ID, StatusApproved)
	require.NoError(t, err)
	req, err := svc.ChangeStatus(context.Background(), boss, created.ID, StatusPending)
	require.NoError(t, err)
	require.Equal(t, StatusPending, req.Status)

	_, err = svc.ChangeStatus(context.Background(), boss, created.ID, Status("archived"))
	require.ErrorIs(t, err, httpx.ErrValidation)
}

func TestStatusChangeAudited(t *testing.T) {
	audit := &recordingAudit{}
	svc := NewService(newMemoryRequestRepo(), audit)
	created, err := svc.Create(context.Background(), alice, validInput())
	require.NoError(t, err)

	_, err = svc.ChangeStatus(context.Background(), boss, created.ID, StatusRejected)
	require.NoError(t, err)
	require.Len(t, audit.logs, 1)
	require.Equal(t, "request.status", audit.logs[0].Action)
	require.Equal(t, "pending", audit.logs[0].Meta["from"])
	require.Equal(t, "rejected", audit.logs[0].Meta["to"])
}

func TestDeleteRules(t *testing.T) {
	svc := NewService(newMemoryRequestRepo(), nil)
	created, err := svc.Create(context.Background(), alice, validInput())
	require.NoError(t, err)

	err = svc.Delete(context.Background(), carol, created.ID)
	require.ErrorIs(t, err, httpx.ErrNotFound)

	_, err = svc.ChangeStatus(context.Background(), boss, created.ID, StatusInReview)
	require.NoError(t, err)
	err = svc.Delete(context.Background(), alice, created.ID)
	require.ErrorIs(t, err, httpx.ErrForbidden)

	_, err = svc.ChangeStatus(context.Background(), boss, created.ID, StatusPending)
	require.NoError(t, err)
	require.NoError(t, svc.Delete(context.Background(), alice, created.ID))
}

func TestTagNormalization(t *testing.T) {
	svc := NewService(newMemoryRequestRepo(), nil)
	input := validInput()
	input.ProjectTypes = []string{" infra ", "infra", "", "data"}

	req, err := svc.Create(context.Background(), alice, input)
	require.NoError(t, err)
	require.Equal(t, []string{"infra", "data"}, req.ProjectTypes)
}
