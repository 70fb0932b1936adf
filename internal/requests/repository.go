package requests

import "context"

// ContentUpdate carries the owner-editable fields of a request. Status
// and owner are deliberately absent.
type ContentUpdate struct {
	Title              string
	ProjectTypes       []string
	StrategicAlignment string
	ProblemStatement   string
	ExpectedOutcomes   string
	EstimatedDuration  string
	KeyDependencies    string
	Confidentiality    Confidentiality
}

// RepositoryPort describes repository operations used by Service.
type RepositoryPort interface {
	Create(ctx context.Context, req Request) (Request, error)
	Get(ctx context.Context, id int64) (Request, error)
	ListByOwner(ctx context.Context, ownerID int64, filter Filter) ([]Request, int, error)
	ListAll(ctx context.Context, filter Filter) ([]Request, int, error)
	UpdateContent(ctx context.Context, id int64, update ContentUpdate) (Request, error)
	UpdateStatus(ctx context.Context, id int64, status Status) (Request, error)
	Delete(ctx context.Context, id int64) error
}
