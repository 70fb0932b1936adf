package requests

import "time"

// Request lifecycle statuses. The machine is deliberately loose: an
// admin may set any of the four values at any time, including reverting
// a decided request back to pending. Submitters never change status.
type Status string

const (
	StatusPending  Status = "pending"
	StatusInReview Status = "in_review"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// ValidStatus reports membership in the closed status set.
func ValidStatus(s Status) bool {
	switch s {
	case StatusPending, StatusInReview, StatusApproved, StatusRejected:
		return true
	}
	return false
}

// Confidentiality levels.
type Confidentiality string

const (
	ConfidentialityPublic     Confidentiality = "public"
	ConfidentialityInternal   Confidentiality = "internal"
	ConfidentialityRestricted Confidentiality = "restricted"
)

// ValidConfidentiality reports membership in the closed level set.
func ValidConfidentiality(c Confidentiality) bool {
	switch c {
	case ConfidentialityPublic, ConfidentialityInternal, ConfidentialityRestricted:
		return true
	}
	return false
}

// Request is a submitted project proposal, owned by exactly one
// submitter. Content fields are mutable by the owner only while the
// request is pending; the owner itself is immutable.
type Request struct {
	ID                 int64           `json:"id"`
	OwnerID            int64           `json:"owner_id"`
	Title              string          `json:"title"`
	ProjectTypes       []string        `json:"project_types"`
	StrategicAlignment string          `json:"strategic_alignment,omitempty"`
	ProblemStatement   string          `json:"problem_statement"`
	ExpectedOutcomes   string          `json:"expected_outcomes"`
	EstimatedDuration  string          `json:"estimated_duration,omitempty"`
	KeyDependencies    string          `json:"key_dependencies,omitempty"`
	Confidentiality    Confidentiality `json:"confidentiality"`
	Status             Status          `json:"status"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
}

// Pending reports whether content edits and attachment changes are
// still allowed for the owner.
func (r Request) Pending() bool {
	return r.Status == StatusPending
}

// Filter narrows list queries.
type Filter struct {
	Status  Status
	Search  string
	Page    int
	PerPage int
}
