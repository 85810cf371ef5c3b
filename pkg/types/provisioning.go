package types

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// RowRecord is one validated input record from a bulk upload. Name and Email
// are required; the remaining fields are optional. Values are immutable once
// read from input.
type RowRecord struct {
	Name      string
	Email     string
	StudentID string
	Batch     string
	Program   string
	Semester  string
}

// Credentials carries the generated temporary secret surfaced through the
// bulk result. This is the only channel through which an operator learns the
// secret; it is never emailed in the batch path.
type Credentials struct {
	TemporarySecret string
	GeneratedAt     time.Time
}

// StudentRecord is the relational row created for a provisioned identity. The
// identity reference is a weak back-reference, not an ownership edge.
type StudentRecord struct {
	ID          uuid.UUID
	OrgID       uuid.UUID
	IdentityID  uuid.UUID
	Name        string
	Email       string
	StudentID   string
	Batch       string
	Program     string
	Semester    string
	Credentials Credentials
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// AuthorizationLink binds an identity to a role, organization, and activation
// state. It is the single source of truth for the identity's role. Once set,
// a link's role is never silently overwritten; merges only fill missing
// fields.
type AuthorizationLink struct {
	IdentityID   uuid.UUID
	Role         Role
	Organization string
	OrgID        uuid.UUID
	Active       bool
	Approval     ApprovalStatus
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// JobStatus enumerates the bulk job lifecycle.
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// RowFailure records why a single input row was not provisioned.
type RowFailure struct {
	Input  RowRecord
	Reason string
}

// ProvisionedRow pairs a created student record with its generated credentials.
type ProvisionedRow struct {
	Record      StudentRecord
	Credentials Credentials
}

// BulkResult aggregates the outcome of one saga run. Every input row lands in
// exactly one of Successful or Failed.
type BulkResult struct {
	Successful []ProvisionedRow
	Failed     []RowFailure
	Total      int
}

// BulkJob tracks one invocation of the provisioning saga.
type BulkJob struct {
	ID          uuid.UUID
	JobID       uuid.UUID
	OrgID       uuid.UUID
	Status      JobStatus
	Succeeded   int
	Failed      int
	Errors      []RowFailure
	CreatedAt   time.Time
	UpdatedAt   time.Time
	CompletedAt time.Time
}

// StudentRepository persists student records in the relational store. The
// store's uniqueness constraint on (org, email) is the final arbiter for
// duplicates; the in-memory index is only a fast path.
type StudentRepository interface {
	CreateStudent(ctx context.Context, record StudentRecord) (*StudentRecord, error)
	DeleteStudent(ctx context.Context, id uuid.UUID) error
	GetStudentByEmail(ctx context.Context, email string, scope ScopeFilter) (*StudentRecord, error)
}

// EmailSource lists normalized emails already present in the relational store
// so the duplicate index can snapshot them at saga start.
type EmailSource interface {
	ListEmails(ctx context.Context, scope ScopeFilter) ([]string, error)
}

// LinkRepository persists authorization links keyed by identity id.
type LinkRepository interface {
	GetLink(ctx context.Context, identityID uuid.UUID) (*AuthorizationLink, error)
	// UpsertLink creates the link when absent; when present it fills missing
	// fields only and never replaces an established role.
	UpsertLink(ctx context.Context, link AuthorizationLink) (*AuthorizationLink, error)
	// SetLinkActive flips the activation flag without touching the role.
	SetLinkActive(ctx context.Context, identityID uuid.UUID, active bool) error
	DeleteLink(ctx context.Context, identityID uuid.UUID) error
}

// JobLedger persists bulk job lifecycle state for later audit and retrieval.
type JobLedger interface {
	CreateJob(ctx context.Context, job BulkJob) (*BulkJob, error)
	GetJob(ctx context.Context, jobID uuid.UUID) (*BulkJob, error)
	MarkProcessing(ctx context.Context, jobID uuid.UUID) error
	// CompleteJob is the single terminal write for a run. It only succeeds
	// while the job is still processing, so completion happens exactly once.
	CompleteJob(ctx context.Context, jobID uuid.UUID, succeeded, failed int, rowErrors []RowFailure, completedAt time.Time) error
}

// SecretGenerator produces temporary secrets of fixed strength. The generator
// is shared across a batch and is not re-seeded per call.
type SecretGenerator interface {
	Generate() (string, error)
}

// Notifier delivers fire-and-forget notifications. Failures never affect
// provisioning outcomes.
type Notifier interface {
	Notify(ctx context.Context, email string, data map[string]any)
}
