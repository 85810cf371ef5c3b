package types

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ScopeFilter carries tenant/org scoping fields used by commands/queries. For
// provisioning flows OrgID identifies the owning organization (university).
type ScopeFilter struct {
	TenantID uuid.UUID
	OrgID    uuid.UUID
}

// ActorRef identifies who or what is initiating a provisioning operation.
type ActorRef struct {
	ID   uuid.UUID
	Type string
}

// RoleName normalizes the actor role for comparisons.
func (a ActorRef) RoleName() string {
	return strings.ToLower(strings.TrimSpace(a.Type))
}

// IsRole reports whether the actor matches the provided role.
func (a ActorRef) IsRole(role Role) bool {
	return a.RoleName() == string(role)
}

// IsAdmin reports whether the actor is a site-wide administrator.
func (a ActorRef) IsAdmin() bool {
	return a.IsRole(RoleAdmin)
}

// ActivityRecord describes sink inputs and is shared across sink and query layers.
type ActivityRecord struct {
	ID         uuid.UUID
	IdentityID uuid.UUID
	ActorID    uuid.UUID
	Verb       string
	ObjectType string
	ObjectID   string
	Channel    string
	TenantID   uuid.UUID
	OrgID      uuid.UUID
	Data       map[string]any
	OccurredAt time.Time
}

// ActivitySink is the minimal DI contract for emitting audit activity. Keep it
// stable and limited to Log so hosts can swap sinks without breaking changes.
type ActivitySink interface {
	Log(context.Context, ActivityRecord) error
}

// ProvisionEvent is emitted after a bulk provisioning run finishes.
type ProvisionEvent struct {
	JobID      uuid.UUID
	ActorID    uuid.UUID
	Scope      ScopeFilter
	Succeeded  int
	Failed     int
	OccurredAt time.Time
}

// LinkEvent signals that an authorization link was created or repaired.
type LinkEvent struct {
	IdentityID uuid.UUID
	Role       Role
	ActorID    uuid.UUID
	Scope      ScopeFilter
	OccurredAt time.Time
}

// Hooks groups optional callbacks invoked after key workflows complete.
type Hooks struct {
	AfterProvision  func(context.Context, ProvisionEvent)
	AfterLinkChange func(context.Context, LinkEvent)
	AfterActivity   func(context.Context, ActivityRecord)
}

// Clock abstracts time retrieval for deterministic testing.
type Clock interface {
	Now() time.Time
}

// IDGenerator abstracts UUID creation.
type IDGenerator interface {
	UUID() uuid.UUID
}

// Logger captures basic logging hooks used by the service.
type Logger interface {
	Debug(msg string, fields ...any)
	Info(msg string, fields ...any)
	Error(msg string, err error, fields ...any)
}

// SystemClock defers to time.Now for production usage.
type SystemClock struct{}

// Now returns the current UTC time.
func (SystemClock) Now() time.Time { return time.Now().UTC() }

// UUIDGenerator produces UUIDv4 identifiers.
type UUIDGenerator struct{}

// UUID returns a randomly generated UUID.
func (UUIDGenerator) UUID() uuid.UUID { return uuid.New() }

// NopLogger discards all log lines.
type NopLogger struct{}

// Debug implements Logger.
func (NopLogger) Debug(string, ...any) {}

// Info implements Logger.
func (NopLogger) Info(string, ...any) {}

// Error implements Logger.
func (NopLogger) Error(string, error, ...any) {}

var (
	// ErrActorRequired indicates an actor reference was not supplied.
	ErrActorRequired = errors.New("go-enroll: actor reference required")
	// ErrIdentityIDRequired indicates an identity identifier was omitted.
	ErrIdentityIDRequired = errors.New("go-enroll: identity id required")
	// ErrJobIDRequired indicates a bulk job identifier was omitted.
	ErrJobIDRequired = errors.New("go-enroll: job id required")
	// ErrServiceNotReady indicates the service has not been properly configured.
	ErrServiceNotReady = errors.New("go-enroll: service not ready")
	// ErrMissingCredentialStore occurs when no credential store was supplied.
	ErrMissingCredentialStore = errors.New("go-enroll: missing credential store")
	// ErrMissingStudentRepository occurs when no student repository was supplied.
	ErrMissingStudentRepository = errors.New("go-enroll: missing student repository")
	// ErrMissingLinkRepository occurs when no link repository was supplied.
	ErrMissingLinkRepository = errors.New("go-enroll: missing link repository")
	// ErrMissingJobLedger occurs when no job ledger was supplied.
	ErrMissingJobLedger = errors.New("go-enroll: missing job ledger")
)
