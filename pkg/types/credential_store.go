package types

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Identity is the storage-agnostic view of a credential-store account. It
// carries no business role; that lives on the AuthorizationLink.
type Identity struct {
	ID        uuid.UUID
	Email     string
	Confirmed bool
	Metadata  map[string]any
	CreatedAt *time.Time
	UpdatedAt *time.Time
	Raw       any
}

// IdentityInput captures the payload for identity creation.
type IdentityInput struct {
	Email        string
	Secret       string
	PreConfirmed bool
	Metadata     map[string]any
}

// CredentialStore abstracts whichever credential/identity backend the host
// runs on. Implementations wrap go-auth repositories, the bundled Bun store,
// or any external IdP that honors these semantics.
type CredentialStore interface {
	// CreateIdentity registers a new identity and returns its assigned id.
	// Backends must reject emails that are already registered.
	CreateIdentity(ctx context.Context, input IdentityInput) (*Identity, error)
	// DeleteIdentity removes the identity so later lookups return not-found.
	// Used by saga compensation.
	DeleteIdentity(ctx context.Context, id uuid.UUID) error
	// ExchangeCredential resolves a bearer credential to the identity it
	// authenticates, or fails for absent/invalid credentials.
	ExchangeCredential(ctx context.Context, bearer string) (*Identity, error)
	// GetIdentityByEmail returns the identity registered under the email.
	GetIdentityByEmail(ctx context.Context, email string) (*Identity, error)
}

var (
	// ErrEmailTaken indicates the credential store already holds an identity
	// for the email. Surfaced as a per-row conflict by the saga.
	ErrEmailTaken = errors.New("go-enroll: email already registered")
	// ErrIdentityNotFound indicates no identity matches the lookup.
	ErrIdentityNotFound = errors.New("go-enroll: identity not found")
	// ErrUnauthorized indicates the bearer credential is absent or invalid.
	ErrUnauthorized = errors.New("go-enroll: unauthorized")
)

// Resolution is the tagged result of resolving a bearer credential. Persisted
// distinguishes a durably recorded role from one inferred transiently while
// the authorization link is missing.
type Resolution struct {
	Identity  *Identity
	Role      Role
	OrgID     uuid.UUID
	Persisted bool
}
