package goauth

import (
	"context"
	"fmt"
	"strings"

	auth "github.com/goliatone/go-auth"
	"github.com/goliatone/go-enroll/pkg/types"
	"github.com/google/uuid"
)

// ExchangeFunc resolves a bearer credential to the identifier of the account
// it authenticates. Hosts plug in whatever token layer they run (session
// store, JWT verifier, API key table); the adapter then loads the account
// through go-auth.
type ExchangeFunc func(ctx context.Context, bearer string) (string, error)

// CredentialAdapter wraps a go-auth Users repository so it satisfies the
// go-enroll CredentialStore interface. go-auth has no hard delete, so
// compensation deactivates the account through the upstream state machine and
// tombstones the email to release the address for re-registration.
type CredentialAdapter struct {
	repo          auth.Users
	sm            auth.UserStateMachine
	exchange      ExchangeFunc
	actor         auth.ActorRef
	defaultRole   auth.UserRole
	deletedStatus auth.UserStatus
}

// NewCredentialAdapter builds a CredentialAdapter. Exchange resolution is
// host-specific; without WithExchange every bearer is rejected.
func NewCredentialAdapter(repo auth.Users, opts ...CredentialAdapterOption) *CredentialAdapter {
	adapter := &CredentialAdapter{
		repo:          repo,
		sm:            auth.NewUserStateMachine(repo),
		actor:         auth.ActorRef{ID: "go-enroll", Type: "system"},
		defaultRole:   auth.UserRole("member"),
		deletedStatus: auth.UserStatus("deleted"),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(adapter)
		}
	}
	return adapter
}

// CredentialAdapterOption customizes adapter construction.
type CredentialAdapterOption func(*CredentialAdapter)

// WithExchange installs the bearer resolution function.
func WithExchange(fn ExchangeFunc) CredentialAdapterOption {
	return func(adapter *CredentialAdapter) {
		adapter.exchange = fn
	}
}

// WithActor overrides the actor recorded on lifecycle transitions.
func WithActor(actor auth.ActorRef) CredentialAdapterOption {
	return func(adapter *CredentialAdapter) {
		if actor.ID != "" {
			adapter.actor = actor
		}
	}
}

// WithDefaultRole overrides the go-auth role assigned to new accounts. The
// business role lives on the authorization link, not here.
func WithDefaultRole(role auth.UserRole) CredentialAdapterOption {
	return func(adapter *CredentialAdapter) {
		if role != "" {
			adapter.defaultRole = role
		}
	}
}

// WithDeletedStatus overrides the terminal status used for compensation.
func WithDeletedStatus(status auth.UserStatus) CredentialAdapterOption {
	return func(adapter *CredentialAdapter) {
		if status != "" {
			adapter.deletedStatus = status
		}
	}
}

var _ types.CredentialStore = (*CredentialAdapter)(nil)

// CreateIdentity registers a new go-auth account for the email.
func (a *CredentialAdapter) CreateIdentity(ctx context.Context, input types.IdentityInput) (*types.Identity, error) {
	email := normalizeEmail(input.Email)
	if existing, err := a.repo.GetByIdentifier(ctx, email); err == nil && existing != nil && !a.isDeleted(existing) {
		return nil, types.ErrEmailTaken
	}

	hash, err := auth.HashPassword(input.Secret)
	if err != nil {
		return nil, err
	}

	status := auth.UserStatusPending
	if input.PreConfirmed {
		status = auth.UserStatusActive
	}
	record := &auth.User{
		ID:             uuid.New(),
		Role:           a.defaultRole,
		Status:         status,
		Email:          email,
		Username:       email,
		PasswordHash:   hash,
		EmailValidated: input.PreConfirmed,
		Metadata:       copyMetadata(input.Metadata),
	}

	created, err := a.repo.Create(ctx, record)
	if err != nil {
		return nil, err
	}
	return toIdentity(created), nil
}

// DeleteIdentity deactivates the account and releases its email. go-auth
// keeps the row; the tombstoned address lets a later run re-provision the
// email after a rollback.
func (a *CredentialAdapter) DeleteIdentity(ctx context.Context, id uuid.UUID) error {
	record, err := a.repo.GetByID(ctx, id.String())
	if err != nil {
		return types.ErrIdentityNotFound
	}

	updated, err := a.sm.Transition(ctx, a.actor, record, a.deletedStatus,
		auth.WithTransitionReason("provisioning rollback"),
		auth.WithForceTransition())
	if err != nil {
		return err
	}

	updated.Email = tombstoneEmail(updated.ID, updated.Email)
	updated.Username = updated.Email
	if _, err := a.repo.Update(ctx, updated); err != nil {
		return err
	}
	return nil
}

// ExchangeCredential resolves a bearer credential through the configured
// exchange function and loads the account it names.
func (a *CredentialAdapter) ExchangeCredential(ctx context.Context, bearer string) (*types.Identity, error) {
	bearer = strings.TrimSpace(bearer)
	if bearer == "" || a.exchange == nil {
		return nil, types.ErrUnauthorized
	}

	identifier, err := a.exchange(ctx, bearer)
	if err != nil || identifier == "" {
		return nil, types.ErrUnauthorized
	}

	record, err := a.repo.GetByIdentifier(ctx, identifier)
	if err != nil || record == nil || a.isDeleted(record) {
		return nil, types.ErrUnauthorized
	}
	return toIdentity(record), nil
}

// GetIdentityByEmail returns the account registered under the email.
func (a *CredentialAdapter) GetIdentityByEmail(ctx context.Context, email string) (*types.Identity, error) {
	record, err := a.repo.GetByIdentifier(ctx, normalizeEmail(email))
	if err != nil || record == nil || a.isDeleted(record) {
		return nil, types.ErrIdentityNotFound
	}
	return toIdentity(record), nil
}

func (a *CredentialAdapter) isDeleted(record *auth.User) bool {
	return record.Status == a.deletedStatus
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func tombstoneEmail(id uuid.UUID, email string) string {
	return fmt.Sprintf("deleted+%s+%s", id.String(), email)
}
