package identities

import (
	"context"
	"errors"
	"strings"

	auth "github.com/goliatone/go-auth"
	"github.com/goliatone/go-enroll/dupindex"
	"github.com/goliatone/go-enroll/pkg/types"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// RepositoryConfig wires the Bun-backed credential store.
type RepositoryConfig struct {
	DB         *bun.DB
	Repository repository.Repository[*Record]
	Clock      types.Clock
	IDGen      types.IDGenerator
}

// Repository is the bundled types.CredentialStore: a Bun-backed identity
// table with hashed secrets and opaque bearer tokens. Hosts running on an
// external IdP swap in their own implementation; this one makes the module
// usable end-to-end without one.
type Repository struct {
	store repository.Repository[*Record]
	clock types.Clock
	idGen types.IDGenerator
}

// NewRepository constructs the default credential store.
func NewRepository(cfg RepositoryConfig) (*Repository, error) {
	if cfg.Repository == nil && cfg.DB == nil {
		return nil, errors.New("identities: db or repository required")
	}
	repo := cfg.Repository
	if repo == nil {
		repo = repository.NewRepository(cfg.DB, repository.ModelHandlers[*Record]{
			NewRecord: func() *Record { return &Record{} },
			GetID: func(rec *Record) uuid.UUID {
				if rec == nil {
					return uuid.Nil
				}
				return rec.ID
			},
			SetID: func(rec *Record, id uuid.UUID) {
				if rec != nil {
					rec.ID = id
				}
			},
		})
	}
	clock := cfg.Clock
	if clock == nil {
		clock = types.SystemClock{}
	}
	idGen := cfg.IDGen
	if idGen == nil {
		idGen = types.UUIDGenerator{}
	}
	return &Repository{store: repo, clock: clock, idGen: idGen}, nil
}

var _ types.CredentialStore = (*Repository)(nil)

// CreateIdentity registers the email with a hashed secret. Duplicate emails
// surface as types.ErrEmailTaken, including races that slipped past the
// caller's duplicate index.
func (r *Repository) CreateIdentity(ctx context.Context, input types.IdentityInput) (*types.Identity, error) {
	email := dupindex.Normalize(input.Email)
	if email == "" {
		return nil, errors.New("identities: email required")
	}
	if input.Secret == "" {
		return nil, errors.New("identities: secret required")
	}
	hash, err := auth.HashPassword(input.Secret)
	if err != nil {
		return nil, err
	}
	now := r.clock.Now()
	rec := &Record{
		ID:         r.idGen.UUID(),
		Email:      email,
		SecretHash: hash,
		Confirmed:  input.PreConfirmed,
		Metadata:   cloneMetadata(input.Metadata),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	created, err := r.store.Create(ctx, rec)
	if err != nil {
		if repository.IsDuplicatedKey(err) {
			return nil, types.ErrEmailTaken
		}
		return nil, err
	}
	return toDomain(created), nil
}

// DeleteIdentity removes the identity. Later lookups return
// types.ErrIdentityNotFound, which is what saga compensation relies on.
func (r *Repository) DeleteIdentity(ctx context.Context, id uuid.UUID) error {
	if id == uuid.Nil {
		return types.ErrIdentityIDRequired
	}
	return r.store.DeleteWhere(ctx, func(q *bun.DeleteQuery) *bun.DeleteQuery {
		return q.Where("id = ?", id)
	})
}

// ExchangeCredential resolves an opaque bearer token to its identity.
func (r *Repository) ExchangeCredential(ctx context.Context, bearer string) (*types.Identity, error) {
	bearer = strings.TrimSpace(bearer)
	if bearer == "" {
		return nil, types.ErrUnauthorized
	}
	rec, err := r.store.Get(ctx, repository.SelectBy("bearer_token", "=", bearer))
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, types.ErrUnauthorized
		}
		return nil, err
	}
	return toDomain(rec), nil
}

// GetIdentityByEmail returns the identity registered under the email.
func (r *Repository) GetIdentityByEmail(ctx context.Context, email string) (*types.Identity, error) {
	rec, err := r.store.Get(ctx, repository.SelectBy("email", "=", dupindex.Normalize(email)))
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, types.ErrIdentityNotFound
		}
		return nil, err
	}
	return toDomain(rec), nil
}

// IssueCredential mints a fresh opaque bearer token for the identity. Login
// surfaces live outside this module; the method exists so examples and tests
// can produce exchangeable credentials.
func (r *Repository) IssueCredential(ctx context.Context, id uuid.UUID) (string, error) {
	if id == uuid.Nil {
		return "", types.ErrIdentityIDRequired
	}
	rec, err := r.store.GetByID(ctx, id.String())
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return "", types.ErrIdentityNotFound
		}
		return "", err
	}
	rec.BearerToken = r.idGen.UUID().String()
	rec.UpdatedAt = r.clock.Now()
	if _, err := r.store.Update(ctx, rec); err != nil {
		return "", err
	}
	return rec.BearerToken, nil
}

func toDomain(rec *Record) *types.Identity {
	if rec == nil {
		return nil
	}
	created := rec.CreatedAt
	updated := rec.UpdatedAt
	return &types.Identity{
		ID:        rec.ID,
		Email:     rec.Email,
		Confirmed: rec.Confirmed,
		Metadata:  cloneMetadata(rec.Metadata),
		CreatedAt: &created,
		UpdatedAt: &updated,
		Raw:       rec,
	}
}

func cloneMetadata(origin map[string]any) map[string]any {
	if len(origin) == 0 {
		return nil
	}
	out := make(map[string]any, len(origin))
	for k, v := range origin {
		out[k] = v
	}
	return out
}
