package links

import (
	"context"
	"errors"

	"github.com/goliatone/go-enroll/pkg/types"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/goliatone/go-repository-cache/cache"
	"github.com/goliatone/go-repository-cache/repositorycache"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// RepositoryConfig wires the Bun-backed authorization link repository.
type RepositoryConfig struct {
	DB         *bun.DB
	Repository repository.Repository[*Record]
	Clock      types.Clock
}

type linkStore interface {
	repository.Repository[*Record]
}

// Repository implements types.LinkRepository using Bun.
type Repository struct {
	linkStore
	clock types.Clock
}

// NewRepository constructs the default link repository. WithCache decorates
// the store with go-repository-cache so resolver-hot lookups skip the
// database.
func NewRepository(cfg RepositoryConfig, options ...RepositoryOption) (*Repository, error) {
	if cfg.Repository == nil && cfg.DB == nil {
		return nil, errors.New("links: db or repository required")
	}
	repo := cfg.Repository
	if repo == nil {
		repo = repository.NewRepository(cfg.DB, repository.ModelHandlers[*Record]{
			NewRecord: func() *Record { return &Record{} },
			GetID: func(rec *Record) uuid.UUID {
				if rec == nil {
					return uuid.Nil
				}
				return rec.IdentityID
			},
			SetID: func(rec *Record, id uuid.UUID) {
				if rec != nil {
					rec.IdentityID = id
				}
			},
		})
	}

	opts := applyRepositoryOptions(options)
	if opts.CacheEnabled {
		if _, alreadyCached := repo.(*repositorycache.CachedRepository[*Record]); !alreadyCached {
			cacheConfig := cache.DefaultConfig()
			if opts.CacheConfig != nil {
				cacheConfig = *opts.CacheConfig
			}
			cacheService, err := cache.NewCacheService(cacheConfig)
			if err != nil {
				return nil, err
			}
			repo = repositorycache.New(repo, cacheService, cache.NewDefaultKeySerializer())
		}
	}

	clock := cfg.Clock
	if clock == nil {
		clock = types.SystemClock{}
	}

	return &Repository{
		linkStore: repo,
		clock:     clock,
	}, nil
}

var (
	_ repository.Repository[*Record] = (*Repository)(nil)
	_ types.LinkRepository           = (*Repository)(nil)
)

// GetLink returns the link for the identity, or nil when absent.
func (r *Repository) GetLink(ctx context.Context, identityID uuid.UUID) (*types.AuthorizationLink, error) {
	if identityID == uuid.Nil {
		return nil, types.ErrIdentityIDRequired
	}
	rec, err := r.Get(ctx, selectIdentityID(identityID))
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return toDomain(rec), nil
}

// UpsertLink creates the link when absent. When a link already exists only
// missing fields are filled in: an established role is never replaced, no
// matter which of the creation paths (registration, admin, saga, lazy repair)
// wrote it first.
func (r *Repository) UpsertLink(ctx context.Context, link types.AuthorizationLink) (*types.AuthorizationLink, error) {
	if link.IdentityID == uuid.Nil {
		return nil, types.ErrIdentityIDRequired
	}
	if link.Role != "" && !types.ValidRole(string(link.Role)) {
		return nil, errors.New("links: unknown role " + string(link.Role))
	}
	now := r.clock.Now()

	existing, err := r.Get(ctx, selectIdentityID(link.IdentityID))
	switch {
	case err == nil:
		merged := mergeMissing(existing, link)
		merged.UpdatedAt = now
		updated, err := r.Update(ctx, merged)
		if err != nil {
			return nil, err
		}
		return toDomain(updated), nil
	case repository.IsRecordNotFound(err):
		rec := fromDomain(link)
		if rec.Role == "" {
			rec.Role = string(types.RoleDefault)
		}
		if rec.Approval == "" {
			rec.Approval = string(types.ApprovalPending)
		}
		rec.CreatedAt = now
		rec.UpdatedAt = now
		created, err := r.Create(ctx, rec)
		if err != nil {
			return nil, err
		}
		return toDomain(created), nil
	default:
		return nil, err
	}
}

// SetLinkActive flips the activation flag. The role and approval status stay
// untouched.
func (r *Repository) SetLinkActive(ctx context.Context, identityID uuid.UUID, active bool) error {
	if identityID == uuid.Nil {
		return types.ErrIdentityIDRequired
	}
	rec, err := r.Get(ctx, selectIdentityID(identityID))
	if err != nil {
		return err
	}
	rec.Active = active
	rec.UpdatedAt = r.clock.Now()
	_, err = r.Update(ctx, rec)
	return err
}

// DeleteLink removes the link for the identity.
func (r *Repository) DeleteLink(ctx context.Context, identityID uuid.UUID) error {
	if identityID == uuid.Nil {
		return types.ErrIdentityIDRequired
	}
	return r.DeleteWhere(ctx, func(q *bun.DeleteQuery) *bun.DeleteQuery {
		return q.Where("identity_id = ?", identityID)
	})
}

// mergeMissing fills gaps in the stored record from the incoming link without
// disturbing established values.
func mergeMissing(existing *Record, incoming types.AuthorizationLink) *Record {
	merged := *existing
	if merged.Role == "" && incoming.Role != "" {
		merged.Role = string(incoming.Role)
	}
	if merged.Organization == "" && incoming.Organization != "" {
		merged.Organization = incoming.Organization
	}
	if merged.OrgID == uuid.Nil && incoming.OrgID != uuid.Nil {
		merged.OrgID = incoming.OrgID
	}
	if merged.Approval == "" && incoming.Approval != "" {
		merged.Approval = string(incoming.Approval)
	}
	return &merged
}

func selectIdentityID(identityID uuid.UUID) repository.SelectCriteria {
	return repository.SelectBy("identity_id", "=", identityID.String())
}

func fromDomain(link types.AuthorizationLink) *Record {
	return &Record{
		IdentityID:   link.IdentityID,
		Role:         string(link.Role),
		Organization: link.Organization,
		OrgID:        link.OrgID,
		Active:       link.Active,
		Approval:     string(link.Approval),
		CreatedAt:    link.CreatedAt,
		UpdatedAt:    link.UpdatedAt,
	}
}

func toDomain(rec *Record) *types.AuthorizationLink {
	if rec == nil {
		return nil
	}
	return &types.AuthorizationLink{
		IdentityID:   rec.IdentityID,
		Role:         types.Role(rec.Role),
		Organization: rec.Organization,
		OrgID:        rec.OrgID,
		Active:       rec.Active,
		Approval:     types.ApprovalStatus(rec.Approval),
		CreatedAt:    rec.CreatedAt,
		UpdatedAt:    rec.UpdatedAt,
	}
}
