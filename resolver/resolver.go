package resolver

import (
	"context"
	"strings"

	"github.com/goliatone/go-enroll/pkg/types"
	featuregate "github.com/goliatone/go-featuregate/gate"
	"github.com/google/uuid"
)

const featureLinkRepair = "provision.link_repair"

// Config wires the resolver dependencies.
type Config struct {
	CredentialStore types.CredentialStore
	Links           types.LinkRepository
	Clock           types.Clock
	Activity        types.ActivitySink
	Hooks           types.Hooks
	Logger          types.Logger
	FeatureGate     featuregate.FeatureGate
}

// Resolver establishes the caller's identity and role for every privileged
// request. A missing authorization link is treated as provisioning lag, not a
// security violation: the identity was already verified by the credential
// store, so the resolver answers with an inferred role instead of locking the
// caller out, and repairs the link when it is allowed to.
type Resolver struct {
	credentials types.CredentialStore
	links       types.LinkRepository
	clock       types.Clock
	sink        types.ActivitySink
	hooks       types.Hooks
	logger      types.Logger
	gate        featuregate.FeatureGate
}

// New constructs a Resolver. CredentialStore and Links are required; the rest
// default to no-ops.
func New(cfg Config) *Resolver {
	clock := cfg.Clock
	if clock == nil {
		clock = types.SystemClock{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = types.NopLogger{}
	}
	return &Resolver{
		credentials: cfg.CredentialStore,
		links:       cfg.Links,
		clock:       clock,
		sink:        cfg.Activity,
		hooks:       cfg.Hooks,
		logger:      logger,
		gate:        cfg.FeatureGate,
	}
}

// ResolveOption adjusts a single resolution call.
type ResolveOption func(*resolveOptions)

type resolveOptions struct {
	elevated bool
}

// WithElevated marks the call as holding service privilege, allowing the
// resolver to persist a missing authorization link.
func WithElevated(elevated bool) ResolveOption {
	return func(o *resolveOptions) {
		o.elevated = elevated
	}
}

// Resolve exchanges the bearer credential for the caller's identity and role.
// An absent or invalid credential always fails with types.ErrUnauthorized. A
// missing authorization link never fails: the role is inferred from identity
// metadata (guest when no hint is present) and, when the caller is elevated,
// durably recorded so the next lookup finds it. Resolution.Persisted tells
// callers whether they are looking at a recorded role or a transient one.
func (r *Resolver) Resolve(ctx context.Context, bearer string, opts ...ResolveOption) (types.Resolution, error) {
	if r == nil || r.credentials == nil || r.links == nil {
		return types.Resolution{}, types.ErrServiceNotReady
	}

	options := resolveOptions{}
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}

	bearer = strings.TrimSpace(bearer)
	if bearer == "" {
		return types.Resolution{}, types.ErrUnauthorized
	}

	identity, err := r.credentials.ExchangeCredential(ctx, bearer)
	if err != nil {
		return types.Resolution{}, types.ErrUnauthorized
	}
	if identity == nil || identity.ID == uuid.Nil {
		return types.Resolution{}, types.ErrUnauthorized
	}

	link, err := r.links.GetLink(ctx, identity.ID)
	if err != nil {
		return types.Resolution{}, err
	}
	if link != nil {
		return types.Resolution{
			Identity:  identity,
			Role:      link.Role,
			OrgID:     link.OrgID,
			Persisted: true,
		}, nil
	}

	return r.resolveMissingLink(ctx, identity, options)
}

// resolveMissingLink handles the degraded path: role inferred from metadata,
// link persisted only with elevated privilege. Concurrent repairs for the same
// identity may race; the link store fills missing fields only, so last write
// wins without overwriting a role.
func (r *Resolver) resolveMissingLink(ctx context.Context, identity *types.Identity, options resolveOptions) (types.Resolution, error) {
	role := inferRole(identity)
	orgID := inferOrgID(identity)

	resolution := types.Resolution{
		Identity:  identity,
		Role:      role,
		OrgID:     orgID,
		Persisted: false,
	}

	if !options.elevated {
		r.logger.Info("resolver: authorization link missing, role inferred transiently",
			"identity_id", identity.ID.String(),
			"role", string(role),
		)
		r.audit(ctx, identity, role, false)
		return resolution, nil
	}

	if !r.repairEnabled(ctx, identity, orgID) {
		r.logger.Info("resolver: link repair disabled, role inferred transiently",
			"identity_id", identity.ID.String(),
			"role", string(role),
		)
		r.audit(ctx, identity, role, false)
		return resolution, nil
	}

	now := r.clock.Now()
	link, err := r.links.UpsertLink(ctx, types.AuthorizationLink{
		IdentityID: identity.ID,
		Role:       role,
		OrgID:      orgID,
		Active:     true,
		Approval:   types.ApprovalPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	})
	if err != nil {
		// Repair is best effort. The caller is still served with the
		// inferred role; a later privileged call can retry.
		r.logger.Error("resolver: lazy link creation failed", err,
			"identity_id", identity.ID.String(),
		)
		r.audit(ctx, identity, role, false)
		return resolution, nil
	}

	resolution.Role = link.Role
	resolution.OrgID = link.OrgID
	resolution.Persisted = true

	r.audit(ctx, identity, link.Role, true)
	if r.hooks.AfterLinkChange != nil {
		r.hooks.AfterLinkChange(ctx, types.LinkEvent{
			IdentityID: identity.ID,
			Role:       link.Role,
			Scope:      types.ScopeFilter{OrgID: link.OrgID},
			OccurredAt: now,
		})
	}
	return resolution, nil
}

func (r *Resolver) repairEnabled(ctx context.Context, identity *types.Identity, orgID uuid.UUID) bool {
	if r.gate == nil {
		return true
	}
	scopeSet := featuregate.ScopeSet{System: true, UserID: identity.ID.String()}
	if orgID != uuid.Nil {
		scopeSet.OrgID = orgID.String()
	}
	enabled, err := r.gate.Enabled(ctx, featureLinkRepair, featuregate.WithScopeSet(scopeSet))
	if err != nil {
		r.logger.Error("resolver: feature gate lookup failed", err)
		return false
	}
	return enabled
}

func (r *Resolver) audit(ctx context.Context, identity *types.Identity, role types.Role, persisted bool) {
	if r.sink == nil {
		return
	}
	record := types.ActivityRecord{
		IdentityID: identity.ID,
		Verb:       "resolver.link_inferred",
		ObjectType: "identity",
		ObjectID:   identity.ID.String(),
		Channel:    "authorization",
		Data: map[string]any{
			"role":      string(role),
			"persisted": persisted,
		},
		OccurredAt: r.clock.Now(),
	}
	if persisted {
		record.Verb = "resolver.link_repaired"
	}
	_ = r.sink.Log(ctx, record)
	if r.hooks.AfterActivity != nil {
		r.hooks.AfterActivity(ctx, record)
	}
}

// inferRole reads the role hint left by registration or provisioning flows in
// identity metadata. No hint means lowest privilege.
func inferRole(identity *types.Identity) types.Role {
	if identity == nil || len(identity.Metadata) == 0 {
		return types.RoleDefault
	}
	hint, ok := identity.Metadata["role"]
	if !ok {
		return types.RoleDefault
	}
	value, ok := hint.(string)
	if !ok {
		return types.RoleDefault
	}
	if !types.ValidRole(value) {
		return types.RoleDefault
	}
	return types.ParseRole(value)
}

func inferOrgID(identity *types.Identity) uuid.UUID {
	if identity == nil || len(identity.Metadata) == 0 {
		return uuid.Nil
	}
	hint, ok := identity.Metadata["org_id"]
	if !ok {
		return uuid.Nil
	}
	value, ok := hint.(string)
	if !ok {
		return uuid.Nil
	}
	orgID, err := uuid.Parse(value)
	if err != nil {
		return uuid.Nil
	}
	return orgID
}
