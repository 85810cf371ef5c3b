package authctx

import (
	"context"
	"strings"

	auth "github.com/goliatone/go-auth"
	"github.com/goliatone/go-enroll/pkg/types"
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-router"
	"github.com/google/uuid"
)

const (
	textCodeActorMissing = "ACTOR_CONTEXT_MISSING"
	textCodeActorInvalid = "ACTOR_CONTEXT_INVALID"
)

// Caller is the provisioning view of an authenticated request: the actor
// reference commands expect, the role claim mapped onto the closed role set,
// and a scope filter built from the tenant and organization claims. A
// transport resolves a Caller once and hands its fields straight to command
// inputs.
type Caller struct {
	Actor types.ActorRef
	Role  types.Role
	Scope types.ScopeFilter
}

// ResolveCaller builds a Caller from the actor metadata stored by go-auth
// middleware, rebuilding it from raw JWT claims when the ContextEnricher hook
// was not configured. A role outside the provisioning role set collapses to
// the guest default instead of failing the request; the scope guard decides
// what a guest may do.
func ResolveCaller(ctx context.Context) (Caller, error) {
	ref, actorCtx, err := ResolveActor(ctx)
	if err != nil {
		return Caller{}, err
	}
	return Caller{
		Actor: ref,
		Role:  RoleFromActorContext(actorCtx),
		Scope: ScopeFromActorContext(actorCtx),
	}, nil
}

// ResolveCallerFromRouter mirrors ResolveCaller for router transports where
// middleware stores actor metadata directly in the router context.
func ResolveCallerFromRouter(ctx router.Context) (Caller, error) {
	if ctx == nil {
		return Caller{}, missingActor("go-enroll: missing router context")
	}
	if actor, ok := auth.ActorFromRouterContext(ctx); ok && actor != nil {
		ref, err := ActorRefFromActorContext(actor)
		if err != nil {
			return Caller{}, err
		}
		return Caller{
			Actor: ref,
			Role:  RoleFromActorContext(actor),
			Scope: ScopeFromActorContext(actor),
		}, nil
	}
	return ResolveCaller(ctx.Context())
}

// ResolveActor returns the compact actor reference commands consume plus the
// richer auth payload for adapters that read tenant/org metadata themselves.
func ResolveActor(ctx context.Context) (types.ActorRef, *auth.ActorContext, error) {
	actorCtx, err := actorContext(ctx)
	if err != nil {
		return types.ActorRef{}, nil, err
	}
	ref, err := ActorRefFromActorContext(actorCtx)
	if err != nil {
		return types.ActorRef{}, nil, err
	}
	return ref, actorCtx, nil
}

// actorContext finds the middleware payload, preferring the enriched actor
// context over a claims rebuild.
func actorContext(ctx context.Context) (*auth.ActorContext, error) {
	if ctx == nil {
		return nil, missingActor("go-enroll: missing request context")
	}
	if actor, ok := auth.ActorFromContext(ctx); ok && actor != nil {
		return actor, nil
	}
	if claims, ok := auth.GetClaims(ctx); ok && claims != nil {
		if actor := auth.ActorContextFromClaims(claims); actor != nil {
			return actor, nil
		}
	}
	return nil, missingActor("go-enroll: auth actor context not found on request")
}

// ActorRefFromActorContext converts the middleware payload into the ActorRef
// consumed across go-enroll. The actor type carries the normalized role when
// the claim names one the module knows; otherwise the subject, so audit
// entries still identify service principals issued under foreign role names.
func ActorRefFromActorContext(actor *auth.ActorContext) (types.ActorRef, error) {
	if actor == nil || strings.TrimSpace(actor.ActorID) == "" {
		return types.ActorRef{}, errors.New("go-enroll: actor context has no actor_id", errors.CategoryAuth).
			WithCode(errors.CodeUnauthorized).
			WithTextCode(textCodeActorInvalid)
	}

	actorID, err := uuid.Parse(actor.ActorID)
	if err != nil {
		return types.ActorRef{}, errors.Wrap(err, errors.CategoryAuth, "go-enroll: actor_id on auth context is not a uuid").
			WithCode(errors.CodeUnauthorized).
			WithTextCode(textCodeActorInvalid)
	}

	ref := types.ActorRef{ID: actorID}
	switch {
	case types.ValidRole(actor.Role):
		ref.Type = string(types.ParseRole(actor.Role))
	case actor.Subject != "":
		ref.Type = actor.Subject
	default:
		ref.Type = actor.Role
	}
	return ref, nil
}

// RoleFromActorContext maps the middleware role claim onto the provisioning
// role set. Absent or unknown roles read as guest so callers always carry a
// role the resolver and authorization policies understand.
func RoleFromActorContext(actor *auth.ActorContext) types.Role {
	if actor == nil {
		return types.RoleDefault
	}
	return types.ParseRole(actor.Role)
}

// ScopeFromActorContext builds a ScopeFilter from the tenant and organization
// identifiers stored by go-auth middleware. Claims that do not parse as uuids
// are left unset rather than rejected; the scope guard resolves the gap.
func ScopeFromActorContext(actor *auth.ActorContext) types.ScopeFilter {
	if actor == nil {
		return types.ScopeFilter{}
	}
	return types.ScopeFilter{
		TenantID: parseUUID(actor.TenantID),
		OrgID:    parseUUID(actor.OrganizationID),
	}
}

func missingActor(msg string) error {
	return errors.New(msg, errors.CategoryAuth).
		WithCode(errors.CodeUnauthorized).
		WithTextCode(textCodeActorMissing)
}

func parseUUID(raw string) uuid.UUID {
	if raw == "" {
		return uuid.Nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil
	}
	return id
}
