package query

import (
	"context"

	gocommand "github.com/goliatone/go-command"
	"github.com/goliatone/go-enroll/pkg/types"
	"github.com/goliatone/go-enroll/scope"
	"github.com/google/uuid"
)

// LinkInput identifies the authorization link to read.
type LinkInput struct {
	IdentityID uuid.UUID
	Actor      types.ActorRef
	Scope      types.ScopeFilter
}

// LinkQuery reads the authorization link for an identity.
type LinkQuery struct {
	links types.LinkRepository
	guard scope.Guard
}

// NewLinkQuery constructs the link query helper.
func NewLinkQuery(links types.LinkRepository, guard scope.Guard) *LinkQuery {
	return &LinkQuery{
		links: links,
		guard: safeScopeGuard(guard),
	}
}

var _ gocommand.Querier[LinkInput, *types.AuthorizationLink] = (*LinkQuery)(nil)

// Query returns the link, or nil when none was recorded yet.
func (q *LinkQuery) Query(ctx context.Context, input LinkInput) (*types.AuthorizationLink, error) {
	if q.links == nil {
		return nil, types.ErrMissingLinkRepository
	}
	if input.IdentityID == uuid.Nil {
		return nil, types.ErrIdentityIDRequired
	}
	if _, err := q.guard.Enforce(ctx, input.Actor, input.Scope, types.PolicyActionLinksRead, input.IdentityID); err != nil {
		return nil, err
	}
	return q.links.GetLink(ctx, input.IdentityID)
}
