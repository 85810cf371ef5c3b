package query

import (
	"context"

	gocommand "github.com/goliatone/go-command"
	"github.com/goliatone/go-enroll/pkg/types"
	"github.com/goliatone/go-enroll/scope"
	"github.com/google/uuid"
)

// ActivityFeedInput filters the audit trail by verb.
type ActivityFeedInput struct {
	Verb  string
	Limit int
	Actor types.ActorRef
	Scope types.ScopeFilter
}

type activityReader interface {
	ListByVerb(ctx context.Context, verb string, limit int) ([]types.ActivityRecord, error)
}

// ActivityFeedQuery renders the provisioning audit trail for operators, most
// usefully filtered to compensation failures that need manual reconciliation.
type ActivityFeedQuery struct {
	reader activityReader
	guard  scope.Guard
}

// NewActivityFeedQuery constructs the feed helper.
func NewActivityFeedQuery(reader activityReader, guard scope.Guard) *ActivityFeedQuery {
	return &ActivityFeedQuery{
		reader: reader,
		guard:  safeScopeGuard(guard),
	}
}

var _ gocommand.Querier[ActivityFeedInput, []types.ActivityRecord] = (*ActivityFeedQuery)(nil)

// Query fetches matching audit records, newest first.
func (q *ActivityFeedQuery) Query(ctx context.Context, input ActivityFeedInput) ([]types.ActivityRecord, error) {
	if q.reader == nil {
		return nil, types.ErrServiceNotReady
	}
	if _, err := q.guard.Enforce(ctx, input.Actor, input.Scope, types.PolicyActionActivityRead, uuid.Nil); err != nil {
		return nil, err
	}
	return q.reader.ListByVerb(ctx, input.Verb, input.Limit)
}
