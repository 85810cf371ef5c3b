package query

import (
	"context"

	gocommand "github.com/goliatone/go-command"
	"github.com/goliatone/go-enroll/pkg/types"
	"github.com/goliatone/go-enroll/scope"
	"github.com/google/uuid"
)

func safeScopeGuard(g scope.Guard) scope.Guard {
	return scope.Ensure(g)
}

// JobStatusInput identifies the bulk job to inspect.
type JobStatusInput struct {
	JobID uuid.UUID
	Actor types.ActorRef
	Scope types.ScopeFilter
}

// JobStatusQuery reads bulk job lifecycle state and per-row errors from the
// ledger. Operators use it to inspect finished runs and to detect jobs stuck
// in processing after an interrupted batch.
type JobStatusQuery struct {
	ledger types.JobLedger
	guard  scope.Guard
}

// NewJobStatusQuery constructs the job status helper.
func NewJobStatusQuery(ledger types.JobLedger, guard scope.Guard) *JobStatusQuery {
	return &JobStatusQuery{
		ledger: ledger,
		guard:  safeScopeGuard(guard),
	}
}

var _ gocommand.Querier[JobStatusInput, *types.BulkJob] = (*JobStatusQuery)(nil)

// Query fetches the job by its caller-supplied identifier.
func (q *JobStatusQuery) Query(ctx context.Context, input JobStatusInput) (*types.BulkJob, error) {
	if q.ledger == nil {
		return nil, types.ErrMissingJobLedger
	}
	if input.JobID == uuid.Nil {
		return nil, types.ErrJobIDRequired
	}
	if _, err := q.guard.Enforce(ctx, input.Actor, input.Scope, types.PolicyActionJobsRead, uuid.Nil); err != nil {
		return nil, err
	}
	return q.ledger.GetJob(ctx, input.JobID)
}
