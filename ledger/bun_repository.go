package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/goliatone/go-enroll/pkg/types"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// RepositoryConfig wires the Bun-backed job ledger.
type RepositoryConfig struct {
	DB         *bun.DB
	Repository repository.Repository[*Record]
	Clock      types.Clock
	IDGen      types.IDGenerator
}

// Repository implements types.JobLedger using Bun.
type Repository struct {
	store repository.Repository[*Record]
	clock types.Clock
	idGen types.IDGenerator
	db    *bun.DB
}

// NewRepository constructs the default job ledger.
func NewRepository(cfg RepositoryConfig) (*Repository, error) {
	if cfg.Repository == nil && cfg.DB == nil {
		return nil, errors.New("ledger: db or repository required")
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
	db := cfg.DB
	if db == nil {
		if withDB, ok := repo.(interface{ DB() *bun.DB }); ok {
			db = withDB.DB()
		}
	}
	return &Repository{store: repo, clock: clock, idGen: idGen, db: db}, nil
}

var _ types.JobLedger = (*Repository)(nil)

// CreateJob registers a pending bulk job.
func (r *Repository) CreateJob(ctx context.Context, job types.BulkJob) (*types.BulkJob, error) {
	if job.JobID == uuid.Nil {
		return nil, types.ErrJobIDRequired
	}
	rec := fromDomain(job)
	if rec.ID == uuid.Nil {
		rec.ID = r.idGen.UUID()
	}
	now := r.clock.Now()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now
	if rec.Status == "" {
		rec.Status = string(types.JobStatusPending)
	}
	created, err := r.store.Create(ctx, rec)
	if err != nil {
		return nil, err
	}
	return toDomain(created), nil
}

// GetJob returns the job stored under the caller-supplied job id.
func (r *Repository) GetJob(ctx context.Context, jobID uuid.UUID) (*types.BulkJob, error) {
	if jobID == uuid.Nil {
		return nil, types.ErrJobIDRequired
	}
	rec, err := r.store.Get(ctx, selectJobID(jobID))
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return toDomain(rec), nil
}

// MarkProcessing moves a pending job into processing.
func (r *Repository) MarkProcessing(ctx context.Context, jobID uuid.UUID) error {
	return r.transition(ctx, jobID, types.JobStatusPending, func(rec *Record) {
		rec.Status = string(types.JobStatusProcessing)
	})
}

// CompleteJob records final counts and the structured error log. The update is
// guarded on the processing status so the terminal write happens exactly once;
// a second call reports an error instead of silently rewriting history.
func (r *Repository) CompleteJob(ctx context.Context, jobID uuid.UUID, succeeded, failed int, rowErrors []types.RowFailure, completedAt time.Time) error {
	return r.transition(ctx, jobID, types.JobStatusProcessing, func(rec *Record) {
		rec.Status = string(types.JobStatusCompleted)
		rec.Succeeded = succeeded
		rec.Failed = failed
		rec.Errors = failuresToJSON(rowErrors)
		done := completedAt
		rec.CompletedAt = &done
	})
}

func (r *Repository) transition(ctx context.Context, jobID uuid.UUID, from types.JobStatus, mutate func(*Record)) error {
	if r == nil || r.db == nil {
		return errors.New("ledger: db required for updates")
	}
	if jobID == uuid.Nil {
		return types.ErrJobIDRequired
	}
	rec := &Record{UpdatedAt: r.clock.Now()}
	mutate(rec)
	q := r.db.NewUpdate().Model(rec).
		Column("status", "succeeded", "failed", "errors", "completed_at", "updated_at").
		Where("job_id = ?", jobID).
		Where("status = ?", string(from))
	res, err := q.Exec(ctx)
	if err != nil {
		return repository.MapDatabaseError(err, repository.DetectDriver(r.db))
	}
	return repository.SQLExpectedCount(res, 1)
}

func selectJobID(jobID uuid.UUID) repository.SelectCriteria {
	return repository.SelectBy("job_id", "=", jobID.String())
}

func failuresToJSON(failures []types.RowFailure) []map[string]any {
	if len(failures) == 0 {
		return nil
	}
	out := make([]map[string]any, 0, len(failures))
	for _, failure := range failures {
		out = append(out, map[string]any{
			"email":  failure.Input.Email,
			"name":   failure.Input.Name,
			"reason": failure.Reason,
		})
	}
	return out
}

func failuresFromJSON(rows []map[string]any) []types.RowFailure {
	if len(rows) == 0 {
		return nil
	}
	out := make([]types.RowFailure, 0, len(rows))
	for _, row := range rows {
		failure := types.RowFailure{}
		if email, ok := row["email"].(string); ok {
			failure.Input.Email = email
		}
		if name, ok := row["name"].(string); ok {
			failure.Input.Name = name
		}
		if reason, ok := row["reason"].(string); ok {
			failure.Reason = reason
		}
		out = append(out, failure)
	}
	return out
}

func fromDomain(job types.BulkJob) *Record {
	rec := &Record{
		ID:        job.ID,
		JobID:     job.JobID,
		OrgID:     job.OrgID,
		Status:    string(job.Status),
		Succeeded: job.Succeeded,
		Failed:    job.Failed,
		Errors:    failuresToJSON(job.Errors),
		CreatedAt: job.CreatedAt,
		UpdatedAt: job.UpdatedAt,
	}
	if !job.CompletedAt.IsZero() {
		done := job.CompletedAt
		rec.CompletedAt = &done
	}
	return rec
}

func toDomain(rec *Record) *types.BulkJob {
	if rec == nil {
		return nil
	}
	job := &types.BulkJob{
		ID:        rec.ID,
		JobID:     rec.JobID,
		OrgID:     rec.OrgID,
		Status:    types.JobStatus(rec.Status),
		Succeeded: rec.Succeeded,
		Failed:    rec.Failed,
		Errors:    failuresFromJSON(rec.Errors),
		CreatedAt: rec.CreatedAt,
		UpdatedAt: rec.UpdatedAt,
	}
	if rec.CompletedAt != nil {
		job.CompletedAt = *rec.CompletedAt
	}
	return job
}
