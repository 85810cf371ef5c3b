package students

import (
	"context"
	"errors"
	"time"

	"github.com/goliatone/go-enroll/dupindex"
	"github.com/goliatone/go-enroll/pkg/types"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// RepositoryConfig wires the Bun-backed student repository.
type RepositoryConfig struct {
	DB         *bun.DB
	Repository repository.Repository[*Record]
	Clock      types.Clock
	IDGen      types.IDGenerator
}

// Repository implements types.StudentRepository and types.EmailSource using Bun.
type Repository struct {
	store repository.Repository[*Record]
	clock types.Clock
	idGen types.IDGenerator
	db    *bun.DB
}

// NewRepository constructs the default student repository.
func NewRepository(cfg RepositoryConfig) (*Repository, error) {
	if cfg.Repository == nil && cfg.DB == nil {
		return nil, errors.New("students: db or repository required")
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

var (
	_ types.StudentRepository = (*Repository)(nil)
	_ types.EmailSource       = (*Repository)(nil)
)

// CreateStudent persists a student record. Duplicate (org, email) pairs are
// reported as types.ErrEmailTaken so the saga can classify the conflict.
func (r *Repository) CreateStudent(ctx context.Context, record types.StudentRecord) (*types.StudentRecord, error) {
	if record.Email == "" {
		return nil, errors.New("students: email required")
	}
	rec := fromDomain(record)
	if rec.ID == uuid.Nil {
		rec.ID = r.idGen.UUID()
	}
	now := r.clock.Now()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now
	rec.Email = dupindex.Normalize(rec.Email)

	created, err := r.store.Create(ctx, rec)
	if err != nil {
		if repository.IsDuplicatedKey(err) {
			return nil, types.ErrEmailTaken
		}
		return nil, err
	}
	return toDomain(created), nil
}

// DeleteStudent removes the record. Used by saga compensation.
func (r *Repository) DeleteStudent(ctx context.Context, id uuid.UUID) error {
	if id == uuid.Nil {
		return errors.New("students: record id required")
	}
	return r.store.DeleteWhere(ctx, func(q *bun.DeleteQuery) *bun.DeleteQuery {
		return q.Where("id = ?", id)
	})
}

// GetStudentByEmail returns the record stored under the normalized email.
func (r *Repository) GetStudentByEmail(ctx context.Context, email string, scope types.ScopeFilter) (*types.StudentRecord, error) {
	rec, err := r.store.Get(ctx, func(q *bun.SelectQuery) *bun.SelectQuery {
		q = q.Where("email = ?", dupindex.Normalize(email))
		if scope.OrgID != uuid.Nil {
			q = q.Where("org_id = ?", scope.OrgID)
		}
		return q
	})
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return toDomain(rec), nil
}

// ListEmails snapshots every email stored for the scope. Feeds the duplicate
// index at saga start.
func (r *Repository) ListEmails(ctx context.Context, scope types.ScopeFilter) ([]string, error) {
	rows, _, err := r.store.List(ctx, func(q *bun.SelectQuery) *bun.SelectQuery {
		q = q.Column("email")
		if scope.OrgID != uuid.Nil {
			q = q.Where("org_id = ?", scope.OrgID)
		}
		return q
	})
	if err != nil {
		return nil, err
	}
	emails := make([]string, 0, len(rows))
	for _, row := range rows {
		emails = append(emails, row.Email)
	}
	return emails, nil
}

func fromDomain(record types.StudentRecord) *Record {
	rec := &Record{
		ID:         record.ID,
		OrgID:      record.OrgID,
		IdentityID: record.IdentityID,
		Name:       record.Name,
		Email:      record.Email,
		StudentID:  record.StudentID,
		Batch:      record.Batch,
		Program:    record.Program,
		Semester:   record.Semester,
		CreatedAt:  record.CreatedAt,
		UpdatedAt:  record.UpdatedAt,
	}
	if record.Credentials.TemporarySecret != "" {
		rec.Credentials = map[string]any{
			"temporary_secret": record.Credentials.TemporarySecret,
			"generated_at":     record.Credentials.GeneratedAt.UTC().Format(time.RFC3339Nano),
		}
	}
	return rec
}

func toDomain(rec *Record) *types.StudentRecord {
	if rec == nil {
		return nil
	}
	out := &types.StudentRecord{
		ID:         rec.ID,
		OrgID:      rec.OrgID,
		IdentityID: rec.IdentityID,
		Name:       rec.Name,
		Email:      rec.Email,
		StudentID:  rec.StudentID,
		Batch:      rec.Batch,
		Program:    rec.Program,
		Semester:   rec.Semester,
		CreatedAt:  rec.CreatedAt,
		UpdatedAt:  rec.UpdatedAt,
	}
	if secret, ok := rec.Credentials["temporary_secret"].(string); ok {
		out.Credentials.TemporarySecret = secret
	}
	if raw, ok := rec.Credentials["generated_at"].(string); ok {
		if ts, err := time.Parse(time.RFC3339Nano, raw); err == nil {
			out.Credentials.GeneratedAt = ts
		}
	}
	return out
}
