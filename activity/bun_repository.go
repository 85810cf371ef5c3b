package activity

import (
	"context"
	"errors"

	"github.com/goliatone/go-enroll/pkg/types"
	"github.com/goliatone/go-masker"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// RepositoryConfig wires the Bun-backed activity sink.
type RepositoryConfig struct {
	DB         *bun.DB
	Repository repository.Repository[*LogEntry]
	Clock      types.Clock
	IDGen      types.IDGenerator
	Masker     *masker.Masker
}

// Repository persists audit activity. It implements types.ActivitySink and
// sanitizes payloads before they hit storage.
type Repository struct {
	store repository.Repository[*LogEntry]
	clock types.Clock
	idGen types.IDGenerator
	mask  *masker.Masker
}

// NewRepository constructs the default activity sink.
func NewRepository(cfg RepositoryConfig) (*Repository, error) {
	if cfg.Repository == nil && cfg.DB == nil {
		return nil, errors.New("activity: db or repository required")
	}
	repo := cfg.Repository
	if repo == nil {
		repo = repository.NewRepository(cfg.DB, repository.ModelHandlers[*LogEntry]{
			NewRecord: func() *LogEntry { return &LogEntry{} },
			GetID: func(entry *LogEntry) uuid.UUID {
				if entry == nil {
					return uuid.Nil
				}
				return entry.ID
			},
			SetID: func(entry *LogEntry, id uuid.UUID) {
				if entry != nil {
					entry.ID = id
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
	mask := cfg.Masker
	if mask == nil {
		mask = DefaultMasker()
	}
	return &Repository{store: repo, clock: clock, idGen: idGen, mask: mask}, nil
}

var _ types.ActivitySink = (*Repository)(nil)

// Log persists a sanitized activity record.
func (r *Repository) Log(ctx context.Context, record types.ActivityRecord) error {
	record = SanitizeRecord(r.mask, record)
	entry := toLogEntry(record)
	if entry.ID == uuid.Nil {
		entry.ID = r.idGen.UUID()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = r.clock.Now()
	}
	_, err := r.store.Create(ctx, entry)
	return err
}

// ListByVerb returns stored entries matching the verb, newest first. Used by
// operators chasing compensation failures.
func (r *Repository) ListByVerb(ctx context.Context, verb string, limit int) ([]types.ActivityRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, _, err := r.store.List(ctx, func(q *bun.SelectQuery) *bun.SelectQuery {
		if verb != "" {
			q = q.Where("verb = ?", verb)
		}
		return q.OrderExpr("created_at DESC").Limit(limit)
	})
	if err != nil {
		return nil, err
	}
	records := make([]types.ActivityRecord, 0, len(rows))
	for _, row := range rows {
		records = append(records, toActivityRecord(row))
	}
	return records, nil
}

func toLogEntry(record types.ActivityRecord) *LogEntry {
	return &LogEntry{
		ID:         record.ID,
		IdentityID: record.IdentityID,
		ActorID:    record.ActorID,
		TenantID:   record.TenantID,
		OrgID:      record.OrgID,
		Verb:       record.Verb,
		ObjectType: record.ObjectType,
		ObjectID:   record.ObjectID,
		Channel:    record.Channel,
		Data:       record.Data,
		CreatedAt:  record.OccurredAt,
	}
}

func toActivityRecord(entry *LogEntry) types.ActivityRecord {
	if entry == nil {
		return types.ActivityRecord{}
	}
	return types.ActivityRecord{
		ID:         entry.ID,
		IdentityID: entry.IdentityID,
		ActorID:    entry.ActorID,
		TenantID:   entry.TenantID,
		OrgID:      entry.OrgID,
		Verb:       entry.Verb,
		ObjectType: entry.ObjectType,
		ObjectID:   entry.ObjectID,
		Channel:    entry.Channel,
		Data:       entry.Data,
		OccurredAt: entry.CreatedAt,
	}
}
