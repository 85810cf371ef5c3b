package ledger

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Record models the bulk_jobs row. JobID is the caller-supplied identifier and
// carries the table's uniqueness constraint.
type Record struct {
	bun.BaseModel `bun:"table:bulk_jobs"`

	ID          uuid.UUID        `bun:",pk,type:uuid"`
	JobID       uuid.UUID        `bun:"job_id,type:uuid,notnull"`
	OrgID       uuid.UUID        `bun:"org_id,type:uuid"`
	Status      string           `bun:"status,notnull"`
	Succeeded   int              `bun:"succeeded,notnull,default:0"`
	Failed      int              `bun:"failed,notnull,default:0"`
	Errors      []map[string]any `bun:"errors,type:jsonb"`
	CreatedAt   time.Time        `bun:"created_at,notnull"`
	UpdatedAt   time.Time        `bun:"updated_at,notnull"`
	CompletedAt *time.Time       `bun:"completed_at"`
}
