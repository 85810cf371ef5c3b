package students

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Record models the student_records row. Uniqueness on (org_id, email) is
// enforced by the store and is the final arbiter for duplicate submissions.
type Record struct {
	bun.BaseModel `bun:"table:student_records"`

	ID          uuid.UUID      `bun:",pk,type:uuid"`
	OrgID       uuid.UUID      `bun:"org_id,type:uuid,notnull"`
	IdentityID  uuid.UUID      `bun:"identity_id,type:uuid"`
	Name        string         `bun:"name,notnull"`
	Email       string         `bun:"email,notnull"`
	StudentID   string         `bun:"student_id"`
	Batch       string         `bun:"batch"`
	Program     string         `bun:"program"`
	Semester    string         `bun:"semester"`
	Credentials map[string]any `bun:"credentials,type:jsonb"`
	CreatedAt   time.Time      `bun:"created_at,notnull"`
	UpdatedAt   time.Time      `bun:"updated_at,notnull"`
}
