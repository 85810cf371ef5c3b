package links

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Record models the authorization_links row. The identity id is the primary
// key; one identity holds at most one link.
type Record struct {
	bun.BaseModel `bun:"table:authorization_links"`

	IdentityID   uuid.UUID `bun:"identity_id,pk,type:uuid"`
	Role         string    `bun:"role,notnull"`
	Organization string    `bun:"organization"`
	OrgID        uuid.UUID `bun:"org_id,type:uuid"`
	Active       bool      `bun:"active,notnull"`
	Approval     string    `bun:"approval,notnull"`
	CreatedAt    time.Time `bun:"created_at,notnull"`
	UpdatedAt    time.Time `bun:"updated_at,notnull"`
}
