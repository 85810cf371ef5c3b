package identities

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Record models the identities row for the bundled credential store. Email is
// unique; the bearer token is an opaque credential exchanged by the resolver.
type Record struct {
	bun.BaseModel `bun:"table:identities"`

	ID          uuid.UUID      `bun:",pk,type:uuid"`
	Email       string         `bun:"email,notnull"`
	SecretHash  string         `bun:"secret_hash,notnull"`
	Confirmed   bool           `bun:"confirmed,notnull"`
	BearerToken string         `bun:"bearer_token"`
	Metadata    map[string]any `bun:"metadata,type:jsonb"`
	CreatedAt   time.Time      `bun:"created_at,notnull"`
	UpdatedAt   time.Time      `bun:"updated_at,notnull"`
}
