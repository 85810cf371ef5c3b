package dupindex

import (
	"context"
	"strings"

	"github.com/goliatone/go-enroll/pkg/types"
)

// Index is a point-in-time snapshot of emails already known to the relational
// store, used to short-circuit duplicate writes within one batch run. It is
// insert-only, lives only for the duration of a saga run, and is mutated by
// the single task executing that run. The backing store's own uniqueness
// constraint remains the final arbiter for races the snapshot missed.
type Index struct {
	emails map[string]struct{}
}

// New returns an empty index.
func New() *Index {
	return &Index{emails: make(map[string]struct{})}
}

// Seed snapshots the emails currently present in the source for the scope.
// Called once at saga start.
func Seed(ctx context.Context, source types.EmailSource, scope types.ScopeFilter) (*Index, error) {
	idx := New()
	if source == nil {
		return idx, nil
	}
	emails, err := source.ListEmails(ctx, scope)
	if err != nil {
		return nil, err
	}
	for _, email := range emails {
		idx.Add(email)
	}
	return idx, nil
}

// Normalize canonicalizes an email for comparison: trimmed and lower-cased.
func Normalize(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Has reports whether the normalized email is already present.
func (i *Index) Has(email string) bool {
	if i == nil {
		return false
	}
	_, ok := i.emails[Normalize(email)]
	return ok
}

// Add records the normalized email so later rows in the same batch cannot
// collide with it.
func (i *Index) Add(email string) {
	if i == nil {
		return
	}
	normalized := Normalize(email)
	if normalized == "" {
		return
	}
	i.emails[normalized] = struct{}{}
}

// Len returns the number of distinct emails tracked.
func (i *Index) Len() int {
	if i == nil {
		return 0
	}
	return len(i.emails)
}
