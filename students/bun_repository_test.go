package students

import (
	"context"
	"database/sql"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/goliatone/go-enroll/pkg/types"
	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
)

func TestRepository_CreateAndGet(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	applyDDL(t, db)

	repo, err := NewRepository(RepositoryConfig{DB: db})
	require.NoError(t, err)

	orgID := uuid.New()
	generatedAt := time.Date(2025, 9, 1, 10, 0, 0, 0, time.UTC)
	created, err := repo.CreateStudent(ctx, types.StudentRecord{
		OrgID:      orgID,
		IdentityID: uuid.New(),
		Name:       "Ada Lovelace",
		Email:      "ADA@Example.com",
		StudentID:  "S-001",
		Batch:      "2025",
		Program:    "CS",
		Credentials: types.Credentials{
			TemporarySecret: "Temp#Secret42",
			GeneratedAt:     generatedAt,
		},
	})
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, created.ID)
	require.Equal(t, "ada@example.com", created.Email, "emails are normalized at the storage boundary")

	fetched, err := repo.GetStudentByEmail(ctx, " Ada@example.COM ", types.ScopeFilter{OrgID: orgID})
	require.NoError(t, err)
	require.NotNil(t, fetched)
	require.Equal(t, "Ada Lovelace", fetched.Name)
	require.Equal(t, "Temp#Secret42", fetched.Credentials.TemporarySecret)
	require.True(t, fetched.Credentials.GeneratedAt.Equal(generatedAt))
}

func TestRepository_DuplicateEmailSameOrg(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	applyDDL(t, db)

	repo, err := NewRepository(RepositoryConfig{DB: db})
	require.NoError(t, err)

	orgID := uuid.New()
	_, err = repo.CreateStudent(ctx, types.StudentRecord{
		OrgID: orgID,
		Name:  "Ada",
		Email: "ada@example.com",
	})
	require.NoError(t, err)

	_, err = repo.CreateStudent(ctx, types.StudentRecord{
		OrgID: orgID,
		Name:  "Ada Again",
		Email: "ada@example.com",
	})
	require.ErrorIs(t, err, types.ErrEmailTaken)

	// Same email under another org is a separate namespace.
	_, err = repo.CreateStudent(ctx, types.StudentRecord{
		OrgID: uuid.New(),
		Name:  "Ada Elsewhere",
		Email: "ada@example.com",
	})
	require.NoError(t, err)
}

func TestRepository_Delete(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	applyDDL(t, db)

	repo, err := NewRepository(RepositoryConfig{DB: db})
	require.NoError(t, err)

	orgID := uuid.New()
	created, err := repo.CreateStudent(ctx, types.StudentRecord{
		OrgID: orgID,
		Name:  "Ada",
		Email: "ada@example.com",
	})
	require.NoError(t, err)

	require.NoError(t, repo.DeleteStudent(ctx, created.ID))

	fetched, err := repo.GetStudentByEmail(ctx, "ada@example.com", types.ScopeFilter{OrgID: orgID})
	require.NoError(t, err)
	require.Nil(t, fetched)
}

func TestRepository_ListEmailsScoped(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	applyDDL(t, db)

	repo, err := NewRepository(RepositoryConfig{DB: db})
	require.NoError(t, err)

	orgA := uuid.New()
	orgB := uuid.New()
	for _, seed := range []struct {
		org   uuid.UUID
		email string
	}{
		{orgA, "ada@example.com"},
		{orgA, "alan@example.com"},
		{orgB, "grace@example.com"},
	} {
		_, err := repo.CreateStudent(ctx, types.StudentRecord{
			OrgID: seed.org,
			Name:  "n",
			Email: seed.email,
		})
		require.NoError(t, err)
	}

	emails, err := repo.ListEmails(ctx, types.ScopeFilter{OrgID: orgA})
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"ada@example.com", "alan@example.com"}, emails)
}

func newTestDB(t *testing.T) *bun.DB {
	sqldb, err := sql.Open("sqlite3", ":memory:?cache=shared")
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)
	db := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() {
		_ = db.Close()
		_ = sqldb.Close()
	})
	return db
}

func applyDDL(t *testing.T, db *bun.DB) {
	content, err := os.ReadFile("../data/sql/migrations/sqlite/00002_student_records.up.sql")
	require.NoError(t, err)
	for _, stmt := range splitStatements(string(content)) {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		_, err := db.Exec(stmt)
		require.NoError(t, err)
	}
}

func splitStatements(sql string) []string {
	lines := strings.Split(sql, "\n")
	var builder strings.Builder
	var statements []string
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "--") {
			continue
		}
		builder.WriteString(line)
		if strings.HasSuffix(line, ";") {
			statements = append(statements, strings.TrimSuffix(builder.String(), ";"))
			builder.Reset()
		} else {
			builder.WriteString(" ")
		}
	}
	if builder.Len() > 0 {
		statements = append(statements, builder.String())
	}
	return statements
}
