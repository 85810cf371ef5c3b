package ledger

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
	repo := newTestRepo(t)

	jobID := uuid.New()
	created, err := repo.CreateJob(ctx, types.BulkJob{
		JobID: jobID,
		OrgID: uuid.New(),
	})
	require.NoError(t, err)
	require.Equal(t, types.JobStatusPending, created.Status)

	fetched, err := repo.GetJob(ctx, jobID)
	require.NoError(t, err)
	require.NotNil(t, fetched)
	require.Equal(t, jobID, fetched.JobID)
	require.Equal(t, types.JobStatusPending, fetched.Status)
}

func TestRepository_GetUnknownJobReturnsNil(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	job, err := repo.GetJob(ctx, uuid.New())
	require.NoError(t, err)
	require.Nil(t, job)
}

func TestRepository_Lifecycle(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	jobID := uuid.New()
	_, err := repo.CreateJob(ctx, types.BulkJob{JobID: jobID})
	require.NoError(t, err)

	require.NoError(t, repo.MarkProcessing(ctx, jobID))

	job, err := repo.GetJob(ctx, jobID)
	require.NoError(t, err)
	require.Equal(t, types.JobStatusProcessing, job.Status)

	completedAt := time.Date(2025, 9, 1, 11, 0, 0, 0, time.UTC)
	failures := []types.RowFailure{
		{Input: types.RowRecord{Name: "Dup", Email: "dup@example.com"}, Reason: "already exists"},
	}
	require.NoError(t, repo.CompleteJob(ctx, jobID, 9, 1, failures, completedAt))

	job, err = repo.GetJob(ctx, jobID)
	require.NoError(t, err)
	require.Equal(t, types.JobStatusCompleted, job.Status)
	require.Equal(t, 9, job.Succeeded)
	require.Equal(t, 1, job.Failed)
	require.Len(t, job.Errors, 1)
	require.Equal(t, "dup@example.com", job.Errors[0].Input.Email)
	require.Equal(t, "already exists", job.Errors[0].Reason)
}

func TestRepository_CompleteJobIsExactlyOnce(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	jobID := uuid.New()
	_, err := repo.CreateJob(ctx, types.BulkJob{JobID: jobID})
	require.NoError(t, err)
	require.NoError(t, repo.MarkProcessing(ctx, jobID))

	completedAt := time.Now().UTC()
	require.NoError(t, repo.CompleteJob(ctx, jobID, 5, 0, nil, completedAt))

	err = repo.CompleteJob(ctx, jobID, 99, 99, nil, completedAt)
	require.Error(t, err, "a completed job cannot be rewritten")

	job, err := repo.GetJob(ctx, jobID)
	require.NoError(t, err)
	require.Equal(t, 5, job.Succeeded)
}

func TestRepository_MarkProcessingRequiresPending(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	jobID := uuid.New()
	_, err := repo.CreateJob(ctx, types.BulkJob{JobID: jobID})
	require.NoError(t, err)
	require.NoError(t, repo.MarkProcessing(ctx, jobID))

	require.Error(t, repo.MarkProcessing(ctx, jobID), "a processing job cannot be restarted")
}

func newTestRepo(t *testing.T) *Repository {
	db := newTestDB(t)
	applyDDL(t, db)
	repo, err := NewRepository(RepositoryConfig{DB: db})
	require.NoError(t, err)
	return repo
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
	content, err := os.ReadFile("../data/sql/migrations/sqlite/00004_bulk_jobs.up.sql")
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
