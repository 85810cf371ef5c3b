package command

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/goliatone/go-enroll/pkg/types"
	"github.com/goliatone/go-enroll/scope"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func newProvisionFixture() (*fakeCredentialStore, *fakeStudentRepo, *fakeLinkRepo, *fakeLedger) {
	return newFakeCredentialStore(), newFakeStudentRepo(), newFakeLinkRepo(), newFakeLedger()
}

func provisionConfig(store *fakeCredentialStore, students *fakeStudentRepo, links *fakeLinkRepo, ledger *fakeLedger) BulkProvisionCommandConfig {
	return BulkProvisionCommandConfig{
		CredentialStore: store,
		Students:        students,
		Emails:          students,
		Links:           links,
		Ledger:          ledger,
		Secrets:         staticSecretGenerator{secret: "Temp#Secret42"},
	}
}

func seedJob(t *testing.T, ledger *fakeLedger, orgID uuid.UUID) uuid.UUID {
	t.Helper()
	jobID := uuid.New()
	_, err := ledger.CreateJob(context.Background(), types.BulkJob{
		JobID:  jobID,
		OrgID:  orgID,
		Status: types.JobStatusPending,
	})
	require.NoError(t, err)
	return jobID
}

func TestBulkProvisionCommand_ProvisionsAllRows(t *testing.T) {
	store, students, links, ledger := newProvisionFixture()
	orgID := uuid.New()
	jobID := seedJob(t, ledger, orgID)
	fixedTime := time.Date(2025, 9, 1, 10, 0, 0, 0, time.UTC)
	sink := &recordingActivitySink{}

	cfg := provisionConfig(store, students, links, ledger)
	cfg.Clock = fixedClock{t: fixedTime}
	cfg.Activity = sink
	cmd := NewBulkProvisionCommand(cfg)

	result := &types.BulkResult{}
	err := cmd.Execute(context.Background(), BulkProvisionInput{
		Rows: []types.RowRecord{
			{Name: "Ada Lovelace", Email: "ada@example.com", StudentID: "S-001", Batch: "2025", Program: "CS"},
			{Name: "Alan Turing", Email: "Alan@Example.com", StudentID: "S-002", Batch: "2025", Program: "CS"},
		},
		JobID:        jobID,
		Actor:        types.ActorRef{ID: uuid.New(), Type: "university"},
		Scope:        types.ScopeFilter{OrgID: orgID},
		Organization: "Analytical University",
		Result:       result,
	})

	require.NoError(t, err)
	require.Equal(t, 2, result.Total)
	require.Len(t, result.Successful, 2)
	require.Empty(t, result.Failed)

	require.Equal(t, "ada@example.com", result.Successful[0].Record.Email)
	require.Equal(t, "alan@example.com", result.Successful[1].Record.Email, "emails are normalized before storage")
	require.Equal(t, "Temp#Secret42", result.Successful[0].Credentials.TemporarySecret)
	require.Equal(t, fixedTime, result.Successful[0].Credentials.GeneratedAt)

	for _, row := range result.Successful {
		link, linkErr := links.GetLink(context.Background(), row.Record.IdentityID)
		require.NoError(t, linkErr)
		require.NotNil(t, link)
		require.Equal(t, types.RoleStudent, link.Role)
		require.True(t, link.Active)
		require.Equal(t, types.ApprovalApproved, link.Approval)
		require.Equal(t, orgID, link.OrgID)
	}

	require.Equal(t, []uuid.UUID{jobID}, ledger.processing)
	require.Equal(t, 1, ledger.completeCount, "terminal write happens exactly once")
	require.Equal(t, 2, ledger.lastSucceeded)
	require.Equal(t, 0, ledger.lastFailed)
	require.Equal(t, fixedTime, ledger.completedAt)

	require.Len(t, sink.records, 1)
	require.Equal(t, "provision.bulk.completed", sink.records[0].Verb)
	require.Equal(t, 2, sink.records[0].Data["succeeded"])
}

func TestBulkProvisionCommand_DuplicateFromStoreSnapshot(t *testing.T) {
	store, students, links, ledger := newProvisionFixture()
	students.seeded = []string{"ada@example.com"}
	orgID := uuid.New()
	jobID := seedJob(t, ledger, orgID)

	cmd := NewBulkProvisionCommand(provisionConfig(store, students, links, ledger))

	result := &types.BulkResult{}
	err := cmd.Execute(context.Background(), BulkProvisionInput{
		Rows: []types.RowRecord{
			{Name: "Ada Lovelace", Email: "ADA@example.com"},
			{Name: "Alan Turing", Email: "alan@example.com"},
		},
		JobID:  jobID,
		Actor:  types.ActorRef{ID: uuid.New()},
		Scope:  types.ScopeFilter{OrgID: orgID},
		Result: result,
	})

	require.NoError(t, err, "row failures never fail the batch")
	require.Len(t, result.Successful, 1)
	require.Len(t, result.Failed, 1)
	require.Equal(t, ReasonAlreadyExists, result.Failed[0].Reason)
	require.Equal(t, "ADA@example.com", result.Failed[0].Input.Email, "failure carries the original input")
	require.NotContains(t, store.byEmail, "ada@example.com", "no identity is created for a duplicate")
	require.Equal(t, 1, ledger.lastSucceeded)
	require.Equal(t, 1, ledger.lastFailed)
	require.Len(t, ledger.lastErrors, 1)
}

func TestBulkProvisionCommand_DuplicateWithinBatch(t *testing.T) {
	store, students, links, ledger := newProvisionFixture()
	orgID := uuid.New()
	jobID := seedJob(t, ledger, orgID)

	cmd := NewBulkProvisionCommand(provisionConfig(store, students, links, ledger))

	result := &types.BulkResult{}
	err := cmd.Execute(context.Background(), BulkProvisionInput{
		Rows: []types.RowRecord{
			{Name: "Ada Lovelace", Email: "ada@example.com"},
			{Name: "Ada L.", Email: " ada@example.com "},
		},
		JobID:  jobID,
		Actor:  types.ActorRef{ID: uuid.New()},
		Scope:  types.ScopeFilter{OrgID: orgID},
		Result: result,
	})

	require.NoError(t, err)
	require.Len(t, result.Successful, 1)
	require.Len(t, result.Failed, 1)
	require.Equal(t, ReasonAlreadyExists, result.Failed[0].Reason)
	require.Len(t, store.identities, 1)
}

func TestBulkProvisionCommand_InvalidRowsAreRecorded(t *testing.T) {
	store, students, links, ledger := newProvisionFixture()
	orgID := uuid.New()
	jobID := seedJob(t, ledger, orgID)

	cmd := NewBulkProvisionCommand(provisionConfig(store, students, links, ledger))

	result := &types.BulkResult{}
	err := cmd.Execute(context.Background(), BulkProvisionInput{
		Rows: []types.RowRecord{
			{Name: "", Email: "noname@example.com"},
			{Name: "No Email", Email: ""},
			{Name: "Bad Email", Email: "not-an-address"},
			{Name: "Grace Hopper", Email: "grace@example.com"},
		},
		JobID:  jobID,
		Actor:  types.ActorRef{ID: uuid.New()},
		Scope:  types.ScopeFilter{OrgID: orgID},
		Result: result,
	})

	require.NoError(t, err)
	require.Len(t, result.Successful, 1)
	require.Len(t, result.Failed, 3)
	require.Equal(t, "name required", result.Failed[0].Reason)
	require.Equal(t, "email required", result.Failed[1].Reason)
	require.Equal(t, "invalid email", result.Failed[2].Reason)
}

func TestBulkProvisionCommand_CompensatesStudentFailure(t *testing.T) {
	store, students, links, ledger := newProvisionFixture()
	students.createErrs["ada@example.com"] = errors.New("insert failed")
	orgID := uuid.New()
	jobID := seedJob(t, ledger, orgID)

	cmd := NewBulkProvisionCommand(provisionConfig(store, students, links, ledger))

	result := &types.BulkResult{}
	err := cmd.Execute(context.Background(), BulkProvisionInput{
		Rows:   []types.RowRecord{{Name: "Ada Lovelace", Email: "ada@example.com"}},
		JobID:  jobID,
		Actor:  types.ActorRef{ID: uuid.New()},
		Scope:  types.ScopeFilter{OrgID: orgID},
		Result: result,
	})

	require.NoError(t, err)
	require.Empty(t, result.Successful)
	require.Len(t, result.Failed, 1)
	require.Len(t, store.deleted, 1, "orphan identity must be deleted")
	require.Empty(t, store.identities)
}

func TestBulkProvisionCommand_StoreFailureRecordsStableReason(t *testing.T) {
	store, students, links, ledger := newProvisionFixture()
	students.createErrs["ada@example.com"] = errors.New("SQLSTATE 08006: connection to server lost")
	orgID := uuid.New()
	jobID := seedJob(t, ledger, orgID)

	cmd := NewBulkProvisionCommand(provisionConfig(store, students, links, ledger))

	result := &types.BulkResult{}
	err := cmd.Execute(context.Background(), BulkProvisionInput{
		Rows:   []types.RowRecord{{Name: "Ada Lovelace", Email: "ada@example.com"}},
		JobID:  jobID,
		Actor:  types.ActorRef{ID: uuid.New()},
		Scope:  types.ScopeFilter{OrgID: orgID},
		Result: result,
	})

	require.NoError(t, err)
	require.Len(t, result.Failed, 1)
	require.Equal(t, ReasonProvisionFailed, result.Failed[0].Reason, "driver internals never reach the recorded reason")
	require.Len(t, ledger.lastErrors, 1)
	require.Equal(t, ReasonProvisionFailed, ledger.lastErrors[0].Reason)
}

func TestBulkProvisionCommand_SeedFailureRecordsEveryRow(t *testing.T) {
	store, students, links, ledger := newProvisionFixture()
	students.listErr = errors.New("email listing query failed")
	orgID := uuid.New()
	jobID := seedJob(t, ledger, orgID)

	cmd := NewBulkProvisionCommand(provisionConfig(store, students, links, ledger))

	err := cmd.Execute(context.Background(), BulkProvisionInput{
		Rows: []types.RowRecord{
			{Name: "Ada Lovelace", Email: "ada@example.com"},
			{Name: "Alan Turing", Email: "alan@example.com"},
		},
		JobID: jobID,
		Actor: types.ActorRef{ID: uuid.New()},
		Scope: types.ScopeFilter{OrgID: orgID},
	})

	require.Error(t, err)
	require.Equal(t, 1, ledger.completeCount)
	require.Equal(t, 0, ledger.lastSucceeded)
	require.Equal(t, 2, ledger.lastFailed)
	require.Len(t, ledger.lastErrors, 2, "error log entries match the failed count")
	for _, failure := range ledger.lastErrors {
		require.Equal(t, ReasonSeedUnavailable, failure.Reason)
	}
	require.Equal(t, "ada@example.com", ledger.lastErrors[0].Input.Email)
	require.Empty(t, store.identities, "no row is attempted without a duplicate index")
}

func TestBulkProvisionCommand_CompensatesLinkFailureInReverseOrder(t *testing.T) {
	store, students, links, ledger := newProvisionFixture()
	links.upsertErr = errors.New("link upsert failed")
	var ops []string
	store.ops = &ops
	students.ops = &ops
	orgID := uuid.New()
	jobID := seedJob(t, ledger, orgID)

	cmd := NewBulkProvisionCommand(provisionConfig(store, students, links, ledger))

	result := &types.BulkResult{}
	err := cmd.Execute(context.Background(), BulkProvisionInput{
		Rows:   []types.RowRecord{{Name: "Ada Lovelace", Email: "ada@example.com"}},
		JobID:  jobID,
		Actor:  types.ActorRef{ID: uuid.New()},
		Scope:  types.ScopeFilter{OrgID: orgID},
		Result: result,
	})

	require.NoError(t, err)
	require.Len(t, result.Failed, 1)
	require.Equal(t, []string{"delete_student", "delete_identity"}, ops, "compensation runs newest step first")
	require.Empty(t, store.identities)
	require.Empty(t, students.records)
}

func TestBulkProvisionCommand_CompensationFailureIsAudited(t *testing.T) {
	store, students, links, ledger := newProvisionFixture()
	links.upsertErr = errors.New("link upsert failed")
	store.deleteErr = errors.New("identity delete failed")
	sink := &recordingActivitySink{}
	orgID := uuid.New()
	jobID := seedJob(t, ledger, orgID)

	cfg := provisionConfig(store, students, links, ledger)
	cfg.Activity = sink
	cmd := NewBulkProvisionCommand(cfg)

	result := &types.BulkResult{}
	err := cmd.Execute(context.Background(), BulkProvisionInput{
		Rows:   []types.RowRecord{{Name: "Ada Lovelace", Email: "ada@example.com"}},
		JobID:  jobID,
		Actor:  types.ActorRef{ID: uuid.New()},
		Scope:  types.ScopeFilter{OrgID: orgID},
		Result: result,
	})

	require.NoError(t, err)
	require.Len(t, result.Failed, 1)

	verbs := make([]string, 0, len(sink.records))
	for _, record := range sink.records {
		verbs = append(verbs, record.Verb)
	}
	require.Contains(t, verbs, "provision.compensation_failed")
}

func TestBulkProvisionCommand_OrgMismatchFailsWholeBatch(t *testing.T) {
	store, students, links, ledger := newProvisionFixture()
	requestedOrg := uuid.New()
	actorOrg := uuid.New()
	jobID := seedJob(t, ledger, requestedOrg)

	resolver := types.ScopeResolverFunc(func(_ context.Context, _ types.ActorRef, requested types.ScopeFilter) (types.ScopeFilter, error) {
		requested.OrgID = actorOrg
		return requested, nil
	})

	cfg := provisionConfig(store, students, links, ledger)
	cfg.ScopeGuard = scope.NewGuard(resolver, nil)
	cmd := NewBulkProvisionCommand(cfg)

	err := cmd.Execute(context.Background(), BulkProvisionInput{
		Rows:  []types.RowRecord{{Name: "Ada Lovelace", Email: "ada@example.com"}},
		JobID: jobID,
		Actor: types.ActorRef{ID: uuid.New()},
		Scope: types.ScopeFilter{OrgID: requestedOrg},
	})

	require.ErrorIs(t, err, types.ErrOrgMismatch)
	require.Empty(t, ledger.processing, "job never starts on an authorization failure")
	require.Empty(t, store.identities)
}

func TestBulkProvisionCommand_FeatureGateDisabled(t *testing.T) {
	store, students, links, ledger := newProvisionFixture()
	gate := &stubFeatureGate{enabled: false}
	orgID := uuid.New()
	jobID := seedJob(t, ledger, orgID)

	cfg := provisionConfig(store, students, links, ledger)
	cfg.FeatureGate = gate
	cmd := NewBulkProvisionCommand(cfg)

	err := cmd.Execute(context.Background(), BulkProvisionInput{
		Rows:  []types.RowRecord{{Name: "Ada Lovelace", Email: "ada@example.com"}},
		JobID: jobID,
		Actor: types.ActorRef{ID: uuid.New()},
		Scope: types.ScopeFilter{OrgID: orgID},
	})

	require.ErrorIs(t, err, ErrProvisionDisabled)
	require.Equal(t, []string{featureProvisionBulk}, gate.keys)
	require.Empty(t, ledger.processing)
}

func TestBulkProvisionInput_Validate(t *testing.T) {
	orgID := uuid.New()
	actor := types.ActorRef{ID: uuid.New()}
	rows := []types.RowRecord{{Name: "Ada", Email: "ada@example.com"}}

	cases := []struct {
		name  string
		input BulkProvisionInput
		want  error
	}{
		{
			name:  "missing rows",
			input: BulkProvisionInput{JobID: uuid.New(), Actor: actor, Scope: types.ScopeFilter{OrgID: orgID}},
			want:  ErrRowsRequired,
		},
		{
			name:  "missing job id",
			input: BulkProvisionInput{Rows: rows, Actor: actor, Scope: types.ScopeFilter{OrgID: orgID}},
			want:  ErrJobIDRequired,
		},
		{
			name:  "missing actor",
			input: BulkProvisionInput{Rows: rows, JobID: uuid.New(), Scope: types.ScopeFilter{OrgID: orgID}},
			want:  ErrActorRequired,
		},
		{
			name:  "missing org",
			input: BulkProvisionInput{Rows: rows, JobID: uuid.New(), Actor: actor},
			want:  ErrOrgRequired,
		},
		{
			name:  "unknown role",
			input: BulkProvisionInput{Rows: rows, JobID: uuid.New(), Actor: actor, Scope: types.ScopeFilter{OrgID: orgID}, Role: types.Role("wizard")},
			want:  ErrUnknownRole,
		},
		{
			name:  "valid",
			input: BulkProvisionInput{Rows: rows, JobID: uuid.New(), Actor: actor, Scope: types.ScopeFilter{OrgID: orgID}},
			want:  nil,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.input.Validate()
			if tc.want == nil {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, tc.want)
		})
	}
}
