package command

import (
	"context"
	"errors"
	"net/mail"
	"strings"

	gocommand "github.com/goliatone/go-command"
	"github.com/goliatone/go-enroll/dupindex"
	"github.com/goliatone/go-enroll/pkg/types"
	"github.com/goliatone/go-enroll/scope"
	goerrors "github.com/goliatone/go-errors"
	featuregate "github.com/goliatone/go-featuregate/gate"
	"github.com/google/uuid"
)

// BulkProvisionInput carries one batch of rows through the provisioning saga.
// Role defaults to the student role when empty. Result, when set, receives the
// per-row outcome including generated credentials.
type BulkProvisionInput struct {
	Rows         []types.RowRecord
	JobID        uuid.UUID
	Actor        types.ActorRef
	Scope        types.ScopeFilter
	Organization string
	Role         types.Role
	Result       *types.BulkResult
}

// Type implements gocommand.Message.
func (BulkProvisionInput) Type() string {
	return "command.provision.bulk"
}

// Validate implements gocommand.Message.
func (input BulkProvisionInput) Validate() error {
	switch {
	case len(input.Rows) == 0:
		return ErrRowsRequired
	case input.JobID == uuid.Nil:
		return ErrJobIDRequired
	case input.Actor.ID == uuid.Nil:
		return ErrActorRequired
	case input.Scope.OrgID == uuid.Nil:
		return ErrOrgRequired
	case input.Role != "" && !types.ValidRole(string(input.Role)):
		return ErrUnknownRole
	default:
		return nil
	}
}

// BulkProvisionCommand runs the provisioning saga: for each row it creates a
// credential-store identity, a student record, and an authorization link, in
// that order. When a later step fails, the steps already taken for that row
// are compensated in reverse so no partial row survives. Row failures are
// collected in the result; only batch-level failures surface as errors.
type BulkProvisionCommand struct {
	credentials types.CredentialStore
	students    types.StudentRepository
	emails      types.EmailSource
	links       types.LinkRepository
	ledger      types.JobLedger
	secrets     types.SecretGenerator
	notifier    types.Notifier
	clock       types.Clock
	sink        types.ActivitySink
	hooks       types.Hooks
	logger      types.Logger
	guard       scope.Guard
	gate        featuregate.FeatureGate
}

// BulkProvisionCommandConfig wires dependencies for the saga.
type BulkProvisionCommandConfig struct {
	CredentialStore types.CredentialStore
	Students        types.StudentRepository
	Emails          types.EmailSource
	Links           types.LinkRepository
	Ledger          types.JobLedger
	Secrets         types.SecretGenerator
	Notifier        types.Notifier
	Clock           types.Clock
	Activity        types.ActivitySink
	Hooks           types.Hooks
	Logger          types.Logger
	ScopeGuard      scope.Guard
	FeatureGate     featuregate.FeatureGate
}

// NewBulkProvisionCommand constructs the saga handler.
func NewBulkProvisionCommand(cfg BulkProvisionCommandConfig) *BulkProvisionCommand {
	return &BulkProvisionCommand{
		credentials: cfg.CredentialStore,
		students:    cfg.Students,
		emails:      cfg.Emails,
		links:       cfg.Links,
		ledger:      cfg.Ledger,
		secrets:     cfg.Secrets,
		notifier:    cfg.Notifier,
		clock:       safeClock(cfg.Clock),
		sink:        safeActivitySink(cfg.Activity),
		hooks:       safeHooks(cfg.Hooks),
		logger:      safeLogger(cfg.Logger),
		guard:       safeScopeGuard(cfg.ScopeGuard),
		gate:        cfg.FeatureGate,
	}
}

var _ gocommand.Commander[BulkProvisionInput] = (*BulkProvisionCommand)(nil)

// Execute runs the saga for every row sequentially. Each input row lands in
// exactly one of Result.Successful or Result.Failed, and the job ledger
// receives exactly one terminal write.
func (c *BulkProvisionCommand) Execute(ctx context.Context, input BulkProvisionInput) error {
	if err := c.ready(); err != nil {
		return err
	}
	if err := input.Validate(); err != nil {
		return err
	}

	scopeFilter, err := c.guard.Enforce(ctx, input.Actor, input.Scope, types.PolicyActionProvisionWrite, uuid.Nil)
	if err != nil {
		return err
	}
	if scopeFilter.OrgID == uuid.Nil {
		scopeFilter.OrgID = input.Scope.OrgID
	}

	enabled, err := featureEnabled(ctx, c.gate, featureProvisionBulk, scopeFilter, input.Actor.ID)
	if err != nil {
		return err
	}
	if !enabled {
		return ErrProvisionDisabled
	}

	if err := c.ledger.MarkProcessing(ctx, input.JobID); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "go-enroll: job transition failed").
			WithCode(goerrors.CodeInternal).
			WithMetadata(map[string]any{"job_id": input.JobID.String()})
	}

	index, err := dupindex.Seed(ctx, c.emails, scopeFilter)
	if err != nil {
		// The ledger still gets structured entries so the failed count and
		// the error log agree even though no row was attempted.
		rowErrors := make([]types.RowFailure, 0, len(input.Rows))
		for _, row := range input.Rows {
			rowErrors = append(rowErrors, types.RowFailure{
				Input:  row,
				Reason: ReasonSeedUnavailable,
			})
		}
		completeErr := c.ledger.CompleteJob(ctx, input.JobID, 0, len(rowErrors), rowErrors, now(c.clock))
		if completeErr != nil {
			c.logger.Error("provision: failed to record job outcome", completeErr, "job_id", input.JobID.String())
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "go-enroll: duplicate index seed failed").
			WithCode(goerrors.CodeInternal)
	}

	role := input.Role
	if role == "" {
		role = types.RoleStudent
	}

	result := types.BulkResult{Total: len(input.Rows)}
	for idx, row := range input.Rows {
		provisioned, rowErr := c.provisionRow(ctx, input, scopeFilter, role, index, idx, row)
		if rowErr != nil {
			result.Failed = append(result.Failed, types.RowFailure{
				Input:  row,
				Reason: failureReason(rowErr),
			})
			continue
		}
		index.Add(provisioned.Record.Email)
		result.Successful = append(result.Successful, *provisioned)
	}

	completedAt := now(c.clock)
	if err := c.ledger.CompleteJob(ctx, input.JobID, len(result.Successful), len(result.Failed), result.Failed, completedAt); err != nil {
		c.logger.Error("provision: failed to record job outcome", err, "job_id", input.JobID.String())
	}

	record := types.ActivityRecord{
		ActorID:    input.Actor.ID,
		Verb:       "provision.bulk.completed",
		ObjectType: "bulk_job",
		ObjectID:   input.JobID.String(),
		Channel:    "provisioning",
		TenantID:   scopeFilter.TenantID,
		OrgID:      scopeFilter.OrgID,
		Data: map[string]any{
			"total":     result.Total,
			"succeeded": len(result.Successful),
			"failed":    len(result.Failed),
		},
		OccurredAt: completedAt,
	}
	logActivity(ctx, c.sink, record)
	emitActivityHook(ctx, c.hooks, record)
	emitProvisionHook(ctx, c.hooks, types.ProvisionEvent{
		JobID:      input.JobID,
		ActorID:    input.Actor.ID,
		Scope:      scopeFilter,
		Succeeded:  len(result.Successful),
		Failed:     len(result.Failed),
		OccurredAt: completedAt,
	})

	if input.Result != nil {
		*input.Result = result
	}
	return nil
}

func (c *BulkProvisionCommand) ready() error {
	switch {
	case c == nil:
		return types.ErrServiceNotReady
	case c.credentials == nil:
		return types.ErrMissingCredentialStore
	case c.students == nil:
		return types.ErrMissingStudentRepository
	case c.links == nil:
		return types.ErrMissingLinkRepository
	case c.ledger == nil:
		return types.ErrMissingJobLedger
	case c.secrets == nil:
		return goerrors.New("go-enroll: bulk provisioning requires a secret generator", goerrors.CategoryInternal).
			WithCode(goerrors.CodeInternal)
	default:
		return nil
	}
}

// provisionRow executes the forward steps for one row and compensates the
// completed ones in reverse when a later step fails.
func (c *BulkProvisionCommand) provisionRow(ctx context.Context, input BulkProvisionInput, scopeFilter types.ScopeFilter, role types.Role, index *dupindex.Index, idx int, row types.RowRecord) (*types.ProvisionedRow, error) {
	email := dupindex.Normalize(row.Email)
	if err := validateRow(row, email); err != nil {
		return nil, provisionError(err, rowMetadata(idx, email))
	}
	if index.Has(email) {
		return nil, provisionError(types.ErrEmailTaken, rowMetadata(idx, email))
	}

	secret, err := c.secrets.Generate()
	if err != nil {
		return nil, provisionError(err, rowMetadata(idx, email))
	}
	generatedAt := now(c.clock)

	var undo []func(context.Context) error

	identity, err := c.credentials.CreateIdentity(ctx, types.IdentityInput{
		Email:        email,
		Secret:       secret,
		PreConfirmed: true,
		Metadata: map[string]any{
			"name":   strings.TrimSpace(row.Name),
			"org_id": scopeFilter.OrgID.String(),
		},
	})
	if err != nil {
		return nil, provisionError(err, rowMetadata(idx, email))
	}
	identityID := identity.ID
	undo = append(undo, func(ctx context.Context) error {
		return c.credentials.DeleteIdentity(ctx, identityID)
	})

	student, err := c.students.CreateStudent(ctx, types.StudentRecord{
		OrgID:      scopeFilter.OrgID,
		IdentityID: identityID,
		Name:       strings.TrimSpace(row.Name),
		Email:      email,
		StudentID:  row.StudentID,
		Batch:      row.Batch,
		Program:    row.Program,
		Semester:   row.Semester,
		Credentials: types.Credentials{
			TemporarySecret: secret,
			GeneratedAt:     generatedAt,
		},
	})
	if err != nil {
		c.compensate(ctx, input.JobID, idx, email, undo)
		return nil, provisionError(err, rowMetadata(idx, email))
	}
	studentID := student.ID
	undo = append(undo, func(ctx context.Context) error {
		return c.students.DeleteStudent(ctx, studentID)
	})

	linkedAt := now(c.clock)
	link, err := c.links.UpsertLink(ctx, types.AuthorizationLink{
		IdentityID:   identityID,
		Role:         role,
		Organization: input.Organization,
		OrgID:        scopeFilter.OrgID,
		Active:       true,
		Approval:     types.ApprovalApproved,
		CreatedAt:    linkedAt,
		UpdatedAt:    linkedAt,
	})
	if err != nil {
		c.compensate(ctx, input.JobID, idx, email, undo)
		return nil, provisionError(err, rowMetadata(idx, email))
	}

	emitLinkHook(ctx, c.hooks, types.LinkEvent{
		IdentityID: identityID,
		Role:       link.Role,
		ActorID:    input.Actor.ID,
		Scope:      scopeFilter,
		OccurredAt: linkedAt,
	})
	notify(ctx, c.notifier, email, map[string]any{
		"name":   student.Name,
		"org_id": scopeFilter.OrgID.String(),
	})

	return &types.ProvisionedRow{
		Record: *student,
		Credentials: types.Credentials{
			TemporarySecret: secret,
			GeneratedAt:     generatedAt,
		},
	}, nil
}

// compensate pops completed undo steps in reverse order. A failed undo leaves
// an orphan behind; it is logged loudly and recorded in the audit trail so
// operators can reconcile by hand.
func (c *BulkProvisionCommand) compensate(ctx context.Context, jobID uuid.UUID, idx int, email string, undo []func(context.Context) error) {
	for i := len(undo) - 1; i >= 0; i-- {
		if err := undo[i](ctx); err != nil {
			c.logger.Error("provision: compensation step failed, manual cleanup required", err,
				"job_id", jobID.String(),
				"row", idx,
				"email", email,
			)
			record := types.ActivityRecord{
				Verb:       "provision.compensation_failed",
				ObjectType: "bulk_job",
				ObjectID:   jobID.String(),
				Channel:    "provisioning",
				Data: map[string]any{
					"row":   idx,
					"email": email,
					"error": err.Error(),
				},
				OccurredAt: now(c.clock),
			}
			logActivity(ctx, c.sink, record)
			emitActivityHook(ctx, c.hooks, record)
		}
	}
}

func validateRow(row types.RowRecord, email string) error {
	if strings.TrimSpace(row.Name) == "" {
		return ErrNameRequired
	}
	if email == "" {
		return ErrEmailRequired
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return ErrInvalidEmail
	}
	return nil
}

func rowMetadata(index int, email string) map[string]any {
	metadata := map[string]any{
		"index": index,
	}
	if email != "" {
		metadata["email"] = email
	}
	return metadata
}

func provisionError(err error, metadata map[string]any) error {
	if err == nil {
		return nil
	}
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return richErr.WithMetadata(metadata)
	}

	category := goerrors.CategoryInternal
	code := goerrors.CodeInternal
	switch {
	case errors.Is(err, ErrNameRequired),
		errors.Is(err, ErrEmailRequired),
		errors.Is(err, ErrInvalidEmail),
		errors.Is(err, types.ErrEmailTaken):
		category = goerrors.CategoryValidation
		code = goerrors.CodeBadRequest
	}

	return goerrors.Wrap(err, category, "go-enroll: row provisioning failed").
		WithCode(code).
		WithMetadata(metadata)
}

// failureReason maps a row error to the stable reason string recorded in the
// job ledger. Duplicates always read "already exists" regardless of whether
// the index or the store caught them. Unclassified errors collapse to a
// stable reason; the raw cause travels only in the wrapped error and logs.
func failureReason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, types.ErrEmailTaken):
		return ReasonAlreadyExists
	case errors.Is(err, ErrNameRequired):
		return "name required"
	case errors.Is(err, ErrEmailRequired):
		return "email required"
	case errors.Is(err, ErrInvalidEmail):
		return "invalid email"
	default:
		return ReasonProvisionFailed
	}
}
