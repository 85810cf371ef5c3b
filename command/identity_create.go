package command

import (
	"context"
	"net/mail"
	"strings"

	gocommand "github.com/goliatone/go-command"
	"github.com/goliatone/go-enroll/dupindex"
	"github.com/goliatone/go-enroll/pkg/types"
	"github.com/goliatone/go-enroll/scope"
	featuregate "github.com/goliatone/go-featuregate/gate"
	"github.com/google/uuid"
)

// IdentityCreateInput provisions a single identity outside the bulk path.
// Administrative creation skips the job ledger but runs the same forward and
// compensation steps as one bulk row.
type IdentityCreateInput struct {
	Row          types.RowRecord
	Actor        types.ActorRef
	Scope        types.ScopeFilter
	Organization string
	Role         types.Role
	Result       *types.ProvisionedRow
}

// Type implements gocommand.Message.
func (IdentityCreateInput) Type() string {
	return "command.identity.create"
}

// Validate implements gocommand.Message.
func (input IdentityCreateInput) Validate() error {
	email := dupindex.Normalize(input.Row.Email)
	switch {
	case strings.TrimSpace(input.Row.Name) == "":
		return ErrNameRequired
	case email == "":
		return ErrEmailRequired
	case input.Actor.ID == uuid.Nil:
		return ErrActorRequired
	case input.Scope.OrgID == uuid.Nil:
		return ErrOrgRequired
	case input.Role != "" && !types.ValidRole(string(input.Role)):
		return ErrUnknownRole
	default:
		if _, err := mail.ParseAddress(email); err != nil {
			return ErrInvalidEmail
		}
		return nil
	}
}

// IdentityCreateCommand provisions one identity with its student record and
// authorization link.
type IdentityCreateCommand struct {
	credentials types.CredentialStore
	students    types.StudentRepository
	links       types.LinkRepository
	secrets     types.SecretGenerator
	notifier    types.Notifier
	clock       types.Clock
	sink        types.ActivitySink
	hooks       types.Hooks
	logger      types.Logger
	guard       scope.Guard
	gate        featuregate.FeatureGate
}

// IdentityCreateCommandConfig wires dependencies for single-identity creation.
type IdentityCreateCommandConfig struct {
	CredentialStore types.CredentialStore
	Students        types.StudentRepository
	Links           types.LinkRepository
	Secrets         types.SecretGenerator
	Notifier        types.Notifier
	Clock           types.Clock
	Activity        types.ActivitySink
	Hooks           types.Hooks
	Logger          types.Logger
	ScopeGuard      scope.Guard
	FeatureGate     featuregate.FeatureGate
}

// NewIdentityCreateCommand constructs the handler.
func NewIdentityCreateCommand(cfg IdentityCreateCommandConfig) *IdentityCreateCommand {
	return &IdentityCreateCommand{
		credentials: cfg.CredentialStore,
		students:    cfg.Students,
		links:       cfg.Links,
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

var _ gocommand.Commander[IdentityCreateInput] = (*IdentityCreateCommand)(nil)

// Execute provisions the identity, compensating completed steps when a later
// one fails. Unlike the bulk saga, failures surface directly as errors.
func (c *IdentityCreateCommand) Execute(ctx context.Context, input IdentityCreateInput) error {
	switch {
	case c == nil:
		return types.ErrServiceNotReady
	case c.credentials == nil:
		return types.ErrMissingCredentialStore
	case c.students == nil:
		return types.ErrMissingStudentRepository
	case c.links == nil:
		return types.ErrMissingLinkRepository
	case c.secrets == nil:
		return types.ErrServiceNotReady
	}
	if err := input.Validate(); err != nil {
		return err
	}

	scopeFilter, err := c.guard.Enforce(ctx, input.Actor, input.Scope, types.PolicyActionProvisionAdmin, uuid.Nil)
	if err != nil {
		return err
	}
	if scopeFilter.OrgID == uuid.Nil {
		scopeFilter.OrgID = input.Scope.OrgID
	}

	enabled, err := featureEnabled(ctx, c.gate, featureProvisionAdmin, scopeFilter, input.Actor.ID)
	if err != nil {
		return err
	}
	if !enabled {
		return ErrProvisionDisabled
	}

	email := dupindex.Normalize(input.Row.Email)
	role := input.Role
	if role == "" {
		role = types.RoleStudent
	}

	secret, err := c.secrets.Generate()
	if err != nil {
		return err
	}
	generatedAt := now(c.clock)

	identity, err := c.credentials.CreateIdentity(ctx, types.IdentityInput{
		Email:        email,
		Secret:       secret,
		PreConfirmed: true,
		Metadata: map[string]any{
			"name":   strings.TrimSpace(input.Row.Name),
			"org_id": scopeFilter.OrgID.String(),
		},
	})
	if err != nil {
		return provisionError(err, map[string]any{"email": email})
	}

	student, err := c.students.CreateStudent(ctx, types.StudentRecord{
		OrgID:      scopeFilter.OrgID,
		IdentityID: identity.ID,
		Name:       strings.TrimSpace(input.Row.Name),
		Email:      email,
		StudentID:  input.Row.StudentID,
		Batch:      input.Row.Batch,
		Program:    input.Row.Program,
		Semester:   input.Row.Semester,
		Credentials: types.Credentials{
			TemporarySecret: secret,
			GeneratedAt:     generatedAt,
		},
	})
	if err != nil {
		if undoErr := c.credentials.DeleteIdentity(ctx, identity.ID); undoErr != nil {
			c.logger.Error("identity create: compensation step failed, manual cleanup required", undoErr, "email", email)
		}
		return provisionError(err, map[string]any{"email": email})
	}

	linkedAt := now(c.clock)
	link, err := c.links.UpsertLink(ctx, types.AuthorizationLink{
		IdentityID:   identity.ID,
		Role:         role,
		Organization: input.Organization,
		OrgID:        scopeFilter.OrgID,
		Active:       true,
		Approval:     types.ApprovalApproved,
		CreatedAt:    linkedAt,
		UpdatedAt:    linkedAt,
	})
	if err != nil {
		if undoErr := c.students.DeleteStudent(ctx, student.ID); undoErr != nil {
			c.logger.Error("identity create: compensation step failed, manual cleanup required", undoErr, "email", email)
		}
		if undoErr := c.credentials.DeleteIdentity(ctx, identity.ID); undoErr != nil {
			c.logger.Error("identity create: compensation step failed, manual cleanup required", undoErr, "email", email)
		}
		return provisionError(err, map[string]any{"email": email})
	}

	record := types.ActivityRecord{
		IdentityID: identity.ID,
		ActorID:    input.Actor.ID,
		Verb:       "identity.created",
		ObjectType: "identity",
		ObjectID:   identity.ID.String(),
		Channel:    "provisioning",
		TenantID:   scopeFilter.TenantID,
		OrgID:      scopeFilter.OrgID,
		Data: map[string]any{
			"email": email,
			"role":  string(link.Role),
		},
		OccurredAt: linkedAt,
	}
	logActivity(ctx, c.sink, record)
	emitActivityHook(ctx, c.hooks, record)
	emitLinkHook(ctx, c.hooks, types.LinkEvent{
		IdentityID: identity.ID,
		Role:       link.Role,
		ActorID:    input.Actor.ID,
		Scope:      scopeFilter,
		OccurredAt: linkedAt,
	})
	notify(ctx, c.notifier, email, map[string]any{
		"name":   student.Name,
		"org_id": scopeFilter.OrgID.String(),
	})

	if input.Result != nil {
		*input.Result = types.ProvisionedRow{
			Record: *student,
			Credentials: types.Credentials{
				TemporarySecret: secret,
				GeneratedAt:     generatedAt,
			},
		}
	}
	return nil
}
