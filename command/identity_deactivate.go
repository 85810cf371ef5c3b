package command

import (
	"context"

	gocommand "github.com/goliatone/go-command"
	"github.com/goliatone/go-enroll/pkg/types"
	"github.com/goliatone/go-enroll/scope"
	"github.com/google/uuid"
)

// IdentityDeactivateInput flips an authorization link inactive. The identity
// and student record stay in place so the action is reversible.
type IdentityDeactivateInput struct {
	IdentityID uuid.UUID
	Actor      types.ActorRef
	Scope      types.ScopeFilter
}

// Type implements gocommand.Message.
func (IdentityDeactivateInput) Type() string {
	return "command.identity.deactivate"
}

// Validate implements gocommand.Message.
func (input IdentityDeactivateInput) Validate() error {
	switch {
	case input.IdentityID == uuid.Nil:
		return types.ErrIdentityIDRequired
	case input.Actor.ID == uuid.Nil:
		return ErrActorRequired
	default:
		return nil
	}
}

// IdentityDeactivateCommand deactivates authorization links.
type IdentityDeactivateCommand struct {
	links  types.LinkRepository
	clock  types.Clock
	sink   types.ActivitySink
	hooks  types.Hooks
	logger types.Logger
	guard  scope.Guard
}

// IdentityDeactivateCommandConfig wires dependencies for deactivation.
type IdentityDeactivateCommandConfig struct {
	Links      types.LinkRepository
	Clock      types.Clock
	Activity   types.ActivitySink
	Hooks      types.Hooks
	Logger     types.Logger
	ScopeGuard scope.Guard
}

// NewIdentityDeactivateCommand constructs the handler.
func NewIdentityDeactivateCommand(cfg IdentityDeactivateCommandConfig) *IdentityDeactivateCommand {
	return &IdentityDeactivateCommand{
		links:  cfg.Links,
		clock:  safeClock(cfg.Clock),
		sink:   safeActivitySink(cfg.Activity),
		hooks:  safeHooks(cfg.Hooks),
		logger: safeLogger(cfg.Logger),
		guard:  safeScopeGuard(cfg.ScopeGuard),
	}
}

var _ gocommand.Commander[IdentityDeactivateInput] = (*IdentityDeactivateCommand)(nil)

// Execute deactivates the link without touching its role or approval state.
func (c *IdentityDeactivateCommand) Execute(ctx context.Context, input IdentityDeactivateInput) error {
	if c == nil || c.links == nil {
		return types.ErrMissingLinkRepository
	}
	if err := input.Validate(); err != nil {
		return err
	}

	scopeFilter, err := c.guard.Enforce(ctx, input.Actor, input.Scope, types.PolicyActionLinksWrite, input.IdentityID)
	if err != nil {
		return err
	}

	link, err := c.links.GetLink(ctx, input.IdentityID)
	if err != nil {
		return err
	}
	if link == nil {
		return types.ErrIdentityNotFound
	}

	if err := c.links.SetLinkActive(ctx, input.IdentityID, false); err != nil {
		return err
	}

	occurredAt := now(c.clock)
	record := types.ActivityRecord{
		IdentityID: input.IdentityID,
		ActorID:    input.Actor.ID,
		Verb:       "identity.deactivated",
		ObjectType: "identity",
		ObjectID:   input.IdentityID.String(),
		Channel:    "provisioning",
		TenantID:   scopeFilter.TenantID,
		OrgID:      scopeFilter.OrgID,
		Data: map[string]any{
			"role": string(link.Role),
		},
		OccurredAt: occurredAt,
	}
	logActivity(ctx, c.sink, record)
	emitActivityHook(ctx, c.hooks, record)
	emitLinkHook(ctx, c.hooks, types.LinkEvent{
		IdentityID: input.IdentityID,
		Role:       link.Role,
		ActorID:    input.Actor.ID,
		Scope:      scopeFilter,
		OccurredAt: occurredAt,
	})
	return nil
}
