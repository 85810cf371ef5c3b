package service

import (
	"context"

	"github.com/goliatone/go-enroll/command"
	"github.com/goliatone/go-enroll/pkg/secrets"
	"github.com/goliatone/go-enroll/pkg/types"
	"github.com/goliatone/go-enroll/query"
	"github.com/goliatone/go-enroll/resolver"
	"github.com/goliatone/go-enroll/scope"
	featuregate "github.com/goliatone/go-featuregate/gate"
)

// Service is the entry point for go-enroll. It wires the credential store,
// repositories, hooks, and command/query facades supplied by the host
// application.
type Service struct {
	cfg        Config
	commands   Commands
	queries    Queries
	resolver   *resolver.Resolver
	emails     types.EmailSource
	reader     ActivityReader
	scopeGuard scope.Guard
}

// Commands exposes the service command handlers.
type Commands struct {
	BulkProvision      *command.BulkProvisionCommand
	IdentityCreate     *command.IdentityCreateCommand
	IdentityDeactivate *command.IdentityDeactivateCommand
}

// Queries exposes read-model helpers.
type Queries struct {
	JobStatus    *query.JobStatusQuery
	Link         *query.LinkQuery
	ActivityFeed *query.ActivityFeedQuery
}

// ActivityReader lists stored audit records for operator queries.
type ActivityReader interface {
	ListByVerb(ctx context.Context, verb string, limit int) ([]types.ActivityRecord, error)
}

// Config captures all required dependencies so callers can provide their own
// instances (bun.DB, cached repositories, hooks, etc.).
type Config struct {
	CredentialStore     types.CredentialStore
	Students            types.StudentRepository
	Emails              types.EmailSource
	Links               types.LinkRepository
	Ledger              types.JobLedger
	ActivitySink        types.ActivitySink
	ActivityReader      ActivityReader
	SecretGenerator     types.SecretGenerator
	Notifier            types.Notifier
	Hooks               types.Hooks
	Clock               types.Clock
	IDGenerator         types.IDGenerator
	Logger              types.Logger
	FeatureGate         featuregate.FeatureGate
	ScopeResolver       types.ScopeResolver
	AuthorizationPolicy types.AuthorizationPolicy
}

// New constructs a Service from the supplied configuration.
func New(cfg Config) *Service {
	norm := normalizeConfig(cfg)

	emails := norm.Emails
	if emails == nil {
		if cast, ok := norm.Students.(types.EmailSource); ok {
			emails = cast
		}
	}
	reader := norm.ActivityReader
	if reader == nil {
		if cast, ok := norm.ActivitySink.(ActivityReader); ok {
			reader = cast
		}
	}

	scopeGuard := scope.Ensure(scope.NewGuard(norm.ScopeResolver, norm.AuthorizationPolicy))

	s := &Service{
		cfg:        norm,
		emails:     emails,
		reader:     reader,
		scopeGuard: scopeGuard,
	}
	s.commands = s.buildCommands()
	s.queries = s.buildQueries()
	s.resolver = resolver.New(resolver.Config{
		CredentialStore: norm.CredentialStore,
		Links:           norm.Links,
		Clock:           norm.Clock,
		Activity:        norm.ActivitySink,
		Hooks:           norm.Hooks,
		Logger:          norm.Logger,
		FeatureGate:     norm.FeatureGate,
	})
	return s
}

func normalizeConfig(cfg Config) Config {
	if cfg.Clock == nil {
		cfg.Clock = types.SystemClock{}
	}
	if cfg.IDGenerator == nil {
		cfg.IDGenerator = types.UUIDGenerator{}
	}
	if cfg.Logger == nil {
		cfg.Logger = types.NopLogger{}
	}
	if cfg.SecretGenerator == nil {
		cfg.SecretGenerator = secrets.NewGenerator()
	}
	return cfg
}

// Commands returns the command facade.
func (s *Service) Commands() Commands {
	return s.commands
}

// Queries returns the query facade.
func (s *Service) Queries() Queries {
	return s.queries
}

// Resolver returns the authorization resolver so transports can gate
// privileged requests with the same stores the saga writes to.
func (s *Service) Resolver() *resolver.Resolver {
	if s == nil {
		return nil
	}
	return s.resolver
}

// Ready reports whether the service has the required dependencies wired in.
func (s *Service) Ready() bool {
	return s != nil &&
		s.cfg.CredentialStore != nil &&
		s.cfg.Students != nil &&
		s.cfg.Links != nil &&
		s.cfg.Ledger != nil
}

// HealthCheck surfaces missing configuration to upstream transports before
// they accept traffic.
func (s *Service) HealthCheck(context.Context) error {
	if s == nil {
		return types.ErrServiceNotReady
	}
	if s.cfg.CredentialStore == nil {
		return types.ErrMissingCredentialStore
	}
	if s.cfg.Students == nil {
		return types.ErrMissingStudentRepository
	}
	if s.cfg.Links == nil {
		return types.ErrMissingLinkRepository
	}
	if s.cfg.Ledger == nil {
		return types.ErrMissingJobLedger
	}
	return nil
}

// ScopeGuard exposes the guard instance used internally so transports can
// reuse the same resolver/policy combination.
func (s *Service) ScopeGuard() scope.Guard {
	if s == nil {
		return scope.NopGuard()
	}
	return scope.Ensure(s.scopeGuard)
}

// ActivitySink returns the configured sink so transports can emit their own
// audit records alongside the service's.
func (s *Service) ActivitySink() types.ActivitySink {
	if s == nil {
		return nil
	}
	return s.cfg.ActivitySink
}

func (s *Service) buildCommands() Commands {
	return Commands{
		BulkProvision: command.NewBulkProvisionCommand(command.BulkProvisionCommandConfig{
			CredentialStore: s.cfg.CredentialStore,
			Students:        s.cfg.Students,
			Emails:          s.emails,
			Links:           s.cfg.Links,
			Ledger:          s.cfg.Ledger,
			Secrets:         s.cfg.SecretGenerator,
			Notifier:        s.cfg.Notifier,
			Clock:           s.cfg.Clock,
			Activity:        s.cfg.ActivitySink,
			Hooks:           s.cfg.Hooks,
			Logger:          s.cfg.Logger,
			ScopeGuard:      s.scopeGuard,
			FeatureGate:     s.cfg.FeatureGate,
		}),
		IdentityCreate: command.NewIdentityCreateCommand(command.IdentityCreateCommandConfig{
			CredentialStore: s.cfg.CredentialStore,
			Students:        s.cfg.Students,
			Links:           s.cfg.Links,
			Secrets:         s.cfg.SecretGenerator,
			Notifier:        s.cfg.Notifier,
			Clock:           s.cfg.Clock,
			Activity:        s.cfg.ActivitySink,
			Hooks:           s.cfg.Hooks,
			Logger:          s.cfg.Logger,
			ScopeGuard:      s.scopeGuard,
			FeatureGate:     s.cfg.FeatureGate,
		}),
		IdentityDeactivate: command.NewIdentityDeactivateCommand(command.IdentityDeactivateCommandConfig{
			Links:      s.cfg.Links,
			Clock:      s.cfg.Clock,
			Activity:   s.cfg.ActivitySink,
			Hooks:      s.cfg.Hooks,
			Logger:     s.cfg.Logger,
			ScopeGuard: s.scopeGuard,
		}),
	}
}

func (s *Service) buildQueries() Queries {
	queries := Queries{
		JobStatus: query.NewJobStatusQuery(s.cfg.Ledger, s.scopeGuard),
		Link:      query.NewLinkQuery(s.cfg.Links, s.scopeGuard),
	}
	if s.reader != nil {
		queries.ActivityFeed = query.NewActivityFeedQuery(s.reader, s.scopeGuard)
	}
	return queries
}
