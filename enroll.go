package enroll

import "github.com/goliatone/go-enroll/service"

// Re-export the service package entry point so consumers can do `enroll.New(...)`
// without importing internal wiring helpers.
type (
	Service        = service.Service
	Config         = service.Config
	Commands       = service.Commands
	Queries        = service.Queries
	ActivityReader = service.ActivityReader
)

// New constructs the go-enroll runtime using the provided configuration.
func New(cfg Config) *Service {
	return service.New(cfg)
}
