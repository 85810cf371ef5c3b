package command

import (
	"context"

	"github.com/goliatone/go-enroll/pkg/types"
	featuregate "github.com/goliatone/go-featuregate/gate"
	"github.com/google/uuid"
)

const (
	featureProvisionBulk  = "provision.bulk"
	featureProvisionAdmin = "provision.admin_create"
)

func featureEnabled(ctx context.Context, gate featuregate.FeatureGate, key string, scope types.ScopeFilter, identityID uuid.UUID) (bool, error) {
	if gate == nil {
		return true, nil
	}
	scopeSet := featureScopeSet(scope, identityID)
	if scopeSet == nil {
		return gate.Enabled(ctx, key)
	}
	return gate.Enabled(ctx, key, featuregate.WithScopeSet(*scopeSet))
}

func featureScopeSet(scope types.ScopeFilter, identityID uuid.UUID) *featuregate.ScopeSet {
	tenantID := ""
	orgID := ""
	if scope.TenantID != uuid.Nil {
		tenantID = scope.TenantID.String()
	}
	if scope.OrgID != uuid.Nil {
		orgID = scope.OrgID.String()
	}

	identity := ""
	if identityID != uuid.Nil {
		identity = identityID.String()
	}

	if tenantID == "" && orgID == "" && identity == "" {
		return nil
	}
	return &featuregate.ScopeSet{
		System:   true,
		TenantID: tenantID,
		OrgID:    orgID,
		UserID:   identity,
	}
}
