package utils

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/kingrain94/entitlement-api/internal/domain"
)

type ContextKey string

const (
	ClaimsKey          ContextKey = "claims"
	PrincipalKey       ContextKey = "principal"
	TenantIDKey        ContextKey = "tenant_id"
	TenantSchemaKey    ContextKey = "tenant_schema"
	TenantKey          ContextKey = "tenant"
	TenantDBKey        ContextKey = "tenant_db"
	SubscriptionKey    ContextKey = "subscription"
	CheckedFeaturesKey ContextKey = "checked_features"
)

var (
	ErrNoPrincipalInContext = errors.New("no principal found in context")
	ErrNoTenantIDInContext  = errors.New("no tenant_id found in context")
)

// GetPrincipalFromContext returns the authenticated caller.
func GetPrincipalFromContext(c context.Context) (*domain.Principal, error) {
	principal, ok := c.Value(PrincipalKey).(*domain.Principal)
	if !ok || principal == nil {
		return nil, ErrNoPrincipalInContext
	}
	return principal, nil
}

// GetTenantIDFromContext prefers the tenant resolved from the host and falls back to the
// tenant carried by the principal.
func GetTenantIDFromContext(c context.Context) (string, error) {
	if tenantID, ok := c.Value(TenantIDKey).(string); ok && tenantID != "" {
		return tenantID, nil
	}
	if principal, err := GetPrincipalFromContext(c); err == nil && principal.TenantID != "" {
		return principal.TenantID, nil
	}
	return "", ErrNoTenantIDInContext
}

func GetTenantFromContext(c context.Context) (*domain.Tenant, bool) {
	tenant, ok := c.Value(TenantKey).(*domain.Tenant)
	return tenant, ok && tenant != nil
}

func GetTenantSchemaFromContext(c context.Context) string {
	schema, _ := c.Value(TenantSchemaKey).(string)
	return schema
}

// GetTenantDB returns the schema-bound connection for the request, or fallback when the
// request was not bound to a tenant schema. Tenant-scoped queries must go through it.
// The result is nil when neither exists.
func GetTenantDB(c context.Context, fallback *gorm.DB) *gorm.DB {
	if db, ok := c.Value(TenantDBKey).(*gorm.DB); ok && db != nil {
		return db.WithContext(c)
	}
	if fallback == nil {
		return nil
	}
	return fallback.WithContext(c)
}

func GetSubscriptionFromContext(c context.Context) *domain.Subscription {
	sub, _ := c.Value(SubscriptionKey).(*domain.Subscription)
	return sub
}

// GetCheckedFeatures lists the feature keys the guard admitted for this request.
func GetCheckedFeatures(c context.Context) []string {
	features, _ := c.Value(CheckedFeaturesKey).([]string)
	return features
}
