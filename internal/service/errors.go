package service

import "errors"

var (
	// Tenant errors
	ErrTenantNotFound      = errors.New("tenant not found")
	ErrTenantExists        = errors.New("tenant already exists")
	ErrInvalidTenantStatus = errors.New("invalid tenant status")
	ErrInvalidSchemaName   = errors.New("invalid schema name")

	// Feature flag errors
	ErrFeatureFlagNotFound = errors.New("feature flag not found")
	ErrInvalidFeatureFlag  = errors.New("invalid feature flag")
	ErrInvalidPlanLevel    = errors.New("invalid plan level")
	ErrUndefinedValue      = errors.New("override value is required")
)
