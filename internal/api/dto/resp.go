package dto

import (
	"time"

	"github.com/kingrain94/entitlement-api/internal/domain"
)

// TenantResponse represents a tenant record
type TenantResponse struct {
	ID             string         `json:"id" example:"550e8400-e29b-41d4-a716-446655440000"`
	Name           string         `json:"name" example:"Trattoria Roma"`
	Schema         string         `json:"schema" example:"tenant_trattoria_roma"`
	Subdomain      *string        `json:"subdomain,omitempty" example:"roma"`
	Status         string         `json:"status" example:"trial"`
	TrialStartDate *time.Time     `json:"trial_start_date,omitempty" example:"2025-07-17T21:20:48Z"`
	TrialEndDate   *time.Time     `json:"trial_end_date,omitempty" example:"2025-08-01T21:20:48Z"`
	SubscriptionID *string        `json:"subscription_id,omitempty" example:"sub_123"`
	Settings       map[string]any `json:"settings,omitempty" swaggertype:"object"`
	RateLimit      int            `json:"rate_limit" example:"1000"`
	CreatedAt      time.Time      `json:"created_at" example:"2025-07-17T21:20:48Z"`
	UpdatedAt      time.Time      `json:"updated_at" example:"2025-07-17T21:20:48Z"`
}

// CurrentTenantResponse describes the tenant context resolved for the request
type CurrentTenantResponse struct {
	TenantID        string          `json:"tenant_id,omitempty" example:"550e8400-e29b-41d4-a716-446655440000"`
	Schema          string          `json:"schema" example:"tenant_trattoria_roma"`
	ActiveSchema    string          `json:"active_schema,omitempty" example:"tenant_trattoria_roma"`
	Tenant          *TenantResponse `json:"tenant,omitempty"`
	CheckedFeatures []string        `json:"checked_features,omitempty" example:"custom_branding"`
}

// FeatureFlagResponse is the stored definition of a flag
type FeatureFlagResponse struct {
	ID                string                  `json:"id" example:"550e8400-e29b-41d4-a716-446655440000"`
	Key               string                  `json:"key" example:"api_access"`
	Name              string                  `json:"name" example:"API Access"`
	Description       string                  `json:"description" example:"Programmatic access to the restaurant API"`
	Status            string                  `json:"status" example:"active"`
	PlanLevel         string                  `json:"plan_level" example:"basic"`
	DefaultValue      domain.Value            `json:"default_value" swaggertype:"object"`
	PlanValues        map[string]domain.Value `json:"plan_values" swaggertype:"object"`
	UserOverrides     map[string]domain.Value `json:"user_overrides" swaggertype:"object"`
	TenantOverrides   map[string]domain.Value `json:"tenant_overrides" swaggertype:"object"`
	RolloutPercentage int                     `json:"rollout_percentage" example:"100"`
	Metadata          map[string]any          `json:"metadata,omitempty" swaggertype:"object"`
	CreatedAt         time.Time               `json:"created_at" example:"2025-07-17T21:20:48Z"`
	UpdatedAt         time.Time               `json:"updated_at" example:"2025-07-17T21:20:48Z"`
}

// FeatureFlagValueResponse is the evaluated value of one flag for the caller
type FeatureFlagValueResponse struct {
	Key     string       `json:"key" example:"api_access"`
	Value   domain.Value `json:"value" swaggertype:"object"`
	Enabled bool         `json:"enabled" example:"true"`
}

// FeatureEnabledResponse is the boolean entitlement of one flag for the caller
type FeatureEnabledResponse struct {
	Key     string `json:"key" example:"api_access"`
	Enabled bool   `json:"enabled" example:"true"`
}

// FeatureFlagsResponse maps flag keys to their evaluated values
type FeatureFlagsResponse struct {
	Flags map[string]domain.Value `json:"flags" swaggertype:"object"`
}

// FeatureDeniedResponse is returned when a gated route is blocked
type FeatureDeniedResponse struct {
	Message          string   `json:"message" example:"Feature 'api_access' is not available in your current plan"`
	Feature          string   `json:"feature" example:"api_access"`
	UpgradeRequired  bool     `json:"upgradeRequired" example:"true"`
	AvailableInPlans []string `json:"availableInPlans" example:"Premium,Enterprise"`
}

// TenantRejectionResponse is returned when the tenant of the request cannot be served
type TenantRejectionResponse struct {
	Error        string `json:"error" example:"tenant_suspended"`
	Message      string `json:"message" example:"This tenant account has been suspended"`
	TenantStatus string `json:"tenant_status" example:"suspended"`
}

// FlagChangeResponse is one entry of a flag's change history
type FlagChangeResponse struct {
	ID        string       `json:"id" example:"550e8400-e29b-41d4-a716-446655440000"`
	FlagKey   string       `json:"flag_key" example:"custom_branding"`
	Action    string       `json:"action" example:"set_tenant_override"`
	SubjectID string       `json:"subject_id,omitempty" example:"tenant-7"`
	Value     domain.Value `json:"value" swaggertype:"object"`
	ActorID   string       `json:"actor_id,omitempty" example:"admin-1"`
	TenantID  string       `json:"tenant_id,omitempty" example:"550e8400-e29b-41d4-a716-446655440000"`
	Timestamp time.Time    `json:"timestamp" example:"2025-07-17T21:20:48Z"`
}

// ArchiveScheduledResponse acknowledges an archive request
type ArchiveScheduledResponse struct {
	Message string    `json:"message" example:"Archive scheduled"`
	Before  time.Time `json:"before" example:"2025-01-01T23:59:59Z"`
}

// EntitlementEvent is pushed to entitlement stream subscribers. A snapshot carries
// every flag; a change carries the re-evaluated flag that changed.
type EntitlementEvent struct {
	Type      string                  `json:"type" example:"change"`
	Flags     map[string]domain.Value `json:"flags,omitempty" swaggertype:"object"`
	Key       string                  `json:"key,omitempty" example:"custom_branding"`
	Value     domain.Value            `json:"value" swaggertype:"object"`
	Enabled   bool                    `json:"enabled" example:"true"`
	Action    string                  `json:"action,omitempty" example:"set_tenant_override"`
	Timestamp time.Time               `json:"timestamp" example:"2025-07-17T21:20:48Z"`
}
