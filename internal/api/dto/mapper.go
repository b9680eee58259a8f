package dto

import (
	"gorm.io/datatypes"

	"github.com/kingrain94/entitlement-api/internal/domain"
)

// ToTenant converts a CreateTenantRequest DTO to a Tenant domain model
func (r *CreateTenantRequest) ToTenant() *domain.Tenant {
	tenant := &domain.Tenant{
		Name:           r.Name,
		Schema:         r.Schema,
		Subdomain:      r.Subdomain,
		SubscriptionID: r.SubscriptionID,
		RateLimit:      r.RateLimit,
	}
	if r.Settings != nil {
		tenant.Settings = datatypes.JSONMap(r.Settings)
	}
	return tenant
}

// ApplyTo copies the fields present in the request onto tenant
func (r *UpdateTenantRequest) ApplyTo(tenant *domain.Tenant) {
	if r.Name != nil {
		tenant.Name = *r.Name
	}
	if r.Schema != nil {
		tenant.Schema = *r.Schema
	}
	if r.Subdomain != nil {
		if *r.Subdomain == "" {
			tenant.Subdomain = nil
		} else {
			subdomain := *r.Subdomain
			tenant.Subdomain = &subdomain
		}
	}
	if r.SubscriptionID != nil {
		tenant.SubscriptionID = r.SubscriptionID
	}
	if r.Settings != nil {
		tenant.Settings = datatypes.JSONMap(r.Settings)
	}
	if r.RateLimit != nil {
		tenant.RateLimit = *r.RateLimit
	}
}

func FromTenant(tenant *domain.Tenant) *TenantResponse {
	return &TenantResponse{
		ID:             tenant.ID,
		Name:           tenant.Name,
		Schema:         tenant.Schema,
		Subdomain:      tenant.Subdomain,
		Status:         string(tenant.Status),
		TrialStartDate: tenant.TrialStartDate,
		TrialEndDate:   tenant.TrialEndDate,
		SubscriptionID: tenant.SubscriptionID,
		Settings:       tenant.Settings,
		RateLimit:      tenant.RateLimit,
		CreatedAt:      tenant.CreatedAt,
		UpdatedAt:      tenant.UpdatedAt,
	}
}

func FromTenants(tenants []domain.Tenant) []TenantResponse {
	responses := make([]TenantResponse, len(tenants))
	for i := range tenants {
		responses[i] = *FromTenant(&tenants[i])
	}
	return responses
}

// ToFeatureFlag converts an upsert request to a flag definition. Unset fields take defaults.
func (r *UpsertFeatureFlagRequest) ToFeatureFlag() *domain.FeatureFlag {
	status := domain.FlagStatus(r.Status)
	if status == "" {
		status = domain.FlagStatusActive
	}
	planLevel := domain.PlanLevel(r.PlanLevel)
	if planLevel == "" {
		planLevel = domain.PlanFree
	}
	rollout := 100
	if r.RolloutPercentage != nil {
		rollout = *r.RolloutPercentage
	}

	flag := &domain.FeatureFlag{
		Key:               r.Key,
		Name:              r.Name,
		Description:       r.Description,
		Status:            status,
		PlanLevel:         planLevel,
		DefaultValue:      r.DefaultValue,
		PlanValues:        domain.NewValueMap(r.PlanValues),
		RolloutPercentage: rollout,
	}
	if r.Metadata != nil {
		flag.Metadata = datatypes.JSONMap(r.Metadata)
	}
	return flag
}

func FromFeatureFlag(flag *domain.FeatureFlag) *FeatureFlagResponse {
	return &FeatureFlagResponse{
		ID:                flag.ID,
		Key:               flag.Key,
		Name:              flag.Name,
		Description:       flag.Description,
		Status:            string(flag.Status),
		PlanLevel:         string(flag.PlanLevel),
		DefaultValue:      flag.DefaultValue,
		PlanValues:        nonNil(flag.PlanValueMap()),
		UserOverrides:     nonNil(flag.UserOverrideMap()),
		TenantOverrides:   nonNil(flag.TenantOverrideMap()),
		RolloutPercentage: flag.RolloutPercentage,
		Metadata:          flag.Metadata,
		CreatedAt:         flag.CreatedAt,
		UpdatedAt:         flag.UpdatedAt,
	}
}

func nonNil(m domain.ValueMap) map[string]domain.Value {
	if m == nil {
		return map[string]domain.Value{}
	}
	return m
}

func FromFlagChanges(changes []domain.FlagChange) []FlagChangeResponse {
	responses := make([]FlagChangeResponse, len(changes))
	for i, change := range changes {
		responses[i] = FlagChangeResponse{
			ID:        change.ID,
			FlagKey:   change.FlagKey,
			Action:    string(change.Action),
			SubjectID: change.SubjectID,
			Value:     change.Value,
			ActorID:   change.ActorID,
			TenantID:  change.TenantID,
			Timestamp: change.Timestamp,
		}
	}
	return responses
}
