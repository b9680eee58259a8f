package dto

import (
	"github.com/kingrain94/entitlement-api/internal/domain"
)

type CreateTenantRequest struct {
	Name           string         `json:"name" binding:"required,max=255" example:"Trattoria Roma"`
	Schema         string         `json:"schema" binding:"omitempty,schemaname" example:"tenant_trattoria_roma"`
	Subdomain      *string        `json:"subdomain" binding:"omitempty,subdomain" example:"roma"`
	SubscriptionID *string        `json:"subscription_id" example:"sub_123"`
	Settings       map[string]any `json:"settings" swaggertype:"object"`
	RateLimit      int            `json:"rate_limit" binding:"omitempty,min=1" example:"1000"`
}

type UpdateTenantRequest struct {
	Name           *string        `json:"name" binding:"omitempty,max=255" example:"Trattoria Roma"`
	Schema         *string        `json:"schema" binding:"omitempty,schemaname" example:"tenant_trattoria_roma"`
	Subdomain      *string        `json:"subdomain" binding:"omitempty,subdomain" example:"roma"`
	SubscriptionID *string        `json:"subscription_id" example:"sub_123"`
	Settings       map[string]any `json:"settings" swaggertype:"object"`
	RateLimit      *int           `json:"rate_limit" binding:"omitempty,min=1" example:"1000"`
}

type UpdateTenantStatusRequest struct {
	Status string `json:"status" binding:"required,tenantstatus" example:"active"`
}

type UpsertFeatureFlagRequest struct {
	Key               string                  `json:"key" binding:"required,flagkey" example:"api_access"`
	Name              string                  `json:"name" binding:"max=255" example:"API Access"`
	Description       string                  `json:"description" example:"Programmatic access to the restaurant API"`
	Status            string                  `json:"status" binding:"omitempty,flagstatus" example:"active"`
	PlanLevel         string                  `json:"plan_level" binding:"omitempty,planlevel" example:"basic"`
	DefaultValue      domain.Value            `json:"default_value" swaggertype:"object"`
	PlanValues        map[string]domain.Value `json:"plan_values" binding:"omitempty,dive,keys,planlevel,endkeys" swaggertype:"object"`
	RolloutPercentage *int                    `json:"rollout_percentage" binding:"omitempty,min=0,max=100" example:"100"`
	Metadata          map[string]any          `json:"metadata" swaggertype:"object"`
}

type SetOverrideRequest struct {
	Value domain.Value `json:"value" swaggertype:"object"`
}

type FlagHistoryQuery struct {
	Action    string `form:"action" binding:"omitempty,flagchangeaction" example:"set_tenant_override"`
	SubjectID string `form:"subject_id" example:"tenant-7"`
	ActorID   string `form:"actor_id" example:"admin-1"`
	StartTime string `form:"start_time" example:"2025-07-01"`
	EndTime   string `form:"end_time" example:"2025-07-31"`
	Page      int    `form:"page" binding:"omitempty,min=1" example:"1"`
	PageSize  int    `form:"page_size" binding:"omitempty,min=1,max=500" example:"50"`
}

type ArchiveHistoryRequest struct {
	Before string `json:"before" binding:"required" example:"2025-01-01"`
}
