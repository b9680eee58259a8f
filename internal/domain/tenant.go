package domain

import (
	"slices"
	"time"

	"gorm.io/datatypes"
)

type TenantStatus string

const (
	TenantStatusActive    TenantStatus = "active"
	TenantStatusInactive  TenantStatus = "inactive"
	TenantStatusSuspended TenantStatus = "suspended"
	TenantStatusTrial     TenantStatus = "trial"
	TenantStatusExpired   TenantStatus = "expired"
)

var ValidTenantStatuses = []TenantStatus{
	TenantStatusActive,
	TenantStatusInactive,
	TenantStatusSuspended,
	TenantStatusTrial,
	TenantStatusExpired,
}

func IsValidTenantStatus(status string) bool {
	return slices.Contains(ValidTenantStatuses, TenantStatus(status))
}

// TrialPeriod is the length of the trial window granted at onboarding.
const TrialPeriod = 15 * 24 * time.Hour

// Tenant is one restaurant client. Each tenant's business data lives in its own schema.
type Tenant struct {
	ID             string            `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	Name           string            `gorm:"type:text;not null;uniqueIndex" json:"name"`
	Schema         string            `gorm:"column:schema;type:text;not null;uniqueIndex" json:"schema"`
	Subdomain      *string           `gorm:"type:text;uniqueIndex" json:"subdomain,omitempty"`
	Status         TenantStatus      `gorm:"type:text;not null;default:'trial'" json:"status"`
	TrialStartDate *time.Time        `gorm:"type:timestamp with time zone" json:"trial_start_date,omitempty"`
	TrialEndDate   *time.Time        `gorm:"type:timestamp with time zone" json:"trial_end_date,omitempty"`
	SubscriptionID *string           `gorm:"type:text" json:"subscription_id,omitempty"`
	IsDeleted      bool              `gorm:"not null;default:false" json:"is_deleted"`
	Settings       datatypes.JSONMap `gorm:"type:jsonb" json:"settings,omitempty"`
	RateLimit      int               `gorm:"not null;default:1000" json:"rate_limit"`
	CreatedAt      time.Time         `gorm:"type:timestamp with time zone;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt      time.Time         `gorm:"type:timestamp with time zone;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (Tenant) TableName() string {
	return "tenants"
}

// SubdomainValue returns the subdomain or an empty string.
func (t *Tenant) SubdomainValue() string {
	if t.Subdomain == nil {
		return ""
	}
	return *t.Subdomain
}

// StartTrial sets the trial status and window starting at now.
func (t *Tenant) StartTrial(now time.Time) {
	start := now.UTC()
	end := start.Add(TrialPeriod)
	t.Status = TenantStatusTrial
	t.TrialStartDate = &start
	t.TrialEndDate = &end
}
