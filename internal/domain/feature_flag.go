package domain

import (
	"slices"
	"time"

	"gorm.io/datatypes"
)

type FlagStatus string

const (
	FlagStatusActive     FlagStatus = "active"
	FlagStatusInactive   FlagStatus = "inactive"
	FlagStatusDeprecated FlagStatus = "deprecated"
)

var ValidFlagStatuses = []FlagStatus{FlagStatusActive, FlagStatusInactive, FlagStatusDeprecated}

func IsValidFlagStatus(status string) bool {
	return slices.Contains(ValidFlagStatuses, FlagStatus(status))
}

// PlanLevel is a subscription tier. Tiers are ordered free < basic < premium < enterprise.
type PlanLevel string

const (
	PlanFree       PlanLevel = "free"
	PlanBasic      PlanLevel = "basic"
	PlanPremium    PlanLevel = "premium"
	PlanEnterprise PlanLevel = "enterprise"
)

// PlanHierarchy lists plan levels in ascending order.
var PlanHierarchy = []PlanLevel{PlanFree, PlanBasic, PlanPremium, PlanEnterprise}

// Rank returns the ordinal of the plan level and false for unknown levels.
func (p PlanLevel) Rank() (int, bool) {
	i := slices.Index(PlanHierarchy, p)
	return i, i >= 0
}

func IsValidPlanLevel(level string) bool {
	_, ok := PlanLevel(level).Rank()
	return ok
}

// FeatureFlag is the persisted definition of a gated feature. Override maps reference
// users and tenants by opaque id only.
type FeatureFlag struct {
	ID                string                       `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	Key               string                       `gorm:"type:text;not null;uniqueIndex" json:"key"`
	Name              string                       `gorm:"type:text;not null;default:''" json:"name"`
	Description       string                       `gorm:"type:text" json:"description"`
	Status            FlagStatus                   `gorm:"type:text;not null;default:'active'" json:"status"`
	PlanLevel         PlanLevel                    `gorm:"type:text;not null;default:'free'" json:"plan_level"`
	DefaultValue      Value                        `gorm:"type:jsonb" json:"default_value"`
	PlanValues        datatypes.JSONType[ValueMap] `gorm:"type:jsonb;not null;default:'{}'" json:"plan_values"`
	UserOverrides     datatypes.JSONType[ValueMap] `gorm:"type:jsonb;not null;default:'{}'" json:"user_overrides"`
	TenantOverrides   datatypes.JSONType[ValueMap] `gorm:"type:jsonb;not null;default:'{}'" json:"tenant_overrides"`
	RolloutPercentage int                          `gorm:"not null" json:"rollout_percentage"`
	Metadata          datatypes.JSONMap            `gorm:"type:jsonb" json:"metadata,omitempty"`
	CreatedAt         time.Time                    `gorm:"type:timestamp with time zone;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt         time.Time                    `gorm:"type:timestamp with time zone;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (FeatureFlag) TableName() string {
	return "feature_flags"
}

// NewValueMap wraps m for storage, replacing nil with an empty map.
func NewValueMap(m ValueMap) datatypes.JSONType[ValueMap] {
	if m == nil {
		m = ValueMap{}
	}
	return datatypes.NewJSONType(m)
}

func (f *FeatureFlag) PlanValueMap() ValueMap { return f.PlanValues.Data() }
func (f *FeatureFlag) UserOverrideMap() ValueMap { return f.UserOverrides.Data() }
func (f *FeatureFlag) TenantOverrideMap() ValueMap { return f.TenantOverrides.Data() }

// Clone returns a deep copy so a cached record is never mutated in place.
func (f *FeatureFlag) Clone() *FeatureFlag {
	if f == nil {
		return nil
	}
	out := *f
	out.PlanValues = NewValueMap(f.PlanValueMap().Clone())
	out.UserOverrides = NewValueMap(f.UserOverrideMap().Clone())
	out.TenantOverrides = NewValueMap(f.TenantOverrideMap().Clone())
	if f.Metadata != nil {
		out.Metadata = make(datatypes.JSONMap, len(f.Metadata))
		for k, v := range f.Metadata {
			out.Metadata[k] = v
		}
	}
	return &out
}

// OverrideTarget names the override map an administrative mutation applies to.
type OverrideTarget string

const (
	OverrideUser   OverrideTarget = "user"
	OverrideTenant OverrideTarget = "tenant"
)

// Column returns the jsonb column backing the override map.
func (t OverrideTarget) Column() string {
	if t == OverrideTenant {
		return "tenant_overrides"
	}
	return "user_overrides"
}
