package domain

import (
	"slices"
	"time"
)

type FlagChangeAction string

const (
	FlagChangeUpsert               FlagChangeAction = "upsert"
	FlagChangeSetUserOverride      FlagChangeAction = "set_user_override"
	FlagChangeRemoveUserOverride   FlagChangeAction = "remove_user_override"
	FlagChangeSetTenantOverride    FlagChangeAction = "set_tenant_override"
	FlagChangeRemoveTenantOverride FlagChangeAction = "remove_tenant_override"
)

var ValidFlagChangeActions = []FlagChangeAction{
	FlagChangeUpsert,
	FlagChangeSetUserOverride,
	FlagChangeRemoveUserOverride,
	FlagChangeSetTenantOverride,
	FlagChangeRemoveTenantOverride,
}

func IsValidFlagChangeAction(action string) bool {
	return slices.Contains(ValidFlagChangeActions, FlagChangeAction(action))
}

// OverrideAction returns the change action for setting or removing an override.
func OverrideAction(target OverrideTarget, remove bool) FlagChangeAction {
	switch {
	case target == OverrideTenant && remove:
		return FlagChangeRemoveTenantOverride
	case target == OverrideTenant:
		return FlagChangeSetTenantOverride
	case remove:
		return FlagChangeRemoveUserOverride
	default:
		return FlagChangeSetUserOverride
	}
}

// FlagChange records one administrative mutation of a feature flag.
type FlagChange struct {
	ID        string           `json:"id"`
	FlagKey   string           `json:"flag_key"`
	Action    FlagChangeAction `json:"action"`
	SubjectID string           `json:"subject_id,omitempty"`
	Value     Value            `json:"value"`
	ActorID   string           `json:"actor_id,omitempty"`
	TenantID  string           `json:"tenant_id,omitempty"`
	Timestamp time.Time        `json:"timestamp"`
}

// Affects reports whether the change can alter what the given user or tenant sees.
func (c *FlagChange) Affects(userID, tenantID string) bool {
	switch c.Action {
	case FlagChangeSetUserOverride, FlagChangeRemoveUserOverride:
		return userID != "" && c.SubjectID == userID
	case FlagChangeSetTenantOverride, FlagChangeRemoveTenantOverride:
		return tenantID != "" && c.SubjectID == tenantID
	default:
		return true
	}
}

// FlagChangeFilter narrows a history search. Zero fields match everything.
type FlagChangeFilter struct {
	FlagKey   string           `form:"-"`
	Action    FlagChangeAction `form:"action"`
	SubjectID string           `form:"subject_id"`
	ActorID   string           `form:"actor_id"`
	StartTime time.Time        `form:"-"`
	EndTime   time.Time        `form:"-"`
	Page      int              `form:"page"`
	PageSize  int              `form:"page_size"`
}
