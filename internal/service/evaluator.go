package service

import (
	"fmt"

	"github.com/cespare/xxhash/v2"

	"github.com/kingrain94/entitlement-api/internal/domain"
)

// RolloutBucket places identifier in one of 100 stable buckets for flagKey.
func RolloutBucket(flagKey, identifier string) uint64 {
	return xxhash.Sum64String(flagKey+":"+identifier) % 100
}

// InRollout reports whether identifier falls inside the rollout percentage of flagKey.
// Partial rollouts exclude requests with no identifier.
func InRollout(flagKey, identifier string, percentage int) bool {
	switch {
	case percentage >= 100:
		return true
	case percentage <= 0:
		return false
	case identifier == "":
		return false
	}
	return RolloutBucket(flagKey, identifier) < uint64(percentage)
}

// Evaluate resolves the effective value of flag for ec. The first applicable rule wins:
// status, rollout, user override, tenant override, plan value, plan floor, default.
// A nil flag evaluates to undefined.
func Evaluate(flag *domain.FeatureFlag, ec domain.EvaluationContext) (domain.Value, error) {
	if flag == nil {
		return domain.Undefined(), nil
	}
	if flag.Status != domain.FlagStatusActive {
		return flag.DefaultValue, nil
	}

	if !InRollout(flag.Key, ec.RolloutIdentifier(), flag.RolloutPercentage) {
		return flag.DefaultValue, nil
	}

	if v, ok := flag.UserOverrideMap().Lookup(ec.UserID); ok {
		return v, nil
	}
	if v, ok := flag.TenantOverrideMap().Lookup(ec.TenantID); ok {
		return v, nil
	}

	plan := ec.EffectivePlan()
	planRank, ok := plan.Rank()
	if !ok {
		return domain.Undefined(), fmt.Errorf("%w: context plan %q", ErrInvalidPlanLevel, plan)
	}

	if v, ok := flag.PlanValueMap().Lookup(string(plan)); ok {
		return v, nil
	}

	floorRank, ok := flag.PlanLevel.Rank()
	if !ok {
		return domain.Undefined(), fmt.Errorf("%w: flag %s requires %q", ErrInvalidPlanLevel, flag.Key, flag.PlanLevel)
	}
	if planRank < floorRank {
		return domain.Bool(false), nil
	}

	if !flag.DefaultValue.IsDefined() {
		return domain.Bool(true), nil
	}
	return flag.DefaultValue, nil
}
