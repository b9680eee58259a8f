package config

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/kingrain94/entitlement-api/internal/domain"
)

//go:embed feature_catalog.yaml
var defaultFeatureCatalog []byte

var fallbackPlans = []string{"Premium", "Enterprise"}

type CatalogFeature struct {
	Key               string         `yaml:"key"`
	Name              string         `yaml:"name"`
	Description       string         `yaml:"description"`
	PlanLevel         string         `yaml:"plan_level"`
	AvailableInPlans  []string       `yaml:"available_in_plans"`
	DefaultValue      any            `yaml:"default_value"`
	PlanValues        map[string]any `yaml:"plan_values"`
	RolloutPercentage *int           `yaml:"rollout_percentage"`
}

// FeatureCatalog is the static flag to plan name table used in upgrade prompts.
type FeatureCatalog struct {
	DefaultPlans []string         `yaml:"default_plans"`
	Features     []CatalogFeature `yaml:"features"`

	byKey map[string]*CatalogFeature
}

// LoadFeatureCatalog reads the catalog at path, or the embedded catalog when path is empty.
func LoadFeatureCatalog(path string) (*FeatureCatalog, error) {
	data := defaultFeatureCatalog
	if path != "" {
		var err error
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read feature catalog: %w", err)
		}
	}
	return ParseFeatureCatalog(data)
}

func ParseFeatureCatalog(data []byte) (*FeatureCatalog, error) {
	var catalog FeatureCatalog
	if err := yaml.Unmarshal(data, &catalog); err != nil {
		return nil, fmt.Errorf("failed to parse feature catalog: %w", err)
	}

	catalog.byKey = make(map[string]*CatalogFeature, len(catalog.Features))
	for i := range catalog.Features {
		f := &catalog.Features[i]
		if f.Key == "" {
			return nil, fmt.Errorf("feature catalog entry %d has no key", i)
		}
		if f.PlanLevel != "" && !domain.IsValidPlanLevel(f.PlanLevel) {
			return nil, fmt.Errorf("feature %q has invalid plan level %q", f.Key, f.PlanLevel)
		}
		catalog.byKey[f.Key] = f
	}
	return &catalog, nil
}

// AvailableInPlans returns the plan names that unlock key.
func (c *FeatureCatalog) AvailableInPlans(key string) []string {
	if c != nil {
		if f, ok := c.byKey[key]; ok && len(f.AvailableInPlans) > 0 {
			return f.AvailableInPlans
		}
		if len(c.DefaultPlans) > 0 {
			return c.DefaultPlans
		}
	}
	return fallbackPlans
}

// SeedFlags converts the catalog entries into flag definitions.
func (c *FeatureCatalog) SeedFlags() ([]*domain.FeatureFlag, error) {
	flags := make([]*domain.FeatureFlag, 0, len(c.Features))
	for _, f := range c.Features {
		defaultValue, err := toValue(f.DefaultValue)
		if err != nil {
			return nil, fmt.Errorf("feature %q default_value: %w", f.Key, err)
		}

		planValues := domain.ValueMap{}
		for plan, raw := range f.PlanValues {
			if !domain.IsValidPlanLevel(plan) {
				return nil, fmt.Errorf("feature %q has plan value for unknown plan %q", f.Key, plan)
			}
			v, err := toValue(raw)
			if err != nil {
				return nil, fmt.Errorf("feature %q plan value %q: %w", f.Key, plan, err)
			}
			planValues[plan] = v
		}

		rollout := 100
		if f.RolloutPercentage != nil {
			rollout = *f.RolloutPercentage
		}
		planLevel := domain.PlanLevel(f.PlanLevel)
		if planLevel == "" {
			planLevel = domain.PlanFree
		}

		flags = append(flags, &domain.FeatureFlag{
			Key:               f.Key,
			Name:              f.Name,
			Description:       f.Description,
			Status:            domain.FlagStatusActive,
			PlanLevel:         planLevel,
			DefaultValue:      defaultValue,
			PlanValues:        domain.NewValueMap(planValues),
			UserOverrides:     domain.NewValueMap(nil),
			TenantOverrides:   domain.NewValueMap(nil),
			RolloutPercentage: rollout,
		})
	}
	return flags, nil
}

func toValue(raw any) (domain.Value, error) {
	if raw == nil {
		return domain.Undefined(), nil
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return domain.Value{}, err
	}
	var v domain.Value
	if err := v.UnmarshalJSON(data); err != nil {
		return domain.Value{}, err
	}
	return v, nil
}
