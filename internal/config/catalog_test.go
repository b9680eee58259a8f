package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kingrain94/entitlement-api/internal/domain"
)

func TestLoadFeatureCatalog_Embedded(t *testing.T) {
	catalog, err := LoadFeatureCatalog("")
	require.NoError(t, err)

	assert.Equal(t, []string{"Premium", "Enterprise"}, catalog.DefaultPlans)
	assert.Equal(t, []string{"Enterprise"}, catalog.AvailableInPlans("multi_location"))
	assert.Equal(t, []string{"Premium", "Enterprise"}, catalog.AvailableInPlans("unknown_flag"))

	flags, err := catalog.SeedFlags()
	require.NoError(t, err)
	require.Len(t, flags, len(catalog.Features))
	for _, f := range flags {
		assert.Equal(t, domain.FlagStatusActive, f.Status, f.Key)
	}
}

func TestParseFeatureCatalog_SeedFlags(t *testing.T) {
	catalog, err := ParseFeatureCatalog([]byte(`
features:
  - key: reservations
    name: Reservations
    default_value: 5
    plan_values:
      premium: 50
      enterprise: "unlimited"
    rollout_percentage: 25
  - key: theme
    default_value: {primary: "#aa0000"}
`))
	require.NoError(t, err)

	flags, err := catalog.SeedFlags()
	require.NoError(t, err)
	require.Len(t, flags, 2)

	reservations := flags[0]
	assert.Equal(t, domain.PlanFree, reservations.PlanLevel)
	assert.Equal(t, 25, reservations.RolloutPercentage)
	assert.True(t, reservations.DefaultValue.Equal(domain.Number(5)))
	premium, ok := reservations.PlanValueMap().Lookup("premium")
	require.True(t, ok)
	assert.True(t, premium.Equal(domain.Number(50)))
	enterprise, _ := reservations.PlanValueMap().Lookup("enterprise")
	assert.True(t, enterprise.Equal(domain.String("unlimited")))
	assert.Empty(t, reservations.UserOverrideMap())
	assert.Empty(t, reservations.TenantOverrideMap())

	theme := flags[1]
	assert.Equal(t, 100, theme.RolloutPercentage)
	assert.Equal(t, domain.KindObject, theme.DefaultValue.Kind())
	assert.JSONEq(t, `{"primary":"#aa0000"}`, theme.DefaultValue.String())

	// No catalog defaults and no per feature plans.
	assert.Equal(t, fallbackPlans, catalog.AvailableInPlans("theme"))
}

func TestParseFeatureCatalog_Rejects(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"missing key", "features:\n  - name: Nameless\n", "has no key"},
		{"invalid plan level", "features:\n  - key: a\n    plan_level: gold\n", `invalid plan level "gold"`},
		{"not yaml", "features: [", "failed to parse feature catalog"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseFeatureCatalog([]byte(tt.yaml))
			assert.ErrorContains(t, err, tt.want)
		})
	}
}

func TestSeedFlags_RejectsUnknownPlanValue(t *testing.T) {
	catalog, err := ParseFeatureCatalog([]byte("features:\n  - key: a\n    plan_values:\n      gold: true\n"))
	require.NoError(t, err)

	_, err = catalog.SeedFlags()
	assert.ErrorContains(t, err, `unknown plan "gold"`)
}

func TestLoadFeatureCatalog_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte("default_plans: [Enterprise]\nfeatures: []\n"), 0o600))

	catalog, err := LoadFeatureCatalog(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"Enterprise"}, catalog.AvailableInPlans("anything"))

	_, err = LoadFeatureCatalog(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "failed to read feature catalog")
}

func TestAvailableInPlans_NilCatalog(t *testing.T) {
	var catalog *FeatureCatalog
	assert.Equal(t, fallbackPlans, catalog.AvailableInPlans("api_access"))
}
