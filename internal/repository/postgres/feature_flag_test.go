package postgres

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kingrain94/entitlement-api/internal/domain"
	"github.com/kingrain94/entitlement-api/internal/repository"
)

var flagColumns = []string{
	"id", "key", "status", "plan_level", "default_value",
	"plan_values", "user_overrides", "tenant_overrides", "rollout_percentage",
}

func TestFeatureFlagRepository_List(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewFeatureFlagRepository(db, db)

	mock.ExpectQuery(`SELECT \* FROM "feature_flags" ORDER BY key`).
		WillReturnRows(sqlmock.NewRows(flagColumns).
			AddRow("f1", "api_access", "active", "basic", []byte("false"), []byte(`{"premium":true}`), []byte(`{}`), []byte(`{}`), 100).
			AddRow("f2", "max_menu_items", "active", "free", []byte("25"), []byte(`{"enterprise":500}`), []byte(`{"u1":1000}`), []byte(`{}`), 100))

	flags, err := repo.List(context.Background())

	require.NoError(t, err)
	require.Len(t, flags, 2)
	assert.Equal(t, domain.PlanBasic, flags[0].PlanLevel)
	premium, ok := flags[0].PlanValueMap().Lookup("premium")
	require.True(t, ok)
	assert.True(t, premium.Equal(domain.Bool(true)))
	assert.True(t, flags[1].DefaultValue.Equal(domain.Number(25)))
	override, ok := flags[1].UserOverrideMap().Lookup("u1")
	require.True(t, ok)
	assert.True(t, override.Equal(domain.Number(1000)))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFeatureFlagRepository_GetByKey_NotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewFeatureFlagRepository(db, db)

	mock.ExpectQuery(`SELECT \* FROM "feature_flags" WHERE key = \$1`).
		WillReturnRows(sqlmock.NewRows(flagColumns))

	_, err := repo.GetByKey(context.Background(), "ghost")

	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestFeatureFlagRepository_SetOverride(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewFeatureFlagRepository(db, db)

	mock.ExpectQuery(`UPDATE "feature_flags" SET "tenant_overrides"=COALESCE\(tenant_overrides, '\{\}'::jsonb\) \|\| jsonb_build_object\(\$1::text, \$2::jsonb\),"updated_at"=GREATEST\(clock_timestamp\(\), "feature_flags"."updated_at" \+ interval '1 microsecond'\) WHERE key = \$3 RETURNING \*`).
		WithArgs("tenant-7", "true", "custom_branding").
		WillReturnRows(sqlmock.NewRows(flagColumns).
			AddRow("f3", "custom_branding", "active", "premium", []byte("false"), []byte(`{}`), []byte(`{}`), []byte(`{"tenant-7":true}`), 100))

	flag, err := repo.SetOverride(context.Background(), domain.OverrideTenant, "custom_branding", "tenant-7", domain.Bool(true))

	require.NoError(t, err)
	v, ok := flag.TenantOverrideMap().Lookup("tenant-7")
	require.True(t, ok)
	assert.True(t, v.Truthy())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFeatureFlagRepository_RemoveOverride_NotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewFeatureFlagRepository(db, db)

	mock.ExpectQuery(`UPDATE "feature_flags" SET "updated_at"=GREATEST\(.+\),"user_overrides"=COALESCE\(user_overrides, '\{\}'::jsonb\) - \$1::text WHERE key = \$2`).
		WithArgs("u1", "ghost").
		WillReturnRows(sqlmock.NewRows(flagColumns))

	_, err := repo.RemoveOverride(context.Background(), domain.OverrideUser, "ghost", "u1")

	assert.ErrorIs(t, err, repository.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFeatureFlagRepository_SetOverride_RejectsUnencodableValue(t *testing.T) {
	db, _ := newMockDB(t)
	repo := NewFeatureFlagRepository(db, db)

	_, err := repo.SetOverride(context.Background(), domain.OverrideUser, "max_menu_items", "u1", domain.Undefined())

	assert.Error(t, err)
}

// lookup returns the stored value for key, undefined when absent.
func lookup(m domain.ValueMap, key string) domain.Value {
	v, _ := m.Lookup(key)
	return v
}
