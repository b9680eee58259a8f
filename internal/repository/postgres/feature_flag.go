package postgres

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/kingrain94/entitlement-api/internal/domain"
	"github.com/kingrain94/entitlement-api/internal/repository"
)

// definitionColumns are rewritten by an upsert. Override maps are never part of it.
var definitionColumns = []string{
	"name",
	"description",
	"status",
	"plan_level",
	"default_value",
	"plan_values",
	"rollout_percentage",
	"metadata",
}

// nextUpdatedAt stamps a write after the row lock is held and never moves a row's
// updated_at backwards, so the latest committed version always carries the largest stamp.
const nextUpdatedAt = `GREATEST(clock_timestamp(), "feature_flags"."updated_at" + interval '1 microsecond')`

type FeatureFlagRepository struct {
	writerDB *gorm.DB
	readerDB *gorm.DB
}

func NewFeatureFlagRepository(writerDB, readerDB *gorm.DB) *FeatureFlagRepository {
	return &FeatureFlagRepository{
		writerDB: writerDB,
		readerDB: readerDB,
	}
}

func (r *FeatureFlagRepository) GetByKey(ctx context.Context, key string) (*domain.FeatureFlag, error) {
	return r.getByKey(ctx, r.readerDB, key)
}

func (r *FeatureFlagRepository) getByKey(ctx context.Context, db *gorm.DB, key string) (*domain.FeatureFlag, error) {
	var flag domain.FeatureFlag
	if err := db.WithContext(ctx).Where("key = ?", key).First(&flag).Error; err != nil {
		return nil, translateError(err)
	}
	return &flag, nil
}

func (r *FeatureFlagRepository) List(ctx context.Context) ([]*domain.FeatureFlag, error) {
	var flags []*domain.FeatureFlag
	if err := r.readerDB.WithContext(ctx).Order("key").Find(&flags).Error; err != nil {
		return nil, err
	}
	return flags, nil
}

func (r *FeatureFlagRepository) Upsert(ctx context.Context, flag *domain.FeatureFlag) (*domain.FeatureFlag, error) {
	record := *flag
	record.ID = ""
	record.PlanValues = domain.NewValueMap(flag.PlanValueMap())
	// Only used when the row is inserted; the conflict branch leaves stored overrides alone.
	record.UserOverrides = domain.NewValueMap(nil)
	record.TenantOverrides = domain.NewValueMap(nil)

	err := r.writerDB.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoUpdates: append(clause.AssignmentColumns(definitionColumns),
				clause.Assignment{Column: clause.Column{Name: "updated_at"}, Value: gorm.Expr(nextUpdatedAt)}),
		}).
		Create(&record).Error
	if err != nil {
		return nil, fmt.Errorf("failed to upsert feature flag %s: %w", flag.Key, err)
	}

	// Read back from the writer so the returned record carries the stored overrides.
	return r.getByKey(ctx, r.writerDB, flag.Key)
}

func (r *FeatureFlagRepository) SetOverride(ctx context.Context, target domain.OverrideTarget, key, subjectID string, value domain.Value) (*domain.FeatureFlag, error) {
	raw, err := value.MarshalJSON()
	if err != nil {
		return nil, err
	}
	column := target.Column()
	expr := gorm.Expr(fmt.Sprintf("COALESCE(%s, '{}'::jsonb) || jsonb_build_object(?::text, ?::jsonb)", column), subjectID, string(raw))
	return r.updateOverrides(ctx, key, column, expr)
}

func (r *FeatureFlagRepository) RemoveOverride(ctx context.Context, target domain.OverrideTarget, key, subjectID string) (*domain.FeatureFlag, error) {
	column := target.Column()
	expr := gorm.Expr(fmt.Sprintf("COALESCE(%s, '{}'::jsonb) - ?::text", column), subjectID)
	return r.updateOverrides(ctx, key, column, expr)
}

// updateOverrides applies expr to one override column in a single statement and returns the new row.
func (r *FeatureFlagRepository) updateOverrides(ctx context.Context, key, column string, expr clause.Expr) (*domain.FeatureFlag, error) {
	var flags []*domain.FeatureFlag
	result := r.writerDB.WithContext(ctx).
		Model(&flags).
		Clauses(clause.Returning{}).
		Where("key = ?", key).
		Updates(map[string]any{
			column:       expr,
			"updated_at": gorm.Expr(nextUpdatedAt),
		})
	if result.Error != nil {
		return nil, fmt.Errorf("failed to update %s for %s: %w", column, key, result.Error)
	}
	if result.RowsAffected == 0 || len(flags) == 0 {
		return nil, repository.ErrNotFound
	}
	return flags[0], nil
}
