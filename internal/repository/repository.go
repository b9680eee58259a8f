package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/kingrain94/entitlement-api/internal/domain"
)

var ErrNotFound = errors.New("record not found")

//go:generate mockery --name TenantRepository --output ../mocks
type TenantRepository interface {
	Create(ctx context.Context, tenant *domain.Tenant) (*domain.Tenant, error)
	GetByID(ctx context.Context, id string) (*domain.Tenant, error)
	GetBySubdomain(ctx context.Context, subdomain string) (*domain.Tenant, error)
	GetByName(ctx context.Context, name string) (*domain.Tenant, error)
	GetBySchema(ctx context.Context, schema string) (*domain.Tenant, error)
	Update(ctx context.Context, tenant *domain.Tenant) error
	UpdateStatus(ctx context.Context, id string, status domain.TenantStatus) error
	SoftDelete(ctx context.Context, id string) error
	List(ctx context.Context, includeDeleted bool) ([]domain.Tenant, error)
}

//go:generate mockery --name FeatureFlagRepository --output ../mocks
type FeatureFlagRepository interface {
	GetByKey(ctx context.Context, key string) (*domain.FeatureFlag, error)
	List(ctx context.Context) ([]*domain.FeatureFlag, error)
	// Upsert creates or replaces the definition keyed by flag.Key, leaving overrides untouched.
	Upsert(ctx context.Context, flag *domain.FeatureFlag) (*domain.FeatureFlag, error)
	SetOverride(ctx context.Context, target domain.OverrideTarget, key, subjectID string, value domain.Value) (*domain.FeatureFlag, error)
	RemoveOverride(ctx context.Context, target domain.OverrideTarget, key, subjectID string) (*domain.FeatureFlag, error)
}

//go:generate mockery --name SchemaBinder --output ../mocks
// SchemaBinder hands out connections bound to one tenant schema.
type SchemaBinder interface {
	// Bind checks out a connection whose search_path is schema. release must be called exactly once.
	Bind(ctx context.Context, schema string) (db *gorm.DB, release func(), err error)
	EnsureSchema(ctx context.Context, schema string) error
}

//go:generate mockery --name FlagChangeRepository --output ../mocks
type FlagChangeRepository interface {
	Index(ctx context.Context, change *domain.FlagChange) error
	BulkIndex(ctx context.Context, changes []domain.FlagChange) error
	Search(ctx context.Context, filter *domain.FlagChangeFilter) ([]domain.FlagChange, error)
	ListBefore(ctx context.Context, before time.Time, limit int) ([]domain.FlagChange, error)
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}

type PostgresRepository interface {
	Tenant() TenantRepository
	FeatureFlag() FeatureFlagRepository
	Schema() SchemaBinder
}

//go:generate mockery --name Repository --output ../mocks
type Repository interface {
	PostgresRepository
	FlagHistory() FlagChangeRepository
}
