package postgres

import (
	"gorm.io/gorm"

	"github.com/kingrain94/entitlement-api/internal/config"
	"github.com/kingrain94/entitlement-api/internal/domain"
	"github.com/kingrain94/entitlement-api/internal/repository"
)

type postgresRepository struct {
	writerDB   *gorm.DB
	readerDB   *gorm.DB
	tenantRepo repository.TenantRepository
	flagRepo   repository.FeatureFlagRepository
	schemaMgr  repository.SchemaBinder
}

func NewPostgresRepository(dbConnections *config.DatabaseConnections) repository.PostgresRepository {
	return &postgresRepository{
		writerDB:   dbConnections.Writer,
		readerDB:   dbConnections.Reader,
		tenantRepo: NewTenantRepository(dbConnections.Writer, dbConnections.Reader),
		flagRepo:   NewFeatureFlagRepository(dbConnections.Writer, dbConnections.Reader),
		schemaMgr:  NewSchemaManager(dbConnections.Writer),
	}
}

func (r *postgresRepository) Tenant() repository.TenantRepository {
	return r.tenantRepo
}

func (r *postgresRepository) FeatureFlag() repository.FeatureFlagRepository {
	return r.flagRepo
}

func (r *postgresRepository) Schema() repository.SchemaBinder {
	return r.schemaMgr
}

// Migrate creates or updates the shared tenant and feature flag tables.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&domain.Tenant{}, &domain.FeatureFlag{})
}
