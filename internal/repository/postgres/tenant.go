package postgres

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/kingrain94/entitlement-api/internal/domain"
	"github.com/kingrain94/entitlement-api/internal/repository"
)

type TenantRepository struct {
	writerDB *gorm.DB
	readerDB *gorm.DB
}

func NewTenantRepository(writerDB, readerDB *gorm.DB) *TenantRepository {
	return &TenantRepository{
		writerDB: writerDB,
		readerDB: readerDB,
	}
}

func (r *TenantRepository) Create(ctx context.Context, tenant *domain.Tenant) (*domain.Tenant, error) {
	if err := r.writerDB.WithContext(ctx).Create(tenant).Error; err != nil {
		return nil, err
	}
	return tenant, nil
}

func (r *TenantRepository) GetByID(ctx context.Context, id string) (*domain.Tenant, error) {
	return r.first(ctx, "id = ?", id)
}

// GetBySubdomain also returns soft-deleted tenants so callers can reject them explicitly.
func (r *TenantRepository) GetBySubdomain(ctx context.Context, subdomain string) (*domain.Tenant, error) {
	return r.first(ctx, "subdomain = ?", subdomain)
}

func (r *TenantRepository) GetByName(ctx context.Context, name string) (*domain.Tenant, error) {
	return r.first(ctx, "name = ?", name)
}

func (r *TenantRepository) GetBySchema(ctx context.Context, schema string) (*domain.Tenant, error) {
	return r.first(ctx, `"schema" = ?`, schema)
}

func (r *TenantRepository) first(ctx context.Context, query string, args ...any) (*domain.Tenant, error) {
	var tenant domain.Tenant
	if err := r.readerDB.WithContext(ctx).Where(query, args...).First(&tenant).Error; err != nil {
		return nil, translateError(err)
	}
	return &tenant, nil
}

func (r *TenantRepository) Update(ctx context.Context, tenant *domain.Tenant) error {
	tenant.UpdatedAt = time.Now().UTC()
	return r.writerDB.WithContext(ctx).Save(tenant).Error
}

func (r *TenantRepository) UpdateStatus(ctx context.Context, id string, status domain.TenantStatus) error {
	return r.updateColumns(ctx, id, map[string]any{"status": status})
}

func (r *TenantRepository) SoftDelete(ctx context.Context, id string) error {
	return r.updateColumns(ctx, id, map[string]any{"is_deleted": true})
}

func (r *TenantRepository) updateColumns(ctx context.Context, id string, columns map[string]any) error {
	columns["updated_at"] = time.Now().UTC()
	result := r.writerDB.WithContext(ctx).
		Model(&domain.Tenant{}).
		Scopes(notDeleted).
		Where("id = ?", id).
		Updates(columns)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *TenantRepository) List(ctx context.Context, includeDeleted bool) ([]domain.Tenant, error) {
	query := r.readerDB.WithContext(ctx).Order("name")
	if !includeDeleted {
		query = query.Scopes(notDeleted)
	}

	var tenants []domain.Tenant
	if err := query.Find(&tenants).Error; err != nil {
		return nil, err
	}
	return tenants, nil
}
