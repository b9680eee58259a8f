package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kingrain94/entitlement-api/internal/api/dto"
	"github.com/kingrain94/entitlement-api/internal/domain"
	"github.com/kingrain94/entitlement-api/internal/repository"
	"github.com/kingrain94/entitlement-api/pkg/logger"
)

const schemaPrefix = "tenant_"

var (
	schemaNamePattern = regexp.MustCompile(`^[a-z_][a-z0-9_]{0,62}$`)
	nonSlugChars      = regexp.MustCompile(`[^a-z0-9]+`)
)

type TenantService struct {
	repo             repository.Repository
	logger           *logger.Logger
	defaultRateLimit int
	now              func() time.Time
}

func NewTenantService(repo repository.Repository, defaultRateLimit int, logger *logger.Logger) *TenantService {
	return &TenantService{
		repo:             repo,
		logger:           logger,
		defaultRateLimit: defaultRateLimit,
		now:              time.Now,
	}
}

// SchemaForName derives the storage schema of a tenant from its name.
func SchemaForName(name string) string {
	slug := strings.Trim(nonSlugChars.ReplaceAllString(strings.ToLower(name), "_"), "_")
	schema := schemaPrefix + slug
	if len(schema) > 63 {
		schema = strings.TrimRight(schema[:63], "_")
	}
	return schema
}

// Create onboards a tenant in trial with a fresh schema.
func (s *TenantService) Create(ctx context.Context, req dto.CreateTenantRequest) (*dto.TenantResponse, error) {
	tenant := req.ToTenant()
	if tenant.Schema == "" {
		tenant.Schema = SchemaForName(tenant.Name)
	}
	if !schemaNamePattern.MatchString(tenant.Schema) || tenant.Schema == schemaPrefix {
		return nil, fmt.Errorf("%w: %q", ErrInvalidSchemaName, tenant.Schema)
	}
	if tenant.RateLimit <= 0 {
		tenant.RateLimit = s.defaultRateLimit
	}
	tenant.StartTrial(s.now())

	if err := s.ensureUnique(ctx, tenant, ""); err != nil {
		return nil, err
	}

	if err := s.repo.Schema().EnsureSchema(ctx, tenant.Schema); err != nil {
		return nil, fmt.Errorf("failed to create schema %s: %w", tenant.Schema, err)
	}

	createdTenant, err := s.repo.Tenant().Create(ctx, tenant)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Tenant onboarded",
		zap.String("tenant_id", createdTenant.ID),
		zap.String("schema", createdTenant.Schema))
	return dto.FromTenant(createdTenant), nil
}

// ensureUnique rejects a tenant whose name, schema or subdomain belongs to another tenant.
func (s *TenantService) ensureUnique(ctx context.Context, tenant *domain.Tenant, selfID string) error {
	checks := []struct {
		field  string
		value  string
		lookup func(context.Context, string) (*domain.Tenant, error)
	}{
		{"name", tenant.Name, s.repo.Tenant().GetByName},
		{"schema", tenant.Schema, s.repo.Tenant().GetBySchema},
		{"subdomain", tenant.SubdomainValue(), s.repo.Tenant().GetBySubdomain},
	}

	for _, check := range checks {
		if check.value == "" {
			continue
		}
		existing, err := check.lookup(ctx, check.value)
		if errors.Is(err, repository.ErrNotFound) {
			continue
		}
		if err != nil {
			return err
		}
		if existing.ID != selfID {
			return fmt.Errorf("%w: %s %q is taken", ErrTenantExists, check.field, check.value)
		}
	}
	return nil
}

func (s *TenantService) GetByID(ctx context.Context, id string) (*domain.Tenant, error) {
	tenant, err := s.repo.Tenant().GetByID(ctx, id)
	if err != nil {
		return nil, mapTenantError(err)
	}
	if tenant.IsDeleted {
		return nil, ErrTenantNotFound
	}
	return tenant, nil
}

func (s *TenantService) List(ctx context.Context) ([]dto.TenantResponse, error) {
	tenants, err := s.repo.Tenant().List(ctx, false)
	if err != nil {
		return []dto.TenantResponse{}, err
	}
	return dto.FromTenants(tenants), nil
}

// Update applies req and re-validates a changed schema or subdomain.
func (s *TenantService) Update(ctx context.Context, id string, req dto.UpdateTenantRequest) (*dto.TenantResponse, error) {
	tenant, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	oldSchema, oldSubdomain, oldName := tenant.Schema, tenant.SubdomainValue(), tenant.Name
	req.ApplyTo(tenant)

	if tenant.Schema != oldSchema && !schemaNamePattern.MatchString(tenant.Schema) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidSchemaName, tenant.Schema)
	}

	changed := &domain.Tenant{}
	if tenant.Name != oldName {
		changed.Name = tenant.Name
	}
	if tenant.Schema != oldSchema {
		changed.Schema = tenant.Schema
	}
	if tenant.SubdomainValue() != oldSubdomain {
		changed.Subdomain = tenant.Subdomain
	}
	if err := s.ensureUnique(ctx, changed, tenant.ID); err != nil {
		return nil, err
	}

	if tenant.Schema != oldSchema {
		if err := s.repo.Schema().EnsureSchema(ctx, tenant.Schema); err != nil {
			return nil, fmt.Errorf("failed to create schema %s: %w", tenant.Schema, err)
		}
	}

	if err := s.repo.Tenant().Update(ctx, tenant); err != nil {
		return nil, err
	}
	return dto.FromTenant(tenant), nil
}

// UpdateStatus records a lifecycle transition driven by the billing side.
func (s *TenantService) UpdateStatus(ctx context.Context, id, status string) error {
	if !domain.IsValidTenantStatus(status) {
		return fmt.Errorf("%w: %q", ErrInvalidTenantStatus, status)
	}
	if err := s.repo.Tenant().UpdateStatus(ctx, id, domain.TenantStatus(status)); err != nil {
		return mapTenantError(err)
	}
	s.logger.Info("Tenant status changed", zap.String("tenant_id", id), zap.String("status", status))
	return nil
}

// Delete soft-deletes the tenant. Its schema is kept.
func (s *TenantService) Delete(ctx context.Context, id string) error {
	return mapTenantError(s.repo.Tenant().SoftDelete(ctx, id))
}

func mapTenantError(err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return ErrTenantNotFound
	}
	return err
}
