package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"

	"github.com/kingrain94/entitlement-api/internal/api/dto"
	"github.com/kingrain94/entitlement-api/internal/domain"
	"github.com/kingrain94/entitlement-api/internal/mocks"
	"github.com/kingrain94/entitlement-api/internal/repository"
	"github.com/kingrain94/entitlement-api/pkg/logger"
)

type TenantServiceTestSuite struct {
	suite.Suite
	mockRepo   *mocks.Repository
	mockTenant *mocks.TenantRepository
	mockSchema *mocks.SchemaBinder
	service    *TenantService
	now        time.Time
}

func (s *TenantServiceTestSuite) SetupTest() {
	s.mockRepo = new(mocks.Repository)
	s.mockTenant = new(mocks.TenantRepository)
	s.mockSchema = new(mocks.SchemaBinder)

	s.mockRepo.On("Tenant").Return(s.mockTenant)
	s.mockRepo.On("Schema").Return(s.mockSchema)

	s.now = time.Date(2025, 7, 1, 12, 0, 0, 0, time.UTC)
	s.service = NewTenantService(s.mockRepo, 500, logger.NewLogger("test"))
	s.service.now = func() time.Time { return s.now }
}

func TestTenantService(t *testing.T) {
	suite.Run(t, new(TenantServiceTestSuite))
}

func (s *TenantServiceTestSuite) expectFree(name, schema, subdomain string) {
	s.mockTenant.On("GetByName", mock.Anything, name).Return(nil, repository.ErrNotFound)
	s.mockTenant.On("GetBySchema", mock.Anything, schema).Return(nil, repository.ErrNotFound)
	if subdomain != "" {
		s.mockTenant.On("GetBySubdomain", mock.Anything, subdomain).Return(nil, repository.ErrNotFound)
	}
}

func (s *TenantServiceTestSuite) TestCreate_StartsTrial() {
	// Arrange
	ctx := context.Background()
	subdomain := "roma"
	req := dto.CreateTenantRequest{Name: "Trattoria Roma", Subdomain: &subdomain}

	s.expectFree("Trattoria Roma", "tenant_trattoria_roma", "roma")
	s.mockSchema.On("EnsureSchema", ctx, "tenant_trattoria_roma").Return(nil)
	s.mockTenant.On("Create", ctx, mock.MatchedBy(func(t *domain.Tenant) bool {
		return t.Status == domain.TenantStatusTrial &&
			t.Schema == "tenant_trattoria_roma" &&
			t.RateLimit == 500 &&
			t.TrialEndDate != nil &&
			t.TrialEndDate.Sub(*t.TrialStartDate) == domain.TrialPeriod
	})).Return(func(_ context.Context, t *domain.Tenant) (*domain.Tenant, error) {
		t.ID = "tenant-1"
		return t, nil
	})

	// Act
	resp, err := s.service.Create(ctx, req)

	// Assert
	s.NoError(err)
	s.Equal("tenant-1", resp.ID)
	s.Equal("trial", resp.Status)
	s.Equal(s.now.Add(15*24*time.Hour), *resp.TrialEndDate)
	s.mockTenant.AssertExpectations(s.T())
	s.mockSchema.AssertExpectations(s.T())
}

func (s *TenantServiceTestSuite) TestCreate_NameTaken() {
	// Arrange
	ctx := context.Background()
	s.mockTenant.On("GetByName", ctx, "Trattoria Roma").Return(&domain.Tenant{ID: "other"}, nil)

	// Act
	_, err := s.service.Create(ctx, dto.CreateTenantRequest{Name: "Trattoria Roma"})

	// Assert
	s.ErrorIs(err, ErrTenantExists)
	s.mockSchema.AssertNotCalled(s.T(), "EnsureSchema", mock.Anything, mock.Anything)
	s.mockTenant.AssertNotCalled(s.T(), "Create", mock.Anything, mock.Anything)
}

func (s *TenantServiceTestSuite) TestCreate_InvalidSchema() {
	_, err := s.service.Create(context.Background(), dto.CreateTenantRequest{Name: "Roma", Schema: "Bad-Schema"})
	s.ErrorIs(err, ErrInvalidSchemaName)

	_, err = s.service.Create(context.Background(), dto.CreateTenantRequest{Name: "!!!"})
	s.ErrorIs(err, ErrInvalidSchemaName)
}

func (s *TenantServiceTestSuite) TestCreate_SchemaFailure() {
	// Arrange
	ctx := context.Background()
	s.expectFree("Roma", "tenant_roma", "")
	s.mockSchema.On("EnsureSchema", ctx, "tenant_roma").Return(errors.New("permission denied"))

	// Act
	_, err := s.service.Create(ctx, dto.CreateTenantRequest{Name: "Roma"})

	// Assert
	s.Error(err)
	s.mockTenant.AssertNotCalled(s.T(), "Create", mock.Anything, mock.Anything)
}

func (s *TenantServiceTestSuite) TestGetByID() {
	ctx := context.Background()
	s.mockTenant.On("GetByID", ctx, "t1").Return(&domain.Tenant{ID: "t1", Name: "Roma"}, nil)
	s.mockTenant.On("GetByID", ctx, "gone").Return(&domain.Tenant{ID: "gone", IsDeleted: true}, nil)
	s.mockTenant.On("GetByID", ctx, "missing").Return(nil, repository.ErrNotFound)

	tenant, err := s.service.GetByID(ctx, "t1")
	s.NoError(err)
	s.Equal("Roma", tenant.Name)

	_, err = s.service.GetByID(ctx, "gone")
	s.ErrorIs(err, ErrTenantNotFound)

	_, err = s.service.GetByID(ctx, "missing")
	s.ErrorIs(err, ErrTenantNotFound)
}

func (s *TenantServiceTestSuite) TestList() {
	ctx := context.Background()
	s.mockTenant.On("List", ctx, false).Return([]domain.Tenant{{ID: "t1"}, {ID: "t2"}}, nil)

	tenants, err := s.service.List(ctx)

	s.NoError(err)
	s.Len(tenants, 2)
	s.Equal("t2", tenants[1].ID)
}

func (s *TenantServiceTestSuite) TestUpdate_ChangesSubdomain() {
	// Arrange
	ctx := context.Background()
	old := "roma"
	s.mockTenant.On("GetByID", ctx, "t1").Return(&domain.Tenant{ID: "t1", Name: "Roma", Schema: "tenant_roma", Subdomain: &old}, nil)
	s.mockTenant.On("GetBySubdomain", ctx, "roma-centro").Return(nil, repository.ErrNotFound)
	s.mockTenant.On("Update", ctx, mock.MatchedBy(func(t *domain.Tenant) bool {
		return t.SubdomainValue() == "roma-centro" && t.RateLimit == 50
	})).Return(nil)

	next, limit := "roma-centro", 50

	// Act
	resp, err := s.service.Update(ctx, "t1", dto.UpdateTenantRequest{Subdomain: &next, RateLimit: &limit})

	// Assert
	s.NoError(err)
	s.Equal("roma-centro", *resp.Subdomain)
	s.mockTenant.AssertNotCalled(s.T(), "GetByName", mock.Anything, mock.Anything)
	s.mockSchema.AssertNotCalled(s.T(), "EnsureSchema", mock.Anything, mock.Anything)
}

func (s *TenantServiceTestSuite) TestUpdate_SubdomainTaken() {
	ctx := context.Background()
	s.mockTenant.On("GetByID", ctx, "t1").Return(&domain.Tenant{ID: "t1", Name: "Roma", Schema: "tenant_roma"}, nil)
	s.mockTenant.On("GetBySubdomain", ctx, "milano").Return(&domain.Tenant{ID: "t2"}, nil)

	next := "milano"
	_, err := s.service.Update(ctx, "t1", dto.UpdateTenantRequest{Subdomain: &next})

	s.ErrorIs(err, ErrTenantExists)
	s.mockTenant.AssertNotCalled(s.T(), "Update", mock.Anything, mock.Anything)
}

func (s *TenantServiceTestSuite) TestUpdateStatus() {
	ctx := context.Background()
	s.mockTenant.On("UpdateStatus", ctx, "t1", domain.TenantStatusSuspended).Return(nil)
	s.mockTenant.On("UpdateStatus", ctx, "missing", domain.TenantStatusActive).Return(repository.ErrNotFound)

	s.NoError(s.service.UpdateStatus(ctx, "t1", "suspended"))
	s.ErrorIs(s.service.UpdateStatus(ctx, "missing", "active"), ErrTenantNotFound)
	s.ErrorIs(s.service.UpdateStatus(ctx, "t1", "frozen"), ErrInvalidTenantStatus)
}

func (s *TenantServiceTestSuite) TestDelete() {
	ctx := context.Background()
	s.mockTenant.On("SoftDelete", ctx, "t1").Return(nil)
	s.mockTenant.On("SoftDelete", ctx, "missing").Return(repository.ErrNotFound)

	s.NoError(s.service.Delete(ctx, "t1"))
	s.ErrorIs(s.service.Delete(ctx, "missing"), ErrTenantNotFound)
}

func TestSchemaForName(t *testing.T) {
	assert.Equal(t, "tenant_trattoria_roma", SchemaForName("Trattoria Roma"))
	assert.Equal(t, "tenant_caf_42", SchemaForName("  Café 42!"))
	assert.Len(t, SchemaForName("a very long restaurant name that keeps going well past the postgres identifier limit"), 63)
}
