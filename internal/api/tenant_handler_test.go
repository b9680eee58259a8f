package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/kingrain94/entitlement-api/internal/api/dto"
	"github.com/kingrain94/entitlement-api/internal/domain"
	"github.com/kingrain94/entitlement-api/internal/middleware"
	"github.com/kingrain94/entitlement-api/internal/service"
	"github.com/kingrain94/entitlement-api/internal/utils"
)

type TenantHandlerTestSuite struct {
	suite.Suite
	mockService *MockTenantService
	handler     *TenantHandler
}

type MockTenantService struct {
	mock.Mock
}

func (m *MockTenantService) Create(ctx context.Context, req dto.CreateTenantRequest) (*dto.TenantResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dto.TenantResponse), args.Error(1)
}

func (m *MockTenantService) GetByID(ctx context.Context, id string) (*domain.Tenant, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Tenant), args.Error(1)
}

func (m *MockTenantService) List(ctx context.Context) ([]dto.TenantResponse, error) {
	args := m.Called(ctx)
	return args.Get(0).([]dto.TenantResponse), args.Error(1)
}

func (m *MockTenantService) Update(ctx context.Context, id string, req dto.UpdateTenantRequest) (*dto.TenantResponse, error) {
	args := m.Called(ctx, id, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dto.TenantResponse), args.Error(1)
}

func (m *MockTenantService) UpdateStatus(ctx context.Context, id, status string) error {
	args := m.Called(ctx, id, status)
	return args.Error(0)
}

func (m *MockTenantService) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (s *TenantHandlerTestSuite) SetupTest() {
	gin.SetMode(gin.TestMode)
	middleware.RegisterValidators()
	s.mockService = new(MockTenantService)
	s.handler = NewTenantHandler(s.mockService)
}

func TestTenantHandler(t *testing.T) {
	suite.Run(t, new(TenantHandlerTestSuite))
}

func newContext(method, target string, body any) (*gin.Context, *httptest.ResponseRecorder) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, _ := json.Marshal(b)
		reader = bytes.NewReader(raw)
	}
	c.Request, _ = http.NewRequest(method, target, reader)
	c.Request.Header.Set("Content-Type", "application/json")
	return c, w
}

func (s *TenantHandlerTestSuite) TestCreateTenant_Success() {
	// Arrange
	now := time.Now()
	subdomain := "roma"
	req := dto.CreateTenantRequest{Name: "Trattoria Roma", Subdomain: &subdomain}
	expected := &dto.TenantResponse{
		ID:        "tenant1",
		Name:      req.Name,
		Schema:    "tenant_trattoria_roma",
		Subdomain: &subdomain,
		Status:    string(domain.TenantStatusTrial),
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.mockService.On("Create", mock.Anything, req).Return(expected, nil)
	c, w := newContext(http.MethodPost, "/tenants", req)

	// Act
	s.handler.CreateTenant(c)

	// Assert
	s.Equal(http.StatusCreated, w.Code)
	var response dto.TenantResponse
	s.NoError(json.Unmarshal(w.Body.Bytes(), &response))
	s.Equal("tenant1", response.ID)
	s.Equal("trial", response.Status)
	s.Equal("tenant_trattoria_roma", response.Schema)
	s.mockService.AssertExpectations(s.T())
}

func (s *TenantHandlerTestSuite) TestCreateTenant_ValidationError() {
	c, w := newContext(http.MethodPost, "/tenants", `{"subdomain": "roma"}`)

	s.handler.CreateTenant(c)

	s.Equal(http.StatusBadRequest, w.Code)
	var response dto.Error
	s.NoError(json.Unmarshal(w.Body.Bytes(), &response))
	s.Equal("Field 'name' is required", response.Error)
	s.mockService.AssertNotCalled(s.T(), "Create", mock.Anything, mock.Anything)
}

func (s *TenantHandlerTestSuite) TestCreateTenant_Conflict() {
	req := dto.CreateTenantRequest{Name: "Trattoria Roma"}
	s.mockService.On("Create", mock.Anything, req).Return(nil, service.ErrTenantExists)
	c, w := newContext(http.MethodPost, "/tenants", req)

	s.handler.CreateTenant(c)

	s.Equal(http.StatusConflict, w.Code)
}

func (s *TenantHandlerTestSuite) TestListTenants_Success() {
	now := time.Now()
	s.mockService.On("List", mock.Anything).Return([]dto.TenantResponse{
		{ID: "tenant1", Name: "Tenant 1", CreatedAt: now, UpdatedAt: now},
		{ID: "tenant2", Name: "Tenant 2", CreatedAt: now, UpdatedAt: now},
	}, nil)
	c, w := newContext(http.MethodGet, "/tenants", nil)

	s.handler.ListTenants(c)

	s.Equal(http.StatusOK, w.Code)
	var response []dto.TenantResponse
	s.NoError(json.Unmarshal(w.Body.Bytes(), &response))
	s.Len(response, 2)
	s.Equal("tenant1", response[0].ID)
}

func (s *TenantHandlerTestSuite) TestGetTenant() {
	s.mockService.On("GetByID", mock.Anything, "tenant1").Return(&domain.Tenant{ID: "tenant1", Name: "Roma", Status: domain.TenantStatusActive}, nil)
	s.mockService.On("GetByID", mock.Anything, "ghost").Return(nil, service.ErrTenantNotFound)

	c, w := newContext(http.MethodGet, "/tenants/tenant1", nil)
	c.Params = gin.Params{{Key: "id", Value: "tenant1"}}
	s.handler.GetTenant(c)
	s.Equal(http.StatusOK, w.Code)
	var response dto.TenantResponse
	s.NoError(json.Unmarshal(w.Body.Bytes(), &response))
	s.Equal("active", response.Status)

	c, w = newContext(http.MethodGet, "/tenants/ghost", nil)
	c.Params = gin.Params{{Key: "id", Value: "ghost"}}
	s.handler.GetTenant(c)
	s.Equal(http.StatusNotFound, w.Code)
}

func (s *TenantHandlerTestSuite) TestUpdateTenant() {
	name := "Roma Centro"
	req := dto.UpdateTenantRequest{Name: &name}
	s.mockService.On("Update", mock.Anything, "tenant1", req).Return(&dto.TenantResponse{ID: "tenant1", Name: name}, nil)
	c, w := newContext(http.MethodPut, "/tenants/tenant1", req)
	c.Params = gin.Params{{Key: "id", Value: "tenant1"}}

	s.handler.UpdateTenant(c)

	s.Equal(http.StatusOK, w.Code)
	s.mockService.AssertExpectations(s.T())
}

func (s *TenantHandlerTestSuite) TestUpdateTenantStatus() {
	s.mockService.On("UpdateStatus", mock.Anything, "tenant1", "suspended").Return(nil)

	c, w := newContext(http.MethodPut, "/tenants/tenant1/status", `{"status": "suspended"}`)
	c.Params = gin.Params{{Key: "id", Value: "tenant1"}}
	s.handler.UpdateTenantStatus(c)
	s.Equal(http.StatusNoContent, c.Writer.Status())

	c, w = newContext(http.MethodPut, "/tenants/tenant1/status", `{"status": "frozen"}`)
	c.Params = gin.Params{{Key: "id", Value: "tenant1"}}
	s.handler.UpdateTenantStatus(c)
	s.Equal(http.StatusBadRequest, w.Code)
	s.mockService.AssertNumberOfCalls(s.T(), "UpdateStatus", 1)
}

func (s *TenantHandlerTestSuite) TestDeleteTenant() {
	s.mockService.On("Delete", mock.Anything, "tenant1").Return(nil)
	s.mockService.On("Delete", mock.Anything, "ghost").Return(service.ErrTenantNotFound)

	c, _ := newContext(http.MethodDelete, "/tenants/tenant1", nil)
	c.Params = gin.Params{{Key: "id", Value: "tenant1"}}
	s.handler.DeleteTenant(c)
	s.Equal(http.StatusNoContent, c.Writer.Status())

	c, w := newContext(http.MethodDelete, "/tenants/ghost", nil)
	c.Params = gin.Params{{Key: "id", Value: "ghost"}}
	s.handler.DeleteTenant(c)
	s.Equal(http.StatusNotFound, w.Code)
}

func (s *TenantHandlerTestSuite) TestCurrentTenant() {
	subdomain := "roma"
	c, w := newContext(http.MethodGet, "/tenant/current", nil)
	c.Set(string(utils.TenantIDKey), "tenant1")
	c.Set(string(utils.TenantSchemaKey), "tenant_roma")
	c.Set(string(utils.TenantKey), &domain.Tenant{ID: "tenant1", Name: "Roma", Subdomain: &subdomain, Status: domain.TenantStatusActive})
	c.Set(string(utils.CheckedFeaturesKey), []string{"custom_branding"})

	s.handler.CurrentTenant(c)

	s.Equal(http.StatusOK, w.Code)
	var response dto.CurrentTenantResponse
	s.NoError(json.Unmarshal(w.Body.Bytes(), &response))
	s.Equal("tenant1", response.TenantID)
	s.Equal("tenant_roma", response.Schema)
	s.Require().NotNil(response.Tenant)
	s.Equal("roma", *response.Tenant.Subdomain)
	s.Equal([]string{"custom_branding"}, response.CheckedFeatures)
}

func (s *TenantHandlerTestSuite) TestCurrentTenant_ReadsBoundConnection() {
	sqlDB, dbMock, err := sqlmock.New()
	s.Require().NoError(err)
	defer sqlDB.Close()
	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 gormlogger.Default.LogMode(gormlogger.Silent),
	})
	s.Require().NoError(err)
	dbMock.ExpectQuery(`SELECT current_schema\(\)`).
		WillReturnRows(sqlmock.NewRows([]string{"current_schema"}).AddRow("tenant_roma"))

	c, w := newContext(http.MethodGet, "/tenant/current", nil)
	c.Set(string(utils.TenantIDKey), "tenant1")
	c.Set(string(utils.TenantSchemaKey), "tenant_roma")
	c.Set(string(utils.TenantDBKey), db)

	s.handler.CurrentTenant(c)

	s.Equal(http.StatusOK, w.Code)
	s.JSONEq(`{"tenant_id": "tenant1", "schema": "tenant_roma", "active_schema": "tenant_roma"}`, w.Body.String())
	s.NoError(dbMock.ExpectationsWereMet())
}

func (s *TenantHandlerTestSuite) TestCurrentTenant_BoundConnectionFailure() {
	sqlDB, dbMock, err := sqlmock.New()
	s.Require().NoError(err)
	defer sqlDB.Close()
	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 gormlogger.Default.LogMode(gormlogger.Silent),
	})
	s.Require().NoError(err)
	dbMock.ExpectQuery(`SELECT current_schema\(\)`).WillReturnError(errors.New("conn closed"))

	c, w := newContext(http.MethodGet, "/tenant/current", nil)
	c.Set(string(utils.TenantDBKey), db)

	s.handler.CurrentTenant(c)

	s.Equal(http.StatusInternalServerError, w.Code)
}

func (s *TenantHandlerTestSuite) TestCurrentTenant_DefaultSchema() {
	c, w := newContext(http.MethodGet, "/tenant/current", nil)
	c.Set(string(utils.TenantSchemaKey), "public")

	s.handler.CurrentTenant(c)

	s.JSONEq(`{"schema": "public"}`, w.Body.String())
}
