package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"

	"github.com/kingrain94/entitlement-api/internal/api/dto"
	"github.com/kingrain94/entitlement-api/internal/domain"
	"github.com/kingrain94/entitlement-api/internal/middleware"
	"github.com/kingrain94/entitlement-api/internal/service"
	"github.com/kingrain94/entitlement-api/internal/utils"
)

type MockFeatureFlagService struct {
	mock.Mock
}

func (m *MockFeatureFlagService) GetFeatureFlag(ctx context.Context, key string, ec domain.EvaluationContext) domain.Value {
	args := m.Called(ctx, key, ec)
	return args.Get(0).(domain.Value)
}

func (m *MockFeatureFlagService) IsFeatureEnabled(ctx context.Context, key string, ec domain.EvaluationContext) bool {
	args := m.Called(ctx, key, ec)
	return args.Bool(0)
}

func (m *MockFeatureFlagService) GetFeatureFlags(ctx context.Context, keys []string, ec domain.EvaluationContext) map[string]domain.Value {
	args := m.Called(ctx, keys, ec)
	return args.Get(0).(map[string]domain.Value)
}

func (m *MockFeatureFlagService) GetAllFeatureFlags(ctx context.Context, ec domain.EvaluationContext) map[string]domain.Value {
	args := m.Called(ctx, ec)
	return args.Get(0).(map[string]domain.Value)
}

func (m *MockFeatureFlagService) GetDefinition(ctx context.Context, key string) (*domain.FeatureFlag, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.FeatureFlag), args.Error(1)
}

func (m *MockFeatureFlagService) ListDefinitions(ctx context.Context) ([]*domain.FeatureFlag, error) {
	args := m.Called(ctx)
	return args.Get(0).([]*domain.FeatureFlag), args.Error(1)
}

func (m *MockFeatureFlagService) UpsertFlag(ctx context.Context, flag *domain.FeatureFlag, actorID string) (*domain.FeatureFlag, error) {
	args := m.Called(ctx, flag, actorID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.FeatureFlag), args.Error(1)
}

func (m *MockFeatureFlagService) SetUserOverride(ctx context.Context, key, userID string, value domain.Value, actorID string) (*domain.FeatureFlag, error) {
	return m.override(m.Called(ctx, key, userID, value, actorID))
}

func (m *MockFeatureFlagService) SetTenantOverride(ctx context.Context, key, tenantID string, value domain.Value, actorID string) (*domain.FeatureFlag, error) {
	return m.override(m.Called(ctx, key, tenantID, value, actorID))
}

func (m *MockFeatureFlagService) RemoveUserOverride(ctx context.Context, key, userID, actorID string) (*domain.FeatureFlag, error) {
	return m.override(m.Called(ctx, key, userID, actorID))
}

func (m *MockFeatureFlagService) RemoveTenantOverride(ctx context.Context, key, tenantID, actorID string) (*domain.FeatureFlag, error) {
	return m.override(m.Called(ctx, key, tenantID, actorID))
}

func (m *MockFeatureFlagService) override(args mock.Arguments) (*domain.FeatureFlag, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.FeatureFlag), args.Error(1)
}

type MockHistoryService struct {
	mock.Mock
}

func (m *MockHistoryService) GetFlagHistory(ctx context.Context, key string, query dto.FlagHistoryQuery) ([]dto.FlagChangeResponse, error) {
	args := m.Called(ctx, key, query)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]dto.FlagChangeResponse), args.Error(1)
}

func (m *MockHistoryService) ScheduleArchive(ctx context.Context, before string) (time.Time, error) {
	args := m.Called(ctx, before)
	return args.Get(0).(time.Time), args.Error(1)
}

type FeatureFlagHandlerTestSuite struct {
	suite.Suite
	mockService *MockFeatureFlagService
	mockHistory *MockHistoryService
	handler     *FeatureFlagHandler
}

func (s *FeatureFlagHandlerTestSuite) SetupTest() {
	gin.SetMode(gin.TestMode)
	middleware.RegisterValidators()
	s.mockService = new(MockFeatureFlagService)
	s.mockHistory = new(MockHistoryService)
	s.handler = NewFeatureFlagHandler(s.mockService, s.mockHistory)
}

func TestFeatureFlagHandler(t *testing.T) {
	suite.Run(t, new(FeatureFlagHandlerTestSuite))
}

// asCaller sets the principal and host tenant the way auth and tenant resolution do.
func asCaller(c *gin.Context, userID, tenantID string) {
	c.Set(string(utils.PrincipalKey), &domain.Principal{ID: userID, Email: userID + "@roma.example"})
	c.Set(string(utils.TenantIDKey), tenantID)
}

func storedFlag(key string) *domain.FeatureFlag {
	return &domain.FeatureFlag{
		ID:                "flag-1",
		Key:               key,
		Status:            domain.FlagStatusActive,
		PlanLevel:         domain.PlanBasic,
		DefaultValue:      domain.Bool(false),
		PlanValues:        domain.NewValueMap(map[string]domain.Value{"premium": domain.Bool(true)}),
		RolloutPercentage: 100,
	}
}

func (s *FeatureFlagHandlerTestSuite) TestListFeatureFlags_All() {
	ec := domain.EvaluationContext{UserID: "u1", TenantID: "t1", UserEmail: "u1@roma.example"}
	s.mockService.On("GetAllFeatureFlags", mock.Anything, ec).Return(map[string]domain.Value{
		"api_access":       domain.Bool(true),
		"max_menu_items":   domain.Number(50),
		"branding_palette": domain.String("warm"),
	})
	c, w := newContext(http.MethodGet, "/feature-flags", nil)
	asCaller(c, "u1", "t1")

	s.handler.ListFeatureFlags(c)

	s.Equal(http.StatusOK, w.Code)
	s.JSONEq(`{"flags": {"api_access": true, "max_menu_items": 50, "branding_palette": "warm"}}`, w.Body.String())
}

func (s *FeatureFlagHandlerTestSuite) TestListFeatureFlags_SelectedKeys() {
	s.mockService.On("GetFeatureFlags", mock.Anything, []string{"api_access", "reports"}, mock.Anything).
		Return(map[string]domain.Value{"api_access": domain.Bool(true), "reports": domain.Undefined()})
	c, w := newContext(http.MethodGet, "/feature-flags?keys=api_access,%20reports,,api_access", nil)
	asCaller(c, "u1", "t1")

	s.handler.ListFeatureFlags(c)

	s.Equal(http.StatusOK, w.Code)
	var response map[string]map[string]any
	s.NoError(json.Unmarshal(w.Body.Bytes(), &response))
	s.Equal(true, response["flags"]["api_access"])
	s.mockService.AssertNotCalled(s.T(), "GetAllFeatureFlags", mock.Anything, mock.Anything)
}

func (s *FeatureFlagHandlerTestSuite) TestGetFeatureFlag() {
	s.mockService.On("GetFeatureFlag", mock.Anything, "max_menu_items", mock.Anything).Return(domain.Number(50))
	c, w := newContext(http.MethodGet, "/feature-flags/max_menu_items", nil)
	c.Params = gin.Params{{Key: "key", Value: "max_menu_items"}}

	s.handler.GetFeatureFlag(c)

	s.Equal(http.StatusOK, w.Code)
	s.JSONEq(`{"key": "max_menu_items", "value": 50, "enabled": true}`, w.Body.String())
}

func (s *FeatureFlagHandlerTestSuite) TestIsFeatureEnabled() {
	s.mockService.On("IsFeatureEnabled", mock.Anything, "api_access", mock.Anything).Return(false)
	c, w := newContext(http.MethodGet, "/feature-flags/api_access/enabled", nil)
	c.Params = gin.Params{{Key: "key", Value: "api_access"}}

	s.handler.IsFeatureEnabled(c)

	s.JSONEq(`{"key": "api_access", "enabled": false}`, w.Body.String())
}

func (s *FeatureFlagHandlerTestSuite) TestGetDefinition() {
	s.mockService.On("GetDefinition", mock.Anything, "api_access").Return(storedFlag("api_access"), nil)
	s.mockService.On("GetDefinition", mock.Anything, "ghost").Return(nil, service.ErrFeatureFlagNotFound)

	c, w := newContext(http.MethodGet, "/feature-flags/api_access/definition", nil)
	c.Params = gin.Params{{Key: "key", Value: "api_access"}}
	s.handler.GetDefinition(c)
	s.Equal(http.StatusOK, w.Code)
	var response dto.FeatureFlagResponse
	s.NoError(json.Unmarshal(w.Body.Bytes(), &response))
	s.Equal("basic", response.PlanLevel)
	s.True(response.PlanValues["premium"].Truthy())
	s.NotNil(response.UserOverrides)

	c, w = newContext(http.MethodGet, "/feature-flags/ghost/definition", nil)
	c.Params = gin.Params{{Key: "key", Value: "ghost"}}
	s.handler.GetDefinition(c)
	s.Equal(http.StatusNotFound, w.Code)
}

func (s *FeatureFlagHandlerTestSuite) TestListDefinitions_Error() {
	s.mockService.On("ListDefinitions", mock.Anything).Return([]*domain.FeatureFlag(nil), errors.New("db down"))
	c, w := newContext(http.MethodGet, "/feature-flags/definitions", nil)

	s.handler.ListDefinitions(c)

	s.Equal(http.StatusInternalServerError, w.Code)
}

func (s *FeatureFlagHandlerTestSuite) TestUpsertFeatureFlag_Defaults() {
	var stored *domain.FeatureFlag
	s.mockService.On("UpsertFlag", mock.Anything, mock.AnythingOfType("*domain.FeatureFlag"), "admin-1").
		Run(func(args mock.Arguments) { stored = args.Get(1).(*domain.FeatureFlag) }).
		Return(storedFlag("api_access"), nil)
	c, w := newContext(http.MethodPost, "/feature-flags", `{"key": "api_access", "plan_level": "basic"}`)
	asCaller(c, "admin-1", "")

	s.handler.UpsertFeatureFlag(c)

	s.Equal(http.StatusOK, w.Code)
	s.Require().NotNil(stored)
	s.Equal(domain.FlagStatusActive, stored.Status)
	s.Equal(domain.PlanBasic, stored.PlanLevel)
	s.Equal(100, stored.RolloutPercentage)
}

func (s *FeatureFlagHandlerTestSuite) TestUpsertFeatureFlag_Invalid() {
	c, w := newContext(http.MethodPost, "/feature-flags", `{"key": "api_access", "rollout_percentage": -5}`)

	s.handler.UpsertFeatureFlag(c)

	s.Equal(http.StatusBadRequest, w.Code)
	s.mockService.AssertNotCalled(s.T(), "UpsertFlag", mock.Anything, mock.Anything, mock.Anything)
}

func (s *FeatureFlagHandlerTestSuite) TestSetTenantOverride() {
	flag := storedFlag("custom_branding")
	flag.TenantOverrides = domain.NewValueMap(map[string]domain.Value{"tenant-7": domain.Bool(true)})
	s.mockService.On("SetTenantOverride", mock.Anything, "custom_branding", "tenant-7", domain.Bool(true), "admin-1").Return(flag, nil)
	c, w := newContext(http.MethodPut, "/feature-flags/custom_branding/tenant-override/tenant-7", `{"value": true}`)
	c.Params = gin.Params{{Key: "key", Value: "custom_branding"}, {Key: "id", Value: "tenant-7"}}
	asCaller(c, "admin-1", "")

	s.handler.SetTenantOverride(c)

	s.Equal(http.StatusOK, w.Code)
	var response dto.FeatureFlagResponse
	s.NoError(json.Unmarshal(w.Body.Bytes(), &response))
	s.True(response.TenantOverrides["tenant-7"].Truthy())
}

func (s *FeatureFlagHandlerTestSuite) TestSetUserOverride_MissingValue() {
	s.mockService.On("SetUserOverride", mock.Anything, "beta_widget", "u1", domain.Undefined(), "").
		Return(nil, service.ErrUndefinedValue)
	c, w := newContext(http.MethodPut, "/feature-flags/beta_widget/user-override/u1", `{}`)
	c.Params = gin.Params{{Key: "key", Value: "beta_widget"}, {Key: "id", Value: "u1"}}

	s.handler.SetUserOverride(c)

	s.Equal(http.StatusBadRequest, w.Code)
	s.Contains(w.Body.String(), service.ErrUndefinedValue.Error())
}

func (s *FeatureFlagHandlerTestSuite) TestRemoveOverrides() {
	s.mockService.On("RemoveUserOverride", mock.Anything, "beta_widget", "u1", "admin-1").Return(storedFlag("beta_widget"), nil)
	s.mockService.On("RemoveTenantOverride", mock.Anything, "ghost", "t1", "admin-1").Return(nil, service.ErrFeatureFlagNotFound)

	c, w := newContext(http.MethodDelete, "/feature-flags/beta_widget/user-override/u1", nil)
	c.Params = gin.Params{{Key: "key", Value: "beta_widget"}, {Key: "id", Value: "u1"}}
	asCaller(c, "admin-1", "")
	s.handler.RemoveUserOverride(c)
	s.Equal(http.StatusOK, w.Code)

	c, w = newContext(http.MethodDelete, "/feature-flags/ghost/tenant-override/t1", nil)
	c.Params = gin.Params{{Key: "key", Value: "ghost"}, {Key: "id", Value: "t1"}}
	asCaller(c, "admin-1", "")
	s.handler.RemoveTenantOverride(c)
	s.Equal(http.StatusNotFound, w.Code)
}

func (s *FeatureFlagHandlerTestSuite) TestGetFlagHistory() {
	query := dto.FlagHistoryQuery{Action: "set_tenant_override", Page: 2}
	s.mockHistory.On("GetFlagHistory", mock.Anything, "custom_branding", query).Return([]dto.FlagChangeResponse{
		{ID: "c1", FlagKey: "custom_branding", Action: "set_tenant_override", SubjectID: "tenant-7"},
	}, nil)
	c, w := newContext(http.MethodGet, "/feature-flags/custom_branding/history?action=set_tenant_override&page=2", nil)
	c.Params = gin.Params{{Key: "key", Value: "custom_branding"}}

	s.handler.GetFlagHistory(c)

	s.Equal(http.StatusOK, w.Code)
	var response []dto.FlagChangeResponse
	s.NoError(json.Unmarshal(w.Body.Bytes(), &response))
	s.Len(response, 1)
	s.Equal("tenant-7", response[0].SubjectID)
}

func (s *FeatureFlagHandlerTestSuite) TestGetFlagHistory_BadAction() {
	c, w := newContext(http.MethodGet, "/feature-flags/custom_branding/history?action=renamed", nil)

	s.handler.GetFlagHistory(c)

	s.Equal(http.StatusBadRequest, w.Code)
	s.mockHistory.AssertNotCalled(s.T(), "GetFlagHistory", mock.Anything, mock.Anything, mock.Anything)
}

func (s *FeatureFlagHandlerTestSuite) TestArchiveHistory() {
	before := time.Date(2025, 1, 1, 23, 59, 59, 0, time.UTC)
	s.mockHistory.On("ScheduleArchive", mock.Anything, "2025-01-01").Return(before, nil)
	s.mockHistory.On("ScheduleArchive", mock.Anything, "2999-01-01").Return(time.Time{}, service.ErrInvalidTimeRange)

	c, w := newContext(http.MethodPost, "/feature-flags/history/archive", `{"before": "2025-01-01"}`)
	s.handler.ArchiveHistory(c)
	s.Equal(http.StatusAccepted, w.Code)
	var response dto.ArchiveScheduledResponse
	s.NoError(json.Unmarshal(w.Body.Bytes(), &response))
	s.True(before.Equal(response.Before))

	c, w = newContext(http.MethodPost, "/feature-flags/history/archive", `{"before": "2999-01-01"}`)
	s.handler.ArchiveHistory(c)
	s.Equal(http.StatusBadRequest, w.Code)
}

func TestSplitKeys(t *testing.T) {
	assert.Nil(t, splitKeys(""))
	assert.Equal(t, []string{"a", "b"}, splitKeys(" a,b,,a , "))
}
