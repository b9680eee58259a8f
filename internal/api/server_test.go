package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"

	"github.com/kingrain94/entitlement-api/internal/api/dto"
	"github.com/kingrain94/entitlement-api/internal/config"
	"github.com/kingrain94/entitlement-api/internal/domain"
	"github.com/kingrain94/entitlement-api/internal/middleware"
	"github.com/kingrain94/entitlement-api/internal/mocks"
	"github.com/kingrain94/entitlement-api/pkg/logger"
)

type ServerTestSuite struct {
	suite.Suite
	tenants *MockTenantService
	flags   *MockFeatureFlagService
	auth    *middleware.AuthMiddleware
	router  *gin.Engine
}

func (s *ServerTestSuite) SetupTest() {
	gin.SetMode(gin.TestMode)
	mr := miniredis.RunT(s.T())
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	s.T().Cleanup(func() { client.Close() })

	cfg := &config.Config{
		JWTSecretKey:       "server-secret",
		JWTExpirationHours: 1,
		DefaultRateLimit:   100,
		GlobalRateLimit:    100,
		DefaultSchema:      "public",
	}
	log := logger.NewLogger("test")

	s.tenants = new(MockTenantService)
	s.flags = new(MockFeatureFlagService)
	s.auth = middleware.NewAuthMiddleware(cfg)

	server := NewServer(s.tenants, s.flags, new(MockHistoryService), Middlewares{
		Auth:       s.auth,
		RateLimit:  middleware.NewRateLimitMiddleware(client, cfg, log),
		Validation: middleware.NewValidationMiddleware(log),
		Tenant:     middleware.NewTenantResolver(new(mocks.TenantRepository), nil, cfg, log),
		Guard:      middleware.NewFeatureGuard(s.flags, nil, log),
	}, cfg, log)

	s.router = gin.New()
	server.SetupRoutes(s.router.Group("/api/v1"))
}

func TestServer(t *testing.T) {
	suite.Run(t, new(ServerTestSuite))
}

func (s *ServerTestSuite) get(path string, roles ...string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if roles != nil {
		token, err := s.auth.GenerateToken("u1", "", "u1@example.com", roles)
		s.Require().NoError(err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	s.router.ServeHTTP(w, req)
	return w
}

func (s *ServerTestSuite) TestRoutesAreRegistered() {
	registered := map[string]bool{}
	for _, r := range s.router.Routes() {
		registered[r.Method+" "+r.Path] = true
	}

	for _, want := range []string{
		"GET /api/v1/feature-flags",
		"GET /api/v1/feature-flags/:key",
		"GET /api/v1/feature-flags/:key/enabled",
		"GET /api/v1/feature-flags/definitions",
		"POST /api/v1/feature-flags",
		"PUT /api/v1/feature-flags/:key/tenant-override/:id",
		"DELETE /api/v1/feature-flags/:key/user-override/:id",
		"POST /api/v1/feature-flags/history/archive",
		"POST /api/v1/tenants",
		"PUT /api/v1/tenants/:id/status",
		"GET /api/v1/tenant/current",
		"GET /api/v1/entitlements/stream",
	} {
		s.True(registered[want], want)
	}
}

func (s *ServerTestSuite) TestEvaluationRequiresToken() {
	s.Equal(http.StatusUnauthorized, s.get("/api/v1/feature-flags").Code)
}

func (s *ServerTestSuite) TestEvaluationForAnyRole() {
	s.flags.On("GetAllFeatureFlags", mock.Anything, mock.MatchedBy(func(ec domain.EvaluationContext) bool {
		return ec.UserID == "u1" && ec.UserEmail == "u1@example.com"
	})).Return(map[string]domain.Value{"api_access": domain.Bool(true)})

	w := s.get("/api/v1/feature-flags", "user")

	s.Equal(http.StatusOK, w.Code)
	s.JSONEq(`{"flags":{"api_access":true}}`, w.Body.String())
}

func (s *ServerTestSuite) TestAdministrationRequiresAdmin() {
	s.tenants.On("List", mock.Anything).Return([]dto.TenantResponse{}, nil)

	s.Equal(http.StatusForbidden, s.get("/api/v1/tenants", "user").Code)
	s.Equal(http.StatusOK, s.get("/api/v1/tenants", "admin").Code)
	s.tenants.AssertNumberOfCalls(s.T(), "List", 1)
}

func (s *ServerTestSuite) TestStreamIsGuardedByRealtimeFlag() {
	s.flags.On("IsFeatureEnabled", mock.Anything, "realtime_updates", mock.Anything).Return(false)

	w := s.get("/api/v1/entitlements/stream", "user")

	s.Equal(http.StatusForbidden, w.Code)
	s.Contains(w.Body.String(), "realtime_updates")
}
