package api

import (
	"github.com/gin-gonic/gin"

	"github.com/kingrain94/entitlement-api/internal/config"
	"github.com/kingrain94/entitlement-api/internal/domain"
	"github.com/kingrain94/entitlement-api/internal/middleware"
	"github.com/kingrain94/entitlement-api/pkg/logger"
)

const maxRequestSize = 1 << 20

// Middlewares groups the request pipeline the server installs.
type Middlewares struct {
	Auth         *middleware.AuthMiddleware
	RateLimit    *middleware.RateLimitMiddleware
	Validation   *middleware.ValidationMiddleware
	Tenant       *middleware.TenantResolver
	Guard        *middleware.FeatureGuard
	Subscription middleware.SubscriptionProvider
}

type Server struct {
	tenant      *TenantHandler
	featureFlag *FeatureFlagHandler
	websocket   *WebSocketHandler
	mw          Middlewares
	config      *config.Config
	logger      *logger.Logger
}

func NewServer(
	tenantService TenantService,
	flagService FeatureFlagService,
	historyService HistoryService,
	mw Middlewares,
	cfg *config.Config,
	logger *logger.Logger,
) *Server {
	middleware.RegisterValidators()
	return &Server{
		tenant:      NewTenantHandler(tenantService),
		featureFlag: NewFeatureFlagHandler(flagService, historyService),
		websocket:   NewWebSocketHandler(flagService, logger),
		mw:          mw,
		config:      cfg,
		logger:      logger,
	}
}

func (s *Server) SetupRoutes(api *gin.RouterGroup) {
	// Apply security middleware first
	api.Use(s.mw.Validation.BlockSuspiciousPatterns())
	api.Use(s.mw.Validation.SanitizeInput())
	api.Use(s.mw.Validation.ValidateRequestSize(maxRequestSize))
	api.Use(s.mw.Validation.ValidateContentType("application/json"))

	api.Use(s.mw.RateLimit.GlobalRateLimit(s.config.GlobalRateLimit))

	// Tenant resolution runs before auth so schema binding and rejection apply to every
	// tenant-scoped route.
	api.Use(s.mw.Tenant.Middleware())

	authed := []gin.HandlerFunc{
		s.mw.Auth.JWTAuth(),
		s.mw.RateLimit.TenantRateLimit(),
		middleware.SubscriptionContext(s.mw.Subscription, s.logger),
	}
	admin := append(authed[:len(authed):len(authed)], s.mw.Auth.RequireRole(domain.RoleAdmin))

	{
		flags := api.Group("/feature-flags", authed...)
		{
			flags.GET("", s.featureFlag.ListFeatureFlags)
			flags.GET("/:key", s.featureFlag.GetFeatureFlag)
			flags.GET("/:key/enabled", s.featureFlag.IsFeatureEnabled)
		}

		flagAdmin := api.Group("/feature-flags", admin...)
		{
			flagAdmin.GET("/definitions", s.featureFlag.ListDefinitions)
			flagAdmin.GET("/:key/definition", s.featureFlag.GetDefinition)
			flagAdmin.POST("", s.featureFlag.UpsertFeatureFlag)
			flagAdmin.PUT("/:key/user-override/:id", s.featureFlag.SetUserOverride)
			flagAdmin.DELETE("/:key/user-override/:id", s.featureFlag.RemoveUserOverride)
			flagAdmin.PUT("/:key/tenant-override/:id", s.featureFlag.SetTenantOverride)
			flagAdmin.DELETE("/:key/tenant-override/:id", s.featureFlag.RemoveTenantOverride)
			flagAdmin.GET("/:key/history", s.featureFlag.GetFlagHistory)
			flagAdmin.POST("/history/archive", s.featureFlag.ArchiveHistory)
		}

		tenants := api.Group("/tenants", admin...)
		{
			tenants.POST("", s.tenant.CreateTenant)
			tenants.GET("", s.tenant.ListTenants)
			tenants.GET("/:id", s.tenant.GetTenant)
			tenants.PUT("/:id", s.tenant.UpdateTenant)
			tenants.DELETE("/:id", s.tenant.DeleteTenant)
			tenants.PUT("/:id/status", s.tenant.UpdateTenantStatus)
		}

		api.GET("/tenant/current",
			s.mw.Auth.OptionalAuth(),
			middleware.SubscriptionContext(s.mw.Subscription, s.logger),
			s.tenant.CurrentTenant)

		entitlements := api.Group("/entitlements", authed...)
		{
			entitlements.GET("/stream",
				s.mw.Guard.Require(&middleware.FeatureRequirement{Flag: "realtime_updates", Fallback: middleware.FallbackBlock}),
				s.websocket.HandleWebSocket)
		}
	}
}

// StartWebSocketHub starts the entitlement stream hub
func (s *Server) StartWebSocketHub() {
	go s.websocket.Start()
}

// GetWebSocketHandler returns the WebSocket handler for wiring up change notifications
func (s *Server) GetWebSocketHandler() *WebSocketHandler {
	return s.websocket
}

func (s *Server) Stop() {
	s.websocket.Stop()
}
