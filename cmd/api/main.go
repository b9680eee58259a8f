package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/kingrain94/entitlement-api/docs"
	"github.com/kingrain94/entitlement-api/internal/api"
	"github.com/kingrain94/entitlement-api/internal/config"
	"github.com/kingrain94/entitlement-api/internal/middleware"
	"github.com/kingrain94/entitlement-api/internal/repository/composite"
	"github.com/kingrain94/entitlement-api/internal/repository/postgres"
	"github.com/kingrain94/entitlement-api/internal/service"
	"github.com/kingrain94/entitlement-api/internal/service/cache"
	"github.com/kingrain94/entitlement-api/internal/service/pubsub"
	"github.com/kingrain94/entitlement-api/internal/service/queue"
	"github.com/kingrain94/entitlement-api/internal/service/subscription"
	"github.com/kingrain94/entitlement-api/pkg/logger"
)

// @title           Entitlement API
// @version         1.0
// @description     Tenant-aware feature entitlement API.

// @host      localhost:10000
// @BasePath  /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

// @externalDocs.description  OpenAPI
// @externalDocs.url          https://swagger.io/resources/open-api/
func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found")
	}

	appLogger := logger.NewLogger(os.Getenv("APP_ENV"))

	cfg, err := config.Load()
	if err != nil {
		appLogger.Fatal("Failed to load config", err)
	}

	dbConnections, err := config.NewDatabaseConnections(cfg, appLogger.Named("db"))
	if err != nil {
		appLogger.Fatal("Failed to connect to database", err)
	}
	defer dbConnections.Close()

	appLogger.Info("Database connections established - writer and reader connected")

	if cfg.AutoMigrate {
		if err := postgres.Migrate(dbConnections.Writer); err != nil {
			appLogger.Fatal("Failed to migrate database", err)
		}
	}

	osConfig := config.DefaultOpenSearchConfig()
	osClient, err := osConfig.GetClient()
	if err != nil {
		appLogger.Fatal("Failed to connect to OpenSearch", err)
	}

	redisConfig := config.DefaultRedisConfig()
	redisClient, err := redisConfig.GetClient()
	if err != nil {
		appLogger.Fatal("Failed to connect to Redis", err)
	}
	defer redisClient.Close()

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	sqsConfig := config.DefaultSQSConfig()
	sqsClient, err := sqsConfig.GetClient(ctx)
	if err != nil {
		appLogger.Fatal("Failed to connect to SQS", err)
	}
	sqsService := queue.NewSQSService(sqsClient, sqsConfig)

	catalog, err := config.LoadFeatureCatalog(cfg.FeatureCatalogPath)
	if err != nil {
		appLogger.Fatal("Failed to load feature catalog", err)
	}

	repo := composite.NewCompositeRepository(dbConnections, osClient, osConfig)

	// Flag cache, change fan-out and services
	flagCache := cache.New(repo.FeatureFlag(), cfg.FeatureFlagCacheTTL)
	redisPubSub := pubsub.NewRedisPubSub(redisClient, redisConfig.ChangeChannel, appLogger.Named("pubsub"))

	flagService := service.NewFeatureFlagService(repo.FeatureFlag(), flagCache, redisPubSub, sqsService, appLogger)
	tenantService := service.NewTenantService(repo, cfg.DefaultRateLimit, appLogger)
	historyService := service.NewHistoryService(repo.FlagHistory(), sqsService)

	if cfg.SeedFeatureFlags {
		seedFlags, err := catalog.SeedFlags()
		if err != nil {
			appLogger.Fatal("Failed to build seed flags", err)
		}
		seeded, err := flagService.SeedFlags(ctx, seedFlags)
		if err != nil {
			appLogger.Fatal("Failed to seed feature flags", err)
		}
		appLogger.Info("Seeded feature flags", zap.Int("count", seeded))
	}

	if err := flagCache.Refresh(ctx); err != nil {
		appLogger.Warn("Initial feature flag load failed, loading lazily", zap.Error(err))
	}

	var subscriptions middleware.SubscriptionProvider
	if cfg.BillingAPIURL != "" {
		client := subscription.NewClient(cfg.BillingAPIURL, cfg.BillingAPIToken, cfg.BillingAPITimeout, appLogger)
		subscriptions = subscription.NewCachedProvider(client, redisClient, subscription.DefaultCacheTTL, appLogger)
	} else {
		appLogger.Warn("BILLING_API_URL not set, plans will be derived as free unless given explicitly")
	}

	server := api.NewServer(
		tenantService,
		flagService,
		historyService,
		api.Middlewares{
			Auth:         middleware.NewAuthMiddleware(cfg),
			RateLimit:    middleware.NewRateLimitMiddleware(redisClient, cfg, appLogger),
			Validation:   middleware.NewValidationMiddleware(appLogger),
			Tenant:       middleware.NewTenantResolver(repo.Tenant(), repo.Schema(), cfg, appLogger),
			Guard:        middleware.NewFeatureGuard(flagService, catalog, appLogger),
			Subscription: subscriptions,
		},
		cfg,
		appLogger,
	)

	// Peer writes evict the local cache entry before subscribers are told about them.
	redisPubSub.AddHandler("feature-flags", pubsub.Chain(
		pubsub.InvalidateOnChange(flagCache),
		server.GetWebSocketHandler().OnFlagChange,
	))
	if err := redisPubSub.Start(ctx); err != nil {
		appLogger.Fatal("Failed to subscribe to flag changes", err)
	}
	defer redisPubSub.Close()

	server.StartWebSocketHub()

	if cfg.AppEnv == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.Default()

	docs.SwaggerInfo.Title = "Entitlement API"
	docs.SwaggerInfo.Description = "Tenant-aware feature entitlement API"
	docs.SwaggerInfo.Version = "1.0"
	docs.SwaggerInfo.Host = fmt.Sprintf("localhost:%d", cfg.ServerPort)
	docs.SwaggerInfo.BasePath = "/api/v1"
	docs.SwaggerInfo.Schemes = []string{"http"}

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	router.GET("/health", func(c *gin.Context) {
		pingCtx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := dbConnections.Ping(pingCtx); err != nil {
			appLogger.Warn("Health check failed", zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "cached_flags": flagCache.Len()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok", "cached_flags": flagCache.Len()})
	})

	apiGroup := router.Group("/api/v1")
	server.SetupRoutes(apiGroup)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.ServerPort),
		Handler: router,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.Fatal("Failed to start server", err)
		}
	}()
	appLogger.Info("Server started", zap.Int("port", cfg.ServerPort))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	appLogger.Info("Shutting down server...")

	server.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.Error("Server forced to shutdown", err)
	}

	appLogger.Info("Server exiting")
	appLogger.Sync()
}
