package middleware

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/kingrain94/entitlement-api/internal/config"
	"github.com/kingrain94/entitlement-api/internal/utils"
	"github.com/kingrain94/entitlement-api/pkg/logger"
)

const rateLimitWindow = time.Minute

type RateLimitMiddleware struct {
	redis  *redis.Client
	config *config.Config
	logger *logger.Logger
}

func NewRateLimitMiddleware(redis *redis.Client, config *config.Config, logger *logger.Logger) *RateLimitMiddleware {
	return &RateLimitMiddleware{
		redis:  redis,
		config: config,
		logger: logger,
	}
}

// TenantRateLimit implements per-tenant rate limiting. Requests without a tenant are
// counted against the caller's IP with the default limit.
func (m *RateLimitMiddleware) TenantRateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := fmt.Sprintf("rate_limit:ip:%s", c.ClientIP())
		if tenantID, err := utils.GetTenantIDFromContext(c.Request.Context()); err == nil {
			key = fmt.Sprintf("rate_limit:tenant:%s", tenantID)
		}

		m.limit(c, key, m.tenantRateLimit(c), "Rate limit exceeded")
	}
}

// GlobalRateLimit implements global rate limiting based on IP
func (m *RateLimitMiddleware) GlobalRateLimit(limit int) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := fmt.Sprintf("rate_limit:global:%s", c.ClientIP())
		m.limit(c, key, limit, "Global rate limit exceeded")
	}
}

// limit counts the request in a one minute window. Redis failures let the
// request through.
func (m *RateLimitMiddleware) limit(c *gin.Context, key string, limit int, message string) {
	ctx := c.Request.Context()
	reset := time.Now().Add(rateLimitWindow).Unix()

	current, err := m.redis.Get(ctx, key).Int()
	if err != nil && err != redis.Nil {
		m.logger.Error("Redis error in rate limiting", err, zap.String("key", key))
		c.Next()
		return
	}

	c.Header("X-RateLimit-Limit", strconv.Itoa(limit))
	c.Header("X-RateLimit-Reset", strconv.FormatInt(reset, 10))

	if current >= limit {
		c.Header("X-RateLimit-Remaining", "0")
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"error": message,
			"limit": limit,
			"reset": reset,
		})
		return
	}

	pipe := m.redis.Pipeline()
	pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, rateLimitWindow)
	if _, err := pipe.Exec(ctx); err != nil {
		m.logger.Error("Redis pipeline error in rate limiting", err, zap.String("key", key))
	}

	remaining := limit - (current + 1)
	if remaining < 0 {
		remaining = 0
	}
	c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))

	c.Next()
}

// tenantRateLimit is the resolved tenant's own limit, else the configured default.
func (m *RateLimitMiddleware) tenantRateLimit(c *gin.Context) int {
	if tenant, ok := utils.GetTenantFromContext(c.Request.Context()); ok && tenant.RateLimit > 0 {
		return tenant.RateLimit
	}
	if m.config.DefaultRateLimit > 0 {
		return m.config.DefaultRateLimit
	}
	return 1000
}
