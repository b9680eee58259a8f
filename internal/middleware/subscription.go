package middleware

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/kingrain94/entitlement-api/internal/domain"
	"github.com/kingrain94/entitlement-api/internal/service/subscription"
	"github.com/kingrain94/entitlement-api/internal/utils"
	"github.com/kingrain94/entitlement-api/pkg/logger"
)

type SubscriptionProvider interface {
	GetSubscription(ctx context.Context, tenantID string) (*domain.Subscription, error)
}

// SubscriptionContext attaches the tenant's subscription snapshot so plan-based
// evaluation can derive the caller's plan. Provider failures leave the request
// without a subscription, which evaluates as the free plan.
func SubscriptionContext(provider SubscriptionProvider, logger *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if provider == nil {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		tenantID, err := utils.GetTenantIDFromContext(ctx)
		if err != nil {
			c.Next()
			return
		}

		sub, err := provider.GetSubscription(ctx, tenantID)
		switch {
		case errors.Is(err, subscription.ErrNotConfigured):
		case err != nil:
			logger.Warn("Failed to load subscription", zap.String("tenant_id", tenantID), zap.Error(err))
		case sub != nil:
			setRequestValue(c, utils.SubscriptionKey, sub)
		}

		c.Next()
	}
}
