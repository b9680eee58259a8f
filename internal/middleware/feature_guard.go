package middleware

import (
	"context"
	"fmt"
	"net/http"
	"slices"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/kingrain94/entitlement-api/internal/api/dto"
	"github.com/kingrain94/entitlement-api/internal/domain"
	"github.com/kingrain94/entitlement-api/internal/utils"
	"github.com/kingrain94/entitlement-api/pkg/logger"
)

// FallbackBehavior decides what a guarded route does when the feature is not enabled.
type FallbackBehavior string

const (
	FallbackBlock  FallbackBehavior = "block"
	FallbackAllow  FallbackBehavior = "allow"
	FallbackCustom FallbackBehavior = "custom"
)

// FeatureRequirement is the per-route gating declaration.
type FeatureRequirement struct {
	Flag           string
	Fallback       FallbackBehavior
	CustomResponse any
}

// EntitlementChecker decides whether a feature is enabled for an evaluation context.
type EntitlementChecker interface {
	IsFeatureEnabled(ctx context.Context, key string, ec domain.EvaluationContext) bool
}

// PlanCatalog reports the plan names a feature is sold in.
type PlanCatalog interface {
	AvailableInPlans(key string) []string
}

type FeatureGuard struct {
	checker EntitlementChecker
	catalog PlanCatalog
	logger  *logger.Logger
}

func NewFeatureGuard(checker EntitlementChecker, catalog PlanCatalog, logger *logger.Logger) *FeatureGuard {
	return &FeatureGuard{
		checker: checker,
		catalog: catalog,
		logger:  logger,
	}
}

// EvaluationContextFrom assembles the evaluation context from the caller, the resolved
// tenant and the attached subscription. Any of them may be absent.
func EvaluationContextFrom(ctx context.Context) domain.EvaluationContext {
	ec := domain.EvaluationContext{Subscription: utils.GetSubscriptionFromContext(ctx)}
	if principal, err := utils.GetPrincipalFromContext(ctx); err == nil {
		ec.UserID = principal.ID
		ec.UserEmail = principal.Email
	}
	if tenantID, err := utils.GetTenantIDFromContext(ctx); err == nil {
		ec.TenantID = tenantID
	}
	return ec
}

// Require gates the route on req.Flag. A nil requirement never gates.
func (g *FeatureGuard) Require(req *FeatureRequirement) gin.HandlerFunc {
	if req == nil {
		return func(c *gin.Context) { c.Next() }
	}
	fallback := req.Fallback
	if fallback == "" || (fallback == FallbackCustom && req.CustomResponse == nil) {
		fallback = FallbackBlock
	}

	return func(c *gin.Context) {
		ctx := c.Request.Context()
		ec := EvaluationContextFrom(ctx)

		// Anonymous callers are never entitled, only FallbackAllow lets them through.
		_, authErr := utils.GetPrincipalFromContext(ctx)
		if authErr == nil && g.checker.IsFeatureEnabled(ctx, req.Flag, ec) {
			checked := append(slices.Clone(utils.GetCheckedFeatures(ctx)), req.Flag)
			setRequestValue(c, utils.CheckedFeaturesKey, checked)
			c.Next()
			return
		}

		switch fallback {
		case FallbackAllow:
			g.logger.Warn("Feature not enabled, allowing request",
				zap.String("feature", req.Flag),
				zap.String("user_id", ec.UserID),
				zap.String("tenant_id", ec.TenantID),
				zap.String("path", c.Request.URL.Path))
			c.Next()
		case FallbackCustom:
			c.AbortWithStatusJSON(http.StatusOK, req.CustomResponse)
		default:
			c.AbortWithStatusJSON(http.StatusForbidden, dto.FeatureDeniedResponse{
				Message:          fmt.Sprintf("Feature '%s' is not available in your current plan", req.Flag),
				Feature:          req.Flag,
				UpgradeRequired:  true,
				AvailableInPlans: g.availableInPlans(req.Flag),
			})
		}
	}
}

func (g *FeatureGuard) availableInPlans(key string) []string {
	if g.catalog == nil {
		return []string{"Premium", "Enterprise"}
	}
	return g.catalog.AvailableInPlans(key)
}
