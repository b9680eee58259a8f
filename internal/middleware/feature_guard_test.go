package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/kingrain94/entitlement-api/internal/api/dto"
	"github.com/kingrain94/entitlement-api/internal/domain"
	"github.com/kingrain94/entitlement-api/internal/service/subscription"
	"github.com/kingrain94/entitlement-api/internal/utils"
	"github.com/kingrain94/entitlement-api/pkg/logger"
)

type MockEntitlementChecker struct {
	mock.Mock
}

func (m *MockEntitlementChecker) IsFeatureEnabled(ctx context.Context, key string, ec domain.EvaluationContext) bool {
	args := m.Called(ctx, key, ec)
	return args.Bool(0)
}

type staticCatalog map[string][]string

func (c staticCatalog) AvailableInPlans(key string) []string { return c[key] }

// withCaller stands in for auth and tenant resolution.
func withCaller(userID, tenantID string, sub *domain.Subscription) gin.HandlerFunc {
	return func(c *gin.Context) {
		setRequestValue(c, utils.PrincipalKey, &domain.Principal{ID: userID, Email: userID + "@example.com"})
		if tenantID != "" {
			setRequestValue(c, utils.TenantIDKey, tenantID)
		}
		if sub != nil {
			setRequestValue(c, utils.SubscriptionKey, sub)
		}
		c.Next()
	}
}

func newGuardRouter(guard *FeatureGuard, reqs ...*FeatureRequirement) (*gin.Engine, *[]string) {
	gin.SetMode(gin.TestMode)
	var checked []string
	handlers := []gin.HandlerFunc{withCaller("u1", "t1", nil)}
	for _, req := range reqs {
		handlers = append(handlers, guard.Require(req))
	}
	handlers = append(handlers, func(c *gin.Context) {
		checked = utils.GetCheckedFeatures(c.Request.Context())
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	router := gin.New()
	router.GET("/reports", handlers...)
	return router, &checked
}

func serve(router *gin.Engine) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/reports", nil)
	router.ServeHTTP(w, req)
	return w
}

func TestRequire_EnabledRecordsCheckedFeatures(t *testing.T) {
	checker := new(MockEntitlementChecker)
	ec := domain.EvaluationContext{UserID: "u1", TenantID: "t1", UserEmail: "u1@example.com"}
	checker.On("IsFeatureEnabled", mock.Anything, "advanced_analytics", ec).Return(true)
	checker.On("IsFeatureEnabled", mock.Anything, "export_reports", ec).Return(true)
	guard := NewFeatureGuard(checker, nil, logger.NewLogger("test"))

	router, checked := newGuardRouter(guard,
		&FeatureRequirement{Flag: "advanced_analytics"},
		&FeatureRequirement{Flag: "export_reports"})
	w := serve(router)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"advanced_analytics", "export_reports"}, *checked)
	checker.AssertExpectations(t)
}

func TestRequire_BlockReturnsUpgradeMetadata(t *testing.T) {
	checker := new(MockEntitlementChecker)
	checker.On("IsFeatureEnabled", mock.Anything, "api_access", mock.Anything).Return(false)
	guard := NewFeatureGuard(checker, staticCatalog{"api_access": {"Premium", "Enterprise"}}, logger.NewLogger("test"))

	router, _ := newGuardRouter(guard, &FeatureRequirement{Flag: "api_access", Fallback: FallbackBlock})
	w := serve(router)

	assert.Equal(t, http.StatusForbidden, w.Code)
	var body dto.FeatureDeniedResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "api_access", body.Feature)
	assert.True(t, body.UpgradeRequired)
	assert.Equal(t, []string{"Premium", "Enterprise"}, body.AvailableInPlans)
	assert.Contains(t, body.Message, "api_access")
}

func TestRequire_DefaultsToBlock(t *testing.T) {
	checker := new(MockEntitlementChecker)
	checker.On("IsFeatureEnabled", mock.Anything, "api_access", mock.Anything).Return(false)
	guard := NewFeatureGuard(checker, nil, logger.NewLogger("test"))

	router, _ := newGuardRouter(guard, &FeatureRequirement{Flag: "api_access"})
	w := serve(router)

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.JSONEq(t, `{
		"message": "Feature 'api_access' is not available in your current plan",
		"feature": "api_access",
		"upgradeRequired": true,
		"availableInPlans": ["Premium", "Enterprise"]
	}`, w.Body.String())
}

func TestRequire_AllowPassesThrough(t *testing.T) {
	checker := new(MockEntitlementChecker)
	checker.On("IsFeatureEnabled", mock.Anything, "beta_widget", mock.Anything).Return(false)
	guard := NewFeatureGuard(checker, nil, logger.NewLogger("test"))

	router, checked := newGuardRouter(guard, &FeatureRequirement{Flag: "beta_widget", Fallback: FallbackAllow})
	w := serve(router)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, *checked)
}

func TestRequire_CustomResponse(t *testing.T) {
	checker := new(MockEntitlementChecker)
	checker.On("IsFeatureEnabled", mock.Anything, "loyalty", mock.Anything).Return(false)
	guard := NewFeatureGuard(checker, nil, logger.NewLogger("test"))

	router, _ := newGuardRouter(guard, &FeatureRequirement{
		Flag:           "loyalty",
		Fallback:       FallbackCustom,
		CustomResponse: gin.H{"points": 0, "enabled": false},
	})
	w := serve(router)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"points": 0, "enabled": false}`, w.Body.String())
}

func TestRequire_CustomWithoutResponseBlocks(t *testing.T) {
	checker := new(MockEntitlementChecker)
	checker.On("IsFeatureEnabled", mock.Anything, "loyalty", mock.Anything).Return(false)
	guard := NewFeatureGuard(checker, nil, logger.NewLogger("test"))

	router, _ := newGuardRouter(guard, &FeatureRequirement{Flag: "loyalty", Fallback: FallbackCustom})

	assert.Equal(t, http.StatusForbidden, serve(router).Code)
}

func TestRequire_NilRequirementAllows(t *testing.T) {
	guard := NewFeatureGuard(new(MockEntitlementChecker), nil, logger.NewLogger("test"))

	router, checked := newGuardRouter(guard, nil)
	w := serve(router)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, *checked)
}

func TestRequire_AnonymousIsDisabled(t *testing.T) {
	gin.SetMode(gin.TestMode)
	checker := new(MockEntitlementChecker)
	guard := NewFeatureGuard(checker, nil, logger.NewLogger("test"))

	router := gin.New()
	ok := func(c *gin.Context) { c.Status(http.StatusOK) }
	router.GET("/reports", guard.Require(&FeatureRequirement{Flag: "api_access"}), ok)
	router.GET("/menu", guard.Require(&FeatureRequirement{Flag: "api_access", Fallback: FallbackAllow}), ok)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/reports", nil))
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/menu", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	checker.AssertNotCalled(t, "IsFeatureEnabled", mock.Anything, mock.Anything, mock.Anything)
}

func TestEvaluationContextFrom(t *testing.T) {
	sub := &domain.Subscription{Plan: domain.SubscriptionPlan{Type: "yearly"}}
	ctx := context.WithValue(context.Background(), utils.PrincipalKey, &domain.Principal{ID: "u1", Email: "a@b.c", TenantID: "t-token"})
	ctx = context.WithValue(ctx, utils.SubscriptionKey, sub)

	ec := EvaluationContextFrom(ctx)
	assert.Equal(t, "u1", ec.UserID)
	assert.Equal(t, "t-token", ec.TenantID)
	assert.Equal(t, domain.PlanPremium, ec.EffectivePlan())

	// The tenant resolved from the host wins over the token's tenant.
	ec = EvaluationContextFrom(context.WithValue(ctx, utils.TenantIDKey, "t-host"))
	assert.Equal(t, "t-host", ec.TenantID)

	assert.Equal(t, domain.EvaluationContext{}, EvaluationContextFrom(context.Background()))
}

type MockSubscriptionProvider struct {
	mock.Mock
}

func (m *MockSubscriptionProvider) GetSubscription(ctx context.Context, tenantID string) (*domain.Subscription, error) {
	args := m.Called(ctx, tenantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Subscription), args.Error(1)
}

func runSubscription(provider SubscriptionProvider, tenantID string) *domain.Subscription {
	gin.SetMode(gin.TestMode)
	var got *domain.Subscription
	router := gin.New()
	router.GET("/reports",
		withCaller("u1", tenantID, nil),
		SubscriptionContext(provider, logger.NewLogger("test")),
		func(c *gin.Context) {
			got = utils.GetSubscriptionFromContext(c.Request.Context())
			c.Status(http.StatusOK)
		})
	serve(router)
	return got
}

func TestSubscriptionContext(t *testing.T) {
	provider := new(MockSubscriptionProvider)
	provider.On("GetSubscription", mock.Anything, "t1").Return(&domain.Subscription{Plan: domain.SubscriptionPlan{Type: "monthly"}}, nil)
	provider.On("GetSubscription", mock.Anything, "t2").Return(nil, errors.New("billing down"))
	provider.On("GetSubscription", mock.Anything, "t3").Return(nil, subscription.ErrNotConfigured)

	sub := runSubscription(provider, "t1")
	require.NotNil(t, sub)
	assert.Equal(t, "monthly", sub.Plan.Type)

	assert.Nil(t, runSubscription(provider, "t2"))
	assert.Nil(t, runSubscription(provider, "t3"))
	assert.Nil(t, runSubscription(nil, "t1"))

	// No tenant, no lookup.
	assert.Nil(t, runSubscription(provider, ""))
	provider.AssertNotCalled(t, "GetSubscription", mock.Anything, "")
}
