package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kingrain94/entitlement-api/internal/api/dto"
	"github.com/kingrain94/entitlement-api/internal/middleware"
	"github.com/kingrain94/entitlement-api/internal/service"
	"github.com/kingrain94/entitlement-api/internal/utils"
)

type BaseHandler struct{}

// RequestCtx returns the request context with every gin key also visible as a context value.
func (h *BaseHandler) RequestCtx(ginCtx *gin.Context) context.Context {
	ctx := ginCtx.Request.Context()
	for k, v := range ginCtx.Keys {
		contextKey := utils.ContextKey(k)
		if ctx.Value(contextKey) == nil {
			ctx = context.WithValue(ctx, contextKey, v)
		}
	}
	return ctx
}

// ActorID is the id of the authenticated caller, recorded on administrative changes.
func (h *BaseHandler) ActorID(ctx context.Context) string {
	principal, err := utils.GetPrincipalFromContext(ctx)
	if err != nil {
		return ""
	}
	return principal.ID
}

func (h *BaseHandler) BindError(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, dto.Error{Error: middleware.FormatBindingError(err)})
}

// Error maps service errors to status codes.
func (h *BaseHandler) Error(c *gin.Context, err error) {
	c.JSON(statusFor(err), dto.Error{Error: err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrTenantNotFound),
		errors.Is(err, service.ErrFeatureFlagNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrTenantExists):
		return http.StatusConflict
	case errors.Is(err, service.ErrInvalidTenantStatus),
		errors.Is(err, service.ErrInvalidSchemaName),
		errors.Is(err, service.ErrInvalidFeatureFlag),
		errors.Is(err, service.ErrInvalidPlanLevel),
		errors.Is(err, service.ErrUndefinedValue),
		errors.Is(err, service.ErrInvalidTimeRange):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
