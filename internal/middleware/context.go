package middleware

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/kingrain94/entitlement-api/internal/utils"
)

// setRequestValue stores v on the gin context and on the request context so both
// c.Get and the utils getters observe it downstream.
func setRequestValue(c *gin.Context, key utils.ContextKey, v any) {
	c.Set(string(key), v)
	c.Request = c.Request.WithContext(context.WithValue(c.Request.Context(), key, v))
}
