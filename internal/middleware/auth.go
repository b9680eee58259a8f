package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/kingrain94/entitlement-api/internal/config"
	"github.com/kingrain94/entitlement-api/internal/domain"
	"github.com/kingrain94/entitlement-api/internal/utils"
)

var (
	errMissingAuthHeader = errors.New("Authorization header is required")
	errInvalidAuthHeader = errors.New("Invalid authorization header format")
	errInvalidToken      = errors.New("Invalid or expired token")
)

type AuthMiddleware struct {
	config *config.Config
}

func NewAuthMiddleware(config *config.Config) *AuthMiddleware {
	return &AuthMiddleware{
		config: config,
	}
}

// JWTAuth requires a valid bearer token and attaches the caller to the request.
func (m *AuthMiddleware) JWTAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetHeader("Authorization") == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errMissingAuthHeader.Error()})
			return
		}
		if !m.authenticate(c) {
			return
		}
		c.Next()
	}
}

// OptionalAuth attaches the caller when a bearer token is present and lets anonymous
// requests through. A malformed or expired token is still rejected.
func (m *AuthMiddleware) OptionalAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetHeader("Authorization") == "" {
			c.Next()
			return
		}
		if !m.authenticate(c) {
			return
		}
		c.Next()
	}
}

func (m *AuthMiddleware) authenticate(c *gin.Context) bool {
	claims, err := m.parseHeader(c.GetHeader("Authorization"))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return false
	}

	principal := PrincipalFromClaims(claims)
	if principal.ID == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Token has no subject"})
		return false
	}

	// A tenant token may only be used against its own subdomain.
	if resolved, ok := c.Get(string(utils.TenantIDKey)); ok {
		if id, _ := resolved.(string); id != "" && principal.TenantID != "" && id != principal.TenantID && !principal.HasRole(domain.RoleAdmin) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Token does not belong to this tenant"})
			return false
		}
	}

	setRequestValue(c, utils.ClaimsKey, claims)
	setRequestValue(c, utils.PrincipalKey, principal)
	return true
}

func (m *AuthMiddleware) parseHeader(header string) (jwt.MapClaims, error) {
	bearerToken := strings.Split(header, " ")
	if len(bearerToken) != 2 || strings.ToLower(bearerToken[0]) != "bearer" {
		return nil, errInvalidAuthHeader
	}

	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(bearerToken[1], &claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return []byte(m.config.JWTSecretKey), nil
	})
	if err != nil {
		return nil, errInvalidToken
	}
	return claims, nil
}

// PrincipalFromClaims reads user_id (or sub), tenant_id, email and roles.
func PrincipalFromClaims(claims jwt.MapClaims) *domain.Principal {
	principal := &domain.Principal{
		ID:       stringClaim(claims, "user_id"),
		TenantID: stringClaim(claims, "tenant_id"),
		Email:    stringClaim(claims, "email"),
		Roles:    rolesClaim(claims),
	}
	if principal.ID == "" {
		principal.ID = stringClaim(claims, "sub")
	}
	return principal
}

func stringClaim(claims jwt.MapClaims, name string) string {
	v, _ := claims[name].(string)
	return v
}

func rolesClaim(claims jwt.MapClaims) []string {
	switch roles := claims["roles"].(type) {
	case []any:
		out := make([]string, 0, len(roles))
		for _, role := range roles {
			if s, ok := role.(string); ok {
				out = append(out, s)
			}
		}
		return out
	case []string:
		return roles
	case string:
		return []string{roles}
	}
	return nil
}

// RequireRole middleware checks that the user holds at least one of the roles
func (m *AuthMiddleware) RequireRole(roles ...domain.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, err := utils.GetPrincipalFromContext(c.Request.Context())
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "No authentication found"})
			return
		}

		if !domain.HasAnyRole(principal.Roles, roles...) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Insufficient permissions"})
			return
		}

		c.Next()
	}
}

// GenerateToken signs a token for local development and tests.
func (m *AuthMiddleware) GenerateToken(userID, tenantID, email string, roles []string) (string, error) {
	claims := jwt.MapClaims{
		"user_id":   userID,
		"tenant_id": tenantID,
		"roles":     roles,
		"exp":       time.Now().Add(time.Duration(m.config.JWTExpirationHours) * time.Hour).Unix(),
		"iat":       time.Now().Unix(),
	}
	if email != "" {
		claims["email"] = email
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(m.config.JWTSecretKey))
}
