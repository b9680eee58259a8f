package middleware

import (
	"net/http"
	"net/url"
	"regexp"
	"slices"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/kingrain94/entitlement-api/pkg/logger"
)

var suspiciousPatterns = compilePatterns(
	// SQL injection
	`(?i)(\bUNION\b.*\bSELECT\b)`,
	`(?i)(\bOR\b.*=.*\bOR\b)`,
	`(?i)(\bAND\b.*=.*\bAND\b)`,
	`(?i)(\bINSERT\b.*\bINTO\b)`,
	`(?i)(\bDELETE\b.*\bFROM\b)`,
	`(?i)(\bUPDATE\b.*\bSET\b)`,
	`(?i)(\bDROP\b.*\b(TABLE|SCHEMA)\b)`,
	`(?i)(\bALTER\b.*\bTABLE\b)`,
	`(?i)(\bSET\b\s+\bsearch_path\b)`,
	`--`,
	`/\*.*\*/`,
	// XSS
	`(?i)<script.*?>`,
	`(?i)javascript:`,
	`(?i)onload=`,
	`(?i)onclick=`,
	`(?i)onerror=`,
	`(?i)<iframe.*?>`,
	`(?i)<object.*?>`,
	`(?i)<embed.*?>`,
	// Path traversal
	`\.\.\/`,
	`\.\.\\`,
	`(?i)%2e%2e%2f`,
	`(?i)%2e%2e%5c`,
)

// Headers that carry opaque credentials are never inspected or rewritten.
var skippedHeaders = []string{"Authorization", "Cookie"}

func compilePatterns(patterns ...string) []*regexp.Regexp {
	compiled := make([]*regexp.Regexp, len(patterns))
	for i, p := range patterns {
		compiled[i] = regexp.MustCompile(p)
	}
	return compiled
}

type ValidationMiddleware struct {
	logger *logger.Logger
}

func NewValidationMiddleware(logger *logger.Logger) *ValidationMiddleware {
	return &ValidationMiddleware{
		logger: logger,
	}
}

// SanitizeInput strips null bytes and control characters from query parameters and headers.
func (m *ValidationMiddleware) SanitizeInput() gin.HandlerFunc {
	return func(c *gin.Context) {
		query := c.Request.URL.Query()
		queryChanged := false
		for key, values := range query {
			for i, value := range values {
				if sanitized := sanitizeString(value); sanitized != value {
					m.logger.Info("Sanitized query parameter", zap.String("key", key))
					values[i] = sanitized
					queryChanged = true
				}
			}
		}
		if queryChanged {
			c.Request.URL.RawQuery = query.Encode()
		}

		for key, values := range c.Request.Header {
			if slices.Contains(skippedHeaders, key) {
				continue
			}
			for i, value := range values {
				if sanitized := sanitizeString(value); sanitized != value {
					m.logger.Info("Sanitized header", zap.String("key", key))
					values[i] = sanitized
				}
			}
		}

		c.Next()
	}
}

// ValidateContentType ensures only allowed content types on requests that carry a body.
func (m *ValidationMiddleware) ValidateContentType(allowedTypes ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodGet || c.Request.Method == http.MethodDelete || c.Request.ContentLength == 0 {
			c.Next()
			return
		}

		contentType := c.GetHeader("Content-Type")
		if contentType == "" {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Content-Type header is required"})
			return
		}

		contentType = strings.TrimSpace(strings.Split(contentType, ";")[0])
		if !slices.Contains(allowedTypes, contentType) {
			c.AbortWithStatusJSON(http.StatusUnsupportedMediaType, gin.H{
				"error":         "Unsupported Content-Type",
				"allowed_types": allowedTypes,
			})
			return
		}

		c.Next()
	}
}

// ValidateRequestSize limits request body size
func (m *ValidationMiddleware) ValidateRequestSize(maxSize int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.ContentLength > maxSize {
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, gin.H{
				"error":         "Request body too large",
				"max_size":      maxSize,
				"received_size": c.Request.ContentLength,
			})
			return
		}

		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxSize)
		c.Next()
	}
}

// BlockSuspiciousPatterns rejects requests whose path, query or headers look like an
// injection attempt. Bodies are validated by binding instead.
func (m *ValidationMiddleware) BlockSuspiciousPatterns() gin.HandlerFunc {
	return func(c *gin.Context) {
		if containsSuspiciousPattern(c.Request.URL.Path) {
			m.reject(c, zap.String("path", c.Request.URL.Path))
			return
		}

		for _, pair := range rawQueryPairs(c.Request.URL.RawQuery) {
			if containsSuspiciousPattern(pair) {
				key, _, _ := strings.Cut(pair, "=")
				m.reject(c, zap.String("query_key", key))
				return
			}
		}

		for key, values := range c.Request.Header {
			if slices.Contains(skippedHeaders, key) {
				continue
			}
			for _, value := range values {
				if containsSuspiciousPattern(value) {
					m.reject(c, zap.String("header", key))
					return
				}
			}
		}

		c.Next()
	}
}

// rawQueryPairs decodes every "&"-separated pair of the raw query. URL.Query
// drops pairs containing ";", so those must be inspected from the raw form.
func rawQueryPairs(rawQuery string) []string {
	if rawQuery == "" {
		return nil
	}
	pairs := strings.Split(rawQuery, "&")
	for i, pair := range pairs {
		if decoded, err := url.QueryUnescape(pair); err == nil {
			pairs[i] = decoded
		}
	}
	return pairs
}

func (m *ValidationMiddleware) reject(c *gin.Context, field zap.Field) {
	m.logger.Warn("Blocked suspicious request", field, zap.String("ip", c.ClientIP()))
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
}

func sanitizeString(input string) string {
	return strings.Map(func(r rune) rune {
		if r >= 32 || r == '\n' || r == '\r' || r == '\t' {
			return r
		}
		return -1
	}, input)
}

func containsSuspiciousPattern(input string) bool {
	for _, pattern := range suspiciousPatterns {
		if pattern.MatchString(input) {
			return true
		}
	}
	return false
}
