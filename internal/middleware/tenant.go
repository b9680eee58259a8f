package middleware

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/kingrain94/entitlement-api/internal/api/dto"
	"github.com/kingrain94/entitlement-api/internal/config"
	"github.com/kingrain94/entitlement-api/internal/domain"
	"github.com/kingrain94/entitlement-api/internal/repository"
	"github.com/kingrain94/entitlement-api/internal/utils"
	"github.com/kingrain94/entitlement-api/pkg/logger"
)

// TenantLookup finds the tenant registered under a subdomain.
type TenantLookup interface {
	GetBySubdomain(ctx context.Context, subdomain string) (*domain.Tenant, error)
}

// Resolution is the tenant context derived from one request. Tenant is nil when the
// request runs against the default schema.
type Resolution struct {
	Schema string
	Tenant *domain.Tenant
}

func (r Resolution) TenantID() string {
	if r.Tenant == nil {
		return ""
	}
	return r.Tenant.ID
}

// RejectionError is returned by Resolve when the tenant exists but may not be served.
type RejectionError struct {
	Err          error
	Status       int
	Code         string
	Message      string
	TenantStatus string
}

func (e *RejectionError) Error() string {
	return e.Code + ": " + e.Message
}

func (e *RejectionError) Unwrap() error {
	return e.Err
}

func (e *RejectionError) Response() dto.TenantRejectionResponse {
	return dto.TenantRejectionResponse{Error: e.Code, Message: e.Message, TenantStatus: e.TenantStatus}
}

type TenantResolver struct {
	lookup         TenantLookup
	binder         repository.SchemaBinder
	defaultSchema  string
	publicPrefixes []string
	reserved       map[string]struct{}
	logger         *logger.Logger
}

func NewTenantResolver(lookup TenantLookup, binder repository.SchemaBinder, cfg *config.Config, logger *logger.Logger) *TenantResolver {
	reserved := make(map[string]struct{}, len(cfg.ReservedSubdomains))
	for _, s := range cfg.ReservedSubdomains {
		reserved[strings.ToLower(s)] = struct{}{}
	}
	defaultSchema := cfg.DefaultSchema
	if defaultSchema == "" {
		defaultSchema = "public"
	}
	return &TenantResolver{
		lookup:         lookup,
		binder:         binder,
		defaultSchema:  defaultSchema,
		publicPrefixes: cfg.PublicRoutePrefixes,
		reserved:       reserved,
		logger:         logger,
	}
}

// ExtractSubdomain returns the leftmost label of host when host has more than two
// labels. Ports are ignored; localhost and IP addresses never carry a subdomain.
func ExtractSubdomain(host string) string {
	host = strings.ToLower(strings.TrimSpace(host))
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	host = strings.TrimSuffix(host, ".")
	if host == "" || host == "localhost" || net.ParseIP(host) != nil {
		return ""
	}
	labels := strings.Split(host, ".")
	if len(labels) <= 2 {
		return ""
	}
	return labels[0]
}

func (r *TenantResolver) isPublic(path string) bool {
	for _, prefix := range r.publicPrefixes {
		if prefix != "" && strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// Resolve maps host and path to a tenant context. Unknown subdomains and lookup
// failures resolve to the default schema; only a *RejectionError is returned as error.
func (r *TenantResolver) Resolve(ctx context.Context, host, path string) (Resolution, error) {
	fallback := Resolution{Schema: r.defaultSchema}
	if r.isPublic(path) {
		return fallback, nil
	}

	subdomain := ExtractSubdomain(host)
	if subdomain == "" {
		return fallback, nil
	}
	if _, ok := r.reserved[subdomain]; ok {
		r.logger.Debug("Reserved subdomain, serving default schema", zap.String("subdomain", subdomain))
		return fallback, nil
	}

	log := r.logger.With(zap.String("subdomain", subdomain))
	tenant, err := r.lookup.GetBySubdomain(ctx, subdomain)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			log.Warn("Tenant not found for subdomain")
		} else {
			log.Error("Failed to resolve tenant", err)
		}
		return fallback, nil
	}
	if tenant == nil {
		log.Warn("Tenant not found for subdomain")
		return fallback, nil
	}

	if rejection := rejectionFor(tenant); rejection != nil {
		return fallback, rejection
	}

	return Resolution{Schema: tenant.Schema, Tenant: tenant}, nil
}

func rejectionFor(tenant *domain.Tenant) *RejectionError {
	switch {
	case tenant.Status == domain.TenantStatusSuspended:
		return &RejectionError{
			Err:          ErrTenantSuspended,
			Status:       http.StatusForbidden,
			Code:         "tenant_suspended",
			Message:      "This tenant account has been suspended",
			TenantStatus: string(tenant.Status),
		}
	case tenant.Status == domain.TenantStatusExpired:
		return &RejectionError{
			Err:          ErrTenantExpired,
			Status:       http.StatusPaymentRequired,
			Code:         "tenant_expired",
			Message:      "This tenant's subscription has expired",
			TenantStatus: string(tenant.Status),
		}
	case tenant.IsDeleted:
		return &RejectionError{
			Err:          ErrTenantDeleted,
			Status:       http.StatusNotFound,
			Code:         "tenant_not_found",
			Message:      "Tenant not found",
			TenantStatus: "deleted",
		}
	}
	return nil
}

// Middleware resolves the tenant, binds the request to its schema and releases the
// connection once the handler chain returns.
func (r *TenantResolver) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		res, err := r.Resolve(c.Request.Context(), c.Request.Host, c.Request.URL.Path)
		if err != nil {
			var rejection *RejectionError
			if errors.As(err, &rejection) {
				r.logger.Warn("Rejected tenant request",
					zap.String("tenant_status", rejection.TenantStatus),
					zap.String("host", c.Request.Host),
					zap.String("reason", rejection.Code))
				c.AbortWithStatusJSON(rejection.Status, rejection.Response())
				return
			}
			c.AbortWithStatusJSON(http.StatusInternalServerError, dto.Error{Error: "Failed to resolve tenant"})
			return
		}

		if res.Tenant != nil {
			setRequestValue(c, utils.TenantIDKey, res.Tenant.ID)
			setRequestValue(c, utils.TenantKey, res.Tenant)
		}

		if res.Schema != r.defaultSchema && r.binder != nil {
			db, release, err := r.binder.Bind(c.Request.Context(), res.Schema)
			if err != nil {
				r.logger.Error("Failed to bind tenant schema, using default", err,
					zap.String("schema", res.Schema),
					zap.String("tenant_id", res.TenantID()))
				res.Schema = r.defaultSchema
			} else {
				defer release()
				setRequestValue(c, utils.TenantDBKey, db)
			}
		}
		setRequestValue(c, utils.TenantSchemaKey, res.Schema)

		c.Next()
	}
}
