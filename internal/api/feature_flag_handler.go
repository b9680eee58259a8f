package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kingrain94/entitlement-api/internal/api/dto"
	"github.com/kingrain94/entitlement-api/internal/domain"
	"github.com/kingrain94/entitlement-api/internal/middleware"
)

// FeatureFlagService evaluates flags for the caller and applies administrative changes.
type FeatureFlagService interface {
	GetFeatureFlag(ctx context.Context, key string, ec domain.EvaluationContext) domain.Value
	IsFeatureEnabled(ctx context.Context, key string, ec domain.EvaluationContext) bool
	GetFeatureFlags(ctx context.Context, keys []string, ec domain.EvaluationContext) map[string]domain.Value
	GetAllFeatureFlags(ctx context.Context, ec domain.EvaluationContext) map[string]domain.Value
	GetDefinition(ctx context.Context, key string) (*domain.FeatureFlag, error)
	ListDefinitions(ctx context.Context) ([]*domain.FeatureFlag, error)
	UpsertFlag(ctx context.Context, flag *domain.FeatureFlag, actorID string) (*domain.FeatureFlag, error)
	SetUserOverride(ctx context.Context, key, userID string, value domain.Value, actorID string) (*domain.FeatureFlag, error)
	SetTenantOverride(ctx context.Context, key, tenantID string, value domain.Value, actorID string) (*domain.FeatureFlag, error)
	RemoveUserOverride(ctx context.Context, key, userID, actorID string) (*domain.FeatureFlag, error)
	RemoveTenantOverride(ctx context.Context, key, tenantID, actorID string) (*domain.FeatureFlag, error)
}

type HistoryService interface {
	GetFlagHistory(ctx context.Context, key string, query dto.FlagHistoryQuery) ([]dto.FlagChangeResponse, error)
	ScheduleArchive(ctx context.Context, before string) (time.Time, error)
}

type FeatureFlagHandler struct {
	*BaseHandler
	service FeatureFlagService
	history HistoryService
}

func NewFeatureFlagHandler(service FeatureFlagService, history HistoryService) *FeatureFlagHandler {
	return &FeatureFlagHandler{service: service, history: history}
}

// ListFeatureFlags godoc
// @Summary Evaluate feature flags
// @Description Evaluate every flag, or only the comma separated keys, for the caller
// @Tags feature_flags
// @Produce json
// @Param keys query string false "Comma separated flag keys"
// @Success 200 {object} dto.FeatureFlagsResponse
// @Failure 401 {object} dto.Error
// @Router /feature-flags [get]
func (h *FeatureFlagHandler) ListFeatureFlags(c *gin.Context) {
	ctx := h.RequestCtx(c)
	ec := middleware.EvaluationContextFrom(ctx)

	var flags map[string]domain.Value
	if keys := splitKeys(c.Query("keys")); len(keys) > 0 {
		flags = h.service.GetFeatureFlags(ctx, keys, ec)
	} else {
		flags = h.service.GetAllFeatureFlags(ctx, ec)
	}

	c.JSON(http.StatusOK, dto.FeatureFlagsResponse{Flags: flags})
}

func splitKeys(raw string) []string {
	if raw == "" {
		return nil
	}
	var keys []string
	seen := make(map[string]struct{})
	for _, k := range strings.Split(raw, ",") {
		k = strings.TrimSpace(k)
		if k == "" {
			continue
		}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		keys = append(keys, k)
	}
	return keys
}

// GetFeatureFlag godoc
// @Summary Evaluate one feature flag
// @Tags feature_flags
// @Produce json
// @Param key path string true "Flag key"
// @Success 200 {object} dto.FeatureFlagValueResponse
// @Failure 401 {object} dto.Error
// @Router /feature-flags/{key} [get]
func (h *FeatureFlagHandler) GetFeatureFlag(c *gin.Context) {
	ctx := h.RequestCtx(c)
	key := c.Param("key")
	value := h.service.GetFeatureFlag(ctx, key, middleware.EvaluationContextFrom(ctx))

	c.JSON(http.StatusOK, dto.FeatureFlagValueResponse{Key: key, Value: value, Enabled: value.Truthy()})
}

// IsFeatureEnabled godoc
// @Summary Check whether a feature is enabled
// @Tags feature_flags
// @Produce json
// @Param key path string true "Flag key"
// @Success 200 {object} dto.FeatureEnabledResponse
// @Failure 401 {object} dto.Error
// @Router /feature-flags/{key}/enabled [get]
func (h *FeatureFlagHandler) IsFeatureEnabled(c *gin.Context) {
	ctx := h.RequestCtx(c)
	key := c.Param("key")
	enabled := h.service.IsFeatureEnabled(ctx, key, middleware.EvaluationContextFrom(ctx))

	c.JSON(http.StatusOK, dto.FeatureEnabledResponse{Key: key, Enabled: enabled})
}

// ListDefinitions godoc
// @Summary List flag definitions
// @Tags feature_flags
// @Produce json
// @Success 200 {array} dto.FeatureFlagResponse
// @Failure 401 {object} dto.Error
// @Failure 403 {object} dto.Error
// @Failure 500 {object} dto.Error
// @Router /feature-flags/definitions [get]
func (h *FeatureFlagHandler) ListDefinitions(c *gin.Context) {
	flags, err := h.service.ListDefinitions(h.RequestCtx(c))
	if err != nil {
		h.Error(c, err)
		return
	}

	resp := make([]dto.FeatureFlagResponse, 0, len(flags))
	for _, flag := range flags {
		resp = append(resp, *dto.FromFeatureFlag(flag))
	}
	c.JSON(http.StatusOK, resp)
}

// GetDefinition godoc
// @Summary Get a flag definition
// @Tags feature_flags
// @Produce json
// @Param key path string true "Flag key"
// @Success 200 {object} dto.FeatureFlagResponse
// @Failure 404 {object} dto.Error
// @Router /feature-flags/{key}/definition [get]
func (h *FeatureFlagHandler) GetDefinition(c *gin.Context) {
	flag, err := h.service.GetDefinition(h.RequestCtx(c), c.Param("key"))
	if err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.FromFeatureFlag(flag))
}

// UpsertFeatureFlag godoc
// @Summary Create or replace a flag definition
// @Description Overrides already stored on the flag are kept
// @Tags feature_flags
// @Accept json
// @Produce json
// @Param body body dto.UpsertFeatureFlagRequest true "Flag definition"
// @Success 200 {object} dto.FeatureFlagResponse
// @Failure 400 {object} dto.Error
// @Failure 401 {object} dto.Error
// @Failure 403 {object} dto.Error
// @Failure 500 {object} dto.Error
// @Router /feature-flags [post]
func (h *FeatureFlagHandler) UpsertFeatureFlag(c *gin.Context) {
	var req dto.UpsertFeatureFlagRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	ctx := h.RequestCtx(c)
	flag, err := h.service.UpsertFlag(ctx, req.ToFeatureFlag(), h.ActorID(ctx))
	if err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.FromFeatureFlag(flag))
}

// SetUserOverride godoc
// @Summary Override a flag for one user
// @Tags feature_flags
// @Accept json
// @Produce json
// @Param key path string true "Flag key"
// @Param id path string true "User ID"
// @Param body body dto.SetOverrideRequest true "Override value"
// @Success 200 {object} dto.FeatureFlagResponse
// @Failure 400 {object} dto.Error
// @Failure 404 {object} dto.Error
// @Router /feature-flags/{key}/user-override/{id} [put]
func (h *FeatureFlagHandler) SetUserOverride(c *gin.Context) {
	h.setOverride(c, h.service.SetUserOverride)
}

// SetTenantOverride godoc
// @Summary Override a flag for one tenant
// @Tags feature_flags
// @Accept json
// @Produce json
// @Param key path string true "Flag key"
// @Param id path string true "Tenant ID"
// @Param body body dto.SetOverrideRequest true "Override value"
// @Success 200 {object} dto.FeatureFlagResponse
// @Failure 400 {object} dto.Error
// @Failure 404 {object} dto.Error
// @Router /feature-flags/{key}/tenant-override/{id} [put]
func (h *FeatureFlagHandler) SetTenantOverride(c *gin.Context) {
	h.setOverride(c, h.service.SetTenantOverride)
}

// RemoveUserOverride godoc
// @Summary Remove a user override
// @Tags feature_flags
// @Produce json
// @Param key path string true "Flag key"
// @Param id path string true "User ID"
// @Success 200 {object} dto.FeatureFlagResponse
// @Failure 404 {object} dto.Error
// @Router /feature-flags/{key}/user-override/{id} [delete]
func (h *FeatureFlagHandler) RemoveUserOverride(c *gin.Context) {
	h.removeOverride(c, h.service.RemoveUserOverride)
}

// RemoveTenantOverride godoc
// @Summary Remove a tenant override
// @Tags feature_flags
// @Produce json
// @Param key path string true "Flag key"
// @Param id path string true "Tenant ID"
// @Success 200 {object} dto.FeatureFlagResponse
// @Failure 404 {object} dto.Error
// @Router /feature-flags/{key}/tenant-override/{id} [delete]
func (h *FeatureFlagHandler) RemoveTenantOverride(c *gin.Context) {
	h.removeOverride(c, h.service.RemoveTenantOverride)
}

type setOverrideFunc func(ctx context.Context, key, subjectID string, value domain.Value, actorID string) (*domain.FeatureFlag, error)

type removeOverrideFunc func(ctx context.Context, key, subjectID, actorID string) (*domain.FeatureFlag, error)

func (h *FeatureFlagHandler) setOverride(c *gin.Context, set setOverrideFunc) {
	var req dto.SetOverrideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	ctx := h.RequestCtx(c)
	flag, err := set(ctx, c.Param("key"), c.Param("id"), req.Value, h.ActorID(ctx))
	if err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.FromFeatureFlag(flag))
}

func (h *FeatureFlagHandler) removeOverride(c *gin.Context, remove removeOverrideFunc) {
	ctx := h.RequestCtx(c)
	flag, err := remove(ctx, c.Param("key"), c.Param("id"), h.ActorID(ctx))
	if err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.FromFeatureFlag(flag))
}

// GetFlagHistory godoc
// @Summary Search the change history of a flag
// @Tags feature_flags
// @Produce json
// @Param key path string true "Flag key"
// @Param action query string false "Change action"
// @Param subject_id query string false "User or tenant id of an override"
// @Param actor_id query string false "Administrator who made the change"
// @Param start_time query string false "Start time (RFC3339 or YYYY-MM-DD)"
// @Param end_time query string false "End time (RFC3339 or YYYY-MM-DD)"
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Success 200 {array} dto.FlagChangeResponse
// @Failure 400 {object} dto.Error
// @Failure 500 {object} dto.Error
// @Router /feature-flags/{key}/history [get]
func (h *FeatureFlagHandler) GetFlagHistory(c *gin.Context) {
	var query dto.FlagHistoryQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		h.BindError(c, err)
		return
	}

	changes, err := h.history.GetFlagHistory(h.RequestCtx(c), c.Param("key"), query)
	if err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, changes)
}

// ArchiveHistory godoc
// @Summary Archive flag change history
// @Description Queue the archival to S3 of every change recorded before the given date
// @Tags feature_flags
// @Accept json
// @Produce json
// @Param body body dto.ArchiveHistoryRequest true "Archive cutoff"
// @Success 202 {object} dto.ArchiveScheduledResponse
// @Failure 400 {object} dto.Error
// @Failure 500 {object} dto.Error
// @Router /feature-flags/history/archive [post]
func (h *FeatureFlagHandler) ArchiveHistory(c *gin.Context) {
	var req dto.ArchiveHistoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	before, err := h.history.ScheduleArchive(h.RequestCtx(c), req.Before)
	if err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusAccepted, dto.ArchiveScheduledResponse{Message: "Archive scheduled", Before: before})
}
