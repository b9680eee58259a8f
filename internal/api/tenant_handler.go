package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kingrain94/entitlement-api/internal/api/dto"
	"github.com/kingrain94/entitlement-api/internal/domain"
	"github.com/kingrain94/entitlement-api/internal/utils"
)

type TenantService interface {
	Create(ctx context.Context, req dto.CreateTenantRequest) (*dto.TenantResponse, error)
	GetByID(ctx context.Context, id string) (*domain.Tenant, error)
	List(ctx context.Context) ([]dto.TenantResponse, error)
	Update(ctx context.Context, id string, req dto.UpdateTenantRequest) (*dto.TenantResponse, error)
	UpdateStatus(ctx context.Context, id, status string) error
	Delete(ctx context.Context, id string) error
}

type TenantHandler struct {
	*BaseHandler
	service TenantService
}

func NewTenantHandler(service TenantService) *TenantHandler {
	return &TenantHandler{service: service}
}

// CreateTenant godoc
// @Summary Onboard a new tenant
// @Description Create a tenant in trial status and provision its schema
// @Tags tenants
// @Accept json
// @Produce json
// @Param body body dto.CreateTenantRequest true "Tenant object"
// @Success 201 {object} dto.TenantResponse
// @Failure 400 {object} dto.Error
// @Failure 401 {object} dto.Error
// @Failure 409 {object} dto.Error
// @Failure 500 {object} dto.Error
// @Router /tenants [post]
func (h *TenantHandler) CreateTenant(c *gin.Context) {
	var req dto.CreateTenantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	tenant, err := h.service.Create(h.RequestCtx(c), req)
	if err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusCreated, tenant)
}

// ListTenants godoc
// @Summary List all tenants
// @Description Get every tenant that has not been deleted
// @Tags tenants
// @Produce json
// @Success 200 {array} dto.TenantResponse
// @Failure 401 {object} dto.Error
// @Failure 500 {object} dto.Error
// @Router /tenants [get]
func (h *TenantHandler) ListTenants(c *gin.Context) {
	tenants, err := h.service.List(h.RequestCtx(c))
	if err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, tenants)
}

// GetTenant godoc
// @Summary Get a tenant
// @Tags tenants
// @Produce json
// @Param id path string true "Tenant ID"
// @Success 200 {object} dto.TenantResponse
// @Failure 404 {object} dto.Error
// @Router /tenants/{id} [get]
func (h *TenantHandler) GetTenant(c *gin.Context) {
	tenant, err := h.service.GetByID(h.RequestCtx(c), c.Param("id"))
	if err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.FromTenant(tenant))
}

// UpdateTenant godoc
// @Summary Update a tenant
// @Tags tenants
// @Accept json
// @Produce json
// @Param id path string true "Tenant ID"
// @Param body body dto.UpdateTenantRequest true "Changed fields"
// @Success 200 {object} dto.TenantResponse
// @Failure 400 {object} dto.Error
// @Failure 404 {object} dto.Error
// @Failure 409 {object} dto.Error
// @Router /tenants/{id} [put]
func (h *TenantHandler) UpdateTenant(c *gin.Context) {
	var req dto.UpdateTenantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	tenant, err := h.service.Update(h.RequestCtx(c), c.Param("id"), req)
	if err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, tenant)
}

// UpdateTenantStatus godoc
// @Summary Change the lifecycle status of a tenant
// @Tags tenants
// @Accept json
// @Produce json
// @Param id path string true "Tenant ID"
// @Param body body dto.UpdateTenantStatusRequest true "New status"
// @Success 204
// @Failure 400 {object} dto.Error
// @Failure 404 {object} dto.Error
// @Router /tenants/{id}/status [put]
func (h *TenantHandler) UpdateTenantStatus(c *gin.Context) {
	var req dto.UpdateTenantStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	if err := h.service.UpdateStatus(h.RequestCtx(c), c.Param("id"), req.Status); err != nil {
		h.Error(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// DeleteTenant godoc
// @Summary Delete a tenant
// @Description Soft delete; the tenant schema is kept
// @Tags tenants
// @Param id path string true "Tenant ID"
// @Success 204
// @Failure 404 {object} dto.Error
// @Router /tenants/{id} [delete]
func (h *TenantHandler) DeleteTenant(c *gin.Context) {
	if err := h.service.Delete(h.RequestCtx(c), c.Param("id")); err != nil {
		h.Error(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// CurrentTenant godoc
// @Summary Describe the tenant context of the request
// @Description Returns the tenant resolved from the host, its schema, the schema active on the bound connection and the features checked on the way
// @Tags tenants
// @Produce json
// @Success 200 {object} dto.CurrentTenantResponse
// @Router /tenant/current [get]
func (h *TenantHandler) CurrentTenant(c *gin.Context) {
	ctx := h.RequestCtx(c)

	resp := dto.CurrentTenantResponse{
		Schema:          utils.GetTenantSchemaFromContext(ctx),
		CheckedFeatures: utils.GetCheckedFeatures(ctx),
	}
	if tenantID, err := utils.GetTenantIDFromContext(ctx); err == nil {
		resp.TenantID = tenantID
	}
	if tenant, ok := utils.GetTenantFromContext(ctx); ok {
		resp.Tenant = dto.FromTenant(tenant)
	}
	if db := utils.GetTenantDB(ctx, nil); db != nil {
		if err := db.Raw("SELECT current_schema()").Scan(&resp.ActiveSchema).Error; err != nil {
			h.Error(c, fmt.Errorf("failed to read active schema: %w", err))
			return
		}
	}

	c.JSON(http.StatusOK, resp)
}
