package admin

import (
	"net/http"
	"strings"

	"drydock/internal/admission"
	"drydock/internal/config"
	"drydock/internal/http/common"
	"drydock/internal/usecase"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	Service *usecase.AdminService
}

func NewHandler(service *usecase.AdminService) *Handler {
	return &Handler{Service: service}
}

func (h *Handler) HandleGetRateLimits(c *gin.Context) {
	principal, ok := common.PrincipalFromContext(c)
	if !ok {
		return
	}
	limits, err := h.Service.RateLimits(principal)
	if err != nil {
		common.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"rate_limits": limits})
}

func (h *Handler) HandleSetRateLimits(c *gin.Context) {
	principal, ok := common.PrincipalFromContext(c)
	if !ok {
		return
	}
	var req config.RateLimits
	if err := c.ShouldBindJSON(&req); err != nil {
		common.WriteErrorCode(c, http.StatusBadRequest, "INVALID_REQUEST", "invalid request body")
		return
	}
	limits, err := h.Service.SetRateLimits(c.Request.Context(), principal, common.RequestID(c), req)
	if err != nil {
		common.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"rate_limits": limits})
}

func (h *Handler) HandleGetUIExposure(c *gin.Context) {
	principal, ok := common.PrincipalFromContext(c)
	if !ok {
		return
	}
	policy, err := h.Service.UIExposure(principal)
	if err != nil {
		common.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ui_exposure": policy})
}

func (h *Handler) HandleSetUIExposure(c *gin.Context) {
	principal, ok := common.PrincipalFromContext(c)
	if !ok {
		return
	}
	var req config.UIExposure
	if err := c.ShouldBindJSON(&req); err != nil {
		common.WriteErrorCode(c, http.StatusBadRequest, "INVALID_REQUEST", "invalid request body")
		return
	}
	policy, err := h.Service.SetUIExposure(c.Request.Context(), principal, common.RequestID(c), req)
	if err != nil {
		common.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ui_exposure": policy})
}

func (h *Handler) HandleGetMutations(c *gin.Context) {
	principal, ok := common.PrincipalFromContext(c)
	if !ok {
		return
	}
	state, err := h.Service.Mutations(principal)
	if err != nil {
		common.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"mutations": state})
}

func (h *Handler) HandleSetMutations(c *gin.Context) {
	principal, ok := common.PrincipalFromContext(c)
	if !ok {
		return
	}
	var req usecase.MutationSwitch
	if err := c.ShouldBindJSON(&req); err != nil {
		common.WriteErrorCode(c, http.StatusBadRequest, "INVALID_REQUEST", "invalid request body")
		return
	}
	state, err := h.Service.SetMutations(c.Request.Context(), principal, common.RequestID(c), req.Enabled)
	if err != nil {
		common.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"mutations": state})
}

func (h *Handler) HandleQuotaUsage(c *gin.Context) {
	principal, ok := common.PrincipalFromContext(c)
	if !ok {
		return
	}
	quota := c.Query("quota")
	if quota == "" {
		quota = admission.QuotaDeploy
	}
	usage, err := h.Service.QuotaUsage(c.Request.Context(), principal, c.Query("group"), quota)
	if err != nil {
		common.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"quota_usage": usage})
}

func (h *Handler) HandleListPublishers(c *gin.Context) {
	principal, ok := common.PrincipalFromContext(c)
	if !ok {
		return
	}
	publishers, err := h.Service.ListPublishers(c.Request.Context(), principal)
	if err != nil {
		common.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": publishers})
}

func (h *Handler) HandleCreatePublisher(c *gin.Context) {
	principal, ok := common.PrincipalFromContext(c)
	if !ok {
		return
	}
	var req usecase.PublisherView
	if err := c.ShouldBindJSON(&req); err != nil {
		common.WriteErrorCode(c, http.StatusBadRequest, "INVALID_REQUEST", "invalid request body")
		return
	}
	view, err := h.Service.CreatePublisher(c.Request.Context(), principal, common.RequestID(c), req)
	if err != nil {
		common.WriteError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"publisher": view})
}

func (h *Handler) HandleDeletePublisher(c *gin.Context) {
	principal, ok := common.PrincipalFromContext(c)
	if !ok {
		return
	}
	name := strings.TrimSpace(c.Param("name"))
	if name == "" {
		common.WriteErrorCode(c, http.StatusBadRequest, "INVALID_REQUEST", "name is required")
		return
	}
	if err := h.Service.DeletePublisher(c.Request.Context(), principal, common.RequestID(c), name); err != nil {
		common.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": name})
}
