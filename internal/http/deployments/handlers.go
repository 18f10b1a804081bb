package deployments

import (
	"net/http"
	"strconv"
	"strings"

	"drydock/internal/http/common"
	"drydock/internal/usecase"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	Service *usecase.DeploymentService
}

func NewHandler(service *usecase.DeploymentService) *Handler {
	return &Handler{Service: service}
}

func (h *Handler) HandleCreate(c *gin.Context) {
	principal, ok := common.PrincipalFromContext(c)
	if !ok {
		return
	}
	var req usecase.CreateDeploymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.WriteErrorCode(c, http.StatusBadRequest, "INVALID_REQUEST", "invalid request body")
		return
	}
	view, err := h.Service.Create(c.Request.Context(), principal, req, common.IdempotencyKey(c))
	if err != nil {
		common.WriteError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"deployment": view})
}

func (h *Handler) HandleValidate(c *gin.Context) {
	var req usecase.CreateDeploymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.WriteErrorCode(c, http.StatusBadRequest, "INVALID_REQUEST", "invalid request body")
		return
	}
	snapshot, err := h.Service.Validate(c.Request.Context(), req)
	if err != nil {
		common.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"policy": snapshot})
}

func (h *Handler) HandleList(c *gin.Context) {
	service := strings.TrimSpace(c.Query("service"))
	state := strings.TrimSpace(c.Query("state"))
	limit := 0
	if raw := strings.TrimSpace(c.Query("limit")); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil {
			limit = parsed
		}
	}
	views, err := h.Service.List(c.Request.Context(), service, state, limit)
	if err != nil {
		common.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": views})
}

func (h *Handler) HandleGet(c *gin.Context) {
	id, ok := common.ParseUUIDParam(c, "id")
	if !ok {
		return
	}
	view, err := h.Service.Get(c.Request.Context(), id)
	if err != nil {
		common.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deployment": view})
}

func (h *Handler) HandleFailures(c *gin.Context) {
	id, ok := common.ParseUUIDParam(c, "id")
	if !ok {
		return
	}
	failures, err := h.Service.Failures(c.Request.Context(), id)
	if err != nil {
		common.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"failures": failures})
}

func (h *Handler) HandleRollback(c *gin.Context) {
	principal, ok := common.PrincipalFromContext(c)
	if !ok {
		return
	}
	id, ok := common.ParseUUIDParam(c, "id")
	if !ok {
		return
	}
	view, err := h.Service.Rollback(c.Request.Context(), principal, id, common.IdempotencyKey(c))
	if err != nil {
		common.WriteError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"deployment": view})
}

func (h *Handler) HandlePromote(c *gin.Context) {
	principal, ok := common.PrincipalFromContext(c)
	if !ok {
		return
	}
	var req usecase.PromotionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.WriteErrorCode(c, http.StatusBadRequest, "INVALID_REQUEST", "invalid request body")
		return
	}
	view, err := h.Service.Promote(c.Request.Context(), principal, req, common.IdempotencyKey(c))
	if err != nil {
		common.WriteError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"deployment": view})
}

func (h *Handler) HandleValidatePromotion(c *gin.Context) {
	var req usecase.PromotionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.WriteErrorCode(c, http.StatusBadRequest, "INVALID_REQUEST", "invalid request body")
		return
	}
	snapshot, err := h.Service.ValidatePromotion(c.Request.Context(), req)
	if err != nil {
		common.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"policy": snapshot})
}
