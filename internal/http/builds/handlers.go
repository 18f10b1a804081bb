package builds

import (
	"net/http"
	"strings"

	"drydock/internal/http/common"
	"drydock/internal/usecase"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	Service *usecase.BuildService
}

func NewHandler(service *usecase.BuildService) *Handler {
	return &Handler{Service: service}
}

func (h *Handler) HandleCreateUploadCapability(c *gin.Context) {
	var req usecase.UploadCapabilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.WriteErrorCode(c, http.StatusBadRequest, "INVALID_REQUEST", "invalid request body")
		return
	}
	view, err := h.Service.CreateUploadCapability(c.Request.Context(), req)
	if err != nil {
		common.WriteError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"capability": view})
}

func (h *Handler) HandleRegister(c *gin.Context) {
	principal, ok := common.PrincipalFromContext(c)
	if !ok {
		return
	}
	var req usecase.RegisterBuildRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.WriteErrorCode(c, http.StatusBadRequest, "INVALID_REQUEST", "invalid request body")
		return
	}
	view, err := h.Service.Register(c.Request.Context(), principal, req)
	if err != nil {
		common.WriteError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"build": view})
}

func (h *Handler) HandleGet(c *gin.Context) {
	service := strings.TrimSpace(c.Param("service"))
	version := strings.TrimSpace(c.Param("version"))
	if service == "" || version == "" {
		common.WriteErrorCode(c, http.StatusBadRequest, "INVALID_REQUEST", "service and version are required")
		return
	}
	view, err := h.Service.Get(c.Request.Context(), service, version)
	if err != nil {
		common.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"build": view})
}
