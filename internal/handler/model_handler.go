package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/ashwinyue/next-chat/internal/service"
)

// ModelHandler 模型价目处理器
type ModelHandler struct {
	svc *service.Services
}

// NewModelHandler 创建模型价目处理器
func NewModelHandler(svc *service.Services) *ModelHandler {
	return &ModelHandler{svc: svc}
}

// ListModels 列出可用的模型及价目
// @Param provider query string false "提供商"
// @Router /models [get]
func (h *ModelHandler) ListModels(c *gin.Context) {
	models, err := h.svc.Models.ListModels(c.Request.Context(), c.Query("provider"))
	if err != nil {
		Error(c, err)
		return
	}
	Success(c, gin.H{"models": models})
}

// ListModelProviders 列出支持的模型提供商
// @Router /models/providers [get]
func (h *ModelHandler) ListModelProviders(c *gin.Context) {
	Success(c, gin.H{"providers": h.svc.Models.ListModelProviders(c.Request.Context())})
}
