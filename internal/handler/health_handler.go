package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ashwinyue/next-chat/internal/service"
)

// HealthHandler 健康检查
type HealthHandler struct {
	svc *service.Services
}

// NewHealthHandler 创建健康检查处理器
func NewHealthHandler(svc *service.Services) *HealthHandler {
	return &HealthHandler{svc: svc}
}

// Check 健康检查，可恢复流不可用时标记为 degraded 但仍返回 200
// @Router /health [get]
func (h *HealthHandler) Check(c *gin.Context) {
	streams := "disabled"
	if h.svc.Config.Redis.URL != "" {
		streams = "degraded"
		if h.svc.Registry.Enabled(c.Request.Context()) {
			streams = "ok"
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"version": h.svc.Config.App.Version,
		"streams": streams,
	})
}
