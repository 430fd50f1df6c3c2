package router

import (
	"log/slog"

	"github.com/gin-gonic/gin"

	"github.com/ashwinyue/next-chat/internal/handler"
	"github.com/ashwinyue/next-chat/internal/middleware"
)

// SetupRouter 设置路由
func SetupRouter(h *handler.Handlers, auth middleware.TokenValidator, logger *slog.Logger) *gin.Engine {
	r := gin.New()

	// 中间件
	r.Use(middleware.RecoveryMiddleware(logger))
	r.Use(middleware.LoggingMiddleware(logger))

	// 健康检查
	r.GET("/health", h.Health.Check)

	api := r.Group("/")
	api.Use(middleware.RequireAuth(auth))
	{
		// 会话
		api.POST("/chat", h.Chat.Stream)
		api.GET("/chat", h.Chat.Get)
		api.DELETE("/chat", h.Chat.Delete)
		api.GET("/chat/resume", h.Chat.Resume)
		api.POST("/chat/branch", h.Chat.Branch)
		api.GET("/chats", h.Chat.List)

		// 积分
		api.GET("/credits", h.Credit.Balance)
		api.GET("/credit-logs", h.Credit.Logs)

		// 模型
		api.GET("/models", h.Model.ListModels)
		api.GET("/models/providers", h.Model.ListModelProviders)
	}

	return r
}
