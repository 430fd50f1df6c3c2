package handler

import (
	"github.com/ashwinyue/next-chat/internal/service"
)

// Handlers 处理器集合
type Handlers struct {
	Chat   *ChatHandler
	Credit *CreditHandler
	Model  *ModelHandler
	Health *HealthHandler
}

// NewHandlers 创建所有处理器
func NewHandlers(svc *service.Services) *Handlers {
	return &Handlers{
		Chat:   NewChatHandler(svc),
		Credit: NewCreditHandler(svc),
		Model:  NewModelHandler(svc),
		Health: NewHealthHandler(svc),
	}
}
