// Package repository 定义数据访问接口
// 接口抽象使依赖注入和单元测试成为可能
package repository

import (
	"context"

	"github.com/ashwinyue/next-chat/internal/model"
)

// ========== ChatStore 接口 ==========

// ChatStore 会话与消息数据访问接口
// 消息只追加，没有更新路径
type ChatStore interface {
	// 会话操作
	CreateChat(ctx context.Context, chat *model.Chat) error
	CreateChatWithMessages(ctx context.Context, chat *model.Chat, msgs []*model.Message) error
	GetChat(ctx context.Context, userID, pubID string) (*model.Chat, error)
	GetChatByPubID(ctx context.Context, pubID string) (*model.Chat, error)
	ListChats(ctx context.Context, userID string, page int, search string) ([]*model.Chat, int, error)
	UpdateTitle(ctx context.Context, chatID uint, title string) error
	DeleteChat(ctx context.Context, userID, pubID string) error

	// 消息操作
	MessageExists(ctx context.Context, pubID string) (bool, error)
	AppendMessage(ctx context.Context, msg *model.Message) error
	AppendMessages(ctx context.Context, msgs []*model.Message) error
	ListMessages(ctx context.Context, chatID uint) ([]*model.Message, error)
	LastUserMessageID(ctx context.Context, chatID uint) (string, bool, error)
}

// ========== CreditStore 接口 ==========

// CreditStore 积分数据访问接口
type CreditStore interface {
	GetBalance(ctx context.Context, userID string) (float64, error)
	Debit(ctx context.Context, userID string, fee float64, entry *model.CreditLog) (float64, error)
	Grant(ctx context.Context, userID string, amount float64) (float64, error)
	ListLogs(ctx context.Context, userID string, offset, limit int) ([]*model.CreditLog, int64, error)
}

// ========== ModelStore 接口 ==========

// ModelStore 模型价目数据访问接口
type ModelStore interface {
	GetByProviderAndName(ctx context.Context, provider, name string) (*model.Model, error)
}

// 确保实现了接口
var (
	_ ChatStore   = (*ChatRepository)(nil)
	_ CreditStore = (*CreditRepository)(nil)
	_ ModelStore  = (*ModelRepository)(nil)
)
