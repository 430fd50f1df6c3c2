package chat

import (
	"context"
	"errors"
	"fmt"

	"github.com/ashwinyue/next-chat/internal/errs"
	"github.com/ashwinyue/next-chat/internal/model"
	"github.com/ashwinyue/next-chat/internal/repository"
	"github.com/ashwinyue/next-chat/internal/service/stream"
)

// Service 会话查询服务
type Service struct {
	chats    repository.ChatStore
	registry *stream.Registry
}

// NewService 创建会话查询服务
func NewService(chats repository.ChatStore, registry *stream.Registry) *Service {
	return &Service{chats: chats, registry: registry}
}

// ChatWithMessages 会话及其消息
type ChatWithMessages struct {
	Chat     *model.Chat      `json:"chat"`
	Messages []*model.Message `json:"messages"`
}

// ChatList 分页会话列表
type ChatList struct {
	Chats []*model.Chat `json:"chats"`
	Pages int           `json:"pages"`
}

// GetChat 获取会话及消息，不存在或不属于用户时返回 {nil, []}
func (s *Service) GetChat(ctx context.Context, userID, pubID string) (*ChatWithMessages, error) {
	chat, err := s.chats.GetChat(ctx, userID, pubID)
	if errors.Is(err, errs.ErrNotFound) {
		return &ChatWithMessages{Messages: []*model.Message{}}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get chat: %w", err)
	}

	msgs, err := s.chats.ListMessages(ctx, chat.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	return &ChatWithMessages{Chat: chat, Messages: msgs}, nil
}

// ListChats 分页列出会话
func (s *Service) ListChats(ctx context.Context, userID string, page int, search string) (*ChatList, error) {
	chats, pages, err := s.chats.ListChats(ctx, userID, page, search)
	if err != nil {
		return nil, fmt.Errorf("failed to list chats: %w", err)
	}
	if chats == nil {
		chats = []*model.Chat{}
	}
	return &ChatList{Chats: chats, Pages: pages}, nil
}

// DeleteChat 删除会话及其消息
func (s *Service) DeleteChat(ctx context.Context, userID, pubID string) error {
	return s.chats.DeleteChat(ctx, userID, pubID)
}

// ResumeKey 返回可恢复的流 key
// 优先取注册表中进行中的流，其次是最后一条用户消息对应的 key
func (s *Service) ResumeKey(ctx context.Context, userID, pubID string) (string, error) {
	chat, err := s.chats.GetChat(ctx, userID, pubID)
	if err != nil {
		return "", err
	}

	if key, ok := s.registry.ActiveKey(ctx, pubID); ok {
		return key, nil
	}

	msgID, ok, err := s.chats.LastUserMessageID(ctx, chat.ID)
	if err != nil {
		return "", fmt.Errorf("failed to find last user message: %w", err)
	}
	if !ok {
		return "", errs.NotFound("no stream for chat %s", pubID)
	}
	return stream.StreamKey(msgID), nil
}

// Resume 订阅会话最近一次生成的流
func (s *Service) Resume(ctx context.Context, userID, pubID string) (<-chan stream.Frame, error) {
	key, err := s.ResumeKey(ctx, userID, pubID)
	if err != nil {
		return nil, err
	}
	return s.registry.Resume(ctx, key)
}
