// Package branch 从已有会话的消息前缀派生新会话
package branch

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"github.com/ashwinyue/next-chat/internal/errs"
	"github.com/ashwinyue/next-chat/internal/model"
	"github.com/ashwinyue/next-chat/internal/repository"
	"github.com/ashwinyue/next-chat/internal/service/types"
	"github.com/ashwinyue/next-chat/internal/service/validator"
)

const titlePrefix = "Branch - "

// Service 分支服务
type Service struct {
	chats  repository.ChatStore
	logger *slog.Logger
}

// NewService 创建分支服务
func NewService(chats repository.ChatStore, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{chats: chats, logger: logger.With("component", "branch")}
}

// Branch 创建分支会话
// 消息前缀由客户端提供，按顺序原样复制，不与源会话比对
func (s *Service) Branch(ctx context.Context, userID string, req *types.BranchRequest) (*model.Chat, error) {
	if err := validator.ValidateBranchRequest(req); err != nil {
		return nil, err
	}

	source, err := s.chats.GetChat(ctx, userID, req.ParentID)
	if err != nil {
		return nil, err
	}

	if _, err := s.chats.GetChatByPubID(ctx, req.ID); err == nil {
		return nil, errs.Validation("chat %s already exists", req.ID)
	} else if !errors.Is(err, errs.ErrNotFound) {
		return nil, err
	}

	chat := &model.Chat{
		PubID:    req.ID,
		UserID:   userID,
		Title:    titlePrefix + source.Title,
		ParentID: &source.ID,
	}
	if err := s.chats.CreateChatWithMessages(ctx, chat, copyMessages(req.Messages)); err != nil {
		return nil, errs.Persistence("create branch", err)
	}

	s.logger.InfoContext(ctx, "chat branched",
		"userId", userID,
		"chatId", chat.PubID,
		"parentId", source.PubID,
		"messages", len(req.Messages),
	)
	return chat, nil
}

// copyMessages 复制消息内容，pubId 重新生成以避免与源会话冲突
func copyMessages(in []types.IncomingMessage) []*model.Message {
	out := make([]*model.Message, 0, len(in))
	for i := range in {
		m := &in[i]
		out = append(out, &model.Message{
			PubID:       uuid.NewString(),
			Role:        m.Role,
			Content:     m.Content,
			Parts:       model.EncodeParts(m.Parts),
			Attachments: model.EncodeAttachments(m.Attachments),
		})
	}
	return out
}
