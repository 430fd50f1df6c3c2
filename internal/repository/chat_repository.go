package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ashwinyue/next-chat/internal/errs"
	"github.com/ashwinyue/next-chat/internal/model"
	"gorm.io/gorm"
)

// ChatsPerPage 会话列表每页条数
const ChatsPerPage = 10

// ChatRepository 聊天数据访问
type ChatRepository struct {
	db *gorm.DB
}

// NewChatRepository 创建聊天仓库
func NewChatRepository(db *gorm.DB) *ChatRepository {
	return &ChatRepository{db: db}
}

// CreateChat 创建会话
func (r *ChatRepository) CreateChat(ctx context.Context, chat *model.Chat) error {
	return r.db.WithContext(ctx).Create(chat).Error
}

// CreateChatWithMessages 在一个事务内创建会话并写入消息
func (r *ChatRepository) CreateChatWithMessages(ctx context.Context, chat *model.Chat, msgs []*model.Message) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(chat).Error; err != nil {
			return err
		}
		for _, m := range msgs {
			m.ChatID = chat.ID
			if err := tx.Create(m).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// GetChat 获取属于用户的会话，不存在或不属于该用户时返回 NotFound
func (r *ChatRepository) GetChat(ctx context.Context, userID, pubID string) (*model.Chat, error) {
	var chat model.Chat
	err := r.db.WithContext(ctx).
		Where("pub_id = ? AND user_id = ?", pubID, userID).
		First(&chat).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errs.NotFound("chat %s not found", pubID)
	}
	if err != nil {
		return nil, err
	}
	return &chat, nil
}

// GetChatByPubID 按 pubId 获取会话，不校验归属
func (r *ChatRepository) GetChatByPubID(ctx context.Context, pubID string) (*model.Chat, error) {
	var chat model.Chat
	err := r.db.WithContext(ctx).Where("pub_id = ?", pubID).First(&chat).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errs.NotFound("chat %s not found", pubID)
	}
	if err != nil {
		return nil, err
	}
	return &chat, nil
}

// ListChats 分页列出会话，按创建时间倒序，search 按标题子串过滤
// 返回当前页与总页数
func (r *ChatRepository) ListChats(ctx context.Context, userID string, page int, search string) ([]*model.Chat, int, error) {
	if page < 1 {
		page = 1
	}

	query := r.db.WithContext(ctx).Model(&model.Chat{}).Where("user_id = ?", userID)
	if search = strings.TrimSpace(search); search != "" {
		query = query.Where(`LOWER(title) LIKE ? ESCAPE '\'`, "%"+escapeLike(strings.ToLower(search))+"%")
	}
	query = query.Session(&gorm.Session{})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	chats := make([]*model.Chat, 0)
	err := query.Order("id DESC").
		Offset((page - 1) * ChatsPerPage).
		Limit(ChatsPerPage).
		Find(&chats).Error
	if err != nil {
		return nil, 0, err
	}

	pages := int((total + ChatsPerPage - 1) / ChatsPerPage)
	return chats, pages, nil
}

// UpdateTitle 更新会话标题
func (r *ChatRepository) UpdateTitle(ctx context.Context, chatID uint, title string) error {
	return r.db.WithContext(ctx).Model(&model.Chat{}).
		Where("id = ?", chatID).
		Update("title", title).Error
}

// DeleteChat 删除会话及其消息
func (r *ChatRepository) DeleteChat(ctx context.Context, userID, pubID string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var chat model.Chat
		err := tx.Where("pub_id = ? AND user_id = ?", pubID, userID).First(&chat).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return errs.NotFound("chat %s not found", pubID)
		}
		if err != nil {
			return err
		}
		if err := tx.Delete(&model.Message{}, "chat_id = ?", chat.ID).Error; err != nil {
			return fmt.Errorf("delete messages: %w", err)
		}
		return tx.Delete(&model.Chat{}, "id = ?", chat.ID).Error
	})
}

// MessageExists 消息 pubId 是否已被占用
func (r *ChatRepository) MessageExists(ctx context.Context, pubID string) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&model.Message{}).Where("pub_id = ?", pubID).Count(&n).Error
	return n > 0, err
}

// AppendMessage 追加消息
func (r *ChatRepository) AppendMessage(ctx context.Context, msg *model.Message) error {
	return r.db.WithContext(ctx).Create(msg).Error
}

// AppendMessages 在一个事务内按顺序追加消息
func (r *ChatRepository) AppendMessages(ctx context.Context, msgs []*model.Message) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, m := range msgs {
			if err := tx.Create(m).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// ListMessages 获取会话消息，按写入顺序升序
func (r *ChatRepository) ListMessages(ctx context.Context, chatID uint) ([]*model.Message, error) {
	messages := make([]*model.Message, 0)
	err := r.db.WithContext(ctx).
		Where("chat_id = ?", chatID).
		Order("id ASC").
		Find(&messages).Error
	return messages, err
}

// LastUserMessageID 获取会话最后一条用户消息的 pubId
func (r *ChatRepository) LastUserMessageID(ctx context.Context, chatID uint) (string, bool, error) {
	var msg model.Message
	err := r.db.WithContext(ctx).
		Select("pub_id").
		Where("chat_id = ? AND role = ?", chatID, model.RoleUser).
		Order("id DESC").
		First(&msg).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return msg.PubID, true, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`)

// escapeLike 转义 LIKE 通配符
func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
