// Package validator 请求边界校验，失败时不产生任何副作用
package validator

import (
	"strings"

	"github.com/google/uuid"

	"github.com/ashwinyue/next-chat/internal/errs"
	"github.com/ashwinyue/next-chat/internal/model"
	"github.com/ashwinyue/next-chat/internal/service/provider"
	"github.com/ashwinyue/next-chat/internal/service/types"
)

// 允许的附件类型
var allowedContentTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
}

// ValidatePubID 校验 pubId 为合法 UUID
func ValidatePubID(field, id string) error {
	if id == "" {
		return errs.Validation("%s is required", field)
	}
	if _, err := uuid.Parse(id); err != nil {
		return errs.Validation("%s must be a valid uuid", field)
	}
	return nil
}

// ValidateChatRequest 校验新一轮对话请求
func ValidateChatRequest(req *types.ChatRequest) (provider.Variant, error) {
	if req == nil {
		return provider.Variant{}, errs.Validation("request body is required")
	}
	if err := ValidatePubID("id", req.ID); err != nil {
		return provider.Variant{}, err
	}

	msg := &req.Message
	if msg.Role != model.RoleUser {
		return provider.Variant{}, errs.Validation("message role must be %q", model.RoleUser)
	}
	if strings.TrimSpace(msg.Text()) == "" && len(msg.Attachments) == 0 {
		return provider.Variant{}, errs.Validation("message content is required")
	}
	if err := validateAttachments(msg.Attachments); err != nil {
		return provider.Variant{}, err
	}

	return provider.Parse(req.ModelProvider, req.ModelName)
}

// ValidateBranchRequest 校验分支请求，前缀必须以 assistant 消息结尾
func ValidateBranchRequest(req *types.BranchRequest) error {
	if req == nil {
		return errs.Validation("request body is required")
	}
	if err := ValidatePubID("id", req.ID); err != nil {
		return err
	}
	if err := ValidatePubID("parentId", req.ParentID); err != nil {
		return err
	}
	if req.ID == req.ParentID {
		return errs.Validation("id must differ from parentId")
	}
	if len(req.Messages) == 0 {
		return errs.Validation("messages are required")
	}
	for i := range req.Messages {
		m := &req.Messages[i]
		if !model.ValidRoles[m.Role] {
			return errs.Validation("messages[%d]: invalid role %q", i, m.Role)
		}
		if m.ID != "" {
			if _, err := uuid.Parse(m.ID); err != nil {
				return errs.Validation("messages[%d]: id must be a valid uuid", i)
			}
		}
		if err := validateAttachments(m.Attachments); err != nil {
			return err
		}
	}
	if last := req.Messages[len(req.Messages)-1]; last.Role != model.RoleAssistant {
		return errs.Validation("last message role must be %q", model.RoleAssistant)
	}
	return nil
}

// EnsureOwner 校验会话属于当前用户
func EnsureOwner(chat *model.Chat, userID string) error {
	if chat == nil || chat.UserID != userID {
		return errs.Validation("chat does not belong to user")
	}
	return nil
}

func validateAttachments(atts []model.Attachment) error {
	for _, a := range atts {
		ct := strings.ToLower(strings.TrimSpace(a.ContentType))
		if !allowedContentTypes[ct] {
			return errs.Validation("unsupported attachment type %q", a.ContentType)
		}
		if a.URL == "" {
			return errs.Validation("attachment url is required")
		}
	}
	return nil
}
