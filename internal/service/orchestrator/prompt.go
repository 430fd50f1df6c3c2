package orchestrator

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/cloudwego/eino/schema"

	"github.com/ashwinyue/next-chat/internal/model"
	"github.com/ashwinyue/next-chat/internal/service/provider"
	"github.com/ashwinyue/next-chat/internal/service/types"
)

const maxTitleRunes = 80

// systemPrompt 按提供商与模型生成系统提示
func systemPrompt(v provider.Variant, now time.Time) string {
	return fmt.Sprintf(
		"You are a helpful assistant. You are running as %s served by %s. "+
			"Today is %s. Answer in the user's language and use Markdown when it helps.",
		v.Model, v.Provider, now.Format("2006-01-02"))
}

// roleToSchema 将存储的角色转换为 schema.RoleType
func roleToSchema(role string) (schema.RoleType, bool) {
	switch role {
	case model.RoleSystem:
		return schema.System, true
	case model.RoleAssistant:
		return schema.Assistant, true
	case model.RoleUser:
		return schema.User, true
	default:
		return "", false
	}
}

// historyToSchema 转换历史消息，data 角色不进入提示
func historyToSchema(history []*model.Message) []*schema.Message {
	out := make([]*schema.Message, 0, len(history))
	for _, m := range history {
		role, ok := roleToSchema(m.Role)
		if !ok {
			continue
		}
		out = append(out, toSchema(role, messageText(m.Content, m.DecodeParts()), m.DecodeAttachments()))
	}
	return out
}

func toSchema(role schema.RoleType, text string, atts []model.Attachment) *schema.Message {
	msg := &schema.Message{Role: role, Content: text}
	if role != schema.User || len(atts) == 0 {
		return msg
	}

	parts := make([]schema.ChatMessagePart, 0, len(atts)+1)
	if text != "" {
		parts = append(parts, schema.ChatMessagePart{Type: schema.ChatMessagePartTypeText, Text: text})
	}
	for _, a := range atts {
		parts = append(parts, schema.ChatMessagePart{
			Type: schema.ChatMessagePartTypeImageURL,
			ImageURL: &schema.ChatMessageImageURL{
				URL:      a.URL,
				MIMEType: a.ContentType,
			},
		})
	}
	msg.Content = ""
	msg.MultiContent = parts
	return msg
}

func messageText(content string, parts []model.Part) string {
	if content != "" {
		return content
	}
	var b strings.Builder
	for _, p := range parts {
		if p.Type == model.PartTypeText {
			b.WriteString(p.Text)
		}
	}
	return b.String()
}

// buildPrompt [system, ...history, user]
func buildPrompt(v provider.Variant, history []*model.Message, user *types.IncomingMessage, now time.Time) []*schema.Message {
	msgs := make([]*schema.Message, 0, len(history)+2)
	msgs = append(msgs, schema.SystemMessage(systemPrompt(v, now)))
	msgs = append(msgs, historyToSchema(history)...)
	msgs = append(msgs, toSchema(schema.User, user.Text(), user.Attachments))
	return msgs
}

// estimateTokens 提供商未返回用量时按字符数估算
func estimateTokens(text string) int {
	n := utf8.RuneCountInString(text)
	if n == 0 {
		return 0
	}
	if t := n / 4; t > 0 {
		return t
	}
	return 1
}

func promptText(msgs []*schema.Message) string {
	var b strings.Builder
	for _, m := range msgs {
		b.WriteString(m.Content)
		for _, p := range m.MultiContent {
			b.WriteString(p.Text)
		}
	}
	return b.String()
}

// titlePrompt 根据首轮对话生成标题
func titlePrompt(userText, answer string) []*schema.Message {
	return []*schema.Message{
		schema.SystemMessage("Generate a short title (at most 8 words) for this conversation. " +
			"Reply with the title only, without quotes or punctuation at the end."),
		schema.UserMessage("User: " + truncateRunes(userText, 500) + "\nAssistant: " + truncateRunes(answer, 500)),
	}
}

func cleanTitle(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	s = strings.Trim(s, "\"'` ")
	return truncateRunes(s, maxTitleRunes)
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n])
}
