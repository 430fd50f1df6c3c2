// Package types 定义共享的请求与计量类型
package types

import "github.com/ashwinyue/next-chat/internal/model"

// IncomingMessage 客户端提交的消息
// ID 可选，为合法 UUID 时沿用为消息 pubId
type IncomingMessage struct {
	ID          string             `json:"id,omitempty"`
	Role        string             `json:"role"`
	Content     string             `json:"content"`
	Parts       []model.Part       `json:"parts,omitempty"`
	Attachments []model.Attachment `json:"attachments,omitempty"`
}

// ChatRequest POST /chat 请求体
type ChatRequest struct {
	ID            string          `json:"id"`
	Message       IncomingMessage `json:"message"`
	ModelProvider string          `json:"model_provider"`
	ModelName     string          `json:"model_name"`
	Incognito     bool            `json:"incognito,omitempty"`
}

// BranchRequest POST /chat/branch 请求体
type BranchRequest struct {
	ID       string            `json:"id"`
	ParentID string            `json:"parentId"`
	Messages []IncomingMessage `json:"messages"`
	Model    string            `json:"model,omitempty"`
}

// Usage 一次生成的 token 用量
type Usage struct {
	InputTokens  int `json:"inputTokens"`
	OutputTokens int `json:"outputTokens"`
}

// Empty 是否没有任何用量
func (u Usage) Empty() bool {
	return u.InputTokens == 0 && u.OutputTokens == 0
}

// Text 返回消息的文本，Content 为空时拼接 text 片段
func (m *IncomingMessage) Text() string {
	if m.Content != "" {
		return m.Content
	}
	var out string
	for _, p := range m.Parts {
		if p.Type == model.PartTypeText {
			out += p.Text
		}
	}
	return out
}
