package model

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

// 消息角色
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
	RoleData      = "data"
)

// ValidRoles 所有合法的消息角色
var ValidRoles = map[string]bool{
	RoleUser:      true,
	RoleAssistant: true,
	RoleSystem:    true,
	RoleData:      true,
}

// Chat 聊天会话
// ParentID 指向分支来源，根会话为空
type Chat struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"-"`
	PubID     string    `gorm:"uniqueIndex;size:36;not null" json:"id"`
	UserID    string    `gorm:"index;size:36;not null" json:"userId"`
	Title     string    `gorm:"size:255" json:"title"`
	ParentID  *uint     `gorm:"index" json:"-"`
	CreatedAt time.Time `gorm:"autoCreateTime;index" json:"createdAt"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}

// Message 聊天消息，只追加不修改
type Message struct {
	ID          uint           `gorm:"primaryKey;autoIncrement" json:"-"`
	PubID       string         `gorm:"uniqueIndex;size:36;not null" json:"id"`
	ChatID      uint           `gorm:"index;not null" json:"-"`
	Role        string         `gorm:"size:20;index" json:"role"`
	Content     string         `gorm:"type:text" json:"content"`
	Parts       datatypes.JSON `json:"parts"`
	Attachments datatypes.JSON `json:"attachments"`
	CreatedAt   time.Time      `gorm:"autoCreateTime;index" json:"createdAt"`
}

// TableName 指定表名
func (Chat) TableName() string {
	return "chats"
}

func (Message) TableName() string {
	return "messages"
}

// 消息片段类型
const (
	PartTypeText       = "text"
	PartTypeReasoning  = "reasoning"
	PartTypeToolCall   = "tool-call"
	PartTypeToolResult = "tool-result"
)

// Part 消息的结构化片段
type Part struct {
	Type       string `json:"type"`
	Text       string `json:"text,omitempty"`
	ToolCallID string `json:"toolCallId,omitempty"`
	ToolName   string `json:"toolName,omitempty"`
	Args       string `json:"args,omitempty"`
	Result     string `json:"result,omitempty"`
}

// Attachment 消息附件
type Attachment struct {
	Name        string `json:"name,omitempty"`
	URL         string `json:"url"`
	ContentType string `json:"contentType"`
}

// EncodeParts 序列化片段，nil 编码为空数组
func EncodeParts(parts []Part) datatypes.JSON {
	if parts == nil {
		parts = []Part{}
	}
	b, _ := json.Marshal(parts)
	return datatypes.JSON(b)
}

// EncodeAttachments 序列化附件，nil 编码为空数组
func EncodeAttachments(atts []Attachment) datatypes.JSON {
	if atts == nil {
		atts = []Attachment{}
	}
	b, _ := json.Marshal(atts)
	return datatypes.JSON(b)
}

// DecodeParts 反序列化片段
func (m *Message) DecodeParts() []Part {
	var parts []Part
	if len(m.Parts) == 0 {
		return parts
	}
	_ = json.Unmarshal(m.Parts, &parts)
	return parts
}

// DecodeAttachments 反序列化附件
func (m *Message) DecodeAttachments() []Attachment {
	var atts []Attachment
	if len(m.Attachments) == 0 {
		return atts
	}
	_ = json.Unmarshal(m.Attachments, &atts)
	return atts
}
