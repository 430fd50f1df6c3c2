package testutil

import (
	"context"
	"strings"
	"sync"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// FakeTurn 一次 Stream 调用的脚本
// Err 在建立流时返回，MidErr 在发送完 Chunks 后返回
type FakeTurn struct {
	Chunks []*schema.Message
	Err    error
	MidErr error
}

// FakeChatModel 按脚本回放的 ChatModel
// 超出脚本长度的调用重复最后一轮
type FakeChatModel struct {
	mu       sync.Mutex
	turns    []FakeTurn
	calls    int
	inputs   [][]*schema.Message
	tools    []*schema.ToolInfo
	generate string
}

// NewFakeChatModel 创建脚本模型
func NewFakeChatModel(turns ...FakeTurn) *FakeChatModel {
	return &FakeChatModel{turns: turns}
}

// WithGenerateReply 设置 Generate 的固定回复
func (m *FakeChatModel) WithGenerateReply(reply string) *FakeChatModel {
	m.generate = reply
	return m
}

// Calls 返回 Stream 调用次数
func (m *FakeChatModel) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Inputs 返回每次 Stream 调用的输入
func (m *FakeChatModel) Inputs() [][]*schema.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][]*schema.Message(nil), m.inputs...)
}

// Tools 返回绑定的工具
func (m *FakeChatModel) Tools() []*schema.ToolInfo {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tools
}

func (m *FakeChatModel) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	return schema.AssistantMessage(m.generate, nil), nil
}

func (m *FakeChatModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	m.mu.Lock()
	idx := m.calls
	m.calls++
	m.inputs = append(m.inputs, input)
	m.mu.Unlock()

	if len(m.turns) == 0 {
		return schema.StreamReaderFromArray([]*schema.Message{}), nil
	}
	if idx >= len(m.turns) {
		idx = len(m.turns) - 1
	}
	turn := m.turns[idx]
	if turn.Err != nil {
		return nil, turn.Err
	}

	sr, sw := schema.Pipe[*schema.Message](len(turn.Chunks) + 1)
	go func() {
		defer sw.Close()
		for _, c := range turn.Chunks {
			if sw.Send(c, nil) {
				return
			}
		}
		if turn.MidErr != nil {
			sw.Send(nil, turn.MidErr)
		}
	}()
	return sr, nil
}

func (m *FakeChatModel) WithTools(tools []*schema.ToolInfo) (model.ToolCallingChatModel, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tools = tools
	return m, nil
}

// TextTurn 把文本按空格切成多个 chunk，最后一个 chunk 携带用量
func TextTurn(text string, promptTokens, completionTokens int) FakeTurn {
	words := strings.SplitAfter(text, " ")
	chunks := make([]*schema.Message, 0, len(words))
	for _, w := range words {
		if w == "" {
			continue
		}
		chunks = append(chunks, schema.AssistantMessage(w, nil))
	}
	chunks = append(chunks, &schema.Message{
		Role: schema.Assistant,
		ResponseMeta: &schema.ResponseMeta{
			FinishReason: "stop",
			Usage: &schema.TokenUsage{
				PromptTokens:     promptTokens,
				CompletionTokens: completionTokens,
				TotalTokens:      promptTokens + completionTokens,
			},
		},
	})
	return FakeTurn{Chunks: chunks}
}

// ToolCallTurn 返回一个只包含工具调用的轮次
func ToolCallTurn(id, name, args string) FakeTurn {
	idx := 0
	return FakeTurn{Chunks: []*schema.Message{{
		Role: schema.Assistant,
		ToolCalls: []schema.ToolCall{{
			Index: &idx,
			ID:    id,
			Type:  "function",
			Function: schema.FunctionCall{
				Name:      name,
				Arguments: args,
			},
		}},
	}}}
}
