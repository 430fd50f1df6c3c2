package stream

import "encoding/json"

// 帧事件类型
const (
	EventDelta  = "delta"
	EventFinish = "finish"
	EventError  = "error"
)

// Frame 流中的一帧，Seq 在同一个流内严格递增
type Frame struct {
	Seq   int64           `json:"seq"`
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// Terminal 是否为结束帧
func (f Frame) Terminal() bool {
	return f.Event == EventFinish || f.Event == EventError
}

// DeltaData delta 帧的数据
type DeltaData struct {
	Text string `json:"text"`
}

// FinishData finish 帧的数据
type FinishData struct {
	ChatID       string  `json:"chatId,omitempty"`
	MessageID    string  `json:"messageId,omitempty"`
	InputTokens  int     `json:"inputTokens"`
	OutputTokens int     `json:"outputTokens"`
	Fee          float64 `json:"fee"`
}

// ErrorData error 帧的数据
type ErrorData struct {
	Message string `json:"message"`
}

// NewFrame 编码帧数据
func NewFrame(event string, data any) Frame {
	b, err := json.Marshal(data)
	if err != nil {
		b = []byte("null")
	}
	return Frame{Event: event, Data: b}
}

// Delta 构造 delta 帧
func Delta(text string) Frame {
	return NewFrame(EventDelta, DeltaData{Text: text})
}

// Finish 构造 finish 帧
func Finish(d FinishData) Frame {
	return NewFrame(EventFinish, d)
}

// Error 构造 error 帧
func Error(msg string) Frame {
	return NewFrame(EventError, ErrorData{Message: msg})
}
