package orchestrator

import (
	"sync"

	"github.com/ashwinyue/next-chat/internal/service/stream"
	"github.com/ashwinyue/next-chat/internal/service/types"
)

// State 生成状态
type State string

const (
	StateInit       State = "INIT"
	StateStreaming  State = "STREAMING"
	StateFinalizing State = "FINALIZING"
	StateDone       State = "DONE"
	StateFailed     State = "FAILED"
)

// Terminal 是否为终态
func (s State) Terminal() bool {
	return s == StateDone || s == StateFailed
}

const eventBuffer = 64

// Generation 一轮生成
// 客户端断开后调用 Detach，生成继续在后台完成
type Generation struct {
	ChatPubID     string
	UserMessageID string
	StreamKey     string
	Incognito     bool

	events chan stream.Frame
	gone   chan struct{}
	done   chan struct{}

	mu          sync.Mutex
	state       State
	transitions []State
	err         error
	usage       types.Usage
	fee         float64
	detachOnce  sync.Once
}

func newGeneration() *Generation {
	return &Generation{
		events:      make(chan stream.Frame, eventBuffer),
		gone:        make(chan struct{}),
		done:        make(chan struct{}),
		state:       StateInit,
		transitions: []State{StateInit},
	}
}

// Events 发送给客户端的帧，生成结束后关闭
func (g *Generation) Events() <-chan stream.Frame {
	return g.events
}

// Done 生成进入终态后关闭
func (g *Generation) Done() <-chan struct{} {
	return g.done
}

// Detach 客户端已离开，之后的帧不再投递
func (g *Generation) Detach() {
	g.detachOnce.Do(func() { close(g.gone) })
}

// State 当前状态
func (g *Generation) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// Transitions 经过的状态序列
func (g *Generation) Transitions() []State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]State(nil), g.transitions...)
}

// Err 失败原因
func (g *Generation) Err() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.err
}

// Usage 本轮用量
func (g *Generation) Usage() types.Usage {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.usage
}

// Fee 本轮扣费
func (g *Generation) Fee() float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.fee
}

func (g *Generation) transition(to State) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.state.Terminal() {
		return
	}
	g.state = to
	g.transitions = append(g.transitions, to)
}

func (g *Generation) fail(err error) {
	g.mu.Lock()
	g.err = err
	g.mu.Unlock()
	g.transition(StateFailed)
}

func (g *Generation) settled(usage types.Usage, fee float64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.usage = usage
	g.fee = fee
}

// deliver 投递给客户端，客户端离开后丢弃
func (g *Generation) deliver(f stream.Frame) {
	select {
	case <-g.gone:
		return
	default:
	}
	select {
	case g.events <- f:
	case <-g.gone:
	}
}

func (g *Generation) detached() bool {
	select {
	case <-g.gone:
		return true
	default:
		return false
	}
}

// finish 关闭事件通道并标记结束
func (g *Generation) finish() {
	close(g.events)
	close(g.done)
}
