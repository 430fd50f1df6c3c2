package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components"
	ecomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"
	"github.com/google/uuid"
	"github.com/kaptinlin/jsonrepair"

	"github.com/ashwinyue/next-chat/internal/errs"
	"github.com/ashwinyue/next-chat/internal/model"
	"github.com/ashwinyue/next-chat/internal/service/stream"
	"github.com/ashwinyue/next-chat/internal/service/types"
)

const titleTimeout = 30 * time.Second

// result 流式阶段的产物
type result struct {
	text        string
	parts       []model.Part
	attachments []model.Attachment
	usage       types.Usage
}

// run STREAMING 与 FINALIZING，在后台协程执行
func (o *Orchestrator) run(ctx context.Context, g *Generation, t *turn) {
	defer g.finish()

	start := o.now()
	prompt := buildPrompt(t.variant, t.history, &t.req.Message, start)

	res, err := o.generate(ctx, g, t, prompt)
	if err != nil {
		o.failStream(ctx, g, t, err)
		return
	}
	elapsed := time.Since(start)

	usage := res.usage
	if usage.InputTokens == 0 {
		usage.InputTokens = estimateTokens(promptText(prompt))
	}
	if usage.OutputTokens == 0 {
		usage.OutputTokens = estimateTokens(res.text)
	}

	// 空输出不持久化也不计费
	if strings.TrimSpace(res.text) == "" {
		t.logger.InfoContext(ctx, "empty generation, skip persistence and billing")
		o.complete(ctx, g, t, stream.FinishData{ChatID: t.req.ID}, types.Usage{}, 0)
		return
	}

	if t.req.Incognito {
		o.complete(ctx, g, t, stream.FinishData{
			ChatID:       t.req.ID,
			InputTokens:  usage.InputTokens,
			OutputTokens: usage.OutputTokens,
		}, usage, 0)
		return
	}

	g.transition(StateFinalizing)
	assistantID, fee := o.finalize(ctx, t, res, usage, elapsed)
	o.complete(ctx, g, t, stream.FinishData{
		ChatID:       t.req.ID,
		MessageID:    assistantID,
		InputTokens:  usage.InputTokens,
		OutputTokens: usage.OutputTokens,
		Fee:          fee,
	}, usage, fee)

	if t.newChat && o.opts.GenerateTitle {
		o.bg.Add(1)
		go func() {
			defer o.bg.Done()
			o.generateTitle(ctx, t, res.text)
		}()
	}
}

// complete 发送 finish 帧并进入 DONE
func (o *Orchestrator) complete(ctx context.Context, g *Generation, t *turn, data stream.FinishData, usage types.Usage, fee float64) {
	g.settled(usage, fee)
	g.transition(StateDone)
	g.deliver(t.pub.Close(ctx, stream.Finish(data)))
	t.logger.InfoContext(ctx, "generation finished",
		"state", StateDone,
		"inputTokens", usage.InputTokens,
		"outputTokens", usage.OutputTokens,
		"fee", fee,
	)
}

// failStream 发送 error 帧并进入 FAILED，已发送的内容不撤回
func (o *Orchestrator) failStream(ctx context.Context, g *Generation, t *turn, err error) {
	if errs.KindOf(err) == "" {
		err = errs.Provider(err)
	}
	g.fail(err)
	g.deliver(t.pub.Close(ctx, stream.Error(err.Error())))
	t.logger.WarnContext(ctx, "generation failed", "state", StateFailed, "error", err)
}

// generate 多步生成，每步之间执行工具调用
func (o *Orchestrator) generate(ctx context.Context, g *Generation, t *turn, msgs []*schema.Message) (*result, error) {
	// 挂上全局回调，模型调用事件由 callback.Logger 记录
	ctx = callbacks.InitCallbacks(ctx, &callbacks.RunInfo{
		Name:      t.variant.String(),
		Type:      string(t.variant.Provider),
		Component: components.ComponentOfChatModel,
	})
	cm, tools := o.bindTools(ctx, t)
	smoother := &lineSmoother{}
	res := &result{}
	var text strings.Builder

	for step := 1; step <= o.opts.MaxSteps; step++ {
		msg, err := o.streamStep(ctx, g, t, cm, msgs, smoother, &text)
		if err != nil {
			return nil, err
		}

		if u := msg.ResponseMeta; u != nil && u.Usage != nil {
			res.usage.InputTokens += u.Usage.PromptTokens
			res.usage.OutputTokens += u.Usage.CompletionTokens
		}
		if msg.ReasoningContent != "" {
			res.parts = append(res.parts, model.Part{Type: model.PartTypeReasoning, Text: msg.ReasoningContent})
		}
		res.attachments = append(res.attachments, echoedAttachments(msg)...)

		if len(msg.ToolCalls) == 0 || len(tools) == 0 {
			break
		}
		if step == o.opts.MaxSteps {
			t.logger.WarnContext(ctx, "tool step budget exhausted", "steps", step)
			break
		}

		msgs = append(msgs, msg)
		for _, call := range msg.ToolCalls {
			out := o.invokeTool(ctx, t, tools, call)
			res.parts = append(res.parts,
				model.Part{Type: model.PartTypeToolCall, ToolCallID: call.ID, ToolName: call.Function.Name, Args: call.Function.Arguments},
				model.Part{Type: model.PartTypeToolResult, ToolCallID: call.ID, ToolName: call.Function.Name, Result: out},
			)
			msgs = append(msgs, schema.ToolMessage(out, call.ID))
		}
	}

	if rest := smoother.flush(); rest != "" {
		o.emit(ctx, g, t, stream.Delta(rest))
	}

	res.text = text.String()
	if res.text != "" {
		res.parts = append(res.parts, model.Part{Type: model.PartTypeText, Text: res.text})
	}
	return res, nil
}

// streamStep 单步生成，尚未收到任何内容时最多重试 MaxRetries 次
func (o *Orchestrator) streamStep(
	ctx context.Context,
	g *Generation,
	t *turn,
	cm ecomodel.ToolCallingChatModel,
	msgs []*schema.Message,
	smoother *lineSmoother,
	text *strings.Builder,
) (*schema.Message, error) {
	var lastErr error
	for attempt := 1; attempt <= o.opts.MaxRetries; attempt++ {
		if attempt > 1 && o.opts.RetryBackoff > 0 {
			time.Sleep(o.opts.RetryBackoff * time.Duration(attempt-1))
		}

		sr, err := cm.Stream(ctx, msgs)
		if err != nil {
			lastErr = err
			t.logger.WarnContext(ctx, "provider stream failed", "attempt", attempt, "error", err)
			continue
		}

		chunks, received, err := o.consume(ctx, g, t, sr, smoother, text)
		if err == nil {
			if len(chunks) == 0 {
				return &schema.Message{Role: schema.Assistant}, nil
			}
			msg, err := schema.ConcatMessages(chunks)
			if err != nil {
				return nil, fmt.Errorf("concat chunks: %w", err)
			}
			return msg, nil
		}
		if received {
			// 已有输出，不能重试
			return nil, err
		}
		lastErr = err
		t.logger.WarnContext(ctx, "provider stream interrupted", "attempt", attempt, "error", err)
	}
	return nil, lastErr
}

// consume 读取一次流，received 表示是否收到过文本
func (o *Orchestrator) consume(
	ctx context.Context,
	g *Generation,
	t *turn,
	sr *schema.StreamReader[*schema.Message],
	smoother *lineSmoother,
	text *strings.Builder,
) ([]*schema.Message, bool, error) {
	defer sr.Close()

	var (
		chunks   []*schema.Message
		received bool
	)
	for {
		chunk, err := sr.Recv()
		if errors.Is(err, io.EOF) {
			return chunks, received, nil
		}
		if err != nil {
			return chunks, received, err
		}
		if chunk == nil {
			continue
		}
		chunks = append(chunks, chunk)
		if chunk.Content == "" {
			continue
		}
		received = true
		text.WriteString(chunk.Content)
		for _, line := range smoother.push(chunk.Content) {
			o.emit(ctx, g, t, stream.Delta(line))
			o.pause(g)
		}
	}
}

// emit 写入注册表并投递给客户端
func (o *Orchestrator) emit(ctx context.Context, g *Generation, t *turn, f stream.Frame) {
	g.deliver(t.pub.Append(ctx, f))
}

func (o *Orchestrator) pause(g *Generation) {
	if o.opts.SmoothDelay > 0 && !g.detached() {
		time.Sleep(o.opts.SmoothDelay)
	}
}

// bindTools 绑定工具，失败时退化为无工具生成
func (o *Orchestrator) bindTools(ctx context.Context, t *turn) (ecomodel.ToolCallingChatModel, map[string]tool.InvokableTool) {
	if len(o.tools) == 0 {
		return t.cm, nil
	}

	infos := make([]*schema.ToolInfo, 0, len(o.tools))
	byName := make(map[string]tool.InvokableTool, len(o.tools))
	for _, tl := range o.tools {
		info, err := tl.Info(ctx)
		if err != nil {
			t.logger.WarnContext(ctx, "skip tool without info", "error", err)
			continue
		}
		infos = append(infos, info)
		byName[info.Name] = tl
	}
	if len(infos) == 0 {
		return t.cm, nil
	}

	bound, err := t.cm.WithTools(infos)
	if err != nil {
		t.logger.WarnContext(ctx, "bind tools failed", "error", err)
		return t.cm, nil
	}
	return bound, byName
}

// invokeTool 执行工具调用，参数不是合法 JSON 时先尝试修复
func (o *Orchestrator) invokeTool(ctx context.Context, t *turn, tools map[string]tool.InvokableTool, call schema.ToolCall) string {
	tl, ok := tools[call.Function.Name]
	if !ok {
		return fmt.Sprintf(`{"error":"unknown tool %s"}`, call.Function.Name)
	}

	args := call.Function.Arguments
	if args == "" {
		args = "{}"
	}
	if !json.Valid([]byte(args)) {
		repaired, err := jsonrepair.JSONRepair(args)
		if err != nil {
			t.logger.WarnContext(ctx, "tool arguments not repairable", "tool", call.Function.Name, "error", err)
		} else {
			args = repaired
		}
	}

	out, err := tl.InvokableRun(ctx, args)
	if err != nil {
		t.logger.WarnContext(ctx, "tool call failed", "tool", call.Function.Name, "error", err)
		b, _ := json.Marshal(map[string]string{"error": err.Error()})
		return string(b)
	}
	return out
}

// finalize 依次写入用户消息、助手消息并结算，失败只记录日志
func (o *Orchestrator) finalize(ctx context.Context, t *turn, res *result, usage types.Usage, elapsed time.Duration) (string, float64) {
	assistant := &model.Message{
		PubID:       uuid.NewString(),
		ChatID:      t.chat.ID,
		Role:        model.RoleAssistant,
		Content:     res.text,
		Parts:       model.EncodeParts(res.parts),
		Attachments: model.EncodeAttachments(res.attachments),
	}

	t.userMsg.ChatID = t.chat.ID
	if err := o.chats.AppendMessage(ctx, t.userMsg); err != nil {
		t.logger.ErrorContext(ctx, "persist user message failed", "error", errs.Persistence("append user message", err))
	} else if err := o.chats.AppendMessage(ctx, assistant); err != nil {
		t.logger.ErrorContext(ctx, "persist assistant message failed", "error", errs.Persistence("append assistant message", err))
	}

	fee, err := o.ledger.Settle(ctx, t.userID, t.rate, usage, elapsed)
	if err != nil {
		t.logger.ErrorContext(ctx, "settle credit failed", "error", err)
		fee = 0
	}
	return assistant.PubID, fee
}

// generateTitle 首轮完成后生成会话标题
func (o *Orchestrator) generateTitle(ctx context.Context, t *turn, answer string) {
	ctx, cancel := context.WithTimeout(ctx, titleTimeout)
	defer cancel()

	msg, err := t.cm.Generate(ctx, titlePrompt(t.req.Message.Text(), answer))
	if err != nil {
		t.logger.WarnContext(ctx, "generate title failed", "error", err)
		return
	}
	title := cleanTitle(msg.Content)
	if title == "" {
		return
	}
	if err := o.chats.UpdateTitle(ctx, t.chat.ID, title); err != nil {
		t.logger.WarnContext(ctx, "update title failed", "error", err)
	}
}

// echoedAttachments 模型响应中附带的附件
func echoedAttachments(msg *schema.Message) []model.Attachment {
	if msg.Extra == nil {
		return nil
	}
	switch v := msg.Extra["attachments"].(type) {
	case []model.Attachment:
		return v
	case []any:
		out := make([]model.Attachment, 0, len(v))
		for _, item := range v {
			m, ok := item.(map[string]any)
			if !ok {
				continue
			}
			url, _ := m["url"].(string)
			ct, _ := m["contentType"].(string)
			name, _ := m["name"].(string)
			if url != "" {
				out = append(out, model.Attachment{Name: name, URL: url, ContentType: ct})
			}
		}
		return out
	default:
		return nil
	}
}
