// Package callback 提供 Eino Callback 日志支持
package callback

import (
	"context"
	"log/slog"
	"sync"

	"github.com/cloudwego/eino/callbacks"
	ecomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// Logger 日志回调处理器
// 实现 callbacks.Handler 接口，用于记录模型调用事件
type Logger struct {
	EnableDebug bool
	logger      *slog.Logger
}

// NewLogger 创建日志回调处理器
func NewLogger(enableDebug bool, logger *slog.Logger) *Logger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Logger{EnableDebug: enableDebug, logger: logger.With("component", "eino")}
}

// OnStart 组件执行开始时调用
func (l *Logger) OnStart(ctx context.Context, info *callbacks.RunInfo, input callbacks.CallbackInput) context.Context {
	if l.EnableDebug {
		attrs := runAttrs(info)
		if in := ecomodel.ConvCallbackInput(input); in != nil {
			attrs = append(attrs, "messages", len(in.Messages), "tools", len(in.Tools))
		}
		l.logger.DebugContext(ctx, "component start", attrs...)
	}
	return ctx
}

// OnEnd 组件执行成功结束时调用
func (l *Logger) OnEnd(ctx context.Context, info *callbacks.RunInfo, output callbacks.CallbackOutput) context.Context {
	if l.EnableDebug {
		attrs := runAttrs(info)
		if out := ecomodel.ConvCallbackOutput(output); out != nil && out.TokenUsage != nil {
			attrs = append(attrs,
				"promptTokens", out.TokenUsage.PromptTokens,
				"completionTokens", out.TokenUsage.CompletionTokens)
		}
		l.logger.DebugContext(ctx, "component end", attrs...)
	}
	return ctx
}

// OnError 组件执行出错时调用
func (l *Logger) OnError(ctx context.Context, info *callbacks.RunInfo, err error) context.Context {
	l.logger.WarnContext(ctx, "component error", append(runAttrs(info), "error", err)...)
	return ctx
}

// OnStartWithStreamInput 流式输入开始时调用
func (l *Logger) OnStartWithStreamInput(ctx context.Context, info *callbacks.RunInfo, input *schema.StreamReader[callbacks.CallbackInput]) context.Context {
	input.Close()
	if l.EnableDebug {
		l.logger.DebugContext(ctx, "component stream input", runAttrs(info)...)
	}
	return ctx
}

// OnEndWithStreamOutput 流式输出结束时调用，回调拿到的流副本必须关闭
func (l *Logger) OnEndWithStreamOutput(ctx context.Context, info *callbacks.RunInfo, output *schema.StreamReader[callbacks.CallbackOutput]) context.Context {
	output.Close()
	if l.EnableDebug {
		l.logger.DebugContext(ctx, "component stream output", runAttrs(info)...)
	}
	return ctx
}

func runAttrs(info *callbacks.RunInfo) []any {
	if info == nil {
		return nil
	}
	return []any{"name", info.Name, "type", info.Type, "kind", string(info.Component)}
}

var (
	globalOnce    sync.Once
	globalHandler *Logger
)

// SetupGlobalCallbacks 设置全局回调，进程内只注册一次，后续调用返回首次注册的处理器
func SetupGlobalCallbacks(enableDebug bool, logger *slog.Logger) *Logger {
	globalOnce.Do(func() {
		globalHandler = NewLogger(enableDebug, logger)
		callbacks.AppendGlobalHandlers(globalHandler)
		globalHandler.logger.Info("global callbacks registered", "debug", enableDebug)
	})
	return globalHandler
}
