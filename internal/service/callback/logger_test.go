package callback

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components"
	ecomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

func newBufferLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func TestLogger_OnError(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(false, newBufferLogger(&buf))
	info := &callbacks.RunInfo{Name: "openai/gpt-4o-mini", Type: "openai", Component: components.ComponentOfChatModel}

	l.OnError(context.Background(), info, errors.New("rate limited"))

	out := buf.String()
	if !strings.Contains(out, "rate limited") || !strings.Contains(out, "openai/gpt-4o-mini") {
		t.Errorf("log output = %q", out)
	}
}

func TestLogger_DebugOnly(t *testing.T) {
	var buf bytes.Buffer
	info := &callbacks.RunInfo{Name: "m", Component: components.ComponentOfChatModel}
	input := &ecomodel.CallbackInput{Messages: []*schema.Message{schema.UserMessage("hi")}}
	output := &ecomodel.CallbackOutput{TokenUsage: &ecomodel.TokenUsage{PromptTokens: 3, CompletionTokens: 5}}

	quiet := NewLogger(false, newBufferLogger(&buf))
	quiet.OnStart(context.Background(), info, input)
	quiet.OnEnd(context.Background(), info, output)
	if buf.Len() != 0 {
		t.Errorf("non-debug logger wrote %q", buf.String())
	}

	verbose := NewLogger(true, newBufferLogger(&buf))
	verbose.OnStart(context.Background(), info, input)
	verbose.OnEnd(context.Background(), info, output)
	out := buf.String()
	if !strings.Contains(out, "messages=1") || !strings.Contains(out, "completionTokens=5") {
		t.Errorf("log output = %q", out)
	}
}

func TestLogger_ClosesStreamCopies(t *testing.T) {
	l := NewLogger(true, newBufferLogger(&bytes.Buffer{}))
	sr, sw := schema.Pipe[callbacks.CallbackOutput](0)
	l.OnEndWithStreamOutput(context.Background(), &callbacks.RunInfo{}, sr)
	// 读端关闭后写端 Send 返回 closed=true
	if closed := sw.Send(&ecomodel.CallbackOutput{}, nil); !closed {
		t.Error("stream copy was not closed")
	}
	sw.Close()
}

func TestSetupGlobalCallbacks_RegistersOnce(t *testing.T) {
	first := SetupGlobalCallbacks(false, slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)))
	second := SetupGlobalCallbacks(true, nil)
	if first == nil || first != second {
		t.Fatalf("SetupGlobalCallbacks() returned %p then %p, want the same handler", first, second)
	}
}
