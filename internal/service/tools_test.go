package service

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"

	"github.com/ashwinyue/next-chat/internal/config"
)

func TestNewTools_Disabled(t *testing.T) {
	cfg := &config.Config{}
	if tools := newTools(context.Background(), cfg, slog.New(slog.NewTextHandler(io.Discard, nil))); len(tools) != 0 {
		t.Errorf("tools = %d, want 0", len(tools))
	}
}

func TestStubTool(t *testing.T) {
	st := &stubTool{name: webSearchToolName}

	info, err := st.Info(context.Background())
	if err != nil || info.Name != webSearchToolName {
		t.Fatalf("Info() = %+v, %v", info, err)
	}

	out, err := st.InvokableRun(context.Background(), `{"query":"go"}`)
	if err != nil {
		t.Fatalf("InvokableRun() error = %v", err)
	}
	var body map[string]string
	if err := json.Unmarshal([]byte(out), &body); err != nil || body["error"] == "" {
		t.Errorf("InvokableRun() = %q", out)
	}
}
