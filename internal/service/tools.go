package service

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/cloudwego/eino-ext/components/tool/duckduckgo/v2"
	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"

	"github.com/ashwinyue/next-chat/internal/config"
)

const webSearchToolName = "web_search"

// stubTool 占位工具，真实工具创建失败时使用
type stubTool struct {
	name string
}

func (t *stubTool) Info(ctx context.Context) (*schema.ToolInfo, error) {
	return &schema.ToolInfo{
		Name: t.name,
		Desc: t.name + " (unavailable)",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"query": {
				Type:     schema.String,
				Desc:     "The query string",
				Required: true,
			},
		}),
	}, nil
}

func (t *stubTool) InvokableRun(ctx context.Context, argumentsInJSON string, opts ...tool.Option) (string, error) {
	b, _ := json.Marshal(map[string]string{"error": t.name + " is not available"})
	return string(b), nil
}

// newWebSearchTool 创建网络搜索工具
func newWebSearchTool(ctx context.Context, logger *slog.Logger) tool.InvokableTool {
	searchTool, err := duckduckgo.NewTextSearchTool(ctx, &duckduckgo.Config{
		ToolName:   webSearchToolName,
		ToolDesc:   "Search the web for current information using DuckDuckGo. Use this when you need up-to-date information.",
		MaxResults: 5,
	})
	if err != nil {
		logger.Warn("failed to create web search tool", "error", err)
		return &stubTool{name: webSearchToolName}
	}
	return searchTool
}

// newTools 按配置初始化生成可用的工具
func newTools(ctx context.Context, cfg *config.Config, logger *slog.Logger) []tool.InvokableTool {
	var tools []tool.InvokableTool
	if cfg.Tools.WebSearch {
		tools = append(tools, newWebSearchTool(ctx, logger))
	}
	return tools
}
