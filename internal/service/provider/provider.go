// Package provider 把 {提供商, 模型} 组合解析为 eino ChatModel
// 组合是封闭的，未知组合在校验阶段即被拒绝
package provider

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/cloudwego/eino-ext/components/model/claude"
	"github.com/cloudwego/eino-ext/components/model/deepseek"
	"github.com/cloudwego/eino-ext/components/model/gemini"
	"github.com/cloudwego/eino-ext/components/model/ollama"
	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino-ext/components/model/qwen"
	ecomodel "github.com/cloudwego/eino/components/model"
	"google.golang.org/genai"

	"github.com/ashwinyue/next-chat/internal/config"
	"github.com/ashwinyue/next-chat/internal/errs"
)

// Name 模型提供商
type Name string

const (
	OpenAI   Name = "openai"
	DeepSeek Name = "deepseek"
	Qwen     Name = "qwen"
	Claude   Name = "claude"
	Gemini   Name = "gemini"
	Ollama   Name = "ollama"
)

const claudeMaxTokens = 4096

// catalog 每个提供商支持的模型
var catalog = map[Name][]string{
	OpenAI:   {"gpt-4o", "gpt-4o-mini", "gpt-4.1", "gpt-4.1-mini", "o3-mini"},
	DeepSeek: {"deepseek-chat", "deepseek-reasoner"},
	Qwen:     {"qwen-max", "qwen-plus", "qwen-turbo"},
	Claude:   {"claude-sonnet-4-5", "claude-opus-4-1", "claude-3-5-haiku-latest"},
	Gemini:   {"gemini-2.5-pro", "gemini-2.5-flash"},
	Ollama:   {"llama3.2", "qwen2.5", "mistral"},
}

// Variant 封闭的 {提供商, 模型} 组合
type Variant struct {
	Provider Name
	Model    string
}

func (v Variant) String() string {
	return string(v.Provider) + "/" + v.Model
}

// Known 判断组合是否受支持
func Known(provider, model string) bool {
	for _, m := range catalog[Name(provider)] {
		if m == model {
			return true
		}
	}
	return false
}

// Parse 解析组合，未知组合返回 ValidationError
func Parse(provider, model string) (Variant, error) {
	if !Known(provider, model) {
		return Variant{}, errs.Validation("unknown model %s/%s", provider, model)
	}
	return Variant{Provider: Name(provider), Model: model}, nil
}

// Variants 列出全部受支持的组合
func Variants() []Variant {
	names := make([]string, 0, len(catalog))
	for n := range catalog {
		names = append(names, string(n))
	}
	sort.Strings(names)

	var out []Variant
	for _, n := range names {
		for _, m := range catalog[Name(n)] {
			out = append(out, Variant{Provider: Name(n), Model: m})
		}
	}
	return out
}

// Factory 创建某个提供商的 ChatModel
type Factory func(ctx context.Context, cfg config.ProviderConfig, model string) (ecomodel.ToolCallingChatModel, error)

// Registry 按组合缓存 ChatModel
type Registry struct {
	cfg       config.ProvidersConfig
	mu        sync.Mutex
	factories map[Name]Factory
	cache     map[Variant]ecomodel.ToolCallingChatModel
}

// NewRegistry 创建注册表并注册内置提供商
func NewRegistry(cfg config.ProvidersConfig) *Registry {
	r := &Registry{
		cfg:       cfg,
		factories: make(map[Name]Factory),
		cache:     make(map[Variant]ecomodel.ToolCallingChatModel),
	}
	r.Register(OpenAI, newOpenAI)
	r.Register(DeepSeek, newDeepSeek)
	r.Register(Qwen, newQwen)
	r.Register(Claude, newClaude)
	r.Register(Gemini, newGemini)
	r.Register(Ollama, newOllama)
	return r
}

// Register 注册或替换提供商工厂
func (r *Registry) Register(name Name, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = f
	for v := range r.cache {
		if v.Provider == name {
			delete(r.cache, v)
		}
	}
}

// ChatModel 获取组合对应的 ChatModel
func (r *Registry) ChatModel(ctx context.Context, v Variant) (ecomodel.ToolCallingChatModel, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cm, ok := r.cache[v]; ok {
		return cm, nil
	}
	f, ok := r.factories[v.Provider]
	if !ok {
		return nil, errs.Validation("unknown provider %s", v.Provider)
	}
	cm, err := f(ctx, r.providerConfig(v.Provider), v.Model)
	if err != nil {
		return nil, fmt.Errorf("create chat model %s: %w", v, err)
	}
	r.cache[v] = cm
	return cm, nil
}

func (r *Registry) providerConfig(name Name) config.ProviderConfig {
	switch name {
	case OpenAI:
		return r.cfg.OpenAI
	case DeepSeek:
		return r.cfg.DeepSeek
	case Qwen:
		return r.cfg.Qwen
	case Claude:
		return r.cfg.Claude
	case Gemini:
		return r.cfg.Gemini
	case Ollama:
		return r.cfg.Ollama
	default:
		return config.ProviderConfig{}
	}
}

func newOpenAI(ctx context.Context, cfg config.ProviderConfig, model string) (ecomodel.ToolCallingChatModel, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("api_key is required for provider: %s", OpenAI)
	}
	return openai.NewChatModel(ctx, &openai.ChatModelConfig{
		APIKey:  cfg.APIKey,
		BaseURL: cfg.BaseURL,
		Model:   model,
	})
}

func newDeepSeek(ctx context.Context, cfg config.ProviderConfig, model string) (ecomodel.ToolCallingChatModel, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("api_key is required for provider: %s", DeepSeek)
	}
	return deepseek.NewChatModel(ctx, &deepseek.ChatModelConfig{
		BaseURL: cfg.BaseURL,
		APIKey:  cfg.APIKey,
		Model:   model,
	})
}

func newQwen(ctx context.Context, cfg config.ProviderConfig, model string) (ecomodel.ToolCallingChatModel, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("api_key is required for provider: %s", Qwen)
	}
	return qwen.NewChatModel(ctx, &qwen.ChatModelConfig{
		BaseURL: cfg.BaseURL,
		APIKey:  cfg.APIKey,
		Model:   model,
	})
}

func newClaude(ctx context.Context, cfg config.ProviderConfig, model string) (ecomodel.ToolCallingChatModel, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("api_key is required for provider: %s", Claude)
	}
	var baseURL *string
	if cfg.BaseURL != "" {
		u := cfg.BaseURL
		baseURL = &u
	}
	return claude.NewChatModel(ctx, &claude.Config{
		BaseURL:   baseURL,
		APIKey:    cfg.APIKey,
		Model:     model,
		MaxTokens: claudeMaxTokens,
	})
}

func newGemini(ctx context.Context, cfg config.ProviderConfig, model string) (ecomodel.ToolCallingChatModel, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("api_key is required for provider: %s", Gemini)
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini client init failed: %w", err)
	}
	return gemini.NewChatModel(ctx, &gemini.Config{
		Client: client,
		Model:  model,
	})
}

func newOllama(ctx context.Context, cfg config.ProviderConfig, model string) (ecomodel.ToolCallingChatModel, error) {
	return ollama.NewChatModel(ctx, &ollama.ChatModelConfig{
		BaseURL: cfg.BaseURL,
		Model:   model,
	})
}
