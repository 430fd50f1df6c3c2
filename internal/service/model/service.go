// Package model 提供模型价目服务
package model

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ashwinyue/next-chat/internal/errs"
	"github.com/ashwinyue/next-chat/internal/model"
	"github.com/ashwinyue/next-chat/internal/repository"
	"github.com/ashwinyue/next-chat/internal/service/provider"
)

// Service 模型价目服务
type Service struct {
	repo   *repository.ModelRepository
	logger *slog.Logger
}

// NewService 创建模型价目服务
func NewService(repo *repository.ModelRepository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, logger: logger}
}

// ModelProvider 模型提供商信息
type ModelProvider struct {
	Name        string   `json:"name"`
	DisplayName string   `json:"displayName"`
	Models      []string `json:"models"`
}

var displayNames = map[provider.Name]string{
	provider.OpenAI:   "OpenAI",
	provider.DeepSeek: "DeepSeek",
	provider.Qwen:     "阿里云通义千问",
	provider.Claude:   "Anthropic Claude",
	provider.Gemini:   "Google Gemini",
	provider.Ollama:   "本地模型 (Ollama)",
}

// ListModels 列出可用的模型价目，provider 为空时返回全部
func (s *Service) ListModels(ctx context.Context, providerName string) ([]*model.Model, error) {
	models, err := s.repo.List(ctx, providerName)
	if err != nil {
		return nil, fmt.Errorf("list models: %w", err)
	}
	out := make([]*model.Model, 0, len(models))
	for _, m := range models {
		if m.IsActive() && provider.Known(m.Provider, m.Name) {
			out = append(out, m)
		}
	}
	return out, nil
}

// ListModelProviders 列出支持的模型提供商及其模型
func (s *Service) ListModelProviders(ctx context.Context) []ModelProvider {
	byProvider := make(map[provider.Name][]string)
	var order []provider.Name
	for _, v := range provider.Variants() {
		if _, ok := byProvider[v.Provider]; !ok {
			order = append(order, v.Provider)
		}
		byProvider[v.Provider] = append(byProvider[v.Provider], v.Model)
	}

	out := make([]ModelProvider, 0, len(order))
	for _, name := range order {
		out = append(out, ModelProvider{
			Name:        string(name),
			DisplayName: displayNames[name],
			Models:      byProvider[name],
		})
	}
	return out
}

// EnsureDefaults 为目录中缺少价目的模型补齐默认价目
func (s *Service) EnsureDefaults(ctx context.Context, inputCost, outputCost float64) (int, error) {
	all, err := s.repo.List(ctx, "")
	if err != nil {
		return 0, fmt.Errorf("list rate cards: %w", err)
	}
	existing := make(map[string]bool, len(all))
	for _, m := range all {
		existing[m.Provider+"/"+m.Name] = true
	}

	created := 0
	for _, v := range provider.Variants() {
		if existing[v.String()] {
			continue
		}
		card := &model.Model{
			Provider:        string(v.Provider),
			Name:            v.Model,
			InputTokenCost:  inputCost,
			OutputTokenCost: outputCost,
			Status:          model.ModelStatusActive,
		}
		if err := s.repo.Create(ctx, card); err != nil {
			return created, errs.Persistence("create rate card "+v.String(), err)
		}
		created++
	}
	if created > 0 {
		s.logger.InfoContext(ctx, "default rate cards created", "count", created)
	}
	return created, nil
}
