package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/ashwinyue/next-chat/internal/config"
	"github.com/ashwinyue/next-chat/internal/repository"
	"github.com/ashwinyue/next-chat/internal/service/auth"
	"github.com/ashwinyue/next-chat/internal/service/branch"
	"github.com/ashwinyue/next-chat/internal/service/callback"
	"github.com/ashwinyue/next-chat/internal/service/chat"
	"github.com/ashwinyue/next-chat/internal/service/credit"
	modelsvc "github.com/ashwinyue/next-chat/internal/service/model"
	"github.com/ashwinyue/next-chat/internal/service/orchestrator"
	"github.com/ashwinyue/next-chat/internal/service/provider"
	"github.com/ashwinyue/next-chat/internal/service/stream"
)

// Services 服务集合
type Services struct {
	// 业务服务
	Orchestrator *orchestrator.Orchestrator
	Branch       *branch.Service
	Chat         *chat.Service
	Credit       *credit.Ledger
	Auth         *auth.Service
	Models       *modelsvc.Service

	// 基础组件
	Config    *config.Config
	Registry  *stream.Registry
	Providers *provider.Registry
}

// Options 可替换的组件，测试时注入
type Options struct {
	Providers orchestrator.ModelResolver
	Logger    *slog.Logger
}

// NewServices 创建所有服务
func NewServices(repo *repository.Repositories, cfg *config.Config, opts Options) (*Services, error) {
	ctx := context.Background()
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	callback.SetupGlobalCallbacks(cfg.App.Debug, logger)

	models := modelsvc.NewService(repo.Model, logger)
	if _, err := models.EnsureDefaults(ctx, cfg.Credit.DefaultInputCost, cfg.Credit.DefaultOutputCost); err != nil {
		return nil, err
	}

	authSvc, err := auth.NewService(cfg.Auth.JWTSecret)
	if err != nil {
		return nil, err
	}

	registry := stream.NewRegistry(cfg.Redis.URL, cfg.Redis.GetBufferTTL(), logger)
	if cfg.Redis.URL == "" {
		logger.Warn("redis url not configured, resumable streams disabled")
	}

	providers := provider.NewRegistry(cfg.Providers)
	var resolver orchestrator.ModelResolver = providers
	if opts.Providers != nil {
		resolver = opts.Providers
	}

	ledger := credit.NewLedger(repo.Credit, logger)
	tools := newTools(ctx, cfg, logger)
	logger.Info("tools initialized", "count", len(tools))

	orch := orchestrator.New(repo.Chat, repo.Model, ledger, resolver, registry, tools, orchestrator.Options{
		SmoothDelay:   cfg.Stream.GetSmoothDelay(),
		MaxRetries:    cfg.Stream.MaxRetries,
		MaxSteps:      cfg.Stream.MaxSteps,
		RetryBackoff:  cfg.Stream.GetRetryBackoff(),
		GenerateTitle: cfg.Title.Enabled,
	}, logger)

	return &Services{
		Orchestrator: orch,
		Branch:       branch.NewService(repo.Chat, logger),
		Chat:         chat.NewService(repo.Chat, registry),
		Credit:       ledger,
		Auth:         authSvc,
		Models:       models,

		Config:    cfg,
		Registry:  registry,
		Providers: providers,
	}, nil
}

// Close 等待后台生成结束并释放连接
func (s *Services) Close(timeout time.Duration) error {
	done := make(chan struct{})
	go func() {
		s.Orchestrator.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(timeout):
		slog.Warn("background generations still running at shutdown")
	}
	return s.Registry.Close()
}
