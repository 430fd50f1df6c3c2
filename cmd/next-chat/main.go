package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/pflag"

	"github.com/ashwinyue/next-chat/internal/config"
	"github.com/ashwinyue/next-chat/internal/database"
	"github.com/ashwinyue/next-chat/internal/handler"
	"github.com/ashwinyue/next-chat/internal/repository"
	"github.com/ashwinyue/next-chat/internal/router"
	"github.com/ashwinyue/next-chat/internal/service"
)

func main() {
	configPath := pflag.StringP("config", "c", "", "config file path (default $CONFIG_PATH or ./configs/config.yaml)")
	issueToken := pflag.String("issue-token", "", "print a session token for the given user id and exit")
	tokenTTL := pflag.Duration("token-ttl", 24*time.Hour, "lifetime of a token issued with --issue-token")
	pflag.Parse()

	// 加载配置
	path := *configPath
	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	if path == "" {
		path = "./configs/config.yaml"
	}

	cfg, err := config.Load(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := newLogger(cfg)
	slog.SetDefault(logger)

	if err := run(cfg, logger, *issueToken, *tokenTTL); err != nil {
		logger.Error("exit with error", "error", err)
		os.Exit(1)
	}
}

// newLogger 调试模式输出文本，其余输出 JSON
func newLogger(cfg *config.Config) *slog.Logger {
	if cfg.App.Debug {
		return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
}

func run(cfg *config.Config, logger *slog.Logger, issueToken string, tokenTTL time.Duration) error {
	// 设置 Gin 模式
	gin.SetMode(cfg.Server.Mode)

	// 初始化数据库
	db, err := database.New(cfg)
	if err != nil {
		return fmt.Errorf("init database: %w", err)
	}
	defer db.Close()
	logger.Info("database connected", "driver", cfg.Database.Driver)

	// 初始化各层
	repos := repository.NewRepositories(db.DB)
	services, err := service.NewServices(repos, cfg, service.Options{Logger: logger})
	if err != nil {
		return fmt.Errorf("init services: %w", err)
	}
	defer services.Close(10 * time.Second)

	if issueToken != "" {
		return printToken(services, cfg, issueToken, tokenTTL)
	}

	handlers := handler.NewHandlers(services)
	r := router.SetupRouter(handlers, services.Auth, logger)

	// 创建 HTTP 服务器，写超时为 0 时不限制 SSE 长连接
	srv := &http.Server{
		Addr:         cfg.Server.GetAddr(),
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// 等待中断信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-quit:
	}

	logger.Info("shutting down server")

	// 优雅关闭
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info("server exited")
	return nil
}

// printToken 开发用：签发令牌，并按 credit.initialAmount 发放初始积分
func printToken(services *service.Services, cfg *config.Config, userID string, ttl time.Duration) error {
	token, err := services.Auth.IssueToken(userID, ttl)
	if err != nil {
		return err
	}
	if cfg.Credit.InitialAmount > 0 {
		balance, err := services.Credit.Grant(context.Background(), userID, cfg.Credit.InitialAmount)
		if err != nil {
			return fmt.Errorf("grant initial credit: %w", err)
		}
		slog.Info("initial credit granted", "userId", userID, "balance", balance)
	}
	fmt.Println(token)
	return nil
}
