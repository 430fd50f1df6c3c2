// Package orchestrator 驱动一轮生成
// INIT -> STREAMING -> FINALIZING -> {DONE, FAILED}
package orchestrator

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	ecomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/tool"
	"github.com/google/uuid"

	"github.com/ashwinyue/next-chat/internal/errs"
	"github.com/ashwinyue/next-chat/internal/model"
	"github.com/ashwinyue/next-chat/internal/repository"
	"github.com/ashwinyue/next-chat/internal/service/provider"
	"github.com/ashwinyue/next-chat/internal/service/stream"
	"github.com/ashwinyue/next-chat/internal/service/types"
	"github.com/ashwinyue/next-chat/internal/service/validator"
)

// Ledger 积分检查与结算
type Ledger interface {
	CheckBalance(ctx context.Context, userID string) (float64, error)
	Settle(ctx context.Context, userID string, rate *model.Model, usage types.Usage, elapsed time.Duration) (float64, error)
}

// ModelResolver 把组合解析为 ChatModel
type ModelResolver interface {
	ChatModel(ctx context.Context, v provider.Variant) (ecomodel.ToolCallingChatModel, error)
}

// Options 生成参数
type Options struct {
	SmoothDelay   time.Duration
	MaxRetries    int
	MaxSteps      int
	RetryBackoff  time.Duration
	GenerateTitle bool
}

// Orchestrator 生成编排器
type Orchestrator struct {
	chats     repository.ChatStore
	models    repository.ModelStore
	ledger    Ledger
	providers ModelResolver
	registry  *stream.Registry
	tools     []tool.InvokableTool
	opts      Options
	logger    *slog.Logger
	now       func() time.Time

	bg sync.WaitGroup
}

// New 创建编排器
func New(
	chats repository.ChatStore,
	models repository.ModelStore,
	ledger Ledger,
	providers ModelResolver,
	registry *stream.Registry,
	tools []tool.InvokableTool,
	opts Options,
	logger *slog.Logger,
) *Orchestrator {
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 3
	}
	if opts.MaxSteps <= 0 {
		opts.MaxSteps = 5
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		chats:     chats,
		models:    models,
		ledger:    ledger,
		providers: providers,
		registry:  registry,
		tools:     tools,
		opts:      opts,
		logger:    logger.With("component", "orchestrator"),
		now:       time.Now,
	}
}

// Wait 等待后台任务（生成与标题）完成
func (o *Orchestrator) Wait() {
	o.bg.Wait()
}

// turn 一轮生成在 INIT 阶段解析出的上下文
type turn struct {
	userID  string
	req     *types.ChatRequest
	variant provider.Variant
	rate    *model.Model
	cm      ecomodel.ToolCallingChatModel
	chat    *model.Chat
	newChat bool
	history []*model.Message
	userMsg *model.Message
	pub     *stream.Publisher
	logger  *slog.Logger
}

// Start 执行 INIT 并在后台开始生成
// INIT 失败时返回的 Generation 处于 FAILED，且没有任何流输出
func (o *Orchestrator) Start(ctx context.Context, userID string, req *types.ChatRequest) (*Generation, error) {
	g := newGeneration()

	t, err := o.initTurn(ctx, userID, req, g)
	if err != nil {
		g.fail(err)
		g.finish()
		o.logger.InfoContext(ctx, "generation rejected", "userId", userID, "error", err)
		return g, err
	}

	g.transition(StateStreaming)
	t.logger.InfoContext(ctx, "generation started", "state", StateStreaming, "model", t.variant.String())

	// 客户端断开不取消生成
	runCtx := context.WithoutCancel(ctx)
	o.bg.Add(1)
	go func() {
		defer o.bg.Done()
		o.run(runCtx, g, t)
	}()
	return g, nil
}

func (o *Orchestrator) initTurn(ctx context.Context, userID string, req *types.ChatRequest, g *Generation) (*turn, error) {
	variant, err := validator.ValidateChatRequest(req)
	if err != nil {
		return nil, err
	}

	rate, err := o.models.GetByProviderAndName(ctx, string(variant.Provider), variant.Model)
	if err != nil {
		if errs.IsNotFound(err) {
			return nil, errs.Validation("model %s is not available", variant)
		}
		return nil, err
	}

	cm, err := o.providers.ChatModel(ctx, variant)
	if err != nil {
		return nil, errs.Provider(err)
	}

	if _, err := o.ledger.CheckBalance(ctx, userID); err != nil {
		return nil, err
	}

	t := &turn{userID: userID, req: req, variant: variant, rate: rate, cm: cm}

	msgID, err := o.allocMessageID(ctx, req.Message.ID)
	if err != nil {
		return nil, err
	}

	if req.Incognito {
		if err := o.checkIncognitoChat(ctx, t); err != nil {
			return nil, err
		}
	} else if err := o.resolveChat(ctx, t); err != nil {
		return nil, err
	}

	t.userMsg = &model.Message{
		PubID:       msgID,
		Role:        model.RoleUser,
		Content:     req.Message.Content,
		Parts:       model.EncodeParts(userParts(&req.Message)),
		Attachments: model.EncodeAttachments(req.Message.Attachments),
	}

	g.ChatPubID = req.ID
	g.UserMessageID = msgID
	g.StreamKey = stream.StreamKey(msgID)
	g.Incognito = req.Incognito

	t.logger = o.logger.With("userId", userID, "chatId", req.ID, "streamKey", g.StreamKey)
	// 无痕对话不记录会话到流的映射
	chatPubID := req.ID
	if req.Incognito {
		chatPubID = ""
	}
	t.pub = o.registry.Open(ctx, chatPubID, g.StreamKey)
	return t, nil
}

// allocMessageID 确定用户消息 pubId
// 客户端给出的 id 已被持久化或流 key 已被占用时重新分配，避免覆盖他人的回放缓冲
func (o *Orchestrator) allocMessageID(ctx context.Context, id string) (string, error) {
	if _, err := uuid.Parse(id); err != nil {
		return uuid.NewString(), nil
	}
	exists, err := o.chats.MessageExists(ctx, id)
	if err != nil {
		return "", err
	}
	if exists || o.registry.InUse(ctx, stream.StreamKey(id)) {
		o.logger.InfoContext(ctx, "message id already used, allocating a new one", "messageId", id)
		return uuid.NewString(), nil
	}
	return id, nil
}

// checkIncognitoChat 无痕对话不读写会话，但已存在的会话仍须属于当前用户
func (o *Orchestrator) checkIncognitoChat(ctx context.Context, t *turn) error {
	chat, err := o.chats.GetChatByPubID(ctx, t.req.ID)
	switch {
	case err == nil:
		return validator.EnsureOwner(chat, t.userID)
	case errors.Is(err, errs.ErrNotFound):
		return nil
	default:
		return err
	}
}

// resolveChat 加载或创建会话，校验归属
func (o *Orchestrator) resolveChat(ctx context.Context, t *turn) error {
	chat, err := o.chats.GetChatByPubID(ctx, t.req.ID)
	switch {
	case err == nil:
		if err := validator.EnsureOwner(chat, t.userID); err != nil {
			return err
		}
		history, err := o.chats.ListMessages(ctx, chat.ID)
		if err != nil {
			return err
		}
		t.chat, t.history = chat, history
		return nil
	case errors.Is(err, errs.ErrNotFound):
		chat = &model.Chat{PubID: t.req.ID, UserID: t.userID}
		if err := o.chats.CreateChat(ctx, chat); err != nil {
			return err
		}
		t.chat, t.newChat = chat, true
		return nil
	default:
		return err
	}
}

func userParts(m *types.IncomingMessage) []model.Part {
	if len(m.Parts) > 0 {
		return m.Parts
	}
	if m.Content == "" {
		return nil
	}
	return []model.Part{{Type: model.PartTypeText, Text: m.Content}}
}
