// Package credit 积分账本：生成前检查余额，生成后按用量结算
package credit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ashwinyue/next-chat/internal/errs"
	"github.com/ashwinyue/next-chat/internal/model"
	"github.com/ashwinyue/next-chat/internal/repository"
	"github.com/ashwinyue/next-chat/internal/service/types"
)

// Ledger 积分账本
// 检查与结算之间没有锁，同一用户的并发生成可能都通过检查
type Ledger struct {
	store  repository.CreditStore
	logger *slog.Logger
}

// NewLedger 创建积分账本
func NewLedger(store repository.CreditStore, logger *slog.Logger) *Ledger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ledger{store: store, logger: logger.With("component", "credit")}
}

// CheckBalance 检查余额，不大于 0 时返回 InsufficientCreditError
func (l *Ledger) CheckBalance(ctx context.Context, userID string) (float64, error) {
	bal, err := l.store.GetBalance(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("get balance: %w", err)
	}
	if bal <= 0 {
		return bal, errs.InsufficientCredit(bal)
	}
	return bal, nil
}

// Fee 计算费用，结果不小于 0
func Fee(rate *model.Model, usage types.Usage, elapsed time.Duration) float64 {
	if rate == nil {
		return 0
	}
	fee := float64(usage.InputTokens)*rate.InputTokenCost +
		float64(usage.OutputTokens)*rate.OutputTokenCost

	if rate.SpeedThreshold > 0 && rate.SpeedSurchargeRate > 0 && elapsed > 0 {
		tps := float64(usage.OutputTokens) / elapsed.Seconds()
		if tps > rate.SpeedThreshold {
			fee += float64(usage.OutputTokens) * rate.SpeedSurchargeRate
		}
	}

	if fee < 0 {
		return 0
	}
	return fee
}

// Settle 结算一次生成，扣减余额并记录日志
// 零用量不结算
func (l *Ledger) Settle(ctx context.Context, userID string, rate *model.Model, usage types.Usage, elapsed time.Duration) (float64, error) {
	if usage.Empty() {
		return 0, nil
	}

	fee := Fee(rate, usage, elapsed)
	entry := &model.CreditLog{
		ModelID:      rate.ID,
		InputTokens:  usage.InputTokens,
		OutputTokens: usage.OutputTokens,
		ElapsedMs:    elapsed.Milliseconds(),
	}
	after, err := l.store.Debit(ctx, userID, fee, entry)
	if err != nil {
		return 0, errs.Persistence("settle credit", err)
	}

	l.logger.InfoContext(ctx, "credit settled",
		"userId", userID,
		"modelId", rate.ID,
		"fee", fee,
		"balance", after,
		"inputTokens", usage.InputTokens,
		"outputTokens", usage.OutputTokens,
	)
	return fee, nil
}

// Balance 获取余额
func (l *Ledger) Balance(ctx context.Context, userID string) (float64, error) {
	return l.store.GetBalance(ctx, userID)
}

// ListLogs 分页获取计费记录，page 从 1 开始
func (l *Ledger) ListLogs(ctx context.Context, userID string, page, limit int) ([]*model.CreditLog, int64, error) {
	if page < 1 {
		page = 1
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return l.store.ListLogs(ctx, userID, (page-1)*limit, limit)
}

// Grant 增加余额
func (l *Ledger) Grant(ctx context.Context, userID string, amount float64) (float64, error) {
	if amount <= 0 {
		return 0, errs.Validation("grant amount must be positive")
	}
	return l.store.Grant(ctx, userID, amount)
}
