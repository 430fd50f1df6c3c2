// Package testutil 提供测试辅助工具
package testutil

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ashwinyue/next-chat/internal/model"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ContextHelper 提供上下文相关的测试辅助
type ContextHelper struct {
	t *testing.T
}

// NewContextHelper 创建上下文辅助器
func NewContextHelper(t *testing.T) *ContextHelper {
	return &ContextHelper{t: t}
}

// TimeoutContext 返回带超时的 context，测试结束时取消
func (h *ContextHelper) TimeoutContext(d time.Duration) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), d)
	h.t.Cleanup(cancel)
	return ctx
}

// AssertHelper 提供断言相关的测试辅助
type AssertHelper struct {
	t *testing.T
}

// NewAssertHelper 创建断言辅助器
func NewAssertHelper(t *testing.T) *AssertHelper {
	return &AssertHelper{t: t}
}

// NoError 断言没有错误
func (h *AssertHelper) NoError(err error, msgAndArgs ...interface{}) {
	h.t.Helper()
	if err != nil {
		h.t.Fatalf("Unexpected error: %v %v", err, msgAndArgs)
	}
}

// ErrorIs 断言错误链包含 target
func (h *AssertHelper) ErrorIs(err, target error, msgAndArgs ...interface{}) {
	h.t.Helper()
	if !errors.Is(err, target) {
		h.t.Fatalf("Expected error %v, got %v %v", target, err, msgAndArgs)
	}
}

// Equal 断言相等
func (h *AssertHelper) Equal(expected, actual interface{}, msgAndArgs ...interface{}) {
	h.t.Helper()
	if expected != actual {
		h.t.Errorf("Expected %v, got %v %v", expected, actual, msgAndArgs)
	}
}

// True 断言为真
func (h *AssertHelper) True(condition bool, msgAndArgs ...interface{}) {
	h.t.Helper()
	if !condition {
		h.t.Errorf("Expected true, got false %v", msgAndArgs)
	}
}

// False 断言为假
func (h *AssertHelper) False(condition bool, msgAndArgs ...interface{}) {
	h.t.Helper()
	if condition {
		h.t.Errorf("Expected false, got true %v", msgAndArgs)
	}
}

// ========== 数据夹具 ==========

// SeedModel 写入一条可用的模型价目
func SeedModel(t *testing.T, db *gorm.DB, provider, name string, inCost, outCost float64) *model.Model {
	t.Helper()
	m := &model.Model{
		Provider:        provider,
		Name:            name,
		InputTokenCost:  inCost,
		OutputTokenCost: outCost,
		Status:          model.ModelStatusActive,
	}
	if err := db.Create(m).Error; err != nil {
		t.Fatalf("seed model: %v", err)
	}
	return m
}

// SeedBalance 写入用户余额
func SeedBalance(t *testing.T, db *gorm.DB, userID string, amount float64) {
	t.Helper()
	if err := db.Create(&model.CreditBalance{UserID: userID, Amount: amount}).Error; err != nil {
		t.Fatalf("seed balance: %v", err)
	}
}

// SeedChat 写入会话及消息，roles 按顺序生成消息
func SeedChat(t *testing.T, db *gorm.DB, userID, title string, roles ...string) *model.Chat {
	t.Helper()
	chat := &model.Chat{PubID: uuid.NewString(), UserID: userID, Title: title}
	if err := db.Create(chat).Error; err != nil {
		t.Fatalf("seed chat: %v", err)
	}
	for i, role := range roles {
		msg := &model.Message{
			PubID:       uuid.NewString(),
			ChatID:      chat.ID,
			Role:        role,
			Content:     role + " message " + string(rune('a'+i)),
			Parts:       model.EncodeParts(nil),
			Attachments: model.EncodeAttachments(nil),
		}
		if err := db.Create(msg).Error; err != nil {
			t.Fatalf("seed message: %v", err)
		}
	}
	return chat
}

// CountRows 统计表行数
func CountRows(t *testing.T, db *gorm.DB, value interface{}) int64 {
	t.Helper()
	var n int64
	if err := db.Model(value).Count(&n).Error; err != nil {
		t.Fatalf("count rows: %v", err)
	}
	return n
}
