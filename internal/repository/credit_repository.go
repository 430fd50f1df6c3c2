package repository

import (
	"context"
	"errors"

	"github.com/ashwinyue/next-chat/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CreditRepository 积分数据访问
type CreditRepository struct {
	db *gorm.DB
}

// NewCreditRepository 创建积分仓库
func NewCreditRepository(db *gorm.DB) *CreditRepository {
	return &CreditRepository{db: db}
}

// GetBalance 获取用户余额，没有记录时为 0
func (r *CreditRepository) GetBalance(ctx context.Context, userID string) (float64, error) {
	var bal model.CreditBalance
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&bal).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return bal.Amount, nil
}

// Debit 扣减余额并写入计费记录，余额最低为 0
// 返回扣减后的余额
func (r *CreditRepository) Debit(ctx context.Context, userID string, fee float64, entry *model.CreditLog) (float64, error) {
	var after float64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var bal model.CreditBalance
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("user_id = ?", userID).
			First(&bal).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			bal = model.CreditBalance{UserID: userID}
			if err := tx.Create(&bal).Error; err != nil {
				return err
			}
		} else if err != nil {
			return err
		}

		after = bal.Amount - fee
		if after < 0 {
			after = 0
		}
		if err := tx.Model(&model.CreditBalance{}).
			Where("user_id = ?", userID).
			Update("amount", after).Error; err != nil {
			return err
		}

		entry.UserID = userID
		entry.Amount = fee
		return tx.Create(entry).Error
	})
	return after, err
}

// Grant 增加余额，没有记录时创建
func (r *CreditRepository) Grant(ctx context.Context, userID string, amount float64) (float64, error) {
	var after float64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var bal model.CreditBalance
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("user_id = ?", userID).
			First(&bal).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			bal = model.CreditBalance{UserID: userID, Amount: amount}
			after = amount
			return tx.Create(&bal).Error
		}
		if err != nil {
			return err
		}
		after = bal.Amount + amount
		return tx.Model(&model.CreditBalance{}).
			Where("user_id = ?", userID).
			Update("amount", after).Error
	})
	return after, err
}

// ListLogs 分页列出计费记录，按时间倒序
func (r *CreditRepository) ListLogs(ctx context.Context, userID string, offset, limit int) ([]*model.CreditLog, int64, error) {
	query := r.db.WithContext(ctx).Model(&model.CreditLog{}).
		Where("user_id = ?", userID).
		Session(&gorm.Session{})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	logs := make([]*model.CreditLog, 0)
	err := query.Order("id DESC").Offset(offset).Limit(limit).Find(&logs).Error
	return logs, total, err
}
