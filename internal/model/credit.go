package model

import "time"

// CreditBalance 用户积分余额，每个用户一行，Amount 不小于 0
type CreditBalance struct {
	UserID    string    `gorm:"primaryKey;size:36" json:"userId"`
	Amount    float64   `gorm:"not null;default:0" json:"amount"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}

// CreditLog 单次生成的计费记录，不可变
type CreditLog struct {
	ID           uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID       string    `gorm:"index;size:36;not null" json:"userId"`
	ModelID      string    `gorm:"size:36;index" json:"modelId"`
	Amount       float64   `gorm:"not null" json:"amount"`
	InputTokens  int       `gorm:"not null;default:0" json:"inputTokens"`
	OutputTokens int       `gorm:"not null;default:0" json:"outputTokens"`
	ElapsedMs    int64     `gorm:"not null;default:0" json:"elapsedMs"`
	CreatedAt    time.Time `gorm:"autoCreateTime;index" json:"createdAt"`
}

// TableName 指定表名
func (CreditBalance) TableName() string {
	return "credit_balances"
}

func (CreditLog) TableName() string {
	return "credit_logs"
}
