// Package model 提供数据模型
package model

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ModelStatus 模型状态
type ModelStatus string

const (
	ModelStatusActive   ModelStatus = "active"   // 可用
	ModelStatusDisabled ModelStatus = "disabled" // 停用
)

// Model 模型价目，对本服务只读
// 成本单位为每 token 积分
type Model struct {
	ID                 string      `json:"id" gorm:"type:varchar(36);primaryKey"`
	PubID              string      `json:"pubId" gorm:"type:varchar(36);uniqueIndex"`
	Provider           string      `json:"provider" gorm:"type:varchar(50);not null;uniqueIndex:idx_model_provider_name,priority:1"`
	Name               string      `json:"name" gorm:"type:varchar(255);not null;uniqueIndex:idx_model_provider_name,priority:2"`
	InputTokenCost     float64     `json:"inputTokenCost" gorm:"not null;default:0"`
	OutputTokenCost    float64     `json:"outputTokenCost" gorm:"not null;default:0"`
	SpeedSurchargeRate float64     `json:"speedSurchargeRate" gorm:"not null;default:0"`
	SpeedThreshold     float64     `json:"speedThreshold" gorm:"not null;default:0"` // 输出 token/秒
	Status             ModelStatus `json:"status" gorm:"type:varchar(50);default:'active'"`
	CreatedAt          int64       `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt          int64       `json:"updated_at" gorm:"autoUpdateTime"`
}

// BeforeCreate GORM 钩子，创建前生成 UUID
func (m *Model) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	if m.PubID == "" {
		m.PubID = uuid.New().String()
	}
	return nil
}

// TableName 指定表名
func (Model) TableName() string {
	return "models"
}

// IsActive 是否可用
func (m *Model) IsActive() bool {
	return m.Status == "" || m.Status == ModelStatusActive
}
