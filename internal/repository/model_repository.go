// Package repository 提供模型数据访问层
package repository

import (
	"context"
	"errors"

	"github.com/ashwinyue/next-chat/internal/errs"
	"github.com/ashwinyue/next-chat/internal/model"
	"gorm.io/gorm"
)

// ModelRepository 模型价目数据访问
type ModelRepository struct {
	db *gorm.DB
}

// NewModelRepository 创建模型仓库
func NewModelRepository(db *gorm.DB) *ModelRepository {
	return &ModelRepository{db: db}
}

// Create 创建模型
func (r *ModelRepository) Create(ctx context.Context, m *model.Model) error {
	return r.db.WithContext(ctx).Create(m).Error
}

// GetByID 根据 ID 获取模型
func (r *ModelRepository) GetByID(ctx context.Context, id string) (*model.Model, error) {
	var m model.Model
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errs.NotFound("model %s not found", id)
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// GetByProviderAndName 根据提供商与模型名获取可用的价目
func (r *ModelRepository) GetByProviderAndName(ctx context.Context, provider, name string) (*model.Model, error) {
	var m model.Model
	err := r.db.WithContext(ctx).
		Where("provider = ? AND name = ?", provider, name).
		Where("status = ?", model.ModelStatusActive).
		First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errs.NotFound("model %s/%s not found", provider, name)
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// List 列出模型，provider 为空时返回全部
func (r *ModelRepository) List(ctx context.Context, provider string) ([]*model.Model, error) {
	models := make([]*model.Model, 0)
	query := r.db.WithContext(ctx).Model(&model.Model{})
	if provider != "" {
		query = query.Where("provider = ?", provider)
	}
	err := query.Order("provider ASC").Order("name ASC").Find(&models).Error
	return models, err
}
