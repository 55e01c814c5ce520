package repository

import (
	"context"
	"time"

	"github.com/hexafab/forge/internal/planning/entity"
	"gorm.io/gorm"
)

type ECNRepository struct {
	db *gorm.DB
}

func NewECNRepository(db *gorm.DB) *ECNRepository {
	return &ECNRepository{db: db}
}

func (r *ECNRepository) Create(ctx context.Context, ec *entity.EngineeringChange) error {
	return r.db.WithContext(ctx).Create(ec).Error
}

func (r *ECNRepository) FindByID(ctx context.Context, id string) (*entity.EngineeringChange, error) {
	var ec entity.EngineeringChange
	err := r.db.WithContext(ctx).
		Preload("OldBOM").Preload("NewBOM").
		Where("id = ?", id).First(&ec).Error
	if err != nil {
		return nil, wrapNotFound(err)
	}
	return &ec, nil
}

func (r *ECNRepository) Update(ctx context.Context, ec *entity.EngineeringChange) error {
	return r.db.WithContext(ctx).Save(ec).Error
}

// ListByProduct 产品相关的变更历史，通过BOM关联
func (r *ECNRepository) ListByProduct(ctx context.Context, productID string) ([]entity.EngineeringChange, error) {
	var ecs []entity.EngineeringChange
	err := r.db.WithContext(ctx).
		Joins("JOIN boms ON boms.id = engineering_changes.bom_id").
		Where("boms.product_id = ?", productID).
		Order("engineering_changes.created_at DESC").
		Find(&ecs).Error
	return ecs, err
}

func (r *ECNRepository) List(ctx context.Context, page, size int) ([]entity.EngineeringChange, int64, error) {
	query := r.db.WithContext(ctx).Model(&entity.EngineeringChange{})
	var total int64
	query.Count(&total)
	if page <= 0 {
		page = 1
	}
	if size <= 0 {
		size = 20
	}
	var ecs []entity.EngineeringChange
	err := query.Order("created_at DESC").Offset((page - 1) * size).Limit(size).Find(&ecs).Error
	return ecs, total, err
}

// MarkPropagated 记录传播结果
func (r *ECNRepository) MarkPropagated(ctx context.Context, id string, count int) error {
	now := time.Now()
	return r.db.WithContext(ctx).Model(&entity.EngineeringChange{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":            entity.ECStatusImplemented,
			"propagated_at":     now,
			"propagated_orders": count,
			"updated_at":        now,
		}).Error
}
