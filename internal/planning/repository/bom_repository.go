package repository

import (
	"context"
	"time"

	"github.com/hexafab/forge/internal/planning/entity"
	"gorm.io/gorm"
)

type BOMRepository struct {
	db *gorm.DB
}

func NewBOMRepository(db *gorm.DB) *BOMRepository {
	return &BOMRepository{db: db}
}

// Create 创建BOM头和行项，同一事务内写入
func (r *BOMRepository) Create(ctx context.Context, bom *entity.BOM, items []entity.BOMItem) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(bom).Error; err != nil {
			return err
		}
		if len(items) > 0 {
			if err := tx.Create(&items).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *BOMRepository) FindByID(ctx context.Context, id string) (*entity.BOM, error) {
	var bom entity.BOM
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&bom).Error; err != nil {
		return nil, wrapNotFound(err)
	}
	return &bom, nil
}

// FindWithItems 获取BOM头与平表行项，行项按sequence排序，树由服务层重建
func (r *BOMRepository) FindWithItems(ctx context.Context, id string) (*entity.BOM, error) {
	var bom entity.BOM
	err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB {
			return db.Order("bom_items.level, bom_items.sequence")
		}).
		Preload("Items.InventoryItem").
		Preload("Items.Operation").
		Where("id = ?", id).First(&bom).Error
	if err != nil {
		return nil, wrapNotFound(err)
	}
	return &bom, nil
}

// ExistsRevision 检查 (product_id, revision) 是否已存在
func (r *BOMRepository) ExistsRevision(ctx context.Context, productID, revision string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&entity.BOM{}).
		Where("product_id = ? AND revision = ?", productID, revision).
		Count(&count).Error
	return count > 0, err
}

func (r *BOMRepository) Update(ctx context.Context, bom *entity.BOM) error {
	return r.db.WithContext(ctx).Save(bom).Error
}

// ListByProduct 获取产品的全部BOM版本
func (r *BOMRepository) ListByProduct(ctx context.Context, productID string) ([]entity.BOM, error) {
	var boms []entity.BOM
	err := r.db.WithContext(ctx).
		Where("product_id = ?", productID).
		Order("effective_date DESC, created_at DESC").
		Find(&boms).Error
	return boms, err
}

// FindCurrentApproved 按约定选取当前版本: APPROVED中effective_date最新的一条
func (r *BOMRepository) FindCurrentApproved(ctx context.Context, productID string) (*entity.BOM, error) {
	var bom entity.BOM
	err := r.db.WithContext(ctx).
		Where("product_id = ? AND status = ?", productID, entity.BOMStatusApproved).
		Order("effective_date DESC").
		First(&bom).Error
	if err != nil {
		return nil, wrapNotFound(err)
	}
	return &bom, nil
}

// MarkObsolete 标记BOM为废弃
func (r *BOMRepository) MarkObsolete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Model(&entity.BOM{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":     entity.BOMStatusObsolete,
			"updated_at": time.Now(),
		}).Error
}
