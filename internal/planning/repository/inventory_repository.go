package repository

import (
	"context"
	"time"

	"github.com/hexafab/forge/internal/planning/entity"
	"gorm.io/gorm"
)

type InventoryRepository struct {
	db *gorm.DB
}

func NewInventoryRepository(db *gorm.DB) *InventoryRepository {
	return &InventoryRepository{db: db}
}

func (r *InventoryRepository) Create(ctx context.Context, item *entity.InventoryItem) error {
	return r.db.WithContext(ctx).Create(item).Error
}

func (r *InventoryRepository) FindByID(ctx context.Context, id string) (*entity.InventoryItem, error) {
	var item entity.InventoryItem
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&item).Error; err != nil {
		return nil, wrapNotFound(err)
	}
	return &item, nil
}

// FindByIDs 批量取物料，调用方负责判缺
func (r *InventoryRepository) FindByIDs(ctx context.Context, ids []string) ([]entity.InventoryItem, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var items []entity.InventoryItem
	err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&items).Error
	return items, err
}

func (r *InventoryRepository) List(ctx context.Context, keyword string, page, size int) ([]entity.InventoryItem, int64, error) {
	query := r.db.WithContext(ctx).Model(&entity.InventoryItem{})
	if keyword != "" {
		kw := "%" + keyword + "%"
		query = query.Where("code ILIKE ? OR name ILIKE ?", kw, kw)
	}
	var total int64
	query.Count(&total)
	if page <= 0 {
		page = 1
	}
	if size <= 0 {
		size = 20
	}
	var items []entity.InventoryItem
	err := query.Order("code").Offset((page - 1) * size).Limit(size).Find(&items).Error
	return items, total, err
}

// Reserve 条件预留: 仅当可用库存足够才从available挪到reserved。
// 单条UPDATE保证两个订单不会同时通过校验吃掉同一份库存。
func (r *InventoryRepository) Reserve(ctx context.Context, itemID string, qty float64) (bool, error) {
	res := r.db.WithContext(ctx).Model(&entity.InventoryItem{}).
		Where("id = ? AND available_stock >= ?", itemID, qty).
		Updates(map[string]interface{}{
			"available_stock": gorm.Expr("available_stock - ?", qty),
			"reserved_stock":  gorm.Expr("reserved_stock + ?", qty),
			"updated_at":      time.Now(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// ReleaseReservation 释放预留，补偿路径与订单取消使用
func (r *InventoryRepository) ReleaseReservation(ctx context.Context, itemID string, qty float64) error {
	return r.db.WithContext(ctx).Model(&entity.InventoryItem{}).
		Where("id = ?", itemID).
		Updates(map[string]interface{}{
			"available_stock": gorm.Expr("available_stock + ?", qty),
			"reserved_stock":  gorm.Expr("GREATEST(reserved_stock - ?, 0)", qty),
			"updated_at":      time.Now(),
		}).Error
}

// Consume 消耗: current减实际量，reserved减计划量，两者允许偏差
func (r *InventoryRepository) Consume(ctx context.Context, itemID string, actualQty, plannedQty float64) error {
	return r.db.WithContext(ctx).Model(&entity.InventoryItem{}).
		Where("id = ?", itemID).
		Updates(map[string]interface{}{
			"current_stock":  gorm.Expr("current_stock - ?", actualQty),
			"reserved_stock": gorm.Expr("GREATEST(reserved_stock - ?, 0)", plannedQty),
			"updated_at":     time.Now(),
		}).Error
}

// Scrap 报废扣减现存量
func (r *InventoryRepository) Scrap(ctx context.Context, itemID string, qty float64) error {
	return r.db.WithContext(ctx).Model(&entity.InventoryItem{}).
		Where("id = ?", itemID).
		Updates(map[string]interface{}{
			"current_stock": gorm.Expr("current_stock - ?", qty),
			"updated_at":    time.Now(),
		}).Error
}

func (r *InventoryRepository) CreateTransaction(ctx context.Context, tx *entity.StockTransaction) error {
	return r.db.WithContext(ctx).Create(tx).Error
}

func (r *InventoryRepository) CreateConsumption(ctx context.Context, c *entity.MaterialConsumption) error {
	return r.db.WithContext(ctx).Create(c).Error
}

func (r *InventoryRepository) CreateScrapRecord(ctx context.Context, s *entity.ScrapRecord) error {
	return r.db.WithContext(ctx).Create(s).Error
}

// ListTransactions 库存流水查询
func (r *InventoryRepository) ListTransactions(ctx context.Context, itemID string, page, size int) ([]entity.StockTransaction, int64, error) {
	query := r.db.WithContext(ctx).Model(&entity.StockTransaction{})
	if itemID != "" {
		query = query.Where("inventory_item_id = ?", itemID)
	}
	var total int64
	query.Count(&total)
	if page <= 0 {
		page = 1
	}
	if size <= 0 {
		size = 20
	}
	var txs []entity.StockTransaction
	err := query.Order("created_at DESC").Offset((page - 1) * size).Limit(size).Find(&txs).Error
	return txs, total, err
}

// ListConsumptions 订单的消耗记录
func (r *InventoryRepository) ListConsumptions(ctx context.Context, orderID string) ([]entity.MaterialConsumption, error) {
	var records []entity.MaterialConsumption
	err := r.db.WithContext(ctx).
		Where("production_order_id = ?", orderID).
		Order("created_at").
		Find(&records).Error
	return records, err
}

// ListScrapRecords 订单的报废记录
func (r *InventoryRepository) ListScrapRecords(ctx context.Context, orderID string) ([]entity.ScrapRecord, error) {
	var records []entity.ScrapRecord
	err := r.db.WithContext(ctx).
		Where("production_order_id = ?", orderID).
		Order("created_at").
		Find(&records).Error
	return records, err
}
