package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/hexafab/forge/internal/planning/entity"
	"gorm.io/gorm"
)

type OrderRepository struct {
	db *gorm.DB
}

func NewOrderRepository(db *gorm.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

// Create 创建订单及其工序排程
func (r *OrderRepository) Create(ctx context.Context, order *entity.ProductionOrder, ops []entity.ProductionOrderOperation) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(order).Error; err != nil {
			return err
		}
		if len(ops) > 0 {
			if err := tx.Create(&ops).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *OrderRepository) FindByID(ctx context.Context, id string) (*entity.ProductionOrder, error) {
	var order entity.ProductionOrder
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&order).Error; err != nil {
		return nil, wrapNotFound(err)
	}
	return &order, nil
}

// FindWithOperations 取订单和按sequence排序的工序排程
func (r *OrderRepository) FindWithOperations(ctx context.Context, id string) (*entity.ProductionOrder, error) {
	var order entity.ProductionOrder
	err := r.db.WithContext(ctx).
		Preload("Operations", func(db *gorm.DB) *gorm.DB {
			return db.Order("production_order_operations.sequence")
		}).
		Preload("Operations.Operation").
		Preload("BOM").
		Where("id = ?", id).First(&order).Error
	if err != nil {
		return nil, wrapNotFound(err)
	}
	return &order, nil
}

func (r *OrderRepository) Update(ctx context.Context, order *entity.ProductionOrder) error {
	return r.db.WithContext(ctx).Save(order).Error
}

func (r *OrderRepository) UpdateOperation(ctx context.Context, op *entity.ProductionOrderOperation) error {
	return r.db.WithContext(ctx).Save(op).Error
}

// RepointBOM 把订单指向新的BOM版本，工程变更传播使用
func (r *OrderRepository) RepointBOM(ctx context.Context, orderID, newBOMID string) error {
	return r.db.WithContext(ctx).Model(&entity.ProductionOrder{}).
		Where("id = ?", orderID).
		Updates(map[string]interface{}{
			"bom_id":     newBOMID,
			"updated_at": time.Now(),
		}).Error
}

type OrderListParams struct {
	Status   string
	BOMID    string
	BranchID string
	Keyword  string
	Page     int
	Size     int
}

func (r *OrderRepository) List(ctx context.Context, params OrderListParams) ([]entity.ProductionOrder, int64, error) {
	query := r.db.WithContext(ctx).Model(&entity.ProductionOrder{})
	if params.Status != "" {
		query = query.Where("status = ?", params.Status)
	}
	if params.BOMID != "" {
		query = query.Where("bom_id = ?", params.BOMID)
	}
	if params.BranchID != "" {
		query = query.Where("branch_id = ?", params.BranchID)
	}
	if params.Keyword != "" {
		kw := "%" + params.Keyword + "%"
		query = query.Where("order_number ILIKE ? OR sales_order_ref ILIKE ?", kw, kw)
	}
	var total int64
	query.Count(&total)
	if params.Page <= 0 {
		params.Page = 1
	}
	if params.Size <= 0 {
		params.Size = 20
	}
	var orders []entity.ProductionOrder
	err := query.Order("created_at DESC").
		Offset((params.Page - 1) * params.Size).Limit(params.Size).
		Find(&orders).Error
	return orders, total, err
}

// ListActiveByBOM 取引用某BOM的在产订单(PLANNED/IN_PROGRESS)
func (r *OrderRepository) ListActiveByBOM(ctx context.Context, bomID string) ([]entity.ProductionOrder, error) {
	var orders []entity.ProductionOrder
	err := r.db.WithContext(ctx).
		Where("bom_id = ? AND status IN ?", bomID,
			[]string{entity.OrderStatusPlanned, entity.OrderStatusInProgress}).
		Find(&orders).Error
	return orders, err
}

// GetOperations 订单工序排程，按sequence排序
func (r *OrderRepository) GetOperations(ctx context.Context, orderID string) ([]entity.ProductionOrderOperation, error) {
	var ops []entity.ProductionOrderOperation
	err := r.db.WithContext(ctx).
		Where("production_order_id = ?", orderID).
		Order("sequence").
		Find(&ops).Error
	return ops, err
}

// NextNumber 原子取号: 按(scope, period)对计数器做upsert自增并返回新值。
// 不扫描既有单号，避免并发取号撞号。
func (r *OrderRepository) NextNumber(ctx context.Context, scope, period string) (int64, error) {
	var value int64
	err := r.db.WithContext(ctx).Raw(`
		INSERT INTO sequence_counters (scope, period, value, updated_at)
		VALUES (?, ?, 1, NOW())
		ON CONFLICT (scope, period)
		DO UPDATE SET value = sequence_counters.value + 1, updated_at = NOW()
		RETURNING value
	`, scope, period).Scan(&value).Error
	if err != nil {
		return 0, fmt.Errorf("next %s number: %w", scope, err)
	}
	return value, nil
}
