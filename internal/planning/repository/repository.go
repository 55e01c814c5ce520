package repository

import (
	"errors"

	"gorm.io/gorm"
)

// 错误定义
var (
	ErrNotFound = errors.New("record not found")
)

// Repositories 仓库集合
type Repositories struct {
	Product   *ProductRepository
	Inventory *InventoryRepository
	BOM       *BOMRepository
	Routing   *RoutingRepository
	Capacity  *CapacityRepository
	Order     *OrderRepository
	ECN       *ECNRepository
}

// NewRepositories 创建仓库集合
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		Product:   NewProductRepository(db),
		Inventory: NewInventoryRepository(db),
		BOM:       NewBOMRepository(db),
		Routing:   NewRoutingRepository(db),
		Capacity:  NewCapacityRepository(db),
		Order:     NewOrderRepository(db),
		ECN:       NewECNRepository(db),
	}
}

// WithTx 返回绑定到事务句柄的仓库集合，用于订单创建/改期的原子边界
func (r *Repositories) WithTx(tx *gorm.DB) *Repositories {
	return NewRepositories(tx)
}

func wrapNotFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
