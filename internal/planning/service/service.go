package service

import (
	"github.com/hexafab/forge/internal/planning/repository"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Services 服务集合
type Services struct {
	MasterData *MasterDataService
	BOM        *BOMService
	Capacity   *CapacityService
	Router     *CapacityRouter
	Material   *MaterialService
	Order      *OrderService
	ECN        *ECNService
}

// NewServices 创建服务集合
func NewServices(db *gorm.DB, repos *repository.Repositories, rdb *redis.Client, logger *zap.Logger) *Services {
	return &Services{
		MasterData: NewMasterDataService(repos.Product, repos.Inventory, repos.Routing, logger),
		BOM:        NewBOMService(repos.BOM, repos.Product, repos.Inventory, rdb, logger),
		Capacity:   NewCapacityService(repos.Capacity, repos.Routing, logger),
		Router:     NewCapacityRouter(repos.Capacity, logger),
		Material:   NewMaterialService(repos.Inventory, logger),
		Order:      NewOrderService(db, repos, logger),
		ECN:        NewECNService(repos.ECN, repos.BOM, repos.Order, repos.Inventory, rdb, logger),
	}
}
