package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hexafab/forge/internal/planning/entity"
	"github.com/hexafab/forge/internal/planning/repository"
	"go.uber.org/zap"
)

// MasterDataService 主数据维护: 产品、物料、工作中心、工序
type MasterDataService struct {
	productRepo   *repository.ProductRepository
	inventoryRepo *repository.InventoryRepository
	routingRepo   *repository.RoutingRepository
	logger        *zap.Logger
}

func NewMasterDataService(
	productRepo *repository.ProductRepository,
	inventoryRepo *repository.InventoryRepository,
	routingRepo *repository.RoutingRepository,
	logger *zap.Logger,
) *MasterDataService {
	return &MasterDataService{
		productRepo:   productRepo,
		inventoryRepo: inventoryRepo,
		routingRepo:   routingRepo,
		logger:        logger,
	}
}

// CreateProductRequest 创建产品请求
type CreateProductRequest struct {
	Code       string       `json:"code" binding:"required"`
	Name       string       `json:"name" binding:"required"`
	Attributes entity.JSONB `json:"attributes"`
}

func (s *MasterDataService) CreateProduct(ctx context.Context, req *CreateProductRequest) (*entity.Product, error) {
	if _, err := s.productRepo.FindByCode(ctx, req.Code); err == nil {
		return nil, ErrDuplicateCode
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("check product code: %w", err)
	}
	now := time.Now()
	product := &entity.Product{
		ID:         uuid.New().String()[:32],
		Code:       req.Code,
		Name:       req.Name,
		Status:     entity.ProductStatusActive,
		Attributes: req.Attributes,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.productRepo.Create(ctx, product); err != nil {
		return nil, fmt.Errorf("create product: %w", err)
	}
	return product, nil
}

func (s *MasterDataService) ListProducts(ctx context.Context, page, size int) ([]entity.Product, int64, error) {
	return s.productRepo.List(ctx, page, size)
}

// CreateInventoryItemRequest 创建物料请求，初始库存全部计入可用
type CreateInventoryItemRequest struct {
	Code         string  `json:"code" binding:"required"`
	Name         string  `json:"name" binding:"required"`
	Unit         string  `json:"unit"`
	StandardCost float64 `json:"standard_cost" binding:"gte=0"`
	InitialStock float64 `json:"initial_stock" binding:"gte=0"`
	LeadTimeDays int     `json:"lead_time_days" binding:"gte=0"`
}

func (s *MasterDataService) CreateInventoryItem(ctx context.Context, req *CreateInventoryItemRequest) (*entity.InventoryItem, error) {
	unit := req.Unit
	if unit == "" {
		unit = "pcs"
	}
	now := time.Now()
	item := &entity.InventoryItem{
		ID:             uuid.New().String()[:32],
		Code:           req.Code,
		Name:           req.Name,
		Unit:           unit,
		StandardCost:   req.StandardCost,
		CurrentStock:   req.InitialStock,
		AvailableStock: req.InitialStock,
		LeadTimeDays:   req.LeadTimeDays,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.inventoryRepo.Create(ctx, item); err != nil {
		return nil, fmt.Errorf("create inventory item: %w", err)
	}
	return item, nil
}

func (s *MasterDataService) GetInventoryItem(ctx context.Context, id string) (*entity.InventoryItem, error) {
	return s.inventoryRepo.FindByID(ctx, id)
}

func (s *MasterDataService) ListInventoryItems(ctx context.Context, keyword string, page, size int) ([]entity.InventoryItem, int64, error) {
	return s.inventoryRepo.List(ctx, keyword, page, size)
}

// StockTransactions 物料的库存流水
func (s *MasterDataService) StockTransactions(ctx context.Context, itemID string, page, size int) ([]entity.StockTransaction, int64, error) {
	return s.inventoryRepo.ListTransactions(ctx, itemID, page, size)
}

// CreateWorkCenterRequest 创建工作中心请求
type CreateWorkCenterRequest struct {
	Code     string  `json:"code" binding:"required"`
	Name     string  `json:"name" binding:"required"`
	Type     string  `json:"type"`
	Capacity float64 `json:"capacity" binding:"gte=0"`
}

func (s *MasterDataService) CreateWorkCenter(ctx context.Context, req *CreateWorkCenterRequest) (*entity.WorkCenter, error) {
	capacity := req.Capacity
	if capacity == 0 {
		capacity = 8
	}
	now := time.Now()
	wc := &entity.WorkCenter{
		ID:        uuid.New().String()[:32],
		Code:      req.Code,
		Name:      req.Name,
		Type:      req.Type,
		Capacity:  capacity,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.routingRepo.CreateWorkCenter(ctx, wc); err != nil {
		return nil, fmt.Errorf("create work center: %w", err)
	}
	return wc, nil
}

func (s *MasterDataService) ListWorkCenters(ctx context.Context) ([]entity.WorkCenter, error) {
	return s.routingRepo.ListWorkCenters(ctx)
}

// CreateOperationRequest 创建工序请求，时间单位均为分钟
type CreateOperationRequest struct {
	Code         string  `json:"code" binding:"required"`
	Name         string  `json:"name" binding:"required"`
	WorkCenterID string  `json:"work_center_id" binding:"required"`
	SetupTime    float64 `json:"setup_time" binding:"gte=0"`
	RunTime      float64 `json:"run_time" binding:"gte=0"`
	Sequence     int     `json:"sequence" binding:"required,gt=0"`
}

func (s *MasterDataService) CreateOperation(ctx context.Context, req *CreateOperationRequest) (*entity.Operation, error) {
	if _, err := s.routingRepo.FindWorkCenterByID(ctx, req.WorkCenterID); err != nil {
		return nil, fmt.Errorf("find work center: %w", err)
	}
	now := time.Now()
	op := &entity.Operation{
		ID:           uuid.New().String()[:32],
		Code:         req.Code,
		Name:         req.Name,
		WorkCenterID: req.WorkCenterID,
		SetupTime:    req.SetupTime,
		RunTime:      req.RunTime,
		Sequence:     req.Sequence,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.routingRepo.CreateOperation(ctx, op); err != nil {
		return nil, fmt.Errorf("create operation: %w", err)
	}
	return op, nil
}

func (s *MasterDataService) GetOperation(ctx context.Context, id string) (*entity.Operation, error) {
	return s.routingRepo.FindOperationByID(ctx, id)
}

func (s *MasterDataService) ListOperations(ctx context.Context, workCenterID string) ([]entity.Operation, error) {
	return s.routingRepo.ListOperations(ctx, workCenterID)
}
