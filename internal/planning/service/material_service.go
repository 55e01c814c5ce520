package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hexafab/forge/internal/planning/entity"
	"github.com/hexafab/forge/internal/planning/repository"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// MaterialRequirement 单物料的毛需求
type MaterialRequirement struct {
	InventoryItemID string  `json:"inventory_item_id"`
	Code            string  `json:"code"`
	Name            string  `json:"name"`
	Unit            string  `json:"unit"`
	RequiredQty     float64 `json:"required_qty"`
	AvailableQty    float64 `json:"available_qty"`
	Sufficient      bool    `json:"sufficient"`
}

// RequiredQuantity 毛需求 = 单台用量 × 订单数量 × (1 + 损耗率/100)，十进制精确计算
func RequiredQuantity(quantityPer, orderQty, scrapPercentage float64) float64 {
	per := decimal.NewFromFloat(quantityPer)
	qty := decimal.NewFromFloat(orderQty)
	factor := decimal.NewFromInt(1).Add(decimal.NewFromFloat(scrapPercentage).Div(decimal.NewFromInt(100)))
	result, _ := per.Mul(qty).Mul(factor).Float64()
	return result
}

// MaterialService 物料预留台账: 校验、预留、释放、消耗、报废
type MaterialService struct {
	inventoryRepo *repository.InventoryRepository
	logger        *zap.Logger
}

func NewMaterialService(inventoryRepo *repository.InventoryRepository, logger *zap.Logger) *MaterialService {
	return &MaterialService{inventoryRepo: inventoryRepo, logger: logger}
}

// Requirements 按BOM行项展开毛需求，同一物料出现在多行时合并
func (s *MaterialService) Requirements(ctx context.Context, items []entity.BOMItem, orderQty float64) ([]MaterialRequirement, error) {
	merged := make(map[string]decimal.Decimal)
	order := make([]string, 0, len(items))
	for _, item := range items {
		req := decimal.NewFromFloat(RequiredQuantity(item.Quantity, orderQty, item.ScrapPercentage))
		if _, seen := merged[item.InventoryItemID]; !seen {
			order = append(order, item.InventoryItemID)
		}
		merged[item.InventoryItemID] = merged[item.InventoryItemID].Add(req)
	}

	stocks, err := s.inventoryRepo.FindByIDs(ctx, order)
	if err != nil {
		return nil, fmt.Errorf("find inventory items: %w", err)
	}
	stockByID := make(map[string]entity.InventoryItem, len(stocks))
	for _, it := range stocks {
		stockByID[it.ID] = it
	}

	var missing []string
	reqs := make([]MaterialRequirement, 0, len(order))
	for _, id := range order {
		item, ok := stockByID[id]
		if !ok {
			missing = append(missing, id)
			continue
		}
		required, _ := merged[id].Float64()
		reqs = append(reqs, MaterialRequirement{
			InventoryItemID: id,
			Code:            item.Code,
			Name:            item.Name,
			Unit:            item.Unit,
			RequiredQty:     required,
			AvailableQty:    item.AvailableStock,
			Sufficient:      item.AvailableStock >= required,
		})
	}
	if len(missing) > 0 {
		return nil, &UnknownInventoryItemError{ItemIDs: missing}
	}
	return reqs, nil
}

// Validate 整单可行性校验，一次性收集全部缺口
func (s *MaterialService) Validate(ctx context.Context, items []entity.BOMItem, orderQty float64) ([]MaterialRequirement, error) {
	reqs, err := s.Requirements(ctx, items, orderQty)
	if err != nil {
		return nil, err
	}
	var shortages []MaterialShortage
	for _, req := range reqs {
		if !req.Sufficient {
			shortages = append(shortages, MaterialShortage{
				InventoryItemID: req.InventoryItemID,
				Code:            req.Code,
				Required:        req.RequiredQty,
				Available:       req.AvailableQty,
			})
		}
	}
	if len(shortages) > 0 {
		return reqs, &InsufficientMaterialError{Shortages: shortages}
	}
	return reqs, nil
}

// Reserve 按需求逐物料条件预留，任何一条失败则补偿释放已预留部分。
// 条件更新负责并发正确性，这里只做编排。
func (s *MaterialService) Reserve(ctx context.Context, orderID string, reqs []MaterialRequirement, operator string) error {
	var done []MaterialRequirement
	for _, req := range reqs {
		ok, err := s.inventoryRepo.Reserve(ctx, req.InventoryItemID, req.RequiredQty)
		if err == nil && !ok {
			err = &InsufficientMaterialError{Shortages: []MaterialShortage{{
				InventoryItemID: req.InventoryItemID,
				Code:            req.Code,
				Required:        req.RequiredQty,
				Available:       req.AvailableQty,
			}}}
		}
		if err != nil {
			s.rollbackReservations(ctx, orderID, done, operator)
			return err
		}
		done = append(done, req)

		if txErr := s.inventoryRepo.CreateTransaction(ctx, &entity.StockTransaction{
			ID:              uuid.New().String()[:32],
			InventoryItemID: req.InventoryItemID,
			Direction:       entity.StockDirectionOut,
			Type:            entity.StockTxTypeReservation,
			Quantity:        req.RequiredQty,
			ReferenceType:   "PO",
			ReferenceID:     orderID,
			CreatedBy:       operator,
			CreatedAt:       time.Now(),
		}); txErr != nil {
			s.logger.Error("record reservation transaction",
				zap.String("order_id", orderID),
				zap.String("inventory_item_id", req.InventoryItemID),
				zap.Error(txErr))
		}
	}
	return nil
}

func (s *MaterialService) rollbackReservations(ctx context.Context, orderID string, done []MaterialRequirement, operator string) {
	for _, req := range done {
		if err := s.inventoryRepo.ReleaseReservation(ctx, req.InventoryItemID, req.RequiredQty); err != nil {
			s.logger.Error("rollback reservation",
				zap.String("order_id", orderID),
				zap.String("inventory_item_id", req.InventoryItemID),
				zap.Error(err))
			continue
		}
		s.recordRelease(ctx, orderID, req.InventoryItemID, req.RequiredQty, operator)
	}
}

// ReleaseReservations 释放订单的全部预留，取消订单使用
func (s *MaterialService) ReleaseReservations(ctx context.Context, orderID string, reqs []MaterialRequirement, operator string) error {
	for _, req := range reqs {
		if err := s.inventoryRepo.ReleaseReservation(ctx, req.InventoryItemID, req.RequiredQty); err != nil {
			return fmt.Errorf("release reservation: %w", err)
		}
		s.recordRelease(ctx, orderID, req.InventoryItemID, req.RequiredQty, operator)
	}
	return nil
}

func (s *MaterialService) recordRelease(ctx context.Context, orderID, itemID string, qty float64, operator string) {
	if err := s.inventoryRepo.CreateTransaction(ctx, &entity.StockTransaction{
		ID:              uuid.New().String()[:32],
		InventoryItemID: itemID,
		Direction:       entity.StockDirectionIn,
		Type:            entity.StockTxTypeRelease,
		Quantity:        qty,
		ReferenceType:   "PO",
		ReferenceID:     orderID,
		CreatedBy:       operator,
		CreatedAt:       time.Now(),
	}); err != nil {
		s.logger.Error("record release transaction",
			zap.String("order_id", orderID), zap.String("inventory_item_id", itemID), zap.Error(err))
	}
}

// ConsumptionRequest 消耗记录请求
type ConsumptionRequest struct {
	InventoryItemID string  `json:"inventory_item_id" binding:"required"`
	PlannedQty      float64 `json:"planned_qty" binding:"required,gt=0"`
	ActualQty       float64 `json:"actual_qty" binding:"required,gte=0"`
}

// RecordConsumption 记录实际消耗: 扣实物库存、冲减预留、落消耗记录与流水
func (s *MaterialService) RecordConsumption(ctx context.Context, orderID string, req *ConsumptionRequest, operator string) (*entity.MaterialConsumption, error) {
	item, err := s.inventoryRepo.FindByID(ctx, req.InventoryItemID)
	if err != nil {
		return nil, fmt.Errorf("find inventory item: %w", err)
	}

	if err := s.inventoryRepo.Consume(ctx, req.InventoryItemID, req.ActualQty, req.PlannedQty); err != nil {
		return nil, fmt.Errorf("consume stock: %w", err)
	}

	variance, _ := decimal.NewFromFloat(req.ActualQty).Sub(decimal.NewFromFloat(req.PlannedQty)).Float64()
	cost, _ := decimal.NewFromFloat(req.ActualQty).Mul(decimal.NewFromFloat(item.StandardCost)).Float64()
	consumption := &entity.MaterialConsumption{
		ID:                uuid.New().String()[:32],
		ProductionOrderID: orderID,
		InventoryItemID:   req.InventoryItemID,
		PlannedQty:        req.PlannedQty,
		ActualQty:         req.ActualQty,
		Variance:          variance,
		Cost:              cost,
		RecordedBy:        operator,
		CreatedAt:         time.Now(),
	}
	if err := s.inventoryRepo.CreateConsumption(ctx, consumption); err != nil {
		return nil, fmt.Errorf("create consumption record: %w", err)
	}

	if err := s.inventoryRepo.CreateTransaction(ctx, &entity.StockTransaction{
		ID:              uuid.New().String()[:32],
		InventoryItemID: req.InventoryItemID,
		Direction:       entity.StockDirectionOut,
		Type:            entity.StockTxTypeConsumption,
		Quantity:        req.ActualQty,
		ReferenceType:   "PO",
		ReferenceID:     orderID,
		CreatedBy:       operator,
		CreatedAt:       time.Now(),
	}); err != nil {
		s.logger.Error("record consumption transaction",
			zap.String("order_id", orderID), zap.Error(err))
	}

	if variance > 0 {
		s.logger.Warn("material consumption over plan",
			zap.String("order_id", orderID),
			zap.String("inventory_item_id", req.InventoryItemID),
			zap.Float64("variance", variance))
	}
	return consumption, nil
}

// ScrapRequest 报废记录请求
type ScrapRequest struct {
	InventoryItemID string  `json:"inventory_item_id" binding:"required"`
	Quantity        float64 `json:"quantity" binding:"required,gt=0"`
	Reason          string  `json:"reason" binding:"required"`
	Cost            float64 `json:"cost"`
}

// RecordScrap 记录报废: 扣实物库存、落报废记录。未给成本时按标准成本计
func (s *MaterialService) RecordScrap(ctx context.Context, orderID string, req *ScrapRequest, operator string) (*entity.ScrapRecord, error) {
	item, err := s.inventoryRepo.FindByID(ctx, req.InventoryItemID)
	if err != nil {
		return nil, fmt.Errorf("find inventory item: %w", err)
	}

	if err := s.inventoryRepo.Scrap(ctx, req.InventoryItemID, req.Quantity); err != nil {
		return nil, fmt.Errorf("scrap stock: %w", err)
	}

	cost := req.Cost
	if cost == 0 {
		cost, _ = decimal.NewFromFloat(req.Quantity).Mul(decimal.NewFromFloat(item.StandardCost)).Float64()
	}
	record := &entity.ScrapRecord{
		ID:                uuid.New().String()[:32],
		ProductionOrderID: orderID,
		InventoryItemID:   req.InventoryItemID,
		Quantity:          req.Quantity,
		Reason:            req.Reason,
		Cost:              cost,
		RecordedBy:        operator,
		CreatedAt:         time.Now(),
	}
	if err := s.inventoryRepo.CreateScrapRecord(ctx, record); err != nil {
		return nil, fmt.Errorf("create scrap record: %w", err)
	}

	if err := s.inventoryRepo.CreateTransaction(ctx, &entity.StockTransaction{
		ID:              uuid.New().String()[:32],
		InventoryItemID: req.InventoryItemID,
		Direction:       entity.StockDirectionOut,
		Type:            entity.StockTxTypeScrap,
		Quantity:        req.Quantity,
		ReferenceType:   "PO",
		ReferenceID:     orderID,
		Notes:           req.Reason,
		CreatedBy:       operator,
		CreatedAt:       time.Now(),
	}); err != nil {
		s.logger.Error("record scrap transaction",
			zap.String("order_id", orderID), zap.Error(err))
	}
	return record, nil
}

// Consumptions 订单消耗记录
func (s *MaterialService) Consumptions(ctx context.Context, orderID string) ([]entity.MaterialConsumption, error) {
	return s.inventoryRepo.ListConsumptions(ctx, orderID)
}

// ScrapRecords 订单报废记录
func (s *MaterialService) ScrapRecords(ctx context.Context, orderID string) ([]entity.ScrapRecord, error) {
	return s.inventoryRepo.ListScrapRecords(ctx, orderID)
}
