package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hexafab/forge/internal/planning/entity"
	"github.com/hexafab/forge/internal/planning/repository"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// ECNService 工程变更: 版本切换、影响面快照、在产订单传播
type ECNService struct {
	ecnRepo       *repository.ECNRepository
	bomRepo       *repository.BOMRepository
	orderRepo     *repository.OrderRepository
	inventoryRepo *repository.InventoryRepository
	rdb           *redis.Client
	logger        *zap.Logger
}

func NewECNService(
	ecnRepo *repository.ECNRepository,
	bomRepo *repository.BOMRepository,
	orderRepo *repository.OrderRepository,
	inventoryRepo *repository.InventoryRepository,
	rdb *redis.Client,
	logger *zap.Logger,
) *ECNService {
	return &ECNService{
		ecnRepo:       ecnRepo,
		bomRepo:       bomRepo,
		orderRepo:     orderRepo,
		inventoryRepo: inventoryRepo,
		rdb:           rdb,
		logger:        logger,
	}
}

// EngineeringChangeRequest 工程变更请求: 旧BOM + 新版本的完整行项
type EngineeringChangeRequest struct {
	BOMID         string               `json:"bom_id" binding:"required"`
	NewRevision   string               `json:"new_revision" binding:"required"`
	ChangeReason  string               `json:"change_reason" binding:"required"`
	EffectiveDate time.Time            `json:"effective_date" binding:"required"`
	Items         []CreateBOMItemInput `json:"items" binding:"required,dive"`
}

// UpdateBOMWithEngineeringChange 以工程变更方式换版:
// 新版本BOM直接进APPROVED(否则旧版作废后产品没有当前版本)，
// 旧版在生效日已到时立即OBSOLETE，变更记录快照当时的在产订单。
func (s *ECNService) UpdateBOMWithEngineeringChange(ctx context.Context, userID string, req *EngineeringChangeRequest) (*entity.EngineeringChange, error) {
	oldBOM, err := s.bomRepo.FindByID(ctx, req.BOMID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrBOMNotFound
		}
		return nil, fmt.Errorf("find BOM: %w", err)
	}
	if oldBOM.Status != entity.BOMStatusApproved {
		return nil, ErrBOMNotApproved
	}

	exists, err := s.bomRepo.ExistsRevision(ctx, oldBOM.ProductID, req.NewRevision)
	if err != nil {
		return nil, fmt.Errorf("check revision: %w", err)
	}
	if exists {
		return nil, ErrDuplicateRevision
	}

	itemIDs := make([]string, 0, len(req.Items))
	for _, it := range req.Items {
		itemIDs = append(itemIDs, it.InventoryItemID)
	}
	if err := s.checkInventoryItems(ctx, itemIDs); err != nil {
		return nil, err
	}
	if err := validateParentIndexes(req.Items); err != nil {
		return nil, err
	}

	changeNumber, err := s.nextChangeNumber(ctx)
	if err != nil {
		return nil, err
	}

	// 影响面快照: 变更创建时刻仍引用旧版的在产订单
	activeOrders, err := s.orderRepo.ListActiveByBOM(ctx, oldBOM.ID)
	if err != nil {
		return nil, fmt.Errorf("list active orders: %w", err)
	}
	affectedIDs := make(entity.StringList, 0, len(activeOrders))
	for _, o := range activeOrders {
		affectedIDs = append(affectedIDs, o.ID)
	}

	now := time.Now()
	newBOM := &entity.BOM{
		ID:                   uuid.New().String()[:32],
		ProductID:            oldBOM.ProductID,
		Revision:             req.NewRevision,
		EffectiveDate:        req.EffectiveDate,
		Status:               entity.BOMStatusApproved,
		EngineeringChangeRef: changeNumber,
		ApprovedBy:           userID,
		ApprovedAt:           &now,
		CreatedBy:            userID,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	items := buildBOMItems(newBOM.ID, req.Items, now)
	if err := s.bomRepo.Create(ctx, newBOM, items); err != nil {
		return nil, fmt.Errorf("create BOM revision: %w", err)
	}

	status := entity.ECStatusPending
	if !req.EffectiveDate.After(now) {
		status = entity.ECStatusEffective
		if err := s.bomRepo.MarkObsolete(ctx, oldBOM.ID); err != nil {
			return nil, fmt.Errorf("obsolete old BOM: %w", err)
		}
	}

	ec := &entity.EngineeringChange{
		ID:               uuid.New().String()[:32],
		ChangeNumber:     changeNumber,
		BOMID:            oldBOM.ID,
		NewBOMID:         newBOM.ID,
		OldRevision:      oldBOM.Revision,
		NewRevision:      req.NewRevision,
		ChangeReason:     req.ChangeReason,
		EffectiveDate:    req.EffectiveDate,
		Status:           status,
		RequestedBy:      userID,
		AffectedOrderIDs: affectedIDs,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.ecnRepo.Create(ctx, ec); err != nil {
		return nil, fmt.Errorf("create engineering change: %w", err)
	}

	if s.rdb != nil {
		s.rdb.Del(ctx, "forge:bom:current:"+oldBOM.ProductID)
	}

	s.logger.Info("engineering change created",
		zap.String("change_number", changeNumber),
		zap.String("product_id", oldBOM.ProductID),
		zap.String("old_revision", oldBOM.Revision),
		zap.String("new_revision", req.NewRevision),
		zap.Int("affected_orders", len(affectedIDs)))
	ec.NewBOM = newBOM
	return ec, nil
}

// nextChangeNumber EC-<年>-<4位序号>，年度内单调
func (s *ECNService) nextChangeNumber(ctx context.Context) (string, error) {
	year := time.Now().Format("2006")
	n, err := s.orderRepo.NextNumber(ctx, "EC", year)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("EC-%s-%04d", year, n), nil
}

// checkInventoryItems 同BOMService的校验，缺失物料一次性全部报出
func (s *ECNService) checkInventoryItems(ctx context.Context, ids []string) error {
	found, err := s.inventoryRepo.FindByIDs(ctx, ids)
	if err != nil {
		return fmt.Errorf("find inventory items: %w", err)
	}
	known := make(map[string]bool, len(found))
	for _, it := range found {
		known[it.ID] = true
	}
	var missing []string
	seen := make(map[string]bool)
	for _, id := range ids {
		if !known[id] && !seen[id] {
			missing = append(missing, id)
			seen[id] = true
		}
	}
	if len(missing) > 0 {
		return &UnknownInventoryItemError{ItemIDs: missing}
	}
	return nil
}

// ordersToRepoint 可切换到新版的订单: 尚未开工(PLANNED)且计划开工不早于生效日。
// 已开工订单按旧版做完，不回切。
func ordersToRepoint(orders []entity.ProductionOrder, effectiveDate time.Time) []entity.ProductionOrder {
	var eligible []entity.ProductionOrder
	for _, o := range orders {
		if o.Status != entity.OrderStatusPlanned {
			continue
		}
		if o.ScheduledStartDate.Before(effectiveDate) {
			continue
		}
		eligible = append(eligible, o)
	}
	return eligible
}

// PropagateBOMChanges 把变更传播到在产订单: 符合条件的订单改指新BOM，
// 旧BOM作废，变更记录盖传播时间与数量。幂等，重复传播不会二次改单。
func (s *ECNService) PropagateBOMChanges(ctx context.Context, changeID string) (*entity.EngineeringChange, error) {
	ec, err := s.ecnRepo.FindByID(ctx, changeID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("engineering change not found: %w", err)
		}
		return nil, fmt.Errorf("find engineering change: %w", err)
	}
	if ec.Status == entity.ECStatusImplemented {
		s.logger.Info("engineering change already propagated, no-op",
			zap.String("change_number", ec.ChangeNumber))
		return ec, nil
	}

	orders, err := s.orderRepo.ListActiveByBOM(ctx, ec.BOMID)
	if err != nil {
		return nil, fmt.Errorf("list active orders: %w", err)
	}

	eligible := ordersToRepoint(orders, ec.EffectiveDate)
	for _, o := range eligible {
		if err := s.orderRepo.RepointBOM(ctx, o.ID, ec.NewBOMID); err != nil {
			return nil, fmt.Errorf("repoint order %s: %w", o.OrderNumber, err)
		}
		s.logger.Info("production order repointed to new BOM revision",
			zap.String("order_number", o.OrderNumber),
			zap.String("change_number", ec.ChangeNumber),
			zap.String("new_revision", ec.NewRevision))
	}

	if err := s.bomRepo.MarkObsolete(ctx, ec.BOMID); err != nil {
		return nil, fmt.Errorf("obsolete old BOM: %w", err)
	}
	if err := s.ecnRepo.MarkPropagated(ctx, ec.ID, len(eligible)); err != nil {
		return nil, fmt.Errorf("mark propagated: %w", err)
	}

	if s.rdb != nil && ec.OldBOM != nil {
		s.rdb.Del(ctx, "forge:bom:current:"+ec.OldBOM.ProductID)
	}

	return s.ecnRepo.FindByID(ctx, ec.ID)
}

// GetChange 变更详情，含新旧BOM
func (s *ECNService) GetChange(ctx context.Context, id string) (*entity.EngineeringChange, error) {
	return s.ecnRepo.FindByID(ctx, id)
}

// ListChanges 变更列表
func (s *ECNService) ListChanges(ctx context.Context, page, size int) ([]entity.EngineeringChange, int64, error) {
	return s.ecnRepo.List(ctx, page, size)
}

// ChangeHistory 产品的变更历史
func (s *ECNService) ChangeHistory(ctx context.Context, productID string) ([]entity.EngineeringChange, error) {
	return s.ecnRepo.ListByProduct(ctx, productID)
}
