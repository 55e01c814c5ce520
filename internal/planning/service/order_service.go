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
	"gorm.io/gorm"
)

// orderTransitions 生产订单状态机，键=当前状态，值=允许的目标状态
var orderTransitions = map[string][]string{
	entity.OrderStatusDraft:      {entity.OrderStatusPlanned, entity.OrderStatusCancelled},
	entity.OrderStatusPlanned:    {entity.OrderStatusInProgress, entity.OrderStatusCancelled},
	entity.OrderStatusInProgress: {entity.OrderStatusCompleted, entity.OrderStatusCancelled},
}

// CanTransition 状态机判定，终态(COMPLETED/CANCELLED)不可再转出
func CanTransition(from, to string) bool {
	for _, t := range orderTransitions[from] {
		if t == to {
			return true
		}
	}
	return false
}

// OrderService 生产订单编排: 创建、改期、状态流转。
// 创建与改期跑在单个数据库事务里，物料预留、产能预订、订单落库要么全成要么全不成。
type OrderService struct {
	db     *gorm.DB
	repos  *repository.Repositories
	logger *zap.Logger
}

func NewOrderService(db *gorm.DB, repos *repository.Repositories, logger *zap.Logger) *OrderService {
	return &OrderService{db: db, repos: repos, logger: logger}
}

// CreateOrderRequest 创建生产订单请求
type CreateOrderRequest struct {
	BOMID         string    `json:"bom_id" binding:"required"`
	Quantity      float64   `json:"quantity" binding:"required,gt=0"`
	StartDate     time.Time `json:"start_date" binding:"required"`
	Priority      int       `json:"priority" binding:"gte=0,lte=10"`
	BufferDays    int       `json:"buffer_days" binding:"gte=0"`
	SalesOrderRef string    `json:"sales_order_ref"`
	BranchID      string    `json:"branch_id"`
	Notes         string    `json:"notes"`
}

// CreateProductionOrder 创建订单:
// 校验BOM已审批 → 整单物料可行性 → 排程并预订产能 → 预留物料 → 取号落库。
// 任一步失败整个事务回滚，库存与产能台账都不会留下半截变更。
func (s *OrderService) CreateProductionOrder(ctx context.Context, userID string, req *CreateOrderRequest) (*entity.ProductionOrder, error) {
	var order *entity.ProductionOrder
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repos := s.repos.WithTx(tx)
		material := NewMaterialService(repos.Inventory, s.logger)
		router := NewCapacityRouter(repos.Capacity, s.logger)

		bom, err := repos.BOM.FindWithItems(ctx, req.BOMID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrBOMNotFound
			}
			return fmt.Errorf("find BOM: %w", err)
		}
		if bom.Status != entity.BOMStatusApproved {
			return ErrBOMNotApproved
		}

		reqs, err := material.Validate(ctx, bom.Items, req.Quantity)
		if err != nil {
			return err
		}

		ops, err := s.routingOperations(ctx, repos, bom.Items)
		if err != nil {
			return err
		}

		plan, err := router.Route(ctx, ops, req.Quantity, req.StartDate, req.BufferDays)
		if err != nil {
			return err
		}

		orderID := uuid.New().String()[:32]
		if err := material.Reserve(ctx, orderID, reqs, userID); err != nil {
			return err
		}

		number, err := s.nextOrderNumber(ctx, repos)
		if err != nil {
			return err
		}

		priority := req.Priority
		if priority == 0 {
			priority = 5
		}
		now := time.Now()
		order = &entity.ProductionOrder{
			ID:                 orderID,
			OrderNumber:        number,
			SalesOrderRef:      req.SalesOrderRef,
			BOMID:              bom.ID,
			Quantity:           req.Quantity,
			ScheduledStartDate: plan.Start,
			ScheduledEndDate:   plan.End,
			Status:             entity.OrderStatusPlanned,
			Priority:           priority,
			BufferDays:         req.BufferDays,
			BranchID:           req.BranchID,
			Notes:              req.Notes,
			CreatedBy:          userID,
			CreatedAt:          now,
			UpdatedAt:          now,
		}
		orderOps := buildOrderOperations(orderID, plan, now)
		if err := repos.Order.Create(ctx, order, orderOps); err != nil {
			return fmt.Errorf("create production order: %w", err)
		}
		order.Operations = orderOps
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("production order created",
		zap.String("order_number", order.OrderNumber),
		zap.String("bom_id", order.BOMID),
		zap.Float64("quantity", order.Quantity))
	return order, nil
}

// routingOperations BOM行项引用的工序，去重后按sequence排序
func (s *OrderService) routingOperations(ctx context.Context, repos *repository.Repositories, items []entity.BOMItem) ([]entity.Operation, error) {
	seen := make(map[string]bool)
	var ids []string
	for _, it := range items {
		if it.OperationID == "" || seen[it.OperationID] {
			continue
		}
		seen[it.OperationID] = true
		ids = append(ids, it.OperationID)
	}
	if len(ids) == 0 {
		return nil, nil
	}
	ops, err := repos.Routing.FindOperationsByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("find operations: %w", err)
	}
	if len(ops) != len(ids) {
		return nil, fmt.Errorf("BOM references %d operations, found %d", len(ids), len(ops))
	}
	return ops, nil
}

// nextOrderNumber PO-<yyyymmdd>-<5位序号>，按日单调
func (s *OrderService) nextOrderNumber(ctx context.Context, repos *repository.Repositories) (string, error) {
	period := time.Now().Format("20060102")
	n, err := repos.Order.NextNumber(ctx, "PO", period)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("PO%s%05d", period, n), nil
}

func buildOrderOperations(orderID string, plan *RoutingPlan, now time.Time) []entity.ProductionOrderOperation {
	ops := make([]entity.ProductionOrderOperation, 0, len(plan.Slots))
	for _, slot := range plan.Slots {
		ops = append(ops, entity.ProductionOrderOperation{
			ID:                uuid.New().String()[:32],
			ProductionOrderID: orderID,
			OperationID:       slot.OperationID,
			WorkCenterID:      slot.WorkCenterID,
			Sequence:          slot.Sequence,
			ScheduledStart:    slot.Start,
			ScheduledEnd:      slot.End,
			RequiredHours:     slot.RequiredHours,
			CapacityDate:      slot.Date,
			CapacityShift:     slot.Shift,
			Status:            entity.OpStatusPending,
			CreatedAt:         now,
			UpdatedAt:         now,
		})
	}
	return ops
}

// RescheduleRequest 改期请求，缓冲与优先级缺省沿用原值
type RescheduleRequest struct {
	StartDate  time.Time `json:"start_date" binding:"required"`
	BufferDays *int      `json:"buffer_days"`
	Priority   *int      `json:"priority"`
}

// Reschedule 改期: 仅PLANNED可改。释放旧产能、从新起始日重排、预订新槽。
// 工序数量与原排程不一致说明BOM被换过版，拒绝按下标覆盖。
func (s *OrderService) Reschedule(ctx context.Context, orderID string, req *RescheduleRequest) (*entity.ProductionOrder, error) {
	var order *entity.ProductionOrder
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repos := s.repos.WithTx(tx)
		router := NewCapacityRouter(repos.Capacity, s.logger)

		var err error
		order, err = repos.Order.FindByID(ctx, orderID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrOrderNotFound
			}
			return fmt.Errorf("find order: %w", err)
		}
		if order.Status != entity.OrderStatusPlanned {
			return ErrOrderNotReschedulable
		}

		if req.BufferDays != nil {
			order.BufferDays = *req.BufferDays
		}
		if req.Priority != nil {
			order.Priority = *req.Priority
		}

		existing, err := repos.Order.GetOperations(ctx, orderID)
		if err != nil {
			return fmt.Errorf("load order operations: %w", err)
		}

		bom, err := repos.BOM.FindWithItems(ctx, order.BOMID)
		if err != nil {
			return fmt.Errorf("find BOM: %w", err)
		}
		ops, err := s.routingOperations(ctx, repos, bom.Items)
		if err != nil {
			return err
		}
		if len(ops) != len(existing) {
			return ErrOperationCountChanged
		}

		if err := router.ReleaseOperations(ctx, existing); err != nil {
			return err
		}

		plan, err := router.Route(ctx, ops, order.Quantity, req.StartDate, order.BufferDays)
		if err != nil {
			return err
		}

		now := time.Now()
		for i := range existing {
			slot := plan.Slots[i]
			existing[i].OperationID = slot.OperationID
			existing[i].WorkCenterID = slot.WorkCenterID
			existing[i].Sequence = slot.Sequence
			existing[i].ScheduledStart = slot.Start
			existing[i].ScheduledEnd = slot.End
			existing[i].RequiredHours = slot.RequiredHours
			existing[i].CapacityDate = slot.Date
			existing[i].CapacityShift = slot.Shift
			existing[i].UpdatedAt = now
			if err := repos.Order.UpdateOperation(ctx, &existing[i]); err != nil {
				return fmt.Errorf("update order operation: %w", err)
			}
		}

		order.ScheduledStartDate = plan.Start
		order.ScheduledEndDate = plan.End
		order.UpdatedAt = now
		if err := repos.Order.Update(ctx, order); err != nil {
			return fmt.Errorf("update order: %w", err)
		}
		order.Operations = existing
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("production order rescheduled",
		zap.String("order_number", order.OrderNumber),
		zap.Time("new_start", order.ScheduledStartDate),
		zap.Time("new_end", order.ScheduledEndDate))
	return order, nil
}

// UpdateStatus 状态流转。取消时释放物料预留与产能占用。
func (s *OrderService) UpdateStatus(ctx context.Context, orderID, target, operator string) (*entity.ProductionOrder, error) {
	var order *entity.ProductionOrder
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repos := s.repos.WithTx(tx)

		var err error
		order, err = repos.Order.FindByID(ctx, orderID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrOrderNotFound
			}
			return fmt.Errorf("find order: %w", err)
		}
		if !CanTransition(order.Status, target) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, order.Status, target)
		}

		now := time.Now()
		switch target {
		case entity.OrderStatusInProgress:
			order.ActualStartDate = &now
		case entity.OrderStatusCompleted:
			order.ActualEndDate = &now
		case entity.OrderStatusCancelled:
			if err := s.releaseOrderHoldings(ctx, repos, order, operator); err != nil {
				return err
			}
		}

		order.Status = target
		order.UpdatedAt = now
		if err := repos.Order.Update(ctx, order); err != nil {
			return fmt.Errorf("update order: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("production order status changed",
		zap.String("order_number", order.OrderNumber),
		zap.String("status", order.Status))
	return order, nil
}

// releaseOrderHoldings 取消订单时归还物料预留和产能占用
func (s *OrderService) releaseOrderHoldings(ctx context.Context, repos *repository.Repositories, order *entity.ProductionOrder, operator string) error {
	material := NewMaterialService(repos.Inventory, s.logger)
	router := NewCapacityRouter(repos.Capacity, s.logger)

	bom, err := repos.BOM.FindWithItems(ctx, order.BOMID)
	if err != nil {
		return fmt.Errorf("find BOM: %w", err)
	}
	reqs, err := material.Requirements(ctx, bom.Items, order.Quantity)
	if err != nil {
		return err
	}
	if err := material.ReleaseReservations(ctx, order.ID, reqs, operator); err != nil {
		return err
	}

	ops, err := repos.Order.GetOperations(ctx, order.ID)
	if err != nil {
		return fmt.Errorf("load order operations: %w", err)
	}
	return router.ReleaseOperations(ctx, ops)
}

// CalculateRouting 只算不订: 对BOM的工序序列做一次排程推演，
// 不占用任何产能，供下单前评估与报价使用。
func (s *OrderService) CalculateRouting(ctx context.Context, bomID string, quantity float64, start time.Time, bufferDays int) (*RoutingPlan, error) {
	bom, err := s.repos.BOM.FindWithItems(ctx, bomID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrBOMNotFound
		}
		return nil, fmt.Errorf("find BOM: %w", err)
	}
	ops, err := s.routingOperations(ctx, s.repos, bom.Items)
	if err != nil {
		return nil, err
	}
	router := NewCapacityRouter(s.repos.Capacity, s.logger)
	return router.Plan(ctx, ops, quantity, start, bufferDays)
}

// GetWithOperations 订单详情含工序排程
func (s *OrderService) GetWithOperations(ctx context.Context, orderID string) (*entity.ProductionOrder, error) {
	order, err := s.repos.Order.FindWithOperations(ctx, orderID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("find order: %w", err)
	}
	return order, nil
}

// List 订单列表
func (s *OrderService) List(ctx context.Context, params repository.OrderListParams) ([]entity.ProductionOrder, int64, error) {
	return s.repos.Order.List(ctx, params)
}

// GanttRow 甘特图读模型的一行
type GanttRow struct {
	OrderNumber   string    `json:"order_number"`
	OperationCode string    `json:"operation_code"`
	WorkCenterID  string    `json:"work_center_id"`
	Sequence      int       `json:"sequence"`
	Start         time.Time `json:"start"`
	End           time.Time `json:"end"`
	Status        string    `json:"status"`
}

// GanttRows 单订单的甘特图数据
func (s *OrderService) GanttRows(ctx context.Context, orderID string) ([]GanttRow, error) {
	order, err := s.GetWithOperations(ctx, orderID)
	if err != nil {
		return nil, err
	}
	rows := make([]GanttRow, 0, len(order.Operations))
	for _, op := range order.Operations {
		code := ""
		if op.Operation != nil {
			code = op.Operation.Code
		}
		rows = append(rows, GanttRow{
			OrderNumber:   order.OrderNumber,
			OperationCode: code,
			WorkCenterID:  op.WorkCenterID,
			Sequence:      op.Sequence,
			Start:         op.ScheduledStart,
			End:           op.ScheduledEnd,
			Status:        op.Status,
		})
	}
	return rows, nil
}

// DeliveryEstimate 交期估算
type DeliveryEstimate struct {
	MaterialLeadDays int       `json:"material_lead_days"`
	ProductionDays   int       `json:"production_days"`
	BufferDays       int       `json:"buffer_days"`
	EstimatedDate    time.Time `json:"estimated_date"`
}

// EstimateDelivery 交期 = 今天 + 最长物料提前期 + 生产周期 + 缓冲。
// 只看排程与主数据，不真正预订任何资源。
func (s *OrderService) EstimateDelivery(ctx context.Context, bomID string, quantity float64, bufferDays int) (*DeliveryEstimate, error) {
	bom, err := s.repos.BOM.FindWithItems(ctx, bomID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrBOMNotFound
		}
		return nil, fmt.Errorf("find BOM: %w", err)
	}

	maxLead := 0
	for _, it := range bom.Items {
		if it.InventoryItem != nil && it.InventoryItem.LeadTimeDays > maxLead {
			maxLead = it.InventoryItem.LeadTimeDays
		}
	}

	ops, err := s.routingOperations(ctx, s.repos, bom.Items)
	if err != nil {
		return nil, err
	}
	totalHours := 0.0
	for _, op := range ops {
		totalHours += RequiredHours(op, quantity)
	}
	// 8小时工作日向上取整
	productionDays := int(totalHours / 8)
	if totalHours > float64(productionDays)*8 {
		productionDays++
	}

	estimate := &DeliveryEstimate{
		MaterialLeadDays: maxLead,
		ProductionDays:   productionDays,
		BufferDays:       bufferDays,
		EstimatedDate:    truncateDay(time.Now()).AddDate(0, 0, maxLead+productionDays+bufferDays),
	}
	return estimate, nil
}
