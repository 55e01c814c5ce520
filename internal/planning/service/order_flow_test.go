package service

import (
	"context"
	"testing"
	"time"

	"github.com/hexafab/forge/internal/planning/entity"
	"github.com/hexafab/forge/internal/planning/repository"
	"github.com/hexafab/forge/internal/planning/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type orderFlowEnv struct {
	db       *gorm.DB
	repos    *repository.Repositories
	orderSvc *OrderService
	start    time.Time
}

// seedOrderFlow 种入一套可下单的主数据:
// 产品+已审批BOM(2件钢/台,损耗10%)+工序(30min准备+6min/件)+当天8小时产能
func seedOrderFlow(t *testing.T, stock float64) *orderFlowEnv {
	t.Helper()
	db := testutil.SetupTestDB(t)
	repos := repository.NewRepositories(db)
	logger := zap.NewNop()

	testutil.SeedInventoryItem(t, db, "steel", "STEEL", 50, stock, 5)
	testutil.SeedWorkCenter(t, db, "wc1", "CNC")

	start := time.Now().AddDate(0, 0, 1).Truncate(24 * time.Hour)
	testutil.SeedCapacity(t, db, "cap1", "wc1", start, 8, 0)

	now := time.Now()
	op := &entity.Operation{
		ID: "op1", Code: "CUT", Name: "Cutting", WorkCenterID: "wc1",
		SetupTime: 30, RunTime: 6, Sequence: 1, CreatedAt: now, UpdatedAt: now,
	}
	require.NoError(t, db.Create(op).Error)

	product := &entity.Product{ID: "p1", Code: "FRAME", Name: "Frame", Status: entity.ProductStatusActive, CreatedAt: now, UpdatedAt: now}
	require.NoError(t, db.Create(product).Error)

	approved := now
	bom := &entity.BOM{
		ID: "bom1", ProductID: "p1", Revision: "A", EffectiveDate: now,
		Status: entity.BOMStatusApproved, ApprovedBy: "tester", ApprovedAt: &approved,
		CreatedBy: "tester", CreatedAt: now, UpdatedAt: now,
	}
	item := entity.BOMItem{
		ID: "bi1", BOMID: "bom1", InventoryItemID: "steel",
		Quantity: 2, Unit: "pcs", ScrapPercentage: 10, OperationID: "op1",
		Level: 1, Sequence: 1, CreatedAt: now, UpdatedAt: now,
	}
	require.NoError(t, repos.BOM.Create(context.Background(), bom, []entity.BOMItem{item}))

	return &orderFlowEnv{
		db:       db,
		repos:    repos,
		orderSvc: NewOrderService(db, repos, logger),
		start:    start,
	}
}

func TestCreateProductionOrderReservesAndBooks(t *testing.T) {
	env := seedOrderFlow(t, 11) // 正好够 2×5×1.1

	order, err := env.orderSvc.CreateProductionOrder(context.Background(), "tester", &CreateOrderRequest{
		BOMID:     "bom1",
		Quantity:  5,
		StartDate: env.start,
	})

	require.NoError(t, err)
	assert.Equal(t, entity.OrderStatusPlanned, order.Status)
	assert.Regexp(t, `^PO\d{8}\d{5}$`, order.OrderNumber)
	require.Len(t, order.Operations, 1)
	// (30 + 6×5)/60 = 1h
	assert.InDelta(t, 1.0, order.Operations[0].RequiredHours, 1e-9)

	steel, err := env.repos.Inventory.FindByID(context.Background(), "steel")
	require.NoError(t, err)
	assert.Equal(t, 0.0, steel.AvailableStock)
	assert.Equal(t, 11.0, steel.ReservedStock)

	cap1, err := env.repos.Capacity.FindBySlot(context.Background(), "wc1", env.start, entity.ShiftDay)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, cap1.BookedHours, 1e-9)
}

func TestCreateProductionOrderInsufficientMaterialRollsBack(t *testing.T) {
	env := seedOrderFlow(t, 10) // 差1件

	_, err := env.orderSvc.CreateProductionOrder(context.Background(), "tester", &CreateOrderRequest{
		BOMID:     "bom1",
		Quantity:  5,
		StartDate: env.start,
	})

	var insufficient *InsufficientMaterialError
	require.ErrorAs(t, err, &insufficient)
	require.Len(t, insufficient.Shortages, 1)
	assert.Equal(t, 11.0, insufficient.Shortages[0].Required)
	assert.Equal(t, 10.0, insufficient.Shortages[0].Available)

	// 事务回滚后台账不留痕
	steel, findErr := env.repos.Inventory.FindByID(context.Background(), "steel")
	require.NoError(t, findErr)
	assert.Equal(t, 10.0, steel.AvailableStock)
	cap1, capErr := env.repos.Capacity.FindBySlot(context.Background(), "wc1", env.start, entity.ShiftDay)
	require.NoError(t, capErr)
	assert.Equal(t, 0.0, cap1.BookedHours)
}

func TestCreateProductionOrderRequiresApprovedBOM(t *testing.T) {
	env := seedOrderFlow(t, 100)
	require.NoError(t, env.db.Model(&entity.BOM{}).Where("id = ?", "bom1").
		Update("status", entity.BOMStatusDraft).Error)

	_, err := env.orderSvc.CreateProductionOrder(context.Background(), "tester", &CreateOrderRequest{
		BOMID:     "bom1",
		Quantity:  5,
		StartDate: env.start,
	})

	assert.ErrorIs(t, err, ErrBOMNotApproved)
}

func TestCancelOrderReleasesHoldings(t *testing.T) {
	env := seedOrderFlow(t, 11)

	order, err := env.orderSvc.CreateProductionOrder(context.Background(), "tester", &CreateOrderRequest{
		BOMID:     "bom1",
		Quantity:  5,
		StartDate: env.start,
	})
	require.NoError(t, err)

	_, err = env.orderSvc.UpdateStatus(context.Background(), order.ID, entity.OrderStatusCancelled, "tester")
	require.NoError(t, err)

	steel, err := env.repos.Inventory.FindByID(context.Background(), "steel")
	require.NoError(t, err)
	assert.Equal(t, 11.0, steel.AvailableStock)
	assert.Equal(t, 0.0, steel.ReservedStock)

	cap1, err := env.repos.Capacity.FindBySlot(context.Background(), "wc1", env.start, entity.ShiftDay)
	require.NoError(t, err)
	assert.Equal(t, 0.0, cap1.BookedHours)
}

func TestRescheduleMovesCapacity(t *testing.T) {
	env := seedOrderFlow(t, 11)
	newStart := env.start.AddDate(0, 0, 3)
	testutil.SeedCapacity(t, env.db, "cap2", "wc1", newStart, 8, 0)

	order, err := env.orderSvc.CreateProductionOrder(context.Background(), "tester", &CreateOrderRequest{
		BOMID:     "bom1",
		Quantity:  5,
		StartDate: env.start,
	})
	require.NoError(t, err)

	rescheduled, err := env.orderSvc.Reschedule(context.Background(), order.ID, &RescheduleRequest{StartDate: newStart})
	require.NoError(t, err)
	assert.False(t, rescheduled.ScheduledStartDate.Before(newStart))

	// 旧槽释放、新槽占用
	oldSlot, err := env.repos.Capacity.FindBySlot(context.Background(), "wc1", env.start, entity.ShiftDay)
	require.NoError(t, err)
	assert.Equal(t, 0.0, oldSlot.BookedHours)
	newSlot, err := env.repos.Capacity.FindBySlot(context.Background(), "wc1", newStart, entity.ShiftDay)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, newSlot.BookedHours, 1e-9)
}

func TestRescheduleRejectedAfterStart(t *testing.T) {
	env := seedOrderFlow(t, 11)

	order, err := env.orderSvc.CreateProductionOrder(context.Background(), "tester", &CreateOrderRequest{
		BOMID:     "bom1",
		Quantity:  5,
		StartDate: env.start,
	})
	require.NoError(t, err)

	_, err = env.orderSvc.UpdateStatus(context.Background(), order.ID, entity.OrderStatusInProgress, "tester")
	require.NoError(t, err)

	_, err = env.orderSvc.Reschedule(context.Background(), order.ID, &RescheduleRequest{StartDate: env.start.AddDate(0, 0, 5)})
	assert.ErrorIs(t, err, ErrOrderNotReschedulable)
}
