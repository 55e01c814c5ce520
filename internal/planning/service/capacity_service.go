package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/hexafab/forge/internal/planning/entity"
	"github.com/hexafab/forge/internal/planning/repository"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

const (
	// 默认扫描窗口: 从游标日起30天内找产能槽
	defaultScanDays = 30
	// 预订撞上并发时整体重排的最大次数
	maxBookAttempts = 3
)

// ScheduleStore 产能台账访问接口，生产实现为 repository.CapacityRepository。
// Book必须是"累加后不超可用才生效"的单条原子操作，不允许读-改-写。
type ScheduleStore interface {
	Window(ctx context.Context, workCenterID string, from time.Time, days int) ([]entity.CapacitySchedule, error)
	Book(ctx context.Context, scheduleID string, hours float64) (bool, error)
	Release(ctx context.Context, scheduleID string, hours float64) error
	FindBySlot(ctx context.Context, workCenterID string, date time.Time, shift string) (*entity.CapacitySchedule, error)
}

// RoutingSlot 单工序的排程结果
type RoutingSlot struct {
	OperationID   string    `json:"operation_id"`
	OperationCode string    `json:"operation_code"`
	WorkCenterID  string    `json:"work_center_id"`
	Sequence      int       `json:"sequence"`
	ScheduleID    string    `json:"schedule_id"`
	Date          time.Time `json:"date"`
	Shift         string    `json:"shift"`
	RequiredHours float64   `json:"required_hours"`
	Start         time.Time `json:"start"`
	End           time.Time `json:"end"`
}

// RoutingPlan 整单排程结果
type RoutingPlan struct {
	Slots      []RoutingSlot `json:"slots"`
	Start      time.Time     `json:"start"`
	End        time.Time     `json:"end"` // 含缓冲天数
	BufferDays int           `json:"buffer_days"`
}

// CapacityRouter 产能路由器: 按工序顺序在产能台账上找槽、预订
type CapacityRouter struct {
	store  ScheduleStore
	logger *zap.Logger
}

func NewCapacityRouter(store ScheduleStore, logger *zap.Logger) *CapacityRouter {
	return &CapacityRouter{store: store, logger: logger}
}

// RequiredHours 工序所需工时 = (准备时间 + 单件时间×数量) / 60
func RequiredHours(op entity.Operation, quantity float64) float64 {
	return (op.SetupTime + op.RunTime*quantity) / 60
}

// Plan 只计算不预订。工序严格串行: 游标从start出发，每排完一道推进到其结束时刻。
// 前面工序在同一产能行上排入的工时计入planned，后续找槽按剩余减去planned判定，
// 否则两道同工作中心的工序会被排进一个装不下两者的槽。
// 单件流假设下不建并行工序模型，换来可审计的找槽逻辑，除非明确要求扩产能特性否则保持。
func (r *CapacityRouter) Plan(ctx context.Context, ops []entity.Operation, quantity float64, start time.Time, bufferDays int) (*RoutingPlan, error) {
	sorted := make([]entity.Operation, len(ops))
	copy(sorted, ops)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Sequence < sorted[j].Sequence })

	cursor := start
	plan := &RoutingPlan{BufferDays: bufferDays}
	planned := make(map[string]float64)

	for _, op := range sorted {
		required := RequiredHours(op, quantity)
		slot, err := r.findSlot(ctx, op, required, cursor, planned)
		if err != nil {
			return nil, err
		}
		planned[slot.ScheduleID] += required
		plan.Slots = append(plan.Slots, *slot)
		cursor = slot.End
	}

	if len(plan.Slots) > 0 {
		plan.Start = plan.Slots[0].Start
		plan.End = plan.Slots[len(plan.Slots)-1].End.AddDate(0, 0, bufferDays)
	}
	return plan, nil
}

// findSlot 自游标日起顺序扫描，取首个剩余工时足够的产能行，
// 剩余工时扣除本计划内已排入同一行的planned工时
func (r *CapacityRouter) findSlot(ctx context.Context, op entity.Operation, required float64, cursor time.Time, planned map[string]float64) (*RoutingSlot, error) {
	from := truncateDay(cursor)
	rows, err := r.store.Window(ctx, op.WorkCenterID, from, defaultScanDays)
	if err != nil {
		return nil, fmt.Errorf("load capacity window: %w", err)
	}

	for _, row := range rows {
		if row.RemainingHours()-planned[row.ID] < required {
			continue
		}
		start := slotStart(row.Date, cursor)
		return &RoutingSlot{
			OperationID:   op.ID,
			OperationCode: op.Code,
			WorkCenterID:  op.WorkCenterID,
			Sequence:      op.Sequence,
			ScheduleID:    row.ID,
			Date:          row.Date,
			Shift:         row.Shift,
			RequiredHours: required,
			Start:         start,
			End:           start.Add(hoursToDuration(required)),
		}, nil
	}

	return nil, &NoCapacityError{
		OperationID:   op.ID,
		OperationCode: op.Code,
		WorkCenterID:  op.WorkCenterID,
		RequiredHours: required,
		ScanDays:      defaultScanDays,
	}
}

// Route 计算并预订。条件预订撞上并发订满时释放本轮已订槽位并整体重排。
func (r *CapacityRouter) Route(ctx context.Context, ops []entity.Operation, quantity float64, start time.Time, bufferDays int) (*RoutingPlan, error) {
	var lastErr error
	for attempt := 1; attempt <= maxBookAttempts; attempt++ {
		plan, err := r.Plan(ctx, ops, quantity, start, bufferDays)
		if err != nil {
			return nil, err
		}

		booked, err := r.book(ctx, plan)
		if err == nil {
			return plan, nil
		}
		lastErr = err

		// 补偿释放后重排
		for _, slot := range booked {
			if relErr := r.store.Release(ctx, slot.ScheduleID, slot.RequiredHours); relErr != nil {
				r.logger.Error("release capacity after failed booking",
					zap.String("schedule_id", slot.ScheduleID), zap.Error(relErr))
			}
		}
		r.logger.Warn("capacity booking lost race, replanning",
			zap.Int("attempt", attempt), zap.Error(err))
	}
	return nil, lastErr
}

// book 逐槽条件预订，返回已成功的槽位供补偿
func (r *CapacityRouter) book(ctx context.Context, plan *RoutingPlan) ([]RoutingSlot, error) {
	var booked []RoutingSlot
	for _, slot := range plan.Slots {
		ok, err := r.store.Book(ctx, slot.ScheduleID, slot.RequiredHours)
		if err != nil {
			return booked, fmt.Errorf("book capacity: %w", err)
		}
		if !ok {
			// 并发把槽位订走，按无产能对待，调用方可据此重排或返回422
			return booked, &NoCapacityError{
				OperationID:   slot.OperationID,
				OperationCode: slot.OperationCode,
				WorkCenterID:  slot.WorkCenterID,
				RequiredHours: slot.RequiredHours,
				ScanDays:      defaultScanDays,
			}
		}
		booked = append(booked, slot)
	}
	return booked, nil
}

// ReleaseOperations 释放订单工序占用的产能，改期和取消使用
func (r *CapacityRouter) ReleaseOperations(ctx context.Context, ops []entity.ProductionOrderOperation) error {
	for _, op := range ops {
		row, err := r.store.FindBySlot(ctx, op.WorkCenterID, op.CapacityDate, op.CapacityShift)
		if err != nil {
			r.logger.Warn("capacity row for release not found",
				zap.String("work_center_id", op.WorkCenterID),
				zap.Time("date", op.CapacityDate))
			continue
		}
		if err := r.store.Release(ctx, row.ID, op.RequiredHours); err != nil {
			return fmt.Errorf("release capacity: %w", err)
		}
	}
	return nil
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// slotStart 槽起点: 产能行日期当天，若游标在同一天之后则从游标接续
func slotStart(date, cursor time.Time) time.Time {
	if sameDay(date, cursor) && cursor.After(date) {
		return cursor
	}
	return date
}

func sameDay(a, b time.Time) bool {
	return a.Year() == b.Year() && a.YearDay() == b.YearDay()
}

func hoursToDuration(hours float64) time.Duration {
	return time.Duration(hours * float64(time.Hour))
}

// CapacityService 产能日历维护与利用率读模型
type CapacityService struct {
	capacityRepo *repository.CapacityRepository
	routingRepo  *repository.RoutingRepository
	logger       *zap.Logger
}

func NewCapacityService(capacityRepo *repository.CapacityRepository, routingRepo *repository.RoutingRepository, logger *zap.Logger) *CapacityService {
	return &CapacityService{capacityRepo: capacityRepo, routingRepo: routingRepo, logger: logger}
}

// UpsertScheduleRequest 产能日历维护请求
type UpsertScheduleRequest struct {
	WorkCenterID   string    `json:"work_center_id" binding:"required"`
	Date           time.Time `json:"date" binding:"required"`
	Shift          string    `json:"shift"`
	AvailableHours float64   `json:"available_hours" binding:"required,gt=0"`
	Efficiency     float64   `json:"efficiency"`
}

// UpsertSchedule 维护产能日历
func (s *CapacityService) UpsertSchedule(ctx context.Context, req *UpsertScheduleRequest) (*entity.CapacitySchedule, error) {
	if _, err := s.routingRepo.FindWorkCenterByID(ctx, req.WorkCenterID); err != nil {
		return nil, fmt.Errorf("find work center: %w", err)
	}

	shift := req.Shift
	if shift == "" {
		shift = entity.ShiftDay
	}
	efficiency := req.Efficiency
	if efficiency == 0 {
		efficiency = 100
	}

	now := time.Now()
	cs := &entity.CapacitySchedule{
		ID:             uuid.New().String()[:32],
		WorkCenterID:   req.WorkCenterID,
		Date:           truncateDay(req.Date),
		Shift:          shift,
		AvailableHours: req.AvailableHours,
		Efficiency:     efficiency,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.capacityRepo.Upsert(ctx, cs); err != nil {
		return nil, fmt.Errorf("upsert capacity schedule: %w", err)
	}
	return cs, nil
}

// Utilization 按日/工作中心利用率
func (s *CapacityService) Utilization(ctx context.Context, workCenterID string, from, to time.Time) ([]repository.UtilizationRow, error) {
	return s.capacityRepo.Utilization(ctx, workCenterID, from, to)
}

// ExportUtilization 利用率导出为Excel
func (s *CapacityService) ExportUtilization(ctx context.Context, workCenterID string, from, to time.Time) (*excelize.File, error) {
	rows, err := s.capacityRepo.Utilization(ctx, workCenterID, from, to)
	if err != nil {
		return nil, fmt.Errorf("load utilization: %w", err)
	}

	f := excelize.NewFile()
	sheet := "Utilization"
	f.SetSheetName("Sheet1", sheet)

	headers := []string{"Work Center", "Date", "Shift", "Available Hours", "Booked Hours", "Utilization %"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheet, cell, h)
	}
	for i, row := range rows {
		values := []interface{}{
			row.WorkCenterCode,
			row.Date.Format("2006-01-02"),
			row.Shift,
			row.AvailableHours,
			row.BookedHours,
			row.Utilization,
		}
		for j, v := range values {
			cell, _ := excelize.CoordinatesToCellName(j+1, i+2)
			f.SetCellValue(sheet, cell, v)
		}
	}
	return f, nil
}
