package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/hexafab/forge/internal/planning/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// memScheduleStore 内存产能台账，Book与生产实现一样是"检查加预订"的原子操作
type memScheduleStore struct {
	mu   sync.Mutex
	rows map[string]*entity.CapacitySchedule
}

func newMemScheduleStore(rows ...entity.CapacitySchedule) *memScheduleStore {
	m := &memScheduleStore{rows: make(map[string]*entity.CapacitySchedule)}
	for i := range rows {
		r := rows[i]
		m.rows[r.ID] = &r
	}
	return m
}

func (m *memScheduleStore) Window(_ context.Context, workCenterID string, from time.Time, days int) ([]entity.CapacitySchedule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	end := from.AddDate(0, 0, days)
	var out []entity.CapacitySchedule
	for _, r := range m.rows {
		if r.WorkCenterID == workCenterID && !r.Date.Before(from) && r.Date.Before(end) {
			out = append(out, *r)
		}
	}
	// 按日期排序，窗口语义与SQL实现一致
	for i := 0; i < len(out); i++ {
		for j := i + 1; j < len(out); j++ {
			if out[j].Date.Before(out[i].Date) {
				out[i], out[j] = out[j], out[i]
			}
		}
	}
	return out, nil
}

func (m *memScheduleStore) Book(_ context.Context, scheduleID string, hours float64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rows[scheduleID]
	if !ok {
		return false, errors.New("schedule not found")
	}
	if r.BookedHours+hours > r.AvailableHours {
		return false, nil
	}
	r.BookedHours += hours
	return true, nil
}

func (m *memScheduleStore) Release(_ context.Context, scheduleID string, hours float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rows[scheduleID]
	if !ok {
		return errors.New("schedule not found")
	}
	r.BookedHours -= hours
	if r.BookedHours < 0 {
		r.BookedHours = 0
	}
	return nil
}

func (m *memScheduleStore) FindBySlot(_ context.Context, workCenterID string, date time.Time, shift string) (*entity.CapacitySchedule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.rows {
		if r.WorkCenterID == workCenterID && r.Shift == shift && sameDay(r.Date, date) {
			copy := *r
			return &copy, nil
		}
	}
	return nil, errors.New("schedule not found")
}

func (m *memScheduleStore) booked(id string) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rows[id].BookedHours
}

func day(offset int) time.Time {
	base := time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC)
	return base.AddDate(0, 0, offset)
}

func capRow(id, wc string, offset int, available, booked float64) entity.CapacitySchedule {
	return entity.CapacitySchedule{
		ID: id, WorkCenterID: wc, Date: day(offset), Shift: entity.ShiftDay,
		AvailableHours: available, BookedHours: booked, Efficiency: 100,
	}
}

func TestRequiredHours(t *testing.T) {
	op := entity.Operation{SetupTime: 30, RunTime: 6}
	// (30 + 6×10) / 60 = 1.5h
	assert.InDelta(t, 1.5, RequiredHours(op, 10), 1e-9)
}

func TestPlanRejectsWhenSlotNearlyFull(t *testing.T) {
	// 可用8h已订6h: 剩2h，3h的工序在30天窗口内没有其他槽
	store := newMemScheduleStore(capRow("s1", "wc1", 0, 8, 6))
	router := NewCapacityRouter(store, zap.NewNop())
	op := entity.Operation{ID: "op1", Code: "CUT", WorkCenterID: "wc1", SetupTime: 60, RunTime: 12, Sequence: 1}

	_, err := router.Plan(context.Background(), []entity.Operation{op}, 10, day(0), 0)

	var noCapacity *NoCapacityError
	require.ErrorAs(t, err, &noCapacity)
	assert.Equal(t, "CUT", noCapacity.OperationCode)
	assert.Equal(t, "wc1", noCapacity.WorkCenterID)
	assert.InDelta(t, 3.0, noCapacity.RequiredHours, 1e-9)
}

func TestRouteBooksWithinRemaining(t *testing.T) {
	// 剩2h，2h的工序刚好订满
	store := newMemScheduleStore(capRow("s1", "wc1", 0, 8, 6))
	router := NewCapacityRouter(store, zap.NewNop())
	op := entity.Operation{ID: "op1", Code: "CUT", WorkCenterID: "wc1", SetupTime: 0, RunTime: 12, Sequence: 1}

	plan, err := router.Route(context.Background(), []entity.Operation{op}, 10, day(0), 0)

	require.NoError(t, err)
	require.Len(t, plan.Slots, 1)
	assert.InDelta(t, 8.0, store.booked("s1"), 1e-9)
}

func TestPlanSkipsToLaterDay(t *testing.T) {
	store := newMemScheduleStore(
		capRow("s1", "wc1", 0, 8, 8), // 满
		capRow("s2", "wc1", 1, 8, 0),
	)
	router := NewCapacityRouter(store, zap.NewNop())
	op := entity.Operation{ID: "op1", Code: "CUT", WorkCenterID: "wc1", SetupTime: 0, RunTime: 30, Sequence: 1}

	plan, err := router.Plan(context.Background(), []entity.Operation{op}, 8, day(0), 0)

	require.NoError(t, err)
	require.Len(t, plan.Slots, 1)
	assert.Equal(t, "s2", plan.Slots[0].ScheduleID)
	assert.True(t, sameDay(plan.Slots[0].Date, day(1)))
}

func TestPlanSequentialOperationsAdvanceCursor(t *testing.T) {
	store := newMemScheduleStore(
		capRow("a1", "wcA", 0, 8, 0),
		capRow("b1", "wcB", 0, 8, 0),
	)
	router := NewCapacityRouter(store, zap.NewNop())
	ops := []entity.Operation{
		{ID: "op2", Code: "WELD", WorkCenterID: "wcB", SetupTime: 0, RunTime: 12, Sequence: 2},
		{ID: "op1", Code: "CUT", WorkCenterID: "wcA", SetupTime: 0, RunTime: 24, Sequence: 1},
	}

	plan, err := router.Plan(context.Background(), ops, 10, day(0), 0)

	require.NoError(t, err)
	require.Len(t, plan.Slots, 2)
	// 乱序输入按sequence重排
	assert.Equal(t, "CUT", plan.Slots[0].OperationCode)
	assert.Equal(t, "WELD", plan.Slots[1].OperationCode)
	// 第二道工序不早于第一道结束
	assert.False(t, plan.Slots[1].Start.Before(plan.Slots[0].End))
}

func TestPlanSameWorkCenterSharesDayWithinCapacity(t *testing.T) {
	// 3h+4h两道工序同一工作中心，一天8h装得下，第二道同日接续
	store := newMemScheduleStore(capRow("s1", "wc1", 0, 8, 0))
	router := NewCapacityRouter(store, zap.NewNop())
	ops := []entity.Operation{
		{ID: "op1", Code: "CUT", WorkCenterID: "wc1", SetupTime: 0, RunTime: 18, Sequence: 1},
		{ID: "op2", Code: "DEBURR", WorkCenterID: "wc1", SetupTime: 0, RunTime: 24, Sequence: 2},
	}

	plan, err := router.Plan(context.Background(), ops, 10, day(0), 0)

	require.NoError(t, err)
	require.Len(t, plan.Slots, 2)
	assert.Equal(t, "s1", plan.Slots[0].ScheduleID)
	assert.Equal(t, "s1", plan.Slots[1].ScheduleID)
	assert.False(t, plan.Slots[1].Start.Before(plan.Slots[0].End))
}

func TestRouteSameWorkCenterOverflowsToNextDay(t *testing.T) {
	// 两道5h工序同一工作中心，一天8h只装得下一道，第二道必须落到次日
	store := newMemScheduleStore(
		capRow("s1", "wc1", 0, 8, 0),
		capRow("s2", "wc1", 1, 8, 0),
	)
	router := NewCapacityRouter(store, zap.NewNop())
	ops := []entity.Operation{
		{ID: "op1", Code: "CUT", WorkCenterID: "wc1", SetupTime: 0, RunTime: 30, Sequence: 1},
		{ID: "op2", Code: "WELD", WorkCenterID: "wc1", SetupTime: 0, RunTime: 30, Sequence: 2},
	}

	plan, err := router.Route(context.Background(), ops, 10, day(0), 0)

	require.NoError(t, err)
	require.Len(t, plan.Slots, 2)
	assert.Equal(t, "s1", plan.Slots[0].ScheduleID)
	assert.Equal(t, "s2", plan.Slots[1].ScheduleID)
	assert.True(t, sameDay(plan.Slots[1].Date, day(1)))
	// 任一行预订量不超过可用工时
	assert.InDelta(t, 5.0, store.booked("s1"), 1e-9)
	assert.InDelta(t, 5.0, store.booked("s2"), 1e-9)
}

// contendedStore 模拟并发方总是抢先订走槽位
type contendedStore struct {
	*memScheduleStore
}

func (s *contendedStore) Book(context.Context, string, float64) (bool, error) {
	return false, nil
}

func TestRouteBookFailureSurfacesNoCapacity(t *testing.T) {
	store := &contendedStore{newMemScheduleStore(capRow("s1", "wc1", 0, 8, 0))}
	router := NewCapacityRouter(store, zap.NewNop())
	op := entity.Operation{ID: "op1", Code: "CUT", WorkCenterID: "wc1", SetupTime: 0, RunTime: 6, Sequence: 1}

	_, err := router.Route(context.Background(), []entity.Operation{op}, 10, day(0), 0)

	var noCapacity *NoCapacityError
	require.ErrorAs(t, err, &noCapacity)
	assert.Equal(t, "CUT", noCapacity.OperationCode)
	assert.Equal(t, "wc1", noCapacity.WorkCenterID)
}

func TestPlanBufferDaysExtendEnd(t *testing.T) {
	store := newMemScheduleStore(capRow("s1", "wc1", 0, 8, 0))
	router := NewCapacityRouter(store, zap.NewNop())
	op := entity.Operation{ID: "op1", Code: "CUT", WorkCenterID: "wc1", SetupTime: 0, RunTime: 6, Sequence: 1}

	plan, err := router.Plan(context.Background(), []entity.Operation{op}, 10, day(0), 3)

	require.NoError(t, err)
	withoutBuffer := plan.Slots[0].End
	assert.Equal(t, withoutBuffer.AddDate(0, 0, 3), plan.End)
}

func TestRouteCompensatesOnPartialFailure(t *testing.T) {
	// 第二道工序永远订不上，第一道已订的槽必须被释放
	store := newMemScheduleStore(
		capRow("a1", "wcA", 0, 8, 0),
		capRow("b1", "wcB", 0, 2, 2),
	)
	router := NewCapacityRouter(store, zap.NewNop())
	ops := []entity.Operation{
		{ID: "op1", Code: "CUT", WorkCenterID: "wcA", SetupTime: 0, RunTime: 12, Sequence: 1},
		{ID: "op2", Code: "WELD", WorkCenterID: "wcB", SetupTime: 0, RunTime: 12, Sequence: 2},
	}

	_, err := router.Route(context.Background(), ops, 10, day(0), 0)

	require.Error(t, err)
	assert.InDelta(t, 0, store.booked("a1"), 1e-9)
}

func TestConcurrentBookingNeverOverbooks(t *testing.T) {
	store := newMemScheduleStore(capRow("s1", "wc1", 0, 8, 0))
	var wg sync.WaitGroup
	success := make(chan struct{}, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := store.Book(context.Background(), "s1", 1)
			if err == nil && ok {
				success <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(success)

	n := 0
	for range success {
		n++
	}
	assert.Equal(t, 8, n)
	assert.InDelta(t, 8.0, store.booked("s1"), 1e-9)
}

func TestSlotStartContinuesSameDay(t *testing.T) {
	date := day(0)
	cursor := date.Add(3 * time.Hour)
	assert.Equal(t, cursor, slotStart(date, cursor))

	nextDay := day(1)
	assert.Equal(t, nextDay, slotStart(nextDay, cursor))
}

func TestNoCapacityErrorMessage(t *testing.T) {
	err := &NoCapacityError{OperationCode: "CUT", WorkCenterID: "wc1", RequiredHours: 3, ScanDays: 30}
	msg := err.Error()
	assert.Contains(t, msg, "CUT")
	assert.Contains(t, msg, "wc1")
	assert.Contains(t, msg, fmt.Sprintf("%d days", 30))
}
