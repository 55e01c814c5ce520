package service

import (
	"testing"
	"time"

	"github.com/hexafab/forge/internal/planning/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to string
		want     bool
	}{
		{entity.OrderStatusDraft, entity.OrderStatusPlanned, true},
		{entity.OrderStatusDraft, entity.OrderStatusCancelled, true},
		{entity.OrderStatusDraft, entity.OrderStatusCompleted, false},
		{entity.OrderStatusPlanned, entity.OrderStatusInProgress, true},
		{entity.OrderStatusPlanned, entity.OrderStatusCancelled, true},
		{entity.OrderStatusPlanned, entity.OrderStatusCompleted, false},
		{entity.OrderStatusInProgress, entity.OrderStatusCompleted, true},
		{entity.OrderStatusInProgress, entity.OrderStatusCancelled, true},
		{entity.OrderStatusInProgress, entity.OrderStatusPlanned, false},
		{entity.OrderStatusCompleted, entity.OrderStatusInProgress, false},
		{entity.OrderStatusCompleted, entity.OrderStatusCancelled, false},
		{entity.OrderStatusCancelled, entity.OrderStatusPlanned, false},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, CanTransition(c.from, c.to), "%s -> %s", c.from, c.to)
	}
}

func TestBuildOrderOperations(t *testing.T) {
	now := time.Now()
	start := time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC)
	plan := &RoutingPlan{
		Slots: []RoutingSlot{
			{
				OperationID:   "op1",
				OperationCode: "CUT",
				WorkCenterID:  "wc1",
				Sequence:      1,
				ScheduleID:    "s1",
				Date:          start,
				Shift:         entity.ShiftDay,
				RequiredHours: 2,
				Start:         start,
				End:           start.Add(2 * time.Hour),
			},
			{
				OperationID:   "op2",
				OperationCode: "WELD",
				WorkCenterID:  "wc2",
				Sequence:      2,
				ScheduleID:    "s2",
				Date:          start,
				Shift:         entity.ShiftDay,
				RequiredHours: 1.5,
				Start:         start.Add(2 * time.Hour),
				End:           start.Add(3*time.Hour + 30*time.Minute),
			},
		},
	}

	ops := buildOrderOperations("order1", plan, now)

	require.Len(t, ops, 2)
	for i, op := range ops {
		assert.Equal(t, "order1", op.ProductionOrderID)
		assert.Equal(t, entity.OpStatusPending, op.Status)
		assert.Equal(t, plan.Slots[i].OperationID, op.OperationID)
		assert.Equal(t, plan.Slots[i].RequiredHours, op.RequiredHours)
		assert.Equal(t, plan.Slots[i].Shift, op.CapacityShift)
		assert.NotEmpty(t, op.ID)
	}
}
