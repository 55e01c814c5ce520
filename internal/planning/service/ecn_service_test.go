package service

import (
	"testing"
	"time"

	"github.com/hexafab/forge/internal/planning/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrdersToRepoint(t *testing.T) {
	effective := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	orders := []entity.ProductionOrder{
		{ID: "o1", Status: entity.OrderStatusPlanned, ScheduledStartDate: effective.AddDate(0, 0, 5)},
		{ID: "o2", Status: entity.OrderStatusPlanned, ScheduledStartDate: effective.AddDate(0, 0, -1)},
		{ID: "o3", Status: entity.OrderStatusInProgress, ScheduledStartDate: effective.AddDate(0, 0, 10)},
		{ID: "o4", Status: entity.OrderStatusPlanned, ScheduledStartDate: effective},
	}

	eligible := ordersToRepoint(orders, effective)

	// 生效日前已排的和已开工的都留在旧版
	require.Len(t, eligible, 2)
	assert.Equal(t, "o1", eligible[0].ID)
	assert.Equal(t, "o4", eligible[1].ID)
}

func TestOrdersToRepointEmpty(t *testing.T) {
	effective := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	assert.Empty(t, ordersToRepoint(nil, effective))
	assert.Empty(t, ordersToRepoint([]entity.ProductionOrder{
		{Status: entity.OrderStatusCompleted, ScheduledStartDate: effective.AddDate(0, 0, 1)},
	}, effective))
}
