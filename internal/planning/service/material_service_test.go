package service

import (
	"context"
	"sync"
	"testing"

	"github.com/hexafab/forge/internal/planning/entity"
	"github.com/hexafab/forge/internal/planning/repository"
	"github.com/hexafab/forge/internal/planning/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRequiredQuantity(t *testing.T) {
	// 单台2件、损耗10%、下单5台 → 2×5×1.1 = 11，不能出现浮点尾差
	assert.Equal(t, 11.0, RequiredQuantity(2, 5, 10))
	assert.Equal(t, 5.0, RequiredQuantity(1, 5, 0))
	assert.Equal(t, 0.0, RequiredQuantity(0, 100, 50))
}

func TestRequiredQuantityFractional(t *testing.T) {
	// 0.3×3×1.1 = 0.99，十进制计算不会得到0.9899999...
	assert.Equal(t, 0.99, RequiredQuantity(0.3, 3, 10))
}

func TestValidateCollectsAllShortages(t *testing.T) {
	db := testutil.SetupTestDB(t)
	testutil.SeedInventoryItem(t, db, "steel", "STEEL", 50, 3, 5)
	testutil.SeedInventoryItem(t, db, "bolt", "BOLT", 0.5, 100, 1)
	testutil.SeedInventoryItem(t, db, "paint", "PAINT", 8, 0, 2)

	svc := NewMaterialService(repository.NewInventoryRepository(db), zap.NewNop())
	items := []entity.BOMItem{
		{InventoryItemID: "steel", Quantity: 2, ScrapPercentage: 10},
		{InventoryItemID: "bolt", Quantity: 4},
		{InventoryItemID: "paint", Quantity: 1},
	}

	_, err := svc.Validate(context.Background(), items, 5)

	var insufficient *InsufficientMaterialError
	require.ErrorAs(t, err, &insufficient)
	// steel需要11只有3，paint需要5只有0，bolt够: 缺口必须一次性全列出
	require.Len(t, insufficient.Shortages, 2)
	codes := []string{insufficient.Shortages[0].Code, insufficient.Shortages[1].Code}
	assert.Contains(t, codes, "STEEL")
	assert.Contains(t, codes, "PAINT")
}

func TestValidateUnknownItem(t *testing.T) {
	db := testutil.SetupTestDB(t)
	testutil.SeedInventoryItem(t, db, "steel", "STEEL", 50, 100, 5)

	svc := NewMaterialService(repository.NewInventoryRepository(db), zap.NewNop())
	items := []entity.BOMItem{
		{InventoryItemID: "steel", Quantity: 1},
		{InventoryItemID: "ghost", Quantity: 1},
	}

	_, err := svc.Validate(context.Background(), items, 1)

	var unknown *UnknownInventoryItemError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, []string{"ghost"}, unknown.ItemIDs)
}

func TestRequirementsMergesDuplicateItems(t *testing.T) {
	db := testutil.SetupTestDB(t)
	testutil.SeedInventoryItem(t, db, "bolt", "BOLT", 0.5, 100, 1)

	svc := NewMaterialService(repository.NewInventoryRepository(db), zap.NewNop())
	items := []entity.BOMItem{
		{InventoryItemID: "bolt", Quantity: 2},
		{InventoryItemID: "bolt", Quantity: 3},
	}

	reqs, err := svc.Requirements(context.Background(), items, 2)

	require.NoError(t, err)
	require.Len(t, reqs, 1)
	assert.Equal(t, 10.0, reqs[0].RequiredQty)
}

func TestReserveRollsBackOnShortage(t *testing.T) {
	db := testutil.SetupTestDB(t)
	testutil.SeedInventoryItem(t, db, "steel", "STEEL", 50, 20, 5)
	testutil.SeedInventoryItem(t, db, "paint", "PAINT", 8, 1, 2)

	repo := repository.NewInventoryRepository(db)
	svc := NewMaterialService(repo, zap.NewNop())
	reqs := []MaterialRequirement{
		{InventoryItemID: "steel", Code: "STEEL", RequiredQty: 10, AvailableQty: 20},
		{InventoryItemID: "paint", Code: "PAINT", RequiredQty: 5, AvailableQty: 1},
	}

	err := svc.Reserve(context.Background(), "order1", reqs, "tester")

	var insufficient *InsufficientMaterialError
	require.ErrorAs(t, err, &insufficient)

	// steel的预留必须被补偿释放
	steel, findErr := repo.FindByID(context.Background(), "steel")
	require.NoError(t, findErr)
	assert.Equal(t, 20.0, steel.AvailableStock)
	assert.Equal(t, 0.0, steel.ReservedStock)
}

func TestConcurrentReserveNeverOversells(t *testing.T) {
	db := testutil.SetupTestDB(t)
	testutil.SeedInventoryItem(t, db, "steel", "STEEL", 50, 10, 5)

	repo := repository.NewInventoryRepository(db)
	var wg sync.WaitGroup
	success := make(chan struct{}, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := repo.Reserve(context.Background(), "steel", 1)
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
	assert.Equal(t, 10, n)

	steel, err := repo.FindByID(context.Background(), "steel")
	require.NoError(t, err)
	assert.Equal(t, 0.0, steel.AvailableStock)
	assert.Equal(t, 10.0, steel.ReservedStock)
}

func TestRecordConsumptionVarianceAndCost(t *testing.T) {
	db := testutil.SetupTestDB(t)
	testutil.SeedInventoryItem(t, db, "steel", "STEEL", 50, 100, 5)

	repo := repository.NewInventoryRepository(db)
	require.NoError(t, db.Model(&entity.InventoryItem{}).Where("id = ?", "steel").
		Updates(map[string]interface{}{"available_stock": 89, "reserved_stock": 11}).Error)

	svc := NewMaterialService(repo, zap.NewNop())
	record, err := svc.RecordConsumption(context.Background(), "order1", &ConsumptionRequest{
		InventoryItemID: "steel",
		PlannedQty:      11,
		ActualQty:       12,
	}, "tester")

	require.NoError(t, err)
	assert.Equal(t, 1.0, record.Variance)
	assert.Equal(t, 600.0, record.Cost)

	steel, err := repo.FindByID(context.Background(), "steel")
	require.NoError(t, err)
	assert.Equal(t, 88.0, steel.CurrentStock)
	assert.Equal(t, 0.0, steel.ReservedStock)
}

func TestRecordScrapDefaultsToStandardCost(t *testing.T) {
	db := testutil.SetupTestDB(t)
	testutil.SeedInventoryItem(t, db, "steel", "STEEL", 50, 100, 5)

	svc := NewMaterialService(repository.NewInventoryRepository(db), zap.NewNop())
	record, err := svc.RecordScrap(context.Background(), "order1", &ScrapRequest{
		InventoryItemID: "steel",
		Quantity:        2,
		Reason:          "weld defect",
	}, "tester")

	require.NoError(t, err)
	assert.Equal(t, 100.0, record.Cost)
	assert.Equal(t, "weld defect", record.Reason)
}
