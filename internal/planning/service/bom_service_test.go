package service

import (
	"testing"
	"time"

	"github.com/hexafab/forge/internal/planning/entity"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(v int) *int { return &v }

func TestBuildBOMTree(t *testing.T) {
	items := []entity.BOMItem{
		{ID: "a", Sequence: 1},
		{ID: "b", ParentItemID: "a", Sequence: 2},
		{ID: "c", ParentItemID: "b", Sequence: 3},
		{ID: "d", Sequence: 4},
	}

	roots, dangling := buildBOMTree(items)

	require.Len(t, roots, 2)
	assert.Empty(t, dangling)
	assert.Equal(t, "a", roots[0].ID)
	require.Len(t, roots[0].Children, 1)
	assert.Equal(t, "b", roots[0].Children[0].ID)
	require.Len(t, roots[0].Children[0].Children, 1)
	assert.Equal(t, "c", roots[0].Children[0].Children[0].ID)
	assert.Equal(t, "d", roots[1].ID)
}

func TestBuildBOMTreePreservesItemCount(t *testing.T) {
	items := []entity.BOMItem{
		{ID: "r"},
		{ID: "c1", ParentItemID: "r"},
		{ID: "c2", ParentItemID: "r"},
		{ID: "g1", ParentItemID: "c1"},
		{ID: "g2", ParentItemID: "c2"},
	}

	roots, _ := buildBOMTree(items)

	var count func(nodes []entity.BOMItem) int
	count = func(nodes []entity.BOMItem) int {
		n := len(nodes)
		for _, node := range nodes {
			n += count(node.Children)
		}
		return n
	}
	assert.Equal(t, len(items), count(roots))
}

func TestBuildBOMTreeDanglingParentBecomesRoot(t *testing.T) {
	items := []entity.BOMItem{
		{ID: "a"},
		{ID: "b", ParentItemID: "missing"},
	}

	roots, dangling := buildBOMTree(items)

	require.Len(t, roots, 2)
	require.Len(t, dangling, 1)
	assert.Equal(t, "b", dangling[0])
}

func TestValidateParentIndexes(t *testing.T) {
	t.Run("valid nesting", func(t *testing.T) {
		items := []CreateBOMItemInput{
			{InventoryItemID: "m1"},
			{InventoryItemID: "m2", ParentIndex: intPtr(0)},
			{InventoryItemID: "m3", ParentIndex: intPtr(1)},
		}
		assert.NoError(t, validateParentIndexes(items))
	})

	t.Run("self reference rejected", func(t *testing.T) {
		items := []CreateBOMItemInput{
			{InventoryItemID: "m1", ParentIndex: intPtr(0)},
		}
		assert.Error(t, validateParentIndexes(items))
	})

	t.Run("out of range rejected", func(t *testing.T) {
		items := []CreateBOMItemInput{
			{InventoryItemID: "m1", ParentIndex: intPtr(5)},
		}
		assert.Error(t, validateParentIndexes(items))
	})

	t.Run("cycle rejected", func(t *testing.T) {
		items := []CreateBOMItemInput{
			{InventoryItemID: "m1", ParentIndex: intPtr(1)},
			{InventoryItemID: "m2", ParentIndex: intPtr(0)},
		}
		assert.ErrorIs(t, validateParentIndexes(items), ErrCyclicBOM)
	})
}

func TestBuildBOMItemsLevels(t *testing.T) {
	now := time.Now()
	inputs := []CreateBOMItemInput{
		{InventoryItemID: "m1", Quantity: 1},
		{InventoryItemID: "m2", Quantity: 2, ParentIndex: intPtr(0)},
		{InventoryItemID: "m3", Quantity: 3, ParentIndex: intPtr(1)},
		{InventoryItemID: "m4", Quantity: 4},
	}

	items := buildBOMItems("bom1", inputs, now)

	require.Len(t, items, 4)
	assert.Equal(t, 1, items[0].Level)
	assert.Equal(t, 2, items[1].Level)
	assert.Equal(t, 3, items[2].Level)
	assert.Equal(t, 1, items[3].Level)
	assert.Equal(t, items[0].ID, items[1].ParentItemID)
	assert.Equal(t, items[1].ID, items[2].ParentItemID)
	assert.Empty(t, items[3].ParentItemID)

	// 缺省sequence按位置补齐
	assert.Equal(t, 1, items[0].Sequence)
	assert.Equal(t, 4, items[3].Sequence)
}

func TestCostOfItems(t *testing.T) {
	items := []entity.BOMItem{
		{
			ID:              "i1",
			Quantity:        2,
			ScrapPercentage: 10,
			InventoryItem:   &entity.InventoryItem{Code: "STEEL", StandardCost: 50},
		},
		{
			ID:            "i2",
			Quantity:      4,
			InventoryItem: &entity.InventoryItem{Code: "BOLT", StandardCost: 0.5},
		},
	}

	result := costOfItems(items, 5)

	// STEEL: 2 × 5 × 50 = 500 材料, 500 × 10% = 50 损耗
	// BOLT:  4 × 5 × 0.5 = 10 材料, 无损耗
	assert.True(t, result.MaterialTotal.Equal(decimal.NewFromInt(510)), "material total = %s", result.MaterialTotal)
	assert.True(t, result.ScrapTotal.Equal(decimal.NewFromInt(50)), "scrap total = %s", result.ScrapTotal)
	assert.True(t, result.GrandTotal.Equal(decimal.NewFromInt(560)), "grand total = %s", result.GrandTotal)
}

func TestCostOfItemsLinearInQuantity(t *testing.T) {
	items := []entity.BOMItem{
		{ID: "i1", Quantity: 3, ScrapPercentage: 7.5, InventoryItem: &entity.InventoryItem{StandardCost: 12.34}},
		{ID: "i2", Quantity: 1.5, InventoryItem: &entity.InventoryItem{StandardCost: 0.07}},
	}

	base := costOfItems(items, 3)
	double := costOfItems(items, 6)

	assert.True(t, double.GrandTotal.Equal(base.GrandTotal.Mul(decimal.NewFromInt(2))),
		"cost(2q)=%s, 2*cost(q)=%s", double.GrandTotal, base.GrandTotal.Mul(decimal.NewFromInt(2)))
}

func TestCostOfItemsMissingMasterDataIsZero(t *testing.T) {
	items := []entity.BOMItem{
		{ID: "i1", Quantity: 10, ScrapPercentage: 5},
	}

	result := costOfItems(items, 100)

	assert.True(t, result.GrandTotal.IsZero())
}
