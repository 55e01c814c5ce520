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
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const currentBOMCacheTTL = 5 * time.Minute

// BOMService BOM结构引擎
type BOMService struct {
	bomRepo       *repository.BOMRepository
	productRepo   *repository.ProductRepository
	inventoryRepo *repository.InventoryRepository
	rdb           *redis.Client
	logger        *zap.Logger
}

func NewBOMService(
	bomRepo *repository.BOMRepository,
	productRepo *repository.ProductRepository,
	inventoryRepo *repository.InventoryRepository,
	rdb *redis.Client,
	logger *zap.Logger,
) *BOMService {
	return &BOMService{
		bomRepo:       bomRepo,
		productRepo:   productRepo,
		inventoryRepo: inventoryRepo,
		rdb:           rdb,
		logger:        logger,
	}
}

// CreateBOMItemInput BOM行项输入
type CreateBOMItemInput struct {
	InventoryItemID string  `json:"inventory_item_id" binding:"required"`
	Quantity        float64 `json:"quantity" binding:"required,gt=0"`
	Unit            string  `json:"unit"`
	ScrapPercentage float64 `json:"scrap_percentage" binding:"gte=0,lte=100"`
	OperationID     string  `json:"operation_id"`
	ParentIndex     *int    `json:"parent_index"` // 指向items数组中的父行项，空=根
	Sequence        int     `json:"sequence"`
}

// CreateBOMRequest 创建BOM请求
type CreateBOMRequest struct {
	ProductID     string               `json:"product_id" binding:"required"`
	Revision      string               `json:"revision" binding:"required"`
	EffectiveDate time.Time            `json:"effective_date" binding:"required"`
	Notes         string               `json:"notes"`
	Items         []CreateBOMItemInput `json:"items" binding:"required,dive"`
}

// CreateBOM 创建BOM，结果为DRAFT状态
func (s *BOMService) CreateBOM(ctx context.Context, userID string, req *CreateBOMRequest) (*entity.BOM, error) {
	if _, err := s.productRepo.FindByID(ctx, req.ProductID); err != nil {
		return nil, fmt.Errorf("find product: %w", err)
	}

	exists, err := s.bomRepo.ExistsRevision(ctx, req.ProductID, req.Revision)
	if err != nil {
		return nil, fmt.Errorf("check revision: %w", err)
	}
	if exists {
		return nil, ErrDuplicateRevision
	}

	// 批量校验物料存在性，缺失的一次性全部报出
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

	now := time.Now()
	bom := &entity.BOM{
		ID:            uuid.New().String()[:32],
		ProductID:     req.ProductID,
		Revision:      req.Revision,
		EffectiveDate: req.EffectiveDate,
		Status:        entity.BOMStatusDraft,
		Notes:         req.Notes,
		CreatedBy:     userID,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	items := buildBOMItems(bom.ID, req.Items, now)

	if err := s.bomRepo.Create(ctx, bom, items); err != nil {
		return nil, fmt.Errorf("create BOM: %w", err)
	}

	bom.Items = items
	return bom, nil
}

// checkInventoryItems 校验物料主数据存在
func (s *BOMService) checkInventoryItems(ctx context.Context, ids []string) error {
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

// validateParentIndexes 父指针必须指向数组内的其他行项且无环
func validateParentIndexes(items []CreateBOMItemInput) error {
	for i, it := range items {
		if it.ParentIndex == nil {
			continue
		}
		p := *it.ParentIndex
		if p < 0 || p >= len(items) || p == i {
			return fmt.Errorf("item %d: invalid parent index %d", i, p)
		}
	}
	// 沿父链上溯，步数超过总数即有环
	for i := range items {
		steps := 0
		cur := i
		for items[cur].ParentIndex != nil {
			cur = *items[cur].ParentIndex
			steps++
			if steps > len(items) {
				return ErrCyclicBOM
			}
		}
	}
	return nil
}

// buildBOMItems 物化行项: 补齐level(根=1, 有父=父级+1)和sequence(缺省按位置)
func buildBOMItems(bomID string, inputs []CreateBOMItemInput, now time.Time) []entity.BOMItem {
	items := make([]entity.BOMItem, len(inputs))
	for i, in := range inputs {
		unit := in.Unit
		if unit == "" {
			unit = "pcs"
		}
		seq := in.Sequence
		if seq == 0 {
			seq = i + 1
		}
		items[i] = entity.BOMItem{
			ID:              uuid.New().String()[:32],
			BOMID:           bomID,
			InventoryItemID: in.InventoryItemID,
			Quantity:        in.Quantity,
			Unit:            unit,
			ScrapPercentage: in.ScrapPercentage,
			OperationID:     in.OperationID,
			Sequence:        seq,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
	}
	// 第二遍回填父ID和层级，父行项此时已有ID
	for i, in := range inputs {
		if in.ParentIndex == nil {
			items[i].Level = 1
			continue
		}
		items[i].ParentItemID = items[*in.ParentIndex].ID
	}
	for i := range items {
		if items[i].Level == 0 {
			items[i].Level = resolveLevel(items, inputs, i, 0)
		}
	}
	return items
}

func resolveLevel(items []entity.BOMItem, inputs []CreateBOMItemInput, idx, depth int) int {
	if depth > len(items) {
		return 1 // 环在validateParentIndexes已挡住，这里只是兜底
	}
	if inputs[idx].ParentIndex == nil {
		return 1
	}
	p := *inputs[idx].ParentIndex
	if items[p].Level > 0 {
		return items[p].Level + 1
	}
	return resolveLevel(items, inputs, p, depth+1) + 1
}

// GetBOMWithItems 获取BOM并从平表重建行项树
func (s *BOMService) GetBOMWithItems(ctx context.Context, bomID string) (*entity.BOM, error) {
	bom, err := s.bomRepo.FindWithItems(ctx, bomID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrBOMNotFound
		}
		return nil, fmt.Errorf("find BOM: %w", err)
	}

	roots, dangling := buildBOMTree(bom.Items)
	if len(dangling) > 0 {
		// 悬空父指针容忍为根行项，但必须留痕
		s.logger.Warn("BOM items with dangling parent treated as roots",
			zap.String("bom_id", bomID),
			zap.Strings("item_ids", dangling))
	}
	bom.Items = roots
	return bom, nil
}

// buildBOMTree 平表重建树: 先按ID建索引，再一遍线性挂接父子。
// 父指针指向本BOM之外或不存在的ID时，该行项按根处理，ID记入第二个返回值。
func buildBOMTree(items []entity.BOMItem) ([]entity.BOMItem, []string) {
	nodes := make(map[string]*entity.BOMItem, len(items))
	ordered := make([]*entity.BOMItem, 0, len(items))
	for i := range items {
		it := items[i]
		it.Children = nil
		n := &it
		nodes[it.ID] = n
		ordered = append(ordered, n)
	}

	childrenOf := make(map[string][]*entity.BOMItem)
	var roots []*entity.BOMItem
	var dangling []string
	for _, n := range ordered {
		if n.ParentItemID == "" {
			roots = append(roots, n)
			continue
		}
		if _, ok := nodes[n.ParentItemID]; !ok {
			dangling = append(dangling, n.ID)
			roots = append(roots, n)
			continue
		}
		childrenOf[n.ParentItemID] = append(childrenOf[n.ParentItemID], n)
	}

	result := make([]entity.BOMItem, 0, len(roots))
	for _, r := range roots {
		result = append(result, materialize(r, childrenOf))
	}
	return result, dangling
}

func materialize(n *entity.BOMItem, childrenOf map[string][]*entity.BOMItem) entity.BOMItem {
	out := *n
	children := childrenOf[n.ID]
	if len(children) > 0 {
		out.Children = make([]entity.BOMItem, 0, len(children))
		for _, c := range children {
			out.Children = append(out.Children, materialize(c, childrenOf))
		}
	}
	return out
}

// ApproveBOM DRAFT→APPROVED，盖审批人与时间戳。重复审批是可接受的空操作但要留日志。
func (s *BOMService) ApproveBOM(ctx context.Context, bomID, approverID string) (*entity.BOM, error) {
	bom, err := s.bomRepo.FindByID(ctx, bomID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrBOMNotFound
		}
		return nil, fmt.Errorf("find BOM: %w", err)
	}

	if bom.Status == entity.BOMStatusApproved {
		s.logger.Info("BOM already approved, no-op",
			zap.String("bom_id", bomID),
			zap.String("approver", approverID))
		return bom, nil
	}
	if bom.Status != entity.BOMStatusDraft {
		return nil, fmt.Errorf("BOM in status %s can not be approved", bom.Status)
	}

	now := time.Now()
	bom.Status = entity.BOMStatusApproved
	bom.ApprovedBy = approverID
	bom.ApprovedAt = &now
	bom.UpdatedAt = now
	if err := s.bomRepo.Update(ctx, bom); err != nil {
		return nil, fmt.Errorf("update BOM: %w", err)
	}

	s.invalidateCurrentCache(ctx, bom.ProductID)
	return bom, nil
}

// ListRevisions 产品的BOM版本历史
func (s *BOMService) ListRevisions(ctx context.Context, productID string) ([]entity.BOM, error) {
	return s.bomRepo.ListByProduct(ctx, productID)
}

// CurrentApproved 当前版本: APPROVED中effective_date最新的一条，redis读穿缓存
func (s *BOMService) CurrentApproved(ctx context.Context, productID string) (*entity.BOM, error) {
	cacheKey := "forge:bom:current:" + productID
	if s.rdb != nil {
		if id, err := s.rdb.Get(ctx, cacheKey).Result(); err == nil && id != "" {
			if bom, err := s.bomRepo.FindByID(ctx, id); err == nil && bom.Status == entity.BOMStatusApproved {
				return bom, nil
			}
		}
	}

	bom, err := s.bomRepo.FindCurrentApproved(ctx, productID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrBOMNotFound
		}
		return nil, fmt.Errorf("find current BOM: %w", err)
	}

	if s.rdb != nil {
		s.rdb.Set(ctx, cacheKey, bom.ID, currentBOMCacheTTL)
	}
	return bom, nil
}

func (s *BOMService) invalidateCurrentCache(ctx context.Context, productID string) {
	if s.rdb != nil {
		s.rdb.Del(ctx, "forge:bom:current:"+productID)
	}
}

// BOMItemCost 单行项成本
type BOMItemCost struct {
	BOMItemID       string          `json:"bom_item_id"`
	InventoryItemID string          `json:"inventory_item_id"`
	Code            string          `json:"code"`
	Name            string          `json:"name"`
	QuantityPerUnit float64         `json:"quantity_per_unit"`
	ScrapPercentage float64         `json:"scrap_percentage"`
	UnitCost        decimal.Decimal `json:"unit_cost"`
	MaterialCost    decimal.Decimal `json:"material_cost"`
	ScrapCost       decimal.Decimal `json:"scrap_cost"`
	TotalCost       decimal.Decimal `json:"total_cost"`
}

// BOMCostResult BOM成本汇总
type BOMCostResult struct {
	BOMID         string          `json:"bom_id"`
	Revision      string          `json:"revision"`
	Quantity      float64         `json:"quantity"`
	Items         []BOMItemCost   `json:"items"`
	MaterialTotal decimal.Decimal `json:"material_total"`
	ScrapTotal    decimal.Decimal `json:"scrap_total"`
	GrandTotal    decimal.Decimal `json:"grand_total"`
}

// CalculateBOMCost 成本滚算，只读，不产生副作用。
// materialCost = 单台用量 × 订单数量 × 标准成本; scrapCost = materialCost × 损耗率
func (s *BOMService) CalculateBOMCost(ctx context.Context, bomID string, quantity float64) (*BOMCostResult, error) {
	bom, err := s.bomRepo.FindWithItems(ctx, bomID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrBOMNotFound
		}
		return nil, fmt.Errorf("find BOM: %w", err)
	}

	result := costOfItems(bom.Items, quantity)
	result.BOMID = bom.ID
	result.Revision = bom.Revision
	return result, nil
}

// costOfItems 纯函数成本计算，qty线性: cost(2q) = 2·cost(q)
func costOfItems(items []entity.BOMItem, quantity float64) *BOMCostResult {
	qty := decimal.NewFromFloat(quantity)
	hundred := decimal.NewFromInt(100)

	result := &BOMCostResult{
		Quantity:      quantity,
		MaterialTotal: decimal.Zero,
		ScrapTotal:    decimal.Zero,
		GrandTotal:    decimal.Zero,
	}

	for _, it := range items {
		unitCost := decimal.Zero
		code, name := "", ""
		if it.InventoryItem != nil {
			unitCost = decimal.NewFromFloat(it.InventoryItem.StandardCost)
			code = it.InventoryItem.Code
			name = it.InventoryItem.Name
		}
		materialCost := decimal.NewFromFloat(it.Quantity).Mul(qty).Mul(unitCost)
		scrapCost := materialCost.Mul(decimal.NewFromFloat(it.ScrapPercentage)).Div(hundred)

		line := BOMItemCost{
			BOMItemID:       it.ID,
			InventoryItemID: it.InventoryItemID,
			Code:            code,
			Name:            name,
			QuantityPerUnit: it.Quantity,
			ScrapPercentage: it.ScrapPercentage,
			UnitCost:        unitCost,
			MaterialCost:    materialCost,
			ScrapCost:       scrapCost,
			TotalCost:       materialCost.Add(scrapCost),
		}
		result.Items = append(result.Items, line)
		result.MaterialTotal = result.MaterialTotal.Add(materialCost)
		result.ScrapTotal = result.ScrapTotal.Add(scrapCost)
	}

	result.GrandTotal = result.MaterialTotal.Add(result.ScrapTotal)
	return result
}
