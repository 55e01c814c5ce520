package service

import (
	"errors"
	"fmt"
	"strings"
)

// 领域错误，均为同步且不可重试: 输入不变重试必然复现同样的失败。
// 仅基础设施错误(库不可达)才是重试候选，且重试策略属于调用方。
var (
	ErrBOMNotFound            = errors.New("BOM not found")
	ErrDuplicateCode          = errors.New("code already exists")
	ErrDuplicateRevision      = errors.New("BOM revision already exists for product")
	ErrBOMNotApproved         = errors.New("BOM is not approved")
	ErrOrderNotFound          = errors.New("production order not found")
	ErrInvalidTransition      = errors.New("invalid production order status transition")
	ErrOrderNotReschedulable  = errors.New("production order can not be rescheduled in current status")
	ErrOperationCountChanged  = errors.New("operation count changed since original schedule")
	ErrCyclicBOM              = errors.New("BOM items contain a cycle")
)

// UnknownInventoryItemError BOM行项引用了不存在的物料
type UnknownInventoryItemError struct {
	ItemIDs []string
}

func (e *UnknownInventoryItemError) Error() string {
	return fmt.Sprintf("unknown inventory items: %s", strings.Join(e.ItemIDs, ", "))
}

// MaterialShortage 单个物料缺口
type MaterialShortage struct {
	InventoryItemID string  `json:"inventory_item_id"`
	Code            string  `json:"code"`
	Required        float64 `json:"required"`
	Available       float64 `json:"available"`
}

// InsufficientMaterialError 物料不足，一次性列出全部缺口而不是首个
type InsufficientMaterialError struct {
	Shortages []MaterialShortage
}

func (e *InsufficientMaterialError) Error() string {
	codes := make([]string, 0, len(e.Shortages))
	for _, s := range e.Shortages {
		codes = append(codes, fmt.Sprintf("%s(need %.4f, have %.4f)", s.Code, s.Required, s.Available))
	}
	return fmt.Sprintf("insufficient material: %s", strings.Join(codes, "; "))
}

// NoCapacityError 扫描窗口内找不到满足工时的产能槽
type NoCapacityError struct {
	OperationID   string
	OperationCode string
	WorkCenterID  string
	RequiredHours float64
	ScanDays      int
}

func (e *NoCapacityError) Error() string {
	return fmt.Sprintf("no capacity available for operation %s on work center %s: need %.2f hours within %d days",
		e.OperationCode, e.WorkCenterID, e.RequiredHours, e.ScanDays)
}
