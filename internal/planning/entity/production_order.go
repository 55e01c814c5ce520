package entity

import (
	"time"
)

// ProductionOrderStatus 生产订单状态
const (
	OrderStatusDraft      = "DRAFT"
	OrderStatusPlanned    = "PLANNED"
	OrderStatusInProgress = "IN_PROGRESS"
	OrderStatusCompleted  = "COMPLETED"
	OrderStatusCancelled  = "CANCELLED"
)

// OperationStatus 订单工序状态
const (
	OpStatusPending    = "PENDING"
	OpStatusInProgress = "IN_PROGRESS"
	OpStatusCompleted  = "COMPLETED"
	OpStatusSkipped    = "SKIPPED"
)

// ProductionOrder 生产订单
type ProductionOrder struct {
	ID                 string     `json:"id" gorm:"primaryKey;size:32"`
	OrderNumber        string     `json:"order_number" gorm:"size:32;uniqueIndex;not null"`
	SalesOrderRef      string     `json:"sales_order_ref" gorm:"size:64"`
	BOMID              string     `json:"bom_id" gorm:"size:32;not null;index"`
	Quantity           float64    `json:"quantity" gorm:"type:decimal(15,4);not null"`
	ScheduledStartDate time.Time  `json:"scheduled_start_date"`
	ScheduledEndDate   time.Time  `json:"scheduled_end_date"`
	ActualStartDate    *time.Time `json:"actual_start_date"`
	ActualEndDate      *time.Time `json:"actual_end_date"`
	Status             string     `json:"status" gorm:"size:16;not null;default:PLANNED;index"`
	Priority           int        `json:"priority" gorm:"default:5"` // 1..10
	BufferDays         int        `json:"buffer_days" gorm:"default:0"`
	BranchID           string     `json:"branch_id" gorm:"size:32;index"`
	Notes              string     `json:"notes" gorm:"type:text"`
	CreatedBy          string     `json:"created_by" gorm:"size:32;not null"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`

	// 关联
	BOM        *BOM                       `json:"bom,omitempty" gorm:"foreignKey:BOMID"`
	Operations []ProductionOrderOperation `json:"operations,omitempty" gorm:"foreignKey:ProductionOrderID"`
}

func (ProductionOrder) TableName() string {
	return "production_orders"
}

// ProductionOrderOperation 订单工序排程
type ProductionOrderOperation struct {
	ID                string     `json:"id" gorm:"primaryKey;size:32"`
	ProductionOrderID string     `json:"production_order_id" gorm:"size:32;not null;index"`
	OperationID       string     `json:"operation_id" gorm:"size:32;not null"`
	WorkCenterID      string     `json:"work_center_id" gorm:"size:32;not null;index"`
	Sequence          int        `json:"sequence" gorm:"not null"`
	ScheduledStart    time.Time  `json:"scheduled_start"`
	ScheduledEnd      time.Time  `json:"scheduled_end"`
	ActualStart       *time.Time `json:"actual_start"`
	ActualEnd         *time.Time `json:"actual_end"`
	RequiredHours     float64    `json:"required_hours" gorm:"type:decimal(8,2);not null"`
	CapacityDate      time.Time  `json:"capacity_date" gorm:"type:date"`
	CapacityShift     string     `json:"capacity_shift" gorm:"size:8;default:DAY"`
	Status            string     `json:"status" gorm:"size:16;not null;default:PENDING"`
	AssignedOperator  string     `json:"assigned_operator" gorm:"size:32"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`

	Operation *Operation `json:"operation,omitempty" gorm:"foreignKey:OperationID"`
}

func (ProductionOrderOperation) TableName() string {
	return "production_order_operations"
}

// SequenceCounter 按期间的单调编号计数器，避免扫描既有单号取最大值
type SequenceCounter struct {
	Scope     string    `json:"scope" gorm:"primaryKey;size:16"`  // PO / EC
	Period    string    `json:"period" gorm:"primaryKey;size:16"` // 如 20241212 / 2024
	Value     int64     `json:"value" gorm:"not null;default:0"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (SequenceCounter) TableName() string {
	return "sequence_counters"
}
