package entity

import (
	"time"
)

// StockDirection 库存流水方向
const (
	StockDirectionIn  = "IN"
	StockDirectionOut = "OUT"
)

// StockTransactionType 库存流水类型
const (
	StockTxTypeReservation = "RESERVATION" // 订单预留
	StockTxTypeRelease     = "RELEASE"     // 预留释放
	StockTxTypeConsumption = "CONSUMPTION" // 生产消耗
	StockTxTypeScrap       = "SCRAP"       // 报废
	StockTxTypeAdjust      = "ADJUST"      // 调整
)

// InventoryItem 物料主数据与库存水位
// 库存字段只允许通过仓库层的条件更新语句变更，见 repository.InventoryRepository
type InventoryItem struct {
	ID             string    `json:"id" gorm:"primaryKey;size:32"`
	Code           string    `json:"code" gorm:"size:64;uniqueIndex;not null"`
	Name           string    `json:"name" gorm:"size:128;not null"`
	Unit           string    `json:"unit" gorm:"size:16;not null;default:pcs"`
	StandardCost   float64   `json:"standard_cost" gorm:"type:decimal(15,4);default:0"`
	CurrentStock   float64   `json:"current_stock" gorm:"type:decimal(15,4);default:0"`
	AvailableStock float64   `json:"available_stock" gorm:"type:decimal(15,4);default:0"`
	ReservedStock  float64   `json:"reserved_stock" gorm:"type:decimal(15,4);default:0"`
	LeadTimeDays   int       `json:"lead_time_days" gorm:"default:0"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func (InventoryItem) TableName() string {
	return "inventory_items"
}

// StockTransaction 库存流水，只追加
type StockTransaction struct {
	ID              string    `json:"id" gorm:"primaryKey;size:32"`
	InventoryItemID string    `json:"inventory_item_id" gorm:"size:32;not null;index"`
	Direction       string    `json:"direction" gorm:"size:8;not null"`
	Type            string    `json:"type" gorm:"size:20;not null"`
	Quantity        float64   `json:"quantity" gorm:"type:decimal(15,4);not null"`
	ReferenceType   string    `json:"reference_type" gorm:"size:20"` // PO=生产订单, EC=工程变更
	ReferenceID     string    `json:"reference_id" gorm:"size:32;index"`
	Notes           string    `json:"notes" gorm:"type:text"`
	CreatedBy       string    `json:"created_by" gorm:"size:32"`
	CreatedAt       time.Time `json:"created_at"`
}

func (StockTransaction) TableName() string {
	return "stock_transactions"
}

// MaterialConsumption 物料消耗记录，只追加，创建后不再修改
type MaterialConsumption struct {
	ID                string    `json:"id" gorm:"primaryKey;size:32"`
	ProductionOrderID string    `json:"production_order_id" gorm:"size:32;not null;index"`
	InventoryItemID   string    `json:"inventory_item_id" gorm:"size:32;not null;index"`
	PlannedQty        float64   `json:"planned_qty" gorm:"type:decimal(15,4);not null"`
	ActualQty         float64   `json:"actual_qty" gorm:"type:decimal(15,4);not null"`
	Variance          float64   `json:"variance" gorm:"type:decimal(15,4);default:0"`
	Cost              float64   `json:"cost" gorm:"type:decimal(15,4);default:0"`
	RecordedBy        string    `json:"recorded_by" gorm:"size:32"`
	CreatedAt         time.Time `json:"created_at"`
}

func (MaterialConsumption) TableName() string {
	return "material_consumptions"
}

// ScrapRecord 报废记录，只追加
type ScrapRecord struct {
	ID                string    `json:"id" gorm:"primaryKey;size:32"`
	ProductionOrderID string    `json:"production_order_id" gorm:"size:32;not null;index"`
	InventoryItemID   string    `json:"inventory_item_id" gorm:"size:32;not null;index"`
	Quantity          float64   `json:"quantity" gorm:"type:decimal(15,4);not null"`
	Reason            string    `json:"reason" gorm:"type:text"`
	Cost              float64   `json:"cost" gorm:"type:decimal(15,4);default:0"`
	RecordedBy        string    `json:"recorded_by" gorm:"size:32"`
	CreatedAt         time.Time `json:"created_at"`
}

func (ScrapRecord) TableName() string {
	return "scrap_records"
}
