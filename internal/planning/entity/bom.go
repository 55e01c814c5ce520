package entity

import (
	"time"
)

// BOMStatus BOM状态
const (
	BOMStatusDraft    = "DRAFT"
	BOMStatusApproved = "APPROVED"
	BOMStatusObsolete = "OBSOLETE"
)

// BOM 物料清单版本
type BOM struct {
	ID                   string     `json:"id" gorm:"primaryKey;size:32"`
	ProductID            string     `json:"product_id" gorm:"size:32;not null;uniqueIndex:idx_bom_product_revision"`
	Revision             string     `json:"revision" gorm:"size:16;not null;uniqueIndex:idx_bom_product_revision"`
	EffectiveDate        time.Time  `json:"effective_date" gorm:"not null"`
	Status               string     `json:"status" gorm:"size:16;not null;default:DRAFT;index"`
	EngineeringChangeRef string     `json:"engineering_change_ref" gorm:"size:32"`
	ApprovedBy           string     `json:"approved_by" gorm:"size:32"`
	ApprovedAt           *time.Time `json:"approved_at"`
	Notes                string     `json:"notes" gorm:"type:text"`
	CreatedBy            string     `json:"created_by" gorm:"size:32;not null"`
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at"`

	// 关联
	Product *Product  `json:"product,omitempty" gorm:"foreignKey:ProductID"`
	Items   []BOMItem `json:"items,omitempty" gorm:"foreignKey:BOMID"`
}

func (BOM) TableName() string {
	return "boms"
}

// BOMItem BOM行项，平表存储，父指针构成树
type BOMItem struct {
	ID              string    `json:"id" gorm:"primaryKey;size:32"`
	BOMID           string    `json:"bom_id" gorm:"size:32;not null;index"`
	InventoryItemID string    `json:"inventory_item_id" gorm:"size:32;not null"`
	Quantity        float64   `json:"quantity" gorm:"type:decimal(15,4);not null"` // 单台用量
	Unit            string    `json:"unit" gorm:"size:16;not null;default:pcs"`
	ScrapPercentage float64   `json:"scrap_percentage" gorm:"type:decimal(6,2);default:0"` // [0,100]
	OperationID     string    `json:"operation_id" gorm:"size:32"`
	Level           int       `json:"level" gorm:"not null;default:1"`
	ParentItemID    string    `json:"parent_item_id" gorm:"size:32"`
	Sequence        int       `json:"sequence" gorm:"not null;default:0"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`

	// 关联
	InventoryItem *InventoryItem `json:"inventory_item,omitempty" gorm:"foreignKey:InventoryItemID"`
	Operation     *Operation     `json:"operation,omitempty" gorm:"foreignKey:OperationID"`
	Children      []BOMItem      `json:"children,omitempty" gorm:"-"`
}

func (BOMItem) TableName() string {
	return "bom_items"
}
