package entity

import (
	"time"
)

// EngineeringChangeStatus 工程变更状态
const (
	ECStatusPending     = "PENDING"
	ECStatusEffective   = "EFFECTIVE"
	ECStatusImplemented = "IMPLEMENTED"
)

// EngineeringChange 工程变更记录，版本切换的不可变历史
type EngineeringChange struct {
	ID                string     `json:"id" gorm:"primaryKey;size:32"`
	ChangeNumber      string     `json:"change_number" gorm:"size:32;uniqueIndex;not null"`
	BOMID             string     `json:"bom_id" gorm:"size:32;not null;index"` // 旧版本
	NewBOMID          string     `json:"new_bom_id" gorm:"size:32;not null"`
	OldRevision       string     `json:"old_revision" gorm:"size:16;not null"`
	NewRevision       string     `json:"new_revision" gorm:"size:16;not null"`
	ChangeReason      string     `json:"change_reason" gorm:"type:text;not null"`
	EffectiveDate     time.Time  `json:"effective_date" gorm:"not null"`
	Status            string     `json:"status" gorm:"size:16;not null;default:PENDING"`
	RequestedBy       string     `json:"requested_by" gorm:"size:32;not null"`
	AffectedOrderIDs  StringList `json:"affected_order_ids" gorm:"type:jsonb"` // 创建时在产订单快照
	PropagatedAt      *time.Time `json:"propagated_at"`
	PropagatedOrders  int        `json:"propagated_orders" gorm:"default:0"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`

	OldBOM *BOM `json:"old_bom,omitempty" gorm:"foreignKey:BOMID"`
	NewBOM *BOM `json:"new_bom,omitempty" gorm:"foreignKey:NewBOMID"`
}

func (EngineeringChange) TableName() string {
	return "engineering_changes"
}
