package entity

import (
	"time"
)

// ProductStatus 产品状态
const (
	ProductStatusActive   = "active"
	ProductStatusInactive = "inactive"
)

// Product 产品主数据
type Product struct {
	ID         string    `json:"id" gorm:"primaryKey;size:32"`
	Code       string    `json:"code" gorm:"size:64;uniqueIndex;not null"`
	Name       string    `json:"name" gorm:"size:128;not null"`
	Status     string    `json:"status" gorm:"size:16;not null;default:active"`
	Attributes JSONB     `json:"attributes,omitempty" gorm:"type:jsonb"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`

	BOMs []BOM `json:"boms,omitempty" gorm:"foreignKey:ProductID"`
}

func (Product) TableName() string {
	return "products"
}
