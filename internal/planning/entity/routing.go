package entity

import (
	"time"
)

// Shift 班次
const (
	ShiftDay   = "DAY"
	ShiftNight = "NIGHT"
)

// WorkCenter 工作中心
type WorkCenter struct {
	ID        string    `json:"id" gorm:"primaryKey;size:32"`
	Code      string    `json:"code" gorm:"size:64;uniqueIndex;not null"`
	Name      string    `json:"name" gorm:"size:128;not null"`
	Type      string    `json:"type" gorm:"size:32"`
	Capacity  float64   `json:"capacity" gorm:"type:decimal(8,2);default:8"` // 每班可用工时
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (WorkCenter) TableName() string {
	return "work_centers"
}

// Operation 工序主数据
type Operation struct {
	ID           string    `json:"id" gorm:"primaryKey;size:32"`
	Code         string    `json:"code" gorm:"size:64;uniqueIndex;not null"`
	Name         string    `json:"name" gorm:"size:128;not null"`
	WorkCenterID string    `json:"work_center_id" gorm:"size:32;not null;index"`
	SetupTime    float64   `json:"setup_time" gorm:"type:decimal(10,2);default:0"` // 分钟
	RunTime      float64   `json:"run_time" gorm:"type:decimal(10,4);default:0"`   // 分钟/件
	Sequence     int       `json:"sequence" gorm:"not null;default:0"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`

	WorkCenter *WorkCenter `json:"work_center,omitempty" gorm:"foreignKey:WorkCenterID"`
}

func (Operation) TableName() string {
	return "operations"
}

// CapacitySchedule 工作中心按日按班次的产能台账
// 不变量: 0 <= booked_hours <= available_hours，由条件更新语句保证
type CapacitySchedule struct {
	ID             string    `json:"id" gorm:"primaryKey;size:32"`
	WorkCenterID   string    `json:"work_center_id" gorm:"size:32;not null;uniqueIndex:idx_capacity_wc_date_shift"`
	Date           time.Time `json:"date" gorm:"type:date;not null;uniqueIndex:idx_capacity_wc_date_shift"`
	Shift          string    `json:"shift" gorm:"size:8;not null;default:DAY;uniqueIndex:idx_capacity_wc_date_shift"`
	AvailableHours float64   `json:"available_hours" gorm:"type:decimal(8,2);not null"`
	BookedHours    float64   `json:"booked_hours" gorm:"type:decimal(8,2);not null;default:0"`
	Efficiency     float64   `json:"efficiency" gorm:"type:decimal(5,2);default:100"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`

	WorkCenter *WorkCenter `json:"work_center,omitempty" gorm:"foreignKey:WorkCenterID"`
}

func (CapacitySchedule) TableName() string {
	return "capacity_schedules"
}

// RemainingHours 剩余可预订工时
func (c *CapacitySchedule) RemainingHours() float64 {
	return c.AvailableHours - c.BookedHours
}
