package entity

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"gorm.io/gorm"
)

// StringList 字符串数组，存为jsonb
type StringList []string

func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return nil, nil
	}
	return json.Marshal(l)
}

func (l *StringList) Scan(value interface{}) error {
	if value == nil {
		*l = nil
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return fmt.Errorf("failed to scan StringList: %v", value)
	}
	return json.Unmarshal(bytes, l)
}

// JSONB JSONB类型
type JSONB map[string]interface{}

func (j JSONB) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

func (j *JSONB) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return fmt.Errorf("failed to scan JSONB: %v", value)
	}
	return json.Unmarshal(bytes, j)
}

// AutoMigrate 自动迁移所有排产表
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		// 基础数据
		&Product{},
		&InventoryItem{},
		&WorkCenter{},
		&Operation{},

		// 产能
		&CapacitySchedule{},

		// BOM
		&BOM{},
		&BOMItem{},

		// 生产订单
		&ProductionOrder{},
		&ProductionOrderOperation{},

		// 物料台账
		&StockTransaction{},
		&MaterialConsumption{},
		&ScrapRecord{},

		// 工程变更
		&EngineeringChange{},

		// 编号计数器
		&SequenceCounter{},
	)
}
