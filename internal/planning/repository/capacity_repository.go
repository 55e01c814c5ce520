package repository

import (
	"context"
	"time"

	"github.com/hexafab/forge/internal/planning/entity"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type CapacityRepository struct {
	db *gorm.DB
}

func NewCapacityRepository(db *gorm.DB) *CapacityRepository {
	return &CapacityRepository{db: db}
}

// Upsert 维护产能日历，(work_center_id, date, shift) 唯一
func (r *CapacityRepository) Upsert(ctx context.Context, cs *entity.CapacitySchedule) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "work_center_id"}, {Name: "date"}, {Name: "shift"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"available_hours", "efficiency", "updated_at",
		}),
	}).Create(cs).Error
}

// Window 取工作中心自from起days天内的产能行，按日期班次排序
func (r *CapacityRepository) Window(ctx context.Context, workCenterID string, from time.Time, days int) ([]entity.CapacitySchedule, error) {
	to := from.AddDate(0, 0, days)
	var rows []entity.CapacitySchedule
	err := r.db.WithContext(ctx).
		Where("work_center_id = ? AND date >= ? AND date < ?",
			workCenterID, from.Format("2006-01-02"), to.Format("2006-01-02")).
		Order("date, shift").
		Find(&rows).Error
	return rows, err
}

// Book 条件预订: 仅当累加后不超过可用工时才生效，靠单条UPDATE保证原子性。
// 返回false表示该行已被并发订满，调用方需重新选槽。
func (r *CapacityRepository) Book(ctx context.Context, scheduleID string, hours float64) (bool, error) {
	res := r.db.WithContext(ctx).Model(&entity.CapacitySchedule{}).
		Where("id = ? AND booked_hours + ? <= available_hours", scheduleID, hours).
		Updates(map[string]interface{}{
			"booked_hours": gorm.Expr("booked_hours + ?", hours),
			"updated_at":   time.Now(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// Release 释放预订工时，下限钳到0，用于补偿回滚与订单取消
func (r *CapacityRepository) Release(ctx context.Context, scheduleID string, hours float64) error {
	return r.db.WithContext(ctx).Model(&entity.CapacitySchedule{}).
		Where("id = ?", scheduleID).
		Updates(map[string]interface{}{
			"booked_hours": gorm.Expr("GREATEST(booked_hours - ?, 0)", hours),
			"updated_at":   time.Now(),
		}).Error
}

// FindBySlot 按(工作中心,日期,班次)取产能行
func (r *CapacityRepository) FindBySlot(ctx context.Context, workCenterID string, date time.Time, shift string) (*entity.CapacitySchedule, error) {
	var cs entity.CapacitySchedule
	err := r.db.WithContext(ctx).
		Where("work_center_id = ? AND date = ? AND shift = ?",
			workCenterID, date.Format("2006-01-02"), shift).
		First(&cs).Error
	if err != nil {
		return nil, wrapNotFound(err)
	}
	return &cs, nil
}

// UtilizationRow 工作中心按日利用率
type UtilizationRow struct {
	WorkCenterID   string    `json:"work_center_id"`
	WorkCenterCode string    `json:"work_center_code"`
	Date           time.Time `json:"date"`
	Shift          string    `json:"shift"`
	AvailableHours float64   `json:"available_hours"`
	BookedHours    float64   `json:"booked_hours"`
	Utilization    float64   `json:"utilization"` // 百分比
}

// Utilization 按日/工作中心利用率读模型
func (r *CapacityRepository) Utilization(ctx context.Context, workCenterID string, from, to time.Time) ([]UtilizationRow, error) {
	query := r.db.WithContext(ctx).Table("capacity_schedules cs").
		Select(`cs.work_center_id, wc.code AS work_center_code, cs.date, cs.shift,
			cs.available_hours, cs.booked_hours,
			CASE WHEN cs.available_hours > 0
				THEN ROUND((cs.booked_hours / cs.available_hours * 100)::numeric, 2)
				ELSE 0 END AS utilization`).
		Joins("JOIN work_centers wc ON wc.id = cs.work_center_id").
		Where("cs.date >= ? AND cs.date <= ?", from.Format("2006-01-02"), to.Format("2006-01-02"))
	if workCenterID != "" {
		query = query.Where("cs.work_center_id = ?", workCenterID)
	}
	var rows []UtilizationRow
	err := query.Order("cs.work_center_id, cs.date, cs.shift").Scan(&rows).Error
	return rows, err
}
