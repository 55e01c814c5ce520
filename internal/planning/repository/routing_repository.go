package repository

import (
	"context"

	"github.com/hexafab/forge/internal/planning/entity"
	"gorm.io/gorm"
)

type RoutingRepository struct {
	db *gorm.DB
}

func NewRoutingRepository(db *gorm.DB) *RoutingRepository {
	return &RoutingRepository{db: db}
}

func (r *RoutingRepository) CreateWorkCenter(ctx context.Context, wc *entity.WorkCenter) error {
	return r.db.WithContext(ctx).Create(wc).Error
}

func (r *RoutingRepository) FindWorkCenterByID(ctx context.Context, id string) (*entity.WorkCenter, error) {
	var wc entity.WorkCenter
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&wc).Error; err != nil {
		return nil, wrapNotFound(err)
	}
	return &wc, nil
}

func (r *RoutingRepository) ListWorkCenters(ctx context.Context) ([]entity.WorkCenter, error) {
	var wcs []entity.WorkCenter
	err := r.db.WithContext(ctx).Order("code").Find(&wcs).Error
	return wcs, err
}

func (r *RoutingRepository) CreateOperation(ctx context.Context, op *entity.Operation) error {
	return r.db.WithContext(ctx).Create(op).Error
}

func (r *RoutingRepository) FindOperationByID(ctx context.Context, id string) (*entity.Operation, error) {
	var op entity.Operation
	if err := r.db.WithContext(ctx).Preload("WorkCenter").Where("id = ?", id).First(&op).Error; err != nil {
		return nil, wrapNotFound(err)
	}
	return &op, nil
}

// FindOperationsByIDs 按ID集合取工序，结果按sequence排序
func (r *RoutingRepository) FindOperationsByIDs(ctx context.Context, ids []string) ([]entity.Operation, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var ops []entity.Operation
	err := r.db.WithContext(ctx).
		Preload("WorkCenter").
		Where("id IN ?", ids).
		Order("sequence").
		Find(&ops).Error
	return ops, err
}

func (r *RoutingRepository) ListOperations(ctx context.Context, workCenterID string) ([]entity.Operation, error) {
	query := r.db.WithContext(ctx).Model(&entity.Operation{})
	if workCenterID != "" {
		query = query.Where("work_center_id = ?", workCenterID)
	}
	var ops []entity.Operation
	err := query.Order("sequence").Find(&ops).Error
	return ops, err
}
