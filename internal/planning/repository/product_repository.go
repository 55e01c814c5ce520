package repository

import (
	"context"

	"github.com/hexafab/forge/internal/planning/entity"
	"gorm.io/gorm"
)

type ProductRepository struct {
	db *gorm.DB
}

func NewProductRepository(db *gorm.DB) *ProductRepository {
	return &ProductRepository{db: db}
}

func (r *ProductRepository) Create(ctx context.Context, p *entity.Product) error {
	return r.db.WithContext(ctx).Create(p).Error
}

func (r *ProductRepository) FindByID(ctx context.Context, id string) (*entity.Product, error) {
	var p entity.Product
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&p).Error; err != nil {
		return nil, wrapNotFound(err)
	}
	return &p, nil
}

func (r *ProductRepository) FindByCode(ctx context.Context, code string) (*entity.Product, error) {
	var p entity.Product
	if err := r.db.WithContext(ctx).Where("code = ?", code).First(&p).Error; err != nil {
		return nil, wrapNotFound(err)
	}
	return &p, nil
}

func (r *ProductRepository) List(ctx context.Context, page, size int) ([]entity.Product, int64, error) {
	query := r.db.WithContext(ctx).Model(&entity.Product{})
	var total int64
	query.Count(&total)
	if page <= 0 {
		page = 1
	}
	if size <= 0 {
		size = 20
	}
	var products []entity.Product
	err := query.Order("code").Offset((page - 1) * size).Limit(size).Find(&products).Error
	return products, total, err
}
