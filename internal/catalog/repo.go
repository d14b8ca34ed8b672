package catalog

import (
	"context"

	"gorm.io/gorm"

	"github.com/deshcart/deshcart-backend/pkg/db/models"
)

// Repository exposes read access to the product catalog.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindBySKUs(ctx context.Context, skus []string) ([]models.Product, error)
	FindBySKU(ctx context.Context, sku string) (*models.Product, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a catalog repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindBySKUs(ctx context.Context, skus []string) ([]models.Product, error) {
	if len(skus) == 0 {
		return nil, nil
	}
	var rows []models.Product
	err := r.db.WithContext(ctx).
		Where("sku IN ?", skus).
		Find(&rows).Error
	return rows, err
}

func (r *repository) FindBySKU(ctx context.Context, sku string) (*models.Product, error) {
	var product models.Product
	err := r.db.WithContext(ctx).Where("sku = ?", sku).First(&product).Error
	if err != nil {
		return nil, err
	}
	return &product, nil
}
