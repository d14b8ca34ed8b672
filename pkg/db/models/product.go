package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/deshcart/deshcart-backend/pkg/enums"
)

// Product is the catalog entry a checkout line refers to by SKU.
type Product struct {
	ID          uuid.UUID      `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	SKU         string         `gorm:"column:sku;uniqueIndex;not null"`
	Name        string         `gorm:"column:name;not null"`
	Description string         `gorm:"column:description"`
	PriceCents  int64          `gorm:"column:price_cents;not null"`
	Currency    enums.Currency `gorm:"column:currency;type:text;not null;default:'BDT'"`
	Active      bool           `gorm:"column:active;not null"`
	CreatedAt   time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}
