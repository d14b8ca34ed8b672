package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/deshcart/deshcart-backend/pkg/enums"
)

// InventoryItem tracks stock counts per SKU. The invariant available + reserved
// == on_hand holds across reserve/commit/release.
type InventoryItem struct {
	SKU          string    `gorm:"column:sku;primaryKey"`
	OnHandQty    int       `gorm:"column:on_hand_qty;not null;default:0"`
	AvailableQty int       `gorm:"column:available_qty;not null;default:0"`
	ReservedQty  int       `gorm:"column:reserved_qty;not null;default:0"`
	UpdatedAt    time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// ReservationLine is one (SKU, qty) pair inside a reservation.
type ReservationLine struct {
	SKU string `json:"sku"`
	Qty int    `json:"qty"`
}

// InventoryReservation is a time-bounded claim on stock tied to one order.
// At most one non-released reservation exists per order.
type InventoryReservation struct {
	ID        uuid.UUID               `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID   uuid.UUID               `gorm:"column:order_id;type:uuid;not null;index"`
	Lines     []ReservationLine       `gorm:"column:lines;type:jsonb;serializer:json"`
	Status    enums.ReservationStatus `gorm:"column:status;type:reservation_status;not null;default:'active'"`
	ExpiresAt time.Time               `gorm:"column:expires_at;not null"`
	CreatedAt time.Time               `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time               `gorm:"column:updated_at;autoUpdateTime"`
}
