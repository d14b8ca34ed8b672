package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/deshcart/deshcart-backend/pkg/enums"
)

// PaymentAttempt is one gateway-facing attempt to collect funds for an order.
// A confirmed attempt is append-only; refunds live in their own records.
type PaymentAttempt struct {
	ID          uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID     uuid.UUID           `gorm:"column:order_id;type:uuid;not null;index"`
	Gateway     string              `gorm:"column:gateway;not null"`
	GatewayRef  *string             `gorm:"column:gateway_ref"`
	AmountCents int64               `gorm:"column:amount_cents;not null"`
	Currency    enums.Currency      `gorm:"column:currency;type:text;not null"`
	Status      enums.AttemptStatus `gorm:"column:status;type:attempt_status;not null;default:'initiated'"`
	RawCallback json.RawMessage     `gorm:"column:raw_callback;type:jsonb"`
	Signature   *string             `gorm:"column:signature"`
	Disputed    bool                `gorm:"column:disputed;not null;default:false"`
	SettledAt   *time.Time          `gorm:"column:settled_at"`
	CreatedAt   time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

// Refund reverses all or part of a confirmed attempt.
type Refund struct {
	ID          uuid.UUID          `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	AttemptID   uuid.UUID          `gorm:"column:attempt_id;type:uuid;not null;index"`
	OrderID     uuid.UUID          `gorm:"column:order_id;type:uuid;not null;index"`
	AmountCents int64              `gorm:"column:amount_cents;not null"`
	Status      enums.RefundStatus `gorm:"column:status;type:refund_status;not null;default:'pending'"`
	Reason      string             `gorm:"column:reason;not null"`
	GatewayRef  *string            `gorm:"column:gateway_ref"`
	CreatedAt   time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}
