package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/deshcart/deshcart-backend/pkg/enums"
)

// Address is the delivery snapshot captured at checkout. Orders keep a copy,
// never a live reference into the customer profile.
type Address struct {
	Name       string `json:"name"`
	Phone      string `json:"phone"`
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	Area       string `json:"area"`
	City       string `json:"city"`
	District   string `json:"district"`
	PostalCode string `json:"postal_code"`
}

// Order is one checkout attempt. Rows are never deleted; terminal states are
// retained for audit.
type Order struct {
	ID                  uuid.UUID            `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderNumber         string               `gorm:"column:order_number;uniqueIndex;not null"`
	CustomerID          string               `gorm:"column:customer_id;not null"`
	CustomerEmail       string               `gorm:"column:customer_email;not null"`
	DeliveryAddress     Address              `gorm:"column:delivery_address;type:jsonb;serializer:json"`
	Currency            enums.Currency       `gorm:"column:currency;type:text;not null;default:'BDT'"`
	Status              enums.OrderStatus    `gorm:"column:status;type:order_status;not null;default:'draft'"`
	PaymentMethod       enums.PaymentMethod  `gorm:"column:payment_method;type:payment_method;not null"`
	DeliveryMethod      enums.DeliveryMethod `gorm:"column:delivery_method;type:delivery_method;not null;default:'courier'"`
	SubtotalCents       int64                `gorm:"column:subtotal_cents;not null"`
	ShippingCents       int64                `gorm:"column:shipping_cents;not null;default:0"`
	TaxCents            int64                `gorm:"column:tax_cents;not null;default:0"`
	DiscountCents       int64                `gorm:"column:discount_cents;not null;default:0"`
	TotalCents          int64                `gorm:"column:total_cents;not null"`
	CollectOnDelivery   bool                 `gorm:"column:collect_on_delivery;not null;default:false"`
	NeedsReconciliation bool                 `gorm:"column:needs_reconciliation;not null;default:false"`
	PaymentRef          *string              `gorm:"column:payment_ref"`
	ERPRef              *string              `gorm:"column:erp_ref"`
	PaidAt              *time.Time           `gorm:"column:paid_at"`
	CancelledAt         *time.Time           `gorm:"column:cancelled_at"`
	Items               []OrderLineItem      `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	StateHistory        []OrderStateChange   `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt           time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt           time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}

// OrderLineItem captures SKU, quantity, and the unit price at order time. The
// price is never re-read from the catalog after creation.
type OrderLineItem struct {
	ID             uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID        uuid.UUID `gorm:"column:order_id;type:uuid;not null;index"`
	SKU            string    `gorm:"column:sku;not null"`
	Name           string    `gorm:"column:name;not null"`
	Qty            int       `gorm:"column:qty;not null"`
	UnitPriceCents int64     `gorm:"column:unit_price_cents;not null"`
	TotalCents     int64     `gorm:"column:total_cents;not null"`
	CreatedAt      time.Time `gorm:"column:created_at;autoCreateTime"`
}

// OrderStateChange is one entry of the append-only state history.
type OrderStateChange struct {
	ID        uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID   uuid.UUID         `gorm:"column:order_id;type:uuid;not null;index"`
	FromState enums.OrderStatus `gorm:"column:from_state;type:order_status;not null"`
	ToState   enums.OrderStatus `gorm:"column:to_state;type:order_status;not null"`
	Actor     string            `gorm:"column:actor;not null"`
	Reason    *string           `gorm:"column:reason"`
	CreatedAt time.Time         `gorm:"column:created_at;autoCreateTime"`
}

// OrderNumberCounter backs the human-readable per-day order codes.
type OrderNumberCounter struct {
	Day     string `gorm:"column:day;primaryKey"`
	LastSeq int64  `gorm:"column:last_seq;not null;default:0"`
}

func (OrderNumberCounter) TableName() string { return "order_number_counters" }
