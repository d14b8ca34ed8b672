package payloads

import (
	"time"

	"github.com/google/uuid"

	"github.com/deshcart/deshcart-backend/pkg/enums"
)

// OrderLine is the event-facing view of one order line.
type OrderLine struct {
	SKU            string `json:"sku"`
	Qty            int    `json:"qty"`
	UnitPriceCents int64  `json:"unit_price_cents"`
}

// OrderPlacedEvent signals an order entered pending_payment with stock reserved.
type OrderPlacedEvent struct {
	OrderID       uuid.UUID           `json:"order_id"`
	OrderNumber   string              `json:"order_number"`
	CustomerID    uuid.UUID           `json:"customer_id"`
	PaymentMethod enums.PaymentMethod `json:"payment_method"`
	TotalCents    int64               `json:"total_cents"`
	Currency      enums.Currency      `json:"currency"`
	Lines         []OrderLine         `json:"lines"`
}

// OrderPaidEvent is emitted once a payment attempt is confirmed and stock committed.
type OrderPaidEvent struct {
	OrderID     uuid.UUID `json:"order_id"`
	OrderNumber string    `json:"order_number"`
	AttemptID   uuid.UUID `json:"attempt_id"`
	Gateway     string    `json:"gateway"`
	AmountCents int64     `json:"amount_cents"`
	PaidAt      time.Time `json:"paid_at"`
}

// PaymentFailedEvent reports a declined or timed-out attempt.
type PaymentFailedEvent struct {
	OrderID   uuid.UUID `json:"order_id"`
	AttemptID uuid.UUID `json:"attempt_id"`
	Gateway   string    `json:"gateway"`
	Reason    string    `json:"reason,omitempty"`
}

// OrderExpiredEvent is emitted when the reservation sweep expires a pending order.
type OrderExpiredEvent struct {
	OrderID       uuid.UUID `json:"order_id"`
	ReservationID uuid.UUID `json:"reservation_id"`
	ExpiredAt     time.Time `json:"expired_at"`
}

// OrderCancelledEvent covers customer and operator cancellations.
type OrderCancelledEvent struct {
	OrderID     uuid.UUID `json:"order_id"`
	CancelledAt time.Time `json:"cancelled_at"`
	Reason      string    `json:"reason,omitempty"`
}

// OrderReturnedEvent is emitted when a completed order enters the return flow.
type OrderReturnedEvent struct {
	OrderID     uuid.UUID `json:"order_id"`
	RequestedAt time.Time `json:"requested_at"`
	Reason      string    `json:"reason,omitempty"`
}

// OrderRefundedEvent closes the return flow once funds are reversed.
type OrderRefundedEvent struct {
	OrderID     uuid.UUID `json:"order_id"`
	RefundID    uuid.UUID `json:"refund_id"`
	AmountCents int64     `json:"amount_cents"`
	GatewayRef  string    `json:"gateway_ref,omitempty"`
}

// OrderCompletedEvent marks successful delivery.
type OrderCompletedEvent struct {
	OrderID     uuid.UUID `json:"order_id"`
	CompletedAt time.Time `json:"completed_at"`
}

// RefundRequestedEvent asks the refund worker to push a reversal to the gateway.
type RefundRequestedEvent struct {
	RefundID    uuid.UUID `json:"refund_id"`
	OrderID     uuid.UUID `json:"order_id"`
	AttemptID   uuid.UUID `json:"attempt_id"`
	AmountCents int64     `json:"amount_cents"`
	Reason      string    `json:"reason"`
}

// ReconciliationNeededEvent flags an order whose money and stock state diverged.
type ReconciliationNeededEvent struct {
	OrderID   uuid.UUID `json:"order_id"`
	AttemptID uuid.UUID `json:"attempt_id"`
	Reason    string    `json:"reason"`
}

// ERPOrderSyncEvent mirrors a settled order into the back-office ERP feed.
type ERPOrderSyncEvent struct {
	OrderID     uuid.UUID         `json:"order_id"`
	OrderNumber string            `json:"order_number"`
	Status      enums.OrderStatus `json:"status"`
	TotalCents  int64             `json:"total_cents"`
}

// NotificationRequestedEvent tells downstream systems to message the customer.
type NotificationRequestedEvent struct {
	OrderID    uuid.UUID `json:"order_id"`
	CustomerID uuid.UUID `json:"customer_id"`
	Type       string    `json:"type"`
}
