package enums

import "fmt"

// OutboxAggregateType maps to the aggregate_type enum in Postgres.
type OutboxAggregateType string

const (
	AggregateOrder          OutboxAggregateType = "order"
	AggregatePaymentAttempt OutboxAggregateType = "payment_attempt"
	AggregateReservation    OutboxAggregateType = "reservation"
	AggregateRefund         OutboxAggregateType = "refund"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateOrder,
	AggregatePaymentAttempt,
	AggregateReservation,
	AggregateRefund,
}

// IsValid reports whether the value matches the canonical aggregate_type enum.
func (a OutboxAggregateType) IsValid() bool {
	for _, candidate := range validAggregateTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	for _, candidate := range validAggregateTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid aggregate type %q", value)
}

// OutboxEventType maps to the event_type enum in Postgres.
type OutboxEventType string

const (
	EventOrderPlaced          OutboxEventType = "order_placed"
	EventOrderPaid            OutboxEventType = "order_paid"
	EventOrderPaymentFailed   OutboxEventType = "order_payment_failed"
	EventOrderExpired         OutboxEventType = "order_expired"
	EventOrderCancelled       OutboxEventType = "order_cancelled"
	EventOrderReturned        OutboxEventType = "order_returned"
	EventOrderRefunded        OutboxEventType = "order_refunded"
	EventOrderCompleted       OutboxEventType = "order_completed"
	EventRefundRequested      OutboxEventType = "refund_requested"
	EventReconciliationNeeded OutboxEventType = "reconciliation_needed"
	EventERPOrderSync         OutboxEventType = "erp_order_sync"
	EventNotificationRequest  OutboxEventType = "notification_requested"
)

var validEventTypes = []OutboxEventType{
	EventOrderPlaced,
	EventOrderPaid,
	EventOrderPaymentFailed,
	EventOrderExpired,
	EventOrderCancelled,
	EventOrderReturned,
	EventOrderRefunded,
	EventOrderCompleted,
	EventRefundRequested,
	EventReconciliationNeeded,
	EventERPOrderSync,
	EventNotificationRequest,
}

// IsValid reports whether the value matches the canonical event_type enum.
func (e OutboxEventType) IsValid() bool {
	for _, candidate := range validEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid event type %q", value)
}

// OutboxDLQErrorReason classifies why an event was parked.
type OutboxDLQErrorReason string

const (
	OutboxDLQReasonNonRetryable OutboxDLQErrorReason = "non_retryable"
	OutboxDLQReasonMaxAttempts  OutboxDLQErrorReason = "max_attempts"
)

var validDLQReasons = []OutboxDLQErrorReason{
	OutboxDLQReasonNonRetryable,
	OutboxDLQReasonMaxAttempts,
}

// IsValid reports whether the value is a known OutboxDLQErrorReason.
func (r OutboxDLQErrorReason) IsValid() bool {
	for _, candidate := range validDLQReasons {
		if candidate == r {
			return true
		}
	}
	return false
}
