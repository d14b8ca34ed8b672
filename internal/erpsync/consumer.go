package erpsync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/deshcart/deshcart-backend/pkg/enums"
	"github.com/deshcart/deshcart-backend/pkg/logger"
	"github.com/deshcart/deshcart-backend/pkg/outbox/payloads"
)

// ErrUnsupportedEvent marks event types this consumer does not handle. The
// worker acks such messages without touching the idempotency guard.
var ErrUnsupportedEvent = errors.New("unsupported event type")

// Envelope is the decoded form of one ERP feed message.
type Envelope struct {
	EventID       string
	EventType     enums.OutboxEventType
	AggregateType enums.OutboxAggregateType
	AggregateID   string
	OccurredAt    time.Time
	Payload       json.RawMessage
}

// Pusher hands one settled order to the ERP and returns its acknowledgment reference.
type Pusher interface {
	SyncOrder(ctx context.Context, event payloads.ERPOrderSyncEvent) (string, error)
}

type orderUpdater interface {
	Update(ctx context.Context, id uuid.UUID, updates map[string]any) error
}

// Consumer forwards order sync events to the ERP and records the returned
// reference on the order row.
type Consumer struct {
	pusher Pusher
	orders orderUpdater
	logg   *logger.Logger
}

// NewConsumer builds the ERP sync handler.
func NewConsumer(pusher Pusher, orders orderUpdater, logg *logger.Logger) (*Consumer, error) {
	if pusher == nil {
		return nil, errors.New("erp pusher is required")
	}
	if orders == nil {
		return nil, errors.New("order repository is required")
	}
	if logg == nil {
		return nil, errors.New("logger is required")
	}
	return &Consumer{pusher: pusher, orders: orders, logg: logg}, nil
}

// Handle pushes the order to the ERP and stores the acknowledgment reference.
func (c *Consumer) Handle(ctx context.Context, envelope Envelope) error {
	if envelope.EventType != enums.EventERPOrderSync {
		return ErrUnsupportedEvent
	}

	var event payloads.ERPOrderSyncEvent
	if err := json.Unmarshal(envelope.Payload, &event); err != nil {
		return fmt.Errorf("decode erp sync payload: %w", err)
	}
	if event.OrderID == uuid.Nil {
		return errors.New("erp sync payload missing order id")
	}

	ref, err := c.pusher.SyncOrder(ctx, event)
	if err != nil {
		return err
	}

	if err := c.orders.Update(ctx, event.OrderID, map[string]any{"erp_ref": ref}); err != nil {
		return fmt.Errorf("record erp ref for order %s: %w", event.OrderID, err)
	}

	c.logg.Info(c.logg.WithFields(ctx, map[string]any{
		"order_id": event.OrderID.String(),
		"erp_ref":  ref,
		"status":   string(event.Status),
	}), "order pushed to erp")
	return nil
}
