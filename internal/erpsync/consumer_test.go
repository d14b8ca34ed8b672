package erpsync

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/deshcart/deshcart-backend/pkg/enums"
	"github.com/deshcart/deshcart-backend/pkg/logger"
	"github.com/deshcart/deshcart-backend/pkg/outbox/payloads"
)

type stubPusher struct {
	ref    string
	err    error
	pushed []payloads.ERPOrderSyncEvent
}

func (s *stubPusher) SyncOrder(_ context.Context, event payloads.ERPOrderSyncEvent) (string, error) {
	s.pushed = append(s.pushed, event)
	return s.ref, s.err
}

type stubOrderUpdater struct {
	updates map[uuid.UUID]map[string]any
	err     error
}

func (s *stubOrderUpdater) Update(_ context.Context, id uuid.UUID, updates map[string]any) error {
	if s.updates == nil {
		s.updates = map[uuid.UUID]map[string]any{}
	}
	s.updates[id] = updates
	return s.err
}

func newTestConsumer(t *testing.T, pusher Pusher, orders orderUpdater) *Consumer {
	t.Helper()
	consumer, err := NewConsumer(pusher, orders, logger.New(logger.Options{ServiceName: "erp-sync-test"}))
	if err != nil {
		t.Fatalf("build consumer: %v", err)
	}
	return consumer
}

func syncEnvelope(t *testing.T, event payloads.ERPOrderSyncEvent) Envelope {
	t.Helper()
	data, err := json.Marshal(event)
	if err != nil {
		t.Fatalf("marshal event: %v", err)
	}
	return Envelope{
		EventID:       uuid.NewString(),
		EventType:     enums.EventERPOrderSync,
		AggregateType: enums.AggregateOrder,
		AggregateID:   event.OrderID.String(),
		Payload:       data,
	}
}

func TestConsumerRecordsAckRef(t *testing.T) {
	t.Parallel()

	orderID := uuid.New()
	pusher := &stubPusher{ref: "ERP-ACK-1187"}
	orders := &stubOrderUpdater{}
	consumer := newTestConsumer(t, pusher, orders)

	err := consumer.Handle(context.Background(), syncEnvelope(t, payloads.ERPOrderSyncEvent{
		OrderID:     orderID,
		OrderNumber: "DC-20260825-104233",
		Status:      enums.OrderStatusPaid,
		TotalCents:  51000,
	}))
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if len(pusher.pushed) != 1 {
		t.Fatalf("expected one push, got %d", len(pusher.pushed))
	}
	if got := orders.updates[orderID]["erp_ref"]; got != "ERP-ACK-1187" {
		t.Fatalf("expected erp_ref recorded, got %v", got)
	}
}

func TestConsumerSkipsOtherEventTypes(t *testing.T) {
	t.Parallel()

	pusher := &stubPusher{}
	consumer := newTestConsumer(t, pusher, &stubOrderUpdater{})

	err := consumer.Handle(context.Background(), Envelope{
		EventID:   uuid.NewString(),
		EventType: enums.EventOrderPaid,
	})
	if !errors.Is(err, ErrUnsupportedEvent) {
		t.Fatalf("expected ErrUnsupportedEvent, got %v", err)
	}
	if len(pusher.pushed) != 0 {
		t.Fatal("pusher should not be called")
	}
}

func TestConsumerPropagatesPushError(t *testing.T) {
	t.Parallel()

	pushErr := errors.New("erp unavailable")
	pusher := &stubPusher{err: pushErr}
	orders := &stubOrderUpdater{}
	consumer := newTestConsumer(t, pusher, orders)

	err := consumer.Handle(context.Background(), syncEnvelope(t, payloads.ERPOrderSyncEvent{
		OrderID:    uuid.New(),
		Status:     enums.OrderStatusPaid,
		TotalCents: 12000,
	}))
	if !errors.Is(err, pushErr) {
		t.Fatalf("expected push error, got %v", err)
	}
	if len(orders.updates) != 0 {
		t.Fatal("order must not be updated when the push fails")
	}
}

func TestConsumerRejectsMalformedPayload(t *testing.T) {
	t.Parallel()

	pusher := &stubPusher{}
	consumer := newTestConsumer(t, pusher, &stubOrderUpdater{})

	err := consumer.Handle(context.Background(), Envelope{
		EventID:   uuid.NewString(),
		EventType: enums.EventERPOrderSync,
		Payload:   json.RawMessage(`{"order_id":`),
	})
	if err == nil {
		t.Fatal("expected decode error")
	}
	if len(pusher.pushed) != 0 {
		t.Fatal("pusher should not be called")
	}
}
