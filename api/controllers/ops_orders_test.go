package controllers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"github.com/deshcart/deshcart-backend/internal/settlement"
	"github.com/deshcart/deshcart-backend/pkg/db/models"
	"github.com/deshcart/deshcart-backend/pkg/enums"
)

func TestFulfillOrderUsesOperatorActor(t *testing.T) {
	operatorID := uuid.New()
	order := sampleOrder(uuid.New())
	order.Status = enums.OrderStatusPaid
	ordersSvc := &stubOrders{
		getFn: func(context.Context, uuid.UUID) (*models.Order, error) {
			return order, nil
		},
	}

	var gotActor settlement.Actor
	settlementSvc := &stubSettlement{
		fulfillFn: func(_ context.Context, orderID uuid.UUID, actor settlement.Actor) error {
			if orderID != order.ID {
				t.Fatalf("unexpected order %s", orderID)
			}
			gotActor = actor
			return nil
		},
	}

	req := withOrderParam(operatorRequest(http.MethodPost, "/api/ops/v1/orders/"+order.ID.String()+"/fulfill", operatorID.String()), order.ID.String())
	w := httptest.NewRecorder()
	FulfillOrder(ordersSvc, settlementSvc, nil)(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", w.Code, w.Body.String())
	}
	if gotActor.OperatorID == nil || *gotActor.OperatorID != operatorID {
		t.Fatalf("actor should carry the operator id: %+v", gotActor)
	}
	if gotActor.Role != "operator" {
		t.Fatalf("unexpected role %q", gotActor.Role)
	}
}

func TestCompleteOrderRequiresOperatorIdentity(t *testing.T) {
	ordersSvc := &stubOrders{}
	settlementSvc := &stubSettlement{}

	req := withOrderParam(operatorRequest(http.MethodPost, "/api/ops/v1/orders/x/complete", ""), uuid.NewString())
	w := httptest.NewRecorder()
	CompleteOrder(ordersSvc, settlementSvc, nil)(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", w.Code)
	}
}

func TestCompleteOrderRejectsMalformedOrderID(t *testing.T) {
	ordersSvc := &stubOrders{}
	settlementSvc := &stubSettlement{}

	req := withOrderParam(operatorRequest(http.MethodPost, "/api/ops/v1/orders/nope/complete", uuid.NewString()), "nope")
	w := httptest.NewRecorder()
	CompleteOrder(ordersSvc, settlementSvc, nil)(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", w.Code)
	}
}
