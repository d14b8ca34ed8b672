package controllers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/deshcart/deshcart-backend/api/middleware"
	"github.com/deshcart/deshcart-backend/internal/settlement"
	"github.com/deshcart/deshcart-backend/pkg/db/models"
	"github.com/deshcart/deshcart-backend/pkg/enums"
	pkgerrors "github.com/deshcart/deshcart-backend/pkg/errors"
)

type stubSettlement struct {
	placeFn    func(ctx context.Context, req settlement.PlaceOrderRequest) (*settlement.PlaceOrderResult, error)
	callbackFn func(ctx context.Context, method enums.PaymentMethod, payload []byte, signature string) error
	cancelFn   func(ctx context.Context, orderID uuid.UUID, actor settlement.Actor, reason string) error
	returnFn   func(ctx context.Context, orderID uuid.UUID, actor settlement.Actor, reason string) (*models.Refund, error)
	fulfillFn  func(ctx context.Context, orderID uuid.UUID, actor settlement.Actor) error
	completeFn func(ctx context.Context, orderID uuid.UUID, actor settlement.Actor) error
}

func (s *stubSettlement) PlaceOrder(ctx context.Context, req settlement.PlaceOrderRequest) (*settlement.PlaceOrderResult, error) {
	if s.placeFn == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "placeFn not set")
	}
	return s.placeFn(ctx, req)
}

func (s *stubSettlement) HandleCallback(ctx context.Context, method enums.PaymentMethod, payload []byte, signature string) error {
	if s.callbackFn == nil {
		return pkgerrors.New(pkgerrors.CodeInternal, "callbackFn not set")
	}
	return s.callbackFn(ctx, method, payload, signature)
}

func (s *stubSettlement) CancelOrder(ctx context.Context, orderID uuid.UUID, actor settlement.Actor, reason string) error {
	if s.cancelFn == nil {
		return pkgerrors.New(pkgerrors.CodeInternal, "cancelFn not set")
	}
	return s.cancelFn(ctx, orderID, actor, reason)
}

func (s *stubSettlement) RequestReturn(ctx context.Context, orderID uuid.UUID, actor settlement.Actor, reason string) (*models.Refund, error) {
	if s.returnFn == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "returnFn not set")
	}
	return s.returnFn(ctx, orderID, actor, reason)
}

func (s *stubSettlement) MarkFulfilling(ctx context.Context, orderID uuid.UUID, actor settlement.Actor) error {
	if s.fulfillFn == nil {
		return pkgerrors.New(pkgerrors.CodeInternal, "fulfillFn not set")
	}
	return s.fulfillFn(ctx, orderID, actor)
}

func (s *stubSettlement) MarkCompleted(ctx context.Context, orderID uuid.UUID, actor settlement.Actor) error {
	if s.completeFn == nil {
		return pkgerrors.New(pkgerrors.CodeInternal, "completeFn not set")
	}
	return s.completeFn(ctx, orderID, actor)
}

func (s *stubSettlement) ExpireReservation(context.Context, models.InventoryReservation) (bool, error) {
	return false, nil
}

func (s *stubSettlement) ExpireStaleAttempts(context.Context, time.Time, int) (int, error) {
	return 0, nil
}

type stubOrders struct {
	getFn  func(ctx context.Context, id uuid.UUID) (*models.Order, error)
	listFn func(ctx context.Context, customerID uuid.UUID, limit, offset int) ([]models.Order, error)
}

func (s *stubOrders) Get(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	if s.getFn == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return s.getFn(ctx, id)
}

func (s *stubOrders) GetByNumber(context.Context, string) (*models.Order, error) {
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
}

func (s *stubOrders) ListByCustomer(ctx context.Context, customerID uuid.UUID, limit, offset int) ([]models.Order, error) {
	if s.listFn == nil {
		return nil, nil
	}
	return s.listFn(ctx, customerID, limit, offset)
}

func (s *stubOrders) Transition(context.Context, *gorm.DB, *models.Order, enums.OrderStatus, string, string) error {
	return nil
}

func (s *stubOrders) NextOrderNumber(context.Context, *gorm.DB) (string, error) {
	return "DC-20260825-000001", nil
}

func customerRequest(method, target, customerID string, body string) *http.Request {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	if customerID != "" {
		req = req.WithContext(middleware.WithCustomerID(req.Context(), customerID))
	}
	return req
}

func operatorRequest(method, target, operatorID string) *http.Request {
	req := httptest.NewRequest(method, target, nil)
	if operatorID != "" {
		req = req.WithContext(middleware.WithOperatorID(req.Context(), operatorID))
	}
	return req
}

func withOrderParam(req *http.Request, orderID string) *http.Request {
	rc := chi.NewRouteContext()
	rc.URLParams.Add("orderID", orderID)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rc))
}

func sampleOrder(customerID uuid.UUID) *models.Order {
	ref := "sess_1"
	return &models.Order{
		ID:             uuid.New(),
		OrderNumber:    "DC-20260825-000042",
		CustomerID:     customerID.String(),
		CustomerEmail:  "taslima@example.com.bd",
		Currency:       enums.CurrencyBDT,
		Status:         enums.OrderStatusPendingPayment,
		PaymentMethod:  enums.PaymentMethodCard,
		DeliveryMethod: enums.DeliveryMethodCourier,
		SubtotalCents:  200000,
		ShippingCents:  6000,
		TotalCents:     206000,
		PaymentRef:     &ref,
		DeliveryAddress: models.Address{
			Name:  "Taslima Akter",
			Phone: "+8801711000000",
			Line1: "House 12, Road 5",
			Area:  "Dhanmondi",
			City:  "Dhaka",
		},
		Items: []models.OrderLineItem{
			{SKU: "SKU-A", Name: "Ceiling Fan", Qty: 2, UnitPriceCents: 100000, TotalCents: 200000},
		},
		CreatedAt: time.Now().UTC(),
	}
}
