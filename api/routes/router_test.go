package routes

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/deshcart/deshcart-backend/api/middleware"
	"github.com/deshcart/deshcart-backend/internal/settlement"
	"github.com/deshcart/deshcart-backend/pkg/config"
	"github.com/deshcart/deshcart-backend/pkg/db/models"
	"github.com/deshcart/deshcart-backend/pkg/enums"
	pkgerrors "github.com/deshcart/deshcart-backend/pkg/errors"
)

type stubPinger struct{}

func (stubPinger) Ping(context.Context) error { return nil }

type fakeRedis struct {
	data map[string]string
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{data: make(map[string]string)}
}

func (f *fakeRedis) Get(_ context.Context, key string) (string, error) {
	if v, ok := f.data[key]; ok {
		return v, nil
	}
	return "", redis.Nil
}

func (f *fakeRedis) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	if _, ok := f.data[key]; ok {
		return false, nil
	}
	str, _ := value.(string)
	f.data[key] = str
	return true, nil
}

func (f *fakeRedis) IdempotencyKey(scope, id string) string {
	return fmt.Sprintf("idem:%s:%s", scope, id)
}

func (f *fakeRedis) Del(_ context.Context, keys ...string) error {
	for _, key := range keys {
		delete(f.data, key)
	}
	return nil
}

func (f *fakeRedis) Ping(context.Context) error { return nil }

type stubSettlement struct {
	placeCalls int
}

func (s *stubSettlement) PlaceOrder(_ context.Context, req settlement.PlaceOrderRequest) (*settlement.PlaceOrderResult, error) {
	s.placeCalls++
	return &settlement.PlaceOrderResult{
		Order: &models.Order{
			ID:            uuid.New(),
			OrderNumber:   "DC-20260825-000001",
			CustomerID:    req.CustomerID.String(),
			Currency:      enums.CurrencyBDT,
			Status:        enums.OrderStatusPendingPayment,
			PaymentMethod: req.PaymentMethod,
			TotalCents:    100000,
		},
		AttemptID:   uuid.New(),
		RedirectURL: "https://gw.example/pay/sess_1",
	}, nil
}

func (s *stubSettlement) HandleCallback(context.Context, enums.PaymentMethod, []byte, string) error {
	return nil
}

func (s *stubSettlement) CancelOrder(context.Context, uuid.UUID, settlement.Actor, string) error {
	return nil
}

func (s *stubSettlement) RequestReturn(context.Context, uuid.UUID, settlement.Actor, string) (*models.Refund, error) {
	return &models.Refund{}, nil
}

func (s *stubSettlement) MarkFulfilling(context.Context, uuid.UUID, settlement.Actor) error {
	return nil
}

func (s *stubSettlement) MarkCompleted(context.Context, uuid.UUID, settlement.Actor) error {
	return nil
}

func (s *stubSettlement) ExpireReservation(context.Context, models.InventoryReservation) (bool, error) {
	return false, nil
}

func (s *stubSettlement) ExpireStaleAttempts(context.Context, time.Time, int) (int, error) {
	return 0, nil
}

type stubOrdersService struct{}

func (stubOrdersService) Get(context.Context, uuid.UUID) (*models.Order, error) {
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
}

func (stubOrdersService) GetByNumber(context.Context, string) (*models.Order, error) {
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
}

func (stubOrdersService) ListByCustomer(context.Context, uuid.UUID, int, int) ([]models.Order, error) {
	return nil, nil
}

func (stubOrdersService) Transition(context.Context, *gorm.DB, *models.Order, enums.OrderStatus, string, string) error {
	return nil
}

func (stubOrdersService) NextOrderNumber(context.Context, *gorm.DB) (string, error) {
	return "DC-20260825-000001", nil
}

const routerCheckoutBody = `{
	"customer_email": "taslima@example.com.bd",
	"payment_method": "card",
	"delivery_address": {"name":"N","phone":"P","line1":"L","city":"Dhaka"},
	"items": [{"sku":"SKU-A","qty":1}]
}`

func newTestRouter(settlementSvc *stubSettlement) http.Handler {
	cfg := &config.Config{App: config.AppConfig{Env: "dev", Port: "8080"}}
	return NewRouter(cfg, nil, stubPinger{}, newFakeRedis(), stubOrdersService{}, settlementSvc)
}

func TestRouterHealthLive(t *testing.T) {
	router := newTestRouter(&stubSettlement{})
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health/live", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", w.Code)
	}
}

func TestRouterCheckoutRequiresIdentityHeader(t *testing.T) {
	router := newTestRouter(&stubSettlement{})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", strings.NewReader(routerCheckoutBody))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", w.Code)
	}
}

func TestRouterCheckoutIdempotentReplay(t *testing.T) {
	settlementSvc := &stubSettlement{}
	router := newTestRouter(settlementSvc)
	customerID := uuid.NewString()

	send := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", strings.NewReader(routerCheckoutBody))
		req.Header.Set(middleware.CustomerIDHeader, customerID)
		req.Header.Set("Idempotency-Key", "key-42")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	first := send()
	second := send()

	if first.Code != http.StatusCreated || second.Code != http.StatusCreated {
		t.Fatalf("expected 201/201 got %d/%d", first.Code, second.Code)
	}
	if settlementSvc.placeCalls != 1 {
		t.Fatalf("replay must not place a second order, got %d calls", settlementSvc.placeCalls)
	}
	if first.Body.String() != second.Body.String() {
		t.Fatalf("replayed body differs")
	}
}

func TestRouterCheckoutRequiresIdempotencyKey(t *testing.T) {
	router := newTestRouter(&stubSettlement{})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", strings.NewReader(routerCheckoutBody))
	req.Header.Set(middleware.CustomerIDHeader, uuid.NewString())
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", w.Code)
	}
}

func TestRouterOpsRoutesRequireOperatorHeader(t *testing.T) {
	router := newTestRouter(&stubSettlement{})
	req := httptest.NewRequest(http.MethodPost, "/api/ops/v1/orders/"+uuid.NewString()+"/fulfill", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", w.Code)
	}
}

func TestRouterCallbacksBypassIdentity(t *testing.T) {
	router := newTestRouter(&stubSettlement{})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/callbacks/card", strings.NewReader(`{}`))
	req.Header.Set("X-DC-Signature", "deadbeef")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", w.Code, w.Body.String())
	}
}
