package settlement

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/deshcart/deshcart-backend/internal/catalog"
	"github.com/deshcart/deshcart-backend/internal/gateway"
	"github.com/deshcart/deshcart-backend/internal/inventory"
	"github.com/deshcart/deshcart-backend/internal/orders"
	"github.com/deshcart/deshcart-backend/pkg/config"
	"github.com/deshcart/deshcart-backend/pkg/db/models"
	"github.com/deshcart/deshcart-backend/pkg/enums"
	"github.com/deshcart/deshcart-backend/pkg/logger"
	"github.com/deshcart/deshcart-backend/pkg/metrics"
	"github.com/deshcart/deshcart-backend/pkg/outbox"
)

// Actor is whoever drives a settlement action. The zero value with a role of
// "system" is used by sweep jobs and compensation paths.
type Actor struct {
	CustomerID *uuid.UUID
	OperatorID *uuid.UUID
	Role       string
}

// SystemActor is the actor recorded for machine-driven transitions.
var SystemActor = Actor{Role: "system"}

func (a Actor) label() string {
	switch {
	case a.CustomerID != nil:
		return "customer:" + a.CustomerID.String()
	case a.OperatorID != nil:
		return "operator:" + a.OperatorID.String()
	case a.Role != "":
		return a.Role
	default:
		return "system"
	}
}

func (a Actor) ref() *outbox.ActorRef {
	if a.CustomerID == nil && a.OperatorID == nil && a.Role == "" {
		return &outbox.ActorRef{Role: "system"}
	}
	return &outbox.ActorRef{CustomerID: a.CustomerID, OperatorID: a.OperatorID, Role: a.Role}
}

// PlaceOrderRequest is a validated checkout submission. Line prices are never
// taken from the client; the catalog is the only price source.
type PlaceOrderRequest struct {
	CustomerID      uuid.UUID
	CustomerEmail   string
	CustomerPhone   string
	DeliveryAddress models.Address
	DeliveryMethod  enums.DeliveryMethod
	PaymentMethod   enums.PaymentMethod
	Lines           []catalog.QuoteLine
	ShippingCents   int64
}

// PlaceOrderResult tells the storefront how to continue the payment flow.
type PlaceOrderResult struct {
	Order       *models.Order
	AttemptID   uuid.UUID
	RedirectURL string
}

// Service is the settlement orchestrator. It owns the order state machine and
// coordinates inventory, gateways, and the outbox so that every transition,
// its stock movement, and its downstream events commit atomically.
type Service interface {
	PlaceOrder(ctx context.Context, req PlaceOrderRequest) (*PlaceOrderResult, error)
	HandleCallback(ctx context.Context, method enums.PaymentMethod, payload []byte, signature string) error
	CancelOrder(ctx context.Context, orderID uuid.UUID, actor Actor, reason string) error
	RequestReturn(ctx context.Context, orderID uuid.UUID, actor Actor, reason string) (*models.Refund, error)
	MarkFulfilling(ctx context.Context, orderID uuid.UUID, actor Actor) error
	MarkCompleted(ctx context.Context, orderID uuid.UUID, actor Actor) error
	ExpireReservation(ctx context.Context, reservation models.InventoryReservation) (bool, error)
	ExpireStaleAttempts(ctx context.Context, cutoff time.Time, limit int) (int, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
	EmitIfNotExists(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type service struct {
	runner    txRunner
	catalog   catalog.Service
	inventory inventory.Service
	orders    orders.Service
	orderRepo orders.Repository
	payments  PaymentsRepository
	gateways  *gateway.Registry
	outbox    outboxEmitter
	metrics   *metrics.SettlementMetrics
	checkout  config.CheckoutConfig
	logg      *logger.Logger
}

// NewService builds the settlement orchestrator.
func NewService(
	runner txRunner,
	catalogSvc catalog.Service,
	inventorySvc inventory.Service,
	ordersSvc orders.Service,
	orderRepo orders.Repository,
	payments PaymentsRepository,
	gateways *gateway.Registry,
	emitter outboxEmitter,
	settlementMetrics *metrics.SettlementMetrics,
	checkout config.CheckoutConfig,
	logg *logger.Logger,
) (Service, error) {
	if runner == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if catalogSvc == nil {
		return nil, fmt.Errorf("catalog service required")
	}
	if inventorySvc == nil {
		return nil, fmt.Errorf("inventory service required")
	}
	if ordersSvc == nil {
		return nil, fmt.Errorf("orders service required")
	}
	if orderRepo == nil {
		return nil, fmt.Errorf("order repository required")
	}
	if payments == nil {
		return nil, fmt.Errorf("payments repository required")
	}
	if gateways == nil {
		return nil, fmt.Errorf("gateway registry required")
	}
	if emitter == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		runner:    runner,
		catalog:   catalogSvc,
		inventory: inventorySvc,
		orders:    ordersSvc,
		orderRepo: orderRepo,
		payments:  payments,
		gateways:  gateways,
		outbox:    emitter,
		metrics:   settlementMetrics,
		checkout:  checkout,
		logg:      logg,
	}, nil
}

func (s *service) orderCtx(ctx context.Context, order *models.Order) context.Context {
	return s.logg.WithOrderID(ctx, order.ID.String())
}

func strPtr(v string) *string { return &v }

func timePtr(v time.Time) *time.Time { return &v }
