package controllers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/deshcart/deshcart-backend/api/responses"
	"github.com/deshcart/deshcart-backend/api/validators"
	"github.com/deshcart/deshcart-backend/internal/orders"
	"github.com/deshcart/deshcart-backend/internal/settlement"
	"github.com/deshcart/deshcart-backend/pkg/db/models"
	"github.com/deshcart/deshcart-backend/pkg/enums"
	pkgerrors "github.com/deshcart/deshcart-backend/pkg/errors"
	"github.com/deshcart/deshcart-backend/pkg/logger"
)

const (
	defaultOrderPageSize = 20
	maxOrderPageSize     = 100
)

// ListOrders returns the customer's orders, newest first.
func ListOrders(ordersSvc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		customerID, err := customerIDFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", defaultOrderPageSize, 1, maxOrderPageSize)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		offset, err := validators.ParseQueryInt(r, "offset", 0, 0, 1<<30)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		list, err := ordersSvc.ListByCustomer(r.Context(), customerID, limit, offset)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		items := make([]orderResponse, 0, len(list))
		for i := range list {
			items = append(items, newOrderResponse(&list[i]))
		}
		responses.WriteSuccess(w, map[string]any{
			"orders": items,
			"limit":  limit,
			"offset": offset,
		})
	}
}

// OrderDetail returns a single order owned by the caller.
func OrderDetail(ordersSvc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		order, err := ownedOrder(r, ordersSvc)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newOrderResponse(order))
	}
}

// CancelOrder cancels a pending order, releasing its stock reservation.
func CancelOrder(ordersSvc orders.Service, settlementSvc settlement.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		customerID, err := customerIDFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		order, err := ownedOrder(r, ordersSvc)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		// Customers may only cancel while awaiting payment. Wider hops stay
		// reserved for system and operator actors.
		if order.Status != enums.OrderStatusPendingPayment {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeStateConflict,
				"order can no longer be cancelled"))
			return
		}

		payload, err := decodeReason(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		actor := settlement.Actor{CustomerID: &customerID, Role: "customer"}
		if err := settlementSvc.CancelOrder(r.Context(), order.ID, actor, payload.reason("cancelled by customer")); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		refreshed, err := ordersSvc.Get(r.Context(), order.ID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newOrderResponse(refreshed))
	}
}

// ReturnOrder opens a return for a paid order and requests the refund.
func ReturnOrder(ordersSvc orders.Service, settlementSvc settlement.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		customerID, err := customerIDFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		order, err := ownedOrder(r, ordersSvc)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		payload, err := decodeReason(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		actor := settlement.Actor{CustomerID: &customerID, Role: "customer"}
		refund, err := settlementSvc.RequestReturn(r.Context(), order.ID, actor, payload.reason("returned by customer"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusAccepted, newRefundResponse(refund))
	}
}

type reasonRequest struct {
	Reason string `json:"reason" validate:"omitempty,max=500"`
}

func (p reasonRequest) reason(fallback string) string {
	if p.Reason != "" {
		return p.Reason
	}
	return fallback
}

// decodeReason tolerates an empty body; reason stays optional on cancel and
// return.
func decodeReason(r *http.Request) (reasonRequest, error) {
	var payload reasonRequest
	if r.Body == nil || r.ContentLength == 0 {
		return payload, nil
	}
	if err := validators.DecodeJSONBody(r, &payload); err != nil {
		return payload, err
	}
	return payload, nil
}

// ownedOrder loads the path order and checks it belongs to the caller.
// Foreign orders read as not found so ownership is never leaked.
func ownedOrder(r *http.Request, ordersSvc orders.Service) (*models.Order, error) {
	customerID, err := customerIDFromContext(r)
	if err != nil {
		return nil, err
	}
	orderID, err := uuid.Parse(chi.URLParam(r, "orderID"))
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id malformed")
	}
	order, err := ordersSvc.Get(r.Context(), orderID)
	if err != nil {
		return nil, err
	}
	if order.CustomerID != customerID.String() {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return order, nil
}

type orderResponse struct {
	OrderID           uuid.UUID           `json:"order_id"`
	OrderNumber       string              `json:"order_number"`
	Status            string              `json:"status"`
	PaymentMethod     string              `json:"payment_method"`
	DeliveryMethod    string              `json:"delivery_method"`
	Currency          string              `json:"currency"`
	SubtotalCents     int64               `json:"subtotal_cents"`
	ShippingCents     int64               `json:"shipping_cents"`
	TotalCents        int64               `json:"total_cents"`
	CollectOnDelivery bool                `json:"collect_on_delivery"`
	PaymentRef        *string             `json:"payment_ref,omitempty"`
	PaidAt            *time.Time          `json:"paid_at,omitempty"`
	CancelledAt       *time.Time          `json:"cancelled_at,omitempty"`
	DeliveryAddress   models.Address      `json:"delivery_address"`
	Items             []orderItemResponse `json:"items"`
	CreatedAt         time.Time           `json:"created_at"`
}

type orderItemResponse struct {
	SKU            string `json:"sku"`
	Name           string `json:"name"`
	Qty            int    `json:"qty"`
	UnitPriceCents int64  `json:"unit_price_cents"`
	TotalCents     int64  `json:"total_cents"`
}

func newOrderResponse(order *models.Order) orderResponse {
	if order == nil {
		return orderResponse{}
	}
	items := make([]orderItemResponse, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, orderItemResponse{
			SKU:            item.SKU,
			Name:           item.Name,
			Qty:            item.Qty,
			UnitPriceCents: item.UnitPriceCents,
			TotalCents:     item.TotalCents,
		})
	}
	return orderResponse{
		OrderID:           order.ID,
		OrderNumber:       order.OrderNumber,
		Status:            string(order.Status),
		PaymentMethod:     string(order.PaymentMethod),
		DeliveryMethod:    string(order.DeliveryMethod),
		Currency:          string(order.Currency),
		SubtotalCents:     order.SubtotalCents,
		ShippingCents:     order.ShippingCents,
		TotalCents:        order.TotalCents,
		CollectOnDelivery: order.CollectOnDelivery,
		PaymentRef:        order.PaymentRef,
		PaidAt:            order.PaidAt,
		CancelledAt:       order.CancelledAt,
		DeliveryAddress:   order.DeliveryAddress,
		Items:             items,
		CreatedAt:         order.CreatedAt,
	}
}

type refundResponse struct {
	RefundID    uuid.UUID `json:"refund_id"`
	OrderID     uuid.UUID `json:"order_id"`
	AmountCents int64     `json:"amount_cents"`
	Status      string    `json:"status"`
	Reason      string    `json:"reason"`
	GatewayRef  *string   `json:"gateway_ref,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

func newRefundResponse(refund *models.Refund) refundResponse {
	if refund == nil {
		return refundResponse{}
	}
	return refundResponse{
		RefundID:    refund.ID,
		OrderID:     refund.OrderID,
		AmountCents: refund.AmountCents,
		Status:      string(refund.Status),
		Reason:      refund.Reason,
		GatewayRef:  refund.GatewayRef,
		CreatedAt:   refund.CreatedAt,
	}
}
