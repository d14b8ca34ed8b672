package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/deshcart/deshcart-backend/api/responses"
	"github.com/deshcart/deshcart-backend/internal/orders"
	"github.com/deshcart/deshcart-backend/internal/settlement"
	pkgerrors "github.com/deshcart/deshcart-backend/pkg/errors"
	"github.com/deshcart/deshcart-backend/pkg/logger"
)

// FulfillOrder moves a paid order into fulfillment. Back-office only.
func FulfillOrder(ordersSvc orders.Service, settlementSvc settlement.Service, logg *logger.Logger) http.HandlerFunc {
	return operatorTransition(ordersSvc, logg, func(r *http.Request, orderID uuid.UUID, actor settlement.Actor) error {
		return settlementSvc.MarkFulfilling(r.Context(), orderID, actor)
	})
}

// CompleteOrder closes out a delivered order. For cash on delivery this is
// the point where collection is settled.
func CompleteOrder(ordersSvc orders.Service, settlementSvc settlement.Service, logg *logger.Logger) http.HandlerFunc {
	return operatorTransition(ordersSvc, logg, func(r *http.Request, orderID uuid.UUID, actor settlement.Actor) error {
		return settlementSvc.MarkCompleted(r.Context(), orderID, actor)
	})
}

func operatorTransition(
	ordersSvc orders.Service,
	logg *logger.Logger,
	apply func(r *http.Request, orderID uuid.UUID, actor settlement.Actor) error,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		operatorID, err := operatorIDFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		orderID, err := uuid.Parse(chi.URLParam(r, "orderID"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "order id malformed"))
			return
		}

		actor := settlement.Actor{OperatorID: &operatorID, Role: "operator"}
		if err := apply(r, orderID, actor); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := ordersSvc.Get(r.Context(), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newOrderResponse(order))
	}
}
