package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/deshcart/deshcart-backend/api/middleware"
	"github.com/deshcart/deshcart-backend/api/responses"
	"github.com/deshcart/deshcart-backend/api/validators"
	"github.com/deshcart/deshcart-backend/internal/catalog"
	"github.com/deshcart/deshcart-backend/internal/settlement"
	"github.com/deshcart/deshcart-backend/pkg/db/models"
	"github.com/deshcart/deshcart-backend/pkg/enums"
	pkgerrors "github.com/deshcart/deshcart-backend/pkg/errors"
	"github.com/deshcart/deshcart-backend/pkg/logger"
)

// Checkout places an order for the authenticated customer. Prices come from
// the catalog, never from the request body.
func Checkout(svc settlement.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "settlement service unavailable"))
			return
		}

		customerID, err := customerIDFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload checkoutRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		method, err := enums.ParsePaymentMethod(payload.PaymentMethod)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "payment_method"))
			return
		}
		delivery := enums.DeliveryMethodCourier
		if payload.DeliveryMethod != "" {
			delivery, err = enums.ParseDeliveryMethod(payload.DeliveryMethod)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "delivery_method"))
				return
			}
		}

		lines := make([]catalog.QuoteLine, 0, len(payload.Items))
		for _, item := range payload.Items {
			lines = append(lines, catalog.QuoteLine{SKU: item.SKU, Qty: item.Qty})
		}

		result, err := svc.PlaceOrder(r.Context(), settlement.PlaceOrderRequest{
			CustomerID:      customerID,
			CustomerEmail:   payload.CustomerEmail,
			CustomerPhone:   payload.CustomerPhone,
			DeliveryAddress: payload.DeliveryAddress.toModel(),
			DeliveryMethod:  delivery,
			PaymentMethod:   method,
			Lines:           lines,
			ShippingCents:   payload.ShippingCents,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, checkoutResponse{
			Order:       newOrderResponse(result.Order),
			AttemptID:   result.AttemptID,
			RedirectURL: result.RedirectURL,
		})
	}
}

type checkoutRequest struct {
	CustomerEmail   string         `json:"customer_email" validate:"required,email"`
	CustomerPhone   string         `json:"customer_phone" validate:"omitempty,min=11,max=14"`
	PaymentMethod   string         `json:"payment_method" validate:"required"`
	DeliveryMethod  string         `json:"delivery_method" validate:"omitempty"`
	ShippingCents   int64          `json:"shipping_cents" validate:"gte=0"`
	DeliveryAddress addressPayload `json:"delivery_address" validate:"required"`
	Items           []checkoutItem `json:"items" validate:"required,min=1,dive"`
}

type checkoutItem struct {
	SKU string `json:"sku" validate:"required"`
	Qty int    `json:"qty" validate:"required,min=1"`
}

type addressPayload struct {
	Name       string `json:"name" validate:"required"`
	Phone      string `json:"phone" validate:"required"`
	Line1      string `json:"line1" validate:"required"`
	Line2      string `json:"line2"`
	Area       string `json:"area"`
	City       string `json:"city" validate:"required"`
	District   string `json:"district"`
	PostalCode string `json:"postal_code"`
}

func (a addressPayload) toModel() models.Address {
	return models.Address{
		Name:       a.Name,
		Phone:      a.Phone,
		Line1:      a.Line1,
		Line2:      a.Line2,
		Area:       a.Area,
		City:       a.City,
		District:   a.District,
		PostalCode: a.PostalCode,
	}
}

type checkoutResponse struct {
	Order       orderResponse `json:"order"`
	AttemptID   uuid.UUID     `json:"attempt_id"`
	RedirectURL string        `json:"redirect_url,omitempty"`
}

func customerIDFromContext(r *http.Request) (uuid.UUID, error) {
	raw := middleware.CustomerIDFromContext(r.Context())
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "customer identity required")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "customer identity malformed")
	}
	return id, nil
}

func operatorIDFromContext(r *http.Request) (uuid.UUID, error) {
	raw := middleware.OperatorIDFromContext(r.Context())
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "operator identity required")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "operator identity malformed")
	}
	return id, nil
}
