package settlement

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/deshcart/deshcart-backend/internal/gateway"
	"github.com/deshcart/deshcart-backend/pkg/db/models"
	"github.com/deshcart/deshcart-backend/pkg/enums"
	pkgerrors "github.com/deshcart/deshcart-backend/pkg/errors"
	"github.com/deshcart/deshcart-backend/pkg/outbox"
	"github.com/deshcart/deshcart-backend/pkg/outbox/payloads"
)

// PlaceOrder turns a validated cart into a durable order. First transaction:
// price the lines, allocate the order number, create the draft order, reserve
// stock, open the payment attempt. The provider call then happens outside any
// transaction. Second transaction: record the provider outcome. If initiation
// fails the reservation is released and the order stays in draft; nothing was
// charged and nothing is held.
func (s *service) PlaceOrder(ctx context.Context, req PlaceOrderRequest) (*PlaceOrderResult, error) {
	if err := validatePlaceOrder(req); err != nil {
		return nil, err
	}
	gw, err := s.gateways.ForMethod(req.PaymentMethod)
	if err != nil {
		return nil, err
	}

	var (
		order   *models.Order
		attempt *models.PaymentAttempt
	)
	err = s.runner.WithTx(ctx, func(tx *gorm.DB) error {
		priced, err := s.catalog.Quote(ctx, tx, req.Lines)
		if err != nil {
			return err
		}

		orderNumber, err := s.orders.NextOrderNumber(ctx, tx)
		if err != nil {
			return err
		}

		var subtotal int64
		items := make([]models.OrderLineItem, len(priced))
		reserveLines := make([]models.ReservationLine, len(priced))
		for i, line := range priced {
			subtotal += line.TotalCents
			items[i] = models.OrderLineItem{
				SKU:            line.SKU,
				Name:           line.Name,
				Qty:            line.Qty,
				UnitPriceCents: line.UnitPriceCents,
				TotalCents:     line.TotalCents,
			}
			reserveLines[i] = models.ReservationLine{SKU: line.SKU, Qty: line.Qty}
		}

		repo := s.orderRepo.WithTx(tx)
		order, err = repo.Create(ctx, &models.Order{
			OrderNumber:     orderNumber,
			CustomerID:      req.CustomerID.String(),
			CustomerEmail:   req.CustomerEmail,
			DeliveryAddress: req.DeliveryAddress,
			Currency:        enums.Currency(s.checkout.Currency),
			Status:          enums.OrderStatusDraft,
			PaymentMethod:   req.PaymentMethod,
			DeliveryMethod:  req.DeliveryMethod,
			SubtotalCents:   subtotal,
			ShippingCents:   req.ShippingCents,
			TotalCents:      subtotal + req.ShippingCents,
		})
		if err != nil {
			return err
		}
		for i := range items {
			items[i].OrderID = order.ID
		}
		if err := repo.CreateLineItems(ctx, items); err != nil {
			return err
		}
		order.Items = items

		if _, err := s.inventory.Reserve(ctx, tx, order.ID, reserveLines, s.checkout.ReservationTTL); err != nil {
			return err
		}

		attempt, err = s.payments.WithTx(tx).CreateAttempt(ctx, &models.PaymentAttempt{
			OrderID:     order.ID,
			Gateway:     gw.Name(),
			AmountCents: order.TotalCents,
			Currency:    order.Currency,
			Status:      enums.AttemptStatusInitiated,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	logCtx := s.orderCtx(s.logg.WithGateway(ctx, gw.Name()), order)
	initiated, initErr := gw.Initiate(ctx, gateway.InitiateRequest{
		OrderID:       order.ID,
		OrderNumber:   order.OrderNumber,
		AmountCents:   order.TotalCents,
		Currency:      order.Currency,
		CustomerPhone: req.CustomerPhone,
	})
	if initErr != nil {
		s.logg.Error(logCtx, "payment initiation failed, releasing reservation", initErr)
		if compErr := s.compensateInitiation(ctx, order, attempt); compErr != nil {
			s.logg.Error(logCtx, "initiation compensation failed", compErr)
		}
		return nil, initErr
	}

	actor := Actor{CustomerID: &req.CustomerID, Role: "customer"}
	err = s.runner.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.orders.Transition(ctx, tx, order, enums.OrderStatusPendingPayment, actor.label(), "order placed"); err != nil {
			return err
		}

		attemptUpdates := map[string]any{
			"gateway_ref": initiated.GatewayRef,
			"status":      enums.AttemptStatusAwaitingCallback,
		}
		if initiated.Confirmed {
			attemptUpdates["status"] = enums.AttemptStatusConfirmed
			attemptUpdates["settled_at"] = time.Now()
		}
		if err := s.payments.WithTx(tx).UpdateAttempt(ctx, attempt.ID, attemptUpdates); err != nil {
			return err
		}

		orderUpdates := map[string]any{"payment_ref": initiated.GatewayRef}
		if initiated.CollectOnDelivery {
			orderUpdates["collect_on_delivery"] = true
			order.CollectOnDelivery = true
		}
		if err := s.orderRepo.WithTx(tx).Update(ctx, order.ID, orderUpdates); err != nil {
			return err
		}

		lines := make([]payloads.OrderLine, len(order.Items))
		for i, item := range order.Items {
			lines[i] = payloads.OrderLine{SKU: item.SKU, Qty: item.Qty, UnitPriceCents: item.UnitPriceCents}
		}
		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderPlaced,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         actor.ref(),
			Data: payloads.OrderPlacedEvent{
				OrderID:       order.ID,
				OrderNumber:   order.OrderNumber,
				CustomerID:    req.CustomerID,
				PaymentMethod: order.PaymentMethod,
				TotalCents:    order.TotalCents,
				Currency:      order.Currency,
				Lines:         lines,
			},
			Version: 1,
		}); err != nil {
			return err
		}

		if initiated.Confirmed {
			// COD settles inside placement; stock commit and the paid
			// transition ride the same transaction as the placement events.
			if err := s.inventory.Commit(ctx, tx, order.ID); err != nil {
				return err
			}
			return s.settleConfirmed(ctx, tx, order, attempt.ID, initiated.GatewayRef, gw.Name(), SystemActor)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.IncOrderPlaced(string(order.PaymentMethod))
	}
	s.logg.Info(logCtx, "order placed")

	return &PlaceOrderResult{
		Order:       order,
		AttemptID:   attempt.ID,
		RedirectURL: initiated.RedirectURL,
	}, nil
}

// compensateInitiation unwinds the first placement transaction after the
// provider refused to open a session. The order row is kept in draft for
// audit; its stock claim is released and the attempt closed.
func (s *service) compensateInitiation(ctx context.Context, order *models.Order, attempt *models.PaymentAttempt) error {
	return s.runner.WithTx(ctx, func(tx *gorm.DB) error {
		if _, err := s.inventory.Release(ctx, tx, order.ID); err != nil {
			return err
		}
		return s.payments.WithTx(tx).UpdateAttempt(ctx, attempt.ID, map[string]any{
			"status": enums.AttemptStatusDeclined,
		})
	})
}

func validatePlaceOrder(req PlaceOrderRequest) error {
	if req.CustomerID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "customer id required")
	}
	if req.CustomerEmail == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "customer email required")
	}
	if !req.PaymentMethod.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "payment method unknown")
	}
	if !req.DeliveryMethod.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "delivery method unknown")
	}
	if req.ShippingCents < 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "shipping amount cannot be negative")
	}
	if req.DeliveryAddress.Line1 == "" || req.DeliveryAddress.City == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "delivery address incomplete")
	}
	return nil
}
