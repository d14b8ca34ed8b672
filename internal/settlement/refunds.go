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

// RequestReturn accepts a return for a paid order inside the return window,
// restocks the goods, and reverses the settlement. The refund record and its
// events commit before the provider is called; a provider outage leaves a
// pending refund an operator can replay instead of losing the obligation.
func (s *service) RequestReturn(ctx context.Context, orderID uuid.UUID, actor Actor, reason string) (*models.Refund, error) {
	var (
		refund *models.Refund
		method enums.PaymentMethod
	)
	err := s.runner.WithTx(ctx, func(tx *gorm.DB) error {
		order, err := s.orderRepo.WithTx(tx).FindByIDForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		method = order.PaymentMethod

		if order.PaidAt != nil && s.checkout.ReturnWindow > 0 {
			if time.Since(*order.PaidAt) > s.checkout.ReturnWindow {
				return pkgerrors.New(pkgerrors.CodeValidation, "return window has closed")
			}
		}
		if err := s.orders.Transition(ctx, tx, order, enums.OrderStatusReturned, actor.label(), reason); err != nil {
			return err
		}
		if err := s.inventory.Restock(ctx, tx, order.ID); err != nil {
			return err
		}

		payments := s.payments.WithTx(tx)
		attempt, err := payments.FindConfirmedAttemptByOrder(ctx, order.ID)
		if err != nil {
			return err
		}
		already, err := payments.SumRefundedCents(ctx, attempt.ID)
		if err != nil {
			return err
		}
		remaining := attempt.AmountCents - already
		if remaining <= 0 {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "attempt is already fully refunded")
		}

		refund, err = payments.CreateRefund(ctx, &models.Refund{
			AttemptID:   attempt.ID,
			OrderID:     order.ID,
			AmountCents: remaining,
			Status:      enums.RefundStatusPending,
			Reason:      reason,
		})
		if err != nil {
			return err
		}

		if err := s.outbox.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderReturned,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         actor.ref(),
			Data: payloads.OrderReturnedEvent{
				OrderID:     order.ID,
				RequestedAt: time.Now(),
				Reason:      reason,
			},
			Version: 1,
		}); err != nil {
			return err
		}
		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventRefundRequested,
			AggregateType: enums.AggregateRefund,
			AggregateID:   refund.ID,
			Actor:         actor.ref(),
			Data: payloads.RefundRequestedEvent{
				RefundID:    refund.ID,
				OrderID:     order.ID,
				AttemptID:   attempt.ID,
				AmountCents: refund.AmountCents,
				Reason:      reason,
			},
			Version: 1,
		}); err != nil {
			return err
		}
		return s.emitNotification(ctx, tx, order, "order_returned")
	})
	if err != nil {
		return nil, err
	}

	gw, err := s.gateways.ForMethod(method)
	if err != nil {
		return refund, err
	}
	if err := s.executeRefund(ctx, gw, refund); err != nil {
		return refund, err
	}
	return refund, nil
}

// executeRefund pushes one pending refund to its provider and records the
// outcome. A failed push leaves the refund in failed state for operator
// replay; the order stays in returned until the money actually moved.
func (s *service) executeRefund(ctx context.Context, gw gateway.Gateway, refund *models.Refund) error {
	attempt, err := s.payments.FindAttemptByID(ctx, refund.AttemptID)
	if err != nil {
		return err
	}
	gatewayRef := ""
	if attempt.GatewayRef != nil {
		gatewayRef = *attempt.GatewayRef
	}

	result, refundErr := gw.Refund(ctx, gateway.RefundRequest{
		GatewayRef:  gatewayRef,
		AmountCents: refund.AmountCents,
		Currency:    attempt.Currency,
		Reason:      refund.Reason,
	})
	if refundErr != nil {
		if s.metrics != nil {
			s.metrics.IncRefundIssued(string(enums.RefundStatusFailed))
		}
		if updateErr := s.runner.WithTx(ctx, func(tx *gorm.DB) error {
			return s.payments.WithTx(tx).UpdateRefund(ctx, refund.ID, map[string]any{
				"status": enums.RefundStatusFailed,
			})
		}); updateErr != nil {
			return updateErr
		}
		refund.Status = enums.RefundStatusFailed
		return refundErr
	}

	err = s.runner.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.payments.WithTx(tx).UpdateRefund(ctx, refund.ID, map[string]any{
			"status":      enums.RefundStatusSucceeded,
			"gateway_ref": result.RefundRef,
		}); err != nil {
			return err
		}
		refund.Status = enums.RefundStatusSucceeded
		refund.GatewayRef = strPtr(result.RefundRef)

		order, err := s.orderRepo.WithTx(tx).FindByIDForUpdate(ctx, refund.OrderID)
		if err != nil {
			return err
		}
		if order.Status == enums.OrderStatusReturned {
			if err := s.orders.Transition(ctx, tx, order, enums.OrderStatusRefunded, SystemActor.label(), "refund settled"); err != nil {
				return err
			}
		}
		if err := s.outbox.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderRefunded,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         SystemActor.ref(),
			Data: payloads.OrderRefundedEvent{
				OrderID:     order.ID,
				RefundID:    refund.ID,
				AmountCents: refund.AmountCents,
				GatewayRef:  result.RefundRef,
			},
			Version: 1,
		}); err != nil {
			return err
		}
		return s.emitNotification(ctx, tx, order, "order_refunded")
	})
	if err != nil {
		return err
	}
	if s.metrics != nil {
		s.metrics.IncRefundIssued(string(enums.RefundStatusSucceeded))
	}
	return nil
}
