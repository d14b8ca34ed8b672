package settlement

import (
	"context"
	"fmt"
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

// HandleCallback settles a provider's server-to-server verdict. The payload is
// verified before anything is loaded; a callback that fails verification or
// does not match its attempt never transitions an order. Re-delivered verdicts
// are no-ops so providers can retry freely.
func (s *service) HandleCallback(ctx context.Context, method enums.PaymentMethod, payload []byte, signature string) error {
	gw, err := s.gateways.ForMethod(method)
	if err != nil {
		return err
	}
	notice, err := gw.VerifyCallback(payload, signature)
	if err != nil {
		s.logg.Warn(s.logg.WithGateway(ctx, gw.Name()), "callback rejected: "+err.Error())
		return err
	}

	var pendingRefund *models.Refund
	err = s.runner.WithTx(ctx, func(tx *gorm.DB) error {
		orderRepo := s.orderRepo.WithTx(tx)
		payments := s.payments.WithTx(tx)

		order, err := orderRepo.FindByIDForUpdate(ctx, notice.OrderID)
		if err != nil {
			return err
		}
		attempt, err := payments.FindAttemptByRefForUpdate(ctx, notice.GatewayRef)
		if err != nil {
			return err
		}
		if attempt.OrderID != order.ID {
			return pkgerrors.New(pkgerrors.CodeInvalidSignature, "callback attempt does not belong to order")
		}
		if notice.AmountCents != attempt.AmountCents || notice.Currency != attempt.Currency {
			return pkgerrors.New(pkgerrors.CodeInvalidSignature, "callback amount does not match attempt").
				WithDetails(map[string]any{
					"attempt_cents":  attempt.AmountCents,
					"callback_cents": notice.AmountCents,
				})
		}

		logCtx := s.orderCtx(s.logg.WithGateway(ctx, gw.Name()), order)
		switch notice.Status {
		case gateway.CallbackSucceeded:
			pendingRefund, err = s.applyConfirm(ctx, tx, order, attempt, notice, signature, gw.Name(), logCtx)
			return err
		case gateway.CallbackFailed:
			return s.applyDecline(ctx, tx, order, attempt, notice, gw.Name(), logCtx)
		default:
			return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown callback status %q", notice.Status))
		}
	})
	if err != nil {
		return err
	}

	// An auto-refund for a late confirm is executed after the settling
	// transaction committed, so the refund record survives a provider outage.
	if pendingRefund != nil {
		if refundErr := s.executeRefund(ctx, gw, pendingRefund); refundErr != nil {
			s.logg.Error(ctx, "compensating refund failed, flagging for reconciliation", refundErr)
			if flagErr := s.flagRefundFailure(ctx, pendingRefund); flagErr != nil {
				s.logg.Error(ctx, "failed to flag order for reconciliation", flagErr)
			}
		}
	}
	return nil
}

// flagRefundFailure marks the order for manual reconciliation after a
// compensating refund could not be pushed to the provider.
func (s *service) flagRefundFailure(ctx context.Context, refund *models.Refund) error {
	return s.runner.WithTx(ctx, func(tx *gorm.DB) error {
		order, err := s.orderRepo.WithTx(tx).FindByIDForUpdate(ctx, refund.OrderID)
		if err != nil {
			return err
		}
		attempt, err := s.payments.WithTx(tx).FindAttemptByID(ctx, refund.AttemptID)
		if err != nil {
			return err
		}
		return s.flagReconciliation(ctx, tx, order, attempt, "compensating refund failed")
	})
}

// applyConfirm handles a success verdict while holding the order row lock.
// A non-nil refund return means the money was captured but the stock is gone;
// the caller must push the refund to the provider once the tx commits.
func (s *service) applyConfirm(
	ctx context.Context,
	tx *gorm.DB,
	order *models.Order,
	attempt *models.PaymentAttempt,
	notice *gateway.CallbackNotice,
	signature string,
	gatewayName string,
	logCtx context.Context,
) (*models.Refund, error) {
	payments := s.payments.WithTx(tx)

	if attempt.Status == enums.AttemptStatusConfirmed {
		// Re-delivered confirm. Nothing to do, nothing to emit.
		s.logg.Info(logCtx, "duplicate confirm callback ignored")
		return nil, nil
	}

	confirmUpdates := map[string]any{
		"status":       enums.AttemptStatusConfirmed,
		"settled_at":   time.Now(),
		"raw_callback": notice.Raw,
		"signature":    signature,
	}

	switch order.Status {
	case enums.OrderStatusPendingPayment:
		// Normal path below.
	case enums.OrderStatusPaid, enums.OrderStatusFulfilling, enums.OrderStatusCompleted:
		s.logg.Info(logCtx, "confirm callback for already settled order ignored")
		return nil, nil
	default:
		// The money was captured but the order left the payable window
		// (cancelled or expired). Record the capture and pay it back.
		s.logg.Warn(logCtx, "confirm arrived for closed order, issuing compensating refund")
		if err := payments.UpdateAttempt(ctx, attempt.ID, confirmUpdates); err != nil {
			return nil, err
		}
		return s.queueCompensatingRefund(ctx, tx, order, attempt,
			"automatic refund: order "+string(order.Status)+" before confirmation")
	}

	if err := payments.UpdateAttempt(ctx, attempt.ID, confirmUpdates); err != nil {
		return nil, err
	}

	commitErr := s.inventory.Commit(ctx, tx, order.ID)
	if commitErr == nil {
		return nil, s.settleConfirmed(ctx, tx, order, attempt.ID, notice.GatewayRef, gatewayName, SystemActor)
	}

	// The reservation was swept before the confirm landed. Keep the captured
	// funds accounted for: fail the order and queue a full compensating refund.
	s.logg.Warn(logCtx, "confirm arrived after reservation sweep, issuing compensating refund")
	if err := s.orders.Transition(ctx, tx, order, enums.OrderStatusPaymentFailed, SystemActor.label(), "reservation expired before payment confirmation"); err != nil {
		return nil, err
	}
	refund, err := s.queueCompensatingRefund(ctx, tx, order, attempt,
		"automatic refund: stock released before confirmation")
	if err != nil {
		return nil, err
	}
	if err := s.emitPaymentFailed(ctx, tx, order, attempt, "stock no longer reserved"); err != nil {
		return nil, err
	}
	return refund, nil
}

// queueCompensatingRefund writes a pending full refund for a captured attempt
// and emits its request event in the settling transaction. The caller executes
// the refund against the provider once the transaction commits.
func (s *service) queueCompensatingRefund(
	ctx context.Context,
	tx *gorm.DB,
	order *models.Order,
	attempt *models.PaymentAttempt,
	reason string,
) (*models.Refund, error) {
	refund, err := s.payments.WithTx(tx).CreateRefund(ctx, &models.Refund{
		AttemptID:   attempt.ID,
		OrderID:     order.ID,
		AmountCents: attempt.AmountCents,
		Status:      enums.RefundStatusPending,
		Reason:      reason,
	})
	if err != nil {
		return nil, err
	}
	if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventRefundRequested,
		AggregateType: enums.AggregateRefund,
		AggregateID:   refund.ID,
		Actor:         SystemActor.ref(),
		Data: payloads.RefundRequestedEvent{
			RefundID:    refund.ID,
			OrderID:     order.ID,
			AttemptID:   attempt.ID,
			AmountCents: refund.AmountCents,
			Reason:      refund.Reason,
		},
		Version: 1,
	}); err != nil {
		return nil, err
	}
	return refund, nil
}

// applyDecline handles a failure verdict while holding the order row lock.
func (s *service) applyDecline(
	ctx context.Context,
	tx *gorm.DB,
	order *models.Order,
	attempt *models.PaymentAttempt,
	notice *gateway.CallbackNotice,
	gatewayName string,
	logCtx context.Context,
) error {
	payments := s.payments.WithTx(tx)

	switch attempt.Status {
	case enums.AttemptStatusDeclined, enums.AttemptStatusExpired:
		s.logg.Info(logCtx, "duplicate decline callback ignored")
		return nil
	case enums.AttemptStatusConfirmed:
		// A decline after a confirm is a provider-side contradiction.
		if err := payments.UpdateAttempt(ctx, attempt.ID, map[string]any{"disputed": true}); err != nil {
			return err
		}
		return s.flagReconciliation(ctx, tx, order, attempt, "decline arrived after confirm")
	}

	if err := payments.UpdateAttempt(ctx, attempt.ID, map[string]any{
		"status":       enums.AttemptStatusDeclined,
		"settled_at":   time.Now(),
		"raw_callback": notice.Raw,
	}); err != nil {
		return err
	}
	if order.Status != enums.OrderStatusPendingPayment {
		s.logg.Info(logCtx, "decline callback for non-pending order recorded on attempt only")
		return nil
	}

	if _, err := s.inventory.Release(ctx, tx, order.ID); err != nil {
		return err
	}
	reason := notice.Reason
	if reason == "" {
		reason = "payment declined"
	}
	if err := s.orders.Transition(ctx, tx, order, enums.OrderStatusPaymentFailed, SystemActor.label(), reason); err != nil {
		return err
	}
	if err := s.emitPaymentFailed(ctx, tx, order, attempt, reason); err != nil {
		return err
	}
	if s.metrics != nil {
		s.metrics.IncPaymentDeclined(gatewayName)
	}
	return nil
}

// settleConfirmed moves a pending order to paid after its stock was committed
// and emits the paid, ERP sync, and customer notification events in the same
// transaction.
func (s *service) settleConfirmed(
	ctx context.Context,
	tx *gorm.DB,
	order *models.Order,
	attemptID uuid.UUID,
	gatewayRef, gatewayName string,
	actor Actor,
) error {
	paidAt := time.Now()
	if err := s.orders.Transition(ctx, tx, order, enums.OrderStatusPaid, actor.label(), "payment confirmed"); err != nil {
		return err
	}
	if err := s.orderRepo.WithTx(tx).Update(ctx, order.ID, map[string]any{
		"payment_ref": gatewayRef,
	}); err != nil {
		return err
	}
	order.PaymentRef = strPtr(gatewayRef)
	order.PaidAt = timePtr(paidAt)

	if err := s.outbox.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventOrderPaid,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Actor:         actor.ref(),
		Data: payloads.OrderPaidEvent{
			OrderID:     order.ID,
			OrderNumber: order.OrderNumber,
			AttemptID:   attemptID,
			Gateway:     gatewayName,
			AmountCents: order.TotalCents,
			PaidAt:      paidAt,
		},
		Version: 1,
	}); err != nil {
		return err
	}
	if err := s.outbox.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventERPOrderSync,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Actor:         SystemActor.ref(),
		Data: payloads.ERPOrderSyncEvent{
			OrderID:     order.ID,
			OrderNumber: order.OrderNumber,
			Status:      enums.OrderStatusPaid,
			TotalCents:  order.TotalCents,
		},
		Version: 1,
	}); err != nil {
		return err
	}
	if err := s.emitNotification(ctx, tx, order, "order_paid"); err != nil {
		return err
	}

	if s.metrics != nil {
		s.metrics.IncOrderPaid(string(order.PaymentMethod))
	}
	return nil
}

func (s *service) emitPaymentFailed(ctx context.Context, tx *gorm.DB, order *models.Order, attempt *models.PaymentAttempt, reason string) error {
	if err := s.outbox.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventOrderPaymentFailed,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Actor:         SystemActor.ref(),
		Data: payloads.PaymentFailedEvent{
			OrderID:   order.ID,
			AttemptID: attempt.ID,
			Gateway:   attempt.Gateway,
			Reason:    reason,
		},
		Version: 1,
	}); err != nil {
		return err
	}
	return s.emitNotification(ctx, tx, order, "payment_failed")
}

func (s *service) flagReconciliation(ctx context.Context, tx *gorm.DB, order *models.Order, attempt *models.PaymentAttempt, reason string) error {
	if err := s.orderRepo.WithTx(tx).Update(ctx, order.ID, map[string]any{
		"needs_reconciliation": true,
	}); err != nil {
		return err
	}
	order.NeedsReconciliation = true
	if err := s.outbox.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventReconciliationNeeded,
		AggregateType: enums.AggregatePaymentAttempt,
		AggregateID:   attempt.ID,
		Actor:         SystemActor.ref(),
		Data: payloads.ReconciliationNeededEvent{
			OrderID:   order.ID,
			AttemptID: attempt.ID,
			Reason:    reason,
		},
		Version: 1,
	}); err != nil {
		return err
	}
	if s.metrics != nil {
		s.metrics.IncReconciliationNeeded()
	}
	return nil
}

func (s *service) emitNotification(ctx context.Context, tx *gorm.DB, order *models.Order, kind string) error {
	customerID, err := uuid.Parse(order.CustomerID)
	if err != nil {
		customerID = uuid.Nil
	}
	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventNotificationRequest,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Actor:         SystemActor.ref(),
		Data: payloads.NotificationRequestedEvent{
			OrderID:    order.ID,
			CustomerID: customerID,
			Type:       kind,
		},
		Version: 1,
	})
}
